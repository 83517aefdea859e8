package upload

// name used when a part carries no file name
const fallbackFileName = "file"

// Form field names, preferred first. The rest are accepted from older
// clients.
var (
	destinationFields = []string{"destination", "account", "cuenta"}
	fileFields        = []string{"files", "archivos"}
)

type UploadResponse struct {
	Status  string `json:"status"`
	BatchID string `json:"batchId"`
	Files   int    `json:"files"`
}
