package api

const (
	// Generic request/server errors
	CodeInvalidRequest  = "E_INVALID_REQUEST"   // bad or invalid request
	CodeRateLimited     = "E_RATE_LIMITED"      // rate limit exceeded
	CodeInternalError   = "E_INTERNAL_ERROR"    // internal server error
	CodeRequestTooLarge = "E_REQUEST_TOO_LARGE" // request body over http.max_content_length
	CodeNotFound        = "E_NOT_FOUND"         // no such route or resource
	CodeShuttingDown    = "E_SHUTTING_DOWN"     // server no longer accepts uploads

	// Upload errors
	CodeUnknownDestination = "E_UNKNOWN_DESTINATION" // destination name is not configured
	CodeNoValidFiles       = "E_NO_VALID_FILES"      // every file name was rejected
	CodeStagingFailed      = "E_STAGING_FAILED"      // could not write an uploaded file to the upload dir

	// Batch errors
	CodeBatchNotFound = "E_BATCH_NOT_FOUND" // unknown or expired batch id
)
