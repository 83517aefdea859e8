package upload

import (
	"errors"
	"fmt"
	"log/slog"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/openmined/stageup/internal/destination"
	"github.com/openmined/stageup/internal/server/handlers/api"
	"github.com/openmined/stageup/internal/uploader"
	"github.com/openmined/stageup/internal/utils"
)

type Destinations interface {
	Has(name string) bool
}

type UploadHandler struct {
	coordinator  *uploader.Coordinator
	destinations Destinations
	uploadDir    string
}

func New(coordinator *uploader.Coordinator, destinations Destinations, uploadDir string) *UploadHandler {
	return &UploadHandler{
		coordinator:  coordinator,
		destinations: destinations,
		uploadDir:    uploadDir,
	}
}

// Upload stages the posted files and hands them to the coordinator as one
// batch. It answers before any transfer starts.
func (h *UploadHandler) Upload(ctx *gin.Context) {
	form, err := ctx.MultipartForm()
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			api.AbortWithError(ctx, http.StatusRequestEntityTooLarge, api.CodeRequestTooLarge,
				fmt.Errorf("request body over %s", humanize.IBytes(uint64(tooLarge.Limit))))
			return
		}
		api.AbortWithError(ctx, http.StatusBadRequest, api.CodeInvalidRequest,
			fmt.Errorf("missing parameters: destination and files: %w", err))
		return
	}

	var dest string
	for _, field := range destinationFields {
		if dest = formValue(form, field); dest != "" {
			break
		}
	}
	var parts []*multipart.FileHeader
	for _, field := range fileFields {
		if parts = form.File[field]; len(parts) > 0 {
			break
		}
	}
	if dest == "" || len(parts) == 0 {
		api.AbortWithError(ctx, http.StatusBadRequest, api.CodeInvalidRequest,
			errors.New("missing parameters: destination and files"))
		return
	}
	if !h.destinations.Has(dest) {
		api.AbortWithError(ctx, http.StatusBadRequest, api.CodeUnknownDestination,
			fmt.Errorf("unknown destination: %s", dest))
		return
	}

	files, size, err := h.stage(ctx, parts)
	if err != nil {
		api.AbortWithError(ctx, http.StatusInternalServerError, api.CodeStagingFailed, err)
		return
	}
	if len(files) == 0 {
		api.AbortWithError(ctx, http.StatusBadRequest, api.CodeNoValidFiles,
			errors.New("no valid files received"))
		return
	}

	batch, err := h.coordinator.Submit(dest, files, uploader.LogObserver(slog.Default()))
	switch {
	case errors.Is(err, uploader.ErrShuttingDown):
		api.AbortWithError(ctx, http.StatusServiceUnavailable, api.CodeShuttingDown, err)
		return
	case errors.Is(err, destination.ErrUnknownDestination):
		api.AbortWithError(ctx, http.StatusBadRequest, api.CodeUnknownDestination, err)
		return
	case err != nil:
		api.AbortWithError(ctx, http.StatusInternalServerError, api.CodeInternalError, err)
		return
	}

	slog.Info("upload accepted", "batch", batch.ID, "destination", dest, "files", len(files), "size", humanize.Bytes(uint64(size)))
	ctx.PureJSON(http.StatusAccepted, &UploadResponse{
		Status:  "upload started",
		BatchID: batch.ID,
		Files:   len(files),
	})
}

// stage writes every part with an acceptable name into the upload dir. On
// failure the files staged so far are removed.
func (h *UploadHandler) stage(ctx *gin.Context, parts []*multipart.FileHeader) ([]uploader.FileRef, int64, error) {
	if err := utils.EnsureDir(h.uploadDir); err != nil {
		return nil, 0, fmt.Errorf("create upload dir: %w", err)
	}

	files := make([]uploader.FileRef, 0, len(parts))
	var size int64
	for _, part := range parts {
		name := part.Filename
		if name == "" {
			name = fallbackFileName
		}
		name = utils.SecureFilename(name)
		if name == "" {
			slog.Debug("upload part skipped", "filename", part.Filename)
			continue
		}

		staged := filepath.Join(h.uploadDir, uuid.NewString()+"-"+name)
		if err := ctx.SaveUploadedFile(part, staged); err != nil {
			for _, f := range files {
				_ = os.Remove(f.LocalPath)
			}
			_ = os.Remove(staged)
			return nil, 0, fmt.Errorf("stage %s: %w", name, err)
		}
		files = append(files, uploader.FileRef{LocalPath: staged, DisplayName: name})
		size += part.Size
	}
	return files, size, nil
}

func formValue(form *multipart.Form, key string) string {
	if values := form.Value[key]; len(values) > 0 {
		return values[0]
	}
	return ""
}
