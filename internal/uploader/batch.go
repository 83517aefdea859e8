package uploader

import (
	"log/slog"
	"path/filepath"
	"time"
)

// FileRef is one staged local file and the name it gets on the remote.
type FileRef struct {
	LocalPath   string `json:"localPath"`
	DisplayName string `json:"name"`
}

// FileRefsFromPaths names every file after its base name.
func FileRefsFromPaths(paths []string) []FileRef {
	refs := make([]FileRef, 0, len(paths))
	for _, p := range paths {
		refs = append(refs, FileRef{LocalPath: p, DisplayName: filepath.Base(p)})
	}
	return refs
}

func (f FileRef) name() string {
	if f.DisplayName != "" {
		return f.DisplayName
	}
	return filepath.Base(f.LocalPath)
}

type UploadBatch struct {
	ID          string
	Destination string
	Files       []FileRef
	CreatedAt   time.Time
}

type ProgressEvent struct {
	BatchID string
	Percent int
}

type StatusEvent struct {
	BatchID  string
	Message  string
	Terminal bool
	Failed   bool
}

// Observer receives batch events in order from the batch goroutine. Either
// callback may be nil.
type Observer struct {
	OnProgress func(ProgressEvent)
	OnStatus   func(StatusEvent)
}

// LogObserver writes every event to the logger.
func LogObserver(logger *slog.Logger) Observer {
	if logger == nil {
		logger = slog.Default()
	}
	return Observer{
		OnProgress: func(e ProgressEvent) {
			logger.Debug("upload progress", "batch", e.BatchID, "percent", e.Percent)
		},
		OnStatus: func(e StatusEvent) {
			if e.Failed {
				logger.Error("upload status", "batch", e.BatchID, "status", e.Message)
				return
			}
			logger.Info("upload status", "batch", e.BatchID, "status", e.Message)
		},
	}
}

// Join fans events out to every observer in order.
func Join(observers ...Observer) Observer {
	return Observer{
		OnProgress: func(e ProgressEvent) {
			for _, o := range observers {
				if o.OnProgress != nil {
					o.OnProgress(e)
				}
			}
		},
		OnStatus: func(e StatusEvent) {
			for _, o := range observers {
				if o.OnStatus != nil {
					o.OnStatus(e)
				}
			}
		},
	}
}
