package utils

import (
	"mime"
	"path/filepath"
	"strings"
)

const defaultContentType = "application/octet-stream"

// plain text formats that mime.TypeByExtension does not know on every platform
var textExtensions = map[string]struct{}{
	".yaml": {},
	".yml":  {},
	".toml": {},
	".md":   {},
	".log":  {},
	".csv":  {},
	".ini":  {},
}

// DetectContentType guesses a MIME type from the file name's extension.
func DetectContentType(name string) string {
	ext := strings.ToLower(filepath.Ext(name))
	if ext == "" {
		return defaultContentType
	}
	if _, ok := textExtensions[ext]; ok {
		return "text/plain; charset=utf-8"
	}
	if mimeType := mime.TypeByExtension(ext); mimeType != "" {
		return mimeType
	}
	return defaultContentType
}
