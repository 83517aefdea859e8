package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDetectContentType(t *testing.T) {
	tests := []struct {
		name string
		want string
	}{
		{name: "notes.md", want: "text/plain; charset=utf-8"},
		{name: "config.YAML", want: "text/plain; charset=utf-8"},
		{name: "photo.png", want: "image/png"},
		{name: "report.PDF", want: "application/pdf"},
		{name: "README", want: "application/octet-stream"},
		{name: "archive.unknownext", want: "application/octet-stream"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DetectContentType(tt.name))
		})
	}
}
