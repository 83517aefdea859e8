package remote

import (
	"fmt"
	"strconv"
	"strings"
)

// byteRange is an inclusive byte interval as carried by Range and Content-Range headers.
type byteRange struct {
	Start, End int64
}

// Length of the range in bytes.
func (r byteRange) Length() int64 { return r.End - r.Start + 1 }

// parsePersistedRange parses the Range header of a "resume incomplete" response,
// e.g. "bytes=0-524287". An empty header means nothing has been persisted yet.
func parsePersistedRange(s string) (*byteRange, error) {
	if s == "" {
		return nil, nil
	}
	const b = "bytes="
	if !strings.HasPrefix(s, b) {
		return nil, fmt.Errorf("invalid range header %q", s)
	}
	start, end, ok := strings.Cut(s[len(b):], "-")
	if !ok {
		return nil, fmt.Errorf("invalid range header %q", s)
	}
	first, err := strconv.ParseInt(strings.TrimSpace(start), 10, 64)
	if err != nil || first < 0 {
		return nil, fmt.Errorf("invalid range header %q", s)
	}
	last, err := strconv.ParseInt(strings.TrimSpace(end), 10, 64)
	if err != nil || last < first {
		return nil, fmt.Errorf("invalid range header %q", s)
	}
	return &byteRange{Start: first, End: last}, nil
}

// contentRange formats the Content-Range header for a chunk of a resumable upload.
// A nil range queries the upload status ("bytes */size").
func contentRange(r *byteRange, size int64) string {
	if r == nil {
		return fmt.Sprintf("bytes */%d", size)
	}
	return fmt.Sprintf("bytes %d-%d/%d", r.Start, r.End, size)
}
