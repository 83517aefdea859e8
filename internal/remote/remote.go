package remote

import (
	"context"
	"fmt"
	"io"
)

const (
	// DefaultChunkSize is the amount of bytes sent per transfer call.
	DefaultChunkSize = int64(256 * 1024)
	// MaxChunkSize bounds a configured chunk size. Chunk sizes are
	// tracked as uint32 once a transfer starts.
	MaxChunkSize = int64(1 << 30)
)

// Metadata describes the remote object created for one local file.
type Metadata struct {
	Name        string   `json:"name"`
	Parents     []string `json:"parents,omitempty"`
	Size        int64    `json:"-"`
	ContentType string   `json:"mimeType,omitempty"`
}

// Client opens resumable transfer sessions against a remote object store.
// A client is scoped to the destination it was resolved for.
type Client interface {
	// Begin prepares a resumable session for one object. Network calls may be
	// deferred to the first NextChunk so that session creation is retried with
	// the same policy as chunk transfers.
	Begin(ctx context.Context, meta Metadata, src io.ReaderAt, chunkSize int64) (Session, error)
}

// Session drives the chunk-by-chunk transfer of a single object.
type Session interface {
	// NextChunk transfers the next chunk. Calling it again after an error
	// retries the same chunk.
	NextChunk(ctx context.Context) (ChunkResult, error)

	// Abort releases remote resources held by an unfinished session.
	Abort(ctx context.Context) error
}

// ChunkResult is the outcome of a successful chunk transfer.
type ChunkResult struct {
	BytesSent  int64
	TotalBytes int64
	Done       bool
}

// Fraction reports completion in [0, 1].
func (r ChunkResult) Fraction() float64 {
	if r.TotalBytes <= 0 {
		if r.Done {
			return 1
		}
		return 0
	}
	f := float64(r.BytesSent) / float64(r.TotalBytes)
	if f > 1 {
		return 1
	}
	if f < 0 {
		return 0
	}
	return f
}

// TransferError is returned by sessions when a transfer call fails. Code is the
// HTTP status reported by the remote, or 0 when the request never got a response.
type TransferError struct {
	Code    int
	Message string
	Err     error
}

func NewTransferError(code int, message string, err error) *TransferError {
	return &TransferError{Code: code, Message: message, Err: err}
}

func (e *TransferError) Error() string {
	switch {
	case e.Code != 0 && e.Err != nil:
		return fmt.Sprintf("transfer error %d: %s: %v", e.Code, e.Message, e.Err)
	case e.Code != 0:
		return fmt.Sprintf("transfer error %d: %s", e.Code, e.Message)
	case e.Err != nil:
		return fmt.Sprintf("transfer error: %s: %v", e.Message, e.Err)
	default:
		return "transfer error: " + e.Message
	}
}

func (e *TransferError) Unwrap() error {
	return e.Err
}
