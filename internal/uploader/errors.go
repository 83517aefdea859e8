package uploader

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	ErrEmptyBatch    = errors.New("no files to upload")
	ErrShuttingDown  = errors.New("coordinator is shutting down")
	ErrBatchNotFound = errors.New("batch not found")
)

// FatalTransferError ends the upload of a file, and with it the batch.
type FatalTransferError struct {
	File      string
	Attempts  int
	Exhausted bool // retry budget spent on a transient error
	Err       error
}

func (e *FatalTransferError) Error() string {
	if e.Exhausted {
		return fmt.Sprintf("upload %q failed after %d attempts: %v", e.File, e.Attempts, e.Err)
	}
	return fmt.Sprintf("upload %q failed: %v", e.File, e.Err)
}

func (e *FatalTransferError) Unwrap() error {
	return e.Err
}

// LocalIOError is a failure of the local filesystem. It is never retried.
type LocalIOError struct {
	Op   string
	Path string
	Err  error
}

func (e *LocalIOError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *LocalIOError) Unwrap() error {
	return e.Err
}

// DestinationError is a failure to resolve the destination of a batch.
type DestinationError struct {
	Destination string
	Err         error
}

func (e *DestinationError) Error() string {
	return e.Err.Error()
}

func (e *DestinationError) Unwrap() error {
	return e.Err
}

// errorClass names the outermost meaningful error type for status messages,
// e.g. "Error: TransferError: transfer error 403: forbidden".
func errorClass(err error) (string, string) {
	var fatal *FatalTransferError
	if errors.As(err, &fatal) && fatal.Err != nil {
		err = fatal.Err
	}

	var localErr *LocalIOError
	var destErr *DestinationError
	switch {
	case errors.As(err, &localErr):
		return "LocalIOError", localErr.Error()
	case errors.As(err, &destErr):
		return "DestinationError", destErr.Error()
	case errors.Is(err, context.Canceled):
		return "Canceled", err.Error()
	}

	name := fmt.Sprintf("%T", err)
	if i := strings.LastIndexByte(name, '.'); i >= 0 {
		name = name[i+1:]
	}
	switch name {
	case "errorString", "wrapError", "wrapErrors":
		name = "Error"
	}
	return name, err.Error()
}
