package uploader

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"strings"
	"syscall"

	"github.com/openmined/stageup/internal/remote"
)

// transientSignatures are matched against the lowercased error text.
var transientSignatures = []string{
	"eof occurred",
	"connection reset",
	"broken pipe",
	"timed out",
	"timeout",
	"ssl",
	"tls",
	"reset by peer",
	"transport closed",
	"503",
	"500",
	"429",
}

// IsTransient reports whether a failed transfer call may succeed when retried.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	// local and caller-initiated failures are final
	var localErr *LocalIOError
	var sourceErr *remote.SourceError
	if errors.As(err, &localErr) || errors.As(err, &sourceErr) || errors.Is(err, context.Canceled) {
		return false
	}

	var transferErr *remote.TransferError
	if errors.As(err, &transferErr) {
		switch transferErr.Code {
		case http.StatusTooManyRequests, http.StatusInternalServerError, http.StatusServiceUnavailable:
			return true
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	if errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.EPIPE) ||
		errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, sig := range transientSignatures {
		if strings.Contains(msg, sig) {
			return true
		}
	}
	return false
}
