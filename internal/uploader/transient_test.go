package uploader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/openmined/stageup/internal/remote"
)

type deadlineError struct{}

func (deadlineError) Error() string   { return "i/o deadline reached" }
func (deadlineError) Timeout() bool   { return true }
func (deadlineError) Temporary() bool { return true }

var _ net.Error = deadlineError{}

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "nil", err: nil, want: false},

		{name: "eof occurred", err: errors.New("EOF occurred in violation of protocol"), want: true},
		{name: "connection reset", err: errors.New("Connection reset by peer"), want: true},
		{name: "broken pipe", err: errors.New("write: Broken pipe"), want: true},
		{name: "timed out", err: errors.New("The read operation timed out"), want: true},
		{name: "timeout", err: errors.New("request Timeout"), want: true},
		{name: "ssl", err: errors.New("SSL: DECRYPTION_FAILED_OR_BAD_RECORD_MAC"), want: true},
		{name: "tls", err: errors.New("remote error: tls: bad record MAC"), want: true},
		{name: "transport closed", err: errors.New("transport closed"), want: true},
		{name: "503 text", err: errors.New("<HttpError 503 when requesting>"), want: true},
		{name: "500 text", err: errors.New("got status 500"), want: true},
		{name: "429 text", err: errors.New("429 rate limit exceeded"), want: true},

		{name: "transfer 503", err: remote.NewTransferError(http.StatusServiceUnavailable, "unavailable", nil), want: true},
		{name: "transfer 500", err: remote.NewTransferError(http.StatusInternalServerError, "backend error", nil), want: true},
		{name: "transfer 429", err: remote.NewTransferError(http.StatusTooManyRequests, "slow down", nil), want: true},
		{name: "transfer 403", err: remote.NewTransferError(http.StatusForbidden, "forbidden", nil), want: false},
		{name: "transfer 404", err: remote.NewTransferError(http.StatusNotFound, "not found", nil), want: false},
		{name: "wrapped transfer 429", err: fmt.Errorf("chunk: %w", remote.NewTransferError(http.StatusTooManyRequests, "x", nil)), want: true},

		{name: "net timeout", err: deadlineError{}, want: true},
		{name: "econnreset", err: &net.OpError{Op: "read", Net: "tcp", Err: syscall.ECONNRESET}, want: true},
		{name: "epipe", err: fmt.Errorf("write body: %w", syscall.EPIPE), want: true},
		{name: "unexpected eof", err: fmt.Errorf("read: %w", io.ErrUnexpectedEOF), want: true},

		{name: "local io", err: &LocalIOError{Op: "read", Path: "/tmp/x", Err: errors.New("timeout")}, want: false},
		{name: "source read", err: &remote.SourceError{Offset: 10, Err: errors.New("connection reset")}, want: false},
		{name: "canceled", err: context.Canceled, want: false},
		{name: "wrapped canceled", err: fmt.Errorf("upload: %w", context.Canceled), want: false},
		{name: "permission", err: errors.New("permission denied"), want: false},
		{name: "invalid grant", err: errors.New("invalid_grant: token has been revoked"), want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsTransient(tt.err))
		})
	}
}
