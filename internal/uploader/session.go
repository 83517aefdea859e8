package uploader

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/openmined/stageup/internal/remote"
	"github.com/openmined/stageup/internal/utils"
)

const abortTimeout = 10 * time.Second

type SessionConfig struct {
	ChunkSize  int64
	MaxRetries int
	Backoff    Backoff
}

func DefaultSessionConfig() SessionConfig {
	return SessionConfig{
		ChunkSize:  remote.DefaultChunkSize,
		MaxRetries: DefaultMaxRetries,
		Backoff:    Backoff{Base: DefaultBaseDelay},
	}
}

// ChunkTransferState tracks the transfer of one file. BytesSent only moves
// forward and never passes TotalBytes.
type ChunkTransferState struct {
	TotalBytes uint64
	BytesSent  uint64
	ChunkSize  uint32
	Attempt    uint32
	Session    remote.Session
	Done       bool
}

func (s *ChunkTransferState) advance(res remote.ChunkResult) {
	if res.BytesSent > 0 {
		sent := min(uint64(res.BytesSent), s.TotalBytes)
		if sent > s.BytesSent {
			s.BytesSent = sent
		}
	}
	if res.Done {
		s.BytesSent = s.TotalBytes
		s.Done = true
	}
}

// Percent is the floor of the completed share, in [0, 100].
func (s *ChunkTransferState) Percent() int {
	if s.TotalBytes == 0 {
		if s.Done {
			return 100
		}
		return 0
	}
	return int(s.BytesSent * 100 / s.TotalBytes)
}

// Session uploads single files chunk by chunk, retrying transient failures of
// a chunk with exponential backoff.
type Session struct {
	client remote.Client
	cfg    SessionConfig
	logger *slog.Logger
	wait   func(ctx context.Context, d time.Duration) error
}

func NewSession(client remote.Client, cfg SessionConfig, logger *slog.Logger) *Session {
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = remote.DefaultChunkSize
	}
	cfg.ChunkSize = min(cfg.ChunkSize, remote.MaxChunkSize)
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Session{
		client: client,
		cfg:    cfg,
		logger: logger,
		wait:   sleepContext,
	}
}

// Run uploads file into folderID. onProgress receives non-decreasing
// percentages and always 100 last on success.
func (s *Session) Run(ctx context.Context, file FileRef, folderID string, onProgress func(int)) error {
	name := file.name()

	f, err := os.Open(file.LocalPath)
	if err != nil {
		return &LocalIOError{Op: "open", Path: file.LocalPath, Err: err}
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return &LocalIOError{Op: "stat", Path: file.LocalPath, Err: err}
	}

	meta := remote.Metadata{
		Name:        name,
		Size:        info.Size(),
		ContentType: utils.DetectContentType(name),
	}
	if folderID != "" {
		meta.Parents = []string{folderID}
	}

	rs, err := s.client.Begin(ctx, meta, f, s.cfg.ChunkSize)
	if err != nil {
		return &FatalTransferError{File: name, Attempts: 1, Err: err}
	}

	state := &ChunkTransferState{
		TotalBytes: uint64(info.Size()),
		ChunkSize:  uint32(s.cfg.ChunkSize),
		Session:    rs,
	}

	lastPercent := -1
	report := func(p int) {
		if p <= lastPercent {
			return
		}
		lastPercent = p
		if onProgress != nil {
			onProgress(p)
		}
	}

	s.logger.Debug("file upload start", "file", name, "size", humanize.Bytes(state.TotalBytes))
	started := time.Now()

	for !state.Done {
		res, err := rs.NextChunk(ctx)
		if err == nil {
			state.Attempt = 0
			state.advance(res)
			report(state.Percent())
			continue
		}

		if ctx.Err() != nil {
			return s.fail(ctx, state, name, ctx.Err(), false)
		}

		transient := IsTransient(err)
		if !transient || int(state.Attempt) >= s.cfg.MaxRetries {
			return s.fail(ctx, state, name, err, transient)
		}

		delay := s.cfg.Backoff.DelayFor(int(state.Attempt))
		s.logger.Warn("chunk transfer retry",
			"file", name,
			"attempt", state.Attempt+1,
			"sent", humanize.Bytes(state.BytesSent),
			"delay", delay,
			"error", err,
		)
		if err := s.wait(ctx, delay); err != nil {
			return s.fail(ctx, state, name, err, false)
		}
		state.Attempt++
	}

	report(100)
	s.logger.Info("file uploaded",
		"file", name,
		"size", humanize.Bytes(state.TotalBytes),
		"took", time.Since(started).Round(time.Millisecond),
	)
	return nil
}

// fail aborts the remote session best-effort and wraps the cause.
func (s *Session) fail(ctx context.Context, state *ChunkTransferState, name string, err error, exhausted bool) error {
	abortCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), abortTimeout)
	defer cancel()
	if abortErr := state.Session.Abort(abortCtx); abortErr != nil {
		s.logger.Warn("abort remote session", "file", name, "error", abortErr)
	}

	return &FatalTransferError{
		File:      name,
		Attempts:  int(state.Attempt) + 1,
		Exhausted: exhausted,
		Err:       err,
	}
}
