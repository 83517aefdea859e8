package uploader

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/openmined/stageup/internal/destination"
)

const (
	statusUploading = "Uploading (%d/%d): %s"
	statusCompleted = "Upload completed"
	statusError     = "Error: %s: %s"
)

// Resolver maps a destination name to a remote client created for one batch.
type Resolver interface {
	Resolve(ctx context.Context, name string) (*destination.RemoteDestination, error)
	Has(name string) bool
}

// Coordinator runs accepted batches in the background, one goroutine per
// batch, files of a batch in order. The first failing file ends its batch.
type Coordinator struct {
	resolver Resolver
	registry *Registry
	session  SessionConfig
	logger   *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	group  errgroup.Group

	mu     sync.RWMutex
	closed bool

	wait   func(ctx context.Context, d time.Duration) error
	remove func(path string) error
}

func NewCoordinator(resolver Resolver, registry *Registry, cfg SessionConfig) *Coordinator {
	if registry == nil {
		registry = NewRegistry(defaultBatchHistory, 0)
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Coordinator{
		resolver: resolver,
		registry: registry,
		session:  cfg,
		logger:   slog.Default().With("component", "uploader"),
		ctx:      ctx,
		cancel:   cancel,
		wait:     sleepContext,
		remove:   os.Remove,
	}
}

func (c *Coordinator) Registry() *Registry {
	return c.registry
}

// Submit accepts a batch of staged files and returns once its worker is
// started. A rejected batch has its staged files removed.
func (c *Coordinator) Submit(dest string, files []FileRef, obs Observer) (*UploadBatch, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.closed {
		c.removeStaged(c.logger, files)
		return nil, ErrShuttingDown
	}
	if !c.resolver.Has(dest) {
		c.removeStaged(c.logger, files)
		return nil, fmt.Errorf("%w: %s", destination.ErrUnknownDestination, dest)
	}
	if len(files) == 0 {
		return nil, ErrEmptyBatch
	}

	batch := &UploadBatch{
		ID:          uuid.NewString(),
		Destination: dest,
		Files:       append([]FileRef(nil), files...),
		CreatedAt:   time.Now(),
	}
	c.registry.Add(batch)

	c.group.Go(func() error {
		c.run(c.ctx, batch, obs)
		return nil
	})

	c.logger.Info("batch accepted", "batch", batch.ID, "destination", dest, "files", len(batch.Files))
	return batch, nil
}

// Shutdown stops intake and waits for running batches. When ctx ends first
// the remaining batches are cancelled.
func (c *Coordinator) Shutdown(ctx context.Context) error {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()

	done := make(chan struct{})
	go func() {
		_ = c.group.Wait()
		close(done)
	}()

	select {
	case <-done:
		c.cancel()
		return nil
	case <-ctx.Done():
		c.cancel()
		<-done
		return ctx.Err()
	}
}

func (c *Coordinator) run(ctx context.Context, batch *UploadBatch, obs Observer) {
	logger := c.logger.With("batch", batch.ID, "destination", batch.Destination)

	var cleanupOnce sync.Once
	defer cleanupOnce.Do(func() { c.removeStaged(logger, batch.Files) })

	defer func() {
		if r := recover(); r != nil {
			logger.Error("batch worker panic", "panic", r)
			c.registry.SetError(batch.ID, fmt.Sprintf("Error: panic: %v", r))
		}
	}()

	status := func(message string, terminal, failed bool) {
		c.registry.SetMessage(batch.ID, message)
		notify(logger, obs.OnStatus, StatusEvent{
			BatchID:  batch.ID,
			Message:  message,
			Terminal: terminal,
			Failed:   failed,
		})
	}
	progress := func(percent int) {
		c.registry.SetProgress(batch.ID, percent)
		notify(logger, obs.OnProgress, ProgressEvent{BatchID: batch.ID, Percent: percent})
	}
	fail := func(err error) {
		class, msg := errorClass(err)
		message := fmt.Sprintf(statusError, class, msg)
		logger.Error("batch failed", "error", err)
		c.registry.SetError(batch.ID, message)
		status(message, true, true)
	}

	dest, err := c.resolver.Resolve(ctx, batch.Destination)
	if err != nil {
		fail(&DestinationError{Destination: batch.Destination, Err: err})
		return
	}

	session := NewSession(dest.Client, c.session, logger)
	session.wait = c.wait

	total := len(batch.Files)
	for i, file := range batch.Files {
		name := file.name()
		c.registry.SetUploading(batch.ID, i+1, name)
		status(fmt.Sprintf(statusUploading, i+1, total, name), false, false)
		progress(0)

		if err := session.Run(ctx, file, dest.FolderID, progress); err != nil {
			fail(err)
			return
		}
	}

	progress(100)
	c.registry.SetCompleted(batch.ID, statusCompleted)
	status(statusCompleted, true, false)
	logger.Info("batch completed", "files", total)
}

// removeStaged deletes staged files. Failures are logged and ignored.
func (c *Coordinator) removeStaged(logger *slog.Logger, files []FileRef) {
	for _, f := range files {
		if err := c.remove(f.LocalPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
			logger.Warn("remove staged file", "error", &LocalIOError{Op: "remove", Path: f.LocalPath, Err: err})
		}
	}
}

// notify calls an observer callback, containing its panics.
func notify[E any](logger *slog.Logger, fn func(E), event E) {
	if fn == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			logger.Error("observer panic", "panic", r)
		}
	}()
	fn(event)
}
