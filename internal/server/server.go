package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/openmined/stageup/internal/utils"
	"github.com/openmined/stageup/internal/version"
)

const (
	httpShutdownTimeout = 5 * time.Second
	// running batches get this long to finish before they are cancelled
	batchShutdownTimeout = 30 * time.Second
)

type Server struct {
	config *Config
	server *http.Server
	svc    *Services
}

func New(config *Config) (*Server, error) {
	if err := utils.EnsureDir(config.UploadDir); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}

	svc, err := NewServices(config)
	if err != nil {
		return nil, err
	}
	return newServer(config, svc)
}

func newServer(config *Config, svc *Services) (*Server, error) {
	handler, err := SetupRoutes(config, svc)
	if err != nil {
		return nil, fmt.Errorf("routes: %w", err)
	}

	return &Server{
		config: config,
		svc:    svc,
		server: &http.Server{
			Addr:              config.HTTP.Addr,
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}, nil
}

// Start serves until ctx is cancelled or the listener fails, then stops.
func (s *Server) Start(ctx context.Context) error {
	slog.Info("server start", "version", version.Short(), "destinations", s.svc.Destinations.Names(), "uploadDir", s.config.UploadDir)
	defer slog.Info("server stop")

	errCh := make(chan error, 1)
	go func() {
		if err := s.runHttpServer(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	var serveErr error
	select {
	case <-ctx.Done():
		slog.Info("server shutdown signal")
	case serveErr = <-errCh:
		if serveErr != nil {
			slog.Error("http server error", "error", serveErr)
		}
	}

	stopCtx, cancel := context.WithTimeout(context.Background(), batchShutdownTimeout)
	defer cancel()
	if err := s.Stop(stopCtx); err != nil {
		slog.Error("server shutdown error", "error", err)
		return errors.Join(serveErr, err)
	}
	return serveErr
}

// Stop closes the listener first so no new batches arrive, then waits for
// the running ones.
func (s *Server) Stop(ctx context.Context) error {
	httpCtx, cancel := context.WithTimeout(ctx, httpShutdownTimeout)
	defer cancel()

	var errs []error
	if err := s.server.Shutdown(httpCtx); err != nil {
		errs = append(errs, fmt.Errorf("stop http server: %w", err))
	}
	if err := s.svc.Shutdown(ctx); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (s *Server) runHttpServer() error {
	if s.config.HTTP.TLS() {
		slog.Info("server start https", "addr", s.config.HTTP.Addr, "cert", s.config.HTTP.CertFile, "key", s.config.HTTP.KeyFile)
		return s.server.ListenAndServeTLS(s.config.HTTP.CertFile, s.config.HTTP.KeyFile)
	}
	slog.Info("server start http", "addr", s.config.HTTP.Addr)
	return s.server.ListenAndServe()
}
