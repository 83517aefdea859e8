package server

import (
	"context"
	"fmt"

	"github.com/openmined/stageup/internal/destination"
	"github.com/openmined/stageup/internal/uploader"
)

type DestinationResolver interface {
	uploader.Resolver
	Names() []string
}

type Services struct {
	Destinations DestinationResolver
	Registry     *uploader.Registry
	Uploader     *uploader.Coordinator
}

func NewServices(config *Config) (*Services, error) {
	resolver, err := destination.NewConfigResolver(config.Destinations, config.Engine.ChunkTimeout)
	if err != nil {
		return nil, fmt.Errorf("destinations: %w", err)
	}
	return newServices(config, resolver), nil
}

func newServices(config *Config, resolver DestinationResolver) *Services {
	registry := uploader.NewRegistry(config.Engine.BatchHistory, config.Engine.BatchRetention)
	return &Services{
		Destinations: resolver,
		Registry:     registry,
		Uploader:     uploader.NewCoordinator(resolver, registry, config.Engine.SessionConfig()),
	}
}

// Shutdown stops batch intake and waits for running batches until ctx ends.
func (s *Services) Shutdown(ctx context.Context) error {
	if err := s.Uploader.Shutdown(ctx); err != nil {
		return fmt.Errorf("stop uploader: %w", err)
	}
	return nil
}
