package destination

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/openmined/stageup/internal/remote"
	"github.com/openmined/stageup/internal/utils"
)

var (
	ErrUnknownDestination = errors.New("unknown destination")
	ErrNoDestinations     = errors.New("no destinations configured")
)

// RemoteDestination is what a batch uploads to: a folder (or key prefix) and a
// client handle that belongs to that batch alone.
type RemoteDestination struct {
	Name     string
	FolderID string
	Client   remote.Client
}

// ConfigResolver resolves destinations from static configuration. Credentials
// are read on every Resolve so that refreshed token files are picked up.
type ConfigResolver struct {
	configs      map[string]Config
	chunkTimeout time.Duration
	now          func() time.Time
}

func NewConfigResolver(configs map[string]*Config, chunkTimeout time.Duration) (*ConfigResolver, error) {
	if len(configs) == 0 {
		return nil, ErrNoDestinations
	}

	owned := make(map[string]Config, len(configs))
	for name, cfg := range configs {
		if cfg == nil {
			return nil, fmt.Errorf("destination %q: empty config", name)
		}
		c := *cfg
		if err := c.Validate(); err != nil {
			return nil, fmt.Errorf("destination %q: %w", name, err)
		}
		key := canonicalName(name)
		if _, dup := owned[key]; dup {
			return nil, fmt.Errorf("destination %q: duplicate name", name)
		}
		owned[key] = c
	}

	return &ConfigResolver{
		configs:      owned,
		chunkTimeout: chunkTimeout,
		now:          time.Now,
	}, nil
}

func (r *ConfigResolver) Has(name string) bool {
	_, ok := r.configs[canonicalName(name)]
	return ok
}

// Names returns the configured destination names in sorted order.
func (r *ConfigResolver) Names() []string {
	names := make([]string, 0, len(r.configs))
	for name := range r.configs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Resolve builds a new client for the destination. Handles are never shared
// between calls.
func (r *ConfigResolver) Resolve(ctx context.Context, name string) (*RemoteDestination, error) {
	cfg, ok := r.configs[canonicalName(name)]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownDestination, name)
	}
	name = canonicalName(name)

	var (
		client remote.Client
		err    error
	)
	switch cfg.Kind {
	case KindDrive:
		client, err = r.driveClient(&cfg)
	case KindS3:
		client, err = r.s3Client(ctx, &cfg)
	default:
		err = fmt.Errorf("unknown kind %q", cfg.Kind)
	}
	if err != nil {
		return nil, fmt.Errorf("destination %q: %w", name, err)
	}

	slog.Debug("destination resolved", "destination", name, "kind", cfg.Kind)
	return &RemoteDestination{
		Name:     name,
		FolderID: cfg.Folder,
		Client:   client,
	}, nil
}

func (r *ConfigResolver) driveClient(cfg *Config) (remote.Client, error) {
	creds, err := LoadCredentials(cfg.Credentials)
	if err != nil {
		return nil, err
	}
	token, err := creds.BearerToken(r.now())
	if err != nil {
		return nil, err
	}
	slog.Debug("drive token loaded", "credentials", cfg.Credentials, "token", utils.MaskSecret(token))
	return remote.NewResumableClient(&remote.ResumableConfig{
		BaseURL: cfg.Endpoint,
		Token:   token,
		Timeout: r.chunkTimeout,
	}), nil
}

func (r *ConfigResolver) s3Client(ctx context.Context, cfg *Config) (remote.Client, error) {
	s3cfg := &remote.S3Config{
		Bucket:   cfg.Bucket,
		Region:   cfg.Region,
		Endpoint: cfg.Endpoint,
		Timeout:  r.chunkTimeout,
	}
	// without a credential file the SDK default chain applies
	if cfg.Credentials != "" {
		creds, err := LoadCredentials(cfg.Credentials)
		if err != nil {
			return nil, err
		}
		s3cfg.AccessKey = creds.AccessKeyID
		s3cfg.SecretKey = creds.SecretAccessKey
		s3cfg.SessionToken = creds.SessionToken
		slog.Debug("s3 static credentials", "bucket", cfg.Bucket, "accessKey", utils.MaskSecret(creds.AccessKeyID))
	}
	return remote.NewS3ClientWithConfig(ctx, s3cfg)
}

// canonicalName folds case the same way viper folds config keys.
func canonicalName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
