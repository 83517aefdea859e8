package server

import (
	"errors"
	"fmt"
	"time"

	"github.com/ulule/limiter/v3"

	"github.com/openmined/stageup/internal/destination"
	"github.com/openmined/stageup/internal/remote"
	"github.com/openmined/stageup/internal/uploader"
	"github.com/openmined/stageup/internal/utils"
)

const (
	DefaultAddr             = "0.0.0.0:5000"
	DefaultMaxContentLength = int64(1 << 30) // 1 GiB
	DefaultUploadRate       = "60-M"
	DefaultUploadDir        = "temp_uploads"
	DefaultWellKnownDir     = ".well-known"
	DefaultChunkTimeout     = 60 * time.Second
	DefaultBatchRetention   = time.Hour
	DefaultBatchHistory     = 256
)

type Config struct {
	HTTP         HTTPConfig                     `mapstructure:"http" yaml:"http"`
	UploadDir    string                         `mapstructure:"upload_dir" yaml:"upload_dir"`
	WellKnownDir string                         `mapstructure:"well_known_dir" yaml:"well_known_dir"`
	LogDir       string                         `mapstructure:"log_dir" yaml:"log_dir"`
	LogLevel     string                         `mapstructure:"log_level" yaml:"log_level"`
	Engine       EngineConfig                   `mapstructure:"engine" yaml:"engine"`
	Destinations map[string]*destination.Config `mapstructure:"destinations" yaml:"destinations"`
}

type HTTPConfig struct {
	Addr             string `mapstructure:"addr" yaml:"addr"`
	CertFile         string `mapstructure:"cert_file" yaml:"cert_file"`
	KeyFile          string `mapstructure:"key_file" yaml:"key_file"`
	MaxContentLength int64  `mapstructure:"max_content_length" yaml:"max_content_length"`
	UploadRate       string `mapstructure:"upload_rate" yaml:"upload_rate"`
}

func (c *HTTPConfig) TLS() bool {
	return c.CertFile != "" && c.KeyFile != ""
}

type EngineConfig struct {
	ChunkSize      int64         `mapstructure:"chunk_size" yaml:"chunk_size"`
	MaxRetries     int           `mapstructure:"max_retries" yaml:"max_retries"`
	BaseDelay      time.Duration `mapstructure:"base_delay" yaml:"base_delay"`
	ChunkTimeout   time.Duration `mapstructure:"chunk_timeout" yaml:"chunk_timeout"`
	BatchRetention time.Duration `mapstructure:"batch_retention" yaml:"batch_retention"`
	BatchHistory   int           `mapstructure:"batch_history" yaml:"batch_history"`
}

func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		ChunkSize:      remote.DefaultChunkSize,
		MaxRetries:     uploader.DefaultMaxRetries,
		BaseDelay:      uploader.DefaultBaseDelay,
		ChunkTimeout:   DefaultChunkTimeout,
		BatchRetention: DefaultBatchRetention,
		BatchHistory:   DefaultBatchHistory,
	}
}

func (c *EngineConfig) SessionConfig() uploader.SessionConfig {
	return uploader.SessionConfig{
		ChunkSize:  c.ChunkSize,
		MaxRetries: c.MaxRetries,
		Backoff:    uploader.Backoff{Base: c.BaseDelay},
	}
}

func (c *EngineConfig) Validate() error {
	if c.ChunkSize <= 0 {
		return fmt.Errorf("`engine.chunk_size` must be positive, got %d", c.ChunkSize)
	}
	if c.ChunkSize%remote.DefaultChunkSize != 0 {
		return fmt.Errorf("`engine.chunk_size` must be a multiple of %d, got %d", remote.DefaultChunkSize, c.ChunkSize)
	}
	if c.ChunkSize > remote.MaxChunkSize {
		return fmt.Errorf("`engine.chunk_size` must be at most %d, got %d", remote.MaxChunkSize, c.ChunkSize)
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("`engine.max_retries` must not be negative, got %d", c.MaxRetries)
	}
	if c.BaseDelay <= 0 {
		return fmt.Errorf("`engine.base_delay` must be positive, got %s", c.BaseDelay)
	}
	if c.ChunkTimeout <= 0 {
		return fmt.Errorf("`engine.chunk_timeout` must be positive, got %s", c.ChunkTimeout)
	}
	if c.BatchHistory <= 0 {
		return fmt.Errorf("`engine.batch_history` must be positive, got %d", c.BatchHistory)
	}
	if c.BatchRetention < 0 {
		return fmt.Errorf("`engine.batch_retention` must not be negative, got %s", c.BatchRetention)
	}
	return nil
}

// Validate checks the configuration and makes its paths absolute.
func (c *Config) Validate() error {
	if c.HTTP.Addr == "" {
		return errors.New("`http.addr` required")
	}
	if (c.HTTP.CertFile == "") != (c.HTTP.KeyFile == "") {
		return errors.New("`http.cert_file` and `http.key_file` must be set together")
	}
	if c.HTTP.MaxContentLength <= 0 {
		return fmt.Errorf("`http.max_content_length` must be positive, got %d", c.HTTP.MaxContentLength)
	}
	if _, err := limiter.NewRateFromFormatted(c.HTTP.UploadRate); err != nil {
		return fmt.Errorf("`http.upload_rate`: %w", err)
	}

	var err error
	if c.UploadDir, err = utils.ResolvePath(c.UploadDir); err != nil {
		return fmt.Errorf("`upload_dir`: %w", err)
	}
	if c.WellKnownDir != "" {
		if c.WellKnownDir, err = utils.ResolvePath(c.WellKnownDir); err != nil {
			return fmt.Errorf("`well_known_dir`: %w", err)
		}
	}
	if c.LogDir != "" {
		if c.LogDir, err = utils.ResolvePath(c.LogDir); err != nil {
			return fmt.Errorf("`log_dir`: %w", err)
		}
	}

	if err := c.Engine.Validate(); err != nil {
		return err
	}

	if len(c.Destinations) == 0 {
		return destination.ErrNoDestinations
	}
	for name, dest := range c.Destinations {
		if dest == nil {
			return fmt.Errorf("destination %q: empty entry", name)
		}
		if err := dest.Validate(); err != nil {
			return fmt.Errorf("destination %q: %w", name, err)
		}
	}
	return nil
}
