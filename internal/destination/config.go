package destination

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/openmined/stageup/internal/utils"
)

type Kind string

const (
	KindDrive Kind = "drive"
	KindS3    Kind = "s3"
)

const defaultS3Region = "us-east-1"

// Config is one entry of the `destinations` configuration map.
type Config struct {
	Kind        Kind   `mapstructure:"kind" json:"kind" yaml:"kind"`
	Credentials string `mapstructure:"credentials" json:"credentials" yaml:"credentials"`
	Folder      string `mapstructure:"folder" json:"folder" yaml:"folder"`
	Endpoint    string `mapstructure:"endpoint" json:"endpoint,omitempty" yaml:"endpoint,omitempty"`
	Bucket      string `mapstructure:"bucket" json:"bucket,omitempty" yaml:"bucket,omitempty"`
	Region      string `mapstructure:"region" json:"region,omitempty" yaml:"region,omitempty"`
}

// Validate checks the entry and fills in defaults. Kind defaults to drive.
func (c *Config) Validate() error {
	if c.Kind == "" {
		c.Kind = KindDrive
	}
	c.Kind = Kind(strings.ToLower(string(c.Kind)))

	if c.Credentials != "" {
		abs, err := utils.ResolvePath(c.Credentials)
		if err != nil {
			return fmt.Errorf("credentials path %q: %w", c.Credentials, err)
		}
		c.Credentials = abs
	}

	if c.Endpoint != "" {
		u, err := url.Parse(c.Endpoint)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("invalid endpoint URL %q", c.Endpoint)
		}
	}

	switch c.Kind {
	case KindDrive:
		if c.Credentials == "" {
			return fmt.Errorf("`credentials` required")
		}
		if c.Folder == "" {
			return fmt.Errorf("`folder` required")
		}
	case KindS3:
		if c.Bucket == "" {
			return fmt.Errorf("`bucket` required")
		}
		if c.Region == "" {
			c.Region = defaultS3Region
		}
		c.Folder = strings.Trim(c.Folder, "/")
	default:
		return fmt.Errorf("unknown kind %q", c.Kind)
	}
	return nil
}
