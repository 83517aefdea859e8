package destination

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/goccy/go-json"
	"github.com/gofrs/flock"
)

var ErrCredentialsExpired = errors.New("credentials expired")

// expiry formats written by token tools
var expiryLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999",
}

// Credentials is the content of a credential file. Bearer tokens are read
// from either the authorized-user ("token") or the OAuth2 ("access_token")
// layout. S3 destinations use the access key fields.
type Credentials struct {
	Token        string `json:"token,omitempty"`
	AccessToken  string `json:"access_token,omitempty"`
	RefreshToken string `json:"refresh_token,omitempty"`
	Expiry       string `json:"expiry,omitempty"`

	AccessKeyID     string `json:"access_key_id,omitempty"`
	SecretAccessKey string `json:"secret_access_key,omitempty"`
	SessionToken    string `json:"session_token,omitempty"`
}

// LoadCredentials reads a credential file under a shared lock on <path>.lock,
// so a token tool holding the exclusive lock is never observed mid-write.
func LoadCredentials(path string) (*Credentials, error) {
	lock := flock.New(path + ".lock")
	if err := lock.RLock(); err != nil {
		return nil, fmt.Errorf("lock credentials: %w", err)
	}
	defer lock.Unlock()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read credentials: %w", err)
	}

	var creds Credentials
	if err := json.Unmarshal(data, &creds); err != nil {
		return nil, fmt.Errorf("parse credentials %s: %w", path, err)
	}
	return &creds, nil
}

// BearerToken returns the access token if it has not expired at now.
func (c *Credentials) BearerToken(now time.Time) (string, error) {
	token := c.AccessToken
	if token == "" {
		token = c.Token
	}
	if token == "" {
		return "", errors.New("credentials carry no access token")
	}

	if c.Expiry != "" {
		expiry, err := parseExpiry(c.Expiry)
		if err != nil {
			return "", err
		}
		if !now.Before(expiry) {
			return "", fmt.Errorf("%w at %s", ErrCredentialsExpired, expiry.Format(time.RFC3339))
		}
	}
	return token, nil
}

func parseExpiry(s string) (time.Time, error) {
	for _, layout := range expiryLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid credentials expiry %q", s)
}
