package uploader

import (
	"context"
	"math"
	"time"
)

const (
	DefaultBaseDelay  = 1200 * time.Millisecond
	DefaultMaxRetries = 7

	// per-attempt spread on top of the doubling, cycling every three attempts
	jitterStep = 0.12
)

// Backoff computes the wait before retry number attempt (0-based):
// Base * 2^attempt * (1 + 0.12*(attempt mod 3)).
type Backoff struct {
	Base time.Duration
}

func (b Backoff) DelayFor(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	base := b.Base
	if base <= 0 {
		base = DefaultBaseDelay
	}

	d := float64(base) * math.Pow(2, float64(attempt)) * (1 + jitterStep*float64(attempt%3))
	if d >= math.MaxInt64 {
		return time.Duration(math.MaxInt64)
	}
	return time.Duration(d)
}

// sleepContext waits for d or until ctx is done.
func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
