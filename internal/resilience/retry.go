package resilience

import (
	"context"
	"math/rand/v2"
	"time"

	"go.uber.org/zap"
)

// Store write retry defaults.
const (
	defaultAttempts = 3
	defaultBackoff  = 100 * time.Millisecond
	maxBackoff      = 5 * time.Second
)

// RetryConfig bounds how often and how patiently a store write is retried.
// Zero values fall back to the store write defaults.
type RetryConfig struct {
	// MaxAttempts counts the first try; 1 disables retrying.
	MaxAttempts int
	// InitialBackoff is the wait before the first retry. Each later wait
	// doubles, up to MaxBackoff.
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	// OnRetry runs before each wait with the 1-based retry number.
	OnRetry func(retry int, err error)
}

// DefaultRetryConfig returns the policy used for saving comparisons.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:    defaultAttempts,
		InitialBackoff: defaultBackoff,
		MaxBackoff:     maxBackoff,
	}
}

// FromRetryConfig builds a policy from the retry config section. Non-positive
// values keep their defaults.
func FromRetryConfig(maxAttempts, initialBackoffMs int) RetryConfig {
	return RetryConfig{
		MaxAttempts:    maxAttempts,
		InitialBackoff: time.Duration(initialBackoffMs) * time.Millisecond,
	}.normalized()
}

func (c RetryConfig) normalized() RetryConfig {
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = defaultAttempts
	}
	if c.InitialBackoff <= 0 {
		c.InitialBackoff = defaultBackoff
	}
	if c.MaxBackoff <= 0 {
		c.MaxBackoff = maxBackoff
	}
	if c.MaxBackoff < c.InitialBackoff {
		c.MaxBackoff = c.InitialBackoff
	}
	return c
}

// wait returns the pause before retry n (0-based): the doubled backoff,
// capped, then drawn uniformly from its upper half so concurrent writers
// spread out.
func (c RetryConfig) wait(n int) time.Duration {
	d := c.InitialBackoff
	for i := 0; i < n && d < c.MaxBackoff; i++ {
		d *= 2
	}
	d = min(d, c.MaxBackoff)
	half := d / 2
	return half + rand.N(half+1)
}

// Do calls fn until it succeeds, fails with an error IsTransient rejects,
// the attempts run out or ctx is done. The last error is returned.
func Do(ctx context.Context, cfg RetryConfig, fn func(ctx context.Context) error) error {
	cfg = cfg.normalized()

	err := fn(ctx)
	for n := 0; err != nil && n < cfg.MaxAttempts-1; n++ {
		if ctx.Err() != nil || !IsTransient(err) {
			return err
		}
		if cfg.OnRetry != nil {
			cfg.OnRetry(n+1, err)
		}

		t := time.NewTimer(cfg.wait(n))
		select {
		case <-ctx.Done():
			t.Stop()
			return err
		case <-t.C:
		}
		err = fn(ctx)
	}
	return err
}

// RetryLogger returns an OnRetry callback that logs at Warn.
func RetryLogger(component, operation string) func(int, error) {
	return func(retry int, err error) {
		zap.L().Warn("resilience: retrying",
			zap.String("component", component),
			zap.String("operation", operation),
			zap.Int("retry", retry),
			zap.Error(err),
		)
	}
}
