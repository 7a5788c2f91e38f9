// internal/syncer/retry.go
package syncer

import (
	"github.com/cenkalti/backoff/v5"

	"github.com/javajoker/storefront-analytics/internal/config"
	"github.com/javajoker/storefront-analytics/internal/providers"
)

// NewBackOff returns the delay schedule between provider attempts:
// RetryMinDelay doubling per retry, capped at RetryMaxDelay, no jitter.
func NewBackOff(cfg config.SyncConfig) *backoff.ExponentialBackOff {
	b := &backoff.ExponentialBackOff{
		InitialInterval:     cfg.RetryMinDelay,
		RandomizationFactor: 0,
		Multiplier:          2,
		MaxInterval:         cfg.RetryMaxDelay,
	}
	b.Reset()
	return b
}

// retryError maps a failed attempt onto backoff's retry decisions. A limiter
// rejection waits out its window instead of the exponential delay.
func retryError(err error) error {
	if !providers.IsRetryable(err) {
		return backoff.Permanent(err)
	}
	if wait := providers.RetryAfter(err); wait > 0 {
		return &backoff.RetryAfterError{Duration: wait}
	}
	return err
}
