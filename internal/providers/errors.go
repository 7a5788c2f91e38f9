// internal/providers/errors.go
package providers

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"
)

// ErrMalformedPayload means the body was not a JSON array.
var ErrMalformedPayload = errors.New("malformed provider payload")

// ErrPayloadTooLarge means the body exceeded the client's size cap.
var ErrPayloadTooLarge = errors.New("provider payload too large")

// RateLimitError is returned when the local window for a provider is used up.
type RateLimitError struct {
	Provider string
	Wait     time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limit exceeded for %s, wait %d seconds", e.Provider, int(math.Ceil(e.Wait.Seconds())))
}

// FetchError describes a failed request against a provider endpoint.
// StatusCode is zero when no response was received.
type FetchError struct {
	Provider   string
	Resource   string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("failed to fetch %s from %s: %d %s", e.Resource, e.Provider, e.StatusCode, http.StatusText(e.StatusCode))
	}
	return fmt.Sprintf("%s fetch failed for %s: %v", e.Resource, e.Provider, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// Retryable reports whether trying again later could succeed.
func (e *FetchError) Retryable() bool {
	if e.StatusCode != 0 {
		return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
	}
	switch {
	case e.Err == nil,
		errors.Is(e.Err, ErrMalformedPayload),
		errors.Is(e.Err, ErrPayloadTooLarge),
		errors.Is(e.Err, gobreaker.ErrOpenState),
		errors.Is(e.Err, context.Canceled):
		return false
	}
	return true
}

// IsRetryable classifies errors coming out of a provider fetch.
func IsRetryable(err error) bool {
	var rle *RateLimitError
	if errors.As(err, &rle) {
		return true
	}
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe.Retryable()
	}
	return false
}

// RetryAfter returns the minimum wait a rate-limit error asks for, or zero.
func RetryAfter(err error) time.Duration {
	var rle *RateLimitError
	if errors.As(err, &rle) {
		return rle.Wait
	}
	return 0
}
