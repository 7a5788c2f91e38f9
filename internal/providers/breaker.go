// internal/providers/breaker.go
package providers

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/javajoker/storefront-analytics/internal/config"
	"github.com/javajoker/storefront-analytics/internal/metrics"
)

// BreakerSettings tunes the per-provider circuit breakers.
type BreakerSettings struct {
	MinRequests  uint32
	FailureRatio float64
	Interval     time.Duration
	Timeout      time.Duration
}

func DefaultBreakerSettings() BreakerSettings {
	return BreakerSettings{
		MinRequests:  5,
		FailureRatio: 0.6,
		Interval:     time.Minute,
		Timeout:      2 * time.Minute,
	}
}

// BreakerClient wraps a Fetcher with one circuit breaker per provider so a
// provider that keeps failing is skipped quickly until it recovers.
type BreakerClient struct {
	next     Fetcher
	settings BreakerSettings
	log      logrus.FieldLogger

	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker[any]
}

func NewBreakerClient(next Fetcher, settings BreakerSettings, log logrus.FieldLogger) *BreakerClient {
	return &BreakerClient{
		next:     next,
		settings: settings,
		log:      log.WithField("operation", "provider-breaker"),
		breakers: make(map[string]*gobreaker.CircuitBreaker[any]),
	}
}

func (b *BreakerClient) FetchProducts(ctx context.Context, provider config.ProviderConfig) (*FetchResult[ProductPayload], error) {
	return execute(b, provider.Name, ResourceProducts, func() (*FetchResult[ProductPayload], error) {
		return b.next.FetchProducts(ctx, provider)
	})
}

func (b *BreakerClient) FetchOrders(ctx context.Context, provider config.ProviderConfig) (*FetchResult[OrderPayload], error) {
	return execute(b, provider.Name, ResourceOrders, func() (*FetchResult[OrderPayload], error) {
		return b.next.FetchOrders(ctx, provider)
	})
}

// State returns the breaker state for provider as a string.
func (b *BreakerClient) State(provider string) string {
	return stateToString(b.breaker(provider).State())
}

func execute[T any](b *BreakerClient, provider, resource string, fn func() (*FetchResult[T], error)) (*FetchResult[T], error) {
	result, err := b.breaker(provider).Execute(func() (any, error) {
		return fn()
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			b.log.WithField("provider", provider).Warn("Circuit open, request rejected")
			return nil, &FetchError{Provider: provider, Resource: resource, Err: err}
		}
		return nil, err
	}
	typed, ok := result.(*FetchResult[T])
	if !ok {
		return nil, fmt.Errorf("circuit breaker: unexpected result type %T", result)
	}
	return typed, nil
}

func (b *BreakerClient) breaker(provider string) *gobreaker.CircuitBreaker[any] {
	b.mu.Lock()
	defer b.mu.Unlock()

	if cb, ok := b.breakers[provider]; ok {
		return cb
	}

	name := "provider-" + provider
	metrics.CircuitBreakerState.WithLabelValues(name).Set(0)

	settings := b.settings
	cb := gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Interval:    settings.Interval,
		Timeout:     settings.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < settings.MinRequests {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= settings.FailureRatio
		},
		// Client errors and local throttling say nothing about provider health.
		IsSuccessful: func(err error) bool {
			if err == nil {
				return true
			}
			var rle *RateLimitError
			if errors.As(err, &rle) {
				return true
			}
			var fe *FetchError
			if errors.As(err, &fe) && fe.StatusCode >= 400 && fe.StatusCode < 500 && fe.StatusCode != 429 {
				return true
			}
			return errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			b.log.WithFields(logrus.Fields{
				"breaker": name,
				"from":    stateToString(from),
				"to":      stateToString(to),
			}).Info("Circuit breaker state transition")
			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateToFloat(to))
			metrics.CircuitBreakerTransitions.WithLabelValues(name, stateToString(from), stateToString(to)).Inc()
		},
	})
	b.breakers[provider] = cb
	return cb
}

func stateToFloat(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}

func stateToString(state gobreaker.State) string {
	switch state {
	case gobreaker.StateClosed:
		return "closed"
	case gobreaker.StateHalfOpen:
		return "half-open"
	case gobreaker.StateOpen:
		return "open"
	default:
		return "unknown"
	}
}
