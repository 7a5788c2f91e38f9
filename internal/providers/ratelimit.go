// internal/providers/ratelimit.go
package providers

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/javajoker/storefront-analytics/internal/metrics"
)

type rateWindow struct {
	count   int
	resetAt time.Time
}

// RateLimiter enforces a fixed request window per provider. A window opens
// on the first request and admits maxRequests until it expires.
type RateLimiter struct {
	mu      sync.Mutex
	windows map[string]*rateWindow
	now     func() time.Time
	log     logrus.FieldLogger
}

type RateLimitStatus struct {
	Provider  string     `json:"provider"`
	Used      int        `json:"used"`
	Remaining int        `json:"remaining"`
	ResetAt   *time.Time `json:"reset_at,omitempty"`
}

func NewRateLimiter(log logrus.FieldLogger) *RateLimiter {
	return NewRateLimiterWithClock(log, time.Now)
}

func NewRateLimiterWithClock(log logrus.FieldLogger, now func() time.Time) *RateLimiter {
	return &RateLimiter{
		windows: make(map[string]*rateWindow),
		now:     now,
		log:     log.WithField("operation", "provider-rate-limit"),
	}
}

// CheckLimit records one request for provider or returns *RateLimitError.
// Rejected calls do not consume the window.
func (l *RateLimiter) CheckLimit(provider string, maxRequests int, window time.Duration) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	w, ok := l.windows[provider]
	if !ok || now.After(w.resetAt) {
		l.windows[provider] = &rateWindow{count: 1, resetAt: now.Add(window)}
		l.log.WithFields(logrus.Fields{
			"provider": provider,
			"limit":    maxRequests,
			"reset_at": now.Add(window),
		}).Debug("Provider rate limit window opened")
		return nil
	}

	if w.count >= maxRequests {
		wait := w.resetAt.Sub(now).Truncate(time.Second)
		if wait < w.resetAt.Sub(now) {
			wait += time.Second
		}
		metrics.ProviderRateLimitRejections.WithLabelValues(provider).Inc()
		l.log.WithFields(logrus.Fields{
			"provider": provider,
			"count":    w.count,
			"limit":    maxRequests,
			"wait":     wait,
		}).Warn("Provider rate limit exceeded")
		return &RateLimitError{Provider: provider, Wait: wait}
	}

	w.count++
	return nil
}

func (l *RateLimiter) Status(provider string, maxRequests int) RateLimitStatus {
	l.mu.Lock()
	defer l.mu.Unlock()

	status := RateLimitStatus{Provider: provider, Remaining: maxRequests}
	w, ok := l.windows[provider]
	if !ok || l.now().After(w.resetAt) {
		return status
	}
	resetAt := w.resetAt
	status.Used = w.count
	status.Remaining = max(0, maxRequests-w.count)
	status.ResetAt = &resetAt
	return status
}

func (l *RateLimiter) Reset(provider string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.windows, provider)
}
