// Package metrics holds the prometheus collectors exported on /metrics.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Sync pipeline
	SyncRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sync_runs_total",
			Help: "Finished sync runs by scope (provider name or all) and final status",
		},
		[]string{"scope", "status"},
	)

	SyncDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sync_duration_seconds",
			Help:    "Wall time of a sync run",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300, 600},
		},
		[]string{"provider"},
	)

	SyncRecordsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sync_records_total",
			Help: "Records fetched from providers by kind (products, orders, invalid_products, invalid_orders)",
		},
		[]string{"provider", "kind"},
	)

	SyncBatchFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sync_batch_failures_total",
			Help: "Upsert batches that failed",
		},
		[]string{"provider", "kind"},
	)

	SyncReconcileOrdersTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sync_reconcile_orders_total",
			Help: "Orders processed by the item reconciler by outcome",
		},
		[]string{"provider", "outcome"},
	)

	// Provider API
	ProviderRateLimitRejections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "provider_rate_limit_rejections_total",
			Help: "Outbound provider requests refused by the local rate limiter",
		},
		[]string{"provider"},
	)

	ProviderFetchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "provider_fetch_duration_seconds",
			Help:    "Duration of provider HTTP fetches",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"provider", "resource"},
	)

	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_transitions_total",
			Help: "Circuit breaker state transitions",
		},
		[]string{"name", "from", "to"},
	)

	// HTTP API
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "HTTP requests served",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)
)

func RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	HTTPRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	HTTPRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

func RecordSyncRun(scope, status string, duration time.Duration) {
	SyncRunsTotal.WithLabelValues(scope, status).Inc()
	SyncDuration.WithLabelValues(scope).Observe(duration.Seconds())
}

func RecordFetched(provider, kind string, n int) {
	if n > 0 {
		SyncRecordsTotal.WithLabelValues(provider, kind).Add(float64(n))
	}
}

func RecordBatchFailures(provider, kind string, n int) {
	if n > 0 {
		SyncBatchFailuresTotal.WithLabelValues(provider, kind).Add(float64(n))
	}
}

func RecordReconcileOutcome(provider, outcome string) {
	SyncReconcileOrdersTotal.WithLabelValues(provider, outcome).Inc()
}

func RecordProviderFetch(provider, resource string, duration time.Duration) {
	ProviderFetchDuration.WithLabelValues(provider, resource).Observe(duration.Seconds())
}
