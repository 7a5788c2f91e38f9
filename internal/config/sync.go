// internal/config/sync.go
package config

import (
	"fmt"
	"time"
)

const (
	DefaultBatchSize                = 50
	DefaultBatchTimeout             = 30 * time.Second
	DefaultConcurrentLimit          = 3
	DefaultPauseBetweenBatches      = 100 * time.Millisecond
	DefaultProviderConcurrencyLimit = 5
	DefaultRetryAttempts            = 3
	DefaultRetryMinDelay            = time.Second
	DefaultRetryMaxDelay            = 30 * time.Second
)

type DispatchMode string

const (
	DispatchSequential DispatchMode = "sequential"
	DispatchParallel   DispatchMode = "parallel"
)

// BatchConfig bounds how many records go into one transaction and how many
// transactions are in flight at once.
type BatchConfig struct {
	BatchSize           int
	BatchTimeout        time.Duration
	ConcurrentLimit     int
	PauseBetweenBatches time.Duration
}

// Strategy names a batch configuration.
type Strategy struct {
	Name   string
	Config BatchConfig
}

func DefaultBatchConfig() BatchConfig {
	return BatchConfig{
		BatchSize:           DefaultBatchSize,
		BatchTimeout:        DefaultBatchTimeout,
		ConcurrentLimit:     DefaultConcurrentLimit,
		PauseBetweenBatches: DefaultPauseBetweenBatches,
	}
}

var strategies = map[string]Strategy{
	// dedicated sync hosts
	"aggressive": {Name: "aggressive-concurrent", Config: BatchConfig{
		BatchSize:       100,
		BatchTimeout:    60 * time.Second,
		ConcurrentLimit: 10,
	}},
	"balanced": {Name: "balanced-concurrent", Config: BatchConfig{
		BatchSize:           50,
		BatchTimeout:        30 * time.Second,
		ConcurrentLimit:     5,
		PauseBetweenBatches: 50 * time.Millisecond,
	}},
	"safe": {Name: "safe-concurrent", Config: DefaultBatchConfig()},
	"sequential": {Name: "sequential", Config: BatchConfig{
		BatchSize:       DefaultBatchSize,
		BatchTimeout:    DefaultBatchTimeout,
		ConcurrentLimit: 1,
	}},
}

// LookupStrategy returns the named strategy, falling back to "safe".
func LookupStrategy(name string) Strategy {
	if s, ok := strategies[name]; ok {
		return s
	}
	return strategies["safe"]
}

type SyncConfig struct {
	Strategy                 Strategy
	Batch                    BatchConfig
	ReconcileBatchSize       int
	Dispatch                 DispatchMode
	ProviderConcurrencyLimit int
	RetryAttempts            int
	RetryMinDelay            time.Duration
	RetryMaxDelay            time.Duration
	Interval                 time.Duration
	RunOnStartup             bool
	HTTPTimeout              time.Duration
	StaleRunAfter            time.Duration
}

func DefaultSyncConfig() SyncConfig {
	return SyncConfig{
		Strategy:                 LookupStrategy("safe"),
		Batch:                    DefaultBatchConfig(),
		ReconcileBatchSize:       DefaultBatchSize,
		Dispatch:                 DispatchSequential,
		ProviderConcurrencyLimit: DefaultProviderConcurrencyLimit,
		RetryAttempts:            DefaultRetryAttempts,
		RetryMinDelay:            DefaultRetryMinDelay,
		RetryMaxDelay:            DefaultRetryMaxDelay,
		HTTPTimeout:              30 * time.Second,
		StaleRunAfter:            2 * time.Hour,
	}
}

func loadSyncConfig() SyncConfig {
	strategy := LookupStrategy(getEnv("SYNC_STRATEGY", "safe"))
	batch := strategy.Config

	// Explicit knobs override the strategy preset.
	batch.BatchSize = getEnvAsInt("SYNC_BATCH_SIZE", batch.BatchSize)
	batch.BatchTimeout = getEnvAsMillis("SYNC_BATCH_TIMEOUT_MS", batch.BatchTimeout)
	batch.ConcurrentLimit = getEnvAsInt("SYNC_CONCURRENT_LIMIT", batch.ConcurrentLimit)
	batch.PauseBetweenBatches = getEnvAsMillis("SYNC_PAUSE_BETWEEN_BATCHES_MS", batch.PauseBetweenBatches)

	return SyncConfig{
		Strategy:                 strategy,
		Batch:                    batch,
		ReconcileBatchSize:       getEnvAsInt("SYNC_RECONCILE_BATCH_SIZE", DefaultBatchSize),
		Dispatch:                 DispatchMode(getEnv("SYNC_PROVIDER_DISPATCH", string(DispatchSequential))),
		ProviderConcurrencyLimit: getEnvAsInt("SYNC_PROVIDER_CONCURRENCY_LIMIT", DefaultProviderConcurrencyLimit),
		RetryAttempts:            getEnvAsInt("SYNC_RETRY_ATTEMPTS", DefaultRetryAttempts),
		RetryMinDelay:            getEnvAsMillis("SYNC_RETRY_MIN_DELAY_MS", DefaultRetryMinDelay),
		RetryMaxDelay:            getEnvAsMillis("SYNC_RETRY_MAX_DELAY_MS", DefaultRetryMaxDelay),
		Interval:                 getEnvAsDuration("SYNC_INTERVAL", 0),
		RunOnStartup:             getEnvAsBool("SYNC_ON_STARTUP", false),
		HTTPTimeout:              getEnvAsDuration("SYNC_HTTP_TIMEOUT", 30*time.Second),
		StaleRunAfter:            getEnvAsDuration("SYNC_STALE_RUN_AFTER", 2*time.Hour),
	}
}

func (s SyncConfig) Validate() error {
	if s.Batch.BatchSize < 1 {
		return fmt.Errorf("sync batch size must be positive, got %d", s.Batch.BatchSize)
	}
	if s.Batch.ConcurrentLimit < 1 {
		return fmt.Errorf("sync concurrent limit must be positive, got %d", s.Batch.ConcurrentLimit)
	}
	if s.Batch.BatchTimeout <= 0 {
		return fmt.Errorf("sync batch timeout must be positive")
	}
	if s.ReconcileBatchSize < 1 {
		return fmt.Errorf("sync reconcile batch size must be positive, got %d", s.ReconcileBatchSize)
	}
	if s.Dispatch != DispatchSequential && s.Dispatch != DispatchParallel {
		return fmt.Errorf("unknown provider dispatch mode %q", s.Dispatch)
	}
	if s.ProviderConcurrencyLimit < 1 {
		return fmt.Errorf("provider concurrency limit must be positive, got %d", s.ProviderConcurrencyLimit)
	}
	if s.RetryAttempts < 1 {
		return fmt.Errorf("sync retry attempts must be at least 1, got %d", s.RetryAttempts)
	}
	if s.RetryMaxDelay < s.RetryMinDelay {
		return fmt.Errorf("sync retry max delay must not be below min delay")
	}
	return nil
}
