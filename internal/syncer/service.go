// internal/syncer/service.go
package syncer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/javajoker/storefront-analytics/internal/config"
	"github.com/javajoker/storefront-analytics/internal/metrics"
	"github.com/javajoker/storefront-analytics/internal/models"
	"github.com/javajoker/storefront-analytics/internal/providers"
	"github.com/javajoker/storefront-analytics/internal/repositories"
	"github.com/javajoker/storefront-analytics/internal/variation"
)

// ProviderResult is the outcome of one provider attempt. Provider failures
// are reported here, never returned as errors.
type ProviderResult struct {
	Provider        string            `json:"provider"`
	RunID           uuid.UUID         `json:"run_id"`
	Attempt         int               `json:"attempt"`
	Success         bool              `json:"success"`
	ProductsFetched int               `json:"products_fetched"`
	OrdersFetched   int               `json:"orders_fetched"`
	InvalidProducts int               `json:"invalid_products"`
	InvalidOrders   int               `json:"invalid_orders"`
	Reconcile       *ReconcileSummary `json:"reconcile,omitempty"`
	Error           string            `json:"error,omitempty"`
	Duration        time.Duration     `json:"duration"`

	err error
}

// Err returns the error that failed the attempt, if any.
func (r ProviderResult) Err() error {
	return r.err
}

type AggregateResult struct {
	RunID           uuid.UUID         `json:"run_id"`
	Status          models.SyncStatus `json:"status"`
	ProductsFetched int               `json:"products_fetched"`
	OrdersFetched   int               `json:"orders_fetched"`
	Providers       []ProviderResult  `json:"providers"`
	Error           string            `json:"error,omitempty"`
	Duration        time.Duration     `json:"duration"`
}

// runDetails is stored in SyncRun.Details for provider rows.
type runDetails struct {
	Strategy        string            `json:"strategy"`
	InvalidProducts int               `json:"invalid_products"`
	InvalidOrders   int               `json:"invalid_orders"`
	BatchFailures   []string          `json:"batch_failures,omitempty"`
	Reconcile       *ReconcileSummary `json:"reconcile,omitempty"`
	DurationMS      int64             `json:"duration_ms"`
}

// Service runs provider syncs and records them in the ledger.
type Service struct {
	providers  []config.ProviderConfig
	cfg        config.SyncConfig
	fetcher    providers.Fetcher
	products   *repositories.ProductRepository
	orders     *repositories.OrderRepository
	runs       *repositories.SyncRunRepository
	reconciler *Reconciler
	engine     *variation.Engine
	log        logrus.FieldLogger

	onRetry func(delay time.Duration)
}

func NewService(db *gorm.DB, fetcher providers.Fetcher, providerList []config.ProviderConfig, cfg config.SyncConfig, engine *variation.Engine, log logrus.FieldLogger) *Service {
	log = log.WithField("operation", "sync")
	return &Service{
		providers:  providerList,
		cfg:        cfg,
		fetcher:    fetcher,
		products:   repositories.NewProductRepository(db),
		orders:     repositories.NewOrderRepository(db),
		runs:       repositories.NewSyncRunRepository(db),
		reconciler: NewReconciler(db, engine, cfg.ReconcileBatchSize, log),
		engine:     engine,
		log:        log,
	}
}

func (s *Service) Providers() []config.ProviderConfig {
	return s.providers
}

// SyncProvider runs one attempt for provider under its own ledger row.
func (s *Service) SyncProvider(ctx context.Context, provider config.ProviderConfig, parentID *uuid.UUID, attempt int) (result ProviderResult) {
	started := time.Now()
	log := s.log.WithFields(logrus.Fields{
		"provider": provider.Name,
		"attempt":  attempt,
	})
	result = ProviderResult{Provider: provider.Name, Attempt: attempt}

	run, err := s.runs.Create(ctx, provider.Name, parentID, attempt)
	if err != nil {
		log.WithError(err).Error("Failed to open provider sync run")
		result.err = err
		result.Error = err.Error()
		return result
	}
	result.RunID = run.ID
	details := runDetails{Strategy: s.cfg.Strategy.Name}

	defer func() {
		if rec := recover(); rec != nil {
			result.err = fmt.Errorf("panic during provider sync: %v", rec)
			result.Success = false
		}
		result.Duration = time.Since(started)
		details.DurationMS = result.Duration.Milliseconds()
		details.InvalidProducts = result.InvalidProducts
		details.InvalidOrders = result.InvalidOrders
		details.Reconcile = result.Reconcile
		s.finishProviderRun(log, &result, details)
	}()

	log.Info("Starting provider sync")

	var (
		fetchedProducts *providers.FetchResult[providers.ProductPayload]
		fetchedOrders   *providers.FetchResult[providers.OrderPayload]
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		fetchedProducts, err = s.fetcher.FetchProducts(gctx, provider)
		return err
	})
	g.Go(func() error {
		var err error
		fetchedOrders, err = s.fetcher.FetchOrders(gctx, provider)
		return err
	})
	fetchErr := g.Wait()
	if fetchedProducts != nil {
		result.ProductsFetched = len(fetchedProducts.Records)
		result.InvalidProducts = fetchedProducts.Invalid
	}
	if fetchedOrders != nil {
		result.OrdersFetched = len(fetchedOrders.Records)
		result.InvalidOrders = fetchedOrders.Invalid
	}
	if fetchErr != nil {
		result.err = fetchErr
		return result
	}

	metrics.RecordFetched(provider.Name, "products", result.ProductsFetched)
	metrics.RecordFetched(provider.Name, "orders", result.OrdersFetched)
	metrics.RecordFetched(provider.Name, "invalid_products", result.InvalidProducts)
	metrics.RecordFetched(provider.Name, "invalid_orders", result.InvalidOrders)

	syncedAt := time.Now().UTC()
	productRows := BuildProducts(provider, fetchedProducts.Records, s.engine, syncedAt)
	if err := UpsertProducts(ctx, s.products, productRows, s.cfg.Batch); err != nil {
		details.BatchFailures = batchFailures(err)
		metrics.RecordBatchFailures(provider.Name, "products", len(details.BatchFailures))
		result.err = fmt.Errorf("product upsert failed: %w", err)
		return result
	}

	orderRows := BuildOrders(provider, fetchedOrders.Records, s.engine, syncedAt)
	if err := UpsertOrders(ctx, s.orders, orderRows, s.cfg.Batch); err != nil {
		details.BatchFailures = batchFailures(err)
		metrics.RecordBatchFailures(provider.Name, "orders", len(details.BatchFailures))
		result.err = fmt.Errorf("order upsert failed: %w", err)
		return result
	}

	summary := s.reconciler.Reconcile(ctx, provider, fetchedOrders.Records)
	result.Reconcile = &summary
	result.Success = true
	return result
}

func (s *Service) finishProviderRun(log logrus.FieldLogger, result *ProviderResult, details runDetails) {
	outcome := repositories.RunOutcome{
		Status:          models.SyncStatusSuccess,
		ProductsFetched: result.ProductsFetched,
		OrdersFetched:   result.OrdersFetched,
		Details:         details,
	}
	if result.err != nil {
		result.Success = false
		result.Error = result.err.Error()
		outcome.Status = models.SyncStatusFailed
		outcome.ErrorMessage = result.Error
	}

	// The run must be closed even when the sync context was cancelled.
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.runs.Finish(ctx, result.RunID, outcome); err != nil {
		log.WithError(err).Error("Failed to finish provider sync run")
		if result.err == nil {
			result.err = fmt.Errorf("failed to record sync run: %w", err)
			result.Error = result.err.Error()
			result.Success = false
		}
	}

	metrics.RecordSyncRun(result.Provider, string(outcome.Status), result.Duration)
	fields := logrus.Fields{
		"products_fetched": result.ProductsFetched,
		"orders_fetched":   result.OrdersFetched,
		"duration":         result.Duration,
	}
	if result.Success {
		log.WithFields(fields).Info("Provider sync completed")
	} else {
		log.WithFields(fields).WithError(result.err).Error("Provider sync failed")
	}
}

// SyncProviderWithRetry repeats retryable provider failures with exponential
// backoff. A rate-limit failure waits as long as the limiter asks.
func (s *Service) SyncProviderWithRetry(ctx context.Context, provider config.ProviderConfig, parentID *uuid.UUID) ProviderResult {
	var last ProviderResult
	attempt := 0
	operation := func() (ProviderResult, error) {
		attempt++
		last = s.SyncProvider(ctx, provider, parentID, attempt)
		if last.Success {
			return last, nil
		}
		return last, retryError(last.err)
	}
	notify := func(_ error, delay time.Duration) {
		s.log.WithFields(logrus.Fields{
			"provider":     provider.Name,
			"attempt":      attempt,
			"max_attempts": s.cfg.RetryAttempts,
			"delay":        delay,
		}).WithError(last.err).Warn("Retrying provider sync")
		if s.onRetry != nil {
			s.onRetry(delay)
		}
	}

	// The attempt count bounds the loop, not the elapsed time.
	_, _ = backoff.Retry(ctx, operation,
		backoff.WithBackOff(NewBackOff(s.cfg)),
		backoff.WithMaxTries(uint(max(s.cfg.RetryAttempts, 1))),
		backoff.WithMaxElapsedTime(0),
		backoff.WithNotify(notify),
	)
	return last
}

// SyncAll syncs every configured provider under one aggregate ledger row.
// Provider failures mark the aggregate FAILED but are not returned; only
// ledger failures and panics are.
func (s *Service) SyncAll(ctx context.Context) (result *AggregateResult, err error) {
	started := time.Now()
	run, err := s.runs.Create(ctx, models.AllProviders, nil, 1)
	if err != nil {
		return nil, fmt.Errorf("failed to open aggregate sync run: %w", err)
	}
	log := s.log.WithField("sync_run_id", run.ID)
	result = &AggregateResult{RunID: run.ID, Status: models.SyncStatusRunning}

	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("panic during sync: %v", rec)
		}
		result.Duration = time.Since(started)
		if err != nil {
			result.Status = models.SyncStatusFailed
			result.Error = err.Error()
			s.finishAggregate(log, result)
			return
		}
		if ferr := s.finishAggregate(log, result); ferr != nil {
			err = ferr
		}
	}()

	log.WithFields(logrus.Fields{
		"providers": len(s.providers),
		"dispatch":  s.cfg.Dispatch,
		"strategy":  s.cfg.Strategy.Name,
	}).Info("Starting sync for all providers")

	results := s.dispatch(ctx, run.ID)

	var failures []string
	for _, r := range results {
		result.ProductsFetched += r.ProductsFetched
		result.OrdersFetched += r.OrdersFetched
		if !r.Success {
			failures = append(failures, fmt.Sprintf("%s: %s", r.Provider, r.Error))
		}
	}
	result.Providers = results

	if len(failures) > 0 {
		result.Status = models.SyncStatusFailed
		result.Error = strings.Join(failures, "; ")
	} else {
		result.Status = models.SyncStatusSuccess
	}
	return result, nil
}

func (s *Service) dispatch(ctx context.Context, parentID uuid.UUID) []ProviderResult {
	results := make([]ProviderResult, len(s.providers))

	if s.cfg.Dispatch != config.DispatchParallel {
		for i, provider := range s.providers {
			results[i] = s.SyncProviderWithRetry(ctx, provider, &parentID)
		}
		return results
	}

	var g errgroup.Group
	g.SetLimit(max(s.cfg.ProviderConcurrencyLimit, 1))
	for i, provider := range s.providers {
		g.Go(func() error {
			defer func() {
				if rec := recover(); rec != nil {
					results[i] = ProviderResult{Provider: provider.Name, Error: fmt.Sprintf("panic: %v", rec)}
				}
			}()
			results[i] = s.SyncProviderWithRetry(ctx, provider, &parentID)
			return nil
		})
	}
	g.Wait()
	return results
}

func (s *Service) finishAggregate(log logrus.FieldLogger, result *AggregateResult) error {
	providerSummaries := make([]map[string]interface{}, 0, len(result.Providers))
	for _, r := range result.Providers {
		providerSummaries = append(providerSummaries, map[string]interface{}{
			"provider": r.Provider,
			"run_id":   r.RunID,
			"attempt":  r.Attempt,
			"success":  r.Success,
		})
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	err := s.runs.Finish(ctx, result.RunID, repositories.RunOutcome{
		Status:          result.Status,
		ErrorMessage:    result.Error,
		ProductsFetched: result.ProductsFetched,
		OrdersFetched:   result.OrdersFetched,
		Details: map[string]interface{}{
			"providers":   providerSummaries,
			"duration_ms": result.Duration.Milliseconds(),
		},
	})
	metrics.RecordSyncRun(models.AllProviders, string(result.Status), result.Duration)
	if err != nil {
		log.WithError(err).Error("Failed to finish aggregate sync run")
		return fmt.Errorf("failed to record aggregate sync run: %w", err)
	}

	fields := logrus.Fields{
		"status":           result.Status,
		"products_fetched": result.ProductsFetched,
		"orders_fetched":   result.OrdersFetched,
		"duration":         result.Duration,
	}
	if result.Status == models.SyncStatusSuccess {
		log.WithFields(fields).Info("Sync for all providers completed")
	} else {
		log.WithFields(fields).WithField("error", result.Error).Warn("Sync for all providers finished with failures")
	}
	return nil
}

// RecoverStale fails RUNNING rows older than the configured threshold.
func (s *Service) RecoverStale(ctx context.Context) (int64, error) {
	if s.cfg.StaleRunAfter <= 0 {
		return 0, nil
	}
	n, err := s.runs.FailStale(ctx, time.Now().UTC().Add(-s.cfg.StaleRunAfter))
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.log.WithField("count", n).Warn("Marked abandoned sync runs as failed")
	}
	return n, nil
}

func batchFailures(err error) []string {
	var batchErr *BatchError
	if !errors.As(err, &batchErr) {
		return []string{err.Error()}
	}
	out := make([]string, len(batchErr.Failures))
	for i, f := range batchErr.Failures {
		out[i] = fmt.Sprintf("Batch %d: %v", f.Index, f.Err)
	}
	return out
}
