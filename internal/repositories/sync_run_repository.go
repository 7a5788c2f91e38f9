// internal/repositories/sync_run_repository.go
package repositories

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/javajoker/storefront-analytics/internal/models"
)

var (
	ErrSyncRunNotFound  = errors.New("sync run not found")
	ErrSyncRunFinalized = errors.New("sync run already finished")
)

// RunOutcome is the terminal state written by Finish.
type RunOutcome struct {
	Status          models.SyncStatus
	ErrorMessage    string
	ProductsFetched int
	OrdersFetched   int
	Details         interface{}
}

type SyncRunFilter struct {
	Provider string
	Status   models.SyncStatus
	Page     int
	Limit    int
}

type SyncRunRepository struct {
	db  *gorm.DB
	now func() time.Time
}

func NewSyncRunRepository(db *gorm.DB) *SyncRunRepository {
	return &SyncRunRepository{db: db, now: func() time.Time { return time.Now().UTC() }}
}

// Create opens a RUNNING ledger row.
func (r *SyncRunRepository) Create(ctx context.Context, provider string, parentID *uuid.UUID, attempt int) (*models.SyncRun, error) {
	if attempt < 1 {
		attempt = 1
	}
	run := &models.SyncRun{
		Provider:  provider,
		Status:    models.SyncStatusRunning,
		StartedAt: r.now(),
		Attempt:   attempt,
		ParentID:  parentID,
	}
	if err := r.db.WithContext(ctx).Create(run).Error; err != nil {
		return nil, fmt.Errorf("failed to create sync run: %w", err)
	}
	return run, nil
}

// Finish moves a RUNNING row to its terminal status. Finished rows are never
// rewritten: a second Finish returns ErrSyncRunFinalized.
func (r *SyncRunRepository) Finish(ctx context.Context, id uuid.UUID, outcome RunOutcome) error {
	if outcome.Status != models.SyncStatusSuccess && outcome.Status != models.SyncStatusFailed {
		return fmt.Errorf("invalid terminal sync status %q", outcome.Status)
	}

	now := r.now()
	updates := map[string]interface{}{
		"status":           outcome.Status,
		"finished_at":      now,
		"error_message":    outcome.ErrorMessage,
		"products_fetched": outcome.ProductsFetched,
		"orders_fetched":   outcome.OrdersFetched,
		"updated_at":       now,
	}
	if outcome.Details != nil {
		raw, err := json.Marshal(outcome.Details)
		if err != nil {
			return fmt.Errorf("failed to encode sync run details: %w", err)
		}
		updates["details"] = datatypes.JSON(raw)
	}

	result := r.db.WithContext(ctx).Model(&models.SyncRun{}).
		Where("id = ? AND status = ?", id, models.SyncStatusRunning).
		Updates(updates)
	if result.Error != nil {
		return fmt.Errorf("failed to finish sync run: %w", result.Error)
	}
	if result.RowsAffected == 1 {
		return nil
	}

	var count int64
	if err := r.db.WithContext(ctx).Model(&models.SyncRun{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return fmt.Errorf("failed to check sync run: %w", err)
	}
	if count == 0 {
		return ErrSyncRunNotFound
	}
	return ErrSyncRunFinalized
}

func (r *SyncRunRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.SyncRun, error) {
	var run models.SyncRun
	err := r.db.WithContext(ctx).First(&run, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrSyncRunNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load sync run: %w", err)
	}
	return &run, nil
}

// FindLatest returns the most recently started run, optionally restricted to
// one provider. It returns nil when no run exists.
func (r *SyncRunRepository) FindLatest(ctx context.Context, provider string) (*models.SyncRun, error) {
	query := r.db.WithContext(ctx).Order("started_at DESC")
	if provider != "" {
		query = query.Where("provider = ?", provider)
	}

	var run models.SyncRun
	err := query.First(&run).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load latest sync run: %w", err)
	}
	return &run, nil
}

func (r *SyncRunRepository) FindRecent(ctx context.Context, limit int) ([]models.SyncRun, error) {
	var runs []models.SyncRun
	err := r.db.WithContext(ctx).Order("started_at DESC").Limit(limit).Find(&runs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load recent sync runs: %w", err)
	}
	return runs, nil
}

// FindChildren returns the provider rows of an aggregate run.
func (r *SyncRunRepository) FindChildren(ctx context.Context, parentID uuid.UUID) ([]models.SyncRun, error) {
	var runs []models.SyncRun
	err := r.db.WithContext(ctx).Where("parent_id = ?", parentID).Order("started_at ASC").Find(&runs).Error
	return runs, err
}

func (r *SyncRunRepository) List(ctx context.Context, filter SyncRunFilter) ([]models.SyncRun, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.SyncRun{})
	if filter.Provider != "" {
		query = query.Where("provider = ?", filter.Provider)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count sync runs: %w", err)
	}

	page, limit := filter.Page, filter.Limit
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 20
	}

	var runs []models.SyncRun
	if err := query.Order("started_at DESC").Offset((page - 1) * limit).Limit(limit).Find(&runs).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list sync runs: %w", err)
	}
	return runs, total, nil
}

// FailStale marks RUNNING rows started before cutoff as FAILED. Such rows are
// left behind when the process dies mid-sync.
func (r *SyncRunRepository) FailStale(ctx context.Context, cutoff time.Time) (int64, error) {
	now := r.now()
	result := r.db.WithContext(ctx).Model(&models.SyncRun{}).
		Where("status = ? AND started_at < ?", models.SyncStatusRunning, cutoff).
		Updates(map[string]interface{}{
			"status":        models.SyncStatusFailed,
			"finished_at":   now,
			"error_message": "abandoned: process stopped before the run finished",
			"updated_at":    now,
		})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to fail stale sync runs: %w", result.Error)
	}
	return result.RowsAffected, nil
}
