// internal/services/admin_service.go
package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/javajoker/storefront-analytics/internal/config"
	"github.com/javajoker/storefront-analytics/internal/models"
	"github.com/javajoker/storefront-analytics/internal/providers"
	"github.com/javajoker/storefront-analytics/internal/repositories"
	"github.com/javajoker/storefront-analytics/internal/utils"
)

// SyncTrigger starts background syncs.
type SyncTrigger interface {
	TriggerAsync() bool
	Running() bool
}

type RateLimitReporter interface {
	Status(provider string, maxRequests int) providers.RateLimitStatus
}

type BreakerReporter interface {
	State(provider string) string
}

type AdminService struct {
	db        *gorm.DB
	runs      *repositories.SyncRunRepository
	products  *repositories.ProductRepository
	orders    *repositories.OrderRepository
	trigger   SyncTrigger
	providers []config.ProviderConfig
	limits    RateLimitReporter
	breakers  BreakerReporter
	log       logrus.FieldLogger
}

type SyncTriggerResult struct {
	Accepted       bool `json:"accepted"`
	AlreadyRunning bool `json:"already_running"`
}

type SyncStatus struct {
	Running   bool                      `json:"running"`
	LatestRun *models.SyncRun           `json:"latest_run"`
	Providers map[string]*models.SyncRun `json:"providers"`
}

type SyncRunDetail struct {
	Run      *models.SyncRun  `json:"run"`
	Children []models.SyncRun `json:"children"`
}

type ProviderStatus struct {
	Name           string                     `json:"name"`
	ProductsURL    string                     `json:"products_url"`
	OrdersURL      string                     `json:"orders_url"`
	RateLimit      *config.RateLimit          `json:"rate_limit,omitempty"`
	RateLimitUsage *providers.RateLimitStatus `json:"rate_limit_usage,omitempty"`
	CircuitBreaker string                     `json:"circuit_breaker,omitempty"`
	Variations     config.Variations          `json:"variations"`
	Products       int64                      `json:"products"`
	Orders         int64                      `json:"orders"`
	LatestRun      *models.SyncRun            `json:"latest_run"`
}

// NewAdminService wires the sync admin surface. limits and breakers may be nil.
func NewAdminService(db *gorm.DB, trigger SyncTrigger, providerList []config.ProviderConfig, limits RateLimitReporter, breakers BreakerReporter, log logrus.FieldLogger) *AdminService {
	return &AdminService{
		db:        db,
		runs:      repositories.NewSyncRunRepository(db),
		products:  repositories.NewProductRepository(db),
		orders:    repositories.NewOrderRepository(db),
		trigger:   trigger,
		providers: providerList,
		limits:    limits,
		breakers:  breakers,
		log:       log.WithField("operation", "sync-admin"),
	}
}

// TriggerSync starts a sync unless one is already running.
func (s *AdminService) TriggerSync(adminID string) SyncTriggerResult {
	alreadyRunning := s.trigger.TriggerAsync()
	s.log.WithFields(logrus.Fields{
		"admin_id":        adminID,
		"already_running": alreadyRunning,
	}).Info("Manual sync requested")
	return SyncTriggerResult{Accepted: true, AlreadyRunning: alreadyRunning}
}

func (s *AdminService) GetSyncStatus(ctx context.Context) (*SyncStatus, error) {
	latest, err := s.runs.FindLatest(ctx, models.AllProviders)
	if err != nil {
		return nil, err
	}

	status := &SyncStatus{
		Running:   s.trigger.Running(),
		LatestRun: latest,
		Providers: make(map[string]*models.SyncRun, len(s.providers)),
	}
	for _, p := range s.providers {
		run, err := s.runs.FindLatest(ctx, p.Name)
		if err != nil {
			return nil, err
		}
		status.Providers[p.Name] = run
	}
	return status, nil
}

func (s *AdminService) ListSyncRuns(ctx context.Context, params utils.PaginationParams) (utils.PaginationResult, error) {
	runs, total, err := s.runs.List(ctx, repositories.SyncRunFilter{
		Provider: params.Provider,
		Status:   models.SyncStatus(params.Status),
		Page:     params.Page,
		Limit:    params.Limit,
	})
	if err != nil {
		return utils.PaginationResult{}, err
	}
	return utils.CreatePaginationResult(runs, total, params), nil
}

// GetSyncRun returns a run and, for aggregate runs, every provider attempt under it.
func (s *AdminService) GetSyncRun(ctx context.Context, id uuid.UUID) (*SyncRunDetail, error) {
	run, err := s.runs.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	children, err := s.runs.FindChildren(ctx, id)
	if err != nil {
		return nil, err
	}
	return &SyncRunDetail{Run: run, Children: children}, nil
}

func (s *AdminService) GetProviders(ctx context.Context) ([]ProviderStatus, error) {
	out := make([]ProviderStatus, 0, len(s.providers))
	for _, p := range s.providers {
		status := ProviderStatus{
			Name:        p.Name,
			ProductsURL: p.ProductsURL,
			OrdersURL:   p.OrdersURL,
			RateLimit:   p.RateLimit,
			Variations:  p.Variations,
		}
		if s.limits != nil && p.RateLimit != nil {
			usage := s.limits.Status(p.Name, p.RateLimit.Requests)
			status.RateLimitUsage = &usage
		}
		if s.breakers != nil {
			status.CircuitBreaker = s.breakers.State(p.Name)
		}

		var err error
		if status.Products, err = s.products.CountByProvider(ctx, p.Name); err != nil {
			return nil, err
		}
		if status.Orders, err = s.orders.CountByProvider(ctx, p.Name); err != nil {
			return nil, err
		}
		if status.LatestRun, err = s.runs.FindLatest(ctx, p.Name); err != nil {
			return nil, err
		}
		out = append(out, status)
	}
	return out, nil
}

func (s *AdminService) ListAuditLogs(ctx context.Context, params utils.PaginationParams) (utils.PaginationResult, error) {
	query := s.db.WithContext(ctx).Model(&models.AuditLog{})
	if params.Search != "" {
		query = query.Where("action = ?", params.Search)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return utils.PaginationResult{}, fmt.Errorf("failed to count audit logs: %w", err)
	}

	logs := []models.AuditLog{}
	err := utils.ApplyPagination(query.Preload("User").Order("created_at DESC"), params).Find(&logs).Error
	if err != nil {
		return utils.PaginationResult{}, fmt.Errorf("failed to list audit logs: %w", err)
	}
	return utils.CreatePaginationResult(logs, total, params), nil
}

// RecordAudit stores one admin action.
func (s *AdminService) RecordAudit(ctx context.Context, entry *models.AuditLog) error {
	if err := s.db.WithContext(ctx).Create(entry).Error; err != nil {
		return fmt.Errorf("failed to record audit log: %w", err)
	}
	return nil
}
