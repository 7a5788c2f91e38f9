package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"gorm.io/gorm"

	"github.com/javajoker/storefront-analytics/internal/config"
	"github.com/javajoker/storefront-analytics/internal/models"
	"github.com/javajoker/storefront-analytics/internal/providers"
	"github.com/javajoker/storefront-analytics/internal/repositories"
	"github.com/javajoker/storefront-analytics/internal/testutil"
	"github.com/javajoker/storefront-analytics/internal/utils"
)

type fakeTrigger struct {
	running bool
	calls   int
}

func (f *fakeTrigger) TriggerAsync() bool {
	f.calls++
	if f.running {
		return true
	}
	f.running = true
	return false
}

func (f *fakeTrigger) Running() bool { return f.running }

type fakeBreakers map[string]string

func (f fakeBreakers) State(provider string) string { return f[provider] }

type AdminServiceTestSuite struct {
	suite.Suite
	db       *gorm.DB
	trigger  *fakeTrigger
	limiter  *providers.RateLimiter
	service  *AdminService
	runs     *repositories.SyncRunRepository
	ctx      context.Context
	provider config.ProviderConfig
}

func (s *AdminServiceTestSuite) SetupTest() {
	s.db = testutil.NewDB(s.T())
	s.ctx = context.Background()
	s.trigger = &fakeTrigger{}
	s.limiter = providers.NewRateLimiter(testutil.NullLogger())
	s.runs = repositories.NewSyncRunRepository(s.db)
	s.provider = config.ProviderConfig{
		Name:        "shop",
		ProductsURL: "https://shop.example.com/products",
		OrdersURL:   "https://shop.example.com/orders",
		RateLimit:   &config.RateLimit{Requests: 10, Window: time.Minute},
	}
	s.service = NewAdminService(s.db, s.trigger, []config.ProviderConfig{s.provider}, s.limiter,
		fakeBreakers{"shop": "closed"}, testutil.NullLogger())
}

func (s *AdminServiceTestSuite) TestTriggerSyncReportsOverlap() {
	first := s.service.TriggerSync("admin")
	s.True(first.Accepted)
	s.False(first.AlreadyRunning)

	second := s.service.TriggerSync("admin")
	s.True(second.AlreadyRunning)
	s.Equal(2, s.trigger.calls)
}

func (s *AdminServiceTestSuite) TestGetSyncStatus() {
	parent, err := s.runs.Create(s.ctx, models.AllProviders, nil, 1)
	s.Require().NoError(err)
	child, err := s.runs.Create(s.ctx, "shop", &parent.ID, 1)
	s.Require().NoError(err)
	s.trigger.running = true

	status, err := s.service.GetSyncStatus(s.ctx)
	s.Require().NoError(err)

	s.True(status.Running)
	s.Require().NotNil(status.LatestRun)
	s.Equal(parent.ID, status.LatestRun.ID)
	s.Require().NotNil(status.Providers["shop"])
	s.Equal(child.ID, status.Providers["shop"].ID)

	detail, err := s.service.GetSyncRun(s.ctx, parent.ID)
	s.Require().NoError(err)
	s.Require().Len(detail.Children, 1)
	s.Equal(child.ID, detail.Children[0].ID)
}

func (s *AdminServiceTestSuite) TestListSyncRunsFilters() {
	for i := 0; i < 3; i++ {
		_, err := s.runs.Create(s.ctx, "shop", nil, 1)
		s.Require().NoError(err)
	}
	_, err := s.runs.Create(s.ctx, "market", nil, 1)
	s.Require().NoError(err)

	result, err := s.service.ListSyncRuns(s.ctx, utils.PaginationParams{Page: 1, Limit: 2, Provider: "shop"})
	s.Require().NoError(err)

	s.Equal(int64(3), result.Total)
	s.Equal(2, result.TotalPages)
	s.Len(result.Data.([]models.SyncRun), 2)
}

func (s *AdminServiceTestSuite) TestGetProviders() {
	s.Require().NoError(s.limiter.CheckLimit("shop", 10, time.Minute))
	s.Require().NoError(repositories.NewProductRepository(s.db).UpsertBatch(s.ctx, []models.Product{
		{Provider: "shop", ProviderProductID: 1, Name: "Mug", Price: 10, Availability: true},
	}))

	statuses, err := s.service.GetProviders(s.ctx)
	s.Require().NoError(err)

	s.Require().Len(statuses, 1)
	st := statuses[0]
	s.Equal("shop", st.Name)
	s.Equal("closed", st.CircuitBreaker)
	s.Require().NotNil(st.RateLimitUsage)
	s.Equal(1, st.RateLimitUsage.Used)
	s.Equal(9, st.RateLimitUsage.Remaining)
	s.Equal(int64(1), st.Products)
	s.Zero(st.Orders)
	s.Nil(st.LatestRun)
}

func (s *AdminServiceTestSuite) TestAuditLogs() {
	s.Require().NoError(s.service.RecordAudit(s.ctx, &models.AuditLog{
		Action:       "POST /v1/admin/sync-now",
		ResourceType: "sync",
		StatusCode:   202,
	}))

	result, err := s.service.ListAuditLogs(s.ctx, utils.PaginationParams{Page: 1, Limit: 10})
	s.Require().NoError(err)
	s.Equal(int64(1), result.Total)
}

func TestAdminServiceTestSuite(t *testing.T) {
	suite.Run(t, new(AdminServiceTestSuite))
}
