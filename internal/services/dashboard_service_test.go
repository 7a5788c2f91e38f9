package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"
	"gorm.io/gorm"

	"github.com/javajoker/storefront-analytics/internal/models"
	"github.com/javajoker/storefront-analytics/internal/repositories"
	"github.com/javajoker/storefront-analytics/internal/testutil"
	"github.com/javajoker/storefront-analytics/internal/utils"
)

func TestBuildTrend(t *testing.T) {
	cases := []struct {
		name      string
		current   float64
		previous  float64
		value     int
		direction TrendDirection
	}{
		{"both empty", 0, 0, 0, TrendNeutral},
		{"from nothing", 5, 0, 100, TrendUp},
		{"growth", 15, 10, 50, TrendUp},
		{"decline", 5, 10, 50, TrendDown},
		{"flat within half a percent", 1004, 1000, 0, TrendNeutral},
		{"small decline", 994, 1000, 1, TrendDown},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			trend := BuildTrend(tc.current, tc.previous)
			assert.Equal(t, tc.value, trend.Value)
			assert.Equal(t, tc.direction, trend.Direction)
		})
	}
}

type DashboardServiceTestSuite struct {
	suite.Suite
	db      *gorm.DB
	service *DashboardService
	ctx     context.Context
	now     time.Time
	mug     models.Product
	lamp    models.Product
}

func (s *DashboardServiceTestSuite) SetupTest() {
	s.db = testutil.NewDB(s.T())
	s.ctx = context.Background()
	s.now = time.Date(2026, 3, 20, 12, 0, 0, 0, time.UTC)
	s.service = NewDashboardService(s.db, testutil.NullLogger())
	s.service.now = func() time.Time { return s.now }

	recent := s.now.Add(-2 * 24 * time.Hour)
	older := s.now.Add(-10 * 24 * time.Hour)

	s.mug = models.Product{Provider: "shop", ProviderProductID: 1, Name: "Mug", Price: 10, Category: "kitchen", Availability: true}
	s.lamp = models.Product{Provider: "shop", ProviderProductID: 2, Name: "Lamp", Price: 30, Availability: false}
	other := models.Product{Provider: "market", ProviderProductID: 1, Name: "Pan", Price: 20, Category: "kitchen", Availability: true}
	s.mug.CreatedAt, s.lamp.CreatedAt, other.CreatedAt = recent, recent, older
	s.Require().NoError(s.db.Create(&[]*models.Product{&s.mug, &s.lamp, &other}).Error)

	completed := models.Order{Provider: "shop", ProviderOrderID: 100, Status: models.OrderStatusCompleted, TotalPrice: 50}
	pending := models.Order{Provider: "shop", ProviderOrderID: 101, Status: models.OrderStatusPending, TotalPrice: 20}
	old := models.Order{Provider: "market", ProviderOrderID: 7, Status: models.OrderStatusCompleted, TotalPrice: 25}
	completed.CreatedAt, pending.CreatedAt, old.CreatedAt = recent, recent.Add(time.Hour), older
	s.Require().NoError(s.db.Create(&[]*models.Order{&completed, &pending, &old}).Error)

	s.Require().NoError(s.db.Create(&[]models.OrderItem{
		{OrderID: completed.ID, ProductID: s.mug.ID, Quantity: 2, UnitPriceSnapshot: 10},
		{OrderID: completed.ID, ProductID: s.lamp.ID, Quantity: 1, UnitPriceSnapshot: 30},
		{OrderID: old.ID, ProductID: s.mug.ID, Quantity: 3, UnitPriceSnapshot: 5},
		{OrderID: pending.ID, ProductID: s.lamp.ID, Quantity: 1, UnitPriceSnapshot: 20},
	}).Error)
}

func (s *DashboardServiceTestSuite) TestGetMetricCards() {
	runs := repositories.NewSyncRunRepository(s.db)
	run, err := runs.Create(s.ctx, models.AllProviders, nil, 1)
	s.Require().NoError(err)

	cards, err := s.service.GetMetricCards(s.ctx, nil)
	s.Require().NoError(err)

	s.Equal(int64(3), cards.TotalProducts)
	s.Equal(int64(3), cards.TotalOrders)
	s.Equal(75.0, cards.TotalRevenue)
	s.Equal(int64(2), cards.TotalProviders)
	s.Require().NotNil(cards.LatestSyncRun)
	s.Equal(run.ID, cards.LatestSyncRun.ID)
	s.Nil(cards.DateRange)

	s.Equal(Trend{Value: 100, Direction: TrendUp}, cards.Trends.Products, "two new against one older")
	s.Equal(Trend{Value: 100, Direction: TrendUp}, cards.Trends.Orders)
	s.Equal(Trend{Value: 100, Direction: TrendUp}, cards.Trends.Revenue)
	s.Equal(Trend{Value: 0, Direction: TrendNeutral}, cards.Trends.Providers)
}

func (s *DashboardServiceTestSuite) TestGetMetricCardsWithinRange() {
	rng := &DateRange{From: s.now.Add(-5 * 24 * time.Hour), To: s.now}

	cards, err := s.service.GetMetricCards(s.ctx, rng)
	s.Require().NoError(err)

	s.Equal(int64(2), cards.TotalOrders)
	s.Equal(50.0, cards.TotalRevenue)
	s.Equal(int64(3), cards.TotalProducts, "product totals ignore the range")
	s.Equal(rng, cards.DateRange)
}

func (s *DashboardServiceTestSuite) TestGetOrdersByStatus() {
	stats, err := s.service.GetOrdersByStatus(s.ctx)
	s.Require().NoError(err)

	s.Require().Len(stats, 2)
	s.Equal(OrderStatusStat{Status: models.OrderStatusCompleted, Count: 2, TotalRevenue: 75}, stats[0])
	s.Equal(OrderStatusStat{Status: models.OrderStatusPending, Count: 1, TotalRevenue: 20}, stats[1])
}

func (s *DashboardServiceTestSuite) TestGetProductsByCategory() {
	stats, err := s.service.GetProductsByCategory(s.ctx)
	s.Require().NoError(err)

	s.Require().Len(stats, 2)
	s.Equal(ProductCategoryStat{Category: "kitchen", Count: 2, AvgPrice: 15, TotalValue: 30}, stats[0])
	s.Equal(ProductCategoryStat{Category: models.Uncategorized, Count: 1, AvgPrice: 30, TotalValue: 30}, stats[1])
}

func (s *DashboardServiceTestSuite) TestGetRevenueByCategory() {
	stats, err := s.service.GetRevenueByCategory(s.ctx)
	s.Require().NoError(err)

	s.Require().Len(stats, 2)
	s.Equal(RevenueCategoryStat{Category: "kitchen", OrderCount: 2, Quantity: 5, Revenue: 35}, stats[0])
	s.Equal(RevenueCategoryStat{Category: models.Uncategorized, OrderCount: 1, Quantity: 1, Revenue: 30}, stats[1])
}

func (s *DashboardServiceTestSuite) TestGetRecentOrders() {
	orders, err := s.service.GetRecentOrders(s.ctx, 2)
	s.Require().NoError(err)

	s.Require().Len(orders, 2)
	s.Equal(int64(101), orders[0].ProviderOrderID)
	s.Equal(int64(1), orders[0].ItemCount)
	s.Equal(int64(100), orders[1].ProviderOrderID)
	s.Equal(int64(2), orders[1].ItemCount)
}

func (s *DashboardServiceTestSuite) TestGetTopProducts() {
	top, err := s.service.GetTopProducts(s.ctx, 0)
	s.Require().NoError(err)

	s.Require().Len(top, 2)
	s.Equal(s.mug.ID, top[0].ID)
	s.Equal(int64(2), top[0].OrderCount)
	s.Equal(int64(5), top[0].TotalQuantity)
	s.Equal(s.lamp.ID, top[1].ID)
	s.Equal(models.Uncategorized, top[1].Category)
}

func (s *DashboardServiceTestSuite) TestDashboardOnEmptyStore() {
	empty := NewDashboardService(testutil.NewDB(s.T()), testutil.NullLogger())

	cards, err := empty.GetMetricCards(s.ctx, nil)
	s.Require().NoError(err)
	s.Zero(cards.TotalRevenue)
	s.Nil(cards.LatestSyncRun)
	s.Equal(TrendNeutral, cards.Trends.Orders.Direction)

	top, err := empty.GetTopProducts(s.ctx, 5)
	s.Require().NoError(err)
	s.Empty(top)

	recent, err := empty.GetRecentOrders(s.ctx, 5)
	s.Require().NoError(err)
	s.Empty(recent)
}

func (s *DashboardServiceTestSuite) TestListProducts() {
	available := true
	result, err := s.service.ListProducts(s.ctx, ProductFilter{
		PaginationParams: utils.PaginationParams{Page: 1, Limit: 10, Sort: "price", Order: "asc", Category: "kitchen"},
		Available:        &available,
	})
	s.Require().NoError(err)

	s.Equal(int64(2), result.Total)
	products := result.Data.([]models.Product)
	s.Require().Len(products, 2)
	s.Equal("Mug", products[0].Name)
	s.Equal("Pan", products[1].Name)

	result, err = s.service.ListProducts(s.ctx, ProductFilter{
		PaginationParams: utils.PaginationParams{Page: 1, Limit: 10, Search: "LAM", Category: models.Uncategorized},
	})
	s.Require().NoError(err)
	s.Equal(int64(1), result.Total)

	result, err = s.service.ListProducts(s.ctx, ProductFilter{
		PaginationParams: utils.PaginationParams{Page: 2, Limit: 2, Provider: "shop"},
	})
	s.Require().NoError(err)
	s.Equal(int64(2), result.Total)
	s.Empty(result.Data.([]models.Product))
}

func TestDashboardServiceTestSuite(t *testing.T) {
	suite.Run(t, new(DashboardServiceTestSuite))
}
