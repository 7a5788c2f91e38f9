// internal/services/dashboard_service.go
package services

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/javajoker/storefront-analytics/internal/models"
	"github.com/javajoker/storefront-analytics/internal/repositories"
	"github.com/javajoker/storefront-analytics/internal/utils"
)

const (
	DefaultTrendWindow    = 7 * 24 * time.Hour
	DefaultDashboardLimit = 5
	MaxDashboardLimit     = 50
)

// categoryExpr groups blank categories under models.Uncategorized.
var categoryExpr = fmt.Sprintf("COALESCE(NULLIF(%%s, ''), '%s')", models.Uncategorized)

type TrendDirection string

const (
	TrendUp      TrendDirection = "up"
	TrendDown    TrendDirection = "down"
	TrendNeutral TrendDirection = "neutral"
)

type Trend struct {
	Value     int            `json:"value"`
	Direction TrendDirection `json:"direction"`
}

type DashboardTrends struct {
	Products  Trend `json:"products"`
	Orders    Trend `json:"orders"`
	Revenue   Trend `json:"revenue"`
	Providers Trend `json:"providers"`
}

type DateRange struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

type MetricCards struct {
	TotalProducts  int64           `json:"total_products"`
	TotalOrders    int64           `json:"total_orders"`
	TotalRevenue   float64         `json:"total_revenue"`
	TotalProviders int64           `json:"total_providers"`
	Trends         DashboardTrends `json:"trends"`
	LatestSyncRun  *models.SyncRun `json:"latest_sync_run"`
	DateRange      *DateRange      `json:"date_range"`
}

type OrderStatusStat struct {
	Status       string  `json:"status"`
	Count        int64   `json:"count"`
	TotalRevenue float64 `json:"total_revenue"`
}

type ProductCategoryStat struct {
	Category   string  `json:"category"`
	Count      int64   `json:"count"`
	AvgPrice   float64 `json:"avg_price"`
	TotalValue float64 `json:"total_value"`
}

type RevenueCategoryStat struct {
	Category   string  `json:"category"`
	OrderCount int64   `json:"order_count"`
	Quantity   int64   `json:"quantity"`
	Revenue    float64 `json:"revenue"`
}

type RecentOrder struct {
	ID              uuid.UUID `json:"id"`
	Provider        string    `json:"provider"`
	ProviderOrderID int64     `json:"provider_order_id"`
	Status          string    `json:"status"`
	TotalPrice      float64   `json:"total_price"`
	ItemCount       int64     `json:"item_count"`
	CreatedAt       time.Time `json:"created_at"`
}

type TopProduct struct {
	ID            uuid.UUID `json:"id"`
	Name          string    `json:"name"`
	Provider      string    `json:"provider"`
	Category      string    `json:"category"`
	Price         float64   `json:"price"`
	Availability  bool      `json:"availability"`
	Rating        *float64  `json:"rating"`
	Discount      *float64  `json:"discount"`
	OrderCount    int64     `json:"order_count"`
	TotalQuantity int64     `json:"total_quantity"`
	Revenue       float64   `json:"revenue"`
}

type ProductFilter struct {
	utils.PaginationParams
	Available *bool
}

var productSortFields = []string{"name", "price", "rating", "category", "created_at", "synced_at"}

// DashboardService answers read-only aggregate queries over synced data.
type DashboardService struct {
	db   *gorm.DB
	runs *repositories.SyncRunRepository
	log  logrus.FieldLogger
	now  func() time.Time
}

func NewDashboardService(db *gorm.DB, log logrus.FieldLogger) *DashboardService {
	return &DashboardService{
		db:   db,
		runs: repositories.NewSyncRunRepository(db),
		log:  log.WithField("operation", "dashboard-queries"),
		now:  func() time.Time { return time.Now().UTC() },
	}
}

// BuildTrend compares two windows. Changes within half a percent read as neutral.
func BuildTrend(current, previous float64) Trend {
	if previous == 0 && current == 0 {
		return Trend{Value: 0, Direction: TrendNeutral}
	}
	if previous == 0 {
		return Trend{Value: 100, Direction: TrendUp}
	}

	pct := (current - previous) / previous * 100
	rounded := int(math.Round(math.Abs(pct)))
	switch {
	case pct > 0.5:
		return Trend{Value: rounded, Direction: TrendUp}
	case pct < -0.5:
		return Trend{Value: rounded, Direction: TrendDown}
	default:
		return Trend{Value: 0, Direction: TrendNeutral}
	}
}

type windowStats struct {
	products  int64
	orders    int64
	revenue   float64
	providers int64
}

// GetMetricCards returns headline totals and trends. Without a range the
// trend compares the last seven days with the seven before.
func (s *DashboardService) GetMetricCards(ctx context.Context, rng *DateRange) (*MetricCards, error) {
	to := s.now()
	from := to.Add(-DefaultTrendWindow)
	if rng != nil {
		from, to = rng.From, rng.To
	}
	previous := DateRange{From: from.Add(-to.Sub(from)), To: from}
	current := DateRange{From: from, To: to}

	cards := &MetricCards{DateRange: rng}
	var cur, prev windowStats

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return s.db.WithContext(gctx).Model(&models.Product{}).Count(&cards.TotalProducts).Error
	})
	g.Go(func() error {
		return s.db.WithContext(gctx).Model(&models.Product{}).Distinct("provider").Count(&cards.TotalProviders).Error
	})
	g.Go(func() error {
		return s.orderQuery(gctx, rng).Count(&cards.TotalOrders).Error
	})
	g.Go(func() error {
		var err error
		cards.TotalRevenue, err = s.completedRevenue(s.orderQuery(gctx, rng))
		return err
	})
	g.Go(func() error {
		var err error
		cards.LatestSyncRun, err = s.runs.FindLatest(gctx, "")
		return err
	})
	g.Go(func() error {
		var err error
		cur, err = s.windowStats(gctx, current)
		return err
	})
	g.Go(func() error {
		var err error
		prev, err = s.windowStats(gctx, previous)
		return err
	})
	if err := g.Wait(); err != nil {
		s.log.WithError(err).Error("Failed to fetch metric cards")
		return nil, fmt.Errorf("failed to fetch metric cards: %w", err)
	}

	cards.Trends = DashboardTrends{
		Products:  BuildTrend(float64(cur.products), float64(prev.products)),
		Orders:    BuildTrend(float64(cur.orders), float64(prev.orders)),
		Revenue:   BuildTrend(cur.revenue, prev.revenue),
		Providers: BuildTrend(float64(cur.providers), float64(prev.providers)),
	}
	return cards, nil
}

func (s *DashboardService) orderQuery(ctx context.Context, rng *DateRange) *gorm.DB {
	query := s.db.WithContext(ctx).Model(&models.Order{})
	if rng != nil {
		query = query.Where("created_at BETWEEN ? AND ?", rng.From, rng.To)
	}
	return query
}

func (s *DashboardService) completedRevenue(query *gorm.DB) (float64, error) {
	var revenue float64
	err := query.Where("status = ?", models.OrderStatusCompleted).
		Select("COALESCE(SUM(total_price), 0)").Scan(&revenue).Error
	return revenue, err
}

func (s *DashboardService) windowStats(ctx context.Context, w DateRange) (windowStats, error) {
	var out windowStats
	inWindow := func(model interface{}) *gorm.DB {
		return s.db.WithContext(ctx).Model(model).Where("created_at >= ? AND created_at <= ?", w.From, w.To)
	}

	if err := inWindow(&models.Product{}).Count(&out.products).Error; err != nil {
		return out, err
	}
	if err := inWindow(&models.Product{}).Distinct("provider").Count(&out.providers).Error; err != nil {
		return out, err
	}
	if err := inWindow(&models.Order{}).Count(&out.orders).Error; err != nil {
		return out, err
	}
	revenue, err := s.completedRevenue(inWindow(&models.Order{}))
	if err != nil {
		return out, err
	}
	out.revenue = revenue
	return out, nil
}

func (s *DashboardService) GetOrdersByStatus(ctx context.Context) ([]OrderStatusStat, error) {
	stats := []OrderStatusStat{}
	err := s.db.WithContext(ctx).Model(&models.Order{}).
		Select("status, COUNT(id) AS count, COALESCE(SUM(total_price), 0) AS total_revenue").
		Group("status").
		Order("count DESC").
		Scan(&stats).Error
	if err != nil {
		return nil, fmt.Errorf("failed to fetch orders by status: %w", err)
	}
	return stats, nil
}

func (s *DashboardService) GetProductsByCategory(ctx context.Context) ([]ProductCategoryStat, error) {
	category := fmt.Sprintf(categoryExpr, "category")
	stats := []ProductCategoryStat{}
	err := s.db.WithContext(ctx).Model(&models.Product{}).
		Select(category + " AS category, COUNT(id) AS count, COALESCE(AVG(price), 0) AS avg_price, COALESCE(SUM(price), 0) AS total_value").
		Group(category).
		Order("count DESC").
		Scan(&stats).Error
	if err != nil {
		return nil, fmt.Errorf("failed to fetch products by category: %w", err)
	}
	return stats, nil
}

// GetRevenueByCategory sums item revenue of completed orders per product
// category, most ordered first.
func (s *DashboardService) GetRevenueByCategory(ctx context.Context) ([]RevenueCategoryStat, error) {
	category := fmt.Sprintf(categoryExpr, "products.category")
	stats := []RevenueCategoryStat{}
	err := s.db.WithContext(ctx).Model(&models.OrderItem{}).
		Select(category+" AS category, COUNT(order_items.id) AS order_count, "+
			"COALESCE(SUM(order_items.quantity), 0) AS quantity, "+
			"COALESCE(SUM(order_items.quantity * order_items.unit_price_snapshot), 0) AS revenue").
		Joins("JOIN orders ON orders.id = order_items.order_id").
		Joins("JOIN products ON products.id = order_items.product_id").
		Where("orders.status = ?", models.OrderStatusCompleted).
		Group(category).
		Order("order_count DESC").
		Scan(&stats).Error
	if err != nil {
		return nil, fmt.Errorf("failed to fetch revenue by category: %w", err)
	}
	return stats, nil
}

func (s *DashboardService) GetRecentOrders(ctx context.Context, limit int) ([]RecentOrder, error) {
	limit = clampLimit(limit)

	var orders []models.Order
	if err := s.db.WithContext(ctx).Order("created_at DESC").Limit(limit).Find(&orders).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch recent orders: %w", err)
	}
	if len(orders) == 0 {
		return []RecentOrder{}, nil
	}

	ids := make([]uuid.UUID, len(orders))
	for i, o := range orders {
		ids[i] = o.ID
	}
	var counts []struct {
		OrderID uuid.UUID
		Count   int64
	}
	err := s.db.WithContext(ctx).Model(&models.OrderItem{}).
		Select("order_id, COUNT(id) AS count").
		Where("order_id IN ?", ids).
		Group("order_id").
		Scan(&counts).Error
	if err != nil {
		return nil, fmt.Errorf("failed to count order items: %w", err)
	}
	itemCounts := make(map[uuid.UUID]int64, len(counts))
	for _, c := range counts {
		itemCounts[c.OrderID] = c.Count
	}

	out := make([]RecentOrder, len(orders))
	for i, o := range orders {
		out[i] = RecentOrder{
			ID:              o.ID,
			Provider:        o.Provider,
			ProviderOrderID: o.ProviderOrderID,
			Status:          o.Status,
			TotalPrice:      o.TotalPrice,
			ItemCount:       itemCounts[o.ID],
			CreatedAt:       o.CreatedAt,
		}
	}
	return out, nil
}

// GetTopProducts ranks products by how many completed order lines carry them.
func (s *DashboardService) GetTopProducts(ctx context.Context, limit int) ([]TopProduct, error) {
	limit = clampLimit(limit)

	var stats []struct {
		ProductID     uuid.UUID
		OrderCount    int64
		TotalQuantity int64
		Revenue       float64
	}
	err := s.db.WithContext(ctx).Model(&models.OrderItem{}).
		Select("order_items.product_id, COUNT(order_items.id) AS order_count, " +
			"COALESCE(SUM(order_items.quantity), 0) AS total_quantity, " +
			"COALESCE(SUM(order_items.quantity * order_items.unit_price_snapshot), 0) AS revenue").
		Joins("JOIN orders ON orders.id = order_items.order_id").
		Where("orders.status = ?", models.OrderStatusCompleted).
		Group("order_items.product_id").
		Order("order_count DESC").
		Limit(limit).
		Scan(&stats).Error
	if err != nil {
		return nil, fmt.Errorf("failed to fetch top products: %w", err)
	}
	if len(stats) == 0 {
		return []TopProduct{}, nil
	}

	ids := make([]uuid.UUID, len(stats))
	for i, st := range stats {
		ids[i] = st.ProductID
	}
	var products []models.Product
	if err := s.db.WithContext(ctx).Where("id IN ?", ids).Find(&products).Error; err != nil {
		return nil, fmt.Errorf("failed to load top products: %w", err)
	}
	byID := make(map[uuid.UUID]models.Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}

	out := make([]TopProduct, 0, len(stats))
	for _, st := range stats {
		p, ok := byID[st.ProductID]
		if !ok {
			continue
		}
		category := p.Category
		if category == "" {
			category = models.Uncategorized
		}
		out = append(out, TopProduct{
			ID:            p.ID,
			Name:          p.Name,
			Provider:      p.Provider,
			Category:      category,
			Price:         p.Price,
			Availability:  p.Availability,
			Rating:        p.Rating,
			Discount:      p.Discount,
			OrderCount:    st.OrderCount,
			TotalQuantity: st.TotalQuantity,
			Revenue:       st.Revenue,
		})
	}
	return out, nil
}

func (s *DashboardService) GetLatestSyncRun(ctx context.Context) (*models.SyncRun, error) {
	return s.runs.FindLatest(ctx, "")
}

// GetRecentSyncRuns lists the newest ledger rows of any provider.
func (s *DashboardService) GetRecentSyncRuns(ctx context.Context, limit int) ([]models.SyncRun, error) {
	return s.runs.FindRecent(ctx, clampLimit(limit))
}

// ListProducts pages through stored products with optional filters.
func (s *DashboardService) ListProducts(ctx context.Context, filter ProductFilter) (utils.PaginationResult, error) {
	query := s.db.WithContext(ctx).Model(&models.Product{})
	if filter.Provider != "" {
		query = query.Where("provider = ?", filter.Provider)
	}
	if filter.Category != "" {
		if filter.Category == models.Uncategorized {
			query = query.Where("category = ''")
		} else {
			query = query.Where("category = ?", filter.Category)
		}
	}
	if filter.Search != "" {
		query = query.Where("LOWER(name) LIKE ?", "%"+strings.ToLower(filter.Search)+"%")
	}
	if filter.Available != nil {
		query = query.Where("availability = ?", *filter.Available)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return utils.PaginationResult{}, fmt.Errorf("failed to count products: %w", err)
	}

	products := []models.Product{}
	query = utils.ApplySort(query, filter.PaginationParams, productSortFields)
	if err := utils.ApplyPagination(query, filter.PaginationParams).Find(&products).Error; err != nil {
		return utils.PaginationResult{}, fmt.Errorf("failed to list products: %w", err)
	}
	return utils.CreatePaginationResult(products, total, filter.PaginationParams), nil
}

func (s *DashboardService) GetProduct(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	var product models.Product
	err := s.db.WithContext(ctx).Preload("Reviews").First(&product, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &product, nil
}

func clampLimit(limit int) int {
	if limit < 1 {
		return DefaultDashboardLimit
	}
	return min(limit, MaxDashboardLimit)
}
