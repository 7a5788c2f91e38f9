// internal/handlers/dashboard.go
package handlers

import (
	"errors"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/javajoker/storefront-analytics/internal/i18n"
	"github.com/javajoker/storefront-analytics/internal/services"
	"github.com/javajoker/storefront-analytics/internal/utils"
)

const dateLayout = "2006-01-02"

type DashboardHandler struct {
	dashboardService *services.DashboardService
}

func NewDashboardHandler(dashboardService *services.DashboardService) *DashboardHandler {
	return &DashboardHandler{
		dashboardService: dashboardService,
	}
}

// GET /v1/dashboard/metrics?from=2026-03-01&to=2026-03-31
func (h *DashboardHandler) GetMetrics(c *gin.Context) {
	rng, err := parseDateRange(c)
	if err != nil {
		utils.BadRequestResponse(c, i18n.T(utils.GetLangFromContext(c), i18n.KeyValidationInvalid, "date range"), err.Error())
		return
	}

	cards, err := h.dashboardService.GetMetricCards(c.Request.Context(), rng)
	if err != nil {
		utils.InternalErrorResponse(c, "")
		return
	}
	utils.SuccessResponse(c, cards)
}

// GET /v1/dashboard/orders-by-status
func (h *DashboardHandler) GetOrdersByStatus(c *gin.Context) {
	stats, err := h.dashboardService.GetOrdersByStatus(c.Request.Context())
	if err != nil {
		utils.InternalErrorResponse(c, "")
		return
	}
	utils.SuccessResponse(c, stats)
}

// GET /v1/dashboard/products-by-category
func (h *DashboardHandler) GetProductsByCategory(c *gin.Context) {
	stats, err := h.dashboardService.GetProductsByCategory(c.Request.Context())
	if err != nil {
		utils.InternalErrorResponse(c, "")
		return
	}
	utils.SuccessResponse(c, stats)
}

// GET /v1/dashboard/revenue-by-category
func (h *DashboardHandler) GetRevenueByCategory(c *gin.Context) {
	stats, err := h.dashboardService.GetRevenueByCategory(c.Request.Context())
	if err != nil {
		utils.InternalErrorResponse(c, "")
		return
	}
	utils.SuccessResponse(c, stats)
}

// GET /v1/dashboard/recent-orders?limit=5
func (h *DashboardHandler) GetRecentOrders(c *gin.Context) {
	orders, err := h.dashboardService.GetRecentOrders(c.Request.Context(), queryLimit(c))
	if err != nil {
		utils.InternalErrorResponse(c, "")
		return
	}
	utils.SuccessResponse(c, orders)
}

// GET /v1/dashboard/top-products?limit=5
func (h *DashboardHandler) GetTopProducts(c *gin.Context) {
	products, err := h.dashboardService.GetTopProducts(c.Request.Context(), queryLimit(c))
	if err != nil {
		utils.InternalErrorResponse(c, "")
		return
	}
	utils.SuccessResponse(c, products)
}

// GET /v1/dashboard/sync-status?limit=5
func (h *DashboardHandler) GetSyncStatus(c *gin.Context) {
	ctx := c.Request.Context()
	run, err := h.dashboardService.GetLatestSyncRun(ctx)
	if err != nil {
		utils.InternalErrorResponse(c, "")
		return
	}
	recent, err := h.dashboardService.GetRecentSyncRuns(ctx, queryLimit(c))
	if err != nil {
		utils.InternalErrorResponse(c, "")
		return
	}
	utils.SuccessResponse(c, gin.H{
		"latest_sync_run": run,
		"recent_runs":     recent,
	})
}

// GET /v1/products
func (h *DashboardHandler) ListProducts(c *gin.Context) {
	filter := services.ProductFilter{PaginationParams: utils.GetPaginationParams(c)}
	if v := c.Query("available"); v != "" {
		available, err := strconv.ParseBool(v)
		if err != nil {
			utils.BadRequestResponse(c, i18n.T(utils.GetLangFromContext(c), i18n.KeyValidationInvalid, "available"), nil)
			return
		}
		filter.Available = &available
	}

	result, err := h.dashboardService.ListProducts(c.Request.Context(), filter)
	if err != nil {
		utils.InternalErrorResponse(c, "")
		return
	}
	utils.PaginatedResponse(c, result)
}

// GET /v1/products/:id
func (h *DashboardHandler) GetProduct(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.BadRequestResponse(c, i18n.T(utils.GetLangFromContext(c), i18n.KeyValidationInvalid, "product id"), nil)
		return
	}

	product, err := h.dashboardService.GetProduct(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.NotFoundResponse(c, "product")
			return
		}
		utils.InternalErrorResponse(c, "")
		return
	}
	utils.SuccessResponse(c, product)
}

// parseDateRange reads optional from/to dates; to is inclusive of its whole day.
func parseDateRange(c *gin.Context) (*services.DateRange, error) {
	fromStr, toStr := c.Query("from"), c.Query("to")
	if fromStr == "" && toStr == "" {
		return nil, nil
	}
	if fromStr == "" || toStr == "" {
		return nil, errors.New("both from and to are required")
	}

	from, err := time.Parse(dateLayout, fromStr)
	if err != nil {
		return nil, err
	}
	to, err := time.Parse(dateLayout, toStr)
	if err != nil {
		return nil, err
	}
	to = to.Add(24*time.Hour - time.Nanosecond)
	if to.Before(from) {
		return nil, errors.New("from must not be after to")
	}
	return &services.DateRange{From: from, To: to}, nil
}

func queryLimit(c *gin.Context) int {
	limit, _ := strconv.Atoi(c.Query("limit"))
	return limit
}
