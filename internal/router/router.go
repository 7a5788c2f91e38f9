// internal/router/router.go
package router

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
	"gorm.io/gorm"

	"github.com/javajoker/storefront-analytics/internal/config"
	"github.com/javajoker/storefront-analytics/internal/handlers"
	"github.com/javajoker/storefront-analytics/internal/middleware"
	"github.com/javajoker/storefront-analytics/internal/services"
	"github.com/javajoker/storefront-analytics/internal/utils"
)

// Dependencies are the long-lived components the HTTP surface reads from.
// RateLimits and Breakers may be nil.
type Dependencies struct {
	DB         *gorm.DB
	Config     *config.Config
	Sync       services.SyncTrigger
	RateLimits services.RateLimitReporter
	Breakers   services.BreakerReporter
	Log        logrus.FieldLogger
}

// Initialize builds the engine. ctx bounds the background cleanup of the
// per-IP rate limiters.
func Initialize(ctx context.Context, deps Dependencies) *gin.Engine {
	cfg := deps.Config

	// Initialize services
	authService := services.NewAuthService(deps.DB, cfg.JWT, deps.Log)
	dashboardService := services.NewDashboardService(deps.DB, deps.Log)
	adminService := services.NewAdminService(deps.DB, deps.Sync, cfg.Providers, deps.RateLimits, deps.Breakers, deps.Log)

	// Initialize handlers
	authHandler := handlers.NewAuthHandler(authService)
	dashboardHandler := handlers.NewDashboardHandler(dashboardService)
	adminHandler := handlers.NewAdminHandler(adminService)
	healthHandler := handlers.NewHealthHandler(deps.DB)

	// Set JWT secret
	utils.SetJWTSecret(cfg.JWT.SecretKey)

	limits := cfg.Server.RateLimit
	generalLimit := middleware.NewRateLimiter(ctx, rate.Limit(limits.RequestsPerSecond), limits.Burst)
	authLimit := middleware.NewRateLimiter(ctx, rate.Every(time.Minute/time.Duration(max(limits.AuthRequestsPerMin, 1))), limits.AuthBurst)

	r := gin.New()

	// Global middleware
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger(deps.Log))
	r.Use(middleware.Metrics())
	r.Use(middleware.CORS(cfg.CORS))
	r.Use(middleware.I18nMiddleware())

	r.GET("/health", healthHandler.Check)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := r.Group("/v1")
	v1.Use(generalLimit.Middleware())
	{
		auth := v1.Group("/auth")
		auth.Use(authLimit.Middleware())
		{
			auth.POST("/register", authHandler.Register)
			auth.POST("/login", authHandler.Login)
			auth.GET("/me", middleware.AuthRequired(), authHandler.Me)
		}

		dashboard := v1.Group("/dashboard")
		dashboard.Use(middleware.AuthRequired())
		{
			dashboard.GET("/metrics", dashboardHandler.GetMetrics)
			dashboard.GET("/orders-by-status", dashboardHandler.GetOrdersByStatus)
			dashboard.GET("/products-by-category", dashboardHandler.GetProductsByCategory)
			dashboard.GET("/revenue-by-category", dashboardHandler.GetRevenueByCategory)
			dashboard.GET("/recent-orders", dashboardHandler.GetRecentOrders)
			dashboard.GET("/top-products", dashboardHandler.GetTopProducts)
			dashboard.GET("/sync-status", dashboardHandler.GetSyncStatus)
		}

		products := v1.Group("/products")
		products.Use(middleware.AuthRequired())
		{
			products.GET("", dashboardHandler.ListProducts)
			products.GET("/:id", dashboardHandler.GetProduct)
		}

		admin := v1.Group("/admin")
		admin.Use(middleware.AuthRequired(), middleware.AdminRequired(), middleware.AuditLog(adminService, deps.Log))
		{
			admin.POST("/sync-now", adminHandler.SyncNow)
			admin.GET("/sync-status", adminHandler.GetSyncStatus)
			admin.GET("/sync-runs", adminHandler.ListSyncRuns)
			admin.GET("/sync-runs/:id", adminHandler.GetSyncRun)
			admin.GET("/providers", adminHandler.GetProviders)
			admin.GET("/audit-logs", adminHandler.ListAuditLogs)
		}
	}

	return r
}
