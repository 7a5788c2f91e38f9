// internal/handlers/health.go
package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/javajoker/storefront-analytics/internal/database"
	"github.com/javajoker/storefront-analytics/internal/i18n"
	"github.com/javajoker/storefront-analytics/internal/repositories"
	"github.com/javajoker/storefront-analytics/internal/utils"
)

type HealthHandler struct {
	db   *gorm.DB
	runs *repositories.SyncRunRepository
}

func NewHealthHandler(db *gorm.DB) *HealthHandler {
	return &HealthHandler{
		db:   db,
		runs: repositories.NewSyncRunRepository(db),
	}
}

// GET /health
//
// A failed or running sync never makes the service unhealthy; only an
// unreachable database does.
func (h *HealthHandler) Check(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()

	if err := database.Ping(h.db.WithContext(ctx)); err != nil {
		utils.ServiceUnavailableResponse(c, i18n.T(utils.GetLangFromContext(c), i18n.KeyHealthDatabaseDown), gin.H{
			"status":   "unhealthy",
			"database": "down",
		})
		return
	}

	latest, err := h.runs.FindLatest(ctx, "")
	if err != nil {
		utils.ServiceUnavailableResponse(c, err.Error(), gin.H{"status": "unhealthy"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":          "ok",
		"database":        "up",
		"latest_sync_run": latest,
		"time":            time.Now().UTC(),
	})
}
