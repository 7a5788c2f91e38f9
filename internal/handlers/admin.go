// internal/handlers/admin.go
package handlers

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/javajoker/storefront-analytics/internal/i18n"
	"github.com/javajoker/storefront-analytics/internal/models"
	"github.com/javajoker/storefront-analytics/internal/repositories"
	"github.com/javajoker/storefront-analytics/internal/services"
	"github.com/javajoker/storefront-analytics/internal/utils"
)

type AdminHandler struct {
	adminService *services.AdminService
}

func NewAdminHandler(adminService *services.AdminService) *AdminHandler {
	return &AdminHandler{
		adminService: adminService,
	}
}

// POST /v1/admin/sync-now
//
// The sync runs in the background; the response only acknowledges it.
func (h *AdminHandler) SyncNow(c *gin.Context) {
	lang := utils.GetLangFromContext(c)
	adminID, _ := utils.GetUserIDFromContext(c)

	result := h.adminService.TriggerSync(adminID)
	message := i18n.T(lang, i18n.KeySyncStarted)
	if result.AlreadyRunning {
		message = i18n.T(lang, i18n.KeySyncAlreadyRunning)
	}

	utils.AcceptedResponse(c, gin.H{
		"message":         message,
		"accepted":        result.Accepted,
		"already_running": result.AlreadyRunning,
	})
}

// GET /v1/admin/sync-status
func (h *AdminHandler) GetSyncStatus(c *gin.Context) {
	status, err := h.adminService.GetSyncStatus(c.Request.Context())
	if err != nil {
		utils.InternalErrorResponse(c, "")
		return
	}
	utils.SuccessResponse(c, status)
}

// GET /v1/admin/sync-runs?provider=&status=&page=&limit=
func (h *AdminHandler) ListSyncRuns(c *gin.Context) {
	params := utils.GetPaginationParams(c)
	switch models.SyncStatus(params.Status) {
	case "", models.SyncStatusRunning, models.SyncStatusSuccess, models.SyncStatusFailed:
	default:
		utils.BadRequestResponse(c, i18n.T(utils.GetLangFromContext(c), i18n.KeyValidationInvalid, "status"), nil)
		return
	}

	result, err := h.adminService.ListSyncRuns(c.Request.Context(), params)
	if err != nil {
		utils.InternalErrorResponse(c, "")
		return
	}
	utils.PaginatedResponse(c, result)
}

// GET /v1/admin/sync-runs/:id
func (h *AdminHandler) GetSyncRun(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.BadRequestResponse(c, i18n.T(utils.GetLangFromContext(c), i18n.KeyValidationInvalid, "sync run id"), nil)
		return
	}

	detail, err := h.adminService.GetSyncRun(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, repositories.ErrSyncRunNotFound) {
			utils.NotFoundResponse(c, "sync_run")
			return
		}
		utils.InternalErrorResponse(c, "")
		return
	}
	utils.SuccessResponse(c, detail)
}

// GET /v1/admin/providers
func (h *AdminHandler) GetProviders(c *gin.Context) {
	statuses, err := h.adminService.GetProviders(c.Request.Context())
	if err != nil {
		utils.InternalErrorResponse(c, "")
		return
	}
	utils.SuccessResponse(c, gin.H{"providers": statuses})
}

// GET /v1/admin/audit-logs?search=<action>
func (h *AdminHandler) ListAuditLogs(c *gin.Context) {
	result, err := h.adminService.ListAuditLogs(c.Request.Context(), utils.GetPaginationParams(c))
	if err != nil {
		utils.InternalErrorResponse(c, "")
		return
	}
	utils.PaginatedResponse(c, result)
}
