package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/javajoker/storefront-analytics/internal/config"
	"github.com/javajoker/storefront-analytics/internal/models"
	"github.com/javajoker/storefront-analytics/internal/testutil"
	"github.com/javajoker/storefront-analytics/internal/utils"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type recordedAudits struct {
	entries []*models.AuditLog
}

func (r *recordedAudits) RecordAudit(_ context.Context, entry *models.AuditLog) error {
	r.entries = append(r.entries, entry)
	return nil
}

func protectedRouter() *gin.Engine {
	r := gin.New()
	r.Use(I18nMiddleware())
	authed := r.Group("/", AuthRequired())
	authed.GET("/me", func(c *gin.Context) {
		id, _ := utils.GetUserIDFromContext(c)
		c.String(http.StatusOK, id)
	})
	authed.GET("/admin", AdminRequired(), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})
	return r
}

func bearer(t *testing.T, role models.UserRole) (uuid.UUID, string) {
	t.Helper()
	utils.SetJWTSecret("middleware-secret")
	id := uuid.New()
	token, err := utils.GenerateJWT(id, "u@example.com", string(role), 1)
	require.NoError(t, err)
	return id, "Bearer " + token
}

func serve(r http.Handler, method, path, auth string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAuthRequired(t *testing.T) {
	r := protectedRouter()
	id, token := bearer(t, models.UserRoleUser)

	assert.Equal(t, http.StatusUnauthorized, serve(r, http.MethodGet, "/me", "").Code)
	assert.Equal(t, http.StatusUnauthorized, serve(r, http.MethodGet, "/me", "Token abc").Code)
	assert.Equal(t, http.StatusUnauthorized, serve(r, http.MethodGet, "/me", "Bearer not-a-jwt").Code)

	w := serve(r, http.MethodGet, "/me", token)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, id.String(), w.Body.String())
}

func TestAdminRequired(t *testing.T) {
	r := protectedRouter()
	_, userToken := bearer(t, models.UserRoleUser)
	_, adminToken := bearer(t, models.UserRoleAdmin)

	assert.Equal(t, http.StatusUnauthorized, serve(r, http.MethodGet, "/admin", "").Code)
	assert.Equal(t, http.StatusForbidden, serve(r, http.MethodGet, "/admin", userToken).Code)
	assert.Equal(t, http.StatusNoContent, serve(r, http.MethodGet, "/admin", adminToken).Code)
}

func TestParseLanguage(t *testing.T) {
	assert.Equal(t, "zh_TW", parseLanguage("zh-TW,zh;q=0.9,en;q=0.8"))
	assert.Equal(t, "en", parseLanguage("en-US"))
	assert.Equal(t, "en", parseLanguage(""))
	assert.Equal(t, "en", parseLanguage("fr-FR"))
}

func TestRateLimiterPerIP(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	limiter := NewRateLimiter(ctx, rate.Every(time.Hour), 2)

	r := gin.New()
	r.Use(limiter.Middleware())
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	call := func(ip string) int {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = ip + ":1234"
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w.Code
	}

	assert.Equal(t, http.StatusOK, call("10.0.0.1"))
	assert.Equal(t, http.StatusOK, call("10.0.0.1"))
	assert.Equal(t, http.StatusTooManyRequests, call("10.0.0.1"))
	assert.Equal(t, http.StatusOK, call("10.0.0.2"))

	limiter.evict(time.Now().Add(time.Minute))
	assert.Equal(t, http.StatusOK, call("10.0.0.1"), "evicted visitors start a fresh bucket")
}

func TestAuditLogRecordsMutations(t *testing.T) {
	audits := &recordedAudits{}
	id, token := bearer(t, models.UserRoleAdmin)

	r := gin.New()
	admin := r.Group("/v1/admin", AuthRequired(), AuditLog(audits, testutil.NullLogger()))
	admin.POST("/sync-now", func(c *gin.Context) { c.Status(http.StatusAccepted) })
	admin.GET("/sync-status", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodPost, "/v1/admin/sync-now", strings.NewReader(`{"reason":"manual","password":"x"}`))
	req.Header.Set("Authorization", token)
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(httptest.NewRecorder(), req)
	serve(r, http.MethodGet, "/v1/admin/sync-status", token)

	require.Len(t, audits.entries, 1)
	entry := audits.entries[0]
	assert.Equal(t, "POST /v1/admin/sync-now", entry.Action)
	assert.Equal(t, "sync-now", entry.ResourceType)
	assert.Equal(t, http.StatusAccepted, entry.StatusCode)
	require.NotNil(t, entry.UserID)
	assert.Equal(t, id, *entry.UserID)
	assert.Equal(t, "manual", entry.NewValues["reason"])
	assert.NotContains(t, entry.NewValues, "password")
}

func TestExtractResource(t *testing.T) {
	runID := uuid.New().String()
	assert.Equal(t, "sync-runs", extractResourceType("/v1/admin/sync-runs/"+runID))
	assert.Equal(t, runID, extractResourceID("/v1/admin/sync-runs/"+runID))
	assert.Equal(t, "auth", extractResourceType("/v1/auth/login"))
	assert.Equal(t, "unknown", extractResourceType("/"))
	assert.Empty(t, extractResourceID("/v1/auth/login"))
}

func TestCORSAllowsConfiguredOrigin(t *testing.T) {
	r := gin.New()
	r.Use(CORS(config.CORSConfig{AllowedOrigins: []string{"http://localhost:3000"}}))
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, "http://localhost:3000", w.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "http://evil.example.com")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusForbidden, w.Code)
}
