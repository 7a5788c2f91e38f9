package utils

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestJWTRoundTrip(t *testing.T) {
	SetJWTSecret("test-secret")
	id := uuid.New()

	token, err := GenerateJWT(id, "ops@example.com", "admin", 1)
	require.NoError(t, err)

	claims, err := ValidateJWT(token)
	require.NoError(t, err)
	assert.Equal(t, id.String(), claims.UserID)
	assert.Equal(t, "ops@example.com", claims.Email)
	assert.Equal(t, "admin", claims.Role)
}

func TestJWTRejectsForeignSecretAndExpiry(t *testing.T) {
	SetJWTSecret("one")
	token, err := GenerateJWT(uuid.New(), "a@example.com", "user", 1)
	require.NoError(t, err)

	SetJWTSecret("two")
	_, err = ValidateJWT(token)
	assert.Error(t, err)

	expired, err := GenerateJWT(uuid.New(), "a@example.com", "user", -1)
	require.NoError(t, err)
	_, err = ValidateJWT(expired)
	assert.Error(t, err)
}

func TestGetPaginationParamsClamps(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/?page=-2&limit=500&order=sideways&provider=shop", nil)

	params := GetPaginationParams(c)

	assert.Equal(t, 1, params.Page)
	assert.Equal(t, DefaultPageLimit, params.Limit)
	assert.Equal(t, "desc", params.Order)
	assert.Equal(t, "shop", params.Provider)
	assert.Equal(t, 0, params.Offset())
}

func TestCreatePaginationResult(t *testing.T) {
	result := CreatePaginationResult([]int{1}, 41, PaginationParams{Page: 3, Limit: 20})

	assert.Equal(t, 3, result.TotalPages)
	assert.Equal(t, int64(41), result.Total)
}

func TestGetValidationErrorsUsesJSONNames(t *testing.T) {
	type request struct {
		Email    string `json:"email" validate:"required,email"`
		Password string `json:"password" validate:"min=8"`
	}

	errs := GetValidationErrors(ValidateStruct(request{Email: "nope", Password: "short"}))

	require.Len(t, errs, 2)
	assert.Equal(t, "email", errs[0].Field)
	assert.Equal(t, "Invalid email format", errs[0].Message)
	assert.Equal(t, "password", errs[1].Field)
	assert.Equal(t, "min", errs[1].Tag)
}
