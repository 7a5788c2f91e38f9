package syncer

import (
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/javajoker/storefront-analytics/internal/config"
	"github.com/javajoker/storefront-analytics/internal/providers"
	"github.com/javajoker/storefront-analytics/internal/variation"
)

func fixedEngine() *variation.Engine {
	return variation.NewWithSource(func() float64 { return 0.5 })
}

func float(v float64) *float64 { return &v }

func TestBuildProductsKeepsLastDuplicate(t *testing.T) {
	provider := config.ProviderConfig{Name: "shop", Variations: config.DefaultVariations()}
	now := time.Now().UTC()

	rows := BuildProducts(provider, []providers.ProductPayload{
		{ProductID: 1, Name: "Old", Price: 5},
		{ProductID: 2, Name: "Lamp", Price: 30, Discount: float(0), Reviews: []providers.ReviewPayload{}},
		{ProductID: 1, Name: "New", Price: 7, Rating: float(4)},
	}, fixedEngine(), now)

	require.Len(t, rows, 2)
	assert.Equal(t, "Lamp", rows[0].Name)
	assert.Equal(t, "New", rows[1].Name)
	assert.Equal(t, 7.0, rows[1].Price)
	assert.Equal(t, "shop", rows[1].Provider)
	assert.Equal(t, now, rows[1].SyncedAt)

	require.NotNil(t, rows[0].Discount)
	assert.Zero(t, *rows[0].Discount)
	assert.Nil(t, rows[0].Rating)
	assert.NotNil(t, rows[0].Reviews, "an empty review list clears stored reviews")
	assert.Empty(t, rows[0].Reviews)

	assert.Nil(t, rows[1].Discount)
	require.NotNil(t, rows[1].Rating)
	assert.Equal(t, 4.0, *rows[1].Rating)
	assert.Nil(t, rows[1].Reviews, "missing reviews leave stored reviews alone")
}

func TestBuildOrdersVariesTotal(t *testing.T) {
	provider := config.ProviderConfig{Name: "shop", Variations: config.Variations{TotalPrice: 0.5}}
	engine := variation.NewWithSource(func() float64 { return 0 })

	rows := BuildOrders(provider, []providers.OrderPayload{
		{OrderID: 9, UserID: 3, Status: "pending", TotalPrice: 80},
	}, engine, time.Now().UTC())

	require.Len(t, rows, 1)
	assert.Equal(t, int64(9), rows[0].ProviderOrderID)
	assert.Equal(t, int64(3), rows[0].ProviderUserID)
	assert.Equal(t, "pending", rows[0].Status)
	assert.Equal(t, 40.0, rows[0].TotalPrice)
}

func TestNewBackOff(t *testing.T) {
	cfg := config.SyncConfig{RetryMinDelay: time.Second, RetryMaxDelay: 5 * time.Second}
	b := NewBackOff(cfg)

	for _, want := range []time.Duration{time.Second, 2 * time.Second, 4 * time.Second, 5 * time.Second, 5 * time.Second} {
		assert.Equal(t, want, b.NextBackOff())
	}

	b.Reset()
	assert.Equal(t, time.Second, b.NextBackOff())
}

func TestRetryErrorClassification(t *testing.T) {
	var permanent *backoff.PermanentError
	assert.ErrorAs(t, retryError(&providers.FetchError{Provider: "shop", Resource: "products", StatusCode: http.StatusNotFound}), &permanent)
	assert.ErrorAs(t, retryError(errors.New("boom")), &permanent)

	transient := &providers.FetchError{Provider: "shop", Resource: "products", StatusCode: http.StatusBadGateway}
	assert.Same(t, transient, retryError(transient))

	var after *backoff.RetryAfterError
	require.ErrorAs(t, retryError(&providers.RateLimitError{Provider: "shop", Wait: 3 * time.Second}), &after)
	assert.Equal(t, 3*time.Second, after.Duration)
}
