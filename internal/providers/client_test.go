package providers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/javajoker/storefront-analytics/internal/config"
	"github.com/javajoker/storefront-analytics/internal/testutil"
)

const productsBody = `[
	{"product_id": 1, "name": "Mug", "price": 10, "discount": 2, "availability": true, "category": "kitchen", "rating": 4.5,
	 "reviews": [{"user_id": 7, "rating": 5, "comment": "great"}]},
	{"product_id": 2, "name": "Lamp", "price": 25.5, "availability": false},
	{"product_id": 0, "name": "Broken", "price": 1},
	{"product_id": "x"}
]`

const ordersBody = `[
	{"order_id": 100, "user_id": 7, "items": [{"product_id": 1, "quantity": 2}, {"product_id": 2, "quantity": 3}], "total_price": 95, "status": "completed"},
	{"order_id": 101, "items": [], "total_price": 0}
]`

type recordingArchiver struct {
	mu    sync.Mutex
	calls []string
}

func (a *recordingArchiver) Archive(_ context.Context, provider, resource string, _ time.Time, body []byte) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls = append(a.calls, provider+"/"+resource)
	return nil
}

func testProvider(baseURL string) config.ProviderConfig {
	return config.ProviderConfig{
		Name:        "shop",
		ProductsURL: baseURL + "/products",
		OrdersURL:   baseURL + "/orders",
		Variations:  config.DefaultVariations(),
	}
}

func TestFetchProductsDecodesAndDropsInvalid(t *testing.T) {
	var gotAuth, gotContentType string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotContentType = r.Header.Get("Content-Type")
		w.Write([]byte(productsBody))
	}))
	defer srv.Close()

	archiver := &recordingArchiver{}
	client := NewClient(srv.Client(), nil, archiver, testutil.NullLogger())
	provider := testProvider(srv.URL)
	provider.AuthHeader = "Bearer token"

	result, err := client.FetchProducts(context.Background(), provider)
	require.NoError(t, err)

	require.Len(t, result.Records, 2)
	assert.Equal(t, 2, result.Invalid)
	assert.Equal(t, "Bearer token", gotAuth)
	assert.Equal(t, "application/json", gotContentType)

	mug := result.Records[0]
	assert.Equal(t, int64(1), mug.ProductID)
	require.NotNil(t, mug.Discount)
	assert.Equal(t, 2.0, *mug.Discount)
	require.Len(t, mug.Reviews, 1)
	assert.Equal(t, "great", mug.Reviews[0].Comment)

	lamp := result.Records[1]
	assert.Nil(t, lamp.Discount)
	assert.Nil(t, lamp.Reviews)
	assert.False(t, lamp.Availability)

	assert.Equal(t, []string{"shop/products"}, archiver.calls)
}

func TestFetchOrdersRequiresStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(ordersBody))
	}))
	defer srv.Close()

	client := NewClient(srv.Client(), nil, nil, testutil.NullLogger())

	result, err := client.FetchOrders(context.Background(), testProvider(srv.URL))
	require.NoError(t, err)

	require.Len(t, result.Records, 1)
	assert.Equal(t, 1, result.Invalid)
	assert.Len(t, result.Records[0].Items, 2)
}

func TestFetchNon2xxReturnsFetchError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	client := NewClient(srv.Client(), nil, nil, testutil.NullLogger())

	_, err := client.FetchProducts(context.Background(), testProvider(srv.URL))

	var fe *FetchError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, http.StatusServiceUnavailable, fe.StatusCode)
	assert.Equal(t, "shop", fe.Provider)
	assert.Contains(t, err.Error(), "503")
	assert.True(t, IsRetryable(err))
}

func TestFetchClientErrorIsNotRetryable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	client := NewClient(srv.Client(), nil, nil, testutil.NullLogger())

	_, err := client.FetchOrders(context.Background(), testProvider(srv.URL))

	require.Error(t, err)
	assert.False(t, IsRetryable(err))
}

func TestFetchMalformedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"not": "an array"}`))
	}))
	defer srv.Close()

	client := NewClient(srv.Client(), nil, nil, testutil.NullLogger())

	_, err := client.FetchProducts(context.Background(), testProvider(srv.URL))

	require.ErrorIs(t, err, ErrMalformedPayload)
	assert.False(t, IsRetryable(err))
}

func TestFetchOversizedBodyIsRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"product_id": 1, "name": "Mug", "price": 10}]`))
	}))
	defer srv.Close()

	archiver := &recordingArchiver{}
	client := NewClient(srv.Client(), nil, archiver, testutil.NullLogger())
	client.maxBody = 16

	_, err := client.FetchProducts(context.Background(), testProvider(srv.URL))

	require.ErrorIs(t, err, ErrPayloadTooLarge)
	assert.NotErrorIs(t, err, ErrMalformedPayload)
	var fe *FetchError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, ResourceProducts, fe.Resource)
	assert.False(t, IsRetryable(err))
	assert.Empty(t, archiver.calls, "truncated bodies are not archived")
}

func TestFetchBodyAtSizeCapIsAccepted(t *testing.T) {
	body := `[]`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(body))
	}))
	defer srv.Close()

	client := NewClient(srv.Client(), nil, nil, testutil.NullLogger())
	client.maxBody = int64(len(body))

	result, err := client.FetchProducts(context.Background(), testProvider(srv.URL))

	require.NoError(t, err)
	assert.Empty(t, result.Records)
}

func TestFetchNetworkErrorIsRetryable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	client := NewClient(&http.Client{Timeout: time.Second}, nil, nil, testutil.NullLogger())

	_, err := client.FetchProducts(context.Background(), testProvider(url))

	var fe *FetchError
	require.True(t, errors.As(err, &fe))
	assert.Zero(t, fe.StatusCode)
	assert.True(t, IsRetryable(err))
}

func TestFetchHonoursRateLimit(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	limiter := NewRateLimiter(testutil.NullLogger())
	client := NewClient(srv.Client(), limiter, nil, testutil.NullLogger())
	provider := testProvider(srv.URL)
	provider.RateLimit = &config.RateLimit{Requests: 1, Window: time.Minute}

	_, err := client.FetchProducts(context.Background(), provider)
	require.NoError(t, err)

	_, err = client.FetchOrders(context.Background(), provider)
	var rle *RateLimitError
	require.True(t, errors.As(err, &rle))
	assert.True(t, IsRetryable(err))
	assert.Greater(t, RetryAfter(err), time.Duration(0))
	assert.Equal(t, int32(1), calls.Load())
}

type failingFetcher struct {
	calls int
	err   error
}

func (f *failingFetcher) FetchProducts(context.Context, config.ProviderConfig) (*FetchResult[ProductPayload], error) {
	f.calls++
	return nil, f.err
}

func (f *failingFetcher) FetchOrders(context.Context, config.ProviderConfig) (*FetchResult[OrderPayload], error) {
	f.calls++
	return &FetchResult[OrderPayload]{}, nil
}

func TestBreakerOpensAfterRepeatedServerErrors(t *testing.T) {
	next := &failingFetcher{err: &FetchError{Provider: "shop", Resource: ResourceProducts, StatusCode: 500}}
	settings := DefaultBreakerSettings()
	settings.MinRequests = 3
	breaker := NewBreakerClient(next, settings, testutil.NullLogger())
	provider := testProvider("http://shop.test")

	for i := 0; i < 3; i++ {
		_, err := breaker.FetchProducts(context.Background(), provider)
		require.Error(t, err)
	}
	assert.Equal(t, "open", breaker.State("shop"))

	_, err := breaker.FetchProducts(context.Background(), provider)
	require.Error(t, err)
	assert.Equal(t, 3, next.calls, "open circuit must not reach the provider")
	assert.False(t, IsRetryable(err))
}

func TestBreakerIgnoresClientErrors(t *testing.T) {
	next := &failingFetcher{err: &FetchError{Provider: "shop", Resource: ResourceProducts, StatusCode: 404}}
	settings := DefaultBreakerSettings()
	settings.MinRequests = 2
	breaker := NewBreakerClient(next, settings, testutil.NullLogger())
	provider := testProvider("http://shop.test")

	for i := 0; i < 4; i++ {
		_, _ = breaker.FetchProducts(context.Background(), provider)
	}

	assert.Equal(t, "closed", breaker.State("shop"))
	assert.Equal(t, 4, next.calls)

	result, err := breaker.FetchOrders(context.Background(), provider)
	require.NoError(t, err)
	assert.NotNil(t, result)
}
