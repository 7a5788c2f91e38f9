// internal/providers/client.go
package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"

	"github.com/javajoker/storefront-analytics/internal/config"
	"github.com/javajoker/storefront-analytics/internal/metrics"
)

const (
	ResourceProducts = "products"
	ResourceOrders   = "orders"
)

// maxBodySize caps provider responses.
const maxBodySize = 32 << 20

// SnapshotArchiver stores raw provider bodies.
type SnapshotArchiver interface {
	Archive(ctx context.Context, provider, resource string, at time.Time, body []byte) error
}

// Client fetches products and orders from provider HTTP endpoints.
type Client struct {
	http     *http.Client
	limiter  *RateLimiter
	archiver SnapshotArchiver
	validate *validator.Validate
	log      logrus.FieldLogger

	maxBody int64
}

// NewClient builds a Client. limiter and archiver may be nil.
func NewClient(httpClient *http.Client, limiter *RateLimiter, archiver SnapshotArchiver, log logrus.FieldLogger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{
		http:     httpClient,
		limiter:  limiter,
		archiver: archiver,
		validate: validator.New(),
		log:      log.WithField("operation", "provider-fetch"),
		maxBody:  maxBodySize,
	}
}

func (c *Client) FetchProducts(ctx context.Context, provider config.ProviderConfig) (*FetchResult[ProductPayload], error) {
	return fetchResource[ProductPayload](ctx, c, provider, ResourceProducts, provider.ProductsURL)
}

func (c *Client) FetchOrders(ctx context.Context, provider config.ProviderConfig) (*FetchResult[OrderPayload], error) {
	return fetchResource[OrderPayload](ctx, c, provider, ResourceOrders, provider.OrdersURL)
}

func fetchResource[T any](ctx context.Context, c *Client, provider config.ProviderConfig, resource, url string) (*FetchResult[T], error) {
	log := c.log.WithFields(logrus.Fields{
		"provider": provider.Name,
		"resource": resource,
	})

	if c.limiter != nil && provider.RateLimit != nil {
		if err := c.limiter.CheckLimit(provider.Name, provider.RateLimit.Requests, provider.RateLimit.Window); err != nil {
			return nil, err
		}
	}

	body, err := c.get(ctx, provider, resource, url)
	if err != nil {
		log.WithError(err).Error("Provider fetch failed")
		return nil, err
	}

	if c.archiver != nil {
		if err := c.archiver.Archive(ctx, provider.Name, resource, time.Now().UTC(), body); err != nil {
			log.WithError(err).Warn("Failed to archive provider snapshot")
		}
	}

	var raw []json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, &FetchError{
			Provider: provider.Name,
			Resource: resource,
			Err:      fmt.Errorf("%w: %v", ErrMalformedPayload, err),
		}
	}

	result := &FetchResult[T]{Records: make([]T, 0, len(raw))}
	for i, item := range raw {
		var record T
		if err := json.Unmarshal(item, &record); err != nil {
			result.Invalid++
			log.WithError(err).WithField("index", i).Warn("Dropping undecodable record")
			continue
		}
		if err := c.validate.Struct(record); err != nil {
			result.Invalid++
			log.WithError(err).WithField("index", i).Warn("Dropping invalid record")
			continue
		}
		result.Records = append(result.Records, record)
	}

	log.WithFields(logrus.Fields{
		"count":   len(result.Records),
		"invalid": result.Invalid,
	}).Info("Fetched provider records")
	return result, nil
}

func (c *Client) get(ctx context.Context, provider config.ProviderConfig, resource, url string) ([]byte, error) {
	started := time.Now()
	defer func() {
		metrics.RecordProviderFetch(provider.Name, resource, time.Since(started))
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &FetchError{Provider: provider.Name, Resource: resource, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if provider.AuthHeader != "" {
		req.Header.Set("Authorization", provider.AuthHeader)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &FetchError{Provider: provider.Name, Resource: resource, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// Drain so the connection can be reused.
		io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
		return nil, &FetchError{Provider: provider.Name, Resource: resource, StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBody+1))
	if err != nil {
		return nil, &FetchError{Provider: provider.Name, Resource: resource, Err: err}
	}
	if int64(len(body)) > c.maxBody {
		return nil, &FetchError{
			Provider: provider.Name,
			Resource: resource,
			Err:      fmt.Errorf("%w: more than %d bytes", ErrPayloadTooLarge, c.maxBody),
		}
	}
	return body, nil
}
