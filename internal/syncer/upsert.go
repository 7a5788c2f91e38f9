// internal/syncer/upsert.go
package syncer

import (
	"context"
	"time"

	"github.com/javajoker/storefront-analytics/internal/config"
	"github.com/javajoker/storefront-analytics/internal/models"
	"github.com/javajoker/storefront-analytics/internal/providers"
	"github.com/javajoker/storefront-analytics/internal/variation"
)

// ProductStore persists product batches.
type ProductStore interface {
	UpsertBatch(ctx context.Context, products []models.Product) error
}

// OrderStore persists order batches.
type OrderStore interface {
	UpsertBatch(ctx context.Context, orders []models.Order) error
}

// BuildProducts maps fetched products onto rows with variations applied.
// A product id seen twice keeps its last record.
func BuildProducts(provider config.ProviderConfig, payloads []providers.ProductPayload, engine *variation.Engine, syncedAt time.Time) []models.Product {
	payloads = dedupe(payloads, func(p providers.ProductPayload) int64 { return p.ProductID })

	rows := make([]models.Product, 0, len(payloads))
	for _, p := range payloads {
		varied := engine.ApplyProductVariations(variation.ProductValues{
			Price:    p.Price,
			Discount: p.Discount,
			Rating:   p.Rating,
		}, provider.Variations)

		row := models.Product{
			Provider:          provider.Name,
			ProviderProductID: p.ProductID,
			Name:              p.Name,
			Description:       p.Description,
			Image:             p.Image,
			Unit:              p.Unit,
			Price:             varied.Price,
			Discount:          varied.Discount,
			Availability:      p.Availability,
			Brand:             p.Brand,
			Category:          p.Category,
			Rating:            varied.Rating,
			SyncedAt:          syncedAt,
		}
		if p.Reviews != nil {
			row.Reviews = make([]models.ProductReview, 0, len(p.Reviews))
			for _, r := range p.Reviews {
				row.Reviews = append(row.Reviews, models.ProductReview{
					ProviderUserID: r.UserID,
					Rating:         r.Rating,
					Comment:        r.Comment,
					SyncedAt:       syncedAt,
				})
			}
		}
		rows = append(rows, row)
	}
	return rows
}

// BuildOrders maps fetched orders onto rows with the total price varied.
func BuildOrders(provider config.ProviderConfig, payloads []providers.OrderPayload, engine *variation.Engine, syncedAt time.Time) []models.Order {
	payloads = dedupe(payloads, func(o providers.OrderPayload) int64 { return o.OrderID })

	rows := make([]models.Order, 0, len(payloads))
	for _, o := range payloads {
		rows = append(rows, models.Order{
			Provider:        provider.Name,
			ProviderOrderID: o.OrderID,
			ProviderUserID:  o.UserID,
			Status:          o.Status,
			TotalPrice:      engine.ApplyOrderVariations(o.TotalPrice, provider.Variations),
			SyncedAt:        syncedAt,
		})
	}
	return rows
}

// UpsertProducts writes rows through the batch runner.
func UpsertProducts(ctx context.Context, store ProductStore, rows []models.Product, cfg config.BatchConfig) error {
	return RunBatches(ctx, rows, cfg, store.UpsertBatch)
}

// UpsertOrders writes rows through the batch runner.
func UpsertOrders(ctx context.Context, store OrderStore, rows []models.Order, cfg config.BatchConfig) error {
	return RunBatches(ctx, rows, cfg, store.UpsertBatch)
}

func dedupe[T any](items []T, key func(T) int64) []T {
	last := make(map[int64]int, len(items))
	for i, item := range items {
		last[key(item)] = i
	}
	if len(last) == len(items) {
		return items
	}

	out := make([]T, 0, len(last))
	for i, item := range items {
		if last[key(item)] == i {
			out = append(out, item)
		}
	}
	return out
}
