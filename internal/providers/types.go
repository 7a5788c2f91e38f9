// internal/providers/types.go
package providers

import (
	"context"

	"github.com/javajoker/storefront-analytics/internal/config"
)

// ProductPayload is one record of a provider's products endpoint.
type ProductPayload struct {
	ProductID    int64           `json:"product_id" validate:"required,gt=0"`
	Name         string          `json:"name" validate:"required"`
	Description  string          `json:"description"`
	Price        float64         `json:"price" validate:"gte=0"`
	Unit         string          `json:"unit"`
	Image        string          `json:"image"`
	Discount     *float64        `json:"discount" validate:"omitempty,gte=0"`
	Availability bool            `json:"availability"`
	Brand        string          `json:"brand"`
	Category     string          `json:"category"`
	Rating       *float64        `json:"rating" validate:"omitempty,gte=0"`
	Reviews      []ReviewPayload `json:"reviews" validate:"omitempty,dive"`
}

type ReviewPayload struct {
	UserID  int64   `json:"user_id"`
	Rating  float64 `json:"rating" validate:"gte=0"`
	Comment string  `json:"comment"`
}

// OrderPayload is one record of a provider's orders endpoint.
type OrderPayload struct {
	OrderID    int64              `json:"order_id" validate:"required,gt=0"`
	UserID     int64              `json:"user_id"`
	Items      []OrderItemPayload `json:"items" validate:"omitempty,dive"`
	TotalPrice float64            `json:"total_price" validate:"gte=0"`
	Status     string             `json:"status" validate:"required"`
}

type OrderItemPayload struct {
	ProductID int64 `json:"product_id" validate:"required,gt=0"`
	Quantity  int   `json:"quantity" validate:"gte=0"`
}

// FetchResult carries the valid records of one fetch. Invalid counts the
// records that were dropped because they failed decoding or validation.
type FetchResult[T any] struct {
	Records []T
	Invalid int
}

// Fetcher retrieves provider payloads.
type Fetcher interface {
	FetchProducts(ctx context.Context, provider config.ProviderConfig) (*FetchResult[ProductPayload], error)
	FetchOrders(ctx context.Context, provider config.ProviderConfig) (*FetchResult[OrderPayload], error)
}
