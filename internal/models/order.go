// internal/models/order.go
package models

import (
	"time"

	"github.com/google/uuid"
)

type Order struct {
	BaseModel
	Provider        string    `json:"provider" gorm:"size:100;not null;uniqueIndex:idx_orders_provider_native,priority:1"`
	ProviderOrderID int64     `json:"provider_order_id" gorm:"not null;uniqueIndex:idx_orders_provider_native,priority:2"`
	ProviderUserID  int64     `json:"provider_user_id"`
	Status          string    `json:"status" gorm:"size:50;not null;index"`
	TotalPrice      float64   `json:"total_price" gorm:"type:decimal(12,2);not null"`
	SyncedAt        time.Time `json:"synced_at"`

	// Relationships
	Items []OrderItem `json:"items,omitempty" gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
}

type OrderItem struct {
	BaseModel
	OrderID           uuid.UUID `json:"order_id" gorm:"type:uuid;not null;index"`
	ProductID         uuid.UUID `json:"product_id" gorm:"type:uuid;not null;index"`
	Quantity          int       `json:"quantity" gorm:"not null"`
	UnitPriceSnapshot float64   `json:"unit_price_snapshot" gorm:"type:decimal(12,2);not null"`
	SyncedAt          time.Time `json:"synced_at"`

	// Relationships
	Product *Product `json:"product,omitempty" gorm:"foreignKey:ProductID"`
}
