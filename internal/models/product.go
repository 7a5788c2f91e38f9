// internal/models/product.go
package models

import (
	"time"

	"github.com/google/uuid"
)

type Product struct {
	BaseModel
	Provider          string    `json:"provider" gorm:"size:100;not null;uniqueIndex:idx_products_provider_native,priority:1"`
	ProviderProductID int64     `json:"provider_product_id" gorm:"not null;uniqueIndex:idx_products_provider_native,priority:2"`
	Name              string    `json:"name" gorm:"size:255;not null"`
	Description       string    `json:"description" gorm:"type:text"`
	Image             string    `json:"image" gorm:"type:text"`
	Unit              string    `json:"unit" gorm:"size:50"`
	Price             float64   `json:"price" gorm:"type:decimal(12,2);not null"`
	Discount          *float64  `json:"discount" gorm:"type:decimal(12,2)"`
	Availability      bool      `json:"availability" gorm:"not null"`
	Brand             string    `json:"brand" gorm:"size:255"`
	Category          string    `json:"category" gorm:"size:255;index"`
	Rating            *float64  `json:"rating" gorm:"type:decimal(4,2)"`
	SyncedAt          time.Time `json:"synced_at"`

	// Relationships
	Reviews []ProductReview `json:"reviews,omitempty" gorm:"foreignKey:ProductID;constraint:OnDelete:CASCADE"`
}

type ProductReview struct {
	BaseModel
	ProductID      uuid.UUID `json:"product_id" gorm:"type:uuid;not null;index"`
	ProviderUserID int64     `json:"provider_user_id"`
	Rating         float64   `json:"rating" gorm:"type:decimal(4,2)"`
	Comment        string    `json:"comment" gorm:"type:text"`
	SyncedAt       time.Time `json:"synced_at"`
}
