// internal/repositories/order_repository.go
package repositories

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/javajoker/storefront-analytics/internal/models"
)

var orderUpsertColumns = []string{
	"provider_user_id", "status", "total_price", "synced_at", "updated_at",
}

type OrderRepository struct {
	db *gorm.DB
}

func NewOrderRepository(db *gorm.DB) *OrderRepository {
	return &OrderRepository{db: db}
}

func (r *OrderRepository) WithTx(tx *gorm.DB) *OrderRepository {
	return &OrderRepository{db: tx}
}

// UpsertBatch writes orders keyed by (provider, provider_order_id) in one
// transaction. Order items are reconciled separately.
func (r *OrderRepository) UpsertBatch(ctx context.Context, orders []models.Order) error {
	if len(orders) == 0 {
		return nil
	}

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		rows := make([]models.Order, len(orders))
		for i, o := range orders {
			o.Items = nil
			rows[i] = o
		}

		if err := tx.Omit(clause.Associations).Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "provider"}, {Name: "provider_order_id"}},
			DoUpdates: clause.AssignmentColumns(orderUpsertColumns),
		}).Create(&rows).Error; err != nil {
			return fmt.Errorf("failed to upsert orders: %w", err)
		}
		return nil
	})
}

// FindByNaturalKey returns nil without error when the order is unknown.
func (r *OrderRepository) FindByNaturalKey(ctx context.Context, provider string, nativeID int64) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Where("provider = ? AND provider_order_id = ?", provider, nativeID).
		First(&order).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load order: %w", err)
	}
	return &order, nil
}

func (r *OrderRepository) CountByProvider(ctx context.Context, provider string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Order{}).Where("provider = ?", provider).Count(&count).Error
	return count, err
}
