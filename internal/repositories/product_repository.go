// internal/repositories/product_repository.go
package repositories

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/javajoker/storefront-analytics/internal/models"
)

var productUpsertColumns = []string{
	"name", "description", "image", "unit", "price", "discount",
	"availability", "brand", "category", "rating", "synced_at", "updated_at",
}

type ProductRepository struct {
	db *gorm.DB
}

func NewProductRepository(db *gorm.DB) *ProductRepository {
	return &ProductRepository{db: db}
}

// WithTx returns a repository bound to tx.
func (r *ProductRepository) WithTx(tx *gorm.DB) *ProductRepository {
	return &ProductRepository{db: tx}
}

// UpsertBatch writes products keyed by (provider, provider_product_id) in one
// transaction. Products whose Reviews slice is non-nil get their reviews
// replaced; a nil slice leaves stored reviews untouched.
func (r *ProductRepository) UpsertBatch(ctx context.Context, products []models.Product) error {
	if len(products) == 0 {
		return nil
	}

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		rows := make([]models.Product, len(products))
		for i, p := range products {
			p.Reviews = nil
			rows[i] = p
		}

		if err := tx.Omit(clause.Associations).Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "provider"}, {Name: "provider_product_id"}},
			DoUpdates: clause.AssignmentColumns(productUpsertColumns),
		}).Create(&rows).Error; err != nil {
			return fmt.Errorf("failed to upsert products: %w", err)
		}

		return replaceReviews(tx, products)
	})
}

func replaceReviews(tx *gorm.DB, products []models.Product) error {
	byProvider := make(map[string][]int64)
	for _, p := range products {
		if p.Reviews != nil {
			byProvider[p.Provider] = append(byProvider[p.Provider], p.ProviderProductID)
		}
	}
	if len(byProvider) == 0 {
		return nil
	}

	ids := make(map[string]map[int64]uuid.UUID, len(byProvider))
	for provider, nativeIDs := range byProvider {
		resolved, err := resolveProductIDs(tx, provider, nativeIDs)
		if err != nil {
			return err
		}
		ids[provider] = resolved
	}

	var (
		productIDs []uuid.UUID
		reviews    []models.ProductReview
	)
	for _, p := range products {
		if p.Reviews == nil {
			continue
		}
		productID, ok := ids[p.Provider][p.ProviderProductID]
		if !ok {
			return fmt.Errorf("product %s/%d missing after upsert", p.Provider, p.ProviderProductID)
		}
		productIDs = append(productIDs, productID)
		for _, review := range p.Reviews {
			review.ID = uuid.Nil
			review.ProductID = productID
			reviews = append(reviews, review)
		}
	}

	if err := tx.Where("product_id IN ?", productIDs).Delete(&models.ProductReview{}).Error; err != nil {
		return fmt.Errorf("failed to clear product reviews: %w", err)
	}
	if len(reviews) == 0 {
		return nil
	}
	if err := tx.Create(&reviews).Error; err != nil {
		return fmt.Errorf("failed to create product reviews: %w", err)
	}
	return nil
}

// ResolveIDs maps provider product ids to stored product ids. Unknown ids are
// absent from the result.
func (r *ProductRepository) ResolveIDs(ctx context.Context, provider string, nativeIDs []int64) (map[int64]uuid.UUID, error) {
	return resolveProductIDs(r.db.WithContext(ctx), provider, nativeIDs)
}

func resolveProductIDs(db *gorm.DB, provider string, nativeIDs []int64) (map[int64]uuid.UUID, error) {
	result := make(map[int64]uuid.UUID, len(nativeIDs))
	if len(nativeIDs) == 0 {
		return result, nil
	}

	var rows []struct {
		ID                uuid.UUID
		ProviderProductID int64
	}
	if err := db.Model(&models.Product{}).
		Select("id, provider_product_id").
		Where("provider = ? AND provider_product_id IN ?", provider, nativeIDs).
		Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to resolve product ids: %w", err)
	}

	for _, row := range rows {
		result[row.ProviderProductID] = row.ID
	}
	return result, nil
}

func (r *ProductRepository) FindByNaturalKey(ctx context.Context, provider string, nativeID int64) (*models.Product, error) {
	var product models.Product
	err := r.db.WithContext(ctx).
		Where("provider = ? AND provider_product_id = ?", provider, nativeID).
		First(&product).Error
	if err != nil {
		return nil, err
	}
	return &product, nil
}

func (r *ProductRepository) CountByProvider(ctx context.Context, provider string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Product{}).Where("provider = ?", provider).Count(&count).Error
	return count, err
}
