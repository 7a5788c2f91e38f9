// internal/database/migrations.go
package database

import (
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/javajoker/storefront-analytics/internal/config"
	"github.com/javajoker/storefront-analytics/internal/models"
)

// Models lists every table owned by the service, parents first.
func Models() []interface{} {
	return []interface{}{
		&models.User{},
		&models.Product{},
		&models.ProductReview{},
		&models.Order{},
		&models.OrderItem{},
		&models.SyncRun{},
		&models.AuditLog{},
	}
}

func RunMigrations(db *gorm.DB, log logrus.FieldLogger) error {
	log.Info("Running database migrations...")

	if err := db.AutoMigrate(Models()...); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	createIndexes(db, log)

	log.Info("Database migrations completed successfully")
	return nil
}

func createIndexes(db *gorm.DB, log logrus.FieldLogger) {
	indexes := []string{
		// Dashboard trend windows
		"CREATE INDEX IF NOT EXISTS idx_products_created_at ON products(created_at DESC)",
		"CREATE INDEX IF NOT EXISTS idx_orders_created_at ON orders(created_at DESC)",
		"CREATE INDEX IF NOT EXISTS idx_orders_status_created ON orders(status, created_at)",

		// Sync ledger
		"CREATE INDEX IF NOT EXISTS idx_sync_runs_provider_started ON sync_runs(provider, started_at DESC)",
		"CREATE INDEX IF NOT EXISTS idx_sync_runs_status_started ON sync_runs(status, started_at)",

		// Admin audit
		"CREATE INDEX IF NOT EXISTS idx_audit_logs_user_action ON audit_logs(user_id, action)",
		"CREATE INDEX IF NOT EXISTS idx_audit_logs_created ON audit_logs(created_at DESC)",
	}

	for _, index := range indexes {
		if err := db.Exec(index).Error; err != nil {
			// Continue with other indexes instead of failing completely
			log.WithError(err).WithField("index", index).Warn("Failed to create index")
		}
	}
}

// SeedInitialData creates the configured administrator when no admin exists.
func SeedInitialData(db *gorm.DB, cfg config.AdminConfig, log logrus.FieldLogger) error {
	if cfg.Email == "" || cfg.Password == "" {
		log.Debug("No admin credentials configured, skipping seed")
		return nil
	}
	email := strings.ToLower(strings.TrimSpace(cfg.Email))

	var adminCount int64
	if err := db.Model(&models.User{}).Where("role = ?", models.UserRoleAdmin).Count(&adminCount).Error; err != nil {
		return fmt.Errorf("failed to count admin users: %w", err)
	}
	if adminCount > 0 {
		return nil
	}

	var existing models.User
	err := db.Where("email = ?", email).First(&existing).Error
	switch {
	case err == nil:
		// Promote the existing account rather than colliding on the unique email.
		if err := db.Model(&existing).Update("role", models.UserRoleAdmin).Error; err != nil {
			return fmt.Errorf("failed to promote admin user: %w", err)
		}
	case errors.Is(err, gorm.ErrRecordNotFound):
		admin := &models.User{
			Email: email,
			Name:  "Administrator",
			Role:  models.UserRoleAdmin,
		}
		if err := admin.SetPassword(cfg.Password); err != nil {
			return fmt.Errorf("failed to set admin password: %w", err)
		}
		if err := db.Create(admin).Error; err != nil {
			return fmt.Errorf("failed to create admin user: %w", err)
		}
	default:
		return fmt.Errorf("failed to look up admin user: %w", err)
	}

	log.WithField("email", email).Info("Default admin user created successfully")
	return nil
}
