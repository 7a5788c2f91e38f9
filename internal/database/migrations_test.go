package database_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/javajoker/storefront-analytics/internal/config"
	"github.com/javajoker/storefront-analytics/internal/database"
	"github.com/javajoker/storefront-analytics/internal/models"
	"github.com/javajoker/storefront-analytics/internal/testutil"
)

func TestRunMigrationsIsRepeatable(t *testing.T) {
	db := testutil.NewDB(t)
	require.NoError(t, database.RunMigrations(db, testutil.NullLogger()))

	for _, model := range database.Models() {
		assert.True(t, db.Migrator().HasTable(model))
	}
	assert.True(t, db.Migrator().HasIndex(&models.SyncRun{}, "idx_sync_runs_provider_started"))
}

func TestSeedInitialData(t *testing.T) {
	db := testutil.NewDB(t)
	log := testutil.NullLogger()
	cfg := config.AdminConfig{Email: " Admin@Example.com ", Password: "changeme123"}

	require.NoError(t, database.SeedInitialData(db, cfg, log))
	require.NoError(t, database.SeedInitialData(db, cfg, log))

	var admins []models.User
	require.NoError(t, db.Where("role = ?", models.UserRoleAdmin).Find(&admins).Error)
	require.Len(t, admins, 1)
	assert.Equal(t, "admin@example.com", admins[0].Email)
	assert.NoError(t, admins[0].CheckPassword("changeme123"))
}

func TestSeedInitialDataPromotesExistingUser(t *testing.T) {
	db := testutil.NewDB(t)
	user := &models.User{Email: "ops@example.com", Name: "Ops", Role: models.UserRoleUser}
	require.NoError(t, user.SetPassword("original-pass"))
	require.NoError(t, db.Create(user).Error)

	cfg := config.AdminConfig{Email: "ops@example.com", Password: "ignored-pass"}
	require.NoError(t, database.SeedInitialData(db, cfg, testutil.NullLogger()))

	var reloaded models.User
	require.NoError(t, db.First(&reloaded, "id = ?", user.ID).Error)
	assert.True(t, reloaded.IsAdmin())
	assert.NoError(t, reloaded.CheckPassword("original-pass"))
}

func TestSeedInitialDataWithoutCredentials(t *testing.T) {
	db := testutil.NewDB(t)
	require.NoError(t, database.SeedInitialData(db, config.AdminConfig{}, testutil.NullLogger()))

	var count int64
	require.NoError(t, db.Model(&models.User{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestWithTransactionRollsBack(t *testing.T) {
	db := testutil.NewDB(t)

	err := database.WithTransaction(db, func(tx *gorm.DB) error {
		if err := tx.Create(&models.User{Email: "tx@example.com", PasswordHash: "x"}).Error; err != nil {
			return err
		}
		return assert.AnError
	})
	require.ErrorIs(t, err, assert.AnError)

	var count int64
	require.NoError(t, db.Model(&models.User{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestPing(t *testing.T) {
	db := testutil.NewDB(t)
	assert.NoError(t, database.Ping(db))
}
