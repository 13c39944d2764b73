package testhelpers

import (
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/simon-dulai/optometry-purchase-predictor/internal/models"
)

// NewDB returns a migrated in-memory SQLite database private to the test.
// The pool is pinned to one connection so every query sees the same memory database.
func NewDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, models.Migrate(db))
	return db
}

// CreateTenant registers a practice account and returns its ID.
func CreateTenant(t *testing.T, db *gorm.DB, username string) uint {
	t.Helper()

	user := models.User{
		Username:     username,
		Email:        username + "@example.com",
		PracticeName: username + " optometry",
	}
	require.NoError(t, user.SetPassword("password123"))
	require.NoError(t, db.Create(&user).Error)
	return user.ID
}
