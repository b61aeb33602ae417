// Package testutil provides fixtures shared by package tests.
package testutil

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/yukikurage/favor-exchange-api/internal/database"
	"github.com/yukikurage/favor-exchange-api/internal/models"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewDB opens a migrated in-memory SQLite database. The pool is pinned to one
// connection because every SQLite memory connection is its own database.
func NewDB(t testing.TB) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, database.MigrateDatabase(db))

	t.Cleanup(func() {
		_ = sqlDB.Close()
	})
	return db
}

// CreateUser inserts an active member with a profile.
func CreateUser(t testing.TB, db *gorm.DB, email, displayName string) *models.User {
	t.Helper()

	user := &models.User{
		Email:        email,
		PasswordHash: "hashedpassword",
		Role:         models.RoleMember,
		Status:       models.UserStatusActive,
	}
	require.NoError(t, db.Omit("Profile").Create(user).Error)

	profile := models.NewProfile(user.ID, displayName)
	require.NoError(t, db.Create(&profile).Error)
	user.Profile = profile
	return user
}

// CreateRequest inserts an open request owned by ownerID.
func CreateRequest(t testing.TB, db *gorm.DB, ownerID uint64, title string) *models.Request {
	t.Helper()

	request := &models.Request{
		OwnerID:         ownerID,
		Title:           title,
		Description:     "Test Description",
		Category:        models.CategoryErrands,
		Urgency:         models.UrgencyNormal,
		Status:          models.RequestStatusOpen,
		LocationDisplay: "Springfield area",
		Location:        "742 Evergreen Terrace, Springfield",
		MaxPerformers:   1,
		PointValue:      10,
	}
	require.NoError(t, db.Omit("Owner", "Assignment").Create(request).Error)
	return request
}
