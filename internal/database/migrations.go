package database

import (
	"fmt"

	"github.com/yukikurage/favor-exchange-api/internal/models"
	"gorm.io/gorm"
)

// compositeIndex is an index not expressible through struct tags
type compositeIndex struct {
	model   interface{}
	table   string
	name    string
	columns string
}

var compositeIndexes = []compositeIndex{
	// Listing open requests by category and newest first
	{&models.Request{}, "requests", "idx_requests_status_category", "status, category"},
	// Expiry sweep
	{&models.Request{}, "requests", "idx_requests_status_window_end", "status, time_window_end"},
	// Relationship lookups for privacy resolution
	{&models.Assignment{}, "assignments", "idx_assignments_performer_status", "performer_id, status"},
	// Ledger history per user
	{&models.PointsLedgerEntry{}, "points_ledger", "idx_points_ledger_user_created", "user_id, created_at"},
}

// AddIndexes adds performance-critical composite indexes
func AddIndexes(db *gorm.DB) error {
	migrator := db.Migrator()

	for _, idx := range compositeIndexes {
		if migrator.HasIndex(idx.model, idx.name) {
			continue
		}

		sql := fmt.Sprintf("CREATE INDEX %s ON %s (%s)", idx.name, idx.table, idx.columns)
		if err := db.Exec(sql).Error; err != nil {
			return fmt.Errorf("failed to create index %s: %w", idx.name, err)
		}
	}

	return nil
}

// MigrateDatabase runs all database migrations
func MigrateDatabase(db *gorm.DB) error {
	if err := Migrate(db); err != nil {
		return err
	}

	if err := AddIndexes(db); err != nil {
		return fmt.Errorf("failed to add indexes: %w", err)
	}

	return nil
}
