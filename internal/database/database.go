package database

import (
	"fmt"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/walllidioooo/storepos/internal/backup"
	"github.com/walllidioooo/storepos/internal/borrowers"
	"github.com/walllidioooo/storepos/internal/catalog"
	"github.com/walllidioooo/storepos/internal/database/migrations"
	"github.com/walllidioooo/storepos/internal/orders"
	"github.com/walllidioooo/storepos/internal/types"
)

// NewDatabase opens (or creates) the sqlite database at path and brings the
// schema up to date. The returned handle is the one process-wide engine
// instance; it is passed into every service constructor.
func NewDatabase(path string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}

	// Run migrations
	if err := migrations.DropLegacyLinkTable(db); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	// Auto-migrate schemas
	err = db.AutoMigrate(
		&catalog.Product{},
		&types.Order{},
		&types.ProductSnapshot{},
		&borrowers.Borrower{},
		&borrowers.OrderSnapshot{},
		&borrowers.OrderSnapshotProduct{},
		&orders.IdempotencyRecord{},
		&backup.ImportRecord{},
	)
	if err != nil {
		return nil, err
	}

	return db, nil
}
