package backup

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// ErrInvalidDatabase rejects an uploaded blob that is not a usable database.
var ErrInvalidDatabase = errors.New("uploaded file is not a valid database")

// restoredTables are copied, in this order, when a database blob is
// imported. Parents before children so an interrupted read never sees an
// orphaned row.
var restoredTables = []string{
	"products",
	"orders",
	"products_snapshots",
	"borrowers",
	"orders_snapshots",
	"orders_snapshots_products",
	"idempotency_records",
	"import_id_table",
}

// ExportBinary serializes the whole live database into one blob using
// VACUUM INTO, which produces a consistent standalone copy without closing
// the handle.
func ExportBinary(db *gorm.DB) ([]byte, error) {
	dir, err := os.MkdirTemp("", "storepos-export")
	if err != nil {
		return nil, err
	}
	defer os.RemoveAll(dir)

	target := filepath.Join(dir, "export.db")
	if err := db.Exec("VACUUM INTO ?", target).Error; err != nil {
		return nil, fmt.Errorf("failed to export database: %w", err)
	}

	data, err := os.ReadFile(target)
	if err != nil {
		return nil, err
	}
	return data, nil
}

// ImportBinary replaces the live database contents with the uploaded blob.
// The blob is first opened on its own and checked for tables; then every
// known table is cleared and refilled from it via ATTACH, so the
// process-wide handle never has to be swapped out. SQLite forbids ATTACH
// inside a transaction, so the copy pins one connection and opens the
// transaction after attaching.
func ImportBinary(db *gorm.DB, data []byte) error {
	dir, err := os.MkdirTemp("", "storepos-import")
	if err != nil {
		return err
	}
	defer os.RemoveAll(dir)

	source := filepath.Join(dir, "import.db")
	if err := os.WriteFile(source, data, 0o600); err != nil {
		return err
	}

	if err := validateDatabaseFile(source); err != nil {
		return err
	}

	return db.Connection(func(conn *gorm.DB) error {
		if err := conn.Exec("ATTACH DATABASE ? AS imported", source).Error; err != nil {
			return fmt.Errorf("failed to attach imported database: %w", err)
		}
		defer conn.Exec("DETACH DATABASE imported")

		if err := conn.Exec("BEGIN IMMEDIATE").Error; err != nil {
			return err
		}

		if err := copyRestoredTables(conn); err != nil {
			conn.Exec("ROLLBACK")
			return err
		}
		return conn.Exec("COMMIT").Error
	})
}

func copyRestoredTables(conn *gorm.DB) error {
	for _, table := range restoredTables {
		if err := conn.Exec("DELETE FROM " + table).Error; err != nil {
			return err
		}
		var hasTable int64
		if err := conn.Raw(
			"SELECT COUNT(*) FROM imported.sqlite_master WHERE type = 'table' AND name = ?", table).
			Scan(&hasTable).Error; err != nil {
			return err
		}
		if hasTable == 0 {
			// Older exports may lack auxiliary tables. Cleared is good enough.
			continue
		}
		if err := conn.Exec(fmt.Sprintf("INSERT INTO %s SELECT * FROM imported.%s", table, table)).Error; err != nil {
			return fmt.Errorf("failed to restore table %s: %w", table, err)
		}
	}
	return nil
}

// validateDatabaseFile opens the candidate file read-only and requires at
// least one user table before any live data is touched.
func validateDatabaseFile(path string) error {
	check, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidDatabase, err)
	}
	sqlDB, err := check.DB()
	if err != nil {
		return err
	}
	defer sqlDB.Close()

	var tables int64
	err = check.Raw(
		"SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%'").
		Scan(&tables).Error
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidDatabase, err)
	}
	if tables == 0 {
		return fmt.Errorf("%w: no tables found", ErrInvalidDatabase)
	}
	return nil
}
