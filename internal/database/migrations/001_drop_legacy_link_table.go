package migrations

import (
	"gorm.io/gorm"
)

// DropLegacyLinkTable removes the products_orders join table found in
// databases created by early schema versions. The table was never read:
// order lines live in products_snapshots, which carries the product
// reference itself. Dropping it here keeps imported legacy databases from
// carrying the dead table forward.
func DropLegacyLinkTable(db *gorm.DB) error {
	if !db.Migrator().HasTable("products_orders") {
		return nil
	}
	return db.Migrator().DropTable("products_orders")
}
