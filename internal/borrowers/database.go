package borrowers

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/walllidioooo/storepos/internal/types"
)

type Database struct {
	db *gorm.DB
}

func NewDatabase(db *gorm.DB) *Database {
	return &Database{db: db}
}

func (d *Database) CreateBorrower(borrower *Borrower) error {
	return d.db.Create(borrower).Error
}

func (d *Database) GetBorrower(id uint) (*Borrower, error) {
	var borrower Borrower
	if err := d.db.Where("id = ?", id).First(&borrower).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &borrower, nil
}

// LinkOrder freezes a live order into the borrower's history: one snapshot
// row, one copied product line per products_snapshots row, and the running
// amount incremented, all in one transaction. A duplicate link rolls back
// and reports a soft rejection; a vanished order is a hard failure.
func (d *Database) LinkOrder(orderID, borrowerID uint) (*LinkResult, error) {
	tx := d.db.Begin()
	if err := tx.Error; err != nil {
		return nil, err
	}
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
		}
	}()

	var existing int64
	if err := tx.Model(&OrderSnapshot{}).Where("original_order_id = ?", orderID).Count(&existing).Error; err != nil {
		tx.Rollback()
		return nil, err
	}
	if existing > 0 {
		tx.Rollback()
		return &LinkResult{Linked: false, Reason: "this order has already been linked to a borrower"}, nil
	}

	var order types.Order
	if err := tx.Where("id = ?", orderID).First(&order).Error; err != nil {
		tx.Rollback()
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %d", ErrOrderNotFound, orderID)
		}
		return nil, err
	}

	var totalPrice float64
	if err := tx.Raw(`
		SELECT COALESCE(SUM(quantity * price_sell), 0)
		FROM products_snapshots
		WHERE order_id = ?`, orderID).Scan(&totalPrice).Error; err != nil {
		tx.Rollback()
		return nil, err
	}

	snapshot := OrderSnapshot{
		OriginalOrderID: orderID,
		BorrowerID:      borrowerID,
		Date:            order.CreatedAt,
		TotalPrice:      totalPrice,
	}
	if err := tx.Create(&snapshot).Error; err != nil {
		tx.Rollback()
		return nil, err
	}

	var lines []types.ProductSnapshot
	if err := tx.Where("order_id = ?", orderID).Find(&lines).Error; err != nil {
		tx.Rollback()
		return nil, err
	}
	for _, line := range lines {
		product := OrderSnapshotProduct{
			OrderSnapshotID: snapshot.ID,
			Name:            line.Name,
			PriceSell:       line.PriceSell,
			Quantity:        line.Quantity,
		}
		if err := tx.Create(&product).Error; err != nil {
			tx.Rollback()
			return nil, err
		}
	}

	if err := tx.Model(&Borrower{}).
		Where("id = ?", borrowerID).
		Update("amount", gorm.Expr("amount + ?", totalPrice)).Error; err != nil {
		tx.Rollback()
		return nil, err
	}

	if err := tx.Commit().Error; err != nil {
		return nil, err
	}
	return &LinkResult{Linked: true}, nil
}

func (d *Database) GetSnapshotOrders(borrowerID uint) ([]BorrowerOrder, error) {
	var snapshots []OrderSnapshot
	if err := d.db.Where("borrower_id = ?", borrowerID).Order("date DESC").Find(&snapshots).Error; err != nil {
		return nil, err
	}

	result := make([]BorrowerOrder, 0, len(snapshots))
	for _, snapshot := range snapshots {
		var products []OrderSnapshotProduct
		if err := d.db.Where("order_snapshot_id = ?", snapshot.ID).Find(&products).Error; err != nil {
			return nil, err
		}
		result = append(result, BorrowerOrder{
			OrderID:    snapshot.ID,
			OrderDate:  snapshot.Date,
			TotalPrice: snapshot.TotalPrice,
			Products:   products,
		})
	}
	return result, nil
}

func (d *Database) UpdateAmount(borrowerID uint, amount float64) error {
	result := d.db.Model(&Borrower{}).Where("id = ?", borrowerID).Update("amount", amount)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// RecalculateAmount rewrites the cached running total from the source of
// truth, the borrower's order snapshots.
func (d *Database) RecalculateAmount(borrowerID uint) (float64, error) {
	var total float64
	if err := d.db.Raw(`
		SELECT COALESCE(SUM(total_price), 0)
		FROM orders_snapshots
		WHERE borrower_id = ?`, borrowerID).Scan(&total).Error; err != nil {
		return 0, err
	}
	if err := d.UpdateAmount(borrowerID, total); err != nil {
		return 0, err
	}
	return total, nil
}

// DeleteBorrower removes a borrower and their entire snapshot history in one
// transaction: snapshot product lines first, then the snapshots, then the
// borrower row.
func (d *Database) DeleteBorrower(borrowerID uint) error {
	tx := d.db.Begin()
	if err := tx.Error; err != nil {
		return err
	}
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
		}
	}()

	if err := tx.Exec(`
		DELETE FROM orders_snapshots_products
		WHERE order_snapshot_id IN (SELECT id FROM orders_snapshots WHERE borrower_id = ?)`,
		borrowerID).Error; err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Where("borrower_id = ?", borrowerID).Delete(&OrderSnapshot{}).Error; err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Where("id = ?", borrowerID).Delete(&Borrower{}).Error; err != nil {
		tx.Rollback()
		return err
	}

	return tx.Commit().Error
}

func (d *Database) ListBorrowers(search, sortBy string, ascending bool, limit, offset int) ([]Borrower, error) {
	sortColumn := "date"
	if sortBy == "amount" {
		sortColumn = "amount"
	}
	direction := "DESC"
	if ascending {
		direction = "ASC"
	}

	var result []Borrower
	err := d.db.
		Where("name LIKE ?", "%"+search+"%").
		Order(sortColumn + " " + direction).
		Limit(limit).
		Offset(offset).
		Find(&result).Error
	return result, err
}

func (d *Database) CountBorrowers(search string) (int64, error) {
	var count int64
	err := d.db.Model(&Borrower{}).Where("name LIKE ?", "%"+search+"%").Count(&count).Error
	return count, err
}
