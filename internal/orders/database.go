package orders

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/walllidioooo/storepos/internal/catalog"
	"github.com/walllidioooo/storepos/internal/types"
)

type Database struct {
	db *gorm.DB
}

func NewDatabase(db *gorm.DB) *Database {
	return &Database{db: db}
}

// CreateOrder inserts the order, one snapshot row per line, and the stock
// decrements in a single transaction. Any failing line aborts the whole
// order: no order row, no snapshots, no stock change. When idempotencyKey is
// non-empty, the idempotency record is written in the same transaction.
func (d *Database) CreateOrder(lines []types.OrderLine, idempotencyKey string) (uint, error) {
	tx := d.db.Begin()
	if err := tx.Error; err != nil {
		return 0, err
	}
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
		}
	}()

	now := time.Now()
	order := types.Order{CreatedAt: now}
	if err := tx.Create(&order).Error; err != nil {
		tx.Rollback()
		return 0, err
	}

	for _, line := range lines {
		var product catalog.Product
		if err := tx.Where("id = ?", line.ProductID).First(&product).Error; err != nil {
			tx.Rollback()
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return 0, fmt.Errorf("%w: %d", ErrProductNotFound, line.ProductID)
			}
			return 0, err
		}

		if product.Stock != nil && *product.Stock < line.Quantity {
			tx.Rollback()
			return 0, &InsufficientStockError{
				Product:   product.Name,
				Available: *product.Stock,
				Requested: line.Quantity,
			}
		}

		productID := line.ProductID
		snapshot := types.ProductSnapshot{
			OrderID:   order.ID,
			ProductID: &productID,
			Name:      product.Name,
			PriceBuy:  product.PriceBuy,
			PriceSell: product.PriceSell,
			Quantity:  line.Quantity,
			CreatedAt: now,
		}
		if err := tx.Create(&snapshot).Error; err != nil {
			tx.Rollback()
			return 0, err
		}

		if product.Stock != nil {
			if err := tx.Model(&catalog.Product{}).
				Where("id = ?", line.ProductID).
				Update("stock", gorm.Expr("stock - ?", line.Quantity)).Error; err != nil {
				tx.Rollback()
				return 0, err
			}
		}
	}

	if idempotencyKey != "" {
		// An expired record for the same key may still exist; take the key
		// over for the new order instead of tripping the unique index.
		record := IdempotencyRecord{
			IdempotencyKey: idempotencyKey,
			OrderID:        order.ID,
			ExpiresAt:      now.Add(24 * time.Hour),
		}
		if err := tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "idempotency_key"}},
			DoUpdates: clause.Assignments(map[string]interface{}{
				"order_id":   order.ID,
				"expires_at": record.ExpiresAt,
			}),
		}).Create(&record).Error; err != nil {
			tx.Rollback()
			return 0, err
		}
	}

	if err := tx.Commit().Error; err != nil {
		return 0, err
	}
	return order.ID, nil
}

// DeleteOrder restores stock from the order's snapshot lines, then removes
// the snapshots and the order row, all in one transaction. Historical rows
// in orders_snapshots are deliberately left alone: borrower debt history
// outlives the live order.
func (d *Database) DeleteOrder(orderID uint) error {
	tx := d.db.Begin()
	if err := tx.Error; err != nil {
		return err
	}
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
		}
	}()

	var snapshots []types.ProductSnapshot
	if err := tx.Where("order_id = ?", orderID).Find(&snapshots).Error; err != nil {
		tx.Rollback()
		return err
	}

	for _, snapshot := range snapshots {
		if snapshot.ProductID == nil {
			continue
		}
		// Missing products and untracked (NULL) stock both fall through as
		// no-ops: stock + q stays NULL and a vanished id matches no row.
		if err := tx.Model(&catalog.Product{}).
			Where("id = ?", *snapshot.ProductID).
			Update("stock", gorm.Expr("stock + ?", snapshot.Quantity)).Error; err != nil {
			tx.Rollback()
			return err
		}
	}

	if err := tx.Where("order_id = ?", orderID).Delete(&types.ProductSnapshot{}).Error; err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Where("id = ?", orderID).Delete(&types.Order{}).Error; err != nil {
		tx.Rollback()
		return err
	}

	return tx.Commit().Error
}

// GetOrder retrieves an order by id, or nil when absent.
func (d *Database) GetOrder(orderID uint) (*types.Order, error) {
	var order types.Order
	if err := d.db.Where("id = ?", orderID).First(&order).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &order, nil
}

// orderSortColumns maps caller-facing sort names to SQL expressions.
var orderSortColumns = map[string]string{
	"date":       "o.created_at",
	"price_sell": "total_sell",
	"profit":     "profit",
}

func (d *Database) GetOrdersWithTotal(opts ListOptions) ([]types.OrderWithTotal, error) {
	orderBy, ok := orderSortColumns[opts.SortBy]
	if !ok {
		orderBy = "o.created_at"
	}
	direction := "DESC"
	if opts.Ascending {
		direction = "ASC"
	}

	query := fmt.Sprintf(`
		SELECT
			o.id AS order_id,
			o.created_at,
			COALESCE(SUM(ps.price_sell * ps.quantity), 0) AS total_sell,
			COALESCE(SUM((ps.price_sell - ps.price_buy) * ps.quantity), 0) AS profit,
			EXISTS (SELECT 1 FROM orders_snapshots os WHERE os.original_order_id = o.id) AS has_borrower
		FROM orders o
		LEFT JOIN products_snapshots ps ON o.id = ps.order_id
		GROUP BY o.id
		ORDER BY %s %s
		LIMIT ? OFFSET ?`, orderBy, direction)

	var rows []types.OrderWithTotal
	if err := d.db.Raw(query, opts.Limit, opts.Offset).Scan(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (d *Database) GetProductsInOrder(orderID uint, limit, offset int) ([]types.OrderProductLine, error) {
	var lines []types.OrderProductLine
	err := d.db.Raw(`
		SELECT name, quantity, price_sell, (price_sell * quantity) AS subtotal_sell
		FROM products_snapshots
		WHERE order_id = ?
		LIMIT ? OFFSET ?`, orderID, limit, offset).Scan(&lines).Error
	if err != nil {
		return nil, err
	}
	return lines, nil
}

func (d *Database) CountOrders() (int64, error) {
	var count int64
	err := d.db.Model(&types.Order{}).Count(&count).Error
	return count, err
}

func (d *Database) CountProductsInOrder(orderID uint) (int64, error) {
	var count int64
	err := d.db.Model(&types.ProductSnapshot{}).Where("order_id = ?", orderID).Count(&count).Error
	return count, err
}

func (d *Database) GetOrderStatistics() (*types.OrderStatistics, error) {
	var totals struct {
		TotalSell   float64
		TotalBuy    float64
		TotalProfit float64
	}
	err := d.db.Raw(`
		SELECT
			COALESCE(SUM(price_sell * quantity), 0) AS total_sell,
			COALESCE(SUM(price_buy * quantity), 0) AS total_buy,
			COALESCE(SUM((price_sell - price_buy) * quantity), 0) AS total_profit
		FROM products_snapshots`).Scan(&totals).Error
	if err != nil {
		return nil, err
	}

	totalOrders, err := d.CountOrders()
	if err != nil {
		return nil, err
	}

	var withBorrower int64
	if err := d.db.Raw(`SELECT COUNT(DISTINCT original_order_id) FROM orders_snapshots`).Scan(&withBorrower).Error; err != nil {
		return nil, err
	}

	var largestOrderID *uint
	err = d.db.Raw(`
		SELECT order_id
		FROM products_snapshots
		GROUP BY order_id
		ORDER BY SUM(price_sell * quantity) DESC
		LIMIT 1`).Scan(&largestOrderID).Error
	if err != nil {
		return nil, err
	}

	stats := &types.OrderStatistics{
		TotalOrders:    totalOrders,
		TotalSell:      totals.TotalSell,
		TotalBuy:       totals.TotalBuy,
		TotalProfit:    totals.TotalProfit,
		WithBorrower:   withBorrower,
		LargestOrderID: largestOrderID,
	}
	if totalOrders > 0 {
		stats.AverageProfit = totals.TotalProfit / float64(totalOrders)
	}
	return stats, nil
}

// GetIdempotencyRecord retrieves an idempotency record by key
func (d *Database) GetIdempotencyRecord(key string) (*IdempotencyRecord, error) {
	var record IdempotencyRecord
	if err := d.db.Where("idempotency_key = ?", key).First(&record).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &record, nil
}
