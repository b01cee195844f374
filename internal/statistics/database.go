package statistics

import (
	"gorm.io/gorm"
)

type Database struct {
	db *gorm.DB
}

func NewDatabase(db *gorm.DB) *Database {
	return &Database{db: db}
}

// dailyRow is one day of aggregated snapshot data.
type dailyRow struct {
	Day    string
	Sales  float64
	Profit float64
}

func (d *Database) GetDashboardKPIs() (*DashboardKPIs, error) {
	kpis := &DashboardKPIs{}

	if err := d.db.Raw(`SELECT IFNULL(SUM(quantity * price_sell), 0) FROM products_snapshots`).
		Scan(&kpis.TotalSales).Error; err != nil {
		return nil, err
	}
	if err := d.db.Raw(`SELECT IFNULL(SUM(quantity * (price_sell - price_buy)), 0) FROM products_snapshots`).
		Scan(&kpis.TotalProfit).Error; err != nil {
		return nil, err
	}
	if err := d.db.Raw(`SELECT COUNT(*) FROM orders`).Scan(&kpis.TotalOrders).Error; err != nil {
		return nil, err
	}
	if err := d.db.Raw(`SELECT IFNULL(SUM(amount), 0) FROM borrowers`).Scan(&kpis.TotalDebt).Error; err != nil {
		return nil, err
	}
	return kpis, nil
}

// fetchDailySales returns per-day sales and profit sums between start and
// end (inclusive, YYYY-MM-DD), ordered ascending. Days with no sales are
// absent; the service zero-fills them.
func (d *Database) fetchDailySales(start, end string) ([]dailyRow, error) {
	var rows []dailyRow
	err := d.db.Raw(`
		SELECT strftime('%Y-%m-%d', created_at) AS day,
		       SUM(quantity * price_sell) AS sales,
		       SUM(quantity * (price_sell - price_buy)) AS profit
		FROM products_snapshots
		WHERE date(created_at) BETWEEN date(?) AND date(?)
		GROUP BY day
		ORDER BY day ASC`, start, end).Scan(&rows).Error
	return rows, err
}

// snapshotDateBounds returns the earliest and latest snapshot days, or empty
// strings when there is no data.
func (d *Database) snapshotDateBounds() (string, string, error) {
	var bounds struct {
		MinDay *string
		MaxDay *string
	}
	err := d.db.Raw(`
		SELECT MIN(date(created_at)) AS min_day, MAX(date(created_at)) AS max_day
		FROM products_snapshots`).Scan(&bounds).Error
	if err != nil {
		return "", "", err
	}
	if bounds.MinDay == nil || bounds.MaxDay == nil {
		return "", "", nil
	}
	return *bounds.MinDay, *bounds.MaxDay, nil
}

func (d *Database) GetTopSellingProducts(limit int) ([]ProductSales, error) {
	var rows []ProductSales
	err := d.db.Raw(`
		SELECT name, SUM(quantity) AS total_sold
		FROM products_snapshots
		GROUP BY product_id, name
		ORDER BY total_sold DESC
		LIMIT ?`, limit).Scan(&rows).Error
	return rows, err
}

func (d *Database) GetProfitMargin() (*ProfitMargin, error) {
	var margin ProfitMargin
	err := d.db.Raw(`
		SELECT IFNULL(SUM(quantity * (price_sell - price_buy)), 0) AS total_profit,
		       IFNULL(SUM(quantity * price_buy), 0) AS total_cost
		FROM products_snapshots`).Scan(&margin).Error
	if err != nil {
		return nil, err
	}
	return &margin, nil
}

func (d *Database) GetProductStatistics() (*ProductStatistics, error) {
	stats := &ProductStatistics{}

	if err := d.db.Raw(`SELECT COUNT(*) FROM products`).Scan(&stats.TotalProducts).Error; err != nil {
		return nil, err
	}
	if err := d.db.Raw(`SELECT IFNULL(SUM(quantity), 0) FROM products_snapshots`).
		Scan(&stats.TotalQuantitySold).Error; err != nil {
		return nil, err
	}
	if err := d.db.Raw(`SELECT IFNULL(SUM((price_sell - price_buy) * quantity), 0) FROM products_snapshots`).
		Scan(&stats.TotalProfit).Error; err != nil {
		return nil, err
	}
	if err := d.db.Raw(`SELECT IFNULL(SUM(stock * price_buy), 0) FROM products`).
		Scan(&stats.StockValueBuy).Error; err != nil {
		return nil, err
	}
	if err := d.db.Raw(`SELECT IFNULL(SUM(stock * price_sell), 0) FROM products`).
		Scan(&stats.StockValueSell).Error; err != nil {
		return nil, err
	}

	if err := d.db.Raw(`
		SELECT name, SUM(quantity) AS total_sold
		FROM products_snapshots
		GROUP BY name
		ORDER BY total_sold DESC
		LIMIT 1`).Scan(&stats.MostSold).Error; err != nil {
		return nil, err
	}
	if err := d.db.Raw(`
		SELECT name, SUM(quantity) AS total_sold
		FROM products_snapshots
		GROUP BY name
		HAVING total_sold > 0
		ORDER BY total_sold ASC
		LIMIT 1`).Scan(&stats.LeastSold).Error; err != nil {
		return nil, err
	}
	if err := d.db.Raw(`
		SELECT name, SUM(quantity * price_sell) AS revenue
		FROM products_snapshots
		GROUP BY name
		ORDER BY revenue DESC
		LIMIT 1`).Scan(&stats.TopRevenue).Error; err != nil {
		return nil, err
	}

	return stats, nil
}
