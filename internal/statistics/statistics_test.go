package statistics_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/walllidioooo/storepos/internal/borrowers"
	"github.com/walllidioooo/storepos/internal/catalog"
	"github.com/walllidioooo/storepos/internal/database"
	"github.com/walllidioooo/storepos/internal/orders"
	"github.com/walllidioooo/storepos/internal/statistics"
	"github.com/walllidioooo/storepos/internal/types"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := database.NewDatabase("file:" + t.Name() + "?mode=memory&cache=shared")
	require.NoError(t, err)
	return db
}

func int64Ptr(v int64) *int64 { return &v }

// seedSnapshot plants a sold line directly at a chosen day, bypassing order
// placement, for time-series tests.
func seedSnapshot(t *testing.T, db *gorm.DB, day time.Time, name string, priceBuy, priceSell float64, quantity int64) {
	t.Helper()
	productID := int64(100)
	snapshot := types.ProductSnapshot{
		OrderID:   1,
		ProductID: &productID,
		Name:      name,
		PriceBuy:  priceBuy,
		PriceSell: priceSell,
		Quantity:  quantity,
		CreatedAt: day,
	}
	require.NoError(t, db.Create(&snapshot).Error)
}

func TestDashboardKPIs(t *testing.T) {
	db := setupTestDB(t)

	_, err := catalog.NewService(db).AddProductWithID(100, "Rice 5kg", 30, 40, int64Ptr(50), nil)
	require.NoError(t, err)
	_, err = orders.NewService(db).PlaceOrder([]types.OrderLine{{ProductID: 100, Quantity: 2}}, "")
	require.NoError(t, err)
	_, err = borrowers.NewService(db).AddBorrower("Ahmed", time.Now(), 55)
	require.NoError(t, err)

	kpis, err := statistics.NewService(db).GetDashboardKPIs()
	require.NoError(t, err)

	assert.Equal(t, 80.0, kpis.TotalSales)
	assert.Equal(t, 20.0, kpis.TotalProfit)
	assert.Equal(t, int64(1), kpis.TotalOrders)
	assert.Equal(t, 55.0, kpis.TotalDebt)
}

func TestSalesSeriesZeroFillsQuietDays(t *testing.T) {
	db := setupTestDB(t)
	seedSnapshot(t, db, time.Now(), "Rice 5kg", 30, 40, 2)

	series, err := statistics.NewService(db).GetSalesSeries(statistics.SeriesOptions{Duration: "7"})
	require.NoError(t, err)

	assert.Equal(t, "daily", series.Accuracy)
	require.Len(t, series.Labels, 7)
	require.Len(t, series.Sales, 7)

	// Six quiet days, then today's sale.
	for i := 0; i < 6; i++ {
		assert.Zero(t, series.Sales[i])
	}
	assert.Equal(t, 80.0, series.Sales[6])
	assert.Equal(t, 20.0, series.Profit[6])
	assert.Equal(t, time.Now().Format("2006-01-02"), series.Labels[6])
}

func TestSalesSeriesEmptyDatabase(t *testing.T) {
	db := setupTestDB(t)

	series, err := statistics.NewService(db).GetSalesSeries(statistics.SeriesOptions{Duration: "all"})
	require.NoError(t, err)

	assert.Equal(t, "daily", series.Accuracy)
	require.Len(t, series.Labels, 1)
	assert.Equal(t, time.Now().Format("2006-01-02"), series.Labels[0])
	assert.Zero(t, series.Sales[0])
}

func TestSalesSeriesAutoAccuracy(t *testing.T) {
	db := setupTestDB(t)
	service := statistics.NewService(db)

	// 61 days lands in the 3-day band.
	series, err := service.GetSalesSeries(statistics.SeriesOptions{
		Duration: "custom",
		Start:    "2026-01-01",
		End:      "2026-03-02",
	})
	require.NoError(t, err)
	assert.Equal(t, "3-day", series.Accuracy)
	assert.Len(t, series.Labels, 21)

	// A year falls back to weekly.
	series, err = service.GetSalesSeries(statistics.SeriesOptions{
		Duration: "custom",
		Start:    "2025-01-01",
		End:      "2025-12-31",
	})
	require.NoError(t, err)
	assert.Equal(t, "weekly", series.Accuracy)
}

func TestSalesSeriesWeeklyBucketsStartMonday(t *testing.T) {
	db := setupTestDB(t)

	// 2026-03-03 is a Tuesday; its bucket is keyed by Monday 2026-03-02.
	day := time.Date(2026, 3, 3, 10, 0, 0, 0, time.UTC)
	seedSnapshot(t, db, day, "Rice 5kg", 30, 40, 1)
	seedSnapshot(t, db, day.AddDate(0, 0, 2), "Rice 5kg", 30, 40, 2)

	series, err := statistics.NewService(db).GetSalesSeries(statistics.SeriesOptions{
		Duration: "custom",
		Start:    "2026-03-03",
		End:      "2026-03-05",
		Accuracy: "weekly",
	})
	require.NoError(t, err)

	require.Len(t, series.Labels, 1)
	assert.Equal(t, "2026-03-02 to 2026-03-08", series.Labels[0])
	assert.Equal(t, 120.0, series.Sales[0])
	assert.Equal(t, 30.0, series.Profit[0])
}

func TestSalesSeriesCustomRequiresBounds(t *testing.T) {
	db := setupTestDB(t)

	_, err := statistics.NewService(db).GetSalesSeries(statistics.SeriesOptions{Duration: "custom"})
	assert.Error(t, err)
}

func TestTopSellingAndProductStatistics(t *testing.T) {
	db := setupTestDB(t)

	catalogService := catalog.NewService(db)
	_, err := catalogService.AddProductWithID(100, "Rice 5kg", 30, 40, int64Ptr(50), nil)
	require.NoError(t, err)
	_, err = catalogService.AddProductWithID(200, "Sugar 1kg", 8, 12, int64Ptr(20), nil)
	require.NoError(t, err)

	orderService := orders.NewService(db)
	_, err = orderService.PlaceOrder([]types.OrderLine{
		{ProductID: 100, Quantity: 5},
		{ProductID: 200, Quantity: 2},
	}, "")
	require.NoError(t, err)

	service := statistics.NewService(db)

	top, err := service.GetTopSellingProducts()
	require.NoError(t, err)
	require.Len(t, top, 2)
	assert.Equal(t, "Rice 5kg", top[0].Name)
	assert.Equal(t, int64(5), top[0].TotalSold)

	margin, err := service.GetProfitMargin()
	require.NoError(t, err)
	assert.Equal(t, 58.0, margin.TotalProfit)
	assert.Equal(t, 166.0, margin.TotalCost)

	stats, err := service.GetProductStatistics()
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.TotalProducts)
	assert.Equal(t, int64(7), stats.TotalQuantitySold)
	assert.Equal(t, "Rice 5kg", stats.MostSold.Name)
	assert.Equal(t, "Sugar 1kg", stats.LeastSold.Name)
}
