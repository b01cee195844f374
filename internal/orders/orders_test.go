package orders_test

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/walllidioooo/storepos/internal/borrowers"
	"github.com/walllidioooo/storepos/internal/catalog"
	"github.com/walllidioooo/storepos/internal/database"
	"github.com/walllidioooo/storepos/internal/orders"
	"github.com/walllidioooo/storepos/internal/types"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := database.NewDatabase("file:" + t.Name() + "?mode=memory&cache=shared")
	require.NoError(t, err)
	return db
}

func int64Ptr(v int64) *int64 { return &v }

func seedProduct(t *testing.T, db *gorm.DB, id int64, name string, priceBuy, priceSell float64, stock *int64) {
	t.Helper()
	service := catalog.NewService(db)
	_, err := service.AddProductWithID(id, name, priceBuy, priceSell, stock, nil)
	require.NoError(t, err)
}

func productStock(t *testing.T, db *gorm.DB, id int64) *int64 {
	t.Helper()
	product, err := catalog.NewService(db).GetProduct(id)
	require.NoError(t, err)
	require.NotNil(t, product)
	return product.Stock
}

func TestPlaceOrderDecrementsStockAndSnapshotsProducts(t *testing.T) {
	db := setupTestDB(t)
	seedProduct(t, db, 100, "Rice 5kg", 30, 42.5, int64Ptr(10))
	seedProduct(t, db, 200, "Sugar 1kg", 8, 12, int64Ptr(4))

	service := orders.NewService(db)
	orderID, err := service.PlaceOrder([]types.OrderLine{
		{ProductID: 100, Quantity: 2},
		{ProductID: 200, Quantity: 1},
	}, "")
	require.NoError(t, err)
	require.NotZero(t, orderID)

	assert.Equal(t, int64(8), *productStock(t, db, 100))
	assert.Equal(t, int64(3), *productStock(t, db, 200))

	lines, err := service.GetProductsInOrder(orderID, 10, 0)
	require.NoError(t, err)
	require.Len(t, lines, 2)
	assert.Equal(t, "Rice 5kg", lines[0].Name)
	assert.Equal(t, int64(2), lines[0].Quantity)
	assert.Equal(t, 42.5, lines[0].PriceSell)
	assert.Equal(t, 85.0, lines[0].SubtotalSell)
}

func TestPlaceOrderUnknownProductRollsBackEverything(t *testing.T) {
	db := setupTestDB(t)
	seedProduct(t, db, 100, "Rice 5kg", 30, 42.5, int64Ptr(10))

	service := orders.NewService(db)
	_, err := service.PlaceOrder([]types.OrderLine{
		{ProductID: 100, Quantity: 2},
		{ProductID: 9999, Quantity: 1},
	}, "")
	require.Error(t, err)
	assert.True(t, errors.Is(err, orders.ErrProductNotFound))

	// The first line must not have left any trace.
	assert.Equal(t, int64(10), *productStock(t, db, 100))

	count, err := service.CountOrders()
	require.NoError(t, err)
	assert.Zero(t, count)

	var snapshots int64
	require.NoError(t, db.Model(&types.ProductSnapshot{}).Count(&snapshots).Error)
	assert.Zero(t, snapshots)
}

func TestPlaceOrderInsufficientStock(t *testing.T) {
	db := setupTestDB(t)
	seedProduct(t, db, 100, "Rice 5kg", 30, 42.5, int64Ptr(3))

	service := orders.NewService(db)
	_, err := service.PlaceOrder([]types.OrderLine{{ProductID: 100, Quantity: 5}}, "")
	require.Error(t, err)

	var stockErr *orders.InsufficientStockError
	require.True(t, errors.As(err, &stockErr))
	assert.Equal(t, "Rice 5kg", stockErr.Product)
	assert.Equal(t, int64(3), stockErr.Available)
	assert.Equal(t, int64(5), stockErr.Requested)

	assert.Equal(t, int64(3), *productStock(t, db, 100))
}

func TestPlaceOrderUntrackedStock(t *testing.T) {
	db := setupTestDB(t)
	seedProduct(t, db, 100, "Service Item", 0, 15, nil)

	service := orders.NewService(db)
	orderID, err := service.PlaceOrder([]types.OrderLine{{ProductID: 100, Quantity: 50}}, "")
	require.NoError(t, err)
	require.NotZero(t, orderID)

	// Untracked stock stays untracked.
	assert.Nil(t, productStock(t, db, 100))
}

func TestPlaceOrderEmpty(t *testing.T) {
	db := setupTestDB(t)
	service := orders.NewService(db)

	_, err := service.PlaceOrder(nil, "")
	assert.ErrorIs(t, err, orders.ErrEmptyOrder)
}

func TestPlaceOrderIdempotencyKey(t *testing.T) {
	db := setupTestDB(t)
	seedProduct(t, db, 100, "Rice 5kg", 30, 42.5, int64Ptr(10))

	service := orders.NewService(db)
	lines := []types.OrderLine{{ProductID: 100, Quantity: 1}}

	first, err := service.PlaceOrder(lines, "key-1")
	require.NoError(t, err)
	second, err := service.PlaceOrder(lines, "key-1")
	require.NoError(t, err)
	assert.Equal(t, first, second)

	count, err := service.CountOrders()
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	// Stock was only decremented once.
	assert.Equal(t, int64(9), *productStock(t, db, 100))
}

func TestPlaceOrderIdempotencyKeyExpired(t *testing.T) {
	db := setupTestDB(t)
	seedProduct(t, db, 100, "Rice 5kg", 30, 42.5, int64Ptr(10))

	service := orders.NewService(db)
	lines := []types.OrderLine{{ProductID: 100, Quantity: 1}}

	first, err := service.PlaceOrder(lines, "key-1")
	require.NoError(t, err)

	// Age the record past its expiry; the key is free to be reused.
	require.NoError(t, db.Model(&orders.IdempotencyRecord{}).
		Where("idempotency_key = ?", "key-1").
		Update("expires_at", time.Now().Add(-time.Hour)).Error)

	second, err := service.PlaceOrder(lines, "key-1")
	require.NoError(t, err)
	assert.NotEqual(t, first, second)

	count, err := service.CountOrders()
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
	assert.Equal(t, int64(8), *productStock(t, db, 100))

	// The record now belongs to the fresh order.
	record, err := service.PlaceOrder(lines, "key-1")
	require.NoError(t, err)
	assert.Equal(t, second, record)
}

func TestDeleteOrderRestoresStock(t *testing.T) {
	db := setupTestDB(t)
	seedProduct(t, db, 100, "Rice 5kg", 30, 42.5, int64Ptr(10))
	seedProduct(t, db, 200, "Sugar 1kg", 8, 12, int64Ptr(4))

	service := orders.NewService(db)
	orderID, err := service.PlaceOrder([]types.OrderLine{
		{ProductID: 100, Quantity: 3},
		{ProductID: 200, Quantity: 2},
	}, "")
	require.NoError(t, err)

	require.NoError(t, service.DeleteOrder(orderID))

	assert.Equal(t, int64(10), *productStock(t, db, 100))
	assert.Equal(t, int64(4), *productStock(t, db, 200))

	count, err := service.CountOrders()
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestDeleteOrderWithVanishedProduct(t *testing.T) {
	db := setupTestDB(t)
	seedProduct(t, db, 100, "Rice 5kg", 30, 42.5, int64Ptr(10))

	service := orders.NewService(db)
	orderID, err := service.PlaceOrder([]types.OrderLine{{ProductID: 100, Quantity: 2}}, "")
	require.NoError(t, err)

	// The product leaves the catalog before the order is reversed. The
	// restore becomes a no-op rather than an error.
	require.NoError(t, catalog.NewService(db).DeleteProduct(100))
	require.NoError(t, service.DeleteOrder(orderID))

	count, err := service.CountOrders()
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestGetOrdersWithTotal(t *testing.T) {
	db := setupTestDB(t)
	seedProduct(t, db, 100, "Rice 5kg", 30, 40, int64Ptr(100))
	seedProduct(t, db, 200, "Sugar 1kg", 8, 12, int64Ptr(100))

	service := orders.NewService(db)
	firstID, err := service.PlaceOrder([]types.OrderLine{
		{ProductID: 100, Quantity: 2}, // sell 80, profit 20
		{ProductID: 200, Quantity: 1}, // sell 12, profit 4
	}, "")
	require.NoError(t, err)

	secondID, err := service.PlaceOrder([]types.OrderLine{
		{ProductID: 200, Quantity: 3}, // sell 36, profit 12
	}, "")
	require.NoError(t, err)

	// Put the second order on credit so has_borrower flips.
	borrowerService := borrowers.NewService(db)
	borrowerID, err := borrowerService.AddBorrower("Ahmed", time.Now(), 0)
	require.NoError(t, err)
	result, err := borrowerService.LinkOrderToBorrower(secondID, borrowerID)
	require.NoError(t, err)
	require.True(t, result.Linked)

	list, err := service.GetOrdersWithTotal(orders.ListOptions{SortBy: "price_sell", Limit: 10})
	require.NoError(t, err)
	require.Len(t, list, 2)

	assert.Equal(t, firstID, list[0].OrderID)
	assert.Equal(t, 92.0, list[0].TotalSell)
	assert.Equal(t, 24.0, list[0].Profit)
	assert.False(t, list[0].HasBorrower)

	assert.Equal(t, secondID, list[1].OrderID)
	assert.Equal(t, 36.0, list[1].TotalSell)
	assert.True(t, list[1].HasBorrower)
}

func TestGetOrdersWithTotalRepeatableReads(t *testing.T) {
	db := setupTestDB(t)
	seedProduct(t, db, 100, "Rice 5kg", 30, 40, int64Ptr(100))
	seedProduct(t, db, 200, "Sugar 1kg", 8, 12, int64Ptr(100))

	service := orders.NewService(db)
	_, err := service.PlaceOrder([]types.OrderLine{
		{ProductID: 100, Quantity: 2},
		{ProductID: 200, Quantity: 1},
	}, "")
	require.NoError(t, err)
	_, err = service.PlaceOrder([]types.OrderLine{{ProductID: 200, Quantity: 3}}, "")
	require.NoError(t, err)

	opts := orders.ListOptions{SortBy: "price_sell", Limit: 10}
	first, err := service.GetOrdersWithTotal(opts)
	require.NoError(t, err)
	second, err := service.GetOrdersWithTotal(opts)
	require.NoError(t, err)

	// Reading must not mutate anything the next read can observe.
	assert.Equal(t, first, second)
}

func TestGetOrderStatistics(t *testing.T) {
	db := setupTestDB(t)
	seedProduct(t, db, 100, "Rice 5kg", 30, 40, int64Ptr(100))

	service := orders.NewService(db)
	_, err := service.PlaceOrder([]types.OrderLine{{ProductID: 100, Quantity: 1}}, "")
	require.NoError(t, err)
	bigID, err := service.PlaceOrder([]types.OrderLine{{ProductID: 100, Quantity: 5}}, "")
	require.NoError(t, err)

	stats, err := service.GetOrderStatistics()
	require.NoError(t, err)

	assert.Equal(t, int64(2), stats.TotalOrders)
	assert.Equal(t, 240.0, stats.TotalSell)
	assert.Equal(t, 180.0, stats.TotalBuy)
	assert.Equal(t, 60.0, stats.TotalProfit)
	assert.Equal(t, 30.0, stats.AverageProfit)
	require.NotNil(t, stats.LargestOrderID)
	assert.Equal(t, bigID, *stats.LargestOrderID)
}
