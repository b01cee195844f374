package borrowers_test

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
	"github.com/walllidioooo/storepos/internal/types"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := database.NewDatabase("file:" + t.Name() + "?mode=memory&cache=shared")
	require.NoError(t, err)
	return db
}

func int64Ptr(v int64) *int64 { return &v }

// placeOrder seeds a product priced so the order totals exactly total, then
// places a one-line order for it.
func placeOrder(t *testing.T, db *gorm.DB, productID int64, total float64) uint {
	t.Helper()
	_, err := catalog.NewService(db).AddProductWithID(productID, "Item", total/2, total, int64Ptr(100), nil)
	require.NoError(t, err)

	orderID, err := orders.NewService(db).PlaceOrder(
		[]types.OrderLine{{ProductID: productID, Quantity: 1}}, "")
	require.NoError(t, err)
	return orderID
}

func borrowerAmount(t *testing.T, service *borrowers.Service, id uint) float64 {
	t.Helper()
	borrower, err := service.GetBorrower(id)
	require.NoError(t, err)
	require.NotNil(t, borrower)
	return borrower.Amount
}

func TestLinkOrderExactlyOnce(t *testing.T) {
	db := setupTestDB(t)
	orderID := placeOrder(t, db, 100, 150)

	service := borrowers.NewService(db)
	first, err := service.AddBorrower("Ahmed", time.Now(), 0)
	require.NoError(t, err)
	second, err := service.AddBorrower("Fatima", time.Now(), 0)
	require.NoError(t, err)

	result, err := service.LinkOrderToBorrower(orderID, first)
	require.NoError(t, err)
	assert.True(t, result.Linked)
	assert.Equal(t, 150.0, borrowerAmount(t, service, first))

	// Second attempt, even against another borrower, is softly rejected.
	result, err = service.LinkOrderToBorrower(orderID, second)
	require.NoError(t, err)
	assert.False(t, result.Linked)
	assert.NotEmpty(t, result.Reason)
	assert.Equal(t, 0.0, borrowerAmount(t, service, second))

	var snapshots int64
	require.NoError(t, db.Model(&borrowers.OrderSnapshot{}).Count(&snapshots).Error)
	assert.Equal(t, int64(1), snapshots)
}

func TestLinkDeletedOrderFailsHard(t *testing.T) {
	db := setupTestDB(t)
	orderID := placeOrder(t, db, 100, 50)
	require.NoError(t, orders.NewService(db).DeleteOrder(orderID))

	service := borrowers.NewService(db)
	borrowerID, err := service.AddBorrower("Ahmed", time.Now(), 0)
	require.NoError(t, err)

	_, err = service.LinkOrderToBorrower(orderID, borrowerID)
	assert.ErrorIs(t, err, borrowers.ErrOrderNotFound)
}

func TestHistorySurvivesOrderDeletion(t *testing.T) {
	db := setupTestDB(t)
	orderID := placeOrder(t, db, 100, 80)

	service := borrowers.NewService(db)
	borrowerID, err := service.AddBorrower("Ahmed", time.Now(), 0)
	require.NoError(t, err)

	result, err := service.LinkOrderToBorrower(orderID, borrowerID)
	require.NoError(t, err)
	require.True(t, result.Linked)

	require.NoError(t, orders.NewService(db).DeleteOrder(orderID))

	// The live order is gone but the frozen history is intact.
	history, err := service.GetSnapshotOrdersForBorrower(borrowerID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, 80.0, history[0].TotalPrice)
	require.Len(t, history[0].Products, 1)
	assert.Equal(t, "Item", history[0].Products[0].Name)
	assert.Equal(t, int64(1), history[0].Products[0].Quantity)

	assert.Equal(t, 80.0, borrowerAmount(t, service, borrowerID))
}

func TestDeleteBorrowerCascadesOnlyTheirHistory(t *testing.T) {
	db := setupTestDB(t)
	firstOrder := placeOrder(t, db, 100, 60)
	secondOrder := placeOrder(t, db, 200, 90)

	service := borrowers.NewService(db)
	first, err := service.AddBorrower("Ahmed", time.Now(), 0)
	require.NoError(t, err)
	second, err := service.AddBorrower("Fatima", time.Now(), 0)
	require.NoError(t, err)

	result, err := service.LinkOrderToBorrower(firstOrder, first)
	require.NoError(t, err)
	require.True(t, result.Linked)
	result, err = service.LinkOrderToBorrower(secondOrder, second)
	require.NoError(t, err)
	require.True(t, result.Linked)

	require.NoError(t, service.DeleteBorrower(first))

	gone, err := service.GetBorrower(first)
	require.NoError(t, err)
	assert.Nil(t, gone)

	var snapshots, products int64
	require.NoError(t, db.Model(&borrowers.OrderSnapshot{}).Count(&snapshots).Error)
	require.NoError(t, db.Model(&borrowers.OrderSnapshotProduct{}).Count(&products).Error)
	assert.Equal(t, int64(1), snapshots)
	assert.Equal(t, int64(1), products)

	history, err := service.GetSnapshotOrdersForBorrower(second)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, 90.0, history[0].TotalPrice)
}

func TestRecalculateAmount(t *testing.T) {
	db := setupTestDB(t)
	firstOrder := placeOrder(t, db, 100, 25)
	secondOrder := placeOrder(t, db, 200, 75)

	service := borrowers.NewService(db)
	borrowerID, err := service.AddBorrower("Ahmed", time.Now(), 0)
	require.NoError(t, err)

	for _, orderID := range []uint{firstOrder, secondOrder} {
		result, err := service.LinkOrderToBorrower(orderID, borrowerID)
		require.NoError(t, err)
		require.True(t, result.Linked)
	}

	// Corrupt the cached total, then rebuild it from snapshot history.
	require.NoError(t, service.UpdateBorrowerAmountDirect(borrowerID, 9999))
	assert.Equal(t, 9999.0, borrowerAmount(t, service, borrowerID))

	recalculated, err := service.RecalculateAmount(borrowerID)
	require.NoError(t, err)
	assert.Equal(t, 100.0, recalculated)
	assert.Equal(t, 100.0, borrowerAmount(t, service, borrowerID))
}

func TestUpdateAmountUnknownBorrower(t *testing.T) {
	db := setupTestDB(t)
	service := borrowers.NewService(db)

	err := service.UpdateBorrowerAmountDirect(4242, 10)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestListBorrowers(t *testing.T) {
	db := setupTestDB(t)
	service := borrowers.NewService(db)

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	_, err := service.AddBorrower("Ahmed", base, 30)
	require.NoError(t, err)
	_, err = service.AddBorrower("Fatima", base.AddDate(0, 0, 1), 10)
	require.NoError(t, err)
	_, err = service.AddBorrower("Farid", base.AddDate(0, 0, 2), 20)
	require.NoError(t, err)

	byAmount, err := service.GetBorrowers("", "amount", false, 10, 0)
	require.NoError(t, err)
	require.Len(t, byAmount, 3)
	assert.Equal(t, "Ahmed", byAmount[0].Name)
	assert.Equal(t, "Fatima", byAmount[2].Name)

	matched, err := service.GetBorrowers("Fa", "date", true, 10, 0)
	require.NoError(t, err)
	require.Len(t, matched, 2)
	assert.Equal(t, "Fatima", matched[0].Name)
	assert.Equal(t, "Farid", matched[1].Name)

	total, err := service.CountBorrowers("Fa")
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
}
