package backup_test

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/walllidioooo/storepos/internal/backup"
	"github.com/walllidioooo/storepos/internal/borrowers"
	"github.com/walllidioooo/storepos/internal/catalog"
	"github.com/walllidioooo/storepos/internal/database"
	"github.com/walllidioooo/storepos/internal/orders"
	"github.com/walllidioooo/storepos/internal/types"
)

// setupFileDB opens a file-backed database; export and import go through
// real sqlite files, matching how the endpoint is used.
func setupFileDB(t *testing.T, name string) *gorm.DB {
	t.Helper()
	db, err := database.NewDatabase(filepath.Join(t.TempDir(), name))
	require.NoError(t, err)
	return db
}

func int64Ptr(v int64) *int64 { return &v }

func TestExportImportRoundTrip(t *testing.T) {
	source := setupFileDB(t, "source.db")

	_, err := catalog.NewService(source).AddProductWithID(100, "Rice 5kg", 30, 40, int64Ptr(10), nil)
	require.NoError(t, err)
	orderID, err := orders.NewService(source).PlaceOrder(
		[]types.OrderLine{{ProductID: 100, Quantity: 2}}, "")
	require.NoError(t, err)

	borrowerService := borrowers.NewService(source)
	borrowerID, err := borrowerService.AddBorrower("Ahmed", time.Now(), 0)
	require.NoError(t, err)
	result, err := borrowerService.LinkOrderToBorrower(orderID, borrowerID)
	require.NoError(t, err)
	require.True(t, result.Linked)

	data, err := backup.NewService(source).Export()
	require.NoError(t, err)
	require.NotEmpty(t, data)

	// Restore into a database that already has conflicting content.
	target := setupFileDB(t, "target.db")
	_, err = catalog.NewService(target).AddProductWithID(999, "Stale", 1, 2, nil, nil)
	require.NoError(t, err)

	targetBackup := backup.NewService(target)
	require.NoError(t, targetBackup.Import(data, "drive-file-42"))

	product, err := catalog.NewService(target).GetProduct(100)
	require.NoError(t, err)
	require.NotNil(t, product)
	assert.Equal(t, "Rice 5kg", product.Name)
	assert.Equal(t, int64(8), *product.Stock)

	stale, err := catalog.NewService(target).GetProduct(999)
	require.NoError(t, err)
	assert.Nil(t, stale)

	history, err := borrowers.NewService(target).GetSnapshotOrdersForBorrower(borrowerID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, 80.0, history[0].TotalPrice)

	fileID, err := targetBackup.LastImportID()
	require.NoError(t, err)
	assert.Equal(t, "drive-file-42", fileID)
}

func TestImportClearsStaleIdempotencyRecords(t *testing.T) {
	source := setupFileDB(t, "source.db")
	_, err := catalog.NewService(source).AddProductWithID(100, "Rice 5kg", 30, 40, int64Ptr(10), nil)
	require.NoError(t, err)
	data, err := backup.NewService(source).Export()
	require.NoError(t, err)

	target := setupFileDB(t, "target.db")
	_, err = catalog.NewService(target).AddProductWithID(999, "Stale", 1, 2, int64Ptr(5), nil)
	require.NoError(t, err)
	_, err = orders.NewService(target).PlaceOrder(
		[]types.OrderLine{{ProductID: 999, Quantity: 1}}, "stale-key")
	require.NoError(t, err)

	require.NoError(t, backup.NewService(target).Import(data, ""))

	// Records tied to the pre-import order ids must not survive.
	var records int64
	require.NoError(t, target.Model(&orders.IdempotencyRecord{}).Count(&records).Error)
	assert.Zero(t, records)
}

func TestImportRejectsInvalidFile(t *testing.T) {
	db := setupFileDB(t, "store.db")
	service := backup.NewService(db)

	err := service.Import([]byte("this is not a sqlite database"), "")
	assert.ErrorIs(t, err, backup.ErrInvalidDatabase)

	// The live database is untouched.
	count, err := orders.NewService(db).CountOrders()
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestRememberImportIDUpsert(t *testing.T) {
	db := setupFileDB(t, "store.db")
	service := backup.NewService(db)

	fileID, err := service.LastImportID()
	require.NoError(t, err)
	assert.Empty(t, fileID)

	require.NoError(t, service.RememberImportID("first"))
	require.NoError(t, service.RememberImportID("second"))

	fileID, err = service.LastImportID()
	require.NoError(t, err)
	assert.Equal(t, "second", fileID)
}
