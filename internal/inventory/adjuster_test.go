package inventory

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/analogfan/marketplace-backend/pkg/db/models"
	pkgerrors "github.com/analogfan/marketplace-backend/pkg/errors"
)

func setupInventoryTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{})
	require.NoError(t, err)

	items := `
CREATE TABLE IF NOT EXISTS items (
  item_id INTEGER PRIMARY KEY AUTOINCREMENT,
  user_id INTEGER NOT NULL,
  title TEXT NOT NULL,
  price NUMERIC NOT NULL,
  quantity INTEGER NOT NULL DEFAULT 0,
  created_at DATETIME,
  updated_at DATETIME
);`
	require.NoError(t, db.Exec(items).Error)
	return db
}

func seedStock(t *testing.T, db *gorm.DB, qty int) *models.Item {
	t.Helper()

	item := &models.Item{
		UserID:   1,
		Title:    "Test LP",
		Price:    decimal.RequireFromString("25.00"),
		Quantity: qty,
	}
	require.NoError(t, db.Create(item).Error)
	return item
}

func stockOf(t *testing.T, db *gorm.DB, itemID int64) int {
	t.Helper()

	var item models.Item
	require.NoError(t, db.Where("item_id = ?", itemID).First(&item).Error)
	return item.Quantity
}

func TestAdjusterDecrement(t *testing.T) {
	db := setupInventoryTestDB(t)
	adjuster := NewAdjuster()
	ctx := context.Background()

	item := seedStock(t, db, 5)

	require.NoError(t, adjuster.Decrement(ctx, db, item.ID, 3))
	assert.Equal(t, 2, stockOf(t, db, item.ID))
}

func TestAdjusterDecrement_guardsAgainstOversell(t *testing.T) {
	db := setupInventoryTestDB(t)
	adjuster := NewAdjuster()
	ctx := context.Background()

	item := seedStock(t, db, 2)

	err := adjuster.Decrement(ctx, db, item.ID, 3)
	require.Error(t, err)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeInsufficientStock))
	assert.Equal(t, 2, stockOf(t, db, item.ID), "failed decrement must not touch stock")
}

func TestAdjusterDecrement_zeroQuantityIsNoop(t *testing.T) {
	db := setupInventoryTestDB(t)
	adjuster := NewAdjuster()

	item := seedStock(t, db, 2)

	require.NoError(t, adjuster.Decrement(context.Background(), db, item.ID, 0))
	assert.Equal(t, 2, stockOf(t, db, item.ID))
}

func TestAdjusterDecrement_requiresTransaction(t *testing.T) {
	adjuster := NewAdjuster()
	err := adjuster.Decrement(context.Background(), nil, 1, 1)
	require.Error(t, err)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeDependency))
}

func TestAdjusterRestock(t *testing.T) {
	db := setupInventoryTestDB(t)
	adjuster := NewAdjuster()
	ctx := context.Background()

	item := seedStock(t, db, 1)

	require.NoError(t, adjuster.Restock(ctx, db, item.ID, 4))
	assert.Equal(t, 5, stockOf(t, db, item.ID))
}
