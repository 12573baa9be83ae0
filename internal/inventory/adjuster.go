package inventory

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	pkgerrors "github.com/analogfan/marketplace-backend/pkg/errors"
)

// Adjuster mutates item stock levels inside a caller-provided transaction.
type Adjuster interface {
	Decrement(ctx context.Context, tx *gorm.DB, itemID int64, qty int) error
	Restock(ctx context.Context, tx *gorm.DB, itemID int64, qty int) error
}

type adjusterImpl struct{}

// NewAdjuster exposes the default stock adjuster.
func NewAdjuster() Adjuster {
	return adjusterImpl{}
}

// Decrement subtracts qty from the item's stock. The stock-sufficiency check
// lives in the UPDATE predicate so concurrent decrements cannot oversell.
func (adjusterImpl) Decrement(ctx context.Context, tx *gorm.DB, itemID int64, qty int) error {
	if qty <= 0 {
		return nil
	}
	if tx == nil {
		return pkgerrors.New(pkgerrors.CodeDependency, "transaction required for inventory decrement")
	}

	res := tx.WithContext(ctx).Exec(`
		UPDATE items
		SET quantity = quantity - ?,
			updated_at = CURRENT_TIMESTAMP
		WHERE item_id = ? AND quantity >= ?
	`, qty, itemID, qty)
	if res.Error != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "decrement inventory")
	}
	if res.RowsAffected == 0 {
		return pkgerrors.New(pkgerrors.CodeInsufficientStock,
			fmt.Sprintf("item %d has insufficient stock for quantity %d", itemID, qty))
	}
	return nil
}

// Restock returns qty to the item's stock, used when a paid order is cancelled.
func (adjusterImpl) Restock(ctx context.Context, tx *gorm.DB, itemID int64, qty int) error {
	if qty <= 0 {
		return nil
	}
	if tx == nil {
		return pkgerrors.New(pkgerrors.CodeDependency, "transaction required for inventory restock")
	}

	res := tx.WithContext(ctx).Exec(`
		UPDATE items
		SET quantity = quantity + ?,
			updated_at = CURRENT_TIMESTAMP
		WHERE item_id = ?
	`, qty, itemID)
	if res.Error != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "restock inventory")
	}
	return nil
}
