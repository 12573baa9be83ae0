package orders

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/analogfan/marketplace-backend/pkg/db/models"
	"github.com/analogfan/marketplace-backend/pkg/enums"
)

type repository struct {
	db *gorm.DB
}

// NewRepository builds an orders repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, order *models.Order) (*models.Order, error) {
	if err := r.db.WithContext(ctx).Create(order).Error; err != nil {
		return nil, err
	}
	return order, nil
}

func (r *repository) FindByID(ctx context.Context, orderID int64) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Preload("Items").
		Where("id = ?", orderID).
		First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) FindByOrderNumber(ctx context.Context, orderNumber string) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Where("order_number = ?", orderNumber).
		First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) FindWithBuyer(ctx context.Context, orderID int64) (*models.Order, *models.User, error) {
	order, err := r.FindByID(ctx, orderID)
	if err != nil {
		return nil, nil, err
	}

	var buyer models.User
	err = r.db.WithContext(ctx).
		Where("user_id = ?", order.UserID).
		First(&buyer).Error
	if err == gorm.ErrRecordNotFound {
		return order, nil, nil
	}
	if err != nil {
		return nil, nil, err
	}
	return order, &buyer, nil
}

func (r *repository) ListAll(ctx context.Context) ([]models.Order, error) {
	var orders []models.Order
	err := r.db.WithContext(ctx).
		Order("created_at DESC").
		Find(&orders).Error
	if err != nil {
		return nil, err
	}
	return orders, nil
}

func (r *repository) ListByUser(ctx context.Context, userID int64) ([]models.Order, error) {
	var orders []models.Order
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&orders).Error
	if err != nil {
		return nil, err
	}
	return orders, nil
}

// ListBySeller returns paid orders containing at least one item sold by the
// given user.
func (r *repository) ListBySeller(ctx context.Context, sellerID int64) ([]models.Order, error) {
	var orders []models.Order
	err := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Distinct("orders.*").
		Joins("INNER JOIN order_items ON order_items.order_id = orders.id").
		Joins("INNER JOIN items ON items.item_id = order_items.item_id").
		Where("items.user_id = ? AND orders.payment_status = ?", sellerID, enums.PaymentStatusPaid).
		Order("orders.created_at DESC").
		Find(&orders).Error
	if err != nil {
		return nil, err
	}
	return orders, nil
}

func (r *repository) FindItemsByOrder(ctx context.Context, orderID int64) ([]models.OrderItem, error) {
	var items []models.OrderItem
	err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("created_at ASC").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repository) Update(ctx context.Context, orderID int64, updates map[string]any) error {
	if len(updates) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ?", orderID).
		Updates(updates).Error
}

// MarkShipped advances the order to shipped. shipped_at is only written when
// still null so webhook replays cannot move it.
func (r *repository) MarkShipped(ctx context.Context, orderID int64, at time.Time) error {
	return r.db.WithContext(ctx).Exec(`
		UPDATE orders
		SET order_status = ?,
			shipped_at = COALESCE(shipped_at, ?),
			updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`, enums.OrderStatusShipped, at, orderID).Error
}

// MarkDelivered advances the order to delivered with the same null guard.
func (r *repository) MarkDelivered(ctx context.Context, orderID int64, at time.Time) error {
	return r.db.WithContext(ctx).Exec(`
		UPDATE orders
		SET order_status = ?,
			delivered_at = COALESCE(delivered_at, ?),
			updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`, enums.OrderStatusDelivered, at, orderID).Error
}
