package orders

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/analogfan/marketplace-backend/pkg/db/models"
)

// Repository defines persistence operations for orders and their line items.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, order *models.Order) (*models.Order, error)
	FindByID(ctx context.Context, orderID int64) (*models.Order, error)
	FindByOrderNumber(ctx context.Context, orderNumber string) (*models.Order, error)
	FindWithBuyer(ctx context.Context, orderID int64) (*models.Order, *models.User, error)
	ListAll(ctx context.Context) ([]models.Order, error)
	ListByUser(ctx context.Context, userID int64) ([]models.Order, error)
	ListBySeller(ctx context.Context, sellerID int64) ([]models.Order, error)
	FindItemsByOrder(ctx context.Context, orderID int64) ([]models.OrderItem, error)
	Update(ctx context.Context, orderID int64, updates map[string]any) error
	MarkShipped(ctx context.Context, orderID int64, at time.Time) error
	MarkDelivered(ctx context.Context, orderID int64, at time.Time) error
}
