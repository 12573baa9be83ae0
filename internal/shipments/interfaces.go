package shipments

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/analogfan/marketplace-backend/pkg/db/models"
)

// Repository defines persistence operations for shipments.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, shipment *models.Shipment) (*models.Shipment, error)
	FindByID(ctx context.Context, shipmentID int64) (*models.Shipment, error)
	FindByOrderID(ctx context.Context, orderID int64) (*models.Shipment, error)
	FindByTrackingNumber(ctx context.Context, trackingNumber string) (*models.Shipment, error)
	ListAll(ctx context.Context) ([]models.Shipment, error)
	ListWithOrders(ctx context.Context) ([]ShipmentWithOrder, error)
	Update(ctx context.Context, shipmentID int64, updates map[string]any) error
	MarkShipped(ctx context.Context, shipmentID int64, at time.Time) (bool, error)
	MarkDelivered(ctx context.Context, shipmentID int64, at time.Time) (bool, error)
}

// ShipmentWithOrder joins the shipment row with the order fields the admin
// view displays.
type ShipmentWithOrder struct {
	models.Shipment
	OrderNumber string `gorm:"column:order_number" json:"order_number"`
	BuyerEmail  string `gorm:"column:buyer_email" json:"buyer_email"`
}
