package shipments

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/analogfan/marketplace-backend/pkg/db/models"
)

type repository struct {
	db *gorm.DB
}

// NewRepository builds a shipments repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, shipment *models.Shipment) (*models.Shipment, error) {
	if err := r.db.WithContext(ctx).Create(shipment).Error; err != nil {
		return nil, err
	}
	return shipment, nil
}

func (r *repository) FindByID(ctx context.Context, shipmentID int64) (*models.Shipment, error) {
	var shipment models.Shipment
	err := r.db.WithContext(ctx).
		Where("id = ?", shipmentID).
		First(&shipment).Error
	if err != nil {
		return nil, err
	}
	return &shipment, nil
}

func (r *repository) FindByOrderID(ctx context.Context, orderID int64) (*models.Shipment, error) {
	var shipment models.Shipment
	err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		First(&shipment).Error
	if err != nil {
		return nil, err
	}
	return &shipment, nil
}

func (r *repository) FindByTrackingNumber(ctx context.Context, trackingNumber string) (*models.Shipment, error) {
	var shipment models.Shipment
	err := r.db.WithContext(ctx).
		Where("tracking_number = ?", trackingNumber).
		First(&shipment).Error
	if err != nil {
		return nil, err
	}
	return &shipment, nil
}

func (r *repository) ListAll(ctx context.Context) ([]models.Shipment, error) {
	var shipments []models.Shipment
	err := r.db.WithContext(ctx).
		Order("created_at DESC").
		Find(&shipments).Error
	if err != nil {
		return nil, err
	}
	return shipments, nil
}

func (r *repository) ListWithOrders(ctx context.Context) ([]ShipmentWithOrder, error) {
	var rows []ShipmentWithOrder
	err := r.db.WithContext(ctx).
		Table("shipments").
		Select("shipments.*, orders.order_number AS order_number, orders.email AS buyer_email").
		Joins("INNER JOIN orders ON orders.id = shipments.order_id").
		Order("shipments.created_at DESC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) Update(ctx context.Context, shipmentID int64, updates map[string]any) error {
	if len(updates) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Model(&models.Shipment{}).
		Where("id = ?", shipmentID).
		Updates(updates).Error
}

// MarkShipped sets shipped_at only when still null and reports whether this
// call won the write. Replayed webhook events land on the false branch.
func (r *repository) MarkShipped(ctx context.Context, shipmentID int64, at time.Time) (bool, error) {
	res := r.db.WithContext(ctx).Exec(`
		UPDATE shipments
		SET shipped_at = ?,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND shipped_at IS NULL
	`, at, shipmentID)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// MarkDelivered sets delivered_at with the same null guard.
func (r *repository) MarkDelivered(ctx context.Context, shipmentID int64, at time.Time) (bool, error) {
	res := r.db.WithContext(ctx).Exec(`
		UPDATE shipments
		SET delivered_at = ?,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND delivered_at IS NULL
	`, at, shipmentID)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
