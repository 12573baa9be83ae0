package sendcloudwebhook

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/analogfan/marketplace-backend/pkg/db/models"
	"github.com/analogfan/marketplace-backend/pkg/enums"
	pkgerrors "github.com/analogfan/marketplace-backend/pkg/errors"
	"github.com/analogfan/marketplace-backend/pkg/logger"
)

// TrackingEvent is the parcel status push the carrier delivers.
type TrackingEvent struct {
	Parcel *ParcelPayload `json:"parcel"`
}

// ParcelPayload carries the tracking number plus the vendor status.
type ParcelPayload struct {
	TrackingNumber string       `json:"tracking_number"`
	Status         ParcelStatus `json:"status"`
}

// ParcelStatus is the vendor status code and its display message.
type ParcelStatus struct {
	ID      int    `json:"id"`
	Message string `json:"message"`
}

// Valid reports whether the event is structurally usable.
func (e TrackingEvent) Valid() bool {
	return e.Parcel != nil && e.Parcel.TrackingNumber != ""
}

type shipmentStore interface {
	FindByTrackingNumber(ctx context.Context, trackingNumber string) (*models.Shipment, error)
	Update(ctx context.Context, shipmentID int64, updates map[string]any) error
	MarkShipped(ctx context.Context, shipmentID int64, at time.Time) (bool, error)
	MarkDelivered(ctx context.Context, shipmentID int64, at time.Time) (bool, error)
}

type orderStore interface {
	MarkShipped(ctx context.Context, orderID int64, at time.Time) error
	MarkDelivered(ctx context.Context, orderID int64, at time.Time) error
}

// Service ingests carrier tracking webhooks.
type Service struct {
	shipments shipmentStore
	orders    orderStore
	logg      *logger.Logger
	now       func() time.Time
}

// ServiceParams wires the webhook ingestor dependencies.
type ServiceParams struct {
	Shipments shipmentStore
	Orders    orderStore
	Logger    *logger.Logger
}

// NewService validates dependencies and builds the ingestor.
func NewService(params ServiceParams) (*Service, error) {
	if params.Shipments == nil {
		return nil, fmt.Errorf("shipment store required")
	}
	if params.Orders == nil {
		return nil, fmt.Errorf("order store required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Service{
		shipments: params.Shipments,
		orders:    params.Orders,
		logg:      params.Logger,
		now:       time.Now,
	}, nil
}

// HandleTrackingEvent maps the vendor status code onto the canonical delivery
// status and applies the guarded timestamp updates. Events for tracking
// numbers this system does not know are ignored; duplicated or out-of-order
// deliveries are absorbed by the null guards on the timestamps.
func (s *Service) HandleTrackingEvent(ctx context.Context, event TrackingEvent) error {
	if !event.Valid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "tracking number not found in payload")
	}

	ctx = s.logg.WithTrackingNumber(ctx, event.Parcel.TrackingNumber)

	shipment, err := s.shipments.FindByTrackingNumber(ctx, event.Parcel.TrackingNumber)
	if err == gorm.ErrRecordNotFound {
		s.logg.Info(ctx, "webhook for unknown tracking number ignored")
		return nil
	}
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load shipment")
	}

	status := enums.DeliveryStatusFromVendorCode(event.Parcel.Status.ID)
	ctx = s.logg.WithField(ctx, "delivery_status", status.String())
	now := s.now()

	switch status {
	case enums.DeliveryStatusDelivered:
		set, err := s.shipments.MarkDelivered(ctx, shipment.ID, now)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "set delivered timestamp")
		}
		if set {
			if err := s.orders.MarkDelivered(ctx, shipment.OrderID, now); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "cascade order delivered")
			}
		}
	case enums.DeliveryStatusTransit, enums.DeliveryStatusOutForDelivery:
		set, err := s.shipments.MarkShipped(ctx, shipment.ID, now)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "set shipped timestamp")
		}
		if set {
			if err := s.orders.MarkShipped(ctx, shipment.OrderID, now); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "cascade order shipped")
			}
		}
	}

	err = s.shipments.Update(ctx, shipment.ID, map[string]any{
		"delivery_status": status,
	})
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update delivery status")
	}

	s.logg.Info(ctx, "tracking webhook processed")
	return nil
}
