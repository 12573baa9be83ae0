package shipments

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/analogfan/marketplace-backend/pkg/carrier"
	"github.com/analogfan/marketplace-backend/pkg/db/models"
	"github.com/analogfan/marketplace-backend/pkg/enums"
	pkgerrors "github.com/analogfan/marketplace-backend/pkg/errors"
	"github.com/analogfan/marketplace-backend/pkg/logger"
	pkgredis "github.com/analogfan/marketplace-backend/pkg/redis"
)

// TrackingView is the public tracking response: the stored shipment plus the
// carrier's live snapshot and a customer-facing status label.
type TrackingView struct {
	Shipment      *models.Shipment          `json:"shipment"`
	Tracking      *carrier.TrackingSnapshot `json:"tracking"`
	StatusDisplay string                    `json:"status_display"`
}

type snapshotCache interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	TrackingKey(trackingNumber string) string
}

// Service exposes shipment reads and carrier-facing operations.
type Service interface {
	RatesForOrder(ctx context.Context, orderID int64) ([]carrier.Rate, error)
	CreateLabel(ctx context.Context, orderID int64, rateID string) (*models.Shipment, error)
	GetByID(ctx context.Context, shipmentID int64) (*models.Shipment, error)
	GetByOrderID(ctx context.Context, orderID int64) (*models.Shipment, error)
	ListAll(ctx context.Context) ([]models.Shipment, error)
	ListWithOrders(ctx context.Context) ([]ShipmentWithOrder, error)
	RefreshTracking(ctx context.Context, shipmentID int64) (*models.Shipment, error)
	Track(ctx context.Context, trackingNumber string) (*TrackingView, error)
	DownloadLabel(ctx context.Context, shipmentID int64) ([]byte, string, error)
	UpdateStatus(ctx context.Context, shipmentID int64, status string) (*models.Shipment, error)
}

type service struct {
	repo         Repository
	orders       OrderDirectory
	orchestrator Orchestrator
	gateway      carrier.Gateway
	cache        snapshotCache
	cacheTTL     time.Duration
	logg         *logger.Logger
	now          func() time.Time
}

// ServiceParams wires the shipment service dependencies. Cache is optional;
// without it every public tracking lookup hits the carrier.
type ServiceParams struct {
	Repo         Repository
	Orders       OrderDirectory
	Orchestrator Orchestrator
	Gateway      carrier.Gateway
	Cache        snapshotCache
	CacheTTL     time.Duration
	Logger       *logger.Logger
}

// NewService validates dependencies and builds the shipment service.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("shipments repository required")
	}
	if params.Orders == nil {
		return nil, fmt.Errorf("order directory required")
	}
	if params.Orchestrator == nil {
		return nil, fmt.Errorf("orchestrator required")
	}
	if params.Gateway == nil {
		return nil, fmt.Errorf("carrier gateway required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	ttl := params.CacheTTL
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &service{
		repo:         params.Repo,
		orders:       params.Orders,
		orchestrator: params.Orchestrator,
		gateway:      params.Gateway,
		cache:        params.Cache,
		cacheTTL:     ttl,
		logg:         params.Logger,
		now:          time.Now,
	}, nil
}

func (s *service) RatesForOrder(ctx context.Context, orderID int64) ([]carrier.Rate, error) {
	order, buyer, err := s.orders.FindWithBuyer(ctx, orderID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	return s.gateway.GetRates(ctx, destinationAddress(order, buyer))
}

func (s *service) CreateLabel(ctx context.Context, orderID int64, rateID string) (*models.Shipment, error) {
	return s.orchestrator.CreateWithRate(ctx, orderID, rateID)
}

func (s *service) GetByID(ctx context.Context, shipmentID int64) (*models.Shipment, error) {
	shipment, err := s.repo.FindByID(ctx, shipmentID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "shipment not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load shipment")
	}
	return shipment, nil
}

func (s *service) GetByOrderID(ctx context.Context, orderID int64) (*models.Shipment, error) {
	shipment, err := s.repo.FindByOrderID(ctx, orderID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "shipment not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load shipment")
	}
	return shipment, nil
}

func (s *service) ListAll(ctx context.Context) ([]models.Shipment, error) {
	shipments, err := s.repo.ListAll(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list shipments")
	}
	return shipments, nil
}

func (s *service) ListWithOrders(ctx context.Context) ([]ShipmentWithOrder, error) {
	rows, err := s.repo.ListWithOrders(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list shipments with orders")
	}
	return rows, nil
}

// RefreshTracking pulls the live carrier snapshot and applies the same
// guarded timestamp rules as the webhook path.
func (s *service) RefreshTracking(ctx context.Context, shipmentID int64) (*models.Shipment, error) {
	shipment, err := s.GetByID(ctx, shipmentID)
	if err != nil {
		return nil, err
	}

	snapshot, err := s.gateway.GetTrackingInfo(ctx, shipment.TrackingNumber, "")
	if err != nil {
		return nil, err
	}

	status, parseErr := enums.ParseDeliveryStatus(snapshot.Status)
	if parseErr != nil {
		status = enums.DeliveryStatusUnknown
	}

	if err := s.applyStatus(ctx, shipment, status, snapshot.History); err != nil {
		return nil, err
	}
	return s.GetByID(ctx, shipmentID)
}

func (s *service) Track(ctx context.Context, trackingNumber string) (*TrackingView, error) {
	if trackingNumber == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "tracking number is required")
	}

	if s.cache != nil {
		key := s.cache.TrackingKey(trackingNumber)
		cached, err := s.cache.Get(ctx, key)
		if err == nil && cached != "" {
			var view TrackingView
			if jsonErr := json.Unmarshal([]byte(cached), &view); jsonErr == nil {
				return &view, nil
			}
		} else if err != nil && !pkgredis.IsMiss(err) {
			s.logg.Warn(ctx, fmt.Sprintf("tracking cache read failed: %v", err))
		}
	}

	shipment, err := s.repo.FindByTrackingNumber(ctx, trackingNumber)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "tracking number not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load shipment")
	}

	snapshot, err := s.gateway.GetTrackingInfo(ctx, trackingNumber, "")
	if err != nil {
		return nil, err
	}

	view := &TrackingView{
		Shipment:      shipment,
		Tracking:      snapshot,
		StatusDisplay: shipment.DeliveryStatus.DisplayName(),
	}
	if s.cache != nil {
		if payload, jsonErr := json.Marshal(view); jsonErr == nil {
			key := s.cache.TrackingKey(trackingNumber)
			if cacheErr := s.cache.Set(ctx, key, string(payload), s.cacheTTL); cacheErr != nil {
				s.logg.Warn(ctx, fmt.Sprintf("tracking cache write failed: %v", cacheErr))
			}
		}
	}
	return view, nil
}

func (s *service) DownloadLabel(ctx context.Context, shipmentID int64) ([]byte, string, error) {
	shipment, err := s.GetByID(ctx, shipmentID)
	if err != nil {
		return nil, "", err
	}
	if shipment.LabelURL == nil || *shipment.LabelURL == "" {
		return nil, "", pkgerrors.New(pkgerrors.CodeValidation, "no label URL available")
	}

	pdf, err := s.gateway.DownloadLabel(ctx, *shipment.LabelURL)
	if err != nil {
		return nil, "", err
	}
	filename := fmt.Sprintf("shipping-label-%s.pdf", shipment.TrackingNumber)
	return pdf, filename, nil
}

// UpdateStatus applies a manually chosen delivery status with the standard
// timestamp guards and order cascades.
func (s *service) UpdateStatus(ctx context.Context, shipmentID int64, status string) (*models.Shipment, error) {
	parsed, err := enums.ParseDeliveryStatus(status)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid delivery status")
	}
	if parsed == enums.DeliveryStatusUnknown {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "delivery status unknown cannot be set manually")
	}

	shipment, err := s.GetByID(ctx, shipmentID)
	if err != nil {
		return nil, err
	}

	if err := s.applyStatus(ctx, shipment, parsed, nil); err != nil {
		return nil, err
	}
	return s.GetByID(ctx, shipmentID)
}

// applyStatus writes delivery_status and, when a terminal or in-transit
// status arrives first, sets the matching timestamp and cascades the order.
// The null guards in MarkShipped/MarkDelivered keep replays idempotent.
func (s *service) applyStatus(ctx context.Context, shipment *models.Shipment, status enums.DeliveryStatus, history json.RawMessage) error {
	now := s.now()

	switch status {
	case enums.DeliveryStatusDelivered:
		set, err := s.repo.MarkDelivered(ctx, shipment.ID, now)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "set delivered timestamp")
		}
		if set {
			if err := s.cascadeDelivered(ctx, shipment.OrderID, now); err != nil {
				return err
			}
		}
	case enums.DeliveryStatusTransit, enums.DeliveryStatusOutForDelivery:
		set, err := s.repo.MarkShipped(ctx, shipment.ID, now)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "set shipped timestamp")
		}
		if set {
			if err := s.cascadeShipped(ctx, shipment.OrderID, now); err != nil {
				return err
			}
		}
	}

	updates := map[string]any{"delivery_status": status}
	if len(history) > 0 {
		updates["tracking_history"] = history
	}
	if err := s.repo.Update(ctx, shipment.ID, updates); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update delivery status")
	}
	return nil
}

func (s *service) cascadeDelivered(ctx context.Context, orderID int64, at time.Time) error {
	err := s.orders.Update(ctx, orderID, map[string]any{
		"order_status": enums.OrderStatusDelivered,
		"delivered_at": at,
	})
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "cascade order delivered")
	}
	return nil
}

func (s *service) cascadeShipped(ctx context.Context, orderID int64, at time.Time) error {
	err := s.orders.Update(ctx, orderID, map[string]any{
		"order_status": enums.OrderStatusShipped,
		"shipped_at":   at,
	})
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "cascade order shipped")
	}
	return nil
}
