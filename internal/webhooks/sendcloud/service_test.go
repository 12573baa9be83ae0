package sendcloudwebhook

import (
	"context"
	"testing"
	"time"

	"gorm.io/gorm"

	"github.com/analogfan/marketplace-backend/pkg/db/models"
	"github.com/analogfan/marketplace-backend/pkg/enums"
	pkgerrors "github.com/analogfan/marketplace-backend/pkg/errors"
	"github.com/analogfan/marketplace-backend/pkg/logger"
)

type stubShipmentStore struct {
	shipment *models.Shipment
	updates  []map[string]any
}

func (s *stubShipmentStore) FindByTrackingNumber(ctx context.Context, trackingNumber string) (*models.Shipment, error) {
	if s.shipment == nil || s.shipment.TrackingNumber != trackingNumber {
		return nil, gorm.ErrRecordNotFound
	}
	return s.shipment, nil
}

func (s *stubShipmentStore) Update(ctx context.Context, shipmentID int64, updates map[string]any) error {
	s.updates = append(s.updates, updates)
	return nil
}

func (s *stubShipmentStore) MarkShipped(ctx context.Context, shipmentID int64, at time.Time) (bool, error) {
	if s.shipment.ShippedAt != nil {
		return false, nil
	}
	s.shipment.ShippedAt = &at
	return true, nil
}

func (s *stubShipmentStore) MarkDelivered(ctx context.Context, shipmentID int64, at time.Time) (bool, error) {
	if s.shipment.DeliveredAt != nil {
		return false, nil
	}
	s.shipment.DeliveredAt = &at
	return true, nil
}

type stubOrderStore struct {
	shipped   []int64
	delivered []int64
}

func (s *stubOrderStore) MarkShipped(ctx context.Context, orderID int64, at time.Time) error {
	s.shipped = append(s.shipped, orderID)
	return nil
}

func (s *stubOrderStore) MarkDelivered(ctx context.Context, orderID int64, at time.Time) error {
	s.delivered = append(s.delivered, orderID)
	return nil
}

func newTestIngestor(t *testing.T, shipments *stubShipmentStore, orders *stubOrderStore) *Service {
	t.Helper()
	svc, err := NewService(ServiceParams{
		Shipments: shipments,
		Orders:    orders,
		Logger:    logger.New(logger.Options{ServiceName: "test"}),
	})
	if err != nil {
		t.Fatalf("setup service: %v", err)
	}
	return svc
}

func event(trackingNumber string, code int) TrackingEvent {
	return TrackingEvent{Parcel: &ParcelPayload{
		TrackingNumber: trackingNumber,
		Status:         ParcelStatus{ID: code, Message: "status update"},
	}}
}

func TestService_HandleTrackingEventDelivered(t *testing.T) {
	shipments := &stubShipmentStore{shipment: &models.Shipment{ID: 9, OrderID: 42, TrackingNumber: "SC123"}}
	orders := &stubOrderStore{}
	svc := newTestIngestor(t, shipments, orders)

	if err := svc.HandleTrackingEvent(context.Background(), event("SC123", 13)); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if shipments.shipment.DeliveredAt == nil {
		t.Fatalf("delivered timestamp must be set")
	}
	if len(orders.delivered) != 1 || orders.delivered[0] != 42 {
		t.Fatalf("order cascade missing, got %v", orders.delivered)
	}
	if len(shipments.updates) != 1 || shipments.updates[0]["delivery_status"] != enums.DeliveryStatusDelivered {
		t.Fatalf("delivery status update missing, got %v", shipments.updates)
	}
}

func TestService_HandleTrackingEventDeliveredReplay(t *testing.T) {
	delivered := time.Now().Add(-time.Hour)
	shipments := &stubShipmentStore{shipment: &models.Shipment{
		ID: 9, OrderID: 42, TrackingNumber: "SC123", DeliveredAt: &delivered,
	}}
	orders := &stubOrderStore{}
	svc := newTestIngestor(t, shipments, orders)

	if err := svc.HandleTrackingEvent(context.Background(), event("SC123", 13)); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if len(orders.delivered) != 0 {
		t.Fatalf("replayed delivery must not cascade again")
	}
	if !shipments.shipment.DeliveredAt.Equal(delivered) {
		t.Fatalf("original delivered timestamp must be kept")
	}
	if len(shipments.updates) != 1 {
		t.Fatalf("delivery status must still be written on replay")
	}
}

func TestService_HandleTrackingEventTransitSetsShippedOnce(t *testing.T) {
	shipments := &stubShipmentStore{shipment: &models.Shipment{ID: 9, OrderID: 42, TrackingNumber: "SC123"}}
	orders := &stubOrderStore{}
	svc := newTestIngestor(t, shipments, orders)

	// code 11 is a transit code
	if err := svc.HandleTrackingEvent(context.Background(), event("SC123", 11)); err != nil {
		t.Fatalf("handle: %v", err)
	}
	firstShipped := shipments.shipment.ShippedAt
	if firstShipped == nil {
		t.Fatalf("shipped timestamp must be set")
	}
	if len(orders.shipped) != 1 {
		t.Fatalf("order cascade missing")
	}

	// out_for_delivery later must not move the timestamp or re-cascade
	if err := svc.HandleTrackingEvent(context.Background(), event("SC123", 12)); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if !shipments.shipment.ShippedAt.Equal(*firstShipped) {
		t.Fatalf("shipped timestamp must not move")
	}
	if len(orders.shipped) != 1 {
		t.Fatalf("second transit event must not cascade again")
	}
	if shipments.updates[1]["delivery_status"] != enums.DeliveryStatusOutForDelivery {
		t.Fatalf("status must still advance, got %v", shipments.updates[1])
	}
}

func TestService_HandleTrackingEventPreTransitNoTimestamps(t *testing.T) {
	shipments := &stubShipmentStore{shipment: &models.Shipment{ID: 9, OrderID: 42, TrackingNumber: "SC123"}}
	orders := &stubOrderStore{}
	svc := newTestIngestor(t, shipments, orders)

	if err := svc.HandleTrackingEvent(context.Background(), event("SC123", 2)); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if shipments.shipment.ShippedAt != nil || shipments.shipment.DeliveredAt != nil {
		t.Fatalf("pre_transit must not touch timestamps")
	}
	if len(orders.shipped) != 0 && len(orders.delivered) != 0 {
		t.Fatalf("pre_transit must not cascade")
	}
	if shipments.updates[0]["delivery_status"] != enums.DeliveryStatusPreTransit {
		t.Fatalf("unexpected status %v", shipments.updates[0])
	}
}

func TestService_HandleTrackingEventUnknownTrackingIgnored(t *testing.T) {
	shipments := &stubShipmentStore{}
	orders := &stubOrderStore{}
	svc := newTestIngestor(t, shipments, orders)

	if err := svc.HandleTrackingEvent(context.Background(), event("NOPE", 13)); err != nil {
		t.Fatalf("unknown tracking number must be a no-op, got %v", err)
	}
	if len(shipments.updates) != 0 {
		t.Fatalf("no writes expected for unknown tracking number")
	}
}

func TestService_HandleTrackingEventInvalidPayload(t *testing.T) {
	svc := newTestIngestor(t, &stubShipmentStore{}, &stubOrderStore{})

	err := svc.HandleTrackingEvent(context.Background(), TrackingEvent{})
	if !pkgerrors.HasCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}

	err = svc.HandleTrackingEvent(context.Background(), TrackingEvent{Parcel: &ParcelPayload{}})
	if !pkgerrors.HasCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestService_HandleTrackingEventUnmappedCode(t *testing.T) {
	shipments := &stubShipmentStore{shipment: &models.Shipment{ID: 9, OrderID: 42, TrackingNumber: "SC123"}}
	orders := &stubOrderStore{}
	svc := newTestIngestor(t, shipments, orders)

	if err := svc.HandleTrackingEvent(context.Background(), event("SC123", 99)); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if shipments.updates[0]["delivery_status"] != enums.DeliveryStatusUnknown {
		t.Fatalf("unmapped code must map to unknown, got %v", shipments.updates[0])
	}
}
