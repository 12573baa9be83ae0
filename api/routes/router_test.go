package routes

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	internalorders "github.com/analogfan/marketplace-backend/internal/orders"
	internalshipments "github.com/analogfan/marketplace-backend/internal/shipments"
	sendcloudwebhook "github.com/analogfan/marketplace-backend/internal/webhooks/sendcloud"
	"github.com/analogfan/marketplace-backend/pkg/carrier"
	"github.com/analogfan/marketplace-backend/pkg/config"
	"github.com/analogfan/marketplace-backend/pkg/db/models"
	pkgerrors "github.com/analogfan/marketplace-backend/pkg/errors"
	"github.com/analogfan/marketplace-backend/pkg/logger"
)

type stubPinger struct {
	err error
}

func (s stubPinger) Ping(context.Context) error {
	return s.err
}

type stubOrdersService struct{}

func (stubOrdersService) Create(ctx context.Context, input internalorders.CreateOrderInput) (*models.Order, error) {
	return &models.Order{ID: 1}, nil
}

func (stubOrdersService) ApplyUpdate(ctx context.Context, orderID int64, input internalorders.UpdateOrderInput) (*internalorders.UpdateResult, error) {
	return &internalorders.UpdateResult{Order: &models.Order{ID: orderID}}, nil
}

func (stubOrdersService) GetByID(ctx context.Context, orderID int64) (*models.Order, error) {
	return &models.Order{ID: orderID}, nil
}

func (stubOrdersService) ListAll(ctx context.Context) ([]models.Order, error) {
	return nil, nil
}

func (stubOrdersService) ListByUser(ctx context.Context, userID int64) ([]models.Order, error) {
	return nil, nil
}

func (stubOrdersService) ListBySeller(ctx context.Context, sellerID int64) ([]models.Order, error) {
	return nil, nil
}

type stubShipmentsService struct{}

func (stubShipmentsService) RatesForOrder(ctx context.Context, orderID int64) ([]carrier.Rate, error) {
	return nil, nil
}

func (stubShipmentsService) CreateLabel(ctx context.Context, orderID int64, rateID string) (*models.Shipment, error) {
	return &models.Shipment{ID: 1}, nil
}

func (stubShipmentsService) GetByID(ctx context.Context, shipmentID int64) (*models.Shipment, error) {
	return &models.Shipment{ID: shipmentID}, nil
}

func (stubShipmentsService) GetByOrderID(ctx context.Context, orderID int64) (*models.Shipment, error) {
	return &models.Shipment{OrderID: orderID}, nil
}

func (stubShipmentsService) ListAll(ctx context.Context) ([]models.Shipment, error) {
	return nil, nil
}

func (stubShipmentsService) ListWithOrders(ctx context.Context) ([]internalshipments.ShipmentWithOrder, error) {
	return nil, nil
}

func (stubShipmentsService) RefreshTracking(ctx context.Context, shipmentID int64) (*models.Shipment, error) {
	return &models.Shipment{ID: shipmentID}, nil
}

func (stubShipmentsService) Track(ctx context.Context, trackingNumber string) (*internalshipments.TrackingView, error) {
	return nil, pkgerrors.New(pkgerrors.CodeNotFound, "tracking number not found")
}

func (stubShipmentsService) DownloadLabel(ctx context.Context, shipmentID int64) ([]byte, string, error) {
	return []byte("%PDF-1.4"), "shipping-label-SC123.pdf", nil
}

func (stubShipmentsService) UpdateStatus(ctx context.Context, shipmentID int64, status string) (*models.Shipment, error) {
	return &models.Shipment{ID: shipmentID}, nil
}

type stubWebhookService struct {
	events []sendcloudwebhook.TrackingEvent
}

func (s *stubWebhookService) HandleTrackingEvent(ctx context.Context, event sendcloudwebhook.TrackingEvent) error {
	s.events = append(s.events, event)
	return nil
}

func testConfig() *config.Config {
	return &config.Config{
		App: config.AppConfig{Env: "test", Port: "0"},
	}
}

func newTestRouter(dbErr error) http.Handler {
	logg := logger.New(logger.Options{ServiceName: "test-routing", Level: logger.ParseLevel("debug"), Output: io.Discard})
	return NewRouter(
		testConfig(),
		logg,
		stubPinger{err: dbErr},
		stubPinger{},
		stubOrdersService{},
		stubShipmentsService{},
		&stubWebhookService{},
	)
}

func TestHealthLiveReportsEnv(t *testing.T) {
	router := newTestRouter(nil)
	req := httptest.NewRequest(http.MethodGet, "/health/live", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if got := resp.Header().Get("X-AnalogFan-Env"); got != "test" {
		t.Fatalf("expected env header, got %q", got)
	}
}

func TestHealthReadyFailsWhenDBDown(t *testing.T) {
	router := newTestRouter(pkgerrors.New(pkgerrors.CodeDependency, "db down"))
	req := httptest.NewRequest(http.MethodGet, "/health/ready", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 when db unreachable got %d", resp.Code)
	}
}

func TestOrderRoutesAreMounted(t *testing.T) {
	router := newTestRouter(nil)

	get := httptest.NewRequest(http.MethodGet, "/api/v1/orders/42", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, get)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 for order fetch got %d", resp.Code)
	}

	update := httptest.NewRequest(http.MethodPut, "/api/v1/orders/42", strings.NewReader(`{"payment_status":"paid"}`))
	resp = httptest.NewRecorder()
	router.ServeHTTP(resp, update)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 for order update got %d: %s", resp.Code, resp.Body.String())
	}
}

func TestCarrierWebhookRouteAlwaysAcks(t *testing.T) {
	logg := logger.New(logger.Options{ServiceName: "test-routing", Level: logger.ParseLevel("debug"), Output: io.Discard})
	webhook := &stubWebhookService{}
	router := NewRouter(
		testConfig(),
		logg,
		stubPinger{},
		stubPinger{},
		stubOrdersService{},
		stubShipmentsService{},
		webhook,
	)

	body := `{"parcel":{"tracking_number":"SC123","status":{"id":13,"message":"Delivered"}}}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/carrier/tracking", strings.NewReader(body))
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 ack got %d", resp.Code)
	}
	if len(webhook.events) != 1 || webhook.events[0].Parcel.TrackingNumber != "SC123" {
		t.Fatalf("event not forwarded, got %+v", webhook.events)
	}
}

func TestPublicTrackRouteIsMounted(t *testing.T) {
	router := newTestRouter(nil)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/track/NOPE", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404 passthrough from service got %d", resp.Code)
	}
}
