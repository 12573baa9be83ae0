package shipments

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	internalshipments "github.com/analogfan/marketplace-backend/internal/shipments"
	"github.com/analogfan/marketplace-backend/pkg/carrier"
	"github.com/analogfan/marketplace-backend/pkg/db/models"
	pkgerrors "github.com/analogfan/marketplace-backend/pkg/errors"
	"github.com/analogfan/marketplace-backend/pkg/logger"
)

type stubShipmentService struct {
	shipment *models.Shipment
	view     *internalshipments.TrackingView
	pdf      []byte
	filename string
	err      error

	createCalls []struct {
		orderID int64
		rateID  string
	}
}

func (s *stubShipmentService) RatesForOrder(ctx context.Context, orderID int64) ([]carrier.Rate, error) {
	return nil, s.err
}

func (s *stubShipmentService) CreateLabel(ctx context.Context, orderID int64, rateID string) (*models.Shipment, error) {
	s.createCalls = append(s.createCalls, struct {
		orderID int64
		rateID  string
	}{orderID, rateID})
	return s.shipment, s.err
}

func (s *stubShipmentService) GetByID(ctx context.Context, shipmentID int64) (*models.Shipment, error) {
	return s.shipment, s.err
}

func (s *stubShipmentService) GetByOrderID(ctx context.Context, orderID int64) (*models.Shipment, error) {
	return s.shipment, s.err
}

func (s *stubShipmentService) ListAll(ctx context.Context) ([]models.Shipment, error) {
	return nil, s.err
}

func (s *stubShipmentService) ListWithOrders(ctx context.Context) ([]internalshipments.ShipmentWithOrder, error) {
	return nil, s.err
}

func (s *stubShipmentService) RefreshTracking(ctx context.Context, shipmentID int64) (*models.Shipment, error) {
	return s.shipment, s.err
}

func (s *stubShipmentService) Track(ctx context.Context, trackingNumber string) (*internalshipments.TrackingView, error) {
	return s.view, s.err
}

func (s *stubShipmentService) DownloadLabel(ctx context.Context, shipmentID int64) ([]byte, string, error) {
	return s.pdf, s.filename, s.err
}

func (s *stubShipmentService) UpdateStatus(ctx context.Context, shipmentID int64, status string) (*models.Shipment, error) {
	return s.shipment, s.err
}

func testRouter(svc internalshipments.Service) http.Handler {
	logg := logger.New(logger.Options{ServiceName: "test"})
	r := chi.NewRouter()
	r.Post("/shipments/label", CreateLabel(svc, logg))
	r.Get("/shipments/{shipmentId}/label", DownloadLabel(svc, logg))
	r.Get("/track/{trackingNumber}", Track(svc, logg))
	return r
}

func TestCreateLabel_Returns201(t *testing.T) {
	svc := &stubShipmentService{shipment: &models.Shipment{ID: 9, TrackingNumber: "SC123"}}
	router := testRouter(svc)

	req := httptest.NewRequest(http.MethodPost, "/shipments/label", strings.NewReader(`{"order_id":42,"rate_id":"sendcloud_8"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	if len(svc.createCalls) != 1 || svc.createCalls[0].orderID != 42 || svc.createCalls[0].rateID != "sendcloud_8" {
		t.Fatalf("unexpected call %+v", svc.createCalls)
	}
}

func TestCreateLabel_ConflictOnExistingShipment(t *testing.T) {
	svc := &stubShipmentService{err: pkgerrors.New(pkgerrors.CodeConflict, "shipment already exists for this order")}
	router := testRouter(svc)

	req := httptest.NewRequest(http.MethodPost, "/shipments/label", strings.NewReader(`{"order_id":42,"rate_id":"sendcloud_8"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rec.Code)
	}
}

func TestCreateLabel_RejectsMissingRate(t *testing.T) {
	svc := &stubShipmentService{}
	router := testRouter(svc)

	req := httptest.NewRequest(http.MethodPost, "/shipments/label", strings.NewReader(`{"order_id":42}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if len(svc.createCalls) != 0 {
		t.Fatalf("service must not be reached without a rate")
	}
}

func TestDownloadLabel_StreamsPDF(t *testing.T) {
	svc := &stubShipmentService{pdf: []byte("%PDF-1.4"), filename: "shipping-label-SC123.pdf"}
	router := testRouter(svc)

	req := httptest.NewRequest(http.MethodGet, "/shipments/9/label", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if got := rec.Header().Get("Content-Type"); got != "application/pdf" {
		t.Fatalf("unexpected content type %q", got)
	}
	if got := rec.Header().Get("Content-Disposition"); !strings.Contains(got, "shipping-label-SC123.pdf") {
		t.Fatalf("unexpected disposition %q", got)
	}
	if rec.Body.String() != "%PDF-1.4" {
		t.Fatalf("unexpected body %q", rec.Body.String())
	}
}

func TestTrack_NotFound(t *testing.T) {
	svc := &stubShipmentService{err: pkgerrors.New(pkgerrors.CodeNotFound, "tracking number not found")}
	router := testRouter(svc)

	req := httptest.NewRequest(http.MethodGet, "/track/NOPE", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}
