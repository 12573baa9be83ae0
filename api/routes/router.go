package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/analogfan/marketplace-backend/api/controllers"
	ordercontrollers "github.com/analogfan/marketplace-backend/api/controllers/orders"
	shipmentcontrollers "github.com/analogfan/marketplace-backend/api/controllers/shipments"
	webhookcontrollers "github.com/analogfan/marketplace-backend/api/controllers/webhooks"
	"github.com/analogfan/marketplace-backend/api/middleware"
	"github.com/analogfan/marketplace-backend/internal/orders"
	"github.com/analogfan/marketplace-backend/internal/shipments"
	"github.com/analogfan/marketplace-backend/pkg/config"
	"github.com/analogfan/marketplace-backend/pkg/db"
	"github.com/analogfan/marketplace-backend/pkg/logger"
	"github.com/analogfan/marketplace-backend/pkg/redis"
)

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisP redis.Pinger,
	ordersSvc orders.Service,
	shipmentsSvc shipments.Service,
	carrierWebhookSvc webhookcontrollers.CarrierWebhookService,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, dbP, redisP))
	})

	r.Route("/api/v1/webhooks", func(r chi.Router) {
		r.Post("/carrier/tracking", webhookcontrollers.CarrierTracking(carrierWebhookSvc, logg))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/orders", func(r chi.Router) {
			r.Post("/", ordercontrollers.Create(ordersSvc, logg))
			r.Get("/", ordercontrollers.List(ordersSvc, logg))
			r.Get("/{orderId}", ordercontrollers.Get(ordersSvc, logg))
			r.Put("/{orderId}", ordercontrollers.Update(ordersSvc, logg))
			r.Get("/{orderId}/shipment", shipmentcontrollers.GetByOrder(shipmentsSvc, logg))
			r.Get("/user/{userId}", ordercontrollers.ListByUser(ordersSvc, logg))
			r.Get("/seller/{sellerId}", ordercontrollers.ListBySeller(ordersSvc, logg))
		})

		r.Route("/shipments", func(r chi.Router) {
			r.Get("/", shipmentcontrollers.List(shipmentsSvc, logg))
			r.Get("/order/{orderId}", shipmentcontrollers.GetByOrder(shipmentsSvc, logg))
			r.Get("/rates/order/{orderId}", shipmentcontrollers.Rates(shipmentsSvc, logg))
			r.Post("/label", shipmentcontrollers.CreateLabel(shipmentsSvc, logg))
			r.Get("/{shipmentId}", shipmentcontrollers.Get(shipmentsSvc, logg))
			r.Get("/{shipmentId}/label", shipmentcontrollers.DownloadLabel(shipmentsSvc, logg))
			r.Put("/{shipmentId}/tracking", shipmentcontrollers.RefreshTracking(shipmentsSvc, logg))
			r.Put("/{shipmentId}/status", shipmentcontrollers.UpdateStatus(shipmentsSvc, logg))
		})

		r.Get("/track/{trackingNumber}", shipmentcontrollers.Track(shipmentsSvc, logg))
	})

	return r
}
