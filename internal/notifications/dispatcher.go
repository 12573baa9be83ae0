package notifications

import (
	"context"

	"github.com/analogfan/marketplace-backend/pkg/db/models"
	"github.com/analogfan/marketplace-backend/pkg/logger"
)

// Dispatcher delivers transactional email. Callers treat every send as
// best-effort: failures are logged by the caller and never abort the
// triggering operation.
type Dispatcher interface {
	SendOrderConfirmation(ctx context.Context, order *models.Order, items []models.OrderItem) error
	SendShippingLabel(ctx context.Context, order *models.Order, shipment *models.Shipment, labelPDF []byte) error
}

// NoopDispatcher is used when no SMTP relay is configured; sends are skipped
// with a log line so operators can see delivery is disabled.
type NoopDispatcher struct {
	Logger *logger.Logger
}

func (d NoopDispatcher) SendOrderConfirmation(ctx context.Context, order *models.Order, items []models.OrderItem) error {
	if d.Logger != nil {
		d.Logger.Info(ctx, "mail disabled, skipping order confirmation")
	}
	return nil
}

func (d NoopDispatcher) SendShippingLabel(ctx context.Context, order *models.Order, shipment *models.Shipment, labelPDF []byte) error {
	if d.Logger != nil {
		d.Logger.Info(ctx, "mail disabled, skipping shipping label notification")
	}
	return nil
}
