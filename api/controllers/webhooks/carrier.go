package webhooks

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/analogfan/marketplace-backend/api/responses"
	sendcloudwebhook "github.com/analogfan/marketplace-backend/internal/webhooks/sendcloud"
	pkgerrors "github.com/analogfan/marketplace-backend/pkg/errors"
	"github.com/analogfan/marketplace-backend/pkg/logger"
)

type CarrierWebhookService interface {
	HandleTrackingEvent(ctx context.Context, event sendcloudwebhook.TrackingEvent) error
}

// CarrierTracking ingests Sendcloud parcel status callbacks. The carrier
// retries on non-2xx responses, so processing failures are logged and
// acknowledged rather than surfaced.
func CarrierTracking(svc CarrierWebhookService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "webhook service unavailable"))
			return
		}

		payload, err := io.ReadAll(r.Body)
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read request body"))
			return
		}

		var event sendcloudwebhook.TrackingEvent
		if err := json.Unmarshal(payload, &event); err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode tracking event"))
			return
		}

		if !event.Valid() {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "tracking number not found in payload"))
			return
		}

		if logg != nil {
			ctx = logg.WithTrackingNumber(ctx, event.Parcel.TrackingNumber)
		}

		if err := svc.HandleTrackingEvent(ctx, event); err != nil {
			if logg != nil {
				logg.Error(ctx, "webhook.carrier.process_failed", err)
			}
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"success"}`))
	}
}
