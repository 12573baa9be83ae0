package carrier

import (
	"context"
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"

	"github.com/analogfan/marketplace-backend/pkg/types"
)

// Rate is a single shipping offer returned by the carrier for a destination.
type Rate struct {
	ID               string          `json:"rate_id"`
	Carrier          string          `json:"carrier"`
	CarrierCode      string          `json:"carrier_code"`
	Service          string          `json:"service"`
	ShippingMethodID int64           `json:"shipping_method_id"`
	Amount           decimal.Decimal `json:"amount"`
	Currency         string          `json:"currency"`
	EstimatedDays    int             `json:"estimated_days"`
}

// LabelOptions carries order context the carrier wants printed on the parcel.
type LabelOptions struct {
	OrderNumber string
	TotalValue  decimal.Decimal
}

// Label is the result of purchasing a shipping label.
type Label struct {
	TransactionID  string
	TrackingNumber string
	TrackingURL    string
	LabelURL       string
	Carrier        string
	Service        string
	Status         string
	ETA            *time.Time
}

// TrackingSnapshot is the carrier's current view of a parcel.
type TrackingSnapshot struct {
	TrackingNumber string          `json:"tracking_number"`
	Carrier        string          `json:"carrier"`
	Status         string          `json:"status"`
	TrackingURL    string          `json:"tracking_url"`
	History        json.RawMessage `json:"tracking_history,omitempty"`
}

// Gateway abstracts the shipping vendor. All operations may fail with a
// CodeDependency error when the vendor is unreachable or erroring; callers
// must treat that as transient.
type Gateway interface {
	GetRates(ctx context.Context, to types.Address) ([]Rate, error)
	CreateLabel(ctx context.Context, to types.Address, rateID string, opts LabelOptions) (*Label, error)
	GetTrackingInfo(ctx context.Context, trackingNumber, postalCode string) (*TrackingSnapshot, error)
	DownloadLabel(ctx context.Context, labelURL string) ([]byte, error)
}
