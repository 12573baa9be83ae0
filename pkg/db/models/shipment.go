package models

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"

	"github.com/analogfan/marketplace-backend/pkg/enums"
)

// Shipment records the carrier label created for an order. At most one row
// exists per order; the orchestrator's existence check plus the unique index
// on order_id enforce that.
type Shipment struct {
	ID      int64 `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	OrderID int64 `gorm:"column:order_id;uniqueIndex;not null" json:"order_id"`

	CarrierShipmentID    *string `gorm:"column:carrier_shipment_id" json:"carrier_shipment_id,omitempty"`
	CarrierTransactionID *string `gorm:"column:carrier_transaction_id" json:"carrier_transaction_id,omitempty"`
	Carrier              string  `gorm:"column:carrier;not null" json:"carrier"`
	Service              string  `gorm:"column:service;not null" json:"service"`
	TrackingNumber       string  `gorm:"column:tracking_number;index;not null" json:"tracking_number"`
	TrackingURL          *string `gorm:"column:tracking_url" json:"tracking_url,omitempty"`
	LabelURL             *string `gorm:"column:label_url" json:"label_url,omitempty"`

	ShippingCost decimal.Decimal `gorm:"column:shipping_cost;type:numeric(10,2);not null" json:"shipping_cost"`
	Currency     string          `gorm:"column:currency;not null;default:'EUR'" json:"currency"`

	DeliveryStatus        enums.DeliveryStatus `gorm:"column:delivery_status;type:text;not null;default:'label_created'" json:"delivery_status"`
	EstimatedDeliveryDate *time.Time           `gorm:"column:estimated_delivery_date" json:"estimated_delivery_date,omitempty"`
	ShippedAt             *time.Time           `gorm:"column:shipped_at" json:"shipped_at,omitempty"`
	DeliveredAt           *time.Time           `gorm:"column:delivered_at" json:"delivered_at,omitempty"`
	TrackingHistory       json.RawMessage      `gorm:"column:tracking_history;type:jsonb" json:"tracking_history,omitempty"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (Shipment) TableName() string { return "shipments" }
