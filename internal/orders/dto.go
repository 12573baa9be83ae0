package orders

import (
	"github.com/shopspring/decimal"

	"github.com/analogfan/marketplace-backend/internal/shipments"
	"github.com/analogfan/marketplace-backend/pkg/db/models"
)

// CreateOrderItemInput is one price-snapshot line of a new order.
type CreateOrderItemInput struct {
	ItemID   int64           `json:"item_id" validate:"required,gt=0"`
	Quantity int             `json:"quantity" validate:"required,gt=0"`
	Price    decimal.Decimal `json:"price"`
}

// CreateOrderInput carries everything needed to persist a new order.
type CreateOrderInput struct {
	UserID      int64   `json:"user_id" validate:"required,gt=0"`
	OrderNumber string  `json:"order_number,omitempty"`
	Email       string  `json:"email" validate:"required,email"`
	PhoneNumber *string `json:"phone_number,omitempty"`
	Street      string  `json:"street" validate:"required"`
	HouseNumber string  `json:"house_number" validate:"required"`
	City        string  `json:"city" validate:"required"`
	ZipCode     string  `json:"zip_code" validate:"required"`
	Country     string  `json:"country" validate:"required"`

	Subtotal     decimal.Decimal `json:"subtotal" validate:"required"`
	TaxAmount    decimal.Decimal `json:"tax_amount"`
	ShippingCost decimal.Decimal `json:"shipping_cost"`
	TotalAmount  decimal.Decimal `json:"total_amount" validate:"required"`

	PaymentMethod *string `json:"payment_method,omitempty"`
	PaymentStatus string  `json:"payment_status,omitempty"`
	TransactionID *string `json:"transaction_id,omitempty"`
	OrderStatus   string  `json:"order_status,omitempty"`

	Items []CreateOrderItemInput `json:"items" validate:"dive"`
}

// UpdateOrderInput is a partial patch; nil fields are left untouched.
type UpdateOrderInput struct {
	Email       *string `json:"email,omitempty"`
	PhoneNumber *string `json:"phone_number,omitempty"`
	Street      *string `json:"street,omitempty"`
	HouseNumber *string `json:"house_number,omitempty"`
	City        *string `json:"city,omitempty"`
	ZipCode     *string `json:"zip_code,omitempty"`
	Country     *string `json:"country,omitempty"`

	Subtotal     *decimal.Decimal `json:"subtotal,omitempty"`
	TaxAmount    *decimal.Decimal `json:"tax_amount,omitempty"`
	ShippingCost *decimal.Decimal `json:"shipping_cost,omitempty"`
	TotalAmount  *decimal.Decimal `json:"total_amount,omitempty"`

	PaymentMethod *string `json:"payment_method,omitempty"`
	PaymentStatus *string `json:"payment_status,omitempty"`
	TransactionID *string `json:"transaction_id,omitempty"`

	OrderStatus    *string `json:"order_status,omitempty"`
	TrackingNumber *string `json:"tracking_number,omitempty"`
}

// UpdateResult pairs the updated order with the outcome of any shipment
// orchestration triggered by a payment transition. Fulfillment is nil when no
// non-paid to paid transition happened.
type UpdateResult struct {
	Order       *models.Order      `json:"order"`
	Fulfillment *shipments.Outcome `json:"fulfillment,omitempty"`
}
