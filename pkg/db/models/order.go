package models

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/analogfan/marketplace-backend/pkg/enums"
)

// Order is the buyer-facing aggregate the fulfillment pipeline mutates.
// OrderStatus and PaymentStatus are independent enums; the state machine in
// internal/orders keeps them conventionally correlated.
type Order struct {
	ID          int64  `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	UserID      int64  `gorm:"column:user_id;not null" json:"user_id"`
	OrderNumber string `gorm:"column:order_number;uniqueIndex;not null" json:"order_number"`

	Email       string  `gorm:"column:email;not null" json:"email"`
	PhoneNumber *string `gorm:"column:phone_number" json:"phone_number,omitempty"`
	Street      string  `gorm:"column:street;not null" json:"street"`
	HouseNumber string  `gorm:"column:house_number;not null" json:"house_number"`
	City        string  `gorm:"column:city;not null" json:"city"`
	ZipCode     string  `gorm:"column:zip_code;not null" json:"zip_code"`
	Country     string  `gorm:"column:country;not null" json:"country"`

	Subtotal     decimal.Decimal `gorm:"column:subtotal;type:numeric(10,2);not null" json:"subtotal"`
	TaxAmount    decimal.Decimal `gorm:"column:tax_amount;type:numeric(10,2);not null;default:0" json:"tax_amount"`
	ShippingCost decimal.Decimal `gorm:"column:shipping_cost;type:numeric(10,2);not null;default:0" json:"shipping_cost"`
	TotalAmount  decimal.Decimal `gorm:"column:total_amount;type:numeric(10,2);not null" json:"total_amount"`

	PaymentMethod *string             `gorm:"column:payment_method" json:"payment_method,omitempty"`
	PaymentStatus enums.PaymentStatus `gorm:"column:payment_status;type:text;not null;default:'pending'" json:"payment_status"`
	TransactionID *string             `gorm:"column:transaction_id" json:"transaction_id,omitempty"`

	OrderStatus    enums.OrderStatus `gorm:"column:order_status;type:text;not null;default:'pending'" json:"order_status"`
	TrackingNumber *string           `gorm:"column:tracking_number" json:"tracking_number,omitempty"`
	ShippedAt      *time.Time        `gorm:"column:shipped_at" json:"shipped_at,omitempty"`
	DeliveredAt    *time.Time        `gorm:"column:delivered_at" json:"delivered_at,omitempty"`

	Items []OrderItem `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE" json:"items,omitempty"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (Order) TableName() string { return "orders" }

// BuyerDisplayName returns the name printed on the label, falling back to the
// mailbox part of the email when the buyer profile carries no name.
func (o *Order) BuyerDisplayName(firstName, lastName string) string {
	name := firstName
	if lastName != "" {
		if name != "" {
			name += " "
		}
		name += lastName
	}
	if name != "" {
		return name
	}
	for i, r := range o.Email {
		if r == '@' {
			return o.Email[:i]
		}
	}
	return "Customer"
}
