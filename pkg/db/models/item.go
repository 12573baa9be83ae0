package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Item is a catalog listing. Only the stock-keeping fields matter to the
// fulfillment pipeline; catalog CRUD lives elsewhere.
type Item struct {
	ID        int64           `gorm:"column:item_id;primaryKey;autoIncrement" json:"item_id"`
	UserID    int64           `gorm:"column:user_id;not null" json:"user_id"`
	Title     string          `gorm:"column:title;not null" json:"title"`
	Price     decimal.Decimal `gorm:"column:price;type:numeric(10,2);not null" json:"price"`
	Quantity  int             `gorm:"column:quantity;not null;default:0" json:"quantity"`
	CreatedAt time.Time       `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt time.Time       `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (Item) TableName() string { return "items" }
