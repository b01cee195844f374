package types

import (
	"time"
)

// Order is a live, still-reversible sale. Its financial detail lives in
// ProductSnapshot rows; deleting the order restores stock and removes those
// rows, but never the historical borrower snapshots derived from them.
type Order struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
}

// ProductSnapshot freezes a product's name and prices at the moment an order
// was placed. One row per order line; lines for the same product are not
// merged. ProductID is a weak reference: the product may be deleted later
// and the row stays self-contained.
type ProductSnapshot struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	OrderID   uint      `gorm:"index" json:"order_id"`
	ProductID *int64    `json:"product_id"`
	Name      string    `json:"name"`
	PriceBuy  float64   `json:"price_buy"`
	PriceSell float64   `json:"price_sell"`
	Quantity  int64     `json:"quantity"`
	CreatedAt time.Time `json:"created_at"`
}

func (ProductSnapshot) TableName() string { return "products_snapshots" }

// OrderLine is a single requested line of a new order.
type OrderLine struct {
	ProductID int64 `json:"product_id" binding:"required"`
	Quantity  int64 `json:"quantity" binding:"required,gt=0"`
}
