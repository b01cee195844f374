package catalog

import (
	"time"
)

// Product is a live catalog record. The ID is an external barcode, never an
// auto-generated sequence. Stock is nil for untracked inventory; StockDanger
// is the low-stock warning threshold.
type Product struct {
	ID          int64     `gorm:"primaryKey;autoIncrement:false" json:"id"`
	Name        string    `gorm:"not null" json:"name"`
	PriceBuy    float64   `gorm:"not null" json:"price_buy"`
	PriceSell   float64   `gorm:"not null" json:"price_sell"`
	Stock       *int64    `json:"stock"`
	StockDanger *int64    `json:"stock_danger"`
	CreatedAt   time.Time `json:"created_at"`
}
