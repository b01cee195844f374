package types

import "time"

// OrderWithTotal is one row of the paginated order listing, with totals
// summed over the order's snapshot lines.
type OrderWithTotal struct {
	OrderID     uint      `json:"order_id"`
	CreatedAt   time.Time `json:"created_at"`
	TotalSell   float64   `json:"total_sell"`
	Profit      float64   `json:"profit"`
	HasBorrower bool      `json:"has_borrower"`
}

// OrderProductLine is one snapshot line of an order as shown to the caller.
type OrderProductLine struct {
	Name         string  `json:"name"`
	Quantity     int64   `json:"quantity"`
	PriceSell    float64 `json:"price_sell"`
	SubtotalSell float64 `json:"subtotal_sell"`
}

// OrderStatistics aggregates the whole order history.
type OrderStatistics struct {
	TotalOrders    int64   `json:"total_orders"`
	TotalSell      float64 `json:"total_sell"`
	TotalBuy       float64 `json:"total_buy"`
	TotalProfit    float64 `json:"total_profit"`
	AverageProfit  float64 `json:"average_profit"`
	WithBorrower   int64   `json:"with_borrower"`
	LargestOrderID *uint   `json:"largest_order_id"`
}
