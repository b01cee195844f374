package borrowers

import (
	"time"
)

// Borrower is a customer buying on credit. Amount is a denormalized running
// total of the linked order snapshot totals; it can be corrected directly or
// recomputed from the snapshots.
type Borrower struct {
	ID     uint      `gorm:"primaryKey" json:"id"`
	Name   string    `gorm:"not null" json:"name"`
	Date   time.Time `gorm:"not null" json:"date"`
	Amount float64   `gorm:"not null" json:"amount"`
}

// OrderSnapshot is the permanent debt record created when a live order is
// linked to a borrower. OriginalOrderID is a weak reference kept by value:
// deleting the live order later leaves this row intact. At most one snapshot
// ever exists per original order.
type OrderSnapshot struct {
	ID              uint      `gorm:"primaryKey" json:"id"`
	OriginalOrderID uint      `gorm:"index" json:"original_order_id"`
	BorrowerID      uint      `gorm:"index" json:"borrower_id"`
	Date            time.Time `gorm:"not null" json:"date"`
	TotalPrice      float64   `gorm:"not null" json:"total_price"`
}

func (OrderSnapshot) TableName() string { return "orders_snapshots" }

// OrderSnapshotProduct is an immutable copy of one product line, re-parented
// under an order snapshot. Self-contained: it never refers back to the live
// catalog.
type OrderSnapshotProduct struct {
	ID              uint    `gorm:"primaryKey" json:"id"`
	OrderSnapshotID uint    `gorm:"index" json:"order_snapshot_id"`
	Name            string  `gorm:"not null" json:"name"`
	PriceSell       float64 `gorm:"not null" json:"price_sell"`
	Quantity        int64   `gorm:"not null" json:"quantity"`
}

func (OrderSnapshotProduct) TableName() string { return "orders_snapshots_products" }

// BorrowerOrder is one entry of a borrower's debt history as returned to the
// caller, with the frozen product lines attached.
type BorrowerOrder struct {
	OrderID    uint                   `json:"order_id"`
	OrderDate  time.Time              `json:"order_date"`
	TotalPrice float64                `json:"total_price"`
	Products   []OrderSnapshotProduct `json:"products"`
}

// LinkResult is the outcome of linking an order to a borrower. A duplicate
// link is an expected business outcome, reported here rather than as an
// error.
type LinkResult struct {
	Linked bool   `json:"linked"`
	Reason string `json:"reason,omitempty"`
}
