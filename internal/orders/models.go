package orders

import (
	"time"

	"gorm.io/gorm"
)

// IdempotencyRecord guards order placement against double submission from
// the presentation layer. Records expire and are then ignored.
type IdempotencyRecord struct {
	gorm.Model
	IdempotencyKey string    `gorm:"uniqueIndex" json:"idempotency_key"`
	OrderID        uint      `json:"order_id"`
	ExpiresAt      time.Time `json:"expires_at"`
}
