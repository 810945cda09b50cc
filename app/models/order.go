package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Order statuses as reported by the host commerce platform.
const (
	OrderStatusPending   = "pending"
	OrderStatusOnHold    = "on-hold"
	OrderStatusCompleted = "completed"
	OrderStatusCancelled = "cancelled"
	OrderStatusFailed    = "failed"
	OrderStatusRefunded  = "refunded"
)

// PaymentMethodBankTransfer is the offline bank-transfer method that
// qualifies an order for PIX handling.
const PaymentMethodBankTransfer = "bacs"

// Order mirrors the host platform's order record. Orders are owned by the
// commerce platform; this service only reads them and applies status
// updates and notes. Upsell child orders reference their primary order via
// ParentOrderID.
type Order struct {
	ID            uint            `gorm:"primaryKey" json:"id"`
	Status        string          `gorm:"type:varchar(32);not null;default:'pending';index" json:"status"`
	PaymentMethod string          `gorm:"type:varchar(32);not null;index" json:"payment_method"`
	CustomerID    uint            `gorm:"index" json:"customer_id"`
	ParentOrderID *uint           `gorm:"index" json:"parent_order_id,omitempty"`
	Total         decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"total"`
	CreatedAt     time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

// OrderNote is an explanatory note attached to an order.
type OrderNote struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	OrderID   uint      `gorm:"not null;index" json:"order_id"`
	Note      string    `gorm:"type:text;not null" json:"note"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// Customer is the platform's customer account. Only deletion (on admin
// refusal of a payment) touches this record, and administrator accounts
// are never deleted.
type Customer struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Email     string    `gorm:"type:varchar(191);not null;index" json:"email"`
	IsAdmin   bool      `gorm:"default:false" json:"is_admin"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}
