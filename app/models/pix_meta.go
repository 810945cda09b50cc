package models

import "time"

// Attribute keys stored per order in the pix_meta table. Every PIX
// transaction attribute lives in its own row so independent writers do not
// block each other.
const (
	MetaTransactionID     = "_pix_transaction_id"
	MetaStatus            = "_pix_status"
	MetaOpenPixStatus     = "_pix_openpix_status"
	MetaType              = "_pix_type"
	MetaChildOrders       = "_pix_child_orders"
	MetaTotalAmount       = "_pix_total_amount"
	MetaCreatedAt         = "_pix_created_at"
	MetaUpdatedAt         = "_pix_updated_at"
	MetaReason            = "_pix_reason"
	MetaIdentifier        = "_pix_identifier"
	MetaWebhookEvents     = "_pix_webhook_events"
	MetaWebhookReceivedAt = "_pix_webhook_received_at"
	MetaWebhookSignature  = "_pix_webhook_signature"

	// MetaStatusHistoryPrefix is followed by the status value; the row holds
	// the timestamp that status was last entered.
	MetaStatusHistoryPrefix = "_pix_status_history_"

	// MetaKeyPrefix matches every PIX attribute key.
	MetaKeyPrefix = "_pix_"
)

// PixMeta is one attribute of a PIX transaction, keyed by (order_id,
// meta_key) with last-write-wins semantics per attribute. The pair is
// intentionally not uniquely indexed: the duplicate-repair job exists
// because concurrent creators can slip past the creation lock, and the
// schema has to be able to represent that state in order to repair it.
type PixMeta struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	OrderID   uint      `gorm:"not null;index:idx_pix_meta_order_key,priority:1" json:"order_id"`
	MetaKey   string    `gorm:"type:varchar(100);not null;index:idx_pix_meta_order_key,priority:2;index" json:"meta_key"`
	MetaValue string    `gorm:"type:longtext" json:"meta_value"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName keeps the table in line with the migrations.
func (PixMeta) TableName() string {
	return "pix_meta"
}
