// Package webhook classifies and dispatches OpenPix payment notifications.
package webhook

import (
	"encoding/json"
	"strconv"
	"strings"
)

// Event kinds produced by classification.
const (
	EventChargeCreated       = "charge_created"
	EventChargeCompleted     = "charge_completed"
	EventChargeExpired       = "charge_expired"
	EventRefundReceived      = "refund_received"
	EventMovementFailed      = "movement_failed"
	EventTransactionReceived = "transaction_received"
)

// TestEventName marks the provider's endpoint verification ping.
const TestEventName = "teste_webhook"

// Charge statuses as the provider sends them.
const (
	ChargeStatusActive    = "ACTIVE"
	ChargeStatusCompleted = "COMPLETED"
	ChargeStatusExpired   = "EXPIRED"
)

// Charge is the charge object embedded in a notification.
type Charge struct {
	CorrelationID string `json:"correlationID"`
	Status        string `json:"status"`
	Identifier    string `json:"identifier"`
	TransactionID string `json:"transactionID"`
	Value         int64  `json:"value"`
}

// Pix is the movement object embedded in a notification.
type Pix struct {
	Value  int64 `json:"value"`
	Failed bool  `json:"failed"`
}

// Payload is a decoded OpenPix webhook body.
type Payload struct {
	Evento string  `json:"evento"`
	Event  string  `json:"event"`
	Charge *Charge `json:"charge"`
	Pix    *Pix    `json:"pix"`
}

// Parse decodes a raw webhook body. Bodies that are not JSON objects are
// rejected.
func Parse(body []byte) (*Payload, error) {
	var p Payload
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// IsTest reports whether the payload is the provider's endpoint test ping.
func (p *Payload) IsTest() bool {
	return p.Evento == TestEventName || p.Event == TestEventName
}

// OrderID extracts the numeric order id from the charge correlation id.
// The second result is false when the correlation id is absent or not a
// positive integer.
func (p *Payload) OrderID() (uint, bool) {
	if p.Charge == nil {
		return 0, false
	}
	raw := strings.TrimSpace(p.Charge.CorrelationID)
	if raw == "" {
		return 0, false
	}
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil || id == 0 {
		return 0, false
	}
	return uint(id), true
}

// Classify determines the event kind from the payload shape. The charge
// status is consulted first; a pix movement then refines the result. The
// empty string means the payload matches no known event.
func (p *Payload) Classify() string {
	if p.Charge == nil {
		return ""
	}
	switch p.Charge.Status {
	case ChargeStatusActive:
		return EventChargeCreated
	case ChargeStatusCompleted:
		return EventChargeCompleted
	case ChargeStatusExpired:
		return EventChargeExpired
	}
	if p.Pix != nil {
		if p.Pix.Value < 0 {
			return EventRefundReceived
		}
		if p.Pix.Failed {
			return EventMovementFailed
		}
		return EventTransactionReceived
	}
	return ""
}
