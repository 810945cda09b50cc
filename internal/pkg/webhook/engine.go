package webhook

import (
	"encoding/json"
	"errors"
	"log"
	"time"

	"github.com/ManuelReschke/PixOffline/app/models"
	"github.com/ManuelReschke/PixOffline/internal/pkg/pixstore"
	"github.com/ManuelReschke/PixOffline/internal/pkg/transactions"
)

// ErrUnclassified is returned when a payload matches no known event kind.
var ErrUnclassified = errors.New("webhook event not recognized")

// maxLoggedEvents bounds the per-order webhook event log; the oldest entry
// is evicted when full.
const maxLoggedEvents = 10

// LoggedEvent is one entry of the per-order webhook event log.
type LoggedEvent struct {
	Event      string `json:"event"`
	Status     string `json:"status,omitempty"`
	ReceivedAt string `json:"received_at"`
}

// Result reports what a dispatch did.
type Result struct {
	Event     string
	Duplicate bool
}

// Engine dispatches classified webhook events into transaction status
// changes and provider-status bookkeeping.
type Engine struct {
	svc *transactions.Service
	now func() time.Time
}

// NewEngine creates a dispatch engine over the transaction lifecycle
// manager.
func NewEngine(svc *transactions.Service) *Engine {
	return &Engine{svc: svc, now: time.Now}
}

// WithClock overrides the clock. Tests use it to pin the duplicate window.
func (e *Engine) WithClock(now func() time.Time) *Engine {
	e.now = now
	return e
}

// Process dispatches one delivery for an order whose transaction record
// exists. Duplicate detection runs before classification, so a repeat of
// any delivery inside the window is acknowledged without effect, whether
// or not its payload maps to a known event. The raw body takes part in
// duplicate detection.
func (e *Engine) Process(orderID uint, p *Payload, body []byte) (*Result, error) {
	store := e.svc.Store()
	now := e.now()

	chargeStatus := ""
	if p.Charge != nil {
		chargeStatus = p.Charge.Status
	}
	sig := Signature(body, chargeStatus)
	stored, _, err := store.Get(orderID, models.MetaWebhookSignature)
	if err != nil {
		return nil, err
	}
	if IsDuplicate(sig, stored, now) {
		return &Result{Duplicate: true}, nil
	}
	if err := store.Upsert(orderID, models.MetaWebhookSignature, EncodeSignature(sig, now)); err != nil {
		return nil, err
	}
	if err := store.Upsert(orderID, models.MetaWebhookReceivedAt, pixstore.FormatTime(now)); err != nil {
		return nil, err
	}

	event := p.Classify()
	if event == "" {
		return nil, ErrUnclassified
	}

	if err := e.dispatch(orderID, event); err != nil {
		return nil, err
	}
	if err := e.logEvent(orderID, event, chargeStatus, now); err != nil {
		log.Printf("webhook: event log for order %d failed: %v", orderID, err)
	}
	return &Result{Event: event}, nil
}

func (e *Engine) dispatch(orderID uint, event string) error {
	store := e.svc.Store()
	setProvider := func(status string) error {
		return store.Upsert(orderID, models.MetaOpenPixStatus, status)
	}

	switch event {
	case EventChargeCreated:
		// The charge exists at the provider; the internal status is not
		// touched, the customer has not acted yet.
		return setProvider(transactions.ProviderStatusCreated)
	case EventChargeCompleted:
		if err := setProvider(transactions.ProviderStatusCompleted); err != nil {
			return err
		}
		return e.svc.UpdateStatus(orderID, transactions.StatusFinalized, "")
	case EventChargeExpired:
		if err := setProvider(transactions.ProviderStatusExpired); err != nil {
			return err
		}
		return e.svc.UpdateStatus(orderID, transactions.StatusExpiredOpenPix, "Timeout")
	case EventRefundReceived:
		if err := setProvider(transactions.ProviderStatusRefunded); err != nil {
			return err
		}
		return e.svc.UpdateStatus(orderID, transactions.StatusReversedOpenPix, "Reembolso")
	case EventMovementFailed:
		if err := setProvider(transactions.ProviderStatusFailed); err != nil {
			return err
		}
		return e.svc.UpdateStatus(orderID, transactions.StatusRefusedOpenPix, "Falha no pagamento")
	case EventTransactionReceived:
		// Movement notification for an already tracked charge; recorded in
		// the event log only.
		log.Printf("webhook: transaction movement received for order %d", orderID)
		return nil
	}
	return ErrUnclassified
}

func (e *Engine) logEvent(orderID uint, event, chargeStatus string, now time.Time) error {
	store := e.svc.Store()
	raw, _, err := store.Get(orderID, models.MetaWebhookEvents)
	if err != nil {
		return err
	}

	var events []LoggedEvent
	if raw != "" {
		if err := json.Unmarshal([]byte(raw), &events); err != nil {
			events = nil
		}
	}
	events = append(events, LoggedEvent{
		Event:      event,
		Status:     chargeStatus,
		ReceivedAt: pixstore.FormatTime(now),
	})
	if len(events) > maxLoggedEvents {
		events = events[len(events)-maxLoggedEvents:]
	}

	encoded, err := json.Marshal(events)
	if err != nil {
		return err
	}
	return store.Upsert(orderID, models.MetaWebhookEvents, string(encoded))
}
