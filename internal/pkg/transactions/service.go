package transactions

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/ManuelReschke/PixOffline/app/models"
	"github.com/ManuelReschke/PixOffline/internal/pkg/commerce"
	"github.com/ManuelReschke/PixOffline/internal/pkg/pixstore"
	"github.com/shopspring/decimal"
)

var (
	// ErrInvalidStatus rejects writes of statuses outside the defined set.
	ErrInvalidStatus = errors.New("invalid transaction status")

	// ErrInvalidAction rejects bulk actions outside the allow-list.
	ErrInvalidAction = errors.New("invalid bulk action")
)

// Allowed bulk actions.
const (
	BulkFinalize = "finalizar"
	BulkReverse  = "estornar"
	BulkRefuse   = "recusar"
	BulkDelete   = "delete"
)

// Transaction is the assembled view of one PIX transaction.
type Transaction struct {
	TransactionID     uint64          `json:"transaction_id"`
	OrderID           uint            `json:"order_id"`
	Status            string          `json:"status"`
	ProviderStatus    string          `json:"provider_status,omitempty"`
	PixType           string          `json:"pix_type"`
	ChildOrders       []uint          `json:"child_orders"`
	TotalAmount       decimal.Decimal `json:"total_amount"`
	Reason            string          `json:"reason,omitempty"`
	Identifier        string          `json:"identifier,omitempty"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
	WebhookReceivedAt *time.Time      `json:"webhook_received_at,omitempty"`
}

// Service is the transaction lifecycle manager. It is the only writer of
// the internal status attribute; webhook ingestion, admin actions and
// customer actions all funnel through it.
type Service struct {
	store  pixstore.Store
	orders commerce.Orders
	now    func() time.Time
}

// NewService creates a lifecycle manager over a store and the commerce
// collaborator.
func NewService(store pixstore.Store, orders commerce.Orders) *Service {
	return &Service{store: store, orders: orders, now: time.Now}
}

// WithClock overrides the clock. Tests use it to pin timestamps.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Store exposes the underlying transaction store to collaborating
// components (webhook ingestion writes provider attributes directly).
func (s *Service) Store() pixstore.Store {
	return s.store
}

// Create creates the transaction for an order exactly once. It returns the
// assigned transaction id and whether this call created it; a concurrent
// or earlier creation is reported as (0, false, nil) — "already exists" is
// success, not failure.
//
// The protocol is check, lock, re-check, write, commit: a cheap existence
// check short-circuits the common case, and the per-order critical section
// makes the re-check and the id assignment atomic with the writes.
func (s *Service) Create(orderID uint, initialStatus string) (uint64, bool, error) {
	if !IsValidStatus(initialStatus) {
		return 0, false, ErrInvalidStatus
	}

	exists, err := s.store.Exists(orderID)
	if err != nil {
		return 0, false, err
	}
	if exists {
		return 0, false, nil
	}

	var assigned uint64
	created := false
	err = s.store.WithLock(orderID, func(tx pixstore.Store) error {
		exists, err := tx.Exists(orderID)
		if err != nil {
			return err
		}
		if exists {
			return nil
		}

		order, err := s.orders.Get(orderID)
		if err != nil {
			return fmt.Errorf("create transaction for order %d: %w", orderID, err)
		}
		if !order.UsesBankTransfer() {
			// Only offline bank-transfer orders carry PIX transactions.
			return nil
		}

		children, total, err := s.computeTotals(order)
		if err != nil {
			return err
		}

		id, err := tx.NextTransactionID()
		if err != nil {
			return err
		}

		pixType := PixTypeStatic
		if models.GetPixSettings().IsDynamicEnabled() {
			pixType = PixTypeDynamic
		}

		childJSON, err := json.Marshal(children)
		if err != nil {
			return err
		}

		now := pixstore.FormatTime(s.now())
		attrs := map[string]string{
			models.MetaTransactionID: strconv.FormatUint(id, 10),
			models.MetaStatus:        initialStatus,
			models.MetaType:          pixType,
			models.MetaChildOrders:   string(childJSON),
			models.MetaTotalAmount:   total.StringFixed(2),
			models.MetaCreatedAt:     now,
			models.MetaUpdatedAt:     now,
			models.MetaReason:        "",
			models.MetaIdentifier:    "",
			models.MetaWebhookEvents: "[]",
		}
		for key, value := range attrs {
			if err := tx.Upsert(orderID, key, value); err != nil {
				return err
			}
		}

		assigned = id
		created = true
		return nil
	})
	if err != nil {
		return 0, false, err
	}
	return assigned, created, nil
}

// UpdateStatus atomically moves the transaction to newStatus, records the
// change in the status history, and applies the order-side effects
// post-commit. A missing transaction is created with newStatus (the
// creation hook can be missed when the webhook outruns it).
func (s *Service) UpdateStatus(orderID uint, newStatus, reason string) error {
	if !IsValidStatus(newStatus) {
		return ErrInvalidStatus
	}

	exists, err := s.store.Exists(orderID)
	if err != nil {
		return err
	}
	if !exists {
		_, _, err := s.Create(orderID, newStatus)
		return err
	}

	err = s.store.WithLock(orderID, func(tx pixstore.Store) error {
		now := pixstore.FormatTime(s.now())
		if err := tx.Upsert(orderID, models.MetaStatus, newStatus); err != nil {
			return err
		}
		if err := tx.Upsert(orderID, models.MetaUpdatedAt, now); err != nil {
			return err
		}
		if reason != "" {
			if err := tx.Upsert(orderID, models.MetaReason, reason); err != nil {
				return err
			}
		}
		// Latest timestamp per distinct status; re-entering a status moves
		// its marker instead of adding a second one.
		return tx.Upsert(orderID, models.MetaStatusHistoryPrefix+newStatus, now)
	})
	if err != nil {
		return err
	}

	// Order-side effects are best effort and deliberately outside the
	// store transaction; a note failure must not roll back the status.
	s.applyOrderEffects(orderID, newStatus)
	return nil
}

// Reactivate reverses a settled transaction back to pendente. The order
// moves to on-hold and the payment can be finalized again.
func (s *Service) Reactivate(orderID uint) error {
	return s.UpdateStatus(orderID, StatusPending, "")
}

// Delete removes every PIX attribute for the order. Irreversible; the
// transaction id is never reused.
func (s *Service) Delete(orderID uint) error {
	return s.store.DeleteAll(orderID)
}

// Bulk applies one allow-listed action to each order id. Ids without an
// order are skipped silently; the returned count is the number actually
// processed. There is no batch atomicity across orders.
func (s *Service) Bulk(action string, orderIDs []uint, reason string) (int, error) {
	switch action {
	case BulkFinalize, BulkReverse, BulkRefuse, BulkDelete:
	default:
		return 0, ErrInvalidAction
	}

	processed := 0
	for _, orderID := range orderIDs {
		if _, err := s.orders.Get(orderID); err != nil {
			continue
		}

		var err error
		switch action {
		case BulkFinalize:
			err = s.UpdateStatus(orderID, StatusFinalized, "")
		case BulkReverse:
			err = s.UpdateStatus(orderID, StatusReversedAdmin, reason)
		case BulkRefuse:
			err = s.UpdateStatus(orderID, StatusRefusedAdmin, reason)
		case BulkDelete:
			err = s.Delete(orderID)
		}
		if err != nil {
			log.Printf("bulk %s: order %d failed: %v", action, orderID, err)
			continue
		}
		processed++
	}
	return processed, nil
}

// Recalculate refreshes the child-order set and the total from current
// order data and moves the transaction to pix_gerado. Missing transactions
// are created (the AJAX recalculation can be the first trigger seen for an
// order).
func (s *Service) Recalculate(orderID uint) (decimal.Decimal, []uint, error) {
	order, err := s.orders.Get(orderID)
	if err != nil {
		return decimal.Zero, nil, err
	}
	children, total, err := s.computeTotals(order)
	if err != nil {
		return decimal.Zero, nil, err
	}

	exists, err := s.store.Exists(orderID)
	if err != nil {
		return decimal.Zero, nil, err
	}
	if !exists {
		if _, _, err := s.Create(orderID, StatusGenerated); err != nil {
			return decimal.Zero, nil, err
		}
		return total, children, nil
	}

	if err := s.UpdateStatus(orderID, StatusGenerated, ""); err != nil {
		return decimal.Zero, nil, err
	}
	childJSON, err := json.Marshal(children)
	if err != nil {
		return decimal.Zero, nil, err
	}
	if err := s.store.Upsert(orderID, models.MetaChildOrders, string(childJSON)); err != nil {
		return decimal.Zero, nil, err
	}
	if err := s.store.Upsert(orderID, models.MetaTotalAmount, total.StringFixed(2)); err != nil {
		return decimal.Zero, nil, err
	}
	return total, children, nil
}

// Totals computes the current child-order set and combined total from
// live order data without writing anything.
func (s *Service) Totals(orderID uint) (decimal.Decimal, []uint, error) {
	order, err := s.orders.Get(orderID)
	if err != nil {
		return decimal.Zero, nil, err
	}
	children, total, err := s.computeTotals(order)
	if err != nil {
		return decimal.Zero, nil, err
	}
	return total, children, nil
}

// SetIdentifier records the provider- or locally-assigned payment
// identifier shown to the customer.
func (s *Service) SetIdentifier(orderID uint, identifier string) error {
	return s.store.Upsert(orderID, models.MetaIdentifier, identifier)
}

// Exists reports whether a transaction record exists for the order.
func (s *Service) Exists(orderID uint) (bool, error) {
	return s.store.Exists(orderID)
}

// Get assembles the transaction for one order.
func (s *Service) Get(orderID uint) (*Transaction, error) {
	rows, err := s.store.List()
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		if row.OrderID == orderID {
			t := fromRow(row)
			return &t, nil
		}
	}
	return nil, nil
}

// List returns every transaction, newest transaction id first.
func (s *Service) List() ([]Transaction, error) {
	rows, err := s.store.List()
	if err != nil {
		return nil, err
	}
	out := make([]Transaction, 0, len(rows))
	for _, row := range rows {
		out = append(out, fromRow(row))
	}
	return out, nil
}

// StatsRow aggregates transactions sharing a (status, pix type, provider
// status) triple.
type StatsRow struct {
	Status         string          `json:"status"`
	PixType        string          `json:"pix_type"`
	ProviderStatus string          `json:"provider_status,omitempty"`
	Count          int             `json:"count"`
	TotalValue     decimal.Decimal `json:"total_value"`
}

// Stats aggregates all transactions by status, PIX type and provider
// status, with a count and summed value per group.
func (s *Service) Stats() ([]StatsRow, error) {
	txs, err := s.List()
	if err != nil {
		return nil, err
	}

	type key struct{ status, pixType, provider string }
	groups := make(map[key]*StatsRow)
	var order []key
	for _, t := range txs {
		k := key{t.Status, t.PixType, t.ProviderStatus}
		g, ok := groups[k]
		if !ok {
			g = &StatsRow{Status: t.Status, PixType: t.PixType, ProviderStatus: t.ProviderStatus, TotalValue: decimal.Zero}
			groups[k] = g
			order = append(order, k)
		}
		g.Count++
		g.TotalValue = g.TotalValue.Add(t.TotalAmount)
	}

	out := make([]StatsRow, 0, len(order))
	for _, k := range order {
		out = append(out, *groups[k])
	}
	return out, nil
}

func (s *Service) computeTotals(order commerce.Order) ([]uint, decimal.Decimal, error) {
	children, err := s.orders.Children(order.ID)
	if err != nil {
		return nil, decimal.Zero, err
	}
	if children == nil {
		children = []uint{}
	}
	total := order.Total
	for _, childID := range children {
		child, err := s.orders.Get(childID)
		if err != nil {
			if errors.Is(err, commerce.ErrOrderNotFound) {
				continue
			}
			return nil, decimal.Zero, err
		}
		total = total.Add(child.Total)
	}
	return children, total, nil
}

func (s *Service) applyOrderEffects(orderID uint, status string) {
	pixType, _, err := s.store.Get(orderID, models.MetaType)
	if err != nil || pixType == "" {
		pixType = PixTypeStatic
	}
	effect, ok := effectFor(status, PixTypeLabel(pixType))
	if !ok {
		return
	}

	order, err := s.orders.Get(orderID)
	if err != nil {
		log.Printf("order effects: order %d lookup failed: %v", orderID, err)
		return
	}
	children, err := s.orders.Children(orderID)
	if err != nil {
		log.Printf("order effects: children of %d lookup failed: %v", orderID, err)
		children = nil
	}

	for _, oid := range append([]uint{orderID}, children...) {
		if effect.orderStatus == "" {
			if err := s.orders.AddNote(oid, effect.note); err != nil {
				log.Printf("order effects: note on %d failed: %v", oid, err)
			}
			continue
		}
		if err := s.orders.SetStatus(oid, effect.orderStatus, effect.note); err != nil {
			log.Printf("order effects: status of %d failed: %v", oid, err)
		}
	}

	if effect.deleteCustomer {
		if err := s.orders.DeleteCustomer(order.CustomerID); err != nil {
			log.Printf("order effects: customer delete for order %d failed: %v", orderID, err)
		}
	}
}

func fromRow(row pixstore.Row) Transaction {
	attrs := row.Attributes
	t := Transaction{
		TransactionID:  row.TransactionID,
		OrderID:        row.OrderID,
		Status:         attrs[models.MetaStatus],
		ProviderStatus: attrs[models.MetaOpenPixStatus],
		PixType:        attrs[models.MetaType],
		Reason:         attrs[models.MetaReason],
		Identifier:     attrs[models.MetaIdentifier],
		ChildOrders:    []uint{},
		TotalAmount:    decimal.Zero,
	}
	if t.PixType == "" {
		t.PixType = PixTypeStatic
	}
	if raw := attrs[models.MetaChildOrders]; raw != "" {
		var children []uint
		if err := json.Unmarshal([]byte(raw), &children); err == nil && children != nil {
			t.ChildOrders = children
		}
	}
	if raw := attrs[models.MetaTotalAmount]; raw != "" {
		if v, err := decimal.NewFromString(raw); err == nil {
			t.TotalAmount = v
		}
	}
	if raw := attrs[models.MetaCreatedAt]; raw != "" {
		if ts, err := pixstore.ParseTime(raw); err == nil {
			t.CreatedAt = ts
		}
	}
	if raw := attrs[models.MetaUpdatedAt]; raw != "" {
		if ts, err := pixstore.ParseTime(raw); err == nil {
			t.UpdatedAt = ts
		}
	}
	if raw := attrs[models.MetaWebhookReceivedAt]; raw != "" {
		if ts, err := pixstore.ParseTime(raw); err == nil {
			t.WebhookReceivedAt = &ts
		}
	}
	return t
}
