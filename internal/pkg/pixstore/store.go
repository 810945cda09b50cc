package pixstore

import "time"

// TimeLayout is the canonical format for timestamps persisted as attribute
// values. Values are stored in UTC so the textual order matches the
// chronological order, which the age-based cleanup relies on.
const TimeLayout = "2006-01-02 15:04:05"

// FormatTime renders t in the canonical attribute format.
func FormatTime(t time.Time) string {
	return t.UTC().Format(TimeLayout)
}

// ParseTime parses a timestamp attribute value.
func ParseTime(v string) (time.Time, error) {
	return time.Parse(TimeLayout, v)
}

// The transaction-id sequence is persisted as a reserved row outside the
// PIX attribute namespace so deletions cannot make ids come back.
const (
	seqOrderID uint = 0
	seqKey          = "pix_transaction_seq"
)

// Row is one transaction with all its attributes joined by order id.
type Row struct {
	OrderID       uint
	TransactionID uint64
	Attributes    map[string]string
}

// Store is durable per-attribute storage keyed by (order_id, meta_key)
// with last-write-wins semantics per attribute. Writers to different
// attributes of the same order do not block each other; creation of a new
// transaction must go through WithLock.
type Store interface {
	// Get returns the attribute value and whether it exists.
	Get(orderID uint, key string) (string, bool, error)

	// Upsert writes the attribute, replacing any existing value.
	Upsert(orderID uint, key, value string) error

	// Delete removes the named attributes for the order.
	Delete(orderID uint, keys ...string) error

	// DeleteAll removes every PIX attribute for the order.
	DeleteAll(orderID uint) error

	// Exists reports whether a transaction record exists for the order.
	Exists(orderID uint) (bool, error)

	// MaxTransactionID returns the highest transaction id currently
	// stored, or 0 if none exists.
	MaxTransactionID() (uint64, error)

	// NextTransactionID assigns the next transaction id. Assigned ids are
	// strictly increasing and never reused, even after deletions; callers
	// must invoke this inside WithLock so concurrent creators cannot read
	// the same value.
	NextTransactionID() (uint64, error)

	// TransactionIDs returns every stored transaction id value for the
	// order, ascending. More than one entry is evidence of a creation race
	// and is what the duplicate-repair job looks for.
	TransactionIDs(orderID uint) ([]uint64, error)

	// OrderIDs returns every distinct order id holding any PIX attribute.
	OrderIDs() ([]uint, error)

	// OrderIDsCreatedBefore returns orders whose transaction was created
	// before the cutoff.
	OrderIDsCreatedBefore(cutoff time.Time) ([]uint, error)

	// List returns all transactions with their attributes, ordered by
	// transaction id descending.
	List() ([]Row, error)

	// WithLock runs fn inside an exclusive per-order critical section. The
	// database implementation takes a row lock inside a transaction; all
	// writes issued through the passed Store commit or roll back together
	// with fn's result.
	WithLock(orderID uint, fn func(Store) error) error
}
