package commerce

import (
	"errors"

	"github.com/ManuelReschke/PixOffline/app/models"
	"github.com/shopspring/decimal"
)

// ErrOrderNotFound is returned when the referenced order does not exist in
// the host platform.
var ErrOrderNotFound = errors.New("order not found")

// Order is the read view of a host-platform order consumed by the PIX
// engine.
type Order struct {
	ID            uint
	Status        string
	PaymentMethod string
	CustomerID    uint
	Total         decimal.Decimal
}

// UsesBankTransfer reports whether the order qualifies for PIX handling.
func (o Order) UsesBankTransfer() bool {
	return o.PaymentMethod == models.PaymentMethodBankTransfer
}

// Orders is the collaborator interface to the commerce platform that owns
// orders and customers. The PIX engine reads orders, writes notes and
// status updates, and deletes refused customers; everything else about
// these records belongs to the platform.
type Orders interface {
	// Get resolves an order or returns ErrOrderNotFound.
	Get(orderID uint) (Order, error)

	// Children returns the ids of upsell orders bundled under the parent.
	Children(parentOrderID uint) ([]uint, error)

	// AddNote attaches an explanatory note to the order.
	AddNote(orderID uint, note string) error

	// SetStatus updates the order status and attaches the note.
	SetStatus(orderID uint, status, note string) error

	// DeleteCustomer removes the customer account unless it is an
	// administrator account. Unknown customers are ignored.
	DeleteCustomer(customerID uint) error
}
