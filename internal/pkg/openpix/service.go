package openpix

import (
	"context"
	"log"
	"time"

	"github.com/ManuelReschke/PixOffline/internal/pkg/transactions"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ChargeIssuer creates charges at the provider. *Client satisfies it;
// tests substitute a fake.
type ChargeIssuer interface {
	CreateCharge(ctx context.Context, orderID uint, amount decimal.Decimal) (*ChargeResponse, error)
}

// ChargeResult is a charge ready for presentation, with its origin.
type ChargeResult struct {
	Charge *CachedCharge `json:"charge"`
	Cached bool          `json:"cached"`
}

// Service serves dynamic charges: a valid cached charge is re-presented,
// otherwise a fresh one is issued, recorded and cached.
type Service struct {
	issuer ChargeIssuer
	cache  ChargeCache
	txs    *transactions.Service
	now    func() time.Time
}

// NewService wires the charge service.
func NewService(issuer ChargeIssuer, cache ChargeCache, txs *transactions.Service) *Service {
	return &Service{issuer: issuer, cache: cache, txs: txs, now: time.Now}
}

// WithClock overrides the clock. Tests use it to cross expiry boundaries.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// GetOrCreate returns the charge for the order. A cached, still-valid
// charge is returned as-is; otherwise a new charge is issued, the
// transaction moves to pix_gerado with the refreshed totals, the payment
// identifier is recorded and the charge is cached for its lifetime.
func (s *Service) GetOrCreate(ctx context.Context, orderID uint) (*ChargeResult, error) {
	cached, err := s.cache.Get(orderID)
	if err != nil {
		// Cache trouble never blocks issuing; fall through to the provider.
		log.Printf("openpix: charge cache read for order %d failed: %v", orderID, err)
	}
	if cached != nil && cached.Valid(s.now()) {
		return &ChargeResult{Charge: cached, Cached: true}, nil
	}

	// Nothing is written before the provider answers: a failed call must
	// leave the transaction and the cache exactly as they were.
	total, _, err := s.txs.Totals(orderID)
	if err != nil {
		return nil, err
	}

	resp, err := s.issuer.CreateCharge(ctx, orderID, total)
	if err != nil {
		return nil, err
	}

	if _, _, err := s.txs.Recalculate(orderID); err != nil {
		return nil, err
	}

	identifier := resp.Identifier
	if identifier == "" {
		identifier = uuid.New().String()
	}
	if err := s.txs.SetIdentifier(orderID, identifier); err != nil {
		return nil, err
	}

	charge := &CachedCharge{
		BrCode:      resp.BrCode,
		QRCodeImage: resp.QRCodeImage,
		Identifier:  identifier,
		ExpiresIn:   resp.ExpiresIn,
		IssuedAt:    s.now(),
	}
	if err := s.cache.Put(orderID, charge); err != nil {
		log.Printf("openpix: charge cache write for order %d failed: %v", orderID, err)
	}
	return &ChargeResult{Charge: charge}, nil
}

// Invalidate drops the cached charge for an order, forcing the next
// request to issue a fresh one.
func (s *Service) Invalidate(orderID uint) error {
	return s.cache.Delete(orderID)
}
