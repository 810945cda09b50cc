package openpix

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/ManuelReschke/PixOffline/internal/pkg/cache"
)

// CachedCharge is an issued charge held for re-presentation until it
// expires at the provider.
type CachedCharge struct {
	BrCode      string    `json:"br_code"`
	QRCodeImage string    `json:"qr_code_image"`
	Identifier  string    `json:"identifier"`
	ExpiresIn   int       `json:"expires_in"`
	IssuedAt    time.Time `json:"issued_at"`
}

// Valid reports whether the charge can still be paid at now. A charge is
// valid strictly inside its lifetime; the boundary instant counts as
// expired.
func (c *CachedCharge) Valid(now time.Time) bool {
	ttl := time.Duration(c.ExpiresIn) * time.Second
	return now.Sub(c.IssuedAt) < ttl
}

// ChargeCache stores issued charges per order.
type ChargeCache interface {
	// Get returns the cached charge for the order, or (nil, nil) on a miss.
	Get(orderID uint) (*CachedCharge, error)

	// Put stores the charge with a TTL matching its remaining lifetime.
	Put(orderID uint, charge *CachedCharge) error

	// Delete drops the cached charge for the order.
	Delete(orderID uint) error
}

func chargeKey(orderID uint) string {
	return fmt.Sprintf("pix:charge:%d", orderID)
}

type redisChargeCache struct{}

// NewRedisChargeCache stores charges in the shared Redis cache.
func NewRedisChargeCache() ChargeCache {
	return redisChargeCache{}
}

func (redisChargeCache) Get(orderID uint) (*CachedCharge, error) {
	raw, err := cache.Get(chargeKey(orderID))
	if err != nil {
		if cache.IsMiss(err) {
			return nil, nil
		}
		return nil, err
	}
	var charge CachedCharge
	if err := json.Unmarshal([]byte(raw), &charge); err != nil {
		return nil, err
	}
	return &charge, nil
}

func (redisChargeCache) Put(orderID uint, charge *CachedCharge) error {
	encoded, err := json.Marshal(charge)
	if err != nil {
		return err
	}
	ttl := time.Duration(charge.ExpiresIn) * time.Second
	return cache.Set(chargeKey(orderID), string(encoded), ttl)
}

func (redisChargeCache) Delete(orderID uint) error {
	return cache.Delete(chargeKey(orderID))
}

// MemoryChargeCache is an in-process ChargeCache for tests.
type MemoryChargeCache struct {
	mu      sync.Mutex
	charges map[uint]*CachedCharge
}

// NewMemoryChargeCache creates an empty in-process charge cache.
func NewMemoryChargeCache() *MemoryChargeCache {
	return &MemoryChargeCache{charges: make(map[uint]*CachedCharge)}
}

func (m *MemoryChargeCache) Get(orderID uint) (*CachedCharge, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	charge, ok := m.charges[orderID]
	if !ok {
		return nil, nil
	}
	copied := *charge
	return &copied, nil
}

func (m *MemoryChargeCache) Put(orderID uint, charge *CachedCharge) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *charge
	m.charges[orderID] = &copied
	return nil
}

func (m *MemoryChargeCache) Delete(orderID uint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.charges, orderID)
	return nil
}
