package pixstore

import (
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/ManuelReschke/PixOffline/app/models"
)

type memRow struct {
	orderID uint
	key     string
	value   string
}

// Memory is an in-memory Store. It backs the test suites of every package
// that depends on the store contract and is useful for local development
// without a database. WithLock maps to a mutex keyed by order id; unlike
// the database implementation it does not roll back on error.
type Memory struct {
	mu   sync.Mutex
	rows []memRow

	lockMu sync.Mutex
	locks  map[uint]*sync.Mutex
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{locks: make(map[uint]*sync.Mutex)}
}

func (m *Memory) Get(orderID uint, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.rows {
		if r.orderID == orderID && r.key == key {
			return r.value, true, nil
		}
	}
	return "", false, nil
}

func (m *Memory) Upsert(orderID uint, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, r := range m.rows {
		if r.orderID == orderID && r.key == key {
			m.rows[i].value = value
			return nil
		}
	}
	m.rows = append(m.rows, memRow{orderID: orderID, key: key, value: value})
	return nil
}

// Append always inserts a new row, even when the key already exists for
// the order. Tests use it to simulate the duplicate rows a creation race
// leaves behind.
func (m *Memory) Append(orderID uint, key, value string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows = append(m.rows, memRow{orderID: orderID, key: key, value: value})
}

func (m *Memory) Delete(orderID uint, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	keep := m.rows[:0]
	for _, r := range m.rows {
		if r.orderID == orderID && contains(keys, r.key) {
			continue
		}
		keep = append(keep, r)
	}
	m.rows = keep
	return nil
}

func (m *Memory) DeleteAll(orderID uint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	// Keep the high-water mark alive before the rows carrying it go away.
	if cur := m.seqLocked(); cur > 0 {
		m.setSeqLocked(cur)
	}
	keep := m.rows[:0]
	for _, r := range m.rows {
		if r.orderID == orderID && strings.HasPrefix(r.key, models.MetaKeyPrefix) {
			continue
		}
		keep = append(keep, r)
	}
	m.rows = keep
	return nil
}

func (m *Memory) Exists(orderID uint) (bool, error) {
	_, ok, err := m.Get(orderID, models.MetaTransactionID)
	return ok, err
}

func (m *Memory) MaxTransactionID() (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var max uint64
	for _, r := range m.rows {
		if r.key != models.MetaTransactionID {
			continue
		}
		if id, err := strconv.ParseUint(strings.TrimSpace(r.value), 10, 64); err == nil && id > max {
			max = id
		}
	}
	return max, nil
}

func (m *Memory) NextTransactionID() (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	next := m.seqLocked() + 1
	m.setSeqLocked(next)
	return next, nil
}

// seqLocked returns the highest id ever assigned: the persisted sequence
// value, or the max of the stored rows when the sequence row is missing.
func (m *Memory) seqLocked() uint64 {
	var max uint64
	for _, r := range m.rows {
		if r.orderID == seqOrderID && r.key == seqKey {
			if v, err := strconv.ParseUint(r.value, 10, 64); err == nil && v > max {
				max = v
			}
		}
		if r.key == models.MetaTransactionID {
			if v, err := strconv.ParseUint(strings.TrimSpace(r.value), 10, 64); err == nil && v > max {
				max = v
			}
		}
	}
	return max
}

func (m *Memory) setSeqLocked(v uint64) {
	val := strconv.FormatUint(v, 10)
	for i, r := range m.rows {
		if r.orderID == seqOrderID && r.key == seqKey {
			m.rows[i].value = val
			return
		}
	}
	m.rows = append(m.rows, memRow{orderID: seqOrderID, key: seqKey, value: val})
}

func (m *Memory) TransactionIDs(orderID uint) ([]uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var ids []uint64
	for _, r := range m.rows {
		if r.orderID == orderID && r.key == models.MetaTransactionID {
			if id, err := strconv.ParseUint(strings.TrimSpace(r.value), 10, 64); err == nil {
				ids = append(ids, id)
			}
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (m *Memory) OrderIDs() ([]uint, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	seen := make(map[uint]struct{})
	var ids []uint
	for _, r := range m.rows {
		if !strings.HasPrefix(r.key, models.MetaKeyPrefix) {
			continue
		}
		if _, ok := seen[r.orderID]; ok {
			continue
		}
		seen[r.orderID] = struct{}{}
		ids = append(ids, r.orderID)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (m *Memory) OrderIDsCreatedBefore(cutoff time.Time) ([]uint, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	mark := FormatTime(cutoff)
	seen := make(map[uint]struct{})
	var ids []uint
	for _, r := range m.rows {
		if r.key != models.MetaCreatedAt || r.value >= mark {
			continue
		}
		if _, ok := seen[r.orderID]; ok {
			continue
		}
		seen[r.orderID] = struct{}{}
		ids = append(ids, r.orderID)
	}
	return ids, nil
}

func (m *Memory) List() ([]Row, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	metas := make([]models.PixMeta, 0, len(m.rows))
	for _, r := range m.rows {
		metas = append(metas, models.PixMeta{OrderID: r.orderID, MetaKey: r.key, MetaValue: r.value})
	}
	return assembleRows(metas), nil
}

func (m *Memory) WithLock(orderID uint, fn func(Store) error) error {
	m.lockMu.Lock()
	l, ok := m.locks[orderID]
	if !ok {
		l = &sync.Mutex{}
		m.locks[orderID] = l
	}
	m.lockMu.Unlock()

	l.Lock()
	defer l.Unlock()
	return fn(m)
}

func contains(keys []string, key string) bool {
	for _, k := range keys {
		if k == key {
			return true
		}
	}
	return false
}
