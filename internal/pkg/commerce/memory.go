package commerce

import (
	"sort"
	"sync"
)

// Memory is an in-memory Orders collaborator for tests and local
// development.
type Memory struct {
	mu        sync.Mutex
	orders    map[uint]Order
	parents   map[uint]uint // child -> parent
	notes     map[uint][]string
	admins    map[uint]bool
	deleted   map[uint]bool
	customers map[uint]bool
}

// NewMemory creates an empty in-memory collaborator.
func NewMemory() *Memory {
	return &Memory{
		orders:    make(map[uint]Order),
		parents:   make(map[uint]uint),
		notes:     make(map[uint][]string),
		admins:    make(map[uint]bool),
		deleted:   make(map[uint]bool),
		customers: make(map[uint]bool),
	}
}

// AddOrder registers an order.
func (m *Memory) AddOrder(o Order) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.orders[o.ID] = o
	if o.CustomerID != 0 {
		m.customers[o.CustomerID] = true
	}
}

// AddChild registers child as an upsell order of parent.
func (m *Memory) AddChild(parent uint, child Order) {
	m.AddOrder(child)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.parents[child.ID] = parent
}

// MarkAdmin flags a customer as an administrator account.
func (m *Memory) MarkAdmin(customerID uint) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.admins[customerID] = true
	m.customers[customerID] = true
}

// Notes returns the notes recorded against an order.
func (m *Memory) Notes(orderID uint) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.notes[orderID]...)
}

// CustomerDeleted reports whether the customer account was removed.
func (m *Memory) CustomerDeleted(customerID uint) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.deleted[customerID]
}

func (m *Memory) Get(orderID uint) (Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[orderID]
	if !ok {
		return Order{}, ErrOrderNotFound
	}
	return o, nil
}

func (m *Memory) Children(parentOrderID uint) ([]uint, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var ids []uint
	for child, parent := range m.parents {
		if parent == parentOrderID {
			ids = append(ids, child)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (m *Memory) AddNote(orderID uint, note string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.orders[orderID]; !ok {
		return ErrOrderNotFound
	}
	m.notes[orderID] = append(m.notes[orderID], note)
	return nil
}

func (m *Memory) SetStatus(orderID uint, status, note string) error {
	m.mu.Lock()
	o, ok := m.orders[orderID]
	if !ok {
		m.mu.Unlock()
		return ErrOrderNotFound
	}
	o.Status = status
	m.orders[orderID] = o
	m.mu.Unlock()
	if note == "" {
		return nil
	}
	return m.AddNote(orderID, note)
}

func (m *Memory) DeleteCustomer(customerID uint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if customerID == 0 || !m.customers[customerID] || m.admins[customerID] {
		return nil
	}
	delete(m.customers, customerID)
	m.deleted[customerID] = true
	return nil
}
