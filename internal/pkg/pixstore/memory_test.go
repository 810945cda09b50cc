package pixstore

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuelReschke/PixOffline/app/models"
)

func TestMemoryUpsertReplacesValue(t *testing.T) {
	m := NewMemory()
	require.NoError(t, m.Upsert(7, models.MetaStatus, "checkout_iniciado"))
	require.NoError(t, m.Upsert(7, models.MetaStatus, "finalizado"))

	v, ok, err := m.Get(7, models.MetaStatus)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "finalizado", v)

	ids, err := m.TransactionIDs(7)
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestMemoryNextTransactionIDIsMonotonic(t *testing.T) {
	m := NewMemory()

	first, err := m.NextTransactionID()
	require.NoError(t, err)
	second, err := m.NextTransactionID()
	require.NoError(t, err)
	assert.Greater(t, second, first)
}

func TestMemoryNextTransactionIDSurvivesDeletion(t *testing.T) {
	m := NewMemory()

	id, err := m.NextTransactionID()
	require.NoError(t, err)
	require.NoError(t, m.Upsert(3, models.MetaTransactionID, "1"))
	require.NoError(t, m.DeleteAll(3))

	next, err := m.NextTransactionID()
	require.NoError(t, err)
	assert.Greater(t, next, id, "ids must never be reused after deletion")
}

func TestMemoryNextTransactionIDConcurrentFirstAssignment(t *testing.T) {
	m := NewMemory()

	var mu sync.Mutex
	seen := make(map[uint64]bool)
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id, err := m.NextTransactionID()
			assert.NoError(t, err)
			mu.Lock()
			assert.False(t, seen[id], "id %d assigned twice", id)
			seen[id] = true
			mu.Unlock()
		}()
	}
	wg.Wait()
	assert.Len(t, seen, 20)
}

func TestMemoryNextTransactionIDSeedsFromStoredRows(t *testing.T) {
	m := NewMemory()
	m.Append(9, models.MetaTransactionID, "41")

	next, err := m.NextTransactionID()
	require.NoError(t, err)
	assert.Equal(t, uint64(42), next)
}

func TestMemoryDeleteAllKeepsForeignRows(t *testing.T) {
	m := NewMemory()
	require.NoError(t, m.Upsert(5, models.MetaTransactionID, "1"))
	require.NoError(t, m.Upsert(5, models.MetaStatus, "pendente"))
	require.NoError(t, m.Upsert(6, models.MetaTransactionID, "2"))

	require.NoError(t, m.DeleteAll(5))

	exists, err := m.Exists(5)
	require.NoError(t, err)
	assert.False(t, exists)

	exists, err = m.Exists(6)
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestMemoryListNewestFirst(t *testing.T) {
	m := NewMemory()
	require.NoError(t, m.Upsert(1, models.MetaTransactionID, "1"))
	require.NoError(t, m.Upsert(2, models.MetaTransactionID, "3"))
	require.NoError(t, m.Upsert(3, models.MetaTransactionID, "2"))

	rows, err := m.List()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, uint64(3), rows[0].TransactionID)
	assert.Equal(t, uint64(2), rows[1].TransactionID)
	assert.Equal(t, uint64(1), rows[2].TransactionID)
}

func TestMemoryOrderIDsCreatedBefore(t *testing.T) {
	m := NewMemory()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, m.Upsert(1, models.MetaTransactionID, "1"))
	require.NoError(t, m.Upsert(1, models.MetaCreatedAt, FormatTime(now.AddDate(0, 0, -120))))
	require.NoError(t, m.Upsert(2, models.MetaTransactionID, "2"))
	require.NoError(t, m.Upsert(2, models.MetaCreatedAt, FormatTime(now.AddDate(0, 0, -10))))

	ids, err := m.OrderIDsCreatedBefore(now.AddDate(0, 0, -90))
	require.NoError(t, err)
	assert.Equal(t, []uint{1}, ids)
}

func TestMemoryAppendLeavesDuplicateRows(t *testing.T) {
	m := NewMemory()
	m.Append(4, models.MetaTransactionID, "10")
	m.Append(4, models.MetaTransactionID, "11")

	ids, err := m.TransactionIDs(4)
	require.NoError(t, err)
	assert.Equal(t, []uint64{10, 11}, ids)
}

func TestMemoryWithLockSerializesPerOrder(t *testing.T) {
	m := NewMemory()
	done := make(chan struct{})

	go func() {
		defer close(done)
		_ = m.WithLock(1, func(s Store) error {
			return s.Upsert(1, models.MetaStatus, "a")
		})
	}()

	err := m.WithLock(1, func(s Store) error {
		return s.Upsert(1, models.MetaStatus, "b")
	})
	require.NoError(t, err)
	<-done

	v, ok, err := m.Get(1, models.MetaStatus)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Contains(t, []string{"a", "b"}, v)
}
