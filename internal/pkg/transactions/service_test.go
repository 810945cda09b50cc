package transactions

import (
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuelReschke/PixOffline/app/models"
	"github.com/ManuelReschke/PixOffline/internal/pkg/commerce"
	"github.com/ManuelReschke/PixOffline/internal/pkg/pixstore"
)

func newTestService(t *testing.T) (*Service, *pixstore.Memory, *commerce.Memory) {
	t.Helper()
	models.SetPixSettings(&models.PixSettings{})

	store := pixstore.NewMemory()
	orders := commerce.NewMemory()
	svc := NewService(store, orders).WithClock(func() time.Time {
		return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	})
	return svc, store, orders
}

func addOrder(orders *commerce.Memory, id uint, total string) {
	amount, _ := decimal.NewFromString(total)
	orders.AddOrder(commerce.Order{
		ID:            id,
		Status:        models.OrderStatusPending,
		PaymentMethod: models.PaymentMethodBankTransfer,
		CustomerID:    id + 100,
		Total:         amount,
	})
}

func TestCreateAssignsAttributes(t *testing.T) {
	svc, store, orders := newTestService(t)
	addOrder(orders, 10, "49.90")

	id, created, err := svc.Create(10, StatusCheckoutStarted)
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, uint64(1), id)

	tx, err := svc.Get(10)
	require.NoError(t, err)
	require.NotNil(t, tx)
	assert.Equal(t, StatusCheckoutStarted, tx.Status)
	assert.Equal(t, PixTypeStatic, tx.PixType)
	assert.True(t, decimal.RequireFromString("49.90").Equal(tx.TotalAmount))
	assert.Empty(t, tx.ChildOrders)

	events, ok, err := store.Get(10, models.MetaWebhookEvents)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "[]", events)
}

func TestCreateSkipsNonBankTransferOrders(t *testing.T) {
	svc, _, orders := newTestService(t)
	orders.AddOrder(commerce.Order{
		ID:            10,
		Status:        models.OrderStatusPending,
		PaymentMethod: "credit_card",
		CustomerID:    110,
		Total:         decimal.RequireFromString("49.90"),
	})

	id, created, err := svc.Create(10, StatusCheckoutStarted)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Zero(t, id)

	exists, err := svc.Exists(10)
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestCreateIsIdempotent(t *testing.T) {
	svc, _, orders := newTestService(t)
	addOrder(orders, 10, "10.00")

	_, created, err := svc.Create(10, StatusCheckoutStarted)
	require.NoError(t, err)
	assert.True(t, created)

	id, created, err := svc.Create(10, StatusCheckoutStarted)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Zero(t, id)

	ids, err := svc.Store().TransactionIDs(10)
	require.NoError(t, err)
	assert.Len(t, ids, 1)
}

func TestCreateConcurrentAssignsExactlyOnce(t *testing.T) {
	svc, _, orders := newTestService(t)
	addOrder(orders, 10, "10.00")

	var wg sync.WaitGroup
	createdCount := make(chan bool, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, created, err := svc.Create(10, StatusCheckoutStarted)
			assert.NoError(t, err)
			createdCount <- created
		}()
	}
	wg.Wait()
	close(createdCount)

	wins := 0
	for created := range createdCount {
		if created {
			wins++
		}
	}
	assert.Equal(t, 1, wins)

	ids, err := svc.Store().TransactionIDs(10)
	require.NoError(t, err)
	assert.Len(t, ids, 1)
}

func TestCreateAssignsMonotonicIDs(t *testing.T) {
	svc, _, orders := newTestService(t)

	var last uint64
	for i := uint(1); i <= 5; i++ {
		addOrder(orders, i, "1.00")
		id, created, err := svc.Create(i, StatusCheckoutStarted)
		require.NoError(t, err)
		require.True(t, created)
		assert.Greater(t, id, last)
		last = id
	}

	// Deleting a transaction never frees its id.
	require.NoError(t, svc.Delete(3))
	addOrder(orders, 9, "1.00")
	id, created, err := svc.Create(9, StatusCheckoutStarted)
	require.NoError(t, err)
	require.True(t, created)
	assert.Greater(t, id, last)
}

func TestCreateSumsChildOrders(t *testing.T) {
	svc, _, orders := newTestService(t)
	addOrder(orders, 10, "50.00")
	child, _ := decimal.NewFromString("19.90")
	orders.AddChild(10, commerce.Order{ID: 11, PaymentMethod: models.PaymentMethodBankTransfer, Total: child})

	_, _, err := svc.Create(10, StatusCheckoutStarted)
	require.NoError(t, err)

	tx, err := svc.Get(10)
	require.NoError(t, err)
	require.NotNil(t, tx)
	assert.Equal(t, []uint{11}, tx.ChildOrders)
	assert.True(t, decimal.RequireFromString("69.90").Equal(tx.TotalAmount))
}

func TestCreateUsesDynamicTypeWhenEnabled(t *testing.T) {
	svc, _, orders := newTestService(t)
	models.SetPixSettings(&models.PixSettings{DynamicEnabled: true})
	addOrder(orders, 10, "10.00")

	_, _, err := svc.Create(10, StatusCheckoutStarted)
	require.NoError(t, err)

	tx, err := svc.Get(10)
	require.NoError(t, err)
	assert.Equal(t, PixTypeDynamic, tx.PixType)
}

func TestUpdateStatusRejectsUnknownStatus(t *testing.T) {
	svc, _, orders := newTestService(t)
	addOrder(orders, 10, "10.00")

	err := svc.UpdateStatus(10, "nonsense", "")
	assert.ErrorIs(t, err, ErrInvalidStatus)
}

func TestUpdateStatusCreatesMissingTransaction(t *testing.T) {
	svc, _, orders := newTestService(t)
	addOrder(orders, 10, "10.00")

	require.NoError(t, svc.UpdateStatus(10, StatusFinalized, ""))

	tx, err := svc.Get(10)
	require.NoError(t, err)
	require.NotNil(t, tx)
	assert.Equal(t, StatusFinalized, tx.Status)
}

func TestUpdateStatusRecordsHistoryAndReason(t *testing.T) {
	svc, store, orders := newTestService(t)
	addOrder(orders, 10, "10.00")
	_, _, err := svc.Create(10, StatusCheckoutStarted)
	require.NoError(t, err)

	require.NoError(t, svc.UpdateStatus(10, StatusExpiredOpenPix, "Timeout"))

	reason, _, err := store.Get(10, models.MetaReason)
	require.NoError(t, err)
	assert.Equal(t, "Timeout", reason)

	marker, ok, err := store.Get(10, models.MetaStatusHistoryPrefix+StatusExpiredOpenPix)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.NotEmpty(t, marker)
}

func TestFinalizeCompletesOrderAndChildren(t *testing.T) {
	svc, _, orders := newTestService(t)
	addOrder(orders, 10, "10.00")
	orders.AddChild(10, commerce.Order{ID: 11, PaymentMethod: models.PaymentMethodBankTransfer, Total: decimal.Zero})
	_, _, err := svc.Create(10, StatusCheckoutStarted)
	require.NoError(t, err)

	require.NoError(t, svc.UpdateStatus(10, StatusFinalized, ""))

	o, err := orders.Get(10)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusCompleted, o.Status)
	child, err := orders.Get(11)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusCompleted, child.Status)
	assert.NotEmpty(t, orders.Notes(10))
}

func TestCopyCodeLeavesNoteWithoutStatusChange(t *testing.T) {
	svc, _, orders := newTestService(t)
	addOrder(orders, 10, "10.00")
	_, _, err := svc.Create(10, StatusCheckoutStarted)
	require.NoError(t, err)

	require.NoError(t, svc.UpdateStatus(10, StatusCopied, ""))

	o, err := orders.Get(10)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusPending, o.Status)
	assert.NotEmpty(t, orders.Notes(10))
}

func TestRefuseAdminDeletesNonAdminCustomer(t *testing.T) {
	svc, _, orders := newTestService(t)
	addOrder(orders, 10, "10.00")
	_, _, err := svc.Create(10, StatusCheckoutStarted)
	require.NoError(t, err)

	require.NoError(t, svc.UpdateStatus(10, StatusRefusedAdmin, "fraude"))

	o, err := orders.Get(10)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusCancelled, o.Status)
	assert.True(t, orders.CustomerDeleted(110))
}

func TestRefuseAdminSparesAdminCustomer(t *testing.T) {
	svc, _, orders := newTestService(t)
	addOrder(orders, 10, "10.00")
	orders.MarkAdmin(110)
	_, _, err := svc.Create(10, StatusCheckoutStarted)
	require.NoError(t, err)

	require.NoError(t, svc.UpdateStatus(10, StatusRefusedAdmin, ""))
	assert.False(t, orders.CustomerDeleted(110))
}

func TestReactivateRoundTrip(t *testing.T) {
	svc, _, orders := newTestService(t)
	addOrder(orders, 10, "10.00")
	_, _, err := svc.Create(10, StatusCheckoutStarted)
	require.NoError(t, err)
	require.NoError(t, svc.UpdateStatus(10, StatusFinalized, ""))

	require.NoError(t, svc.Reactivate(10))

	tx, err := svc.Get(10)
	require.NoError(t, err)
	assert.Equal(t, StatusPending, tx.Status)
	o, err := orders.Get(10)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusOnHold, o.Status)

	// The settled payment can be finalized again.
	require.NoError(t, svc.UpdateStatus(10, StatusFinalized, ""))
	o, err = orders.Get(10)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusCompleted, o.Status)
}

func TestBulkSkipsUnknownOrders(t *testing.T) {
	svc, _, orders := newTestService(t)
	addOrder(orders, 1, "1.00")
	addOrder(orders, 2, "2.00")
	for _, id := range []uint{1, 2} {
		_, _, err := svc.Create(id, StatusCheckoutStarted)
		require.NoError(t, err)
	}

	processed, err := svc.Bulk(BulkFinalize, []uint{1, 999, 2}, "")
	require.NoError(t, err)
	assert.Equal(t, 2, processed)

	for _, id := range []uint{1, 2} {
		tx, err := svc.Get(id)
		require.NoError(t, err)
		assert.Equal(t, StatusFinalized, tx.Status)
	}
}

func TestBulkRejectsUnknownAction(t *testing.T) {
	svc, _, _ := newTestService(t)
	_, err := svc.Bulk("explodir", []uint{1}, "")
	assert.ErrorIs(t, err, ErrInvalidAction)
}

func TestBulkDeleteRemovesTransactions(t *testing.T) {
	svc, _, orders := newTestService(t)
	addOrder(orders, 1, "1.00")
	_, _, err := svc.Create(1, StatusCheckoutStarted)
	require.NoError(t, err)

	processed, err := svc.Bulk(BulkDelete, []uint{1}, "")
	require.NoError(t, err)
	assert.Equal(t, 1, processed)

	exists, err := svc.Exists(1)
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestRecalculateRefreshesTotals(t *testing.T) {
	svc, _, orders := newTestService(t)
	addOrder(orders, 10, "10.00")
	_, _, err := svc.Create(10, StatusCheckoutStarted)
	require.NoError(t, err)

	child, _ := decimal.NewFromString("5.50")
	orders.AddChild(10, commerce.Order{ID: 11, PaymentMethod: models.PaymentMethodBankTransfer, Total: child})

	total, children, err := svc.Recalculate(10)
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("15.50").Equal(total))
	assert.Equal(t, []uint{11}, children)

	tx, err := svc.Get(10)
	require.NoError(t, err)
	assert.Equal(t, StatusGenerated, tx.Status)
	assert.True(t, decimal.RequireFromString("15.50").Equal(tx.TotalAmount))
}

func TestStatsGroupsByStatusAndType(t *testing.T) {
	svc, _, orders := newTestService(t)
	for i := uint(1); i <= 3; i++ {
		addOrder(orders, i, strconv.Itoa(int(i*10))+".00")
		_, _, err := svc.Create(i, StatusCheckoutStarted)
		require.NoError(t, err)
	}
	require.NoError(t, svc.UpdateStatus(3, StatusFinalized, ""))

	stats, err := svc.Stats()
	require.NoError(t, err)
	require.Len(t, stats, 2)

	byStatus := make(map[string]StatsRow)
	for _, row := range stats {
		byStatus[row.Status] = row
	}
	assert.Equal(t, 2, byStatus[StatusCheckoutStarted].Count)
	assert.True(t, decimal.RequireFromString("30.00").Equal(byStatus[StatusCheckoutStarted].TotalValue))
	assert.Equal(t, 1, byStatus[StatusFinalized].Count)
	assert.True(t, decimal.RequireFromString("30.00").Equal(byStatus[StatusFinalized].TotalValue))
}
