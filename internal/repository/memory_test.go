package repository

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imamnura/warung-enin-sub000/internal/database/models"
)

func TestCreateOrderAssignsDailySequence(t *testing.T) {
	store := NewMemory()
	ctx := context.Background()

	first := &models.Order{CustomerID: 1, DeliveryMethod: models.Pickup, Status: models.OrderPlaced}
	second := &models.Order{CustomerID: 1, DeliveryMethod: models.Pickup, Status: models.OrderPlaced}
	require.NoError(t, store.CreateOrder(ctx, first))
	require.NoError(t, store.CreateOrder(ctx, second))

	day := time.Now().UTC().Format("20060102")
	assert.Equal(t, fmt.Sprintf("ORD-%s-001", day), first.Number)
	assert.Equal(t, fmt.Sprintf("ORD-%s-002", day), second.Number)
}

func TestConcurrentCreateOrdersGetDistinctNumbers(t *testing.T) {
	store := NewMemory()
	ctx := context.Background()

	var wg sync.WaitGroup
	numbers := make(chan string, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			o := &models.Order{CustomerID: 1, DeliveryMethod: models.Pickup, Status: models.OrderPlaced}
			if err := store.CreateOrder(ctx, o); err == nil {
				numbers <- o.Number
			}
		}()
	}
	wg.Wait()
	close(numbers)

	seen := map[string]bool{}
	for n := range numbers {
		assert.False(t, seen[n], "duplicate order number %s", n)
		seen[n] = true
	}
	assert.Len(t, seen, 10)
}

func TestListOrdersClampsPageBounds(t *testing.T) {
	store := NewMemory()
	ctx := context.Background()

	o := &models.Order{CustomerID: 1, DeliveryMethod: models.Pickup, Status: models.OrderPlaced}
	require.NoError(t, store.CreateOrder(ctx, o))

	// A negative offset reads as the first page, not a panic.
	orders, total, err := store.ListOrders(ctx, OrderFilter{Limit: 20, Offset: -20})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, orders, 1)
	assert.Equal(t, o.Number, orders[0].Number)

	// Past the end is an empty page.
	orders, total, err = store.ListOrders(ctx, OrderFilter{Limit: 20, Offset: 20})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Empty(t, orders)
}

func TestAdvanceOrderIsCompareAndSwap(t *testing.T) {
	store := NewMemory()
	ctx := context.Background()

	o := &models.Order{CustomerID: 1, DeliveryMethod: models.Pickup, Status: models.OrderPlaced}
	require.NoError(t, store.CreateOrder(ctx, o))

	ok, err := store.AdvanceOrder(ctx, o.ID, []models.OrderStatus{models.OrderPlaced}, models.OrderProcessing)
	require.NoError(t, err)
	assert.True(t, ok)

	// The precondition no longer holds, so a replay loses.
	ok, err = store.AdvanceOrder(ctx, o.ID, []models.OrderStatus{models.OrderPlaced}, models.OrderProcessing)
	require.NoError(t, err)
	assert.False(t, ok)

	got, err := store.OrderByID(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderProcessing, got.Status)
}

func TestRedeemPromoNeverExceedsCap(t *testing.T) {
	store := NewMemory()
	ctx := context.Background()

	limit := 5
	p := &models.Promo{Code: "TERBATAS", Type: models.DiscountFixed, Value: 5000, IsActive: true, UsageLimit: &limit}
	require.NoError(t, store.CreatePromo(ctx, p))

	var wg sync.WaitGroup
	wins := make(chan bool, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := store.RedeemPromo(ctx, p.ID)
			if err == nil && ok {
				wins <- true
			}
		}()
	}
	wg.Wait()
	close(wins)

	won := 0
	for range wins {
		won++
	}
	assert.Equal(t, limit, won)

	got, err := store.PromoByCode(ctx, "TERBATAS")
	require.NoError(t, err)
	assert.Equal(t, limit, got.UsageCount)
}

func TestConcurrentCompleteWinsOnce(t *testing.T) {
	store := NewMemory()
	ctx := context.Background()

	o := &models.Order{CustomerID: 1, DeliveryMethod: models.Pickup, Status: models.OrderReadyForPickup}
	require.NoError(t, store.CreateOrder(ctx, o))

	var wg sync.WaitGroup
	wins := make(chan bool, 10)
	from := []models.OrderStatus{models.OrderOnDelivery, models.OrderReadyForPickup}
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := store.CompleteOrder(ctx, o.ID, from, time.Now())
			if err == nil && ok {
				wins <- true
			}
		}()
	}
	wg.Wait()
	close(wins)

	won := 0
	for range wins {
		won++
	}
	assert.Equal(t, 1, won)
}

func TestHandOverCashGuards(t *testing.T) {
	store := NewMemory()
	ctx := context.Background()

	o := &models.Order{
		CustomerID:     1,
		DeliveryMethod: models.HomeDelivery,
		Status:         models.OrderProcessing,
		Payment:        &models.Payment{Amount: 45000, Method: models.PayCash, Status: models.PaymentPending},
	}
	require.NoError(t, store.CreateOrder(ctx, o))

	// Not collected yet.
	ok, err := store.HandOverCash(ctx, o.Payment.ID, 3, time.Now())
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = store.MarkPaidCash(ctx, o.Payment.ID, 3, time.Now())
	require.NoError(t, err)
	require.True(t, ok)

	// A different courier cannot hand it over.
	ok, err = store.HandOverCash(ctx, o.Payment.ID, 4, time.Now())
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = store.HandOverCash(ctx, o.Payment.ID, 3, time.Now())
	require.NoError(t, err)
	assert.True(t, ok)

	// Once only.
	ok, err = store.HandOverCash(ctx, o.Payment.ID, 3, time.Now())
	require.NoError(t, err)
	assert.False(t, ok)

	p, err := store.PaymentByID(ctx, o.Payment.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentHandedOver, p.Status)
	assert.NotNil(t, p.CourierHandedAt)
}

func TestAtomicSeesOwnWrites(t *testing.T) {
	store := NewMemory()
	ctx := context.Background()

	err := store.Atomic(ctx, func(tx Store) error {
		o := &models.Order{CustomerID: 1, DeliveryMethod: models.Pickup, Status: models.OrderPlaced}
		if err := tx.CreateOrder(ctx, o); err != nil {
			return err
		}
		got, err := tx.OrderByID(ctx, o.ID)
		if err != nil {
			return err
		}
		assert.Equal(t, o.Number, got.Number)
		return nil
	})
	require.NoError(t, err)
}
