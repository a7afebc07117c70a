package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"drone-dispatch/internal/domain"
	"drone-dispatch/internal/events"
	"drone-dispatch/internal/service"
)

func TestTxRollbackDiscardsWrites(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	order, err := domain.NewOrder("o1", "u1", domain.Position{X: 1}, 1, domain.PriorityLow, 1, time.Now())
	require.NoError(t, err)

	tx, err := store.BeginTx(ctx)
	require.NoError(t, err)
	require.NoError(t, tx.CreateOrder(ctx, order))
	require.NoError(t, tx.EnqueueEvent(ctx, events.NewOrderEvent(events.EventOrderSubmitted, order, time.Now())))
	require.NoError(t, tx.Rollback(ctx))

	_, err = store.GetOrder(ctx, "o1")
	require.ErrorIs(t, err, domain.ErrNotFound)
	require.Empty(t, store.Events())
}

func TestTxCommitAndOutbox(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	order, err := domain.NewOrder("o1", "u1", domain.Position{X: 1}, 1, domain.PriorityLow, 1, time.Now())
	require.NoError(t, err)

	tx, err := store.BeginTx(ctx)
	require.NoError(t, err)
	require.NoError(t, tx.CreateOrder(ctx, order))
	require.ErrorIs(t, tx.CreateOrder(ctx, order), domain.ErrConflict)
	evt := events.NewOrderEvent(events.EventOrderSubmitted, order, time.Now())
	require.NoError(t, tx.EnqueueEvent(ctx, evt))
	require.NoError(t, tx.Commit(ctx))
	require.NoError(t, tx.Rollback(ctx))

	got, err := store.GetOrder(ctx, "o1")
	require.NoError(t, err)
	got.Status = domain.OrderStatusDelivered
	again, err := store.GetOrder(ctx, "o1")
	require.NoError(t, err)
	require.Equal(t, domain.OrderStatusPending, again.Status)

	pending, err := store.FetchPending(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	require.NoError(t, store.MarkPublished(ctx, []string{evt.ID}))
	pending, err = store.FetchPending(ctx, 10)
	require.NoError(t, err)
	require.Empty(t, pending)
}

func TestListOrdersFilters(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	tx, err := store.BeginTx(ctx)
	require.NoError(t, err)
	for i, user := range []string{"a", "b", "a"} {
		order, err := domain.NewOrder(string(rune('x'+i)), user, domain.Position{}, 1, domain.PriorityLow, int64(10-i), time.Now())
		require.NoError(t, err)
		require.NoError(t, tx.CreateOrder(ctx, order))
	}
	require.NoError(t, tx.Commit(ctx))

	orders, err := store.ListOrders(ctx, service.OrderFilter{UserID: "a"})
	require.NoError(t, err)
	require.Len(t, orders, 2)
	require.Equal(t, "z", orders[0].ID)

	pending := domain.OrderStatusPending
	orders, err = store.ListOrders(ctx, service.OrderFilter{Status: &pending, Offset: 1, Limit: 1})
	require.NoError(t, err)
	require.Len(t, orders, 1)
	require.Equal(t, "y", orders[0].ID)
}

func TestDronesSortedAndMaxID(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	tx, err := store.BeginTx(ctx)
	require.NoError(t, err)
	fleet, err := domain.NewFleet(domain.NewIDGenerator(0), domain.DefaultFleetSpecs, time.Now())
	require.NoError(t, err)
	for i := len(fleet) - 1; i >= 0; i-- {
		require.NoError(t, tx.CreateDrone(ctx, fleet[i]))
	}
	last, err := tx.MaxDroneID(ctx)
	require.NoError(t, err)
	require.Equal(t, 5, last)
	require.NoError(t, tx.Commit(ctx))

	drones, err := store.ListDrones(ctx)
	require.NoError(t, err)
	require.Len(t, drones, 5)
	for i, d := range drones {
		require.Equal(t, i+1, d.ID)
	}
}
