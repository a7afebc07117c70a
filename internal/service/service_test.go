package service_test

import (
	"context"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"drone-dispatch/internal/domain"
	"drone-dispatch/internal/events"
	"drone-dispatch/internal/repo/memory"
	"drone-dispatch/internal/service"
	"drone-dispatch/internal/simulation"
)

func newService(t *testing.T) (*service.Service, *memory.Store) {
	t.Helper()
	store := memory.NewStore()
	svc := service.New(store, zerolog.Nop(), service.Options{})
	_, err := svc.EnsureFleet(context.Background(), domain.DefaultFleetSpecs)
	require.NoError(t, err)
	return svc, store
}

func submit(t *testing.T, svc *service.Service, user string, x, y, weight float64, p domain.Priority) *domain.Order {
	t.Helper()
	order, err := svc.SubmitOrder(context.Background(), user, domain.Position{X: x, Y: y}, weight, p)
	require.NoError(t, err)
	return order
}

func eventTypes(store *memory.Store) map[string]int {
	counts := map[string]int{}
	for _, evt := range store.Events() {
		counts[evt.Type]++
	}
	return counts
}

func TestSubmitOrderRejectsOverweight(t *testing.T) {
	svc, store := newService(t)
	ctx := context.Background()

	_, err := svc.SubmitOrder(ctx, "u1", domain.Position{X: 1, Y: 1}, 15.1, domain.PriorityHigh)
	require.ErrorIs(t, err, domain.ErrWeightExceeded)

	order := submit(t, svc, "u1", 1, 1, 15.0, domain.PriorityHigh)
	require.Equal(t, domain.OrderStatusPending, order.Status)

	orders, err := svc.ListOrders(ctx, service.OrderFilter{})
	require.NoError(t, err)
	require.Len(t, orders, 1)
	require.Equal(t, 1, eventTypes(store)[events.EventOrderSubmitted])
}

func TestArrivalIsStrictlyIncreasing(t *testing.T) {
	svc, _ := newService(t)
	var last int64
	for i := 0; i < 20; i++ {
		order := submit(t, svc, "u1", 1, 1, 1, domain.PriorityLow)
		require.Greater(t, order.Arrival, last)
		last = order.Arrival
	}
}

func TestGetOrderOwnership(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	order := submit(t, svc, "alice", 3, 4, 2, domain.PriorityMedium)

	_, err := svc.GetOrder(ctx, "bob", domain.RoleEndUser, order.ID)
	require.ErrorIs(t, err, domain.ErrForbidden)

	view, err := svc.GetOrder(ctx, "bob", domain.RoleAdmin, order.ID)
	require.NoError(t, err)
	require.InDelta(t, 10.0, view.RoundTripKm, 1e-9)
	require.Equal(t, domain.Position{}, *view.CurrentLocation)
	require.Nil(t, view.ETASteps)

	_, err = svc.GetOrder(ctx, "alice", domain.RoleEndUser, "missing")
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestPlanCycleAssignsAndMarksUnserved(t *testing.T) {
	svc, store := newService(t)
	ctx := context.Background()
	a := submit(t, svc, "u1", 10, 10, 5, domain.PriorityHigh)
	b := submit(t, svc, "u1", 1, 1, 11, domain.PriorityLow)
	c := submit(t, svc, "u1", 200, 0, 1, domain.PriorityMedium)

	plan, err := svc.PlanCycle(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, plan.Assigned())
	require.Equal(t, []string{c.ID}, plan.Unserved)

	got, err := store.GetOrder(ctx, a.ID)
	require.NoError(t, err)
	require.Equal(t, domain.OrderStatusAssigned, got.Status)
	got, err = store.GetOrder(ctx, b.ID)
	require.NoError(t, err)
	require.Equal(t, domain.OrderStatusAssigned, got.Status)
	got, err = store.GetOrder(ctx, c.ID)
	require.NoError(t, err)
	require.Equal(t, domain.OrderStatusUnserved, got.Status)

	drone, err := store.GetDrone(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, []string{a.ID}, drone.Route)
	require.Equal(t, domain.DroneStatusLoading, drone.Status)

	view, err := svc.GetOrder(ctx, "u1", domain.RoleEndUser, a.ID)
	require.NoError(t, err)
	require.NotNil(t, view.ETASteps)
	require.EqualValues(t, 10, *view.ETASteps)

	counts := eventTypes(store)
	require.Equal(t, 2, counts[events.EventOrderAssigned])
	require.Equal(t, 1, counts[events.EventOrderUnserved])
}

func TestRunBatchDeliversPlan(t *testing.T) {
	svc, store := newService(t)
	ctx := context.Background()
	a := submit(t, svc, "u1", 10, 10, 5, domain.PriorityHigh)
	submit(t, svc, "u1", 1, 1, 11, domain.PriorityLow)

	_, err := svc.PlanCycle(ctx)
	require.NoError(t, err)
	report, err := svc.RunBatch(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, report.Deliveries)
	require.False(t, report.EmptyPlan)

	got, err := store.GetOrder(ctx, a.ID)
	require.NoError(t, err)
	require.Equal(t, domain.OrderStatusDelivered, got.Status)
	require.NotNil(t, got.DeliveredAt)

	counts := eventTypes(store)
	require.Equal(t, 2, counts[events.EventOrderDelivered])
	require.Equal(t, 1, counts[events.EventSimulationCompleted])

	// a replay after delivery has nothing left to fly
	report, err = svc.RunBatch(ctx)
	require.NoError(t, err)
	require.True(t, report.EmptyPlan)
	require.Zero(t, report.Deliveries)
}

func TestReplanKeepsEarlierAssignments(t *testing.T) {
	svc, store := newService(t)
	ctx := context.Background()
	first := submit(t, svc, "u1", 5, 5, 4, domain.PriorityHigh)

	_, err := svc.PlanCycle(ctx)
	require.NoError(t, err)
	second := submit(t, svc, "u1", 2, 3, 2, domain.PriorityLow)

	plan, err := svc.PlanCycle(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, plan.Assigned())
	require.Empty(t, plan.Unserved)

	report, err := svc.RunBatch(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, report.Deliveries)

	for _, id := range []string{first.ID, second.ID} {
		got, err := store.GetOrder(ctx, id)
		require.NoError(t, err)
		require.Equal(t, domain.OrderStatusDelivered, got.Status)
	}
}

func TestRunBatchWithoutPlanIsEmpty(t *testing.T) {
	svc, _ := newService(t)
	report, err := svc.RunBatch(context.Background())
	require.NoError(t, err)
	require.True(t, report.EmptyPlan)
	require.Zero(t, report.Deliveries)
}

func TestResetCycleReplansSameAssignments(t *testing.T) {
	svc, store := newService(t)
	ctx := context.Background()
	submit(t, svc, "u1", 3, 4, 3, domain.PriorityMedium)
	submit(t, svc, "u1", -6, 2, 7, domain.PriorityHigh)
	submit(t, svc, "u1", 20, 20, 1, domain.PriorityLow)
	submit(t, svc, "u1", 1, -9, 9, domain.PriorityHigh)

	first, _, err := svc.Dispatch(ctx)
	require.NoError(t, err)

	require.NoError(t, svc.ResetCycle(ctx))
	orders, err := store.ListOrders(ctx, service.OrderFilter{})
	require.NoError(t, err)
	for _, o := range orders {
		require.Equal(t, domain.OrderStatusPending, o.Status)
		require.Nil(t, o.AssignedDroneID)
	}

	second, err := svc.PlanCycle(ctx)
	require.NoError(t, err)
	require.Equal(t, first.Routes, second.Routes)
}

func TestRunSteppedPersistsState(t *testing.T) {
	svc, store := newService(t)
	ctx := context.Background()
	a := submit(t, svc, "u1", 3, 0, 2, domain.PriorityHigh)

	_, err := svc.PlanCycle(ctx)
	require.NoError(t, err)

	var snaps []simulation.Snapshot
	summary, err := svc.RunStepped(ctx, simulation.RendererFunc(func(s simulation.Snapshot) {
		snaps = append(snaps, s)
	}), 0)
	require.NoError(t, err)
	require.Equal(t, 1, summary.Deliveries)
	require.Len(t, snaps, summary.Steps)

	got, err := store.GetOrder(ctx, a.ID)
	require.NoError(t, err)
	require.Equal(t, domain.OrderStatusDelivered, got.Status)

	drone, err := store.GetDrone(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, domain.DroneStatusIdle, drone.Status)
	require.Equal(t, domain.Position{}, drone.Position)

	counts := eventTypes(store)
	require.Equal(t, 1, counts[events.EventOrderInTransit])
	require.Equal(t, 1, counts[events.EventOrderDelivered])
	require.Equal(t, 1, counts[events.EventSimulationCompleted])
}

func TestRunSteppedCancelledStillPersists(t *testing.T) {
	svc, store := newService(t)
	a := submit(t, svc, "u1", 30, 30, 2, domain.PriorityHigh)
	_, err := svc.PlanCycle(context.Background())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	_, err = svc.RunStepped(ctx, simulation.RendererFunc(func(s simulation.Snapshot) {
		if s.Step == 3 {
			cancel()
		}
	}), 0)
	require.ErrorIs(t, err, context.Canceled)

	got, err := store.GetOrder(context.Background(), a.ID)
	require.NoError(t, err)
	require.Equal(t, domain.OrderStatusInTransit, got.Status)
	require.Equal(t, 1, eventTypes(store)[events.EventSimulationInterrupted])
}

func TestSimulationsDoNotOverlap(t *testing.T) {
	svc, _ := newService(t)
	submit(t, svc, "u1", 40, 0, 1, domain.PriorityHigh)
	_, err := svc.PlanCycle(context.Background())
	require.NoError(t, err)

	started := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, _ = svc.RunStepped(context.Background(), simulation.RendererFunc(func(simulation.Snapshot) {
			once.Do(func() {
				close(started)
				<-release
			})
		}), 0)
	}()

	<-started
	_, err = svc.RunBatch(context.Background())
	require.ErrorIs(t, err, domain.ErrSimulationRunning)
	_, err = svc.PlanCycle(context.Background())
	require.ErrorIs(t, err, domain.ErrConflict)
	close(release)
	wg.Wait()
}

func TestRegisterDroneContinuesSequence(t *testing.T) {
	svc, _ := newService(t)
	drone, err := svc.RegisterDrone(context.Background(), domain.DroneSpec{CapacityKg: 20, RangeKm: 200})
	require.NoError(t, err)
	require.Equal(t, 6, drone.ID)

	_, err = svc.RegisterDrone(context.Background(), domain.DroneSpec{CapacityKg: -1, RangeKm: 10})
	require.ErrorIs(t, err, domain.ErrInvalid)

	fleet, err := svc.EnsureFleet(context.Background(), domain.DefaultFleetSpecs)
	require.NoError(t, err)
	require.Len(t, fleet, 6)
}

func TestListOrdersRejectsUnknownStatus(t *testing.T) {
	svc, _ := newService(t)
	status := domain.OrderStatus("LOST")
	_, err := svc.ListOrders(context.Background(), service.OrderFilter{Status: &status})
	require.ErrorIs(t, err, domain.ErrInvalid)
}

func TestEnsureFleetSeedsOnce(t *testing.T) {
	store := memory.NewStore()
	svc := service.New(store, zerolog.Nop(), service.Options{MaxSteps: 500})
	ctx := context.Background()

	fleet, err := svc.EnsureFleet(ctx, domain.DefaultFleetSpecs)
	require.NoError(t, err)
	require.Len(t, fleet, 5)
	fleet, err = svc.EnsureFleet(ctx, domain.DefaultFleetSpecs[:1])
	require.NoError(t, err)
	require.Len(t, fleet, 5)

	drones, err := svc.ListDrones(ctx)
	require.NoError(t, err)
	require.Len(t, drones, 5)
}
