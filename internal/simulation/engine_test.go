package simulation

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"drone-dispatch/internal/domain"
	"drone-dispatch/internal/geo"
	"drone-dispatch/internal/planner"
)

func singleRoute(t *testing.T, orders ...*domain.Order) ([]*domain.Drone, domain.OrderBook, domain.Plan) {
	t.Helper()
	fleet := fleetOf(t, domain.DroneSpec{CapacityKg: 15, RangeKm: 500})
	ids := make([]string, 0, len(orders))
	for _, o := range orders {
		ids = append(ids, o.ID)
	}
	plan := domain.Plan{Routes: []domain.Route{{DroneID: 1, OrderIDs: ids}}}
	return fleet, domain.NewOrderBook(orders), plan
}

func TestEngineStepByStep(t *testing.T) {
	fleet, book, plan := singleRoute(t, assignedOrder("o1", 3, 0, 1))
	engine, err := NewEngine(fleet, book, plan)
	require.NoError(t, err)
	d := fleet[0]
	require.Equal(t, domain.DroneStatusLoading, d.Status)

	snap, active := engine.Step()
	require.True(t, active)
	require.Equal(t, domain.DroneStatusFlying, d.Status)
	require.Equal(t, domain.OrderStatusInTransit, book["o1"].Status)
	require.Equal(t, geo.Base, d.Position)
	require.Equal(t, 1, snap.Step)

	snap, _ = engine.Step()
	require.Equal(t, geo.Point{X: 1, Y: 0}, d.Position)
	require.InDelta(t, 99.5, d.Battery, 1e-9)
	require.Len(t, snap.Notices, 1)
	require.Equal(t, NoticeProximity, snap.Notices[0].Kind)
	require.InDelta(t, 2.0, snap.Notices[0].DistanceKm, 1e-9)

	engine.Step()
	require.Equal(t, geo.Point{X: 3, Y: 0}, d.Position)
	require.Equal(t, domain.OrderStatusDelivered, book["o1"].Status)
	require.Equal(t, domain.DroneStatusReturning, d.Status)

	engine.Step()
	require.Equal(t, geo.Point{X: 2, Y: 0}, d.Position)

	snap, active = engine.Step()
	require.True(t, active)
	require.Equal(t, geo.Base, d.Position)
	require.Equal(t, domain.DroneStatusIdle, d.Status)
	require.False(t, d.HasNextStop())
	require.InDelta(t, 98.0, d.Battery, 1e-9)
	require.Equal(t, []OrderState{{ID: "o1", X: 3, Y: 0, Status: domain.OrderStatusDelivered}}, snap.Orders)

	_, active = engine.Step()
	require.False(t, active)
}

func TestEngineMultiStopGoesIdleBetweenStops(t *testing.T) {
	fleet, book, plan := singleRoute(t, assignedOrder("a", 2, 0, 1), assignedOrder("b", 2, 2, 1))
	engine, err := NewEngine(fleet, book, plan)
	require.NoError(t, err)

	var statuses []domain.DroneStatus
	summary, err := engine.Run(context.Background(), RendererFunc(func(s Snapshot) {
		statuses = append(statuses, s.Drones[0].Status)
	}), 0)
	require.NoError(t, err)
	require.Equal(t, 2, summary.Deliveries)
	require.Contains(t, statuses, domain.DroneStatusIdle)
	require.Equal(t, domain.DroneStatusIdle, statuses[len(statuses)-1])
	require.Equal(t, domain.OrderStatusDelivered, book["a"].Status)
	require.Equal(t, domain.OrderStatusDelivered, book["b"].Status)
}

func TestEngineTerminatesWithinBound(t *testing.T) {
	fleet, err := domain.NewFleet(domain.NewIDGenerator(0), domain.DefaultFleetSpecs, time.Now())
	require.NoError(t, err)
	var orders []*domain.Order
	for i := 0; i < 12; i++ {
		o, err := domain.NewOrder(fmt.Sprintf("o%d", i), "u1",
			geo.Point{X: float64(i*3 - 15), Y: float64(10 - i*2)}, float64(1+i%4),
			domain.PriorityMedium, int64(i), time.Now())
		require.NoError(t, err)
		orders = append(orders, o)
	}
	book := domain.NewOrderBook(orders)
	plan := planner.Plan(fleet, book)
	require.False(t, plan.Empty())

	engine, err := NewEngine(fleet, book, plan)
	require.NoError(t, err)
	summary, err := engine.Run(context.Background(), nil, 0)
	require.NoError(t, err)

	require.LessOrEqual(t, summary.Steps, engine.MaxSteps())
	require.Equal(t, plan.Assigned(), summary.Deliveries)
	for _, d := range fleet {
		require.Equal(t, domain.DroneStatusIdle, d.Status)
		require.False(t, d.HasNextStop())
		require.Equal(t, geo.Base, d.Position)
	}
}

func TestEngineForcedReturnKeepsOrderAssigned(t *testing.T) {
	fleet, book, plan := singleRoute(t, assignedOrder("far", 0, 200, 1))
	engine, err := NewEngine(fleet, book, plan)
	require.NoError(t, err)

	summary, err := engine.Run(context.Background(), nil, 0)
	require.NoError(t, err)

	require.Zero(t, summary.Deliveries)
	require.Equal(t, 1, summary.ForcedReturns)
	require.Equal(t, 1, summary.Recharges)
	require.Equal(t, []string{"far"}, summary.Dropped)
	require.Equal(t, domain.OrderStatusAssigned, book["far"].Status)

	d := fleet[0]
	require.Equal(t, domain.DroneStatusIdle, d.Status)
	require.Equal(t, geo.Base, d.Position)
	require.Equal(t, domain.FullBatteryPct, d.Battery)
	require.False(t, d.HasNextStop())
}

func TestSafetyOverride(t *testing.T) {
	d := domain.Drone{
		ID:       1,
		Status:   domain.DroneStatusFlying,
		Battery:  20.4,
		Route:    []string{"o1"},
		TargetID: "o1",
	}
	out := advance(d, stepInput{target: geo.Point{X: 10}, hasTarget: true})

	require.Equal(t, domain.DroneStatusReturning, out.drone.Status)
	require.Empty(t, out.drone.TargetID)
	require.Equal(t, "o1", out.dropped)
	require.Empty(t, out.delivered)
	require.InDelta(t, 19.9, out.drone.Battery, 1e-9)
	require.Equal(t, NoticeForcedReturn, out.notices[len(out.notices)-1].Kind)

	for _, status := range []domain.DroneStatus{domain.DroneStatusIdle, domain.DroneStatusReturning} {
		in := outcome{drone: domain.Drone{Status: status, Battery: 5, TargetID: "x"}}
		require.Equal(t, in, applySafetyOverride(in))
	}

	loading := applySafetyOverride(outcome{drone: domain.Drone{Status: domain.DroneStatusLoading, Battery: 20, TargetID: "x"}})
	require.Equal(t, domain.DroneStatusReturning, loading.drone.Status)
	require.Equal(t, "x", loading.dropped)
}

func TestRechargingGoesIdle(t *testing.T) {
	out := advance(domain.Drone{ID: 3, Status: domain.DroneStatusRecharging, Battery: 4}, stepInput{})
	require.Equal(t, domain.DroneStatusIdle, out.drone.Status)
	require.Equal(t, domain.FullBatteryPct, out.drone.Battery)
	require.True(t, out.active)
}

func TestEngineCancellation(t *testing.T) {
	fleet, book, plan := singleRoute(t, assignedOrder("o1", 40, 40, 1))
	engine, err := NewEngine(fleet, book, plan)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	renders := 0
	summary, err := engine.Run(ctx, RendererFunc(func(Snapshot) {
		renders++
		cancel()
	}), 0)
	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, 1, renders)
	require.Equal(t, 1, summary.Steps)
}

func TestEnginePacingHonoursCancel(t *testing.T) {
	fleet, book, plan := singleRoute(t, assignedOrder("o1", 40, 40, 1))
	engine, err := NewEngine(fleet, book, plan)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	start := time.Now()
	_, err = engine.Run(ctx, nil, time.Hour)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.Less(t, time.Since(start), 10*time.Second)
}

func TestEngineStepLimit(t *testing.T) {
	fleet, book, plan := singleRoute(t, assignedOrder("o1", 3, 0, 1))
	engine, err := NewEngine(fleet, book, plan, WithMaxSteps(3))
	require.NoError(t, err)

	summary, err := engine.Run(context.Background(), nil, 0)
	require.ErrorIs(t, err, domain.ErrStepLimit)
	require.Equal(t, 3, summary.Steps)
}

func TestEngineRejectsUnknownDrone(t *testing.T) {
	fleet, book, _ := singleRoute(t, assignedOrder("o1", 3, 0, 1))
	_, err := NewEngine(fleet, book, domain.Plan{Routes: []domain.Route{{DroneID: 42}}})
	require.ErrorIs(t, err, domain.ErrUnknownDrone)
}
