package simulation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"drone-dispatch/internal/domain"
	"drone-dispatch/internal/geo"
)

func fleetOf(t *testing.T, specs ...domain.DroneSpec) []*domain.Drone {
	t.Helper()
	fleet, err := domain.NewFleet(domain.NewIDGenerator(0), specs, time.Now())
	require.NoError(t, err)
	return fleet
}

func assignedOrder(id string, x, y, weight float64) *domain.Order {
	return &domain.Order{
		ID:       id,
		Position: geo.Point{X: x, Y: y},
		WeightKg: weight,
		Priority: domain.PriorityMedium,
		Status:   domain.OrderStatusAssigned,
	}
}

func TestRunBatchForcedReturn(t *testing.T) {
	fleet := fleetOf(t, domain.DroneSpec{CapacityKg: 15, RangeKm: 150})
	book := domain.NewOrderBook([]*domain.Order{assignedOrder("heavy", 0, 60, 10)})
	plan := domain.Plan{Routes: []domain.Route{{DroneID: 1, OrderIDs: []string{"heavy"}}}}

	report, err := RunBatch(fleet, book, plan, time.Now())
	require.NoError(t, err)

	require.Equal(t, 1, report.Deliveries)
	require.Len(t, report.Drones, 1)
	require.Equal(t, 1, report.Drones[0].Recharges)
	require.InDelta(t, 180.0, report.Drones[0].BatteryConsumed, 1e-9)
	require.InDelta(t, 60.0, report.MeanDistanceKm, 1e-9)
	require.Equal(t, domain.OrderStatusDelivered, book["heavy"].Status)
	require.NotNil(t, book["heavy"].DeliveredAt)

	d := fleet[0]
	require.Equal(t, domain.DroneStatusIdle, d.Status)
	require.Equal(t, geo.Base, d.Position)
	require.Equal(t, domain.FullBatteryPct, d.Battery)

	var forced, recharged int
	for _, n := range report.Notices {
		switch n.Kind {
		case NoticeForcedReturn:
			forced++
		case NoticeRecharged:
			recharged++
		}
	}
	require.Equal(t, 1, forced)
	require.Equal(t, 1, recharged)
}

func TestRunBatchFinalLegIgnoresWeight(t *testing.T) {
	fleet := fleetOf(t, domain.DroneSpec{CapacityKg: 15, RangeKm: 150})
	book := domain.NewOrderBook([]*domain.Order{assignedOrder("o1", 0, 10, 10)})
	plan := domain.Plan{Routes: []domain.Route{{DroneID: 1, OrderIDs: []string{"o1"}}}}

	report, err := RunBatch(fleet, book, plan, time.Now())
	require.NoError(t, err)

	// 10km out at 1.5%/km, 10km back at 0.5%/km
	require.InDelta(t, 20.0, report.Drones[0].BatteryConsumed, 1e-9)
	require.InDelta(t, 80.0, fleet[0].Battery, 1e-9)
	require.Zero(t, report.Drones[0].Recharges)
	require.InDelta(t, 20.0, report.TotalDistanceKm, 1e-9)
	require.InDelta(t, 20.0, report.MeanDistanceKm, 1e-9)
}

func TestRunBatchCarriedWeightDrops(t *testing.T) {
	fleet := fleetOf(t, domain.DroneSpec{CapacityKg: 15, RangeKm: 150})
	book := domain.NewOrderBook([]*domain.Order{
		assignedOrder("a", 10, 0, 4),
		assignedOrder("b", 20, 0, 2),
	})
	plan := domain.Plan{Routes: []domain.Route{{DroneID: 1, OrderIDs: []string{"a", "b"}}}}

	report, err := RunBatch(fleet, book, plan, time.Now())
	require.NoError(t, err)

	// 10*(0.5+0.6) + 10*(0.5+0.2) + 20*0.5
	require.InDelta(t, 11+7+10, report.Drones[0].BatteryConsumed, 1e-9)
	require.Equal(t, 2, report.Deliveries)
	require.InDelta(t, 20.0, report.MeanDistanceKm, 1e-9)
}

func TestRunBatchMostEfficientDrone(t *testing.T) {
	spec := domain.DroneSpec{CapacityKg: 15, RangeKm: 150}
	fleet := fleetOf(t, spec, spec, spec)
	book := domain.NewOrderBook([]*domain.Order{
		assignedOrder("a", 1, 0, 1),
		assignedOrder("b", 2, 0, 1),
		assignedOrder("c", 3, 0, 1),
		assignedOrder("d", 0, 1, 1),
		assignedOrder("e", 0, 2, 1),
	})
	plan := domain.Plan{Routes: []domain.Route{
		{DroneID: 1, OrderIDs: []string{"a"}},
		{DroneID: 2, OrderIDs: []string{"b", "c"}},
		{DroneID: 3, OrderIDs: []string{"d", "e"}},
	}}

	report, err := RunBatch(fleet, book, plan, time.Now())
	require.NoError(t, err)
	require.Equal(t, 2, report.MostEfficientDroneID)
	require.Equal(t, 5, report.Deliveries)
}

func TestRunBatchEmptyPlan(t *testing.T) {
	fleet := fleetOf(t, domain.DefaultFleetSpecs...)
	plan := domain.PlanFromFleet(fleet)

	report, err := RunBatch(fleet, domain.OrderBook{}, plan, time.Now())
	require.NoError(t, err)
	require.True(t, report.EmptyPlan)
	require.Zero(t, report.Deliveries)
	require.Zero(t, report.MeanDistanceKm)
	require.Zero(t, report.MostEfficientDroneID)
	require.Len(t, report.Drones, len(fleet))
}

func TestRunBatchUnknownDrone(t *testing.T) {
	fleet := fleetOf(t, domain.DroneSpec{CapacityKg: 15, RangeKm: 150})
	book := domain.NewOrderBook([]*domain.Order{assignedOrder("o1", 1, 1, 1)})
	plan := domain.Plan{Routes: []domain.Route{{DroneID: 7, OrderIDs: []string{"o1"}}}}

	_, err := RunBatch(fleet, book, plan, time.Now())
	require.ErrorIs(t, err, domain.ErrUnknownDrone)
	require.Equal(t, domain.OrderStatusAssigned, book["o1"].Status)

	plan = domain.Plan{Routes: []domain.Route{{DroneID: 1, OrderIDs: []string{"ghost"}}}}
	_, err = RunBatch(fleet, book, plan, time.Now())
	require.ErrorIs(t, err, domain.ErrUnknownOrder)
}
