package transport

import (
	"testing"

	"github.com/stretchr/testify/require"

	"drone-dispatch/internal/domain"
	"drone-dispatch/internal/simulation"
)

func TestFromPlanSkipsIdleDrones(t *testing.T) {
	plan := &domain.Plan{
		Routes: []domain.Route{
			{DroneID: 1, OrderIDs: []string{"a", "b"}},
			{DroneID: 2},
			{DroneID: 3, OrderIDs: []string{"c"}},
		},
	}
	resp := FromPlan(plan)
	require.Equal(t, 3, resp.Assigned)
	require.Len(t, resp.Routes, 2)
	require.Equal(t, 3, resp.Routes[1].DroneID)
	require.NotNil(t, resp.Unserved)
}

func TestFromReportCopiesDroneStats(t *testing.T) {
	report := &simulation.Report{
		Deliveries:           2,
		TotalDistanceKm:      40,
		MeanDistanceKm:       20,
		MostEfficientDroneID: 1,
		Drones:               []simulation.DroneStats{{DroneID: 1, Orders: 2, BatteryConsumed: 33.5, Recharges: 1}},
	}
	resp := FromReport(report)
	require.Equal(t, 2, resp.Deliveries)
	require.Equal(t, DroneStatsResponse{DroneID: 1, Orders: 2, BatteryConsumed: 33.5, Recharges: 1}, resp.Drones[0])
}

func TestParseOrderStatus(t *testing.T) {
	require.Nil(t, ParseOrderStatus(""))
	require.Equal(t, domain.OrderStatusDelivered, *ParseOrderStatus("DELIVERED"))
}
