package simulation

import (
	"time"

	"drone-dispatch/internal/domain"
	"drone-dispatch/internal/geo"
)

const (
	legBaseFactor   = 0.5
	legWeightFactor = 0.1
)

type DroneStats struct {
	DroneID         int     `json:"drone_id"`
	Orders          int     `json:"orders"`
	// BatteryConsumed includes the flight home on a forced return, not only
	// the planned legs.
	BatteryConsumed float64 `json:"battery_consumed"`
	Recharges       int     `json:"recharges"`
}

type Report struct {
	Deliveries           int          `json:"deliveries"`
	TotalDistanceKm      float64      `json:"total_distance_km"`
	MeanDistanceKm       float64      `json:"mean_distance_km"`
	MostEfficientDroneID int          `json:"most_efficient_drone_id,omitempty"`
	Drones               []DroneStats `json:"drones"`
	EmptyPlan            bool         `json:"empty_plan"`
	Notices              []Notice     `json:"-"`
}

// legCost is the battery percentage spent flying distance km with carried kg aboard.
func legCost(distance, carried float64) float64 {
	return distance * (legBaseFactor + carried*legWeightFactor)
}

// RunBatch replays every route in one pass and returns the aggregate report.
// Drones and orders in the plan are mutated in place. The final leg home is
// charged without the weight term.
func RunBatch(fleet []*domain.Drone, book domain.OrderBook, plan domain.Plan, now time.Time) (*Report, error) {
	byID, err := resolve(fleet, book, plan)
	if err != nil {
		return nil, err
	}
	report := &Report{Drones: make([]DroneStats, 0, len(plan.Routes))}
	if plan.Empty() {
		report.EmptyPlan = true
		for _, r := range plan.Routes {
			report.Drones = append(report.Drones, DroneStats{DroneID: r.DroneID})
		}
		return report, nil
	}

	best := 0
	for _, r := range plan.Routes {
		d := byID[r.DroneID]
		stats := DroneStats{DroneID: d.ID, Orders: len(r.OrderIDs)}
		if len(r.OrderIDs) > 0 {
			replayRoute(d, book, r.OrderIDs, report, &stats, now)
			if stats.Orders > best {
				best = stats.Orders
				report.MostEfficientDroneID = d.ID
			}
		}
		report.Drones = append(report.Drones, stats)
	}
	if report.Deliveries > 0 {
		report.MeanDistanceKm = report.TotalDistanceKm / float64(report.Deliveries)
	}
	return report, nil
}

func replayRoute(d *domain.Drone, book domain.OrderBook, route []string, report *Report, stats *DroneStats, now time.Time) {
	d.ResetToBase()
	d.Status = domain.DroneStatusLoading
	d.Route = append([]string(nil), route...)
	d.Cursor = 0

	carried := 0.0
	for _, id := range route {
		carried += book[id].WeightKg
	}

	for _, id := range route {
		order := book[id]
		d.TargetID = id
		d.Status = domain.DroneStatusFlying
		order.Status = domain.OrderStatusInTransit
		report.Notices = append(report.Notices, Notice{Kind: NoticeDeparted, DroneID: d.ID, OrderID: id, Battery: d.Battery})

		leg := d.Position.DistanceTo(order.Position)
		cost := legCost(leg, carried)
		d.Consume(cost)
		stats.BatteryConsumed += cost
		report.TotalDistanceKm += leg
		d.Position = order.Position

		if d.LowBattery() {
			report.Notices = append(report.Notices, Notice{Kind: NoticeForcedReturn, DroneID: d.ID, OrderID: id, Battery: d.Battery})
			back := legCost(d.Position.DistanceTo(geo.Base), carried)
			d.Consume(back)
			stats.BatteryConsumed += back
			d.Position = geo.Base
			d.Recharge()
			stats.Recharges++
			report.Notices = append(report.Notices, Notice{Kind: NoticeRecharged, DroneID: d.ID, Battery: d.Battery})
		}

		order.Status = domain.OrderStatusDelivered
		delivered := now
		order.DeliveredAt = &delivered
		order.UpdatedAt = now
		carried -= order.WeightKg
		d.Cursor++
		report.Deliveries++
		report.Notices = append(report.Notices, Notice{Kind: NoticeDelivered, DroneID: d.ID, OrderID: id, Battery: d.Battery})
	}

	d.TargetID = ""
	d.Status = domain.DroneStatusReturning
	final := d.Position.DistanceTo(geo.Base)
	cost := final * legBaseFactor
	d.Consume(cost)
	stats.BatteryConsumed += cost
	report.TotalDistanceKm += final
	d.Position = geo.Base
	if d.LowBattery() {
		d.Recharge()
		stats.Recharges++
		report.Notices = append(report.Notices, Notice{Kind: NoticeRecharged, DroneID: d.ID, Battery: d.Battery})
	}
	d.Status = domain.DroneStatusIdle
	d.UpdatedAt = now
	report.Notices = append(report.Notices, Notice{Kind: NoticeDocked, DroneID: d.ID, Battery: d.Battery})
}
