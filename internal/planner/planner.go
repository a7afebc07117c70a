// Package planner assigns pending orders to drones.
//
// The search is a deterministic first-fit over the priority-sorted pending pool:
// for each drone it tries every 3-stop combination, then every pair, then every
// single order, and keeps the first one that fits both payload and range. It
// does not look for a globally optimal assignment.
package planner

import (
	"slices"

	"drone-dispatch/internal/domain"
)

// MaxStops caps a route regardless of remaining capacity or range.
const MaxStops = 3

// Plan resets the fleet, builds one route per drone in fleet order and marks
// orders ASSIGNED or UNSERVED in book.
func Plan(fleet []*domain.Drone, book domain.OrderBook) domain.Plan {
	for _, d := range fleet {
		d.ResetToBase()
		d.Route = nil
		d.Cursor = 0
	}

	pending := SortPending(book.WithStatus(domain.OrderStatusPending))
	plan := domain.Plan{Routes: make([]domain.Route, 0, len(fleet))}

	for _, d := range fleet {
		var route []*domain.Order
		if d.Status == domain.DroneStatusIdle {
			route = findRoute(d, pending)
		}
		ids := make([]string, 0, len(route))
		for _, o := range route {
			droneID := d.ID
			o.Status = domain.OrderStatusAssigned
			o.AssignedDroneID = &droneID
			ids = append(ids, o.ID)
		}
		if len(ids) > 0 {
			pending = slices.DeleteFunc(pending, func(o *domain.Order) bool {
				return slices.Contains(ids, o.ID)
			})
			d.Route = ids
			d.TargetID = ids[0]
			d.Status = domain.DroneStatusLoading
		}
		plan.Routes = append(plan.Routes, domain.Route{DroneID: d.ID, OrderIDs: ids})
	}

	for _, o := range pending {
		o.Status = domain.OrderStatusUnserved
		o.AssignedDroneID = nil
		plan.Unserved = append(plan.Unserved, o.ID)
	}
	return plan
}

// SortPending orders by priority descending, then arrival ascending. The sort is stable.
func SortPending(orders []*domain.Order) []*domain.Order {
	out := slices.Clone(orders)
	slices.SortStableFunc(out, func(a, b *domain.Order) int {
		if ra, rb := a.Priority.Rank(), b.Priority.Rank(); ra != rb {
			return rb - ra
		}
		switch {
		case a.Arrival < b.Arrival:
			return -1
		case a.Arrival > b.Arrival:
			return 1
		}
		switch {
		case a.ID < b.ID:
			return -1
		case a.ID > b.ID:
			return 1
		}
		return 0
	})
	return out
}

func findRoute(d *domain.Drone, pending []*domain.Order) []*domain.Order {
	n := len(pending)
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			for k := j + 1; k < n; k++ {
				if route := []*domain.Order{pending[i], pending[j], pending[k]}; Fits(d, route) {
					return route
				}
			}
		}
	}
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			if route := []*domain.Order{pending[i], pending[j]}; Fits(d, route) {
				return route
			}
		}
	}
	for i := 0; i < n; i++ {
		if route := []*domain.Order{pending[i]}; Fits(d, route) {
			return route
		}
	}
	return nil
}

// Fits reports whether the drone can carry every stop and fly the round trip.
func Fits(d *domain.Drone, stops []*domain.Order) bool {
	if len(stops) == 0 || len(stops) > MaxStops {
		return false
	}
	if domain.RouteWeight(stops) > d.CapacityKg {
		return false
	}
	return domain.RouteDistance(stops) <= d.RangeKm
}

// ResetOrders puts every order back to PENDING so the same set can be planned again.
func ResetOrders(book domain.OrderBook) {
	for _, o := range book {
		o.Status = domain.OrderStatusPending
		o.AssignedDroneID = nil
		o.DeliveredAt = nil
	}
}

// ReleaseRouted returns ASSIGNED and IN_TRANSIT orders to PENDING. Plan parks
// the whole fleet, so an order left on a route would otherwise be stranded.
func ReleaseRouted(book domain.OrderBook) []string {
	var released []string
	for _, o := range book {
		if o.Status != domain.OrderStatusAssigned && o.Status != domain.OrderStatusInTransit {
			continue
		}
		o.Status = domain.OrderStatusPending
		o.AssignedDroneID = nil
		released = append(released, o.ID)
	}
	slices.Sort(released)
	return released
}
