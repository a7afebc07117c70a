package service

import (
	"math"

	"drone-dispatch/internal/domain"
	"drone-dispatch/internal/geo"
)

type OrderView struct {
	Order           *domain.Order
	CurrentLocation *domain.Position
	RoundTripKm     float64
	ETASteps        *int64
}

// CurrentLocation is where the parcel is now: at the base until a drone takes
// off with it, then wherever that drone is, then at its destination.
func CurrentLocation(order *domain.Order, drone *domain.Drone) *domain.Position {
	switch order.Status {
	case domain.OrderStatusPending, domain.OrderStatusAssigned:
		loc := geo.Base
		return &loc
	case domain.OrderStatusInTransit:
		if drone != nil {
			loc := drone.Position
			return &loc
		}
	case domain.OrderStatusDelivered:
		loc := order.Position
		return &loc
	}
	return nil
}

// ComputeETASteps estimates the stepped-engine ticks until delivery. The
// engine moves one unit per axis per tick, so the Chebyshev distance bounds it.
func ComputeETASteps(order *domain.Order, drone *domain.Drone) *int64 {
	if domain.IsTerminal(order.Status) || order.Status == domain.OrderStatusPending {
		return nil
	}
	from := geo.Base
	if order.Status == domain.OrderStatusInTransit && drone != nil {
		from = drone.Position
	}
	dx := math.Abs(order.Position.X - from.X)
	dy := math.Abs(order.Position.Y - from.Y)
	steps := int64(math.Ceil(math.Max(dx, dy)))
	return &steps
}

func buildOrderView(order *domain.Order, drone *domain.Drone) *OrderView {
	return &OrderView{
		Order:           order,
		CurrentLocation: CurrentLocation(order, drone),
		RoundTripKm:     domain.RouteDistance([]*domain.Order{order}),
		ETASteps:        ComputeETASteps(order, drone),
	}
}
