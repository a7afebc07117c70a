package transport

import (
	"time"

	"drone-dispatch/internal/domain"
	"drone-dispatch/internal/service"
	"drone-dispatch/internal/simulation"
)

type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

type OrderResponse struct {
	ID              string     `json:"id"`
	UserID          string     `json:"user_id"`
	Destination     Point      `json:"destination"`
	WeightKg        float64    `json:"weight_kg"`
	Priority        string     `json:"priority"`
	Status          string     `json:"status"`
	AssignedDroneID *int       `json:"assigned_drone_id,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
	DeliveredAt     *time.Time `json:"delivered_at,omitempty"`
}

type OrderViewResponse struct {
	Order           OrderResponse `json:"order"`
	CurrentLocation *Point        `json:"current_location,omitempty"`
	RoundTripKm     float64       `json:"round_trip_km"`
	ETASteps        *int64        `json:"eta_steps,omitempty"`
}

type DroneResponse struct {
	ID         int       `json:"id"`
	CapacityKg float64   `json:"capacity_kg"`
	RangeKm    float64   `json:"range_km"`
	Position   Point     `json:"position"`
	Battery    float64   `json:"battery"`
	Status     string    `json:"status"`
	Route      []string  `json:"route,omitempty"`
	TargetID   string    `json:"target_order_id,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

type RouteResponse struct {
	DroneID  int      `json:"drone_id"`
	OrderIDs []string `json:"order_ids"`
}

type PlanResponse struct {
	Routes   []RouteResponse `json:"routes"`
	Unserved []string        `json:"unserved"`
	Assigned int             `json:"assigned"`
}

type DroneStatsResponse struct {
	DroneID         int     `json:"drone_id"`
	Orders          int     `json:"orders"`
	BatteryConsumed float64 `json:"battery_consumed"`
	Recharges       int     `json:"recharges"`
}

type ReportResponse struct {
	Deliveries           int                  `json:"deliveries"`
	TotalDistanceKm      float64              `json:"total_distance_km"`
	MeanDistanceKm       float64              `json:"mean_distance_km"`
	MostEfficientDroneID int                  `json:"most_efficient_drone_id,omitempty"`
	EmptyPlan            bool                 `json:"empty_plan"`
	Drones               []DroneStatsResponse `json:"drones"`
}

type SummaryResponse struct {
	Steps         int      `json:"steps"`
	Deliveries    int      `json:"deliveries"`
	ForcedReturns int      `json:"forced_returns"`
	Recharges     int      `json:"recharges"`
	Dropped       []string `json:"dropped,omitempty"`
	Interrupted   bool     `json:"interrupted"`
}

func FromOrder(order *domain.Order) OrderResponse {
	return OrderResponse{
		ID:              order.ID,
		UserID:          order.UserID,
		Destination:     Point{X: order.Position.X, Y: order.Position.Y},
		WeightKg:        order.WeightKg,
		Priority:        string(order.Priority),
		Status:          string(order.Status),
		AssignedDroneID: order.AssignedDroneID,
		CreatedAt:       order.CreatedAt,
		UpdatedAt:       order.UpdatedAt,
		DeliveredAt:     order.DeliveredAt,
	}
}

func FromOrders(orders []*domain.Order) []OrderResponse {
	resp := make([]OrderResponse, 0, len(orders))
	for _, o := range orders {
		resp = append(resp, FromOrder(o))
	}
	return resp
}

func FromOrderView(view *service.OrderView) OrderViewResponse {
	resp := OrderViewResponse{
		Order:       FromOrder(view.Order),
		RoundTripKm: view.RoundTripKm,
		ETASteps:    view.ETASteps,
	}
	if view.CurrentLocation != nil {
		resp.CurrentLocation = &Point{X: view.CurrentLocation.X, Y: view.CurrentLocation.Y}
	}
	return resp
}

func FromDrone(drone *domain.Drone) DroneResponse {
	return DroneResponse{
		ID:         drone.ID,
		CapacityKg: drone.CapacityKg,
		RangeKm:    drone.RangeKm,
		Position:   Point{X: drone.Position.X, Y: drone.Position.Y},
		Battery:    drone.Battery,
		Status:     string(drone.Status),
		Route:      drone.Route,
		TargetID:   drone.TargetID,
		CreatedAt:  drone.CreatedAt,
		UpdatedAt:  drone.UpdatedAt,
	}
}

func FromDrones(drones []*domain.Drone) []DroneResponse {
	resp := make([]DroneResponse, 0, len(drones))
	for _, d := range drones {
		resp = append(resp, FromDrone(d))
	}
	return resp
}

// FromPlan lists only drones that received orders.
func FromPlan(plan *domain.Plan) PlanResponse {
	resp := PlanResponse{
		Routes:   []RouteResponse{},
		Unserved: append([]string{}, plan.Unserved...),
		Assigned: plan.Assigned(),
	}
	for _, r := range plan.Routes {
		if len(r.OrderIDs) == 0 {
			continue
		}
		resp.Routes = append(resp.Routes, RouteResponse{DroneID: r.DroneID, OrderIDs: r.OrderIDs})
	}
	return resp
}

func FromReport(report *simulation.Report) ReportResponse {
	resp := ReportResponse{
		Deliveries:           report.Deliveries,
		TotalDistanceKm:      report.TotalDistanceKm,
		MeanDistanceKm:       report.MeanDistanceKm,
		MostEfficientDroneID: report.MostEfficientDroneID,
		EmptyPlan:            report.EmptyPlan,
		Drones:               make([]DroneStatsResponse, 0, len(report.Drones)),
	}
	for _, d := range report.Drones {
		resp.Drones = append(resp.Drones, DroneStatsResponse(d))
	}
	return resp
}

func FromSummary(summary simulation.Summary, interrupted bool) SummaryResponse {
	return SummaryResponse{
		Steps:         summary.Steps,
		Deliveries:    summary.Deliveries,
		ForcedReturns: summary.ForcedReturns,
		Recharges:     summary.Recharges,
		Dropped:       summary.Dropped,
		Interrupted:   interrupted,
	}
}

// ParseOrderStatus accepts an empty value as "no filter".
func ParseOrderStatus(raw string) *domain.OrderStatus {
	if raw == "" {
		return nil
	}
	status := domain.OrderStatus(raw)
	return &status
}
