package grpcapi

import (
	"drone-dispatch/internal/simulation"
	"drone-dispatch/internal/transport"
)

type Empty struct{}

type TokenRequest struct {
	Name string `json:"name"`
	Role string `json:"role"`
}

type TokenResponse struct {
	Token     string `json:"token"`
	ExpiresAt string `json:"expires_at"`
}

type SubmitOrderRequest struct {
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	WeightKg float64 `json:"weight_kg"`
	Priority string  `json:"priority"`
}

type OrderIDRequest struct {
	OrderID string `json:"order_id"`
}

type ListOrdersRequest struct {
	Status string `json:"status"`
	UserID string `json:"user_id"`
	Limit  int    `json:"limit"`
	Offset int    `json:"offset"`
}

type ListOrdersResponse struct {
	Orders []transport.OrderResponse `json:"orders"`
}

type ListDronesResponse struct {
	Drones []transport.DroneResponse `json:"drones"`
}

type RegisterDroneRequest struct {
	CapacityKg float64 `json:"capacity_kg"`
	RangeKm    float64 `json:"range_km"`
}

type WatchRequest struct {
	// IntervalMs paces the stream. Zero uses the server default.
	IntervalMs int64 `json:"interval_ms"`
}

// WatchEvent is one message of the Watch stream: a snapshot per step, then the summary.
type WatchEvent struct {
	Snapshot *simulation.Snapshot       `json:"snapshot,omitempty"`
	Summary  *transport.SummaryResponse `json:"summary,omitempty"`
}
