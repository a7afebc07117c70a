package domain

import (
	"time"

	"drone-dispatch/internal/geo"
)

const (
	RoleAdmin   = "admin"
	RoleEndUser = "enduser"
)

const (
	// MaxOrderWeightKg is the heaviest payload any drone in the fleet can lift.
	MaxOrderWeightKg = 15.0
	LowBatteryPct    = 20.0
	FullBatteryPct   = 100.0
)

type Position = geo.Point

type Priority string

const (
	PriorityLow    Priority = "LOW"
	PriorityMedium Priority = "MEDIUM"
	PriorityHigh   Priority = "HIGH"
)

// Rank orders priorities; higher is served first.
func (p Priority) Rank() int {
	switch p {
	case PriorityHigh:
		return 2
	case PriorityMedium:
		return 1
	default:
		return 0
	}
}

type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "PENDING"
	OrderStatusAssigned  OrderStatus = "ASSIGNED"
	OrderStatusInTransit OrderStatus = "IN_TRANSIT"
	OrderStatusDelivered OrderStatus = "DELIVERED"
	OrderStatusUnserved  OrderStatus = "UNSERVED"
)

type DroneStatus string

const (
	DroneStatusIdle       DroneStatus = "IDLE"
	DroneStatusLoading    DroneStatus = "LOADING"
	DroneStatusFlying     DroneStatus = "FLYING"
	DroneStatusReturning  DroneStatus = "RETURNING"
	DroneStatusRecharging DroneStatus = "RECHARGING"
)

type Order struct {
	ID              string
	UserID          string
	Position        Position
	WeightKg        float64
	Priority        Priority
	Arrival         int64
	Status          OrderStatus
	AssignedDroneID *int
	CreatedAt       time.Time
	UpdatedAt       time.Time
	DeliveredAt     *time.Time
}

type Drone struct {
	ID         int
	CapacityKg float64
	RangeKm    float64
	Position   Position
	Battery    float64
	Status     DroneStatus
	Route      []string
	Cursor     int
	TargetID   string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Consume drains the battery, never below zero.
func (d *Drone) Consume(pct float64) {
	d.Battery = clampBattery(d.Battery - pct)
}

func (d *Drone) Recharge() {
	d.Battery = FullBatteryPct
}

func (d *Drone) LowBattery() bool {
	return d.Battery <= LowBatteryPct
}

// ResetToBase parks the drone at the base with a full battery. The route is kept.
func (d *Drone) ResetToBase() {
	d.Position = geo.Base
	d.Battery = FullBatteryPct
	d.Status = DroneStatusIdle
	d.TargetID = ""
}

// HasNextStop reports whether the route still has an unvisited order.
func (d *Drone) HasNextStop() bool {
	return d.Cursor < len(d.Route)
}

func (d *Drone) Clone() *Drone {
	c := *d
	c.Route = append([]string(nil), d.Route...)
	return &c
}

func clampBattery(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > FullBatteryPct {
		return FullBatteryPct
	}
	return v
}

// OrderBook owns every order of a cycle. Routes and plans refer to orders by id only.
type OrderBook map[string]*Order

func NewOrderBook(orders []*Order) OrderBook {
	book := make(OrderBook, len(orders))
	for _, order := range orders {
		book[order.ID] = order
	}
	return book
}

func (b OrderBook) Get(id string) (*Order, bool) {
	order, ok := b[id]
	return order, ok
}

func (b OrderBook) WithStatus(status OrderStatus) []*Order {
	var out []*Order
	for _, order := range b {
		if order.Status == status {
			out = append(out, order)
		}
	}
	return out
}

func IsTerminal(status OrderStatus) bool {
	switch status {
	case OrderStatusDelivered, OrderStatusUnserved:
		return true
	default:
		return false
	}
}
