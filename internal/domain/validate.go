package domain

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// NewOrder is the only way to create an order. Requests heavier than
// MaxOrderWeightKg are rejected and no order is produced.
func NewOrder(id, userID string, pos Position, weightKg float64, priority Priority, arrival int64, now time.Time) (*Order, error) {
	if err := ValidatePosition(pos); err != nil {
		return nil, err
	}
	if err := ValidateWeight(weightKg); err != nil {
		return nil, err
	}
	if !ValidatePriority(priority) {
		return nil, fmt.Errorf("priority %q: %w", priority, ErrInvalid)
	}
	return &Order{
		ID:        id,
		UserID:    userID,
		Position:  pos,
		WeightKg:  weightKg,
		Priority:  priority,
		Arrival:   arrival,
		Status:    OrderStatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

func ValidateWeight(weightKg float64) error {
	if math.IsNaN(weightKg) || math.IsInf(weightKg, 0) || weightKg < 0 {
		return fmt.Errorf("weight %v: %w", weightKg, ErrInvalid)
	}
	if weightKg > MaxOrderWeightKg {
		return ErrWeightExceeded
	}
	return nil
}

func ValidatePosition(pos Position) error {
	if math.IsNaN(pos.X) || math.IsNaN(pos.Y) || math.IsInf(pos.X, 0) || math.IsInf(pos.Y, 0) {
		return fmt.Errorf("position: %w", ErrInvalid)
	}
	return nil
}

func ValidatePriority(p Priority) bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	default:
		return false
	}
}

// ParsePriority accepts any casing; empty input defaults to MEDIUM.
func ParsePriority(s string) (Priority, error) {
	if s == "" {
		return PriorityMedium, nil
	}
	p := Priority(strings.ToUpper(strings.TrimSpace(s)))
	if !ValidatePriority(p) {
		return "", fmt.Errorf("priority %q: %w", s, ErrInvalid)
	}
	return p, nil
}

func ValidateOrderStatus(s OrderStatus) bool {
	switch s {
	case OrderStatusPending, OrderStatusAssigned, OrderStatusInTransit, OrderStatusDelivered, OrderStatusUnserved:
		return true
	default:
		return false
	}
}

func ValidateDroneSpec(spec DroneSpec) error {
	if spec.CapacityKg <= 0 || spec.RangeKm <= 0 {
		return fmt.Errorf("drone spec capacity=%v range=%v: %w", spec.CapacityKg, spec.RangeKm, ErrInvalid)
	}
	return nil
}

func ValidateRole(role string) bool {
	switch role {
	case RoleAdmin, RoleEndUser:
		return true
	default:
		return false
	}
}
