package events

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"drone-dispatch/internal/domain"
)

const (
	AggregateOrder      = "order"
	AggregateDrone      = "drone"
	AggregateSimulation = "simulation"
)

const (
	EventOrderSubmitted        = "order.submitted"
	EventOrderAssigned         = "order.assigned"
	EventOrderUnserved         = "order.unserved"
	EventOrderInTransit        = "order.in_transit"
	EventOrderDelivered        = "order.delivered"
	EventOrderReset            = "order.reset"
	EventDroneRegistered       = "drone.registered"
	EventDroneForcedReturn     = "drone.forced_return"
	EventDroneRecharged        = "drone.recharged"
	EventSimulationCompleted   = "simulation.completed"
	EventSimulationInterrupted = "simulation.interrupted"
)

type Event struct {
	ID            string          `json:"id"`
	Type          string          `json:"type"`
	AggregateType string          `json:"aggregate_type"`
	AggregateID   string          `json:"aggregate_id"`
	Payload       json.RawMessage `json:"payload"`
	OccurredAt    time.Time       `json:"occurred_at"`
}

func NewEvent(eventType, aggregateType, aggregateID string, payload any, occurredAt time.Time) Event {
	data, _ := json.Marshal(payload)
	return Event{
		ID:            uuid.NewString(),
		Type:          eventType,
		AggregateType: aggregateType,
		AggregateID:   aggregateID,
		Payload:       data,
		OccurredAt:    occurredAt,
	}
}

func NewOrderEvent(eventType string, order *domain.Order, occurredAt time.Time) Event {
	payload := map[string]any{
		"order_id":    order.ID,
		"status":      order.Status,
		"user_id":     order.UserID,
		"priority":    order.Priority,
		"weight_kg":   order.WeightKg,
		"drone_id":    order.AssignedDroneID,
		"occurred_at": occurredAt,
	}
	return NewEvent(eventType, AggregateOrder, order.ID, payload, occurredAt)
}

func NewDroneEvent(eventType string, drone *domain.Drone, occurredAt time.Time) Event {
	payload := map[string]any{
		"drone_id":    drone.ID,
		"status":      drone.Status,
		"battery":     drone.Battery,
		"x":           drone.Position.X,
		"y":           drone.Position.Y,
		"occurred_at": occurredAt,
	}
	return NewEvent(eventType, AggregateDrone, droneAggregateID(drone.ID), payload, occurredAt)
}

// NewSimulationEvent records the outcome of a batch or stepped run. runID groups
// the events of one run.
func NewSimulationEvent(eventType, runID, mode string, result any, occurredAt time.Time) Event {
	payload := map[string]any{
		"run_id":      runID,
		"mode":        mode,
		"result":      result,
		"occurred_at": occurredAt,
	}
	return NewEvent(eventType, AggregateSimulation, runID, payload, occurredAt)
}
