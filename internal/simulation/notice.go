// Package simulation replays a plan, either as a single closed-form pass
// (RunBatch) or as a discrete-time state machine stepped for live observation
// (Engine).
package simulation

import (
	"fmt"

	"drone-dispatch/internal/domain"
)

type NoticeKind string

const (
	NoticeDeparted     NoticeKind = "departed"
	NoticeProximity    NoticeKind = "proximity"
	NoticeDelivered    NoticeKind = "delivered"
	NoticeReturning    NoticeKind = "returning"
	NoticeForcedReturn NoticeKind = "forced_return"
	NoticeRecharged    NoticeKind = "recharged"
	NoticeDocked       NoticeKind = "docked"
)

// Notice is something worth telling an operator about. Notices drive the event log.
type Notice struct {
	Kind       NoticeKind `json:"kind"`
	DroneID    int        `json:"drone_id"`
	OrderID    string     `json:"order_id,omitempty"`
	DistanceKm float64    `json:"distance_km,omitempty"`
	Battery    float64    `json:"battery"`
}

func (n Notice) String() string {
	switch n.Kind {
	case NoticeProximity:
		return fmt.Sprintf("drone %d is %.1f km from order %s", n.DroneID, n.DistanceKm, n.OrderID)
	case NoticeForcedReturn:
		return fmt.Sprintf("drone %d low battery (%.1f%%), returning to base", n.DroneID, n.Battery)
	case NoticeRecharged:
		return fmt.Sprintf("drone %d recharged", n.DroneID)
	case NoticeDocked:
		return fmt.Sprintf("drone %d docked at base (%.1f%%)", n.DroneID, n.Battery)
	default:
		if n.OrderID != "" {
			return fmt.Sprintf("drone %d %s order %s", n.DroneID, n.Kind, n.OrderID)
		}
		return fmt.Sprintf("drone %d %s", n.DroneID, n.Kind)
	}
}

type DroneState struct {
	ID      int                `json:"id"`
	X       float64            `json:"x"`
	Y       float64            `json:"y"`
	Status  domain.DroneStatus `json:"status"`
	Battery float64            `json:"battery"`
}

type OrderState struct {
	ID     string             `json:"id"`
	X      float64            `json:"x"`
	Y      float64            `json:"y"`
	Status domain.OrderStatus `json:"status"`
}

// Snapshot is the read-only view handed to a Renderer after every step.
type Snapshot struct {
	Step    int          `json:"step"`
	Drones  []DroneState `json:"drones"`
	Orders  []OrderState `json:"orders"`
	Notices []Notice     `json:"notices,omitempty"`
}

type Renderer interface {
	Render(Snapshot)
}

type RendererFunc func(Snapshot)

func (f RendererFunc) Render(s Snapshot) { f(s) }

type discardRenderer struct{}

func (discardRenderer) Render(Snapshot) {}

// resolve checks that every drone and order the plan names exists.
func resolve(fleet []*domain.Drone, book domain.OrderBook, plan domain.Plan) (map[int]*domain.Drone, error) {
	byID := make(map[int]*domain.Drone, len(fleet))
	for _, d := range fleet {
		byID[d.ID] = d
	}
	for _, r := range plan.Routes {
		if _, ok := byID[r.DroneID]; !ok {
			return nil, fmt.Errorf("drone %d: %w", r.DroneID, domain.ErrUnknownDrone)
		}
		for _, id := range r.OrderIDs {
			if _, ok := book.Get(id); !ok {
				return nil, fmt.Errorf("drone %d order %s: %w", r.DroneID, id, domain.ErrUnknownOrder)
			}
		}
	}
	return byID, nil
}
