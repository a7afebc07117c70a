package domain

import (
	"sync"
	"time"

	"drone-dispatch/internal/geo"
)

type DroneSpec struct {
	CapacityKg float64 `mapstructure:"capacity_kg" json:"capacity_kg"`
	RangeKm    float64 `mapstructure:"range_km" json:"range_km"`
}

// DefaultFleetSpecs is the stock five-drone fleet.
var DefaultFleetSpecs = []DroneSpec{
	{CapacityKg: 10, RangeKm: 100},
	{CapacityKg: 12, RangeKm: 120},
	{CapacityKg: 8, RangeKm: 80},
	{CapacityKg: 15, RangeKm: 150},
	{CapacityKg: 9, RangeKm: 90},
}

// IDGenerator hands out sequential drone ids. The zero value starts at 1.
type IDGenerator struct {
	mu   sync.Mutex
	last int
}

// NewIDGenerator returns a generator whose first id is last+1.
func NewIDGenerator(last int) *IDGenerator {
	return &IDGenerator{last: last}
}

func (g *IDGenerator) Next() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.last++
	return g.last
}

func NewDrone(id int, spec DroneSpec, now time.Time) (*Drone, error) {
	if err := ValidateDroneSpec(spec); err != nil {
		return nil, err
	}
	return &Drone{
		ID:         id,
		CapacityKg: spec.CapacityKg,
		RangeKm:    spec.RangeKm,
		Position:   geo.Base,
		Battery:    FullBatteryPct,
		Status:     DroneStatusIdle,
		CreatedAt:  now,
		UpdatedAt:  now,
	}, nil
}

func NewFleet(gen *IDGenerator, specs []DroneSpec, now time.Time) ([]*Drone, error) {
	fleet := make([]*Drone, 0, len(specs))
	for _, spec := range specs {
		drone, err := NewDrone(gen.Next(), spec, now)
		if err != nil {
			return nil, err
		}
		fleet = append(fleet, drone)
	}
	return fleet, nil
}
