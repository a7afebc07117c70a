package simulation

import (
	"drone-dispatch/internal/domain"
	"drone-dispatch/internal/geo"
)

const (
	stepDistance     = 1.0
	stepBatteryCost  = 0.5
	arrivalTolerance = 1.0
	proximityRadius  = 5.0
)

type stepInput struct {
	target    geo.Point
	hasTarget bool
}

// outcome is the result of advancing one drone by one step. The engine applies
// the order side effects it names.
type outcome struct {
	drone     domain.Drone
	active    bool
	departed  string
	delivered string
	dropped   string
	notices   []Notice
}

type transition func(d domain.Drone, in stepInput) outcome

var transitions map[domain.DroneStatus]transition

func init() {
	transitions = map[domain.DroneStatus]transition{
		domain.DroneStatusIdle:       idle,
		domain.DroneStatusLoading:    loading,
		domain.DroneStatusFlying:     flying,
		domain.DroneStatusReturning:  returning,
		domain.DroneStatusRecharging: recharging,
	}
}

// advance runs the state-specific update for d, then the low battery override.
func advance(d domain.Drone, in stepInput) outcome {
	next, ok := transitions[d.Status]
	if !ok {
		next = returning
	}
	return applySafetyOverride(next(d, in))
}

func idle(d domain.Drone, _ stepInput) outcome {
	if !d.HasNextStop() {
		return outcome{drone: d}
	}
	d.TargetID = d.Route[d.Cursor]
	d.Status = domain.DroneStatusLoading
	return outcome{drone: d, active: true}
}

func loading(d domain.Drone, _ stepInput) outcome {
	if d.TargetID == "" {
		d.Status = domain.DroneStatusReturning
		return outcome{drone: d, active: true}
	}
	d.Status = domain.DroneStatusFlying
	return outcome{
		drone:    d,
		active:   true,
		departed: d.TargetID,
		notices:  []Notice{{Kind: NoticeDeparted, DroneID: d.ID, OrderID: d.TargetID, Battery: d.Battery}},
	}
}

func flying(d domain.Drone, in stepInput) outcome {
	if !in.hasTarget {
		d.TargetID = ""
		d.Status = domain.DroneStatusReturning
		return outcome{drone: d, active: true}
	}
	d.Position = geo.StepToward(d.Position, in.target, stepDistance)
	d.Consume(stepBatteryCost)
	remaining := d.Position.DistanceTo(in.target)

	out := outcome{active: true}
	switch {
	case remaining <= arrivalTolerance:
		d.Position = in.target
		out.delivered = d.TargetID
		out.notices = append(out.notices, Notice{Kind: NoticeDelivered, DroneID: d.ID, OrderID: d.TargetID, Battery: d.Battery})
		d.TargetID = ""
		d.Cursor++
		if d.HasNextStop() {
			d.Status = domain.DroneStatusIdle
		} else {
			d.Status = domain.DroneStatusReturning
			out.notices = append(out.notices, Notice{Kind: NoticeReturning, DroneID: d.ID, Battery: d.Battery})
		}
	case remaining < proximityRadius:
		out.notices = append(out.notices, Notice{Kind: NoticeProximity, DroneID: d.ID, OrderID: d.TargetID, DistanceKm: remaining, Battery: d.Battery})
	}
	out.drone = d
	return out
}

func returning(d domain.Drone, _ stepInput) outcome {
	d.Status = domain.DroneStatusReturning
	d.Position = geo.StepToward(d.Position, geo.Base, stepDistance)
	d.Consume(stepBatteryCost)
	out := outcome{active: true}
	if d.Position.DistanceTo(geo.Base) <= arrivalTolerance {
		d.Position = geo.Base
		if d.LowBattery() {
			d.Recharge()
			out.notices = append(out.notices, Notice{Kind: NoticeRecharged, DroneID: d.ID, Battery: d.Battery})
		}
		d.Status = domain.DroneStatusIdle
		d.TargetID = ""
		d.Cursor = len(d.Route)
		out.notices = append(out.notices, Notice{Kind: NoticeDocked, DroneID: d.ID, Battery: d.Battery})
	}
	out.drone = d
	return out
}

func recharging(d domain.Drone, _ stepInput) outcome {
	d.Recharge()
	d.Status = domain.DroneStatusIdle
	return outcome{
		drone:   d,
		active:  true,
		notices: []Notice{{Kind: NoticeRecharged, DroneID: d.ID, Battery: d.Battery}},
	}
}

// applySafetyOverride sends any busy drone at or below the low battery mark
// home and drops its current target. The dropped order stays ASSIGNED.
func applySafetyOverride(out outcome) outcome {
	d := out.drone
	if !d.LowBattery() || d.Status == domain.DroneStatusReturning || d.Status == domain.DroneStatusIdle {
		return out
	}
	if d.TargetID != "" {
		out.dropped = d.TargetID
	}
	d.TargetID = ""
	d.Status = domain.DroneStatusReturning
	out.drone = d
	out.active = true
	out.notices = append(out.notices, Notice{Kind: NoticeForcedReturn, DroneID: d.ID, OrderID: out.dropped, Battery: d.Battery})
	return out
}
