package domain

import "drone-dispatch/internal/geo"

type Route struct {
	DroneID  int
	OrderIDs []string
}

// Plan is the drone to route assignment of one planning cycle. Routes follow fleet order.
type Plan struct {
	Routes   []Route
	Unserved []string
}

func (p Plan) Empty() bool {
	for _, r := range p.Routes {
		if len(r.OrderIDs) > 0 {
			return false
		}
	}
	return true
}

func (p Plan) Assigned() int {
	n := 0
	for _, r := range p.Routes {
		n += len(r.OrderIDs)
	}
	return n
}

func (p Plan) RouteFor(droneID int) []string {
	for _, r := range p.Routes {
		if r.DroneID == droneID {
			return r.OrderIDs
		}
	}
	return nil
}

// PlanFromFleet rebuilds the plan recorded on each drone by the last planning cycle.
func PlanFromFleet(fleet []*Drone) Plan {
	plan := Plan{Routes: make([]Route, 0, len(fleet))}
	for _, d := range fleet {
		plan.Routes = append(plan.Routes, Route{DroneID: d.ID, OrderIDs: append([]string(nil), d.Route...)})
	}
	return plan
}

// RouteDistance is the round trip base -> stops -> base.
func RouteDistance(stops []*Order) float64 {
	points := make([]geo.Point, 0, len(stops)+2)
	points = append(points, geo.Base)
	for _, o := range stops {
		points = append(points, o.Position)
	}
	points = append(points, geo.Base)
	return geo.PathLength(points...)
}

func RouteWeight(stops []*Order) float64 {
	total := 0.0
	for _, o := range stops {
		total += o.WeightKg
	}
	return total
}
