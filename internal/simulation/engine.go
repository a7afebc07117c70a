package simulation

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog"

	"drone-dispatch/internal/domain"
)

type Summary struct {
	Steps         int      `json:"steps"`
	Deliveries    int      `json:"deliveries"`
	ForcedReturns int      `json:"forced_returns"`
	Recharges     int      `json:"recharges"`
	Dropped       []string `json:"dropped,omitempty"`
}

type Option func(*Engine)

// WithMaxSteps overrides the step bound derived from the plan.
func WithMaxSteps(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.maxSteps = n
		}
	}
}

func WithLogger(log zerolog.Logger) Option {
	return func(e *Engine) { e.log = log }
}

func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// Engine advances every planned drone one discrete step at a time. It is not
// safe for concurrent use.
type Engine struct {
	drones   []*domain.Drone
	book     domain.OrderBook
	orderIDs []string
	maxSteps int
	step     int
	summary  Summary
	log      zerolog.Logger
	now      func() time.Time
}

// NewEngine binds the plan to the fleet. Every planned drone starts from the
// base with a full battery and its first stop loaded.
func NewEngine(fleet []*domain.Drone, book domain.OrderBook, plan domain.Plan, opts ...Option) (*Engine, error) {
	byID, err := resolve(fleet, book, plan)
	if err != nil {
		return nil, err
	}
	e := &Engine{
		book: book,
		log:  zerolog.Nop(),
		now:  func() time.Time { return time.Now().UTC() },
	}
	for _, r := range plan.Routes {
		d := byID[r.DroneID]
		d.ResetToBase()
		d.Route = append([]string(nil), r.OrderIDs...)
		d.Cursor = 0
		if len(d.Route) > 0 {
			d.TargetID = d.Route[0]
			d.Status = domain.DroneStatusLoading
		}
		e.drones = append(e.drones, d)
		e.orderIDs = append(e.orderIDs, r.OrderIDs...)
	}
	e.maxSteps = stepBound(e.drones, book)
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// stepBound is a generous ceiling on the steps any finite plan needs: every
// leg takes at most ceil(length) moves and each stop adds two transitions.
func stepBound(drones []*domain.Drone, book domain.OrderBook) int {
	bound := 1
	for _, d := range drones {
		stops := make([]*domain.Order, 0, len(d.Route))
		for _, id := range d.Route {
			stops = append(stops, book[id])
		}
		bound += 2*int(math.Ceil(domain.RouteDistance(stops))) + 3*len(stops) + 4
	}
	return bound
}

func (e *Engine) MaxSteps() int { return e.maxSteps }

// Step advances every drone once and reports whether any of them did something.
func (e *Engine) Step() (Snapshot, bool) {
	e.step++
	e.summary.Steps = e.step
	active := false
	var notices []Notice
	for _, d := range e.drones {
		var in stepInput
		if d.TargetID != "" {
			if o, ok := e.book.Get(d.TargetID); ok {
				in = stepInput{target: o.Position, hasTarget: true}
			}
		}
		out := advance(*d, in)
		out.drone.UpdatedAt = e.now()
		*d = out.drone
		if out.active {
			active = true
		}
		e.apply(out)
		notices = append(notices, out.notices...)
	}
	for _, n := range notices {
		e.log.Info().Str("notice", string(n.Kind)).Int("drone_id", n.DroneID).Int("step", e.step).Msg(n.String())
	}
	return e.snapshot(notices), active
}

func (e *Engine) apply(out outcome) {
	now := e.now()
	if out.departed != "" {
		if o, ok := e.book.Get(out.departed); ok {
			o.Status = domain.OrderStatusInTransit
			o.UpdatedAt = now
		}
	}
	if out.delivered != "" {
		if o, ok := e.book.Get(out.delivered); ok {
			o.Status = domain.OrderStatusDelivered
			o.DeliveredAt = &now
			o.UpdatedAt = now
		}
		e.summary.Deliveries++
	}
	if out.dropped != "" {
		if o, ok := e.book.Get(out.dropped); ok && o.Status == domain.OrderStatusInTransit {
			o.Status = domain.OrderStatusAssigned
			o.UpdatedAt = now
		}
		e.summary.Dropped = append(e.summary.Dropped, out.dropped)
	}
	for _, n := range out.notices {
		switch n.Kind {
		case NoticeForcedReturn:
			e.summary.ForcedReturns++
		case NoticeRecharged:
			e.summary.Recharges++
		}
	}
}

func (e *Engine) snapshot(notices []Notice) Snapshot {
	snap := Snapshot{
		Step:    e.step,
		Drones:  make([]DroneState, 0, len(e.drones)),
		Orders:  make([]OrderState, 0, len(e.orderIDs)),
		Notices: notices,
	}
	for _, d := range e.drones {
		snap.Drones = append(snap.Drones, DroneState{ID: d.ID, X: d.Position.X, Y: d.Position.Y, Status: d.Status, Battery: d.Battery})
	}
	for _, id := range e.orderIDs {
		o := e.book[id]
		if o.Status == domain.OrderStatusUnserved {
			continue
		}
		snap.Orders = append(snap.Orders, OrderState{ID: o.ID, X: o.Position.X, Y: o.Position.Y, Status: o.Status})
	}
	return snap
}

// Run steps until every drone is idle with an exhausted route, rendering a
// snapshot after each step and sleeping interval between steps. Cancelling ctx
// stops the run before the next step.
func (e *Engine) Run(ctx context.Context, r Renderer, interval time.Duration) (Summary, error) {
	if r == nil {
		r = discardRenderer{}
	}
	for {
		if err := ctx.Err(); err != nil {
			return e.summary, err
		}
		if e.step >= e.maxSteps {
			return e.summary, fmt.Errorf("after %d steps: %w", e.step, domain.ErrStepLimit)
		}
		snap, active := e.Step()
		r.Render(snap)
		if !active {
			e.log.Debug().Int("steps", e.step).Msg("simulation settled")
			return e.summary, nil
		}
		if interval > 0 {
			timer := time.NewTimer(interval)
			select {
			case <-ctx.Done():
				timer.Stop()
				return e.summary, ctx.Err()
			case <-timer.C:
			}
		}
	}
}
