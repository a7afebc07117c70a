package service

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"drone-dispatch/internal/domain"
	"drone-dispatch/internal/events"
	"drone-dispatch/internal/metrics"
	"drone-dispatch/internal/planner"
	"drone-dispatch/internal/simulation"
)

type Store interface {
	BeginTx(ctx context.Context) (Tx, error)
	GetOrder(ctx context.Context, id string) (*domain.Order, error)
	ListOrders(ctx context.Context, filter OrderFilter) ([]*domain.Order, error)
	GetDrone(ctx context.Context, id int) (*domain.Drone, error)
	ListDrones(ctx context.Context) ([]*domain.Drone, error)
}

type Tx interface {
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
	// ListOrdersForUpdate locks orders in any of statuses, or every order when statuses is empty.
	ListOrdersForUpdate(ctx context.Context, statuses ...domain.OrderStatus) ([]*domain.Order, error)
	// ListDronesForUpdate locks the fleet in id order.
	ListDronesForUpdate(ctx context.Context) ([]*domain.Drone, error)
	MaxDroneID(ctx context.Context) (int, error)
	CreateOrder(ctx context.Context, order *domain.Order) error
	UpdateOrder(ctx context.Context, order *domain.Order) error
	CreateDrone(ctx context.Context, drone *domain.Drone) error
	UpdateDrone(ctx context.Context, drone *domain.Drone) error
	EnqueueEvent(ctx context.Context, event events.Event) error
}

type OrderFilter struct {
	Status *domain.OrderStatus
	UserID string
	Limit  int
	Offset int
}

type Options struct {
	// MaxSteps overrides the stepped engine bound. Zero keeps the bound derived from the plan.
	MaxSteps int
}

type Service struct {
	store Store
	log   zerolog.Logger
	opts  Options
	now   func() time.Time
	newID func() string

	arrivalMu   sync.Mutex
	lastArrival int64

	// cycle serialises everything that rewrites the fleet: planning, resets and simulations.
	cycle sync.Mutex
}

func New(store Store, log zerolog.Logger, opts Options) *Service {
	return &Service{
		store: store,
		log:   log,
		opts:  opts,
		now:   func() time.Time { return time.Now().UTC() },
		newID: uuid.NewString,
	}
}

// nextArrival returns a strictly increasing arrival stamp for tie-breaking.
func (s *Service) nextArrival() int64 {
	s.arrivalMu.Lock()
	defer s.arrivalMu.Unlock()
	stamp := s.now().UnixNano()
	if stamp <= s.lastArrival {
		stamp = s.lastArrival + 1
	}
	s.lastArrival = stamp
	return stamp
}

func (s *Service) SubmitOrder(ctx context.Context, userID string, pos domain.Position, weightKg float64, priority domain.Priority) (*domain.Order, error) {
	now := s.now()
	order, err := domain.NewOrder(s.newID(), userID, pos, weightKg, priority, s.nextArrival(), now)
	if err != nil {
		metrics.OrdersRejected.Inc()
		s.log.Warn().Err(err).Str("user_id", userID).Float64("weight_kg", weightKg).Msg("order rejected")
		return nil, err
	}
	tx, err := s.store.BeginTx(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	if err := tx.CreateOrder(ctx, order); err != nil {
		return nil, err
	}
	if err := tx.EnqueueEvent(ctx, events.NewOrderEvent(events.EventOrderSubmitted, order, now)); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	metrics.OrdersSubmitted.WithLabelValues(string(order.Priority)).Inc()
	return order, nil
}

func (s *Service) GetOrder(ctx context.Context, requesterID, role, orderID string) (*OrderView, error) {
	order, err := s.store.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if role != domain.RoleAdmin && order.UserID != requesterID {
		return nil, domain.ErrForbidden
	}
	var drone *domain.Drone
	if order.AssignedDroneID != nil {
		drone, err = s.store.GetDrone(ctx, *order.AssignedDroneID)
		if err != nil && !errors.Is(err, domain.ErrNotFound) {
			return nil, err
		}
	}
	return buildOrderView(order, drone), nil
}

func (s *Service) ListOrders(ctx context.Context, filter OrderFilter) ([]*domain.Order, error) {
	if filter.Status != nil && !domain.ValidateOrderStatus(*filter.Status) {
		return nil, fmt.Errorf("status %q: %w", *filter.Status, domain.ErrInvalid)
	}
	orders, err := s.store.ListOrders(ctx, filter)
	if err != nil {
		return nil, err
	}
	slices.SortStableFunc(orders, func(a, b *domain.Order) int {
		switch {
		case a.Arrival < b.Arrival:
			return -1
		case a.Arrival > b.Arrival:
			return 1
		}
		return 0
	})
	return orders, nil
}

func (s *Service) ListDrones(ctx context.Context) ([]*domain.Drone, error) {
	return s.store.ListDrones(ctx)
}

func (s *Service) RegisterDrone(ctx context.Context, spec domain.DroneSpec) (*domain.Drone, error) {
	if err := domain.ValidateDroneSpec(spec); err != nil {
		return nil, err
	}
	tx, err := s.store.BeginTx(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	last, err := tx.MaxDroneID(ctx)
	if err != nil {
		return nil, err
	}
	now := s.now()
	drone, err := domain.NewDrone(domain.NewIDGenerator(last).Next(), spec, now)
	if err != nil {
		return nil, err
	}
	if err := tx.CreateDrone(ctx, drone); err != nil {
		return nil, err
	}
	if err := tx.EnqueueEvent(ctx, events.NewDroneEvent(events.EventDroneRegistered, drone, now)); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	s.log.Info().Int("drone_id", drone.ID).Float64("capacity_kg", spec.CapacityKg).Float64("range_km", spec.RangeKm).Msg("drone registered")
	return drone, nil
}

// EnsureFleet creates the given fleet when no drone exists yet and returns the current fleet.
func (s *Service) EnsureFleet(ctx context.Context, specs []domain.DroneSpec) ([]*domain.Drone, error) {
	tx, err := s.store.BeginTx(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	fleet, err := tx.ListDronesForUpdate(ctx)
	if err != nil {
		return nil, err
	}
	if len(fleet) > 0 {
		return fleet, nil
	}
	last, err := tx.MaxDroneID(ctx)
	if err != nil {
		return nil, err
	}
	now := s.now()
	fleet, err = domain.NewFleet(domain.NewIDGenerator(last), specs, now)
	if err != nil {
		return nil, err
	}
	for _, d := range fleet {
		if err := tx.CreateDrone(ctx, d); err != nil {
			return nil, err
		}
		if err := tx.EnqueueEvent(ctx, events.NewDroneEvent(events.EventDroneRegistered, d, now)); err != nil {
			return nil, err
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	s.log.Info().Int("drones", len(fleet)).Msg("fleet seeded")
	return fleet, nil
}

// ResetCycle returns every order to PENDING and parks the fleet so the same
// order set can be planned again.
func (s *Service) ResetCycle(ctx context.Context) error {
	if !s.cycle.TryLock() {
		return domain.ErrSimulationRunning
	}
	defer s.cycle.Unlock()

	tx, err := s.store.BeginTx(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	orders, err := tx.ListOrdersForUpdate(ctx)
	if err != nil {
		return err
	}
	fleet, err := tx.ListDronesForUpdate(ctx)
	if err != nil {
		return err
	}
	now := s.now()
	planner.ResetOrders(domain.NewOrderBook(orders))
	for _, o := range orders {
		o.UpdatedAt = now
		if err := tx.UpdateOrder(ctx, o); err != nil {
			return err
		}
		if err := tx.EnqueueEvent(ctx, events.NewOrderEvent(events.EventOrderReset, o, now)); err != nil {
			return err
		}
	}
	for _, d := range fleet {
		d.ResetToBase()
		d.Route = nil
		d.Cursor = 0
		d.UpdatedAt = now
		if err := tx.UpdateDrone(ctx, d); err != nil {
			return err
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return err
	}
	s.log.Info().Int("orders", len(orders)).Msg("cycle reset")
	return nil
}

// PlanCycle assigns every PENDING order to a drone route or marks it UNSERVED.
// Orders still routed from an earlier plan that was never flown join the pool.
func (s *Service) PlanCycle(ctx context.Context) (*domain.Plan, error) {
	if !s.cycle.TryLock() {
		return nil, domain.ErrSimulationRunning
	}
	defer s.cycle.Unlock()

	tx, err := s.store.BeginTx(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	fleet, err := tx.ListDronesForUpdate(ctx)
	if err != nil {
		return nil, err
	}
	pending, err := tx.ListOrdersForUpdate(ctx, domain.OrderStatusPending, domain.OrderStatusAssigned, domain.OrderStatusInTransit)
	if err != nil {
		return nil, err
	}
	book := domain.NewOrderBook(pending)
	if released := planner.ReleaseRouted(book); len(released) > 0 {
		s.log.Info().Strs("orders", released).Msg("undelivered routed orders returned to the pool")
	}
	plan := planner.Plan(fleet, book)

	now := s.now()
	for _, o := range pending {
		o.UpdatedAt = now
		if err := tx.UpdateOrder(ctx, o); err != nil {
			return nil, err
		}
		eventType := events.EventOrderAssigned
		if o.Status == domain.OrderStatusUnserved {
			eventType = events.EventOrderUnserved
		}
		if err := tx.EnqueueEvent(ctx, events.NewOrderEvent(eventType, o, now)); err != nil {
			return nil, err
		}
	}
	for _, d := range fleet {
		d.UpdatedAt = now
		if err := tx.UpdateDrone(ctx, d); err != nil {
			return nil, err
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	metrics.PlanCycles.Inc()
	metrics.OrdersAssigned.Add(float64(plan.Assigned()))
	metrics.OrdersUnserved.Add(float64(len(plan.Unserved)))
	for _, r := range plan.Routes {
		if len(r.OrderIDs) > 0 {
			s.log.Info().Int("drone_id", r.DroneID).Strs("orders", r.OrderIDs).Msg("route allocated")
		}
	}
	if plan.Empty() {
		s.log.Warn().Int("pending", len(pending)).Msg("no routes allocated")
	}
	s.log.Info().Int("assigned", plan.Assigned()).Int("unserved", len(plan.Unserved)).Msg("planning cycle complete")
	return &plan, nil
}

// RunBatch replays the current plan in a single pass and returns the report.
// An empty plan yields a zero report, not an error.
func (s *Service) RunBatch(ctx context.Context) (*simulation.Report, error) {
	if !s.cycle.TryLock() {
		return nil, domain.ErrSimulationRunning
	}
	defer s.cycle.Unlock()
	metrics.SimulationsRunning.Inc()
	defer metrics.SimulationsRunning.Dec()
	started := time.Now()

	tx, err := s.store.BeginTx(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	fleet, book, err := loadCycle(ctx, tx)
	if err != nil {
		return nil, err
	}
	plan := replayPlan(fleet, book)
	if plan.Empty() {
		s.log.Warn().Msg("no routes allocated, nothing to simulate")
	}
	now := s.now()
	report, err := simulation.RunBatch(fleet, book, plan, now)
	if err != nil {
		return nil, err
	}
	if err := s.persistCycle(ctx, tx, fleet, book, report.Notices, now); err != nil {
		return nil, err
	}
	runID := s.newID()
	if err := tx.EnqueueEvent(ctx, events.NewSimulationEvent(events.EventSimulationCompleted, runID, metrics.ModeBatch, report, now)); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	metrics.SimulationDuration.WithLabelValues(metrics.ModeBatch).Observe(time.Since(started).Seconds())
	countNotices(metrics.ModeBatch, report.Notices)
	s.log.Info().
		Str("run_id", runID).
		Int("deliveries", report.Deliveries).
		Float64("mean_distance_km", report.MeanDistanceKm).
		Int("most_efficient_drone", report.MostEfficientDroneID).
		Msg("batch simulation complete")
	return report, nil
}

// RunStepped drives the stepped engine over the current plan, rendering every
// snapshot. The final state is persisted even when ctx is cancelled mid-run.
func (s *Service) RunStepped(ctx context.Context, renderer simulation.Renderer, interval time.Duration) (simulation.Summary, error) {
	if !s.cycle.TryLock() {
		return simulation.Summary{}, domain.ErrSimulationRunning
	}
	defer s.cycle.Unlock()
	metrics.SimulationsRunning.Inc()
	defer metrics.SimulationsRunning.Dec()
	started := time.Now()

	fleet, book, err := s.snapshotCycle(ctx)
	if err != nil {
		return simulation.Summary{}, err
	}
	plan := replayPlan(fleet, book)
	if plan.Empty() {
		s.log.Warn().Msg("no routes allocated, nothing to simulate")
	}

	opts := []simulation.Option{simulation.WithLogger(s.log), simulation.WithClock(s.now)}
	if s.opts.MaxSteps > 0 {
		opts = append(opts, simulation.WithMaxSteps(s.opts.MaxSteps))
	}
	engine, err := simulation.NewEngine(fleet, book, plan, opts...)
	if err != nil {
		return simulation.Summary{}, err
	}

	var notices []simulation.Notice
	tap := simulation.RendererFunc(func(snap simulation.Snapshot) {
		metrics.SimulationSteps.Inc()
		notices = append(notices, snap.Notices...)
		if renderer != nil {
			renderer.Render(snap)
		}
	})
	summary, runErr := engine.Run(ctx, tap, interval)

	// persist with a context that survives the caller hanging up
	persistCtx := context.WithoutCancel(ctx)
	eventType := events.EventSimulationCompleted
	if runErr != nil {
		eventType = events.EventSimulationInterrupted
	}
	if err := s.commitCycle(persistCtx, fleet, book, notices, eventType, summary); err != nil {
		return summary, errors.Join(runErr, err)
	}

	metrics.SimulationDuration.WithLabelValues(metrics.ModeStepped).Observe(time.Since(started).Seconds())
	countNotices(metrics.ModeStepped, notices)
	logEvt := s.log.Info()
	if runErr != nil {
		logEvt = s.log.Warn().Err(runErr)
	}
	logEvt.Int("steps", summary.Steps).Int("deliveries", summary.Deliveries).Int("forced_returns", summary.ForcedReturns).Msg("stepped simulation finished")
	return summary, runErr
}

// Dispatch plans the pending orders and replays the plan in batch mode.
func (s *Service) Dispatch(ctx context.Context) (*domain.Plan, *simulation.Report, error) {
	plan, err := s.PlanCycle(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("plan cycle: %w", err)
	}
	report, err := s.RunBatch(ctx)
	if err != nil {
		return plan, nil, fmt.Errorf("batch simulation: %w", err)
	}
	return plan, report, nil
}

func (s *Service) snapshotCycle(ctx context.Context) ([]*domain.Drone, domain.OrderBook, error) {
	tx, err := s.store.BeginTx(ctx)
	if err != nil {
		return nil, nil, err
	}
	defer tx.Rollback(ctx)
	fleet, book, err := loadCycle(ctx, tx)
	if err != nil {
		return nil, nil, err
	}
	return fleet, book, tx.Commit(ctx)
}

func (s *Service) commitCycle(ctx context.Context, fleet []*domain.Drone, book domain.OrderBook, notices []simulation.Notice, eventType string, summary simulation.Summary) error {
	tx, err := s.store.BeginTx(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)
	now := s.now()
	if err := s.persistCycle(ctx, tx, fleet, book, notices, now); err != nil {
		return err
	}
	if err := tx.EnqueueEvent(ctx, events.NewSimulationEvent(eventType, s.newID(), metrics.ModeStepped, summary, now)); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// loadCycle reads the fleet and every order still on a route.
func loadCycle(ctx context.Context, tx Tx) ([]*domain.Drone, domain.OrderBook, error) {
	fleet, err := tx.ListDronesForUpdate(ctx)
	if err != nil {
		return nil, nil, err
	}
	orders, err := tx.ListOrdersForUpdate(ctx, domain.OrderStatusAssigned, domain.OrderStatusInTransit)
	if err != nil {
		return nil, nil, err
	}
	return fleet, domain.NewOrderBook(orders), nil
}

// replayPlan rebuilds the plan from the drones' routes, leaving out orders
// that are no longer waiting for delivery.
func replayPlan(fleet []*domain.Drone, book domain.OrderBook) domain.Plan {
	plan := domain.PlanFromFleet(fleet)
	for i := range plan.Routes {
		plan.Routes[i].OrderIDs = slices.DeleteFunc(plan.Routes[i].OrderIDs, func(id string) bool {
			_, ok := book.Get(id)
			return !ok
		})
	}
	return plan
}

func (s *Service) persistCycle(ctx context.Context, tx Tx, fleet []*domain.Drone, book domain.OrderBook, notices []simulation.Notice, now time.Time) error {
	for _, o := range book {
		if err := tx.UpdateOrder(ctx, o); err != nil {
			return err
		}
	}
	byID := make(map[int]*domain.Drone, len(fleet))
	for _, d := range fleet {
		byID[d.ID] = d
		if err := tx.UpdateDrone(ctx, d); err != nil {
			return err
		}
	}
	for _, n := range notices {
		evt, ok := noticeEvent(n, book, byID, now)
		if !ok {
			continue
		}
		if err := tx.EnqueueEvent(ctx, evt); err != nil {
			return err
		}
	}
	return nil
}

func noticeEvent(n simulation.Notice, book domain.OrderBook, fleet map[int]*domain.Drone, now time.Time) (events.Event, bool) {
	switch n.Kind {
	case simulation.NoticeDeparted, simulation.NoticeDelivered:
		order, ok := book.Get(n.OrderID)
		if !ok {
			return events.Event{}, false
		}
		eventType := events.EventOrderInTransit
		if n.Kind == simulation.NoticeDelivered {
			eventType = events.EventOrderDelivered
		}
		snapshot := *order
		if eventType == events.EventOrderInTransit {
			snapshot.Status = domain.OrderStatusInTransit
		} else {
			snapshot.Status = domain.OrderStatusDelivered
		}
		return events.NewOrderEvent(eventType, &snapshot, now), true
	case simulation.NoticeForcedReturn, simulation.NoticeRecharged:
		drone, ok := fleet[n.DroneID]
		if !ok {
			return events.Event{}, false
		}
		eventType := events.EventDroneRecharged
		if n.Kind == simulation.NoticeForcedReturn {
			eventType = events.EventDroneForcedReturn
		}
		snapshot := *drone
		snapshot.Battery = n.Battery
		return events.NewDroneEvent(eventType, &snapshot, now), true
	default:
		return events.Event{}, false
	}
}

func countNotices(mode string, notices []simulation.Notice) {
	for _, n := range notices {
		switch n.Kind {
		case simulation.NoticeDelivered:
			metrics.Deliveries.WithLabelValues(mode).Inc()
		case simulation.NoticeRecharged:
			metrics.Recharges.WithLabelValues(mode).Inc()
		case simulation.NoticeForcedReturn:
			metrics.ForcedReturns.WithLabelValues(mode).Inc()
		}
	}
}
