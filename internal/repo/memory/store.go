// Package memory is a process-local Store. Transactions are serialised by a
// single lock and their writes become visible on Commit.
package memory

import (
	"context"
	"slices"
	"sync"

	"drone-dispatch/internal/domain"
	"drone-dispatch/internal/events"
	"drone-dispatch/internal/service"
)

type outboxEntry struct {
	event     events.Event
	published bool
}

type Store struct {
	mu     sync.Mutex
	orders map[string]*domain.Order
	drones map[int]*domain.Drone
	outbox []outboxEntry
}

func NewStore() *Store {
	return &Store{
		orders: make(map[string]*domain.Order),
		drones: make(map[int]*domain.Drone),
	}
}

func (s *Store) BeginTx(ctx context.Context) (service.Tx, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	return &Tx{
		store:  s,
		orders: make(map[string]*domain.Order),
		drones: make(map[int]*domain.Drone),
	}, nil
}

func (s *Store) GetOrder(ctx context.Context, id string) (*domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	order, ok := s.orders[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return cloneOrder(order), nil
}

func (s *Store) ListOrders(ctx context.Context, filter service.OrderFilter) ([]*domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var orders []*domain.Order
	for _, order := range s.orders {
		if filter.Status != nil && order.Status != *filter.Status {
			continue
		}
		if filter.UserID != "" && order.UserID != filter.UserID {
			continue
		}
		orders = append(orders, cloneOrder(order))
	}
	sortOrders(orders)
	limit := filter.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	if filter.Offset >= len(orders) {
		return nil, nil
	}
	orders = orders[filter.Offset:]
	if len(orders) > limit {
		orders = orders[:limit]
	}
	return orders, nil
}

func (s *Store) GetDrone(ctx context.Context, id int) (*domain.Drone, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	drone, ok := s.drones[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return drone.Clone(), nil
}

func (s *Store) ListDrones(ctx context.Context) ([]*domain.Drone, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fleetLocked(), nil
}

func (s *Store) fleetLocked() []*domain.Drone {
	drones := make([]*domain.Drone, 0, len(s.drones))
	for _, drone := range s.drones {
		drones = append(drones, drone.Clone())
	}
	slices.SortFunc(drones, func(a, b *domain.Drone) int { return a.ID - b.ID })
	return drones
}

// Events returns every event committed so far, published or not.
func (s *Store) Events() []events.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]events.Event, 0, len(s.outbox))
	for _, entry := range s.outbox {
		out = append(out, entry.event)
	}
	return out
}

func (s *Store) FetchPending(ctx context.Context, limit int) ([]events.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if limit <= 0 {
		limit = 50
	}
	var out []events.Event
	for _, entry := range s.outbox {
		if entry.published {
			continue
		}
		out = append(out, entry.event)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (s *Store) MarkPublished(ctx context.Context, ids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.outbox {
		if slices.Contains(ids, s.outbox[i].event.ID) {
			s.outbox[i].published = true
		}
	}
	return nil
}

type Tx struct {
	store  *Store
	orders map[string]*domain.Order
	drones map[int]*domain.Drone
	events []events.Event
	closed bool
}

func (t *Tx) Commit(ctx context.Context) error {
	if t.closed {
		return nil
	}
	for id, order := range t.orders {
		t.store.orders[id] = order
	}
	for id, drone := range t.drones {
		t.store.drones[id] = drone
	}
	for _, evt := range t.events {
		t.store.outbox = append(t.store.outbox, outboxEntry{event: evt})
	}
	return t.close()
}

func (t *Tx) Rollback(ctx context.Context) error {
	return t.close()
}

func (t *Tx) close() error {
	if t.closed {
		return nil
	}
	t.closed = true
	t.store.mu.Unlock()
	return nil
}

func (t *Tx) order(id string) (*domain.Order, bool) {
	if order, ok := t.orders[id]; ok {
		return order, true
	}
	order, ok := t.store.orders[id]
	return order, ok
}

func (t *Tx) ListOrdersForUpdate(ctx context.Context, statuses ...domain.OrderStatus) ([]*domain.Order, error) {
	seen := make(map[string]bool)
	var orders []*domain.Order
	add := func(order *domain.Order) {
		if seen[order.ID] {
			return
		}
		seen[order.ID] = true
		if len(statuses) > 0 && !slices.Contains(statuses, order.Status) {
			return
		}
		orders = append(orders, cloneOrder(order))
	}
	for _, order := range t.orders {
		add(order)
	}
	for _, order := range t.store.orders {
		add(order)
	}
	sortOrders(orders)
	return orders, nil
}

func (t *Tx) ListDronesForUpdate(ctx context.Context) ([]*domain.Drone, error) {
	merged := make(map[int]*domain.Drone, len(t.store.drones))
	for id, drone := range t.store.drones {
		merged[id] = drone
	}
	for id, drone := range t.drones {
		merged[id] = drone
	}
	drones := make([]*domain.Drone, 0, len(merged))
	for _, drone := range merged {
		drones = append(drones, drone.Clone())
	}
	slices.SortFunc(drones, func(a, b *domain.Drone) int { return a.ID - b.ID })
	return drones, nil
}

func (t *Tx) MaxDroneID(ctx context.Context) (int, error) {
	last := 0
	for id := range t.store.drones {
		last = max(last, id)
	}
	for id := range t.drones {
		last = max(last, id)
	}
	return last, nil
}

func (t *Tx) CreateOrder(ctx context.Context, order *domain.Order) error {
	if _, ok := t.order(order.ID); ok {
		return domain.ErrConflict
	}
	t.orders[order.ID] = cloneOrder(order)
	return nil
}

func (t *Tx) UpdateOrder(ctx context.Context, order *domain.Order) error {
	if _, ok := t.order(order.ID); !ok {
		return domain.ErrNotFound
	}
	t.orders[order.ID] = cloneOrder(order)
	return nil
}

func (t *Tx) CreateDrone(ctx context.Context, drone *domain.Drone) error {
	if _, ok := t.drones[drone.ID]; ok {
		return domain.ErrConflict
	}
	if _, ok := t.store.drones[drone.ID]; ok {
		return domain.ErrConflict
	}
	t.drones[drone.ID] = drone.Clone()
	return nil
}

func (t *Tx) UpdateDrone(ctx context.Context, drone *domain.Drone) error {
	_, staged := t.drones[drone.ID]
	_, stored := t.store.drones[drone.ID]
	if !staged && !stored {
		return domain.ErrNotFound
	}
	t.drones[drone.ID] = drone.Clone()
	return nil
}

func (t *Tx) EnqueueEvent(ctx context.Context, event events.Event) error {
	t.events = append(t.events, event)
	return nil
}

func cloneOrder(order *domain.Order) *domain.Order {
	c := *order
	if order.AssignedDroneID != nil {
		id := *order.AssignedDroneID
		c.AssignedDroneID = &id
	}
	if order.DeliveredAt != nil {
		at := *order.DeliveredAt
		c.DeliveredAt = &at
	}
	return &c
}

func sortOrders(orders []*domain.Order) {
	slices.SortFunc(orders, func(a, b *domain.Order) int {
		switch {
		case a.Arrival < b.Arrival:
			return -1
		case a.Arrival > b.Arrival:
			return 1
		case a.ID < b.ID:
			return -1
		case a.ID > b.ID:
			return 1
		}
		return 0
	})
}

var (
	_ service.Store           = (*Store)(nil)
	_ events.OutboxRepository = (*Store)(nil)
)

