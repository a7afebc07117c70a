package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"drone-dispatch/internal/domain"
	"drone-dispatch/internal/events"
	"drone-dispatch/internal/service"
)

type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

func (s *Store) BeginTx(ctx context.Context) (service.Tx, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	return &Tx{tx: tx}, nil
}

func (s *Store) GetOrder(ctx context.Context, id string) (*domain.Order, error) {
	row := s.pool.QueryRow(ctx, orderSelectByIDSQL, id)
	return scanOrder(row)
}

func (s *Store) ListOrders(ctx context.Context, filter service.OrderFilter) ([]*domain.Order, error) {
	status := sql.NullString{}
	if filter.Status != nil {
		status = sql.NullString{String: string(*filter.Status), Valid: true}
	}
	user := sql.NullString{String: filter.UserID, Valid: filter.UserID != ""}
	limit := filter.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	rows, err := s.pool.Query(ctx, orderListSQL, status, user, limit, filter.Offset)
	if err != nil {
		return nil, err
	}
	return collectOrders(rows)
}

func (s *Store) GetDrone(ctx context.Context, id int) (*domain.Drone, error) {
	row := s.pool.QueryRow(ctx, droneSelectByIDSQL, id)
	return scanDrone(row)
}

func (s *Store) ListDrones(ctx context.Context) ([]*domain.Drone, error) {
	rows, err := s.pool.Query(ctx, droneListSQL)
	if err != nil {
		return nil, err
	}
	return collectDrones(rows)
}

type Tx struct {
	tx pgx.Tx
}

func (t *Tx) Commit(ctx context.Context) error {
	return t.tx.Commit(ctx)
}

func (t *Tx) Rollback(ctx context.Context) error {
	err := t.tx.Rollback(ctx)
	if errors.Is(err, pgx.ErrTxClosed) {
		return nil
	}
	return err
}

func (t *Tx) ListOrdersForUpdate(ctx context.Context, statuses ...domain.OrderStatus) ([]*domain.Order, error) {
	vals := make([]string, 0, len(statuses))
	for _, status := range statuses {
		vals = append(vals, string(status))
	}
	rows, err := t.tx.Query(ctx, orderListForUpdateSQL, vals)
	if err != nil {
		return nil, err
	}
	return collectOrders(rows)
}

func (t *Tx) ListDronesForUpdate(ctx context.Context) ([]*domain.Drone, error) {
	rows, err := t.tx.Query(ctx, droneListForUpdateSQL)
	if err != nil {
		return nil, err
	}
	return collectDrones(rows)
}

func (t *Tx) MaxDroneID(ctx context.Context) (int, error) {
	var id int
	if err := t.tx.QueryRow(ctx, droneMaxIDSQL).Scan(&id); err != nil {
		return 0, err
	}
	return id, nil
}

func (t *Tx) CreateOrder(ctx context.Context, order *domain.Order) error {
	_, err := t.tx.Exec(ctx, orderInsertSQL,
		order.ID,
		order.UserID,
		order.Position.X,
		order.Position.Y,
		order.WeightKg,
		order.Priority,
		order.Arrival,
		order.Status,
		nullInt(order.AssignedDroneID),
		order.CreatedAt,
		order.UpdatedAt,
		nullTime(order.DeliveredAt),
	)
	return err
}

func (t *Tx) UpdateOrder(ctx context.Context, order *domain.Order) error {
	tag, err := t.tx.Exec(ctx, orderUpdateSQL,
		order.Status,
		nullInt(order.AssignedDroneID),
		order.UpdatedAt,
		nullTime(order.DeliveredAt),
		order.ID,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (t *Tx) CreateDrone(ctx context.Context, drone *domain.Drone) error {
	_, err := t.tx.Exec(ctx, droneInsertSQL,
		drone.ID,
		drone.CapacityKg,
		drone.RangeKm,
		drone.Position.X,
		drone.Position.Y,
		drone.Battery,
		drone.Status,
		routeArray(drone.Route),
		drone.Cursor,
		nullString(drone.TargetID),
		drone.CreatedAt,
		drone.UpdatedAt,
	)
	return err
}

func (t *Tx) UpdateDrone(ctx context.Context, drone *domain.Drone) error {
	tag, err := t.tx.Exec(ctx, droneUpdateSQL,
		drone.Position.X,
		drone.Position.Y,
		drone.Battery,
		drone.Status,
		routeArray(drone.Route),
		drone.Cursor,
		nullString(drone.TargetID),
		drone.UpdatedAt,
		drone.ID,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (t *Tx) EnqueueEvent(ctx context.Context, event events.Event) error {
	_, err := t.tx.Exec(ctx, outboxInsertSQL,
		event.ID,
		event.Type,
		event.AggregateType,
		event.AggregateID,
		[]byte(event.Payload),
		event.OccurredAt,
	)
	return err
}

func collectOrders(rows pgx.Rows) ([]*domain.Order, error) {
	defer rows.Close()
	var orders []*domain.Order
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, order)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return orders, nil
}

func collectDrones(rows pgx.Rows) ([]*domain.Drone, error) {
	defer rows.Close()
	var drones []*domain.Drone
	for rows.Next() {
		drone, err := scanDrone(rows)
		if err != nil {
			return nil, err
		}
		drones = append(drones, drone)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return drones, nil
}

func scanOrder(row pgx.Row) (*domain.Order, error) {
	var (
		assignedDroneID sql.NullInt64
		deliveredAt     sql.NullTime
	)
	order := &domain.Order{}
	err := row.Scan(
		&order.ID,
		&order.UserID,
		&order.Position.X,
		&order.Position.Y,
		&order.WeightKg,
		&order.Priority,
		&order.Arrival,
		&order.Status,
		&assignedDroneID,
		&order.CreatedAt,
		&order.UpdatedAt,
		&deliveredAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	if assignedDroneID.Valid {
		id := int(assignedDroneID.Int64)
		order.AssignedDroneID = &id
	}
	if deliveredAt.Valid {
		order.DeliveredAt = &deliveredAt.Time
	}
	return order, nil
}

func scanDrone(row pgx.Row) (*domain.Drone, error) {
	var targetID sql.NullString
	drone := &domain.Drone{}
	err := row.Scan(
		&drone.ID,
		&drone.CapacityKg,
		&drone.RangeKm,
		&drone.Position.X,
		&drone.Position.Y,
		&drone.Battery,
		&drone.Status,
		&drone.Route,
		&drone.Cursor,
		&targetID,
		&drone.CreatedAt,
		&drone.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	drone.TargetID = targetID.String
	if len(drone.Route) == 0 {
		drone.Route = nil
	}
	return drone, nil
}

func routeArray(route []string) []string {
	if route == nil {
		return []string{}
	}
	return route
}

func nullString(v string) sql.NullString {
	return sql.NullString{String: v, Valid: v != ""}
}

func nullInt(v *int) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}

func nullTime(v *time.Time) sql.NullTime {
	if v == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *v, Valid: true}
}

var (
	_ service.Store           = (*Store)(nil)
	_ events.OutboxRepository = (*Store)(nil)
)
