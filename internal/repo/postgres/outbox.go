package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"

	"drone-dispatch/internal/events"
)

func (s *Store) FetchPending(ctx context.Context, limit int) ([]events.Event, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx, outboxFetchPendingSQL, limit)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, scanOutboxEvent)
}

func (s *Store) MarkPublished(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := s.pool.Exec(ctx, outboxMarkPublishedSQL, ids)
	return err
}

func scanOutboxEvent(row pgx.CollectableRow) (events.Event, error) {
	var (
		evt     events.Event
		payload []byte
	)
	if err := row.Scan(&evt.ID, &evt.Type, &evt.AggregateType, &evt.AggregateID, &payload, &evt.OccurredAt); err != nil {
		return events.Event{}, err
	}
	evt.Payload = payload
	return evt, nil
}
