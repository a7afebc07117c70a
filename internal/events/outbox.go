package events

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

type Publisher interface {
	Publish(ctx context.Context, event Event) error
	Close() error
}

type OutboxRepository interface {
	FetchPending(ctx context.Context, limit int) ([]Event, error)
	MarkPublished(ctx context.Context, ids []string) error
}

// OutboxWorker relays committed events to a Publisher on every tick.
type OutboxWorker struct {
	Repo         OutboxRepository
	Publisher    Publisher
	PollInterval time.Duration
	BatchSize    int
	Logger       zerolog.Logger
}

func (w *OutboxWorker) Start(ctx context.Context) error {
	if w.PollInterval <= 0 {
		w.PollInterval = time.Second
	}
	if w.BatchSize <= 0 {
		w.BatchSize = 50
	}

	ticker := time.NewTicker(w.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			w.relay(ctx)
		}
	}
}

func (w *OutboxWorker) relay(ctx context.Context) int {
	evts, err := w.Repo.FetchPending(ctx, w.BatchSize)
	if err != nil {
		w.Logger.Error().Err(err).Msg("outbox fetch")
		return 0
	}
	if len(evts) == 0 {
		return 0
	}
	published := make([]string, 0, len(evts))
	for _, evt := range evts {
		if err := w.Publisher.Publish(ctx, evt); err != nil {
			w.Logger.Error().Err(err).Str("event_id", evt.ID).Str("type", evt.Type).Msg("outbox publish")
			continue
		}
		published = append(published, evt.ID)
	}
	if err := w.Repo.MarkPublished(ctx, published); err != nil {
		w.Logger.Error().Err(err).Msg("outbox mark published")
		return 0
	}
	w.Logger.Debug().Int("count", len(published)).Msg("outbox relayed")
	return len(published)
}
