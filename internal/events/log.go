package events

import (
	"context"

	"github.com/rs/zerolog"
)

// LogPublisher writes events to the log instead of a broker.
type LogPublisher struct {
	Logger zerolog.Logger
}

func (p LogPublisher) Publish(ctx context.Context, event Event) error {
	p.Logger.Info().
		Str("event_id", event.ID).
		Str("type", event.Type).
		Str("aggregate", event.AggregateType+"/"+event.AggregateID).
		RawJSON("payload", event.Payload).
		Msg("event")
	return nil
}

func (LogPublisher) Close() error {
	return nil
}
