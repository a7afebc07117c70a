package nats

import (
	"context"
	"encoding/json"

	"github.com/nats-io/nats.go"

	"drone-dispatch/internal/events"
)

const defaultSubject = "dispatch.events"

// Publisher sends every event to <subject>.<event type>, e.g.
// dispatch.events.order.delivered, so consumers can subscribe with wildcards.
type Publisher struct {
	nc      *nats.Conn
	subject string
}

func New(url, subject string) (*Publisher, error) {
	nc, err := nats.Connect(url, nats.Name("drone-dispatch"), nats.MaxReconnects(-1))
	if err != nil {
		return nil, err
	}
	if subject == "" {
		subject = defaultSubject
	}
	return &Publisher{nc: nc, subject: subject}, nil
}

func (p *Publisher) Publish(ctx context.Context, event events.Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	msg := nats.NewMsg(Subject(p.subject, event))
	msg.Header.Set("Event-Id", event.ID)
	msg.Header.Set("Event-Type", event.Type)
	msg.Data = data
	return p.nc.PublishMsg(msg)
}

func Subject(prefix string, event events.Event) string {
	return prefix + "." + event.Type
}

func (p *Publisher) Close() error {
	if p.nc != nil {
		return p.nc.Drain()
	}
	return nil
}

var _ events.Publisher = (*Publisher)(nil)
