package events

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

type fakeRepo struct {
	mu        sync.Mutex
	pending   []Event
	published []string
}

func (r *fakeRepo) FetchPending(ctx context.Context, limit int) ([]Event, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.pending) > limit {
		return append([]Event(nil), r.pending[:limit]...), nil
	}
	return append([]Event(nil), r.pending...), nil
}

func (r *fakeRepo) MarkPublished(ctx context.Context, ids []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.published = append(r.published, ids...)
	keep := r.pending[:0]
	for _, evt := range r.pending {
		found := false
		for _, id := range ids {
			if id == evt.ID {
				found = true
			}
		}
		if !found {
			keep = append(keep, evt)
		}
	}
	r.pending = keep
	return nil
}

type flakyPublisher struct {
	failType string
	sent     []Event
}

func (p *flakyPublisher) Publish(ctx context.Context, event Event) error {
	if event.Type == p.failType {
		return errors.New("broker unavailable")
	}
	p.sent = append(p.sent, event)
	return nil
}

func (p *flakyPublisher) Close() error { return nil }

func TestOutboxRelayKeepsFailedEvents(t *testing.T) {
	now := time.Now()
	ok := NewEvent(EventOrderSubmitted, AggregateOrder, "o1", map[string]string{"k": "v"}, now)
	bad := NewEvent(EventDroneRecharged, AggregateDrone, "drone-1", nil, now)
	repo := &fakeRepo{pending: []Event{ok, bad}}
	pub := &flakyPublisher{failType: EventDroneRecharged}
	w := &OutboxWorker{Repo: repo, Publisher: pub, BatchSize: 10, Logger: zerolog.Nop()}

	n := w.relay(context.Background())

	require.Equal(t, 1, n)
	require.Equal(t, []string{ok.ID}, repo.published)
	require.Len(t, repo.pending, 1)
	require.Equal(t, bad.ID, repo.pending[0].ID)
	require.Len(t, pub.sent, 1)
}

func TestOutboxWorkerStopsOnCancel(t *testing.T) {
	repo := &fakeRepo{pending: []Event{NewEvent(EventOrderReset, AggregateOrder, "o1", nil, time.Now())}}
	pub := &flakyPublisher{}
	w := &OutboxWorker{Repo: repo, Publisher: pub, PollInterval: 5 * time.Millisecond, Logger: zerolog.Nop()}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Start(ctx) }()

	require.Eventually(t, func() bool {
		repo.mu.Lock()
		defer repo.mu.Unlock()
		return len(repo.published) == 1
	}, time.Second, 5*time.Millisecond)
	cancel()
	require.ErrorIs(t, <-done, context.Canceled)
}
