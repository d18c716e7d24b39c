package workers

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/omnibank/backoffice/internal/entities"
)

type passthroughTransactor struct{}

func (passthroughTransactor) WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

// fakeOutbox mirrors the repository's retry semantics: a failed delivery
// leaves the event pending until maxAttempts is reached.
type fakeOutbox struct {
	mu     sync.Mutex
	events []entities.OutboxEvent
}

func (s *fakeOutbox) FetchPending(_ context.Context, limit int) ([]entities.OutboxEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []entities.OutboxEvent
	for _, event := range s.events {
		if event.Status == entities.OutboxPending && len(out) < limit {
			out = append(out, event)
		}
	}
	return out, nil
}

func (s *fakeOutbox) MarkProcessed(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.events {
		if s.events[i].ID == id {
			s.events[i].Status = entities.OutboxProcessed
			s.events[i].Attempts++
		}
	}
	return nil
}

func (s *fakeOutbox) MarkFailed(_ context.Context, id string, maxAttempts int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.events {
		if s.events[i].ID == id {
			s.events[i].Attempts++
			if s.events[i].Attempts >= maxAttempts {
				s.events[i].Status = entities.OutboxFailed
			}
		}
	}
	return nil
}

func (s *fakeOutbox) event(t *testing.T, id string) entities.OutboxEvent {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, event := range s.events {
		if event.ID == id {
			return event
		}
	}
	t.Fatalf("event %s not found", id)
	return entities.OutboxEvent{}
}

// flakyPublisher fails the first N deliveries, then succeeds.
type flakyPublisher struct {
	failures  int
	calls     int
	published [][]byte
}

func (p *flakyPublisher) Publish(_ context.Context, _ string, payload []byte) error {
	p.calls++
	if p.calls <= p.failures {
		return fmt.Errorf("broker unavailable")
	}
	p.published = append(p.published, payload)
	return nil
}

func newRelay(outbox *fakeOutbox, publisher *flakyPublisher, maxAttempts int) *OutboxRelay {
	return NewOutboxRelay(slog.Default(), passthroughTransactor{}, outbox, publisher,
		time.Second, 100, maxAttempts)
}

func TestOutboxRelayRetriesTransientFailure(t *testing.T) {
	event := entities.NewOutboxEvent("transfer.approve", []byte(`{"entity_id":5}`))
	outbox := &fakeOutbox{events: []entities.OutboxEvent{*event}}
	publisher := &flakyPublisher{failures: 1}
	relay := newRelay(outbox, publisher, 5)

	// First drain hits the broker outage; the event stays pending
	require.NoError(t, relay.drain(context.Background()))
	got := outbox.event(t, event.ID)
	require.Equal(t, entities.OutboxPending, got.Status)
	require.Equal(t, 1, got.Attempts)
	require.Empty(t, publisher.published)

	// Next drain retries and delivers
	require.NoError(t, relay.drain(context.Background()))
	got = outbox.event(t, event.ID)
	require.Equal(t, entities.OutboxProcessed, got.Status)
	require.Len(t, publisher.published, 1)
}

func TestOutboxRelayParksEventAfterMaxAttempts(t *testing.T) {
	event := entities.NewOutboxEvent("transfer.approve", []byte(`{"entity_id":5}`))
	outbox := &fakeOutbox{events: []entities.OutboxEvent{*event}}
	publisher := &flakyPublisher{failures: 100}
	relay := newRelay(outbox, publisher, 2)

	require.NoError(t, relay.drain(context.Background()))
	require.NoError(t, relay.drain(context.Background()))

	got := outbox.event(t, event.ID)
	require.Equal(t, entities.OutboxFailed, got.Status)
	require.Equal(t, 2, got.Attempts)

	// Parked events are not fetched again
	require.NoError(t, relay.drain(context.Background()))
	require.Equal(t, 2, publisher.calls)
}
