package memorystore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/open-rails/billingkit/events"
)

// EventStore is an in-memory core.EventStore for tests and single-node dev
// runs. Semantics mirror the Postgres store: event_id is unique, duplicate
// inserts report false without error.
type EventStore struct {
	mu   sync.Mutex
	rows map[string]events.WebhookEvent
	now  func() time.Time
}

func NewEventStore() *EventStore {
	return &EventStore{
		rows: make(map[string]events.WebhookEvent),
		now:  time.Now,
	}
}

func (s *EventStore) Insert(ctx context.Context, ev events.WebhookEvent) (bool, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rows[ev.EventID]; ok {
		return false, nil
	}
	if ev.ID == uuid.Nil {
		ev.ID = uuid.New()
	}
	ev.CreatedAt = s.now()
	ev.Processed = false
	s.rows[ev.EventID] = ev
	return true, nil
}

func (s *EventStore) MarkProcessed(ctx context.Context, eventID string) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	ev, ok := s.rows[eventID]
	if !ok {
		return nil
	}
	now := s.now()
	ev.Processed = true
	ev.ProcessedAt = &now
	s.rows[eventID] = ev
	return nil
}

func (s *EventStore) ListUnprocessed(ctx context.Context, minAge time.Duration, limit int) ([]events.WebhookEvent, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	cutoff := s.now().Add(-minAge)
	var out []events.WebhookEvent
	for _, ev := range s.rows {
		if !ev.Processed && ev.CreatedAt.Before(cutoff) {
			out = append(out, ev)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Get returns the stored row for assertions in tests.
func (s *EventStore) Get(eventID string) (events.WebhookEvent, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ev, ok := s.rows[eventID]
	return ev, ok
}

// Len reports how many events have been logged.
func (s *EventStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.rows)
}
