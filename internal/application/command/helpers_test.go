package command

import (
	"context"
	"sync"
	"time"

	"github.com/obe-hub/gamification-core/internal/domain/notification"
	"github.com/obe-hub/gamification-core/internal/domain/shared"
	"github.com/obe-hub/gamification-core/internal/infrastructure/persistence/memory"
	"github.com/obe-hub/gamification-core/pkg/timeutil"
)

// recordingPublisher keeps published events in order.
type recordingPublisher struct {
	mu     sync.Mutex
	events []shared.Event
	err    error
}

func (p *recordingPublisher) Publish(e shared.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, e)
	return nil
}

func (p *recordingPublisher) ofType(t shared.EventType) []shared.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]shared.Event, 0)
	for _, e := range p.events {
		if e.EventType() == t {
			out = append(out, e)
		}
	}
	return out
}

// recordingViews remembers which state views were dropped.
type recordingViews struct {
	mu      sync.Mutex
	dropped []string
	err     error
}

func (v *recordingViews) InvalidateStateView(_ context.Context, studentID string) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.dropped = append(v.dropped, studentID)
	return v.err
}

func (v *recordingViews) Dropped() []string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]string(nil), v.dropped...)
}

// storeSink writes notifications straight into the memory store.
func storeSink(store *memory.Store) notification.Sink {
	repo := store.Notifications()
	return notification.SinkFunc(func(ctx context.Context, n notification.Notification) error {
		return repo.Insert(ctx, n)
	})
}

func fixedClock() *timeutil.FixedClock {
	return timeutil.NewFixedClock(time.Date(2026, 3, 10, 14, 30, 0, 0, time.UTC))
}
