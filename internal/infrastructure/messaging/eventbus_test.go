package messaging

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/obe-hub/gamification-core/internal/domain/shared"
)

func newTestBus(async bool) *InMemoryEventBus {
	cfg := DefaultInMemoryEventBusConfig()
	cfg.AsyncMode = async
	cfg.WorkerPoolSize = 2
	return NewInMemoryEventBus(cfg)
}

func TestInMemoryEventBus_RoutesByType(t *testing.T) {
	bus := newTestBus(false)

	var xp, levels, all int32
	require.NoError(t, bus.Subscribe(shared.EventXPAwarded, func(context.Context, shared.Event) error {
		atomic.AddInt32(&xp, 1)
		return nil
	}))
	require.NoError(t, bus.Subscribe(shared.EventLevelUp, func(context.Context, shared.Event) error {
		atomic.AddInt32(&levels, 1)
		return nil
	}))
	require.NoError(t, bus.SubscribeAll(func(context.Context, shared.Event) error {
		atomic.AddInt32(&all, 1)
		return nil
	}))

	now := time.Now()
	require.NoError(t, bus.Publish(shared.NewXPAwardedEvent("s1", 10, 10, 1, "login", now)))
	require.NoError(t, bus.Publish(shared.NewXPAwardedEvent("s1", 10, 20, 1, "login", now)))
	require.NoError(t, bus.Publish(shared.NewLevelUpEvent("s1", 1, 2, 120, now)))

	assert.Equal(t, int32(2), xp)
	assert.Equal(t, int32(1), levels)
	assert.Equal(t, int32(3), all)
}

func TestInMemoryEventBus_AsyncDrain(t *testing.T) {
	bus := newTestBus(true)

	var calls int32
	require.NoError(t, bus.Subscribe(shared.EventXPAwarded, func(context.Context, shared.Event) error {
		time.Sleep(5 * time.Millisecond)
		atomic.AddInt32(&calls, 1)
		return nil
	}))

	for i := 0; i < 6; i++ {
		require.NoError(t, bus.Publish(shared.NewXPAwardedEvent("s1", 1, i, 1, "quest", time.Now())))
	}
	bus.Drain()

	assert.Equal(t, int32(6), atomic.LoadInt32(&calls))
	snap := bus.Metrics().Snapshot()
	assert.Equal(t, int64(6), snap.TotalPublished)
	assert.Equal(t, int64(6), snap.TotalHandlerExecs)
}

func TestInMemoryEventBus_HandlerFailuresAreContained(t *testing.T) {
	bus := newTestBus(false)

	var after int32
	require.NoError(t, bus.Subscribe(shared.EventLevelUp, func(context.Context, shared.Event) error {
		return errors.New("smtp down")
	}))
	require.NoError(t, bus.Subscribe(shared.EventLevelUp, func(context.Context, shared.Event) error {
		panic("boom")
	}))
	require.NoError(t, bus.Subscribe(shared.EventLevelUp, func(context.Context, shared.Event) error {
		atomic.AddInt32(&after, 1)
		return nil
	}))

	err := bus.Publish(shared.NewLevelUpEvent("s1", 1, 2, 120, time.Now()))
	require.NoError(t, err)
	assert.Equal(t, int32(1), after)

	snap := bus.Metrics().Snapshot()
	assert.Equal(t, int64(2), snap.HandlerFailures)
}

func TestInMemoryEventBus_HandlerGetsDeadline(t *testing.T) {
	cfg := DefaultInMemoryEventBusConfig()
	cfg.AsyncMode = false
	cfg.HandlerTimeout = time.Second
	bus := NewInMemoryEventBus(cfg)

	var hasDeadline bool
	require.NoError(t, bus.SubscribeAll(func(ctx context.Context, _ shared.Event) error {
		_, hasDeadline = ctx.Deadline()
		return nil
	}))
	require.NoError(t, bus.Publish(shared.NewLevelUpEvent("s1", 1, 2, 120, time.Now())))
	assert.True(t, hasDeadline)
}

func TestInMemoryEventBus_Closed(t *testing.T) {
	bus := newTestBus(true)
	require.NoError(t, bus.Close())
	require.NoError(t, bus.Close())

	assert.ErrorIs(t, bus.Publish(shared.NewLevelUpEvent("s1", 1, 2, 120, time.Now())), ErrEventBusClosed)
	assert.ErrorIs(t, bus.SubscribeAll(func(context.Context, shared.Event) error { return nil }), ErrEventBusClosed)
	assert.Error(t, bus.Subscribe(shared.EventLevelUp, nil))
}
