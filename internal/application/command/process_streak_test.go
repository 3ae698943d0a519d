package command

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/obe-hub/gamification-core/internal/domain/gamification"
	"github.com/obe-hub/gamification-core/internal/domain/shared"
	"github.com/obe-hub/gamification-core/internal/infrastructure/persistence/memory"
	"github.com/obe-hub/gamification-core/pkg/timeutil"
)

func TestProcessStreak_FirstLogin(t *testing.T) {
	store := memory.New()
	clock := fixedClock()
	h := NewProcessStreakHandler(store.States(), &recordingPublisher{}, clock, nil)

	res, err := h.Handle(context.Background(), ProcessStreakCommand{StudentID: "s1"})
	require.NoError(t, err)
	assert.Equal(t, 1, res.StreakCount)
	assert.Nil(t, res.MilestoneReached)
	assert.False(t, res.StreakFrozen)

	state, err := store.States().Get(context.Background(), "s1")
	require.NoError(t, err)
	require.NotNil(t, state.LastLoginDate)
	assert.True(t, timeutil.IsSameDay(*state.LastLoginDate, clock.Now()))
}

func TestProcessStreak_InvalidatesStateView(t *testing.T) {
	store := memory.New()
	clock := fixedClock()
	views := &recordingViews{}
	h := NewProcessStreakHandler(store.States(), &recordingPublisher{}, clock, nil).WithStateViewInvalidator(views)
	ctx := context.Background()

	_, err := h.Handle(ctx, ProcessStreakCommand{StudentID: "s1"})
	require.NoError(t, err)
	assert.Equal(t, []string{"s1"}, views.Dropped())

	// Same-day repeat writes nothing, so the view stays.
	_, err = h.Handle(ctx, ProcessStreakCommand{StudentID: "s1"})
	require.NoError(t, err)
	assert.Len(t, views.Dropped(), 1)

	views.err = errors.New("redis: connection refused")
	clock.AddDays(1)
	res, err := h.Handle(ctx, ProcessStreakCommand{StudentID: "s1"})
	require.NoError(t, err, "a failed invalidation never fails the streak")
	assert.Equal(t, 2, res.StreakCount)
	assert.Len(t, views.Dropped(), 2)
}

func TestProcessStreak_SameDayIdempotence(t *testing.T) {
	store := memory.New()
	clock := fixedClock()
	h := NewProcessStreakHandler(store.States(), &recordingPublisher{}, clock, nil)
	ctx := context.Background()

	first, err := h.Handle(ctx, ProcessStreakCommand{StudentID: "s1"})
	require.NoError(t, err)

	clock.Set(clock.Now().Add(6 * time.Hour)) // later the same UTC day
	second, err := h.Handle(ctx, ProcessStreakCommand{StudentID: "s1"})
	require.NoError(t, err)

	assert.Equal(t, first.StreakCount, second.StreakCount)
	assert.False(t, second.Updated)
	assert.Equal(t, 1, store.Writes(memory.OpStateUpsertStreak))
}

func TestProcessStreak_ConsecutiveDays(t *testing.T) {
	store := memory.New()
	clock := fixedClock()
	h := NewProcessStreakHandler(store.States(), &recordingPublisher{}, clock, nil)
	ctx := context.Background()

	for day := 1; day <= 5; day++ {
		res, err := h.Handle(ctx, ProcessStreakCommand{StudentID: "s1"})
		require.NoError(t, err)
		assert.Equal(t, day, res.StreakCount)
		clock.AddDays(1)
	}
}

func TestProcessStreak_ResetLaw(t *testing.T) {
	store := memory.New()
	clock := fixedClock()
	d := timeutil.StartOfDay(clock.Now())
	store.PutState(gamification.State{StudentID: "s1", StreakCount: 12, LastLoginDate: &d, StreakFreezesAvailable: 0})

	clock.AddDays(2)
	h := NewProcessStreakHandler(store.States(), &recordingPublisher{}, clock, nil)

	res, err := h.Handle(context.Background(), ProcessStreakCommand{StudentID: "s1"})
	require.NoError(t, err)
	assert.Equal(t, 1, res.StreakCount)
	assert.False(t, res.StreakFrozen)
}

func TestProcessStreak_FreezeLaw(t *testing.T) {
	store := memory.New()
	clock := fixedClock()
	d := timeutil.StartOfDay(clock.Now())
	store.PutState(gamification.State{StudentID: "s1", XPTotal: 420, Level: 4, StreakCount: 12, LastLoginDate: &d, StreakFreezesAvailable: 1})

	clock.AddDays(2)
	h := NewProcessStreakHandler(store.States(), &recordingPublisher{}, clock, nil)

	res, err := h.Handle(context.Background(), ProcessStreakCommand{StudentID: "s1"})
	require.NoError(t, err)
	assert.Equal(t, 13, res.StreakCount)
	assert.True(t, res.StreakFrozen)
	assert.Equal(t, 0, res.FreezesAvailable)

	state, err := store.States().Get(context.Background(), "s1")
	require.NoError(t, err)
	assert.Equal(t, 0, state.StreakFreezesAvailable)
	assert.Equal(t, 420, state.XPTotal, "streak upsert must not touch xp columns")
}

func TestProcessStreak_Milestone(t *testing.T) {
	store := memory.New()
	clock := fixedClock()
	pub := &recordingPublisher{}
	d := timeutil.StartOfDay(clock.Now())
	store.PutState(gamification.State{StudentID: "s1", StreakCount: 6, LastLoginDate: &d})

	clock.AddDays(1)
	h := NewProcessStreakHandler(store.States(), pub, clock, nil)

	res, err := h.Handle(context.Background(), ProcessStreakCommand{StudentID: "s1"})
	require.NoError(t, err)
	require.NotNil(t, res.MilestoneReached)
	assert.Equal(t, 7, *res.MilestoneReached)

	events := pub.ofType(shared.EventStreakMilestoneReached)
	require.Len(t, events, 1)
	ev := events[0].(shared.StreakMilestoneReachedEvent)
	assert.Equal(t, "s1", ev.StudentID)
	assert.Equal(t, 7, ev.Milestone)
	assert.Equal(t, 100, ev.BonusXP)
	assert.True(t, ev.NotifyPeers)
}

func TestProcessStreak_MilestoneWithoutPeerFanOut(t *testing.T) {
	store := memory.New()
	clock := fixedClock()
	pub := &recordingPublisher{}
	d := timeutil.StartOfDay(clock.Now())
	store.PutState(gamification.State{StudentID: "s1", StreakCount: 13, LastLoginDate: &d})

	clock.AddDays(1)
	h := NewProcessStreakHandler(store.States(), pub, clock, nil)

	res, err := h.Handle(context.Background(), ProcessStreakCommand{StudentID: "s1"})
	require.NoError(t, err)
	require.NotNil(t, res.MilestoneReached)
	assert.Equal(t, 14, *res.MilestoneReached)

	ev := pub.ofType(shared.EventStreakMilestoneReached)[0].(shared.StreakMilestoneReachedEvent)
	assert.False(t, ev.NotifyPeers)
}

func TestProcessStreak_SideEffectFailureNeverFailsStreak(t *testing.T) {
	store := memory.New()
	clock := fixedClock()
	d := timeutil.StartOfDay(clock.Now())
	store.PutState(gamification.State{StudentID: "s1", StreakCount: 29, LastLoginDate: &d})

	clock.AddDays(1)
	h := NewProcessStreakHandler(store.States(), &recordingPublisher{err: errors.New("queue full")}, clock, nil)

	res, err := h.Handle(context.Background(), ProcessStreakCommand{StudentID: "s1"})
	require.NoError(t, err)
	assert.Equal(t, 30, res.StreakCount)
	require.NotNil(t, res.MilestoneReached)
}

func TestProcessStreak_Errors(t *testing.T) {
	store := memory.New()
	h := NewProcessStreakHandler(store.States(), nil, fixedClock(), nil)
	ctx := context.Background()

	_, err := h.Handle(ctx, ProcessStreakCommand{})
	assert.True(t, shared.IsValidation(err))

	store.FailOn(memory.OpStateUpsertStreak, errors.New("conn refused"))
	_, err = h.Handle(ctx, ProcessStreakCommand{StudentID: "s1"})
	assert.True(t, shared.IsStorage(err))

	store.ClearFaults()
	store.FailOn(memory.OpStateGet, errors.New("conn refused"))
	_, err = h.Handle(ctx, ProcessStreakCommand{StudentID: "s1"})
	assert.True(t, shared.IsStorage(err))
}
