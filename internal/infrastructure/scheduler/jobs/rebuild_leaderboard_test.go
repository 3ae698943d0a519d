package jobs

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/obe-hub/gamification-core/internal/infrastructure/persistence/memory"
	"github.com/obe-hub/gamification-core/internal/infrastructure/persistence/projections"
	"github.com/obe-hub/gamification-core/pkg/timeutil"
)

type failingIndex struct{}

func (failingIndex) SetScore(context.Context, string, int) error { return errors.New("redis down") }

func TestRebuildLeaderboardJob_SeedsIndex(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	at := timeutil.Date(2026, 3, 10)
	require.NoError(t, store.States().UpsertXP(ctx, "s1", 120, 2, at))
	require.NoError(t, store.States().UpsertXP(ctx, "s2", 900, 4, at))
	require.NoError(t, store.States().UpsertStreak(ctx, "s3", 1, at, 0, at))

	view := projections.NewLeaderboardView()
	job := NewRebuildLeaderboardJob(store.States(), view, DefaultRebuildLeaderboardConfig(), nil)

	require.NoError(t, job.Run(ctx))

	top, err := view.Top(ctx, 10)
	require.NoError(t, err)
	require.Len(t, top, 3)
	assert.Equal(t, "s2", top[0].StudentID)
	assert.Equal(t, 900, top[0].XPTotal)

	stats := job.LastStats()
	require.NotNil(t, stats)
	assert.Equal(t, 3, stats.Students)
}

func TestRebuildLeaderboardJob_Errors(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	require.NoError(t, store.States().UpsertXP(ctx, "s1", 10, 1, timeutil.Date(2026, 3, 10)))

	job := NewRebuildLeaderboardJob(store.States(), failingIndex{}, RebuildLeaderboardConfig{}, nil)
	assert.ErrorContains(t, job.Run(ctx), "redis down")
	assert.Nil(t, job.LastStats())

	store.FailOn(memory.OpStateListTotals, errors.New("connection reset"))
	job = NewRebuildLeaderboardJob(store.States(), projections.NewLeaderboardView(), RebuildLeaderboardConfig{}, nil)
	assert.ErrorContains(t, job.Run(ctx), "list totals")
	assert.Equal(t, "rebuild_leaderboard", job.Name())
}
