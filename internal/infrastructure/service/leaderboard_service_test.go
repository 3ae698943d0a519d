package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/obe-hub/gamification-core/internal/domain/gamification"
	"github.com/obe-hub/gamification-core/internal/infrastructure/persistence/projections"
	"github.com/obe-hub/gamification-core/pkg/circuitbreaker"
)

// downStore fails every call the way an unreachable Redis does.
type downStore struct {
	calls int
}

func (d *downStore) SetScore(context.Context, string, int) error {
	d.calls++
	return errors.New("dial tcp: connection refused")
}

func (d *downStore) Rank(context.Context, string) (int64, error) {
	d.calls++
	return 0, errors.New("dial tcp: connection refused")
}

func (d *downStore) Top(context.Context, int) ([]gamification.LeaderboardEntry, error) {
	d.calls++
	return nil, errors.New("dial tcp: connection refused")
}

func testBreaker() *circuitbreaker.CircuitBreaker {
	return circuitbreaker.New("test",
		circuitbreaker.WithFailureThreshold(2),
		circuitbreaker.WithTimeout(time.Hour),
		circuitbreaker.WithIsFailure(IsLeaderboardFailure),
	)
}

func TestLeaderboardService_HealthyPrimary(t *testing.T) {
	ctx := context.Background()
	primary := projections.NewLeaderboardView()
	mirror := projections.NewLeaderboardView()
	svc := NewLeaderboardService(primary, mirror, testBreaker(), nil)

	require.NoError(t, svc.SetScore(ctx, "s1", 100))
	require.NoError(t, svc.SetScore(ctx, "s2", 300))

	rank, err := svc.Rank(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), rank)

	top, err := svc.Top(ctx, 10)
	require.NoError(t, err)
	require.Len(t, top, 2)
	assert.Equal(t, "s2", top[0].StudentID)

	mirrored, err := mirror.Rank(ctx, "s2")
	require.NoError(t, err)
	assert.Equal(t, int64(1), mirrored)
}

func TestLeaderboardService_UnrankedDoesNotTrip(t *testing.T) {
	ctx := context.Background()
	svc := NewLeaderboardService(projections.NewLeaderboardView(), projections.NewLeaderboardView(), testBreaker(), nil)

	for i := 0; i < 5; i++ {
		_, err := svc.Rank(ctx, "ghost")
		assert.ErrorIs(t, err, gamification.ErrNotRanked)
	}
	assert.Equal(t, circuitbreaker.StateClosed, svc.BreakerState())
}

func TestLeaderboardService_FallsBackToMirror(t *testing.T) {
	ctx := context.Background()
	primary := &downStore{}
	mirror := projections.NewLeaderboardView()
	svc := NewLeaderboardService(primary, mirror, testBreaker(), nil)

	// The mirror is written even though the primary write fails.
	assert.Error(t, svc.SetScore(ctx, "s1", 50))
	assert.Error(t, svc.SetScore(ctx, "s2", 80))
	assert.Equal(t, circuitbreaker.StateOpen, svc.BreakerState())

	callsWhenOpened := primary.calls

	rank, err := svc.Rank(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), rank)

	top, err := svc.Top(ctx, 1)
	require.NoError(t, err)
	require.Len(t, top, 1)
	assert.Equal(t, "s2", top[0].StudentID)

	assert.Equal(t, callsWhenOpened, primary.calls, "open circuit must not reach the primary")
}

func TestLeaderboardService_DefaultBreaker(t *testing.T) {
	svc := NewLeaderboardService(&downStore{}, projections.NewLeaderboardView(), nil, nil)

	_, err := svc.Top(context.Background(), 5)
	require.NoError(t, err)
	assert.Equal(t, circuitbreaker.StateClosed, svc.BreakerState())
}
