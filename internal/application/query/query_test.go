package query

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/obe-hub/gamification-core/internal/domain/gamification"
	"github.com/obe-hub/gamification-core/internal/domain/outcome"
	"github.com/obe-hub/gamification-core/internal/domain/shared"
	"github.com/obe-hub/gamification-core/internal/infrastructure/persistence/memory"
	"github.com/obe-hub/gamification-core/internal/infrastructure/persistence/projections"
)

var at = time.Date(2026, 3, 10, 14, 30, 0, 0, time.UTC)

type mapCache struct {
	views map[string]GamificationView
	loads int
}

func (m *mapCache) LoadStateView(_ context.Context, id string, dest any) error {
	m.loads++
	v, ok := m.views[id]
	if !ok {
		return errors.New("miss")
	}
	*dest.(*GamificationView) = v
	return nil
}

func (m *mapCache) StoreStateView(_ context.Context, id string, view any) error {
	if m.views == nil {
		m.views = make(map[string]GamificationView)
	}
	m.views[id] = view.(GamificationView)
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// GET GAMIFICATION STATE
// ══════════════════════════════════════════════════════════════════════════════

func TestGetGamificationState(t *testing.T) {
	store := memory.New()
	day := time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC)
	store.PutState(gamification.State{StudentID: "s1", XPTotal: 260, Level: 3, StreakCount: 4, LastLoginDate: &day, StreakFreezesAvailable: 1})
	require.NoError(t, store.Ledger().Insert(context.Background(), gamification.Transaction{ID: "t1", StudentID: "s1", Amount: 260, Source: gamification.SourceQuest, CreatedAt: at}))

	board := projections.NewLeaderboardView()
	require.NoError(t, board.SetScore(context.Background(), "s1", 260))
	require.NoError(t, board.SetScore(context.Background(), "s2", 900))

	h := NewGetGamificationStateHandler(store.States(), store.Ledger(), board, nil, nil)
	view, err := h.Handle(context.Background(), GetGamificationStateQuery{StudentID: "s1", RecentLimit: 5})
	require.NoError(t, err)

	assert.Equal(t, 260, view.XPTotal)
	assert.Equal(t, 3, view.Level)
	assert.Equal(t, gamification.XPToNextLevel(260), view.XPToNextLevel)
	require.NotNil(t, view.LastLoginDate)
	assert.Equal(t, "2026-03-09", *view.LastLoginDate)
	require.NotNil(t, view.Rank)
	assert.Equal(t, int64(2), *view.Rank)
	require.Len(t, view.RecentTransactions, 1)
	assert.Equal(t, "quest", view.RecentTransactions[0].Source)
}

func TestGetGamificationState_UnknownStudentGetsDefaults(t *testing.T) {
	store := memory.New()
	h := NewGetGamificationStateHandler(store.States(), store.Ledger(), nil, nil, nil)

	view, err := h.Handle(context.Background(), GetGamificationStateQuery{StudentID: "new"})
	require.NoError(t, err)
	assert.Equal(t, 0, view.XPTotal)
	assert.Equal(t, gamification.MinLevel, view.Level)
	assert.Nil(t, view.LastLoginDate)
	assert.Nil(t, view.Rank)
}

func TestGetGamificationState_Cache(t *testing.T) {
	store := memory.New()
	store.PutState(gamification.State{StudentID: "s1", XPTotal: 100, Level: 2})
	cache := &mapCache{}
	h := NewGetGamificationStateHandler(store.States(), nil, nil, cache, nil)
	ctx := context.Background()

	first, err := h.Handle(ctx, GetGamificationStateQuery{StudentID: "s1"})
	require.NoError(t, err)

	// The cached view wins until invalidated.
	store.PutState(gamification.State{StudentID: "s1", XPTotal: 999, Level: 9})
	second, err := h.Handle(ctx, GetGamificationStateQuery{StudentID: "s1"})
	require.NoError(t, err)
	assert.Equal(t, first.XPTotal, second.XPTotal)
	assert.Equal(t, 2, cache.loads)
}

func TestGetGamificationState_Errors(t *testing.T) {
	store := memory.New()
	h := NewGetGamificationStateHandler(store.States(), nil, nil, nil, nil)

	_, err := h.Handle(context.Background(), GetGamificationStateQuery{StudentID: " "})
	assert.True(t, shared.IsValidation(err))

	store.FailOn(memory.OpStateGet, errors.New("conn reset"))
	_, err = h.Handle(context.Background(), GetGamificationStateQuery{StudentID: "s1"})
	assert.True(t, shared.IsStorage(err))
}

// ══════════════════════════════════════════════════════════════════════════════
// GET STUDENT ATTAINMENT
// ══════════════════════════════════════════════════════════════════════════════

func seedAttainment(t *testing.T, store *memory.Store) {
	t.Helper()
	repo := store.Attainments()
	rows := []outcome.Attainment{
		{AttainmentKey: outcome.AttainmentKey{OutcomeID: "ilo-1", StudentID: "s1", Scope: outcome.ScopeProgram}, Percent: 71.23456, SampleCount: 1, LastCalculatedAt: at},
		{AttainmentKey: outcome.AttainmentKey{OutcomeID: "clo-b", StudentID: "s1", CourseID: "c-1", Scope: outcome.ScopeStudentCourse}, Percent: 40, SampleCount: 2, LastCalculatedAt: at},
		{AttainmentKey: outcome.AttainmentKey{OutcomeID: "plo-1", StudentID: "s1", CourseID: "c-1", Scope: outcome.ScopeCourse}, Percent: 88, SampleCount: 3, LastCalculatedAt: at},
		{AttainmentKey: outcome.AttainmentKey{OutcomeID: "clo-a", StudentID: "s1", CourseID: "c-1", Scope: outcome.ScopeStudentCourse}, Percent: 95, SampleCount: 1, LastCalculatedAt: at},
		{AttainmentKey: outcome.AttainmentKey{OutcomeID: "clo-a", StudentID: "s2", CourseID: "c-1", Scope: outcome.ScopeStudentCourse}, Percent: 10, SampleCount: 1, LastCalculatedAt: at},
	}
	for _, a := range rows {
		require.NoError(t, repo.Upsert(context.Background(), a))
	}
}

func TestGetStudentAttainment(t *testing.T) {
	store := memory.New()
	seedAttainment(t, store)
	h := NewGetStudentAttainmentHandler(store.Attainments(), nil)

	views, err := h.Handle(context.Background(), GetStudentAttainmentQuery{StudentID: "s1"})
	require.NoError(t, err)
	require.Len(t, views, 4)

	ids := []string{views[0].OutcomeID, views[1].OutcomeID, views[2].OutcomeID, views[3].OutcomeID}
	assert.Equal(t, []string{"clo-a", "clo-b", "plo-1", "ilo-1"}, ids)
	assert.Equal(t, "Excellent", views[0].Level)
	assert.Equal(t, "CLO", views[0].Tier)
	assert.Equal(t, 71.23, views[3].Percent)
	assert.Equal(t, "program", views[3].Scope)
}

func TestGetStudentAttainment_ScopeFilter(t *testing.T) {
	store := memory.New()
	seedAttainment(t, store)
	h := NewGetStudentAttainmentHandler(store.Attainments(), nil)

	views, err := h.Handle(context.Background(), GetStudentAttainmentQuery{StudentID: "s1", Scope: "course"})
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.Equal(t, "plo-1", views[0].OutcomeID)

	_, err = h.Handle(context.Background(), GetStudentAttainmentQuery{StudentID: "s1", Scope: "galaxy"})
	assert.True(t, shared.IsValidation(err))
}

// ══════════════════════════════════════════════════════════════════════════════
// GET LEADERBOARD
// ══════════════════════════════════════════════════════════════════════════════

func TestGetLeaderboard_MasksAnonymousStudents(t *testing.T) {
	store := memory.New()
	store.AddProfile(gamification.Profile{StudentID: "s1", DisplayName: "Aigerim"})
	store.AddProfile(gamification.Profile{StudentID: "s2", DisplayName: "Dana", AnonymousLeaderboard: true})

	board := projections.NewLeaderboardView()
	ctx := context.Background()
	require.NoError(t, board.SetScore(ctx, "s1", 450))
	require.NoError(t, board.SetScore(ctx, "s2", 900))

	h := NewGetLeaderboardHandler(board, store.Directory(), nil)
	rows, err := h.Handle(ctx, GetLeaderboardQuery{})
	require.NoError(t, err)
	require.Len(t, rows, 2)

	assert.True(t, rows[0].Anonymous)
	assert.Empty(t, rows[0].StudentID)
	assert.Equal(t, "Anonymous", rows[0].DisplayName)
	assert.Equal(t, 900, rows[0].XPTotal)

	assert.Equal(t, "Aigerim", rows[1].DisplayName)
	assert.Equal(t, "s1", rows[1].StudentID)
	assert.Equal(t, gamification.DeriveLevel(450), rows[1].Level)
}
