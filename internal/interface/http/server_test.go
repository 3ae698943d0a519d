package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/obe-hub/gamification-core/internal/application/command"
	"github.com/obe-hub/gamification-core/internal/application/query"
	"github.com/obe-hub/gamification-core/internal/domain/gamification"
	"github.com/obe-hub/gamification-core/internal/domain/notification"
	"github.com/obe-hub/gamification-core/internal/domain/outcome"
	"github.com/obe-hub/gamification-core/internal/infrastructure/persistence/memory"
	"github.com/obe-hub/gamification-core/internal/infrastructure/persistence/projections"
	"github.com/obe-hub/gamification-core/internal/interface/http/handlers"
	"github.com/obe-hub/gamification-core/pkg/timeutil"
)

type testEnv struct {
	store       *memory.Store
	leaderboard *projections.LeaderboardView
	health      *handlers.CompositeHealthChecker
	server      *Server
}

func newTestEnv(t *testing.T, mutate ...func(*Config)) *testEnv {
	t.Helper()

	store := memory.New()
	clock := timeutil.NewFixedClock(time.Date(2026, 3, 10, 14, 30, 0, 0, time.UTC))
	board := projections.NewLeaderboardView()
	health := handlers.NewCompositeHealthChecker("test")
	notes := store.Notifications()
	sink := notification.SinkFunc(func(ctx context.Context, n notification.Notification) error {
		return notes.Insert(ctx, n)
	})

	cfg := DefaultConfig()
	cfg.Mode = gin.TestMode
	for _, m := range mutate {
		m(&cfg)
	}

	srv := NewServer(cfg, Dependencies{
		AwardXP:              command.NewAwardXPHandler(store.Ledger(), store.Bonuses(), store.States(), nil, clock, nil),
		ProcessStreak:        command.NewProcessStreakHandler(store.States(), nil, clock, nil),
		RollUp:               command.NewRollUpHandler(store.Academic(), store.Evidence(), store.Mappings(), store.Attainments(), sink, clock, nil),
		RebuildXPState:       command.NewRebuildXPStateHandler(store.Ledger(), store.States(), nil, clock, nil),
		GetGamificationState: query.NewGetGamificationStateHandler(store.States(), store.Ledger(), board, nil, nil),
		GetStudentAttainment: query.NewGetStudentAttainmentHandler(store.Attainments(), nil),
		GetLeaderboard:       query.NewGetLeaderboardHandler(board, store.Directory(), nil),
		HealthChecker:        health,
	})

	return &testEnv{store: store, leaderboard: board, health: health, server: srv}
}

func (e *testEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	switch b := body.(type) {
	case nil:
	case string:
		buf.WriteString(b)
	default:
		require.NoError(t, json.NewEncoder(&buf).Encode(b))
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	e.server.Handler().ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

// ══════════════════════════════════════════════════════════════════════════════
// AWARD XP
// ══════════════════════════════════════════════════════════════════════════════

func TestAwardXP_Success(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/v1/xp/award", map[string]any{
		"student_id": "stu-1",
		"xp_amount":  150,
		"source":     "submission",
	})

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decode(t, rec)
	assert.Equal(t, true, body["success"])
	assert.EqualValues(t, 150, body["xp_awarded"])
	assert.EqualValues(t, 150, body["new_total"])
	assert.Equal(t, true, body["level_up"])
	assert.EqualValues(t, 2, body["new_level"])
	assert.NotEmpty(t, rec.Header().Get(handlers.RequestIDHeader))
}

func TestAwardXP_ZeroAmountIsAccepted(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/v1/xp/award", map[string]any{
		"student_id": "stu-1",
		"xp_amount":  0,
		"source":     "login",
	})

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decode(t, rec)
	assert.EqualValues(t, 0, body["xp_awarded"])
	assert.EqualValues(t, 1, body["new_level"])
	assert.Equal(t, false, body["level_up"])
	assert.Len(t, env.store.AllTransactions(), 1)
}

func TestAwardXP_ValidationErrors(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name    string
		body    any
		wantErr string
	}{
		{"missing amount", map[string]any{"student_id": "stu-1", "source": "login"}, "xp_amount is required"},
		{"missing student", map[string]any{"xp_amount": 10, "source": "login"}, "student_id is required"},
		{"unknown source", map[string]any{"student_id": "stu-1", "xp_amount": 10, "source": "bribe"}, "source"},
		{"malformed json", `{"student_id": `, "invalid request body"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(t, http.MethodPost, "/api/v1/xp/award", tt.body)
			require.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
			assert.Contains(t, decode(t, rec)["error"], tt.wantErr)
		})
	}
	assert.Empty(t, env.store.AllTransactions())
}

func TestAwardXP_StorageFailureIs500(t *testing.T) {
	env := newTestEnv(t)
	env.store.FailOn(memory.OpLedgerInsert, errors.New("disk full"))

	rec := env.do(t, http.MethodPost, "/api/v1/xp/award", map[string]any{
		"student_id": "stu-1",
		"xp_amount":  10,
		"source":     "login",
	})

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "storage failure", decode(t, rec)["error"])
}

// ══════════════════════════════════════════════════════════════════════════════
// STREAK
// ══════════════════════════════════════════════════════════════════════════════

func TestProcessStreak_FirstLogin(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/v1/streak/process", map[string]any{"student_id": "stu-1"})

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"milestone_reached":null`)
	body := decode(t, rec)
	assert.EqualValues(t, 1, body["streak_count"])
	assert.Equal(t, false, body["streak_frozen"])
}

func TestProcessStreak_ReportsMilestone(t *testing.T) {
	env := newTestEnv(t)
	yesterday := time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC)
	env.store.PutState(gamification.State{StudentID: "stu-1", Level: 1, StreakCount: 6, LastLoginDate: &yesterday})

	rec := env.do(t, http.MethodPost, "/api/v1/streak/process", map[string]any{"student_id": "stu-1"})

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decode(t, rec)
	assert.EqualValues(t, 7, body["streak_count"])
	assert.EqualValues(t, 7, body["milestone_reached"])
}

func TestProcessStreak_MissingStudent(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/v1/streak/process", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// ══════════════════════════════════════════════════════════════════════════════
// ROLLUP
// ══════════════════════════════════════════════════════════════════════════════

func seedGrade(store *memory.Store) {
	store.AddAssignment(outcome.Assignment{
		ID:         "asg-1",
		CourseID:   "course-1",
		CLOWeights: []outcome.CLOWeight{{CLOID: "clo-1", Weight: 1}},
	})
	store.AddSubmission(outcome.Submission{ID: "sub-1", StudentID: "stu-1", AssignmentID: "asg-1"})
	store.AddGrade(outcome.Grade{ID: "g-1", SubmissionID: "sub-1", ScorePercent: 72})
	store.AddMapping(outcome.Mapping{SourceID: "clo-1", TargetID: "plo-1", Weight: 1})
}

func TestRollUp_Success(t *testing.T) {
	env := newTestEnv(t)
	seedGrade(env.store)

	rec := env.do(t, http.MethodPost, "/api/v1/attainment/rollup", map[string]any{
		"grade_id":      "g-1",
		"submission_id": "sub-1",
	})

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decode(t, rec)
	assert.Equal(t, true, body["success"])
	assert.EqualValues(t, 1, body["evidence_count"])
	assert.EqualValues(t, 1, body["clo_count"])
	assert.EqualValues(t, 1, body["plo_count"])
	assert.EqualValues(t, 0, body["ilo_count"])

	rec = env.do(t, http.MethodGet, "/api/v1/students/stu-1/attainment?scope=course", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var got attainmentResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Len(t, got.Attainment, 1)
	assert.Equal(t, "plo-1", got.Attainment[0].OutcomeID)
	assert.InDelta(t, 72.0, got.Attainment[0].Percent, 1e-9)
}

func TestRollUp_MissingGradeIs404(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/v1/attainment/rollup", map[string]any{
		"grade_id":      "nope",
		"submission_id": "sub-1",
	})

	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "grade not found", decode(t, rec)["error"])
}

func TestRollUp_MissingFields(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/v1/attainment/rollup", map[string]any{"grade_id": "g-1"})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decode(t, rec)["error"], "submission_id is required")
}

func TestGetAttainment_InvalidScope(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/v1/students/stu-1/attainment?scope=galaxy", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// ══════════════════════════════════════════════════════════════════════════════
// READS
// ══════════════════════════════════════════════════════════════════════════════

func TestGetGamification_AfterAward(t *testing.T) {
	env := newTestEnv(t)
	require.Equal(t, http.StatusOK, env.do(t, http.MethodPost, "/api/v1/xp/award", map[string]any{
		"student_id": "stu-1", "xp_amount": 260, "source": "quest",
	}).Code)
	require.NoError(t, env.leaderboard.SetScore(context.Background(), "stu-1", 260))

	rec := env.do(t, http.MethodGet, "/api/v1/students/stu-1/gamification?recent=5", nil)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var view query.GamificationView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &view))
	assert.Equal(t, 260, view.XPTotal)
	assert.Equal(t, 3, view.Level)
	require.NotNil(t, view.Rank)
	assert.EqualValues(t, 1, *view.Rank)
	require.Len(t, view.RecentTransactions, 1)
	assert.Equal(t, "quest", view.RecentTransactions[0].Source)
}

func TestGetGamification_UnknownStudentGetsDefaults(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/v1/students/ghost/gamification", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.EqualValues(t, 0, body["xp_total"])
	assert.EqualValues(t, 1, body["level"])
	assert.Nil(t, body["last_login_date"])
}

func TestGetLeaderboard(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.store.AddProfile(gamification.Profile{StudentID: "a", DisplayName: "Aruzhan"})
	env.store.AddProfile(gamification.Profile{StudentID: "b", DisplayName: "Bolat", AnonymousLeaderboard: true})
	require.NoError(t, env.leaderboard.SetScore(ctx, "a", 300))
	require.NoError(t, env.leaderboard.SetScore(ctx, "b", 500))

	rec := env.do(t, http.MethodGet, "/api/v1/leaderboard?limit=5", nil)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var got leaderboardResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Len(t, got.Entries, 2)
	assert.True(t, got.Entries[0].Anonymous)
	assert.Empty(t, got.Entries[0].StudentID)
	assert.Equal(t, "Aruzhan", got.Entries[1].DisplayName)
	assert.EqualValues(t, 2, got.Entries[1].Rank)
}

// ══════════════════════════════════════════════════════════════════════════════
// REBUILD
// ══════════════════════════════════════════════════════════════════════════════

func TestRebuild_DisabledByDefault(t *testing.T) {
	env := newTestEnv(t, func(c *Config) { c.EnableRebuild = false })

	rec := env.do(t, http.MethodPost, "/api/v1/gamification/rebuild", map[string]any{"student_id": "stu-1"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRebuild_ReSumsLedger(t *testing.T) {
	env := newTestEnv(t, func(c *Config) { c.EnableRebuild = true })
	require.Equal(t, http.StatusOK, env.do(t, http.MethodPost, "/api/v1/xp/award", map[string]any{
		"student_id": "stu-1", "xp_amount": 120, "source": "badge",
	}).Code)
	env.store.PutState(gamification.State{StudentID: "stu-1", XPTotal: 0, Level: 1})

	rec := env.do(t, http.MethodPost, "/api/v1/gamification/rebuild", map[string]any{"student_id": "stu-1"})

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decode(t, rec)
	assert.EqualValues(t, 120, body["new_total"])
	assert.EqualValues(t, 2, body["new_level"])
	assert.Len(t, env.store.AllTransactions(), 1, "rebuild never writes to the ledger")
}

// ══════════════════════════════════════════════════════════════════════════════
// HEALTH
// ══════════════════════════════════════════════════════════════════════════════

func TestHealth(t *testing.T) {
	env := newTestEnv(t)
	env.health.AddCheck("postgres", func(context.Context) error { return nil })

	rec := env.do(t, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, decode(t, rec)["healthy"])

	env.health.AddCheck("redis", func(context.Context) error { return errors.New("connection refused") })

	rec = env.do(t, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, false, body["healthy"])
	assert.Equal(t, "Some checks failed: redis", body["message"])
}

func TestUnknownRoute(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/v2/nothing", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "route not found", decode(t, rec)["error"])
}
