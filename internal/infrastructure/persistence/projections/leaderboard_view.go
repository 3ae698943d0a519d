// Package projections implements read models rebuilt from domain events.
// They are updated asynchronously and may lag the durable store.
package projections

import (
	"context"
	"sort"
	"sync"

	"github.com/obe-hub/gamification-core/internal/domain/gamification"
)

// ══════════════════════════════════════════════════════════════════════════════
// LEADERBOARD VIEW
// ══════════════════════════════════════════════════════════════════════════════

// LeaderboardView is an in-process XP leaderboard, used when Redis is off.
// Ties are broken by student ID so ranks are stable.
type LeaderboardView struct {
	mu     sync.RWMutex
	scores map[string]int
	sorted []string
	dirty  bool
}

// NewLeaderboardView creates an empty view.
func NewLeaderboardView() *LeaderboardView {
	return &LeaderboardView{scores: make(map[string]int)}
}

// SetScore records the student's total.
func (v *LeaderboardView) SetScore(_ context.Context, studentID string, xpTotal int) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	v.scores[studentID] = xpTotal
	v.dirty = true
	return nil
}

// Rank returns the 1-based position of the student.
func (v *LeaderboardView) Rank(_ context.Context, studentID string) (int64, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if _, ok := v.scores[studentID]; !ok {
		return 0, gamification.ErrNotRanked
	}
	v.resort()
	for i, id := range v.sorted {
		if id == studentID {
			return int64(i + 1), nil
		}
	}
	return 0, gamification.ErrNotRanked
}

// Top returns the first limit entries.
func (v *LeaderboardView) Top(_ context.Context, limit int) ([]gamification.LeaderboardEntry, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	v.resort()
	if limit > len(v.sorted) {
		limit = len(v.sorted)
	}
	out := make([]gamification.LeaderboardEntry, 0, max(limit, 0))
	for i := 0; i < limit; i++ {
		id := v.sorted[i]
		out = append(out, gamification.LeaderboardEntry{Rank: int64(i + 1), StudentID: id, XPTotal: v.scores[id]})
	}
	return out, nil
}

// resort must be called with v.mu held.
func (v *LeaderboardView) resort() {
	if !v.dirty {
		return
	}
	v.sorted = v.sorted[:0]
	for id := range v.scores {
		v.sorted = append(v.sorted, id)
	}
	sort.Slice(v.sorted, func(i, j int) bool {
		a, b := v.sorted[i], v.sorted[j]
		if v.scores[a] != v.scores[b] {
			return v.scores[a] > v.scores[b]
		}
		return a < b
	})
	v.dirty = false
}
