package memory

import (
	"context"
	"sort"
	"time"

	"github.com/obe-hub/gamification-core/internal/domain/gamification"
	"github.com/obe-hub/gamification-core/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// LEDGER
// ══════════════════════════════════════════════════════════════════════════════

// LedgerRepo implements gamification.LedgerRepository.
type LedgerRepo struct{ s *Store }

// Insert appends a ledger row.
func (r *LedgerRepo) Insert(_ context.Context, tx gamification.Transaction) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fault(OpLedgerInsert, tx.StudentID); err != nil {
		return err
	}
	r.s.ledger = append(r.s.ledger, tx)
	r.s.wrote(OpLedgerInsert)
	return nil
}

// SumByStudent sums every row of the student.
func (r *LedgerRepo) SumByStudent(_ context.Context, studentID string) (int, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	if err := r.s.fault(OpLedgerSum, studentID); err != nil {
		return 0, err
	}
	total := 0
	for _, tx := range r.s.ledger {
		if tx.StudentID == studentID {
			total += tx.Amount
		}
	}
	return total, nil
}

// ListByStudent returns the student's rows oldest first.
func (r *LedgerRepo) ListByStudent(_ context.Context, studentID string, limit int) ([]gamification.Transaction, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	if err := r.s.fault(OpLedgerList, studentID); err != nil {
		return nil, err
	}
	out := make([]gamification.Transaction, 0)
	for _, tx := range r.s.ledger {
		if tx.StudentID == studentID {
			out = append(out, tx)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// BONUSES
// ══════════════════════════════════════════════════════════════════════════════

// BonusRepo implements gamification.BonusRepository.
type BonusRepo struct{ s *Store }

// ActiveAt returns bonus windows containing t.
func (r *BonusRepo) ActiveAt(_ context.Context, t time.Time) ([]gamification.BonusEvent, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	if err := r.s.fault(OpBonusActive, ""); err != nil {
		return nil, err
	}
	out := make([]gamification.BonusEvent, 0)
	for _, b := range r.s.bonuses {
		if b.IsActiveAt(t) {
			out = append(out, b)
		}
	}
	return out, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// STATE
// ══════════════════════════════════════════════════════════════════════════════

// StateRepo implements gamification.StateRepository.
type StateRepo struct{ s *Store }

// Get returns a copy of the student's state.
func (r *StateRepo) Get(_ context.Context, studentID string) (*gamification.State, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	if err := r.s.fault(OpStateGet, studentID); err != nil {
		return nil, err
	}
	st, ok := r.s.states[studentID]
	if !ok {
		return nil, shared.ErrStateNotFound
	}
	if st.LastLoginDate != nil {
		st.LastLoginDate = dateOnly(*st.LastLoginDate)
	}
	return &st, nil
}

// UpsertXP writes xp_total and level only.
func (r *StateRepo) UpsertXP(_ context.Context, studentID string, total, level int, at time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fault(OpStateUpsertXP, studentID); err != nil {
		return err
	}
	st, ok := r.s.states[studentID]
	if !ok {
		st = gamification.NewState(studentID)
	}
	st.XPTotal = total
	st.Level = level
	st.UpdatedAt = at
	r.s.states[studentID] = st
	r.s.wrote(OpStateUpsertXP)
	return nil
}

// UpsertStreak writes the streak columns only.
func (r *StateRepo) UpsertStreak(_ context.Context, studentID string, count int, lastLogin time.Time, freezes int, at time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fault(OpStateUpsertStreak, studentID); err != nil {
		return err
	}
	st, ok := r.s.states[studentID]
	if !ok {
		st = gamification.NewState(studentID)
	}
	st.StreakCount = count
	st.LastLoginDate = dateOnly(lastLogin)
	st.StreakFreezesAvailable = freezes
	st.UpdatedAt = at
	r.s.states[studentID] = st
	r.s.wrote(OpStateUpsertStreak)
	return nil
}

// ListTotals returns every stored total, unordered.
func (r *StateRepo) ListTotals(_ context.Context) ([]gamification.LeaderboardEntry, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	if err := r.s.fault(OpStateListTotals, ""); err != nil {
		return nil, err
	}
	out := make([]gamification.LeaderboardEntry, 0, len(r.s.states))
	for id, st := range r.s.states {
		out = append(out, gamification.LeaderboardEntry{StudentID: id, XPTotal: st.XPTotal})
	}
	return out, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// DIRECTORY
// ══════════════════════════════════════════════════════════════════════════════

// DirectoryRepo implements gamification.StudentDirectory.
type DirectoryRepo struct{ s *Store }

// GetProfile returns the student's profile. Unknown students get a default profile.
func (r *DirectoryRepo) GetProfile(_ context.Context, studentID string) (*gamification.Profile, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	if err := r.s.fault(OpDirectoryProfile, studentID); err != nil {
		return nil, err
	}
	p, ok := r.s.profiles[studentID]
	if !ok {
		p = gamification.Profile{StudentID: studentID}
	}
	return &p, nil
}

// CoursePeers returns other students sharing at least one course, sorted.
func (r *DirectoryRepo) CoursePeers(_ context.Context, studentID string) ([]string, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	if err := r.s.fault(OpDirectoryPeers, studentID); err != nil {
		return nil, err
	}
	set := make(map[string]bool)
	for _, members := range r.s.enrollments {
		if !members[studentID] {
			continue
		}
		for peer := range members {
			if peer != studentID {
				set[peer] = true
			}
		}
	}
	peers := make([]string, 0, len(set))
	for p := range set {
		peers = append(peers, p)
	}
	sort.Strings(peers)
	return peers, nil
}
