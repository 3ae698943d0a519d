package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/obe-hub/gamification-core/internal/domain/gamification"
	"github.com/obe-hub/gamification-core/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// XP LEDGER
// ══════════════════════════════════════════════════════════════════════════════

// LedgerRepository implements gamification.LedgerRepository.
type LedgerRepository struct {
	conn *Connection
}

// NewLedgerRepository creates a new LedgerRepository.
func NewLedgerRepository(conn *Connection) *LedgerRepository {
	return &LedgerRepository{conn: conn}
}

// Insert appends a ledger row.
func (r *LedgerRepository) Insert(ctx context.Context, tx gamification.Transaction) error {
	query := `
		INSERT INTO xp_transactions (id, student_id, xp_amount, source, reference_id, note, created_at)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''), NULLIF($6, ''), $7)
	`
	_, err := r.conn.Exec(ctx, query,
		tx.ID, tx.StudentID, tx.Amount, tx.Source.String(), tx.ReferenceID, tx.Note, tx.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert xp transaction: %w", err)
	}
	return nil
}

// SumByStudent re-aggregates the student's ledger.
func (r *LedgerRepository) SumByStudent(ctx context.Context, studentID string) (int, error) {
	var total int
	err := r.conn.QueryRow(ctx,
		"SELECT COALESCE(SUM(xp_amount), 0)::int FROM xp_transactions WHERE student_id = $1",
		studentID,
	).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("failed to sum xp transactions: %w", err)
	}
	return total, nil
}

// ListByStudent returns the student's rows newest first.
func (r *LedgerRepository) ListByStudent(ctx context.Context, studentID string, limit int) ([]gamification.Transaction, error) {
	if limit <= 0 {
		limit = 100
	}
	query := `
		SELECT id::text, student_id, xp_amount, source, COALESCE(reference_id, ''), COALESCE(note, ''), created_at
		FROM xp_transactions
		WHERE student_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`
	rows, err := r.conn.Query(ctx, query, studentID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query xp transactions: %w", err)
	}
	defer rows.Close()

	out := make([]gamification.Transaction, 0)
	for rows.Next() {
		var tx gamification.Transaction
		var source string
		if err := rows.Scan(&tx.ID, &tx.StudentID, &tx.Amount, &source, &tx.ReferenceID, &tx.Note, &tx.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan xp transaction: %w", err)
		}
		tx.Source = gamification.ParseSource(source)
		out = append(out, tx)
	}
	return out, rows.Err()
}

// ══════════════════════════════════════════════════════════════════════════════
// BONUS EVENTS
// ══════════════════════════════════════════════════════════════════════════════

// BonusRepository implements gamification.BonusRepository.
type BonusRepository struct {
	conn *Connection
}

// NewBonusRepository creates a new BonusRepository.
func NewBonusRepository(conn *Connection) *BonusRepository {
	return &BonusRepository{conn: conn}
}

// ActiveAt returns the bonus windows containing t.
func (r *BonusRepository) ActiveAt(ctx context.Context, t time.Time) ([]gamification.BonusEvent, error) {
	query := `
		SELECT id::text, name, multiplier::float8, start_date, end_date
		FROM bonus_xp_events
		WHERE start_date <= $1 AND end_date >= $1
	`
	rows, err := r.conn.Query(ctx, query, t)
	if err != nil {
		return nil, fmt.Errorf("failed to query bonus events: %w", err)
	}
	defer rows.Close()

	out := make([]gamification.BonusEvent, 0)
	for rows.Next() {
		var b gamification.BonusEvent
		if err := rows.Scan(&b.ID, &b.Name, &b.Multiplier, &b.StartDate, &b.EndDate); err != nil {
			return nil, fmt.Errorf("failed to scan bonus event: %w", err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// ══════════════════════════════════════════════════════════════════════════════
// GAMIFICATION STATE
// ══════════════════════════════════════════════════════════════════════════════

// StateRepository implements gamification.StateRepository.
// The two upserts touch disjoint column sets so XP and streak writers never
// overwrite each other.
type StateRepository struct {
	conn *Connection
}

// NewStateRepository creates a new StateRepository.
func NewStateRepository(conn *Connection) *StateRepository {
	return &StateRepository{conn: conn}
}

// Get returns the cached state.
func (r *StateRepository) Get(ctx context.Context, studentID string) (*gamification.State, error) {
	query := `
		SELECT student_id, xp_total, level, streak_count, last_login_date,
		       streak_freezes_available, updated_at
		FROM gamification_state
		WHERE student_id = $1
	`
	var s gamification.State
	var lastLogin *time.Time
	err := r.conn.QueryRow(ctx, query, studentID).Scan(
		&s.StudentID, &s.XPTotal, &s.Level, &s.StreakCount, &lastLogin,
		&s.StreakFreezesAvailable, &s.UpdatedAt,
	)
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrStateNotFound
		}
		return nil, fmt.Errorf("failed to get gamification state: %w", err)
	}
	if lastLogin != nil {
		d := lastLogin.UTC()
		s.LastLoginDate = &d
	}
	return &s, nil
}

// UpsertXP writes xp_total and level.
func (r *StateRepository) UpsertXP(ctx context.Context, studentID string, total, level int, at time.Time) error {
	query := `
		INSERT INTO gamification_state (student_id, xp_total, level, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (student_id) DO UPDATE SET
			xp_total = EXCLUDED.xp_total,
			level = EXCLUDED.level,
			updated_at = EXCLUDED.updated_at
	`
	if _, err := r.conn.Exec(ctx, query, studentID, total, level, at); err != nil {
		return fmt.Errorf("failed to upsert xp state: %w", err)
	}
	return nil
}

// UpsertStreak writes the streak columns.
func (r *StateRepository) UpsertStreak(ctx context.Context, studentID string, count int, lastLogin time.Time, freezes int, at time.Time) error {
	query := `
		INSERT INTO gamification_state (student_id, streak_count, last_login_date, streak_freezes_available, updated_at)
		VALUES ($1, $2, $3::date, $4, $5)
		ON CONFLICT (student_id) DO UPDATE SET
			streak_count = EXCLUDED.streak_count,
			last_login_date = EXCLUDED.last_login_date,
			streak_freezes_available = EXCLUDED.streak_freezes_available,
			updated_at = EXCLUDED.updated_at
	`
	date := lastLogin.UTC().Format(time.DateOnly)
	if _, err := r.conn.Exec(ctx, query, studentID, count, date, freezes, at); err != nil {
		return fmt.Errorf("failed to upsert streak state: %w", err)
	}
	return nil
}

// ListTotals streams every xp_total, highest first.
func (r *StateRepository) ListTotals(ctx context.Context) ([]gamification.LeaderboardEntry, error) {
	rows, err := r.conn.Query(ctx, `
		SELECT student_id, xp_total
		FROM gamification_state
		ORDER BY xp_total DESC, student_id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list xp totals: %w", err)
	}
	defer rows.Close()

	out := make([]gamification.LeaderboardEntry, 0)
	for rows.Next() {
		var e gamification.LeaderboardEntry
		if err := rows.Scan(&e.StudentID, &e.XPTotal); err != nil {
			return nil, fmt.Errorf("failed to scan xp total: %w", err)
		}
		e.Rank = int64(len(out) + 1)
		out = append(out, e)
	}
	return out, rows.Err()
}

// ══════════════════════════════════════════════════════════════════════════════
// STUDENT DIRECTORY
// ══════════════════════════════════════════════════════════════════════════════

// DirectoryRepository implements gamification.StudentDirectory.
type DirectoryRepository struct {
	conn *Connection
}

// NewDirectoryRepository creates a new DirectoryRepository.
func NewDirectoryRepository(conn *Connection) *DirectoryRepository {
	return &DirectoryRepository{conn: conn}
}

// GetProfile returns the student's profile. Students without a row get the
// default profile: no display name, not anonymous.
func (r *DirectoryRepository) GetProfile(ctx context.Context, studentID string) (*gamification.Profile, error) {
	p := gamification.Profile{StudentID: studentID}
	err := r.conn.QueryRow(ctx,
		"SELECT display_name, anonymous_leaderboard FROM students WHERE id = $1",
		studentID,
	).Scan(&p.DisplayName, &p.AnonymousLeaderboard)
	if err != nil && !IsNoRows(err) {
		return nil, fmt.Errorf("failed to get student profile: %w", err)
	}
	return &p, nil
}

// CoursePeers returns every other student sharing at least one course.
func (r *DirectoryRepository) CoursePeers(ctx context.Context, studentID string) ([]string, error) {
	query := `
		SELECT DISTINCT peer.student_id
		FROM course_enrollments self
		JOIN course_enrollments peer ON peer.course_id = self.course_id
		WHERE self.student_id = $1 AND peer.student_id <> $1
		ORDER BY peer.student_id
	`
	rows, err := r.conn.Query(ctx, query, studentID)
	if err != nil {
		return nil, fmt.Errorf("failed to query course peers: %w", err)
	}
	peers, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("failed to scan course peers: %w", err)
	}
	return peers, nil
}
