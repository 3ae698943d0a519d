package gamification

import (
	"context"
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// REPOSITORY INTERFACES
// Реализации находятся в infrastructure/persistence.
// ══════════════════════════════════════════════════════════════════════════════

// LedgerRepository — append-only хранилище транзакций XP.
type LedgerRepository interface {
	// Insert добавляет строку леджера.
	Insert(ctx context.Context, tx Transaction) error

	// SumByStudent возвращает сумму всех строк студента (0, если строк нет).
	SumByStudent(ctx context.Context, studentID string) (int, error)

	// ListByStudent возвращает строки студента от старых к новым.
	ListByStudent(ctx context.Context, studentID string, limit int) ([]Transaction, error)
}

// BonusRepository — чтение бонусных событий.
type BonusRepository interface {
	// ActiveAt возвращает события, окно которых содержит t.
	ActiveAt(ctx context.Context, t time.Time) ([]BonusEvent, error)
}

// StateRepository — кэш состояния геймификации.
type StateRepository interface {
	// Get возвращает состояние студента.
	// Возвращает shared.ErrStateNotFound, если строки нет.
	Get(ctx context.Context, studentID string) (*State, error)

	// UpsertXP записывает xp_total и level, не трогая поля серии.
	UpsertXP(ctx context.Context, studentID string, total, level int, at time.Time) error

	// UpsertStreak записывает streak_count, last_login_date и остаток заморозок,
	// не трогая xp_total и level.
	UpsertStreak(ctx context.Context, studentID string, count int, lastLogin time.Time, freezes int, at time.Time) error
}

// TotalsReader — полный обход итогов XP для пересборки рейтинга.
type TotalsReader interface {
	// ListTotals возвращает xp_total каждого студента со строкой состояния.
	ListTotals(ctx context.Context) ([]LeaderboardEntry, error)
}

// StudentDirectory — внешний каталог студентов и записей на курсы.
type StudentDirectory interface {
	// GetProfile возвращает профиль студента.
	GetProfile(ctx context.Context, studentID string) (*Profile, error)

	// CoursePeers возвращает других студентов, с которыми есть хотя бы один общий курс.
	CoursePeers(ctx context.Context, studentID string) ([]string, error)
}
