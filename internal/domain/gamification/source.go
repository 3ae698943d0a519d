// Package gamification содержит доменную модель XP-леджера, уровней и серий активности.
// Леджер — единственный источник истины; GamificationState — производный кэш,
// который можно пересобрать в любой момент.
package gamification

import "strings"

// ══════════════════════════════════════════════════════════════════════════════
// XP SOURCE
// ══════════════════════════════════════════════════════════════════════════════

// Source — закрытое множество источников начисления XP.
type Source uint8

const (
	// SourceUnknown — нулевое значение, никогда не проходит валидацию.
	SourceUnknown Source = iota
	SourceLogin
	SourceSubmission
	SourceBadge
	SourceAdminAdjustment
	SourceStreakMilestone
	SourceGrade
	SourceQuest
	SourceBonus
)

// String возвращает значение, которое хранится в БД и ходит по сети.
func (s Source) String() string {
	switch s {
	case SourceLogin:
		return "login"
	case SourceSubmission:
		return "submission"
	case SourceBadge:
		return "badge"
	case SourceAdminAdjustment:
		return "admin_adjustment"
	case SourceStreakMilestone:
		return "streak_milestone"
	case SourceGrade:
		return "grade"
	case SourceQuest:
		return "quest"
	case SourceBonus:
		return "bonus"
	case SourceUnknown:
		return "unknown"
	}
	return "unknown"
}

// Valid проверяет, что источник входит в закрытое множество.
func (s Source) Valid() bool {
	return s >= SourceLogin && s <= SourceBonus
}

// ParseSource разбирает строковое значение. Неизвестные строки дают SourceUnknown.
func ParseSource(raw string) Source {
	switch strings.TrimSpace(raw) {
	case "login":
		return SourceLogin
	case "submission":
		return SourceSubmission
	case "badge":
		return SourceBadge
	case "admin_adjustment":
		return SourceAdminAdjustment
	case "streak_milestone":
		return SourceStreakMilestone
	case "grade":
		return SourceGrade
	case "quest":
		return SourceQuest
	case "bonus":
		return SourceBonus
	default:
		return SourceUnknown
	}
}

// AllSources возвращает все допустимые источники.
func AllSources() []Source {
	return []Source{
		SourceLogin, SourceSubmission, SourceBadge, SourceAdminAdjustment,
		SourceStreakMilestone, SourceGrade, SourceQuest, SourceBonus,
	}
}
