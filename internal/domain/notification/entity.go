// Package notification содержит доменную модель уведомлений ядра геймификации.
// Уведомления — побочный эффект: их потеря никогда не откатывает основной факт.
package notification

import (
	"strings"
	"time"

	"github.com/obe-hub/gamification-core/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// NOTIFICATION TYPE
// ══════════════════════════════════════════════════════════════════════════════

// Type определяет тип уведомления.
type Type string

const (
	// TypeGradeReleased - оценка опубликована, достижение пересчитано.
	TypeGradeReleased Type = "grade_released"

	// TypeStreakMilestone - студент сам достиг вехи серии.
	TypeStreakMilestone Type = "streak_milestone"

	// TypePeerMilestone - однокурсник достиг вехи серии.
	TypePeerMilestone Type = "peer_milestone"

	// TypeLevelUp - повышение уровня.
	TypeLevelUp Type = "level_up"
)

// IsValid проверяет, что тип уведомления корректен.
func (t Type) IsValid() bool {
	switch t {
	case TypeGradeReleased, TypeStreakMilestone, TypePeerMilestone, TypeLevelUp:
		return true
	default:
		return false
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// NOTIFICATION ENTITY
// ══════════════════════════════════════════════════════════════════════════════

// Notification — запись для приёмника уведомлений
// {user_id, type, title, message, metadata}.
type Notification struct {
	ID        string
	UserID    string
	Type      Type
	Title     string
	Message   string
	Metadata  map[string]any
	IsRead    bool
	CreatedAt time.Time
}

// Validate проверяет обязательные поля.
func (n Notification) Validate() error {
	if strings.TrimSpace(n.UserID) == "" {
		return shared.WrapError("notification", "Validate", shared.ErrInvalidInput, "user_id is required", nil)
	}
	if !n.Type.IsValid() {
		return shared.ErrInvalidNotification
	}
	if strings.TrimSpace(n.Title) == "" {
		return shared.WrapError("notification", "Validate", shared.ErrInvalidInput, "title is required", nil)
	}
	return nil
}
