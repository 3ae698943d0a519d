package notification

import (
	"fmt"
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// TRIGGERS
// Конструкторы уведомлений для событий ядра. ID проставляет вызывающий.
// ══════════════════════════════════════════════════════════════════════════════

// GradeReleased — оценка опубликована.
func GradeReleased(id, studentID, gradeID, submissionID string, scorePercent float64, at time.Time) Notification {
	return Notification{
		ID:      id,
		UserID:  studentID,
		Type:    TypeGradeReleased,
		Title:   "Grade released",
		Message: fmt.Sprintf("Your submission was graded: %.1f%%. Outcome attainment has been updated.", scorePercent),
		Metadata: map[string]any{
			"grade_id":      gradeID,
			"submission_id": submissionID,
			"score_percent": scorePercent,
		},
		CreatedAt: at,
	}
}

// StreakMilestone — студент сам достиг вехи.
func StreakMilestone(id, studentID string, milestone, bonusXP int, at time.Time) Notification {
	return Notification{
		ID:      id,
		UserID:  studentID,
		Type:    TypeStreakMilestone,
		Title:   fmt.Sprintf("%d-day streak!", milestone),
		Message: fmt.Sprintf("You kept your streak for %d days and earned %d bonus XP.", milestone, bonusXP),
		Metadata: map[string]any{
			"milestone": milestone,
			"bonus_xp":  bonusXP,
		},
		CreatedAt: at,
	}
}

// PeerMilestone — однокурсник достиг вехи.
func PeerMilestone(id, peerID, achieverID, achieverName string, milestone int, at time.Time) Notification {
	if achieverName == "" {
		achieverName = "A classmate"
	}
	return Notification{
		ID:      id,
		UserID:  peerID,
		Type:    TypePeerMilestone,
		Title:   "A classmate is on a roll",
		Message: fmt.Sprintf("%s reached a %d-day learning streak.", achieverName, milestone),
		Metadata: map[string]any{
			"achiever_id": achieverID,
			"milestone":   milestone,
		},
		CreatedAt: at,
	}
}

// LevelUp — повышение уровня.
func LevelUp(id, studentID string, oldLevel, newLevel, totalXP int, at time.Time) Notification {
	return Notification{
		ID:      id,
		UserID:  studentID,
		Type:    TypeLevelUp,
		Title:   fmt.Sprintf("Level %d reached", newLevel),
		Message: fmt.Sprintf("You advanced from level %d to level %d with %d XP.", oldLevel, newLevel, totalXP),
		Metadata: map[string]any{
			"old_level": oldLevel,
			"new_level": newLevel,
			"total_xp":  totalXP,
		},
		CreatedAt: at,
	}
}
