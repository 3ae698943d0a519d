package gamification

import (
	"time"

	"github.com/obe-hub/gamification-core/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// STREAK TRANSITION
// ══════════════════════════════════════════════════════════════════════════════

// StreakTransition — результат применения одного дня активности к серии.
type StreakTransition struct {
	// Count — новая длина серии.
	Count int

	// Changed — false при повторном вызове в тот же день: писать ничего не нужно.
	Changed bool

	// Frozen — пропущенный день прощён за счёт заморозки.
	Frozen bool

	// FreezesAvailable — остаток заморозок после перехода.
	FreezesAvailable int

	// Reset — серия сброшена к 1 после разрыва.
	Reset bool
}

// AdvanceStreak вычисляет переход серии для дня today (UTC-дата).
//
//	тот же день          → без изменений
//	первый вход (nil)    → 1
//	d = 1                → +1
//	d = 2 и есть заморозка → +1, заморозка списана
//	иначе                → 1
func AdvanceStreak(s State, today time.Time) StreakTransition {
	freezes := s.StreakFreezesAvailable
	if freezes < 0 {
		freezes = 0
	}

	if s.LastLoginDate == nil {
		return StreakTransition{Count: 1, Changed: true, FreezesAvailable: freezes}
	}

	d := timeutil.DaysBetween(*s.LastLoginDate, today)
	switch {
	case d == 0:
		return StreakTransition{Count: s.StreakCount, Changed: false, FreezesAvailable: freezes}
	case d == 1:
		return StreakTransition{Count: s.StreakCount + 1, Changed: true, FreezesAvailable: freezes}
	case d == 2 && freezes > 0:
		return StreakTransition{
			Count:            s.StreakCount + 1,
			Changed:          true,
			Frozen:           true,
			FreezesAvailable: freezes - 1,
		}
	default:
		return StreakTransition{Count: 1, Changed: true, Reset: true, FreezesAvailable: freezes}
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// MILESTONES
// ══════════════════════════════════════════════════════════════════════════════

// milestoneBonus — фиксированный бонус XP за каждую веху серии.
var milestoneBonus = map[int]int{
	7:   100,
	14:  100,
	30:  250,
	60:  250,
	100: 500,
}

// peerMilestones — вехи, о которых узнают однокурсники.
var peerMilestones = map[int]bool{
	7:   true,
	30:  true,
	100: true,
}

// CheckMilestone возвращает n, если n — веха, иначе false.
func CheckMilestone(n int) (int, bool) {
	if _, ok := milestoneBonus[n]; ok {
		return n, true
	}
	return 0, false
}

// MilestoneBonusXP возвращает бонус за веху (0 для не-вехи).
func MilestoneBonusXP(milestone int) int {
	return milestoneBonus[milestone]
}

// NotifiesPeers проверяет, рассылается ли веха однокурсникам.
func NotifiesPeers(milestone int) bool {
	return peerMilestones[milestone]
}
