package gamification

import "math"

// ══════════════════════════════════════════════════════════════════════════════
// LEVEL TABLE
// ══════════════════════════════════════════════════════════════════════════════

const (
	// MinLevel — уровень любого студента с неположительным XP.
	MinLevel = 1

	// MaxLevel — последний уровень таблицы.
	MaxLevel = 50
)

// levelThresholds[n-1] = минимальный XP для уровня n.
var levelThresholds = buildLevelThresholds()

func buildLevelThresholds() [MaxLevel]int {
	var t [MaxLevel]int
	t[0] = 0
	t[1] = 100
	t[2] = 250
	for n := 4; n <= MaxLevel; n++ {
		t[n-1] = int(math.Floor(50 * math.Pow(float64(n), 1.5)))
	}
	return t
}

// LevelThreshold возвращает XP, необходимый для уровня n.
// Для n вне [1, 50] значение зажимается к границе таблицы.
func LevelThreshold(n int) int {
	if n < MinLevel {
		n = MinLevel
	}
	if n > MaxLevel {
		n = MaxLevel
	}
	return levelThresholds[n-1]
}

// DeriveLevel возвращает наибольший n, для которого L(n) ≤ total.
// Отрицательный total зажимается к уровню 1.
func DeriveLevel(total int) int {
	level := MinLevel
	for n := MinLevel + 1; n <= MaxLevel; n++ {
		if levelThresholds[n-1] > total {
			break
		}
		level = n
	}
	return level
}

// XPToNextLevel возвращает, сколько XP не хватает до следующего уровня.
// На максимальном уровне — 0.
func XPToNextLevel(total int) int {
	level := DeriveLevel(total)
	if level >= MaxLevel {
		return 0
	}
	return levelThresholds[level] - total
}
