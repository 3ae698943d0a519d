package gamification

import (
	"math"
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// XP LEDGER
// ══════════════════════════════════════════════════════════════════════════════

// Transaction — неизменяемая строка леджера XP.
// Никогда не обновляется и не удаляется.
type Transaction struct {
	ID          string
	StudentID   string
	Amount      int // может быть 0 или отрицательным
	Source      Source
	ReferenceID string
	Note        string
	CreatedAt   time.Time
}

// SumLedger — чистый редьюсер: канонический XP студента равен сумме его строк.
func SumLedger(txs []Transaction) int {
	total := 0
	for _, tx := range txs {
		total += tx.Amount
	}
	return total
}

// ══════════════════════════════════════════════════════════════════════════════
// BONUS MULTIPLIERS
// ══════════════════════════════════════════════════════════════════════════════

// BonusEvent — ограниченный по времени множитель XP.
type BonusEvent struct {
	ID         string
	Name       string
	Multiplier float64 // ≥ 1
	StartDate  time.Time
	EndDate    time.Time
}

// IsActiveAt проверяет, что t попадает в [StartDate, EndDate].
func (b BonusEvent) IsActiveAt(t time.Time) bool {
	return !t.Before(b.StartDate) && !t.After(b.EndDate)
}

// HighestMultiplier возвращает наибольший множитель среди активных на момент t.
// Множители не складываются. Без активных событий — 1.
func HighestMultiplier(events []BonusEvent, t time.Time) float64 {
	best := 1.0
	for _, e := range events {
		if !e.IsActiveAt(t) {
			continue
		}
		if e.Multiplier > best {
			best = e.Multiplier
		}
	}
	return best
}

// ApplyMultiplier умножает сумму и округляет вниз.
func ApplyMultiplier(amount int, multiplier float64) int {
	if multiplier <= 1 {
		return amount
	}
	return int(math.Floor(float64(amount) * multiplier))
}
