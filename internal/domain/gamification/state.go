package gamification

import "time"

// ══════════════════════════════════════════════════════════════════════════════
// GAMIFICATION STATE
// ══════════════════════════════════════════════════════════════════════════════

// State — одна строка на студента. XPTotal и Level — производный кэш леджера,
// поля серии живут только здесь.
type State struct {
	StudentID              string
	XPTotal                int
	Level                  int
	StreakCount            int
	LastLoginDate          *time.Time // UTC-дата, nil до первого входа
	StreakFreezesAvailable int
	UpdatedAt              time.Time
}

// NewState возвращает состояние студента, у которого ещё нет строки в хранилище.
func NewState(studentID string) State {
	return State{
		StudentID: studentID,
		Level:     MinLevel,
	}
}

// StoredLevel возвращает сохранённый уровень, не опускаясь ниже MinLevel.
func (s State) StoredLevel() int {
	if s.Level < MinLevel {
		return MinLevel
	}
	return s.Level
}

// Profile — данные студента, нужные ядру: имя для уведомлений
// и режим анонимного лидерборда.
type Profile struct {
	StudentID            string
	DisplayName          string
	AnonymousLeaderboard bool
}
