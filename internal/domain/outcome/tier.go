// Package outcome содержит доменную модель OBE: иерархию результатов обучения
// (CLO → PLO → ILO), доказательства (evidence) и кэш достижения (attainment).
package outcome

// ══════════════════════════════════════════════════════════════════════════════
// TIER & SCOPE
// ══════════════════════════════════════════════════════════════════════════════

// Tier — уровень результата обучения. Фиксируется при создании.
type Tier uint8

const (
	TierUnknown Tier = iota
	TierCLO          // курс
	TierPLO          // программа
	TierILO          // институт
)

// String возвращает код уровня.
func (t Tier) String() string {
	switch t {
	case TierCLO:
		return "CLO"
	case TierPLO:
		return "PLO"
	case TierILO:
		return "ILO"
	case TierUnknown:
		return "unknown"
	}
	return "unknown"
}

// ParseTier разбирает код уровня.
func ParseTier(raw string) Tier {
	switch raw {
	case "CLO", "clo":
		return TierCLO
	case "PLO", "plo":
		return TierPLO
	case "ILO", "ilo":
		return TierILO
	default:
		return TierUnknown
	}
}

// Scope — область строки OutcomeAttainment. Взаимно однозначна с Tier.
type Scope uint8

const (
	ScopeUnknown       Scope = iota
	ScopeStudentCourse       // CLO
	ScopeCourse              // PLO
	ScopeProgram             // ILO
)

// String возвращает значение, которое хранится в БД.
func (s Scope) String() string {
	switch s {
	case ScopeStudentCourse:
		return "student_course"
	case ScopeCourse:
		return "course"
	case ScopeProgram:
		return "program"
	case ScopeUnknown:
		return "unknown"
	}
	return "unknown"
}

// ParseScope разбирает значение из БД.
func ParseScope(raw string) Scope {
	switch raw {
	case "student_course":
		return ScopeStudentCourse
	case "course":
		return ScopeCourse
	case "program":
		return ScopeProgram
	default:
		return ScopeUnknown
	}
}

// Scope возвращает область, в которой хранится достижение данного уровня.
func (t Tier) Scope() Scope {
	switch t {
	case TierCLO:
		return ScopeStudentCourse
	case TierPLO:
		return ScopeCourse
	case TierILO:
		return ScopeProgram
	case TierUnknown:
		return ScopeUnknown
	}
	return ScopeUnknown
}

// Tier возвращает уровень, соответствующий области.
func (s Scope) Tier() Tier {
	switch s {
	case ScopeStudentCourse:
		return TierCLO
	case ScopeCourse:
		return TierPLO
	case ScopeProgram:
		return TierILO
	case ScopeUnknown:
		return TierUnknown
	}
	return TierUnknown
}

// ══════════════════════════════════════════════════════════════════════════════
// ATTAINMENT LEVEL
// ══════════════════════════════════════════════════════════════════════════════

// AttainmentLevel — классифицированная полоса результата.
type AttainmentLevel uint8

const (
	LevelNotYet AttainmentLevel = iota
	LevelDeveloping
	LevelSatisfactory
	LevelExcellent
)

// String возвращает значение, которое хранится в БД.
func (l AttainmentLevel) String() string {
	switch l {
	case LevelExcellent:
		return "Excellent"
	case LevelSatisfactory:
		return "Satisfactory"
	case LevelDeveloping:
		return "Developing"
	case LevelNotYet:
		return "Not_Yet"
	}
	return "Not_Yet"
}

// ParseAttainmentLevel разбирает значение из БД.
func ParseAttainmentLevel(raw string) AttainmentLevel {
	switch raw {
	case "Excellent":
		return LevelExcellent
	case "Satisfactory":
		return LevelSatisfactory
	case "Developing":
		return LevelDeveloping
	default:
		return LevelNotYet
	}
}

// Classify относит процент к полосе: ≥85, ≥70, ≥50, иначе Not_Yet.
func Classify(scorePercent float64) AttainmentLevel {
	switch {
	case scorePercent >= 85:
		return LevelExcellent
	case scorePercent >= 70:
		return LevelSatisfactory
	case scorePercent >= 50:
		return LevelDeveloping
	default:
		return LevelNotYet
	}
}
