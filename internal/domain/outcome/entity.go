package outcome

import "time"

// ══════════════════════════════════════════════════════════════════════════════
// ACADEMIC CHAIN (внешние сущности, только чтение)
// ══════════════════════════════════════════════════════════════════════════════

// Grade — финальная оценка работы.
type Grade struct {
	ID           string
	SubmissionID string
	ScorePercent float64
	GradedAt     time.Time
}

// Submission — сданная работа студента.
type Submission struct {
	ID           string
	StudentID    string
	AssignmentID string
}

// CLOWeight — вес результата курса в задании.
type CLOWeight struct {
	CLOID  string
	Weight float64
}

// Assignment — задание курса со списком CLO-весов.
type Assignment struct {
	ID         string
	CourseID   string
	CLOWeights []CLOWeight
}

// ══════════════════════════════════════════════════════════════════════════════
// OUTCOME GRAPH
// ══════════════════════════════════════════════════════════════════════════════

// Mapping — направленное взвешенное ребро source → target (CLO→PLO или PLO→ILO).
type Mapping struct {
	SourceID string
	TargetID string
	Weight   float64
}

// ══════════════════════════════════════════════════════════════════════════════
// EVIDENCE & ATTAINMENT
// ══════════════════════════════════════════════════════════════════════════════

// Evidence — неизменяемая запись «одна оценка → один CLO».
type Evidence struct {
	ID              string
	StudentID       string
	SubmissionID    string
	GradeID         string
	CLOID           string
	ScorePercent    float64
	AttainmentLevel AttainmentLevel
	CreatedAt       time.Time
}

// NewEvidence создаёт доказательство и классифицирует процент.
func NewEvidence(id string, sub Submission, g Grade, cloID string, at time.Time) Evidence {
	return Evidence{
		ID:              id,
		StudentID:       sub.StudentID,
		SubmissionID:    sub.ID,
		GradeID:         g.ID,
		CLOID:           cloID,
		ScorePercent:    g.ScorePercent,
		AttainmentLevel: Classify(g.ScorePercent),
		CreatedAt:       at,
	}
}

// AttainmentKey — составной ключ строки достижения; якорь идемпотентности.
type AttainmentKey struct {
	OutcomeID string
	StudentID string
	CourseID  string
	Scope     Scope
}

// Attainment — кэшированное достижение студента по одному результату.
type Attainment struct {
	AttainmentKey
	Percent          float64
	SampleCount      int
	LastCalculatedAt time.Time
}

// Level возвращает полосу достижения.
func (a Attainment) Level() AttainmentLevel {
	return Classify(a.Percent)
}
