package outcome

import "context"

// ══════════════════════════════════════════════════════════════════════════════
// REPOSITORY INTERFACES
// Реализации находятся в infrastructure/persistence.
// ══════════════════════════════════════════════════════════════════════════════

// AcademicRepository — цепочка grade → submission → assignment.
// Каждый метод возвращает ошибку вида shared.ErrNotFound, если сущности нет.
type AcademicRepository interface {
	GetGrade(ctx context.Context, gradeID string) (*Grade, error)
	GetSubmission(ctx context.Context, submissionID string) (*Submission, error)
	GetAssignment(ctx context.Context, assignmentID string) (*Assignment, error)
}

// EvidenceRepository — append-only журнал доказательств.
type EvidenceRepository interface {
	// Insert добавляет доказательство.
	// Возвращает shared.ErrDuplicateEvidence, если пара (grade, clo) уже записана.
	Insert(ctx context.Context, e Evidence) error

	// ListByStudentOutcome возвращает все доказательства студента по CLO.
	ListByStudentOutcome(ctx context.Context, studentID, cloID string) ([]Evidence, error)
}

// MappingRepository — рёбра графа результатов.
type MappingRepository interface {
	// ListBySource возвращает рёбра, выходящие из outcomeID.
	ListBySource(ctx context.Context, outcomeID string) ([]Mapping, error)

	// ListByTarget возвращает все рёбра, входящие в outcomeID.
	ListByTarget(ctx context.Context, outcomeID string) ([]Mapping, error)
}

// AttainmentRepository — кэш достижений.
type AttainmentRepository interface {
	// Upsert записывает строку по составному ключу.
	Upsert(ctx context.Context, a Attainment) error

	// Latest возвращает последнюю рассчитанную строку студента по результату и области
	// (в любом курсе). Возвращает ошибку вида shared.ErrNotFound, если строки нет.
	Latest(ctx context.Context, outcomeID, studentID string, scope Scope) (*Attainment, error)

	// ListByStudent возвращает все строки студента.
	ListByStudent(ctx context.Context, studentID string) ([]Attainment, error)
}
