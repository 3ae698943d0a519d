package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/obe-hub/gamification-core/internal/domain/outcome"
	"github.com/obe-hub/gamification-core/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// ACADEMIC CHAIN
// ══════════════════════════════════════════════════════════════════════════════

// AcademicRepository implements outcome.AcademicRepository.
type AcademicRepository struct {
	conn *Connection
}

// NewAcademicRepository creates a new AcademicRepository.
func NewAcademicRepository(conn *Connection) *AcademicRepository {
	return &AcademicRepository{conn: conn}
}

// GetGrade returns a grade by ID.
func (r *AcademicRepository) GetGrade(ctx context.Context, gradeID string) (*outcome.Grade, error) {
	var g outcome.Grade
	err := r.conn.QueryRow(ctx,
		"SELECT id, submission_id, score_percent, graded_at FROM grades WHERE id = $1",
		gradeID,
	).Scan(&g.ID, &g.SubmissionID, &g.ScorePercent, &g.GradedAt)
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrGradeNotFound
		}
		return nil, fmt.Errorf("failed to get grade: %w", err)
	}
	return &g, nil
}

// GetSubmission returns a submission by ID.
func (r *AcademicRepository) GetSubmission(ctx context.Context, submissionID string) (*outcome.Submission, error) {
	var s outcome.Submission
	err := r.conn.QueryRow(ctx,
		"SELECT id, student_id, assignment_id FROM submissions WHERE id = $1",
		submissionID,
	).Scan(&s.ID, &s.StudentID, &s.AssignmentID)
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrSubmissionNotFound
		}
		return nil, fmt.Errorf("failed to get submission: %w", err)
	}
	return &s, nil
}

// GetAssignment returns an assignment with its CLO weights.
func (r *AcademicRepository) GetAssignment(ctx context.Context, assignmentID string) (*outcome.Assignment, error) {
	var a outcome.Assignment
	err := r.conn.QueryRow(ctx,
		"SELECT id, course_id FROM assignments WHERE id = $1",
		assignmentID,
	).Scan(&a.ID, &a.CourseID)
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrAssignmentNotFound
		}
		return nil, fmt.Errorf("failed to get assignment: %w", err)
	}

	rows, err := r.conn.Query(ctx,
		"SELECT clo_id, weight FROM assignment_clos WHERE assignment_id = $1 ORDER BY clo_id",
		assignmentID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query assignment clos: %w", err)
	}
	a.CLOWeights, err = pgx.CollectRows(rows, func(row pgx.CollectableRow) (outcome.CLOWeight, error) {
		var w outcome.CLOWeight
		err := row.Scan(&w.CLOID, &w.Weight)
		return w, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan assignment clos: %w", err)
	}
	return &a, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// EVIDENCE
// ══════════════════════════════════════════════════════════════════════════════

// EvidenceRepository implements outcome.EvidenceRepository.
type EvidenceRepository struct {
	conn *Connection
}

// NewEvidenceRepository creates a new EvidenceRepository.
func NewEvidenceRepository(conn *Connection) *EvidenceRepository {
	return &EvidenceRepository{conn: conn}
}

// Insert appends an evidence row. A second row for the same (grade, CLO)
// yields shared.ErrDuplicateEvidence.
func (r *EvidenceRepository) Insert(ctx context.Context, e outcome.Evidence) error {
	query := `
		INSERT INTO evidence (id, student_id, submission_id, grade_id, clo_id, score_percent, attainment_level, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := r.conn.Exec(ctx, query,
		e.ID, e.StudentID, e.SubmissionID, e.GradeID, e.CLOID, e.ScorePercent, e.AttainmentLevel.String(), e.CreatedAt,
	)
	if err != nil {
		if IsUniqueViolation(err) {
			return shared.ErrDuplicateEvidence
		}
		return fmt.Errorf("failed to insert evidence: %w", err)
	}
	return nil
}

// ListByStudentOutcome returns every evidence row of the student for a CLO.
func (r *EvidenceRepository) ListByStudentOutcome(ctx context.Context, studentID, cloID string) ([]outcome.Evidence, error) {
	query := `
		SELECT id::text, student_id, submission_id, grade_id, clo_id, score_percent, attainment_level, created_at
		FROM evidence
		WHERE student_id = $1 AND clo_id = $2
		ORDER BY created_at
	`
	rows, err := r.conn.Query(ctx, query, studentID, cloID)
	if err != nil {
		return nil, fmt.Errorf("failed to query evidence: %w", err)
	}
	defer rows.Close()

	out := make([]outcome.Evidence, 0)
	for rows.Next() {
		var e outcome.Evidence
		var level string
		if err := rows.Scan(&e.ID, &e.StudentID, &e.SubmissionID, &e.GradeID, &e.CLOID, &e.ScorePercent, &level, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan evidence: %w", err)
		}
		e.AttainmentLevel = outcome.ParseAttainmentLevel(level)
		out = append(out, e)
	}
	return out, rows.Err()
}

// ══════════════════════════════════════════════════════════════════════════════
// OUTCOME MAPPINGS
// ══════════════════════════════════════════════════════════════════════════════

// MappingRepository implements outcome.MappingRepository.
type MappingRepository struct {
	conn *Connection
}

// NewMappingRepository creates a new MappingRepository.
func NewMappingRepository(conn *Connection) *MappingRepository {
	return &MappingRepository{conn: conn}
}

// ListBySource returns edges leaving outcomeID.
func (r *MappingRepository) ListBySource(ctx context.Context, outcomeID string) ([]outcome.Mapping, error) {
	return r.list(ctx, "source_outcome_id", outcomeID)
}

// ListByTarget returns edges entering outcomeID.
func (r *MappingRepository) ListByTarget(ctx context.Context, outcomeID string) ([]outcome.Mapping, error) {
	return r.list(ctx, "target_outcome_id", outcomeID)
}

func (r *MappingRepository) list(ctx context.Context, column, outcomeID string) ([]outcome.Mapping, error) {
	query := fmt.Sprintf(`
		SELECT source_outcome_id, target_outcome_id, weight
		FROM outcome_mappings
		WHERE %s = $1
		ORDER BY source_outcome_id, target_outcome_id
	`, column)

	rows, err := r.conn.Query(ctx, query, outcomeID)
	if err != nil {
		return nil, fmt.Errorf("failed to query outcome mappings: %w", err)
	}
	mappings, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (outcome.Mapping, error) {
		var m outcome.Mapping
		err := row.Scan(&m.SourceID, &m.TargetID, &m.Weight)
		return m, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan outcome mappings: %w", err)
	}
	return mappings, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// ATTAINMENT
// ══════════════════════════════════════════════════════════════════════════════

// AttainmentRepository implements outcome.AttainmentRepository.
type AttainmentRepository struct {
	conn *Connection
}

// NewAttainmentRepository creates a new AttainmentRepository.
func NewAttainmentRepository(conn *Connection) *AttainmentRepository {
	return &AttainmentRepository{conn: conn}
}

// Upsert writes the row keyed by (outcome, student, course, scope).
func (r *AttainmentRepository) Upsert(ctx context.Context, a outcome.Attainment) error {
	query := `
		INSERT INTO outcome_attainment (
			outcome_id, student_id, course_id, scope, attainment_percent, sample_count, last_calculated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (outcome_id, student_id, course_id, scope) DO UPDATE SET
			attainment_percent = EXCLUDED.attainment_percent,
			sample_count = EXCLUDED.sample_count,
			last_calculated_at = EXCLUDED.last_calculated_at
	`
	_, err := r.conn.Exec(ctx, query,
		a.OutcomeID, a.StudentID, a.CourseID, a.Scope.String(), a.Percent, a.SampleCount, a.LastCalculatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert attainment: %w", err)
	}
	return nil
}

// Latest returns the most recently calculated row for the student across courses.
func (r *AttainmentRepository) Latest(ctx context.Context, outcomeID, studentID string, scope outcome.Scope) (*outcome.Attainment, error) {
	query := `
		SELECT outcome_id, student_id, course_id, scope, attainment_percent, sample_count, last_calculated_at
		FROM outcome_attainment
		WHERE outcome_id = $1 AND student_id = $2 AND scope = $3
		ORDER BY last_calculated_at DESC
		LIMIT 1
	`
	a, err := scanAttainment(r.conn.QueryRow(ctx, query, outcomeID, studentID, scope.String()))
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrOutcomeNotFound
		}
		return nil, fmt.Errorf("failed to get attainment: %w", err)
	}
	return a, nil
}

// ListByStudent returns all attainment rows of the student.
func (r *AttainmentRepository) ListByStudent(ctx context.Context, studentID string) ([]outcome.Attainment, error) {
	query := `
		SELECT outcome_id, student_id, course_id, scope, attainment_percent, sample_count, last_calculated_at
		FROM outcome_attainment
		WHERE student_id = $1
		ORDER BY scope, outcome_id, course_id
	`
	rows, err := r.conn.Query(ctx, query, studentID)
	if err != nil {
		return nil, fmt.Errorf("failed to query attainment: %w", err)
	}
	defer rows.Close()

	out := make([]outcome.Attainment, 0)
	for rows.Next() {
		a, err := scanAttainment(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan attainment: %w", err)
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}

func scanAttainment(row pgx.Row) (*outcome.Attainment, error) {
	var a outcome.Attainment
	var scope string
	if err := row.Scan(&a.OutcomeID, &a.StudentID, &a.CourseID, &scope, &a.Percent, &a.SampleCount, &a.LastCalculatedAt); err != nil {
		return nil, err
	}
	a.Scope = outcome.ParseScope(scope)
	return &a, nil
}
