package memory

import (
	"context"
	"sort"

	"github.com/obe-hub/gamification-core/internal/domain/notification"
	"github.com/obe-hub/gamification-core/internal/domain/outcome"
	"github.com/obe-hub/gamification-core/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// ACADEMIC CHAIN
// ══════════════════════════════════════════════════════════════════════════════

// AcademicRepo implements outcome.AcademicRepository.
type AcademicRepo struct{ s *Store }

// GetGrade returns a grade by ID.
func (r *AcademicRepo) GetGrade(_ context.Context, gradeID string) (*outcome.Grade, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	if err := r.s.fault(OpAcademicGrade, gradeID); err != nil {
		return nil, err
	}
	g, ok := r.s.grades[gradeID]
	if !ok {
		return nil, shared.ErrGradeNotFound
	}
	return &g, nil
}

// GetSubmission returns a submission by ID.
func (r *AcademicRepo) GetSubmission(_ context.Context, submissionID string) (*outcome.Submission, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	if err := r.s.fault(OpAcademicSubmission, submissionID); err != nil {
		return nil, err
	}
	sub, ok := r.s.submissions[submissionID]
	if !ok {
		return nil, shared.ErrSubmissionNotFound
	}
	return &sub, nil
}

// GetAssignment returns an assignment with a copy of its CLO weights.
func (r *AcademicRepo) GetAssignment(_ context.Context, assignmentID string) (*outcome.Assignment, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	if err := r.s.fault(OpAcademicAssignment, assignmentID); err != nil {
		return nil, err
	}
	a, ok := r.s.assignments[assignmentID]
	if !ok {
		return nil, shared.ErrAssignmentNotFound
	}
	a.CLOWeights = append([]outcome.CLOWeight(nil), a.CLOWeights...)
	return &a, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// EVIDENCE
// ══════════════════════════════════════════════════════════════════════════════

// EvidenceRepo implements outcome.EvidenceRepository.
type EvidenceRepo struct{ s *Store }

// Insert appends evidence, rejecting a second row for the same (grade, clo).
func (r *EvidenceRepo) Insert(_ context.Context, e outcome.Evidence) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fault(OpEvidenceInsert, e.CLOID); err != nil {
		return err
	}
	key := evidenceKey{gradeID: e.GradeID, cloID: e.CLOID}
	if r.s.evidenceIdx[key] {
		return shared.ErrDuplicateEvidence
	}
	r.s.evidenceIdx[key] = true
	r.s.evidence = append(r.s.evidence, e)
	r.s.wrote(OpEvidenceInsert)
	return nil
}

// ListByStudentOutcome returns every evidence row of the student for the CLO.
func (r *EvidenceRepo) ListByStudentOutcome(_ context.Context, studentID, cloID string) ([]outcome.Evidence, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	if err := r.s.fault(OpEvidenceList, cloID); err != nil {
		return nil, err
	}
	out := make([]outcome.Evidence, 0)
	for _, e := range r.s.evidence {
		if e.StudentID == studentID && e.CLOID == cloID {
			out = append(out, e)
		}
	}
	return out, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// MAPPINGS
// ══════════════════════════════════════════════════════════════════════════════

// MappingRepo implements outcome.MappingRepository.
type MappingRepo struct{ s *Store }

// ListBySource returns edges leaving outcomeID.
func (r *MappingRepo) ListBySource(_ context.Context, outcomeID string) ([]outcome.Mapping, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	if err := r.s.fault(OpMappingBySource, outcomeID); err != nil {
		return nil, err
	}
	out := make([]outcome.Mapping, 0)
	for _, m := range r.s.mappings {
		if m.SourceID == outcomeID {
			out = append(out, m)
		}
	}
	return out, nil
}

// ListByTarget returns edges entering outcomeID.
func (r *MappingRepo) ListByTarget(_ context.Context, outcomeID string) ([]outcome.Mapping, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	if err := r.s.fault(OpMappingByTarget, outcomeID); err != nil {
		return nil, err
	}
	out := make([]outcome.Mapping, 0)
	for _, m := range r.s.mappings {
		if m.TargetID == outcomeID {
			out = append(out, m)
		}
	}
	return out, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// ATTAINMENT
// ══════════════════════════════════════════════════════════════════════════════

// AttainmentRepo implements outcome.AttainmentRepository.
type AttainmentRepo struct{ s *Store }

// Upsert writes the row keyed by (outcome, student, course, scope).
func (r *AttainmentRepo) Upsert(_ context.Context, a outcome.Attainment) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fault(OpAttainmentUpsert, a.OutcomeID); err != nil {
		return err
	}
	r.s.attainments[a.AttainmentKey] = a
	r.s.wrote(OpAttainmentUpsert)
	return nil
}

// Latest returns the most recently calculated row for (outcome, student, scope).
func (r *AttainmentRepo) Latest(_ context.Context, outcomeID, studentID string, scope outcome.Scope) (*outcome.Attainment, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	if err := r.s.fault(OpAttainmentLatest, outcomeID); err != nil {
		return nil, err
	}
	var best *outcome.Attainment
	for k, a := range r.s.attainments {
		if k.OutcomeID != outcomeID || k.StudentID != studentID || k.Scope != scope {
			continue
		}
		if best == nil || a.LastCalculatedAt.After(best.LastCalculatedAt) {
			cp := a
			best = &cp
		}
	}
	if best == nil {
		return nil, shared.ErrOutcomeNotFound
	}
	return best, nil
}

// ListByStudent returns the student's rows ordered by scope then outcome.
func (r *AttainmentRepo) ListByStudent(_ context.Context, studentID string) ([]outcome.Attainment, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	if err := r.s.fault(OpAttainmentList, studentID); err != nil {
		return nil, err
	}
	out := make([]outcome.Attainment, 0)
	for k, a := range r.s.attainments {
		if k.StudentID == studentID {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Scope != out[j].Scope {
			return out[i].Scope < out[j].Scope
		}
		if out[i].OutcomeID != out[j].OutcomeID {
			return out[i].OutcomeID < out[j].OutcomeID
		}
		return out[i].CourseID < out[j].CourseID
	})
	return out, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// NOTIFICATIONS
// ══════════════════════════════════════════════════════════════════════════════

// NotificationRepo implements notification.Repository.
type NotificationRepo struct{ s *Store }

// Insert stores a notification.
func (r *NotificationRepo) Insert(_ context.Context, n notification.Notification) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fault(OpNotificationInsert, n.UserID); err != nil {
		return err
	}
	r.s.notifications = append(r.s.notifications, n)
	r.s.wrote(OpNotificationInsert)
	return nil
}

// ListByUser returns the user's notifications newest first.
func (r *NotificationRepo) ListByUser(_ context.Context, userID string, limit int) ([]notification.Notification, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	if err := r.s.fault(OpNotificationList, userID); err != nil {
		return nil, err
	}
	out := make([]notification.Notification, 0)
	for i := len(r.s.notifications) - 1; i >= 0; i-- {
		if r.s.notifications[i].UserID == userID {
			out = append(out, r.s.notifications[i])
			if limit > 0 && len(out) == limit {
				break
			}
		}
	}
	return out, nil
}
