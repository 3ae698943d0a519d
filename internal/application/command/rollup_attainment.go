package command

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/obe-hub/gamification-core/internal/domain/notification"
	"github.com/obe-hub/gamification-core/internal/domain/outcome"
	"github.com/obe-hub/gamification-core/internal/domain/shared"
	"github.com/obe-hub/gamification-core/pkg/logger"
	"github.com/obe-hub/gamification-core/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// ROLL UP ATTAINMENT COMMAND
// Records evidence for a finalized grade and recomputes attainment through
// the outcome hierarchy: CLO mean, then PLO and ILO weighted means.
// Every tier re-reads the committed attainment of the tier below, so a retry
// of the whole call recomputes everything from current evidence.
// ══════════════════════════════════════════════════════════════════════════════

// RollUpCommand identifies the grade being released.
type RollUpCommand struct {
	GradeID      string `validate:"required,max=128"`
	SubmissionID string `validate:"required,max=128"`
}

// Validate validates the command.
func (c RollUpCommand) Validate() error {
	if err := validateStruct("outcome", "RollUp", c); err != nil {
		return err
	}
	if strings.TrimSpace(c.GradeID) == "" {
		return shared.ErrEmptyGradeID
	}
	if strings.TrimSpace(c.SubmissionID) == "" {
		return shared.ErrEmptySubmissionID
	}
	return nil
}

// RollUpResult reports how many rows each step committed.
type RollUpResult struct {
	// EvidenceCount is the number of assignment CLOs with evidence recorded for this grade.
	EvidenceCount int
	CLOCount      int
	PLOCount      int
	ILOCount      int
}

// ══════════════════════════════════════════════════════════════════════════════
// HANDLER
// ══════════════════════════════════════════════════════════════════════════════

// RollUpHandler handles the RollUpCommand.
type RollUpHandler struct {
	academic    outcome.AcademicRepository
	evidence    outcome.EvidenceRepository
	mappings    outcome.MappingRepository
	attainments outcome.AttainmentRepository
	notifier    notification.Sink
	clock       timeutil.Clock
	log         *logger.Logger
}

// NewRollUpHandler creates a new RollUpHandler.
func NewRollUpHandler(
	academic outcome.AcademicRepository,
	evidence outcome.EvidenceRepository,
	mappings outcome.MappingRepository,
	attainments outcome.AttainmentRepository,
	notifier notification.Sink,
	clock timeutil.Clock,
	log *logger.Logger,
) *RollUpHandler {
	if clock == nil {
		clock = timeutil.SystemClock{}
	}
	if log == nil {
		log = logger.Nop()
	}

	return &RollUpHandler{
		academic:    academic,
		evidence:    evidence,
		mappings:    mappings,
		attainments: attainments,
		notifier:    notifier,
		clock:       clock,
		log:         log.With(logger.Component("attainment_rollup"), logger.Operation("rollup")),
	}
}

// rollupScope carries the identifiers shared by every step of one rollup.
type rollupScope struct {
	studentID string
	courseID  string
	now       time.Time
	log       *logger.Logger
}

// Handle executes the rollup command.
func (h *RollUpHandler) Handle(ctx context.Context, cmd RollUpCommand) (*RollUpResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	gradeID := strings.TrimSpace(cmd.GradeID)
	submissionID := strings.TrimSpace(cmd.SubmissionID)

	grade, sub, asg, err := h.resolveChain(ctx, gradeID, submissionID)
	if err != nil {
		return nil, err
	}

	rs := rollupScope{
		studentID: sub.StudentID,
		courseID:  asg.CourseID,
		now:       h.clock.Now(),
		log: h.log.With(
			logger.GradeID(grade.ID),
			logger.SubmissionID(sub.ID),
			logger.StudentID(sub.StudentID),
			logger.String("course_id", asg.CourseID),
		),
	}

	result := &RollUpResult{}

	cloIDs := distinctCLOs(asg.CLOWeights)
	if len(cloIDs) == 0 {
		rs.log.Info("assignment has no CLO weights, nothing to roll up")
		return result, nil
	}

	// Step 1: evidence.
	result.EvidenceCount = h.recordEvidence(ctx, rs, *grade, *sub, cloIDs)

	// Step 2: CLO attainment as the mean over the whole evidence history.
	updatedCLOs := h.recomputeCLOs(ctx, rs, cloIDs)
	result.CLOCount = len(updatedCLOs)

	// Step 3: PLO cascade.
	updatedPLOs := h.cascade(ctx, rs, updatedCLOs, outcome.TierCLO, outcome.TierPLO)
	result.PLOCount = len(updatedPLOs)

	// Step 4: ILO cascade.
	updatedILOs := h.cascade(ctx, rs, updatedPLOs, outcome.TierPLO, outcome.TierILO)
	result.ILOCount = len(updatedILOs)

	// Step 5: grade_released notification.
	h.notify(ctx, rs, *grade, *sub)

	rs.log.Info("attainment rolled up",
		logger.Int("evidence_count", result.EvidenceCount),
		logger.Int("clo_count", result.CLOCount),
		logger.Int("plo_count", result.PLOCount),
		logger.Int("ilo_count", result.ILOCount),
	)

	return result, nil
}

// resolveChain walks grade → submission → assignment. Any missing link or a
// grade that belongs to another submission aborts the call.
func (h *RollUpHandler) resolveChain(ctx context.Context, gradeID, submissionID string) (*outcome.Grade, *outcome.Submission, *outcome.Assignment, error) {
	grade, err := h.academic.GetGrade(ctx, gradeID)
	if err != nil {
		return nil, nil, nil, h.lookupError("FindGrade", shared.ErrGradeNotFound, err)
	}

	sub, err := h.academic.GetSubmission(ctx, submissionID)
	if err != nil {
		return nil, nil, nil, h.lookupError("FindSubmission", shared.ErrSubmissionNotFound, err)
	}
	if strings.TrimSpace(sub.StudentID) == "" {
		return nil, nil, nil, shared.ErrSubmissionNotFound
	}
	if grade.SubmissionID != sub.ID {
		return nil, nil, nil, shared.Validation("outcome", "RollUp",
			fmt.Sprintf("grade %s belongs to submission %s, not %s", grade.ID, grade.SubmissionID, sub.ID))
	}

	asg, err := h.academic.GetAssignment(ctx, sub.AssignmentID)
	if err != nil {
		return nil, nil, nil, h.lookupError("FindAssignment", shared.ErrAssignmentNotFound, err)
	}

	return grade, sub, asg, nil
}

func (h *RollUpHandler) lookupError(op string, notFound *shared.DomainError, err error) error {
	if shared.IsNotFound(err) {
		return notFound
	}
	h.log.Error("academic chain lookup failed", logger.String("lookup", op), logger.Err(err))
	return shared.Storage("outcome", op, err)
}

func (h *RollUpHandler) recordEvidence(ctx context.Context, rs rollupScope, grade outcome.Grade, sub outcome.Submission, cloIDs []string) int {
	count := 0
	for _, cloID := range cloIDs {
		ev := outcome.NewEvidence(uuid.NewString(), sub, grade, cloID, rs.now)
		err := h.evidence.Insert(ctx, ev)
		switch {
		case err == nil:
			count++
		case shared.IsAlreadyExists(err):
			rs.log.Debug("evidence already recorded for grade", logger.OutcomeID(cloID))
			count++
		default:
			rs.log.Warn("failed to insert evidence", logger.OutcomeID(cloID), logger.Err(err))
		}
	}
	return count
}

func (h *RollUpHandler) recomputeCLOs(ctx context.Context, rs rollupScope, cloIDs []string) []string {
	updated := make([]string, 0, len(cloIDs))
	for _, cloID := range cloIDs {
		history, err := h.evidence.ListByStudentOutcome(ctx, rs.studentID, cloID)
		if err != nil {
			rs.log.Warn("failed to load evidence history", logger.OutcomeID(cloID), logger.Err(err))
			continue
		}

		mean, samples, ok := outcome.MeanScore(history)
		if !ok {
			rs.log.Warn("no evidence for CLO, skipping", logger.OutcomeID(cloID))
			continue
		}

		if err := h.attainments.Upsert(ctx, outcome.Attainment{
			AttainmentKey: outcome.AttainmentKey{
				OutcomeID: cloID,
				StudentID: rs.studentID,
				CourseID:  rs.courseID,
				Scope:     outcome.ScopeStudentCourse,
			},
			Percent:          mean,
			SampleCount:      samples,
			LastCalculatedAt: rs.now,
		}); err != nil {
			rs.log.Warn("failed to upsert CLO attainment", logger.OutcomeID(cloID), logger.Err(err))
			continue
		}
		updated = append(updated, cloID)
	}
	return updated
}

// cascade recomputes every target reachable from the just-updated sources as a
// weighted mean over all of the target's incoming mappings.
func (h *RollUpHandler) cascade(ctx context.Context, rs rollupScope, sourceIDs []string, from, to outcome.Tier) []string {
	if len(sourceIDs) == 0 {
		return nil
	}

	targets := make([]string, 0)
	seen := make(map[string]bool)
	for _, srcID := range sourceIDs {
		edges, err := h.mappings.ListBySource(ctx, srcID)
		if err != nil {
			rs.log.Warn("failed to load outgoing mappings",
				logger.OutcomeID(srcID),
				logger.String("tier", from.String()),
				logger.Err(err),
			)
			continue
		}
		for _, e := range edges {
			if !seen[e.TargetID] {
				seen[e.TargetID] = true
				targets = append(targets, e.TargetID)
			}
		}
	}

	updated := make([]string, 0, len(targets))
	for _, targetID := range targets {
		log := rs.log.With(logger.OutcomeID(targetID), logger.String("tier", to.String()))

		contributions, err := h.contributions(ctx, rs, targetID, from.Scope())
		if err != nil {
			log.Warn("failed to gather contributions", logger.Err(err))
			continue
		}

		mean, samples, ok := outcome.WeightedMean(contributions)
		if !ok {
			log.Warn("no attained sources for outcome, skipping")
			continue
		}

		if err := h.attainments.Upsert(ctx, outcome.Attainment{
			AttainmentKey: outcome.AttainmentKey{
				OutcomeID: targetID,
				StudentID: rs.studentID,
				CourseID:  rs.courseID,
				Scope:     to.Scope(),
			},
			Percent:          mean,
			SampleCount:      samples,
			LastCalculatedAt: rs.now,
		}); err != nil {
			log.Warn("failed to upsert attainment", logger.Err(err))
			continue
		}
		updated = append(updated, targetID)
	}
	return updated
}

// contributions reads the committed attainment of every source mapped to targetID.
// Sources the student has not attained yet are marked unattained, not zero.
func (h *RollUpHandler) contributions(ctx context.Context, rs rollupScope, targetID string, sourceScope outcome.Scope) ([]outcome.Contribution, error) {
	edges, err := h.mappings.ListByTarget(ctx, targetID)
	if err != nil {
		return nil, err
	}

	out := make([]outcome.Contribution, 0, len(edges))
	for _, e := range edges {
		c := outcome.Contribution{SourceID: e.SourceID, Weight: e.Weight}

		att, err := h.attainments.Latest(ctx, e.SourceID, rs.studentID, sourceScope)
		switch {
		case err == nil:
			c.Attained = true
			c.Percent = att.Percent
			c.SampleCount = att.SampleCount
		case shared.IsNotFound(err):
		default:
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

func (h *RollUpHandler) notify(ctx context.Context, rs rollupScope, grade outcome.Grade, sub outcome.Submission) {
	if h.notifier == nil {
		return
	}
	n := notification.GradeReleased(uuid.NewString(), rs.studentID, grade.ID, sub.ID, grade.ScorePercent, rs.now)
	if err := h.notifier.Send(ctx, n); err != nil {
		rs.log.Warn("failed to send grade_released notification",
			logger.NotificationType(string(n.Type)),
			logger.Err(err),
		)
	}
}

func distinctCLOs(weights []outcome.CLOWeight) []string {
	ids := make([]string, 0, len(weights))
	seen := make(map[string]bool, len(weights))
	for _, w := range weights {
		id := strings.TrimSpace(w.CLOID)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		ids = append(ids, id)
	}
	return ids
}
