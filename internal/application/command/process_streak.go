package command

import (
	"context"
	"strings"

	"github.com/obe-hub/gamification-core/internal/domain/gamification"
	"github.com/obe-hub/gamification-core/internal/domain/shared"
	"github.com/obe-hub/gamification-core/pkg/logger"
	"github.com/obe-hub/gamification-core/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// PROCESS STREAK COMMAND
// Applies one day of activity to the student's streak. Called at least once
// per active day; repeated calls on the same UTC date write nothing.
// Milestone XP and peer notifications are handed to the event bus so the
// streak update never depends on them.
// ══════════════════════════════════════════════════════════════════════════════

// ProcessStreakCommand contains the student whose activity is recorded.
type ProcessStreakCommand struct {
	StudentID string `validate:"required,max=128"`
}

// Validate validates the command.
func (c ProcessStreakCommand) Validate() error {
	if err := validateStruct("gamification", "ProcessStreak", c); err != nil {
		return err
	}
	if strings.TrimSpace(c.StudentID) == "" {
		return shared.ErrEmptyStudentID
	}
	return nil
}

// ProcessStreakResult contains the outcome of the streak update.
type ProcessStreakResult struct {
	// StreakCount is the streak after this call.
	StreakCount int

	// MilestoneReached is set when StreakCount landed exactly on a milestone.
	MilestoneReached *int

	// StreakFrozen is true when a freeze forgave a missed day.
	StreakFrozen bool

	// FreezesAvailable is the remaining freeze balance.
	FreezesAvailable int

	// Updated is false for a same-day repeat.
	Updated bool
}

// ══════════════════════════════════════════════════════════════════════════════
// HANDLER
// ══════════════════════════════════════════════════════════════════════════════

// ProcessStreakHandler handles the ProcessStreakCommand.
type ProcessStreakHandler struct {
	states    gamification.StateRepository
	publisher shared.EventPublisher
	views     StateViewInvalidator
	clock     timeutil.Clock
	log       *logger.Logger
}

// NewProcessStreakHandler creates a new ProcessStreakHandler.
func NewProcessStreakHandler(
	states gamification.StateRepository,
	publisher shared.EventPublisher,
	clock timeutil.Clock,
	log *logger.Logger,
) *ProcessStreakHandler {
	if publisher == nil {
		publisher = shared.NopPublisher{}
	}
	if clock == nil {
		clock = timeutil.SystemClock{}
	}
	if log == nil {
		log = logger.Nop()
	}

	return &ProcessStreakHandler{
		states:    states,
		publisher: publisher,
		clock:     clock,
		log:       log.With(logger.Component("streak_tracker"), logger.Operation("process_streak")),
	}
}

// WithStateViewInvalidator drops the cached state view after every streak write.
func (h *ProcessStreakHandler) WithStateViewInvalidator(views StateViewInvalidator) *ProcessStreakHandler {
	h.views = views
	return h
}

// Handle executes the process streak command.
func (h *ProcessStreakHandler) Handle(ctx context.Context, cmd ProcessStreakCommand) (*ProcessStreakResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	now := h.clock.Now()
	today := timeutil.StartOfDay(now)
	studentID := strings.TrimSpace(cmd.StudentID)
	log := h.log.With(logger.StudentID(studentID))

	state, err := h.states.Get(ctx, studentID)
	switch {
	case err == nil:
	case shared.IsNotFound(err):
		fresh := gamification.NewState(studentID)
		state = &fresh
	default:
		log.Error("failed to read streak state", logger.Err(err))
		return nil, shared.Storage("gamification", "ProcessStreak", err)
	}

	tr := gamification.AdvanceStreak(*state, today)
	if !tr.Changed {
		log.Debug("streak already processed today", logger.StreakCount(tr.Count))
		return &ProcessStreakResult{
			StreakCount:      tr.Count,
			FreezesAvailable: tr.FreezesAvailable,
		}, nil
	}

	if err := h.states.UpsertStreak(ctx, studentID, tr.Count, today, tr.FreezesAvailable, now); err != nil {
		log.Error("failed to upsert streak", logger.Err(err))
		return nil, shared.Storage("gamification", "ProcessStreak", err)
	}
	invalidateStateView(ctx, h.views, studentID, log)

	result := &ProcessStreakResult{
		StreakCount:      tr.Count,
		StreakFrozen:     tr.Frozen,
		FreezesAvailable: tr.FreezesAvailable,
		Updated:          true,
	}

	log.Info("streak updated",
		logger.StreakCount(tr.Count),
		logger.Bool("frozen", tr.Frozen),
		logger.Bool("reset", tr.Reset),
	)

	if milestone, ok := gamification.CheckMilestone(tr.Count); ok {
		result.MilestoneReached = &milestone

		event := shared.NewStreakMilestoneReachedEvent(
			studentID,
			milestone,
			gamification.MilestoneBonusXP(milestone),
			gamification.NotifiesPeers(milestone),
			now,
		)
		if err := h.publisher.Publish(event); err != nil {
			log.Warn("failed to submit milestone side effects",
				logger.Int("milestone", milestone),
				logger.Err(err),
			)
		}
	}

	return result, nil
}
