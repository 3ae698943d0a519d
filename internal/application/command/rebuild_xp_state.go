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
// REBUILD XP STATE COMMAND
// Recomputes the cached xp_total and level from the ledger without writing
// a ledger row. Used to heal a cache left stale by a failed upsert.
// ══════════════════════════════════════════════════════════════════════════════

// RebuildXPStateCommand identifies the student to rebuild.
type RebuildXPStateCommand struct {
	StudentID string `validate:"required,max=128"`
}

// Validate validates the command.
func (c RebuildXPStateCommand) Validate() error {
	if err := validateStruct("gamification", "RebuildXPState", c); err != nil {
		return err
	}
	if strings.TrimSpace(c.StudentID) == "" {
		return shared.ErrEmptyStudentID
	}
	return nil
}

// RebuildXPStateResult contains the rebuilt cache values.
type RebuildXPStateResult struct {
	NewTotal int
	NewLevel int
}

// RebuildXPStateHandler handles the RebuildXPStateCommand.
type RebuildXPStateHandler struct {
	ledger    gamification.LedgerRepository
	states    gamification.StateRepository
	publisher shared.EventPublisher
	views     StateViewInvalidator
	clock     timeutil.Clock
	log       *logger.Logger
}

// NewRebuildXPStateHandler creates a new RebuildXPStateHandler.
func NewRebuildXPStateHandler(
	ledger gamification.LedgerRepository,
	states gamification.StateRepository,
	publisher shared.EventPublisher,
	clock timeutil.Clock,
	log *logger.Logger,
) *RebuildXPStateHandler {
	if publisher == nil {
		publisher = shared.NopPublisher{}
	}
	if clock == nil {
		clock = timeutil.SystemClock{}
	}
	if log == nil {
		log = logger.Nop()
	}
	return &RebuildXPStateHandler{
		ledger:    ledger,
		states:    states,
		publisher: publisher,
		clock:     clock,
		log:       log.With(logger.Component("xp_ledger"), logger.Operation("rebuild_xp_state")),
	}
}

// WithStateViewInvalidator drops the cached state view after every rebuild.
func (h *RebuildXPStateHandler) WithStateViewInvalidator(views StateViewInvalidator) *RebuildXPStateHandler {
	h.views = views
	return h
}

// Handle executes the rebuild command.
func (h *RebuildXPStateHandler) Handle(ctx context.Context, cmd RebuildXPStateCommand) (*RebuildXPStateResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	now := h.clock.Now()
	studentID := strings.TrimSpace(cmd.StudentID)

	total, err := h.ledger.SumByStudent(ctx, studentID)
	if err != nil {
		return nil, shared.Storage("gamification", "RebuildXPState", err)
	}
	level := gamification.DeriveLevel(total)

	if err := h.states.UpsertXP(ctx, studentID, total, level, now); err != nil {
		return nil, shared.Storage("gamification", "RebuildXPState", err)
	}
	invalidateStateView(ctx, h.views, studentID, h.log)

	h.log.Info("xp state rebuilt",
		logger.StudentID(studentID),
		logger.Int("new_total", total),
		logger.Int("new_level", level),
	)

	// Refresh downstream projections (leaderboard) with the rebuilt total.
	event := shared.NewXPAwardedEvent(studentID, 0, total, level, "rebuild", now)
	if err := h.publisher.Publish(event); err != nil {
		h.log.Warn("failed to publish rebuild event", logger.StudentID(studentID), logger.Err(err))
	}

	return &RebuildXPStateResult{NewTotal: total, NewLevel: level}, nil
}
