package command

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/obe-hub/gamification-core/internal/domain/gamification"
	"github.com/obe-hub/gamification-core/internal/domain/shared"
	"github.com/obe-hub/gamification-core/pkg/logger"
	"github.com/obe-hub/gamification-core/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// AWARD XP COMMAND
// Appends a grant to the XP ledger, re-sums the ledger, derives the level
// and upserts the cached gamification state.
// ══════════════════════════════════════════════════════════════════════════════

// AwardXPCommand contains the data for a single XP grant.
type AwardXPCommand struct {
	// StudentID is the recipient of the grant.
	StudentID string `validate:"required,max=128"`

	// Amount is the requested amount. Any integer, including 0 and negatives.
	Amount int

	// Source must be one of the closed set of XP sources.
	Source string `validate:"required"`

	// ReferenceID optionally links the grant to a domain object (grade, badge, ...).
	ReferenceID string `validate:"max=128"`

	// Note is an optional free-text audit note.
	Note string `validate:"max=1000"`
}

// Validate validates the command.
func (c AwardXPCommand) Validate() error {
	if err := validateStruct("gamification", "AwardXP", c); err != nil {
		return err
	}
	if strings.TrimSpace(c.StudentID) == "" {
		return shared.ErrEmptyStudentID
	}
	if !gamification.ParseSource(c.Source).Valid() {
		return shared.ErrInvalidSource
	}
	return nil
}

// AwardXPResult contains the result of a grant.
type AwardXPResult struct {
	// Awarded is the amount actually written to the ledger (after the bonus multiplier).
	Awarded int

	// NewTotal is the re-summed lifetime total.
	NewTotal int

	// LevelUp is true when NewLevel exceeds the previously stored level.
	LevelUp bool

	// NewLevel is derived from NewTotal.
	NewLevel int

	// Multiplier is the bonus multiplier that was applied (1 when none).
	Multiplier float64
}

// ══════════════════════════════════════════════════════════════════════════════
// HANDLER
// ══════════════════════════════════════════════════════════════════════════════

// AwardXPHandler handles the AwardXPCommand.
type AwardXPHandler struct {
	ledger    gamification.LedgerRepository
	bonuses   gamification.BonusRepository
	states    gamification.StateRepository
	publisher shared.EventPublisher
	clock     timeutil.Clock
	log       *logger.Logger
}

// NewAwardXPHandler creates a new AwardXPHandler.
func NewAwardXPHandler(
	ledger gamification.LedgerRepository,
	bonuses gamification.BonusRepository,
	states gamification.StateRepository,
	publisher shared.EventPublisher,
	clock timeutil.Clock,
	log *logger.Logger,
) *AwardXPHandler {
	if publisher == nil {
		publisher = shared.NopPublisher{}
	}
	if clock == nil {
		clock = timeutil.SystemClock{}
	}
	if log == nil {
		log = logger.Nop()
	}

	return &AwardXPHandler{
		ledger:    ledger,
		bonuses:   bonuses,
		states:    states,
		publisher: publisher,
		clock:     clock,
		log:       log.With(logger.Component("xp_ledger"), logger.Operation("award_xp")),
	}
}

// Handle executes the award XP command.
func (h *AwardXPHandler) Handle(ctx context.Context, cmd AwardXPCommand) (*AwardXPResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	now := h.clock.Now()
	studentID := strings.TrimSpace(cmd.StudentID)
	source := gamification.ParseSource(cmd.Source)
	log := h.log.With(logger.StudentID(studentID), logger.String("source", source.String()))

	// Zero grants are audited but never trigger a recompute.
	if cmd.Amount == 0 {
		if err := h.insert(ctx, studentID, 0, source, cmd, now); err != nil {
			return nil, err
		}
		log.Debug("zero xp grant recorded")
		return &AwardXPResult{Awarded: 0, NewTotal: 0, LevelUp: false, NewLevel: gamification.MinLevel, Multiplier: 1}, nil
	}

	multiplier := h.activeMultiplier(ctx, now, log)
	awarded := gamification.ApplyMultiplier(cmd.Amount, multiplier)

	// 1. Ledger row. Failure here aborts with no partial state.
	if err := h.insert(ctx, studentID, awarded, source, cmd, now); err != nil {
		return nil, err
	}

	// 2. Full re-aggregation of the ledger.
	total, err := h.ledger.SumByStudent(ctx, studentID)
	if err != nil {
		log.Error("ledger re-sum failed, cached total is stale until next grant", logger.Err(err))
		return nil, shared.Storage("gamification", "AwardXP", err)
	}

	// 3. Level from the table.
	newLevel := gamification.DeriveLevel(total)

	// 4. Previously stored level.
	prevLevel := gamification.MinLevel
	prev, err := h.states.Get(ctx, studentID)
	switch {
	case err == nil:
		prevLevel = prev.StoredLevel()
	case shared.IsNotFound(err):
	default:
		log.Error("failed to read previous level", logger.Err(err))
		return nil, shared.Storage("gamification", "AwardXP", err)
	}

	// 5. Upsert cached state.
	if err := h.states.UpsertXP(ctx, studentID, total, newLevel, now); err != nil {
		log.Error("failed to upsert gamification state", logger.Err(err))
		return nil, shared.Storage("gamification", "AwardXP", err)
	}

	levelUp := newLevel > prevLevel

	log.Info("xp awarded",
		logger.XPAmount(awarded),
		logger.Int("new_total", total),
		logger.Int("new_level", newLevel),
		logger.Bool("level_up", levelUp),
		logger.Float64("multiplier", multiplier),
	)

	h.publish(log, shared.NewXPAwardedEvent(studentID, awarded, total, newLevel, source.String(), now))
	if levelUp {
		h.publish(log, shared.NewLevelUpEvent(studentID, prevLevel, newLevel, total, now))
	}

	return &AwardXPResult{
		Awarded:    awarded,
		NewTotal:   total,
		LevelUp:    levelUp,
		NewLevel:   newLevel,
		Multiplier: multiplier,
	}, nil
}

func (h *AwardXPHandler) insert(ctx context.Context, studentID string, amount int, source gamification.Source, cmd AwardXPCommand, now time.Time) error {
	tx := gamification.Transaction{
		ID:          uuid.NewString(),
		StudentID:   studentID,
		Amount:      amount,
		Source:      source,
		ReferenceID: cmd.ReferenceID,
		Note:        cmd.Note,
		CreatedAt:   now,
	}
	if err := h.ledger.Insert(ctx, tx); err != nil {
		h.log.Error("ledger insert failed", logger.StudentID(studentID), logger.Err(err))
		return shared.Storage("gamification", "AwardXP", err)
	}
	return nil
}

// activeMultiplier is best-effort: a failed lookup grants the unmultiplied amount.
func (h *AwardXPHandler) activeMultiplier(ctx context.Context, now time.Time, log *logger.Logger) float64 {
	if h.bonuses == nil {
		return 1
	}
	events, err := h.bonuses.ActiveAt(ctx, now)
	if err != nil {
		log.Warn("bonus lookup failed, granting without multiplier", logger.Err(err))
		return 1
	}
	return gamification.HighestMultiplier(events, now)
}

func (h *AwardXPHandler) publish(log *logger.Logger, event shared.Event) {
	if err := h.publisher.Publish(event); err != nil {
		log.Warn("failed to publish event", logger.EventType(string(event.EventType())), logger.Err(err))
	}
}
