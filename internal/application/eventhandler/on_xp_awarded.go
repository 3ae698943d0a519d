package eventhandler

import (
	"context"

	"github.com/obe-hub/gamification-core/internal/domain/shared"
	"github.com/obe-hub/gamification-core/pkg/logger"
	"github.com/obe-hub/gamification-core/pkg/retry"
)

// ═══════════════════════════════════════════════════════════════════════════
// ON XP AWARDED HANDLER
// Mirrors the new cached total into the leaderboard index.
// ═══════════════════════════════════════════════════════════════════════════

// LeaderboardIndex keeps a sorted view of XP totals.
type LeaderboardIndex interface {
	SetScore(ctx context.Context, studentID string, xpTotal int) error
}

// OnXPAwardedHandler reacts to XPAwardedEvent.
type OnXPAwardedHandler struct {
	index   LeaderboardIndex
	retrier *retry.Retrier
	log     *logger.Logger
}

// NewOnXPAwardedHandler creates a new OnXPAwardedHandler.
func NewOnXPAwardedHandler(index LeaderboardIndex, log *logger.Logger) *OnXPAwardedHandler {
	if log == nil {
		log = logger.Nop()
	}
	return &OnXPAwardedHandler{
		index:   index,
		retrier: retry.SideEffectRetrier(nil),
		log:     log.With(logger.Component("eventhandler"), logger.String("handler", "on_xp_awarded")),
	}
}

// Handle implements shared.EventHandler.
func (h *OnXPAwardedHandler) Handle(ctx context.Context, event shared.Event) error {
	e, ok := event.(shared.XPAwardedEvent)
	if !ok {
		h.log.Warn("received unexpected event", logger.EventType(string(event.EventType())))
		return nil
	}

	err := h.retrier.Do(ctx, func(ctx context.Context) error {
		return h.index.SetScore(ctx, e.StudentID, e.NewTotal)
	})
	if err != nil {
		h.log.Warn("leaderboard update failed",
			logger.StudentID(e.StudentID),
			logger.Int("new_total", e.NewTotal),
			logger.Err(err),
		)
		return err
	}

	h.log.Debug("leaderboard updated", logger.StudentID(e.StudentID), logger.Int("new_total", e.NewTotal))
	return nil
}
