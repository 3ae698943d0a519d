package eventhandler

import (
	"context"

	"github.com/obe-hub/gamification-core/internal/domain/notification"
	"github.com/obe-hub/gamification-core/internal/domain/shared"
	"github.com/obe-hub/gamification-core/pkg/logger"
)

// OnLevelUpHandler sends the level_up notification.
type OnLevelUpHandler struct {
	sink notification.Sink
	log  *logger.Logger
}

// NewOnLevelUpHandler creates a new OnLevelUpHandler.
func NewOnLevelUpHandler(sink notification.Sink, log *logger.Logger) *OnLevelUpHandler {
	if log == nil {
		log = logger.Nop()
	}
	return &OnLevelUpHandler{
		sink: sink,
		log:  log.With(logger.Component("eventhandler"), logger.String("handler", "on_level_up")),
	}
}

// Handle implements shared.EventHandler.
func (h *OnLevelUpHandler) Handle(ctx context.Context, event shared.Event) error {
	e, ok := event.(shared.LevelUpEvent)
	if !ok {
		h.log.Warn("received unexpected event", logger.EventType(string(event.EventType())))
		return nil
	}

	n := notification.LevelUp("", e.StudentID, e.OldLevel, e.NewLevel, e.TotalXP, e.OccurredAt())
	if err := h.sink.Send(ctx, n); err != nil {
		h.log.Warn("level up notification failed",
			logger.StudentID(e.StudentID),
			logger.Int("new_level", e.NewLevel),
			logger.Err(err),
		)
		return err
	}
	return nil
}
