package command

import (
	"context"

	"github.com/obe-hub/gamification-core/pkg/logger"
)

// StateViewInvalidator drops the cached read view of a student's state.
type StateViewInvalidator interface {
	InvalidateStateView(ctx context.Context, studentID string) error
}

// invalidateStateView is best-effort: a failure leaves the view to expire on its TTL.
func invalidateStateView(ctx context.Context, views StateViewInvalidator, studentID string, log *logger.Logger) {
	if views == nil {
		return
	}
	if err := views.InvalidateStateView(ctx, studentID); err != nil {
		log.Warn("failed to invalidate state view", logger.StudentID(studentID), logger.Err(err))
	}
}
