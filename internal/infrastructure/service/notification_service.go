// Package service contains infrastructure adapters that implement domain ports
// on top of repositories and shared packages.
package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/obe-hub/gamification-core/internal/domain/notification"
	"github.com/obe-hub/gamification-core/internal/domain/shared"
	"github.com/obe-hub/gamification-core/pkg/logger"
	"github.com/obe-hub/gamification-core/pkg/retry"
)

// NotificationService implements notification.Sink by storing notifications
// in the notifications table, retrying transient insert failures.
type NotificationService struct {
	repo    notification.Repository
	retrier *retry.Retrier
	log     *logger.Logger
}

// NewNotificationService creates a NotificationService.
func NewNotificationService(repo notification.Repository, log *logger.Logger) *NotificationService {
	if log == nil {
		log = logger.Nop()
	}
	log = log.With(logger.Component("notification_sink"))

	retrier := retry.New(
		retry.WithMaxAttempts(3),
		retry.WithInitialDelay(20*time.Millisecond),
		retry.WithJitter(0.1),
		retry.WithRetryIf(func(err error) bool { return !shared.IsValidation(err) }),
		retry.WithOnRetry(func(attempt int, err error, delay time.Duration) {
			log.Debug("retrying notification insert",
				logger.Int("attempt", attempt),
				logger.Duration("delay", delay),
				logger.Err(err),
			)
		}),
	)

	return &NotificationService{repo: repo, retrier: retrier, log: log}
}

// Send validates and stores the notification.
func (s *NotificationService) Send(ctx context.Context, n notification.Notification) error {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}
	if err := n.Validate(); err != nil {
		return err
	}

	err := s.retrier.Do(ctx, func(ctx context.Context) error {
		return s.repo.Insert(ctx, n)
	})
	if err != nil {
		return shared.WrapError("notification", "Send", shared.ErrStorage, "failed to store notification", err)
	}

	s.log.Debug("notification stored",
		logger.String("user_id", n.UserID),
		logger.NotificationType(string(n.Type)),
	)
	return nil
}
