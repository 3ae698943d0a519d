package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/obe-hub/gamification-core/internal/domain/notification"
	"github.com/obe-hub/gamification-core/internal/domain/shared"
	"github.com/obe-hub/gamification-core/internal/infrastructure/persistence/memory"
)

type flakyRepo struct {
	notification.Repository
	failures int
	calls    int
}

func (f *flakyRepo) Insert(ctx context.Context, n notification.Notification) error {
	f.calls++
	if f.calls <= f.failures {
		return errors.New("connection reset")
	}
	return f.Repository.Insert(ctx, n)
}

func TestNotificationService_Send(t *testing.T) {
	store := memory.New()
	svc := NewNotificationService(store.Notifications(), nil)

	n := notification.LevelUp("", "s1", 1, 2, 120, time.Time{})
	require.NoError(t, svc.Send(context.Background(), n))

	stored := store.AllNotifications()
	require.Len(t, stored, 1)
	assert.NotEmpty(t, stored[0].ID)
	assert.False(t, stored[0].CreatedAt.IsZero())
	assert.Equal(t, notification.TypeLevelUp, stored[0].Type)
}

func TestNotificationService_RetriesTransientFailures(t *testing.T) {
	store := memory.New()
	repo := &flakyRepo{Repository: store.Notifications(), failures: 2}
	svc := NewNotificationService(repo, nil)

	err := svc.Send(context.Background(), notification.StreakMilestone("n1", "s1", 7, 100, time.Now()))
	require.NoError(t, err)
	assert.Equal(t, 3, repo.calls)
	assert.Len(t, store.AllNotifications(), 1)
}

func TestNotificationService_GivesUp(t *testing.T) {
	store := memory.New()
	repo := &flakyRepo{Repository: store.Notifications(), failures: 10}
	svc := NewNotificationService(repo, nil)

	err := svc.Send(context.Background(), notification.StreakMilestone("n1", "s1", 7, 100, time.Now()))
	require.Error(t, err)
	assert.True(t, shared.IsStorage(err))
	assert.Equal(t, 3, repo.calls)
}

func TestNotificationService_RejectsInvalid(t *testing.T) {
	store := memory.New()
	svc := NewNotificationService(store.Notifications(), nil)

	err := svc.Send(context.Background(), notification.Notification{Type: notification.TypeLevelUp, Title: "x"})
	assert.True(t, shared.IsValidation(err))
	assert.Empty(t, store.AllNotifications())
}
