package eventhandler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/obe-hub/gamification-core/internal/application/command"
	"github.com/obe-hub/gamification-core/internal/domain/gamification"
	"github.com/obe-hub/gamification-core/internal/domain/notification"
	"github.com/obe-hub/gamification-core/internal/domain/shared"
	"github.com/obe-hub/gamification-core/internal/infrastructure/persistence/memory"
)

var eventTime = time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

func storeSink(store *memory.Store) notification.Sink {
	repo := store.Notifications()
	return notification.SinkFunc(func(ctx context.Context, n notification.Notification) error {
		return repo.Insert(ctx, n)
	})
}

func byType(ns []notification.Notification, t notification.Type) []notification.Notification {
	out := make([]notification.Notification, 0)
	for _, n := range ns {
		if n.Type == t {
			out = append(out, n)
		}
	}
	return out
}

func newMilestoneHandler(store *memory.Store) *OnStreakMilestoneHandler {
	award := command.NewAwardXPHandler(store.Ledger(), store.Bonuses(), store.States(), nil, nil, nil)
	return NewOnStreakMilestoneHandler(award, store.Directory(), storeSink(store), DefaultStreakMilestoneConfig(), nil)
}

func seedClassmates(store *memory.Store) {
	store.AddProfile(gamification.Profile{StudentID: "s1", DisplayName: "Aigerim"})
	for _, id := range []string{"s1", "s2", "s3"} {
		store.Enroll("c-101", id)
	}
	store.Enroll("c-202", "s1")
	store.Enroll("c-202", "s4")
	store.Enroll("c-303", "s5")
}

// ══════════════════════════════════════════════════════════════════════════════
// ON STREAK MILESTONE
// ══════════════════════════════════════════════════════════════════════════════

func TestOnStreakMilestone_GrantsXPAndFansOut(t *testing.T) {
	store := memory.New()
	seedClassmates(store)
	h := newMilestoneHandler(store)

	err := h.Handle(context.Background(), shared.NewStreakMilestoneReachedEvent("s1", 7, 100, true, eventTime))
	require.NoError(t, err)

	txs := store.AllTransactions()
	require.Len(t, txs, 1)
	assert.Equal(t, 100, txs[0].Amount)
	assert.Equal(t, gamification.SourceStreakMilestone, txs[0].Source)

	all := store.AllNotifications()
	achiever := byType(all, notification.TypeStreakMilestone)
	require.Len(t, achiever, 1)
	assert.Equal(t, "s1", achiever[0].UserID)

	peers := byType(all, notification.TypePeerMilestone)
	require.Len(t, peers, 3)
	got := make([]string, 0, len(peers))
	for _, n := range peers {
		got = append(got, n.UserID)
		assert.Contains(t, n.Message, "Aigerim")
	}
	assert.ElementsMatch(t, []string{"s2", "s3", "s4"}, got)
}

func TestOnStreakMilestone_NoFanOutForQuietMilestones(t *testing.T) {
	store := memory.New()
	seedClassmates(store)
	h := newMilestoneHandler(store)

	require.NoError(t, h.Handle(context.Background(), shared.NewStreakMilestoneReachedEvent("s1", 14, 100, false, eventTime)))

	assert.Empty(t, byType(store.AllNotifications(), notification.TypePeerMilestone))
	assert.Len(t, byType(store.AllNotifications(), notification.TypeStreakMilestone), 1)
}

func TestOnStreakMilestone_AnonymousAchiever(t *testing.T) {
	store := memory.New()
	seedClassmates(store)
	store.AddProfile(gamification.Profile{StudentID: "s1", DisplayName: "Aigerim", AnonymousLeaderboard: true})
	h := newMilestoneHandler(store)

	require.NoError(t, h.Handle(context.Background(), shared.NewStreakMilestoneReachedEvent("s1", 30, 250, true, eventTime)))

	assert.Empty(t, byType(store.AllNotifications(), notification.TypePeerMilestone))
	assert.Len(t, store.AllTransactions(), 1)
}

func TestOnStreakMilestone_FanOutGate(t *testing.T) {
	store := memory.New()
	seedClassmates(store)
	award := command.NewAwardXPHandler(store.Ledger(), store.Bonuses(), store.States(), nil, nil, nil)
	cfg := DefaultStreakMilestoneConfig()
	cfg.PeerFanOutEnabled = func(studentID string) bool { return studentID != "s1" }
	h := NewOnStreakMilestoneHandler(award, store.Directory(), storeSink(store), cfg, nil)

	require.NoError(t, h.Handle(context.Background(), shared.NewStreakMilestoneReachedEvent("s1", 7, 100, true, eventTime)))

	assert.Empty(t, byType(store.AllNotifications(), notification.TypePeerMilestone))
	assert.Len(t, byType(store.AllNotifications(), notification.TypeStreakMilestone), 1)
}

func TestOnStreakMilestone_PeerFailuresAreSwallowed(t *testing.T) {
	store := memory.New()
	seedClassmates(store)
	store.FailOnKey(memory.OpNotificationInsert, "s3", errors.New("mailbox full"))
	h := newMilestoneHandler(store)

	require.NoError(t, h.Handle(context.Background(), shared.NewStreakMilestoneReachedEvent("s1", 100, 500, true, eventTime)))

	peers := byType(store.AllNotifications(), notification.TypePeerMilestone)
	assert.Len(t, peers, 2)
}

func TestOnStreakMilestone_DirectoryFailureSkipsPeers(t *testing.T) {
	store := memory.New()
	seedClassmates(store)
	store.FailOn(memory.OpDirectoryPeers, errors.New("directory offline"))
	h := newMilestoneHandler(store)

	require.NoError(t, h.Handle(context.Background(), shared.NewStreakMilestoneReachedEvent("s1", 7, 100, true, eventTime)))
	assert.Empty(t, byType(store.AllNotifications(), notification.TypePeerMilestone))
	assert.Len(t, byType(store.AllNotifications(), notification.TypeStreakMilestone), 1)
}

func TestOnStreakMilestone_GrantFailureStillNotifies(t *testing.T) {
	store := memory.New()
	seedClassmates(store)
	store.FailOn(memory.OpLedgerInsert, errors.New("disk full"))
	h := newMilestoneHandler(store)

	err := h.Handle(context.Background(), shared.NewStreakMilestoneReachedEvent("s1", 7, 100, true, eventTime))
	require.Error(t, err)
	assert.True(t, shared.IsStorage(err))
	assert.Empty(t, store.AllTransactions())

	assert.Len(t, byType(store.AllNotifications(), notification.TypeStreakMilestone), 1)
	assert.Len(t, byType(store.AllNotifications(), notification.TypePeerMilestone), 3)
}

func TestOnStreakMilestone_IgnoresOtherEvents(t *testing.T) {
	store := memory.New()
	h := newMilestoneHandler(store)

	require.NoError(t, h.Handle(context.Background(), shared.NewLevelUpEvent("s1", 1, 2, 120, eventTime)))
	assert.Empty(t, store.AllTransactions())
}

// ══════════════════════════════════════════════════════════════════════════════
// ON XP AWARDED
// ══════════════════════════════════════════════════════════════════════════════

type fakeIndex struct {
	mu       sync.Mutex
	scores   map[string]int
	failures int
	calls    int
}

func (f *fakeIndex) SetScore(_ context.Context, studentID string, xp int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.calls <= f.failures {
		return errors.New("redis: connection refused")
	}
	if f.scores == nil {
		f.scores = make(map[string]int)
	}
	f.scores[studentID] = xp
	return nil
}

func TestOnXPAwarded_WritesTotal(t *testing.T) {
	idx := &fakeIndex{failures: 1}
	h := NewOnXPAwardedHandler(idx, nil)

	require.NoError(t, h.Handle(context.Background(), shared.NewXPAwardedEvent("s1", 50, 350, 3, "quest", eventTime)))
	assert.Equal(t, 350, idx.scores["s1"])
	assert.Equal(t, 2, idx.calls)
}

func TestOnXPAwarded_GivesUp(t *testing.T) {
	idx := &fakeIndex{failures: 100}
	h := NewOnXPAwardedHandler(idx, nil)

	err := h.Handle(context.Background(), shared.NewXPAwardedEvent("s1", 50, 350, 3, "quest", eventTime))
	require.Error(t, err)
	assert.Equal(t, 3, idx.calls)
}

// ══════════════════════════════════════════════════════════════════════════════
// ON LEVEL UP
// ══════════════════════════════════════════════════════════════════════════════

func TestOnLevelUp_Notifies(t *testing.T) {
	store := memory.New()
	h := NewOnLevelUpHandler(storeSink(store), nil)

	require.NoError(t, h.Handle(context.Background(), shared.NewLevelUpEvent("s1", 2, 3, 260, eventTime)))

	ns := store.AllNotifications()
	require.Len(t, ns, 1)
	assert.Equal(t, notification.TypeLevelUp, ns[0].Type)
	assert.Equal(t, "s1", ns[0].UserID)
	assert.Equal(t, 3, ns[0].Metadata["new_level"])
}
