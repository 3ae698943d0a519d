// Package eventhandler holds the side effects triggered by domain events.
// Every handler here is best-effort: a failure is logged and never reaches
// the operation that published the event.
package eventhandler

import (
	"context"
	"fmt"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/obe-hub/gamification-core/internal/application/command"
	"github.com/obe-hub/gamification-core/internal/domain/gamification"
	"github.com/obe-hub/gamification-core/internal/domain/notification"
	"github.com/obe-hub/gamification-core/internal/domain/shared"
	"github.com/obe-hub/gamification-core/pkg/logger"
)

// ═══════════════════════════════════════════════════════════════════════════
// ON STREAK MILESTONE HANDLER
// Grants the milestone XP, tells the achiever, and for the peer-visible
// milestones tells every classmate unless the achiever is anonymous.
// ═══════════════════════════════════════════════════════════════════════════

// XPAwarder grants XP through the ledger.
type XPAwarder interface {
	Handle(ctx context.Context, cmd command.AwardXPCommand) (*command.AwardXPResult, error)
}

// StreakMilestoneConfig configures OnStreakMilestoneHandler.
type StreakMilestoneConfig struct {
	// NotifyAchiever sends the achiever a streak_milestone notification.
	NotifyAchiever bool

	// FanOutConcurrency bounds concurrent peer notification writes.
	FanOutConcurrency int

	// PeerFanOutEnabled gates the fan-out per achiever. Nil allows everyone.
	PeerFanOutEnabled func(studentID string) bool
}

// DefaultStreakMilestoneConfig returns the default configuration.
func DefaultStreakMilestoneConfig() StreakMilestoneConfig {
	return StreakMilestoneConfig{
		NotifyAchiever:    true,
		FanOutConcurrency: 8,
	}
}

// OnStreakMilestoneHandler reacts to StreakMilestoneReachedEvent.
type OnStreakMilestoneHandler struct {
	awarder   XPAwarder
	directory gamification.StudentDirectory
	sink      notification.Sink
	config    StreakMilestoneConfig
	log       *logger.Logger
}

// NewOnStreakMilestoneHandler creates a new OnStreakMilestoneHandler.
func NewOnStreakMilestoneHandler(
	awarder XPAwarder,
	directory gamification.StudentDirectory,
	sink notification.Sink,
	config StreakMilestoneConfig,
	log *logger.Logger,
) *OnStreakMilestoneHandler {
	if log == nil {
		log = logger.Nop()
	}
	if config.FanOutConcurrency <= 0 {
		config.FanOutConcurrency = 1
	}

	return &OnStreakMilestoneHandler{
		awarder:   awarder,
		directory: directory,
		sink:      sink,
		config:    config,
		log:       log.With(logger.Component("eventhandler"), logger.String("handler", "on_streak_milestone")),
	}
}

// Handle implements shared.EventHandler.
func (h *OnStreakMilestoneHandler) Handle(ctx context.Context, event shared.Event) error {
	e, ok := event.(shared.StreakMilestoneReachedEvent)
	if !ok {
		h.log.Warn("received unexpected event", logger.EventType(string(event.EventType())))
		return nil
	}

	log := h.log.With(logger.StudentID(e.StudentID), logger.Int("milestone", e.Milestone))

	// 1. Milestone XP. A failed grant is reported to the bus after the
	// notifications below have gone out.
	var grantErr error
	if _, err := h.awarder.Handle(ctx, command.AwardXPCommand{
		StudentID: e.StudentID,
		Amount:    e.BonusXP,
		Source:    gamification.SourceStreakMilestone.String(),
		Note:      fmt.Sprintf("%d-day streak", e.Milestone),
	}); err != nil {
		log.Error("milestone xp grant failed", logger.XPAmount(e.BonusXP), logger.Err(err))
		grantErr = fmt.Errorf("award milestone xp: %w", err)
	}

	// 2. Achiever notification.
	if h.config.NotifyAchiever && h.sink != nil {
		n := notification.StreakMilestone("", e.StudentID, e.Milestone, e.BonusXP, e.OccurredAt())
		if err := h.sink.Send(ctx, n); err != nil {
			log.Warn("failed to notify achiever", logger.Err(err))
		}
	}

	// 3. Peer fan-out.
	if e.NotifyPeers && h.peerFanOutEnabled(e.StudentID) {
		h.notifyPeers(ctx, e, log)
	}

	return grantErr
}

func (h *OnStreakMilestoneHandler) peerFanOutEnabled(studentID string) bool {
	return h.config.PeerFanOutEnabled == nil || h.config.PeerFanOutEnabled(studentID)
}

func (h *OnStreakMilestoneHandler) notifyPeers(ctx context.Context, e shared.StreakMilestoneReachedEvent, log *logger.Logger) {
	if h.directory == nil || h.sink == nil {
		return
	}

	profile, err := h.directory.GetProfile(ctx, e.StudentID)
	if err != nil {
		// Anonymity cannot be confirmed, so nobody is told.
		log.Warn("profile lookup failed, skipping peer notifications", logger.Err(err))
		return
	}
	if profile.AnonymousLeaderboard {
		log.Debug("achiever is anonymous, skipping peer notifications")
		return
	}

	peers, err := h.directory.CoursePeers(ctx, e.StudentID)
	if err != nil {
		log.Warn("peer lookup failed", logger.Err(err))
		return
	}

	var failed atomic.Int32
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(h.config.FanOutConcurrency)

	for _, peerID := range peers {
		if peerID == e.StudentID {
			continue
		}
		g.Go(func() error {
			n := notification.PeerMilestone("", peerID, e.StudentID, profile.DisplayName, e.Milestone, e.OccurredAt())
			if err := h.sink.Send(gctx, n); err != nil {
				failed.Add(1)
				log.Warn("peer notification failed", logger.String("peer_id", peerID), logger.Err(err))
			}
			return nil
		})
	}
	_ = g.Wait()

	log.Info("peer milestone fan-out finished",
		logger.Int("peers", len(peers)),
		logger.Int("failed", int(failed.Load())),
	)
}
