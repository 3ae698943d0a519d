package service

import (
	"context"

	"github.com/obe-hub/gamification-core/internal/domain/gamification"
	"github.com/obe-hub/gamification-core/internal/domain/shared"
	"github.com/obe-hub/gamification-core/pkg/circuitbreaker"
	"github.com/obe-hub/gamification-core/pkg/logger"
)

// LeaderboardStore is a ranked XP index. Both the Redis sorted set and the
// in-process projection satisfy it.
type LeaderboardStore interface {
	SetScore(ctx context.Context, studentID string, xpTotal int) error
	Rank(ctx context.Context, studentID string) (int64, error)
	Top(ctx context.Context, limit int) ([]gamification.LeaderboardEntry, error)
}

// LeaderboardService serves the leaderboard from a shared primary store and
// keeps a local mirror that answers reads while the primary circuit is open.
// The mirror only knows scores this process has seen since startup.
type LeaderboardService struct {
	primary LeaderboardStore
	mirror  LeaderboardStore
	breaker *circuitbreaker.CircuitBreaker
	log     *logger.Logger
}

// NewLeaderboardService creates a LeaderboardService. breaker may be nil,
// in which case a cache preset is used.
func NewLeaderboardService(primary, mirror LeaderboardStore, breaker *circuitbreaker.CircuitBreaker, log *logger.Logger) *LeaderboardService {
	if log == nil {
		log = logger.Nop()
	}
	log = log.With(logger.Component("leaderboard"))

	if breaker == nil {
		breaker = circuitbreaker.CacheBreaker(func(name string, from, to circuitbreaker.State) {
			log.Warn("circuit state changed",
				logger.String("breaker", name),
				logger.String("from", from.String()),
				logger.String("to", to.String()),
			)
		}, IsLeaderboardFailure)
	}

	return &LeaderboardService{primary: primary, mirror: mirror, breaker: breaker, log: log}
}

// IsLeaderboardFailure reports whether err should count against the breaker.
// An unranked student is an answer, not an outage.
func IsLeaderboardFailure(err error) bool {
	return err != nil && !shared.IsNotFound(err)
}

// SetScore writes the mirror first, then the primary.
func (s *LeaderboardService) SetScore(ctx context.Context, studentID string, xpTotal int) error {
	if err := s.mirror.SetScore(ctx, studentID, xpTotal); err != nil {
		return err
	}
	return s.breaker.Execute(ctx, func(ctx context.Context) error {
		return s.primary.SetScore(ctx, studentID, xpTotal)
	})
}

// Rank returns the student's 1-based rank. Primary failures, including an
// open circuit, are answered from the mirror.
func (s *LeaderboardService) Rank(ctx context.Context, studentID string) (int64, error) {
	var rank int64
	err := s.breaker.Execute(ctx, func(ctx context.Context) error {
		r, err := s.primary.Rank(ctx, studentID)
		rank = r
		return err
	})
	if !IsLeaderboardFailure(err) {
		return rank, err
	}

	s.log.Debug("rank served from mirror", logger.StudentID(studentID), logger.Err(err))
	return s.mirror.Rank(ctx, studentID)
}

// Top returns the first limit entries.
func (s *LeaderboardService) Top(ctx context.Context, limit int) ([]gamification.LeaderboardEntry, error) {
	var entries []gamification.LeaderboardEntry
	err := s.breaker.Execute(ctx, func(ctx context.Context) error {
		e, err := s.primary.Top(ctx, limit)
		entries = e
		return err
	})
	if err == nil {
		return entries, nil
	}

	s.log.Debug("top served from mirror", logger.Int("limit", limit), logger.Err(err))
	return s.mirror.Top(ctx, limit)
}

// BreakerState exposes the primary circuit state for health reporting.
func (s *LeaderboardService) BreakerState() circuitbreaker.State {
	return s.breaker.State()
}
