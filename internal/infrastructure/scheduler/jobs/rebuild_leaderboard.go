// Package jobs contains the scheduled maintenance jobs.
package jobs

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/obe-hub/gamification-core/internal/domain/gamification"
	"github.com/obe-hub/gamification-core/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// REBUILD LEADERBOARD JOB
// ══════════════════════════════════════════════════════════════════════════════

// ScoreIndex receives XP totals.
type ScoreIndex interface {
	SetScore(ctx context.Context, studentID string, xpTotal int) error
}

// RebuildLeaderboardJob copies every stored XP total into the leaderboard.
// It repairs scores lost while Redis was down and seeds the in-process
// leaderboard after a restart.
type RebuildLeaderboardJob struct {
	totals gamification.TotalsReader
	index  ScoreIndex
	log    *logger.Logger
	config RebuildLeaderboardConfig

	lastStats atomic.Pointer[RebuildStats]
}

// RebuildLeaderboardConfig configures RebuildLeaderboardJob.
type RebuildLeaderboardConfig struct {
	// Concurrency bounds parallel SetScore calls.
	Concurrency int

	// Timeout bounds one rebuild.
	Timeout time.Duration
}

// DefaultRebuildLeaderboardConfig returns sensible defaults.
func DefaultRebuildLeaderboardConfig() RebuildLeaderboardConfig {
	return RebuildLeaderboardConfig{
		Concurrency: 8,
		Timeout:     2 * time.Minute,
	}
}

// RebuildStats describes one rebuild run.
type RebuildStats struct {
	StartedAt time.Time
	Duration  time.Duration
	Students  int
}

// NewRebuildLeaderboardJob creates the job.
func NewRebuildLeaderboardJob(
	totals gamification.TotalsReader,
	index ScoreIndex,
	config RebuildLeaderboardConfig,
	log *logger.Logger,
) *RebuildLeaderboardJob {
	if log == nil {
		log = logger.Nop()
	}
	if config.Concurrency <= 0 {
		config.Concurrency = 1
	}

	return &RebuildLeaderboardJob{
		totals: totals,
		index:  index,
		config: config,
		log:    log.With(logger.Component("job"), logger.String("job", "rebuild_leaderboard")),
	}
}

// Name returns the job name.
func (j *RebuildLeaderboardJob) Name() string {
	return "rebuild_leaderboard"
}

// Description returns a human-readable description.
func (j *RebuildLeaderboardJob) Description() string {
	return "Copies stored XP totals into the leaderboard index"
}

// Run executes the rebuild. The first SetScore error aborts the run.
func (j *RebuildLeaderboardJob) Run(ctx context.Context) error {
	if j.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, j.config.Timeout)
		defer cancel()
	}

	started := time.Now()
	entries, err := j.totals.ListTotals(ctx)
	if err != nil {
		return fmt.Errorf("list totals: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(j.config.Concurrency)
	for _, e := range entries {
		g.Go(func() error {
			if err := j.index.SetScore(gctx, e.StudentID, e.XPTotal); err != nil {
				return fmt.Errorf("set score for %s: %w", e.StudentID, err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	stats := &RebuildStats{StartedAt: started, Duration: time.Since(started), Students: len(entries)}
	j.lastStats.Store(stats)

	j.log.Info("leaderboard rebuilt",
		logger.Int("students", stats.Students),
		logger.Duration("duration", stats.Duration),
	)
	return nil
}

// LastStats returns the stats of the last successful run, or nil.
func (j *RebuildLeaderboardJob) LastStats() *RebuildStats {
	return j.lastStats.Load()
}
