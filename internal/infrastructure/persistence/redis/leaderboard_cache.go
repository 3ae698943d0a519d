package redis

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/obe-hub/gamification-core/internal/domain/gamification"
)

// LeaderboardCache keeps XP totals in a single sorted set.
// Rank lookups are O(log N); a top-N read is O(log N + N).
type LeaderboardCache struct {
	cache *Cache
}

// NewLeaderboardCache creates a leaderboard over an open cache.
func NewLeaderboardCache(cache *Cache) *LeaderboardCache {
	return &LeaderboardCache{cache: cache}
}

// SetScore records the student's total and drops the cached state view,
// so the next read sees the new total.
func (l *LeaderboardCache) SetScore(ctx context.Context, studentID string, xpTotal int) error {
	pipe := l.cache.client.TxPipeline()
	pipe.ZAdd(ctx, l.cache.key(keyLeaderboard), redis.Z{Score: float64(xpTotal), Member: studentID})
	pipe.Del(ctx, l.cache.key(StateViewKey(studentID)))
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("leaderboard_cache: set score: %w", err)
	}
	return nil
}

// Rank returns the 1-based position of the student, highest XP first.
func (l *LeaderboardCache) Rank(ctx context.Context, studentID string) (int64, error) {
	rank, err := l.cache.client.ZRevRank(ctx, l.cache.key(keyLeaderboard), studentID).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, gamification.ErrNotRanked
		}
		return 0, fmt.Errorf("leaderboard_cache: rank: %w", err)
	}
	return rank + 1, nil
}

// Top returns the first limit entries, highest XP first.
func (l *LeaderboardCache) Top(ctx context.Context, limit int) ([]gamification.LeaderboardEntry, error) {
	if limit <= 0 {
		return []gamification.LeaderboardEntry{}, nil
	}
	zs, err := l.cache.client.ZRevRangeWithScores(ctx, l.cache.key(keyLeaderboard), 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("leaderboard_cache: top: %w", err)
	}
	return toEntries(zs), nil
}

// Remove drops the student from the leaderboard.
func (l *LeaderboardCache) Remove(ctx context.Context, studentID string) error {
	return l.cache.client.ZRem(ctx, l.cache.key(keyLeaderboard), studentID).Err()
}

func toEntries(zs []redis.Z) []gamification.LeaderboardEntry {
	entries := make([]gamification.LeaderboardEntry, 0, len(zs))
	for i, z := range zs {
		id, _ := z.Member.(string)
		entries = append(entries, gamification.LeaderboardEntry{
			Rank:      int64(i + 1),
			StudentID: id,
			XPTotal:   int(z.Score),
		})
	}
	return entries
}
