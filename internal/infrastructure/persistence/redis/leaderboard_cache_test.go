package redis

import (
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"

	"github.com/obe-hub/gamification-core/internal/domain/gamification"
)

func TestToEntries(t *testing.T) {
	entries := toEntries([]redis.Z{
		{Score: 900, Member: "s2"},
		{Score: 450, Member: "s1"},
	})

	assert.Equal(t, []gamification.LeaderboardEntry{
		{Rank: 1, StudentID: "s2", XPTotal: 900},
		{Rank: 2, StudentID: "s1", XPTotal: 450},
	}, entries)
}

func TestStateViewKey(t *testing.T) {
	assert.Equal(t, "gamification:state:s1", StateViewKey("s1"))
}
