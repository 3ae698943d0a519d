package gamification

import "github.com/obe-hub/gamification-core/internal/domain/shared"

// ErrNotRanked — у студента ещё нет строки в рейтинге.
var ErrNotRanked = shared.NewDomainError("gamification", "Rank", shared.ErrNotFound, "student is not on the leaderboard")

// LeaderboardEntry — строка рейтинга по XP, место считается с 1.
type LeaderboardEntry struct {
	Rank      int64  `json:"rank"`
	StudentID string `json:"student_id"`
	XPTotal   int    `json:"xp_total"`
}
