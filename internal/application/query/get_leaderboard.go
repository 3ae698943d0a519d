package query

import (
	"context"

	"github.com/obe-hub/gamification-core/internal/domain/gamification"
	"github.com/obe-hub/gamification-core/internal/domain/shared"
	"github.com/obe-hub/gamification-core/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET LEADERBOARD QUERY
// Топ по XP. Студенты в анонимном режиме показываются без имени и ID.
// ══════════════════════════════════════════════════════════════════════════════

const (
	defaultLeaderboardLimit = 10
	maxLeaderboardLimit     = 100
)

// GetLeaderboardQuery содержит параметры запроса.
type GetLeaderboardQuery struct {
	Limit int
}

// LeaderboardRow — строка рейтинга для клиента.
type LeaderboardRow struct {
	Rank        int64  `json:"rank"`
	StudentID   string `json:"student_id,omitempty"`
	DisplayName string `json:"display_name"`
	XPTotal     int    `json:"xp_total"`
	Level       int    `json:"level"`
	Anonymous   bool   `json:"anonymous"`
}

// LeaderboardSource отдаёт верх рейтинга.
type LeaderboardSource interface {
	Top(ctx context.Context, limit int) ([]gamification.LeaderboardEntry, error)
}

// GetLeaderboardHandler обрабатывает запрос.
type GetLeaderboardHandler struct {
	source    LeaderboardSource
	directory gamification.StudentDirectory
	log       *logger.Logger
}

// NewGetLeaderboardHandler создаёт обработчик.
func NewGetLeaderboardHandler(source LeaderboardSource, directory gamification.StudentDirectory, log *logger.Logger) *GetLeaderboardHandler {
	if log == nil {
		log = logger.Nop()
	}
	return &GetLeaderboardHandler{
		source:    source,
		directory: directory,
		log:       log.With(logger.Component("query"), logger.Operation("get_leaderboard")),
	}
}

// Handle выполняет запрос.
func (h *GetLeaderboardHandler) Handle(ctx context.Context, q GetLeaderboardQuery) ([]LeaderboardRow, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = defaultLeaderboardLimit
	}
	if limit > maxLeaderboardLimit {
		limit = maxLeaderboardLimit
	}

	entries, err := h.source.Top(ctx, limit)
	if err != nil {
		h.log.Error("failed to read leaderboard", logger.Err(err))
		return nil, shared.WrapError("gamification", "GetLeaderboard", shared.ErrServiceUnavailable, "leaderboard unavailable", err)
	}

	rows := make([]LeaderboardRow, 0, len(entries))
	for _, e := range entries {
		row := LeaderboardRow{
			Rank:      e.Rank,
			StudentID: e.StudentID,
			XPTotal:   e.XPTotal,
			Level:     gamification.DeriveLevel(e.XPTotal),
		}

		// Без профиля строку показываем анонимно.
		profile, err := h.directory.GetProfile(ctx, e.StudentID)
		if err != nil || profile.AnonymousLeaderboard {
			row.StudentID = ""
			row.DisplayName = "Anonymous"
			row.Anonymous = true
		} else {
			row.DisplayName = profile.DisplayName
		}
		rows = append(rows, row)
	}
	return rows, nil
}
