// Package query contains read operations (CQRS - Queries).
package query

import (
	"context"
	"time"

	"github.com/obe-hub/gamification-core/internal/domain/gamification"
	"github.com/obe-hub/gamification-core/internal/domain/shared"
	"github.com/obe-hub/gamification-core/pkg/logger"
	"github.com/obe-hub/gamification-core/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET GAMIFICATION STATE QUERY
// Кэшированное состояние студента: XP, уровень, серия, место в рейтинге.
// ══════════════════════════════════════════════════════════════════════════════

// GetGamificationStateQuery содержит параметры запроса.
type GetGamificationStateQuery struct {
	StudentID string

	// RecentLimit — сколько последних строк леджера вернуть (0 = не возвращать).
	RecentLimit int
}

// TransactionView — строка леджера для клиента.
type TransactionView struct {
	Amount      int       `json:"xp_amount"`
	Source      string    `json:"source"`
	ReferenceID string    `json:"reference_id,omitempty"`
	Note        string    `json:"note,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// GamificationView — представление состояния.
type GamificationView struct {
	StudentID              string            `json:"student_id"`
	XPTotal                int               `json:"xp_total"`
	Level                  int               `json:"level"`
	XPToNextLevel          int               `json:"xp_to_next_level"`
	StreakCount            int               `json:"streak_count"`
	LastLoginDate          *string           `json:"last_login_date"`
	StreakFreezesAvailable int               `json:"streak_freezes_available"`
	Rank                   *int64            `json:"rank,omitempty"`
	RecentTransactions     []TransactionView `json:"recent_transactions,omitempty"`
}

// StateViewCache — кэш готовых представлений. Любая ошибка чтения считается промахом.
type StateViewCache interface {
	LoadStateView(ctx context.Context, studentID string, dest any) error
	StoreStateView(ctx context.Context, studentID string, view any) error
}

// LeaderboardReader читает рейтинг по XP.
type LeaderboardReader interface {
	Rank(ctx context.Context, studentID string) (int64, error)
}

// GetGamificationStateHandler обрабатывает запрос.
type GetGamificationStateHandler struct {
	states      gamification.StateRepository
	ledger      gamification.LedgerRepository
	leaderboard LeaderboardReader
	cache       StateViewCache
	log         *logger.Logger
}

// NewGetGamificationStateHandler создаёт обработчик. leaderboard и cache могут быть nil.
func NewGetGamificationStateHandler(
	states gamification.StateRepository,
	ledger gamification.LedgerRepository,
	leaderboard LeaderboardReader,
	cache StateViewCache,
	log *logger.Logger,
) *GetGamificationStateHandler {
	if log == nil {
		log = logger.Nop()
	}
	return &GetGamificationStateHandler{
		states:      states,
		ledger:      ledger,
		leaderboard: leaderboard,
		cache:       cache,
		log:         log.With(logger.Component("query"), logger.Operation("get_gamification_state")),
	}
}

// Handle выполняет запрос. Студент без строки состояния получает состояние по умолчанию.
func (h *GetGamificationStateHandler) Handle(ctx context.Context, q GetGamificationStateQuery) (*GamificationView, error) {
	id, err := shared.NewStudentID(q.StudentID)
	if err != nil {
		return nil, err
	}
	studentID := id.String()

	view, err := h.load(ctx, studentID)
	if err != nil {
		return nil, err
	}

	if q.RecentLimit > 0 && h.ledger != nil {
		txs, err := h.ledger.ListByStudent(ctx, studentID, q.RecentLimit)
		if err != nil {
			return nil, shared.Storage("gamification", "GetState", err)
		}
		view.RecentTransactions = make([]TransactionView, 0, len(txs))
		for _, tx := range txs {
			view.RecentTransactions = append(view.RecentTransactions, TransactionView{
				Amount:      tx.Amount,
				Source:      tx.Source.String(),
				ReferenceID: tx.ReferenceID,
				Note:        tx.Note,
				CreatedAt:   tx.CreatedAt,
			})
		}
	}

	// Место в рейтинге не кэшируется: оно меняется от чужих начислений.
	if h.leaderboard != nil {
		if rank, err := h.leaderboard.Rank(ctx, studentID); err == nil {
			view.Rank = &rank
		}
	}

	return view, nil
}

func (h *GetGamificationStateHandler) load(ctx context.Context, studentID string) (*GamificationView, error) {
	if h.cache != nil {
		var cached GamificationView
		if err := h.cache.LoadStateView(ctx, studentID, &cached); err == nil {
			return &cached, nil
		}
	}

	state, err := h.states.Get(ctx, studentID)
	switch {
	case err == nil:
	case shared.IsNotFound(err):
		s := gamification.NewState(studentID)
		state = &s
	default:
		h.log.Error("failed to load gamification state", logger.StudentID(studentID), logger.Err(err))
		return nil, shared.Storage("gamification", "GetState", err)
	}

	view := toGamificationView(*state)

	if h.cache != nil {
		if err := h.cache.StoreStateView(ctx, studentID, view); err != nil {
			h.log.Debug("state view cache write failed", logger.StudentID(studentID), logger.Err(err))
		}
	}
	return &view, nil
}

func toGamificationView(s gamification.State) GamificationView {
	view := GamificationView{
		StudentID:              s.StudentID,
		XPTotal:                s.XPTotal,
		Level:                  s.StoredLevel(),
		XPToNextLevel:          gamification.XPToNextLevel(s.XPTotal),
		StreakCount:            s.StreakCount,
		StreakFreezesAvailable: s.StreakFreezesAvailable,
	}
	if s.LastLoginDate != nil {
		d := timeutil.FormatDate(*s.LastLoginDate)
		view.LastLoginDate = &d
	}
	return view
}
