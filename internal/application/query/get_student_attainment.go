package query

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/obe-hub/gamification-core/internal/domain/outcome"
	"github.com/obe-hub/gamification-core/internal/domain/shared"
	"github.com/obe-hub/gamification-core/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET STUDENT ATTAINMENT QUERY
// Строки достижений студента по всем уровням иерархии.
// ══════════════════════════════════════════════════════════════════════════════

// GetStudentAttainmentQuery содержит параметры запроса.
type GetStudentAttainmentQuery struct {
	StudentID string

	// Scope — фильтр по области (пустая строка = все области).
	Scope string
}

// AttainmentView — строка достижения для клиента.
type AttainmentView struct {
	OutcomeID        string    `json:"outcome_id"`
	Tier             string    `json:"tier"`
	Scope            string    `json:"scope"`
	CourseID         string    `json:"course_id,omitempty"`
	Percent          float64   `json:"attainment_percent"`
	Level            string    `json:"attainment_level"`
	SampleCount      int       `json:"sample_count"`
	LastCalculatedAt time.Time `json:"last_calculated_at"`
}

// GetStudentAttainmentHandler обрабатывает запрос.
type GetStudentAttainmentHandler struct {
	attainments outcome.AttainmentRepository
	log         *logger.Logger
}

// NewGetStudentAttainmentHandler создаёт обработчик.
func NewGetStudentAttainmentHandler(attainments outcome.AttainmentRepository, log *logger.Logger) *GetStudentAttainmentHandler {
	if log == nil {
		log = logger.Nop()
	}
	return &GetStudentAttainmentHandler{
		attainments: attainments,
		log:         log.With(logger.Component("query"), logger.Operation("get_student_attainment")),
	}
}

// Handle выполняет запрос. Порядок: CLO, PLO, ILO, затем по outcome_id.
func (h *GetStudentAttainmentHandler) Handle(ctx context.Context, q GetStudentAttainmentQuery) ([]AttainmentView, error) {
	id, err := shared.NewStudentID(q.StudentID)
	if err != nil {
		return nil, err
	}

	filter := outcome.ScopeUnknown
	if raw := strings.TrimSpace(q.Scope); raw != "" {
		filter = outcome.ParseScope(raw)
		if filter == outcome.ScopeUnknown {
			return nil, shared.Validation("outcome", "GetAttainment", "scope must be one of student_course, course, program")
		}
	}

	rows, err := h.attainments.ListByStudent(ctx, id.String())
	if err != nil {
		h.log.Error("failed to list attainment", logger.StudentID(id.String()), logger.Err(err))
		return nil, shared.Storage("outcome", "GetAttainment", err)
	}

	views := make([]AttainmentView, 0, len(rows))
	for _, a := range rows {
		if filter != outcome.ScopeUnknown && a.Scope != filter {
			continue
		}
		views = append(views, AttainmentView{
			OutcomeID:        a.OutcomeID,
			Tier:             a.Scope.Tier().String(),
			Scope:            a.Scope.String(),
			CourseID:         a.CourseID,
			Percent:          shared.Percent(a.Percent).Round2().Float64(),
			Level:            a.Level().String(),
			SampleCount:      a.SampleCount,
			LastCalculatedAt: a.LastCalculatedAt,
		})
	}

	sort.SliceStable(views, func(i, j int) bool {
		ti, tj := outcome.ParseTier(views[i].Tier), outcome.ParseTier(views[j].Tier)
		if ti != tj {
			return ti < tj
		}
		if views[i].OutcomeID != views[j].OutcomeID {
			return views[i].OutcomeID < views[j].OutcomeID
		}
		return views[i].CourseID < views[j].CourseID
	})

	return views, nil
}
