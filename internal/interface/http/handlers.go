package http

import (
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strconv"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/obe-hub/gamification-core/internal/application/command"
	"github.com/obe-hub/gamification-core/internal/application/query"
	"github.com/obe-hub/gamification-core/internal/domain/shared"
	"github.com/obe-hub/gamification-core/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// REQUEST / RESPONSE BODIES
// ══════════════════════════════════════════════════════════════════════════════

type awardXPRequest struct {
	StudentID string `json:"student_id" binding:"required"`
	// Pointer so that an explicit 0 passes "required".
	XPAmount    *int   `json:"xp_amount" binding:"required"`
	Source      string `json:"source" binding:"required"`
	ReferenceID string `json:"reference_id"`
	Note        string `json:"note"`
}

type awardXPResponse struct {
	Success   bool `json:"success"`
	XPAwarded int  `json:"xp_awarded"`
	NewTotal  int  `json:"new_total"`
	LevelUp   bool `json:"level_up"`
	NewLevel  int  `json:"new_level"`
}

type studentRequest struct {
	StudentID string `json:"student_id" binding:"required"`
}

type processStreakResponse struct {
	Success          bool `json:"success"`
	StreakCount      int  `json:"streak_count"`
	MilestoneReached *int `json:"milestone_reached"`
	StreakFrozen     bool `json:"streak_frozen"`
}

type rollUpRequest struct {
	GradeID      string `json:"grade_id" binding:"required"`
	SubmissionID string `json:"submission_id" binding:"required"`
}

type rollUpResponse struct {
	Success       bool `json:"success"`
	EvidenceCount int  `json:"evidence_count"`
	CLOCount      int  `json:"clo_count"`
	PLOCount      int  `json:"plo_count"`
	ILOCount      int  `json:"ilo_count"`
}

type rebuildResponse struct {
	Success  bool `json:"success"`
	NewTotal int  `json:"new_total"`
	NewLevel int  `json:"new_level"`
}

type attainmentResponse struct {
	StudentID  string                 `json:"student_id"`
	Attainment []query.AttainmentView `json:"attainment"`
}

type leaderboardResponse struct {
	Entries []query.LeaderboardRow `json:"entries"`
}

type errorBody struct {
	Error string `json:"error"`
}

// ══════════════════════════════════════════════════════════════════════════════
// OPERATIONS
// ══════════════════════════════════════════════════════════════════════════════

func (s *Server) handleAwardXP(c *gin.Context) {
	var req awardXPRequest
	if !s.bind(c, &req) {
		return
	}

	res, err := s.deps.AwardXP.Handle(c.Request.Context(), command.AwardXPCommand{
		StudentID:   req.StudentID,
		Amount:      *req.XPAmount,
		Source:      req.Source,
		ReferenceID: req.ReferenceID,
		Note:        req.Note,
	})
	if err != nil {
		s.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, awardXPResponse{
		Success:   true,
		XPAwarded: res.Awarded,
		NewTotal:  res.NewTotal,
		LevelUp:   res.LevelUp,
		NewLevel:  res.NewLevel,
	})
}

func (s *Server) handleProcessStreak(c *gin.Context) {
	var req studentRequest
	if !s.bind(c, &req) {
		return
	}

	res, err := s.deps.ProcessStreak.Handle(c.Request.Context(), command.ProcessStreakCommand{
		StudentID: req.StudentID,
	})
	if err != nil {
		s.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, processStreakResponse{
		Success:          true,
		StreakCount:      res.StreakCount,
		MilestoneReached: res.MilestoneReached,
		StreakFrozen:     res.StreakFrozen,
	})
}

func (s *Server) handleRollUp(c *gin.Context) {
	var req rollUpRequest
	if !s.bind(c, &req) {
		return
	}

	res, err := s.deps.RollUp.Handle(c.Request.Context(), command.RollUpCommand{
		GradeID:      req.GradeID,
		SubmissionID: req.SubmissionID,
	})
	if err != nil {
		s.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, rollUpResponse{
		Success:       true,
		EvidenceCount: res.EvidenceCount,
		CLOCount:      res.CLOCount,
		PLOCount:      res.PLOCount,
		ILOCount:      res.ILOCount,
	})
}

func (s *Server) handleRebuild(c *gin.Context) {
	var req studentRequest
	if !s.bind(c, &req) {
		return
	}

	res, err := s.deps.RebuildXPState.Handle(c.Request.Context(), command.RebuildXPStateCommand{
		StudentID: req.StudentID,
	})
	if err != nil {
		s.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, rebuildResponse{Success: true, NewTotal: res.NewTotal, NewLevel: res.NewLevel})
}

// ══════════════════════════════════════════════════════════════════════════════
// READS
// ══════════════════════════════════════════════════════════════════════════════

func (s *Server) handleGetGamification(c *gin.Context) {
	view, err := s.deps.GetGamificationState.Handle(c.Request.Context(), query.GetGamificationStateQuery{
		StudentID:   c.Param("id"),
		RecentLimit: clamp(queryInt(c, "recent", 0), 0, 100),
	})
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (s *Server) handleGetAttainment(c *gin.Context) {
	studentID := c.Param("id")
	rows, err := s.deps.GetStudentAttainment.Handle(c.Request.Context(), query.GetStudentAttainmentQuery{
		StudentID: studentID,
		Scope:     c.Query("scope"),
	})
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, attainmentResponse{StudentID: studentID, Attainment: rows})
}

func (s *Server) handleGetLeaderboard(c *gin.Context) {
	if s.deps.GetLeaderboard == nil {
		s.respondError(c, shared.WrapError("gamification", "GetLeaderboard", shared.ErrServiceUnavailable, "leaderboard not configured", nil))
		return
	}

	rows, err := s.deps.GetLeaderboard.Handle(c.Request.Context(), query.GetLeaderboardQuery{
		Limit: queryInt(c, "limit", 0),
	})
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, leaderboardResponse{Entries: rows})
}

// ══════════════════════════════════════════════════════════════════════════════
// HELPERS
// ══════════════════════════════════════════════════════════════════════════════

var registerTagNames sync.Once

// useJSONFieldNames makes binding errors name the JSON field instead of the Go field.
func useJSONFieldNames() {
	registerTagNames.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
			if name == "-" || name == "" {
				return f.Name
			}
			return name
		})
	})
}

// bind decodes the JSON body. On failure it writes a 400 and returns false.
func (s *Server) bind(c *gin.Context, dst any) bool {
	useJSONFieldNames()
	if err := c.ShouldBindJSON(dst); err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusBadRequest, errorBody{Error: bindingMessage(err)})
		return false
	}
	return true
}

func bindingMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return "invalid request body: " + err.Error()
	}

	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		if fe.Tag() == "required" {
			msgs = append(msgs, fe.Field()+" is required")
			continue
		}
		msgs = append(msgs, fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag()))
	}
	return strings.Join(msgs, "; ")
}

// statusFor maps the domain error taxonomy onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case shared.IsValidation(err):
		return http.StatusBadRequest
	case shared.IsNotFound(err):
		return http.StatusNotFound
	case errors.Is(err, shared.ErrServiceUnavailable), errors.Is(err, shared.ErrTimeout):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) respondError(c *gin.Context, err error) {
	status := statusFor(err)
	_ = c.Error(err)

	msg := err.Error()
	var de *shared.DomainError
	if errors.As(err, &de) && status < http.StatusInternalServerError {
		msg = de.Message
	}

	if status >= http.StatusInternalServerError {
		logger.FromContext(c.Request.Context()).Error("request failed",
			logger.String("path", c.FullPath()),
			logger.Int("status", status),
			logger.Err(err),
		)
		switch {
		case shared.IsStorage(err):
			msg = "storage failure"
		case status == http.StatusServiceUnavailable:
			msg = "service unavailable"
		default:
			msg = "internal server error"
		}
	}

	c.JSON(status, errorBody{Error: msg})
}

func queryInt(c *gin.Context, key string, def int) int {
	raw := c.Query(key)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return n
}

func clamp(n, lo, hi int) int {
	if n < lo {
		return lo
	}
	if n > hi {
		return hi
	}
	return n
}
