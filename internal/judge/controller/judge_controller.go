package controller

import (
	"context"
	"strconv"
	"strings"

	"codejudge/internal/judge/model"
	"codejudge/internal/judge/service"
	"codejudge/pkg/utils/response"

	"github.com/gin-gonic/gin"
)

// JudgeService is the part of service.Service the HTTP layer calls.
type JudgeService interface {
	Submit(ctx context.Context, req service.SubmitRequest) (model.JudgeStatus, error)
	GetStatus(ctx context.Context, submissionID int64) (model.JudgeStatus, error)
	ListResults(ctx context.Context, submissionID int64) ([]model.Result, error)
	Languages(ctx context.Context) ([]service.LanguageInfo, error)
}

// JudgeController handles submission and status requests.
type JudgeController struct {
	svc JudgeService
}

// NewJudgeController creates a new controller.
func NewJudgeController(svc JudgeService) *JudgeController {
	return &JudgeController{svc: svc}
}

// SubmitRequest is the body of POST /submissions.
type SubmitRequest struct {
	UserID    int64  `json:"user_id"`
	ProblemID int64  `json:"problem_id" binding:"required"`
	Language  string `json:"language" binding:"required"`
	Code      string `json:"code" binding:"required"`
}

// Register mounts the judge routes on group.
func (h *JudgeController) Register(group *gin.RouterGroup) {
	group.POST("/submissions", h.Submit)
	group.GET("/submissions/:id", h.GetStatus)
	group.GET("/submissions/:id/results", h.ListResults)
	group.GET("/languages", h.Languages)
}

// Submit accepts a submission and answers 202 with its pending status.
// A user id set by the trace middleware overrides the body.
func (h *JudgeController) Submit(c *gin.Context) {
	var req SubmitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Invalid request parameters")
		return
	}
	if raw := c.GetString("user_id"); raw != "" {
		userID, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			response.BadRequest(c, "Invalid user id")
			return
		}
		req.UserID = userID
	}

	status, err := h.svc.Submit(c.Request.Context(), service.SubmitRequest{
		UserID:    req.UserID,
		ProblemID: req.ProblemID,
		Language:  strings.TrimSpace(req.Language),
		Code:      req.Code,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Accepted(c, status)
}

// GetStatus returns status for one submission.
func (h *JudgeController) GetStatus(c *gin.Context) {
	id, ok := submissionID(c)
	if !ok {
		return
	}
	status, err := h.svc.GetStatus(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, status)
}

// ListResults returns the per-test results of one submission.
func (h *JudgeController) ListResults(c *gin.Context) {
	id, ok := submissionID(c)
	if !ok {
		return
	}
	results, err := h.svc.ListResults(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, results)
}

func (h *JudgeController) Languages(c *gin.Context) {
	langs, err := h.svc.Languages(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, langs)
}

func submissionID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		response.BadRequest(c, "Invalid submission id")
		return 0, false
	}
	return id, true
}
