package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stemsi/mocktest-backend/internal/middleware"
	"github.com/stemsi/mocktest-backend/internal/model"
	"github.com/stemsi/mocktest-backend/internal/response"
	"github.com/stemsi/mocktest-backend/internal/service"
	"github.com/stemsi/mocktest-backend/internal/session"
	"github.com/stemsi/mocktest-backend/internal/validator"
)

// ExamHandler handles the live attempt endpoints.
type ExamHandler struct {
	examService *service.ExamService
	authService *service.AuthService
}

// NewExamHandler creates a new ExamHandler.
func NewExamHandler(examService *service.ExamService, authService *service.AuthService) *ExamHandler {
	return &ExamHandler{examService: examService, authService: authService}
}

// StartAttempt godoc
// POST /api/v1/tests/:id/attempts
// Starts a timed attempt and returns the attempt token that authorizes the
// rest of the attempt endpoints.
func (h *ExamHandler) StartAttempt(c *gin.Context) {
	testID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	attempt, snap, err := h.examService.Start(c.Request.Context(), testID)
	if err != nil {
		fail(c, err)
		return
	}

	duration := time.Duration(attempt.DurationAllocatedMinutes) * time.Minute
	token, err := h.authService.GenerateAttemptToken(attempt.ID, duration)
	if err != nil {
		h.examService.Release(attempt.ID)
		_ = c.Error(err)
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusCreated, gin.H{
		"attempt": attempt,
		"token":   token,
		"state":   snap,
	})
}

// GetState godoc
// GET /api/v1/attempts/:attempt_id/state
// Returns the current snapshot, resuming the session when needed.
func (h *ExamHandler) GetState(c *gin.Context) {
	snap, err := h.examService.State(c.Request.Context(), middleware.GetAttemptID(c))
	h.reply(c, snap, err)
}

// Navigate godoc
// POST /api/v1/attempts/:attempt_id/navigate
func (h *ExamHandler) Navigate(c *gin.Context) {
	var req model.NavigateRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}
	snap, err := h.examService.Navigate(c.Request.Context(), middleware.GetAttemptID(c), *req.Index)
	h.reply(c, snap, err)
}

// Stage godoc
// POST /api/v1/attempts/:attempt_id/stage
// Holds an option for the current question without committing it.
func (h *ExamHandler) Stage(c *gin.Context) {
	var req model.StageRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}
	snap, err := h.examService.Stage(c.Request.Context(), middleware.GetAttemptID(c), req.Option)
	h.reply(c, snap, err)
}

// Commit godoc
// POST /api/v1/attempts/:attempt_id/commit
// Saves the staged option and moves to the next question.
func (h *ExamHandler) Commit(c *gin.Context) {
	snap, err := h.examService.Commit(c.Request.Context(), middleware.GetAttemptID(c))
	h.reply(c, snap, err)
}

// Mark godoc
// POST /api/v1/attempts/:attempt_id/mark
func (h *ExamHandler) Mark(c *gin.Context) {
	snap, err := h.examService.Mark(c.Request.Context(), middleware.GetAttemptID(c))
	h.reply(c, snap, err)
}

// Clear godoc
// POST /api/v1/attempts/:attempt_id/clear
func (h *ExamHandler) Clear(c *gin.Context) {
	snap, err := h.examService.Clear(c.Request.Context(), middleware.GetAttemptID(c))
	h.reply(c, snap, err)
}

// Zoom godoc
// POST /api/v1/attempts/:attempt_id/zoom
func (h *ExamHandler) Zoom(c *gin.Context) {
	var req model.ZoomRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}
	snap, err := h.examService.Zoom(c.Request.Context(), middleware.GetAttemptID(c), req.Level)
	h.reply(c, snap, err)
}

// Submit godoc
// POST /api/v1/attempts/:attempt_id/submit
// Scores and persists the attempt. Submitting twice returns the stored result.
func (h *ExamHandler) Submit(c *gin.Context) {
	result, err := h.examService.Submit(c.Request.Context(), middleware.GetAttemptID(c))
	if err != nil {
		status, code := classify(err)
		if status == http.StatusInternalServerError {
			_ = c.Error(err)
			code = response.ErrSubmitFailed
		}
		response.Fail(c, status, code)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"result": result})
}

// EndSession godoc
// DELETE /api/v1/attempts/:attempt_id/session
// Tears down the live session. The attempt stays open and can be resumed.
func (h *ExamHandler) EndSession(c *gin.Context) {
	h.examService.Release(middleware.GetAttemptID(c))
	response.Success(c, http.StatusOK, gin.H{"message": "Session released"})
}

func (h *ExamHandler) reply(c *gin.Context, snap session.Snapshot, err error) {
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"state": snap})
}
