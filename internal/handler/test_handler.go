package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stemsi/mocktest-backend/internal/model"
	"github.com/stemsi/mocktest-backend/internal/response"
	"github.com/stemsi/mocktest-backend/internal/service"
	"github.com/stemsi/mocktest-backend/internal/validator"
)

// TestHandler handles test import and catalogue endpoints.
type TestHandler struct {
	testService    *service.TestService
	maxUploadBytes int64
}

// NewTestHandler creates a new TestHandler.
func NewTestHandler(testService *service.TestService, maxUploadBytes int64) *TestHandler {
	return &TestHandler{testService: testService, maxUploadBytes: maxUploadBytes}
}

// ImportTest godoc
// POST /api/v1/admin/tests/import
// Imports a .csv or .xlsx question file as a new test. A file with any
// invalid row is rejected as a whole and every row error is returned.
func (h *TestHandler) ImportTest(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadBytes)
	if _, err := c.MultipartForm(); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			response.Fail(c, http.StatusRequestEntityTooLarge, response.ErrFileTooLarge)
			return
		}
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidPayload)
		return
	}

	var req model.ImportTestRequest
	if fields := validator.BindForm(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	header, err := c.FormFile("file")
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrFileRequired)
		return
	}
	file, err := header.Open()
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrFileRequired)
		return
	}
	defer file.Close()

	test, err := h.testService.Import(c.Request.Context(), req, header.Filename, file)
	if err != nil {
		var rejected *service.ImportError
		if errors.As(err, &rejected) {
			response.FailWithErrors(c, http.StatusBadRequest, response.ErrImportRejected, rejected.Errors)
			return
		}
		fail(c, err)
		return
	}

	response.Success(c, http.StatusCreated, gin.H{"test": test})
}

// ListTests godoc
// GET /api/v1/tests
func (h *TestHandler) ListTests(c *gin.Context) {
	tests, err := h.testService.List(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	if tests == nil {
		tests = []model.Test{}
	}
	response.Success(c, http.StatusOK, gin.H{"tests": tests})
}

// GetTest godoc
// GET /api/v1/tests/:id
func (h *TestHandler) GetTest(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	test, err := h.testService.Get(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"test": test})
}

// ListQuestions godoc
// GET /api/v1/admin/tests/:id/questions
// Returns the full paper including answer keys and explanations.
func (h *TestHandler) ListQuestions(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	paper, err := h.testService.GetPaper(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}
	questions := paper.Questions
	if questions == nil {
		questions = []model.Question{}
	}
	response.Success(c, http.StatusOK, gin.H{"test": paper.Test, "questions": questions})
}

// DeleteTest godoc
// DELETE /api/v1/admin/tests/:id
func (h *TestHandler) DeleteTest(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	if err := h.testService.Delete(c.Request.Context(), id); err != nil {
		fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"message": "Test deleted"})
}
