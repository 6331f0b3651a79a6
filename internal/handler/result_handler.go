package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stemsi/mocktest-backend/internal/middleware"
	"github.com/stemsi/mocktest-backend/internal/model"
	"github.com/stemsi/mocktest-backend/internal/response"
	"github.com/stemsi/mocktest-backend/internal/service"
)

// ResultHandler serves results and solutions.
type ResultHandler struct {
	resultService *service.ResultService
}

// NewResultHandler creates a new ResultHandler.
func NewResultHandler(resultService *service.ResultService) *ResultHandler {
	return &ResultHandler{resultService: resultService}
}

// GetResult godoc
// GET /api/v1/attempts/:attempt_id/result
// Returns the score summary with percentage, accuracy and percentile.
func (h *ResultHandler) GetResult(c *gin.Context) {
	view, err := h.resultService.Get(c.Request.Context(), middleware.GetAttemptID(c))
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, view)
}

// GetSolutions godoc
// GET /api/v1/attempts/:attempt_id/solutions
func (h *ResultHandler) GetSolutions(c *gin.Context) {
	items, err := h.resultService.Solutions(c.Request.Context(), middleware.GetAttemptID(c))
	if err != nil {
		fail(c, err)
		return
	}
	if items == nil {
		items = []model.SolutionItem{}
	}
	response.Success(c, http.StatusOK, gin.H{"solutions": items})
}

// ListTestResults godoc
// GET /api/v1/admin/tests/:id/results?page=1&per_page=20
func (h *ResultHandler) ListTestResults(c *gin.Context) {
	testID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	perPage, _ := strconv.Atoi(c.DefaultQuery("per_page", "20"))
	if page < 1 {
		page = 1
	}
	if perPage < 1 || perPage > 100 {
		perPage = 20
	}

	rows, total, err := h.resultService.ListByTest(c.Request.Context(), testID, page, perPage)
	if err != nil {
		fail(c, err)
		return
	}
	if rows == nil {
		rows = []model.TestResultRow{}
	}
	response.SuccessWithPagination(c, http.StatusOK, gin.H{"results": rows}, response.NewPagination(page, perPage, total))
}
