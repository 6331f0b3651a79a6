package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5"
	"github.com/stemsi/mocktest-backend/internal/response"
	"github.com/stemsi/mocktest-backend/internal/service"
)

// classify maps a service error to an HTTP status and error code.
func classify(err error) (int, response.ErrCode) {
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return http.StatusNotFound, response.ErrNotFound
	case errors.Is(err, service.ErrAttemptSubmitted):
		return http.StatusConflict, response.ErrAttemptSubmitted
	case errors.Is(err, service.ErrSubmitInProgress):
		return http.StatusConflict, response.ErrSubmitInProgress
	case errors.Is(err, service.ErrAttemptNotFinished):
		return http.StatusConflict, response.ErrAttemptNotFinished
	case errors.Is(err, service.ErrInvalidIndex):
		return http.StatusBadRequest, response.ErrInvalidIndex
	case errors.Is(err, service.ErrInvalidOption):
		return http.StatusBadRequest, response.ErrInvalidOption
	case errors.Is(err, service.ErrNoQuestions):
		return http.StatusBadRequest, response.ErrNoQuestions
	case errors.Is(err, service.ErrUnsupportedFile):
		return http.StatusBadRequest, response.ErrUnsupportedFile
	default:
		return http.StatusInternalServerError, response.ErrInternal
	}
}

// fail writes the error envelope for err and records it on the context
// so the access log carries the cause.
func fail(c *gin.Context, err error) {
	status, code := classify(err)
	if status >= http.StatusInternalServerError {
		_ = c.Error(err)
	}
	response.Fail(c, status, code)
}
