package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"catalog-adaptation-service/internal/models"
	"catalog-adaptation-service/internal/services"
)

const (
	defaultPageSize = 50
	maxPageSize     = 500
)

func respondError(c *gin.Context, status int, code, message string) {
	c.JSON(status, models.ErrorResponse{
		Success: false,
		Error:   models.Error{
			Code:    code,
			Message: message,
		},
	})
}

// respondServiceError maps service sentinel errors onto HTTP statuses
func respondServiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrUnknownMarketplace):
		respondError(c, http.StatusNotFound, "UNKNOWN_MARKETPLACE", err.Error())
	case errors.Is(err, services.ErrJobNotFound):
		respondError(c, http.StatusNotFound, "JOB_NOT_FOUND", err.Error())
	case errors.Is(err, services.ErrEmptyBatch), errors.Is(err, services.ErrNilRecord):
		respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
	case errors.Is(err, services.ErrJobNotRunning):
		respondError(c, http.StatusConflict, "JOB_NOT_RUNNING", err.Error())
	case errors.Is(err, services.ErrTooManyJobs):
		respondError(c, http.StatusTooManyRequests, "TOO_MANY_JOBS", err.Error())
	default:
		_ = c.Error(err)
		respondError(c, http.StatusInternalServerError, "INTERNAL_ERROR", err.Error())
	}
}

func parseMarketplace(c *gin.Context, raw string) (models.MarketplaceKey, bool) {
	key, err := models.ParseMarketplaceKey(raw)
	if err != nil {
		respondError(c, http.StatusNotFound, "UNKNOWN_MARKETPLACE", err.Error())
		return "", false
	}
	return key, true
}

func parseID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_ID", "invalid id")
		return uuid.Nil, false
	}
	return id, true
}

// pagination reads limit and offset query params
func pagination(c *gin.Context) (int, int) {
	limit, err := strconv.Atoi(c.Query("limit"))
	if err != nil || limit <= 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	offset, err := strconv.Atoi(c.Query("offset"))
	if err != nil || offset < 0 {
		offset = 0
	}
	return limit, offset
}
