package handler

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/sheet-tracker/backend/internal/domain"
)

// statusFor maps a domain error kind to an HTTP status
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, domain.ErrStorage):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// respondError writes the error body. Domain errors carry a message safe to
// show; anything else is reported with the fallback.
func respondError(c *gin.Context, err error, fallback string) {
	status := statusFor(err)
	_ = c.Error(err)

	message := fallback
	var de *domain.DomainError
	if errors.As(err, &de) && status != http.StatusServiceUnavailable {
		message = de.Message
	}
	c.JSON(status, gin.H{
		"error": message,
	})
}

// parseID reads a uuid path parameter, answering 400 when malformed
func parseID(c *gin.Context, param, label string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(param))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid " + label + " ID",
		})
		return uuid.Nil, false
	}
	return id, true
}

// bindJSON decodes the body into dst, answering 400 with the binding
// failure when it does not validate
func bindJSON(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		_ = c.Error(fmt.Errorf("%w: %v", domain.ErrBadRequest, err))
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return false
	}
	return true
}
