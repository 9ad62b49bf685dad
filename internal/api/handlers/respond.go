package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/sentipulse/sentipulse-go/internal/services"
	"github.com/sentipulse/sentipulse-go/internal/utils"
)

// respondError maps service errors onto HTTP status codes: validation to
// 400, not-found to 404, a busy pipeline to 409, a malformed upstream
// payload to 422, everything else 500.
func respondError(c *gin.Context, err error) {
	var validationErr *utils.ValidationError
	switch {
	case errors.As(err, &validationErr):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case utils.IsNotFoundError(err):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case utils.IsSchemaError(err):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	case errors.Is(err, services.ErrPipelineBusy):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

// parseDay parses an optional calendar-day query value.
func parseDay(value string) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	t, err := time.Parse("2006-01-02", value)
	if err != nil {
		return nil, utils.NewValidationErrorf("invalid date %q, expected YYYY-MM-DD", value)
	}
	t = t.UTC()
	return &t, nil
}
