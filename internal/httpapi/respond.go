package httpapi

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/muvico/platform/internal/domain/media"
	"github.com/muvico/platform/internal/domain/presentations"
	"github.com/muvico/platform/internal/domain/users"
)

func respondJSON(c *gin.Context, status int, payload any) {
	c.JSON(status, payload)
}

func respondError(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, gin.H{"error": message})
}

// respondServiceError maps domain errors onto HTTP statuses. Unknown errors
// are logged and hidden behind a 500.
func respondServiceError(c *gin.Context, logger *zap.Logger, op string, err error) {
	var verr *presentations.ValidationError
	var tooBig *http.MaxBytesError

	switch {
	case errors.As(err, &verr):
		respondError(c, http.StatusBadRequest, verr.Error())
	case errors.Is(err, presentations.ErrNotFound),
		errors.Is(err, presentations.ErrCueNotFound),
		errors.Is(err, users.ErrNotFound):
		respondError(c, http.StatusNotFound, err.Error())
	case errors.Is(err, presentations.ErrOutOfBounds),
		errors.Is(err, presentations.ErrMediaScreenMismatch),
		errors.Is(err, media.ErrEmptyFile),
		errors.Is(err, users.ErrInvalidInput):
		respondError(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, presentations.ErrSlotOccupied),
		errors.Is(err, presentations.ErrConflict),
		errors.Is(err, users.ErrUsernameExists),
		errors.Is(err, users.ErrLastAdmin):
		respondError(c, http.StatusConflict, err.Error())
	case errors.Is(err, media.ErrFileTooLarge),
		errors.Is(err, media.ErrQuotaExceeded),
		errors.As(err, &tooBig):
		respondError(c, http.StatusRequestEntityTooLarge, err.Error())
	case errors.Is(err, media.ErrUnsupportedMedia):
		respondError(c, http.StatusUnsupportedMediaType, err.Error())
	case errors.Is(err, presentations.ErrNotImplemented),
		errors.Is(err, users.ErrNotImplemented):
		respondError(c, http.StatusNotImplemented, op+" not yet implemented")
	default:
		logger.Error(op+" failed",
			zap.Error(err),
			zap.String("request_id", c.GetString(requestIDKey)),
		)
		respondError(c, http.StatusInternalServerError, "internal error")
	}
}
