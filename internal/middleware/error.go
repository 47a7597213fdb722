package middleware

import (
	stderrors "errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/clinicops/clinic-api/pkg/errors"
)

// ErrorResponse represents a standardized error response
type ErrorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	TraceID string `json:"trace_id,omitempty"`
}

// statusFor maps the error taxonomy onto HTTP statuses.
func statusFor(code errors.ErrorCode) int {
	switch code {
	case errors.ErrValidation:
		return http.StatusBadRequest
	case errors.ErrNotFound:
		return http.StatusNotFound
	case errors.ErrPermissionDenied:
		return http.StatusForbidden
	case errors.ErrConflict:
		return http.StatusConflict
	case errors.ErrInvalidTransition, errors.ErrOverpayment:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// ErrorHandler converts application errors attached to the gin context
// into HTTP responses. Internal errors are logged with their cause and
// surfaced with a generic message only.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 {
			return
		}

		requestID := c.GetString(ContextRequestID)

		err := c.Errors.Last().Err
		var appErr *errors.AppError
		if !stderrors.As(err, &appErr) {
			appErr = errors.Internal(err)
		}

		status := statusFor(appErr.Code)
		if status == http.StatusInternalServerError {
			log.Error().
				Err(appErr.Err).
				Str("request_id", requestID).
				Str("path", c.Request.URL.Path).
				Str("method", c.Request.Method).
				Str("client_ip", c.ClientIP()).
				Msg("Request error")
		}

		c.JSON(status, ErrorResponse{
			Code:    status,
			Message: appErr.Message,
			TraceID: requestID,
		})
	}
}
