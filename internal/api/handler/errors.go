package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/timmy/memegenie/internal/api/middleware"
	"github.com/timmy/memegenie/internal/domain"
	"github.com/timmy/memegenie/internal/studio"
)

// Messages returned instead of the wrapped cause, which may name upstream
// hosts, models or fetched content.
const (
	msgCaptureFailed  = "the image could not be loaded"
	msgGatewayFailed  = "the AI service request failed"
	msgInternalFailed = "internal error"
)

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	var gwErr *domain.GatewayError
	var capErr *domain.CaptureError

	switch {
	case errors.Is(err, domain.ErrSessionNotFound), errors.Is(err, domain.ErrTemplateNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrBusy), errors.Is(err, domain.ErrNoImage), errors.Is(err, domain.ErrEmptyInstruction):
		return http.StatusConflict
	case errors.Is(err, domain.ErrSuggestionIndex), errors.Is(err, domain.ErrInvalidImageRef):
		return http.StatusBadRequest
	case errors.As(err, &capErr):
		return http.StatusUnprocessableEntity
	case errors.As(err, &gwErr):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// publicMessage is the client-facing text for an error with the given status.
func publicMessage(err error, status int) string {
	switch status {
	case http.StatusUnprocessableEntity:
		return msgCaptureFailed
	case http.StatusBadGateway:
		return msgGatewayFailed
	case http.StatusInternalServerError:
		return msgInternalFailed
	default:
		return err.Error()
	}
}

// respondError writes err with its mapped status. When the error belongs to a
// session, its current state is attached so clients can show the notice.
// Server-side failures are logged in full and answered with a fixed message.
func respondError(c *gin.Context, err error, s *studio.Studio) {
	_ = c.Error(err)

	status := statusFor(err)
	if status >= http.StatusInternalServerError || status == http.StatusUnprocessableEntity {
		middleware.GetLogger(c).WithError(err).WithField("status", status).Error("Request failed")
	}

	body := gin.H{"error": publicMessage(err, status)}
	if s != nil {
		body["session"] = newSessionView(s)
	}
	c.AbortWithStatusJSON(status, body)
}
