package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// sessionCounter reports how many studio sessions are live.
type sessionCounter interface {
	Len() int
}

// HealthHandler handles health check endpoints
type HealthHandler struct {
	sessions sessionCounter
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(sessions sessionCounter) *HealthHandler {
	return &HealthHandler{sessions: sessions}
}

// Health returns the health status of the service
func (h *HealthHandler) Health(c *gin.Context) {
	resp := gin.H{"status": "ok"}
	if h.sessions != nil {
		resp["sessions"] = h.sessions.Len()
	}
	c.JSON(http.StatusOK, resp)
}
