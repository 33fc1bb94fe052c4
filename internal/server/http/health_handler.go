package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// HealthHandler serves GET /api/health.
type HealthHandler struct {
	now      func() time.Time
	degraded func() map[string]string
}

// NewHealthHandler builds a HealthHandler. degraded may be nil.
func NewHealthHandler(degraded func() map[string]string) *HealthHandler {
	return &HealthHandler{now: time.Now, degraded: degraded}
}

func (h *HealthHandler) Handle(c *gin.Context) {
	body := gin.H{
		"status":    "ok",
		"timestamp": h.now().UTC().Format(healthTimestampStyle),
		"service":   healthServiceName,
		"endpoints": gin.H{
			"auth":     "/api/auth/login",
			"content":  "/api/content",
			"download": "/api/download",
		},
	}
	if h.degraded != nil {
		if components := h.degraded(); len(components) > 0 {
			body["degraded"] = components
		}
	}
	c.JSON(http.StatusOK, body)
}
