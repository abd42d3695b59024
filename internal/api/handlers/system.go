package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/your-org/kiosk/internal/backend"
	"github.com/your-org/kiosk/internal/control"
	"github.com/your-org/kiosk/internal/roster"
)

type SystemHandler struct {
	backend *backend.Client
	roster  *roster.Cache
	control *control.Poller
}

func NewSystemHandler(b *backend.Client, r *roster.Cache, c *control.Poller) *SystemHandler {
	return &SystemHandler{backend: b, roster: r, control: c}
}

func (h *SystemHandler) Healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Readyz reports degraded when the backend is unreachable or the roster
// refresh is failing. The terminal keeps running either way; this is for
// operators.
func (h *SystemHandler) Readyz(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()

	checks := map[string]string{}
	healthy := true

	if _, err := h.backend.FetchControl(ctx); err != nil {
		checks["backend"] = err.Error()
		healthy = false
	} else {
		checks["backend"] = "ok"
	}

	if h.roster.Degraded() {
		checks["roster"] = "degraded: last refresh failed"
		healthy = false
	} else {
		checks["roster"] = "ok"
	}

	checks["control"] = h.control.State().String()

	status := http.StatusOK
	if !healthy {
		status = http.StatusServiceUnavailable
	}

	c.JSON(status, gin.H{
		"status": map[bool]string{true: "ready", false: "not ready"}[healthy],
		"checks": checks,
	})
}
