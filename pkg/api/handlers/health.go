package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/urmzd/moonctl/pkg/api/types"
	"github.com/urmzd/moonctl/pkg/device"
)

// HealthHandler handles health check endpoints
type HealthHandler struct {
	controller device.Controller
}

func NewHealthHandler(controller device.Controller) *HealthHandler {
	return &HealthHandler{controller: controller}
}

// Health handles GET /health
// @Summary      Health check
// @Description  Healthy only while the printer connection is ready
// @Tags         health
// @Produce      json
// @Success      200  {object}  types.HealthResponse  "Connection ready"
// @Failure      503  {object}  types.HealthResponse  "Connecting, degraded or disconnected"
// @Router       /health [get]
func (h *HealthHandler) Health(c *gin.Context) {
	state := h.controller.ConnectionState()
	snap := h.controller.Snapshot()

	status, code := "healthy", http.StatusOK
	if state != device.StateReady {
		status, code = "degraded", http.StatusServiceUnavailable
	}

	c.JSON(code, types.HealthResponse{
		Status:     status,
		Connection: state.String(),
		Klippy:     snap.Klippy.String(),
		Timestamp:  time.Now(),
	})
}
