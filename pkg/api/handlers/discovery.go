package handlers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/urmzd/moonctl/pkg/api/types"
	"github.com/urmzd/moonctl/pkg/discovery"
)

const (
	defaultScanSeconds = 3
	maxScanSeconds     = 30
)

// Scanner finds Moonraker hosts on the network.
type Scanner interface {
	Scan(ctx context.Context, timeout time.Duration) ([]discovery.Host, error)
}

// DiscoveryHandler handles mDNS host discovery
type DiscoveryHandler struct {
	scanner Scanner
}

func NewDiscoveryHandler(scanner Scanner) *DiscoveryHandler {
	return &DiscoveryHandler{scanner: scanner}
}

// Scan handles GET /discovery
// @Summary      Find Moonraker hosts
// @Description  Browses _moonraker._tcp over mDNS for the given number of seconds
// @Tags         discovery
// @Produce      json
// @Param        seconds  query     int  false  "Browse duration (default 3, max 30)"
// @Success      200      {object}  types.DiscoveryResponse
// @Failure      400      {object}  types.ErrorResponse  "Invalid duration"
// @Failure      500      {object}  types.ErrorResponse  "Browse failed"
// @Router       /discovery [get]
func (h *DiscoveryHandler) Scan(c *gin.Context) {
	seconds := defaultScanSeconds
	if raw := c.Query("seconds"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > maxScanSeconds {
			c.JSON(http.StatusBadRequest, types.ErrorResponse{
				Error:   "invalid_duration",
				Message: "seconds must be between 1 and 30",
			})
			return
		}
		seconds = n
	}

	hosts, err := h.scanner.Scan(c.Request.Context(), time.Duration(seconds)*time.Second)
	if err != nil {
		writeError(c, err)
		return
	}
	if hosts == nil {
		hosts = []discovery.Host{}
	}
	c.JSON(http.StatusOK, types.DiscoveryResponse{Hosts: hosts, Count: len(hosts)})
}
