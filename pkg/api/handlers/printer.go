package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/urmzd/moonctl/pkg/api/types"
	"github.com/urmzd/moonctl/pkg/device"
	"github.com/urmzd/moonctl/pkg/printer"
)

// GCodeHistory serves the persisted console log.
type GCodeHistory interface {
	Recent(ctx context.Context, limit int) ([]printer.GCodeEntry, error)
}

// PrinterHandler serves read-only printer state.
type PrinterHandler struct {
	controller device.Controller
	history    GCodeHistory
}

// NewPrinterHandler creates a printer handler. history may be nil.
func NewPrinterHandler(controller device.Controller, history GCodeHistory) *PrinterHandler {
	return &PrinterHandler{controller: controller, history: history}
}

// GetPrinter handles GET /printer
// @Summary      Printer state
// @Description  Returns a snapshot of the live printer state
// @Tags         printer
// @Produce      json
// @Success      200  {object}  types.PrinterResponse
// @Router       /printer [get]
func (h *PrinterHandler) GetPrinter(c *gin.Context) {
	c.JSON(http.StatusOK, types.PrinterResponse{
		Connection: h.controller.ConnectionState().String(),
		Printer:    h.controller.Snapshot(),
	})
}

// ListObjects handles GET /printer/objects
// @Summary      Discovered objects
// @Description  Lists every printer object reported by the host, modeled or not
// @Tags         printer
// @Produce      json
// @Success      200  {object}  types.ObjectsResponse
// @Router       /printer/objects [get]
func (h *PrinterHandler) ListObjects(c *gin.Context) {
	objects := h.controller.Snapshot().Objects
	if objects == nil {
		objects = []string{}
	}
	c.JSON(http.StatusOK, types.ObjectsResponse{Objects: objects, Count: len(objects)})
}

// ListMacros handles GET /printer/macros
// @Summary      Discovered macros
// @Tags         printer
// @Produce      json
// @Success      200  {object}  types.MacrosResponse
// @Router       /printer/macros [get]
func (h *PrinterHandler) ListMacros(c *gin.Context) {
	macros := h.controller.Snapshot().Macros
	if macros == nil {
		macros = []string{}
	}
	c.JSON(http.StatusOK, types.MacrosResponse{Macros: macros, Count: len(macros)})
}

// ListGCodes handles GET /printer/gcodes
// @Summary      Console log
// @Description  Recent console lines, from memory or from the persisted log
// @Tags         printer
// @Produce      json
// @Param        limit      query     int   false  "Maximum entries (default 100)"
// @Param        persisted  query     bool  false  "Read from the database instead of memory"
// @Success      200  {object}  types.GCodesResponse
// @Failure      400  {object}  types.ErrorResponse
// @Failure      500  {object}  types.ErrorResponse
// @Router       /printer/gcodes [get]
func (h *PrinterHandler) ListGCodes(c *gin.Context) {
	limit := 100
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			c.JSON(http.StatusBadRequest, types.ErrorResponse{Error: "invalid_limit", Message: "limit must be a non-negative integer"})
			return
		}
		limit = n
	}

	source := "memory"
	var entries []printer.GCodeEntry
	if c.Query("persisted") == "true" && h.history != nil {
		source = "database"
		var err error
		entries, err = h.history.Recent(c.Request.Context(), limit)
		if err != nil {
			writeError(c, err)
			return
		}
	} else {
		entries = h.controller.GCodes(limit)
	}
	if entries == nil {
		entries = []printer.GCodeEntry{}
	}

	c.JSON(http.StatusOK, types.GCodesResponse{GCodes: entries, Count: len(entries), Source: source})
}
