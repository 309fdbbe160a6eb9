package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/urmzd/moonctl/pkg/api/types"
	"github.com/urmzd/moonctl/pkg/device"
	"github.com/urmzd/moonctl/pkg/device/schema"
	"github.com/urmzd/moonctl/pkg/jsonrpc"
)

const maxBodyBytes = 1 << 20

// writeError maps controller errors onto HTTP statuses.
func writeError(c *gin.Context, err error) {
	var remote *jsonrpc.RemoteError
	switch {
	case errors.Is(err, device.ErrValidation), errors.Is(err, device.ErrUnknownAxis):
		c.JSON(http.StatusBadRequest, types.ErrorResponse{Error: "validation_error", Message: err.Error()})
	case errors.Is(err, device.ErrUnknownHeater), errors.Is(err, device.ErrUnknownMacro):
		c.JSON(http.StatusNotFound, types.ErrorResponse{Error: "not_found", Message: err.Error()})
	case errors.Is(err, device.ErrPrecondition):
		c.JSON(http.StatusConflict, types.ErrorResponse{Error: "precondition_failed", Message: err.Error()})
	case errors.Is(err, device.ErrNotConnected):
		c.JSON(http.StatusServiceUnavailable, types.ErrorResponse{Error: "printer_disconnected", Message: err.Error()})
	case errors.Is(err, device.ErrTimeout):
		c.JSON(http.StatusGatewayTimeout, types.ErrorResponse{
			Error:   "timeout",
			Message: "Request timed out waiting for printer response",
		})
	case errors.As(err, &remote):
		c.JSON(http.StatusBadGateway, types.ErrorResponse{Error: "printer_error", Message: remote.Message})
	default:
		c.JSON(http.StatusInternalServerError, types.ErrorResponse{Error: "internal_error", Message: err.Error()})
	}
}

// bind reads the JSON body, validates it against the command schema and
// decodes it into dst. An empty body counts as {}. It writes the error
// response and returns false on failure.
func bind(c *gin.Context, v *schema.Validator, command string, dst any) bool {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxBodyBytes))
	if err != nil {
		c.JSON(http.StatusBadRequest, types.ErrorResponse{Error: "invalid_request", Message: "Unreadable request body"})
		return false
	}
	if len(bytes.TrimSpace(body)) == 0 {
		body = []byte("{}")
	}

	var payload map[string]any
	if err := json.Unmarshal(body, &payload); err != nil {
		c.JSON(http.StatusBadRequest, types.ErrorResponse{Error: "invalid_request", Message: "Invalid request body"})
		return false
	}
	if err := v.ValidateCommand(command, payload); err != nil {
		writeError(c, err)
		return false
	}
	if err := json.Unmarshal(body, dst); err != nil {
		c.JSON(http.StatusBadRequest, types.ErrorResponse{Error: "invalid_request", Message: err.Error()})
		return false
	}
	return true
}

func accepted(c *gin.Context, command string) {
	c.JSON(http.StatusOK, types.CommandResponse{
		Status:    "ok",
		Command:   command,
		Timestamp: time.Now(),
	})
}
