package handlers

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/urmzd/moonctl/pkg/api/types"
	"github.com/urmzd/moonctl/pkg/device"
	"github.com/urmzd/moonctl/pkg/device/schema"
)

// ControlHandler handles printer commands
type ControlHandler struct {
	controller device.Controller
	validator  *schema.Validator
}

func NewControlHandler(controller device.Controller, validator *schema.Validator) *ControlHandler {
	return &ControlHandler{controller: controller, validator: validator}
}

func (h *ControlHandler) run(c *gin.Context, command string, fn func(ctx context.Context) error) {
	if err := fn(c.Request.Context()); err != nil {
		writeError(c, err)
		return
	}
	accepted(c, command)
}

// RunGCode handles POST /printer/gcode
// @Summary      Run a G-code script
// @Tags         control
// @Accept       json
// @Produce      json
// @Param        request  body      types.GCodeRequest  true  "Script"
// @Success      200      {object}  types.CommandResponse
// @Failure      400      {object}  types.ErrorResponse  "Invalid request"
// @Failure      502      {object}  types.ErrorResponse  "Printer rejected the script"
// @Failure      503      {object}  types.ErrorResponse  "Printer disconnected"
// @Failure      504      {object}  types.ErrorResponse  "Request timed out"
// @Router       /printer/gcode [post]
func (h *ControlHandler) RunGCode(c *gin.Context) {
	var req types.GCodeRequest
	if !bind(c, h.validator, schema.CommandGCode, &req) {
		return
	}
	h.run(c, "gcode", func(ctx context.Context) error {
		return h.controller.RunGCode(ctx, req.Script)
	})
}

// Home handles POST /printer/home
// @Summary      Home axes
// @Description  Homes the listed axes, or all axes when none are given
// @Tags         control
// @Accept       json
// @Produce      json
// @Param        request  body      types.HomeRequest  false  "Axes"
// @Success      200      {object}  types.CommandResponse
// @Failure      400      {object}  types.ErrorResponse
// @Failure      503      {object}  types.ErrorResponse
// @Router       /printer/home [post]
func (h *ControlHandler) Home(c *gin.Context) {
	var req types.HomeRequest
	if !bind(c, h.validator, schema.CommandHome, &req) {
		return
	}
	h.run(c, "home", func(ctx context.Context) error {
		return h.controller.HomeAxes(ctx, req.Axes...)
	})
}

// Move handles POST /printer/move
// @Summary      Move an axis
// @Description  Absolute move with position, relative move with distance. The axis must be homed.
// @Tags         control
// @Accept       json
// @Produce      json
// @Param        request  body      types.MoveRequest  true  "Move"
// @Success      200      {object}  types.CommandResponse
// @Failure      400      {object}  types.ErrorResponse
// @Failure      409      {object}  types.ErrorResponse  "Axis not homed"
// @Router       /printer/move [post]
func (h *ControlHandler) Move(c *gin.Context) {
	var req types.MoveRequest
	if !bind(c, h.validator, schema.CommandMove, &req) {
		return
	}
	h.run(c, "move", func(ctx context.Context) error {
		if req.Distance != nil {
			return h.controller.MoveAxisRelative(ctx, req.Axis, *req.Distance, req.Speed)
		}
		return h.controller.MoveAxis(ctx, req.Axis, *req.Position, req.Speed)
	})
}

// SetTemperature handles POST /printer/temperature
// @Summary      Set a heater target
// @Tags         control
// @Accept       json
// @Produce      json
// @Param        request  body      types.TemperatureRequest  true  "Heater target"
// @Success      200      {object}  types.CommandResponse
// @Failure      400      {object}  types.ErrorResponse
// @Failure      404      {object}  types.ErrorResponse  "Unknown heater"
// @Router       /printer/temperature [post]
func (h *ControlHandler) SetTemperature(c *gin.Context) {
	var req types.TemperatureRequest
	if !bind(c, h.validator, schema.CommandTemperature, &req) {
		return
	}
	h.run(c, "temperature", func(ctx context.Context) error {
		return h.controller.SetHeaterTarget(ctx, req.Heater, req.Target)
	})
}

// Extrude handles POST /printer/extrude
// @Summary      Extrude or retract filament
// @Tags         control
// @Accept       json
// @Produce      json
// @Param        request  body      types.ExtrudeRequest  true  "Extrusion"
// @Success      200      {object}  types.CommandResponse
// @Failure      409      {object}  types.ErrorResponse  "Extruder too cold"
// @Router       /printer/extrude [post]
func (h *ControlHandler) Extrude(c *gin.Context) {
	var req types.ExtrudeRequest
	if !bind(c, h.validator, schema.CommandExtrude, &req) {
		return
	}
	h.run(c, "extrude", func(ctx context.Context) error {
		return h.controller.Extrude(ctx, req.Distance, req.Speed)
	})
}

// SetFan handles POST /printer/fan
// @Summary      Set part fan speed
// @Tags         control
// @Accept       json
// @Produce      json
// @Param        request  body      types.FanRequest  true  "Speed 0..1"
// @Success      200      {object}  types.CommandResponse
// @Router       /printer/fan [post]
func (h *ControlHandler) SetFan(c *gin.Context) {
	var req types.FanRequest
	if !bind(c, h.validator, schema.CommandFan, &req) {
		return
	}
	h.run(c, "fan", func(ctx context.Context) error {
		return h.controller.SetFanSpeed(ctx, req.Speed)
	})
}

// AdjustZOffset handles POST /printer/z_offset
// @Summary      Nudge the Z offset
// @Tags         control
// @Accept       json
// @Produce      json
// @Param        request  body      types.ZOffsetRequest  true  "Offset"
// @Success      200      {object}  types.CommandResponse
// @Router       /printer/z_offset [post]
func (h *ControlHandler) AdjustZOffset(c *gin.Context) {
	var req types.ZOffsetRequest
	if !bind(c, h.validator, schema.CommandZOffset, &req) {
		return
	}
	h.run(c, "z_offset", func(ctx context.Context) error {
		return h.controller.AdjustZOffset(ctx, req.Offset, req.Move)
	})
}

// SpeedFactor handles POST /printer/speed_factor
// @Summary      Set the speed override
// @Tags         control
// @Accept       json
// @Produce      json
// @Param        request  body      types.FactorRequest  true  "Percent"
// @Success      200      {object}  types.CommandResponse
// @Router       /printer/speed_factor [post]
func (h *ControlHandler) SpeedFactor(c *gin.Context) {
	var req types.FactorRequest
	if !bind(c, h.validator, schema.CommandFactor, &req) {
		return
	}
	h.run(c, "speed_factor", func(ctx context.Context) error {
		return h.controller.SetSpeedFactor(ctx, req.Percent)
	})
}

// ExtrudeFactor handles POST /printer/extrude_factor
// @Summary      Set the flow override
// @Tags         control
// @Accept       json
// @Produce      json
// @Param        request  body      types.FactorRequest  true  "Percent"
// @Success      200      {object}  types.CommandResponse
// @Router       /printer/extrude_factor [post]
func (h *ControlHandler) ExtrudeFactor(c *gin.Context) {
	var req types.FactorRequest
	if !bind(c, h.validator, schema.CommandFactor, &req) {
		return
	}
	h.run(c, "extrude_factor", func(ctx context.Context) error {
		return h.controller.SetExtrudeFactor(ctx, req.Percent)
	})
}

// RunMacro handles POST /printer/macros/:name
// @Summary      Run a macro
// @Tags         control
// @Produce      json
// @Param        name  path      string  true  "Macro name"
// @Success      200   {object}  types.CommandResponse
// @Failure      404   {object}  types.ErrorResponse  "Unknown macro"
// @Router       /printer/macros/{name} [post]
func (h *ControlHandler) RunMacro(c *gin.Context) {
	name := c.Param("name")
	h.run(c, "macro "+strings.ToUpper(name), func(ctx context.Context) error {
		return h.controller.RunMacro(ctx, name)
	})
}

// Action returns a handler for a command without a body, such as
// emergency_stop or motors_off.
// @Summary      Argument-free printer commands
// @Description  emergency_stop, firmware_restart, heaters/off, motors/off, z_offset/save, print/pause, print/resume, print/cancel
// @Tags         control
// @Produce      json
// @Success      200  {object}  types.CommandResponse
// @Failure      503  {object}  types.ErrorResponse
// @Router       /printer/emergency_stop [post]
func (h *ControlHandler) Action(command string) gin.HandlerFunc {
	var fn func(context.Context) error
	switch command {
	case "emergency_stop":
		fn = h.controller.EmergencyStop
	case "firmware_restart":
		fn = h.controller.FirmwareRestart
	case "heaters_off":
		fn = h.controller.TurnOffHeaters
	case "motors_off":
		fn = h.controller.MotorsOff
	case "save_z_offset":
		fn = h.controller.SaveZOffset
	case "pause":
		fn = h.controller.PausePrint
	case "resume":
		fn = h.controller.ResumePrint
	case "cancel":
		fn = h.controller.CancelPrint
	default:
		panic("handlers: unknown action " + command)
	}
	return func(c *gin.Context) {
		h.run(c, command, fn)
	}
}
