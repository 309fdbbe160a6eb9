package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/rs/zerolog/log"

	"github.com/urmzd/moonctl/pkg/device"
	"github.com/urmzd/moonctl/pkg/device/schema"
)

const defaultGCodeLimit = 50

var actions = map[string]func(device.Controller) func(context.Context) error{
	"emergency_stop":   func(c device.Controller) func(context.Context) error { return c.EmergencyStop },
	"firmware_restart": func(c device.Controller) func(context.Context) error { return c.FirmwareRestart },
	"heaters_off":      func(c device.Controller) func(context.Context) error { return c.TurnOffHeaters },
	"motors_off":       func(c device.Controller) func(context.Context) error { return c.MotorsOff },
	"save_z_offset":    func(c device.Controller) func(context.Context) error { return c.SaveZOffset },
	"pause_print":      func(c device.Controller) func(context.Context) error { return c.PausePrint },
	"resume_print":     func(c device.Controller) func(context.Context) error { return c.ResumePrint },
	"cancel_print":     func(c device.Controller) func(context.Context) error { return c.CancelPrint },
}

func actionNames() []string {
	return []string{
		"emergency_stop", "firmware_restart", "heaters_off", "motors_off",
		"save_z_offset", "pause_print", "resume_print", "cancel_print",
	}
}

func (s *Server) handleGetHealth(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	state := s.controller.ConnectionState()
	snap := s.controller.Snapshot()

	status := "healthy"
	if state != device.StateReady {
		status = "unhealthy"
	}

	out := GetHealthOutput{
		Status:     status,
		Connection: state.String(),
		Klippy:     snap.Klippy.String(),
		Message:    snap.StateMessage,
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
	}
	return mcp.NewToolResultText(formatJSON(out)), nil
}

func (s *Server) handleGetPrinterStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	out := StatusFromSnapshot(s.controller.ConnectionState().String(), s.controller.Snapshot())
	return mcp.NewToolResultText(formatJSON(out)), nil
}

func (s *Server) handleListObjects(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	snap := s.controller.Snapshot()
	out := ListObjectsOutput{
		Objects: snap.Objects,
		Macros:  snap.Macros,
		Count:   len(snap.Objects),
	}
	if out.Objects == nil {
		out.Objects = []string{}
	}
	if out.Macros == nil {
		out.Macros = []string{}
	}
	return mcp.NewToolResultText(formatJSON(out)), nil
}

func (s *Server) handleGetGCodeLog(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	limit := defaultGCodeLimit
	if v, ok, err := optionalNumber(request, "limit"); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	} else if ok {
		if v < 1 {
			return mcp.NewToolResultError("limit must be at least 1"), nil
		}
		limit = int(v)
	}

	lines := s.controller.GCodes(limit)
	out := GCodeLogOutput{Lines: lines, Count: len(lines)}
	return mcp.NewToolResultText(formatJSON(out)), nil
}

func (s *Server) handleRunGCode(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if res := s.validate(schema.CommandGCode, request); res != nil {
		return res, nil
	}
	script, err := requiredString(request, "script")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return s.run(ctx, "G-code sent", func(ctx context.Context) error {
		return s.controller.RunGCode(ctx, script)
	}), nil
}

func (s *Server) handleHomeAxes(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if res := s.validate(schema.CommandHome, request); res != nil {
		return res, nil
	}

	var axes []string
	if raw, ok := request.GetArguments()["axes"].([]any); ok {
		for _, a := range raw {
			if name, ok := a.(string); ok {
				axes = append(axes, name)
			}
		}
	}

	msg := "Homing all axes"
	if len(axes) > 0 {
		msg = "Homing " + strings.ToUpper(strings.Join(axes, " "))
	}
	return s.run(ctx, msg, func(ctx context.Context) error {
		return s.controller.HomeAxes(ctx, axes...)
	}), nil
}

func (s *Server) handleMoveAxis(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if res := s.validate(schema.CommandMove, request); res != nil {
		return res, nil
	}
	axis, err := requiredString(request, "axis")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	speed, err := requiredNumber(request, "speed")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	if position, ok, _ := optionalNumber(request, "position"); ok {
		return s.run(ctx, fmt.Sprintf("Moving %s to %g", strings.ToUpper(axis), position), func(ctx context.Context) error {
			return s.controller.MoveAxis(ctx, axis, position, speed)
		}), nil
	}
	distance, err := requiredNumber(request, "distance")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return s.run(ctx, fmt.Sprintf("Moving %s by %g", strings.ToUpper(axis), distance), func(ctx context.Context) error {
		return s.controller.MoveAxisRelative(ctx, axis, distance, speed)
	}), nil
}

func (s *Server) handleSetHeaterTemperature(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if res := s.validate(schema.CommandTemperature, request); res != nil {
		return res, nil
	}
	heater, err := requiredString(request, "heater")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	target, err := requiredNumber(request, "target")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return s.run(ctx, fmt.Sprintf("%s target set to %g", heater, target), func(ctx context.Context) error {
		return s.controller.SetHeaterTarget(ctx, heater, target)
	}), nil
}

func (s *Server) handleSetFanSpeed(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if res := s.validate(schema.CommandFan, request); res != nil {
		return res, nil
	}
	speed, err := requiredNumber(request, "speed")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return s.run(ctx, fmt.Sprintf("Fan set to %.0f%%", speed*100), func(ctx context.Context) error {
		return s.controller.SetFanSpeed(ctx, speed)
	}), nil
}

func (s *Server) handleExtrude(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if res := s.validate(schema.CommandExtrude, request); res != nil {
		return res, nil
	}
	distance, err := requiredNumber(request, "distance")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	speed, err := requiredNumber(request, "speed")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return s.run(ctx, fmt.Sprintf("Extruding %gmm", distance), func(ctx context.Context) error {
		return s.controller.Extrude(ctx, distance, speed)
	}), nil
}

func (s *Server) handleRunMacro(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := requiredString(request, "name")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return s.run(ctx, "Macro "+strings.ToUpper(name)+" started", func(ctx context.Context) error {
		return s.controller.RunMacro(ctx, name)
	}), nil
}

func (s *Server) handlePrinterAction(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	action, err := requiredString(request, "action")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	bind, ok := actions[action]
	if !ok {
		return mcp.NewToolResultError(fmt.Sprintf("unknown action %q", action)), nil
	}
	return s.run(ctx, action+" sent", bind(s.controller)), nil
}

func (s *Server) handleCallRPC(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if res := s.validate(schema.CommandRPC, request); res != nil {
		return res, nil
	}
	method, err := requiredString(request, "method")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	params, _ := request.GetArguments()["params"].(map[string]any)

	result, err := s.controller.Call(ctx, method, params)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("%s failed: %s", method, err)), nil
	}
	return mcp.NewToolResultText(formatJSON(CallRPCOutput{Method: method, Result: result})), nil
}

// run executes a printer command and renders the outcome as a tool result.
func (s *Server) run(ctx context.Context, message string, fn func(context.Context) error) *mcp.CallToolResult {
	if err := fn(ctx); err != nil {
		log.Debug().Err(err).Str("message", message).Msg("MCP command failed")
		return mcp.NewToolResultError(err.Error())
	}
	return mcp.NewToolResultText(formatJSON(CommandOutput{Success: true, Message: message}))
}

// validate checks the tool arguments against a command schema and returns an
// error result when they do not conform.
func (s *Server) validate(command string, request mcp.CallToolRequest) *mcp.CallToolResult {
	if s.validator == nil {
		return nil
	}
	args := request.GetArguments()
	if args == nil {
		args = map[string]any{}
	}
	if err := s.validator.ValidateCommand(command, args); err != nil {
		return mcp.NewToolResultError(err.Error())
	}
	return nil
}

func requiredString(request mcp.CallToolRequest, key string) (string, error) {
	args := request.GetArguments()
	v, ok := args[key]
	if !ok || v == nil {
		return "", fmt.Errorf("required parameter %q is missing", key)
	}
	s, ok := v.(string)
	if !ok || strings.TrimSpace(s) == "" {
		return "", fmt.Errorf("parameter %q must be a non-empty string", key)
	}
	return s, nil
}

func requiredNumber(request mcp.CallToolRequest, key string) (float64, error) {
	v, ok, err := optionalNumber(request, key)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, fmt.Errorf("required parameter %q is missing", key)
	}
	return v, nil
}

// optionalNumber reads a numeric argument. JSON numbers decode as float64,
// but in-process callers may pass ints.
func optionalNumber(request mcp.CallToolRequest, key string) (float64, bool, error) {
	v, ok := request.GetArguments()[key]
	if !ok || v == nil {
		return 0, false, nil
	}
	switch n := v.(type) {
	case float64:
		return n, true, nil
	case int:
		return float64(n), true, nil
	case json.Number:
		f, err := n.Float64()
		if err != nil {
			return 0, false, fmt.Errorf("parameter %q must be a number", key)
		}
		return f, true, nil
	default:
		return 0, false, fmt.Errorf("parameter %q must be a number", key)
	}
}

func formatJSON(v any) string {
	b, err := encodeJSON(v)
	if err != nil {
		return fmt.Sprintf(`{"error":"failed to marshal response: %s"}`, err)
	}
	return string(b)
}

func encodeJSON(v any) ([]byte, error) {
	return json.MarshalIndent(v, "", "  ")
}
