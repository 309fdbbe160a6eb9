package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/urmzd/moonctl/pkg/device"
	"github.com/urmzd/moonctl/pkg/device/schema"
	"github.com/urmzd/moonctl/pkg/jsonrpc"
	"github.com/urmzd/moonctl/pkg/printer"
)

type fakeController struct {
	device.NullController
	state  device.ConnectionState
	snap   printer.Snapshot
	calls  []string
	err    error
	result jsonrpc.Value
}

func (f *fakeController) record(format string, args ...any) error {
	f.calls = append(f.calls, fmt.Sprintf(format, args...))
	return f.err
}

func (f *fakeController) ConnectionState() device.ConnectionState { return f.state }
func (f *fakeController) Snapshot() printer.Snapshot              { return f.snap }

func (f *fakeController) GCodes(limit int) []printer.GCodeEntry {
	if limit < len(f.snap.GCodes) {
		return f.snap.GCodes[len(f.snap.GCodes)-limit:]
	}
	return f.snap.GCodes
}

func (f *fakeController) Call(_ context.Context, method string, params map[string]any) (jsonrpc.Value, error) {
	return f.result, f.record("call %s %v", method, params)
}

func (f *fakeController) RunGCode(_ context.Context, script string) error {
	return f.record("gcode %s", script)
}

func (f *fakeController) HomeAxes(_ context.Context, axes ...string) error {
	return f.record("home %v", axes)
}

func (f *fakeController) MoveAxis(_ context.Context, axis string, position, speed float64) error {
	return f.record("move %s %g %g", axis, position, speed)
}

func (f *fakeController) MoveAxisRelative(_ context.Context, axis string, distance, speed float64) error {
	return f.record("move_rel %s %g %g", axis, distance, speed)
}

func (f *fakeController) SetHeaterTarget(_ context.Context, heater string, target float64) error {
	return f.record("heater %s %g", heater, target)
}

func (f *fakeController) PausePrint(context.Context) error {
	return f.record("pause")
}

func (f *fakeController) RunMacro(_ context.Context, name string) error {
	return f.record("macro %s", name)
}

func newTestServer(ctrl *fakeController) *Server {
	return NewServer(ctrl, schema.NewValidator())
}

func callRequest(args map[string]any) mcp.CallToolRequest {
	var req mcp.CallToolRequest
	req.Params.Arguments = args
	return req
}

func resultText(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	require.NotNil(t, res)
	require.NotEmpty(t, res.Content)
	text, ok := res.Content[0].(mcp.TextContent)
	require.True(t, ok, "expected text content, got %T", res.Content[0])
	return text.Text
}

func TestHandleGetHealth(t *testing.T) {
	ctrl := &fakeController{state: device.StateReady}
	ctrl.snap.Klippy = printer.KlippyReady
	s := newTestServer(ctrl)

	res, err := s.handleGetHealth(context.Background(), callRequest(nil))
	require.NoError(t, err)

	var out GetHealthOutput
	require.NoError(t, json.Unmarshal([]byte(resultText(t, res)), &out))
	assert.Equal(t, "healthy", out.Status)
	assert.Equal(t, "ready", out.Connection)
	assert.Equal(t, "ready", out.Klippy)

	ctrl.state = device.StateDegraded
	res, err = s.handleGetHealth(context.Background(), callRequest(nil))
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal([]byte(resultText(t, res)), &out))
	assert.Equal(t, "unhealthy", out.Status)
}

func TestHandleGetPrinterStatus(t *testing.T) {
	ctrl := &fakeController{state: device.StateReady}
	ctrl.snap.Objects = []string{"extruder", "heater_bed", "toolhead"}
	ctrl.snap.Extruders = []printer.Extruder{{Name: "extruder", Temperature: 210.5, Target: 215}}
	ctrl.snap.HeaterBed = printer.Heater{Temperature: 60, Target: 60}
	ctrl.snap.Toolhead.HomedAxes = printer.HomedAxes{X: true, Y: true}
	ctrl.snap.Display.Progress = 0.42
	s := newTestServer(ctrl)

	res, err := s.handleGetPrinterStatus(context.Background(), callRequest(nil))
	require.NoError(t, err)

	var out PrinterStatusOutput
	require.NoError(t, json.Unmarshal([]byte(resultText(t, res)), &out))
	require.Len(t, out.Heaters, 2)
	assert.Equal(t, "extruder", out.Heaters[0].Name)
	assert.Equal(t, 210.5, out.Heaters[0].Temperature)
	assert.Equal(t, "heater_bed", out.Heaters[1].Name)
	assert.Equal(t, "xy", out.HomedAxes)
	assert.Equal(t, 0.42, out.Job.Progress)
}

func TestHandleGetGCodeLog(t *testing.T) {
	ctrl := &fakeController{}
	ctrl.snap.GCodes = []printer.GCodeEntry{
		printer.NewGCodeEntry("G28", printer.GCodeCommand),
		printer.NewGCodeEntry("ok", printer.GCodeResponse),
		printer.NewGCodeEntry("// done", printer.GCodeResponse),
	}
	s := newTestServer(ctrl)

	res, err := s.handleGetGCodeLog(context.Background(), callRequest(map[string]any{"limit": float64(2)}))
	require.NoError(t, err)

	var out GCodeLogOutput
	require.NoError(t, json.Unmarshal([]byte(resultText(t, res)), &out))
	assert.Equal(t, 2, out.Count)
	assert.Equal(t, "ok", out.Lines[0].Message)

	res, err = s.handleGetGCodeLog(context.Background(), callRequest(map[string]any{"limit": float64(0)}))
	require.NoError(t, err)
	assert.True(t, res.IsError)
}

func TestHandleMoveAxis(t *testing.T) {
	ctrl := &fakeController{}
	s := newTestServer(ctrl)
	ctx := context.Background()

	res, err := s.handleMoveAxis(ctx, callRequest(map[string]any{
		"axis": "x", "position": float64(100), "speed": float64(50),
	}))
	require.NoError(t, err)
	assert.False(t, res.IsError)

	res, err = s.handleMoveAxis(ctx, callRequest(map[string]any{
		"axis": "z", "distance": float64(-0.5), "speed": float64(5),
	}))
	require.NoError(t, err)
	assert.False(t, res.IsError)
	assert.Equal(t, []string{"move x 100 50", "move_rel z -0.5 5"}, ctrl.calls)

	// position and distance together is rejected before reaching the printer
	res, err = s.handleMoveAxis(ctx, callRequest(map[string]any{
		"axis": "x", "position": float64(1), "distance": float64(1), "speed": float64(5),
	}))
	require.NoError(t, err)
	assert.True(t, res.IsError)
	assert.Len(t, ctrl.calls, 2)
}

func TestHandleHomeAxes(t *testing.T) {
	ctrl := &fakeController{}
	s := newTestServer(ctrl)

	res, err := s.handleHomeAxes(context.Background(), callRequest(map[string]any{"axes": []any{"x", "y"}}))
	require.NoError(t, err)
	assert.False(t, res.IsError)
	assert.Contains(t, resultText(t, res), "Homing X Y")

	res, err = s.handleHomeAxes(context.Background(), callRequest(nil))
	require.NoError(t, err)
	assert.False(t, res.IsError)
	assert.Equal(t, []string{"home [x y]", "home []"}, ctrl.calls)
}

func TestHandleSetHeaterTemperature_Validation(t *testing.T) {
	ctrl := &fakeController{}
	s := newTestServer(ctrl)

	res, err := s.handleSetHeaterTemperature(context.Background(), callRequest(map[string]any{
		"heater": "extruder", "target": float64(-10),
	}))
	require.NoError(t, err)
	assert.True(t, res.IsError)
	assert.Empty(t, ctrl.calls)

	res, err = s.handleSetHeaterTemperature(context.Background(), callRequest(map[string]any{
		"heater": "heater_bed", "target": float64(60),
	}))
	require.NoError(t, err)
	assert.False(t, res.IsError)
	assert.Equal(t, []string{"heater heater_bed 60"}, ctrl.calls)
}

func TestHandleCommandErrors(t *testing.T) {
	ctrl := &fakeController{err: device.ErrNotConnected}
	s := newTestServer(ctrl)

	res, err := s.handleRunGCode(context.Background(), callRequest(map[string]any{"script": "G28"}))
	require.NoError(t, err)
	assert.True(t, res.IsError)
	assert.Contains(t, resultText(t, res), "printer not connected")

	res, err = s.handleRunMacro(context.Background(), callRequest(map[string]any{}))
	require.NoError(t, err)
	assert.True(t, res.IsError)
	assert.Contains(t, resultText(t, res), `"name"`)
}

func TestHandlePrinterAction(t *testing.T) {
	ctrl := &fakeController{}
	s := newTestServer(ctrl)

	res, err := s.handlePrinterAction(context.Background(), callRequest(map[string]any{"action": "pause_print"}))
	require.NoError(t, err)
	assert.False(t, res.IsError)
	assert.Equal(t, []string{"pause"}, ctrl.calls)

	res, err = s.handlePrinterAction(context.Background(), callRequest(map[string]any{"action": "explode"}))
	require.NoError(t, err)
	assert.True(t, res.IsError)

	for _, name := range actionNames() {
		assert.Contains(t, actions, name)
	}
}

func TestHandleCallRPC(t *testing.T) {
	ctrl := &fakeController{result: jsonrpc.Object(map[string]jsonrpc.Value{
		"state": jsonrpc.String("ready"),
	})}
	s := newTestServer(ctrl)

	res, err := s.handleCallRPC(context.Background(), callRequest(map[string]any{
		"method": "printer.info",
	}))
	require.NoError(t, err)
	assert.False(t, res.IsError)

	var out struct {
		Method string         `json:"method"`
		Result map[string]any `json:"result"`
	}
	require.NoError(t, json.Unmarshal([]byte(resultText(t, res)), &out))
	assert.Equal(t, "printer.info", out.Method)
	assert.Equal(t, "ready", out.Result["state"])

	res, err = s.handleCallRPC(context.Background(), callRequest(map[string]any{"method": "not a method"}))
	require.NoError(t, err)
	assert.True(t, res.IsError)
}
