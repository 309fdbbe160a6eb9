package interactive

import (
	"bytes"
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/urmzd/moonctl/pkg/device"
	"github.com/urmzd/moonctl/pkg/discovery"
	"github.com/urmzd/moonctl/pkg/jsonrpc"
	"github.com/urmzd/moonctl/pkg/printer"
)

type fakeController struct {
	device.NullController
	snap  printer.Snapshot
	calls []string
	err   error
}

func (f *fakeController) record(format string, args ...any) error {
	f.calls = append(f.calls, fmt.Sprintf(format, args...))
	return f.err
}

func (f *fakeController) ConnectionState() device.ConnectionState { return device.StateReady }
func (f *fakeController) Snapshot() printer.Snapshot              { return f.snap }
func (f *fakeController) GCodes(int) []printer.GCodeEntry         { return f.snap.GCodes }

func (f *fakeController) RunGCode(_ context.Context, script string) error {
	return f.record("gcode %q", script)
}

func (f *fakeController) HomeAxes(_ context.Context, axes ...string) error {
	return f.record("home %v", axes)
}

func (f *fakeController) MoveAxis(_ context.Context, axis string, position, speed float64) error {
	return f.record("move %s %g %g", axis, position, speed)
}

func (f *fakeController) MoveAxisRelative(_ context.Context, axis string, distance, speed float64) error {
	return f.record("jog %s %g %g", axis, distance, speed)
}

func (f *fakeController) Extrude(_ context.Context, distance, speed float64) error {
	return f.record("extrude %g %g", distance, speed)
}

func (f *fakeController) TurnOffHeaters(context.Context) error { return f.record("heaters off") }

func (f *fakeController) Call(_ context.Context, method string, params map[string]any) (jsonrpc.Value, error) {
	return jsonrpc.Object(map[string]jsonrpc.Value{"ok": jsonrpc.Bool(true)}), f.record("rpc %s %v", method, params)
}

type fakeScanner struct{ hosts []discovery.Host }

func (s fakeScanner) Scan(context.Context, time.Duration) ([]discovery.Host, error) {
	return s.hosts, nil
}

func newTestConsole(ctrl *fakeController) (*Console, *bytes.Buffer) {
	var out bytes.Buffer
	return &Console{ctrl: ctrl, out: &out}, &out
}

func TestExec_Motion(t *testing.T) {
	ctrl := &fakeController{}
	c, out := newTestConsole(ctrl)
	ctx := context.Background()

	assert.False(t, c.Exec(ctx, "home x y"))
	assert.False(t, c.Exec(ctx, "move x 120"))
	assert.False(t, c.Exec(ctx, "jog z -0.2 5"))
	assert.False(t, c.Exec(ctx, "extrude 10"))

	assert.Equal(t, []string{
		"home [x y]",
		"move x 120 50",
		"jog z -0.2 5",
		"extrude 10 5",
	}, ctrl.calls)
	assert.Contains(t, out.String(), "OK")
}

func TestExec_Usage(t *testing.T) {
	ctrl := &fakeController{}
	c, out := newTestConsole(ctrl)
	ctx := context.Background()

	c.Exec(ctx, "move x")
	c.Exec(ctx, "temp extruder hot")
	c.Exec(ctx, "frobnicate")

	assert.Empty(t, ctrl.calls)
	assert.Contains(t, out.String(), "Usage: move <axis> <position> [speed]")
	assert.Contains(t, out.String(), "Invalid temperature: hot")
	assert.Contains(t, out.String(), "Unknown command: frobnicate")
}

func TestExec_GCodeSplitsOnSemicolon(t *testing.T) {
	ctrl := &fakeController{}
	c, _ := newTestConsole(ctrl)

	c.Exec(context.Background(), "gcode G28; G1 Z10 F600")
	assert.Equal(t, []string{`gcode "G28\nG1 Z10 F600"`}, ctrl.calls)
}

func TestExec_ReportsErrors(t *testing.T) {
	ctrl := &fakeController{err: device.ErrNotConnected}
	c, out := newTestConsole(ctrl)

	c.Exec(context.Background(), "off heaters")
	assert.Contains(t, out.String(), "Error: printer not connected")
}

func TestExec_RPC(t *testing.T) {
	ctrl := &fakeController{}
	c, out := newTestConsole(ctrl)

	c.Exec(context.Background(), `rpc printer.objects.query {"objects": {"toolhead": null}}`)
	require.Len(t, ctrl.calls, 1)
	assert.Contains(t, ctrl.calls[0], "rpc printer.objects.query")
	assert.Contains(t, out.String(), `"ok": true`)

	c.Exec(context.Background(), `rpc server.info {broken`)
	assert.Contains(t, out.String(), "Invalid params")
}

func TestExec_StatusAndTemps(t *testing.T) {
	ctrl := &fakeController{}
	ctrl.snap.Klippy = printer.KlippyReady
	ctrl.snap.Objects = []string{"extruder", "heater_bed"}
	ctrl.snap.Extruders = []printer.Extruder{{Name: "extruder", Temperature: 200, Target: 210}}
	ctrl.snap.HeaterBed = printer.Heater{Temperature: 55.5, Target: 60}
	ctrl.snap.Toolhead.Position = []float64{10, 20, 0.3, 0}
	c, out := newTestConsole(ctrl)

	c.Exec(context.Background(), "status")
	assert.Contains(t, out.String(), "Connection: ready")
	assert.Contains(t, out.String(), "Homed:      none")
	assert.Contains(t, out.String(), "Position:   X10.00 Y20.00 Z0.30")

	out.Reset()
	c.Exec(context.Background(), "temps")
	assert.Contains(t, out.String(), "extruder")
	assert.Contains(t, out.String(), "55.5")
}

func TestExec_Discover(t *testing.T) {
	ctrl := &fakeController{}
	c, out := newTestConsole(ctrl)
	c.scanner = fakeScanner{hosts: []discovery.Host{{
		Instance:  "voron",
		Port:      7125,
		Addresses: []string{"192.168.1.20"},
	}}}

	c.Exec(context.Background(), "discover 1")
	assert.Contains(t, out.String(), "voron")
	assert.Contains(t, out.String(), "ws://192.168.1.20:7125/websocket")
}

func TestExec_Quit(t *testing.T) {
	c, _ := newTestConsole(&fakeController{})
	assert.True(t, c.Exec(context.Background(), "quit"))
	assert.False(t, c.Exec(context.Background(), "   "))
}
