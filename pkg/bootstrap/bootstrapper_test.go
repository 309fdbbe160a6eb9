package bootstrap

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urmzd/moonctl/pkg/jsonrpc"
	"github.com/urmzd/moonctl/pkg/printer"
)

type scriptedCaller struct {
	mu        sync.Mutex
	responses map[string]string
	failures  map[string]error
	calls     []string
	params    map[string]map[string]any
}

func newScriptedCaller() *scriptedCaller {
	return &scriptedCaller{
		responses: map[string]string{
			"printer.objects.list": `{"objects": [
				"webhooks", "toolhead", "extruder", "heater_bed", "print_stats", "gcode_move",
				"temperature_sensor chamber", "heater_fan hotend_fan", "gcode_macro PRINT_START"
			]}`,
			"printer.info": `{"state": "ready", "state_message": "Printer is ready"}`,
			"printer.objects.subscribe": `{"eventtime": 100.5, "status": {
				"heater_bed": {"temperature": 24, "target": 0, "power": 0},
				"extruder": {"temperature": 25.3, "target": 0, "can_extrude": false},
				"toolhead": {"homed_axes": "", "position": [0, 0, 0, 0]},
				"print_stats": {"state": "standby", "filename": ""},
				"temperature_sensor chamber": {"temperature": 22}
			}}`,
			"server.gcode_store": `{"gcode_store": [
				{"message": "G28", "time": 1700000000.5, "type": "command"},
				{"message": "ok", "time": 1700000001.0, "type": "response"},
				{"time": 1700000002.0, "type": "response"}
			]}`,
		},
		failures: map[string]error{},
		params:   map[string]map[string]any{},
	}
}

func (c *scriptedCaller) Call(_ context.Context, method string, params map[string]any) (jsonrpc.Value, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.calls = append(c.calls, method)
	c.params[method] = params
	if err := c.failures[method]; err != nil {
		return jsonrpc.Value{}, err
	}
	return jsonrpc.Parse([]byte(c.responses[method]))
}

func TestRun_SyncsState(t *testing.T) {
	caller := newScriptedCaller()
	store := printer.NewStore(0)
	b := New(caller, store, 0)

	require.NoError(t, b.Run(context.Background()))
	assert.Equal(t, PhaseSynced, b.Phase())

	assert.Equal(t, []string{
		"printer.objects.list", "printer.info", "printer.objects.subscribe", "server.gcode_store",
	}, caller.calls)

	objects := caller.params["printer.objects.subscribe"]["objects"].(map[string]any)
	assert.Contains(t, objects, "toolhead")
	assert.Contains(t, objects, "print_stats")
	assert.Contains(t, objects, "gcode_move")
	assert.Contains(t, objects, "heater_bed")
	assert.Contains(t, objects, "extruder")
	assert.Contains(t, objects, "temperature_sensor chamber")
	assert.Contains(t, objects, "heater_fan hotend_fan")
	assert.NotContains(t, objects, "fan")
	assert.NotContains(t, objects, "gcode_macro PRINT_START")
	assert.Nil(t, objects["toolhead"])

	assert.Equal(t, map[string]any{"count": DefaultHistoryCount}, caller.params["server.gcode_store"])

	state, msg := store.KlippyState()
	assert.Equal(t, printer.KlippyReady, state)
	assert.Equal(t, "Printer is ready", msg)

	snap := store.Snapshot()
	assert.Equal(t, 24.0, snap.HeaterBed.Temperature)
	require.Len(t, snap.Extruders, 1)
	assert.Equal(t, 25.3, snap.Extruders[0].Temperature)
	assert.Equal(t, printer.JobStandby, snap.PrintStats.State)
	assert.Equal(t, []string{"PRINT_START"}, snap.Macros)

	require.Len(t, snap.GCodes, 2)
	assert.Equal(t, "G28", snap.GCodes[0].Message)
	assert.Equal(t, printer.GCodeCommand, snap.GCodes[0].Type)
	assert.Equal(t, 1700000000.5, snap.GCodes[0].Time)
}

func TestRun_TwiceDoesNotDuplicateRecords(t *testing.T) {
	store := printer.NewStore(0)
	b := New(newScriptedCaller(), store, 0)

	require.NoError(t, b.Run(context.Background()))
	first := store.Snapshot()
	require.NoError(t, b.Run(context.Background()))
	second := store.Snapshot()

	assert.Len(t, second.Extruders, len(first.Extruders))
	assert.Len(t, second.TemperatureSensors, len(first.TemperatureSensors))
	assert.Len(t, second.HeaterFans, len(first.HeaterFans))
	assert.Len(t, second.Macros, len(first.Macros))
	assert.Equal(t, first.Objects, second.Objects)
	assert.Len(t, second.GCodes, 2, "history is replaced, not appended")
}

func TestRun_FailureReturnsToIdle(t *testing.T) {
	caller := newScriptedCaller()
	caller.failures["printer.objects.subscribe"] = errors.New("Klippy host not connected")
	store := printer.NewStore(0)
	b := New(caller, store, 0)

	err := b.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "subscribe")
	assert.Equal(t, PhaseIdle, b.Phase())
	assert.NotContains(t, caller.calls, "server.gcode_store")

	// Discovery already happened and is kept.
	assert.True(t, store.HasObject("extruder"))

	delete(caller.failures, "printer.objects.subscribe")
	require.NoError(t, b.Run(context.Background()))
	assert.Len(t, store.Snapshot().Extruders, 1)
}

func TestRun_MalformedObjectList(t *testing.T) {
	caller := newScriptedCaller()
	caller.responses["printer.objects.list"] = `{"objects": "toolhead"}`
	b := New(caller, printer.NewStore(0), 0)

	assert.Error(t, b.Run(context.Background()))
}

func TestSubscriptionSet(t *testing.T) {
	set := SubscriptionSet([]string{"fan", "display_status", "extruder1", "temperature_fan mcu", "gcode_macro X", "webhooks"})
	assert.Equal(t, []string{
		"toolhead", "print_stats", "gcode_move",
		"fan", "display_status",
		"extruder1", "temperature_fan mcu",
	}, set)
}
