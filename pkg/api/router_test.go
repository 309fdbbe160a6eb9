package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/urmzd/moonctl/pkg/api/types"
	"github.com/urmzd/moonctl/pkg/device"
	"github.com/urmzd/moonctl/pkg/device/schema"
	"github.com/urmzd/moonctl/pkg/discovery"
	"github.com/urmzd/moonctl/pkg/jsonrpc"
	"github.com/urmzd/moonctl/pkg/printer"
)

// fakeController records commands and answers with canned errors.
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
func (f *fakeController) IsConnected() bool                       { return f.state != device.StateDisconnected }
func (f *fakeController) Snapshot() printer.Snapshot              { return f.snap }
func (f *fakeController) GCodes(limit int) []printer.GCodeEntry   { return f.snap.GCodes }

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

func (f *fakeController) EmergencyStop(context.Context) error {
	return f.record("estop")
}

func (f *fakeController) RunMacro(_ context.Context, name string) error {
	return f.record("macro %s", name)
}

type fakeScanner struct{ hosts []discovery.Host }

func (s fakeScanner) Scan(context.Context, time.Duration) ([]discovery.Host, error) {
	return s.hosts, nil
}

type fakeHistory struct{}

func (fakeHistory) Recent(context.Context, int) ([]printer.GCodeEntry, error) {
	return []printer.GCodeEntry{{Message: "from disk"}}, nil
}

func newTestRouter(ctrl *fakeController) http.Handler {
	return NewRouter(ctrl, device.NewNullEventSubscriber(), schema.NewValidator(),
		WithScanner(fakeScanner{hosts: []discovery.Host{{Instance: "voron", Port: 7125}}}),
		WithHistory(fakeHistory{}),
	).Handler()
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestHealth(t *testing.T) {
	ctrl := &fakeController{state: device.StateReady}
	h := newTestRouter(ctrl)

	w := do(t, h, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, w.Code)
	var resp types.HealthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "healthy", resp.Status)
	assert.Equal(t, "ready", resp.Connection)

	ctrl.state = device.StateDegraded
	w = do(t, h, http.MethodGet, "/api/v1/health", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	w := do(t, newTestRouter(&fakeController{}), http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "moonctl_")
}

func TestGetPrinterAndObjects(t *testing.T) {
	ctrl := &fakeController{
		state: device.StateReady,
		snap:  printer.Snapshot{Klippy: printer.KlippyReady, Objects: []string{"toolhead", "webhooks"}},
	}
	h := newTestRouter(ctrl)

	w := do(t, h, http.MethodGet, "/api/v1/printer", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"connection":"ready"`)

	w = do(t, h, http.MethodGet, "/api/v1/printer/objects", "")
	var objects types.ObjectsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &objects))
	assert.Equal(t, 2, objects.Count)

	w = do(t, h, http.MethodGet, "/api/v1/printer/gcodes?persisted=true", "")
	assert.Contains(t, w.Body.String(), "from disk")

	w = do(t, h, http.MethodGet, "/api/v1/printer/gcodes?limit=-1", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestControl_ValidatesBeforeCalling(t *testing.T) {
	ctrl := &fakeController{state: device.StateReady}
	h := newTestRouter(ctrl)

	w := do(t, h, http.MethodPost, "/api/v1/printer/move", `{"axis":"e","position":1,"speed":10}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = do(t, h, http.MethodPost, "/api/v1/printer/temperature", `{"heater":"extruder"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = do(t, h, http.MethodPost, "/api/v1/printer/gcode", `not json`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Empty(t, ctrl.calls)

	w = do(t, h, http.MethodPost, "/api/v1/printer/move", `{"axis":"x","distance":-5,"speed":10}`)
	assert.Equal(t, http.StatusOK, w.Code)
	w = do(t, h, http.MethodPost, "/api/v1/printer/home", ``)
	assert.Equal(t, http.StatusOK, w.Code)
	w = do(t, h, http.MethodPost, "/api/v1/printer/macros/PRIME_LINE", ``)
	assert.Equal(t, http.StatusOK, w.Code)

	assert.Equal(t, []string{"move_rel x -5 10", "home []", "macro PRIME_LINE"}, ctrl.calls)
}

func TestControl_ErrorMapping(t *testing.T) {
	tests := []struct {
		err  error
		code int
	}{
		{fmt.Errorf("%w: axis x is not homed", device.ErrPrecondition), http.StatusConflict},
		{fmt.Errorf("%w: %q", device.ErrUnknownHeater, "chamber"), http.StatusNotFound},
		{device.ErrNotConnected, http.StatusServiceUnavailable},
		{fmt.Errorf("%w: call", device.ErrTimeout), http.StatusGatewayTimeout},
		{&jsonrpc.RemoteError{Code: 400, Message: "Must home axis first"}, http.StatusBadGateway},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			ctrl := &fakeController{state: device.StateReady, err: tt.err}
			w := do(t, newTestRouter(ctrl), http.MethodPost, "/api/v1/printer/temperature", `{"heater":"chamber","target":40}`)
			assert.Equal(t, tt.code, w.Code)
		})
	}
}

func TestEmergencyStopAndRPC(t *testing.T) {
	ctrl := &fakeController{state: device.StateReady, result: jsonrpc.String("ok")}
	h := newTestRouter(ctrl)

	w := do(t, h, http.MethodPost, "/api/v1/printer/emergency_stop", "")
	assert.Equal(t, http.StatusOK, w.Code)

	w = do(t, h, http.MethodPost, "/api/v1/rpc", `{"method":"server.info"}`)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"method":"server.info","result":"ok"}`, w.Body.String())

	w = do(t, h, http.MethodPost, "/api/v1/rpc", `{"method":"nope"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	assert.Equal(t, []string{"estop", "call server.info map[]"}, ctrl.calls)
}

func TestNullControllerIsUnavailable(t *testing.T) {
	h := NewRouter(device.NewNullController(), device.NewNullEventSubscriber(), schema.NewValidator()).Handler()
	w := do(t, h, http.MethodPost, "/api/v1/printer/gcode", `{"script":"G28"}`)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	w = do(t, h, http.MethodGet, "/api/v1/discovery", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestDiscovery(t *testing.T) {
	h := newTestRouter(&fakeController{})
	w := do(t, h, http.MethodGet, "/api/v1/discovery?seconds=1", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "voron")

	w = do(t, h, http.MethodGet, "/api/v1/discovery?seconds=99", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
