package dispatch

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urmzd/moonctl/pkg/jsonrpc"
	"github.com/urmzd/moonctl/pkg/printer"
)

type fakeCorrelator struct {
	mu       sync.Mutex
	resolved map[int64]jsonrpc.Value
	rejected map[int64]jsonrpc.RemoteError
}

func newFakeCorrelator() *fakeCorrelator {
	return &fakeCorrelator{
		resolved: make(map[int64]jsonrpc.Value),
		rejected: make(map[int64]jsonrpc.RemoteError),
	}
}

func (f *fakeCorrelator) Resolve(id int64, result jsonrpc.Value) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resolved[id] = result
	return true
}

func (f *fakeCorrelator) Reject(id int64, code int, message string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rejected[id] = jsonrpc.RemoteError{Code: code, Message: message}
	return true
}

func (f *fakeCorrelator) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.resolved) + len(f.rejected)
}

func setup() (*Dispatcher, *fakeCorrelator, *printer.Store) {
	corr := newFakeCorrelator()
	store := printer.NewStore(0)
	return New(corr, store), corr, store
}

func TestDispatch_Response(t *testing.T) {
	d, corr, _ := setup()

	kind := d.Dispatch([]byte(`{"jsonrpc":"2.0","result":"ok","id":17}`))
	assert.Equal(t, jsonrpc.KindResponse, kind)

	v, ok := corr.resolved[17]
	require.True(t, ok)
	s, _ := v.AsString()
	assert.Equal(t, "ok", s)
}

func TestDispatch_Error(t *testing.T) {
	d, corr, _ := setup()

	kind := d.Dispatch([]byte(`{"jsonrpc":"2.0","error":{"code":-32601,"message":"Method not found"},"id":4}`))
	assert.Equal(t, jsonrpc.KindError, kind)
	assert.Equal(t, jsonrpc.RemoteError{Code: -32601, Message: "Method not found"}, corr.rejected[4])
}

func TestDispatch_StatusUpdate(t *testing.T) {
	d, _, store := setup()

	d.Dispatch([]byte(`{"jsonrpc":"2.0","method":"notify_status_update","params":[{"heater_bed":{"temperature":61}},5123.4]}`))
	d.Dispatch([]byte(`{"jsonrpc":"2.0","method":"notify_status_update","params":[{"heater_bed":{"target":70},"toolhead":{"homed_axes":"xy"}},5123.9]}`))

	bed := store.HeaterBed()
	assert.Equal(t, 61.0, bed.Temperature)
	assert.Equal(t, 70.0, bed.Target)
	assert.Equal(t, printer.HomedAxes{X: true, Y: true}, store.Toolhead().HomedAxes)
}

func TestDispatch_StatusUpdateBadPayload(t *testing.T) {
	d, _, store := setup()

	assert.NotPanics(t, func() {
		d.Dispatch([]byte(`{"jsonrpc":"2.0","method":"notify_status_update","params":["nope"]}`))
		d.Dispatch([]byte(`{"jsonrpc":"2.0","method":"notify_status_update","params":[]}`))
		d.Dispatch([]byte(`{"jsonrpc":"2.0","method":"notify_status_update"}`))
	})
	assert.Equal(t, printer.Heater{}, store.HeaterBed())
}

func TestDispatch_GCodeResponse(t *testing.T) {
	d, _, store := setup()

	d.Dispatch([]byte(`{"jsonrpc":"2.0","method":"notify_gcode_response","params":["// Bed mesh state has been saved"]}`))

	log := store.GCodes(0)
	require.Len(t, log, 1)
	assert.Equal(t, "// Bed mesh state has been saved", log[0].Message)
	assert.Equal(t, printer.GCodeResponse, log[0].Type)
}

func TestDispatch_KlippyStateTriggersHook(t *testing.T) {
	d, _, store := setup()

	var seen []printer.KlippyState
	d.OnKlippyState(func(s printer.KlippyState) { seen = append(seen, s) })

	d.Dispatch([]byte(`{"jsonrpc":"2.0","method":"notify_klippy_shutdown"}`))
	d.Dispatch([]byte(`{"jsonrpc":"2.0","method":"notify_klippy_ready"}`))
	d.Dispatch([]byte(`{"jsonrpc":"2.0","method":"notify_klippy_disconnected"}`))

	assert.Equal(t, []printer.KlippyState{printer.KlippyShutdown, printer.KlippyReady, printer.KlippyDisconnected}, seen)
	state, _ := store.KlippyState()
	assert.Equal(t, printer.KlippyDisconnected, state)
}

func TestDispatch_MalformedFramesResolveNothing(t *testing.T) {
	d, corr, _ := setup()

	frames := []string{
		`{"jsonrpc":"2.0","result":{"objects":["toolhe`,
		`not json at all`,
		``,
		`[1,2,3]`,
		`{"jsonrpc":"2.0","id":1}`,
		`{"jsonrpc":"2.0","method":"server.ping","id":5}`,
		`{"jsonrpc":"2.0","result":1,"id":"1"}`,
	}
	for _, f := range frames {
		assert.NotPanics(t, func() {
			assert.Equal(t, jsonrpc.KindInvalid, d.Dispatch([]byte(f)), f)
		})
	}
	assert.Equal(t, 0, corr.calls())
}

func TestDispatch_UnknownNotificationIgnored(t *testing.T) {
	d, corr, _ := setup()

	kind := d.Dispatch([]byte(`{"jsonrpc":"2.0","method":"notify_proc_stat_update","params":[{}]}`))
	assert.Equal(t, jsonrpc.KindNotification, kind)
	assert.Equal(t, 0, corr.calls())
}

func TestHandle_ChainsAfterDefault(t *testing.T) {
	d, _, store := setup()

	var lines []string
	d.Handle(MethodGCodeResponse, func(params jsonrpc.Value) {
		first, _ := params.Index(0)
		s, _ := first.AsString()
		lines = append(lines, s)
	})

	d.Dispatch([]byte(`{"jsonrpc":"2.0","method":"notify_gcode_response","params":["ok"]}`))

	assert.Equal(t, []string{"ok"}, lines)
	assert.Len(t, store.GCodes(0), 1)
}
