// Package dispatch classifies inbound frames and routes them to the call
// correlator or the printer state.
package dispatch

import (
	"sync"

	"github.com/rs/zerolog/log"
	"github.com/urmzd/moonctl/pkg/jsonrpc"
	"github.com/urmzd/moonctl/pkg/metrics"
	"github.com/urmzd/moonctl/pkg/printer"
)

// Notification methods routed by default.
const (
	MethodKlippyReady        = "notify_klippy_ready"
	MethodKlippyShutdown     = "notify_klippy_shutdown"
	MethodKlippyDisconnected = "notify_klippy_disconnected"
	MethodStatusUpdate       = "notify_status_update"
	MethodGCodeResponse      = "notify_gcode_response"
)

// Correlator completes pending calls.
type Correlator interface {
	Resolve(id int64, result jsonrpc.Value) bool
	Reject(id int64, code int, message string) bool
}

// StateSink receives the notifications that change printer state.
type StateSink interface {
	MergeStatus(status map[string]jsonrpc.Value)
	RecordResponse(line string) printer.GCodeEntry
	SetKlippyState(state printer.KlippyState, message string)
}

// HandlerFunc handles the params of one notification method.
type HandlerFunc func(params jsonrpc.Value)

// Dispatcher routes inbound frames. Dispatch never blocks on callers and
// never returns an error: frames it cannot use are logged and dropped.
type Dispatcher struct {
	correlator Correlator
	state      StateSink

	mu            sync.RWMutex
	handlers      map[string]HandlerFunc
	onKlippyState func(printer.KlippyState)
}

// New creates a Dispatcher with the default notification routes installed.
func New(correlator Correlator, state StateSink) *Dispatcher {
	d := &Dispatcher{
		correlator: correlator,
		state:      state,
		handlers:   make(map[string]HandlerFunc),
	}

	d.handlers[MethodKlippyReady] = d.klippyHandler(printer.KlippyReady)
	d.handlers[MethodKlippyShutdown] = d.klippyHandler(printer.KlippyShutdown)
	d.handlers[MethodKlippyDisconnected] = d.klippyHandler(printer.KlippyDisconnected)
	d.handlers[MethodStatusUpdate] = d.handleStatusUpdate
	d.handlers[MethodGCodeResponse] = d.handleGCodeResponse

	return d
}

// OnKlippyState registers a hook run after a notify_klippy_* notification has
// been applied. The hook runs on the dispatch goroutine and must not block.
func (d *Dispatcher) OnKlippyState(fn func(printer.KlippyState)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.onKlippyState = fn
}

// Handle registers fn for a notification method, chaining after any existing
// handler for that method.
func (d *Dispatcher) Handle(method string, fn HandlerFunc) {
	d.mu.Lock()
	defer d.mu.Unlock()

	prev, ok := d.handlers[method]
	if !ok {
		d.handlers[method] = fn
		return
	}
	d.handlers[method] = func(params jsonrpc.Value) {
		prev(params)
		fn(params)
	}
}

// Dispatch handles one inbound frame and reports how it was classified.
func (d *Dispatcher) Dispatch(raw []byte) jsonrpc.Kind {
	env, err := jsonrpc.Decode(raw)
	if err != nil {
		metrics.Frames.WithLabelValues(jsonrpc.KindInvalid.String()).Inc()
		log.Warn().Err(err).Int("bytes", len(raw)).Msg("Dropping inbound frame")
		return jsonrpc.KindInvalid
	}
	metrics.Frames.WithLabelValues(env.Kind.String()).Inc()

	switch env.Kind {
	case jsonrpc.KindResponse:
		d.correlator.Resolve(env.ID, env.Result)

	case jsonrpc.KindError:
		d.correlator.Reject(env.ID, env.Error.Code, env.Error.Message)

	case jsonrpc.KindNotification:
		metrics.Notifications.WithLabelValues(env.Method).Inc()

		d.mu.RLock()
		handler, ok := d.handlers[env.Method]
		d.mu.RUnlock()

		if !ok {
			log.Debug().Str("method", env.Method).Msg("Ignoring notification")
			break
		}
		handler(env.Params)
	}

	return env.Kind
}

func (d *Dispatcher) klippyHandler(state printer.KlippyState) HandlerFunc {
	return func(jsonrpc.Value) {
		log.Info().Str("state", state.String()).Msg("Klippy state changed")
		d.state.SetKlippyState(state, "")

		d.mu.RLock()
		hook := d.onKlippyState
		d.mu.RUnlock()
		if hook != nil {
			hook(state)
		}
	}
}

// handleStatusUpdate expects params of the form [{object: {field: value}}, eventtime].
func (d *Dispatcher) handleStatusUpdate(params jsonrpc.Value) {
	first, ok := params.Index(0)
	if !ok {
		log.Warn().Str("params", params.Type().String()).Msg("Status update without payload")
		return
	}
	status, ok := first.AsObject()
	if !ok {
		log.Warn().Str("payload", first.Type().String()).Msg("Status update payload is not an object")
		return
	}
	d.state.MergeStatus(status)
}

// handleGCodeResponse appends every line in params to the message log.
func (d *Dispatcher) handleGCodeResponse(params jsonrpc.Value) {
	lines, ok := params.AsArray()
	if !ok {
		log.Warn().Str("params", params.Type().String()).Msg("GCode response params are not a list")
		return
	}
	for _, item := range lines {
		if line, ok := item.AsString(); ok {
			d.state.RecordResponse(line)
		}
	}
}
