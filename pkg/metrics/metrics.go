// Package metrics holds the Prometheus collectors for the printer client.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "moonctl"

// Registry is the registry every collector in this package is registered on.
var Registry = prometheus.NewRegistry()

var factory = promauto.With(Registry)

var (
	// RPCCalls counts completed calls by method and outcome
	// (ok, remote_error, timeout, connection_lost, not_connected, encoding_failed, canceled).
	RPCCalls = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "rpc",
		Name:      "calls_total",
		Help:      "Completed JSON-RPC calls by method and outcome.",
	}, []string{"method", "outcome"})

	RPCDuration = factory.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "rpc",
		Name:      "call_duration_seconds",
		Help:      "Time from send to resolution of a JSON-RPC call.",
		Buckets:   prometheus.ExponentialBuckets(0.005, 2, 12),
	}, []string{"method"})

	RPCPending = factory.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "rpc",
		Name:      "pending_calls",
		Help:      "Calls awaiting a response.",
	})

	RPCUnmatched = factory.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "rpc",
		Name:      "unmatched_replies_total",
		Help:      "Responses or errors whose id matched no pending call.",
	})

	// Frames counts inbound frames by classification.
	Frames = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "dispatch",
		Name:      "frames_total",
		Help:      "Inbound frames by kind (response, error, notification, invalid).",
	}, []string{"kind"})

	Notifications = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "dispatch",
		Name:      "notifications_total",
		Help:      "Inbound notifications by method.",
	}, []string{"method"})

	Bootstraps = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "bootstrap",
		Name:      "runs_total",
		Help:      "Subscription bootstrap runs by result.",
	}, []string{"result"})

	EventsDropped = factory.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "printer",
		Name:      "dropped_events_total",
		Help:      "State change events dropped because a subscriber's buffer was full.",
	})

	// ConnectionState mirrors the session connection state as a number
	// (0 disconnected, 1 connecting, 2 ready, 3 degraded).
	ConnectionState = factory.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "connection_state",
		Help:      "Session connection state (0 disconnected, 1 connecting, 2 ready, 3 degraded).",
	})
)

// OtherMethod labels calls to methods outside knownMethods.
const OtherMethod = "other"

var knownMethods = map[string]bool{
	"printer.info":                  true,
	"printer.objects.list":          true,
	"printer.objects.query":         true,
	"printer.objects.subscribe":     true,
	"printer.gcode.script":          true,
	"printer.gcode.help":            true,
	"printer.emergency_stop":        true,
	"printer.restart":               true,
	"printer.firmware_restart":      true,
	"printer.print.start":           true,
	"printer.print.pause":           true,
	"printer.print.resume":          true,
	"printer.print.cancel":          true,
	"printer.query_endstops.status": true,
	"server.info":                   true,
	"server.config":                 true,
	"server.temperature_store":      true,
	"server.gcode_store":            true,
	"server.files.list":             true,
	"server.files.metadata":         true,
	"server.history.list":           true,
	"machine.system_info":           true,
}

// MethodLabel returns method when it is a known Moonraker method and
// OtherMethod otherwise.
func MethodLabel(method string) string {
	if knownMethods[method] {
		return method
	}
	return OtherMethod
}

func init() {
	Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
}

// Handler serves the registry in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{Registry: Registry})
}
