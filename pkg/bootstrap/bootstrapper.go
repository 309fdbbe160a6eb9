// Package bootstrap brings a fresh connection to a synced state: it discovers
// the printer objects, subscribes to them and loads the gcode history.
package bootstrap

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"
	"github.com/urmzd/moonctl/pkg/jsonrpc"
	"github.com/urmzd/moonctl/pkg/metrics"
	"github.com/urmzd/moonctl/pkg/printer"
)

// DefaultHistoryCount is the number of gcode log entries requested.
const DefaultHistoryCount = 100

// Phase is the progress of a bootstrap run.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseDiscovering
	PhaseSubscribing
	PhaseSynced
)

func (p Phase) String() string {
	switch p {
	case PhaseDiscovering:
		return "discovering"
	case PhaseSubscribing:
		return "subscribing"
	case PhaseSynced:
		return "synced"
	default:
		return "idle"
	}
}

// Caller issues RPC calls.
type Caller interface {
	Call(ctx context.Context, method string, params map[string]any) (jsonrpc.Value, error)
}

// coreObjects are subscribed on every printer.
var coreObjects = []string{"toolhead", "print_stats", "gcode_move"}

// optionalObjects are subscribed only when discovery found them.
var optionalObjects = []string{"heater_bed", "fan", "display_status"}

// Bootstrapper runs the discovery and subscription sequence. Runs are
// serialized; a run started while another is active waits for it.
type Bootstrapper struct {
	caller       Caller
	store        *printer.Store
	historyCount int

	runMu sync.Mutex

	mu    sync.RWMutex
	phase Phase
}

// New creates a Bootstrapper. historyCount <= 0 uses DefaultHistoryCount.
func New(caller Caller, store *printer.Store, historyCount int) *Bootstrapper {
	if historyCount <= 0 {
		historyCount = DefaultHistoryCount
	}
	return &Bootstrapper{
		caller:       caller,
		store:        store,
		historyCount: historyCount,
	}
}

// Phase returns the current phase.
func (b *Bootstrapper) Phase() Phase {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.phase
}

func (b *Bootstrapper) setPhase(p Phase) {
	b.mu.Lock()
	b.phase = p
	b.mu.Unlock()
	log.Debug().Str("phase", p.String()).Msg("Bootstrap phase")
}

// Run performs one full bootstrap. On failure the phase returns to idle and
// the error is returned; the state merged so far is kept.
func (b *Bootstrapper) Run(ctx context.Context) error {
	b.runMu.Lock()
	defer b.runMu.Unlock()

	if err := b.run(ctx); err != nil {
		b.setPhase(PhaseIdle)
		metrics.Bootstraps.WithLabelValues("failed").Inc()
		return err
	}
	metrics.Bootstraps.WithLabelValues("synced").Inc()
	return nil
}

func (b *Bootstrapper) run(ctx context.Context) error {
	b.setPhase(PhaseDiscovering)
	if err := b.discover(ctx); err != nil {
		return err
	}
	if err := b.fetchInfo(ctx); err != nil {
		return err
	}

	b.setPhase(PhaseSubscribing)
	if err := b.subscribe(ctx); err != nil {
		return err
	}
	if err := b.fetchHistory(ctx); err != nil {
		return err
	}

	b.setPhase(PhaseSynced)
	log.Info().Int("objects", len(b.store.Catalog())).Msg("Printer state synced")
	return nil
}

func (b *Bootstrapper) discover(ctx context.Context) error {
	result, err := b.caller.Call(ctx, "printer.objects.list", nil)
	if err != nil {
		return fmt.Errorf("list objects: %w", err)
	}

	list, ok := result.Get("objects")
	if !ok {
		return fmt.Errorf("list objects: result has no objects")
	}
	items, ok := list.AsArray()
	if !ok {
		return fmt.Errorf("list objects: objects is a %s", list.Type())
	}

	names := make([]string, 0, len(items))
	for _, item := range items {
		if name, ok := item.AsString(); ok {
			names = append(names, name)
		}
	}
	added := b.store.Discover(names)
	log.Debug().Int("listed", len(names)).Int("added", added).Msg("Objects listed")
	return nil
}

func (b *Bootstrapper) fetchInfo(ctx context.Context) error {
	result, err := b.caller.Call(ctx, "printer.info", nil)
	if err != nil {
		return fmt.Errorf("printer info: %w", err)
	}

	var state, message string
	if v, ok := result.Get("state"); ok {
		state, _ = v.AsString()
	}
	if v, ok := result.Get("state_message"); ok {
		message, _ = v.AsString()
	}
	b.store.SetKlippyState(printer.ParseKlippyState(state), message)
	return nil
}

// SubscriptionSet returns the objects a bootstrap subscribes to given the
// discovered catalog.
func SubscriptionSet(catalog []string) []string {
	known := make(map[string]bool, len(catalog))
	for _, name := range catalog {
		known[name] = true
	}

	set := append([]string(nil), coreObjects...)
	for _, name := range optionalObjects {
		if known[name] {
			set = append(set, name)
		}
	}
	for _, name := range catalog {
		ref, err := printer.ParseObjectName(name)
		if err != nil || !ref.Kind.Multi() || ref.Kind == printer.ObjectGCodeMacro {
			continue
		}
		set = append(set, name)
	}
	return set
}

func (b *Bootstrapper) subscribe(ctx context.Context) error {
	set := SubscriptionSet(b.store.Catalog())
	objects := make(map[string]any, len(set))
	for _, name := range set {
		// null requests every field of the object.
		objects[name] = nil
	}

	mark := b.store.Mark()
	result, err := b.caller.Call(ctx, "printer.objects.subscribe", map[string]any{"objects": objects})
	if err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}

	status, ok := result.Get("status")
	if !ok {
		return fmt.Errorf("subscribe: result has no status")
	}
	fields, ok := status.AsObject()
	if !ok {
		return fmt.Errorf("subscribe: status is a %s", status.Type())
	}
	b.store.MergeSnapshot(fields, mark)
	log.Debug().Int("objects", len(set)).Msg("Subscribed to printer objects")
	return nil
}

func (b *Bootstrapper) fetchHistory(ctx context.Context) error {
	result, err := b.caller.Call(ctx, "server.gcode_store", map[string]any{"count": b.historyCount})
	if err != nil {
		return fmt.Errorf("gcode history: %w", err)
	}

	store, ok := result.Get("gcode_store")
	if !ok {
		return fmt.Errorf("gcode history: result has no gcode_store")
	}
	items, ok := store.AsArray()
	if !ok {
		return fmt.Errorf("gcode history: gcode_store is a %s", store.Type())
	}

	entries := make([]printer.GCodeEntry, 0, len(items))
	for _, item := range items {
		entry, ok := decodeHistoryEntry(item)
		if ok {
			entries = append(entries, entry)
		}
	}
	b.store.SetGCodeHistory(entries)
	return nil
}

func decodeHistoryEntry(v jsonrpc.Value) (printer.GCodeEntry, bool) {
	msgVal, ok := v.Get("message")
	if !ok {
		return printer.GCodeEntry{}, false
	}
	message, ok := msgVal.AsString()
	if !ok {
		return printer.GCodeEntry{}, false
	}

	entry := printer.NewGCodeEntry(message, printer.GCodeResponse)
	if t, ok := v.Get("time"); ok {
		if f, ok := t.AsFloat(); ok {
			entry.Time = f
		}
	}
	if t, ok := v.Get("type"); ok {
		if s, ok := t.AsString(); ok {
			entry.Type = printer.ParseGCodeType(s)
		}
	}
	return entry, true
}
