// Package printer holds the live model of a Klipper printer and merges
// partial status updates into it.
package printer

import (
	"slices"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/urmzd/moonctl/pkg/jsonrpc"
	"github.com/urmzd/moonctl/pkg/metrics"
)

// DefaultSubscriberBuffer is the channel capacity used by Subscribe.
const DefaultSubscriberBuffer = 64

// DefaultGCodeLogSize is the number of recent gcode log lines kept when
// NewStore is given zero.
const DefaultGCodeLogSize = 1000

// Store is the single writer of the device state. All mutation goes through
// its methods; readers get copies.
type Store struct {
	mu sync.RWMutex

	klippy       KlippyState
	stateMessage string

	catalog map[string]struct{}
	objects []string

	heaterBed  Heater
	extruders  []*Extruder
	fan        Fan
	toolhead   Toolhead
	printStats PrintStats
	gcodeMove  GCodeMove
	display    DisplayStatus
	sensors    []*TemperatureSensor
	tempFans   []*TemperatureFan
	heaterFans []*HeaterFan
	macros     []string

	gcodes    []GCodeEntry
	maxGCodes int

	// seq numbers notification batches; fieldSeq records the batch that
	// last wrote each "object.field".
	seq      uint64
	fieldSeq map[string]uint64

	subscribers   []*subscriber
	subscribersMu sync.Mutex
}

type subscriber struct {
	ch      chan Event
	dropped uint64
}

// NewStore creates an empty Store keeping at most maxGCodes log lines.
func NewStore(maxGCodes int) *Store {
	if maxGCodes <= 0 {
		maxGCodes = DefaultGCodeLogSize
	}
	return &Store{
		catalog:   make(map[string]struct{}),
		maxGCodes: maxGCodes,
		fieldSeq:  make(map[string]uint64),
	}
}

// Merge applies a partial update for one object as its own notification batch.
func (s *Store) Merge(object string, fields map[string]jsonrpc.Value) {
	s.mu.Lock()
	s.seq++
	applied := s.mergeLocked(object, fields, s.seq, 0, false)
	s.mu.Unlock()

	if applied {
		s.publishEvent(Event{Type: EventStatusUpdate, Objects: []string{object}, Timestamp: time.Now()})
	}
}

// MergeStatus applies one notify_status_update payload: a mapping of object
// name to partial fields. Non-object entries are skipped.
func (s *Store) MergeStatus(status map[string]jsonrpc.Value) {
	s.mu.Lock()
	s.seq++
	updated := s.mergeAllLocked(status, s.seq, 0, false)
	s.mu.Unlock()

	if len(updated) > 0 {
		s.publishEvent(Event{Type: EventStatusUpdate, Objects: updated, Timestamp: time.Now()})
	}
}

// Mark returns the current notification sequence. Take it before requesting
// a status snapshot and pass it to MergeSnapshot.
func (s *Store) Mark() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.seq
}

// MergeSnapshot applies a status snapshot fetched after mark was taken.
// Fields written by a notification newer than mark are left alone, so a
// snapshot that raced with live notifications never rolls them back.
func (s *Store) MergeSnapshot(status map[string]jsonrpc.Value, mark uint64) {
	s.mu.Lock()
	updated := s.mergeAllLocked(status, 0, mark, true)
	s.mu.Unlock()

	if len(updated) > 0 {
		s.publishEvent(Event{Type: EventStatusUpdate, Objects: updated, Timestamp: time.Now()})
	}
}

func (s *Store) mergeAllLocked(status map[string]jsonrpc.Value, seq, mark uint64, snapshot bool) []string {
	var updated []string
	for object, v := range status {
		fields, ok := v.AsObject()
		if !ok {
			log.Debug().Str("object", object).Str("type", v.Type().String()).Msg("Skipping non-object status entry")
			continue
		}
		if s.mergeLocked(object, fields, seq, mark, snapshot) {
			updated = append(updated, object)
		}
	}
	slices.Sort(updated)
	return updated
}

func (s *Store) mergeLocked(object string, fields map[string]jsonrpc.Value, seq, mark uint64, snapshot bool) bool {
	ref, err := ParseObjectName(object)
	if err != nil {
		log.Warn().Err(err).Msg("Skipping status for unparseable object")
		return false
	}
	if ref.Kind == ObjectUnknown || ref.Kind == ObjectGCodeMacro {
		return false
	}

	if snapshot {
		fields = s.freshFields(object, fields, mark)
	} else {
		for key := range fields {
			s.fieldSeq[object+"."+key] = seq
		}
	}
	if len(fields) == 0 {
		return false
	}

	switch ref.Kind {
	case ObjectHeaterBed:
		s.heaterBed.apply(fields)
	case ObjectToolhead:
		s.toolhead.apply(fields)
	case ObjectFan:
		s.fan.apply(fields)
	case ObjectPrintStats:
		s.printStats.apply(fields)
	case ObjectGCodeMove:
		s.gcodeMove.apply(fields)
	case ObjectDisplayStatus:
		s.display.apply(fields)
	case ObjectExtruder:
		s.extruder(ref.Name).apply(fields)
	case ObjectTemperatureSensor:
		s.sensor(ref.Name).apply(fields)
	case ObjectTemperatureFan:
		s.temperatureFan(ref.Name).apply(fields)
	case ObjectHeaterFan:
		s.heaterFan(ref.Name).apply(fields)
	}
	return true
}

// freshFields drops the fields a notification wrote after mark.
func (s *Store) freshFields(object string, fields map[string]jsonrpc.Value, mark uint64) map[string]jsonrpc.Value {
	out := make(map[string]jsonrpc.Value, len(fields))
	for key, v := range fields {
		if s.fieldSeq[object+"."+key] > mark {
			continue
		}
		out[key] = v
	}
	return out
}

// Discover adds object names to the catalog and creates empty records for
// the multi-instance objects among them. Names already known are ignored,
// so repeated discovery never duplicates records. It returns the number of
// names added.
func (s *Store) Discover(names []string) int {
	s.mu.Lock()
	var added []string
	for _, name := range names {
		if _, ok := s.catalog[name]; ok {
			continue
		}
		ref, err := ParseObjectName(name)
		if err != nil {
			log.Warn().Err(err).Msg("Ignoring discovered object")
			continue
		}

		s.catalog[name] = struct{}{}
		s.objects = append(s.objects, name)
		added = append(added, name)

		switch ref.Kind {
		case ObjectExtruder:
			s.extruder(ref.Name)
		case ObjectTemperatureSensor:
			s.sensor(ref.Name)
		case ObjectTemperatureFan:
			s.temperatureFan(ref.Name)
		case ObjectHeaterFan:
			s.heaterFan(ref.Name)
		case ObjectGCodeMacro:
			if !slices.Contains(s.macros, ref.Name) {
				s.macros = append(s.macros, ref.Name)
			}
		}
	}
	s.mu.Unlock()

	if len(added) > 0 {
		log.Debug().Int("added", len(added)).Msg("Objects discovered")
		s.publishEvent(Event{Type: EventObjectsDiscovered, Objects: added, Timestamp: time.Now()})
	}
	return len(added)
}

// The lookups below find a record by name and create it on first use.

func (s *Store) extruder(name string) *Extruder {
	for _, e := range s.extruders {
		if e.Name == name {
			return e
		}
	}
	e := &Extruder{Name: name}
	s.extruders = append(s.extruders, e)
	slices.SortFunc(s.extruders, func(a, b *Extruder) int { return compareExtruders(a.Name, b.Name) })
	return e
}

func (s *Store) sensor(name string) *TemperatureSensor {
	for _, t := range s.sensors {
		if t.Name == name {
			return t
		}
	}
	t := &TemperatureSensor{Name: name}
	s.sensors = append(s.sensors, t)
	return t
}

func (s *Store) temperatureFan(name string) *TemperatureFan {
	for _, f := range s.tempFans {
		if f.Name == name {
			return f
		}
	}
	f := &TemperatureFan{Name: name}
	s.tempFans = append(s.tempFans, f)
	return f
}

func (s *Store) heaterFan(name string) *HeaterFan {
	for _, f := range s.heaterFans {
		if f.Name == name {
			return f
		}
	}
	f := &HeaterFan{Name: name}
	s.heaterFans = append(s.heaterFans, f)
	return f
}

// compareExtruders orders "extruder" before "extruder1" before "extruder10".
func compareExtruders(a, b string) int {
	if len(a) != len(b) {
		return len(a) - len(b)
	}
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// SetKlippyState records the firmware host state.
func (s *Store) SetKlippyState(state KlippyState, message string) {
	s.mu.Lock()
	changed := s.klippy != state || s.stateMessage != message
	s.klippy = state
	s.stateMessage = message
	s.mu.Unlock()

	if changed {
		s.publishEvent(Event{Type: EventKlippyState, Klippy: state.String(), Timestamp: time.Now()})
	}
}

// RecordCommand appends a script sent by this client to the message log.
func (s *Store) RecordCommand(script string) GCodeEntry {
	return s.appendGCode(NewGCodeEntry(script, GCodeCommand))
}

// RecordResponse appends a console line received from the printer.
func (s *Store) RecordResponse(line string) GCodeEntry {
	return s.appendGCode(NewGCodeEntry(line, GCodeResponse))
}

func (s *Store) appendGCode(entry GCodeEntry) GCodeEntry {
	s.mu.Lock()
	s.gcodes = append(s.gcodes, entry)
	if over := len(s.gcodes) - s.maxGCodes; over > 0 {
		s.gcodes = slices.Delete(s.gcodes, 0, over)
	}
	s.mu.Unlock()

	s.publishEvent(Event{Type: EventGCode, GCode: &entry, Timestamp: time.Now()})
	return entry
}

// SetGCodeHistory replaces the message log with history fetched from the server.
func (s *Store) SetGCodeHistory(entries []GCodeEntry) {
	if over := len(entries) - s.maxGCodes; over > 0 {
		entries = entries[over:]
	}

	s.mu.Lock()
	s.gcodes = slices.Clone(entries)
	s.mu.Unlock()

	s.publishEvent(Event{Type: EventGCodeHistory, Timestamp: time.Now()})
}

// Snapshot returns a deep copy of the whole state.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := Snapshot{
		Klippy:       s.klippy,
		StateMessage: s.stateMessage,
		HeaterBed:    s.heaterBed,
		Fan:          copyFan(s.fan),
		Toolhead:     copyToolhead(s.toolhead),
		PrintStats:   copyPrintStats(s.printStats),
		GCodeMove:    copyGCodeMove(s.gcodeMove),
		Display:      s.display,
		Macros:       slices.Clone(s.macros),
		GCodes:       slices.Clone(s.gcodes),
		Objects:      slices.Clone(s.objects),
	}
	for _, e := range s.extruders {
		snap.Extruders = append(snap.Extruders, *e)
	}
	for _, t := range s.sensors {
		snap.TemperatureSensors = append(snap.TemperatureSensors, *t)
	}
	for _, f := range s.tempFans {
		snap.TemperatureFans = append(snap.TemperatureFans, *f)
	}
	for _, f := range s.heaterFans {
		snap.HeaterFans = append(snap.HeaterFans, copyHeaterFan(*f))
	}
	return snap
}

// KlippyState returns the firmware host state and its message.
func (s *Store) KlippyState() (KlippyState, string) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.klippy, s.stateMessage
}

func (s *Store) Toolhead() Toolhead {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return copyToolhead(s.toolhead)
}

func (s *Store) HeaterBed() Heater {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.heaterBed
}

func (s *Store) PrintStats() PrintStats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return copyPrintStats(s.printStats)
}

// Extruder returns the extruder with the given object name.
func (s *Store) Extruder(name string) (Extruder, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, e := range s.extruders {
		if e.Name == name {
			return *e, true
		}
	}
	return Extruder{}, false
}

// ActiveExtruder returns the extruder the toolhead reports as active, falling
// back to "extruder" before the toolhead has reported one.
func (s *Store) ActiveExtruder() (Extruder, bool) {
	s.mu.RLock()
	name := s.toolhead.Extruder
	s.mu.RUnlock()
	if name == "" {
		name = "extruder"
	}
	return s.Extruder(name)
}

// HasObject reports whether name was discovered.
func (s *Store) HasObject(name string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.catalog[name]
	return ok
}

// Catalog returns discovered object names in discovery order.
func (s *Store) Catalog() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.objects)
}

// Heaters returns the names of heaters that accept a target temperature.
func (s *Store) Heaters() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var names []string
	for _, e := range s.extruders {
		names = append(names, e.Name)
	}
	if _, ok := s.catalog["heater_bed"]; ok {
		names = append(names, "heater_bed")
	}
	return names
}

// Macros returns discovered gcode macro names.
func (s *Store) Macros() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.macros)
}

// GCodes returns up to limit of the most recent log lines, oldest first.
// A limit of zero or less returns the whole log.
func (s *Store) GCodes(limit int) []GCodeEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	start := 0
	if limit > 0 && len(s.gcodes) > limit {
		start = len(s.gcodes) - limit
	}
	return slices.Clone(s.gcodes[start:])
}

// Subscribe returns a channel receiving state change events. Slow readers
// miss events rather than stalling the writer.
func (s *Store) Subscribe() chan Event {
	return s.SubscribeBuffered(DefaultSubscriberBuffer)
}

// SubscribeBuffered is Subscribe with a caller chosen channel capacity.
// Events that do not fit are dropped and counted.
func (s *Store) SubscribeBuffered(size int) chan Event {
	if size <= 0 {
		size = DefaultSubscriberBuffer
	}
	ch := make(chan Event, size)
	s.subscribersMu.Lock()
	s.subscribers = append(s.subscribers, &subscriber{ch: ch})
	s.subscribersMu.Unlock()
	return ch
}

// Unsubscribe removes and closes a channel returned by Subscribe.
func (s *Store) Unsubscribe(ch chan Event) {
	s.subscribersMu.Lock()
	defer s.subscribersMu.Unlock()

	for i, sub := range s.subscribers {
		if sub.ch == ch {
			s.subscribers = append(s.subscribers[:i], s.subscribers[i+1:]...)
			close(ch)
			return
		}
	}
}

func (s *Store) publishEvent(evt Event) {
	s.subscribersMu.Lock()
	defer s.subscribersMu.Unlock()

	for _, sub := range s.subscribers {
		select {
		case sub.ch <- evt:
			if sub.dropped > 0 {
				log.Warn().
					Uint64("dropped", sub.dropped).
					Msg("Subscriber caught up after dropping events")
				sub.dropped = 0
			}
		default:
			if sub.dropped == 0 {
				log.Warn().
					Int("buffer", cap(sub.ch)).
					Str("event", string(evt.Type)).
					Msg("Subscriber falling behind, dropping events")
			}
			sub.dropped++
			metrics.EventsDropped.Inc()
		}
	}
}

func copyFan(f Fan) Fan {
	f.RPM = copyFloatPtr(f.RPM)
	return f
}

func copyHeaterFan(f HeaterFan) HeaterFan {
	f.RPM = copyFloatPtr(f.RPM)
	return f
}

func copyToolhead(t Toolhead) Toolhead {
	t.Position = slices.Clone(t.Position)
	return t
}

func copyPrintStats(p PrintStats) PrintStats {
	p.Info.TotalLayer = copyIntPtr(p.Info.TotalLayer)
	p.Info.CurrentLayer = copyIntPtr(p.Info.CurrentLayer)
	return p
}

func copyGCodeMove(g GCodeMove) GCodeMove {
	g.HomingOrigin = slices.Clone(g.HomingOrigin)
	g.Position = slices.Clone(g.Position)
	g.GCodePosition = slices.Clone(g.GCodePosition)
	return g
}

func copyFloatPtr(p *float64) *float64 {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func copyIntPtr(p *int) *int {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
