package printer

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// KlippyState is the firmware host state reported by printer.info and the
// notify_klippy_* notifications.
type KlippyState int

const (
	KlippyUnknown KlippyState = iota
	KlippyStartup
	KlippyReady
	KlippyShutdown
	KlippyError
	KlippyDisconnected
)

var klippyStateNames = map[KlippyState]string{
	KlippyUnknown:      "unknown",
	KlippyStartup:      "startup",
	KlippyReady:        "ready",
	KlippyShutdown:     "shutdown",
	KlippyError:        "error",
	KlippyDisconnected: "disconnected",
}

// ParseKlippyState maps a state string; unrecognized strings are KlippyUnknown.
func ParseKlippyState(s string) KlippyState {
	for state, name := range klippyStateNames {
		if name == strings.ToLower(s) {
			return state
		}
	}
	return KlippyUnknown
}

func (s KlippyState) String() string {
	if name, ok := klippyStateNames[s]; ok {
		return name
	}
	return "unknown"
}

func (s KlippyState) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

func (s *KlippyState) UnmarshalText(b []byte) error {
	*s = ParseKlippyState(string(b))
	return nil
}

// JobStatus is the decoded print_stats.state.
type JobStatus int

const (
	JobUnknown JobStatus = iota
	JobStandby
	JobPrinting
	JobPaused
	JobComplete
	JobCancelled
	JobError
)

var jobStatusNames = map[JobStatus]string{
	JobUnknown:   "unknown",
	JobStandby:   "standby",
	JobPrinting:  "printing",
	JobPaused:    "paused",
	JobComplete:  "complete",
	JobCancelled: "cancelled",
	JobError:     "error",
}

// ParseJobStatus maps print_stats.state. Strings outside the known set decode
// to JobUnknown rather than failing.
func ParseJobStatus(s string) JobStatus {
	for status, name := range jobStatusNames {
		if name == s {
			return status
		}
	}
	return JobUnknown
}

func (s JobStatus) String() string {
	if name, ok := jobStatusNames[s]; ok {
		return name
	}
	return "unknown"
}

func (s JobStatus) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

func (s *JobStatus) UnmarshalText(b []byte) error {
	*s = ParseJobStatus(string(b))
	return nil
}

// HomedAxes records which axes the toolhead has homed.
type HomedAxes struct {
	X bool `json:"x"`
	Y bool `json:"y"`
	Z bool `json:"z"`
}

// ParseHomedAxes decodes a homed_axes string such as "xyz" or "xy". Axes
// missing from the string are not homed.
func ParseHomedAxes(s string) HomedAxes {
	s = strings.ToLower(s)
	return HomedAxes{
		X: strings.ContainsRune(s, 'x'),
		Y: strings.ContainsRune(s, 'y'),
		Z: strings.ContainsRune(s, 'z'),
	}
}

// Has reports whether axis (x, y or z, any case) is homed.
func (h HomedAxes) Has(axis string) bool {
	switch strings.ToLower(axis) {
	case "x":
		return h.X
	case "y":
		return h.Y
	case "z":
		return h.Z
	default:
		return false
	}
}

func (h HomedAxes) String() string {
	var b strings.Builder
	if h.X {
		b.WriteByte('x')
	}
	if h.Y {
		b.WriteByte('y')
	}
	if h.Z {
		b.WriteByte('z')
	}
	return b.String()
}

// Heater is the state of the heated bed.
type Heater struct {
	Temperature float64 `json:"temperature"`
	Target      float64 `json:"target"`
	Power       float64 `json:"power"`
}

// Extruder is one extruder object (extruder, extruder1, ...).
type Extruder struct {
	Name            string  `json:"name"`
	Temperature     float64 `json:"temperature"`
	Target          float64 `json:"target"`
	Power           float64 `json:"power"`
	CanExtrude      bool    `json:"can_extrude"`
	PressureAdvance float64 `json:"pressure_advance"`
	SmoothTime      float64 `json:"smooth_time"`
}

type TemperatureSensor struct {
	Name            string  `json:"name"`
	Temperature     float64 `json:"temperature"`
	MeasuredMinTemp float64 `json:"measured_min_temp"`
	MeasuredMaxTemp float64 `json:"measured_max_temp"`
}

type TemperatureFan struct {
	Name        string  `json:"name"`
	Speed       float64 `json:"speed"`
	Temperature float64 `json:"temperature"`
	Target      float64 `json:"target"`
}

// HeaterFan reports RPM only when the fan has a tachometer.
type HeaterFan struct {
	Name  string   `json:"name"`
	Speed float64  `json:"speed"`
	RPM   *float64 `json:"rpm"`
}

// Fan is the part cooling fan.
type Fan struct {
	Speed float64  `json:"speed"`
	RPM   *float64 `json:"rpm"`
}

type Toolhead struct {
	Extruder             string    `json:"extruder"`
	Position             []float64 `json:"position"`
	MaxVelocity          float64   `json:"max_velocity"`
	MaxAccel             float64   `json:"max_accel"`
	MaxAccelToDecel      float64   `json:"max_accel_to_decel"`
	SquareCornerVelocity float64   `json:"square_corner_velocity"`
	HomedAxes            HomedAxes `json:"homed_axes"`
}

// PrintInfo carries the optional layer counters of print_stats.info.
type PrintInfo struct {
	TotalLayer   *int `json:"total_layer"`
	CurrentLayer *int `json:"current_layer"`
}

type PrintStats struct {
	Filename      string    `json:"filename"`
	TotalDuration float64   `json:"total_duration"`
	PrintDuration float64   `json:"print_duration"`
	FilamentUsed  float64   `json:"filament_used"`
	State         JobStatus `json:"state"`
	Message       string    `json:"message"`
	Info          PrintInfo `json:"info"`
}

// GCodeMove holds the motion parameters of the gcode_move object.
type GCodeMove struct {
	SpeedFactor         float64   `json:"speed_factor"`
	Speed               float64   `json:"speed"`
	ExtrudeFactor       float64   `json:"extrude_factor"`
	AbsoluteCoordinates bool      `json:"absolute_coordinates"`
	AbsoluteExtrude     bool      `json:"absolute_extrude"`
	HomingOrigin        []float64 `json:"homing_origin"`
	Position            []float64 `json:"position"`
	GCodePosition       []float64 `json:"gcode_position"`
}

type DisplayStatus struct {
	Progress float64 `json:"progress"`
	Message  string  `json:"message"`
}

// GCodeType distinguishes scripts sent by a client from console output.
type GCodeType int

const (
	GCodeResponse GCodeType = iota
	GCodeCommand
)

// ParseGCodeType maps the gcode_store type field.
func ParseGCodeType(s string) GCodeType {
	if s == "command" {
		return GCodeCommand
	}
	return GCodeResponse
}

func (t GCodeType) String() string {
	if t == GCodeCommand {
		return "command"
	}
	return "response"
}

func (t GCodeType) MarshalText() ([]byte, error) { return []byte(t.String()), nil }

func (t *GCodeType) UnmarshalText(b []byte) error {
	*t = ParseGCodeType(string(b))
	return nil
}

// GCodeEntry is one line of the recent message log.
type GCodeEntry struct {
	ID      uuid.UUID `json:"id"`
	Message string    `json:"message"`
	Time    float64   `json:"time"`
	Type    GCodeType `json:"type"`
}

// NewGCodeEntry stamps a log line with a fresh id and the current time.
func NewGCodeEntry(message string, typ GCodeType) GCodeEntry {
	return GCodeEntry{
		ID:      uuid.New(),
		Message: message,
		Time:    float64(time.Now().UnixNano()) / 1e9,
		Type:    typ,
	}
}

// Snapshot is a deep copy of the device state, safe to hold and marshal.
type Snapshot struct {
	Klippy             KlippyState         `json:"klippy_state"`
	StateMessage       string              `json:"state_message"`
	HeaterBed          Heater              `json:"heater_bed"`
	Extruders          []Extruder          `json:"extruders"`
	Fan                Fan                 `json:"fan"`
	Toolhead           Toolhead            `json:"toolhead"`
	PrintStats         PrintStats          `json:"print_stats"`
	GCodeMove          GCodeMove           `json:"gcode_move"`
	Display            DisplayStatus       `json:"display_status"`
	TemperatureSensors []TemperatureSensor `json:"temperature_sensors"`
	TemperatureFans    []TemperatureFan    `json:"temperature_fans"`
	HeaterFans         []HeaterFan         `json:"heater_fans"`
	Macros             []string            `json:"macros"`
	GCodes             []GCodeEntry        `json:"gcodes"`
	Objects            []string            `json:"objects"`
}

// EventType names a change observed by the Store.
type EventType string

const (
	EventStatusUpdate      EventType = "status_update"
	EventKlippyState       EventType = "klippy_state"
	EventGCode             EventType = "gcode"
	EventGCodeHistory      EventType = "gcode_history"
	EventObjectsDiscovered EventType = "objects_discovered"
)

// Event tells observers which part of the state changed. Observers read the
// new values with Snapshot or the accessors.
type Event struct {
	Type      EventType   `json:"type"`
	Objects   []string    `json:"objects,omitempty"`
	Klippy    string      `json:"klippy_state,omitempty"`
	GCode     *GCodeEntry `json:"gcode,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}
