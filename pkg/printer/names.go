package printer

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidObjectName is returned for multi-instance object names whose
// instance suffix is missing or contains whitespace.
var ErrInvalidObjectName = errors.New("invalid object name")

// ObjectKind classifies a printer object name.
type ObjectKind int

const (
	ObjectUnknown ObjectKind = iota
	ObjectHeaterBed
	ObjectToolhead
	ObjectFan
	ObjectPrintStats
	ObjectGCodeMove
	ObjectDisplayStatus
	ObjectExtruder
	ObjectTemperatureSensor
	ObjectTemperatureFan
	ObjectHeaterFan
	ObjectGCodeMacro
)

// Multi reports whether objects of this kind may appear more than once.
func (k ObjectKind) Multi() bool {
	switch k {
	case ObjectExtruder, ObjectTemperatureSensor, ObjectTemperatureFan, ObjectHeaterFan, ObjectGCodeMacro:
		return true
	default:
		return false
	}
}

var singletons = map[string]ObjectKind{
	"heater_bed":     ObjectHeaterBed,
	"toolhead":       ObjectToolhead,
	"fan":            ObjectFan,
	"print_stats":    ObjectPrintStats,
	"gcode_move":     ObjectGCodeMove,
	"display_status": ObjectDisplayStatus,
}

var prefixed = map[string]ObjectKind{
	"temperature_sensor": ObjectTemperatureSensor,
	"temperature_fan":    ObjectTemperatureFan,
	"heater_fan":         ObjectHeaterFan,
	"gcode_macro":        ObjectGCodeMacro,
}

// ObjectRef is a parsed object name.
type ObjectRef struct {
	Kind ObjectKind
	// Object is the full name as the server knows it.
	Object string
	// Name identifies the instance: the full name for extruders, the suffix
	// for prefixed kinds, empty for singletons.
	Name string
}

// ParseObjectName resolves an object name to its kind. Singletons match
// exactly, extruders match "extruder" and "extruder<N>", and prefixed kinds
// match "<prefix> <name>" with exactly one separating space. Names the client
// does not model come back as ObjectUnknown without error.
func ParseObjectName(name string) (ObjectRef, error) {
	if kind, ok := singletons[name]; ok {
		return ObjectRef{Kind: kind, Object: name}, nil
	}

	if isExtruderName(name) {
		return ObjectRef{Kind: ObjectExtruder, Object: name, Name: name}, nil
	}

	prefix, suffix, found := strings.Cut(name, " ")
	kind, ok := prefixed[prefix]
	if !ok {
		return ObjectRef{Kind: ObjectUnknown, Object: name}, nil
	}
	if !found || suffix == "" {
		return ObjectRef{}, fmt.Errorf("%w: %q has no instance name", ErrInvalidObjectName, name)
	}
	if strings.ContainsAny(suffix, " \t\r\n") {
		return ObjectRef{}, fmt.Errorf("%w: %q has whitespace in its instance name", ErrInvalidObjectName, name)
	}
	return ObjectRef{Kind: kind, Object: name, Name: suffix}, nil
}

func isExtruderName(name string) bool {
	rest, ok := strings.CutPrefix(name, "extruder")
	if !ok {
		return false
	}
	for _, r := range rest {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
