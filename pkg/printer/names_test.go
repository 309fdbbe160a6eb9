package printer

import (
	"errors"
	"testing"
)

func TestParseObjectName(t *testing.T) {
	tests := []struct {
		in   string
		kind ObjectKind
		name string
	}{
		{"heater_bed", ObjectHeaterBed, ""},
		{"toolhead", ObjectToolhead, ""},
		{"fan", ObjectFan, ""},
		{"print_stats", ObjectPrintStats, ""},
		{"gcode_move", ObjectGCodeMove, ""},
		{"display_status", ObjectDisplayStatus, ""},
		{"extruder", ObjectExtruder, "extruder"},
		{"extruder3", ObjectExtruder, "extruder3"},
		{"temperature_sensor chamber", ObjectTemperatureSensor, "chamber"},
		{"temperature_fan mcu", ObjectTemperatureFan, "mcu"},
		{"heater_fan hotend_fan", ObjectHeaterFan, "hotend_fan"},
		{"gcode_macro PRINT_START", ObjectGCodeMacro, "PRINT_START"},
		{"extruder_stepper belted", ObjectUnknown, ""},
		{"heater_bedroom", ObjectUnknown, ""},
		{"webhooks", ObjectUnknown, ""},
	}

	for _, tt := range tests {
		ref, err := ParseObjectName(tt.in)
		if err != nil {
			t.Errorf("ParseObjectName(%q): unexpected error %v", tt.in, err)
			continue
		}
		if ref.Kind != tt.kind {
			t.Errorf("ParseObjectName(%q).Kind = %d, want %d", tt.in, ref.Kind, tt.kind)
		}
		if ref.Name != tt.name {
			t.Errorf("ParseObjectName(%q).Name = %q, want %q", tt.in, ref.Name, tt.name)
		}
		if ref.Object != tt.in {
			t.Errorf("ParseObjectName(%q).Object = %q", tt.in, ref.Object)
		}
	}
}

func TestParseObjectName_Invalid(t *testing.T) {
	for _, in := range []string{
		"temperature_sensor",
		"temperature_sensor ",
		"heater_fan two words",
		"temperature_fan  double",
	} {
		if _, err := ParseObjectName(in); !errors.Is(err, ErrInvalidObjectName) {
			t.Errorf("ParseObjectName(%q) = %v, want ErrInvalidObjectName", in, err)
		}
	}
}

func TestParseJobStatus(t *testing.T) {
	for _, s := range []string{"standby", "printing", "paused", "complete", "cancelled", "error"} {
		if got := ParseJobStatus(s).String(); got != s {
			t.Errorf("ParseJobStatus(%q) round-trips to %q", s, got)
		}
	}
	if got := ParseJobStatus("Printing"); got != JobUnknown {
		t.Errorf("state strings are case sensitive, got %v", got)
	}
}

func TestParseKlippyState(t *testing.T) {
	if ParseKlippyState("ready") != KlippyReady {
		t.Error("ready")
	}
	if ParseKlippyState("nonsense") != KlippyUnknown {
		t.Error("nonsense should be unknown")
	}
}

func TestHomedAxes(t *testing.T) {
	h := ParseHomedAxes("xz")
	if !h.Has("X") || h.Has("y") || !h.Has("z") || h.Has("e") {
		t.Errorf("unexpected axes %+v", h)
	}
	if h.String() != "xz" {
		t.Errorf("String() = %q", h.String())
	}
}
