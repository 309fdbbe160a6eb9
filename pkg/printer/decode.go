package printer

import "github.com/urmzd/moonctl/pkg/jsonrpc"

// Each apply method copies only the fields present in the update. A field
// whose value has the wrong JSON type is ignored and keeps its old value.

func (h *Heater) apply(fields map[string]jsonrpc.Value) {
	for key, v := range fields {
		switch key {
		case "temperature":
			setFloat(&h.Temperature, v)
		case "target":
			setFloat(&h.Target, v)
		case "power":
			setFloat(&h.Power, v)
		}
	}
}

func (e *Extruder) apply(fields map[string]jsonrpc.Value) {
	for key, v := range fields {
		switch key {
		case "temperature":
			setFloat(&e.Temperature, v)
		case "target":
			setFloat(&e.Target, v)
		case "power":
			setFloat(&e.Power, v)
		case "can_extrude":
			setBool(&e.CanExtrude, v)
		case "pressure_advance":
			setFloat(&e.PressureAdvance, v)
		case "smooth_time":
			setFloat(&e.SmoothTime, v)
		}
	}
}

func (s *TemperatureSensor) apply(fields map[string]jsonrpc.Value) {
	for key, v := range fields {
		switch key {
		case "temperature":
			setFloat(&s.Temperature, v)
		case "measured_min_temp":
			setFloat(&s.MeasuredMinTemp, v)
		case "measured_max_temp":
			setFloat(&s.MeasuredMaxTemp, v)
		}
	}
}

func (f *TemperatureFan) apply(fields map[string]jsonrpc.Value) {
	for key, v := range fields {
		switch key {
		case "speed":
			setFloat(&f.Speed, v)
		case "temperature":
			setFloat(&f.Temperature, v)
		case "target":
			setFloat(&f.Target, v)
		}
	}
}

func (f *HeaterFan) apply(fields map[string]jsonrpc.Value) {
	for key, v := range fields {
		switch key {
		case "speed":
			setFloat(&f.Speed, v)
		case "rpm":
			setOptionalFloat(&f.RPM, v)
		}
	}
}

func (f *Fan) apply(fields map[string]jsonrpc.Value) {
	for key, v := range fields {
		switch key {
		case "speed":
			setFloat(&f.Speed, v)
		case "rpm":
			setOptionalFloat(&f.RPM, v)
		}
	}
}

func (t *Toolhead) apply(fields map[string]jsonrpc.Value) {
	for key, v := range fields {
		switch key {
		case "extruder":
			setString(&t.Extruder, v)
		case "position":
			setFloats(&t.Position, v)
		case "max_velocity":
			setFloat(&t.MaxVelocity, v)
		case "max_accel":
			setFloat(&t.MaxAccel, v)
		case "max_accel_to_decel":
			setFloat(&t.MaxAccelToDecel, v)
		case "square_corner_velocity":
			setFloat(&t.SquareCornerVelocity, v)
		case "homed_axes":
			// Full overwrite: axes absent from the string are cleared.
			if s, ok := v.AsString(); ok {
				t.HomedAxes = ParseHomedAxes(s)
			}
		}
	}
}

func (p *PrintStats) apply(fields map[string]jsonrpc.Value) {
	for key, v := range fields {
		switch key {
		case "filename":
			setString(&p.Filename, v)
		case "total_duration":
			setFloat(&p.TotalDuration, v)
		case "print_duration":
			setFloat(&p.PrintDuration, v)
		case "filament_used":
			setFloat(&p.FilamentUsed, v)
		case "state":
			if s, ok := v.AsString(); ok {
				p.State = ParseJobStatus(s)
			}
		case "message":
			setString(&p.Message, v)
		case "info":
			info, ok := v.AsObject()
			if !ok {
				continue
			}
			if layer, ok := info["total_layer"]; ok {
				setOptionalInt(&p.Info.TotalLayer, layer)
			}
			if layer, ok := info["current_layer"]; ok {
				setOptionalInt(&p.Info.CurrentLayer, layer)
			}
		}
	}
}

func (g *GCodeMove) apply(fields map[string]jsonrpc.Value) {
	for key, v := range fields {
		switch key {
		case "speed_factor":
			setFloat(&g.SpeedFactor, v)
		case "speed":
			setFloat(&g.Speed, v)
		case "extrude_factor":
			setFloat(&g.ExtrudeFactor, v)
		case "absolute_coordinates":
			setBool(&g.AbsoluteCoordinates, v)
		case "absolute_extrude":
			setBool(&g.AbsoluteExtrude, v)
		case "homing_origin":
			setFloats(&g.HomingOrigin, v)
		case "position":
			setFloats(&g.Position, v)
		case "gcode_position":
			setFloats(&g.GCodePosition, v)
		}
	}
}

func (d *DisplayStatus) apply(fields map[string]jsonrpc.Value) {
	for key, v := range fields {
		switch key {
		case "progress":
			setFloat(&d.Progress, v)
		case "message":
			// Klipper sends null once the message is cleared.
			if v.IsNull() {
				d.Message = ""
			} else {
				setString(&d.Message, v)
			}
		}
	}
}

func setFloat(dst *float64, v jsonrpc.Value) {
	if f, ok := v.AsFloat(); ok {
		*dst = f
	}
}

func setOptionalFloat(dst **float64, v jsonrpc.Value) {
	if v.IsNull() {
		*dst = nil
		return
	}
	if f, ok := v.AsFloat(); ok {
		*dst = &f
	}
}

func setOptionalInt(dst **int, v jsonrpc.Value) {
	if v.IsNull() {
		*dst = nil
		return
	}
	if i, ok := v.AsInt(); ok {
		n := int(i)
		*dst = &n
	}
}

func setString(dst *string, v jsonrpc.Value) {
	if s, ok := v.AsString(); ok {
		*dst = s
	}
}

func setBool(dst *bool, v jsonrpc.Value) {
	if b, ok := v.AsBool(); ok {
		*dst = b
	}
}

// setFloats replaces a coordinate list only when every element is numeric.
func setFloats(dst *[]float64, v jsonrpc.Value) {
	items, ok := v.AsArray()
	if !ok {
		return
	}
	out := make([]float64, 0, len(items))
	for _, item := range items {
		f, ok := item.AsFloat()
		if !ok {
			return
		}
		out = append(out, f)
	}
	*dst = out
}
