// Package gcode builds the Klipper G-code scripts sent through
// printer.gcode.script. Builders return plain text and never talk to the
// printer; argument checks beyond axis names belong to the caller.
package gcode

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrUnknownAxis is returned for axis names other than X, Y and Z.
var ErrUnknownAxis = errors.New("unknown axis")

// Axis is a cartesian toolhead axis.
type Axis string

const (
	AxisX Axis = "X"
	AxisY Axis = "Y"
	AxisZ Axis = "Z"
)

// Lower returns the axis letter as it appears in toolhead.homed_axes.
func (a Axis) Lower() string { return strings.ToLower(string(a)) }

// ParseAxis accepts an axis letter in either case.
func ParseAxis(s string) (Axis, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "X":
		return AxisX, nil
	case "Y":
		return AxisY, nil
	case "Z":
		return AxisZ, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownAxis, s)
}

// Script commands with no arguments.
const (
	TurnOffHeaters = "TURN_OFF_HEATERS"
	MotorsOff      = "M84"
	SaveZOffset    = "Z_OFFSET_APPLY_ENDSTOP"
	absolute       = "G90"
	relative       = "G91"
	relativeE      = "M83"
)

// num formats a float without trailing zeros.
func num(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// feed converts mm/s to the mm/min G-code feedrate.
func feed(speed float64) string {
	return num(speed * 60)
}

// Home homes the given axes, or all axes when none are given.
func Home(axes ...Axis) string {
	if len(axes) == 0 {
		return "G28"
	}
	parts := make([]string, 0, len(axes)+1)
	parts = append(parts, "G28")
	for _, a := range axes {
		parts = append(parts, string(a))
	}
	return strings.Join(parts, " ")
}

// Move is an absolute move of one axis at speed mm/s.
func Move(axis Axis, position, speed float64) string {
	return fmt.Sprintf("G1 %s%s F%s", axis, num(position), feed(speed))
}

// MoveRelative moves one axis by distance and restores absolute positioning.
func MoveRelative(axis Axis, distance, speed float64) string {
	return strings.Join([]string{
		relative,
		fmt.Sprintf("G1 %s%s F%s", axis, num(distance), feed(speed)),
		absolute,
	}, "\n")
}

// SetHeaterTemperature sets a heater target in degrees Celsius.
func SetHeaterTemperature(heater string, target float64) string {
	return fmt.Sprintf("SET_HEATER_TEMPERATURE HEATER=%s TARGET=%s", heater, num(target))
}

// AdjustZOffset nudges the Z gcode offset. With moveTool the toolhead is
// moved immediately.
func AdjustZOffset(offset float64, moveTool bool) string {
	sign := ""
	if offset >= 0 {
		sign = "+"
	}
	move := 0
	if moveTool {
		move = 1
	}
	return fmt.Sprintf("SET_GCODE_OFFSET Z_ADJUST=%s%s MOVE=%d", sign, num(offset), move)
}

// Extrude pushes filament in relative extrusion mode. Negative distances
// retract.
func Extrude(distance, speed float64) string {
	return relativeE + "\n" + fmt.Sprintf("G1 E%s F%s", num(distance), feed(speed))
}

// FanSpeed sets the part cooling fan from a 0..1 fraction.
func FanSpeed(speed float64) string {
	pwm := int(speed*255 + 0.5)
	if pwm <= 0 {
		return "M107"
	}
	if pwm > 255 {
		pwm = 255
	}
	return "M106 S" + strconv.Itoa(pwm)
}

// SpeedFactor sets the feedrate override in percent.
func SpeedFactor(percent float64) string {
	return "M220 S" + num(percent)
}

// ExtrudeFactor sets the flow override in percent.
func ExtrudeFactor(percent float64) string {
	return "M221 S" + num(percent)
}
