package session

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/urmzd/moonctl/pkg/device"
	"github.com/urmzd/moonctl/pkg/gcode"
)

// Moonraker methods behind the non-script commands.
const (
	methodGCodeScript     = "printer.gcode.script"
	methodEmergencyStop   = "printer.emergency_stop"
	methodFirmwareRestart = "printer.firmware_restart"
	methodPrintPause      = "printer.print.pause"
	methodPrintResume     = "printer.print.resume"
	methodPrintCancel     = "printer.print.cancel"
)

func finite(name string, v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return fmt.Errorf("%w: %s must be a finite number", device.ErrValidation, name)
	}
	return nil
}

func positive(name string, v float64) error {
	if err := finite(name, v); err != nil {
		return err
	}
	if v <= 0 {
		return fmt.Errorf("%w: %s must be greater than zero", device.ErrValidation, name)
	}
	return nil
}

// RunGCode sends a script and records it in the console log once the host
// accepted it.
func (s *Session) RunGCode(ctx context.Context, script string) error {
	script = strings.TrimSpace(script)
	if script == "" {
		return fmt.Errorf("%w: empty script", device.ErrValidation)
	}

	if _, err := s.Call(ctx, methodGCodeScript, map[string]any{"script": script}); err != nil {
		return fmt.Errorf("gcode script: %w", err)
	}
	s.store.RecordCommand(script)
	log.Debug().Str("script", script).Msg("G-code script accepted")
	return nil
}

func (s *Session) HomeAxes(ctx context.Context, axes ...string) error {
	parsed := make([]gcode.Axis, 0, len(axes))
	for _, a := range axes {
		axis, err := gcode.ParseAxis(a)
		if err != nil {
			return err
		}
		parsed = append(parsed, axis)
	}
	return s.RunGCode(ctx, gcode.Home(parsed...))
}

// homedAxis resolves an axis name and requires it to be homed.
func (s *Session) homedAxis(name string) (gcode.Axis, error) {
	axis, err := gcode.ParseAxis(name)
	if err != nil {
		return "", err
	}
	if !s.store.Toolhead().HomedAxes.Has(axis.Lower()) {
		return "", fmt.Errorf("%w: axis %s is not homed", device.ErrPrecondition, axis)
	}
	return axis, nil
}

func (s *Session) MoveAxis(ctx context.Context, axis string, position, speed float64) error {
	a, err := s.homedAxis(axis)
	if err != nil {
		return err
	}
	if err := finite("position", position); err != nil {
		return err
	}
	if err := positive("speed", speed); err != nil {
		return err
	}
	return s.RunGCode(ctx, gcode.Move(a, position, speed))
}

func (s *Session) MoveAxisRelative(ctx context.Context, axis string, distance, speed float64) error {
	a, err := s.homedAxis(axis)
	if err != nil {
		return err
	}
	if err := finite("distance", distance); err != nil {
		return err
	}
	if err := positive("speed", speed); err != nil {
		return err
	}
	return s.RunGCode(ctx, gcode.MoveRelative(a, distance, speed))
}

// SetHeaterTarget accepts extruders and the bed as reported by discovery.
func (s *Session) SetHeaterTarget(ctx context.Context, heater string, target float64) error {
	known := false
	for _, h := range s.store.Heaters() {
		if h == heater {
			known = true
			break
		}
	}
	if !known {
		return fmt.Errorf("%w: %q", device.ErrUnknownHeater, heater)
	}
	if err := finite("target", target); err != nil {
		return err
	}
	if target < 0 {
		return fmt.Errorf("%w: target must not be negative", device.ErrValidation)
	}
	return s.RunGCode(ctx, gcode.SetHeaterTemperature(heater, target))
}

func (s *Session) TurnOffHeaters(ctx context.Context) error {
	return s.RunGCode(ctx, gcode.TurnOffHeaters)
}

func (s *Session) MotorsOff(ctx context.Context) error {
	return s.RunGCode(ctx, gcode.MotorsOff)
}

func (s *Session) AdjustZOffset(ctx context.Context, offset float64, moveTool bool) error {
	if err := finite("offset", offset); err != nil {
		return err
	}
	return s.RunGCode(ctx, gcode.AdjustZOffset(offset, moveTool))
}

func (s *Session) SaveZOffset(ctx context.Context) error {
	return s.RunGCode(ctx, gcode.SaveZOffset)
}

// Extrude requires the active extruder to report can_extrude.
func (s *Session) Extrude(ctx context.Context, distance, speed float64) error {
	ext, ok := s.store.ActiveExtruder()
	if !ok {
		return fmt.Errorf("%w: no active extruder", device.ErrPrecondition)
	}
	if !ext.CanExtrude {
		return fmt.Errorf("%w: %s is below minimum extrude temperature", device.ErrPrecondition, ext.Name)
	}
	if err := finite("distance", distance); err != nil {
		return err
	}
	if err := positive("speed", speed); err != nil {
		return err
	}
	return s.RunGCode(ctx, gcode.Extrude(distance, speed))
}

// SetFanSpeed takes a 0..1 fraction.
func (s *Session) SetFanSpeed(ctx context.Context, speed float64) error {
	if err := finite("speed", speed); err != nil {
		return err
	}
	if speed < 0 || speed > 1 {
		return fmt.Errorf("%w: fan speed must be between 0 and 1", device.ErrValidation)
	}
	return s.RunGCode(ctx, gcode.FanSpeed(speed))
}

func (s *Session) SetSpeedFactor(ctx context.Context, percent float64) error {
	if err := positive("percent", percent); err != nil {
		return err
	}
	return s.RunGCode(ctx, gcode.SpeedFactor(percent))
}

func (s *Session) SetExtrudeFactor(ctx context.Context, percent float64) error {
	if err := positive("percent", percent); err != nil {
		return err
	}
	return s.RunGCode(ctx, gcode.ExtrudeFactor(percent))
}

// RunMacro runs a discovered gcode_macro. Klipper macro names are case
// insensitive.
func (s *Session) RunMacro(ctx context.Context, name string) error {
	for _, m := range s.store.Macros() {
		if strings.EqualFold(m, name) {
			return s.RunGCode(ctx, m)
		}
	}
	return fmt.Errorf("%w: %q", device.ErrUnknownMacro, name)
}

func (s *Session) EmergencyStop(ctx context.Context) error {
	return s.simple(ctx, methodEmergencyStop)
}

func (s *Session) FirmwareRestart(ctx context.Context) error {
	return s.simple(ctx, methodFirmwareRestart)
}

func (s *Session) PausePrint(ctx context.Context) error {
	return s.simple(ctx, methodPrintPause)
}

func (s *Session) ResumePrint(ctx context.Context) error {
	return s.simple(ctx, methodPrintResume)
}

func (s *Session) CancelPrint(ctx context.Context) error {
	return s.simple(ctx, methodPrintCancel)
}

func (s *Session) simple(ctx context.Context, method string) error {
	if _, err := s.Call(ctx, method, nil); err != nil {
		return fmt.Errorf("%s: %w", method, err)
	}
	log.Info().Str("method", method).Msg("Printer command sent")
	return nil
}
