package device

import (
	"errors"

	"github.com/urmzd/moonctl/pkg/gcode"
)

var (
	// ErrTimeout indicates the printer host did not answer in time
	ErrTimeout = errors.New("operation timed out")

	// ErrNotConnected indicates there is no live connection to the printer host
	ErrNotConnected = errors.New("printer not connected")

	// ErrValidation indicates a command argument failed validation
	ErrValidation = errors.New("validation error")

	// ErrPrecondition indicates the printer is not in a state that allows the command
	ErrPrecondition = errors.New("precondition failed")

	// ErrUnknownHeater indicates a heater name that discovery did not report
	ErrUnknownHeater = errors.New("unknown heater")

	// ErrUnknownMacro indicates a macro name that discovery did not report
	ErrUnknownMacro = errors.New("unknown macro")

	// ErrUnknownAxis indicates an axis other than X, Y or Z
	ErrUnknownAxis = gcode.ErrUnknownAxis
)
