package device

import (
	"context"

	"github.com/urmzd/moonctl/pkg/jsonrpc"
	"github.com/urmzd/moonctl/pkg/printer"
)

// Controller is the command and read surface of a printer connection used by
// the HTTP API, the MCP server and the console.
type Controller interface {
	// ConnectionState returns the current link state
	ConnectionState() ConnectionState

	// IsConnected returns true while the transport can carry calls
	IsConnected() bool

	// Snapshot returns a copy of the live printer state
	Snapshot() printer.Snapshot

	// GCodes returns up to limit recent console lines
	GCodes(limit int) []printer.GCodeEntry

	// Call sends an arbitrary JSON-RPC method
	Call(ctx context.Context, method string, params map[string]any) (jsonrpc.Value, error)

	RunGCode(ctx context.Context, script string) error
	HomeAxes(ctx context.Context, axes ...string) error
	MoveAxis(ctx context.Context, axis string, position, speed float64) error
	MoveAxisRelative(ctx context.Context, axis string, distance, speed float64) error
	SetHeaterTarget(ctx context.Context, heater string, target float64) error
	TurnOffHeaters(ctx context.Context) error
	MotorsOff(ctx context.Context) error
	AdjustZOffset(ctx context.Context, offset float64, moveTool bool) error
	SaveZOffset(ctx context.Context) error
	Extrude(ctx context.Context, distance, speed float64) error
	SetFanSpeed(ctx context.Context, speed float64) error
	SetSpeedFactor(ctx context.Context, percent float64) error
	SetExtrudeFactor(ctx context.Context, percent float64) error
	RunMacro(ctx context.Context, name string) error
	EmergencyStop(ctx context.Context) error
	FirmwareRestart(ctx context.Context) error
	PausePrint(ctx context.Context) error
	ResumePrint(ctx context.Context) error
	CancelPrint(ctx context.Context) error

	// Close disconnects from the printer host
	Close()
}

// EventSubscriber defines the interface for subscribing to state change events
type EventSubscriber interface {
	// Subscribe returns a channel that receives state events
	Subscribe() chan printer.Event

	// Unsubscribe removes a subscription
	Unsubscribe(ch chan printer.Event)
}
