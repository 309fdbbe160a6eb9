package device

import (
	"context"

	"github.com/urmzd/moonctl/pkg/jsonrpc"
	"github.com/urmzd/moonctl/pkg/printer"
)

// NullController is a no-op controller used when no printer endpoint is
// configured. It lets the API and MCP server run in limited mode.
type NullController struct{}

// NewNullController creates a new NullController.
func NewNullController() *NullController {
	return &NullController{}
}

func (c *NullController) ConnectionState() ConnectionState { return StateDisconnected }

func (c *NullController) IsConnected() bool { return false }

func (c *NullController) Snapshot() printer.Snapshot { return printer.Snapshot{} }

func (c *NullController) GCodes(int) []printer.GCodeEntry { return []printer.GCodeEntry{} }

func (c *NullController) Call(context.Context, string, map[string]any) (jsonrpc.Value, error) {
	return jsonrpc.Value{}, ErrNotConnected
}

func (c *NullController) RunGCode(context.Context, string) error { return ErrNotConnected }

func (c *NullController) HomeAxes(context.Context, ...string) error { return ErrNotConnected }

func (c *NullController) MoveAxis(context.Context, string, float64, float64) error {
	return ErrNotConnected
}

func (c *NullController) MoveAxisRelative(context.Context, string, float64, float64) error {
	return ErrNotConnected
}

func (c *NullController) SetHeaterTarget(context.Context, string, float64) error {
	return ErrNotConnected
}

func (c *NullController) TurnOffHeaters(context.Context) error { return ErrNotConnected }

func (c *NullController) MotorsOff(context.Context) error { return ErrNotConnected }

func (c *NullController) AdjustZOffset(context.Context, float64, bool) error {
	return ErrNotConnected
}

func (c *NullController) SaveZOffset(context.Context) error { return ErrNotConnected }

func (c *NullController) Extrude(context.Context, float64, float64) error { return ErrNotConnected }

func (c *NullController) SetFanSpeed(context.Context, float64) error { return ErrNotConnected }

func (c *NullController) SetSpeedFactor(context.Context, float64) error { return ErrNotConnected }

func (c *NullController) SetExtrudeFactor(context.Context, float64) error { return ErrNotConnected }

func (c *NullController) RunMacro(context.Context, string) error { return ErrNotConnected }

func (c *NullController) EmergencyStop(context.Context) error { return ErrNotConnected }

func (c *NullController) FirmwareRestart(context.Context) error { return ErrNotConnected }

func (c *NullController) PausePrint(context.Context) error { return ErrNotConnected }

func (c *NullController) ResumePrint(context.Context) error { return ErrNotConnected }

func (c *NullController) CancelPrint(context.Context) error { return ErrNotConnected }

func (c *NullController) Close() {}

// NullEventSubscriber is a no-op event subscriber paired with NullController.
type NullEventSubscriber struct{}

// NewNullEventSubscriber creates a new NullEventSubscriber.
func NewNullEventSubscriber() *NullEventSubscriber {
	return &NullEventSubscriber{}
}

func (s *NullEventSubscriber) Subscribe() chan printer.Event {
	// Never sent to; callers should check IsConnected() on the controller
	return make(chan printer.Event)
}

func (s *NullEventSubscriber) Unsubscribe(ch chan printer.Event) {
	close(ch)
}
