package types

import (
	"time"

	"github.com/urmzd/moonctl/pkg/discovery"
	"github.com/urmzd/moonctl/pkg/jsonrpc"
	"github.com/urmzd/moonctl/pkg/printer"
)

// --- Request DTOs ---

// GCodeRequest is the request body for POST /printer/gcode
type GCodeRequest struct {
	Script string `json:"script" example:"G28"`
}

// HomeRequest is the request body for POST /printer/home. No axes homes all.
type HomeRequest struct {
	Axes []string `json:"axes,omitempty" example:"x,y"`
}

// MoveRequest is the request body for POST /printer/move. Exactly one of
// Position (absolute) or Distance (relative) is set.
type MoveRequest struct {
	Axis     string   `json:"axis" example:"x"`
	Position *float64 `json:"position,omitempty"`
	Distance *float64 `json:"distance,omitempty"`
	Speed    float64  `json:"speed" example:"50"`
}

// TemperatureRequest is the request body for POST /printer/temperature
type TemperatureRequest struct {
	Heater string  `json:"heater" example:"extruder"`
	Target float64 `json:"target" example:"210"`
}

type ExtrudeRequest struct {
	Distance float64 `json:"distance" example:"10"`
	Speed    float64 `json:"speed" example:"5"`
}

type FanRequest struct {
	Speed float64 `json:"speed" example:"0.5"`
}

type ZOffsetRequest struct {
	Offset float64 `json:"offset" example:"-0.025"`
	Move   bool    `json:"move"`
}

type FactorRequest struct {
	Percent float64 `json:"percent" example:"100"`
}

// RPCRequest is the request body for POST /rpc
type RPCRequest struct {
	Method string         `json:"method" example:"server.files.list"`
	Params map[string]any `json:"params,omitempty"`
}

// --- Response DTOs ---

// ErrorResponse represents an API error
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// HealthResponse is returned from GET /health
type HealthResponse struct {
	Status     string    `json:"status"`
	Connection string    `json:"connection"`
	Klippy     string    `json:"klippy"`
	Timestamp  time.Time `json:"timestamp"`
}

// PrinterResponse is returned from GET /printer
type PrinterResponse struct {
	Connection string           `json:"connection"`
	Printer    printer.Snapshot `json:"printer"`
}

type ObjectsResponse struct {
	Objects []string `json:"objects"`
	Count   int      `json:"count"`
}

type MacrosResponse struct {
	Macros []string `json:"macros"`
	Count  int      `json:"count"`
}

type GCodesResponse struct {
	GCodes []printer.GCodeEntry `json:"gcodes"`
	Count  int                  `json:"count"`
	Source string               `json:"source"`
}

// CommandResponse acknowledges a command the printer host accepted.
type CommandResponse struct {
	Status    string    `json:"status"`
	Command   string    `json:"command"`
	Timestamp time.Time `json:"timestamp"`
}

type RPCResponse struct {
	Method string        `json:"method"`
	Result jsonrpc.Value `json:"result" swaggertype:"object"`
}

type DiscoveryResponse struct {
	Hosts []discovery.Host `json:"hosts"`
	Count int              `json:"count"`
}
