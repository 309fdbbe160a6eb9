package mcp

import (
	"github.com/urmzd/moonctl/pkg/jsonrpc"
	"github.com/urmzd/moonctl/pkg/printer"
)

type GetHealthOutput struct {
	Status     string `json:"status" jsonschema:"description=healthy when the connection is ready"`
	Connection string `json:"connection" jsonschema:"description=disconnected, connecting, ready or degraded"`
	Klippy     string `json:"klippy" jsonschema:"description=Klippy host state"`
	Message    string `json:"message,omitempty" jsonschema:"description=Klippy state message"`
	Timestamp  string `json:"timestamp" jsonschema:"description=ISO8601 timestamp"`
}

// HeaterInfo is one heater in the status summary.
type HeaterInfo struct {
	Name        string  `json:"name"`
	Temperature float64 `json:"temperature"`
	Target      float64 `json:"target"`
	Power       float64 `json:"power"`
}

// JobInfo summarizes print_stats and display_status.
type JobInfo struct {
	State         string  `json:"state"`
	Filename      string  `json:"filename,omitempty"`
	Progress      float64 `json:"progress"`
	PrintDuration float64 `json:"print_duration"`
	CurrentLayer  *int    `json:"current_layer,omitempty"`
	TotalLayer    *int    `json:"total_layer,omitempty"`
	Message       string  `json:"message,omitempty"`
}

type PrinterStatusOutput struct {
	Connection string       `json:"connection"`
	Klippy     string       `json:"klippy"`
	Heaters    []HeaterInfo `json:"heaters"`
	Position   []float64    `json:"position,omitempty" jsonschema:"description=Toolhead X Y Z E"`
	HomedAxes  string       `json:"homed_axes"`
	FanSpeed   float64      `json:"fan_speed"`
	Job        JobInfo      `json:"job"`
}

type ListObjectsOutput struct {
	Objects []string `json:"objects"`
	Macros  []string `json:"macros"`
	Count   int      `json:"count"`
}

type GCodeLogOutput struct {
	Lines []printer.GCodeEntry `json:"lines"`
	Count int                  `json:"count"`
}

// CommandOutput acknowledges an accepted command.
type CommandOutput struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type CallRPCOutput struct {
	Method string        `json:"method"`
	Result jsonrpc.Value `json:"result"`
}

// StatusFromSnapshot condenses a snapshot for tool output.
func StatusFromSnapshot(connection string, snap printer.Snapshot) PrinterStatusOutput {
	out := PrinterStatusOutput{
		Connection: connection,
		Klippy:     snap.Klippy.String(),
		Heaters:    make([]HeaterInfo, 0, len(snap.Extruders)+1),
		Position:   snap.Toolhead.Position,
		HomedAxes:  snap.Toolhead.HomedAxes.String(),
		FanSpeed:   snap.Fan.Speed,
		Job: JobInfo{
			State:         snap.PrintStats.State.String(),
			Filename:      snap.PrintStats.Filename,
			Progress:      snap.Display.Progress,
			PrintDuration: snap.PrintStats.PrintDuration,
			CurrentLayer:  snap.PrintStats.Info.CurrentLayer,
			TotalLayer:    snap.PrintStats.Info.TotalLayer,
			Message:       snap.PrintStats.Message,
		},
	}
	for _, e := range snap.Extruders {
		out.Heaters = append(out.Heaters, HeaterInfo{Name: e.Name, Temperature: e.Temperature, Target: e.Target, Power: e.Power})
	}
	for _, name := range snap.Objects {
		if name == "heater_bed" {
			b := snap.HeaterBed
			out.Heaters = append(out.Heaters, HeaterInfo{Name: name, Temperature: b.Temperature, Target: b.Target, Power: b.Power})
			break
		}
	}
	return out
}
