// Package interactive provides the moonctl line console.
package interactive

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/chzyer/readline"

	"github.com/urmzd/moonctl/pkg/device"
	"github.com/urmzd/moonctl/pkg/discovery"
	"github.com/urmzd/moonctl/pkg/printer"
)

const (
	defaultMoveSpeed    = 50.0
	defaultExtrudeSpeed = 5.0
	defaultScanTime     = 3 * time.Second
)

// Scanner finds printer hosts on the local network.
type Scanner interface {
	Scan(ctx context.Context, timeout time.Duration) ([]discovery.Host, error)
}

// Console runs printer commands typed at a prompt.
type Console struct {
	ctrl    device.Controller
	sub     device.EventSubscriber
	scanner Scanner
	out     io.Writer
	rl      *readline.Instance
}

// New creates a console reading from the terminal.
func New(ctrl device.Controller, sub device.EventSubscriber, scanner Scanner) (*Console, error) {
	c := &Console{ctrl: ctrl, sub: sub, scanner: scanner}
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "moonctl> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
		AutoComplete:    c.completer(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create readline: %w", err)
	}
	c.rl = rl
	c.out = rl.Stdout()
	return c, nil
}

// Stdout returns a writer that does not clobber the prompt.
func (c *Console) Stdout() io.Writer {
	return c.out
}

func (c *Console) completer() *readline.PrefixCompleter {
	heaters := func(string) []string {
		snap := c.ctrl.Snapshot()
		names := make([]string, 0, len(snap.Extruders)+1)
		for _, e := range snap.Extruders {
			names = append(names, e.Name)
		}
		if slices.Contains(snap.Objects, "heater_bed") {
			names = append(names, "heater_bed")
		}
		return names
	}
	macros := func(string) []string { return c.ctrl.Snapshot().Macros }

	return readline.NewPrefixCompleter(
		readline.PcItem("help"),
		readline.PcItem("status"),
		readline.PcItem("temps"),
		readline.PcItem("objects"),
		readline.PcItem("log"),
		readline.PcItem("gcode"),
		readline.PcItem("home", readline.PcItem("x"), readline.PcItem("y"), readline.PcItem("z")),
		readline.PcItem("move", readline.PcItem("x"), readline.PcItem("y"), readline.PcItem("z")),
		readline.PcItem("jog", readline.PcItem("x"), readline.PcItem("y"), readline.PcItem("z")),
		readline.PcItem("temp", readline.PcItemDynamic(heaters)),
		readline.PcItem("fan"),
		readline.PcItem("extrude"),
		readline.PcItem("macro", readline.PcItemDynamic(macros)),
		readline.PcItem("rpc"),
		readline.PcItem("discover"),
		readline.PcItem("estop"),
		readline.PcItem("restart"),
		readline.PcItem("pause"),
		readline.PcItem("resume"),
		readline.PcItem("cancel"),
		readline.PcItem("off", readline.PcItem("heaters"), readline.PcItem("motors")),
		readline.PcItem("quit"),
	)
}

// Run reads commands until quit, EOF or ctx ends. Console responses from the
// printer are echoed as they arrive.
func (c *Console) Run(ctx context.Context, cancel context.CancelFunc) {
	defer c.rl.Close()

	events := c.sub.Subscribe()
	defer c.sub.Unsubscribe(events)
	go c.echo(ctx, events)

	c.printHelp()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		line, err := c.rl.Readline()
		if err != nil {
			if errors.Is(err, readline.ErrInterrupt) {
				continue
			}
			fmt.Fprintln(c.out, "Exiting...")
			cancel()
			return
		}

		if quit := c.Exec(ctx, line); quit {
			fmt.Fprintln(c.out, "Exiting...")
			cancel()
			return
		}
	}
}

func (c *Console) echo(ctx context.Context, events <-chan printer.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-events:
			if !ok {
				return
			}
			switch evt.Type {
			case printer.EventGCode:
				if evt.GCode != nil && evt.GCode.Type == printer.GCodeResponse {
					fmt.Fprintf(c.out, "%s\n", evt.GCode.Message)
				}
			case printer.EventKlippyState:
				fmt.Fprintf(c.out, "[klippy %s]\n", evt.Klippy)
			}
		}
	}
}

// Exec runs one command line and reports whether the console should exit.
func (c *Console) Exec(ctx context.Context, line string) bool {
	input := strings.TrimSpace(line)
	if input == "" {
		return false
	}

	parts := strings.Fields(input)
	cmd := strings.ToLower(parts[0])
	args := parts[1:]

	switch cmd {
	case "help", "?":
		c.printHelp()
	case "status", "s":
		c.cmdStatus()
	case "temps", "t":
		c.cmdTemps()
	case "objects":
		c.cmdObjects()
	case "log":
		c.cmdLog(args)
	case "gcode", "g":
		c.cmdGCode(ctx, strings.TrimSpace(input[len(parts[0]):]))
	case "home":
		c.report(c.ctrl.HomeAxes(ctx, args...))
	case "move":
		c.cmdMove(ctx, args, false)
	case "jog":
		c.cmdMove(ctx, args, true)
	case "temp":
		c.cmdTemp(ctx, args)
	case "fan":
		c.cmdFan(ctx, args)
	case "extrude":
		c.cmdExtrude(ctx, args)
	case "macro", "m":
		if len(args) != 1 {
			fmt.Fprintln(c.out, "Usage: macro <name>")
			return false
		}
		c.report(c.ctrl.RunMacro(ctx, args[0]))
	case "rpc":
		c.cmdRPC(ctx, args)
	case "discover":
		c.cmdDiscover(ctx, args)
	case "estop":
		c.report(c.ctrl.EmergencyStop(ctx))
	case "restart":
		c.report(c.ctrl.FirmwareRestart(ctx))
	case "pause":
		c.report(c.ctrl.PausePrint(ctx))
	case "resume":
		c.report(c.ctrl.ResumePrint(ctx))
	case "cancel":
		c.report(c.ctrl.CancelPrint(ctx))
	case "off":
		c.cmdOff(ctx, args)
	case "quit", "exit", "q":
		return true
	default:
		fmt.Fprintf(c.out, "Unknown command: %s (type 'help' for commands)\n", cmd)
	}
	return false
}

func (c *Console) printHelp() {
	fmt.Fprintln(c.out, `
moonctl commands:
  State:
    status                  - Connection, Klippy and job summary
    temps                   - Heater temperatures and targets
    objects                 - Printer objects and macros
    log [n]                 - Last n console lines (default 20)

  Motion:
    home [x y z]            - Home the given axes, or all
    move <axis> <pos> [v]   - Absolute move in mm at v mm/s
    jog <axis> <dist> [v]   - Relative move in mm at v mm/s
    off motors              - Disable steppers

  Temperature:
    temp <heater> <target>  - Set a heater target in C
    off heaters             - Turn all heaters off
    fan <0..1>              - Part fan speed
    extrude <mm> [v]        - Extrude (negative retracts)

  Commands:
    gcode <script>          - Run raw G-code
    macro <name>            - Run a gcode_macro
    rpc <method> [json]     - Raw JSON-RPC call
    pause | resume | cancel - Print job control
    estop | restart         - Emergency stop, firmware restart
    discover [seconds]      - Find Moonraker hosts via mDNS

  General:
    help                    - Show this help
    quit                    - Exit`)
}

func (c *Console) report(err error) {
	if err != nil {
		fmt.Fprintf(c.out, "Error: %v\n", err)
		return
	}
	fmt.Fprintln(c.out, "OK")
}

func (c *Console) cmdStatus() {
	snap := c.ctrl.Snapshot()
	fmt.Fprintf(c.out, "Connection: %s\n", c.ctrl.ConnectionState())
	fmt.Fprintf(c.out, "Klippy:     %s", snap.Klippy)
	if snap.StateMessage != "" && snap.Klippy != printer.KlippyReady {
		fmt.Fprintf(c.out, " (%s)", strings.TrimSpace(snap.StateMessage))
	}
	fmt.Fprintln(c.out)

	homed := snap.Toolhead.HomedAxes.String()
	if homed == "" {
		homed = "none"
	}
	fmt.Fprintf(c.out, "Homed:      %s\n", homed)
	if p := snap.Toolhead.Position; len(p) >= 3 {
		fmt.Fprintf(c.out, "Position:   X%.2f Y%.2f Z%.2f\n", p[0], p[1], p[2])
	}

	job := snap.PrintStats
	fmt.Fprintf(c.out, "Job:        %s", job.State)
	if job.Filename != "" {
		fmt.Fprintf(c.out, " %s %.1f%%", job.Filename, snap.Display.Progress*100)
	}
	fmt.Fprintln(c.out)
}

func (c *Console) cmdTemps() {
	snap := c.ctrl.Snapshot()
	for _, e := range snap.Extruders {
		fmt.Fprintf(c.out, "  %-16s %6.1f / %6.1f C  power %3.0f%%\n", e.Name, e.Temperature, e.Target, e.Power*100)
	}
	if slices.Contains(snap.Objects, "heater_bed") {
		b := snap.HeaterBed
		fmt.Fprintf(c.out, "  %-16s %6.1f / %6.1f C  power %3.0f%%\n", "heater_bed", b.Temperature, b.Target, b.Power*100)
	}
	for _, s := range snap.TemperatureSensors {
		fmt.Fprintf(c.out, "  %-16s %6.1f C\n", s.Name, s.Temperature)
	}
}

func (c *Console) cmdObjects() {
	snap := c.ctrl.Snapshot()
	fmt.Fprintf(c.out, "Objects (%d):\n", len(snap.Objects))
	for _, name := range snap.Objects {
		fmt.Fprintf(c.out, "  %s\n", name)
	}
	if len(snap.Macros) > 0 {
		fmt.Fprintf(c.out, "Macros: %s\n", strings.Join(snap.Macros, ", "))
	}
}

func (c *Console) cmdLog(args []string) {
	limit := 20
	if len(args) > 0 {
		n, err := strconv.Atoi(args[0])
		if err != nil || n < 1 {
			fmt.Fprintln(c.out, "Usage: log [n]")
			return
		}
		limit = n
	}
	for _, entry := range c.ctrl.GCodes(limit) {
		prefix := "  "
		if entry.Type == printer.GCodeCommand {
			prefix = "> "
		}
		fmt.Fprintf(c.out, "%s%s\n", prefix, entry.Message)
	}
}

func (c *Console) cmdGCode(ctx context.Context, script string) {
	if script == "" {
		fmt.Fprintln(c.out, "Usage: gcode <script>")
		return
	}
	// ";" separates commands typed on one line
	lines := strings.Split(script, ";")
	for i := range lines {
		lines[i] = strings.TrimSpace(lines[i])
	}
	c.report(c.ctrl.RunGCode(ctx, strings.Join(lines, "\n")))
}

func (c *Console) cmdMove(ctx context.Context, args []string, relative bool) {
	if len(args) < 2 || len(args) > 3 {
		if relative {
			fmt.Fprintln(c.out, "Usage: jog <axis> <distance> [speed]")
		} else {
			fmt.Fprintln(c.out, "Usage: move <axis> <position> [speed]")
		}
		return
	}
	value, err := strconv.ParseFloat(args[1], 64)
	if err != nil {
		fmt.Fprintf(c.out, "Invalid number: %s\n", args[1])
		return
	}
	speed := defaultMoveSpeed
	if len(args) == 3 {
		if speed, err = strconv.ParseFloat(args[2], 64); err != nil {
			fmt.Fprintf(c.out, "Invalid speed: %s\n", args[2])
			return
		}
	}
	if relative {
		c.report(c.ctrl.MoveAxisRelative(ctx, args[0], value, speed))
		return
	}
	c.report(c.ctrl.MoveAxis(ctx, args[0], value, speed))
}

func (c *Console) cmdTemp(ctx context.Context, args []string) {
	if len(args) != 2 {
		fmt.Fprintln(c.out, "Usage: temp <heater> <target>")
		return
	}
	target, err := strconv.ParseFloat(args[1], 64)
	if err != nil {
		fmt.Fprintf(c.out, "Invalid temperature: %s\n", args[1])
		return
	}
	c.report(c.ctrl.SetHeaterTarget(ctx, args[0], target))
}

func (c *Console) cmdFan(ctx context.Context, args []string) {
	if len(args) != 1 {
		fmt.Fprintln(c.out, "Usage: fan <0..1>")
		return
	}
	speed, err := strconv.ParseFloat(args[0], 64)
	if err != nil {
		fmt.Fprintf(c.out, "Invalid speed: %s\n", args[0])
		return
	}
	c.report(c.ctrl.SetFanSpeed(ctx, speed))
}

func (c *Console) cmdExtrude(ctx context.Context, args []string) {
	if len(args) < 1 || len(args) > 2 {
		fmt.Fprintln(c.out, "Usage: extrude <mm> [speed]")
		return
	}
	distance, err := strconv.ParseFloat(args[0], 64)
	if err != nil {
		fmt.Fprintf(c.out, "Invalid distance: %s\n", args[0])
		return
	}
	speed := defaultExtrudeSpeed
	if len(args) == 2 {
		if speed, err = strconv.ParseFloat(args[1], 64); err != nil {
			fmt.Fprintf(c.out, "Invalid speed: %s\n", args[1])
			return
		}
	}
	c.report(c.ctrl.Extrude(ctx, distance, speed))
}

func (c *Console) cmdOff(ctx context.Context, args []string) {
	if len(args) != 1 {
		fmt.Fprintln(c.out, "Usage: off heaters|motors")
		return
	}
	switch args[0] {
	case "heaters":
		c.report(c.ctrl.TurnOffHeaters(ctx))
	case "motors":
		c.report(c.ctrl.MotorsOff(ctx))
	default:
		fmt.Fprintln(c.out, "Usage: off heaters|motors")
	}
}

func (c *Console) cmdRPC(ctx context.Context, args []string) {
	if len(args) < 1 {
		fmt.Fprintln(c.out, "Usage: rpc <method> [json params]")
		return
	}
	var params map[string]any
	if len(args) > 1 {
		raw := strings.Join(args[1:], " ")
		if err := json.Unmarshal([]byte(raw), &params); err != nil {
			fmt.Fprintf(c.out, "Invalid params: %v\n", err)
			return
		}
	}
	result, err := c.ctrl.Call(ctx, args[0], params)
	if err != nil {
		fmt.Fprintf(c.out, "Error: %v\n", err)
		return
	}
	b, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		fmt.Fprintf(c.out, "Error: %v\n", err)
		return
	}
	fmt.Fprintln(c.out, string(b))
}

func (c *Console) cmdDiscover(ctx context.Context, args []string) {
	if c.scanner == nil {
		fmt.Fprintln(c.out, "Discovery unavailable")
		return
	}
	timeout := defaultScanTime
	if len(args) > 0 {
		secs, err := strconv.Atoi(args[0])
		if err != nil || secs < 1 {
			fmt.Fprintln(c.out, "Usage: discover [seconds]")
			return
		}
		timeout = time.Duration(secs) * time.Second
	}

	fmt.Fprintf(c.out, "Scanning for %s...\n", timeout)
	hosts, err := c.scanner.Scan(ctx, timeout)
	if err != nil {
		fmt.Fprintf(c.out, "Error: %v\n", err)
		return
	}
	if len(hosts) == 0 {
		fmt.Fprintln(c.out, "No printers found")
		return
	}
	for _, h := range hosts {
		fmt.Fprintf(c.out, "  %-24s %s\n", h.Instance, h.WebSocketURL())
	}
}
