package mcp

import "github.com/mark3labs/mcp-go/mcp"

func (s *Server) registerTools() {
	s.mcpServer.AddTool(
		mcp.NewTool("get_health",
			mcp.WithDescription("Check the printer connection state and Klippy state"),
		),
		s.handleGetHealth,
	)

	s.mcpServer.AddTool(
		mcp.NewTool("get_printer_status",
			mcp.WithDescription("Summarize temperatures, toolhead position, homed axes and the current print job"),
		),
		s.handleGetPrinterStatus,
	)

	s.mcpServer.AddTool(
		mcp.NewTool("list_objects",
			mcp.WithDescription("List every printer object and macro reported by the host"),
		),
		s.handleListObjects,
	)

	s.mcpServer.AddTool(
		mcp.NewTool("get_gcode_log",
			mcp.WithDescription("Read recent console lines, oldest first"),
			mcp.WithNumber("limit",
				mcp.Description("Maximum number of lines (default 50)"),
			),
		),
		s.handleGetGCodeLog,
	)

	s.mcpServer.AddTool(
		mcp.NewTool("run_gcode",
			mcp.WithDescription("Run a raw G-code script. Prefer the dedicated tools for moves and temperatures."),
			mcp.WithString("script",
				mcp.Required(),
				mcp.Description("G-code script, newline separated (e.g. \"G28\\nG1 Z10 F600\")"),
			),
		),
		s.handleRunGCode,
	)

	s.mcpServer.AddTool(
		mcp.NewTool("home_axes",
			mcp.WithDescription("Home the given axes, or all axes when none are given"),
			mcp.WithArray("axes",
				mcp.Description("Axes to home: x, y and/or z"),
				mcp.Items(map[string]any{"type": "string", "enum": []string{"x", "y", "z"}}),
			),
		),
		s.handleHomeAxes,
	)

	s.mcpServer.AddTool(
		mcp.NewTool("move_axis",
			mcp.WithDescription("Move one homed axis. Give position for an absolute move or distance for a relative one."),
			mcp.WithString("axis",
				mcp.Required(),
				mcp.Enum("x", "y", "z"),
				mcp.Description("Axis to move"),
			),
			mcp.WithNumber("position",
				mcp.Description("Absolute target in mm"),
			),
			mcp.WithNumber("distance",
				mcp.Description("Relative distance in mm"),
			),
			mcp.WithNumber("speed",
				mcp.Required(),
				mcp.Description("Speed in mm/s"),
			),
		),
		s.handleMoveAxis,
	)

	s.mcpServer.AddTool(
		mcp.NewTool("set_heater_temperature",
			mcp.WithDescription("Set a heater target temperature in degrees Celsius. 0 turns it off."),
			mcp.WithString("heater",
				mcp.Required(),
				mcp.Description("Heater object name, e.g. extruder or heater_bed"),
			),
			mcp.WithNumber("target",
				mcp.Required(),
				mcp.Description("Target temperature in degrees Celsius"),
			),
		),
		s.handleSetHeaterTemperature,
	)

	s.mcpServer.AddTool(
		mcp.NewTool("set_fan_speed",
			mcp.WithDescription("Set the part cooling fan speed"),
			mcp.WithNumber("speed",
				mcp.Required(),
				mcp.Description("Fan speed from 0 to 1"),
			),
		),
		s.handleSetFanSpeed,
	)

	s.mcpServer.AddTool(
		mcp.NewTool("extrude",
			mcp.WithDescription("Extrude filament, or retract with a negative distance. The hotend must be hot enough."),
			mcp.WithNumber("distance",
				mcp.Required(),
				mcp.Description("Filament length in mm"),
			),
			mcp.WithNumber("speed",
				mcp.Required(),
				mcp.Description("Filament speed in mm/s"),
			),
		),
		s.handleExtrude,
	)

	s.mcpServer.AddTool(
		mcp.NewTool("run_macro",
			mcp.WithDescription("Run a gcode_macro defined in the printer config"),
			mcp.WithString("name",
				mcp.Required(),
				mcp.Description("Macro name as listed by list_objects"),
			),
		),
		s.handleRunMacro,
	)

	s.mcpServer.AddTool(
		mcp.NewTool("printer_action",
			mcp.WithDescription("Run an argument-free printer action"),
			mcp.WithString("action",
				mcp.Required(),
				mcp.Enum(actionNames()...),
				mcp.Description("Action to run"),
			),
		),
		s.handlePrinterAction,
	)

	s.mcpServer.AddTool(
		mcp.NewTool("call_rpc",
			mcp.WithDescription("Send any Moonraker JSON-RPC method and return its raw result"),
			mcp.WithString("method",
				mcp.Required(),
				mcp.Description("Method name, e.g. server.files.list"),
			),
			mcp.WithObject("params",
				mcp.Description("Method parameters"),
			),
		),
		s.handleCallRPC,
	)
}
