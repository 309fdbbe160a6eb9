// Package docs registers the OpenAPI description of the moonctl HTTP API
// with swag so gin-swagger can serve it.
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "contact": {},
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/health": {
            "get": {
                "produces": ["application/json"],
                "tags": ["health"],
                "summary": "Health check",
                "responses": {
                    "200": {"description": "Connection ready", "schema": {"$ref": "#/definitions/types.HealthResponse"}},
                    "503": {"description": "Connecting, degraded or disconnected", "schema": {"$ref": "#/definitions/types.HealthResponse"}}
                }
            }
        },
        "/printer": {
            "get": {
                "produces": ["application/json"],
                "tags": ["printer"],
                "summary": "Printer state",
                "responses": {"200": {"description": "OK", "schema": {"type": "object"}}}
            }
        },
        "/printer/objects": {
            "get": {
                "produces": ["application/json"],
                "tags": ["printer"],
                "summary": "Discovered objects",
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/types.ObjectsResponse"}}}
            }
        },
        "/printer/gcodes": {
            "get": {
                "produces": ["application/json"],
                "tags": ["printer"],
                "summary": "Console log",
                "parameters": [
                    {"type": "integer", "description": "Maximum entries", "name": "limit", "in": "query"},
                    {"type": "boolean", "description": "Read from the database", "name": "persisted", "in": "query"}
                ],
                "responses": {"200": {"description": "OK", "schema": {"type": "object"}}}
            }
        },
        "/printer/events": {
            "get": {
                "produces": ["text/event-stream"],
                "tags": ["printer"],
                "summary": "Subscribe to printer events",
                "responses": {"200": {"description": "SSE event stream", "schema": {"type": "string"}}}
            }
        },
        "/printer/gcode": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["control"],
                "summary": "Run a G-code script",
                "parameters": [{"description": "Script", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/types.GCodeRequest"}}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/types.CommandResponse"}},
                    "400": {"description": "Invalid request", "schema": {"$ref": "#/definitions/types.ErrorResponse"}},
                    "502": {"description": "Printer rejected the script", "schema": {"$ref": "#/definitions/types.ErrorResponse"}},
                    "503": {"description": "Printer disconnected", "schema": {"$ref": "#/definitions/types.ErrorResponse"}}
                }
            }
        },
        "/printer/move": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["control"],
                "summary": "Move an axis",
                "parameters": [{"description": "Move", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/types.MoveRequest"}}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/types.CommandResponse"}},
                    "409": {"description": "Axis not homed", "schema": {"$ref": "#/definitions/types.ErrorResponse"}}
                }
            }
        },
        "/printer/temperature": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["control"],
                "summary": "Set a heater target",
                "parameters": [{"description": "Heater target", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/types.TemperatureRequest"}}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/types.CommandResponse"}},
                    "404": {"description": "Unknown heater", "schema": {"$ref": "#/definitions/types.ErrorResponse"}}
                }
            }
        },
        "/printer/emergency_stop": {
            "post": {
                "produces": ["application/json"],
                "tags": ["control"],
                "summary": "Emergency stop",
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/types.CommandResponse"}}}
            }
        },
        "/rpc": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["rpc"],
                "summary": "Raw JSON-RPC call",
                "parameters": [{"description": "Method and params", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/types.RPCRequest"}}],
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "object"}},
                    "502": {"description": "Remote error", "schema": {"$ref": "#/definitions/types.ErrorResponse"}}
                }
            }
        },
        "/discovery": {
            "get": {
                "produces": ["application/json"],
                "tags": ["discovery"],
                "summary": "Find Moonraker hosts",
                "parameters": [{"type": "integer", "description": "Browse duration", "name": "seconds", "in": "query"}],
                "responses": {"200": {"description": "OK", "schema": {"type": "object"}}}
            }
        }
    },
    "definitions": {
        "types.ErrorResponse": {
            "type": "object",
            "properties": {"error": {"type": "string"}, "message": {"type": "string"}}
        },
        "types.HealthResponse": {
            "type": "object",
            "properties": {
                "status": {"type": "string"},
                "connection": {"type": "string"},
                "klippy": {"type": "string"},
                "timestamp": {"type": "string"}
            }
        },
        "types.ObjectsResponse": {
            "type": "object",
            "properties": {"objects": {"type": "array", "items": {"type": "string"}}, "count": {"type": "integer"}}
        },
        "types.CommandResponse": {
            "type": "object",
            "properties": {"status": {"type": "string"}, "command": {"type": "string"}, "timestamp": {"type": "string"}}
        },
        "types.GCodeRequest": {
            "type": "object",
            "properties": {"script": {"type": "string", "example": "G28"}}
        },
        "types.MoveRequest": {
            "type": "object",
            "properties": {
                "axis": {"type": "string", "example": "x"},
                "position": {"type": "number"},
                "distance": {"type": "number"},
                "speed": {"type": "number", "example": 50}
            }
        },
        "types.TemperatureRequest": {
            "type": "object",
            "properties": {"heater": {"type": "string", "example": "extruder"}, "target": {"type": "number", "example": 210}}
        },
        "types.RPCRequest": {
            "type": "object",
            "properties": {"method": {"type": "string", "example": "server.files.list"}, "params": {"type": "object"}}
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "localhost:8080",
	BasePath:         "/api/v1",
	Schemes:          []string{"http", "https"},
	Title:            "moonctl API",
	Description:      "REST API for a Klipper printer behind Moonraker",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
