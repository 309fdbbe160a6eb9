// Package schema validates printer command payloads against JSON Schema
// documents before they reach the session.
package schema

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/urmzd/moonctl/pkg/device"
)

//go:embed commands/*.json
var commandFS embed.FS

// Command names with a bundled schema.
const (
	CommandGCode       = "gcode"
	CommandHome        = "home"
	CommandMove        = "move"
	CommandTemperature = "temperature"
	CommandExtrude     = "extrude"
	CommandFan         = "fan"
	CommandZOffset     = "z_offset"
	CommandFactor      = "factor"
	CommandRPC         = "rpc"
)

// Validator validates JSON payloads against JSON Schema documents.
// Compiled schemas are cached by their raw bytes.
type Validator struct {
	mu    sync.RWMutex
	cache map[string]*jsonschema.Schema
}

func NewValidator() *Validator {
	return &Validator{
		cache: make(map[string]*jsonschema.Schema),
	}
}

// Validate checks payload against schemaDoc. An empty or null document
// accepts anything.
func (v *Validator) Validate(schemaDoc json.RawMessage, payload map[string]any) error {
	if len(schemaDoc) == 0 || string(schemaDoc) == "{}" || string(schemaDoc) == "null" {
		return nil
	}

	compiled, err := v.compile(schemaDoc)
	if err != nil {
		return fmt.Errorf("failed to compile schema: %w", err)
	}

	if err := compiled.Validate(payload); err != nil {
		return fmt.Errorf("%w: %v", device.ErrValidation, err)
	}
	return nil
}

// CommandSchema returns the bundled schema for a command.
func CommandSchema(command string) (json.RawMessage, error) {
	data, err := commandFS.ReadFile("commands/" + command + ".json")
	if err != nil {
		return nil, fmt.Errorf("no schema for command %q", command)
	}
	return data, nil
}

// ValidateCommand checks payload against the bundled schema for command.
func (v *Validator) ValidateCommand(command string, payload map[string]any) error {
	doc, err := CommandSchema(command)
	if err != nil {
		return err
	}
	return v.Validate(doc, payload)
}

func (v *Validator) compile(schemaDoc json.RawMessage) (*jsonschema.Schema, error) {
	key := string(schemaDoc)

	v.mu.RLock()
	s, ok := v.cache[key]
	v.mu.RUnlock()
	if ok {
		return s, nil
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	if s, ok := v.cache[key]; ok {
		return s, nil
	}

	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(schemaDoc))
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal schema: %w", err)
	}

	c := jsonschema.NewCompiler()
	if err := c.AddResource("command.json", doc); err != nil {
		return nil, fmt.Errorf("failed to add resource: %w", err)
	}
	compiled, err := c.Compile("command.json")
	if err != nil {
		return nil, fmt.Errorf("failed to compile: %w", err)
	}

	v.cache[key] = compiled
	return compiled, nil
}
