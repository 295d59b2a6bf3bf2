// ABOUTME: Tool contracts for the agent runtime
// ABOUTME: ToolDefinition, JSON-schema generation, and the builtin registry

package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/invopop/jsonschema"
)

// ToolDefinition describes one callable tool: its name, what it does, the
// JSON Schema of its input, and the handler. Definitions are provider
// neutral; each runtime adapts them to its SDK's tool param type.
type ToolDefinition struct {
	Name        string
	Description string
	InputSchema map[string]any
	Function    func(ctx context.Context, input json.RawMessage) (string, error)
}

// GenerateSchema derives a JSON Schema object from a Go struct type.
func GenerateSchema[T any]() map[string]any {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}
	var v T
	schema := reflector.Reflect(v)

	b, err := json.Marshal(schema)
	if err != nil {
		return map[string]any{"type": "object"}
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		return map[string]any{"type": "object"}
	}
	return m
}

// Builtins returns the tool definitions wired by default. Deployments
// extend the agent by appending their own definitions (search, SQL, ...)
// before constructing a runtime.
func Builtins() []ToolDefinition {
	return []ToolDefinition{CurrentTimeDefinition}
}

// CurrentTimeInput is the input for the current_time tool.
type CurrentTimeInput struct {
	Timezone string `json:"timezone,omitempty" jsonschema_description:"IANA timezone name, e.g. Europe/Madrid. Defaults to UTC."`
}

// CurrentTimeDefinition reports the current time, optionally in a given zone.
var CurrentTimeDefinition = ToolDefinition{
	Name:        "current_time",
	Description: "Get the current date and time. Accepts an optional IANA timezone name.",
	InputSchema: GenerateSchema[CurrentTimeInput](),
	Function:    CurrentTime,
}

// CurrentTime implements the current_time tool.
func CurrentTime(_ context.Context, input json.RawMessage) (string, error) {
	var in CurrentTimeInput
	if len(input) > 0 {
		if err := json.Unmarshal(input, &in); err != nil {
			return "", err
		}
	}

	loc := time.UTC
	if in.Timezone != "" {
		var err error
		loc, err = time.LoadLocation(in.Timezone)
		if err != nil {
			return "", fmt.Errorf("unknown timezone %q: %w", in.Timezone, err)
		}
	}
	return time.Now().In(loc).Format(time.RFC1123), nil
}

// execTool runs the named tool from defs and returns its output plus an
// error flag. Unknown tools and handler failures become error results fed
// back to the model rather than aborting the turn.
func execTool(ctx context.Context, defs []ToolDefinition, name string, input json.RawMessage) (string, bool) {
	for i := range defs {
		if defs[i].Name != name {
			continue
		}
		out, err := defs[i].Function(ctx, input)
		if err != nil {
			return err.Error(), true
		}
		return out, false
	}
	return fmt.Sprintf("tool %q not found", name), true
}
