// ABOUTME: Tests for tool contracts and the builtin registry
// ABOUTME: Covers schema generation, tool execution, and error results

package agent

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateSchema(t *testing.T) {
	type input struct {
		Query string `json:"query" jsonschema_description:"What to look for."`
		Limit int    `json:"limit,omitempty"`
	}

	schema := GenerateSchema[input]()

	assert.Equal(t, "object", schema["type"])
	props, ok := schema["properties"].(map[string]any)
	require.True(t, ok, "schema has no properties object")
	assert.Contains(t, props, "query")
	assert.Contains(t, props, "limit")
}

func TestCurrentTime(t *testing.T) {
	out, err := CurrentTime(context.Background(), json.RawMessage(`{}`))
	require.NoError(t, err)
	assert.NotEmpty(t, out)
}

func TestCurrentTime_Timezone(t *testing.T) {
	out, err := CurrentTime(context.Background(), json.RawMessage(`{"timezone":"UTC"}`))
	require.NoError(t, err)
	assert.Contains(t, out, "UTC")
}

func TestCurrentTime_BadTimezone(t *testing.T) {
	_, err := CurrentTime(context.Background(), json.RawMessage(`{"timezone":"Mars/Olympus"}`))
	require.Error(t, err)
}

func TestExecTool(t *testing.T) {
	defs := []ToolDefinition{
		{
			Name: "echo",
			Function: func(_ context.Context, input json.RawMessage) (string, error) {
				return string(input), nil
			},
		},
		{
			Name: "fail",
			Function: func(_ context.Context, _ json.RawMessage) (string, error) {
				return "", errors.New("boom")
			},
		},
	}

	out, isErr := execTool(context.Background(), defs, "echo", json.RawMessage(`{"a":1}`))
	assert.False(t, isErr)
	assert.Equal(t, `{"a":1}`, out)

	out, isErr = execTool(context.Background(), defs, "fail", nil)
	assert.True(t, isErr)
	assert.Equal(t, "boom", out)

	out, isErr = execTool(context.Background(), defs, "missing", nil)
	assert.True(t, isErr)
	assert.Contains(t, out, "not found")
}

func TestBuiltins(t *testing.T) {
	defs := Builtins()
	require.NotEmpty(t, defs)
	for _, def := range defs {
		assert.NotEmpty(t, def.Name)
		assert.NotEmpty(t, def.Description)
		assert.NotNil(t, def.Function)
		assert.NotNil(t, def.InputSchema)
	}
}
