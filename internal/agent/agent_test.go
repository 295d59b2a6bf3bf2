// ABOUTME: Tests for shared runtime helpers
// ABOUTME: Covers history flattening and checkpoint turn recording

package agent

import (
	"context"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lunarch/parley/internal/checkpoint"
)

func newTestLog(t *testing.T) *checkpoint.SQLiteLog {
	t.Helper()
	log, err := checkpoint.NewSQLiteLog(filepath.Join(t.TempDir(), "checkpoints.db"))
	require.NoError(t, err)
	t.Cleanup(func() { log.Close() })
	return log
}

func TestPriorMessages_SkipsToolTraffic(t *testing.T) {
	turns := []*checkpoint.Turn{
		{Kind: checkpoint.KindUser, Content: "what's the time?"},
		{Kind: checkpoint.KindAssistant, Content: "", ToolCallsJSON: `[{"id":"1","name":"current_time","input":{}}]`},
		{Kind: checkpoint.KindToolResult, Content: "Tue, 30 Aug 2026"},
		{Kind: checkpoint.KindAssistant, Content: "It is Tuesday."},
		{Kind: checkpoint.KindUnknown, Content: "???"},
	}

	msgs := priorMessages(turns)
	require.Len(t, msgs, 2)
	assert.Equal(t, "user", msgs[0].Role)
	assert.Equal(t, "what's the time?", msgs[0].Text)
	assert.Equal(t, "assistant", msgs[1].Role)
	assert.Equal(t, "It is Tuesday.", msgs[1].Text)
}

func TestPriorMessages_BlankAssistantSkipped(t *testing.T) {
	turns := []*checkpoint.Turn{
		{Kind: checkpoint.KindAssistant, Content: "   "},
	}
	assert.Empty(t, priorMessages(turns))
}

func TestRecorder_RoundTrip(t *testing.T) {
	log := newTestLog(t)
	rec := &recorder{log: log, logger: slog.Default()}

	require.NoError(t, rec.recordUser("key-1", "hello"))
	require.NoError(t, rec.recordAssistant("key-1", "", []ToolCall{
		{ID: "call-1", Name: "current_time", Input: []byte(`{}`)},
	}))
	require.NoError(t, rec.recordToolResult("key-1", "noon"))
	require.NoError(t, rec.recordAssistant("key-1", "It is noon.", nil))

	turns, err := log.Turns(context.Background(), "key-1")
	require.NoError(t, err)
	require.Len(t, turns, 4)

	assert.Equal(t, checkpoint.KindUser, turns[0].Kind)
	assert.Equal(t, checkpoint.KindAssistant, turns[1].Kind)
	assert.True(t, turns[1].HasToolCalls())
	assert.Contains(t, turns[1].ToolCallsJSON, "current_time")
	assert.Equal(t, checkpoint.KindToolResult, turns[2].Kind)
	assert.Equal(t, checkpoint.KindAssistant, turns[3].Kind)
	assert.False(t, turns[3].HasToolCalls())
	assert.Equal(t, "It is noon.", turns[3].Content)
}
