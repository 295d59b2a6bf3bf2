// ABOUTME: Checkpoint store types for raw conversation turn sequences
// ABOUTME: Defines Turn, the closed Kind enum, and the Log interface

package checkpoint

import (
	"context"
	"strings"
	"time"
)

// Kind tags a turn in the raw conversation sequence. The set is closed:
// anything read from storage that is not one of these is treated as
// KindUnknown and skipped by consumers.
type Kind string

const (
	KindUser       Kind = "user"
	KindAssistant  Kind = "assistant"
	KindToolCall   Kind = "tool_call"
	KindToolResult Kind = "tool_result"
	KindUnknown    Kind = "unknown"
)

// ParseKind maps a stored kind string onto the closed enum.
func ParseKind(s string) Kind {
	switch Kind(s) {
	case KindUser, KindAssistant, KindToolCall, KindToolResult:
		return Kind(s)
	default:
		return KindUnknown
	}
}

// Turn is one entry in a thread's raw conversation sequence. Turns are
// append-only and ordered by Seq within a thread key.
type Turn struct {
	ID        string
	ThreadKey string
	Kind      Kind
	Content   string
	// ToolCallsJSON holds the JSON-encoded tool call list for assistant
	// turns that requested tools. Empty otherwise.
	ToolCallsJSON string
	Seq           int64
	CreatedAt     time.Time
}

// HasToolCalls reports whether this turn carries at least one tool call.
func (t *Turn) HasToolCalls() bool {
	s := strings.TrimSpace(t.ToolCallsJSON)
	return s != "" && s != "[]" && s != "null"
}

// Log defines the interface for turn persistence. Keys are opaque strings;
// callers use the stringified thread ID from the identity store, but the
// log itself has no notion of threads, users, or ownership.
type Log interface {
	// Append stores a turn at the end of the key's sequence, assigning
	// Turn.Seq.
	Append(ctx context.Context, turn *Turn) error

	// Turns returns the full sequence for a key in stored order. An
	// unknown key yields an empty slice, not an error.
	Turns(ctx context.Context, threadKey string) ([]*Turn, error)

	// Close releases any resources held by the log
	Close() error
}
