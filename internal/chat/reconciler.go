// ABOUTME: Reconciler turns raw checkpoint sequences into chat transcripts
// ABOUTME: Pure single-pass filter, no side effects, total over any input

package chat

import (
	"strings"

	"github.com/lunarch/parley/internal/checkpoint"
)

// Roles of a reconciled message, as the HTTP surface exposes them.
const (
	RoleHuman = "human"
	RoleAI    = "ai"
)

// Message is one entry of a reconciled transcript.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Reconcile filters a raw turn sequence down to what a user should see.
//
// User turns become human messages. Assistant turns become ai messages,
// except pure tool-dispatch turns: an assistant turn that requested tools
// and has no visible text is dropped. An assistant turn that narrates
// before calling a tool keeps its text. Tool call/result turns and turns of
// unknown kind never surface. An empty or nil input yields an empty,
// non-nil transcript.
func Reconcile(turns []*checkpoint.Turn) []Message {
	msgs := make([]Message, 0, len(turns))
	for _, turn := range turns {
		switch turn.Kind {
		case checkpoint.KindUser:
			msgs = append(msgs, Message{Role: RoleHuman, Content: turn.Content})
		case checkpoint.KindAssistant:
			if turn.HasToolCalls() && strings.TrimSpace(turn.Content) == "" {
				continue
			}
			msgs = append(msgs, Message{Role: RoleAI, Content: turn.Content})
		case checkpoint.KindToolCall, checkpoint.KindToolResult:
			// turn-internal traffic, never part of the transcript
		default:
			// unknown kinds are skipped, not surfaced as errors
		}
	}
	return msgs
}
