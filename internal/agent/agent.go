// ABOUTME: Agent runtime contract and shared turn-recording helpers
// ABOUTME: Defines the Runtime interface and checkpoint persistence common to providers

package agent

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/lunarch/parley/internal/checkpoint"
)

// ErrToolLoopExceeded is returned when the model keeps requesting tools
// past the configured round limit.
var ErrToolLoopExceeded = errors.New("tool loop exceeded maximum rounds")

// Runtime executes one user-visible turn of the agent loop for a thread.
//
// RunTurn appends the user turn to the checkpoint sequence, runs the model
// and its tool-calling loop to completion (zero or more tool rounds, each
// persisted as it happens), appends the final assistant turn, and returns
// that turn's text. Callers must not assume anything about how many
// internal rounds occurred.
type Runtime interface {
	RunTurn(ctx context.Context, threadID, userText string) (string, error)
}

// ToolCall is the persisted record of one tool invocation requested by an
// assistant turn. A JSON array of these lands in Turn.ToolCallsJSON.
type ToolCall struct {
	ID    string          `json:"id"`
	Name  string          `json:"name"`
	Input json.RawMessage `json:"input"`
}

// recorder persists turns to the checkpoint log as the loop progresses.
// Each append uses its own short timeout so a cancelled request can't
// leave the already-computed part of a turn unrecorded.
type recorder struct {
	log    checkpoint.Log
	logger *slog.Logger
}

const recordTimeout = 5 * time.Second

func (r *recorder) record(threadKey string, kind checkpoint.Kind, content, toolCallsJSON string) error {
	ctx, cancel := context.WithTimeout(context.Background(), recordTimeout)
	defer cancel()

	turn := &checkpoint.Turn{
		ID:            uuid.New().String(),
		ThreadKey:     threadKey,
		Kind:          kind,
		Content:       content,
		ToolCallsJSON: toolCallsJSON,
	}
	if err := r.log.Append(ctx, turn); err != nil {
		r.logger.Error("failed to record turn",
			"error", err,
			"thread_key", threadKey,
			"kind", kind)
		return err
	}
	return nil
}

func (r *recorder) recordUser(threadKey, content string) error {
	return r.record(threadKey, checkpoint.KindUser, content, "")
}

func (r *recorder) recordAssistant(threadKey, content string, calls []ToolCall) error {
	toolCallsJSON := ""
	if len(calls) > 0 {
		b, err := json.Marshal(calls)
		if err != nil {
			r.logger.Error("failed to marshal tool calls", "error", err)
		} else {
			toolCallsJSON = string(b)
		}
	}
	return r.record(threadKey, checkpoint.KindAssistant, content, toolCallsJSON)
}

func (r *recorder) recordToolResult(threadKey, content string) error {
	return r.record(threadKey, checkpoint.KindToolResult, content, "")
}

// priorMessage is a provider-neutral view of one history entry fed back to
// the model on the next turn. Only user and assistant text survives across
// turns; tool traffic is transient within the turn that produced it.
type priorMessage struct {
	Role string // "user" or "assistant"
	Text string
}

// priorMessages flattens a checkpoint sequence into model-ready history.
func priorMessages(turns []*checkpoint.Turn) []priorMessage {
	msgs := make([]priorMessage, 0, len(turns))
	for _, turn := range turns {
		switch turn.Kind {
		case checkpoint.KindUser:
			msgs = append(msgs, priorMessage{Role: "user", Text: turn.Content})
		case checkpoint.KindAssistant:
			if strings.TrimSpace(turn.Content) == "" {
				continue
			}
			msgs = append(msgs, priorMessage{Role: "assistant", Text: turn.Content})
		default:
			// tool_call / tool_result / unknown stay out of the replayed context
		}
	}
	return msgs
}
