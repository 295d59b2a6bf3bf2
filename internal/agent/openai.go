// ABOUTME: OpenAI-backed Runtime implementation over the Responses API
// ABOUTME: Same tool-loop and checkpointing contract as the Anthropic runtime

package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	openai "github.com/openai/openai-go"
	oresponses "github.com/openai/openai-go/responses"
	oshared "github.com/openai/openai-go/shared"

	"github.com/lunarch/parley/internal/checkpoint"
)

// OpenAIRuntime implements Runtime over the OpenAI Responses API.
// The SDK client reads OPENAI_API_KEY from the environment.
type OpenAIRuntime struct {
	client    openai.Client
	rec       *recorder
	chk       checkpoint.Log
	model     string
	system    string
	maxRounds int
	tools     []ToolDefinition
	logger    *slog.Logger
}

var _ Runtime = (*OpenAIRuntime)(nil)

// NewOpenAIRuntime creates a runtime that checkpoints into chk.
func NewOpenAIRuntime(chk checkpoint.Log, opts Options) *OpenAIRuntime {
	logger := slog.Default().With("component", "agent", "provider", "openai")

	maxRounds := opts.MaxToolRounds
	if maxRounds <= 0 {
		maxRounds = 8
	}
	model := opts.Model
	if model == "" {
		model = "gpt-4o-mini"
	}

	return &OpenAIRuntime{
		client:    openai.NewClient(),
		rec:       &recorder{log: chk, logger: logger},
		chk:       chk,
		model:     model,
		system:    opts.SystemPrompt,
		maxRounds: maxRounds,
		tools:     opts.Tools,
		logger:    logger,
	}
}

// RunTurn executes one agent turn for the thread.
func (r *OpenAIRuntime) RunTurn(ctx context.Context, threadID, userText string) (string, error) {
	prior, err := r.chk.Turns(ctx, threadID)
	if err != nil {
		return "", fmt.Errorf("loading checkpoint: %w", err)
	}

	items := make(oresponses.ResponseInputParam, 0, len(prior)+1)
	for _, m := range priorMessages(prior) {
		role := oresponses.EasyInputMessageRoleUser
		if m.Role == "assistant" {
			role = oresponses.EasyInputMessageRoleAssistant
		}
		items = append(items, oresponses.ResponseInputItemParamOfMessage(m.Text, role))
	}

	// Record the user turn before calling the model; a model failure must
	// not lose what the user said.
	if err := r.rec.recordUser(threadID, userText); err != nil {
		return "", fmt.Errorf("recording user turn: %w", err)
	}
	items = append(items, oresponses.ResponseInputItemParamOfMessage(userText, oresponses.EasyInputMessageRoleUser))

	for round := 0; round < r.maxRounds; round++ {
		params := oresponses.ResponseNewParams{
			Model:           oshared.ResponsesModel(r.model),
			MaxOutputTokens: openai.Int(defaultMaxTokens),
			Input:           oresponses.ResponseNewParamsInputUnion{OfInputItemList: items},
		}
		if r.system != "" {
			params.Instructions = openai.String(r.system)
		}
		if len(r.tools) > 0 {
			params.Tools = r.openaiTools()
		}

		resp, err := r.client.Responses.New(ctx, params)
		if err != nil {
			return "", fmt.Errorf("openai request: %w", err)
		}

		text, calls := splitResponse(resp)
		r.rec.recordAssistant(threadID, text, calls)

		if len(calls) == 0 {
			r.logger.Debug("turn complete", "thread_id", threadID, "rounds", round+1)
			return text, nil
		}

		// Replay the function calls and feed their outputs back
		for _, call := range calls {
			items = append(items, oresponses.ResponseInputItemParamOfFunctionCall(string(call.Input), call.ID, call.Name))
		}
		for _, call := range calls {
			output, _ := execTool(ctx, r.tools, call.Name, call.Input)
			r.rec.recordToolResult(threadID, output)
			items = append(items, oresponses.ResponseInputItemParamOfFunctionCallOutput(call.ID, output))
		}
	}

	return "", fmt.Errorf("%w (%d)", ErrToolLoopExceeded, r.maxRounds)
}

func (r *OpenAIRuntime) openaiTools() []oresponses.ToolUnionParam {
	out := make([]oresponses.ToolUnionParam, 0, len(r.tools))
	for _, t := range r.tools {
		out = append(out, oresponses.ToolParamOfFunction(t.Name, t.InputSchema, false))
	}
	return out
}

// splitResponse separates a response into its visible text and the
// function calls it requested.
func splitResponse(resp *oresponses.Response) (string, []ToolCall) {
	var sb strings.Builder
	var calls []ToolCall
	for _, item := range resp.Output {
		switch strings.TrimSpace(item.Type) {
		case "message":
			msg := item.AsMessage()
			for _, part := range msg.Content {
				if strings.TrimSpace(part.Type) != "output_text" {
					continue
				}
				if sb.Len() > 0 {
					sb.WriteString("\n")
				}
				sb.WriteString(part.Text)
			}
		case "function_call":
			callID := strings.TrimSpace(item.CallID)
			if callID == "" {
				callID = strings.TrimSpace(item.ID)
			}
			calls = append(calls, ToolCall{
				ID:    callID,
				Name:  strings.TrimSpace(item.Name),
				Input: json.RawMessage(item.Arguments),
			})
		}
	}
	return sb.String(), calls
}
