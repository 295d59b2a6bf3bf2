// ABOUTME: Anthropic-backed Runtime implementation
// ABOUTME: Runs the Messages API tool loop, checkpointing every turn as it happens

package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"

	"github.com/lunarch/parley/internal/checkpoint"
)

const defaultMaxTokens = 1024

// Options configures a runtime.
type Options struct {
	Model         string
	SystemPrompt  string
	MaxToolRounds int
	Tools         []ToolDefinition
}

// AnthropicRuntime implements Runtime over the Anthropic Messages API.
// The SDK client reads ANTHROPIC_API_KEY from the environment.
type AnthropicRuntime struct {
	client    *anthropic.Client
	rec       *recorder
	chk       checkpoint.Log
	model     anthropic.Model
	system    string
	maxRounds int
	tools     []ToolDefinition
	logger    *slog.Logger
}

var _ Runtime = (*AnthropicRuntime)(nil)

// NewAnthropicRuntime creates a runtime that checkpoints into chk.
func NewAnthropicRuntime(chk checkpoint.Log, opts Options) *AnthropicRuntime {
	logger := slog.Default().With("component", "agent", "provider", "anthropic")
	client := anthropic.NewClient()

	maxRounds := opts.MaxToolRounds
	if maxRounds <= 0 {
		maxRounds = 8
	}
	model := anthropic.Model(opts.Model)
	if opts.Model == "" {
		model = anthropic.ModelClaude3_7SonnetLatest
	}

	return &AnthropicRuntime{
		client:    &client,
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
func (r *AnthropicRuntime) RunTurn(ctx context.Context, threadID, userText string) (string, error) {
	prior, err := r.chk.Turns(ctx, threadID)
	if err != nil {
		return "", fmt.Errorf("loading checkpoint: %w", err)
	}

	conv := make([]anthropic.MessageParam, 0, len(prior)+1)
	for _, m := range priorMessages(prior) {
		if m.Role == "user" {
			conv = append(conv, anthropic.NewUserMessage(anthropic.NewTextBlock(m.Text)))
		} else {
			conv = append(conv, anthropic.NewAssistantMessage(anthropic.NewTextBlock(m.Text)))
		}
	}

	// Record the user turn before calling the model; a model failure must
	// not lose what the user said.
	if err := r.rec.recordUser(threadID, userText); err != nil {
		return "", fmt.Errorf("recording user turn: %w", err)
	}
	conv = append(conv, anthropic.NewUserMessage(anthropic.NewTextBlock(userText)))

	for round := 0; round < r.maxRounds; round++ {
		params := anthropic.MessageNewParams{
			Model:     r.model,
			MaxTokens: int64(defaultMaxTokens),
			Messages:  conv,
		}
		if r.system != "" {
			params.System = []anthropic.TextBlockParam{{Text: r.system}}
		}
		if len(r.tools) > 0 {
			params.Tools = r.anthropicTools()
		}

		msg, err := r.client.Messages.New(ctx, params)
		if err != nil {
			return "", fmt.Errorf("anthropic request: %w", err)
		}

		text, calls := splitContent(msg)
		r.rec.recordAssistant(threadID, text, calls)

		if len(calls) == 0 {
			r.logger.Debug("turn complete", "thread_id", threadID, "rounds", round+1)
			return text, nil
		}

		// Execute the requested tools and hand the results back
		conv = append(conv, msg.ToParam())
		results := make([]anthropic.ContentBlockParamUnion, 0, len(calls))
		for _, call := range calls {
			output, isErr := execTool(ctx, r.tools, call.Name, call.Input)
			r.rec.recordToolResult(threadID, output)
			results = append(results, anthropic.NewToolResultBlock(call.ID, output, isErr))
		}
		conv = append(conv, anthropic.NewUserMessage(results...))
	}

	return "", fmt.Errorf("%w (%d)", ErrToolLoopExceeded, r.maxRounds)
}

func (r *AnthropicRuntime) anthropicTools() []anthropic.ToolUnionParam {
	out := make([]anthropic.ToolUnionParam, 0, len(r.tools))
	for _, t := range r.tools {
		out = append(out, anthropic.ToolUnionParam{OfTool: &anthropic.ToolParam{
			Name:        t.Name,
			Description: anthropic.String(t.Description),
			InputSchema: anthropic.ToolInputSchemaParam{Properties: t.InputSchema["properties"]},
		}})
	}
	return out
}

// splitContent separates a response message into its visible text and the
// tool calls it requested.
func splitContent(msg *anthropic.Message) (string, []ToolCall) {
	var parts []string
	var calls []ToolCall
	for _, block := range msg.Content {
		switch v := block.AsAny().(type) {
		case anthropic.TextBlock:
			if v.Text != "" {
				parts = append(parts, v.Text)
			}
		case anthropic.ToolUseBlock:
			calls = append(calls, ToolCall{
				ID:    v.ID,
				Name:  v.Name,
				Input: json.RawMessage(v.JSON.Input.Raw()),
			})
		}
	}
	return strings.Join(parts, "\n"), calls
}
