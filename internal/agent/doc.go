// Package agent runs the model-plus-tools loop for one conversation turn.
//
// # Contract
//
// A Runtime is handed a thread ID and the new user text. It owns the whole
// turn: it appends the user turn to the checkpoint sequence, calls the
// model, executes any tools the model requests (checkpointing assistant and
// tool-result turns along the way), and returns the final assistant text.
// The rest of the system treats the runtime as a black box; in particular
// the chat service never inspects how many tool rounds happened.
//
// # Providers
//
//   - AnthropicRuntime: Anthropic Messages API (ANTHROPIC_API_KEY)
//   - OpenAIRuntime: OpenAI Responses API (OPENAI_API_KEY)
//
// Both share the same recording and tool-execution helpers, so a thread's
// checkpoint sequence looks the same regardless of provider.
//
// # Tools
//
// Tools are ToolDefinition values: a name, a description, a JSON Schema
// for the input (derived from a Go struct via GenerateSchema), and a
// handler. Builtins() returns the default set; deployments append their
// own definitions before constructing a runtime. Tool failures are fed
// back to the model as error results, not surfaced to the caller.
package agent
