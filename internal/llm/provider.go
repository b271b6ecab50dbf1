package llm

import (
	"context"
	"encoding/json"
	"fmt"
)

// ProviderID identifies an LLM backend.
type ProviderID string

const (
	ProviderAnthropic ProviderID = "anthropic"
	ProviderOpenAI    ProviderID = "openai"
	ProviderGemini    ProviderID = "gemini"
)

// Provider abstracts one LLM backend behind a common chat surface.
type Provider interface {
	ID() ProviderID

	// Name is the human-readable provider name shown in the UI.
	Name() string

	// Chat runs one completion over the request history.
	Chat(ctx context.Context, req *ChatRequest) (*ChatResponse, error)

	// ChatWithToolResults continues a conversation after tools have been executed.
	ChatWithToolResults(ctx context.Context, req *ChatRequest, toolCalls []ToolCall, toolResults []ToolResult) (*ChatResponse, error)

	// Models lists the models this provider accepts.
	Models() []Model

	// DefaultModel is the model used when a request names none.
	DefaultModel() string

	// SetModel switches the active model, rejecting IDs not in Models.
	SetModel(modelID string) error
}

// Model describes one selectable model.
type Model struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	ContextWindow int    `json:"context_window"`
}

// Message is one turn of conversation history.
type Message struct {
	Role    string `json:"role"` // "user" or "assistant"
	Content string `json:"content"`
}

// Tool describes a callable tool: its name, what it does, and the JSON
// Schema of its input.
type Tool struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	InputSchema json.RawMessage `json:"input_schema"`
}

// ToolCall represents a tool call requested by the model
type ToolCall struct {
	ID    string          `json:"id"`
	Name  string          `json:"name"`
	Input json.RawMessage `json:"input"`
}

// ToolResult carries the outcome of one tool call back to the model, keyed by
// the call ID so the model can correlate it with its request.
type ToolResult struct {
	ToolUseID string `json:"tool_use_id"`
	Content   string `json:"content"`
	IsError   bool   `json:"is_error"`
}

// ChatRequest is a provider-agnostic completion request.
type ChatRequest struct {
	SystemPrompt string    `json:"system_prompt"`
	Messages     []Message `json:"messages"`
	Tools        []Tool    `json:"tools,omitempty"`
	Model        string    `json:"model,omitempty"` // Uses default if empty
	MaxTokens    int       `json:"max_tokens,omitempty"`
}

// ChatResponse is the provider-agnostic completion result.
type ChatResponse struct {
	Content    string     `json:"content"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	StopReason string     `json:"stop_reason"`
	Usage      Usage      `json:"usage"`
}

type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

const defaultMaxTokens = 4096

// EnvVarForProvider names the environment variable holding a provider's API key.
func EnvVarForProvider(id ProviderID) string {
	switch id {
	case ProviderAnthropic:
		return "ANTHROPIC_API_KEY"
	case ProviderOpenAI:
		return "OPENAI_API_KEY"
	case ProviderGemini:
		return "GOOGLE_API_KEY"
	default:
		return ""
	}
}

// AllProviderIDs lists the known providers in priority order.
func AllProviderIDs() []ProviderID {
	return []ProviderID{ProviderAnthropic, ProviderOpenAI, ProviderGemini}
}

// ValidateModelID checks whether modelID exists in the given model list.
func ValidateModelID(modelID string, models []Model) error {
	for _, m := range models {
		if m.ID == modelID {
			return nil
		}
	}
	return fmt.Errorf("unknown model %q for this provider", modelID)
}
