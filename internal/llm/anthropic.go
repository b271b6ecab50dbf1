package llm

import (
	"context"
	"fmt"

	"github.com/liushuangls/go-anthropic/v2"
)

// AnthropicProvider talks to the Anthropic Messages API.
type AnthropicProvider struct {
	client *anthropic.Client
	model  string
}

// AnthropicModels are the Claude models the provider accepts.
var AnthropicModels = []Model{
	{ID: "claude-sonnet-4-20250514", Name: "Claude Sonnet 4", ContextWindow: 200000},
	{ID: "claude-3-5-sonnet-20241022", Name: "Claude 3.5 Sonnet", ContextWindow: 200000},
	{ID: "claude-3-5-haiku-20241022", Name: "Claude 3.5 Haiku", ContextWindow: 200000},
	{ID: "claude-3-opus-20240229", Name: "Claude 3 Opus", ContextWindow: 200000},
}

func NewAnthropicProvider(apiKey string, model string) (*AnthropicProvider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("API key is required")
	}
	if model == "" {
		model = "claude-3-5-sonnet-20241022"
	}
	return &AnthropicProvider{client: anthropic.NewClient(apiKey), model: model}, nil
}

func (p *AnthropicProvider) ID() ProviderID       { return ProviderAnthropic }
func (p *AnthropicProvider) Name() string         { return "Anthropic" }
func (p *AnthropicProvider) Models() []Model      { return AnthropicModels }
func (p *AnthropicProvider) DefaultModel() string { return p.model }

func (p *AnthropicProvider) SetModel(modelID string) error {
	if err := ValidateModelID(modelID, p.Models()); err != nil {
		return err
	}
	p.model = modelID
	return nil
}

func (p *AnthropicProvider) Chat(ctx context.Context, req *ChatRequest) (*ChatResponse, error) {
	return p.send(ctx, req, p.conversationMessages(req, nil, nil))
}

func (p *AnthropicProvider) ChatWithToolResults(ctx context.Context, req *ChatRequest, toolCalls []ToolCall, toolResults []ToolResult) (*ChatResponse, error) {
	return p.send(ctx, req, p.conversationMessages(req, toolCalls, toolResults))
}

// conversationMessages converts the request history to Anthropic messages and,
// when present, appends the assistant tool_use turn plus a user turn carrying
// the tool results.
func (p *AnthropicProvider) conversationMessages(req *ChatRequest, toolCalls []ToolCall, toolResults []ToolResult) []anthropic.Message {
	messages := make([]anthropic.Message, 0, len(req.Messages)+2)
	for _, msg := range req.Messages {
		role := anthropic.RoleUser
		if msg.Role == "assistant" {
			role = anthropic.RoleAssistant
		}
		messages = append(messages, anthropic.Message{
			Role:    role,
			Content: []anthropic.MessageContent{anthropic.NewTextMessageContent(msg.Content)},
		})
	}

	if len(toolCalls) > 0 {
		var toolUse []anthropic.MessageContent
		for _, tc := range toolCalls {
			toolUse = append(toolUse, anthropic.NewToolUseMessageContent(tc.ID, tc.Name, tc.Input))
		}
		messages = append(messages, anthropic.Message{Role: anthropic.RoleAssistant, Content: toolUse})
	}

	if len(toolResults) > 0 {
		results := make([]anthropic.MessageContent, len(toolResults))
		for i, result := range toolResults {
			results[i] = anthropic.NewToolResultMessageContent(result.ToolUseID, result.Content, result.IsError)
		}
		messages = append(messages, anthropic.Message{Role: anthropic.RoleUser, Content: results})
	}
	return messages
}

func (p *AnthropicProvider) send(ctx context.Context, req *ChatRequest, messages []anthropic.Message) (*ChatResponse, error) {
	model := req.Model
	if model == "" {
		model = p.model
	}
	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = defaultMaxTokens
	}

	anthropicReq := anthropic.MessagesRequest{
		Model:     anthropic.Model(model),
		MaxTokens: maxTokens,
		System:    req.SystemPrompt,
		Messages:  messages,
	}
	if len(req.Tools) > 0 {
		tools := make([]anthropic.ToolDefinition, len(req.Tools))
		for i, tool := range req.Tools {
			tools[i] = anthropic.ToolDefinition{
				Name:        tool.Name,
				Description: tool.Description,
				InputSchema: tool.InputSchema,
			}
		}
		anthropicReq.Tools = tools
	}

	resp, err := p.client.CreateMessages(ctx, anthropicReq)
	if err != nil {
		return nil, fmt.Errorf("failed to create message: %w", err)
	}

	response := &ChatResponse{
		StopReason: string(resp.StopReason),
		Usage: Usage{
			InputTokens:  resp.Usage.InputTokens,
			OutputTokens: resp.Usage.OutputTokens,
		},
	}
	for _, content := range resp.Content {
		switch content.Type {
		case anthropic.MessagesContentTypeText:
			if content.Text != nil {
				response.Content = *content.Text
			}
		case anthropic.MessagesContentTypeToolUse:
			response.ToolCalls = append(response.ToolCalls, ToolCall{
				ID:    content.ID,
				Name:  content.Name,
				Input: content.Input,
			})
		}
	}
	return response, nil
}
