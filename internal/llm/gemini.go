package llm

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// GeminiProvider talks to the Gemini API through the official client.
type GeminiProvider struct {
	client *genai.Client
	model  string
}

// GeminiModels are the models the provider accepts.
var GeminiModels = []Model{
	{ID: "gemini-2.0-flash", Name: "Gemini 2.0 Flash", ContextWindow: 1000000},
	{ID: "gemini-1.5-pro", Name: "Gemini 1.5 Pro", ContextWindow: 2000000},
	{ID: "gemini-1.5-flash", Name: "Gemini 1.5 Flash", ContextWindow: 1000000},
}

func NewGeminiProvider(ctx context.Context, apiKey string, model string) (*GeminiProvider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("API key is required")
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	if model == "" {
		model = "gemini-2.0-flash"
	}
	return &GeminiProvider{client: client, model: model}, nil
}

func (p *GeminiProvider) ID() ProviderID       { return ProviderGemini }
func (p *GeminiProvider) Name() string         { return "Gemini" }
func (p *GeminiProvider) Models() []Model      { return GeminiModels }
func (p *GeminiProvider) DefaultModel() string { return p.model }

func (p *GeminiProvider) SetModel(modelID string) error {
	if err := ValidateModelID(modelID, p.Models()); err != nil {
		return err
	}
	p.model = modelID
	return nil
}

// Close releases the underlying API client.
func (p *GeminiProvider) Close() error {
	return p.client.Close()
}

func (p *GeminiProvider) Chat(ctx context.Context, req *ChatRequest) (*ChatResponse, error) {
	return p.send(ctx, req, nil, nil)
}

func (p *GeminiProvider) ChatWithToolResults(ctx context.Context, req *ChatRequest, toolCalls []ToolCall, toolResults []ToolResult) (*ChatResponse, error) {
	return p.send(ctx, req, toolCalls, toolResults)
}

func (p *GeminiProvider) send(ctx context.Context, req *ChatRequest, toolCalls []ToolCall, toolResults []ToolResult) (*ChatResponse, error) {
	modelID := req.Model
	if modelID == "" {
		modelID = p.model
	}
	model := p.client.GenerativeModel(modelID)

	if req.SystemPrompt != "" {
		model.SystemInstruction = &genai.Content{
			Parts: []genai.Part{genai.Text(req.SystemPrompt)},
		}
	}
	if len(req.Tools) > 0 {
		tool := &genai.Tool{}
		for _, t := range req.Tools {
			tool.FunctionDeclarations = append(tool.FunctionDeclarations, &genai.FunctionDeclaration{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  convertToSchema(t.InputSchema),
			})
		}
		model.Tools = []*genai.Tool{tool}
	}

	session := model.StartChat()
	var last genai.Part
	for i, msg := range req.Messages {
		role := "user"
		if msg.Role == "assistant" {
			role = "model"
		}
		part := genai.Text(msg.Content)
		if i == len(req.Messages)-1 && len(toolResults) == 0 {
			last = part
			break
		}
		session.History = append(session.History, &genai.Content{
			Role:  role,
			Parts: []genai.Part{part},
		})
	}

	if len(toolResults) > 0 {
		// Replay the model's function calls so the responses have a turn
		// to attach to.
		nameByID := make(map[string]string, len(toolCalls))
		callParts := make([]genai.Part, 0, len(toolCalls))
		for _, tc := range toolCalls {
			nameByID[tc.ID] = tc.Name
			var args map[string]any
			_ = json.Unmarshal(tc.Input, &args)
			callParts = append(callParts, genai.FunctionCall{Name: tc.Name, Args: args})
		}
		session.History = append(session.History, &genai.Content{Role: "model", Parts: callParts})

		responses := make([]genai.Part, 0, len(toolResults))
		for _, result := range toolResults {
			responses = append(responses, genai.FunctionResponse{
				Name: nameByID[result.ToolUseID],
				Response: map[string]any{
					"result": result.Content,
				},
			})
		}
		resp, err := session.SendMessage(ctx, responses...)
		if err != nil {
			return nil, fmt.Errorf("failed to send tool results: %w", err)
		}
		return parseGeminiResponse(resp)
	}

	resp, err := session.SendMessage(ctx, last)
	if err != nil {
		return nil, fmt.Errorf("failed to send message: %w", err)
	}
	return parseGeminiResponse(resp)
}

func parseGeminiResponse(resp *genai.GenerateContentResponse) (*ChatResponse, error) {
	if len(resp.Candidates) == 0 {
		return nil, fmt.Errorf("no candidates in response")
	}
	candidate := resp.Candidates[0]

	response := &ChatResponse{
		StopReason: fmt.Sprintf("%v", candidate.FinishReason),
	}
	if resp.UsageMetadata != nil {
		response.Usage = Usage{
			InputTokens:  int(resp.UsageMetadata.PromptTokenCount),
			OutputTokens: int(resp.UsageMetadata.CandidatesTokenCount),
		}
	}
	if candidate.Content == nil {
		return response, nil
	}
	for _, part := range candidate.Content.Parts {
		switch v := part.(type) {
		case genai.Text:
			response.Content += string(v)
		case genai.FunctionCall:
			input, err := json.Marshal(v.Args)
			if err != nil {
				return nil, fmt.Errorf("failed to marshal function call args: %w", err)
			}
			response.ToolCalls = append(response.ToolCalls, ToolCall{
				ID:    v.Name,
				Name:  v.Name,
				Input: input,
			})
		}
	}
	return response, nil
}

// convertToSchema translates a JSON Schema document into the genai schema type.
// Unknown or unsupported fields are dropped.
func convertToSchema(raw json.RawMessage) *genai.Schema {
	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return &genai.Schema{Type: genai.TypeObject}
	}
	return convertPropertyToSchema(doc)
}

func convertPropertyToSchema(doc map[string]any) *genai.Schema {
	schema := &genai.Schema{Type: genai.TypeObject}
	if t, ok := doc["type"].(string); ok {
		switch t {
		case "string":
			schema.Type = genai.TypeString
		case "number":
			schema.Type = genai.TypeNumber
		case "integer":
			schema.Type = genai.TypeInteger
		case "boolean":
			schema.Type = genai.TypeBoolean
		case "array":
			schema.Type = genai.TypeArray
		case "object":
			schema.Type = genai.TypeObject
		}
	}
	if desc, ok := doc["description"].(string); ok {
		schema.Description = desc
	}
	if enum, ok := doc["enum"].([]any); ok {
		for _, v := range enum {
			if s, ok := v.(string); ok {
				schema.Enum = append(schema.Enum, s)
			}
		}
	}
	if props, ok := doc["properties"].(map[string]any); ok {
		schema.Properties = make(map[string]*genai.Schema, len(props))
		for name, prop := range props {
			if propDoc, ok := prop.(map[string]any); ok {
				schema.Properties[name] = convertPropertyToSchema(propDoc)
			}
		}
	}
	if items, ok := doc["items"].(map[string]any); ok {
		schema.Items = convertPropertyToSchema(items)
	}
	if required, ok := doc["required"].([]any); ok {
		for _, v := range required {
			if s, ok := v.(string); ok {
				schema.Required = append(schema.Required, s)
			}
		}
	}
	return schema
}
