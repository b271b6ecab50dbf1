package llm

import (
	"encoding/json"
	"testing"

	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnvVarForProvider(t *testing.T) {
	assert.Equal(t, "ANTHROPIC_API_KEY", EnvVarForProvider(ProviderAnthropic))
	assert.Equal(t, "OPENAI_API_KEY", EnvVarForProvider(ProviderOpenAI))
	assert.Equal(t, "GOOGLE_API_KEY", EnvVarForProvider(ProviderGemini))
	assert.Equal(t, "", EnvVarForProvider(ProviderID("unknown")))
}

func TestAllProviderIDs(t *testing.T) {
	ids := AllProviderIDs()
	require.Len(t, ids, 3)
	assert.Equal(t, ProviderAnthropic, ids[0])
}

func TestValidateModelID(t *testing.T) {
	models := []Model{{ID: "a"}, {ID: "b"}}

	t.Run("known model", func(t *testing.T) {
		assert.NoError(t, ValidateModelID("a", models))
	})

	t.Run("unknown model", func(t *testing.T) {
		err := ValidateModelID("c", models)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unknown model")
	})
}

func TestProviderConstructorsRequireKey(t *testing.T) {
	_, err := NewAnthropicProvider("", "")
	assert.Error(t, err)

	_, err = NewOpenAIProvider("", "", "")
	assert.Error(t, err)
}

func TestSetModel(t *testing.T) {
	p, err := NewOpenAIProvider("test-key", "", "")
	require.NoError(t, err)
	assert.Equal(t, "gpt-4o", p.DefaultModel())

	require.NoError(t, p.SetModel("gpt-4o-mini"))
	assert.Equal(t, "gpt-4o-mini", p.DefaultModel())

	assert.Error(t, p.SetModel("not-a-model"))
	assert.Equal(t, "gpt-4o-mini", p.DefaultModel())
}

func TestOpenAIConversationMessages(t *testing.T) {
	p, err := NewOpenAIProvider("test-key", "", "")
	require.NoError(t, err)

	req := &ChatRequest{
		SystemPrompt: "you are helpful",
		Messages: []Message{
			{Role: "user", Content: "hi"},
			{Role: "assistant", Content: "hello"},
			{Role: "user", Content: "chart AAPL"},
		},
	}

	t.Run("plain conversation", func(t *testing.T) {
		messages := p.conversationMessages(req, nil, nil)
		require.Len(t, messages, 4)
		assert.Equal(t, openai.ChatMessageRoleSystem, messages[0].Role)
		assert.Equal(t, openai.ChatMessageRoleAssistant, messages[2].Role)
		assert.Equal(t, "chart AAPL", messages[3].Content)
	})

	t.Run("tool results append assistant and tool turns", func(t *testing.T) {
		calls := []ToolCall{{ID: "call_1", Name: "price_history", Input: json.RawMessage(`{"symbol":"AAPL"}`)}}
		results := []ToolResult{{ToolUseID: "call_1", Content: "ok"}}
		messages := p.conversationMessages(req, calls, results)
		require.Len(t, messages, 6)

		assistant := messages[4]
		require.Len(t, assistant.ToolCalls, 1)
		assert.Equal(t, "price_history", assistant.ToolCalls[0].Function.Name)

		toolMsg := messages[5]
		assert.Equal(t, openai.ChatMessageRoleTool, toolMsg.Role)
		assert.Equal(t, "call_1", toolMsg.ToolCallID)
	})
}

func TestConvertToSchema(t *testing.T) {
	raw := json.RawMessage(`{
		"type": "object",
		"properties": {
			"symbol": {"type": "string", "description": "Ticker symbol"},
			"days": {"type": "integer"},
			"direction": {"type": "string", "enum": ["gainers", "losers"]}
		},
		"required": ["symbol"]
	}`)

	schema := convertToSchema(raw)
	require.NotNil(t, schema)
	require.Contains(t, schema.Properties, "symbol")
	assert.Equal(t, "Ticker symbol", schema.Properties["symbol"].Description)
	assert.Equal(t, []string{"gainers", "losers"}, schema.Properties["direction"].Enum)
	assert.Equal(t, []string{"symbol"}, schema.Required)
}
