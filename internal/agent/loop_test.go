package agent

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yashward001/finchat/internal/llm"
)

// testProvider is a minimal Provider for unit tests. Scripted responses are
// consumed in order; once exhausted it answers with plain content.
type testProvider struct {
	model     string
	models    []llm.Model
	scripted  []*llm.ChatResponse
	lastTools []llm.Tool
}

func newTestProvider(scripted ...*llm.ChatResponse) *testProvider {
	return &testProvider{
		model: "test-model-a",
		models: []llm.Model{
			{ID: "test-model-a", Name: "Test Model A"},
			{ID: "test-model-b", Name: "Test Model B"},
		},
		scripted: scripted,
	}
}

func (p *testProvider) ID() llm.ProviderID   { return "test" }
func (p *testProvider) Name() string         { return "Test Provider" }
func (p *testProvider) Models() []llm.Model  { return p.models }
func (p *testProvider) DefaultModel() string { return p.model }

func (p *testProvider) next() *llm.ChatResponse {
	if len(p.scripted) == 0 {
		return &llm.ChatResponse{Content: "done"}
	}
	resp := p.scripted[0]
	p.scripted = p.scripted[1:]
	return resp
}

func (p *testProvider) Chat(_ context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error) {
	p.lastTools = req.Tools
	return p.next(), nil
}

func (p *testProvider) ChatWithToolResults(_ context.Context, _ *llm.ChatRequest, _ []llm.ToolCall, _ []llm.ToolResult) (*llm.ChatResponse, error) {
	return p.next(), nil
}

func (p *testProvider) SetModel(modelID string) error {
	if err := llm.ValidateModelID(modelID, p.models); err != nil {
		return err
	}
	p.model = modelID
	return nil
}

func newTestAgent(t *testing.T, provider llm.Provider, tools ...*scriptedTool) *Agent {
	t.Helper()
	registry := NewRegistry()
	for _, tool := range tools {
		require.NoError(t, registry.Register(tool))
	}
	ag, err := New(provider, registry, nil, nil)
	require.NoError(t, err)
	return ag
}

func TestAgent_Chat(t *testing.T) {
	t.Run("plain answer", func(t *testing.T) {
		ag := newTestAgent(t, newTestProvider(&llm.ChatResponse{Content: "AAPL closed at 232.10"}))
		got, err := ag.Chat(context.Background(), "how did AAPL do today?")
		require.NoError(t, err)
		assert.Equal(t, "AAPL closed at 232.10", got)
	})

	t.Run("advertises registered tools", func(t *testing.T) {
		provider := newTestProvider()
		ag := newTestAgent(t, provider,
			&scriptedTool{name: "price_history", invoke: func(ctx context.Context, _ json.RawMessage) (string, error) {
				return "ok", nil
			}},
		)
		_, err := ag.Chat(context.Background(), "hi")
		require.NoError(t, err)
		require.Len(t, provider.lastTools, 1)
		assert.Equal(t, "price_history", provider.lastTools[0].Name)
	})
}

func TestAgent_ChatWithEvents(t *testing.T) {
	t.Run("tool round produces call, result and content events", func(t *testing.T) {
		provider := newTestProvider(
			&llm.ChatResponse{ToolCalls: []llm.ToolCall{
				{ID: "c1", Name: "lookup", Input: json.RawMessage(`{"symbol":"AAPL"}`)},
			}},
			&llm.ChatResponse{Content: "here is the data"},
		)
		ag := newTestAgent(t, provider,
			&scriptedTool{name: "lookup", invoke: func(ctx context.Context, _ json.RawMessage) (string, error) {
				return "rows", nil
			}},
		)

		events, err := ag.ChatWithEvents(context.Background(), "look up AAPL")
		require.NoError(t, err)
		require.Len(t, events, 3)

		assert.Equal(t, "tool_call", events[0].Type)
		assert.Equal(t, "lookup", events[0].Tool)
		assert.Equal(t, "tool_result", events[1].Type)
		assert.Equal(t, "rows", events[1].Content)
		assert.Equal(t, "content", events[2].Type)
		assert.Equal(t, "here is the data", events[2].Content)
	})

	t.Run("failed tool call yields correction and conversation continues", func(t *testing.T) {
		provider := newTestProvider(
			&llm.ChatResponse{ToolCalls: []llm.ToolCall{
				{ID: "c1", Name: "good", Input: json.RawMessage(`{}`)},
				{ID: "c2", Name: "bad", Input: json.RawMessage(`{}`)},
				{ID: "c3", Name: "good", Input: json.RawMessage(`{}`)},
			}},
			&llm.ChatResponse{Content: "recovered"},
		)
		failCount := 0
		ag := newTestAgent(t, provider,
			&scriptedTool{name: "good", invoke: func(ctx context.Context, _ json.RawMessage) (string, error) {
				return "fine", nil
			}},
			&scriptedTool{name: "bad", invoke: func(ctx context.Context, _ json.RawMessage) (string, error) {
				failCount++
				return "", assert.AnError
			}},
		)

		events, err := ag.ChatWithEvents(context.Background(), "do three things")
		require.NoError(t, err)

		var results []ChatEvent
		for _, e := range events {
			if e.Type == "tool_result" {
				results = append(results, e)
			}
		}
		require.Len(t, results, 3)
		assert.False(t, results[0].IsError)
		assert.True(t, results[1].IsError)
		assert.Contains(t, results[1].Content, "please fix your mistakes.")
		assert.False(t, results[2].IsError)
		assert.Equal(t, 1, failCount)

		assert.Equal(t, "recovered", events[len(events)-1].Content)
	})

	t.Run("multiple tool rounds", func(t *testing.T) {
		provider := newTestProvider(
			&llm.ChatResponse{ToolCalls: []llm.ToolCall{{ID: "c1", Name: "step", Input: json.RawMessage(`{}`)}}},
			&llm.ChatResponse{ToolCalls: []llm.ToolCall{{ID: "c2", Name: "step", Input: json.RawMessage(`{}`)}}},
			&llm.ChatResponse{Content: "both done"},
		)
		calls := 0
		ag := newTestAgent(t, provider,
			&scriptedTool{name: "step", invoke: func(ctx context.Context, _ json.RawMessage) (string, error) {
				calls++
				return "step done", nil
			}},
		)

		got, err := ag.Chat(context.Background(), "two steps please")
		require.NoError(t, err)
		assert.Equal(t, "both done", got)
		assert.Equal(t, 2, calls)
	})
}

func TestAgent_SetModel(t *testing.T) {
	t.Run("switches to valid model", func(t *testing.T) {
		ag := newTestAgent(t, newTestProvider())
		require.NoError(t, ag.SetModel("test-model-b"))
		assert.Equal(t, "test-model-b", ag.CurrentModel())
	})

	t.Run("rejects invalid model", func(t *testing.T) {
		ag := newTestAgent(t, newTestProvider())
		err := ag.SetModel("nonexistent")
		require.Error(t, err)
		assert.Equal(t, "test-model-a", ag.CurrentModel())
	})

	t.Run("clears conversation on switch", func(t *testing.T) {
		ag := newTestAgent(t, newTestProvider())
		_, err := ag.Chat(context.Background(), "hello")
		require.NoError(t, err)
		require.NotEmpty(t, ag.conversation)

		require.NoError(t, ag.SetModel("test-model-b"))
		assert.Empty(t, ag.conversation)
	})
}

func TestAgent_Reset(t *testing.T) {
	ag := newTestAgent(t, newTestProvider())
	_, err := ag.Chat(context.Background(), "hello")
	require.NoError(t, err)
	require.NotEmpty(t, ag.conversation)

	ag.Reset()
	assert.Empty(t, ag.conversation)
}

func TestRegistry(t *testing.T) {
	t.Run("rejects duplicate names", func(t *testing.T) {
		r := NewRegistry()
		tool := &scriptedTool{name: "dup", invoke: func(ctx context.Context, _ json.RawMessage) (string, error) {
			return "", nil
		}}
		require.NoError(t, r.Register(tool))
		err := r.Register(tool)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "already registered")
	})

	t.Run("tools are sorted by name", func(t *testing.T) {
		r := newScriptedRegistry(t,
			&scriptedTool{name: "zeta", invoke: nil},
			&scriptedTool{name: "alpha", invoke: nil},
		)
		defs := r.Tools()
		require.Len(t, defs, 2)
		assert.Equal(t, "alpha", defs[0].Name)
		assert.Equal(t, "zeta", defs[1].Name)
	})

	t.Run("unknown tool errors", func(t *testing.T) {
		r := NewRegistry()
		_, err := r.Execute(context.Background(), "missing", nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unknown tool")
	})
}
