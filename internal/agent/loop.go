package agent

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/yashward001/finchat/internal/llm"
)

// ChatEvent is one step of an exchange as seen by the UI: a tool being
// called, its result, or a piece of assistant text.
type ChatEvent struct {
	Type    string // "tool_call", "tool_result", "content"
	Tool    string
	Args    string // redacted tool arguments, tool_call only
	Content string
	IsError bool
}

// Agent orchestrates conversations and tool calls against an LLM provider
type Agent struct {
	// mu serializes exchanges so concurrent Chat calls cannot interleave
	// messages in the conversation.
	mu           sync.Mutex
	provider     llm.Provider
	registry     *Registry
	interceptor  *Interceptor
	systemPrompt string
	conversation []llm.Message
	logger       *slog.Logger
	sessions     *sessionLogger
}

// SystemPrompt is the default system prompt for the finance agent
const SystemPrompt = `You are finchat, a terminal-first market analysis agent. You help users research stocks: prices, trends, charts, news and market movers.

## Your Capabilities
- Fetch daily price history with moving averages, RSI and ATR
- Generate technical analysis charts
- Summarize recent news with sentiment scores
- List the day's top gainers and losers

## Tool Output
Tool results arrive wrapped in <observation> blocks containing data markers. Do not repeat raw marker content back to the user; the terminal renders it. Summarize what the data shows instead.

## Response Style
- Be concise and direct
- Lead with the answer, then the supporting numbers
- Always name the symbol and timeframe you are describing
- If a tool reports an error or no data, say so and suggest what to try instead
- You provide analysis, not financial advice; say so when users ask what to buy

## Available Tools
Use tools proactively whenever the user asks about a stock or the market. Prefer fetching fresh data over recalling it.`

// New creates an agent over the given provider and tool registry.
func New(provider llm.Provider, registry *Registry, interceptor *Interceptor, logger *slog.Logger) (*Agent, error) {
	if provider == nil {
		return nil, fmt.Errorf("provider is required")
	}
	if registry == nil {
		registry = NewRegistry()
	}
	if interceptor == nil {
		interceptor = NewInterceptor(registry, 0, logger)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Agent{
		provider:     provider,
		registry:     registry,
		interceptor:  interceptor,
		systemPrompt: SystemPrompt,
		logger:       logger,
	}, nil
}

// StartSessionLog begins writing a JSONL transcript of this session under
// dataDir/sessions. Safe to skip; the agent works without one.
func (a *Agent) StartSessionLog(dataDir string) error {
	logger, err := newSessionLogger(dataDir)
	if err != nil {
		return err
	}
	a.mu.Lock()
	a.sessions = logger
	a.mu.Unlock()
	return nil
}

func (a *Agent) logSession(record sessionRecord) {
	if a.sessions == nil {
		return
	}
	record.TS = nowTS()
	a.sessions.logRecord(record)
}

// Chat runs one exchange and returns only the final assistant text.
func (a *Agent) Chat(ctx context.Context, userMessage string) (string, error) {
	events, err := a.ChatWithEvents(ctx, userMessage)
	if err != nil {
		return "", err
	}

	var answer string
	for _, e := range events {
		if e.Type == "content" {
			answer = e.Content
		}
	}
	return answer, nil
}

// ChatWithEvents runs one exchange, driving tool rounds until the model
// produces a final answer, and returns every step as an event so the UI can
// show tool activity alongside the reply.
func (a *Agent) ChatWithEvents(ctx context.Context, userMessage string) ([]ChatEvent, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.conversation = append(a.conversation, llm.Message{
		Role:    "user",
		Content: userMessage,
	})
	a.logSession(sessionRecord{
		Type:     "user",
		Provider: string(a.provider.ID()),
		Model:    a.provider.DefaultModel(),
		Content:  userMessage,
	})

	req := &llm.ChatRequest{
		SystemPrompt: a.systemPrompt,
		Messages:     a.conversation,
		Tools:        a.registry.Tools(),
	}

	response, err := a.provider.Chat(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("failed to get response: %w", err)
	}

	var events []ChatEvent
	for len(response.ToolCalls) > 0 {
		toolCalls := response.ToolCalls
		for _, tc := range toolCalls {
			args := RedactArgs(string(tc.Input))
			events = append(events, ChatEvent{
				Type: "tool_call",
				Tool: tc.Name,
				Args: args,
			})
			a.logSession(sessionRecord{Type: "tool_call", ToolName: tc.Name, Args: args})
		}

		toolResults := a.interceptor.ExecuteBatch(ctx, toolCalls)
		for i, result := range toolResults {
			events = append(events, ChatEvent{
				Type:    "tool_result",
				Tool:    toolCalls[i].Name,
				Content: result.Content,
				IsError: result.IsError,
			})
			a.logSession(sessionRecord{
				Type:     "tool_result",
				ToolName: toolCalls[i].Name,
				Content:  SummarizeForLog(result.Content),
				IsError:  result.IsError,
			})
		}

		response, err = a.provider.ChatWithToolResults(ctx, req, toolCalls, toolResults)
		if err != nil {
			return nil, fmt.Errorf("failed to continue conversation: %w", err)
		}
	}

	if response.Content != "" {
		a.conversation = append(a.conversation, llm.Message{
			Role:    "assistant",
			Content: response.Content,
		})

		events = append(events, ChatEvent{
			Type:    "content",
			Content: response.Content,
		})
		a.logSession(sessionRecord{Type: "assistant", Content: response.Content})
	}

	return events, nil
}

// SetModel switches models and drops the conversation, since history built
// against one model is not replayed to another.
func (a *Agent) SetModel(modelID string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if err := a.provider.SetModel(modelID); err != nil {
		return err
	}
	a.conversation = nil
	return nil
}

func (a *Agent) CurrentModel() string { return a.provider.DefaultModel() }

func (a *Agent) ListModels() []llm.Model { return a.provider.Models() }

func (a *Agent) ProviderName() string { return a.provider.Name() }

func (a *Agent) CurrentProviderID() llm.ProviderID { return a.provider.ID() }

// ToolNames lists the registered tools in sorted order.
func (a *Agent) ToolNames() []string { return a.registry.Names() }

// Reset clears the conversation history.
func (a *Agent) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.conversation = nil
}

// Close releases the session transcript and any provider resources.
func (a *Agent) Close() {
	if a.sessions != nil {
		a.sessions.Close()
	}
	if gemini, ok := a.provider.(*llm.GeminiProvider); ok {
		_ = gemini.Close()
	}
}
