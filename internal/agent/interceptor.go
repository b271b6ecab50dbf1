package agent

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/yashward001/finchat/internal/llm"
)

const defaultToolTimeout = 30 * time.Second

// Interceptor executes tool call batches on behalf of the agent loop. A
// failed call never aborts the batch: its slot is filled with a correction
// message telling the model what went wrong, keyed by the call ID, so the
// conversation can continue.
type Interceptor struct {
	registry *Registry
	timeout  time.Duration
	logger   *slog.Logger
}

// NewInterceptor creates an interceptor over the given registry. A zero
// timeout falls back to the default per-call timeout.
func NewInterceptor(registry *Registry, timeout time.Duration, logger *slog.Logger) *Interceptor {
	if timeout <= 0 {
		timeout = defaultToolTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Interceptor{registry: registry, timeout: timeout, logger: logger}
}

// ExecuteBatch runs all calls concurrently and returns one result per call,
// in the same order. Each call gets its own timeout; cancelling ctx abandons
// the whole batch and the cancelled calls report the cancellation as their
// error.
func (in *Interceptor) ExecuteBatch(ctx context.Context, calls []llm.ToolCall) []llm.ToolResult {
	results := make([]llm.ToolResult, len(calls))

	var wg sync.WaitGroup
	for i, call := range calls {
		wg.Add(1)
		go func(i int, call llm.ToolCall) {
			defer wg.Done()
			results[i] = in.executeOne(ctx, call)
		}(i, call)
	}
	wg.Wait()

	return results
}

func (in *Interceptor) executeOne(ctx context.Context, call llm.ToolCall) llm.ToolResult {
	callCtx, cancel := context.WithTimeout(ctx, in.timeout)
	defer cancel()

	in.logger.Info("tool call",
		"tool", call.Name,
		"id", call.ID,
		"args", RedactArgs(string(call.Input)))

	start := time.Now()
	content, err := in.invoke(callCtx, call)
	if err != nil {
		in.logger.Warn("tool call failed",
			"tool", call.Name,
			"id", call.ID,
			"duration", time.Since(start),
			"error", err)
		return llm.ToolResult{
			ToolUseID: call.ID,
			Content:   correctionMessage(err),
			IsError:   true,
		}
	}

	in.logger.Info("tool call succeeded",
		"tool", call.Name,
		"id", call.ID,
		"duration", time.Since(start),
		"output", SummarizeForLog(content))
	return llm.ToolResult{
		ToolUseID: call.ID,
		Content:   content,
	}
}

// invoke runs the tool and converts panics into errors so one misbehaving
// tool cannot take down the batch.
func (in *Interceptor) invoke(ctx context.Context, call llm.ToolCall) (content string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("tool %s panicked: %v", call.Name, r)
		}
	}()
	return in.registry.Execute(ctx, call.Name, call.Input)
}

// correctionMessage is the text handed back to the model when a tool call
// fails, prompting it to retry with corrected arguments.
func correctionMessage(err error) string {
	return fmt.Sprintf("Error: %v\n please fix your mistakes.", err)
}
