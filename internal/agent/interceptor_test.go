package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yashward001/finchat/internal/llm"
)

// scriptedTool runs a test-provided function
type scriptedTool struct {
	name   string
	invoke func(ctx context.Context, input json.RawMessage) (string, error)
}

func (t *scriptedTool) Name() string                { return t.name }
func (t *scriptedTool) Description() string         { return "test tool" }
func (t *scriptedTool) InputSchema() json.RawMessage {
	return json.RawMessage(`{"type":"object"}`)
}
func (t *scriptedTool) Invoke(ctx context.Context, input json.RawMessage) (string, error) {
	return t.invoke(ctx, input)
}

func newScriptedRegistry(t *testing.T, tools ...*scriptedTool) *Registry {
	t.Helper()
	r := NewRegistry()
	for _, tool := range tools {
		require.NoError(t, r.Register(tool))
	}
	return r
}

func TestInterceptor_ExecuteBatch(t *testing.T) {
	t.Run("results keep call order", func(t *testing.T) {
		r := newScriptedRegistry(t,
			&scriptedTool{name: "slow", invoke: func(ctx context.Context, _ json.RawMessage) (string, error) {
				time.Sleep(20 * time.Millisecond)
				return "slow done", nil
			}},
			&scriptedTool{name: "fast", invoke: func(ctx context.Context, _ json.RawMessage) (string, error) {
				return "fast done", nil
			}},
		)
		in := NewInterceptor(r, time.Second, nil)

		results := in.ExecuteBatch(context.Background(), []llm.ToolCall{
			{ID: "c1", Name: "slow"},
			{ID: "c2", Name: "fast"},
		})
		require.Len(t, results, 2)
		assert.Equal(t, "c1", results[0].ToolUseID)
		assert.Equal(t, "slow done", results[0].Content)
		assert.Equal(t, "c2", results[1].ToolUseID)
		assert.Equal(t, "fast done", results[1].Content)
	})

	t.Run("calls run concurrently", func(t *testing.T) {
		var active, peak int32
		blocker := func(ctx context.Context, _ json.RawMessage) (string, error) {
			n := atomic.AddInt32(&active, 1)
			for {
				p := atomic.LoadInt32(&peak)
				if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
					break
				}
			}
			time.Sleep(30 * time.Millisecond)
			atomic.AddInt32(&active, -1)
			return "ok", nil
		}
		r := newScriptedRegistry(t,
			&scriptedTool{name: "a", invoke: blocker},
			&scriptedTool{name: "b", invoke: blocker},
			&scriptedTool{name: "c", invoke: blocker},
		)
		in := NewInterceptor(r, time.Second, nil)

		in.ExecuteBatch(context.Background(), []llm.ToolCall{
			{ID: "1", Name: "a"}, {ID: "2", Name: "b"}, {ID: "3", Name: "c"},
		})
		assert.Equal(t, int32(3), atomic.LoadInt32(&peak))
	})

	t.Run("one failure does not abort the batch", func(t *testing.T) {
		r := newScriptedRegistry(t,
			&scriptedTool{name: "good", invoke: func(ctx context.Context, _ json.RawMessage) (string, error) {
				return "fine", nil
			}},
			&scriptedTool{name: "bad", invoke: func(ctx context.Context, _ json.RawMessage) (string, error) {
				return "", fmt.Errorf("symbol is required")
			}},
		)
		in := NewInterceptor(r, time.Second, nil)

		results := in.ExecuteBatch(context.Background(), []llm.ToolCall{
			{ID: "c1", Name: "good"},
			{ID: "c2", Name: "bad"},
			{ID: "c3", Name: "good"},
		})
		require.Len(t, results, 3)

		assert.False(t, results[0].IsError)
		assert.Equal(t, "fine", results[0].Content)

		assert.True(t, results[1].IsError)
		assert.Equal(t, "c2", results[1].ToolUseID)
		assert.Equal(t, "Error: symbol is required\n please fix your mistakes.", results[1].Content)

		assert.False(t, results[2].IsError)
	})

	t.Run("unknown tool gets a correction", func(t *testing.T) {
		in := NewInterceptor(NewRegistry(), time.Second, nil)

		results := in.ExecuteBatch(context.Background(), []llm.ToolCall{
			{ID: "c1", Name: "nope"},
		})
		require.Len(t, results, 1)
		assert.True(t, results[0].IsError)
		assert.Contains(t, results[0].Content, "unknown tool: nope")
		assert.Contains(t, results[0].Content, "please fix your mistakes.")
	})

	t.Run("panic is contained", func(t *testing.T) {
		r := newScriptedRegistry(t,
			&scriptedTool{name: "boom", invoke: func(ctx context.Context, _ json.RawMessage) (string, error) {
				panic("nil map write")
			}},
			&scriptedTool{name: "calm", invoke: func(ctx context.Context, _ json.RawMessage) (string, error) {
				return "still here", nil
			}},
		)
		in := NewInterceptor(r, time.Second, nil)

		results := in.ExecuteBatch(context.Background(), []llm.ToolCall{
			{ID: "c1", Name: "boom"},
			{ID: "c2", Name: "calm"},
		})
		require.Len(t, results, 2)
		assert.True(t, results[0].IsError)
		assert.Contains(t, results[0].Content, "panicked")
		assert.Equal(t, "still here", results[1].Content)
	})

	t.Run("per call timeout", func(t *testing.T) {
		r := newScriptedRegistry(t,
			&scriptedTool{name: "hang", invoke: func(ctx context.Context, _ json.RawMessage) (string, error) {
				<-ctx.Done()
				return "", ctx.Err()
			}},
		)
		in := NewInterceptor(r, 10*time.Millisecond, nil)

		start := time.Now()
		results := in.ExecuteBatch(context.Background(), []llm.ToolCall{
			{ID: "c1", Name: "hang"},
		})
		assert.Less(t, time.Since(start), time.Second)
		require.Len(t, results, 1)
		assert.True(t, results[0].IsError)
		assert.Contains(t, results[0].Content, "context deadline exceeded")
	})

	t.Run("batch context cancellation", func(t *testing.T) {
		r := newScriptedRegistry(t,
			&scriptedTool{name: "hang", invoke: func(ctx context.Context, _ json.RawMessage) (string, error) {
				<-ctx.Done()
				return "", ctx.Err()
			}},
		)
		in := NewInterceptor(r, time.Minute, nil)

		ctx, cancel := context.WithCancel(context.Background())
		go func() {
			time.Sleep(10 * time.Millisecond)
			cancel()
		}()

		results := in.ExecuteBatch(ctx, []llm.ToolCall{{ID: "c1", Name: "hang"}})
		require.Len(t, results, 1)
		assert.True(t, results[0].IsError)
		assert.Contains(t, results[0].Content, "context canceled")
	})
}
