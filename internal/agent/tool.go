package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/yashward001/finchat/internal/llm"
)

// Tool is a capability the model can invoke. Implementations return the text
// handed back to the model; anything structured travels inside observation
// markers within that text.
type Tool interface {
	// Name returns the tool's wire name, as advertised to the model.
	Name() string

	// Description tells the model when to use the tool.
	Description() string

	// InputSchema returns the JSON Schema of the tool's input object.
	InputSchema() json.RawMessage

	// Invoke runs the tool. The input is the raw argument object from the
	// model, validated by the implementation.
	Invoke(ctx context.Context, input json.RawMessage) (string, error)
}

// Registry holds the tools available to an agent. Registration is explicit;
// nothing is discovered or registered as a side effect of package import.
type Registry struct {
	tools map[string]Tool
}

// NewRegistry creates an empty tool registry
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]Tool)}
}

// Register adds a tool. Names must be unique.
func (r *Registry) Register(t Tool) error {
	name := t.Name()
	if name == "" {
		return fmt.Errorf("tool has empty name")
	}
	if _, exists := r.tools[name]; exists {
		return fmt.Errorf("tool %q already registered", name)
	}
	r.tools[name] = t
	return nil
}

// Lookup returns the named tool, or false if it is not registered
func (r *Registry) Lookup(name string) (Tool, bool) {
	t, ok := r.tools[name]
	return t, ok
}

// Names returns registered tool names in sorted order
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Tools returns provider-facing definitions for every registered tool,
// ordered by name so requests are deterministic.
func (r *Registry) Tools() []llm.Tool {
	defs := make([]llm.Tool, 0, len(r.tools))
	for _, name := range r.Names() {
		t := r.tools[name]
		defs = append(defs, llm.Tool{
			Name:        t.Name(),
			Description: t.Description(),
			InputSchema: t.InputSchema(),
		})
	}
	return defs
}

// Execute runs a tool by name with the given input
func (r *Registry) Execute(ctx context.Context, name string, input json.RawMessage) (string, error) {
	t, ok := r.Lookup(name)
	if !ok {
		return "", fmt.Errorf("unknown tool: %s", name)
	}
	return t.Invoke(ctx, input)
}
