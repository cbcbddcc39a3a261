package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/jsonschema-go/jsonschema"
)

// Registry manages tool definitions and dispatches tool calls
type Registry struct {
	mu       sync.RWMutex
	tools    map[string]*toolEntry
	ordering []string // Preserve registration order for consistent tools/list
}

type toolEntry struct {
	def       ToolDefinition
	handler   Handler
	validator *jsonschema.Resolved
}

// NewRegistry creates an empty tool registry
func NewRegistry() *Registry {
	return &Registry{
		tools: make(map[string]*toolEntry),
	}
}

// Register adds a tool definition and handler to the registry
func (r *Registry) Register(def ToolDefinition, handler Handler) error {
	if def.Name == "" {
		return fmt.Errorf("tool name cannot be empty")
	}
	if handler == nil {
		return fmt.Errorf("handler cannot be nil")
	}

	validator, err := compileSchema(def.InputSchema)
	if err != nil {
		return fmt.Errorf("tool %s: invalid input schema: %w", def.Name, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.tools[def.Name]; exists {
		return fmt.Errorf("tool %s already registered: %w", def.Name, ErrDuplicateName)
	}

	r.tools[def.Name] = &toolEntry{
		def:       def,
		handler:   handler,
		validator: validator,
	}
	r.ordering = append(r.ordering, def.Name)

	return nil
}

// MustRegister registers a tool or panics on error (for init-time registration)
func (r *Registry) MustRegister(def ToolDefinition, handler Handler) {
	if err := r.Register(def, handler); err != nil {
		panic(err)
	}
}

// Lookup returns the registered definition and handler for name
func (r *Registry) Lookup(name string) (ToolDefinition, Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entry, exists := r.tools[name]
	if !exists {
		return ToolDefinition{}, nil, false
	}
	return entry.def, entry.handler, true
}

// Names returns registered tool names in registration order
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return append([]string(nil), r.ordering...)
}

// List returns all registered tool descriptors (for tools/list response)
func (r *Registry) List() []ToolDescriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	descriptors := make([]ToolDescriptor, 0, len(r.ordering))
	for _, name := range r.ordering {
		descriptors = append(descriptors, r.tools[name].def.Descriptor())
	}

	return descriptors
}

// Call executes a tool by name with the given arguments.
// Failures are always *ToolError; the result is wrapped in MCP content format.
func (r *Registry) Call(ctx context.Context, toolCtx *ToolContext, req CallRequest) (CallResult, error) {
	r.mu.RLock()
	entry, exists := r.tools[req.Name]
	r.mu.RUnlock()

	if !exists {
		return CallResult{}, NewNotFoundError(req.Name)
	}

	args, err := normalizeArguments(entry.validator, req.Arguments)
	if err != nil {
		return CallResult{}, asCallError(req.Name, NewToolError(ErrCodeInvalidParams, "invalid arguments: "+err.Error(), nil))
	}

	result, err := invoke(ctx, entry.handler, toolCtx, args)
	if err != nil {
		return CallResult{}, asCallError(req.Name, err)
	}

	text, err := SerializeResult(result)
	if err != nil {
		return CallResult{}, NewToolError(ErrCodeInternal, "Failed to serialize tool result: "+err.Error(), map[string]any{
			"tool": req.Name,
		})
	}

	return TextResult(text), nil
}

// invoke runs a handler, converting a panic into an ordinary error
func invoke(ctx context.Context, handler Handler, toolCtx *ToolContext, args json.RawMessage) (result interface{}, err error) {
	defer func() {
		if p := recover(); p != nil {
			result = nil
			err = fmt.Errorf("panic: %v", p)
		}
	}()
	return handler(ctx, toolCtx, args)
}
