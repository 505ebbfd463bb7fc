package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/invopop/jsonschema"
	"github.com/viant/mcp-protocol/schema"

	"github.com/graphgate/graphgate/errcode"
)

// Handler executes one tool call against raw JSON arguments.
type Handler func(ctx context.Context, args json.RawMessage) *schema.CallToolResult

// ToolInfo is the tools/list projection of a registered tool.
type ToolInfo struct {
	Name        string             `json:"name"`
	Description string             `json:"description"`
	InputSchema *jsonschema.Schema `json:"inputSchema"`
}

type registeredTool struct {
	info    ToolInfo
	handler Handler
}

// Registry holds the gateway's tools in registration order.
type Registry struct {
	mu     sync.RWMutex
	order  []string
	tools  map[string]*registeredTool
	logger *slog.Logger
}

func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{tools: map[string]*registeredTool{}, logger: logger}
}

func (r *Registry) register(name, description string, inputSchema *jsonschema.Schema, handler Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tools[name]; !exists {
		r.order = append(r.order, name)
	}
	r.tools[name] = &registeredTool{
		info:    ToolInfo{Name: name, Description: description, InputSchema: inputSchema},
		handler: handler,
	}
}

// RegisterTool adds a typed tool. The input schema is reflected from I;
// unknown argument fields are rejected as validation failures.
func RegisterTool[I any](r *Registry, name, description string, handler func(ctx context.Context, input *I) *schema.CallToolResult) {
	reflector := &jsonschema.Reflector{DoNotReference: true}
	inputSchema := reflector.Reflect(new(I))
	r.register(name, description, inputSchema, func(ctx context.Context, args json.RawMessage) *schema.CallToolResult {
		input := new(I)
		if len(args) > 0 {
			decoder := json.NewDecoder(bytes.NewReader(args))
			decoder.DisallowUnknownFields()
			if err := decoder.Decode(input); err != nil {
				return Fail(errcode.Validation, "invalid arguments: "+err.Error(), nil)
			}
		}
		if validator, ok := any(input).(Validator); ok {
			if err := validator.Validate(); err != nil {
				return FailErr(err)
			}
		}
		return handler(ctx, input)
	})
}

// List returns tool metadata in registration order.
func (r *Registry) List() []ToolInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]ToolInfo, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.tools[name].info)
	}
	return out
}

// Call dispatches one tool invocation. Unknown tools and handler panics are
// reported as in-band failures.
func (r *Registry) Call(ctx context.Context, name string, args json.RawMessage) (result *schema.CallToolResult) {
	r.mu.RLock()
	tool, ok := r.tools[name]
	r.mu.RUnlock()
	if !ok {
		return Fail(errcode.NotFound, "Tool not found: "+name, nil)
	}
	defer func() {
		if recovered := recover(); recovered != nil {
			r.logger.Error("tool panic", "tool", name, "panic", recovered)
			result = Fail(errcode.Internal, "tool crashed", nil)
		}
	}()
	return tool.handler(ctx, args)
}
