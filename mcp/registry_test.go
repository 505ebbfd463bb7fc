package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/viant/mcp-protocol/schema"

	"github.com/graphgate/graphgate/errcode"
)

type echoInput struct {
	Message string `json:"message"`
	Loud    bool   `json:"loud,omitempty"`
}

func (e *echoInput) Validate() error {
	if e.Message == "" {
		return errcode.New(errcode.Validation, "message is required")
	}
	return nil
}

func newEchoRegistry() *Registry {
	registry := NewRegistry(slog.Default())
	RegisterTool[echoInput](registry, "echo", "Echo a message back", func(ctx context.Context, input *echoInput) *schema.CallToolResult {
		return Ok("echoed", map[string]interface{}{"message": input.Message})
	})
	return registry
}

func TestRegistryList(t *testing.T) {
	registry := newEchoRegistry()
	listed := registry.List()
	require.Len(t, listed, 1)
	assert.Equal(t, "echo", listed[0].Name)
	assert.Equal(t, "Echo a message back", listed[0].Description)
	require.NotNil(t, listed[0].InputSchema)

	data, err := json.Marshal(listed[0].InputSchema)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"message"`)
}

func TestRegistryCall(t *testing.T) {
	registry := newEchoRegistry()

	result := registry.Call(context.Background(), "echo", json.RawMessage(`{"message":"hi"}`))
	require.Nil(t, result.IsError)
	assert.Equal(t, "hi", result.StructuredContent["message"])

	result = registry.Call(context.Background(), "missing", nil)
	require.NotNil(t, result.IsError)
	assert.Equal(t, errcode.NotFound, result.StructuredContent["error_code"])

	result = registry.Call(context.Background(), "echo", json.RawMessage(`{"message":"hi","bogus":1}`))
	require.NotNil(t, result.IsError)
	assert.Equal(t, errcode.Validation, result.StructuredContent["error_code"])

	result = registry.Call(context.Background(), "echo", json.RawMessage(`{}`))
	require.NotNil(t, result.IsError)
	assert.Equal(t, errcode.Validation, result.StructuredContent["error_code"])
}

func TestRegistryCallPanic(t *testing.T) {
	registry := NewRegistry(slog.Default())
	RegisterTool[echoInput](registry, "boom", "Always panics", func(ctx context.Context, input *echoInput) *schema.CallToolResult {
		panic(errors.New("kaboom"))
	})
	result := registry.Call(context.Background(), "boom", json.RawMessage(`{"message":"hi"}`))
	require.NotNil(t, result.IsError)
	assert.Equal(t, errcode.Internal, result.StructuredContent["error_code"])
}
