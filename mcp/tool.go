// Package mcp implements the gateway's tool surface: a registry with JSON
// schema generation, a JSON-RPC dispatcher, and the stdio and HTTP
// transports that carry it.
package mcp

import (
	"github.com/viant/mcp-protocol/schema"

	"github.com/graphgate/graphgate/errcode"
)

// Ok builds a successful tool result carrying a one-line text summary and
// the machine-readable payload.
func Ok(summary string, structured map[string]interface{}) *schema.CallToolResult {
	return &schema.CallToolResult{
		Content:           []schema.CallToolResultContentElem{{Type: "text", Text: summary}},
		StructuredContent: structured,
	}
}

// Fail builds an in-band tool failure. Protocol errors are reserved for
// envelope problems; tool-level failures always travel in the result.
func Fail(code, message string, details map[string]interface{}) *schema.CallToolResult {
	structured := map[string]interface{}{"error_code": code, "message": message}
	for key, value := range details {
		structured[key] = value
	}
	isError := true
	return &schema.CallToolResult{
		Content:           []schema.CallToolResultContentElem{{Type: "text", Text: code + ": " + message}},
		StructuredContent: structured,
		IsError:           &isError,
	}
}

// FailErr classifies err onto a stable code and wraps it as a tool failure.
func FailErr(err error) *schema.CallToolResult {
	code, message := errcode.Classify(err)
	return Fail(code, message, nil)
}

// Validator lets tool inputs enforce cross-field constraints after decoding.
type Validator interface {
	Validate() error
}
