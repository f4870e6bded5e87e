package api

import (
	"context"
	"fmt"
	"time"
)

// Error codes used in failure envelopes produced by stepflow itself.
const (
	ErrCodeToolError    = "tool_error"
	ErrCodeUnknownTool  = "unknown_tool"
	ErrCodeInvalidInput = "invalid_input"
	ErrCodeInvocation   = "invocation_error"
)

// ToolResult is the discriminated envelope returned by a tool:
// {success: true, data} or {success: false, error: {message, code, details}}.
type ToolResult struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *ToolError  `json:"error,omitempty"`
}

// ToolError describes a failed tool invocation.
type ToolError struct {
	Message string      `json:"message"`
	Code    string      `json:"code,omitempty"`
	Details interface{} `json:"details,omitempty"`
}

// Error implements the error interface.
func (e *ToolError) Error() string {
	if e.Code == "" {
		return e.Message
	}
	return fmt.Sprintf("%s (%s)", e.Message, e.Code)
}

// Succeeded wraps data into a success envelope.
func Succeeded(data interface{}) *ToolResult {
	return &ToolResult{Success: true, Data: data}
}

// Failed builds a failure envelope.
func Failed(code, message string, details interface{}) *ToolResult {
	return &ToolResult{
		Success: false,
		Error:   &ToolError{Message: message, Code: code, Details: details},
	}
}

// Err returns the envelope's failure as an error, or nil on success.
// A failure envelope without an error body still yields an error.
func (r *ToolResult) Err() error {
	if r == nil {
		return &ToolError{Message: "tool returned no result", Code: ErrCodeInvocation}
	}
	if r.Success {
		return nil
	}
	if r.Error == nil {
		return &ToolError{Message: "tool reported failure without details", Code: ErrCodeToolError}
	}
	return r.Error
}

// ToolInvoker runs tools on behalf of the Runner. An error return and a
// failure envelope are treated identically.
type ToolInvoker interface {
	RunTool(ctx context.Context, toolID string, inputs interface{}) (*ToolResult, error)
}

// ToolInvokerFunc adapts a function to the ToolInvoker interface.
type ToolInvokerFunc func(ctx context.Context, toolID string, inputs interface{}) (*ToolResult, error)

// RunTool calls f.
func (f ToolInvokerFunc) RunTool(ctx context.Context, toolID string, inputs interface{}) (*ToolResult, error) {
	return f(ctx, toolID, inputs)
}

// TTLProvider is implemented by invokers that declare a default cache TTL
// for some tools. It is consulted when a step enables caching without a TTL.
type TTLProvider interface {
	DefaultTTL(toolID string) (time.Duration, bool)
}
