package invoker

import (
	"bytes"
	"context"
	"fmt"
	"text/template"
	"time"

	"github.com/Masterminds/sprig/v3"

	"stepflow/internal/api"
)

// Builtin is a tool implemented in-process.
type Builtin func(ctx context.Context, inputs interface{}) (*api.ToolResult, error)

// Builtin tool names.
const (
	ToolEcho     = "echo"
	ToolSleep    = "sleep"
	ToolFail     = "fail"
	ToolTemplate = "template"
)

// DefaultBuiltins returns the builtin tool set.
func DefaultBuiltins() map[string]Builtin {
	return map[string]Builtin{
		ToolEcho:     echoTool,
		ToolSleep:    sleepTool,
		ToolFail:     failTool,
		ToolTemplate: templateTool,
	}
}

// echoTool returns its inputs unchanged.
func echoTool(_ context.Context, inputs interface{}) (*api.ToolResult, error) {
	return api.Succeeded(inputs), nil
}

// sleepTool waits for {"ms": n} or {"duration": "1s"} and honours cancellation.
func sleepTool(ctx context.Context, inputs interface{}) (*api.ToolResult, error) {
	args, err := objectInputs(inputs)
	if err != nil {
		return api.Failed(api.ErrCodeInvalidInput, err.Error(), nil), nil
	}

	var d time.Duration
	switch {
	case args["duration"] != nil:
		s, ok := args["duration"].(string)
		if !ok {
			return api.Failed(api.ErrCodeInvalidInput, "duration must be a string", nil), nil
		}
		if d, err = time.ParseDuration(s); err != nil {
			return api.Failed(api.ErrCodeInvalidInput, fmt.Sprintf("invalid duration: %v", err), nil), nil
		}
	case args["ms"] != nil:
		ms, ok := toFloat(args["ms"])
		if !ok {
			return api.Failed(api.ErrCodeInvalidInput, "ms must be a number", nil), nil
		}
		d = time.Duration(ms * float64(time.Millisecond))
	}
	if d < 0 {
		return api.Failed(api.ErrCodeInvalidInput, "sleep duration cannot be negative", nil), nil
	}

	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-timer.C:
	}
	return api.Succeeded(map[string]interface{}{"sleptMs": d.Milliseconds()}), nil
}

// failTool always fails with {"message", "code", "details"} from its inputs.
func failTool(_ context.Context, inputs interface{}) (*api.ToolResult, error) {
	message := "failed on request"
	code := api.ErrCodeToolError
	var details interface{}

	if args, err := objectInputs(inputs); err == nil {
		if m, ok := args["message"].(string); ok && m != "" {
			message = m
		}
		if c, ok := args["code"].(string); ok && c != "" {
			code = c
		}
		details = args["details"]
	}
	return api.Failed(code, message, details), nil
}

// templateTool renders {"template": "...", "data": ...} with the sprig
// function library and returns {"text": rendered}.
func templateTool(_ context.Context, inputs interface{}) (*api.ToolResult, error) {
	args, err := objectInputs(inputs)
	if err != nil {
		return api.Failed(api.ErrCodeInvalidInput, err.Error(), nil), nil
	}
	text, ok := args["template"].(string)
	if !ok {
		return api.Failed(api.ErrCodeInvalidInput, "template must be a string", nil), nil
	}

	tmpl, err := template.New("tool").Funcs(sprig.TxtFuncMap()).Option("missingkey=error").Parse(text)
	if err != nil {
		return api.Failed(api.ErrCodeInvalidInput, fmt.Sprintf("failed to parse template: %v", err), nil), nil
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, args["data"]); err != nil {
		return api.Failed(api.ErrCodeToolError, fmt.Sprintf("failed to render template: %v", err), nil), nil
	}
	return api.Succeeded(map[string]interface{}{"text": buf.String()}), nil
}

func objectInputs(inputs interface{}) (map[string]interface{}, error) {
	if inputs == nil {
		return map[string]interface{}{}, nil
	}
	args, ok := inputs.(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("inputs must be an object, got %T", inputs)
	}
	return args, nil
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}
