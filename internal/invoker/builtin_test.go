package invoker

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stepflow/internal/api"
)

func TestEchoTool(t *testing.T) {
	inputs := map[string]interface{}{"msg": "hi"}
	result, err := echoTool(context.Background(), inputs)
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, inputs, result.Data)
}

func TestSleepTool(t *testing.T) {
	tests := []struct {
		name     string
		inputs   interface{}
		wantCode string
		wantMs   int64
	}{
		{name: "milliseconds", inputs: map[string]interface{}{"ms": float64(5)}, wantMs: 5},
		{name: "duration string", inputs: map[string]interface{}{"duration": "3ms"}, wantMs: 3},
		{name: "no inputs", inputs: nil, wantMs: 0},
		{name: "bad duration", inputs: map[string]interface{}{"duration": "soon"}, wantCode: api.ErrCodeInvalidInput},
		{name: "non numeric ms", inputs: map[string]interface{}{"ms": "5"}, wantCode: api.ErrCodeInvalidInput},
		{name: "negative", inputs: map[string]interface{}{"ms": float64(-1)}, wantCode: api.ErrCodeInvalidInput},
		{name: "not an object", inputs: "5ms", wantCode: api.ErrCodeInvalidInput},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := sleepTool(context.Background(), tt.inputs)
			require.NoError(t, err)
			if tt.wantCode != "" {
				require.False(t, result.Success)
				assert.Equal(t, tt.wantCode, result.Error.Code)
				return
			}
			require.True(t, result.Success)
			assert.Equal(t, map[string]interface{}{"sleptMs": tt.wantMs}, result.Data)
		})
	}
}

func TestSleepTool_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	_, err := sleepTool(ctx, map[string]interface{}{"duration": "1h"})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Less(t, time.Since(start), time.Second)
}

func TestFailTool(t *testing.T) {
	result, err := failTool(context.Background(), nil)
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Equal(t, "failed on request", result.Error.Message)
	assert.Equal(t, api.ErrCodeToolError, result.Error.Code)

	result, err = failTool(context.Background(), map[string]interface{}{
		"message": "disk full",
		"code":    "ENOSPC",
		"details": map[string]interface{}{"free": float64(0)},
	})
	require.NoError(t, err)
	assert.Equal(t, "disk full (ENOSPC)", result.Err().Error())
	assert.Equal(t, map[string]interface{}{"free": float64(0)}, result.Error.Details)
}

func TestTemplateTool(t *testing.T) {
	result, err := templateTool(context.Background(), map[string]interface{}{
		"template": `Hello {{.name | upper}}{{if .excited}}!{{end}}`,
		"data":     map[string]interface{}{"name": "ada", "excited": true},
	})
	require.NoError(t, err)
	require.True(t, result.Success)
	assert.Equal(t, map[string]interface{}{"text": "Hello ADA!"}, result.Data)

	result, err = templateTool(context.Background(), map[string]interface{}{
		"template": `{{.missing}}`,
		"data":     map[string]interface{}{},
	})
	require.NoError(t, err)
	assert.False(t, result.Success, "missing keys are errors")

	result, err = templateTool(context.Background(), map[string]interface{}{"template": `{{`})
	require.NoError(t, err)
	assert.Equal(t, api.ErrCodeInvalidInput, result.Error.Code)

	result, err = templateTool(context.Background(), map[string]interface{}{})
	require.NoError(t, err)
	assert.Equal(t, api.ErrCodeInvalidInput, result.Error.Code)
}
