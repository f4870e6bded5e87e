package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStepResults_PreserveExecutionOrder(t *testing.T) {
	results := NewStepResults()
	for _, id := range []string{"zeta", "alpha", "mid"} {
		results.Set(&StepResult{StepID: id, Success: true})
	}
	// Overwriting keeps the original position.
	results.Set(&StepResult{StepID: "zeta", Success: false})

	assert.Equal(t, []string{"zeta", "alpha", "mid"}, results.IDs())
	assert.Equal(t, 3, results.Len())

	got, ok := results.Get("zeta")
	require.True(t, ok)
	assert.False(t, got.Success)

	_, ok = results.Get("missing")
	assert.False(t, ok)
}

func TestStepResults_JSONKeepsOrder(t *testing.T) {
	results := NewStepResults()
	results.Set(&StepResult{StepID: "b", ToolID: "echo", Success: true, Result: "x"})
	results.Set(&StepResult{StepID: "a", ToolID: "echo", Success: true})

	data, err := json.Marshal(results)
	require.NoError(t, err)

	var restored StepResults
	require.NoError(t, json.Unmarshal(data, &restored))
	assert.Equal(t, []string{"b", "a"}, restored.IDs())

	b, ok := restored.Get("b")
	require.True(t, ok)
	assert.Equal(t, "x", b.Result)
}

func TestStepResults_NilSafe(t *testing.T) {
	var results *StepResults
	assert.Equal(t, 0, results.Len())
	_, ok := results.Get("x")
	assert.False(t, ok)
	assert.Empty(t, results.IDs())
}

func TestToolResult_Err(t *testing.T) {
	assert.NoError(t, Succeeded("ok").Err())

	err := Failed(ErrCodeToolError, "boom", nil).Err()
	require.Error(t, err)
	assert.Equal(t, "boom (tool_error)", err.Error())
	assert.True(t, IsToolError(fmt.Errorf("wrapped: %w", err)))

	var nilResult *ToolResult
	assert.Error(t, nilResult.Err())

	assert.Error(t, (&ToolResult{Success: false}).Err())
}

func TestNotFoundError(t *testing.T) {
	err := NewNotFoundError("workflow", "w1")
	assert.Equal(t, "workflow w1 not found", err.Error())
	assert.True(t, IsNotFound(fmt.Errorf("load: %w", err)))
	assert.False(t, IsNotFound(errors.New("other")))
}

func TestWorkflow_Helpers(t *testing.T) {
	wf := &Workflow{
		ID: "w1",
		Steps: []Step{
			{ID: "a"}, {ID: "b", OnError: ErrorPolicyContinue}, {ID: "a"}, {ID: "a"},
		},
	}

	assert.Equal(t, []string{"a"}, wf.DuplicateStepIDs())
	assert.Equal(t, 1, wf.StepIndex("b"))
	assert.Equal(t, -1, wf.StepIndex("zzz"))
	assert.Equal(t, ErrorPolicyStop, wf.Steps[0].Policy())
	assert.Equal(t, ErrorPolicyContinue, wf.Steps[1].Policy())
	assert.False(t, wf.Steps[0].CachingEnabled())
}
