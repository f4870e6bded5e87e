package reference

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stepflow/internal/api"
)

func semanticWorkflow() []api.Step {
	return []api.Step{
		{ID: "shot1", ToolID: "screen/capture"},
		{ID: "ocr", ToolID: "ocr/read"},
		{ID: "shot2", ToolID: "screen/capture"},
		{ID: "note", ToolID: "echo"},
		{ID: "current", ToolID: "echo"},
	}
}

func TestResolveSemantic_Selectors(t *testing.T) {
	wctx := &Context{CurrentIndex: 4, Steps: semanticWorkflow()}

	tests := []struct {
		name    string
		sem     api.Semantic
		want    string
		wantErr string
	}{
		{name: "previous", sem: api.Semantic{Selector: api.SelectPrevious}, want: "note"},
		{name: "first with path", sem: api.Semantic{Selector: api.SelectFirst, Path: "file"}, want: "shot1.file"},
		{name: "latest by tool", sem: api.Semantic{Selector: api.SelectLatest, Tool: "screen/capture"}, want: "shot2"},
		{name: "latest with path", sem: api.Semantic{Selector: api.SelectLatest, Tool: "ocr/read", Path: "text.0"}, want: "ocr.text.0"},
		{name: "latest unmatched", sem: api.Semantic{Selector: api.SelectLatest, Tool: "mouse/click"}, wantErr: `no earlier step invokes tool "mouse/click"`},
		{name: "unknown selector", sem: api.Semantic{Selector: "sideways"}, wantErr: "unknown selector"},
	}

	r := New()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := r.ResolveSemantic(tt.sem, wctx)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.True(t, IsError(err))
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, api.Reference{Path: tt.want}, got)
		})
	}
}

func TestResolveSemantic_OnlyEarlierSteps(t *testing.T) {
	r := New()
	steps := semanticWorkflow()

	_, err := r.ResolveSemantic(api.Semantic{Selector: api.SelectPrevious}, &Context{CurrentIndex: 0, Steps: steps})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no earlier step to select")

	_, err = r.ResolveSemantic(api.Semantic{Selector: api.SelectFirst}, &Context{CurrentIndex: 0, Steps: steps})
	require.Error(t, err)

	// shot2 is at index 2; resolving for index 2 must not select itself.
	got, err := r.ResolveSemantic(api.Semantic{Selector: api.SelectLatest, Tool: "screen/capture"}, &Context{CurrentIndex: 2, Steps: steps})
	require.NoError(t, err)
	assert.Equal(t, api.Reference{Path: "shot1"}, got)
}

func TestResolve_SemanticBeforeReferences(t *testing.T) {
	steps := semanticWorkflow()
	prior := priorResults(
		&api.StepResult{StepID: "shot1", Success: true, Result: map[string]interface{}{"file": "/tmp/1.png"}},
		&api.StepResult{StepID: "ocr", Success: true, Result: map[string]interface{}{"text": "hello"}},
		&api.StepResult{StepID: "shot2", Success: true, Result: map[string]interface{}{"file": "/tmp/2.png"}},
		&api.StepResult{StepID: "note", Success: true, Result: "ok"},
	)

	in := api.NewInputs(map[string]interface{}{
		"image": map[string]interface{}{"$semantic": "latest", "tool": "screen/capture", "path": "file"},
		"all": map[string]interface{}{"$merge": []interface{}{
			map[string]interface{}{"$semantic": "first"},
			map[string]interface{}{"$ref": "ocr"},
		}},
		"list": []interface{}{map[string]interface{}{"$semantic": "previous"}},
	})

	got, err := New().Resolve(in.Input, prior, &Context{CurrentIndex: 4, Steps: steps})
	require.NoError(t, err)
	assert.Equal(t, map[string]interface{}{
		"image": "/tmp/2.png",
		"all":   map[string]interface{}{"file": "/tmp/1.png", "text": "hello"},
		"list":  []interface{}{"ok"},
	}, got)
}

func TestResolve_SemanticWithoutContext(t *testing.T) {
	_, err := New().Resolve(api.Semantic{Selector: api.SelectPrevious}, api.NewStepResults(), nil)
	require.Error(t, err)
	assert.True(t, IsError(err))
	assert.Contains(t, err.Error(), "need a workflow context")
}

func TestResolve_SemanticPointsAtFailedStep(t *testing.T) {
	steps := semanticWorkflow()[:2]
	prior := priorResults(&api.StepResult{StepID: "shot1", Success: false, Error: "denied"})

	_, err := New().Resolve(api.Semantic{Selector: api.SelectPrevious}, prior, &Context{CurrentIndex: 1, Steps: steps})
	require.Error(t, err)

	var refErr *Error
	require.ErrorAs(t, err, &refErr)
	assert.Equal(t, "shot1", refErr.StepID)
	assert.Contains(t, err.Error(), "denied")
}
