package workflow

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stepflow/internal/api"
	"stepflow/internal/cache"
	"stepflow/internal/config"
	"stepflow/internal/invoker"
)

const reportYAML = `id: report
description: Fetch and summarize
schedule: "*/5 * * * *"
steps:
- id: fetch
  toolId: echo
  inputs:
    title: Weekly
  cache:
    enabled: true
    ttl: 60000
- id: render
  toolId: template
  onError: continue
  retryCount: 2
  delay: 10
  inputs:
    template: "{{ .title }}!"
    data:
      $ref: fetch
`

func writeDefinition(t *testing.T, dir, name, content string) {
	t.Helper()
	path := filepath.Join(dir, config.WorkflowsDir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func TestManager_LoadDefinitions(t *testing.T) {
	dir := t.TempDir()
	writeDefinition(t, dir, "report.yaml", reportYAML)
	writeDefinition(t, dir, "noid.yaml", "steps:\n- id: a\n  toolId: echo\n")
	writeDefinition(t, dir, "broken.yaml", "steps: [")
	writeDefinition(t, dir, "invalid.yaml", "id: invalid\nsteps:\n- id: a\n  toolId: nope\n")

	m := NewManager(dir, nil, invoker.NewRegistry())
	errs, err := m.LoadDefinitions()
	require.NoError(t, err)

	require.True(t, errs.HasErrors())
	assert.Len(t, errs.Errors, 2)
	assert.Contains(t, errs.GetSummary(), "broken")
	assert.Contains(t, errs.GetSummary(), "unknown tool 'nope'")

	workflows := m.ListWorkflows()
	require.Len(t, workflows, 2)
	assert.Equal(t, "noid", workflows[0].ID, "id defaults to the file name")
	assert.Equal(t, "report", workflows[1].ID)

	wf, ok := m.GetWorkflow("report")
	require.True(t, ok)
	require.Len(t, wf.Steps, 2)
	assert.Equal(t, "*/5 * * * *", wf.Schedule)
	assert.True(t, wf.Steps[0].CachingEnabled())
	assert.Equal(t, time.Minute, wf.Steps[0].Cache.TTLDuration())
	assert.Equal(t, api.ErrorPolicyContinue, wf.Steps[1].OnError)
	assert.Equal(t, 2, wf.Steps[1].RetryCount)
	assert.Equal(t, 10*time.Millisecond, wf.Steps[1].Delay())
	assert.Equal(t, []string{"fetch"}, api.References(wf.Steps[1].Inputs.Input))

	_, ok = m.GetWorkflow("invalid")
	assert.False(t, ok)
}

func TestManager_LoadedDefinitionRuns(t *testing.T) {
	dir := t.TempDir()
	writeDefinition(t, dir, "report.yaml", reportYAML)

	m := NewManager(dir, nil, nil)
	_, err := m.LoadDefinitions()
	require.NoError(t, err)
	wf, ok := m.GetWorkflow("report")
	require.True(t, ok)

	sleeper := &recordingSleeper{}
	result := NewRunner(invoker.NewRegistry(), WithSleeper(sleeper.sleep)).Run(context.Background(), wf)
	require.True(t, result.Success, result.Error)

	render, _ := result.Step("render")
	assert.Equal(t, map[string]interface{}{"text": "Weekly!"}, render.Result)
}

func TestManager_Validate(t *testing.T) {
	step := func(id, tool string, inputs interface{}) api.Step {
		s := api.Step{ID: id, ToolID: tool}
		if inputs != nil {
			s.Inputs = api.NewInputs(inputs)
		}
		return s
	}

	tests := []struct {
		name    string
		wf      api.Workflow
		wantErr []string
	}{
		{
			name: "valid",
			wf: api.Workflow{ID: "ok", Steps: []api.Step{
				step("a", "echo", nil),
				step("b", "echo", map[string]interface{}{"$ref": "a.x"}),
				step("c", "echo", map[string]interface{}{"$semantic": "previous"}),
			}},
		},
		{
			name:    "missing id and steps",
			wf:      api.Workflow{},
			wantErr: []string{"field 'id'", "at least one step"},
		},
		{
			name:    "bad id",
			wf:      api.Workflow{ID: "a b", Steps: []api.Step{step("a", "echo", nil)}},
			wantErr: []string{"cannot contain spaces or slashes"},
		},
		{
			name: "duplicate and empty step ids",
			wf: api.Workflow{ID: "w", Steps: []api.Step{
				step("a", "echo", nil), step("a", "echo", nil), step("", "echo", nil),
			}},
			wantErr: []string{"duplicate step ID 'a'", "step ID cannot be empty"},
		},
		{
			name:    "unknown tool and policy",
			wf:      api.Workflow{ID: "w", Steps: []api.Step{{ID: "a", ToolID: "nope", OnError: "explode"}}},
			wantErr: []string{"unknown tool 'nope'", "must be one of: stop, continue, retry"},
		},
		{
			name: "negative counters",
			wf: api.Workflow{ID: "w", Steps: []api.Step{{
				ID: "a", ToolID: "echo", RetryCount: -1, DelayMs: -5,
				Cache: &api.CacheDirective{Enabled: true, TTL: -1},
			}}},
			wantErr: []string{"retryCount", "delay", "cache.ttl"},
		},
		{
			name: "forward and self references",
			wf: api.Workflow{ID: "w", Steps: []api.Step{
				step("a", "echo", map[string]interface{}{"$ref": "b.x"}),
				step("b", "echo", map[string]interface{}{"$ref": "b"}),
			}},
			wantErr: []string{`reference "b.x" must name an earlier step`, `reference "b" must name an earlier step`},
		},
		{
			name: "semantic without earlier step",
			wf: api.Workflow{ID: "w", Steps: []api.Step{
				step("a", "echo", map[string]interface{}{"$semantic": "previous"}),
			}},
			wantErr: []string{"no earlier step"},
		},
		{
			name:    "bad schedule",
			wf:      api.Workflow{ID: "w", Schedule: "every day", Steps: []api.Step{step("a", "echo", nil)}},
			wantErr: []string{"invalid cron expression"},
		},
	}

	m := NewManager(t.TempDir(), nil, invoker.NewRegistry())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := m.Validate(&tt.wf)
			if len(tt.wantErr) == 0 {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			for _, want := range tt.wantErr {
				assert.Contains(t, err.Error(), want)
			}
		})
	}
}

func TestManager_SaveAndLoadWithCache(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	store := cache.NewStore()
	m := NewManager(dir, store, nil)

	wf := &api.Workflow{
		ID: "snap",
		Steps: []api.Step{
			{ID: "a", ToolID: "echo", Cache: &api.CacheDirective{Enabled: true}, Inputs: api.NewInputs(map[string]interface{}{"n": 1})},
		},
	}

	inv := newCountingInvoker()
	require.True(t, NewRunner(inv, WithCache(store)).Run(ctx, wf).Success)
	require.NoError(t, m.SaveWorkflow(ctx, wf, SaveOptions{IncludeCache: true}))

	data, err := os.ReadFile(filepath.Join(dir, config.WorkflowsDir, "snap.yaml"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "cache:")

	// A fresh process: new store and manager over the same directory.
	freshStore := cache.NewStore()
	loaded, err := NewManager(dir, freshStore, nil).LoadStoredWorkflow(ctx, "snap")
	require.NoError(t, err)
	assert.Equal(t, "snap", loaded.ID)
	assert.Equal(t, 1, freshStore.Stats(ctx, "snap").Entries)

	result := NewRunner(inv, WithCache(freshStore)).Run(ctx, loaded)
	require.True(t, result.Success)
	a, _ := result.Step("a")
	assert.True(t, a.FromCache)
	assert.Equal(t, 1, inv.count("echo"))
}

func TestManager_SaveWithoutCache(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	m := NewManager(dir, cache.NewStore(), nil)

	wf := &api.Workflow{ID: "plain", Steps: []api.Step{{ID: "a", ToolID: "echo"}}}
	require.NoError(t, m.SaveWorkflow(ctx, wf, SaveOptions{}))

	data, err := os.ReadFile(filepath.Join(dir, config.WorkflowsDir, "plain.yaml"))
	require.NoError(t, err)
	assert.NotContains(t, string(data), "cache:")

	assert.Error(t, m.SaveWorkflow(ctx, &api.Workflow{ID: "bad"}, SaveOptions{}))

	require.NoError(t, m.DeleteWorkflow("plain"))
	assert.True(t, api.IsNotFound(m.DeleteWorkflow("plain")))

	_, err = m.LoadStoredWorkflow(ctx, "plain")
	assert.True(t, api.IsNotFound(err))
}

func TestParseDefinition_RejectsBadInputs(t *testing.T) {
	_, err := ParseDefinition([]byte("id: w\nsteps:\n- id: a\n  toolId: echo\n  inputs:\n    $ref: 5\n"), "w")
	assert.ErrorContains(t, err, "$ref must be a string")
}
