package formatting

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stepflow/internal/api"
	"stepflow/internal/cache"
	"stepflow/internal/scheduler"
	"stepflow/internal/workflow"
)

func sampleResult() *api.WorkflowResult {
	start := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	steps := api.NewStepResults()
	steps.Set(&api.StepResult{
		StepID: "fetch", ToolID: "echo", Success: true,
		Result:    map[string]interface{}{"body": "hello"},
		StartedAt: start, CompletedAt: start.Add(120 * time.Millisecond),
		FromCache: true, CacheKey: "fetch:abc",
	})
	steps.Set(&api.StepResult{
		StepID: "parse", ToolID: "fail", Success: false,
		Error:     "boom",
		StartedAt: start.Add(120 * time.Millisecond), CompletedAt: start.Add(time.Second),
		RetryCount: 2,
	})
	return &api.WorkflowResult{
		RunID: "run-1", WorkflowID: "report", Success: false, Error: "step parse failed: boom",
		StartedAt: start, CompletedAt: start.Add(time.Second),
		Steps:      steps,
		CacheStats: api.CacheStats{CacheHits: 1, CacheMisses: 0, CachedSteps: []string{}},
	}
}

func TestFactory_CreateFormatter(t *testing.T) {
	factory := NewFactory()

	assert.IsType(t, &JSONFormatter{}, factory.CreateFormatter(Options{Format: FormatJSON}))
	assert.IsType(t, &YAMLFormatter{}, factory.CreateFormatter(Options{Format: FormatYAML}))
	assert.IsType(t, &TableFormatter{}, factory.CreateFormatter(Options{Format: FormatTable}))
	assert.IsType(t, &ConsoleFormatter{}, factory.CreateFormatter(Options{Format: FormatConsole}))
	assert.IsType(t, &ConsoleFormatter{}, factory.CreateFormatter(Options{}))

	f := factory.CreateFormatter(Options{Format: FormatTable})
	f.SetOptions(Options{Format: FormatTable, Quiet: true})
	assert.True(t, f.GetOptions().Quiet)
}

func TestConsoleFormatter_RunResult(t *testing.T) {
	out := NewConsoleFormatter(Options{}).FormatRunResult(sampleResult())

	assert.Contains(t, out, "✗ Workflow report failed in 1s (run run-1)")
	assert.Contains(t, out, "[cached]")
	assert.Contains(t, out, "[2 retries] - boom")
	assert.Contains(t, out, "Error: step parse failed: boom")
	assert.Contains(t, out, "Cache: 1 hits, 0 misses")
	assert.NotContains(t, out, "hello")

	out = NewConsoleFormatter(Options{ShowOutputs: true, Quiet: true}).FormatRunResult(sampleResult())
	assert.Contains(t, out, `=> {"body":"hello"}`)
	assert.NotContains(t, out, "Cache:")
}

func TestTableFormatter_RunResult(t *testing.T) {
	out := NewTableFormatter(Options{ShowOutputs: true}).FormatRunResult(sampleResult())

	assert.Contains(t, out, "STEP")
	assert.Contains(t, out, "OUTPUT")
	assert.Contains(t, out, "fetch")
	assert.Contains(t, out, "hit")
	assert.Contains(t, out, "boom")
	assert.Contains(t, out, "1/1")
	assert.Contains(t, out, "Error: step parse failed: boom")
	assert.NotContains(t, out, "\x1b[", "no colour codes unless enabled")

	text.EnableColors()
	colored := NewTableFormatter(Options{Color: true}).FormatRunResult(sampleResult())
	assert.Contains(t, colored, "\x1b[")
}

func TestJSONFormatter_RunResult(t *testing.T) {
	out := NewJSONFormatter(Options{}).FormatRunResult(sampleResult())

	var doc map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(out), &doc))
	assert.Equal(t, "report", doc["workflowId"])
	assert.Equal(t, float64(1000), doc["durationMs"])

	steps, ok := doc["steps"].(map[string]interface{})
	require.True(t, ok)
	assert.Contains(t, steps, "fetch")
	assert.Contains(t, steps, "parse")
}

func TestYAMLFormatter_RunResultKeepsStepOrder(t *testing.T) {
	out := NewYAMLFormatter(Options{}).FormatRunResult(sampleResult())

	assert.Contains(t, out, "workflowId: report")
	fetch := strings.Index(out, "fetch:")
	parse := strings.Index(out, "parse:")
	require.True(t, fetch >= 0 && parse >= 0)
	assert.Less(t, fetch, parse)
}

func TestFormatters_EmptyInputs(t *testing.T) {
	for _, format := range []OutputFormat{FormatConsole, FormatTable, FormatJSON, FormatYAML} {
		t.Run(string(format), func(t *testing.T) {
			f := NewFactory().CreateFormatter(Options{Format: format})
			assert.NotEmpty(t, f.FormatWorkflows(nil))
			assert.NotEmpty(t, f.FormatCacheStats(nil))
			assert.NotEmpty(t, f.FormatHistory(&workflow.ListRunsResponse{Runs: []workflow.RunSummary{}}))
			assert.NotEmpty(t, f.FormatSchedule(nil))
		})
	}
}

func TestFormatters_Listings(t *testing.T) {
	workflows := []api.Workflow{{ID: "report", Description: "Weekly report", Schedule: "0 9 * * 1", Steps: []api.Step{{ID: "a"}}}}
	stats := []WorkflowCacheStats{{WorkflowID: "report", Stats: cache.Stats{Entries: 3, MemoryEntries: 2}}}
	page := &workflow.ListRunsResponse{
		Runs:  []workflow.RunSummary{{RunID: "r2", WorkflowID: "report", Success: true, DurationMs: 12, StepCount: 1}},
		Total: 2, Limit: 1, Offset: 0, HasMore: true,
	}
	entries := []scheduler.Entry{{WorkflowID: "report", Schedule: "0 9 * * 1"}}

	console := NewConsoleFormatter(Options{})
	assert.Contains(t, console.FormatWorkflows(workflows), "0 9 * * 1")
	assert.Contains(t, console.FormatCacheStats(stats), "entries=3 memory=2")
	assert.Contains(t, console.FormatHistory(page), "Showing 1-1 of 2 runs (next page: --offset 1)")
	assert.Contains(t, console.FormatSchedule(entries), "report")

	table := NewTableFormatter(Options{})
	assert.Contains(t, table.FormatWorkflows(workflows), "Weekly report")
	assert.Contains(t, table.FormatCacheStats(stats), "LAST ACCESSED")
	assert.Contains(t, table.FormatHistory(page), "12ms")
	assert.Contains(t, table.FormatSchedule(entries), "NEXT RUN")

	var decoded []map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(NewJSONFormatter(Options{}).FormatCacheStats(stats)), &decoded))
	require.Len(t, decoded, 1)
	assert.Equal(t, float64(3), decoded[0]["entries"])
	assert.Equal(t, "report", decoded[0]["workflowId"])
}
