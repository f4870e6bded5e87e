package workflow

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stepflow/internal/api"
)

func fakeResult(workflowID string, n int, success bool) *api.WorkflowResult {
	start := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC).Add(time.Duration(n) * time.Minute)
	result := &api.WorkflowResult{
		RunID:       fmt.Sprintf("run-%02d", n),
		WorkflowID:  workflowID,
		Success:     success,
		StartedAt:   start,
		CompletedAt: start.Add(1500 * time.Millisecond),
		Steps:       api.NewStepResults(),
	}
	result.Steps.Set(&api.StepResult{StepID: "a", Success: success})
	if !success {
		result.Error = "step a failed"
	}
	return result
}

func TestHistoryStore_RecordAndList(t *testing.T) {
	ctx := context.Background()
	h := NewHistoryStore(t.TempDir())

	for i := 0; i < 5; i++ {
		require.NoError(t, h.Record(ctx, fakeResult("w", i, i%2 == 0)))
	}
	require.NoError(t, h.Record(ctx, fakeResult("other", 9, true)))

	page, err := h.List(ctx, ListRunsRequest{WorkflowID: "w", Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, 5, page.Total)
	assert.True(t, page.HasMore)
	require.Len(t, page.Runs, 2)
	assert.Equal(t, "run-04", page.Runs[0].RunID, "newest first")
	assert.Equal(t, "run-03", page.Runs[1].RunID)
	assert.Equal(t, int64(1500), page.Runs[0].DurationMs)
	assert.Equal(t, 1, page.Runs[0].StepCount)

	page, err = h.List(ctx, ListRunsRequest{WorkflowID: "w", Limit: 2, Offset: 4})
	require.NoError(t, err)
	require.Len(t, page.Runs, 1)
	assert.False(t, page.HasMore)

	page, err = h.List(ctx, ListRunsRequest{WorkflowID: "w", Offset: 10})
	require.NoError(t, err)
	assert.Empty(t, page.Runs)
	assert.Equal(t, DefaultHistoryLimit, page.Limit)

	failed, err := h.List(ctx, ListRunsRequest{WorkflowID: "w", Status: RunStatusFailed})
	require.NoError(t, err)
	assert.Equal(t, 2, failed.Total)
	for _, run := range failed.Runs {
		assert.False(t, run.Success)
		assert.Equal(t, "step a failed", run.Error)
	}

	capped, err := h.List(ctx, ListRunsRequest{WorkflowID: "w", Limit: 5000})
	require.NoError(t, err)
	assert.Equal(t, MaxHistoryLimit, capped.Limit)

	_, err = h.List(ctx, ListRunsRequest{})
	assert.Error(t, err)
}

func TestHistoryStore_PicksUpExternalChanges(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	writer := NewHistoryStore(dir)
	reader := NewHistoryStore(dir)
	require.NoError(t, writer.Record(ctx, fakeResult("w", 1, true)))

	page, err := reader.List(ctx, ListRunsRequest{WorkflowID: "w"})
	require.NoError(t, err)
	assert.Equal(t, 1, page.Total)

	require.NoError(t, writer.Record(ctx, fakeResult("w", 2, true)))
	require.NoError(t, os.Remove(filepath.Join(dir, "runs", "w", "run-01.json")))

	page, err = reader.List(ctx, ListRunsRequest{WorkflowID: "w"})
	require.NoError(t, err)
	require.Equal(t, 1, page.Total)
	assert.Equal(t, "run-02", page.Runs[0].RunID)
}

func TestHistoryStore_GetAndDelete(t *testing.T) {
	ctx := context.Background()
	h := NewHistoryStore(t.TempDir())
	require.NoError(t, h.Record(ctx, fakeResult("w", 1, true)))

	got, err := h.Get(ctx, "w", "run-01")
	require.NoError(t, err)
	assert.True(t, got.Success)
	assert.Equal(t, []string{"a"}, got.Steps.IDs())

	require.NoError(t, h.Delete(ctx, "w", "run-01"))
	_, err = h.Get(ctx, "w", "run-01")
	assert.True(t, api.IsNotFound(err))
	assert.True(t, api.IsNotFound(h.Delete(ctx, "w", "run-01")))

	page, err := h.List(ctx, ListRunsRequest{WorkflowID: "w"})
	require.NoError(t, err)
	assert.Equal(t, 0, page.Total)
}
