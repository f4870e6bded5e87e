package workflow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"stepflow/internal/api"
	"stepflow/internal/config"
	"stepflow/pkg/logging"
)

// Pagination bounds for HistoryStore.List.
const (
	DefaultHistoryLimit = 50
	MaxHistoryLimit     = 1000
)

// Run status filters for ListRunsRequest.
const (
	RunStatusSucceeded = "succeeded"
	RunStatusFailed    = "failed"
)

// RunSummary is the listing view of a stored run.
type RunSummary struct {
	RunID       string    `json:"runId"`
	WorkflowID  string    `json:"workflowId"`
	Success     bool      `json:"success"`
	StartedAt   time.Time `json:"startedAt"`
	CompletedAt time.Time `json:"completedAt"`
	DurationMs  int64     `json:"durationMs"`
	StepCount   int       `json:"stepCount"`
	CacheHits   int       `json:"cacheHits"`
	Error       string    `json:"error,omitempty"`
}

// ListRunsRequest selects a page of runs.
type ListRunsRequest struct {
	// WorkflowID is required.
	WorkflowID string
	// Status is empty, RunStatusSucceeded or RunStatusFailed.
	Status string
	// Limit defaults to DefaultHistoryLimit and is capped at MaxHistoryLimit.
	Limit  int
	Offset int
}

// ListRunsResponse is one page of runs, newest first.
type ListRunsResponse struct {
	Runs    []RunSummary `json:"runs"`
	Total   int          `json:"total"`
	Limit   int          `json:"limit"`
	Offset  int          `json:"offset"`
	HasMore bool         `json:"hasMore"`
}

// HistoryStore persists finished runs as JSON files under
// <configPath>/runs/<workflowId>/<runId>.json. It implements HistoryRecorder.
type HistoryStore struct {
	storage *config.Storage
	mu      sync.RWMutex
	// summaries caches parsed runs per workflow, keyed by run id.
	summaries map[string]map[string]RunSummary
}

var _ HistoryRecorder = (*HistoryStore)(nil)

// NewHistoryStore creates a history store rooted at configPath.
func NewHistoryStore(configPath string) *HistoryStore {
	if configPath == "" {
		panic("Logic error: empty history store configPath")
	}
	return &HistoryStore{
		storage:   config.NewStorageWithPath(configPath).WithExtension(".json"),
		summaries: make(map[string]map[string]RunSummary),
	}
}

func runsEntityType(workflowID string) string {
	return filepath.Join(config.RunsDir, config.SanitizeName(workflowID))
}

// Record stores result.
func (h *HistoryStore) Record(ctx context.Context, result *api.WorkflowResult) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal run %s: %w", result.RunID, err)
	}

	if err := h.storage.Save(runsEntityType(result.WorkflowID), result.RunID, data); err != nil {
		return fmt.Errorf("failed to save run %s: %w", result.RunID, err)
	}

	h.cacheSummary(result)
	logging.Debug("RunHistory", "Stored run %s for workflow %s", result.RunID, result.WorkflowID)
	return nil
}

// Get loads one run.
func (h *HistoryStore) Get(ctx context.Context, workflowID, runID string) (*api.WorkflowResult, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.load(workflowID, runID)
}

func (h *HistoryStore) load(workflowID, runID string) (*api.WorkflowResult, error) {
	data, err := h.storage.Load(runsEntityType(workflowID), runID)
	if err != nil {
		if errors.Is(err, config.ErrEntityNotFound) {
			return nil, api.NewNotFoundError("run", runID)
		}
		return nil, fmt.Errorf("failed to load run %s: %w", runID, err)
	}

	var result api.WorkflowResult
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal run %s: %w", runID, err)
	}
	return &result, nil
}

// List returns a page of runs of one workflow, most recent first.
func (h *HistoryStore) List(ctx context.Context, req ListRunsRequest) (*ListRunsResponse, error) {
	if req.WorkflowID == "" {
		return nil, fmt.Errorf("workflow id is required")
	}

	limit := req.Limit
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	if limit > MaxHistoryLimit {
		limit = MaxHistoryLimit
	}
	offset := req.Offset
	if offset < 0 {
		offset = 0
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if err := h.refresh(req.WorkflowID); err != nil {
		return nil, fmt.Errorf("failed to refresh run history: %w", err)
	}

	var filtered []RunSummary
	for _, summary := range h.summaries[req.WorkflowID] {
		switch req.Status {
		case RunStatusSucceeded:
			if !summary.Success {
				continue
			}
		case RunStatusFailed:
			if summary.Success {
				continue
			}
		}
		filtered = append(filtered, summary)
	}

	sort.Slice(filtered, func(i, j int) bool {
		if filtered[i].StartedAt.Equal(filtered[j].StartedAt) {
			return filtered[i].RunID > filtered[j].RunID
		}
		return filtered[i].StartedAt.After(filtered[j].StartedAt)
	})

	total := len(filtered)
	page := []RunSummary{}
	if offset < total {
		end := offset + limit
		if end > total {
			end = total
		}
		page = append(page, filtered[offset:end]...)
	}

	logging.Debug("RunHistory", "Listed %d runs of %s (total: %d, offset: %d, limit: %d)",
		len(page), req.WorkflowID, total, offset, limit)

	return &ListRunsResponse{
		Runs:    page,
		Total:   total,
		Limit:   limit,
		Offset:  offset,
		HasMore: offset+len(page) < total,
	}, nil
}

// Delete removes one run.
func (h *HistoryStore) Delete(ctx context.Context, workflowID, runID string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if err := h.storage.Delete(runsEntityType(workflowID), runID); err != nil {
		if errors.Is(err, config.ErrEntityNotFound) {
			return api.NewNotFoundError("run", runID)
		}
		return fmt.Errorf("failed to delete run %s: %w", runID, err)
	}
	delete(h.summaries[workflowID], config.SanitizeName(runID))
	return nil
}

// refresh syncs the summary cache of a workflow with the files on disk.
// Callers hold the write lock.
func (h *HistoryStore) refresh(workflowID string) error {
	names, err := h.storage.List(runsEntityType(workflowID))
	if err != nil {
		return err
	}

	cached := h.summaries[workflowID]
	if cached == nil {
		cached = make(map[string]RunSummary)
		h.summaries[workflowID] = cached
	}

	existing := make(map[string]bool, len(names))
	for _, name := range names {
		existing[name] = true
		if _, ok := cached[name]; ok {
			continue
		}
		result, err := h.load(workflowID, name)
		if err != nil {
			logging.Warn("RunHistory", "Skipping unreadable run %s of %s: %v", name, workflowID, err)
			continue
		}
		cached[name] = summarize(result)
	}

	for name := range cached {
		if !existing[name] {
			delete(cached, name)
		}
	}
	return nil
}

func (h *HistoryStore) cacheSummary(result *api.WorkflowResult) {
	cached := h.summaries[result.WorkflowID]
	if cached == nil {
		cached = make(map[string]RunSummary)
		h.summaries[result.WorkflowID] = cached
	}
	cached[config.SanitizeName(result.RunID)] = summarize(result)
}

func summarize(result *api.WorkflowResult) RunSummary {
	return RunSummary{
		RunID:       result.RunID,
		WorkflowID:  result.WorkflowID,
		Success:     result.Success,
		StartedAt:   result.StartedAt,
		CompletedAt: result.CompletedAt,
		DurationMs:  result.Duration().Milliseconds(),
		StepCount:   result.Steps.Len(),
		CacheHits:   result.CacheStats.CacheHits,
		Error:       result.Error,
	}
}
