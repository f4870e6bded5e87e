package app

import (
	"context"
	"fmt"

	"stepflow/internal/api"
	"stepflow/internal/config"
	"stepflow/internal/formatting"
	"stepflow/internal/scheduler"
	"stepflow/internal/workflow"
	"stepflow/pkg/logging"
)

// LoadWorkflow returns the workflow with the given id. The definition file
// named <id>.yaml is preferred so a cache snapshot stored with it is
// imported; otherwise every definition is loaded and searched by id.
func (a *Application) LoadWorkflow(ctx context.Context, id string) (*api.Workflow, error) {
	wf, err := a.services.Manager.LoadStoredWorkflow(ctx, id)
	if err == nil {
		return wf, nil
	}
	if !api.IsNotFound(err) {
		return nil, err
	}

	if _, err := a.services.Manager.LoadDefinitions(); err != nil {
		return nil, err
	}
	wf, ok := a.services.Manager.GetWorkflow(id)
	if !ok {
		return nil, api.NewNotFoundError("workflow", id)
	}
	return wf, nil
}

// RunWorkflow loads and runs a workflow once. The error is only set when the
// workflow could not be loaded; run failures are reported in the result.
func (a *Application) RunWorkflow(ctx context.Context, id string) (*api.WorkflowResult, error) {
	wf, err := a.LoadWorkflow(ctx, id)
	if err != nil {
		return nil, err
	}
	return a.services.Runner.Run(ctx, wf), nil
}

// Validate loads every definition and reports the ones that are invalid.
func (a *Application) Validate() (*config.ConfigurationErrorCollection, []api.Workflow, error) {
	errs, err := a.services.Manager.LoadDefinitions()
	if err != nil {
		return nil, nil, err
	}
	return errs, a.services.Manager.ListWorkflows(), nil
}

// CacheStats returns cache statistics for the given workflows, or for every
// defined workflow when ids is empty.
func (a *Application) CacheStats(ctx context.Context, ids []string) ([]formatting.WorkflowCacheStats, error) {
	if len(ids) == 0 {
		if _, err := a.services.Manager.LoadDefinitions(); err != nil {
			return nil, err
		}
		for _, wf := range a.services.Manager.ListWorkflows() {
			ids = append(ids, wf.ID)
		}
	}

	stats := make([]formatting.WorkflowCacheStats, 0, len(ids))
	for _, id := range ids {
		stats = append(stats, formatting.WorkflowCacheStats{
			WorkflowID: id,
			Stats:      a.services.Cache.Stats(ctx, id),
		})
	}
	return stats, nil
}

// ClearCache removes the cache of the given workflows, or the whole cache
// when ids is empty.
func (a *Application) ClearCache(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return a.services.Cache.ClearAll(ctx)
	}
	for _, id := range ids {
		if err := a.services.Cache.ClearWorkflowCache(ctx, id); err != nil {
			return fmt.Errorf("failed to clear cache of %s: %w", id, err)
		}
	}
	return nil
}

// History lists stored runs.
func (a *Application) History(ctx context.Context, req workflow.ListRunsRequest) (*workflow.ListRunsResponse, error) {
	return a.services.History.List(ctx, req)
}

// NewScheduler creates a scheduler holding every valid workflow that has a
// schedule. onResult may be nil.
func (a *Application) NewScheduler(onResult func(*api.WorkflowResult)) (*scheduler.Scheduler, error) {
	if _, err := a.services.Manager.LoadDefinitions(); err != nil {
		return nil, err
	}

	s := scheduler.New(a.services.Runner, scheduler.WithOnResult(onResult))
	for _, wf := range a.services.Manager.ListWorkflows() {
		if wf.Schedule == "" {
			continue
		}
		wf := wf
		if err := s.Add(&wf); err != nil {
			logging.Warn("Schedule", "Skipping workflow %s: %v", wf.ID, err)
		}
	}
	return s, nil
}

// RunScheduler runs scheduled workflows until ctx is cancelled.
func (a *Application) RunScheduler(ctx context.Context, onResult func(*api.WorkflowResult)) error {
	s, err := a.NewScheduler(onResult)
	if err != nil {
		return err
	}
	if len(s.Entries()) == 0 {
		return fmt.Errorf("no workflows with a schedule found in %s", a.config.ConfigPath)
	}

	s.Start(ctx)
	logging.Info("Schedule", "Running %d scheduled workflows. Press Ctrl+C to stop.", len(s.Entries()))
	<-ctx.Done()

	logging.Info("Schedule", "Shutting down scheduler")
	s.Stop()
	return nil
}
