// Package scheduler runs workflows on cron schedules.
//
// Schedules use the standard five-field cron syntax. A run of a workflow is
// skipped when the previous run of the same workflow is still in progress.
package scheduler

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"stepflow/internal/api"
	"stepflow/pkg/logging"
)

// WorkflowRunner executes one workflow run.
type WorkflowRunner interface {
	Run(ctx context.Context, wf *api.Workflow) *api.WorkflowResult
}

// Entry describes a scheduled workflow.
type Entry struct {
	WorkflowID string    `json:"workflowId"`
	Schedule   string    `json:"schedule"`
	Next       time.Time `json:"next"`
	// Prev is zero until the first scheduled run.
	Prev time.Time `json:"prev"`
}

type job struct {
	wf      *api.Workflow
	entryID cron.EntryID
}

// Scheduler triggers workflow runs from cron expressions.
type Scheduler struct {
	runner   WorkflowRunner
	cron     *cron.Cron
	onResult func(*api.WorkflowResult)

	mu      sync.Mutex
	jobs    map[string]*job
	running map[string]bool
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithOnResult registers a callback invoked after every scheduled run.
func WithOnResult(fn func(*api.WorkflowResult)) Option {
	return func(s *Scheduler) { s.onResult = fn }
}

// WithLocation evaluates schedules in loc instead of the local time zone.
func WithLocation(loc *time.Location) Option {
	return func(s *Scheduler) { s.cron = cron.New(cron.WithLocation(loc)) }
}

// New creates a stopped scheduler.
func New(runner WorkflowRunner, opts ...Option) *Scheduler {
	s := &Scheduler{
		runner:  runner,
		cron:    cron.New(),
		jobs:    make(map[string]*job),
		running: make(map[string]bool),
		ctx:     context.Background(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Add schedules wf according to wf.Schedule, replacing an earlier schedule
// of the same workflow.
func (s *Scheduler) Add(wf *api.Workflow) error {
	if wf.Schedule == "" {
		return fmt.Errorf("workflow %s has no schedule", wf.ID)
	}
	if _, err := cron.ParseStandard(wf.Schedule); err != nil {
		return fmt.Errorf("invalid cron expression for workflow %s: %w", wf.ID, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.jobs[wf.ID]; ok {
		s.cron.Remove(existing.entryID)
	}

	clone := *wf
	workflowID := wf.ID
	entryID, err := s.cron.AddFunc(wf.Schedule, func() {
		s.Trigger(workflowID)
	})
	if err != nil {
		return fmt.Errorf("failed to add cron job for workflow %s: %w", wf.ID, err)
	}
	s.jobs[wf.ID] = &job{wf: &clone, entryID: entryID}

	logging.Info("Scheduler", "Scheduled workflow %s (%s)", wf.ID, wf.Schedule)
	return nil
}

// Remove unschedules a workflow. It reports whether it was scheduled.
func (s *Scheduler) Remove(workflowID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	j, ok := s.jobs[workflowID]
	if !ok {
		return false
	}
	s.cron.Remove(j.entryID)
	delete(s.jobs, workflowID)
	return true
}

// Entries lists the scheduled workflows sorted by id.
func (s *Scheduler) Entries() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := make([]Entry, 0, len(s.jobs))
	for id, j := range s.jobs {
		ce := s.cron.Entry(j.entryID)
		entries = append(entries, Entry{
			WorkflowID: id,
			Schedule:   j.wf.Schedule,
			Next:       ce.Next,
			Prev:       ce.Prev,
		})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].WorkflowID < entries[j].WorkflowID })
	return entries
}

// Start begins firing schedules. Runs use ctx, or a child of it.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.mu.Unlock()

	s.cron.Start()
	logging.Info("Scheduler", "Scheduler started with %d workflows", len(s.Entries()))
}

// Stop stops firing schedules, cancels in-flight runs and waits for them.
func (s *Scheduler) Stop() {
	stopCtx := s.cron.Stop()

	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	s.mu.Unlock()

	<-stopCtx.Done()
	s.wg.Wait()
	logging.Info("Scheduler", "Scheduler stopped")
}

// Trigger runs a scheduled workflow now. It returns nil without running
// when the workflow is unknown or its previous run is still in progress.
// A workflow's clearCache flag is consumed by its first run.
func (s *Scheduler) Trigger(workflowID string) *api.WorkflowResult {
	s.mu.Lock()
	j, ok := s.jobs[workflowID]
	if !ok {
		s.mu.Unlock()
		logging.Warn("Scheduler", "Workflow %s is not scheduled", workflowID)
		return nil
	}
	if s.running[workflowID] {
		s.mu.Unlock()
		logging.Warn("Scheduler", "Skipping run of %s: previous run still in progress", workflowID)
		return nil
	}
	s.running[workflowID] = true
	ctx := s.ctx
	wf := j.wf
	if wf.ClearCache {
		// clearCache applies to the first scheduled run only.
		next := *wf
		next.ClearCache = false
		j.wf = &next
	}
	s.wg.Add(1)
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.running, workflowID)
		s.mu.Unlock()
		s.wg.Done()
	}()

	logging.Info("Scheduler", "Running scheduled workflow %s", workflowID)
	result := s.runner.Run(ctx, wf)
	if s.onResult != nil {
		s.onResult(result)
	}
	return result
}
