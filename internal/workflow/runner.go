package workflow

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"stepflow/internal/api"
	"stepflow/internal/cache"
	"stepflow/internal/events"
	"stepflow/internal/reference"
	"stepflow/pkg/logging"
)

// DefaultBackoffBase is the first retry's unit delay. Retry n waits
// base * 2^n.
const DefaultBackoffBase = time.Second

// Sleeper suspends for d or until ctx is done, returning ctx's error in the
// latter case.
type Sleeper func(ctx context.Context, d time.Duration) error

// HistoryRecorder persists finished runs.
type HistoryRecorder interface {
	Record(ctx context.Context, result *api.WorkflowResult) error
}

// Runner executes workflows one step at a time.
//
// A Runner is safe for concurrent use; concurrent runs share the cache and
// identical concurrent cache misses invoke their tool once.
type Runner struct {
	invoker     api.ToolInvoker
	ttls        api.TTLProvider
	resolver    *reference.Resolver
	cache       *cache.Store
	events      events.Emitter
	history     HistoryRecorder
	sleep       Sleeper
	now         func() time.Time
	backoffBase time.Duration

	flights singleflight.Group
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithCache enables step output caching.
func WithCache(store *cache.Store) RunnerOption {
	return func(r *Runner) { r.cache = store }
}

// WithEvents publishes lifecycle events to emitter.
func WithEvents(emitter events.Emitter) RunnerOption {
	return func(r *Runner) { r.events = emitter }
}

// WithHistory records every finished run.
func WithHistory(recorder HistoryRecorder) RunnerOption {
	return func(r *Runner) { r.history = recorder }
}

// WithSleeper replaces the delay and backoff wait.
func WithSleeper(sleep Sleeper) RunnerOption {
	return func(r *Runner) { r.sleep = sleep }
}

// WithClock replaces the time source for result timestamps.
func WithClock(now func() time.Time) RunnerOption {
	return func(r *Runner) { r.now = now }
}

// WithBackoffBase sets the retry backoff unit.
func WithBackoffBase(base time.Duration) RunnerOption {
	return func(r *Runner) { r.backoffBase = base }
}

// WithTTLProvider sets where default cache TTLs come from. By default the
// invoker is used when it implements api.TTLProvider.
func WithTTLProvider(p api.TTLProvider) RunnerOption {
	return func(r *Runner) { r.ttls = p }
}

// WithResolver replaces the reference resolver.
func WithResolver(resolver *reference.Resolver) RunnerOption {
	return func(r *Runner) { r.resolver = resolver }
}

// NewRunner creates a Runner invoking tools through invoker.
func NewRunner(invoker api.ToolInvoker, opts ...RunnerOption) *Runner {
	r := &Runner{
		invoker:     invoker,
		resolver:    reference.New(),
		events:      noopEmitter{},
		sleep:       sleepContext,
		now:         time.Now,
		backoffBase: DefaultBackoffBase,
	}
	if p, ok := invoker.(api.TTLProvider); ok {
		r.ttls = p
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

type noopEmitter struct{}

func (noopEmitter) Emit(events.EventType, events.Event) {}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// run carries the state of one execution.
type run struct {
	wf     *api.Workflow
	result *api.WorkflowResult
	wctx   *reference.Context
}

func (rn *run) event(stepID string, status events.Status) events.Event {
	return events.Event{
		RunID:      rn.result.RunID,
		WorkflowID: rn.wf.ID,
		StepID:     stepID,
		Status:     status,
	}
}

// Run executes wf and returns its result. Run never fails: every error,
// including cancellation of ctx, is captured in the returned result.
func (r *Runner) Run(ctx context.Context, wf *api.Workflow) *api.WorkflowResult {
	rn := &run{
		wf: wf,
		result: &api.WorkflowResult{
			RunID:      uuid.New().String(),
			WorkflowID: wf.ID,
			StartedAt:  r.now(),
			Steps:      api.NewStepResults(),
			CacheStats: api.CacheStats{CachedSteps: []string{}},
		},
		wctx: &reference.Context{Steps: wf.Steps},
	}

	logging.Info("Runner", "Starting workflow %s (run %s, %d steps)", wf.ID, rn.result.RunID, len(wf.Steps))

	r.finish(ctx, rn, r.execute(ctx, rn))
	return rn.result
}

func (r *Runner) execute(ctx context.Context, rn *run) error {
	started := rn.event("", events.StatusRunning)
	started.StepCount = len(rn.wf.Steps)
	r.events.Emit(events.WorkflowStarted, started)

	if dups := rn.wf.DuplicateStepIDs(); len(dups) > 0 {
		return fmt.Errorf("duplicate step ids: %s", strings.Join(dups, ", "))
	}

	if rn.wf.ClearCache && r.cache != nil {
		if err := r.cache.ClearWorkflowCache(ctx, rn.wf.ID); err != nil {
			logging.Warn("Runner", "Failed to clear cache of workflow %s: %v", rn.wf.ID, err)
		}
	}

	total := len(rn.wf.Steps)
	for i, step := range rn.wf.Steps {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("run cancelled before step %s: %w", step.ID, err)
		}

		rn.wctx.CurrentIndex = i
		evt := rn.event(step.ID, events.StatusRunning)
		evt.ToolID = step.ToolID
		evt.Progress = events.IntPtr(int(math.Round(100 * float64(i+1) / float64(total))))
		r.events.Emit(events.StepStarted, evt)

		sr, err := r.runStep(ctx, rn, step)
		rn.result.Steps.Set(sr)
		r.recordStats(rn, sr)

		if err == nil {
			done := rn.event(step.ID, events.StatusCompleted)
			done.ToolID = step.ToolID
			done.FromCache = sr.FromCache
			done.Duration = sr.Duration()
			r.events.Emit(events.StepCompleted, done)
			continue
		}

		failed := rn.event(step.ID, events.StatusFailed)
		failed.ToolID = step.ToolID
		failed.Attempt = sr.RetryCount
		failed.Error = sr.Error
		r.events.Emit(events.StepFailed, failed)

		if ctx.Err() != nil {
			return fmt.Errorf("step %s cancelled: %w", step.ID, ctx.Err())
		}
		if step.Policy() == api.ErrorPolicyStop {
			return fmt.Errorf("step %s failed: %w", step.ID, err)
		}
		logging.Warn("Runner", "Step %s of %s failed, continuing (%s): %v", step.ID, rn.wf.ID, step.Policy(), err)
	}
	return nil
}

func (r *Runner) finish(ctx context.Context, rn *run, err error) {
	result := rn.result
	result.CompletedAt = r.now()

	if err != nil {
		result.Success = false
		result.Error = err.Error()
		evt := rn.event("", events.StatusFailed)
		evt.Error = result.Error
		evt.Duration = result.Duration()
		r.events.Emit(events.WorkflowFailed, evt)
		logging.Warn("Runner", "Workflow %s failed after %s: %v", rn.wf.ID, result.Duration(), err)
	} else {
		result.Success = true
		evt := rn.event("", events.StatusCompleted)
		evt.Duration = result.Duration()
		r.events.Emit(events.WorkflowCompleted, evt)
		logging.Info("Runner", "Workflow %s completed in %s (%d cache hits, %d misses)",
			rn.wf.ID, result.Duration(), result.CacheStats.CacheHits, result.CacheStats.CacheMisses)
	}

	if r.history != nil {
		if herr := r.history.Record(context.WithoutCancel(ctx), result); herr != nil {
			logging.Warn("Runner", "Failed to record run %s: %v", result.RunID, herr)
		}
	}
}

func (r *Runner) recordStats(rn *run, sr *api.StepResult) {
	if sr.FromCache {
		rn.result.CacheStats.CacheHits++
		return
	}
	if sr.CacheKey != "" {
		rn.result.CacheStats.CacheMisses++
	}
}

// runStep executes one step including its retries. The returned result is
// always non-nil; the error is the step's terminal failure.
func (r *Runner) runStep(ctx context.Context, rn *run, step api.Step) (*api.StepResult, error) {
	sr := &api.StepResult{
		StepID:    step.ID,
		ToolID:    step.ToolID,
		StartedAt: r.now(),
	}
	fail := func(err error) (*api.StepResult, error) {
		sr.Success = false
		sr.Result = nil
		sr.Error = err.Error()
		sr.CompletedAt = r.now()
		return sr, err
	}

	if d := step.Delay(); d > 0 {
		logging.Debug("Runner", "Delaying step %s by %s", step.ID, d)
		if err := r.sleep(ctx, d); err != nil {
			return fail(err)
		}
	}

	for {
		out, err := r.attempt(ctx, rn, step, sr)
		if err == nil {
			sr.Success = true
			sr.Result = out.value
			sr.FromCache = out.fromCache
			sr.Error = ""
			sr.CompletedAt = r.now()
			if out.wrote {
				rn.result.CacheStats.CachedSteps = append(rn.result.CacheStats.CachedSteps, step.ID)
			}
			return sr, nil
		}

		if reference.IsError(err) || ctx.Err() != nil || sr.RetryCount >= step.RetryCount {
			return fail(err)
		}

		sr.RetryCount++
		backoff := r.backoffBase * time.Duration(1<<uint(sr.RetryCount))

		evt := rn.event(step.ID, events.StatusRetrying)
		evt.ToolID = step.ToolID
		evt.Attempt = sr.RetryCount
		evt.Error = err.Error()
		r.events.Emit(events.StepRetrying, evt)
		logging.Debug("Runner", "Retrying step %s in %s (retry %d of %d): %v", step.ID, backoff, sr.RetryCount, step.RetryCount, err)

		if serr := r.sleep(ctx, backoff); serr != nil {
			return fail(fmt.Errorf("%w (retry aborted: %v)", err, serr))
		}
	}
}

// outcome is the value an attempt produced and where it came from.
type outcome struct {
	value     interface{}
	fromCache bool
	// wrote is set for the caller that stored a fresh cache entry.
	wrote bool
}

// attempt resolves inputs and produces the step's value from the cache or
// the tool.
func (r *Runner) attempt(ctx context.Context, rn *run, step api.Step, sr *api.StepResult) (outcome, error) {
	inputs, err := r.resolver.Resolve(step.Inputs.Input, rn.result.Steps, rn.wctx)
	if err != nil {
		return outcome{}, err
	}

	if !step.CachingEnabled() || r.cache == nil {
		value, err := r.invoke(ctx, step.ToolID, inputs)
		return outcome{value: value}, err
	}

	key := cache.GenerateKey(step.ID, step.ToolID, inputs, step.Cache.Key)
	sr.CacheKey = key

	if value, ok := r.cache.Get(ctx, rn.wf.ID, key); ok {
		r.emitCacheHit(rn, step)
		return outcome{value: value, fromCache: true}, nil
	}
	return r.fill(ctx, rn, step, key, inputs)
}

// fill invokes the tool for a cache miss and stores the result. Concurrent
// misses of the same key share one invocation. Every caller waits on its own
// context, and a caller whose context is still live joins a new flight when
// the shared one was cancelled by another run.
func (r *Runner) fill(ctx context.Context, rn *run, step api.Step, key string, inputs interface{}) (outcome, error) {
	for {
		leader := false
		ch := r.flights.DoChan(rn.wf.ID+"\x00"+key, func() (interface{}, error) {
			leader = true
			// Another run may have filled the entry since our miss.
			if value, ok := r.cache.Get(ctx, rn.wf.ID, key); ok {
				return outcome{value: value, fromCache: true}, nil
			}
			value, err := r.invoke(ctx, step.ToolID, inputs)
			if err != nil {
				return nil, err
			}
			r.cache.Set(ctx, rn.wf.ID, key, value, cache.SetOptions{
				TTL:        r.ttlFor(step),
				Persistent: step.Cache.Persistent,
			})
			return outcome{value: value, wrote: true}, nil
		})

		var res singleflight.Result
		select {
		case <-ctx.Done():
			return outcome{}, ctx.Err()
		case res = <-ch:
		}

		if res.Err != nil {
			if !leader && ctx.Err() == nil && isCancellation(res.Err) {
				logging.Debug("Runner", "Shared invocation for step %s was cancelled, retrying it", step.ID)
				continue
			}
			return outcome{}, res.Err
		}
		if res.Shared {
			logging.Debug("Runner", "Step %s shared an in-flight invocation for key %s", step.ID, key)
		}

		out := res.Val.(outcome)
		if !leader {
			out.wrote = false
		}
		if out.fromCache {
			r.emitCacheHit(rn, step)
		}
		return out, nil
	}
}

func (r *Runner) emitCacheHit(rn *run, step api.Step) {
	evt := rn.event(step.ID, events.StatusCached)
	evt.ToolID = step.ToolID
	evt.FromCache = true
	r.events.Emit(events.CacheHit, evt)
}

func isCancellation(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

func (r *Runner) ttlFor(step api.Step) time.Duration {
	if ttl := step.Cache.TTLDuration(); ttl > 0 {
		return ttl
	}
	if r.ttls != nil {
		if ttl, ok := r.ttls.DefaultTTL(step.ToolID); ok {
			return ttl
		}
	}
	return 0
}

// invoke runs the tool and unwraps its envelope. A panicking invoker is
// reported as a failed invocation.
func (r *Runner) invoke(ctx context.Context, toolID string, inputs interface{}) (value interface{}, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("tool %s panicked: %v", toolID, p)
		}
	}()

	start := time.Now()
	result, err := r.invoker.RunTool(ctx, toolID, inputs)
	if err != nil {
		return nil, err
	}
	if err := result.Err(); err != nil {
		return nil, err
	}
	logging.Debug("Runner", "Tool %s finished in %s", toolID, logging.Since(start))
	return result.Data, nil
}
