package api

import (
	"time"
)

// ErrorPolicy governs how a step's terminal failure affects the rest of a run.
type ErrorPolicy string

const (
	// ErrorPolicyStop aborts the whole run. This is the default.
	ErrorPolicyStop ErrorPolicy = "stop"
	// ErrorPolicyContinue records the failure and proceeds to the next step.
	ErrorPolicyContinue ErrorPolicy = "continue"
	// ErrorPolicyRetry behaves like continue once the step's retries are exhausted.
	ErrorPolicyRetry ErrorPolicy = "retry"
)

// ErrorPolicies lists every accepted error policy value.
var ErrorPolicies = []string{string(ErrorPolicyStop), string(ErrorPolicyContinue), string(ErrorPolicyRetry)}

// Workflow is a named, ordered list of steps.
//
// Workflows are loaded from YAML definitions or built programmatically and
// handed to the Runner. Step ids must be unique within a workflow.
type Workflow struct {
	// ID is the unique identifier of the workflow. Cache entries and run
	// history are scoped by it.
	ID string `json:"id"`

	// Name is a human readable display name.
	Name string `json:"name,omitempty"`

	// Description documents the workflow's purpose.
	Description string `json:"description,omitempty"`

	// Steps are executed strictly in declared order.
	Steps []Step `json:"steps"`

	// ClearCache purges every cache entry of this workflow before the first
	// step runs.
	ClearCache bool `json:"clearCache,omitempty"`

	// Schedule is an optional standard five-field cron expression used by
	// the scheduler.
	Schedule string `json:"schedule,omitempty"`
}

// Step is one tool invocation within a workflow.
type Step struct {
	// ID identifies the step; references use it as their first path segment.
	ID string `json:"id"`

	// ToolID names the tool the Tool Invoker should run.
	ToolID string `json:"toolId"`

	// Description documents what the step does.
	Description string `json:"description,omitempty"`

	// Inputs is the declarative input specification resolved before invocation.
	Inputs Inputs `json:"inputs"`

	// OnError selects the error policy. Empty means ErrorPolicyStop.
	OnError ErrorPolicy `json:"onError,omitempty"`

	// RetryCount is the number of additional attempts after the first failure.
	RetryCount int `json:"retryCount,omitempty"`

	// DelayMs suspends the step for this many milliseconds before it runs.
	DelayMs int `json:"delay,omitempty"`

	// Cache configures output caching for the step.
	Cache *CacheDirective `json:"cache,omitempty"`
}

// CacheDirective configures caching of a step's output.
type CacheDirective struct {
	// Enabled turns caching on for the step.
	Enabled bool `json:"enabled"`

	// Key replaces the derived input hash. It is combined with the step id.
	Key string `json:"key,omitempty"`

	// Persistent controls the persistent tier. Nil means true.
	Persistent *bool `json:"persistent,omitempty"`

	// TTL in milliseconds. Zero means the tool default, or no expiry.
	TTL int64 `json:"ttl,omitempty"`
}

// Policy returns the step's effective error policy.
func (s Step) Policy() ErrorPolicy {
	if s.OnError == "" {
		return ErrorPolicyStop
	}
	return s.OnError
}

// CachingEnabled reports whether the step reads and writes the cache.
func (s Step) CachingEnabled() bool {
	return s.Cache != nil && s.Cache.Enabled
}

// Delay returns the pre-execution delay as a duration.
func (s Step) Delay() time.Duration {
	return time.Duration(s.DelayMs) * time.Millisecond
}

// TTLDuration returns the directive's time to live as a duration.
func (c *CacheDirective) TTLDuration() time.Duration {
	if c == nil {
		return 0
	}
	return time.Duration(c.TTL) * time.Millisecond
}

// StepIndex returns the position of the step with the given id, or -1.
func (w *Workflow) StepIndex(id string) int {
	for i, step := range w.Steps {
		if step.ID == id {
			return i
		}
	}
	return -1
}

// DuplicateStepIDs returns every step id that appears more than once.
func (w *Workflow) DuplicateStepIDs() []string {
	seen := make(map[string]int, len(w.Steps))
	var dups []string
	for _, step := range w.Steps {
		seen[step.ID]++
		if seen[step.ID] == 2 {
			dups = append(dups, step.ID)
		}
	}
	return dups
}

// BoolPtr returns a pointer to b. It is handy for CacheDirective.Persistent.
func BoolPtr(b bool) *bool {
	return &b
}
