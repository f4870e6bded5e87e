package api

import (
	"encoding/json"
	"time"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// StepResult records the outcome of a step. When a step is retried only the
// last attempt's values are kept.
type StepResult struct {
	StepID      string      `json:"stepId"`
	ToolID      string      `json:"toolId"`
	Success     bool        `json:"success"`
	Result      interface{} `json:"result,omitempty"`
	Error       string      `json:"error,omitempty"`
	StartedAt   time.Time   `json:"startedAt"`
	CompletedAt time.Time   `json:"completedAt"`
	RetryCount  int         `json:"retryCount"`
	FromCache   bool        `json:"fromCache"`
	CacheKey    string      `json:"cacheKey,omitempty"`
}

// Duration returns how long the step took.
func (r *StepResult) Duration() time.Duration {
	return r.CompletedAt.Sub(r.StartedAt)
}

// StepResults maps step ids to results in execution order.
//
// It is not safe for concurrent use; a StepResults value belongs to a single run.
type StepResults struct {
	m *orderedmap.OrderedMap[string, *StepResult]
}

// NewStepResults creates an empty result map.
func NewStepResults() *StepResults {
	return &StepResults{m: orderedmap.New[string, *StepResult]()}
}

func (s *StepResults) ensure() {
	if s.m == nil {
		s.m = orderedmap.New[string, *StepResult]()
	}
}

// Set records the result for a step. Setting an existing id keeps its position.
func (s *StepResults) Set(result *StepResult) {
	s.ensure()
	s.m.Set(result.StepID, result)
}

// Get returns the result recorded for stepID.
func (s *StepResults) Get(stepID string) (*StepResult, bool) {
	if s == nil || s.m == nil {
		return nil, false
	}
	return s.m.Get(stepID)
}

// Len returns the number of recorded results.
func (s *StepResults) Len() int {
	if s == nil || s.m == nil {
		return 0
	}
	return s.m.Len()
}

// IDs returns the recorded step ids in execution order.
func (s *StepResults) IDs() []string {
	ids := make([]string, 0, s.Len())
	if s.Len() == 0 {
		return ids
	}
	for pair := s.m.Oldest(); pair != nil; pair = pair.Next() {
		ids = append(ids, pair.Key)
	}
	return ids
}

// All returns the recorded results in execution order.
func (s *StepResults) All() []*StepResult {
	out := make([]*StepResult, 0, s.Len())
	if s.Len() == 0 {
		return out
	}
	for pair := s.m.Oldest(); pair != nil; pair = pair.Next() {
		out = append(out, pair.Value)
	}
	return out
}

// MarshalJSON encodes the results as a JSON object keyed by step id, in execution order.
func (s *StepResults) MarshalJSON() ([]byte, error) {
	s.ensure()
	return json.Marshal(s.m)
}

// UnmarshalJSON restores a result map, keeping the document's key order.
func (s *StepResults) UnmarshalJSON(data []byte) error {
	s.m = orderedmap.New[string, *StepResult]()
	return json.Unmarshal(data, s.m)
}

// CacheStats summarises cache usage of a run.
type CacheStats struct {
	CacheHits   int `json:"cacheHits"`
	CacheMisses int `json:"cacheMisses"`
	// CachedSteps lists the steps that wrote a fresh cache entry.
	CachedSteps []string `json:"cachedSteps"`
}

// WorkflowResult is the outcome of a single run. It is owned by the run that
// produced it.
type WorkflowResult struct {
	RunID       string       `json:"runId"`
	WorkflowID  string       `json:"workflowId"`
	Success     bool         `json:"success"`
	Error       string       `json:"error,omitempty"`
	StartedAt   time.Time    `json:"startedAt"`
	CompletedAt time.Time    `json:"completedAt"`
	Steps       *StepResults `json:"steps"`
	CacheStats  CacheStats   `json:"cacheStats"`
}

// Duration returns how long the run took.
func (r *WorkflowResult) Duration() time.Duration {
	return r.CompletedAt.Sub(r.StartedAt)
}

// Step returns the result of stepID.
func (r *WorkflowResult) Step(stepID string) (*StepResult, bool) {
	return r.Steps.Get(stepID)
}
