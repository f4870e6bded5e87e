package events

import (
	"time"
)

// EventType names a lifecycle transition.
type EventType string

const (
	WorkflowStarted   EventType = "workflow-started"
	WorkflowCompleted EventType = "workflow-completed"
	WorkflowFailed    EventType = "workflow-failed"
	StepStarted       EventType = "step-started"
	StepCompleted     EventType = "step-completed"
	StepRetrying      EventType = "step-retrying"
	StepFailed        EventType = "step-failed"
	CacheHit          EventType = "cache-hit"
)

// AllEventTypes lists every event type in lifecycle order.
var AllEventTypes = []EventType{
	WorkflowStarted, StepStarted, CacheHit, StepRetrying,
	StepCompleted, StepFailed, WorkflowCompleted, WorkflowFailed,
}

// Status is the short state tag carried by every event.
type Status string

const (
	StatusRunning   Status = "running"
	StatusRetrying  Status = "retrying"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCached    Status = "cached"
)

// Severity classifies events for sinks that filter or colour them.
type Severity string

const (
	// SeverityNormal indicates normal, non-problematic events.
	SeverityNormal Severity = "Normal"

	// SeverityWarning indicates events that may require attention.
	SeverityWarning Severity = "Warning"
)

// Event is the payload delivered to subscribers.
type Event struct {
	Type       EventType `json:"type"`
	RunID      string    `json:"runId"`
	WorkflowID string    `json:"workflowId"`
	// StepID is empty for workflow level events.
	StepID string `json:"stepId"`
	ToolID string `json:"toolId,omitempty"`
	Status Status `json:"status"`
	// Progress is the percentage of steps reached, when known.
	Progress *int `json:"progress,omitempty"`
	// Message is human readable; Emit renders one from the type's template when empty.
	Message   string        `json:"message,omitempty"`
	FromCache bool          `json:"fromCache,omitempty"`
	Attempt   int           `json:"attempt,omitempty"`
	Error     string        `json:"error,omitempty"`
	Duration  time.Duration `json:"duration,omitempty"`
	StepCount int           `json:"stepCount,omitempty"`
	Timestamp time.Time     `json:"timestamp"`
}

// Severity returns the event's severity.
func (e Event) Severity() Severity {
	return getSeverity(e.Type)
}

// IntPtr returns a pointer to v, for Event.Progress.
func IntPtr(v int) *int {
	return &v
}

func getSeverity(t EventType) Severity {
	switch t {
	case WorkflowFailed, StepFailed, StepRetrying:
		return SeverityWarning
	default:
		return SeverityNormal
	}
}
