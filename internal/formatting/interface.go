// Package formatting renders workflow runs, cache statistics, run history and
// schedules for the CLI in console, table, JSON or YAML form.
package formatting

import (
	"time"

	"stepflow/internal/api"
	"stepflow/internal/cache"
	"stepflow/internal/scheduler"
	"stepflow/internal/workflow"
)

// OutputFormat represents the desired output format
type OutputFormat string

const (
	FormatConsole OutputFormat = "console" // Simple console output
	FormatJSON    OutputFormat = "json"    // JSON output
	FormatYAML    OutputFormat = "yaml"    // YAML output
	FormatTable   OutputFormat = "table"   // Rich table output
)

// OutputFormats lists every accepted output format.
var OutputFormats = []string{string(FormatConsole), string(FormatTable), string(FormatJSON), string(FormatYAML)}

// Options configures the formatter behavior
type Options struct {
	Format OutputFormat
	Quiet  bool // Suppress decorative elements
	Color  bool // Enable colored output
	// ShowOutputs includes step outputs in run results.
	ShowOutputs bool
}

// WorkflowCacheStats pairs a workflow with its cache statistics.
type WorkflowCacheStats struct {
	WorkflowID string `json:"workflowId"`
	cache.Stats
}

// Formatter renders stepflow values as text.
type Formatter interface {
	FormatRunResult(result *api.WorkflowResult) string
	FormatWorkflows(workflows []api.Workflow) string
	FormatCacheStats(stats []WorkflowCacheStats) string
	FormatHistory(page *workflow.ListRunsResponse) string
	FormatSchedule(entries []scheduler.Entry) string

	// Configuration
	SetOptions(options Options)
	GetOptions() Options
}

// Factory creates formatters for different output formats
type Factory interface {
	CreateFormatter(options Options) Formatter
}

// NewFactory creates a new formatter factory
func NewFactory() Factory {
	return &factory{}
}

// factory implements the Factory interface
type factory struct{}

// CreateFormatter creates the appropriate formatter based on options
func (f *factory) CreateFormatter(options Options) Formatter {
	switch options.Format {
	case FormatJSON:
		return NewJSONFormatter(options)
	case FormatYAML:
		return NewYAMLFormatter(options)
	case FormatTable:
		return NewTableFormatter(options)
	case FormatConsole:
		fallthrough
	default:
		return NewConsoleFormatter(options)
	}
}

// runDocument is the serialisable view of a run used by JSON and YAML output.
type runDocument struct {
	RunID       string           `json:"runId"`
	WorkflowID  string           `json:"workflowId"`
	Success     bool             `json:"success"`
	Error       string           `json:"error,omitempty"`
	StartedAt   time.Time        `json:"startedAt"`
	CompletedAt time.Time        `json:"completedAt"`
	DurationMs  int64            `json:"durationMs"`
	Steps       *api.StepResults `json:"steps"`
	CacheStats  api.CacheStats   `json:"cacheStats"`
}

func newRunDocument(result *api.WorkflowResult) runDocument {
	return runDocument{
		RunID:       result.RunID,
		WorkflowID:  result.WorkflowID,
		Success:     result.Success,
		Error:       result.Error,
		StartedAt:   result.StartedAt,
		CompletedAt: result.CompletedAt,
		DurationMs:  result.Duration().Milliseconds(),
		Steps:       result.Steps,
		CacheStats:  result.CacheStats,
	}
}
