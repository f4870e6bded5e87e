package formatting

import (
	"stepflow/internal/api"
	"stepflow/internal/scheduler"
	"stepflow/internal/workflow"
)

// JSONFormatter provides JSON output formatting
type JSONFormatter struct {
	options Options
}

// NewJSONFormatter creates a new JSON formatter
func NewJSONFormatter(options Options) Formatter {
	return &JSONFormatter{
		options: options,
	}
}

// FormatRunResult formats a run, including step outputs, as JSON.
func (f *JSONFormatter) FormatRunResult(result *api.WorkflowResult) string {
	return PrettyJSON(newRunDocument(result))
}

// FormatWorkflows formats workflow definitions as JSON
func (f *JSONFormatter) FormatWorkflows(workflows []api.Workflow) string {
	if workflows == nil {
		workflows = []api.Workflow{}
	}
	return PrettyJSON(map[string]interface{}{
		"workflows": workflows,
		"total":     len(workflows),
	})
}

// FormatCacheStats formats cache statistics as JSON
func (f *JSONFormatter) FormatCacheStats(stats []WorkflowCacheStats) string {
	if stats == nil {
		stats = []WorkflowCacheStats{}
	}
	return PrettyJSON(stats)
}

// FormatHistory formats a page of run history as JSON
func (f *JSONFormatter) FormatHistory(page *workflow.ListRunsResponse) string {
	return PrettyJSON(page)
}

// FormatSchedule formats scheduled workflows as JSON
func (f *JSONFormatter) FormatSchedule(entries []scheduler.Entry) string {
	if entries == nil {
		entries = []scheduler.Entry{}
	}
	return PrettyJSON(entries)
}

// SetOptions updates the formatter options
func (f *JSONFormatter) SetOptions(options Options) {
	f.options = options
}

// GetOptions returns the current formatter options
func (f *JSONFormatter) GetOptions() Options {
	return f.options
}
