package formatting

import (
	"stepflow/internal/api"
	"stepflow/internal/scheduler"
	"stepflow/internal/workflow"
)

// YAMLFormatter provides YAML output formatting
type YAMLFormatter struct {
	options Options
}

// NewYAMLFormatter creates a new YAML formatter
func NewYAMLFormatter(options Options) Formatter {
	return &YAMLFormatter{
		options: options,
	}
}

// FormatRunResult formats a run as YAML
func (f *YAMLFormatter) FormatRunResult(result *api.WorkflowResult) string {
	return PrettyYAML(newRunDocument(result))
}

// FormatWorkflows formats workflow definitions as YAML
func (f *YAMLFormatter) FormatWorkflows(workflows []api.Workflow) string {
	if workflows == nil {
		workflows = []api.Workflow{}
	}
	return PrettyYAML(map[string]interface{}{
		"workflows": workflows,
		"total":     len(workflows),
	})
}

// FormatCacheStats formats cache statistics as YAML
func (f *YAMLFormatter) FormatCacheStats(stats []WorkflowCacheStats) string {
	if stats == nil {
		stats = []WorkflowCacheStats{}
	}
	return PrettyYAML(stats)
}

// FormatHistory formats a page of run history as YAML
func (f *YAMLFormatter) FormatHistory(page *workflow.ListRunsResponse) string {
	return PrettyYAML(page)
}

// FormatSchedule formats scheduled workflows as YAML
func (f *YAMLFormatter) FormatSchedule(entries []scheduler.Entry) string {
	if entries == nil {
		entries = []scheduler.Entry{}
	}
	return PrettyYAML(entries)
}

// SetOptions updates the formatter options
func (f *YAMLFormatter) SetOptions(options Options) {
	f.options = options
}

// GetOptions returns the current formatter options
func (f *YAMLFormatter) GetOptions() Options {
	return f.options
}
