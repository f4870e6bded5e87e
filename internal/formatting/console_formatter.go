package formatting

import (
	"fmt"
	"strings"

	"stepflow/internal/api"
	"stepflow/internal/scheduler"
	"stepflow/internal/workflow"
)

// ConsoleFormatter provides simple console output formatting
type ConsoleFormatter struct {
	options Options
}

// NewConsoleFormatter creates a new console formatter
func NewConsoleFormatter(options Options) Formatter {
	return &ConsoleFormatter{
		options: options,
	}
}

// FormatRunResult formats a run as a status line followed by one line per step.
func (f *ConsoleFormatter) FormatRunResult(result *api.WorkflowResult) string {
	var output []string
	output = append(output, fmt.Sprintf("%s Workflow %s %s in %s (run %s)",
		statusMark(result.Success), result.WorkflowID, runStatus(result.Success),
		formatDuration(result.Duration()), result.RunID))

	for _, step := range result.Steps.All() {
		line := fmt.Sprintf("  %s %-20s %-24s %s", statusMark(step.Success), step.StepID, step.ToolID, formatDuration(step.Duration()))
		if step.FromCache {
			line += " [cached]"
		}
		if step.RetryCount > 0 {
			line += fmt.Sprintf(" [%d retries]", step.RetryCount)
		}
		if step.Error != "" {
			line += " - " + step.Error
		} else if f.options.ShowOutputs {
			line += " => " + compactValue(step.Result, 80)
		}
		output = append(output, line)
	}

	if result.Error != "" {
		output = append(output, "Error: "+result.Error)
	}
	if !f.options.Quiet {
		output = append(output, fmt.Sprintf("Cache: %d hits, %d misses", result.CacheStats.CacheHits, result.CacheStats.CacheMisses))
	}
	return strings.Join(output, "\n")
}

// FormatWorkflows formats workflow definitions for console output
func (f *ConsoleFormatter) FormatWorkflows(workflows []api.Workflow) string {
	if len(workflows) == 0 {
		return "No workflows defined."
	}

	var output []string
	output = append(output, fmt.Sprintf("Workflows (%d):", len(workflows)))
	for i, wf := range workflows {
		line := fmt.Sprintf("  %d. %-30s %d steps", i+1, wf.ID, len(wf.Steps))
		if wf.Schedule != "" {
			line += fmt.Sprintf(" [%s]", wf.Schedule)
		}
		if wf.Description != "" {
			line += " - " + wf.Description
		}
		output = append(output, line)
	}
	return strings.Join(output, "\n")
}

// FormatCacheStats formats cache statistics for console output
func (f *ConsoleFormatter) FormatCacheStats(stats []WorkflowCacheStats) string {
	if len(stats) == 0 {
		return "No cached workflows."
	}

	var output []string
	for _, s := range stats {
		output = append(output, fmt.Sprintf("%-30s entries=%d memory=%d lastAccessed=%s",
			s.WorkflowID, s.Entries, s.MemoryEntries, formatTime(s.LastAccessed)))
	}
	return strings.Join(output, "\n")
}

// FormatHistory formats a page of run history for console output
func (f *ConsoleFormatter) FormatHistory(page *workflow.ListRunsResponse) string {
	if page == nil || len(page.Runs) == 0 {
		return "No runs recorded."
	}

	var output []string
	for _, run := range page.Runs {
		line := fmt.Sprintf("%s %s %s %dms steps=%d cacheHits=%d",
			statusMark(run.Success), run.RunID, formatTime(run.StartedAt), run.DurationMs, run.StepCount, run.CacheHits)
		if run.Error != "" {
			line += " - " + truncate(run.Error, 80)
		}
		output = append(output, line)
	}
	output = append(output, pageFooter(page))
	return strings.Join(output, "\n")
}

// FormatSchedule formats scheduled workflows for console output
func (f *ConsoleFormatter) FormatSchedule(entries []scheduler.Entry) string {
	if len(entries) == 0 {
		return "No scheduled workflows."
	}

	var output []string
	for _, e := range entries {
		output = append(output, fmt.Sprintf("%-30s %-20s next=%s", e.WorkflowID, e.Schedule, formatTime(e.Next)))
	}
	return strings.Join(output, "\n")
}

// SetOptions updates the formatter options
func (f *ConsoleFormatter) SetOptions(options Options) {
	f.options = options
}

// GetOptions returns the current formatter options
func (f *ConsoleFormatter) GetOptions() Options {
	return f.options
}

func statusMark(success bool) string {
	if success {
		return "✓"
	}
	return "✗"
}

func pageFooter(page *workflow.ListRunsResponse) string {
	footer := fmt.Sprintf("Showing %d-%d of %d runs", page.Offset+1, page.Offset+len(page.Runs), page.Total)
	if page.HasMore {
		footer += fmt.Sprintf(" (next page: --offset %d)", page.Offset+len(page.Runs))
	}
	return footer
}
