package formatting

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"stepflow/internal/api"
	"stepflow/internal/scheduler"
	"stepflow/internal/workflow"
)

// TableFormatter provides rich table output formatting
type TableFormatter struct {
	options Options
}

// NewTableFormatter creates a new table formatter
func NewTableFormatter(options Options) Formatter {
	return &TableFormatter{
		options: options,
	}
}

// FormatRunResult renders one row per step plus a summary footer.
func (f *TableFormatter) FormatRunResult(result *api.WorkflowResult) string {
	t := f.createTable()
	t.SetTitle("%s %s", result.WorkflowID, f.status(result.Success))

	header := table.Row{"STEP", "TOOL", "STATUS", "RETRIES", "CACHE", "DURATION"}
	if f.options.ShowOutputs {
		header = append(header, "OUTPUT")
	}
	t.AppendHeader(header)

	for _, step := range result.Steps.All() {
		cacheCell := "-"
		switch {
		case step.FromCache:
			cacheCell = f.paint(text.FgHiBlue, "hit")
		case step.CacheKey != "":
			cacheCell = "miss"
		}
		row := table.Row{step.StepID, step.ToolID, f.status(step.Success), step.RetryCount, cacheCell, formatDuration(step.Duration())}
		if f.options.ShowOutputs {
			if step.Error != "" {
				row = append(row, f.paint(text.FgRed, truncate(step.Error, 60)))
			} else {
				row = append(row, compactValue(step.Result, 60))
			}
		}
		t.AppendRow(row)
	}

	t.AppendFooter(table.Row{"", "", "", "", fmt.Sprintf("%d/%d", result.CacheStats.CacheHits, result.CacheStats.CacheHits+result.CacheStats.CacheMisses), formatDuration(result.Duration())})

	out := t.Render()
	if result.Error != "" {
		out += "\n" + f.paint(text.FgRed, "Error: "+result.Error)
	}
	return out
}

// FormatWorkflows formats workflow definitions as a table
func (f *TableFormatter) FormatWorkflows(workflows []api.Workflow) string {
	if len(workflows) == 0 {
		return f.formatEmptyMessage("No workflows defined")
	}

	t := f.createTable()
	t.AppendHeader(table.Row{"ID", "STEPS", "SCHEDULE", "DESCRIPTION"})
	for _, wf := range workflows {
		t.AppendRow(table.Row{wf.ID, len(wf.Steps), orDash(wf.Schedule), truncate(orDash(wf.Description), 60)})
	}
	return t.Render()
}

// FormatCacheStats formats cache statistics as a table
func (f *TableFormatter) FormatCacheStats(stats []WorkflowCacheStats) string {
	if len(stats) == 0 {
		return f.formatEmptyMessage("No cached workflows")
	}

	t := f.createTable()
	t.AppendHeader(table.Row{"WORKFLOW", "ENTRIES", "MEMORY", "LAST ACCESSED"})
	for _, s := range stats {
		t.AppendRow(table.Row{s.WorkflowID, s.Entries, s.MemoryEntries, formatTime(s.LastAccessed)})
	}
	return t.Render()
}

// FormatHistory formats a page of run history as a table
func (f *TableFormatter) FormatHistory(page *workflow.ListRunsResponse) string {
	if page == nil || len(page.Runs) == 0 {
		return f.formatEmptyMessage("No runs recorded")
	}

	t := f.createTable()
	t.AppendHeader(table.Row{"RUN", "STATUS", "STARTED", "DURATION", "STEPS", "CACHE HITS", "ERROR"})
	for _, run := range page.Runs {
		t.AppendRow(table.Row{
			run.RunID,
			f.status(run.Success),
			formatTime(run.StartedAt),
			strconv.FormatInt(run.DurationMs, 10) + "ms",
			run.StepCount,
			run.CacheHits,
			truncate(orDash(run.Error), 50),
		})
	}
	return t.Render() + "\n" + pageFooter(page)
}

// FormatSchedule formats scheduled workflows as a table
func (f *TableFormatter) FormatSchedule(entries []scheduler.Entry) string {
	if len(entries) == 0 {
		return f.formatEmptyMessage("No scheduled workflows")
	}

	t := f.createTable()
	t.AppendHeader(table.Row{"WORKFLOW", "SCHEDULE", "NEXT RUN", "LAST RUN"})
	for _, e := range entries {
		t.AppendRow(table.Row{e.WorkflowID, e.Schedule, formatTime(e.Next), formatTime(e.Prev)})
	}
	return t.Render()
}

// SetOptions updates the formatter options
func (f *TableFormatter) SetOptions(options Options) {
	f.options = options
}

// GetOptions returns the current formatter options
func (f *TableFormatter) GetOptions() Options {
	return f.options
}

// Helper methods

// createTable creates a new table with standard styling
func (f *TableFormatter) createTable() table.Writer {
	t := table.NewWriter()
	if f.options.Quiet {
		t.SetStyle(table.StyleLight)
	} else {
		t.SetStyle(table.StyleRounded)
	}
	return t
}

func (f *TableFormatter) status(success bool) string {
	if success {
		return f.paint(text.FgGreen, runStatus(true))
	}
	return f.paint(text.FgRed, runStatus(false))
}

func (f *TableFormatter) paint(color text.Color, s string) string {
	if !f.options.Color {
		return s
	}
	return color.Sprint(s)
}

// formatEmptyMessage formats empty result messages
func (f *TableFormatter) formatEmptyMessage(message string) string {
	return f.paint(text.FgYellow, strings.TrimSpace(message))
}
