package events

import (
	"bytes"
	"fmt"
	"sync"
	"text/template"

	"github.com/Masterminds/sprig/v3"
)

// MessageTemplateEngine renders event messages from per-type text/templates.
// Templates have the sprig function library available and receive the Event
// as their data.
type MessageTemplateEngine struct {
	mu        sync.RWMutex
	templates map[EventType]*template.Template
	sources   map[EventType]string
}

// NewMessageTemplateEngine creates a new message template engine with default templates.
func NewMessageTemplateEngine() *MessageTemplateEngine {
	engine := &MessageTemplateEngine{
		templates: make(map[EventType]*template.Template),
		sources:   make(map[EventType]string),
	}
	engine.loadDefaultTemplates()
	return engine
}

var defaultTemplates = map[EventType]string{
	WorkflowStarted:   `Workflow {{.WorkflowID}} started{{if .StepCount}} ({{.StepCount}} {{if eq .StepCount 1}}step{{else}}steps{{end}}){{end}}`,
	WorkflowCompleted: `Workflow {{.WorkflowID}} completed{{if .Duration}} in {{.Duration}}{{end}}`,
	WorkflowFailed:    `Workflow {{.WorkflowID}} failed{{if .Error}}: {{.Error | trunc 200}}{{end}}`,
	StepStarted:       `Step {{.StepID}}{{if .ToolID}} ({{.ToolID}}){{end}} started{{with .Progress}} [{{.}}%]{{end}}`,
	StepCompleted:     `Step {{.StepID}} completed{{if .FromCache}} from cache{{end}}{{if .Duration}} in {{.Duration}}{{end}}`,
	StepRetrying:      `Step {{.StepID}} failed, retrying (attempt {{add .Attempt 1}}){{if .Error}}: {{.Error | trunc 200}}{{end}}`,
	StepFailed:        `Step {{.StepID}} failed{{if .Error}}: {{.Error | trunc 200}}{{end}}`,
	CacheHit:          `Step {{.StepID}} served from cache`,
}

// loadDefaultTemplates initializes the default message templates for all event types.
func (e *MessageTemplateEngine) loadDefaultTemplates() {
	for eventType, text := range defaultTemplates {
		// Defaults are static and known to parse.
		_ = e.SetTemplate(eventType, text)
	}
}

// Render generates a message for the event from its type's template.
func (e *MessageTemplateEngine) Render(evt Event) string {
	e.mu.RLock()
	tmpl, exists := e.templates[evt.Type]
	e.mu.RUnlock()

	if !exists {
		return fallbackMessage(evt)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, evt); err != nil {
		return fallbackMessage(evt)
	}
	return buf.String()
}

// SetTemplate replaces the message template for an event type.
func (e *MessageTemplateEngine) SetTemplate(eventType EventType, text string) error {
	tmpl, err := template.New(string(eventType)).Funcs(sprig.TxtFuncMap()).Parse(text)
	if err != nil {
		return fmt.Errorf("invalid template for %s: %w", eventType, err)
	}

	e.mu.Lock()
	e.templates[eventType] = tmpl
	e.sources[eventType] = text
	e.mu.Unlock()
	return nil
}

// GetTemplate returns the template source for an event type.
func (e *MessageTemplateEngine) GetTemplate(eventType EventType) (string, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	text, exists := e.sources[eventType]
	return text, exists
}

func fallbackMessage(evt Event) string {
	if evt.StepID != "" {
		return fmt.Sprintf("Event: %s for %s/%s", evt.Type, evt.WorkflowID, evt.StepID)
	}
	return fmt.Sprintf("Event: %s for %s", evt.Type, evt.WorkflowID)
}
