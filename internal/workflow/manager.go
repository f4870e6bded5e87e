package workflow

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/robfig/cron/v3"
	"sigs.k8s.io/yaml"

	"stepflow/internal/api"
	"stepflow/internal/cache"
	"stepflow/internal/config"
	"stepflow/internal/reference"
	"stepflow/pkg/logging"
)

// ToolChecker reports whether a tool id can be invoked.
type ToolChecker interface {
	Known(toolID string) bool
}

// SaveOptions controls SaveWorkflow.
type SaveOptions struct {
	// IncludeCache stores the workflow's cache entries in the definition
	// file; they are imported back into the cache on load.
	IncludeCache bool
}

// storedWorkflow is the on-disk document: a definition plus an optional
// cache snapshot.
type storedWorkflow struct {
	api.Workflow
	Cache map[string]*cache.Entry `json:"cache,omitempty"`
}

// Manager loads, validates and stores workflow definitions kept as YAML
// files under <configPath>/workflows.
type Manager struct {
	storage     *config.Storage
	cache       *cache.Store
	toolChecker ToolChecker
	resolver    *reference.Resolver

	mu        sync.RWMutex
	workflows map[string]*api.Workflow
}

// NewManager creates a manager rooted at configPath. store and toolChecker
// may be nil.
func NewManager(configPath string, store *cache.Store, toolChecker ToolChecker) *Manager {
	return &Manager{
		storage:     config.NewStorageWithPath(configPath),
		cache:       store,
		toolChecker: toolChecker,
		resolver:    reference.New(),
		workflows:   make(map[string]*api.Workflow),
	}
}

// LoadDefinitions (re)loads every definition file. Files that fail to parse
// or validate are skipped and reported in the returned collection; the error
// is only set when the directory itself cannot be read.
func (m *Manager) LoadDefinitions() (*config.ConfigurationErrorCollection, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	names, err := m.storage.List(config.WorkflowsDir)
	if err != nil {
		return nil, fmt.Errorf("failed to list workflows: %w", err)
	}

	root, _ := m.storage.Root()
	errorCollection := config.NewConfigurationErrorCollection()
	workflows := make(map[string]*api.Workflow, len(names))

	for _, name := range names {
		filePath := filepath.Join(root, config.WorkflowsDir, name+m.storage.Extension())
		stored, err := m.read(name)
		if err != nil {
			errorCollection.AddError(filePath, name, config.WorkflowsDir, "parse", err.Error())
			continue
		}
		if err := m.Validate(&stored.Workflow); err != nil {
			errorCollection.AddError(filePath, name, config.WorkflowsDir, "validation", err.Error())
			continue
		}
		if _, exists := workflows[stored.ID]; exists {
			errorCollection.AddError(filePath, name, config.WorkflowsDir, "validation",
				fmt.Sprintf("workflow id %s is defined more than once", stored.ID))
			continue
		}
		wf := stored.Workflow
		workflows[wf.ID] = &wf
	}

	if errorCollection.HasErrors() {
		logging.Warn("WorkflowManager", "Some workflow files had errors:\n%s", errorCollection.GetSummary())
	}

	m.workflows = workflows
	logging.Info("WorkflowManager", "Loaded %d workflows from YAML files", len(workflows))
	return errorCollection, nil
}

func (m *Manager) read(name string) (*storedWorkflow, error) {
	data, err := m.storage.Load(config.WorkflowsDir, name)
	if err != nil {
		if errors.Is(err, config.ErrEntityNotFound) {
			return nil, api.NewNotFoundError("workflow", name)
		}
		return nil, err
	}
	return parseStored(data, name)
}

// ParseDefinition decodes a YAML or JSON workflow document. A missing id
// defaults to defaultID. Stored cache snapshots are ignored.
func ParseDefinition(data []byte, defaultID string) (*api.Workflow, error) {
	stored, err := parseStored(data, defaultID)
	if err != nil {
		return nil, err
	}
	return &stored.Workflow, nil
}

func parseStored(data []byte, defaultID string) (*storedWorkflow, error) {
	var stored storedWorkflow
	if err := yaml.Unmarshal(data, &stored); err != nil {
		return nil, fmt.Errorf("invalid workflow definition: %w", err)
	}
	if stored.ID == "" {
		stored.ID = defaultID
	}
	return &stored, nil
}

// GetWorkflow returns a loaded definition.
func (m *Manager) GetWorkflow(id string) (*api.Workflow, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	wf, ok := m.workflows[id]
	if !ok {
		return nil, false
	}
	clone := *wf
	return &clone, true
}

// ListWorkflows returns all loaded definitions sorted by id.
func (m *Manager) ListWorkflows() []api.Workflow {
	m.mu.RLock()
	defer m.mu.RUnlock()

	workflows := make([]api.Workflow, 0, len(m.workflows))
	for _, wf := range m.workflows {
		workflows = append(workflows, *wf)
	}
	sort.Slice(workflows, func(i, j int) bool { return workflows[i].ID < workflows[j].ID })
	return workflows
}

// LoadStoredWorkflow reads a definition from disk. A cache snapshot stored
// with it is imported into the cache store.
func (m *Manager) LoadStoredWorkflow(ctx context.Context, id string) (*api.Workflow, error) {
	stored, err := m.read(id)
	if err != nil {
		return nil, err
	}
	if err := m.Validate(&stored.Workflow); err != nil {
		return nil, err
	}

	if len(stored.Cache) > 0 && m.cache != nil {
		if err := m.cache.Import(ctx, stored.ID, stored.Cache); err != nil {
			logging.Warn("WorkflowManager", "Failed to import cache of workflow %s: %v", stored.ID, err)
		} else {
			logging.Debug("WorkflowManager", "Imported %d cache entries for workflow %s", len(stored.Cache), stored.ID)
		}
	}

	wf := stored.Workflow
	m.mu.Lock()
	m.workflows[wf.ID] = &wf
	m.mu.Unlock()

	clone := wf
	return &clone, nil
}

// SaveWorkflow validates and writes wf to <configPath>/workflows/<id>.yaml.
func (m *Manager) SaveWorkflow(ctx context.Context, wf *api.Workflow, opts SaveOptions) error {
	if err := m.Validate(wf); err != nil {
		return err
	}

	stored := storedWorkflow{Workflow: *wf}
	if opts.IncludeCache && m.cache != nil {
		snapshot, err := m.cache.Snapshot(ctx, wf.ID)
		if err != nil {
			return fmt.Errorf("failed to snapshot cache of workflow %s: %w", wf.ID, err)
		}
		stored.Cache = snapshot
	}

	data, err := yaml.Marshal(stored)
	if err != nil {
		return fmt.Errorf("failed to marshal workflow %s: %w", wf.ID, err)
	}

	if err := m.storage.Save(config.WorkflowsDir, wf.ID, data); err != nil {
		return fmt.Errorf("failed to save workflow %s: %w", wf.ID, err)
	}

	clone := *wf
	m.mu.Lock()
	m.workflows[wf.ID] = &clone
	m.mu.Unlock()

	logging.Info("WorkflowManager", "Saved workflow %s (%d cache entries)", wf.ID, len(stored.Cache))
	return nil
}

// DeleteWorkflow removes a definition file.
func (m *Manager) DeleteWorkflow(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.storage.Delete(config.WorkflowsDir, id); err != nil {
		if errors.Is(err, config.ErrEntityNotFound) {
			return api.NewNotFoundError("workflow", id)
		}
		return fmt.Errorf("failed to delete workflow %s: %w", id, err)
	}
	delete(m.workflows, id)
	logging.Info("WorkflowManager", "Deleted workflow %s", id)
	return nil
}

// Validate checks a definition: a usable id, at least one step, unique
// step ids, known tools and error policies, non-negative counters, a valid
// schedule, and references that only point at earlier steps.
func (m *Manager) Validate(wf *api.Workflow) error {
	var errs config.ValidationErrors

	addErr := func(err error) {
		var ve config.ValidationError
		if errors.As(err, &ve) {
			errs = append(errs, ve)
		}
	}

	if err := config.ValidateEntityName(wf.ID, "workflow"); err != nil {
		var ve config.ValidationError
		if errors.As(err, &ve) {
			errs.Add("id", ve.Message, wf.ID)
		}
	}

	if wf.Description != "" {
		addErr(config.ValidateMaxLength("description", wf.Description, 500))
	}

	if wf.Schedule != "" {
		if _, err := cron.ParseStandard(wf.Schedule); err != nil {
			errs.Add("schedule", fmt.Sprintf("invalid cron expression: %v", err), wf.Schedule)
		}
	}

	if len(wf.Steps) == 0 {
		errs.Add("steps", "must have at least one step for workflow")
	}

	seen := make(map[string]bool)
	for i, step := range wf.Steps {
		field := fmt.Sprintf("steps[%d]", i)

		if step.ID == "" {
			errs.Add(field+".id", "step ID cannot be empty")
		} else if strings.Contains(step.ID, ".") {
			errs.Add(field+".id", "step ID cannot contain dots", step.ID)
		} else if _, dup := seen[step.ID]; dup {
			errs.Add(field+".id", fmt.Sprintf("duplicate step ID '%s'", step.ID), step.ID)
		} else {
			seen[step.ID] = true
		}

		if step.ToolID == "" {
			errs.Add(field+".toolId", "tool id cannot be empty")
		} else if m.toolChecker != nil && !m.toolChecker.Known(step.ToolID) {
			errs.Add(field+".toolId", fmt.Sprintf("unknown tool '%s'", step.ToolID), step.ToolID)
		}

		if step.OnError != "" {
			addErr(config.ValidateOneOf(field+".onError", string(step.OnError), api.ErrorPolicies))
		}
		if step.RetryCount < 0 {
			errs.Add(field+".retryCount", "cannot be negative", step.RetryCount)
		}
		if step.DelayMs < 0 {
			errs.Add(field+".delay", "cannot be negative", step.DelayMs)
		}
		if step.Cache != nil && step.Cache.TTL < 0 {
			errs.Add(field+".cache.ttl", "cannot be negative", step.Cache.TTL)
		}

		m.validateReferences(&errs, field+".inputs", wf, i)
	}

	if errs.HasErrors() {
		return config.FormatValidationError("workflow", wf.ID, errs)
	}
	return nil
}

// validateReferences checks that every reference of step i, after semantic
// rewriting, names a step declared before it.
func (m *Manager) validateReferences(errs *config.ValidationErrors, field string, wf *api.Workflow, i int) {
	in := wf.Steps[i].Inputs.Input
	if in == nil {
		return
	}

	rewritten, err := m.resolver.ResolveSemantic(in, &reference.Context{CurrentIndex: i, Steps: wf.Steps})
	if err != nil {
		errs.Add(field, err.Error())
		return
	}

	for _, ref := range api.References(rewritten) {
		stepID, _, _ := strings.Cut(ref, ".")
		if idx := wf.StepIndex(stepID); idx < 0 || idx >= i {
			errs.Add(field, fmt.Sprintf("reference %q must name an earlier step", ref), ref)
		}
	}
}
