package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"

	"stepflow/internal/config"
	"stepflow/pkg/logging"
)

const fileExtension = ".json"

// FileBackend stores one JSON file per entry under <dir>/<workflow>/<key>.json.
// Workflow ids and keys are sanitized into file names, so other processes
// can inspect or delete entries directly.
type FileBackend struct {
	storage *config.Storage
	dir     string
}

// NewFileBackend creates a FileBackend rooted at dir.
func NewFileBackend(dir string) *FileBackend {
	return &FileBackend{
		storage: config.NewStorageWithPath(dir).WithExtension(fileExtension),
		dir:     dir,
	}
}

func (f *FileBackend) Name() string { return "file" }

// Dir returns the backend's root directory.
func (f *FileBackend) Dir() string { return f.dir }

// PathFor returns the file an entry is stored in.
func (f *FileBackend) PathFor(workflowID, key string) string {
	return filepath.Join(f.dir, config.SanitizeName(workflowID), config.SanitizeName(key)+fileExtension)
}

func (f *FileBackend) Get(_ context.Context, workflowID, key string) (*Entry, bool, error) {
	data, err := f.storage.Load(config.SanitizeName(workflowID), key)
	if err != nil {
		if errors.Is(err, config.ErrEntityNotFound) {
			return nil, false, nil
		}
		return nil, false, err
	}

	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, false, fmt.Errorf("corrupt cache file for %s/%s: %w", workflowID, key, err)
	}
	// Distinct keys can sanitize to the same file name.
	if entry.Key != key {
		return nil, false, nil
	}
	return &entry, true, nil
}

func (f *FileBackend) Set(_ context.Context, workflowID string, entry *Entry) error {
	data, err := json.MarshalIndent(entry, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode cache entry %s: %w", entry.Key, err)
	}
	return f.storage.Save(config.SanitizeName(workflowID), entry.Key, data)
}

func (f *FileBackend) DeleteWorkflow(_ context.Context, workflowID string) error {
	return f.storage.DeleteAll(config.SanitizeName(workflowID))
}

func (f *FileBackend) DeleteAll(_ context.Context) error {
	workflows, err := f.storage.ListEntityTypes()
	if err != nil {
		return err
	}
	for _, dir := range workflows {
		if err := f.storage.DeleteAll(dir); err != nil {
			return err
		}
	}
	return nil
}

func (f *FileBackend) Count(_ context.Context, workflowID string) (int, error) {
	names, err := f.storage.List(config.SanitizeName(workflowID))
	if err != nil {
		return 0, err
	}
	return len(names), nil
}

// Entries returns every readable entry of the workflow. Unreadable files are
// skipped with a warning.
func (f *FileBackend) Entries(_ context.Context, workflowID string) ([]*Entry, error) {
	dir := config.SanitizeName(workflowID)
	names, err := f.storage.List(dir)
	if err != nil {
		return nil, err
	}

	entries := make([]*Entry, 0, len(names))
	for _, name := range names {
		data, err := f.storage.Load(dir, name)
		if err != nil {
			logging.Warn("FileBackend", "Skipping cache file %s/%s: %v", dir, name, err)
			continue
		}
		var entry Entry
		if err := json.Unmarshal(data, &entry); err != nil {
			logging.Warn("FileBackend", "Skipping corrupt cache file %s/%s: %v", dir, name, err)
			continue
		}
		entries = append(entries, &entry)
	}
	return entries, nil
}
