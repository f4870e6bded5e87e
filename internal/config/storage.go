package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"stepflow/pkg/logging"
)

// Storage provides generic file storage for entities grouped by type.
// Each entity is one file: <root>/<entityType>/<sanitized name><ext>.
//
// Storage backs workflow definitions (YAML), run history (JSON) and the
// file cache tier (JSON).
type Storage struct {
	mu         sync.RWMutex
	configPath string // Optional custom root - when set, uses this path; otherwise uses default ~/.config/stepflow
	ext        string
}

// NewStorage creates a new Storage instance using the default configuration directory
func NewStorage() *Storage {
	return &Storage{ext: ".yaml"}
}

// NewStorageWithPath creates a new Storage instance with a custom root path
func NewStorageWithPath(configPath string) *Storage {
	return &Storage{
		configPath: configPath,
		ext:        ".yaml",
	}
}

// WithExtension changes the file extension used for entities (default ".yaml").
func (ds *Storage) WithExtension(ext string) *Storage {
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	ds.ext = ext
	return ds
}

// Save stores data for the given entity type and name
// entityType: subdirectory name (workflows, or a sanitized workflow id)
// name: filename without extension
// data: file content to write
func (ds *Storage) Save(entityType string, name string, data []byte) error {
	if err := validateEntityArgs(entityType, name); err != nil {
		return err
	}

	ds.mu.Lock()
	defer ds.mu.Unlock()

	targetDir, err := ds.resolveEntityDir(entityType)
	if err != nil {
		return fmt.Errorf("failed to resolve directory for entity type %s: %w", entityType, err)
	}

	if err := os.MkdirAll(targetDir, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", targetDir, err)
	}

	filePath := filepath.Join(targetDir, SanitizeName(name)+ds.ext)

	// Write to a temporary file first so readers never observe partial content.
	tmp := filePath + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write file %s: %w", filePath, err)
	}
	if err := os.Rename(tmp, filePath); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to write file %s: %w", filePath, err)
	}

	logging.Debug("Storage", "Saved %s/%s to %s", entityType, name, filePath)
	return nil
}

// Load retrieves data for the given entity type and name.
// A missing file yields an error wrapping ErrEntityNotFound.
func (ds *Storage) Load(entityType string, name string) ([]byte, error) {
	if err := validateEntityArgs(entityType, name); err != nil {
		return nil, err
	}

	ds.mu.RLock()
	defer ds.mu.RUnlock()

	filePath, err := ds.entityPath(entityType, name)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s/%s", ErrEntityNotFound, entityType, name)
		}
		return nil, fmt.Errorf("failed to read file %s: %w", filePath, err)
	}

	logging.Debug("Storage", "Loaded %s/%s from %s", entityType, name, filePath)
	return data, nil
}

// Delete removes the file for the given entity type and name
func (ds *Storage) Delete(entityType string, name string) error {
	if err := validateEntityArgs(entityType, name); err != nil {
		return err
	}

	ds.mu.Lock()
	defer ds.mu.Unlock()

	filePath, err := ds.entityPath(entityType, name)
	if err != nil {
		return err
	}

	if err := os.Remove(filePath); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s/%s", ErrEntityNotFound, entityType, name)
		}
		return fmt.Errorf("failed to delete file %s: %w", filePath, err)
	}

	logging.Debug("Storage", "Deleted %s/%s from %s", entityType, name, filePath)
	return nil
}

// DeleteAll removes every entity of the given type along with its directory.
func (ds *Storage) DeleteAll(entityType string) error {
	if err := validateEntityArgs(entityType, "-"); err != nil {
		return err
	}

	ds.mu.Lock()
	defer ds.mu.Unlock()

	dir, err := ds.resolveEntityDir(entityType)
	if err != nil {
		return err
	}
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("failed to delete %s: %w", dir, err)
	}

	logging.Debug("Storage", "Deleted all %s entities", entityType)
	return nil
}

// List returns all available names for the given entity type, sorted.
// Names are the sanitized file names without extension.
func (ds *Storage) List(entityType string) ([]string, error) {
	if err := validateEntityArgs(entityType, "-"); err != nil {
		return nil, err
	}

	ds.mu.RLock()
	defer ds.mu.RUnlock()

	entityPath, err := ds.resolveEntityDir(entityType)
	if err != nil {
		return nil, fmt.Errorf("failed to get configuration directory: %w", err)
	}

	names, err := ds.listFilesInDirectory(entityPath)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to list %s: %w", entityType, err)
	}

	logging.Debug("Storage", "Listed %d %s entities", len(names), entityType)
	return names, nil
}

// ListEntityTypes returns the names of every entity type directory, sorted.
func (ds *Storage) ListEntityTypes() ([]string, error) {
	ds.mu.RLock()
	defer ds.mu.RUnlock()

	root, err := ds.Root()
	if err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(root)
	if err != nil {
		if os.IsNotExist(err) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("failed to read %s: %w", root, err)
	}

	types := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			types = append(types, entry.Name())
		}
	}
	sort.Strings(types)
	return types, nil
}

// Root returns the directory entity type directories live in.
func (ds *Storage) Root() (string, error) {
	if ds.configPath != "" {
		return ds.configPath, nil
	}

	return GetUserConfigDir()
}

// Extension returns the file extension used for entities.
func (ds *Storage) Extension() string {
	return ds.ext
}

func (ds *Storage) resolveEntityDir(entityType string) (string, error) {
	configDir, err := ds.Root()
	if err != nil {
		return "", err
	}

	return filepath.Join(configDir, entityType), nil
}

func (ds *Storage) entityPath(entityType, name string) (string, error) {
	dir, err := ds.resolveEntityDir(entityType)
	if err != nil {
		return "", fmt.Errorf("failed to get configuration directory: %w", err)
	}
	return filepath.Join(dir, SanitizeName(name)+ds.ext), nil
}

// listFilesInDirectory lists entity files in a directory and returns their base names
func (ds *Storage) listFilesInDirectory(dirPath string) ([]string, error) {
	if _, err := os.Stat(dirPath); os.IsNotExist(err) {
		return []string{}, nil
	}

	patterns := []string{"*" + ds.ext}
	if ds.ext == ".yaml" {
		patterns = append(patterns, "*.yml")
	}

	var names []string
	for _, pattern := range patterns {
		files, err := filepath.Glob(filepath.Join(dirPath, pattern))
		if err != nil {
			return nil, fmt.Errorf("failed to glob %s files: %w", pattern, err)
		}
		for _, filePath := range files {
			basename := filepath.Base(filePath)
			names = append(names, strings.TrimSuffix(basename, filepath.Ext(basename)))
		}
	}

	sort.Strings(names)
	return names, nil
}

func validateEntityArgs(entityType, name string) error {
	if entityType == "" {
		return fmt.Errorf("entityType cannot be empty")
	}
	if name == "" {
		return fmt.Errorf("name cannot be empty")
	}
	if strings.Contains(entityType, "..") || filepath.IsAbs(entityType) {
		return fmt.Errorf("entityType %q must be a relative directory name", entityType)
	}
	return nil
}

// SanitizeName makes name safe to use as a single file or directory name.
func SanitizeName(name string) string {
	replacer := strings.NewReplacer(
		"/", "_", "\\", "_", ":", "_", "*", "_", "?", "_",
		"\"", "_", "<", "_", ">", "_", "|", "_", ".", "_", " ", "_",
	)
	sanitized := replacer.Replace(strings.TrimSpace(name))

	for strings.Contains(sanitized, "__") {
		sanitized = strings.ReplaceAll(sanitized, "__", "_")
	}

	sanitized = strings.Trim(sanitized, "_")

	if sanitized == "" {
		sanitized = "unnamed"
	}

	return sanitized
}
