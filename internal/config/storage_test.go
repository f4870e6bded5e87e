package config

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

func TestNewStorage(t *testing.T) {
	ds := NewStorage()
	if ds == nil {
		t.Fatal("NewStorage returned nil")
	}
	if ds.Extension() != ".yaml" {
		t.Errorf("Expected default extension .yaml, got %s", ds.Extension())
	}
}

func TestNewStorageWithPath(t *testing.T) {
	customPath := "/custom/config/path"
	ds := NewStorageWithPath(customPath)
	if ds == nil {
		t.Fatal("NewStorageWithPath returned nil")
	}
	if ds.configPath != customPath {
		t.Errorf("Expected configPath %s, got %s", customPath, ds.configPath)
	}
}

func TestStorage_Save(t *testing.T) {
	tempDir := t.TempDir()
	ds := NewStorageWithPath(tempDir)

	tests := []struct {
		name        string
		entityType  string
		itemName    string
		data        []byte
		wantErr     bool
		errContains string
	}{
		{
			name:       "save valid workflow",
			entityType: "workflows",
			itemName:   "test-workflow",
			data:       []byte("id: test-workflow\nsteps: []"),
			wantErr:    false,
		},
		{
			name:        "empty entity type",
			entityType:  "",
			itemName:    "test",
			data:        []byte("data"),
			wantErr:     true,
			errContains: "entityType cannot be empty",
		},
		{
			name:        "empty name",
			entityType:  "workflows",
			itemName:    "",
			data:        []byte("data"),
			wantErr:     true,
			errContains: "name cannot be empty",
		},
		{
			name:        "entity type escaping the root",
			entityType:  "../outside",
			itemName:    "x",
			data:        []byte("data"),
			wantErr:     true,
			errContains: "relative directory name",
		},
		{
			name:       "sanitize filename",
			entityType: "workflows",
			itemName:   "test/workflow:with*problematic?chars",
			data:       []byte("id: test\nsteps: []"),
			wantErr:    false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ds.Save(tt.entityType, tt.itemName, tt.data)

			if tt.wantErr {
				if err == nil {
					t.Errorf("Save() error = nil, wantErr %v", tt.wantErr)
					return
				}
				if tt.errContains != "" && !strings.Contains(err.Error(), tt.errContains) {
					t.Errorf("Save() error = %v, want error containing %s", err, tt.errContains)
				}
				return
			}

			if err != nil {
				t.Errorf("Save() error = %v, wantErr %v", err, tt.wantErr)
				return
			}

			expectedPath := filepath.Join(tempDir, tt.entityType, SanitizeName(tt.itemName)+".yaml")
			content, err := os.ReadFile(expectedPath)
			if err != nil {
				t.Fatalf("Expected file %s was not created: %v", expectedPath, err)
			}
			if !reflect.DeepEqual(content, tt.data) {
				t.Errorf("File content = %s, want %s", string(content), string(tt.data))
			}
			if _, err := os.Stat(expectedPath + ".tmp"); !os.IsNotExist(err) {
				t.Errorf("Temporary file %s.tmp was left behind", expectedPath)
			}
		})
	}
}

func TestStorage_LoadAndDelete(t *testing.T) {
	tempDir := t.TempDir()
	ds := NewStorageWithPath(tempDir).WithExtension("json")

	if err := ds.Save("w1", "s1:abc", []byte(`{"k":1}`)); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	data, err := ds.Load("w1", "s1:abc")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if string(data) != `{"k":1}` {
		t.Errorf("Load() data = %s", string(data))
	}

	if _, err := os.Stat(filepath.Join(tempDir, "w1", "s1_abc.json")); err != nil {
		t.Errorf("Expected json file on disk: %v", err)
	}

	if err := ds.Delete("w1", "s1:abc"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}

	_, err = ds.Load("w1", "s1:abc")
	if !errors.Is(err, ErrEntityNotFound) {
		t.Errorf("Load() after delete error = %v, want ErrEntityNotFound", err)
	}

	err = ds.Delete("w1", "s1:abc")
	if !errors.Is(err, ErrEntityNotFound) {
		t.Errorf("Delete() of missing entity error = %v, want ErrEntityNotFound", err)
	}
}

func TestStorage_ListAndDeleteAll(t *testing.T) {
	tempDir := t.TempDir()
	ds := NewStorageWithPath(tempDir)

	for _, name := range []string{"beta", "alpha"} {
		if err := ds.Save("workflows", name, []byte("id: "+name)); err != nil {
			t.Fatalf("Save(%s) error = %v", name, err)
		}
	}
	if err := os.WriteFile(filepath.Join(tempDir, "workflows", "gamma.yml"), []byte("id: gamma"), 0644); err != nil {
		t.Fatalf("failed to write yml file: %v", err)
	}
	if err := ds.Save("other", "x", []byte("x")); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	names, err := ds.List("workflows")
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if !reflect.DeepEqual(names, []string{"alpha", "beta", "gamma"}) {
		t.Errorf("List() = %v", names)
	}

	types, err := ds.ListEntityTypes()
	if err != nil {
		t.Fatalf("ListEntityTypes() error = %v", err)
	}
	if !reflect.DeepEqual(types, []string{"other", "workflows"}) {
		t.Errorf("ListEntityTypes() = %v", types)
	}

	if err := ds.DeleteAll("workflows"); err != nil {
		t.Fatalf("DeleteAll() error = %v", err)
	}
	names, err = ds.List("workflows")
	if err != nil {
		t.Fatalf("List() after DeleteAll error = %v", err)
	}
	if len(names) != 0 {
		t.Errorf("List() after DeleteAll = %v", names)
	}
}

func TestStorage_ListMissingDirectory(t *testing.T) {
	ds := NewStorageWithPath(filepath.Join(t.TempDir(), "absent"))

	names, err := ds.List("workflows")
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(names) != 0 {
		t.Errorf("expected no names, got %v", names)
	}

	types, err := ds.ListEntityTypes()
	if err != nil {
		t.Fatalf("ListEntityTypes() error = %v", err)
	}
	if len(types) != 0 {
		t.Errorf("expected no entity types, got %v", types)
	}
}

func TestSanitizeName(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"simple", "simple"},
		{"with/slash", "with_slash"},
		{"s1:0af3", "s1_0af3"},
		{"file.name.ext", "file_name_ext"},
		{"  spaced name  ", "spaced_name"},
		{"multiple___underscores", "multiple_underscores"},
		{"///", "unnamed"},
		{"", "unnamed"},
	}

	for _, tt := range tests {
		if got := SanitizeName(tt.input); got != tt.expected {
			t.Errorf("SanitizeName(%q) = %q, want %q", tt.input, got, tt.expected)
		}
	}
}
