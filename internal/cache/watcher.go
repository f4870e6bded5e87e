package cache

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"

	"stepflow/internal/config"
	"stepflow/pkg/logging"
)

// Watcher keeps a Store's memory tier consistent with a FileBackend directory
// that other processes may modify. When a cache file or a workflow directory
// is removed, the matching memory entries are evicted so the next read goes
// back to disk.
type Watcher struct {
	mu      sync.Mutex
	store   *Store
	dir     string
	watcher *fsnotify.Watcher
	stopCh  chan struct{}
	doneCh  chan struct{}
	running bool

	// onEvict is called after entries were evicted; tests use it to synchronise.
	onEvict func(workflowDir, name string, removed int)
}

// NewWatcher creates a Watcher for store's file backend directory.
func NewWatcher(store *Store, backend *FileBackend) *Watcher {
	return &Watcher{store: store, dir: backend.Dir()}
}

// Start begins watching. It returns immediately; events are processed until
// ctx is cancelled or Stop is called.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		return nil
	}

	if err := os.MkdirAll(w.dir, 0755); err != nil {
		return err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := watcher.Add(w.dir); err != nil {
		_ = watcher.Close()
		return err
	}

	entries, err := os.ReadDir(w.dir)
	if err == nil {
		for _, entry := range entries {
			if entry.IsDir() {
				w.addDir(watcher, filepath.Join(w.dir, entry.Name()))
			}
		}
	}

	w.watcher = watcher
	w.stopCh = make(chan struct{})
	w.doneCh = make(chan struct{})
	w.running = true

	go w.processEvents(ctx, watcher, w.stopCh, w.doneCh)

	logging.Info("CacheWatcher", "Watching %s for external cache changes", w.dir)
	return nil
}

// Stop ends watching and waits for the event loop to exit.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	close(w.stopCh)
	done := w.doneCh
	w.mu.Unlock()

	<-done
}

func (w *Watcher) addDir(watcher *fsnotify.Watcher, dir string) {
	if err := watcher.Add(dir); err != nil {
		logging.Warn("CacheWatcher", "Failed to watch %s: %v", dir, err)
		return
	}
	logging.Debug("CacheWatcher", "Watching directory: %s", dir)
}

func (w *Watcher) processEvents(ctx context.Context, watcher *fsnotify.Watcher, stopCh, doneCh chan struct{}) {
	defer close(doneCh)
	defer watcher.Close()

	for {
		select {
		case <-ctx.Done():
			return

		case <-stopCh:
			return

		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			w.handleFsEvent(watcher, event)

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			logging.Error("CacheWatcher", err, "Filesystem watcher error")
		}
	}
}

func (w *Watcher) handleFsEvent(watcher *fsnotify.Watcher, event fsnotify.Event) {
	rel, err := filepath.Rel(w.dir, event.Name)
	if err != nil || strings.HasPrefix(rel, "..") {
		return
	}
	parts := strings.Split(filepath.ToSlash(rel), "/")

	switch {
	case event.Op&fsnotify.Create == fsnotify.Create:
		if len(parts) == 1 {
			if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
				w.addDir(watcher, event.Name)
			}
		}

	case event.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
		switch len(parts) {
		case 1:
			w.evict(parts[0], "")
		case 2:
			if !strings.HasSuffix(parts[1], fileExtension) {
				return
			}
			w.evict(parts[0], strings.TrimSuffix(parts[1], fileExtension))
		}
	}
}

// evict drops memory entries stored in workflowDir, or only the entry stored
// as name when name is set.
func (w *Watcher) evict(workflowDir, name string) {
	removed := w.store.evictMemory(func(workflowID, key string) bool {
		if config.SanitizeName(workflowID) != workflowDir {
			return false
		}
		return name == "" || config.SanitizeName(key) == name
	})
	if removed > 0 {
		logging.Info("CacheWatcher", "Evicted %d memory entries after %s/%s was removed", removed, workflowDir, name)
	}
	if w.onEvict != nil {
		w.onEvict(workflowDir, name, removed)
	}
}
