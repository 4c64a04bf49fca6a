package schema

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"

	"github.com/biocompute/bcodb/pkg/observability"
)

// Watcher reloads the store when a schema file changes on disk. Loaded
// documents stay immutable; a change swaps in a whole new generation.
type Watcher struct {
	store  *Store
	logger *observability.Logger
}

// NewWatcher creates a watcher for the given store
func NewWatcher(store *Store, logger *observability.Logger) *Watcher {
	return &Watcher{store: store, logger: logger}
}

// Run watches every configured schema folder until the context is cancelled.
// Reload failures keep the previous generation and are logged, not fatal.
func (w *Watcher) Run(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create schema watcher: %w", err)
	}
	defer watcher.Close()

	for folder := range w.store.folders {
		root := filepath.Join(w.store.workdir, folder)
		if err := addRecursive(watcher, root); err != nil {
			return fmt.Errorf("failed to watch schema folder %s: %w", folder, err)
		}
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !w.handleEvent(watcher, event) {
				continue
			}
			w.logger.WithField("file", event.Name).Info("schema tree changed, reloading")
			if err := w.store.Load(); err != nil {
				w.logger.WithError(err).Error("schema reload failed, keeping previous documents")
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.WithError(err).Warn("schema watcher error")
		}
	}
}

// handleEvent reports whether an event warrants a reload. Directories
// created after startup are added to the watch set, so files landing in
// them later still trigger reloads.
func (w *Watcher) handleEvent(watcher *fsnotify.Watcher, event fsnotify.Event) bool {
	if event.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if err := addRecursive(watcher, event.Name); err != nil {
				w.logger.WithError(err).Warn("failed to watch new schema directory")
			}
			// The directory may already hold files, moved in before the
			// watch took effect.
			return true
		}
	}
	return w.relevant(event)
}

// relevant filters events down to changes of files with a configured extension
func (w *Watcher) relevant(event fsnotify.Event) bool {
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
		return false
	}
	for _, ext := range w.store.folders {
		if strings.HasSuffix(event.Name, ext) {
			return true
		}
	}
	return false
}

// addRecursive registers a directory and its subdirectories with the watcher
func addRecursive(watcher *fsnotify.Watcher, root string) error {
	files, err := (OSTreeReader{}).ListFiles(root, "")
	if err != nil {
		return err
	}

	dirs := map[string]bool{root: true}
	for _, f := range files {
		dirs[filepath.Dir(f)] = true
	}
	for dir := range dirs {
		if err := watcher.Add(dir); err != nil {
			return err
		}
	}
	return nil
}
