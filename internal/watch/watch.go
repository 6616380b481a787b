// Package watch rebuilds the asset tree when source files change. It
// watches the input directory recursively, coalesces bursts of events
// (editors often write a file several times per save), and invokes a
// rebuild callback once the tree has been quiet for the debounce interval.
package watch

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is the quiet period required before a rebuild.
const DefaultDebounce = 300 * time.Millisecond

// RebuildFunc is called after changes settle. changed lists the paths that
// triggered the rebuild, deduplicated.
type RebuildFunc func(ctx context.Context, changed []string)

// Watcher watches a directory tree.
type Watcher struct {
	root     string
	debounce time.Duration
	rebuild  RebuildFunc
	logger   *slog.Logger

	fsw *fsnotify.Watcher
}

// New creates a watcher for root. A zero debounce uses DefaultDebounce.
func New(root string, debounce time.Duration, rebuild RebuildFunc, logger *slog.Logger) (*Watcher, error) {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	if logger == nil {
		logger = slog.Default()
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("watch: %w", err)
	}

	w := &Watcher{
		root:     root,
		debounce: debounce,
		rebuild:  rebuild,
		logger:   logger,
		fsw:      fsw,
	}
	if err := w.addTree(root); err != nil {
		fsw.Close()
		return nil, err
	}
	return w, nil
}

// addTree registers dir and all its subdirectories.
func (w *Watcher) addTree(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return fmt.Errorf("watch: walk %s: %w", path, err)
		}
		if !d.IsDir() {
			return nil
		}
		if err := w.fsw.Add(path); err != nil {
			return fmt.Errorf("watch: add %s: %w", path, err)
		}
		w.logger.Debug("watching directory", "path", path)
		return nil
	})
}

// Run blocks until ctx is cancelled, calling the rebuild callback after
// each settled burst of changes. The underlying watcher is closed on return.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.fsw.Close()

	w.logger.Info("watching for changes", "root", w.root, "debounce", w.debounce.String())

	timer := time.NewTimer(w.debounce)
	if !timer.Stop() {
		<-timer.C
	}
	pending := make(map[string]struct{})

	for {
		select {
		case <-ctx.Done():
			timer.Stop()
			w.logger.Info("watcher stopped")
			return nil

		case event, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			if !w.relevant(event) {
				continue
			}
			if event.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					if err := w.addTree(event.Name); err != nil {
						w.logger.Warn("failed to watch new directory", "path", event.Name, "error", err)
					}
				}
			}
			w.logger.Debug("change detected", "path", event.Name, "op", event.Op.String())
			pending[event.Name] = struct{}{}
			timer.Reset(w.debounce)

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Error("watcher error", "error", err)

		case <-timer.C:
			if len(pending) == 0 {
				continue
			}
			changed := make([]string, 0, len(pending))
			for p := range pending {
				changed = append(changed, p)
			}
			clear(pending)

			w.logger.Info("rebuilding", "changes", len(changed))
			w.rebuild(ctx, changed)
		}
	}
}

// relevant filters out chmod-only events and editor scratch files.
func (w *Watcher) relevant(event fsnotify.Event) bool {
	if event.Op == fsnotify.Chmod {
		return false
	}
	base := filepath.Base(event.Name)
	switch {
	case len(base) > 0 && base[0] == '.' && (filepath.Ext(base) == ".swp" || filepath.Ext(base) == ".swx"):
		return false
	case len(base) > 0 && base[len(base)-1] == '~':
		return false
	}
	return true
}
