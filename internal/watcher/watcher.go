// Package watcher feeds live file-system changes into the index. It
// watches the vault recursively with fsnotify and forwards events to a
// handler; change coalescing is the handler's concern.
package watcher

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"

	"github.com/Aman-CERP/notesearch/internal/source"
)

// Handler receives vault-relative change notifications.
type Handler interface {
	DebouncedUpdate(path string)
	RemoveFile(path string)
	RemoveFolder(path string)
}

// Watcher forwards vault file events to a Handler.
type Watcher struct {
	src     *source.Source
	handler Handler
	fsw     *fsnotify.Watcher
	logger  *slog.Logger

	// dirs tracks watched directories by vault-relative path. A removed
	// directory no longer stats as one, so the set is the only way to
	// recognize its delete event. Touched only from the Run goroutine.
	dirs map[string]struct{}
}

// New creates a watcher over the source's vault root.
func New(src *source.Source, handler Handler, logger *slog.Logger) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("watcher: init: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Watcher{
		src:     src,
		handler: handler,
		fsw:     fsw,
		logger:  logger.With("component", "watcher"),
		dirs:    make(map[string]struct{}),
	}, nil
}

// Run watches until ctx is cancelled. Watch errors are logged and the
// loop continues; only setup failures are returned.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.fsw.Close()

	if err := w.addRecursive(w.src.Root()); err != nil {
		return fmt.Errorf("watcher: watch root: %w", err)
	}
	w.logger.Info("watcher_started", slog.String("root", w.src.Root()))

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			w.handleEvent(event)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watch_error", slog.String("error", err.Error()))
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	rel, err := filepath.Rel(w.src.Root(), event.Name)
	if err != nil {
		return
	}
	rel = filepath.ToSlash(rel)
	if w.skip(rel) {
		return
	}

	switch {
	case event.Op.Has(fsnotify.Remove) || event.Op.Has(fsnotify.Rename):
		if _, ok := w.dirs[rel]; ok {
			w.forgetDir(rel)
			w.handler.RemoveFolder(rel)
			return
		}
		if source.Indexable(rel) {
			w.handler.RemoveFile(rel)
		}

	case event.Op.Has(fsnotify.Create):
		info, statErr := os.Stat(event.Name)
		if statErr != nil {
			return
		}
		if info.IsDir() {
			// A directory moved in wholesale never produces per-file
			// events, so scan it once.
			if err := w.addRecursive(event.Name); err != nil {
				w.logger.Warn("watch_add_failed",
					slog.String("path", rel),
					slog.String("error", err.Error()))
			}
			w.scanNewDir(event.Name)
			return
		}
		if source.Indexable(rel) {
			w.handler.DebouncedUpdate(rel)
		}

	case event.Op.Has(fsnotify.Write):
		if source.Indexable(rel) {
			w.handler.DebouncedUpdate(rel)
		}
	}
}

func (w *Watcher) addRecursive(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		rel, relErr := filepath.Rel(w.src.Root(), path)
		if relErr != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)
		if rel != "." && w.skip(rel) {
			return fs.SkipDir
		}
		if rel != "." {
			w.dirs[rel] = struct{}{}
		}
		return w.fsw.Add(path)
	})
}

// forgetDir drops a directory and everything tracked beneath it.
func (w *Watcher) forgetDir(rel string) {
	delete(w.dirs, rel)
	prefix := rel + "/"
	for dir := range w.dirs {
		if strings.HasPrefix(dir, prefix) {
			delete(w.dirs, dir)
		}
	}
}

func (w *Watcher) scanNewDir(dir string) {
	_ = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		rel, relErr := filepath.Rel(w.src.Root(), path)
		if relErr != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)
		if !w.skip(rel) && source.Indexable(rel) {
			w.handler.DebouncedUpdate(rel)
		}
		return nil
	})
}

func (w *Watcher) skip(rel string) bool {
	if w.src.Excluded(rel) {
		return true
	}
	for _, seg := range strings.Split(rel, "/") {
		if strings.HasPrefix(seg, ".") {
			return true
		}
	}
	return false
}
