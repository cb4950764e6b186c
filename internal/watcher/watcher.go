// Package watcher watches project and runtime files and triggers a
// re-export when they change, with debouncing so a burst of editor
// saves produces a single export.
package watcher

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/conneroisu/playpack/internal/logging"
)

// ChangeEvent represents one file change.
type ChangeEvent struct {
	Path    string
	ModTime time.Time
}

// FileFilter decides whether a path is worth re-exporting for.
type FileFilter func(path string) bool

// ChangeHandler handles a debounced batch of change events.
type ChangeHandler func(events []ChangeEvent) error

// FileWatcher watches for file changes with debouncing.
type FileWatcher struct {
	watcher  *fsnotify.Watcher
	delay    time.Duration
	log      logging.Logger
	filters  []FileFilter
	handlers []ChangeHandler

	mu      sync.Mutex
	pending []ChangeEvent
	timer   *time.Timer
}

// New creates a file watcher with the given debounce delay.
func New(debounce time.Duration, log logging.Logger) (*FileWatcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = logging.NopLogger{}
	}

	return &FileWatcher{watcher: w, delay: debounce, log: log.WithComponent("watcher")}, nil
}

// AddFilter adds a file filter; a path must pass every filter.
func (fw *FileWatcher) AddFilter(filter FileFilter) {
	fw.filters = append(fw.filters, filter)
}

// AddHandler adds a change handler invoked per debounced batch.
func (fw *FileWatcher) AddHandler(handler ChangeHandler) {
	fw.handlers = append(fw.handlers, handler)
}

// AddRecursive watches root and every directory below it.
func (fw *FileWatcher) AddRecursive(root string) error {
	return filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			if strings.HasPrefix(info.Name(), ".") && path != root {
				return filepath.SkipDir
			}

			return fw.watcher.Add(path)
		}

		return nil
	})
}

// AddPath watches a single file or directory.
func (fw *FileWatcher) AddPath(path string) error {
	return fw.watcher.Add(path)
}

// Start processes events until the context is canceled.
func (fw *FileWatcher) Start(ctx context.Context) {
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-fw.watcher.Events:
				if !ok {
					return
				}
				if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
					continue
				}
				if !fw.accepts(event.Name) {
					continue
				}
				fw.enqueue(ChangeEvent{Path: event.Name, ModTime: time.Now()})
			case _, ok := <-fw.watcher.Errors:
				if !ok {
					return
				}
				// Watch errors are transient; the next event delivers.
			}
		}
	}()
}

// Stop closes the underlying watcher.
func (fw *FileWatcher) Stop() error {
	fw.mu.Lock()
	if fw.timer != nil {
		fw.timer.Stop()
	}
	fw.mu.Unlock()

	return fw.watcher.Close()
}

func (fw *FileWatcher) accepts(path string) bool {
	for _, filter := range fw.filters {
		if !filter(path) {
			return false
		}
	}

	return true
}

// enqueue batches the event and (re)arms the debounce timer.
func (fw *FileWatcher) enqueue(event ChangeEvent) {
	fw.mu.Lock()
	defer fw.mu.Unlock()

	fw.pending = append(fw.pending, event)
	if fw.timer != nil {
		fw.timer.Stop()
	}
	fw.timer = time.AfterFunc(fw.delay, fw.flush)
}

func (fw *FileWatcher) flush() {
	fw.mu.Lock()
	batch := fw.pending
	fw.pending = nil
	fw.mu.Unlock()

	if len(batch) == 0 {
		return
	}
	for _, handler := range fw.handlers {
		// The watch loop keeps running across handler failures.
		if err := handler(batch); err != nil {
			fw.log.Warn(context.Background(), err, "change handler failed", "events", len(batch))
		}
	}
}

// JSFilter accepts only project-relevant files: JSON project files and
// JS runtime or source files.
func JSFilter(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".js", ".json", ".html", ".xml":
		return true
	default:
		return false
	}
}
