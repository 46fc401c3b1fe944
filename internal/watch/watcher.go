package watch

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Event is an opaque change notification: something changed under the
// watched tree at approximately At. The path is informational only; the
// loop's correctness does not depend on it.
type Event struct {
	Path string
	At   time.Time
}

// buildOutputDir is excluded from the watch set so that artifacts
// written by the build do not retrigger the loop.
const buildOutputDir = "target"

// Watcher delivers filesystem change events for a directory tree,
// recursively. Delivery is asynchronous: a background goroutine pushes
// events as they occur and the consumer blocks on Events.
type Watcher struct {
	fsw    *fsnotify.Watcher
	events chan Event
	errs   chan error
}

// NewWatcher establishes a recursive watch rooted at root. Failure to
// establish the watch (invalid path, OS resource exhaustion) is a
// setup-time error; the caller should abort startup.
func NewWatcher(root string) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating watcher: %w", err)
	}

	if err := addRecursive(fsw, root); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("watching %q: %w", root, err)
	}

	w := &Watcher{
		fsw:    fsw,
		events: make(chan Event, 16),
		errs:   make(chan error, 1),
	}

	go w.forward()

	return w, nil
}

// Events returns the change event channel. It is closed when the
// underlying notification source shuts down.
func (w *Watcher) Events() <-chan Event { return w.events }

// Errors returns the watch error channel. Errors here are runtime
// conditions of the notification source, not change events.
func (w *Watcher) Errors() <-chan error { return w.errs }

// Close shuts down the underlying watcher. The Events and Errors
// channels are closed once the forwarding goroutine drains.
func (w *Watcher) Close() error {
	return w.fsw.Close()
}

// forward filters raw fsnotify events and pushes them to the consumer.
// Rapid bursts are expected and are not deduplicated here; coalescing
// is the debounce gate's job.
func (w *Watcher) forward() {
	defer close(w.events)
	defer close(w.errs)

	for {
		select {
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}

			if !isRelevant(event) {
				continue
			}

			// If a new directory was created, watch it too.
			if event.Has(fsnotify.Create) {
				if info, statErr := os.Stat(event.Name); statErr == nil && info.IsDir() {
					_ = addRecursive(w.fsw, event.Name)
				}
			}

			w.events <- Event{Path: event.Name, At: time.Now()}

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}

			w.errs <- err
		}
	}
}

// addRecursive walks root and adds all directories to the watcher,
// skipping hidden directories and the build output directory.
func addRecursive(fsw *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if !d.IsDir() {
			return nil
		}

		if path != root && (strings.HasPrefix(d.Name(), ".") || d.Name() == buildOutputDir) {
			return filepath.SkipDir
		}

		return fsw.Add(path)
	})
}

// isRelevant filters out events that cannot represent a source change.
func isRelevant(event fsnotify.Event) bool {
	if event.Op == 0 {
		return false
	}

	// Only care about write, create, remove, rename.
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) &&
		!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
		return false
	}

	name := filepath.Base(event.Name)

	// Ignore editor temporary files and hidden files.
	if strings.HasPrefix(name, ".") || strings.HasSuffix(name, "~") ||
		strings.HasSuffix(name, ".swp") || strings.HasPrefix(name, "#") {
		return false
	}

	return true
}
