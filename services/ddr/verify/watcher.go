// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package verify

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Event represents a filesystem change relevant to citation integrity.
type Event struct {
	// Path is the path to the changed file as reported by the OS.
	Path string

	// Op is the type of change.
	Op Op

	// Time is when the change was detected.
	Time time.Time
}

// Op represents the type of file operation.
type Op int

const (
	// OpCreate indicates a file was created.
	OpCreate Op = iota

	// OpWrite indicates a file was modified.
	OpWrite

	// OpRemove indicates a file was deleted.
	OpRemove

	// OpRename indicates a file was renamed.
	OpRename
)

// String returns the string representation of the operation.
func (op Op) String() string {
	switch op {
	case OpCreate:
		return "create"
	case OpWrite:
		return "write"
	case OpRemove:
		return "remove"
	case OpRename:
		return "rename"
	default:
		return "unknown"
	}
}

// Handler is called with a debounced batch of changes.
type Handler func(events []Event)

// Watcher keeps cached verification state honest across file mutation.
//
// Description:
//
//	Watches a workspace recursively and batches changes using a debounce
//	window, so a save storm during active editing triggers one
//	invalidation pass instead of hundreds. The default wiring
//	(NewCacheWatcher) drops line counts for changed files; callers with
//	more state to evict register their own Handler.
//
// Thread Safety:
//
//	Safe for concurrent use. The handler is called from a single
//	goroutine.
type Watcher struct {
	root     string
	notifier *fsnotify.Watcher
	handler  Handler
	debounce time.Duration
	ignore   []string

	events   chan Event
	done     chan struct{}
	stopOnce sync.Once

	mu       sync.RWMutex
	watching bool
}

// WatcherOptions configures the Watcher.
type WatcherOptions struct {
	// Debounce is how long to wait for more changes before triggering.
	// Default: 100ms
	Debounce time.Duration

	// IgnorePatterns are glob patterns for files/directories to ignore.
	// Default: [".git", "node_modules", "vendor", ".idea", "*.swp", "*.tmp", "__pycache__"]
	IgnorePatterns []string

	// BufferSize is the size of the change buffer channel.
	// Default: 1000
	BufferSize int
}

// DefaultWatcherOptions returns sensible defaults.
func DefaultWatcherOptions() WatcherOptions {
	return WatcherOptions{
		Debounce:       100 * time.Millisecond,
		IgnorePatterns: []string{".git", "node_modules", "vendor", ".idea", "*.swp", "*.tmp", "__pycache__"},
		BufferSize:     1000,
	}
}

// NewWatcher creates a watcher for the given root directory.
//
// Inputs:
//
//	root - Path to the directory to watch.
//	handler - Function called with batched changes after debounce.
//	opts - Optional configuration (nil uses defaults).
//
// Outputs:
//
//	*Watcher - Ready-to-use watcher (call Start to begin watching).
//	error - Non-nil if the underlying notifier could not be created.
func NewWatcher(root string, handler Handler, opts *WatcherOptions) (*Watcher, error) {
	if opts == nil {
		defaults := DefaultWatcherOptions()
		opts = &defaults
	}

	notifier, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	return &Watcher{
		root:     root,
		notifier: notifier,
		handler:  handler,
		debounce: opts.Debounce,
		ignore:   opts.IgnorePatterns,
		events:   make(chan Event, opts.BufferSize),
		done:     make(chan struct{}),
	}, nil
}

// NewCacheWatcher creates a watcher wired to a line-count cache.
//
// Description:
//
//	Every changed file is invalidated in the cache under both the
//	reported path and its root-relative spelling, since citations may
//	carry either form.
//
// Inputs:
//
//	root - Path to the directory to watch.
//	cache - The cache to invalidate on change.
//	opts - Optional configuration (nil uses defaults).
//
// Outputs:
//
//	*Watcher - Ready-to-use watcher.
//	error - Non-nil if the underlying notifier could not be created.
func NewCacheWatcher(root string, cache *Cache, opts *WatcherOptions) (*Watcher, error) {
	return NewWatcher(root, func(events []Event) {
		for _, ev := range events {
			cache.Invalidate(ev.Path)
			if rel, err := filepath.Rel(root, ev.Path); err == nil {
				cache.Invalidate(rel)
			}
		}
	}, opts)
}

// Start begins watching for file changes.
//
// Description:
//
//	Recursively watches the root directory and all subdirectories.
//	Changes are debounced and sent to the handler in batches. Spawns two
//	goroutines (event conversion and debouncing); both exit when Stop is
//	called or the context is canceled.
//
// Inputs:
//
//	ctx - Context for cancellation. When canceled, watching stops.
//
// Outputs:
//
//	error - Non-nil if watching could not be started.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.watching {
		w.mu.Unlock()
		return nil
	}
	w.watching = true
	w.mu.Unlock()

	if err := w.addRecursive(w.root); err != nil {
		return err
	}

	go w.processEvents(ctx)
	go w.debounceLoop(ctx)

	return nil
}

// Stop stops the watcher.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.done)
		w.notifier.Close()

		w.mu.Lock()
		w.watching = false
		w.mu.Unlock()
	})
}

// IsWatching returns true if the watcher is currently active.
func (w *Watcher) IsWatching() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.watching
}

// addRecursive adds a directory and all subdirectories to the watch list.
func (w *Watcher) addRecursive(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil // Unreadable entries are skipped, not fatal
		}

		if !d.IsDir() {
			return nil
		}

		if w.shouldIgnore(path) {
			return filepath.SkipDir
		}

		return w.notifier.Add(path)
	})
}

// shouldIgnore checks if a path matches any ignore pattern.
func (w *Watcher) shouldIgnore(path string) bool {
	base := filepath.Base(path)

	for _, pattern := range w.ignore {
		if base == pattern {
			return true
		}

		matched, _ := filepath.Match(pattern, base)
		if matched {
			return true
		}

		if strings.Contains(path, string(filepath.Separator)+pattern+string(filepath.Separator)) {
			return true
		}
	}

	return false
}

// processEvents converts notifier events to Events and sends them on.
func (w *Watcher) processEvents(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.done:
			return
		case event, ok := <-w.notifier.Events:
			if !ok {
				return
			}

			if w.shouldIgnore(event.Name) {
				continue
			}

			change := Event{
				Path: event.Name,
				Time: time.Now(),
				Op:   convertOp(event.Op),
			}

			// Non-blocking send; the debouncer keeps up in practice
			// and a dropped event only delays invalidation one TTL.
			select {
			case w.events <- change:
			default:
			}

			// New directories need their own watch registration.
			if event.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					_ = w.notifier.Add(event.Name)
				}
			}

		case err, ok := <-w.notifier.Errors:
			if !ok {
				return
			}
			slog.Debug("File watcher error", slog.String("error", err.Error()))
		}
	}
}

// convertOp converts fsnotify.Op to Op.
func convertOp(op fsnotify.Op) Op {
	switch {
	case op.Has(fsnotify.Create):
		return OpCreate
	case op.Has(fsnotify.Write):
		return OpWrite
	case op.Has(fsnotify.Remove):
		return OpRemove
	case op.Has(fsnotify.Rename):
		return OpRename
	default:
		return OpWrite
	}
}

// debounceLoop batches changes and calls the handler after the window.
func (w *Watcher) debounceLoop(ctx context.Context) {
	var batch []Event
	var timer *time.Timer
	var timerC <-chan time.Time

	flush := func() {
		if len(batch) > 0 {
			deduped := dedupeEvents(batch)
			if len(deduped) > 0 && w.handler != nil {
				w.handler(deduped)
			}
			batch = batch[:0]
		}
		if timer != nil {
			timer.Stop()
			timer = nil
			timerC = nil
		}
	}

	for {
		select {
		case <-ctx.Done():
			flush()
			return
		case <-w.done:
			flush()
			return
		case change := <-w.events:
			batch = append(batch, change)

			if timer == nil {
				timer = time.NewTimer(w.debounce)
				timerC = timer.C
			} else {
				timer.Reset(w.debounce)
			}

		case <-timerC:
			flush()
		}
	}
}

// dedupeEvents keeps the most recent change per path.
func dedupeEvents(events []Event) []Event {
	seen := make(map[string]int)
	result := make([]Event, 0, len(events))

	for _, ev := range events {
		if idx, exists := seen[ev.Path]; exists {
			result[idx] = ev
		} else {
			seen[ev.Path] = len(result)
			result = append(result, ev)
		}
	}

	return result
}
