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
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestOp_String(t *testing.T) {
	tests := []struct {
		op   Op
		want string
	}{
		{OpCreate, "create"},
		{OpWrite, "write"},
		{OpRemove, "remove"},
		{OpRename, "rename"},
		{Op(99), "unknown"},
	}

	for _, tt := range tests {
		if got := tt.op.String(); got != tt.want {
			t.Errorf("Op(%d).String() = %q, want %q", tt.op, got, tt.want)
		}
	}
}

func TestDefaultWatcherOptions(t *testing.T) {
	opts := DefaultWatcherOptions()

	if opts.Debounce != 100*time.Millisecond {
		t.Errorf("Debounce = %v, want 100ms", opts.Debounce)
	}
	if opts.BufferSize != 1000 {
		t.Errorf("BufferSize = %d, want 1000", opts.BufferSize)
	}
	if len(opts.IgnorePatterns) == 0 {
		t.Error("expected default ignore patterns")
	}
}

func TestDedupeEvents(t *testing.T) {
	now := time.Now()
	events := []Event{
		{Path: "a.go", Op: OpCreate, Time: now},
		{Path: "b.go", Op: OpWrite, Time: now},
		{Path: "a.go", Op: OpWrite, Time: now.Add(time.Millisecond)},
	}

	deduped := dedupeEvents(events)

	if len(deduped) != 2 {
		t.Fatalf("len = %d, want 2", len(deduped))
	}
	if deduped[0].Path != "a.go" || deduped[0].Op != OpWrite {
		t.Errorf("deduped[0] = %+v, want latest a.go write", deduped[0])
	}
	if deduped[1].Path != "b.go" {
		t.Errorf("deduped[1].Path = %q, want b.go", deduped[1].Path)
	}
}

func TestWatcher_ShouldIgnore(t *testing.T) {
	w, err := NewWatcher(t.TempDir(), nil, nil)
	if err != nil {
		t.Fatalf("NewWatcher failed: %v", err)
	}
	defer w.Stop()

	tests := []struct {
		path string
		want bool
	}{
		{"/repo/.git", true},
		{"/repo/.git/objects/ab", true},
		{"/repo/node_modules", true},
		{"/repo/vendor", true},
		{"/repo/main.go.swp", true},
		{"/repo/scratch.tmp", true},
		{"/repo/src/__pycache__", true},
		{"/repo/src/main.go", false},
		{"/repo/digits.py", false},
	}

	for _, tt := range tests {
		if got := w.shouldIgnore(tt.path); got != tt.want {
			t.Errorf("shouldIgnore(%q) = %v, want %v", tt.path, got, tt.want)
		}
	}
}

func TestWatcher_StartStop(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	w, err := NewWatcher(t.TempDir(), func([]Event) {}, nil)
	if err != nil {
		t.Fatalf("NewWatcher failed: %v", err)
	}

	if w.IsWatching() {
		t.Error("watching before Start")
	}

	if err := w.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if !w.IsWatching() {
		t.Error("not watching after Start")
	}

	// Second Start is a no-op.
	if err := w.Start(ctx); err != nil {
		t.Errorf("second Start failed: %v", err)
	}

	w.Stop()
	w.Stop() // idempotent

	if w.IsWatching() {
		t.Error("still watching after Stop")
	}
}

// TestWatcher_HandlerBatch verifies changes arrive debounced and deduped.
func TestWatcher_HandlerBatch(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	dir := t.TempDir()
	batches := make(chan []Event, 10)

	opts := DefaultWatcherOptions()
	opts.Debounce = 20 * time.Millisecond

	w, err := NewWatcher(dir, func(events []Event) {
		batches <- events
	}, &opts)
	if err != nil {
		t.Fatalf("NewWatcher failed: %v", err)
	}
	defer w.Stop()

	if err := w.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	createTestFile(t, dir, "one.go", []byte("package one\n"))
	createTestFile(t, dir, "two.go", []byte("package two\n"))

	seen := make(map[string]bool)
	deadline := time.After(3 * time.Second)
	for len(seen) < 2 {
		select {
		case batch := <-batches:
			for _, ev := range batch {
				seen[filepath.Base(ev.Path)] = true
			}
		case <-deadline:
			t.Fatalf("timed out waiting for change batches, saw %v", seen)
		}
	}

	if !seen["one.go"] || !seen["two.go"] {
		t.Errorf("missing changes, saw %v", seen)
	}
}

// TestCacheWatcher_Invalidation verifies a file rewrite evicts the stale
// line count so the next citation check rescans.
func TestCacheWatcher_Invalidation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	dir := t.TempDir()
	path := createTestFile(t, dir, "subject.go", []byte("package x\n\nvar a = 1\n"))

	// Hour-long TTL: only the watcher can evict.
	cache := NewCache(WithCacheTTL(time.Hour))
	resolver := NewResolver(WithResolverCache(cache))

	opts := DefaultWatcherOptions()
	opts.Debounce = 20 * time.Millisecond

	w, err := NewCacheWatcher(dir, cache, &opts)
	if err != nil {
		t.Fatalf("NewCacheWatcher failed: %v", err)
	}
	defer w.Stop()

	if err := w.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	if err := resolver.Resolve(ctx, Citation{FilePath: path, Line: 3}); err != nil {
		t.Fatalf("initial resolve failed: %v", err)
	}
	if _, ok := cache.Get(path); !ok {
		t.Fatal("line count not cached after resolve")
	}

	if err := os.WriteFile(path, []byte("package x\n"), 0644); err != nil {
		t.Fatalf("failed to rewrite file: %v", err)
	}

	deadline := time.After(3 * time.Second)
	for {
		if _, ok := cache.Get(path); !ok {
			break
		}
		select {
		case <-deadline:
			t.Fatal("timed out waiting for cache invalidation")
		case <-time.After(10 * time.Millisecond):
		}
	}

	if err := resolver.Resolve(ctx, Citation{FilePath: path, Line: 3}); err == nil {
		t.Error("expected out-of-range error after shrink, got nil")
	}
}
