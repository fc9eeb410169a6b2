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
	"sync"
	"time"
)

// DefaultCacheTTL is how long a counted line total stays trusted before
// the file is re-scanned.
const DefaultCacheTTL = 500 * time.Millisecond

// Cache caches per-file line counts to avoid redundant scans during
// rapid-fire citation checks.
//
// Thread Safety:
//
//	Cache is safe for concurrent use.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]cacheEntry
	ttl     time.Duration
}

// cacheEntry records a line count and when it was taken.
type cacheEntry struct {
	// lines is the number of lines the file had at scan time.
	lines int

	// countedAt is when the scan ran.
	countedAt time.Time
}

// CacheOption is a functional option for configuring Cache.
type CacheOption func(*Cache)

// WithCacheTTL sets the TTL for cached line counts.
func WithCacheTTL(d time.Duration) CacheOption {
	return func(c *Cache) {
		if d > 0 {
			c.ttl = d
		}
	}
}

// NewCache creates a new line-count cache.
//
// Description:
//
//	Creates a cache for storing recent file line counts. Files scanned
//	within the TTL period are not re-read, so a burst of citations into
//	the same file costs one scan.
//
// Inputs:
//
//	opts - Optional configuration. Default TTL is 500ms.
//
// Outputs:
//
//	*Cache - The new cache instance.
//
// Thread Safety:
//
//	The returned cache is safe for concurrent use.
func NewCache(opts ...CacheOption) *Cache {
	c := &Cache{
		entries: make(map[string]cacheEntry),
		ttl:     DefaultCacheTTL,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Get returns the cached line count for a file.
//
// Description:
//
//	Returns the line count recorded by the most recent Put, or false if
//	the file has never been scanned or its entry has expired.
//
// Inputs:
//
//	path - The file path to look up.
//
// Outputs:
//
//	int - The cached line count.
//	bool - True if a fresh entry exists.
//
// Thread Safety:
//
//	Safe for concurrent use.
func (c *Cache) Get(path string) (int, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, exists := c.entries[path]
	if !exists {
		return 0, false
	}
	if time.Since(entry.countedAt) > c.ttl {
		return 0, false
	}

	return entry.lines, true
}

// Put records a file's line count.
//
// Thread Safety:
//
//	Safe for concurrent use.
func (c *Cache) Put(path string, lines int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[path] = cacheEntry{
		lines:     lines,
		countedAt: time.Now(),
	}
}

// Invalidate removes a single file from the cache.
//
// Description:
//
//	Removes the line count for a specific file, forcing a re-scan on the
//	next citation into it. The watcher calls this when the file changes
//	on disk.
//
// Inputs:
//
//	path - The file path to invalidate.
//
// Thread Safety:
//
//	Safe for concurrent use.
func (c *Cache) Invalidate(path string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.entries, path)
}

// InvalidateAll clears all cached line counts.
//
// Description:
//
//	Removes all entries. This should be called after operations that may
//	change many files (git checkout, pull, etc.).
//
// Thread Safety:
//
//	Safe for concurrent use.
func (c *Cache) InvalidateAll() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[string]cacheEntry)
}

// Cleanup removes expired entries from the cache.
//
// Description:
//
//	Removes entries older than the TTL. This can be called periodically
//	to prevent memory growth in long-running processes.
//
// Outputs:
//
//	int - The number of entries removed.
//
// Thread Safety:
//
//	Safe for concurrent use.
func (c *Cache) Cleanup() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	removed := 0

	for path, entry := range c.entries {
		if now.Sub(entry.countedAt) > c.ttl {
			delete(c.entries, path)
			removed++
		}
	}

	return removed
}

// Size returns the number of entries in the cache.
//
// Thread Safety:
//
//	Safe for concurrent use.
func (c *Cache) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return len(c.entries)
}

// TTL returns the configured TTL duration.
func (c *Cache) TTL() time.Duration {
	return c.ttl
}
