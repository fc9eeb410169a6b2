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
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
)

// Resolver checks citations against the filesystem.
//
// Description:
//
//	A resolver proves that a citation's file exists and that its line
//	number falls inside the file. Line counts are cached with a short
//	TTL, so a burst of citations into the same file costs a single scan.
//	A stale count can survive at most one TTL window; pairing the
//	resolver's cache with a Watcher closes even that gap.
//
// Thread Safety:
//
//	Resolver is safe for concurrent use.
type Resolver struct {
	cache *Cache
}

// ResolverOption is a functional option for configuring Resolver.
type ResolverOption func(*Resolver)

// WithResolverCache sets a custom line-count cache.
func WithResolverCache(c *Cache) ResolverOption {
	return func(r *Resolver) {
		if c != nil {
			r.cache = c
		}
	}
}

// NewResolver creates a resolver with a fresh default cache.
func NewResolver(opts ...ResolverOption) *Resolver {
	r := &Resolver{
		cache: NewCache(),
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// Cache returns the resolver's line-count cache. Callers wire it to a
// Watcher so on-disk changes invalidate cached counts.
func (r *Resolver) Cache() *Cache {
	return r.cache
}

// Resolve verifies that a citation points inside a real file.
//
// Description:
//
//	Checks the citation structurally, then against the filesystem. The
//	file must exist, be a regular file, and contain at least Line lines.
//	A file whose final line lacks a trailing newline still counts that
//	line.
//
// Inputs:
//
//	ctx - Context for cancellation.
//	c - The citation to verify.
//
// Outputs:
//
//	error - Nil if the citation resolves. ErrInvalidCitation,
//	        ErrFileMissing, or ErrLineOutOfRange (all wrapped with
//	        detail) otherwise.
//
// Thread Safety:
//
//	Safe for concurrent use.
func (r *Resolver) Resolve(ctx context.Context, c Citation) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	if !c.Valid() {
		return fmt.Errorf("%w: path=%q line=%d", ErrInvalidCitation, c.FilePath, c.Line)
	}

	if lines, ok := r.cache.Get(c.FilePath); ok {
		return checkBounds(c, lines)
	}

	info, err := os.Stat(c.FilePath)
	if os.IsNotExist(err) {
		return fmt.Errorf("%w: %s", ErrFileMissing, c.FilePath)
	}
	if err != nil {
		return fmt.Errorf("stat %s: %w", c.FilePath, err)
	}
	if !info.Mode().IsRegular() {
		return fmt.Errorf("%w: %s is not a regular file", ErrFileMissing, c.FilePath)
	}

	lines, err := countLines(c.FilePath)
	if err != nil {
		return fmt.Errorf("counting lines in %s: %w", c.FilePath, err)
	}

	r.cache.Put(c.FilePath, lines)

	return checkBounds(c, lines)
}

// ResolveString parses and resolves a "path:line" citation in one step.
//
// Outputs:
//
//	Citation - The parsed citation (zero value on parse failure).
//	error - Parse or resolution error.
func (r *Resolver) ResolveString(ctx context.Context, s string) (Citation, error) {
	c, err := ParseCitation(s)
	if err != nil {
		return Citation{}, err
	}

	if err := r.Resolve(ctx, c); err != nil {
		return c, err
	}

	return c, nil
}

// checkBounds compares a citation's line to a known line count.
func checkBounds(c Citation, lines int) error {
	if c.Line > lines {
		return fmt.Errorf("%w: %s has %d line(s), cited line %d", ErrLineOutOfRange, c.FilePath, lines, c.Line)
	}
	return nil
}

// countLines streams through a file counting line boundaries.
// A trailing fragment without a final newline counts as a line.
func countLines(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	var (
		count    int
		sawByte  bool
		trailing byte
	)

	buf := make([]byte, 32*1024)
	for {
		n, readErr := f.Read(buf)
		if n > 0 {
			sawByte = true
			count += bytes.Count(buf[:n], []byte{'\n'})
			trailing = buf[n-1]
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			return 0, readErr
		}
	}

	if sawByte && trailing != '\n' {
		count++
	}

	return count, nil
}
