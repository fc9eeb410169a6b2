// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package probe

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"time"
)

// DefaultRawTextMaxFiles limits how many files an unscoped raw-text
// scan will read.
const DefaultRawTextMaxFiles = 2000

// DefaultRawTextMaxFileSize is the largest file a workspace scan will
// read (1 MB). Scoped checks read the named file regardless.
const DefaultRawTextMaxFileSize = 1 << 20

// binarySniffLen is how many leading bytes are checked for a null
// byte before a file is treated as binary.
const binarySniffLen = 8192

// errTextFound stops the workspace walk once a match is in hand.
var errTextFound = errors.New("raw text match found")

// RawTextProbe confirms symbols by word-boundary text search.
//
// Description:
//
//	The floor of the probe hierarchy. Greps workspace files for the
//	symbol name as a whole word. A hit is existence evidence only, so
//	verdicts never carry a location or signature. The probe never
//	abstains: unreadable or missing files simply fail to confirm,
//	which keeps at least one verdict in every validation.
//
// Thread Safety:
//
//	Safe for concurrent use. The probe holds no mutable state.
type RawTextProbe struct {
	workspace   string
	logger      *slog.Logger
	maxFiles    int
	maxFileSize int64
}

// RawTextOption is a functional option for RawTextProbe.
type RawTextOption func(*RawTextProbe)

// WithRawTextLogger sets the probe's logger.
func WithRawTextLogger(logger *slog.Logger) RawTextOption {
	return func(p *RawTextProbe) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithRawTextMaxFiles bounds the unscoped workspace scan.
func WithRawTextMaxFiles(n int) RawTextOption {
	return func(p *RawTextProbe) {
		if n > 0 {
			p.maxFiles = n
		}
	}
}

// WithRawTextMaxFileSize bounds the size of files the scan reads.
func WithRawTextMaxFileSize(size int64) RawTextOption {
	return func(p *RawTextProbe) {
		if size > 0 {
			p.maxFileSize = size
		}
	}
}

// NewRawTextProbe creates a raw-text probe rooted at workspace.
func NewRawTextProbe(workspace string, opts ...RawTextOption) *RawTextProbe {
	p := &RawTextProbe{
		workspace:   workspace,
		logger:      slog.Default(),
		maxFiles:    DefaultRawTextMaxFiles,
		maxFileSize: DefaultRawTextMaxFileSize,
	}

	for _, opt := range opts {
		opt(p)
	}

	return p
}

// Identity returns RawText.
func (p *RawTextProbe) Identity() Identity {
	return RawText
}

// Check scans workspace text for the symbol name.
func (p *RawTextProbe) Check(ctx context.Context, q Query) (Verdict, error) {
	ctx, span := startCheckSpan(ctx, RawText, q)
	defer span.End()

	start := time.Now()
	v, err := p.check(ctx, q)
	recordCheckMetrics(ctx, RawText, time.Since(start), v, err)
	return v, err
}

func (p *RawTextProbe) check(ctx context.Context, q Query) (Verdict, error) {
	if q.Name == "" {
		// An empty pattern matches every word boundary. Refuse it
		// rather than confirm everything.
		return Verdict{Probe: RawText}, fmt.Errorf("%w: symbol name is empty", ErrInvalidQuery)
	}

	pattern := regexp.MustCompile(`\b` + regexp.QuoteMeta(q.Name) + `\b`)

	if q.FileScope != "" {
		return p.checkScoped(q, pattern), nil
	}
	return p.checkWorkspace(ctx, pattern)
}

// checkScoped greps exactly the scoped file.
func (p *RawTextProbe) checkScoped(q Query, pattern *regexp.Regexp) Verdict {
	path := q.FileScope
	if !filepath.IsAbs(path) {
		path = filepath.Join(p.workspace, filepath.FromSlash(q.FileScope))
	}

	content, err := os.ReadFile(path)
	if err != nil || isBinary(content) {
		return Verdict{Probe: RawText, Confirmed: false}
	}

	return Verdict{Probe: RawText, Confirmed: pattern.Match(content)}
}

// checkWorkspace greps workspace files until a match or the budget
// runs out.
func (p *RawTextProbe) checkWorkspace(ctx context.Context, pattern *regexp.Regexp) (Verdict, error) {
	found := false
	fileCount := 0

	err := filepath.WalkDir(p.workspace, func(path string, d os.DirEntry, walkErr error) error {
		if walkErr != nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		if d.IsDir() {
			if path != p.workspace && skipDirName(d.Name()) {
				return filepath.SkipDir
			}
			return nil
		}

		info, err := d.Info()
		if err != nil || info.Size() > p.maxFileSize {
			return nil
		}

		fileCount++
		if fileCount > p.maxFiles {
			return filepath.SkipAll
		}

		content, err := os.ReadFile(path)
		if err != nil || isBinary(content) {
			return nil
		}

		if pattern.Match(content) {
			found = true
			return errTextFound
		}
		return nil
	})
	if err != nil && !errors.Is(err, errTextFound) {
		// A workspace we cannot walk at all still yields a verdict:
		// nothing confirmed.
		p.logger.Debug("Raw text scan aborted",
			slog.String("workspace", p.workspace),
			slog.String("error", err.Error()))
		return Verdict{Probe: RawText, Confirmed: false}, nil
	}

	return Verdict{Probe: RawText, Confirmed: found}, nil
}

// isBinary reports whether content looks like binary data.
func isBinary(content []byte) bool {
	sniff := content
	if len(sniff) > binarySniffLen {
		sniff = sniff[:binarySniffLen]
	}
	return bytes.IndexByte(sniff, 0) >= 0
}
