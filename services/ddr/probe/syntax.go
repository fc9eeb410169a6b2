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
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/AleutianAI/ddr/services/ddr/ast"
)

// DefaultSyntaxMaxFiles limits how many files an unscoped syntax
// check will parse.
const DefaultSyntaxMaxFiles = 500

// errSyntaxFound stops the workspace walk once a match is in hand.
var errSyntaxFound = errors.New("syntax match found")

// SyntaxProbe confirms symbols with tree-sitter grammars.
//
// Description:
//
//	Parses source files through the grammar registry and looks for a
//	declaration with the queried name. Scoped queries parse one file;
//	unscoped queries walk the workspace under a file budget. Files
//	with no registered grammar abstain when scoped and are skipped
//	when walking.
//
// Thread Safety:
//
//	Safe for concurrent use. The probe holds no mutable state; each
//	parse creates its own tree-sitter instance.
type SyntaxProbe struct {
	workspace string
	registry  *ast.ParserRegistry
	logger    *slog.Logger
	maxFiles  int
}

// SyntaxOption is a functional option for SyntaxProbe.
type SyntaxOption func(*SyntaxProbe)

// WithSyntaxRegistry replaces the default grammar registry.
func WithSyntaxRegistry(r *ast.ParserRegistry) SyntaxOption {
	return func(p *SyntaxProbe) {
		if r != nil {
			p.registry = r
		}
	}
}

// WithSyntaxLogger sets the probe's logger.
func WithSyntaxLogger(logger *slog.Logger) SyntaxOption {
	return func(p *SyntaxProbe) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithSyntaxMaxFiles bounds the unscoped workspace walk.
func WithSyntaxMaxFiles(n int) SyntaxOption {
	return func(p *SyntaxProbe) {
		if n > 0 {
			p.maxFiles = n
		}
	}
}

// NewSyntaxProbe creates a syntax probe rooted at workspace.
func NewSyntaxProbe(workspace string, opts ...SyntaxOption) *SyntaxProbe {
	p := &SyntaxProbe{
		workspace: workspace,
		registry:  ast.DefaultRegistry(),
		logger:    slog.Default(),
		maxFiles:  DefaultSyntaxMaxFiles,
	}

	for _, opt := range opts {
		opt(p)
	}

	return p
}

// Identity returns Syntax.
func (p *SyntaxProbe) Identity() Identity {
	return Syntax
}

// Check parses workspace sources looking for the symbol.
func (p *SyntaxProbe) Check(ctx context.Context, q Query) (Verdict, error) {
	ctx, span := startCheckSpan(ctx, Syntax, q)
	defer span.End()

	start := time.Now()
	v, err := p.check(ctx, q)
	recordCheckMetrics(ctx, Syntax, time.Since(start), v, err)
	return v, err
}

func (p *SyntaxProbe) check(ctx context.Context, q Query) (Verdict, error) {
	if err := ctx.Err(); err != nil {
		return Verdict{Probe: Syntax}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	if q.FileScope != "" {
		return p.checkScoped(ctx, q)
	}
	return p.checkWorkspace(ctx, q)
}

// checkScoped parses exactly the scoped file.
func (p *SyntaxProbe) checkScoped(ctx context.Context, q Query) (Verdict, error) {
	ext := strings.ToLower(filepath.Ext(q.FileScope))
	parser, ok := p.registry.GetByExtension(ext)
	if !ok {
		return Verdict{Probe: Syntax}, fmt.Errorf("%w: no grammar for %q files", ErrUnsupported, ext)
	}

	path := q.FileScope
	if !filepath.IsAbs(path) {
		path = filepath.Join(p.workspace, filepath.FromSlash(q.FileScope))
	}

	content, err := os.ReadFile(path)
	if err != nil {
		// A scope that names a nonexistent file is a real answer:
		// the symbol cannot be declared there.
		return Verdict{Probe: Syntax, Confirmed: false}, nil
	}

	result, err := parser.Parse(ctx, content, p.relPath(path))
	if err != nil {
		return Verdict{Probe: Syntax}, fmt.Errorf("%w: parsing %s: %v", ErrUnsupported, q.FileScope, err)
	}

	if sym := firstMatch(result, q); sym != nil {
		return p.verdictFor(sym), nil
	}
	return Verdict{Probe: Syntax, Confirmed: false}, nil
}

// checkWorkspace walks the workspace parsing every supported file
// until a match or the budget runs out.
func (p *SyntaxProbe) checkWorkspace(ctx context.Context, q Query) (Verdict, error) {
	var match *ast.Symbol
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

		parser, ok := p.registry.GetByExtension(strings.ToLower(filepath.Ext(path)))
		if !ok {
			return nil
		}

		fileCount++
		if fileCount > p.maxFiles {
			return filepath.SkipAll
		}

		content, err := os.ReadFile(path)
		if err != nil {
			return nil
		}

		result, err := parser.Parse(ctx, content, p.relPath(path))
		if err != nil {
			p.logger.Debug("Skipping unparseable file",
				slog.String("path", path),
				slog.String("error", err.Error()))
			return nil
		}

		if sym := firstMatch(result, q); sym != nil {
			match = sym
			return errSyntaxFound
		}
		return nil
	})

	if err != nil && !errors.Is(err, errSyntaxFound) {
		return Verdict{Probe: Syntax}, fmt.Errorf("%w: walking %s: %v", ErrUnavailable, p.workspace, err)
	}

	if match != nil {
		return p.verdictFor(match), nil
	}
	if fileCount == 0 {
		return Verdict{Probe: Syntax}, fmt.Errorf("%w: no parseable sources under %s", ErrUnsupported, p.workspace)
	}
	return Verdict{Probe: Syntax, Confirmed: false}, nil
}

// firstMatch returns the first symbol in source order matching the
// query's name and kind hint.
func firstMatch(result *ast.ParseResult, q Query) *ast.Symbol {
	for _, sym := range result.Symbols {
		if sym.Name != q.Name {
			continue
		}
		if !matchesKind(q.Kind, sym.Kind) {
			continue
		}
		return sym
	}
	return nil
}

func (p *SyntaxProbe) verdictFor(sym *ast.Symbol) Verdict {
	return Verdict{
		Probe:     Syntax,
		Confirmed: true,
		Location: &Location{
			FilePath:  filepath.Join(p.workspace, filepath.FromSlash(sym.FilePath)),
			StartLine: sym.StartLine,
			EndLine:   sym.EndLine,
		},
		Signature: sym.Signature,
	}
}

// relPath converts an absolute path to the workspace-relative slash
// form parsers expect.
func (p *SyntaxProbe) relPath(path string) string {
	rel, err := filepath.Rel(p.workspace, path)
	if err != nil {
		return filepath.ToSlash(path)
	}
	return filepath.ToSlash(rel)
}
