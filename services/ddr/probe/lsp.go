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

	"github.com/AleutianAI/ddr/services/ddr/lsp"
)

// LSPProbe confirms symbols through a running language server.
//
// Description:
//
//	Queries workspace/symbol for an exact-name match, falling back to
//	textDocument/documentSymbol for scoped queries the workspace
//	search misses. The server's semantic index sees through build
//	tags and generated code the static probes cannot, but the probe
//	abstains whenever the server binary is not installed or the
//	request fails.
//
// Thread Safety:
//
//	Safe for concurrent use. Server lifecycle is serialized by the
//	manager.
type LSPProbe struct {
	workspace string
	ops       *lsp.Operations
	logger    *slog.Logger
}

// LSPOption is a functional option for LSPProbe.
type LSPOption func(*LSPProbe)

// WithLSPOperations injects a pre-built operations layer. The caller
// keeps ownership of the underlying manager's lifecycle.
func WithLSPOperations(ops *lsp.Operations) LSPOption {
	return func(p *LSPProbe) {
		if ops != nil {
			p.ops = ops
		}
	}
}

// WithLSPLogger sets the probe's logger.
func WithLSPLogger(logger *slog.Logger) LSPOption {
	return func(p *LSPProbe) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// NewLSPProbe creates a language-server probe rooted at workspace.
func NewLSPProbe(workspace string, opts ...LSPOption) *LSPProbe {
	p := &LSPProbe{
		workspace: workspace,
		logger:    slog.Default(),
	}

	for _, opt := range opts {
		opt(p)
	}

	if p.ops == nil {
		p.ops = lsp.NewOperations(lsp.NewManager(workspace, lsp.DefaultManagerConfig()))
	}

	return p
}

// Identity returns LanguageServer.
func (p *LSPProbe) Identity() Identity {
	return LanguageServer
}

// Operations returns the underlying LSP operations layer.
func (p *LSPProbe) Operations() *lsp.Operations {
	return p.ops
}

// Close shuts down any language servers the probe spawned.
func (p *LSPProbe) Close(ctx context.Context) error {
	return p.ops.Manager().ShutdownAll(ctx)
}

// Check asks the language server about the symbol.
func (p *LSPProbe) Check(ctx context.Context, q Query) (Verdict, error) {
	ctx, span := startCheckSpan(ctx, LanguageServer, q)
	defer span.End()

	start := time.Now()
	v, err := p.check(ctx, q)
	recordCheckMetrics(ctx, LanguageServer, time.Since(start), v, err)
	return v, err
}

func (p *LSPProbe) check(ctx context.Context, q Query) (Verdict, error) {
	lang, err := p.language(q)
	if err != nil {
		return Verdict{Probe: LanguageServer}, err
	}

	if !p.ops.Manager().IsAvailable(lang) {
		return Verdict{Probe: LanguageServer}, fmt.Errorf("%w: no %s server installed", ErrUnavailable, lang)
	}

	symbols, err := p.ops.WorkspaceSymbol(ctx, lang, q.Name)
	if err != nil {
		return Verdict{Probe: LanguageServer}, fmt.Errorf("%w: workspace/symbol: %v", ErrUnavailable, err)
	}

	matches := filterSymbols(symbols, q)

	// Some servers index workspace/symbol lazily; a scoped query can
	// still be answered from the document outline.
	if len(matches) == 0 && q.FileScope != "" {
		matches, err = p.documentMatches(ctx, q)
		if err != nil {
			return Verdict{Probe: LanguageServer}, err
		}
	}

	if len(matches) == 0 {
		return Verdict{Probe: LanguageServer, Confirmed: false}, nil
	}

	best := matches[0]
	for _, m := range matches[1:] {
		if less(m, best) {
			best = m
		}
	}

	path := uriToFilePath(best.Location.URI)
	loc := &Location{
		FilePath:  path,
		StartLine: best.Location.Range.Start.Line + 1,
		EndLine:   best.Location.Range.End.Line + 1,
	}

	return Verdict{
		Probe:     LanguageServer,
		Confirmed: true,
		Location:  loc,
		Signature: p.hoverSignature(ctx, path, best.Location.Range.Start),
	}, nil
}

// language picks the server language for a query: the scope's
// extension when scoped, otherwise Go when the workspace is a Go
// module.
func (p *LSPProbe) language(q Query) (string, error) {
	if q.FileScope != "" {
		ext := filepath.Ext(q.FileScope)
		lang, ok := p.ops.Manager().Configs().LanguageForExtension(ext)
		if !ok {
			return "", fmt.Errorf("%w: no server configured for %q files", ErrUnsupported, ext)
		}
		return lang, nil
	}

	if _, err := os.Stat(filepath.Join(p.workspace, "go.mod")); err == nil {
		return "go", nil
	}
	return "", fmt.Errorf("%w: cannot infer a server language for %s", ErrUnsupported, p.workspace)
}

// documentMatches runs the documentSymbol fallback over the scoped
// file.
func (p *LSPProbe) documentMatches(ctx context.Context, q Query) ([]lsp.SymbolInformation, error) {
	path := q.FileScope
	if !filepath.IsAbs(path) {
		path = filepath.Join(p.workspace, filepath.FromSlash(q.FileScope))
	}

	symbols, err := p.ops.DocumentSymbol(ctx, path)
	if err != nil {
		if errors.Is(err, lsp.ErrUnsupportedLanguage) {
			return nil, fmt.Errorf("%w: %v", ErrUnsupported, err)
		}
		return nil, fmt.Errorf("%w: documentSymbol: %v", ErrUnavailable, err)
	}

	var matches []lsp.SymbolInformation
	for _, s := range symbols {
		if s.Name == q.Name && matchesLSPKind(q.Kind, s.Kind) {
			matches = append(matches, s)
		}
	}
	return matches, nil
}

// hoverSignature asks the server for a signature at the match site.
// Hover is best effort; a failed request just leaves the signature
// empty.
func (p *LSPProbe) hoverSignature(ctx context.Context, path string, pos lsp.Position) string {
	hover, err := p.ops.Hover(ctx, path, pos.Line, pos.Character)
	if err != nil || hover == nil {
		return ""
	}
	return firstCodeLine(hover.Contents.Value)
}

// filterSymbols keeps exact-name results matching the query's kind
// hint and file scope.
func filterSymbols(symbols []lsp.SymbolInformation, q Query) []lsp.SymbolInformation {
	var matches []lsp.SymbolInformation
	for _, s := range symbols {
		if s.Name != q.Name {
			continue
		}
		if !matchesLSPKind(q.Kind, s.Kind) {
			continue
		}
		if q.FileScope != "" && !scopeMatches(uriToFilePath(s.Location.URI), q.FileScope) {
			continue
		}
		matches = append(matches, s)
	}
	return matches
}

// less orders symbol results by file path, then start line.
func less(a, b lsp.SymbolInformation) bool {
	ap, bp := a.Location.URI, b.Location.URI
	if ap != bp {
		return ap < bp
	}
	return a.Location.Range.Start.Line < b.Location.Range.Start.Line
}

// uriToFilePath strips the file scheme from a document URI.
func uriToFilePath(uri string) string {
	return strings.TrimPrefix(uri, "file://")
}

// firstCodeLine extracts the first contentful line of a hover
// markdown block, skipping code fences.
func firstCodeLine(markdown string) string {
	for _, line := range strings.Split(markdown, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "```") {
			continue
		}
		return trimmed
	}
	return ""
}
