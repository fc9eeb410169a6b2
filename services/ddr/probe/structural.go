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
	"fmt"
	goast "go/ast"
	"go/parser"
	"go/token"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"golang.org/x/mod/modfile"

	"github.com/AleutianAI/ddr/services/ddr/ast"
	"github.com/AleutianAI/ddr/services/ddr/index"
)

// DefaultStructuralMaxFiles limits how many Go files one workspace
// index will parse.
const DefaultStructuralMaxFiles = 500

// StructuralProbe confirms symbols against the Go AST of the
// workspace.
//
// Description:
//
//	The highest-trust probe. On first use it walks the workspace,
//	parses every Go file with the standard parser, and loads the
//	declarations into a symbol index. Checks are then index lookups.
//	Non-Go file scopes and workspaces without Go sources abstain.
//
// Thread Safety:
//
//	Safe for concurrent use. The index build is serialized; lookups
//	run against the index's own locking.
type StructuralProbe struct {
	workspace string
	logger    *slog.Logger
	maxFiles  int

	mu         sync.Mutex
	built      bool
	modulePath string
	idx        *index.SymbolIndex
}

// StructuralOption is a functional option for StructuralProbe.
type StructuralOption func(*StructuralProbe)

// WithStructuralLogger sets the probe's logger.
func WithStructuralLogger(logger *slog.Logger) StructuralOption {
	return func(p *StructuralProbe) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithStructuralMaxFiles bounds the workspace walk.
func WithStructuralMaxFiles(n int) StructuralOption {
	return func(p *StructuralProbe) {
		if n > 0 {
			p.maxFiles = n
		}
	}
}

// WithStructuralIndex injects a pre-built symbol index. The probe
// takes the index as already complete and skips its own walk.
func WithStructuralIndex(idx *index.SymbolIndex) StructuralOption {
	return func(p *StructuralProbe) {
		if idx != nil {
			p.idx = idx
			p.built = true
		}
	}
}

// NewStructuralProbe creates a structural probe rooted at workspace.
func NewStructuralProbe(workspace string, opts ...StructuralOption) *StructuralProbe {
	p := &StructuralProbe{
		workspace: workspace,
		logger:    slog.Default(),
		maxFiles:  DefaultStructuralMaxFiles,
		idx:       index.NewSymbolIndex(),
	}

	for _, opt := range opts {
		opt(p)
	}

	return p
}

// Identity returns Structural.
func (p *StructuralProbe) Identity() Identity {
	return Structural
}

// Index returns the probe's symbol index. The orchestrator reads it
// for near-miss suggestions on rejected queries.
func (p *StructuralProbe) Index() *index.SymbolIndex {
	return p.idx
}

// ModulePath returns the workspace module path once the index has
// been built, or "" for workspaces without a go.mod.
func (p *StructuralProbe) ModulePath() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.modulePath
}

// Check looks the symbol up in the workspace AST index.
func (p *StructuralProbe) Check(ctx context.Context, q Query) (Verdict, error) {
	ctx, span := startCheckSpan(ctx, Structural, q)
	defer span.End()

	start := time.Now()
	v, err := p.check(ctx, q)
	recordCheckMetrics(ctx, Structural, time.Since(start), v, err)
	return v, err
}

func (p *StructuralProbe) check(ctx context.Context, q Query) (Verdict, error) {
	if q.FileScope != "" && !strings.HasSuffix(q.FileScope, ".go") {
		return Verdict{Probe: Structural}, fmt.Errorf("%w: structural probe reads Go sources, scope is %s", ErrUnsupported, q.FileScope)
	}

	if err := p.ensureIndex(ctx); err != nil {
		return Verdict{Probe: Structural}, err
	}

	var best *ast.Symbol
	for _, sym := range p.idx.GetByName(q.Name) {
		if !matchesKind(q.Kind, sym.Kind) {
			continue
		}
		if !scopeMatches(sym.FilePath, q.FileScope) {
			continue
		}
		if best == nil || sym.FilePath < best.FilePath ||
			(sym.FilePath == best.FilePath && sym.StartLine < best.StartLine) {
			best = sym
		}
	}

	if best == nil {
		return Verdict{Probe: Structural, Confirmed: false}, nil
	}

	return Verdict{
		Probe:     Structural,
		Confirmed: true,
		Location: &Location{
			FilePath:  filepath.Join(p.workspace, filepath.FromSlash(best.FilePath)),
			StartLine: best.StartLine,
			EndLine:   best.EndLine,
		},
		Signature: best.Signature,
	}, nil
}

// ensureIndex builds the workspace index on first use.
//
// A failed build is retried on the next check rather than cached, so
// a transient cancellation does not poison the probe.
func (p *StructuralProbe) ensureIndex(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.built {
		return nil
	}

	start := time.Now()
	p.modulePath = detectModulePath(p.workspace)

	fileCount := 0
	symbolCount := 0

	err := filepath.WalkDir(p.workspace, func(path string, d os.DirEntry, walkErr error) error {
		if walkErr != nil {
			return nil // Skip entries we can't access
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

		if !strings.HasSuffix(path, ".go") {
			return nil
		}

		fileCount++
		if fileCount > p.maxFiles {
			return filepath.SkipAll
		}

		symbols, err := p.extractFile(path)
		if err != nil {
			// Unparseable files are skipped, not fatal
			p.logger.Debug("Skipping unparseable Go file",
				slog.String("path", path),
				slog.String("error", err.Error()))
			return nil
		}

		if err := p.idx.AddBatch(symbols); err != nil {
			p.logger.Debug("Skipping file with conflicting symbols",
				slog.String("path", path),
				slog.String("error", err.Error()))
			return nil
		}
		symbolCount += len(symbols)

		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: indexing %s: %v", ErrUnavailable, p.workspace, err)
	}

	if fileCount == 0 {
		return fmt.Errorf("%w: no Go sources under %s", ErrUnsupported, p.workspace)
	}

	p.built = true
	p.logger.Info("Structural index built",
		slog.String("workspace", p.workspace),
		slog.String("module", p.modulePath),
		slog.Int("files", fileCount),
		slog.Int("symbols", symbolCount),
		slog.Duration("elapsed", time.Since(start)))

	return nil
}

// Refresh re-extracts one file after an on-disk change. Deleted files
// just drop out of the index.
func (p *StructuralProbe) Refresh(path string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.built {
		return nil // Next check rebuilds from scratch anyway
	}

	rel := p.relPath(path)
	p.idx.RemoveByFile(rel)

	if !strings.HasSuffix(path, ".go") {
		return nil
	}
	if _, err := os.Stat(path); err != nil {
		return nil
	}

	symbols, err := p.extractFile(path)
	if err != nil {
		return err
	}
	return p.idx.AddBatch(symbols)
}

// relPath converts an absolute path to the workspace-relative slash
// form symbols are stored under.
func (p *StructuralProbe) relPath(path string) string {
	rel, err := filepath.Rel(p.workspace, path)
	if err != nil {
		return filepath.ToSlash(path)
	}
	return filepath.ToSlash(rel)
}

// extractFile parses one Go file into index symbols.
func (p *StructuralProbe) extractFile(path string) ([]*ast.Symbol, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	fset := token.NewFileSet()
	astFile, err := parser.ParseFile(fset, path, content, parser.SkipObjectResolution)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	rel := p.relPath(path)
	pkgName := astFile.Name.Name

	var symbols []*ast.Symbol
	for _, decl := range astFile.Decls {
		switch d := decl.(type) {
		case *goast.FuncDecl:
			symbols = append(symbols, funcSymbol(fset, content, d, rel, pkgName))
		case *goast.GenDecl:
			symbols = append(symbols, genDeclSymbols(fset, d, rel, pkgName)...)
		}
	}

	for _, sym := range symbols {
		sym.SetParsedAt()
	}
	return symbols, nil
}

// funcSymbol converts a function or method declaration.
func funcSymbol(fset *token.FileSet, content []byte, d *goast.FuncDecl, rel, pkgName string) *ast.Symbol {
	start := fset.Position(d.Pos())
	end := fset.Position(d.End())

	kind := ast.SymbolKindFunction
	container := ""
	if d.Recv != nil && len(d.Recv.List) > 0 {
		kind = ast.SymbolKindMethod
		container = receiverTypeName(d.Recv.List[0].Type)
	}

	sigEnd := d.End()
	if d.Body != nil {
		sigEnd = d.Body.Lbrace
	}

	return &ast.Symbol{
		ID:        ast.GenerateID(rel, start.Line, d.Name.Name),
		Name:      d.Name.Name,
		Kind:      kind,
		FilePath:  rel,
		Package:   pkgName,
		Container: container,
		Language:  "go",
		Exported:  d.Name.IsExported(),
		Signature: sliceSource(content, fset, d.Pos(), sigEnd),
		StartLine: start.Line,
		EndLine:   end.Line,
		StartCol:  start.Column,
		EndCol:    end.Column,
	}
}

// genDeclSymbols converts type, const, and var declarations.
func genDeclSymbols(fset *token.FileSet, d *goast.GenDecl, rel, pkgName string) []*ast.Symbol {
	var symbols []*ast.Symbol

	switch d.Tok {
	case token.TYPE:
		for _, spec := range d.Specs {
			ts, ok := spec.(*goast.TypeSpec)
			if !ok {
				continue
			}

			start := fset.Position(ts.Pos())
			end := fset.Position(ts.End())

			kind := ast.SymbolKindType
			sig := "type " + ts.Name.Name
			switch ts.Type.(type) {
			case *goast.StructType:
				kind = ast.SymbolKindStruct
				sig += " struct { ... }"
			case *goast.InterfaceType:
				kind = ast.SymbolKindInterface
				sig += " interface { ... }"
			}

			symbols = append(symbols, &ast.Symbol{
				ID:        ast.GenerateID(rel, start.Line, ts.Name.Name),
				Name:      ts.Name.Name,
				Kind:      kind,
				FilePath:  rel,
				Package:   pkgName,
				Language:  "go",
				Exported:  ts.Name.IsExported(),
				Signature: sig,
				StartLine: start.Line,
				EndLine:   end.Line,
				StartCol:  start.Column,
				EndCol:    end.Column,
			})
		}

	case token.CONST, token.VAR:
		kind := ast.SymbolKindConstant
		if d.Tok == token.VAR {
			kind = ast.SymbolKindVariable
		}
		for _, spec := range d.Specs {
			vs, ok := spec.(*goast.ValueSpec)
			if !ok {
				continue
			}
			for _, name := range vs.Names {
				if name.Name == "_" {
					continue
				}

				start := fset.Position(name.Pos())
				end := fset.Position(vs.End())

				symbols = append(symbols, &ast.Symbol{
					ID:        ast.GenerateID(rel, start.Line, name.Name),
					Name:      name.Name,
					Kind:      kind,
					FilePath:  rel,
					Package:   pkgName,
					Language:  "go",
					Exported:  name.IsExported(),
					StartLine: start.Line,
					EndLine:   end.Line,
					StartCol:  start.Column,
					EndCol:    end.Column,
				})
			}
		}
	}

	return symbols
}

// receiverTypeName unwraps a method receiver expression to its type
// name.
func receiverTypeName(expr goast.Expr) string {
	switch t := expr.(type) {
	case *goast.StarExpr:
		return receiverTypeName(t.X)
	case *goast.Ident:
		return t.Name
	case *goast.IndexExpr:
		return receiverTypeName(t.X)
	case *goast.IndexListExpr:
		return receiverTypeName(t.X)
	default:
		return ""
	}
}

// sliceSource returns trimmed source text between two AST positions.
func sliceSource(content []byte, fset *token.FileSet, from, to token.Pos) string {
	start := fset.Position(from).Offset
	end := fset.Position(to).Offset
	if start < 0 || end > len(content) || start >= end {
		return ""
	}
	return strings.TrimSpace(string(content[start:end]))
}

// detectModulePath reads the workspace go.mod module path, if any.
func detectModulePath(workspace string) string {
	data, err := os.ReadFile(filepath.Join(workspace, "go.mod"))
	if err != nil {
		return ""
	}
	f, err := modfile.Parse("go.mod", data, nil)
	if err != nil || f.Module == nil {
		return ""
	}
	return f.Module.Mod.Path
}
