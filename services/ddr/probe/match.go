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
	"path/filepath"
	"strings"

	"github.com/AleutianAI/ddr/services/ddr/ast"
	"github.com/AleutianAI/ddr/services/ddr/lsp"
)

// matchesKind reports whether an extracted symbol kind satisfies a
// query hint. KindClass is deliberately broad: "class" in a query
// means any named type-like declaration, whatever the language calls
// it.
func matchesKind(hint KindHint, kind ast.SymbolKind) bool {
	switch hint {
	case KindFunction:
		return kind == ast.SymbolKindFunction
	case KindMethod:
		return kind == ast.SymbolKindMethod
	case KindClass:
		switch kind {
		case ast.SymbolKindClass, ast.SymbolKindStruct, ast.SymbolKindInterface, ast.SymbolKindEnum, ast.SymbolKindType:
			return true
		}
		return false
	default:
		return true
	}
}

// matchesLSPKind is matchesKind for the LSP numeric kind space.
func matchesLSPKind(hint KindHint, kind lsp.SymbolKind) bool {
	switch hint {
	case KindFunction:
		return kind == lsp.SymbolKindFunction
	case KindMethod:
		return kind == lsp.SymbolKindMethod || kind == lsp.SymbolKindConstructor
	case KindClass:
		switch kind {
		case lsp.SymbolKindClass, lsp.SymbolKindStruct, lsp.SymbolKindInterface, lsp.SymbolKindEnum:
			return true
		}
		return false
	default:
		return true
	}
}

// scopeMatches reports whether a symbol's file path satisfies a query
// file scope. Either side may be the longer spelling (absolute vs
// workspace-relative), so the match accepts equality or a suffix at a
// path boundary.
func scopeMatches(symbolPath, scope string) bool {
	if scope == "" {
		return true
	}

	sp := filepath.ToSlash(symbolPath)
	sc := filepath.ToSlash(scope)

	if sp == sc {
		return true
	}
	if strings.HasSuffix(sp, "/"+sc) {
		return true
	}
	if strings.HasSuffix(sc, "/"+sp) {
		return true
	}
	return false
}

// skipDirName reports whether a workspace walk should descend into a
// directory. Dependency and VCS trees never hold the workspace's own
// declarations.
func skipDirName(name string) bool {
	switch name {
	case ".git", "node_modules", "vendor", "__pycache__", ".idea":
		return true
	}
	return strings.HasPrefix(name, ".") && name != "."
}
