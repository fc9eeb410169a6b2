// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package ast

import (
	"context"
	"strings"

	"github.com/smacker/go-tree-sitter/typescript/tsx"
	"github.com/smacker/go-tree-sitter/typescript/typescript"
)

// TypeScriptParser extracts symbols from TypeScript source files.
//
// Description:
//
//	Extends the shared ECMAScript extraction with TypeScript-only
//	declarations: interfaces, type aliases, and enums. Files with a
//	.tsx extension are parsed with the TSX grammar so JSX elements
//	don't surface as syntax errors.
//
// Thread Safety:
//
//	Safe for concurrent use; a new tree-sitter parser instance is
//	created per Parse call.
type TypeScriptParser struct {
	maxFileSize  int64
	parseOptions ParseOptions
}

// NewTypeScriptParser creates a TypeScriptParser with default settings.
func NewTypeScriptParser() *TypeScriptParser {
	return &TypeScriptParser{
		maxFileSize:  DefaultMaxFileSize,
		parseOptions: DefaultParseOptions(),
	}
}

// Parse extracts symbols from TypeScript source code.
func (p *TypeScriptParser) Parse(ctx context.Context, content []byte, filePath string) (*ParseResult, error) {
	lang := typescript.GetLanguage()
	if strings.HasSuffix(filePath, ".tsx") {
		lang = tsx.GetLanguage()
	}
	return parseECMA(ctx, content, filePath, "typescript", lang, p.maxFileSize, p.parseOptions)
}

// Language returns "typescript".
func (p *TypeScriptParser) Language() string {
	return "typescript"
}

// Extensions returns the file extensions this parser handles.
func (p *TypeScriptParser) Extensions() []string {
	return []string{".ts", ".tsx", ".mts", ".cts"}
}
