// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package ast extracts symbol declarations from source files using
// tree-sitter grammars.
//
// The package provides one Parser per supported language (Go, Python,
// JavaScript, TypeScript) behind a common interface, plus a registry
// for extension-based lookup. Parsers are resilient: syntax errors
// are reported in ParseResult.Errors and extraction continues with
// whatever the grammar could recover.
//
// This is the engine behind the syntax probe. It performs no semantic
// analysis: a symbol here means "a declaration with this name exists
// at this location", nothing more.
package ast

import (
	"context"
	"sync"
)

// DefaultMaxFileSize is the largest file a parser will accept (10 MB).
const DefaultMaxFileSize = 10 * 1024 * 1024

// WarnFileSize is the size above which parsers log a warning (1 MB).
const WarnFileSize = 1 * 1024 * 1024

// Parser extracts symbols and metadata from source code.
//
// # Limitations
//
//   - Single-file analysis only; no cross-file type resolution
//   - May produce incomplete results for syntactically invalid code
//   - No semantic analysis (type checking, reference resolution)
//
// # Assumptions
//
//   - Content is valid UTF-8 encoded text
//   - FilePath uses forward slashes as path separator
//
// Thread Safety: implementations must be safe for concurrent use.
// Each Parse call creates its own tree-sitter parser instance.
type Parser interface {
	// Parse extracts symbols and metadata from source code.
	//
	// Parameters:
	//   - ctx: Context for cancellation. Long parses check ctx.Done().
	//   - content: Raw source bytes (must be valid UTF-8).
	//   - filePath: Path relative to the workspace root, for ID generation.
	//
	// Returns:
	//   - *ParseResult: Extracted symbols and metadata. Never nil on success.
	//   - error: Non-nil only for complete parse failures (invalid UTF-8,
	//     oversized content). Syntax errors go to ParseResult.Errors.
	Parse(ctx context.Context, content []byte, filePath string) (*ParseResult, error)

	// Language returns the canonical lowercase language name
	// ("go", "python", "javascript", "typescript").
	Language() string

	// Extensions returns the file extensions this parser handles,
	// including the leading dot, lowercase.
	Extensions() []string
}

// ParseOptions configures symbol extraction behavior.
type ParseOptions struct {
	// IncludeComments extracts doc comments attached to declarations.
	IncludeComments bool

	// IncludePrivate extracts unexported/private symbols.
	IncludePrivate bool

	// MaxDepth limits nested declaration traversal (0 = unlimited).
	MaxDepth int

	// ExtractBodies includes full declaration bodies in signatures.
	ExtractBodies bool
}

// DefaultParseOptions returns the standard extraction options:
// private symbols included, comments and bodies excluded.
func DefaultParseOptions() ParseOptions {
	return ParseOptions{
		IncludeComments: false,
		IncludePrivate:  true,
		MaxDepth:        0,
		ExtractBodies:   false,
	}
}

// ParserRegistry manages parser instances by language and extension.
//
// Thread Safety: fully thread-safe. Registration uses write locks,
// lookups use read locks.
type ParserRegistry struct {
	mu sync.RWMutex

	// byLanguage maps language names to parser instances.
	byLanguage map[string]Parser

	// byExtension maps file extensions to parser instances.
	byExtension map[string]Parser
}

// NewParserRegistry creates a new empty ParserRegistry.
func NewParserRegistry() *ParserRegistry {
	return &ParserRegistry{
		byLanguage:  make(map[string]Parser),
		byExtension: make(map[string]Parser),
	}
}

// DefaultRegistry returns a registry with all built-in parsers
// registered: Go, Python, JavaScript, and TypeScript.
func DefaultRegistry() *ParserRegistry {
	r := NewParserRegistry()
	r.Register(NewGoParser())
	r.Register(NewPythonParser())
	r.Register(NewJavaScriptParser())
	r.Register(NewTypeScriptParser())
	return r
}

// Register adds a parser to the registry.
//
// The parser is registered under its Language() name and all its
// Extensions(). Existing registrations for the same keys are
// overwritten. Nil parsers are ignored.
func (r *ParserRegistry) Register(parser Parser) {
	if parser == nil {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.byLanguage[parser.Language()] = parser

	for _, ext := range parser.Extensions() {
		r.byExtension[ext] = parser
	}
}

// GetByLanguage returns the parser for the given language name.
//
// Returns:
//   - Parser: The registered parser, or nil if not found.
//   - bool: True if a parser was found.
func (r *ParserRegistry) GetByLanguage(language string) (Parser, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	parser, ok := r.byLanguage[language]
	return parser, ok
}

// GetByExtension returns the parser for the given file extension.
//
// The extension must include the dot (".go", ".py") and is
// case-sensitive.
func (r *ParserRegistry) GetByExtension(ext string) (Parser, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	parser, ok := r.byExtension[ext]
	return parser, ok
}

// Languages returns all registered language names.
func (r *ParserRegistry) Languages() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	languages := make([]string, 0, len(r.byLanguage))
	for lang := range r.byLanguage {
		languages = append(languages, lang)
	}
	return languages
}

// Extensions returns all registered file extensions.
func (r *ParserRegistry) Extensions() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	extensions := make([]string, 0, len(r.byExtension))
	for ext := range r.byExtension {
		extensions = append(extensions, ext)
	}
	return extensions
}
