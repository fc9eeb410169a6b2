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
	"fmt"
	"time"
)

// SymbolKind categorizes the language construct a symbol represents.
//
// Kinds are shared across all language parsers. A parser only emits
// the subset that exists in its language (Go never emits
// SymbolKindClass, Python never emits SymbolKindStruct).
type SymbolKind int

const (
	// SymbolKindUnknown is the zero value for unrecognized constructs.
	SymbolKindUnknown SymbolKind = iota

	// SymbolKindPackage is a package or module declaration.
	SymbolKindPackage

	// SymbolKindImport is an import statement.
	SymbolKindImport

	// SymbolKindFunction is a free function.
	SymbolKindFunction

	// SymbolKindMethod is a function bound to a type or class.
	SymbolKindMethod

	// SymbolKindClass is a class declaration (Python, JS, TS).
	SymbolKindClass

	// SymbolKindStruct is a struct type declaration (Go).
	SymbolKindStruct

	// SymbolKindInterface is an interface declaration (Go, TS).
	SymbolKindInterface

	// SymbolKindType is a named type or type alias.
	SymbolKindType

	// SymbolKindEnum is an enum declaration (TS).
	SymbolKindEnum

	// SymbolKindField is a struct or class field.
	SymbolKindField

	// SymbolKindProperty is a computed or decorated attribute.
	SymbolKindProperty

	// SymbolKindVariable is a top-level variable.
	SymbolKindVariable

	// SymbolKindConstant is a top-level constant.
	SymbolKindConstant
)

// String returns the lowercase name of the kind.
//
// Unrecognized values return "unknown".
func (k SymbolKind) String() string {
	switch k {
	case SymbolKindPackage:
		return "package"
	case SymbolKindImport:
		return "import"
	case SymbolKindFunction:
		return "function"
	case SymbolKindMethod:
		return "method"
	case SymbolKindClass:
		return "class"
	case SymbolKindStruct:
		return "struct"
	case SymbolKindInterface:
		return "interface"
	case SymbolKindType:
		return "type"
	case SymbolKindEnum:
		return "enum"
	case SymbolKindField:
		return "field"
	case SymbolKindProperty:
		return "property"
	case SymbolKindVariable:
		return "variable"
	case SymbolKindConstant:
		return "constant"
	default:
		return "unknown"
	}
}

// ParseSymbolKind converts a kind name back to a SymbolKind.
//
// Unrecognized names return SymbolKindUnknown.
func ParseSymbolKind(s string) SymbolKind {
	switch s {
	case "package":
		return SymbolKindPackage
	case "import":
		return SymbolKindImport
	case "function":
		return SymbolKindFunction
	case "method":
		return SymbolKindMethod
	case "class":
		return SymbolKindClass
	case "struct":
		return SymbolKindStruct
	case "interface":
		return SymbolKindInterface
	case "type":
		return SymbolKindType
	case "enum":
		return SymbolKindEnum
	case "field":
		return SymbolKindField
	case "property":
		return SymbolKindProperty
	case "variable":
		return SymbolKindVariable
	case "constant":
		return SymbolKindConstant
	default:
		return SymbolKindUnknown
	}
}

// Location identifies a span of source text within a file.
//
// Lines and columns are 1-indexed, matching editor conventions.
type Location struct {
	// FilePath is the path relative to the workspace root.
	FilePath string

	// StartLine is the 1-indexed first line of the span.
	StartLine int

	// EndLine is the 1-indexed last line of the span.
	EndLine int

	// StartCol is the 1-indexed column of the span start.
	StartCol int

	// EndCol is the 1-indexed column of the span end.
	EndCol int
}

// String renders the location as "{file}:{line}:{col}".
func (l Location) String() string {
	return fmt.Sprintf("%s:%d:%d", l.FilePath, l.StartLine, l.StartCol)
}

// Symbol is a single declaration extracted from source code.
//
// Symbols are produced by language parsers and consumed by the
// syntax probe and the symbol index. They carry enough location
// and signature detail to answer "does this name exist, and where
// is it declared?" without retaining source text.
type Symbol struct {
	// ID uniquely identifies the symbol as "{file}:{line}:{name}".
	ID string

	// Name is the declared identifier.
	Name string

	// Kind categorizes the construct.
	Kind SymbolKind

	// FilePath is the path relative to the workspace root.
	FilePath string

	// Package is the enclosing package or module name, if any.
	Package string

	// Container is the enclosing type or class for methods and
	// fields. Empty for top-level symbols.
	Container string

	// Language is the canonical parser language ("go", "python", ...).
	Language string

	// Exported reports whether the symbol is visible outside its
	// package or module, per the language's convention.
	Exported bool

	// Signature is the declaration header, without the body.
	// May be empty for kinds with no meaningful signature.
	Signature string

	// StartLine is the 1-indexed first line of the declaration.
	StartLine int

	// EndLine is the 1-indexed last line of the declaration.
	EndLine int

	// StartCol is the 1-indexed start column.
	StartCol int

	// EndCol is the 1-indexed end column.
	EndCol int

	// ParsedAtMilli is when this symbol was extracted (Unix millis).
	ParsedAtMilli int64
}

// Location returns the symbol's source span.
func (s *Symbol) Location() Location {
	return Location{
		FilePath:  s.FilePath,
		StartLine: s.StartLine,
		EndLine:   s.EndLine,
		StartCol:  s.StartCol,
		EndCol:    s.EndCol,
	}
}

// SetParsedAt stamps the symbol with the current time.
func (s *Symbol) SetParsedAt() {
	s.ParsedAtMilli = time.Now().UnixMilli()
}

// GenerateID builds the canonical symbol ID "{file}:{line}:{name}".
//
// IDs are deterministic: the same declaration always produces the
// same ID, which lets the index deduplicate across re-parses.
func GenerateID(filePath string, startLine int, name string) string {
	return fmt.Sprintf("%s:%d:%s", filePath, startLine, name)
}

// Import records a single import statement.
type Import struct {
	// Path is the imported module or package path.
	Path string

	// Alias is the local binding name, if the import is aliased.
	Alias string

	// StartLine is the 1-indexed line of the import.
	StartLine int
}

// ParseResult holds everything extracted from one source file.
//
// A ParseResult with a non-empty Errors slice is still usable:
// parsers are resilient to syntax errors and return the symbols
// they could extract. Only a nil result (with non-nil error from
// Parse) means the file yielded nothing.
type ParseResult struct {
	// FilePath is the parsed file, relative to the workspace root.
	FilePath string

	// Language is the parser's canonical language name.
	Language string

	// Hash is the hex SHA-256 of the parsed content.
	Hash string

	// ParsedAtMilli is when the parse completed (Unix millis).
	ParsedAtMilli int64

	// Symbols are the extracted declarations, in source order.
	Symbols []*Symbol

	// Imports are the extracted import statements.
	Imports []Import

	// Errors are non-fatal problems encountered while parsing.
	Errors []string
}

// SymbolCount returns the number of extracted symbols.
func (r *ParseResult) SymbolCount() int {
	if r == nil {
		return 0
	}
	return len(r.Symbols)
}

// Validate checks the result's internal consistency.
//
// Returns an error when the file path or language is missing, or
// when any symbol lacks a name or a positive start line. Used by
// parsers as a final guard before returning.
func (r *ParseResult) Validate() error {
	if r.FilePath == "" {
		return fmt.Errorf("%w: result has no file path", ErrInvalidContent)
	}
	if r.Language == "" {
		return fmt.Errorf("%w: result has no language", ErrInvalidContent)
	}
	for i, sym := range r.Symbols {
		if sym == nil {
			return fmt.Errorf("%w: symbol %d is nil", ErrInvalidContent, i)
		}
		if sym.Name == "" {
			return fmt.Errorf("%w: symbol %d has no name", ErrInvalidContent, i)
		}
		if sym.StartLine < 1 {
			return fmt.Errorf("%w: symbol %q has start line %d", ErrInvalidContent, sym.Name, sym.StartLine)
		}
		if sym.EndLine < sym.StartLine {
			return fmt.Errorf("%w: symbol %q ends before it starts", ErrInvalidContent, sym.Name)
		}
	}
	return nil
}
