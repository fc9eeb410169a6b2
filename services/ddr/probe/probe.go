// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package probe holds the independent symbol analyzers the validator
// fans out to.
//
// Each probe answers one question about a named symbol: can I confirm
// a declaration with this name exists? Four adapters are provided, in
// fixed trust order: structural (Go AST), syntax (tree-sitter
// grammars), language server, and raw text. "Not found" is a normal
// unconfirmed verdict; an error from Check means the probe cannot
// analyze this query at all and the caller drops it from the count
// (abstention). The raw-text probe never abstains, so a validator
// always has at least one usable source.
package probe

import (
	"context"
	"fmt"

	"github.com/AleutianAI/ddr/services/ddr/verify"
)

// Identity names one of the four probe adapters. The declaration
// order is the trust order: when two probes confirm the same symbol
// at different locations, the lower-valued identity wins.
type Identity int

const (
	// Structural is the Go-native AST probe.
	Structural Identity = iota

	// Syntax is the multi-language concrete-syntax-tree probe.
	Syntax

	// LanguageServer is the LSP-backed probe.
	LanguageServer

	// RawText is the word-boundary text search probe.
	RawText
)

// String returns the lowercase identity name.
func (id Identity) String() string {
	switch id {
	case Structural:
		return "structural"
	case Syntax:
		return "syntax"
	case LanguageServer:
		return "lsp"
	case RawText:
		return "rawtext"
	default:
		return "unknown"
	}
}

// Priority returns the identity's tie-break rank. Lower ranks win.
func (id Identity) Priority() int {
	return int(id)
}

// Identities returns all probe identities in trust order.
func Identities() []Identity {
	return []Identity{Structural, Syntax, LanguageServer, RawText}
}

// KindHint narrows a query to one symbol category.
type KindHint int

const (
	// KindUnspecified matches any declaration kind.
	KindUnspecified KindHint = iota

	// KindFunction matches free functions.
	KindFunction

	// KindClass matches classes and class-like types (structs,
	// interfaces, enums).
	KindClass

	// KindMethod matches functions bound to a type.
	KindMethod
)

// String returns the lowercase hint name.
func (k KindHint) String() string {
	switch k {
	case KindFunction:
		return "function"
	case KindClass:
		return "class"
	case KindMethod:
		return "method"
	default:
		return "unspecified"
	}
}

// Query asks whether a named symbol is declared anywhere a probe can
// see. Immutable; one Query per verification call.
type Query struct {
	// Name is the symbol name to verify. Required.
	Name string

	// FileScope optionally narrows the search to one file. Accepts a
	// workspace-relative or absolute path.
	FileScope string

	// Kind optionally narrows the search to one declaration category.
	Kind KindHint
}

// Validate checks the query is well-formed.
func (q Query) Validate() error {
	if q.Name == "" {
		return fmt.Errorf("%w: symbol name is empty", ErrInvalidQuery)
	}
	return nil
}

// Location is where a probe found the symbol declared. Lines are
// 1-indexed.
type Location struct {
	// FilePath is the path to the declaring file, resolvable from the
	// process working directory.
	FilePath string

	// StartLine is the first line of the declaration.
	StartLine int

	// EndLine is the last line of the declaration.
	EndLine int
}

// Citation converts the location to a checkable citation anchored at
// the declaration's first line.
func (l Location) Citation() verify.Citation {
	return verify.Citation{FilePath: l.FilePath, Line: l.StartLine}
}

// Verdict is one probe's answer for one query.
//
// Verdicts are owned by the validator that requested them and are
// discarded after aggregation, never persisted.
type Verdict struct {
	// Probe identifies which adapter produced this verdict.
	Probe Identity

	// Confirmed reports whether the probe found the declaration.
	Confirmed bool

	// Location is where the declaration was found. Nil when
	// unconfirmed, and always nil for the raw-text probe: a text hit
	// is existence evidence, not a citable declaration site.
	Location *Location

	// Signature is the declaration header when the probe could
	// recover one. Empty otherwise.
	Signature string
}

// Probe is the contract every adapter satisfies.
//
// Check never fails for "not found" (that is Confirmed=false). It
// returns an error only when the probe cannot analyze the query:
// ErrUnavailable, ErrUnsupported, or a context error for timeouts.
// Callers treat all three as abstention.
//
// Thread Safety: implementations must be safe for concurrent use.
type Probe interface {
	// Identity returns the adapter's fixed identity.
	Identity() Identity

	// Check attempts to confirm the queried symbol.
	Check(ctx context.Context, q Query) (Verdict, error)
}
