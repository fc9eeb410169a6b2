// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package ddr

import (
	"github.com/AleutianAI/ddr/services/ddr/probe"
	"github.com/AleutianAI/ddr/services/ddr/trust"
	"github.com/AleutianAI/ddr/services/ddr/validate"
	"github.com/AleutianAI/ddr/services/ddr/verify"
)

// QueryState tracks a query's progress through retrieval. States move
// forward only: a terminal state is never re-entered.
type QueryState int

const (
	// StatePending is a query that has been accepted but not yet
	// validated.
	StatePending QueryState = iota

	// StateValidating is a query currently fanned out to probes.
	StateValidating

	// StateClassified is a query with a validation result awaiting
	// its trust decision.
	StateClassified

	// StateAccepted is a terminal state: the content may be served.
	StateAccepted

	// StateRejected is a terminal state: the content must not be
	// served.
	StateRejected
)

// String returns the lowercase state name.
func (s QueryState) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateValidating:
		return "validating"
	case StateClassified:
		return "classified"
	case StateAccepted:
		return "accepted"
	case StateRejected:
		return "rejected"
	default:
		return "unknown"
	}
}

// Terminal reports whether the state is final.
func (s QueryState) Terminal() bool {
	return s == StateAccepted || s == StateRejected
}

// SymbolQuery is one retrieval request: a symbol name to verify plus
// where the claim about it came from.
//
// The zero Provenance is GeneratedUnchecked, which always classifies
// as Rejected. A caller that forgets to set provenance can only ever
// reject, never falsely accept.
type SymbolQuery struct {
	// ID identifies the query in logs, spans, and journal records.
	// Assigned on retrieve when empty.
	ID string

	// Symbol is the symbol name to verify. Required.
	Symbol string

	// FileScope optionally narrows probing to one file. Accepts a
	// workspace-relative or absolute path.
	FileScope string

	// Kind optionally narrows probing to one declaration category.
	Kind probe.KindHint

	// Provenance is how the claim about this symbol was produced.
	Provenance trust.Provenance
}

// QueryOption customizes a SymbolQuery.
type QueryOption func(*SymbolQuery)

// WithQueryID sets an explicit query ID instead of a generated one.
func WithQueryID(id string) QueryOption {
	return func(q *SymbolQuery) {
		q.ID = id
	}
}

// WithFileScope narrows probing to one file.
func WithFileScope(path string) QueryOption {
	return func(q *SymbolQuery) {
		q.FileScope = path
	}
}

// WithKind narrows probing to one declaration category.
func WithKind(kind probe.KindHint) QueryOption {
	return func(q *SymbolQuery) {
		q.Kind = kind
	}
}

// WithProvenance records how the claim about the symbol was produced.
func WithProvenance(p trust.Provenance) QueryOption {
	return func(q *SymbolQuery) {
		q.Provenance = p
	}
}

// NewQuery builds a SymbolQuery for the given symbol name.
func NewQuery(symbol string, opts ...QueryOption) SymbolQuery {
	q := SymbolQuery{Symbol: symbol}
	for _, opt := range opts {
		opt(&q)
	}
	return q
}

// probeQuery converts the query to the probe layer's shape.
func (q SymbolQuery) probeQuery() probe.Query {
	return probe.Query{
		Name:      q.Symbol,
		FileScope: q.FileScope,
		Kind:      q.Kind,
	}
}

// Outcome is the completed result of one retrieval. Callers receive
// either a completed outcome or an error; never a partial one.
type Outcome struct {
	// Query is the request that produced this outcome, with its ID
	// filled in.
	Query SymbolQuery

	// State is the terminal state the query reached.
	State QueryState

	// Result is the cross-probe validation evidence.
	Result *validate.Result

	// Class is the trust decision.
	Class trust.TrustClass

	// Citation is the verified declaration site. Nil when Class is
	// Rejected or no probe confirmed a location.
	Citation *verify.Citation

	// CitationErr records why a citation failed verification when the
	// classification was downgraded to Rejected for that reason. Nil
	// otherwise.
	CitationErr error

	// SessionRate is the session's hallucination rate immediately
	// after this query was recorded.
	SessionRate float64

	// Accepted reports whether the content may be served. Equivalent
	// to Class != trust.Rejected.
	Accepted bool

	// Suggestions holds near-miss symbol names from the structural
	// index when the query was rejected. Best effort; may be empty.
	Suggestions []string
}
