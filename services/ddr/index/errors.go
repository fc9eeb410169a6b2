// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package index

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for index operations.
var (
	// ErrInvalidSymbol indicates a symbol failed validation.
	ErrInvalidSymbol = errors.New("invalid symbol")

	// ErrDuplicateSymbol indicates a symbol with the same ID already exists.
	ErrDuplicateSymbol = errors.New("duplicate symbol")

	// ErrMaxSymbolsExceeded indicates the index is at capacity.
	ErrMaxSymbolsExceeded = errors.New("maximum symbol count exceeded")
)

// BatchError aggregates the individual failures from an AddBatch call.
//
// When AddBatch rejects a batch, every offending symbol is reported,
// not just the first. No partial writes occur.
type BatchError struct {
	// Errors contains one entry per failed symbol.
	Errors []error
}

// Error returns a summary followed by up to three individual errors.
func (e *BatchError) Error() string {
	if len(e.Errors) == 0 {
		return "batch add failed"
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "batch add failed with %d error(s)", len(e.Errors))

	shown := len(e.Errors)
	if shown > 3 {
		shown = 3
	}
	for i := 0; i < shown; i++ {
		sb.WriteString("; ")
		sb.WriteString(e.Errors[i].Error())
	}
	if shown < len(e.Errors) {
		fmt.Fprintf(&sb, "; and %d more", len(e.Errors)-shown)
	}

	return sb.String()
}

// Unwrap exposes the individual errors for errors.Is/As matching.
func (e *BatchError) Unwrap() []error {
	return e.Errors
}
