// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package verify checks citations against the real filesystem.
//
// A citation is a claim that a symbol is declared at a specific file and
// line. Validation produces citations; this package proves they still hold
// at classification time. A citation that points at a missing file or a
// line past the end of the file is an integrity failure, and the caller
// downgrades whatever trust decision depended on it.
package verify

import (
	"fmt"
	"strconv"
	"strings"
)

// Citation is a resolvable source location in "path:line" form.
//
// Line numbers are 1-indexed. A zero-value Citation is invalid.
type Citation struct {
	// FilePath is the path to the cited file.
	FilePath string

	// Line is the 1-indexed line number of the declaration.
	Line int
}

// String renders the citation in "path:line" form.
func (c Citation) String() string {
	return fmt.Sprintf("%s:%d", c.FilePath, c.Line)
}

// Valid reports whether the citation is structurally well-formed.
// It does not touch the filesystem.
func (c Citation) Valid() bool {
	return c.FilePath != "" && c.Line >= 1
}

// ParseCitation parses a "path:line" string into a Citation.
//
// Description:
//
//	Splits on the last colon so paths containing colons still parse.
//	The line component must be a positive decimal integer.
//
// Inputs:
//
//	s - The citation string, e.g. "internal/store/db.go:142".
//
// Outputs:
//
//	Citation - The parsed citation.
//	error - ErrInvalidCitation (wrapped with detail) if s is malformed.
func ParseCitation(s string) (Citation, error) {
	idx := strings.LastIndex(s, ":")
	if idx <= 0 || idx == len(s)-1 {
		return Citation{}, fmt.Errorf("%w: %q is not in path:line form", ErrInvalidCitation, s)
	}

	path := s[:idx]
	line, err := strconv.Atoi(s[idx+1:])
	if err != nil {
		return Citation{}, fmt.Errorf("%w: line component of %q is not a number", ErrInvalidCitation, s)
	}
	if line < 1 {
		return Citation{}, fmt.Errorf("%w: line %d is below 1", ErrInvalidCitation, line)
	}

	return Citation{FilePath: path, Line: line}, nil
}
