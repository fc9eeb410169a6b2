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
	"errors"
	"fmt"
)

// Sentinel errors for common parse failure conditions.
//
// These errors can be checked with errors.Is() to determine the
// category of failure without inspecting error messages.
var (
	// ErrUnsupportedLanguage indicates that no parser is available for
	// the requested language or file extension.
	ErrUnsupportedLanguage = errors.New("unsupported language")

	// ErrParseFailed indicates that parsing failed completely and no
	// useful result could be produced.
	//
	// This is different from partial parse failures, which are reported
	// in ParseResult.Errors while still returning extracted symbols.
	ErrParseFailed = errors.New("parse failed")

	// ErrInvalidContent indicates that the provided content is invalid
	// and cannot be processed (nil slice, non-UTF-8, binary data).
	ErrInvalidContent = errors.New("invalid content")

	// ErrFileTooLarge indicates the content exceeds the parser's
	// configured size limit.
	ErrFileTooLarge = errors.New("file too large")
)

// ParseError provides detailed information about a parse failure.
//
// ParseError wraps an underlying error with context about where the
// error occurred in the source file. It implements the error
// interface and can be unwrapped to access the underlying cause.
type ParseError struct {
	// FilePath is the path to the file where the error occurred.
	FilePath string

	// Line is the 1-indexed line number, or 0 if not line-specific.
	Line int

	// Message describes the error in human-readable form.
	Message string

	// Cause is the underlying error, if any.
	Cause error
}

// Error returns a formatted error message including file location.
func (e *ParseError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("%s:%d: %s", e.FilePath, e.Line, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.FilePath, e.Message)
}

// Unwrap returns the underlying cause error.
func (e *ParseError) Unwrap() error {
	return e.Cause
}

// WrapParseError wraps an error with file context.
//
// If the error is already a ParseError it is returned unchanged.
// Returns nil if err is nil.
func WrapParseError(err error, filePath string) error {
	if err == nil {
		return nil
	}

	var parseErr *ParseError
	if errors.As(err, &parseErr) {
		return err
	}

	return &ParseError{
		FilePath: filePath,
		Message:  err.Error(),
		Cause:    err,
	}
}
