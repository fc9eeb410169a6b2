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
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"time"
	"unicode/utf8"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/javascript"
)

// JavaScriptParser extracts symbols from JavaScript source files.
//
// Description:
//
//	Extracts imports, function declarations (including arrow
//	functions bound to const), classes with methods and fields, and
//	top-level const/let/var declarations. Symbols reached through an
//	export statement are marked exported.
//
// Thread Safety:
//
//	Safe for concurrent use; a new tree-sitter parser instance is
//	created per Parse call.
type JavaScriptParser struct {
	maxFileSize  int64
	parseOptions ParseOptions
}

// NewJavaScriptParser creates a JavaScriptParser with default settings.
func NewJavaScriptParser() *JavaScriptParser {
	return &JavaScriptParser{
		maxFileSize:  DefaultMaxFileSize,
		parseOptions: DefaultParseOptions(),
	}
}

// Parse extracts symbols from JavaScript source code.
func (p *JavaScriptParser) Parse(ctx context.Context, content []byte, filePath string) (*ParseResult, error) {
	return parseECMA(ctx, content, filePath, "javascript", javascript.GetLanguage(), p.maxFileSize, p.parseOptions)
}

// Language returns "javascript".
func (p *JavaScriptParser) Language() string {
	return "javascript"
}

// Extensions returns the file extensions this parser handles.
func (p *JavaScriptParser) Extensions() []string {
	return []string{".js", ".jsx", ".mjs", ".cjs"}
}

// parseECMA runs the shared parse pipeline for the ECMAScript-family
// parsers: validation, tree-sitter parse, and the common extractor.
func parseECMA(ctx context.Context, content []byte, filePath, language string, lang *sitter.Language, maxFileSize int64, opts ParseOptions) (*ParseResult, error) {
	start := time.Now()
	ctx, span := startParseSpan(ctx, language, filePath)
	defer span.End()

	if err := ctx.Err(); err != nil {
		recordParseMetrics(ctx, language, time.Since(start), 0, false)
		return nil, fmt.Errorf("parse canceled before start: %w", err)
	}

	if int64(len(content)) > maxFileSize {
		recordParseMetrics(ctx, language, time.Since(start), 0, false)
		return nil, fmt.Errorf("%w: size %d exceeds limit %d", ErrFileTooLarge, len(content), maxFileSize)
	}

	if len(content) > WarnFileSize {
		slog.Warn("parsing large file",
			slog.String("file", filePath),
			slog.Int("size_bytes", len(content)))
	}

	if !utf8.Valid(content) {
		recordParseMetrics(ctx, language, time.Since(start), 0, false)
		return nil, fmt.Errorf("%w: content is not valid UTF-8", ErrInvalidContent)
	}

	hash := sha256.Sum256(content)

	parser := sitter.NewParser()
	parser.SetLanguage(lang)

	tree, err := parser.ParseCtx(ctx, nil, content)
	if err != nil {
		recordParseMetrics(ctx, language, time.Since(start), 0, false)
		return nil, fmt.Errorf("tree-sitter parse failed: %w", err)
	}
	defer tree.Close()

	result := &ParseResult{
		FilePath:      filePath,
		Language:      language,
		Hash:          hex.EncodeToString(hash[:]),
		ParsedAtMilli: time.Now().UnixMilli(),
		Symbols:       make([]*Symbol, 0),
		Imports:       make([]Import, 0),
		Errors:        make([]string, 0),
	}

	rootNode := tree.RootNode()
	if rootNode == nil {
		result.Errors = append(result.Errors, "tree-sitter returned nil root node")
		return result, nil
	}

	if rootNode.HasError() {
		result.Errors = append(result.Errors, "source contains syntax errors")
	}

	extractor := &ecmaExtractor{
		content:        content,
		filePath:       filePath,
		language:       language,
		includePrivate: opts.IncludePrivate,
		result:         result,
	}
	extractor.extractProgram(rootNode)

	if err := result.Validate(); err != nil {
		recordParseMetrics(ctx, language, time.Since(start), 0, false)
		return nil, fmt.Errorf("result validation failed: %w", err)
	}

	if err := ctx.Err(); err != nil {
		recordParseMetrics(ctx, language, time.Since(start), len(result.Symbols), false)
		return nil, fmt.Errorf("parse canceled after extraction: %w", err)
	}

	setParseSpanResult(span, len(result.Symbols), len(result.Errors))
	recordParseMetrics(ctx, language, time.Since(start), len(result.Symbols), true)

	return result, nil
}
