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
	"strings"
	"time"
	"unicode/utf8"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/golang"
)

// GoParser extracts symbols from Go source files using tree-sitter.
//
// Description:
//
//	Extracts package declarations, imports, functions, methods, type
//	declarations (structs, interfaces, aliases), and top-level vars
//	and consts. Methods record their receiver type in Container.
//
// Thread Safety:
//
//	Safe for concurrent use. A new tree-sitter parser instance is
//	created per Parse call; the GoParser itself holds only immutable
//	configuration.
type GoParser struct {
	maxFileSize  int64
	parseOptions ParseOptions
}

// GoParserOption configures a GoParser.
type GoParserOption func(*GoParser)

// WithMaxFileSize sets the largest file size the parser accepts.
func WithMaxFileSize(size int64) GoParserOption {
	return func(p *GoParser) {
		if size > 0 {
			p.maxFileSize = size
		}
	}
}

// WithParseOptions sets the parse options.
func WithParseOptions(opts ParseOptions) GoParserOption {
	return func(p *GoParser) {
		p.parseOptions = opts
	}
}

// NewGoParser creates a GoParser with default settings.
func NewGoParser(opts ...GoParserOption) *GoParser {
	p := &GoParser{
		maxFileSize:  DefaultMaxFileSize,
		parseOptions: DefaultParseOptions(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Parse extracts symbols from Go source code.
//
// Inputs:
//
//	ctx - Context for cancellation.
//	content - Raw Go source (must be valid UTF-8).
//	filePath - Path relative to the workspace root.
//
// Outputs:
//
//	*ParseResult - Symbols, imports, and any syntax errors found.
//	error - Non-nil for invalid UTF-8, oversized content, or cancellation.
func (p *GoParser) Parse(ctx context.Context, content []byte, filePath string) (*ParseResult, error) {
	start := time.Now()
	ctx, span := startParseSpan(ctx, "go", filePath)
	defer span.End()

	if err := ctx.Err(); err != nil {
		recordParseMetrics(ctx, "go", time.Since(start), 0, false)
		return nil, fmt.Errorf("parse canceled before start: %w", err)
	}

	if int64(len(content)) > p.maxFileSize {
		recordParseMetrics(ctx, "go", time.Since(start), 0, false)
		return nil, fmt.Errorf("%w: size %d exceeds limit %d", ErrFileTooLarge, len(content), p.maxFileSize)
	}

	if len(content) > WarnFileSize {
		slog.Warn("parsing large file",
			slog.String("file", filePath),
			slog.Int("size_bytes", len(content)))
	}

	if !utf8.Valid(content) {
		recordParseMetrics(ctx, "go", time.Since(start), 0, false)
		return nil, fmt.Errorf("%w: content is not valid UTF-8", ErrInvalidContent)
	}

	hash := sha256.Sum256(content)

	// New tree-sitter parser per call for thread safety
	parser := sitter.NewParser()
	parser.SetLanguage(golang.GetLanguage())

	tree, err := parser.ParseCtx(ctx, nil, content)
	if err != nil {
		recordParseMetrics(ctx, "go", time.Since(start), 0, false)
		return nil, fmt.Errorf("tree-sitter parse failed: %w", err)
	}
	defer tree.Close()

	if err := ctx.Err(); err != nil {
		recordParseMetrics(ctx, "go", time.Since(start), 0, false)
		return nil, fmt.Errorf("parse canceled after tree-sitter: %w", err)
	}

	result := &ParseResult{
		FilePath:      filePath,
		Language:      "go",
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

	packageName := p.extractPackage(rootNode, content, filePath, result)

	for i := 0; i < int(rootNode.ChildCount()); i++ {
		child := rootNode.Child(i)
		switch child.Type() {
		case "import_declaration":
			p.processImportDecl(child, content, result)
		case "function_declaration":
			p.processFunctionDecl(child, content, filePath, packageName, result)
		case "method_declaration":
			p.processMethodDecl(child, content, filePath, packageName, result)
		case "type_declaration":
			p.processTypeDecl(child, content, filePath, packageName, result)
		case "var_declaration":
			p.processValueDecl(child, content, filePath, packageName, "var_spec", SymbolKindVariable, result)
		case "const_declaration":
			p.processValueDecl(child, content, filePath, packageName, "const_spec", SymbolKindConstant, result)
		}
	}

	if err := result.Validate(); err != nil {
		recordParseMetrics(ctx, "go", time.Since(start), 0, false)
		return nil, fmt.Errorf("result validation failed: %w", err)
	}

	if err := ctx.Err(); err != nil {
		recordParseMetrics(ctx, "go", time.Since(start), len(result.Symbols), false)
		return nil, fmt.Errorf("parse canceled after extraction: %w", err)
	}

	setParseSpanResult(span, len(result.Symbols), len(result.Errors))
	recordParseMetrics(ctx, "go", time.Since(start), len(result.Symbols), true)

	return result, nil
}

// Language returns "go".
func (p *GoParser) Language() string {
	return "go"
}

// Extensions returns the file extensions this parser handles.
func (p *GoParser) Extensions() []string {
	return []string{".go"}
}

// extractPackage extracts the package declaration.
// Returns the package name for use on other symbols.
func (p *GoParser) extractPackage(root *sitter.Node, content []byte, filePath string, result *ParseResult) string {
	for i := 0; i < int(root.ChildCount()); i++ {
		child := root.Child(i)
		if child.Type() != "package_clause" {
			continue
		}
		for j := 0; j < int(child.ChildCount()); j++ {
			nameNode := child.Child(j)
			if nameNode.Type() != "package_identifier" {
				continue
			}
			name := nodeText(nameNode, content)
			result.Symbols = append(result.Symbols, &Symbol{
				ID:        GenerateID(filePath, int(nameNode.StartPoint().Row+1), name),
				Name:      name,
				Kind:      SymbolKindPackage,
				FilePath:  filePath,
				Package:   name,
				Language:  "go",
				Exported:  true,
				StartLine: int(nameNode.StartPoint().Row + 1),
				EndLine:   int(nameNode.EndPoint().Row + 1),
				StartCol:  int(nameNode.StartPoint().Column + 1),
				EndCol:    int(nameNode.EndPoint().Column + 1),
			})
			return name
		}
	}
	return ""
}

// processImportDecl extracts import specs from an import declaration.
func (p *GoParser) processImportDecl(node *sitter.Node, content []byte, result *ParseResult) {
	var walk func(n *sitter.Node)
	walk = func(n *sitter.Node) {
		if n.Type() == "import_spec" {
			imp := Import{StartLine: int(n.StartPoint().Row + 1)}
			for i := 0; i < int(n.ChildCount()); i++ {
				child := n.Child(i)
				switch child.Type() {
				case "interpreted_string_literal":
					imp.Path = strings.Trim(nodeText(child, content), `"`)
				case "package_identifier", "dot", "blank_identifier":
					imp.Alias = nodeText(child, content)
				}
			}
			if imp.Path != "" {
				result.Imports = append(result.Imports, imp)
			}
			return
		}
		for i := 0; i < int(n.ChildCount()); i++ {
			walk(n.Child(i))
		}
	}
	walk(node)
}

// processFunctionDecl extracts a single function declaration.
func (p *GoParser) processFunctionDecl(node *sitter.Node, content []byte, filePath, packageName string, result *ParseResult) {
	nameNode := node.ChildByFieldName("name")
	if nameNode == nil {
		return
	}
	name := nodeText(nameNode, content)

	var params, returns string
	if paramsNode := node.ChildByFieldName("parameters"); paramsNode != nil {
		params = nodeText(paramsNode, content)
	}
	if resultNode := node.ChildByFieldName("result"); resultNode != nil {
		returns = nodeText(resultNode, content)
	}

	signature := fmt.Sprintf("func %s%s", name, params)
	if returns != "" {
		signature += " " + returns
	}

	exported := isGoExported(name)
	if !p.parseOptions.IncludePrivate && !exported {
		return
	}

	result.Symbols = append(result.Symbols, &Symbol{
		ID:        GenerateID(filePath, int(node.StartPoint().Row+1), name),
		Name:      name,
		Kind:      SymbolKindFunction,
		FilePath:  filePath,
		Package:   packageName,
		Language:  "go",
		Exported:  exported,
		Signature: signature,
		StartLine: int(node.StartPoint().Row + 1),
		EndLine:   int(node.EndPoint().Row + 1),
		StartCol:  int(node.StartPoint().Column + 1),
		EndCol:    int(node.EndPoint().Column + 1),
	})
}

// processMethodDecl extracts a method declaration with its receiver.
func (p *GoParser) processMethodDecl(node *sitter.Node, content []byte, filePath, packageName string, result *ParseResult) {
	nameNode := node.ChildByFieldName("name")
	if nameNode == nil {
		return
	}
	name := nodeText(nameNode, content)

	var receiver, params, returns string
	if recvNode := node.ChildByFieldName("receiver"); recvNode != nil {
		receiver = nodeText(recvNode, content)
	}
	if paramsNode := node.ChildByFieldName("parameters"); paramsNode != nil {
		params = nodeText(paramsNode, content)
	}
	if resultNode := node.ChildByFieldName("result"); resultNode != nil {
		returns = nodeText(resultNode, content)
	}

	signature := fmt.Sprintf("func %s %s%s", receiver, name, params)
	if returns != "" {
		signature += " " + returns
	}

	exported := isGoExported(name)
	if !p.parseOptions.IncludePrivate && !exported {
		return
	}

	result.Symbols = append(result.Symbols, &Symbol{
		ID:        GenerateID(filePath, int(node.StartPoint().Row+1), name),
		Name:      name,
		Kind:      SymbolKindMethod,
		FilePath:  filePath,
		Package:   packageName,
		Container: receiverTypeName(receiver),
		Language:  "go",
		Exported:  exported,
		Signature: signature,
		StartLine: int(node.StartPoint().Row + 1),
		EndLine:   int(node.EndPoint().Row + 1),
		StartCol:  int(node.StartPoint().Column + 1),
		EndCol:    int(node.EndPoint().Column + 1),
	})
}

// processTypeDecl extracts type specs from a type declaration.
func (p *GoParser) processTypeDecl(node *sitter.Node, content []byte, filePath, packageName string, result *ParseResult) {
	for i := 0; i < int(node.ChildCount()); i++ {
		spec := node.Child(i)
		if spec.Type() != "type_spec" && spec.Type() != "type_alias" {
			continue
		}

		nameNode := spec.ChildByFieldName("name")
		if nameNode == nil {
			continue
		}
		name := nodeText(nameNode, content)

		kind := SymbolKindType
		var signature string
		if typeNode := spec.ChildByFieldName("type"); typeNode != nil {
			switch typeNode.Type() {
			case "struct_type":
				kind = SymbolKindStruct
				signature = fmt.Sprintf("type %s struct", name)
			case "interface_type":
				kind = SymbolKindInterface
				signature = fmt.Sprintf("type %s interface", name)
			default:
				signature = fmt.Sprintf("type %s %s", name, nodeText(typeNode, content))
			}
		}

		exported := isGoExported(name)
		if !p.parseOptions.IncludePrivate && !exported {
			continue
		}

		result.Symbols = append(result.Symbols, &Symbol{
			ID:        GenerateID(filePath, int(spec.StartPoint().Row+1), name),
			Name:      name,
			Kind:      kind,
			FilePath:  filePath,
			Package:   packageName,
			Language:  "go",
			Exported:  exported,
			Signature: signature,
			StartLine: int(spec.StartPoint().Row + 1),
			EndLine:   int(spec.EndPoint().Row + 1),
			StartCol:  int(spec.StartPoint().Column + 1),
			EndCol:    int(spec.EndPoint().Column + 1),
		})
	}
}

// processValueDecl extracts var or const specs from a declaration.
func (p *GoParser) processValueDecl(node *sitter.Node, content []byte, filePath, packageName, specType string, kind SymbolKind, result *ParseResult) {
	var walk func(n *sitter.Node)
	walk = func(n *sitter.Node) {
		if n.Type() == specType {
			for i := 0; i < int(n.ChildCount()); i++ {
				child := n.Child(i)
				if child.Type() != "identifier" {
					continue
				}
				name := nodeText(child, content)
				if name == "_" {
					continue
				}
				exported := isGoExported(name)
				if !p.parseOptions.IncludePrivate && !exported {
					continue
				}
				result.Symbols = append(result.Symbols, &Symbol{
					ID:        GenerateID(filePath, int(child.StartPoint().Row+1), name),
					Name:      name,
					Kind:      kind,
					FilePath:  filePath,
					Package:   packageName,
					Language:  "go",
					Exported:  exported,
					StartLine: int(child.StartPoint().Row + 1),
					EndLine:   int(child.EndPoint().Row + 1),
					StartCol:  int(child.StartPoint().Column + 1),
					EndCol:    int(child.EndPoint().Column + 1),
				})
			}
			return
		}
		for i := 0; i < int(n.ChildCount()); i++ {
			walk(n.Child(i))
		}
	}
	walk(node)
}

// nodeText returns the source text covered by a node.
func nodeText(node *sitter.Node, content []byte) string {
	return string(content[node.StartByte():node.EndByte()])
}

// isGoExported reports whether a Go identifier is exported.
func isGoExported(name string) bool {
	return len(name) > 0 && name[0] >= 'A' && name[0] <= 'Z'
}

// receiverTypeName extracts the bare type name from a receiver
// clause like "(s *Server)" or "(c Config)".
func receiverTypeName(receiver string) string {
	recv := strings.Trim(receiver, "()")
	fields := strings.Fields(recv)
	if len(fields) == 0 {
		return ""
	}
	typeName := fields[len(fields)-1]
	typeName = strings.TrimPrefix(typeName, "*")
	// Drop generic type parameters: "Index[K]" -> "Index"
	if idx := strings.IndexByte(typeName, '['); idx >= 0 {
		typeName = typeName[:idx]
	}
	return typeName
}
