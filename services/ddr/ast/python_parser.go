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
	"github.com/smacker/go-tree-sitter/python"
)

// Python tree-sitter node types used for symbol extraction.
//
// The parser uses direct node traversal rather than tree-sitter's
// query language for more precise control over extraction.
const (
	pyNodeImportStatement     = "import_statement"
	pyNodeImportFromStatement = "import_from_statement"
	pyNodeDottedName          = "dotted_name"
	pyNodeAliasedImport       = "aliased_import"

	pyNodeFunctionDefinition      = "function_definition"
	pyNodeAsyncFunctionDefinition = "async_function_definition"
	pyNodeClassDefinition         = "class_definition"
	pyNodeDecoratedDefinition     = "decorated_definition"
	pyNodeDecorator               = "decorator"
	pyNodeBlock                   = "block"

	pyNodeExpressionStatement = "expression_statement"
	pyNodeAssignment          = "assignment"
	pyNodeIdentifier          = "identifier"
)

// PythonParser extracts symbols from Python source files.
//
// Description:
//
//	Extracts imports, module-level functions (sync and async),
//	classes with their methods and class-level fields, and
//	module-level assignments. ALL_CAPS assignments are classified
//	as constants, matching Python convention. Methods decorated
//	with @property are classified as properties.
//
// Thread Safety:
//
//	Safe for concurrent use; a new tree-sitter parser instance is
//	created per Parse call.
type PythonParser struct {
	maxFileSize  int64
	parseOptions ParseOptions
}

// PythonParserOption configures a PythonParser.
type PythonParserOption func(*PythonParser)

// WithPythonMaxFileSize sets the largest file size the parser accepts.
func WithPythonMaxFileSize(size int64) PythonParserOption {
	return func(p *PythonParser) {
		if size > 0 {
			p.maxFileSize = size
		}
	}
}

// NewPythonParser creates a PythonParser with default settings.
func NewPythonParser(opts ...PythonParserOption) *PythonParser {
	p := &PythonParser{
		maxFileSize:  DefaultMaxFileSize,
		parseOptions: DefaultParseOptions(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Parse extracts symbols from Python source code.
func (p *PythonParser) Parse(ctx context.Context, content []byte, filePath string) (*ParseResult, error) {
	start := time.Now()
	ctx, span := startParseSpan(ctx, "python", filePath)
	defer span.End()

	if err := ctx.Err(); err != nil {
		recordParseMetrics(ctx, "python", time.Since(start), 0, false)
		return nil, fmt.Errorf("parse canceled before start: %w", err)
	}

	if int64(len(content)) > p.maxFileSize {
		recordParseMetrics(ctx, "python", time.Since(start), 0, false)
		return nil, fmt.Errorf("%w: size %d exceeds limit %d", ErrFileTooLarge, len(content), p.maxFileSize)
	}

	if len(content) > WarnFileSize {
		slog.Warn("parsing large file",
			slog.String("file", filePath),
			slog.Int("size_bytes", len(content)))
	}

	if !utf8.Valid(content) {
		recordParseMetrics(ctx, "python", time.Since(start), 0, false)
		return nil, fmt.Errorf("%w: content is not valid UTF-8", ErrInvalidContent)
	}

	hash := sha256.Sum256(content)

	parser := sitter.NewParser()
	parser.SetLanguage(python.GetLanguage())

	tree, err := parser.ParseCtx(ctx, nil, content)
	if err != nil {
		recordParseMetrics(ctx, "python", time.Since(start), 0, false)
		return nil, fmt.Errorf("tree-sitter parse failed: %w", err)
	}
	defer tree.Close()

	result := &ParseResult{
		FilePath:      filePath,
		Language:      "python",
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

	moduleName := pythonModuleName(filePath)

	for i := 0; i < int(rootNode.ChildCount()); i++ {
		p.processModuleChild(rootNode.Child(i), content, filePath, moduleName, result)
	}

	if err := result.Validate(); err != nil {
		recordParseMetrics(ctx, "python", time.Since(start), 0, false)
		return nil, fmt.Errorf("result validation failed: %w", err)
	}

	if err := ctx.Err(); err != nil {
		recordParseMetrics(ctx, "python", time.Since(start), len(result.Symbols), false)
		return nil, fmt.Errorf("parse canceled after extraction: %w", err)
	}

	setParseSpanResult(span, len(result.Symbols), len(result.Errors))
	recordParseMetrics(ctx, "python", time.Since(start), len(result.Symbols), true)

	return result, nil
}

// Language returns "python".
func (p *PythonParser) Language() string {
	return "python"
}

// Extensions returns the file extensions this parser handles.
func (p *PythonParser) Extensions() []string {
	return []string{".py", ".pyi"}
}

// processModuleChild dispatches one top-level statement.
func (p *PythonParser) processModuleChild(node *sitter.Node, content []byte, filePath, moduleName string, result *ParseResult) {
	switch node.Type() {
	case pyNodeImportStatement, pyNodeImportFromStatement:
		p.processImport(node, content, result)
	case pyNodeFunctionDefinition, pyNodeAsyncFunctionDefinition:
		p.processFunction(node, content, filePath, moduleName, "", nil, result)
	case pyNodeClassDefinition:
		p.processClass(node, content, filePath, moduleName, result)
	case pyNodeDecoratedDefinition:
		p.processDecorated(node, content, filePath, moduleName, "", result)
	case pyNodeExpressionStatement:
		p.processModuleAssignment(node, content, filePath, moduleName, result)
	}
}

// processImport extracts import paths from import statements.
func (p *PythonParser) processImport(node *sitter.Node, content []byte, result *ParseResult) {
	line := int(node.StartPoint().Row + 1)
	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		switch child.Type() {
		case pyNodeDottedName:
			result.Imports = append(result.Imports, Import{
				Path:      nodeText(child, content),
				StartLine: line,
			})
			// from X import ... only records the source module
			if node.Type() == pyNodeImportFromStatement {
				return
			}
		case pyNodeAliasedImport:
			imp := Import{StartLine: line}
			for j := 0; j < int(child.ChildCount()); j++ {
				grand := child.Child(j)
				switch grand.Type() {
				case pyNodeDottedName:
					imp.Path = nodeText(grand, content)
				case pyNodeIdentifier:
					imp.Alias = nodeText(grand, content)
				}
			}
			if imp.Path != "" {
				result.Imports = append(result.Imports, imp)
			}
		}
	}
}

// processFunction extracts a function or method definition.
//
// container is the enclosing class name (empty for module-level).
// decorators, when non-nil, are the decorator names applied to the
// definition; "@property" switches the kind to property.
func (p *PythonParser) processFunction(node *sitter.Node, content []byte, filePath, moduleName, container string, decorators []string, result *ParseResult) {
	nameNode := node.ChildByFieldName("name")
	if nameNode == nil {
		return
	}
	name := nodeText(nameNode, content)

	var params, returns string
	if paramsNode := node.ChildByFieldName("parameters"); paramsNode != nil {
		params = nodeText(paramsNode, content)
	}
	if returnNode := node.ChildByFieldName("return_type"); returnNode != nil {
		returns = nodeText(returnNode, content)
	}

	signature := fmt.Sprintf("def %s%s", name, params)
	if node.Type() == pyNodeAsyncFunctionDefinition {
		signature = "async " + signature
	}
	if returns != "" {
		signature += " -> " + returns
	}

	kind := SymbolKindFunction
	if container != "" {
		kind = SymbolKindMethod
	}
	for _, d := range decorators {
		if d == "property" {
			kind = SymbolKindProperty
		}
	}

	exported := isPythonPublic(name)
	if !p.parseOptions.IncludePrivate && !exported {
		return
	}

	result.Symbols = append(result.Symbols, &Symbol{
		ID:        GenerateID(filePath, int(node.StartPoint().Row+1), name),
		Name:      name,
		Kind:      kind,
		FilePath:  filePath,
		Package:   moduleName,
		Container: container,
		Language:  "python",
		Exported:  exported,
		Signature: signature,
		StartLine: int(node.StartPoint().Row + 1),
		EndLine:   int(node.EndPoint().Row + 1),
		StartCol:  int(node.StartPoint().Column + 1),
		EndCol:    int(node.EndPoint().Column + 1),
	})
}

// processClass extracts a class definition plus its methods and fields.
func (p *PythonParser) processClass(node *sitter.Node, content []byte, filePath, moduleName string, result *ParseResult) {
	nameNode := node.ChildByFieldName("name")
	if nameNode == nil {
		return
	}
	name := nodeText(nameNode, content)

	signature := fmt.Sprintf("class %s", name)
	if superNode := node.ChildByFieldName("superclasses"); superNode != nil {
		signature += nodeText(superNode, content)
	}

	exported := isPythonPublic(name)
	if p.parseOptions.IncludePrivate || exported {
		result.Symbols = append(result.Symbols, &Symbol{
			ID:        GenerateID(filePath, int(node.StartPoint().Row+1), name),
			Name:      name,
			Kind:      SymbolKindClass,
			FilePath:  filePath,
			Package:   moduleName,
			Language:  "python",
			Exported:  exported,
			Signature: signature,
			StartLine: int(node.StartPoint().Row + 1),
			EndLine:   int(node.EndPoint().Row + 1),
			StartCol:  int(node.StartPoint().Column + 1),
			EndCol:    int(node.EndPoint().Column + 1),
		})
	}

	bodyNode := node.ChildByFieldName("body")
	if bodyNode == nil {
		return
	}
	for i := 0; i < int(bodyNode.ChildCount()); i++ {
		child := bodyNode.Child(i)
		switch child.Type() {
		case pyNodeFunctionDefinition, pyNodeAsyncFunctionDefinition:
			p.processFunction(child, content, filePath, moduleName, name, nil, result)
		case pyNodeDecoratedDefinition:
			p.processDecorated(child, content, filePath, moduleName, name, result)
		case pyNodeExpressionStatement:
			p.processClassField(child, content, filePath, moduleName, name, result)
		}
	}
}

// processDecorated unwraps a decorated definition and dispatches it.
func (p *PythonParser) processDecorated(node *sitter.Node, content []byte, filePath, moduleName, container string, result *ParseResult) {
	var decorators []string
	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		if child.Type() == pyNodeDecorator {
			// Strip the "@" and any call parentheses
			text := strings.TrimPrefix(nodeText(child, content), "@")
			if idx := strings.IndexByte(text, '('); idx >= 0 {
				text = text[:idx]
			}
			decorators = append(decorators, strings.TrimSpace(text))
		}
	}

	defNode := node.ChildByFieldName("definition")
	if defNode == nil {
		return
	}
	switch defNode.Type() {
	case pyNodeFunctionDefinition, pyNodeAsyncFunctionDefinition:
		p.processFunction(defNode, content, filePath, moduleName, container, decorators, result)
	case pyNodeClassDefinition:
		p.processClass(defNode, content, filePath, moduleName, result)
	}
}

// processModuleAssignment extracts module-level variable assignments.
// ALL_CAPS names are classified as constants.
func (p *PythonParser) processModuleAssignment(node *sitter.Node, content []byte, filePath, moduleName string, result *ParseResult) {
	name, assignNode := assignmentTarget(node, content)
	if name == "" {
		return
	}

	kind := SymbolKindVariable
	if isPythonConstant(name) {
		kind = SymbolKindConstant
	}

	exported := isPythonPublic(name)
	if !p.parseOptions.IncludePrivate && !exported {
		return
	}

	result.Symbols = append(result.Symbols, &Symbol{
		ID:        GenerateID(filePath, int(assignNode.StartPoint().Row+1), name),
		Name:      name,
		Kind:      kind,
		FilePath:  filePath,
		Package:   moduleName,
		Language:  "python",
		Exported:  exported,
		StartLine: int(assignNode.StartPoint().Row + 1),
		EndLine:   int(assignNode.EndPoint().Row + 1),
		StartCol:  int(assignNode.StartPoint().Column + 1),
		EndCol:    int(assignNode.EndPoint().Column + 1),
	})
}

// processClassField extracts class-level attribute assignments.
func (p *PythonParser) processClassField(node *sitter.Node, content []byte, filePath, moduleName, container string, result *ParseResult) {
	name, assignNode := assignmentTarget(node, content)
	if name == "" {
		return
	}

	exported := isPythonPublic(name)
	if !p.parseOptions.IncludePrivate && !exported {
		return
	}

	result.Symbols = append(result.Symbols, &Symbol{
		ID:        GenerateID(filePath, int(assignNode.StartPoint().Row+1), name),
		Name:      name,
		Kind:      SymbolKindField,
		FilePath:  filePath,
		Package:   moduleName,
		Container: container,
		Language:  "python",
		Exported:  exported,
		StartLine: int(assignNode.StartPoint().Row + 1),
		EndLine:   int(assignNode.EndPoint().Row + 1),
		StartCol:  int(assignNode.StartPoint().Column + 1),
		EndCol:    int(assignNode.EndPoint().Column + 1),
	})
}

// assignmentTarget digs the simple identifier target out of an
// expression_statement wrapping an assignment. Returns "" for
// tuple unpacking and attribute targets.
func assignmentTarget(node *sitter.Node, content []byte) (string, *sitter.Node) {
	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		if child.Type() != pyNodeAssignment {
			continue
		}
		leftNode := child.ChildByFieldName("left")
		if leftNode == nil || leftNode.Type() != pyNodeIdentifier {
			return "", nil
		}
		return nodeText(leftNode, content), child
	}
	return "", nil
}

// pythonModuleName derives the module name from the file path.
func pythonModuleName(filePath string) string {
	base := filePath
	if idx := strings.LastIndexByte(base, '/'); idx >= 0 {
		base = base[idx+1:]
	}
	base = strings.TrimSuffix(base, ".py")
	base = strings.TrimSuffix(base, ".pyi")
	return base
}

// isPythonPublic reports whether a name is public by convention
// (no leading underscore).
func isPythonPublic(name string) bool {
	return len(name) > 0 && name[0] != '_'
}

// isPythonConstant reports whether a name follows the ALL_CAPS
// constant convention. Requires at least one letter.
func isPythonConstant(name string) bool {
	hasLetter := false
	for _, r := range name {
		switch {
		case r >= 'A' && r <= 'Z':
			hasLetter = true
		case r == '_' || (r >= '0' && r <= '9'):
			// allowed
		default:
			return false
		}
	}
	return hasLetter
}
