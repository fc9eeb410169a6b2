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
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
)

// ECMAScript-family tree-sitter node types shared between the
// JavaScript and TypeScript parsers. The TypeScript grammar is a
// superset of the JavaScript one, so a single walker covers both;
// TS-only node types simply never match in JS trees.
const (
	ecmaNodeImportStatement = "import_statement"
	ecmaNodeExportStatement = "export_statement"

	ecmaNodeFunctionDeclaration          = "function_declaration"
	ecmaNodeGeneratorFunctionDeclaration = "generator_function_declaration"
	ecmaNodeClassDeclaration             = "class_declaration"
	ecmaNodeAbstractClassDeclaration     = "abstract_class_declaration"
	ecmaNodeMethodDefinition             = "method_definition"
	ecmaNodeFieldDefinition              = "field_definition"
	ecmaNodePublicFieldDefinition        = "public_field_definition"

	ecmaNodeLexicalDeclaration  = "lexical_declaration"
	ecmaNodeVariableDeclaration = "variable_declaration"
	ecmaNodeVariableDeclarator  = "variable_declarator"
	ecmaNodeArrowFunction       = "arrow_function"
	ecmaNodeFunctionExpression  = "function_expression"
	ecmaNodeIdentifier          = "identifier"
	ecmaNodeString              = "string"

	// TypeScript-only declarations
	ecmaNodeInterfaceDeclaration = "interface_declaration"
	ecmaNodeTypeAliasDeclaration = "type_alias_declaration"
	ecmaNodeEnumDeclaration      = "enum_declaration"
)

// ecmaExtractor walks an ECMAScript-family tree and appends symbols
// to a ParseResult. One extractor per Parse call; not reused.
type ecmaExtractor struct {
	content        []byte
	filePath       string
	language       string
	includePrivate bool
	result         *ParseResult
}

// extractProgram walks the top-level statements of a program node.
func (e *ecmaExtractor) extractProgram(root *sitter.Node) {
	for i := 0; i < int(root.ChildCount()); i++ {
		e.processStatement(root.Child(i), false)
	}
}

// processStatement dispatches one top-level statement.
// exported marks symbols reached through an export statement.
func (e *ecmaExtractor) processStatement(node *sitter.Node, exported bool) {
	switch node.Type() {
	case ecmaNodeImportStatement:
		e.processImport(node)
	case ecmaNodeExportStatement:
		// Unwrap "export <declaration>" and mark it exported
		if decl := node.ChildByFieldName("declaration"); decl != nil {
			e.processStatement(decl, true)
		}
	case ecmaNodeFunctionDeclaration, ecmaNodeGeneratorFunctionDeclaration:
		e.processFunction(node, exported)
	case ecmaNodeClassDeclaration, ecmaNodeAbstractClassDeclaration:
		e.processClass(node, exported)
	case ecmaNodeLexicalDeclaration, ecmaNodeVariableDeclaration:
		e.processVariableDeclaration(node, exported)
	case ecmaNodeInterfaceDeclaration:
		e.processNamedType(node, SymbolKindInterface, "interface", exported)
	case ecmaNodeTypeAliasDeclaration:
		e.processNamedType(node, SymbolKindType, "type", exported)
	case ecmaNodeEnumDeclaration:
		e.processNamedType(node, SymbolKindEnum, "enum", exported)
	}
}

// processImport records the import source module.
func (e *ecmaExtractor) processImport(node *sitter.Node) {
	sourceNode := node.ChildByFieldName("source")
	if sourceNode == nil {
		return
	}
	path := strings.Trim(nodeText(sourceNode, e.content), `"'`)
	if path == "" {
		return
	}
	e.result.Imports = append(e.result.Imports, Import{
		Path:      path,
		StartLine: int(node.StartPoint().Row + 1),
	})
}

// processFunction extracts a function declaration.
func (e *ecmaExtractor) processFunction(node *sitter.Node, exported bool) {
	nameNode := node.ChildByFieldName("name")
	if nameNode == nil {
		return
	}
	name := nodeText(nameNode, e.content)

	var params string
	if paramsNode := node.ChildByFieldName("parameters"); paramsNode != nil {
		params = nodeText(paramsNode, e.content)
	}

	e.appendSymbol(node, name, SymbolKindFunction, "",
		fmt.Sprintf("function %s%s", name, params), exported)
}

// processClass extracts a class declaration plus its members.
func (e *ecmaExtractor) processClass(node *sitter.Node, exported bool) {
	nameNode := node.ChildByFieldName("name")
	if nameNode == nil {
		return
	}
	name := nodeText(nameNode, e.content)

	e.appendSymbol(node, name, SymbolKindClass, "",
		fmt.Sprintf("class %s", name), exported)

	bodyNode := node.ChildByFieldName("body")
	if bodyNode == nil {
		return
	}
	for i := 0; i < int(bodyNode.ChildCount()); i++ {
		member := bodyNode.Child(i)
		switch member.Type() {
		case ecmaNodeMethodDefinition:
			e.processMethod(member, name, exported)
		case ecmaNodeFieldDefinition, ecmaNodePublicFieldDefinition:
			e.processField(member, name, exported)
		}
	}
}

// processMethod extracts a class method.
func (e *ecmaExtractor) processMethod(node *sitter.Node, container string, exported bool) {
	nameNode := node.ChildByFieldName("name")
	if nameNode == nil {
		return
	}
	name := nodeText(nameNode, e.content)

	var params string
	if paramsNode := node.ChildByFieldName("parameters"); paramsNode != nil {
		params = nodeText(paramsNode, e.content)
	}

	e.appendSymbol(node, name, SymbolKindMethod, container,
		fmt.Sprintf("%s%s", name, params), exported)
}

// processField extracts a class field.
func (e *ecmaExtractor) processField(node *sitter.Node, container string, exported bool) {
	nameNode := node.ChildByFieldName("name")
	if nameNode == nil {
		// TS public_field_definition uses "property"-shaped layout in
		// some grammar versions; fall back to the first named child.
		if node.NamedChildCount() > 0 {
			nameNode = node.NamedChild(0)
		}
	}
	if nameNode == nil {
		return
	}
	name := nodeText(nameNode, e.content)
	if name == "" {
		return
	}
	e.appendSymbol(node, name, SymbolKindField, container, "", exported)
}

// processVariableDeclaration extracts const/let/var declarators.
//
// A declarator whose value is an arrow function or function
// expression is classified as a function; other const declarators
// become constants and let/var declarators become variables.
func (e *ecmaExtractor) processVariableDeclaration(node *sitter.Node, exported bool) {
	isConst := strings.HasPrefix(nodeText(node, e.content), "const")

	for i := 0; i < int(node.ChildCount()); i++ {
		decl := node.Child(i)
		if decl.Type() != ecmaNodeVariableDeclarator {
			continue
		}
		nameNode := decl.ChildByFieldName("name")
		if nameNode == nil || nameNode.Type() != ecmaNodeIdentifier {
			continue
		}
		name := nodeText(nameNode, e.content)

		kind := SymbolKindVariable
		signature := ""
		if valueNode := decl.ChildByFieldName("value"); valueNode != nil {
			switch valueNode.Type() {
			case ecmaNodeArrowFunction, ecmaNodeFunctionExpression:
				kind = SymbolKindFunction
				if paramsNode := valueNode.ChildByFieldName("parameters"); paramsNode != nil {
					signature = fmt.Sprintf("const %s = %s => ...", name, nodeText(paramsNode, e.content))
				}
			default:
				if isConst {
					kind = SymbolKindConstant
				}
			}
		} else if isConst {
			kind = SymbolKindConstant
		}

		e.appendSymbol(decl, name, kind, "", signature, exported)
	}
}

// processNamedType extracts interface, type alias, and enum
// declarations (TypeScript only).
func (e *ecmaExtractor) processNamedType(node *sitter.Node, kind SymbolKind, keyword string, exported bool) {
	nameNode := node.ChildByFieldName("name")
	if nameNode == nil {
		return
	}
	name := nodeText(nameNode, e.content)

	e.appendSymbol(node, name, kind, "",
		fmt.Sprintf("%s %s", keyword, name), exported)
}

// appendSymbol builds and appends one symbol from a node.
func (e *ecmaExtractor) appendSymbol(node *sitter.Node, name string, kind SymbolKind, container, signature string, exported bool) {
	if !e.includePrivate && !exported {
		return
	}
	e.result.Symbols = append(e.result.Symbols, &Symbol{
		ID:        GenerateID(e.filePath, int(node.StartPoint().Row+1), name),
		Name:      name,
		Kind:      kind,
		FilePath:  e.filePath,
		Container: container,
		Language:  e.language,
		Exported:  exported,
		Signature: signature,
		StartLine: int(node.StartPoint().Row + 1),
		EndLine:   int(node.EndPoint().Row + 1),
		StartCol:  int(node.StartPoint().Column + 1),
		EndCol:    int(node.EndPoint().Column + 1),
	})
}
