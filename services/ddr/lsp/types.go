// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package lsp

import (
	"encoding/json"
	"fmt"
)

// =============================================================================
// PROTOCOL TYPES
// =============================================================================
// Wire types for the subset of the Language Server Protocol the
// verification flow uses: initialize, document sync, hover, definition,
// and workspace symbol search. Field names and JSON tags follow the
// LSP 3.17 specification exactly.

// Position is a zero-indexed line/character position in a document.
//
// Note the off-by-one trap: LSP lines are 0-indexed while citations
// and parser output are 1-indexed. Conversion happens at the probe
// boundary, never inside this package.
type Position struct {
	Line      int `json:"line"`
	Character int `json:"character"`
}

// Range is a start/end position pair within a single document.
type Range struct {
	Start Position `json:"start"`
	End   Position `json:"end"`
}

// Location is a document URI plus a range inside it.
type Location struct {
	URI   string `json:"uri"`
	Range Range  `json:"range"`
}

// LocationLink is the richer definition-result form some servers
// return when the client advertises linkSupport.
type LocationLink struct {
	TargetURI            string `json:"targetUri"`
	TargetRange          Range  `json:"targetRange"`
	TargetSelectionRange Range  `json:"targetSelectionRange"`
}

// TextDocumentIdentifier identifies a document by URI.
type TextDocumentIdentifier struct {
	URI string `json:"uri"`
}

// TextDocumentItem is a full document payload for didOpen.
type TextDocumentItem struct {
	URI        string `json:"uri"`
	LanguageID string `json:"languageId"`
	Version    int    `json:"version"`
	Text       string `json:"text"`
}

// TextDocumentPositionParams addresses a position in a document.
type TextDocumentPositionParams struct {
	TextDocument TextDocumentIdentifier `json:"textDocument"`
	Position     Position               `json:"position"`
}

// DidOpenTextDocumentParams are the params for textDocument/didOpen.
type DidOpenTextDocumentParams struct {
	TextDocument TextDocumentItem `json:"textDocument"`
}

// DidCloseTextDocumentParams are the params for textDocument/didClose.
type DidCloseTextDocumentParams struct {
	TextDocument TextDocumentIdentifier `json:"textDocument"`
}

// WorkspaceSymbolParams are the params for workspace/symbol.
type WorkspaceSymbolParams struct {
	Query string `json:"query"`
}

// MarkupContent is hover content with a declared format.
type MarkupContent struct {
	Kind  string `json:"kind"`
	Value string `json:"value"`
}

// HoverResult is the response payload for textDocument/hover.
type HoverResult struct {
	Contents MarkupContent `json:"contents"`
	Range    *Range        `json:"range,omitempty"`
}

// SymbolKind is the LSP numeric symbol kind.
type SymbolKind int

// LSP symbol kinds, per the protocol's SymbolKind enumeration.
const (
	SymbolKindFile          SymbolKind = 1
	SymbolKindModule        SymbolKind = 2
	SymbolKindNamespace     SymbolKind = 3
	SymbolKindPackage       SymbolKind = 4
	SymbolKindClass         SymbolKind = 5
	SymbolKindMethod        SymbolKind = 6
	SymbolKindProperty      SymbolKind = 7
	SymbolKindField         SymbolKind = 8
	SymbolKindConstructor   SymbolKind = 9
	SymbolKindEnum          SymbolKind = 10
	SymbolKindInterface     SymbolKind = 11
	SymbolKindFunction      SymbolKind = 12
	SymbolKindVariable      SymbolKind = 13
	SymbolKindConstant      SymbolKind = 14
	SymbolKindString        SymbolKind = 15
	SymbolKindNumber        SymbolKind = 16
	SymbolKindBoolean       SymbolKind = 17
	SymbolKindArray         SymbolKind = 18
	SymbolKindObject        SymbolKind = 19
	SymbolKindKey           SymbolKind = 20
	SymbolKindNull          SymbolKind = 21
	SymbolKindEnumMember    SymbolKind = 22
	SymbolKindStruct        SymbolKind = 23
	SymbolKindEvent         SymbolKind = 24
	SymbolKindOperator      SymbolKind = 25
	SymbolKindTypeParameter SymbolKind = 26
)

// SymbolInformation is one workspace/symbol result entry.
type SymbolInformation struct {
	Name          string     `json:"name"`
	Kind          SymbolKind `json:"kind"`
	Location      Location   `json:"location"`
	ContainerName string     `json:"containerName,omitempty"`
}

// DocumentSymbolParams are the params for textDocument/documentSymbol.
type DocumentSymbolParams struct {
	TextDocument TextDocumentIdentifier `json:"textDocument"`
}

// DocumentSymbol is one node of the hierarchical documentSymbol
// response shape. Newer servers return these instead of the flat
// SymbolInformation list.
type DocumentSymbol struct {
	Name           string           `json:"name"`
	Detail         string           `json:"detail,omitempty"`
	Kind           SymbolKind       `json:"kind"`
	Range          Range            `json:"range"`
	SelectionRange Range            `json:"selectionRange"`
	Children       []DocumentSymbol `json:"children,omitempty"`
}

// =============================================================================
// INITIALIZE HANDSHAKE
// =============================================================================

// InitializeParams are the params for the initialize request.
type InitializeParams struct {
	ProcessID             int                `json:"processId"`
	RootURI               string             `json:"rootUri"`
	Capabilities          ClientCapabilities `json:"capabilities"`
	InitializationOptions interface{}        `json:"initializationOptions,omitempty"`
}

// ClientCapabilities advertises what this client understands.
type ClientCapabilities struct {
	TextDocument TextDocumentClientCapabilities `json:"textDocument,omitempty"`
	Workspace    *WorkspaceClientCapabilities   `json:"workspace,omitempty"`
}

// TextDocumentClientCapabilities covers per-document features.
type TextDocumentClientCapabilities struct {
	Definition *DefinitionCapabilities `json:"definition,omitempty"`
	Hover      *HoverCapabilities      `json:"hover,omitempty"`
}

// DefinitionCapabilities configures definition requests.
type DefinitionCapabilities struct {
	LinkSupport bool `json:"linkSupport,omitempty"`
}

// HoverCapabilities configures hover requests.
type HoverCapabilities struct {
	ContentFormat []string `json:"contentFormat,omitempty"`
}

// WorkspaceClientCapabilities covers workspace-level features.
type WorkspaceClientCapabilities struct {
	Symbol *WorkspaceSymbolCapabilities `json:"symbol,omitempty"`
}

// WorkspaceSymbolCapabilities configures workspace/symbol requests.
type WorkspaceSymbolCapabilities struct{}

// InitializeResult is the response payload for initialize.
type InitializeResult struct {
	Capabilities ServerCapabilities `json:"capabilities"`
}

// ServerCapabilities describes what the server can do.
//
// Provider fields are interface{} because the protocol allows either
// a boolean or an options object; any non-nil, non-false value means
// the capability is present.
type ServerCapabilities struct {
	DefinitionProvider      interface{} `json:"definitionProvider,omitempty"`
	HoverProvider           interface{} `json:"hoverProvider,omitempty"`
	ReferencesProvider      interface{} `json:"referencesProvider,omitempty"`
	WorkspaceSymbolProvider interface{} `json:"workspaceSymbolProvider,omitempty"`
	DocumentSymbolProvider  interface{} `json:"documentSymbolProvider,omitempty"`
}

// hasProvider interprets a bool-or-object capability value.
func hasProvider(v interface{}) bool {
	if v == nil {
		return false
	}
	if b, ok := v.(bool); ok {
		return b
	}
	// Any object form means the capability is supported.
	return true
}

// HasDefinitionProvider reports definition support.
func (c ServerCapabilities) HasDefinitionProvider() bool {
	return hasProvider(c.DefinitionProvider)
}

// HasHoverProvider reports hover support.
func (c ServerCapabilities) HasHoverProvider() bool {
	return hasProvider(c.HoverProvider)
}

// HasReferencesProvider reports find-references support.
func (c ServerCapabilities) HasReferencesProvider() bool {
	return hasProvider(c.ReferencesProvider)
}

// HasWorkspaceSymbolProvider reports workspace symbol search support.
func (c ServerCapabilities) HasWorkspaceSymbolProvider() bool {
	return hasProvider(c.WorkspaceSymbolProvider)
}

// HasDocumentSymbolProvider reports document symbol support.
func (c ServerCapabilities) HasDocumentSymbolProvider() bool {
	return hasProvider(c.DocumentSymbolProvider)
}

// =============================================================================
// JSON-RPC FRAMING
// =============================================================================

// jsonrpcMessage is the union shape of every JSON-RPC 2.0 message on
// the wire. Requests carry ID+Method, notifications carry Method only,
// responses carry ID plus Result or Error.
type jsonrpcMessage struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method,omitempty"`
	Params  json.RawMessage `json:"params,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *ResponseError  `json:"error,omitempty"`
}

// ResponseError is a JSON-RPC error object.
type ResponseError struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// Error implements the error interface.
func (e *ResponseError) Error() string {
	return fmt.Sprintf("lsp error %d: %s", e.Code, e.Message)
}
