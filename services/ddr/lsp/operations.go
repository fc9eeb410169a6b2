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
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
)

// Operations provides the high-level LSP calls used to check whether
// a claimed symbol actually resolves in the workspace.
//
// Description:
//
//	Wraps a Manager and handles the path↔URI translation and response
//	decoding so callers deal in plain paths and typed results. Each
//	call lazily spawns the right server via GetOrSpawn.
//
// Thread Safety:
//
//	Safe for concurrent use.
type Operations struct {
	manager *Manager
}

// NewOperations creates an Operations facade over a manager.
func NewOperations(manager *Manager) *Operations {
	return &Operations{manager: manager}
}

// Manager returns the underlying manager.
func (o *Operations) Manager() *Manager {
	return o.manager
}

// languageFromPath maps a file path to its language identifier via
// the registry's extension table. Empty when unmapped.
func (o *Operations) languageFromPath(path string) string {
	ext := filepath.Ext(path)
	lang, _ := o.manager.Configs().LanguageForExtension(ext)
	return lang
}

// pathToURI converts an absolute path to a file:// URI.
func pathToURI(path string) string {
	return "file://" + path
}

// uriToPath converts a file:// URI back to a path.
func uriToPath(uri string) string {
	return strings.TrimPrefix(uri, "file://")
}

// WorkspaceSymbol searches the workspace for symbols by name.
//
// Description:
//
//	Issues workspace/symbol against the server for the given
//	language. This is the primary lookup the server check runs: an
//	exact-name hit among the results counts as confirmation.
//
// Inputs:
//
//	ctx - Request bound.
//	language - Language identifier selecting the server.
//	query - Symbol name (servers treat this as fuzzy; callers must
//	        post-filter for exact matches).
//
// Outputs:
//
//	[]SymbolInformation - Matching symbols, nil when none.
//	error - Spawn or request failure.
//
// Thread Safety:
//
//	Safe for concurrent use.
func (o *Operations) WorkspaceSymbol(ctx context.Context, language, query string) ([]SymbolInformation, error) {
	if ctx == nil {
		return nil, fmt.Errorf("ctx must not be nil")
	}

	server, err := o.manager.GetOrSpawn(ctx, language)
	if err != nil {
		return nil, err
	}

	raw, err := server.Request(ctx, "workspace/symbol", WorkspaceSymbolParams{Query: query})
	if err != nil {
		return nil, err
	}
	if isNullResponse(raw) {
		return nil, nil
	}

	var symbols []SymbolInformation
	if err := json.Unmarshal(raw, &symbols); err != nil {
		return nil, fmt.Errorf("decode workspace/symbol response: %w", err)
	}
	return symbols, nil
}

// DocumentSymbol lists every symbol declared in one document.
//
// Description:
//
//	Issues textDocument/documentSymbol and normalizes both response
//	shapes (flat SymbolInformation list, hierarchical DocumentSymbol
//	tree) into a flat SymbolInformation slice. The fallback lookup
//	when a workspace/symbol query over a scoped file comes back
//	empty.
//
// Inputs:
//
//	ctx - Request bound.
//	path - Absolute file path; the language comes from its extension.
//
// Outputs:
//
//	[]SymbolInformation - Declared symbols, nil when none.
//	error - ErrUnsupportedLanguage for unmapped extensions, or
//	        spawn/request failure.
//
// Thread Safety:
//
//	Safe for concurrent use.
func (o *Operations) DocumentSymbol(ctx context.Context, path string) ([]SymbolInformation, error) {
	if ctx == nil {
		return nil, fmt.Errorf("ctx must not be nil")
	}

	language := o.languageFromPath(path)
	if language == "" {
		return nil, fmt.Errorf("%w: no language for %s", ErrUnsupportedLanguage, path)
	}

	server, err := o.manager.GetOrSpawn(ctx, language)
	if err != nil {
		return nil, err
	}

	params := DocumentSymbolParams{
		TextDocument: TextDocumentIdentifier{URI: pathToURI(path)},
	}

	raw, err := server.Request(ctx, "textDocument/documentSymbol", params)
	if err != nil {
		return nil, err
	}
	return parseDocumentSymbolResponse(raw, pathToURI(path))
}

// Definition resolves the definition of the symbol at a position.
//
// Inputs:
//
//	ctx - Request bound.
//	path - Absolute file path; the language comes from its extension.
//	line, character - Zero-indexed LSP position.
//
// Outputs:
//
//	[]Location - Definition sites, nil when the server finds none.
//	error - ErrUnsupportedLanguage for unmapped extensions, or
//	        spawn/request failure.
//
// Thread Safety:
//
//	Safe for concurrent use.
func (o *Operations) Definition(ctx context.Context, path string, line, character int) ([]Location, error) {
	if ctx == nil {
		return nil, fmt.Errorf("ctx must not be nil")
	}

	language := o.languageFromPath(path)
	if language == "" {
		return nil, fmt.Errorf("%w: no language for %s", ErrUnsupportedLanguage, path)
	}

	server, err := o.manager.GetOrSpawn(ctx, language)
	if err != nil {
		return nil, err
	}

	params := TextDocumentPositionParams{
		TextDocument: TextDocumentIdentifier{URI: pathToURI(path)},
		Position:     Position{Line: line, Character: character},
	}

	raw, err := server.Request(ctx, "textDocument/definition", params)
	if err != nil {
		return nil, err
	}
	return parseLocationResponse(raw)
}

// Hover fetches hover content for the symbol at a position. The
// hover's first code block is where a verified signature comes from.
//
// Outputs:
//
//	*HoverResult - nil when the server has nothing to show.
//
// Thread Safety:
//
//	Safe for concurrent use.
func (o *Operations) Hover(ctx context.Context, path string, line, character int) (*HoverResult, error) {
	if ctx == nil {
		return nil, fmt.Errorf("ctx must not be nil")
	}

	language := o.languageFromPath(path)
	if language == "" {
		return nil, fmt.Errorf("%w: no language for %s", ErrUnsupportedLanguage, path)
	}

	server, err := o.manager.GetOrSpawn(ctx, language)
	if err != nil {
		return nil, err
	}

	params := TextDocumentPositionParams{
		TextDocument: TextDocumentIdentifier{URI: pathToURI(path)},
		Position:     Position{Line: line, Character: character},
	}

	raw, err := server.Request(ctx, "textDocument/hover", params)
	if err != nil {
		return nil, err
	}
	if isNullResponse(raw) {
		return nil, nil
	}

	var hover HoverResult
	if err := json.Unmarshal(raw, &hover); err != nil {
		return nil, fmt.Errorf("decode hover response: %w", err)
	}
	return &hover, nil
}

// OpenDocument sends didOpen so the server tracks the file. Required
// before position-based requests against unsaved or unindexed files.
//
// Thread Safety:
//
//	Safe for concurrent use.
func (o *Operations) OpenDocument(ctx context.Context, path, content string) error {
	if ctx == nil {
		return fmt.Errorf("ctx must not be nil")
	}

	language := o.languageFromPath(path)
	if language == "" {
		return fmt.Errorf("%w: no language for %s", ErrUnsupportedLanguage, path)
	}

	server, err := o.manager.GetOrSpawn(ctx, language)
	if err != nil {
		return err
	}

	return server.Notify("textDocument/didOpen", DidOpenTextDocumentParams{
		TextDocument: TextDocumentItem{
			URI:        pathToURI(path),
			LanguageID: language,
			Version:    1,
			Text:       content,
		},
	})
}

// CloseDocument sends didClose for a previously opened file.
//
// Thread Safety:
//
//	Safe for concurrent use.
func (o *Operations) CloseDocument(ctx context.Context, path string) error {
	if ctx == nil {
		return fmt.Errorf("ctx must not be nil")
	}

	language := o.languageFromPath(path)
	if language == "" {
		return fmt.Errorf("%w: no language for %s", ErrUnsupportedLanguage, path)
	}

	server := o.manager.Get(language)
	if server == nil {
		return nil
	}

	return server.Notify("textDocument/didClose", DidCloseTextDocumentParams{
		TextDocument: TextDocumentIdentifier{URI: pathToURI(path)},
	})
}

// isNullResponse reports whether a raw result is empty or JSON null.
func isNullResponse(raw json.RawMessage) bool {
	trimmed := strings.TrimSpace(string(raw))
	return trimmed == "" || trimmed == "null"
}

// parseDocumentSymbolResponse decodes the two shapes documentSymbol
// responses come in. Hierarchical nodes are flattened depth-first with
// the parent name as container; their locations use the document URI
// since tree nodes carry only ranges.
func parseDocumentSymbolResponse(raw json.RawMessage, uri string) ([]SymbolInformation, error) {
	if isNullResponse(raw) {
		return nil, nil
	}

	var flat []SymbolInformation
	if err := json.Unmarshal(raw, &flat); err == nil && len(flat) > 0 && flat[0].Location.URI != "" {
		return flat, nil
	}

	var tree []DocumentSymbol
	if err := json.Unmarshal(raw, &tree); err != nil {
		return nil, fmt.Errorf("decode documentSymbol response: %w", err)
	}
	if len(tree) == 0 {
		return nil, nil
	}

	var out []SymbolInformation
	flattenDocumentSymbols(tree, "", uri, &out)
	return out, nil
}

// flattenDocumentSymbols walks a DocumentSymbol tree depth-first.
func flattenDocumentSymbols(nodes []DocumentSymbol, container, uri string, out *[]SymbolInformation) {
	for _, node := range nodes {
		*out = append(*out, SymbolInformation{
			Name:          node.Name,
			Kind:          node.Kind,
			ContainerName: container,
			Location:      Location{URI: uri, Range: node.Range},
		})
		flattenDocumentSymbols(node.Children, node.Name, uri, out)
	}
}

// parseLocationResponse decodes the three shapes definition responses
// come in: a single Location, an array of Locations, or an array of
// LocationLinks.
func parseLocationResponse(raw json.RawMessage) ([]Location, error) {
	if isNullResponse(raw) {
		return nil, nil
	}

	trimmed := strings.TrimSpace(string(raw))

	if strings.HasPrefix(trimmed, "{") {
		var loc Location
		if err := json.Unmarshal(raw, &loc); err != nil {
			return nil, fmt.Errorf("decode location: %w", err)
		}
		return []Location{loc}, nil
	}

	var elements []json.RawMessage
	if err := json.Unmarshal(raw, &elements); err != nil {
		return nil, fmt.Errorf("decode location array: %w", err)
	}
	if len(elements) == 0 {
		return nil, nil
	}

	locations := make([]Location, 0, len(elements))
	for _, elem := range elements {
		var loc Location
		if err := json.Unmarshal(elem, &loc); err == nil && loc.URI != "" {
			locations = append(locations, loc)
			continue
		}

		var link LocationLink
		if err := json.Unmarshal(elem, &link); err == nil && link.TargetURI != "" {
			locations = append(locations, Location{
				URI:   link.TargetURI,
				Range: link.TargetSelectionRange,
			})
			continue
		}

		return nil, fmt.Errorf("unrecognized location element: %s", string(elem))
	}

	return locations, nil
}
