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
	"errors"
	"strings"
	"testing"
)

const testJSSimple = `import { request } from './http';

const MAX_RETRIES = 3;
let counter = 0;

export function fetchUser(id) {
  return request('/users/' + id);
}

const toUpper = (s) => s.toUpperCase();

export class Session {
  expiresAt = 0;

  refresh(token) {
    return request('/refresh', token);
  }
}

function internalHelper() {}
`

func TestJavaScriptParser_Parse_Simple(t *testing.T) {
	parser := NewJavaScriptParser()
	ctx := context.Background()

	result, err := parser.Parse(ctx, []byte(testJSSimple), "session.js")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Language != "javascript" {
		t.Errorf("Language = %q, want javascript", result.Language)
	}

	if len(result.Imports) != 1 || result.Imports[0].Path != "./http" {
		t.Fatalf("expected single ./http import, got %+v", result.Imports)
	}

	maxRetries := findByName(result.Symbols, "MAX_RETRIES")
	if maxRetries == nil || maxRetries.Kind != SymbolKindConstant {
		t.Errorf("MAX_RETRIES should be a constant, got %+v", maxRetries)
	}
	counter := findByName(result.Symbols, "counter")
	if counter == nil || counter.Kind != SymbolKindVariable {
		t.Errorf("counter should be a variable, got %+v", counter)
	}

	fetchUser := findByName(result.Symbols, "fetchUser")
	if fetchUser == nil {
		t.Fatal("expected fetchUser symbol")
	}
	if fetchUser.Kind != SymbolKindFunction {
		t.Errorf("fetchUser kind = %v, want function", fetchUser.Kind)
	}
	if !fetchUser.Exported {
		t.Error("fetchUser should be exported")
	}

	// Arrow function bound to a const is a function symbol
	toUpper := findByName(result.Symbols, "toUpper")
	if toUpper == nil {
		t.Fatal("expected toUpper symbol")
	}
	if toUpper.Kind != SymbolKindFunction {
		t.Errorf("toUpper kind = %v, want function", toUpper.Kind)
	}
	if !strings.Contains(toUpper.Signature, "=>") {
		t.Errorf("toUpper signature = %q, want arrow form", toUpper.Signature)
	}

	session := findByName(result.Symbols, "Session")
	if session == nil || session.Kind != SymbolKindClass {
		t.Fatalf("Session should be a class, got %+v", session)
	}
	if !session.Exported {
		t.Error("Session should be exported")
	}

	refresh := findByName(result.Symbols, "refresh")
	if refresh == nil {
		t.Fatal("expected refresh symbol")
	}
	if refresh.Kind != SymbolKindMethod || refresh.Container != "Session" {
		t.Errorf("refresh = %+v, want method in Session", refresh)
	}

	expires := findByName(result.Symbols, "expiresAt")
	if expires == nil || expires.Kind != SymbolKindField {
		t.Errorf("expiresAt should be a field, got %+v", expires)
	}

	helper := findByName(result.Symbols, "internalHelper")
	if helper == nil {
		t.Fatal("expected internalHelper symbol")
	}
	if helper.Exported {
		t.Error("internalHelper should not be exported")
	}
}

func TestJavaScriptParser_Parse_InvalidUTF8(t *testing.T) {
	parser := NewJavaScriptParser()
	_, err := parser.Parse(context.Background(), []byte(testInvalidUTF8), "bad.js")
	if !errors.Is(err, ErrInvalidContent) {
		t.Errorf("expected ErrInvalidContent, got %v", err)
	}
}

func TestJavaScriptParser_LanguageAndExtensions(t *testing.T) {
	parser := NewJavaScriptParser()
	if parser.Language() != "javascript" {
		t.Errorf("Language() = %q, want javascript", parser.Language())
	}
	exts := parser.Extensions()
	want := []string{".js", ".jsx", ".mjs", ".cjs"}
	if len(exts) != len(want) {
		t.Fatalf("Extensions() = %v, want %v", exts, want)
	}
	for i := range want {
		if exts[i] != want[i] {
			t.Errorf("Extensions()[%d] = %q, want %q", i, exts[i], want[i])
		}
	}
}
