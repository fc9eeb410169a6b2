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

const testPySimple = `import os
import numpy as np
from collections import OrderedDict

MAX_RETRIES = 3
default_window = 100

def fetch_data(url: str) -> dict:
    return {}

async def stream_data(url):
    pass

class DataLoader:
    batch_size = 32

    def __init__(self, path):
        self.path = path

    def load(self, split):
        return None

    @property
    def size(self):
        return 0

def _internal_helper():
    pass
`

func TestPythonParser_Parse_Simple(t *testing.T) {
	parser := NewPythonParser()
	ctx := context.Background()

	result, err := parser.Parse(ctx, []byte(testPySimple), "loader.py")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Language != "python" {
		t.Errorf("Language = %q, want python", result.Language)
	}

	// Imports: os, numpy (aliased), collections
	if len(result.Imports) != 3 {
		t.Fatalf("expected 3 imports, got %d: %+v", len(result.Imports), result.Imports)
	}
	var numpyImport *Import
	for i := range result.Imports {
		if result.Imports[i].Path == "numpy" {
			numpyImport = &result.Imports[i]
		}
	}
	if numpyImport == nil {
		t.Fatal("expected numpy import")
	}
	if numpyImport.Alias != "np" {
		t.Errorf("numpy alias = %q, want np", numpyImport.Alias)
	}

	// Module-level constant vs variable
	maxRetries := findByName(result.Symbols, "MAX_RETRIES")
	if maxRetries == nil {
		t.Fatal("expected MAX_RETRIES symbol")
	}
	if maxRetries.Kind != SymbolKindConstant {
		t.Errorf("MAX_RETRIES kind = %v, want constant", maxRetries.Kind)
	}
	window := findByName(result.Symbols, "default_window")
	if window == nil || window.Kind != SymbolKindVariable {
		t.Errorf("default_window should be a variable, got %+v", window)
	}

	// Function with annotation signature
	fetch := findByName(result.Symbols, "fetch_data")
	if fetch == nil {
		t.Fatal("expected fetch_data symbol")
	}
	if fetch.Kind != SymbolKindFunction {
		t.Errorf("fetch_data kind = %v, want function", fetch.Kind)
	}
	if !strings.Contains(fetch.Signature, "-> dict") {
		t.Errorf("fetch_data signature = %q, want return annotation", fetch.Signature)
	}

	// Class and its members
	loader := findByName(result.Symbols, "DataLoader")
	if loader == nil || loader.Kind != SymbolKindClass {
		t.Fatalf("DataLoader should be a class, got %+v", loader)
	}

	load := findByName(result.Symbols, "load")
	if load == nil {
		t.Fatal("expected load symbol")
	}
	if load.Kind != SymbolKindMethod {
		t.Errorf("load kind = %v, want method", load.Kind)
	}
	if load.Container != "DataLoader" {
		t.Errorf("load container = %q, want DataLoader", load.Container)
	}

	size := findByName(result.Symbols, "size")
	if size == nil {
		t.Fatal("expected size symbol")
	}
	if size.Kind != SymbolKindProperty {
		t.Errorf("size kind = %v, want property (decorated)", size.Kind)
	}

	batch := findByName(result.Symbols, "batch_size")
	if batch == nil || batch.Kind != SymbolKindField {
		t.Errorf("batch_size should be a field, got %+v", batch)
	}

	// Underscore names are unexported but still extracted by default
	helper := findByName(result.Symbols, "_internal_helper")
	if helper == nil {
		t.Fatal("expected _internal_helper symbol")
	}
	if helper.Exported {
		t.Error("_internal_helper should not be exported")
	}
}

func TestPythonParser_Parse_AsyncFunction(t *testing.T) {
	parser := NewPythonParser()
	ctx := context.Background()

	result, err := parser.Parse(ctx, []byte(testPySimple), "loader.py")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	stream := findByName(result.Symbols, "stream_data")
	if stream == nil {
		t.Fatal("expected stream_data symbol")
	}
	if stream.Kind != SymbolKindFunction {
		t.Errorf("stream_data kind = %v, want function", stream.Kind)
	}
}

func TestPythonParser_Parse_InvalidUTF8(t *testing.T) {
	parser := NewPythonParser()
	_, err := parser.Parse(context.Background(), []byte(testInvalidUTF8), "bad.py")
	if !errors.Is(err, ErrInvalidContent) {
		t.Errorf("expected ErrInvalidContent, got %v", err)
	}
}

func TestPythonParser_LanguageAndExtensions(t *testing.T) {
	parser := NewPythonParser()
	if parser.Language() != "python" {
		t.Errorf("Language() = %q, want python", parser.Language())
	}
	exts := parser.Extensions()
	if len(exts) != 2 || exts[0] != ".py" {
		t.Errorf("Extensions() = %v, want [.py .pyi]", exts)
	}
}

func TestPythonModuleName(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"pkg/loader.py", "loader"},
		{"loader.py", "loader"},
		{"types.pyi", "types"},
	}
	for _, tt := range tests {
		if got := pythonModuleName(tt.path); got != tt.want {
			t.Errorf("pythonModuleName(%q) = %q, want %q", tt.path, got, tt.want)
		}
	}
}

func TestIsPythonConstant(t *testing.T) {
	tests := []struct {
		name string
		want bool
	}{
		{"MAX_RETRIES", true},
		{"X", true},
		{"A1_B2", true},
		{"maxRetries", false},
		{"Max_Retries", false},
		{"_", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := isPythonConstant(tt.name); got != tt.want {
			t.Errorf("isPythonConstant(%q) = %v, want %v", tt.name, got, tt.want)
		}
	}
}
