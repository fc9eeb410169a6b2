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
	"testing"
)

func TestDefaultParseOptions(t *testing.T) {
	opts := DefaultParseOptions()
	if !opts.IncludePrivate {
		t.Error("IncludePrivate should default to true")
	}
	if opts.IncludeComments {
		t.Error("IncludeComments should default to false")
	}
	if opts.MaxDepth != 0 {
		t.Errorf("MaxDepth = %d, want 0", opts.MaxDepth)
	}
	if opts.ExtractBodies {
		t.Error("ExtractBodies should default to false")
	}
}

func TestParserRegistry_Register(t *testing.T) {
	r := NewParserRegistry()

	if _, ok := r.GetByLanguage("go"); ok {
		t.Fatal("empty registry should have no parsers")
	}

	r.Register(NewGoParser())

	parser, ok := r.GetByLanguage("go")
	if !ok || parser == nil {
		t.Fatal("expected go parser after registration")
	}
	if parser.Language() != "go" {
		t.Errorf("Language() = %q, want go", parser.Language())
	}

	byExt, ok := r.GetByExtension(".go")
	if !ok {
		t.Fatal("expected .go extension lookup to succeed")
	}
	if byExt != parser {
		t.Error("extension lookup should return the same instance")
	}
}

func TestParserRegistry_RegisterNil(t *testing.T) {
	r := NewParserRegistry()
	r.Register(nil)

	if langs := r.Languages(); len(langs) != 0 {
		t.Errorf("nil registration should be ignored, got %v", langs)
	}
}

func TestParserRegistry_UnknownLookups(t *testing.T) {
	r := DefaultRegistry()

	if _, ok := r.GetByLanguage("rust"); ok {
		t.Error("rust should not be registered")
	}
	if _, ok := r.GetByExtension(".rs"); ok {
		t.Error(".rs should not be registered")
	}
}

func TestDefaultRegistry(t *testing.T) {
	r := DefaultRegistry()

	for _, lang := range []string{"go", "python", "javascript", "typescript"} {
		if _, ok := r.GetByLanguage(lang); !ok {
			t.Errorf("default registry missing language %q", lang)
		}
	}
	for _, ext := range []string{".go", ".py", ".pyi", ".js", ".jsx", ".mjs", ".cjs", ".ts", ".tsx", ".mts", ".cts"} {
		if _, ok := r.GetByExtension(ext); !ok {
			t.Errorf("default registry missing extension %q", ext)
		}
	}

	if got := len(r.Languages()); got != 4 {
		t.Errorf("Languages() returned %d entries, want 4", got)
	}
	if got := len(r.Extensions()); got != 11 {
		t.Errorf("Extensions() returned %d entries, want 11", got)
	}
}

func TestDefaultRegistry_ParsersWork(t *testing.T) {
	r := DefaultRegistry()
	ctx := context.Background()

	sources := map[string]struct {
		path    string
		content string
		symbol  string
	}{
		"go":         {"a.go", "package a\n\nfunc Hello() {}\n", "Hello"},
		"python":     {"a.py", "def hello():\n    pass\n", "hello"},
		"javascript": {"a.js", "function hello() {}\n", "hello"},
		"typescript": {"a.ts", "export function hello(): void {}\n", "hello"},
	}

	for lang, src := range sources {
		parser, ok := r.GetByLanguage(lang)
		if !ok {
			t.Fatalf("missing parser for %s", lang)
		}
		result, err := parser.Parse(ctx, []byte(src.content), src.path)
		if err != nil {
			t.Fatalf("%s parse failed: %v", lang, err)
		}
		if findByName(result.Symbols, src.symbol) == nil {
			t.Errorf("%s parse did not extract %q: %+v", lang, src.symbol, result.Symbols)
		}
	}
}

func TestParserRegistry_ConcurrentAccess(t *testing.T) {
	r := DefaultRegistry()
	done := make(chan struct{})

	for i := 0; i < 8; i++ {
		go func() {
			defer func() { done <- struct{}{} }()
			for j := 0; j < 50; j++ {
				r.GetByLanguage("go")
				r.GetByExtension(".py")
				r.Languages()
				r.Register(NewGoParser())
			}
		}()
	}
	for i := 0; i < 8; i++ {
		<-done
	}
}
