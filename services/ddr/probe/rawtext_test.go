// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package probe

import (
	"context"
	"errors"
	"testing"
)

func TestNewRawTextProbe(t *testing.T) {
	p := NewRawTextProbe(t.TempDir())

	if got := p.Identity(); got != RawText {
		t.Errorf("Identity() = %v, want RawText", got)
	}
}

func TestRawTextProbe_Check(t *testing.T) {
	ws := writeWorkspace(t, map[string]string{
		"docs/api.md":   "Call ComputeRate after every classification.\n",
		"docs/notes.md": "The FooBarBaz helper is internal.\n",
	})
	p := NewRawTextProbe(ws)
	ctx := context.Background()

	t.Run("finds whole word", func(t *testing.T) {
		v, err := p.Check(ctx, Query{Name: "ComputeRate"})
		if err != nil {
			t.Fatalf("Check() error: %v", err)
		}
		if !v.Confirmed {
			t.Fatal("Confirmed = false")
		}
		if v.Location != nil {
			t.Error("a raw text verdict carries a location")
		}
		if v.Signature != "" {
			t.Errorf("a raw text verdict carries a signature: %q", v.Signature)
		}
	})

	t.Run("word boundary rejects prefix", func(t *testing.T) {
		v, err := p.Check(ctx, Query{Name: "FooBar"})
		if err != nil {
			t.Fatalf("Check() error: %v", err)
		}
		if v.Confirmed {
			t.Error("Confirmed = true for a prefix of a longer identifier")
		}
	})

	t.Run("whole identifier matches", func(t *testing.T) {
		v, err := p.Check(ctx, Query{Name: "FooBarBaz"})
		if err != nil {
			t.Fatalf("Check() error: %v", err)
		}
		if !v.Confirmed {
			t.Error("Confirmed = false for the full identifier")
		}
	})

	t.Run("unknown symbol", func(t *testing.T) {
		v, err := p.Check(ctx, Query{Name: "NeverMentioned"})
		if err != nil {
			t.Fatalf("Check() error: %v", err)
		}
		if v.Confirmed {
			t.Error("Confirmed = true for text that appears nowhere")
		}
	})

	t.Run("scoped hit", func(t *testing.T) {
		v, err := p.Check(ctx, Query{Name: "ComputeRate", FileScope: "docs/api.md"})
		if err != nil {
			t.Fatalf("Check() error: %v", err)
		}
		if !v.Confirmed {
			t.Error("Confirmed = false for a scoped hit")
		}
	})

	t.Run("scoped miss", func(t *testing.T) {
		v, err := p.Check(ctx, Query{Name: "ComputeRate", FileScope: "docs/notes.md"})
		if err != nil {
			t.Fatalf("Check() error: %v", err)
		}
		if v.Confirmed {
			t.Error("Confirmed = true for a scope without the word")
		}
	})

	t.Run("missing scoped file is unconfirmed", func(t *testing.T) {
		v, err := p.Check(ctx, Query{Name: "ComputeRate", FileScope: "docs/ghost.md"})
		if err != nil {
			t.Fatalf("Check() error: %v", err)
		}
		if v.Confirmed {
			t.Error("Confirmed = true for a missing scope")
		}
	})

	t.Run("empty name is caller misuse", func(t *testing.T) {
		_, err := p.Check(ctx, Query{})
		if !errors.Is(err, ErrInvalidQuery) {
			t.Fatalf("Check() error = %v, want ErrInvalidQuery", err)
		}
	})
}

func TestRawTextProbe_SkipsBinary(t *testing.T) {
	ws := writeWorkspace(t, map[string]string{
		"blob.bin": "Secret\x00Symbol mentioned only here",
	})
	p := NewRawTextProbe(ws)

	v, err := p.Check(context.Background(), Query{Name: "Symbol"})
	if err != nil {
		t.Fatalf("Check() error: %v", err)
	}
	if v.Confirmed {
		t.Error("Confirmed = true from a binary file")
	}
}

func TestRawTextProbe_SkipsOversize(t *testing.T) {
	ws := writeWorkspace(t, map[string]string{
		"big.txt": "WindowSize appears in a file past the size limit\n",
	})
	p := NewRawTextProbe(ws, WithRawTextMaxFileSize(16))

	v, err := p.Check(context.Background(), Query{Name: "WindowSize"})
	if err != nil {
		t.Fatalf("Check() error: %v", err)
	}
	if v.Confirmed {
		t.Error("Confirmed = true from a file over the size limit")
	}
}

func TestRawTextProbe_FileBudget(t *testing.T) {
	ws := writeWorkspace(t, map[string]string{
		"a.txt": "EarlySymbol\n",
		"b.txt": "LateSymbol\n",
	})
	p := NewRawTextProbe(ws, WithRawTextMaxFiles(1))
	ctx := context.Background()

	v, err := p.Check(ctx, Query{Name: "EarlySymbol"})
	if err != nil {
		t.Fatalf("Check() error: %v", err)
	}
	if !v.Confirmed {
		t.Error("Confirmed = false for a symbol in the first file")
	}

	v, err = p.Check(ctx, Query{Name: "LateSymbol"})
	if err != nil {
		t.Fatalf("Check() error: %v", err)
	}
	if v.Confirmed {
		t.Error("Confirmed = true for a symbol past the file budget")
	}
}

func TestRawTextProbe_MissingWorkspace(t *testing.T) {
	p := NewRawTextProbe("/nonexistent/workspace")

	v, err := p.Check(context.Background(), Query{Name: "Anything"})
	if err != nil {
		t.Fatalf("Check() error: %v, the raw text probe never abstains", err)
	}
	if v.Confirmed {
		t.Error("Confirmed = true for a workspace that does not exist")
	}
}
