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
	"testing"
)

const testTSSimple = `import { Logger } from './logger';

export interface Probe {
  name: string;
  check(target: string): Promise<boolean>;
}

export type ProbeResult = {
  confirmed: boolean;
  line: number;
};

enum Severity {
  Low,
  High,
}

export class Registry {
  private probes: Probe[] = [];

  register(p: Probe): void {
    this.probes.push(p);
  }
}

export function defaultRegistry(): Registry {
  return new Registry();
}
`

const testTSX = `import React from 'react';

export function StatusBadge(props: { ok: boolean }) {
  return <span>{props.ok ? 'ok' : 'failed'}</span>;
}
`

func TestTypeScriptParser_Parse_Simple(t *testing.T) {
	parser := NewTypeScriptParser()
	ctx := context.Background()

	result, err := parser.Parse(ctx, []byte(testTSSimple), "registry.ts")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Language != "typescript" {
		t.Errorf("Language = %q, want typescript", result.Language)
	}

	probe := findByName(result.Symbols, "Probe")
	if probe == nil {
		t.Fatal("expected Probe symbol")
	}
	if probe.Kind != SymbolKindInterface {
		t.Errorf("Probe kind = %v, want interface", probe.Kind)
	}
	if !probe.Exported {
		t.Error("Probe should be exported")
	}

	probeResult := findByName(result.Symbols, "ProbeResult")
	if probeResult == nil || probeResult.Kind != SymbolKindType {
		t.Errorf("ProbeResult should be a type alias, got %+v", probeResult)
	}

	severity := findByName(result.Symbols, "Severity")
	if severity == nil {
		t.Fatal("expected Severity symbol")
	}
	if severity.Kind != SymbolKindEnum {
		t.Errorf("Severity kind = %v, want enum", severity.Kind)
	}
	if severity.Exported {
		t.Error("Severity should not be exported")
	}

	registry := findByName(result.Symbols, "Registry")
	if registry == nil || registry.Kind != SymbolKindClass {
		t.Fatalf("Registry should be a class, got %+v", registry)
	}

	register := findByName(result.Symbols, "register")
	if register == nil {
		t.Fatal("expected register symbol")
	}
	if register.Kind != SymbolKindMethod || register.Container != "Registry" {
		t.Errorf("register = %+v, want method in Registry", register)
	}

	factory := findByName(result.Symbols, "defaultRegistry")
	if factory == nil || factory.Kind != SymbolKindFunction {
		t.Errorf("defaultRegistry should be a function, got %+v", factory)
	}
}

func TestTypeScriptParser_Parse_TSX(t *testing.T) {
	parser := NewTypeScriptParser()
	ctx := context.Background()

	result, err := parser.Parse(ctx, []byte(testTSX), "badge.tsx")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Errors) != 0 {
		t.Errorf("tsx parse reported errors: %v", result.Errors)
	}

	badge := findByName(result.Symbols, "StatusBadge")
	if badge == nil {
		t.Fatal("expected StatusBadge symbol")
	}
	if badge.Kind != SymbolKindFunction {
		t.Errorf("StatusBadge kind = %v, want function", badge.Kind)
	}
	if !badge.Exported {
		t.Error("StatusBadge should be exported")
	}

	if len(result.Imports) != 1 || result.Imports[0].Path != "react" {
		t.Errorf("expected react import, got %+v", result.Imports)
	}
}

func TestTypeScriptParser_Parse_InvalidUTF8(t *testing.T) {
	parser := NewTypeScriptParser()
	_, err := parser.Parse(context.Background(), []byte(testInvalidUTF8), "bad.ts")
	if !errors.Is(err, ErrInvalidContent) {
		t.Errorf("expected ErrInvalidContent, got %v", err)
	}
}

func TestTypeScriptParser_LanguageAndExtensions(t *testing.T) {
	parser := NewTypeScriptParser()
	if parser.Language() != "typescript" {
		t.Errorf("Language() = %q, want typescript", parser.Language())
	}
	exts := parser.Extensions()
	want := []string{".ts", ".tsx", ".mts", ".cts"}
	if len(exts) != len(want) {
		t.Fatalf("Extensions() = %v, want %v", exts, want)
	}
	for i := range want {
		if exts[i] != want[i] {
			t.Errorf("Extensions()[%d] = %q, want %q", i, exts[i], want[i])
		}
	}
}
