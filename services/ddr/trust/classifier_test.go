// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package trust

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/AleutianAI/ddr/services/ddr/probe"
	"github.com/AleutianAI/ddr/services/ddr/validate"
	"github.com/AleutianAI/ddr/services/ddr/verify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// locatedResult builds a single-verdict result whose best location
// came from the given probe.
func locatedResult(id probe.Identity, path string, line int, sig string) *validate.Result {
	loc := probe.Location{FilePath: path, StartLine: line, EndLine: line + 2}
	cit := loc.Citation()
	return &validate.Result{
		ConfirmingCount: 1,
		TotalChecked:    1,
		Confidence:      1.0,
		BestLocation:    &cit,
		BestSignature:   sig,
		Verdicts: []probe.Verdict{
			{Probe: id, Confirmed: true, Location: &loc, Signature: sig},
		},
	}
}

// bareResult builds a result confirmed only by the raw text probe, so
// it carries no location.
func bareResult() *validate.Result {
	return &validate.Result{
		ConfirmingCount: 1,
		TotalChecked:    1,
		Confidence:      1.0,
		Verdicts: []probe.Verdict{
			{Probe: probe.RawText, Confirmed: true},
		},
	}
}

// emptyResult builds a result where every probe answered and none
// confirmed.
func emptyResult() *validate.Result {
	return &validate.Result{
		TotalChecked: 4,
		Verdicts: []probe.Verdict{
			{Probe: probe.Structural},
			{Probe: probe.Syntax},
			{Probe: probe.LanguageServer},
			{Probe: probe.RawText},
		},
	}
}

func TestClassify(t *testing.T) {
	structural := locatedResult(probe.Structural, "/ws/metric/session.go", 17, "func NewSession(id string) *Session")
	lsp := locatedResult(probe.LanguageServer, "/ws/metric/session.go", 17, "func NewSession(id string) *Session")

	tests := []struct {
		name   string
		result *validate.Result
		prov   Provenance
		want   TrustClass
	}{
		{"extracted with structural location", structural, Extracted, HardContent},
		{"extracted with language server location", lsp, Extracted, HardContent},
		{"extracted with text-only confirmation", bareResult(), Extracted, Rejected},
		{"extracted with zero confirmations", emptyResult(), Extracted, Rejected},
		{"generated checked and confirmed", structural, GeneratedChecked, VerifiedSoft},
		{"generated checked text-only", bareResult(), GeneratedChecked, VerifiedSoft},
		{"generated checked zero confirmations", emptyResult(), GeneratedChecked, Rejected},
		{"generated unchecked despite full agreement", structural, GeneratedUnchecked, Rejected},
		{"nil result", nil, Extracted, Rejected},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Classify(tc.result, tc.prov))
		})
	}
}

func TestClassify_HandBuiltLocationWithoutVerdict(t *testing.T) {
	// A best location that no confirming verdict produced cannot be
	// attributed to a non-generative probe, so hard content is
	// refused.
	r := bareResult()
	r.BestLocation = &verify.Citation{FilePath: "/ws/a.go", Line: 3}

	assert.Equal(t, Rejected, Classify(r, Extracted))
}

func TestClassification_Accepted(t *testing.T) {
	assert.False(t, Classification{Class: Rejected}.Accepted())
	assert.True(t, Classification{Class: VerifiedSoft}.Accepted())
	assert.True(t, Classification{Class: HardContent}.Accepted())
}

func TestNewClassifier(t *testing.T) {
	c := NewClassifier(nil)
	require.NotNil(t, c)
	require.NotNil(t, c.resolver)
}

// citedFixture writes a real source file and returns a result citing
// line 3 of it.
func citedFixture(t *testing.T) (*validate.Result, string) {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "session.go")
	content := "package metric\n\nfunc NewSession(id string) *Session {\n\treturn &Session{id: id}\n}\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return locatedResult(probe.Structural, path, 3, "func NewSession(id string) *Session"), path
}

func TestClassifier_ClassifyVerified_HardContent(t *testing.T) {
	result, path := citedFixture(t)
	c := NewClassifier(verify.NewResolver())

	got, err := c.ClassifyVerified(context.Background(), result, Extracted)
	require.NoError(t, err)

	assert.Equal(t, HardContent, got.Class)
	require.NotNil(t, got.Citation)
	assert.Equal(t, path, got.Citation.FilePath)
	assert.Equal(t, 3, got.Citation.Line)
	assert.NoError(t, got.CitationErr)
	assert.True(t, got.Accepted())
}

func TestClassifier_ClassifyVerified_MissingFileDowngrades(t *testing.T) {
	result := locatedResult(probe.Structural, "/nonexistent/gone.go", 3, "func Gone()")
	var buf bytes.Buffer
	c := NewClassifier(verify.NewResolver(),
		WithClassifierLogger(slog.New(slog.NewTextHandler(&buf, nil))))

	got, err := c.ClassifyVerified(context.Background(), result, Extracted)
	require.NoError(t, err)

	assert.Equal(t, Rejected, got.Class)
	assert.Nil(t, got.Citation)
	assert.ErrorIs(t, got.CitationErr, verify.ErrFileMissing)
	assert.Contains(t, buf.String(), "downgrading")
}

func TestClassifier_ClassifyVerified_LineOutOfRangeDowngrades(t *testing.T) {
	result, _ := citedFixture(t)
	result.BestLocation.Line = 500
	result.Verdicts[0].Location.StartLine = 500
	c := NewClassifier(verify.NewResolver())

	got, err := c.ClassifyVerified(context.Background(), result, Extracted)
	require.NoError(t, err)

	assert.Equal(t, Rejected, got.Class)
	assert.ErrorIs(t, got.CitationErr, verify.ErrLineOutOfRange)
}

func TestClassifier_ClassifyVerified_RejectedSkipsResolution(t *testing.T) {
	// Unchecked generated claims reject before the citation is ever
	// read, so a dangling location does not surface as a citation
	// failure.
	result := locatedResult(probe.Structural, "/nonexistent/gone.go", 3, "func Gone()")
	c := NewClassifier(verify.NewResolver())

	got, err := c.ClassifyVerified(context.Background(), result, GeneratedUnchecked)
	require.NoError(t, err)

	assert.Equal(t, Rejected, got.Class)
	assert.Nil(t, got.Citation)
	assert.NoError(t, got.CitationErr)
}

func TestClassifier_ClassifyVerified_SoftWithoutCitation(t *testing.T) {
	c := NewClassifier(verify.NewResolver())

	got, err := c.ClassifyVerified(context.Background(), bareResult(), GeneratedChecked)
	require.NoError(t, err)

	assert.Equal(t, VerifiedSoft, got.Class)
	assert.Nil(t, got.Citation)
	assert.True(t, got.Accepted())
}

func TestClassifier_ClassifyVerified_SoftWithCitation(t *testing.T) {
	result, path := citedFixture(t)
	c := NewClassifier(verify.NewResolver())

	got, err := c.ClassifyVerified(context.Background(), result, GeneratedChecked)
	require.NoError(t, err)

	assert.Equal(t, VerifiedSoft, got.Class)
	require.NotNil(t, got.Citation)
	assert.Equal(t, path, got.Citation.FilePath)
}

func TestClassifier_ClassifyVerified_CanceledContext(t *testing.T) {
	result, _ := citedFixture(t)
	c := NewClassifier(verify.NewResolver())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.ClassifyVerified(ctx, result, Extracted)
	assert.ErrorIs(t, err, context.Canceled)
}
