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
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTrustClass_String(t *testing.T) {
	assert.Equal(t, "REJECTED", Rejected.String())
	assert.Equal(t, "VERIFIED_SOFT", VerifiedSoft.String())
	assert.Equal(t, "HARD_CONTENT", HardContent.String())
	assert.Equal(t, "UNKNOWN", TrustClass(42).String())
}

func TestTrustClass_ZeroValueIsRejected(t *testing.T) {
	var c TrustClass
	assert.Equal(t, Rejected, c)
}

func TestParseTrustClass(t *testing.T) {
	for _, class := range []TrustClass{Rejected, VerifiedSoft, HardContent} {
		assert.Equal(t, class, ParseTrustClass(class.String()))
	}
	assert.Equal(t, Rejected, ParseTrustClass("bogus"))
	assert.Equal(t, Rejected, ParseTrustClass(""))
}

func TestProvenance_String(t *testing.T) {
	assert.Equal(t, "GENERATED_UNCHECKED", GeneratedUnchecked.String())
	assert.Equal(t, "GENERATED_CHECKED", GeneratedChecked.String())
	assert.Equal(t, "EXTRACTED", Extracted.String())
	assert.Equal(t, "UNKNOWN", Provenance(42).String())
}

func TestParseProvenance(t *testing.T) {
	for _, p := range []Provenance{GeneratedUnchecked, GeneratedChecked, Extracted} {
		assert.Equal(t, p, ParseProvenance(p.String()))
	}
	assert.Equal(t, GeneratedUnchecked, ParseProvenance("bogus"))
}
