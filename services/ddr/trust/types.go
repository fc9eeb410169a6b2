// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package trust maps validation results and provenance onto trust
// classes.
//
// # Description
//
// The classifier is the gate between "some probes agreed" and
// "content may be served": extracted symbols with a citable
// declaration site become hard content, generated-then-checked claims
// become verified-soft, and everything else is rejected. The decision
// table is pure; the side effects (metric accounting, journaling)
// belong to the callers.
//
// # Thread Safety
//
// All types in this package are safe for concurrent use after
// initialization.
package trust

// TrustClass is the served-content trust level of one classified
// query.
//
// Description:
//
//	Higher values indicate stronger grounding. The zero value is
//	Rejected: content is untrusted until classification proves
//	otherwise.
//
// Thread Safety:
//
//	TrustClass is an immutable value type, safe for concurrent use.
type TrustClass int

const (
	// Rejected content must not be served or cited.
	// Sources: zero confirming probes, unchecked generated claims,
	// or citations that fail verification.
	// Treatment: count against the session's hallucination rate.
	Rejected TrustClass = iota

	// VerifiedSoft content is a generated claim that passed an
	// external grounding check and at least one probe confirmation.
	// Treatment: servable, cited when a location is known.
	VerifiedSoft

	// HardContent is extracted directly from source with a citable
	// declaration site confirmed by a non-generative probe.
	// Treatment: servable with a mandatory citation.
	HardContent
)

// String returns the string representation of TrustClass.
func (t TrustClass) String() string {
	switch t {
	case Rejected:
		return "REJECTED"
	case VerifiedSoft:
		return "VERIFIED_SOFT"
	case HardContent:
		return "HARD_CONTENT"
	default:
		return "UNKNOWN"
	}
}

// ParseTrustClass converts a class name back to a TrustClass.
//
// Unrecognized names return Rejected, the conservative default.
func ParseTrustClass(s string) TrustClass {
	switch s {
	case "VERIFIED_SOFT":
		return VerifiedSoft
	case "HARD_CONTENT":
		return HardContent
	default:
		return Rejected
	}
}

// Provenance records how a symbol claim came to exist.
//
// Description:
//
//	Extracted claims were read directly out of source. Generated
//	claims came from a generative step; the external sandbox check
//	(outside this package) splits those into checked and unchecked.
//
// Thread Safety:
//
//	Provenance is an immutable value type, safe for concurrent use.
type Provenance int

const (
	// GeneratedUnchecked is a generative claim with no grounding
	// check. Always rejected.
	GeneratedUnchecked Provenance = iota

	// GeneratedChecked is a generative claim that passed the external
	// sandbox/grounding check.
	GeneratedChecked

	// Extracted is a claim read directly from source.
	Extracted
)

// String returns the string representation of Provenance.
func (p Provenance) String() string {
	switch p {
	case GeneratedUnchecked:
		return "GENERATED_UNCHECKED"
	case GeneratedChecked:
		return "GENERATED_CHECKED"
	case Extracted:
		return "EXTRACTED"
	default:
		return "UNKNOWN"
	}
}

// ParseProvenance converts a provenance name back to a Provenance.
//
// Unrecognized names return GeneratedUnchecked, the conservative
// default.
func ParseProvenance(s string) Provenance {
	switch s {
	case "GENERATED_CHECKED":
		return GeneratedChecked
	case "EXTRACTED":
		return Extracted
	default:
		return GeneratedUnchecked
	}
}
