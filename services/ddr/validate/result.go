// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package validate

import (
	"github.com/AleutianAI/ddr/services/ddr/probe"
	"github.com/AleutianAI/ddr/services/ddr/verify"
)

// HighConfidenceAgreement is how many sources must confirm a symbol
// before the result counts as high confidence.
const HighConfidenceAgreement = 2

// Result aggregates every probe verdict for one query.
//
// Invariants: ConfirmingCount <= TotalChecked, Confidence in [0,1].
// Abstaining probes appear in Abstained and in none of the counts.
type Result struct {
	// ConfirmingCount is how many probes confirmed the symbol.
	ConfirmingCount int

	// TotalChecked is how many probes returned a verdict. Abstentions
	// are excluded.
	TotalChecked int

	// Confidence is ConfirmingCount over TotalChecked, zero when
	// nothing was checked.
	Confidence float64

	// HighConfidence reports agreement from at least two sources.
	HighConfidence bool

	// BestLocation is the citation from the most trusted confirming
	// probe that produced one. Nil when no confirming probe carried
	// a location.
	BestLocation *verify.Citation

	// BestSignature is the signature attached to the winning verdict,
	// when it carried one.
	BestSignature string

	// Verdicts are the individual probe verdicts in trust order.
	Verdicts []probe.Verdict

	// Abstained lists the probes that could not run, in trust order.
	Abstained []probe.Identity
}

// Confirmed reports whether at least one probe confirmed the symbol.
func (r *Result) Confirmed() bool {
	return r.ConfirmingCount > 0
}

// AbstainedBy reports whether a specific probe abstained.
func (r *Result) AbstainedBy(id probe.Identity) bool {
	for _, a := range r.Abstained {
		if a == id {
			return true
		}
	}
	return false
}

// VerdictFor returns the verdict a probe produced, if it produced
// one.
func (r *Result) VerdictFor(id probe.Identity) (probe.Verdict, bool) {
	for _, v := range r.Verdicts {
		if v.Probe == id {
			return v, true
		}
	}
	return probe.Verdict{}, false
}

// LocationProbe returns which probe produced the best location.
// False when the result has no location.
func (r *Result) LocationProbe() (probe.Identity, bool) {
	if r.BestLocation == nil {
		return 0, false
	}
	for _, v := range r.Verdicts {
		if v.Confirmed && v.Location != nil && v.Location.Citation() == *r.BestLocation {
			return v.Probe, true
		}
	}
	return 0, false
}
