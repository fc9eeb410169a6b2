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
	"context"
	"errors"
	"log/slog"

	"github.com/AleutianAI/ddr/services/ddr/probe"
	"github.com/AleutianAI/ddr/services/ddr/validate"
	"github.com/AleutianAI/ddr/services/ddr/verify"
	"go.opentelemetry.io/otel/attribute"
)

// Classify maps a validation result and its provenance onto a trust
// class.
//
// Description:
//
//	The decision table:
//
//	  - HardContent: at least one confirming probe, provenance
//	    Extracted, and a best location produced by a non-generative
//	    probe (structural, syntax, or language server).
//	  - VerifiedSoft: at least one confirming probe and provenance
//	    GeneratedChecked.
//	  - Rejected: everything else. That includes unchecked generated
//	    claims regardless of agreement, extracted claims with no
//	    citable declaration site, and any result with zero
//	    confirmations.
//
// Inputs:
//
//	result - The folded probe verdicts. Nil is treated as zero
//	         confirmations.
//	p - How the claim came to exist.
//
// Outputs:
//
//	TrustClass - The assigned class.
//
// Thread Safety:
//
//	Pure function, safe for concurrent use.
func Classify(result *validate.Result, p Provenance) TrustClass {
	if result == nil || !result.Confirmed() {
		return Rejected
	}

	switch p {
	case Extracted:
		// Raw text hits carry no location, so a present best location
		// always came from a structural, syntax, or language-server
		// verdict. The probe check guards against callers that build
		// results by hand.
		if from, ok := result.LocationProbe(); ok && from != probe.RawText {
			return HardContent
		}
		return Rejected
	case GeneratedChecked:
		return VerifiedSoft
	default:
		return Rejected
	}
}

// Classification is the full outcome of classifying one query.
type Classification struct {
	// Class is the assigned trust class.
	Class TrustClass

	// Citation is the resolved declaration site, nil when Class is
	// Rejected or no location was confirmed. When non-nil it has been
	// checked against the filesystem.
	Citation *verify.Citation

	// CitationErr records why a citation failed to resolve when the
	// classification was downgraded to Rejected for that reason. Nil
	// otherwise.
	CitationErr error
}

// Accepted reports whether the classified content may be served.
func (c Classification) Accepted() bool {
	return c.Class != Rejected
}

// Classifier assigns trust classes and verifies the citations they
// depend on.
//
// Description:
//
//	Wraps the pure Classify table with citation resolution: a class
//	that depends on a location is only granted if that location still
//	resolves against the filesystem. A citation that fails to resolve
//	downgrades the query to Rejected and the failure is logged, never
//	swallowed.
//
// Thread Safety:
//
//	Safe for concurrent use.
type Classifier struct {
	resolver *verify.Resolver
	logger   *slog.Logger
}

// ClassifierOption configures a Classifier.
type ClassifierOption func(*Classifier)

// WithClassifierLogger sets the logger for citation failures.
func WithClassifierLogger(l *slog.Logger) ClassifierOption {
	return func(c *Classifier) {
		if l != nil {
			c.logger = l
		}
	}
}

// NewClassifier creates a Classifier backed by the given resolver.
//
// Inputs:
//
//	resolver - Citation resolver. Nil gets a default resolver with a
//	           fresh cache.
//	opts - Optional configuration.
func NewClassifier(resolver *verify.Resolver, opts ...ClassifierOption) *Classifier {
	c := &Classifier{
		resolver: resolver,
		logger:   slog.Default(),
	}
	if c.resolver == nil {
		c.resolver = verify.NewResolver()
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ClassifyVerified classifies a result and resolves its citation.
//
// Description:
//
//	Applies the Classify table, then verifies the best location
//	against the filesystem for any non-rejected class that carries
//	one. Resolution failure downgrades the class to Rejected; the
//	cause is logged at warn level and returned in
//	Classification.CitationErr so callers can account for it.
//
// Inputs:
//
//	ctx - Context for cancellation.
//	result - The folded probe verdicts.
//	p - How the claim came to exist.
//
// Outputs:
//
//	Classification - Class, verified citation, and any downgrade
//	                 cause.
//	error - Context cancellation only. Citation failures are not
//	        errors here; they are downgrades.
//
// Thread Safety:
//
//	Safe for concurrent use.
func (c *Classifier) ClassifyVerified(ctx context.Context, result *validate.Result, p Provenance) (Classification, error) {
	ctx, span := startClassifySpan(ctx, p)
	defer span.End()

	if err := ctx.Err(); err != nil {
		return Classification{}, err
	}

	class := Classify(result, p)
	if class == Rejected {
		recordClassification(ctx, Rejected, false)
		span.SetAttributes(attribute.String("class", Rejected.String()))
		return Classification{Class: Rejected}, nil
	}

	out := Classification{Class: class}
	if result.BestLocation != nil {
		if err := c.resolver.Resolve(ctx, *result.BestLocation); err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return Classification{}, err
			}
			c.logger.Warn("Citation failed to resolve, downgrading to rejected",
				"citation", result.BestLocation.String(),
				"class", class.String(),
				"error", err)
			recordClassification(ctx, Rejected, true)
			span.SetAttributes(attribute.String("class", Rejected.String()))
			return Classification{Class: Rejected, CitationErr: err}, nil
		}
		cited := *result.BestLocation
		out.Citation = &cited
	}

	recordClassification(ctx, out.Class, false)
	span.SetAttributes(attribute.String("class", out.Class.String()))
	return out, nil
}
