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
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

var (
	tracer = otel.Tracer("aleutian.ddr.trust")
	meter  = otel.Meter("aleutian.ddr.trust")

	classificationsTotal  metric.Int64Counter
	citationFailuresTotal metric.Int64Counter

	metricsOnce sync.Once
	metricsErr  error
)

func initMetrics() {
	metricsOnce.Do(func() {
		classificationsTotal, metricsErr = meter.Int64Counter(
			"ddr_classifications_total",
			metric.WithDescription("Classified queries by trust class"),
		)
		if metricsErr != nil {
			return
		}
		citationFailuresTotal, metricsErr = meter.Int64Counter(
			"ddr_citation_failures_total",
			metric.WithDescription("Classifications downgraded because the citation failed to resolve"),
		)
	})
}

// recordClassification increments the class counter. Metric errors are
// silently skipped; classification never fails on telemetry.
func recordClassification(ctx context.Context, class TrustClass, downgraded bool) {
	initMetrics()
	if metricsErr != nil {
		return
	}
	classificationsTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("class", class.String()),
	))
	if downgraded {
		citationFailuresTotal.Add(ctx, 1)
	}
}

func startClassifySpan(ctx context.Context, p Provenance) (context.Context, trace.Span) {
	return tracer.Start(ctx, "trust.classify", trace.WithAttributes(
		attribute.String("provenance", p.String()),
	))
}
