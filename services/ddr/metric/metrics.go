// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package metric

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelmetric "go.opentelemetry.io/otel/metric"
)

var (
	meter = otel.Meter("aleutian.ddr.metric")

	recordsTotal     otelmetric.Int64Counter
	breachesTotal    otelmetric.Int64Counter
	rateObservations otelmetric.Float64Histogram

	metricsOnce sync.Once
	metricsErr  error
)

func initMetrics() {
	metricsOnce.Do(func() {
		recordsTotal, metricsErr = meter.Int64Counter(
			"ddr_session_records_total",
			otelmetric.WithDescription("Classification records by trust class"),
		)
		if metricsErr != nil {
			return
		}
		breachesTotal, metricsErr = meter.Int64Counter(
			"ddr_threshold_breaches_total",
			otelmetric.WithDescription("Sessions that breached the hallucination threshold"),
		)
		if metricsErr != nil {
			return
		}
		rateObservations, metricsErr = meter.Float64Histogram(
			"ddr_hallucination_rate",
			otelmetric.WithDescription("Session hallucination rate observed after each record"),
		)
	})
}

// recordSample reports one accounting update. Metric errors are
// silently skipped; accounting never fails on telemetry.
func recordSample(ctx context.Context, class string, rate float64) {
	initMetrics()
	if metricsErr != nil {
		return
	}
	recordsTotal.Add(ctx, 1, otelmetric.WithAttributes(
		attribute.String("class", class),
	))
	rateObservations.Record(ctx, rate)
}

func recordBreach(ctx context.Context) {
	initMetrics()
	if metricsErr != nil {
		return
	}
	breachesTotal.Add(ctx, 1)
}
