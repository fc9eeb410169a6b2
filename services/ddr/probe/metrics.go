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
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// Package-level tracer and meter for probe checks.
var (
	tracer = otel.Tracer("aleutian.ddr.probe")
	meter  = otel.Meter("aleutian.ddr.probe")
)

// Check outcome labels.
const (
	outcomeConfirmed   = "confirmed"
	outcomeUnconfirmed = "unconfirmed"
	outcomeAbstained   = "abstained"
)

// Metrics for probe checks.
var (
	checkLatency metric.Float64Histogram
	checkTotal   metric.Int64Counter

	metricsOnce sync.Once
	metricsErr  error
)

// initMetrics initializes the metrics. Safe to call multiple times.
func initMetrics() error {
	metricsOnce.Do(func() {
		var err error

		checkLatency, err = meter.Float64Histogram(
			"ddr_probe_check_duration_seconds",
			metric.WithDescription("Duration of probe checks"),
			metric.WithUnit("s"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		checkTotal, err = meter.Int64Counter(
			"ddr_probe_checks_total",
			metric.WithDescription("Total probe checks by probe and outcome"),
		)
		if err != nil {
			metricsErr = err
			return
		}
	})
	return metricsErr
}

// checkOutcome maps a verdict/error pair to its metric label.
func checkOutcome(v Verdict, err error) string {
	switch {
	case err != nil:
		return outcomeAbstained
	case v.Confirmed:
		return outcomeConfirmed
	default:
		return outcomeUnconfirmed
	}
}

// recordCheckMetrics records one probe check.
//
// Silently skips recording when metric initialization failed; check
// behavior never depends on telemetry being available.
func recordCheckMetrics(ctx context.Context, id Identity, duration time.Duration, v Verdict, err error) {
	if initErr := initMetrics(); initErr != nil {
		return
	}

	attrs := metric.WithAttributes(
		attribute.String("probe", id.String()),
		attribute.String("outcome", checkOutcome(v, err)),
	)

	checkLatency.Record(ctx, duration.Seconds(), attrs)
	checkTotal.Add(ctx, 1, attrs)
}

// startCheckSpan starts a trace span for one probe check.
func startCheckSpan(ctx context.Context, id Identity, q Query) (context.Context, trace.Span) {
	return tracer.Start(ctx, "probe.check",
		trace.WithAttributes(
			attribute.String("probe", id.String()),
			attribute.String("symbol", q.Name),
			attribute.String("file_scope", q.FileScope),
		))
}
