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
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/AleutianAI/ddr/services/ddr/probe"
)

// Package-level tracer and meter for validations.
var (
	tracer = otel.Tracer("aleutian.ddr.validate")
	meter  = otel.Meter("aleutian.ddr.validate")
)

// Validation outcome labels.
const (
	outcomeHighConfidence = "high_confidence"
	outcomeConfirmed      = "confirmed"
	outcomeUnconfirmed    = "unconfirmed"
)

// Metrics for validations.
var (
	validationLatency metric.Float64Histogram
	validationTotal   metric.Int64Counter
	abstentionTotal   metric.Int64Counter

	metricsOnce sync.Once
	metricsErr  error
)

// initMetrics initializes the metrics. Safe to call multiple times.
func initMetrics() error {
	metricsOnce.Do(func() {
		var err error

		validationLatency, err = meter.Float64Histogram(
			"ddr_validation_duration_seconds",
			metric.WithDescription("Duration of full validations"),
			metric.WithUnit("s"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		validationTotal, err = meter.Int64Counter(
			"ddr_validations_total",
			metric.WithDescription("Total validations by outcome"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		abstentionTotal, err = meter.Int64Counter(
			"ddr_validation_abstentions_total",
			metric.WithDescription("Probe abstentions observed during validation"),
		)
		if err != nil {
			metricsErr = err
			return
		}
	})
	return metricsErr
}

// validationOutcome maps a result to its metric label.
func validationOutcome(r *Result) string {
	switch {
	case r.HighConfidence:
		return outcomeHighConfidence
	case r.ConfirmingCount > 0:
		return outcomeConfirmed
	default:
		return outcomeUnconfirmed
	}
}

// recordValidationMetrics records one completed validation.
//
// Silently skips recording when metric initialization failed;
// validation behavior never depends on telemetry being available.
func recordValidationMetrics(ctx context.Context, duration time.Duration, r *Result) {
	if initErr := initMetrics(); initErr != nil {
		return
	}

	validationLatency.Record(ctx, duration.Seconds(), metric.WithAttributes(
		attribute.String("outcome", validationOutcome(r)),
	))
	validationTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("outcome", validationOutcome(r)),
	))
	for _, id := range r.Abstained {
		abstentionTotal.Add(ctx, 1, metric.WithAttributes(
			attribute.String("probe", id.String()),
		))
	}
}

// startValidateSpan starts a trace span for one validation.
func startValidateSpan(ctx context.Context, q probe.Query, probeCount int) (context.Context, trace.Span) {
	return tracer.Start(ctx, "validate.run",
		trace.WithAttributes(
			attribute.String("symbol", q.Name),
			attribute.String("file_scope", q.FileScope),
			attribute.Int("probes", probeCount),
		))
}
