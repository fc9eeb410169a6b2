// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package ddr

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// =============================================================================
// Prometheus Metrics for Retrieval
// =============================================================================

var (
	// retrievalLatency measures the time taken for one retrieval,
	// validation through classification and recording.
	// Labels: class (REJECTED, VERIFIED_SOFT, HARD_CONTENT)
	retrievalLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "ddr",
		Subsystem: "service",
		Name:      "retrieval_duration_seconds",
		Help:      "Retrieval latency in seconds",
		Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5},
	}, []string{"class"})

	// retrievalsTotal counts completed retrievals by trust class.
	// Labels: class (REJECTED, VERIFIED_SOFT, HARD_CONTENT)
	retrievalsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ddr",
		Subsystem: "service",
		Name:      "retrievals_total",
		Help:      "Total completed retrievals by trust class",
	}, []string{"class"})

	// sessionsTotal counts session lifecycle events.
	// Labels: mode (started, resumed)
	sessionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ddr",
		Subsystem: "service",
		Name:      "sessions_total",
		Help:      "Total sessions by how they started",
	}, []string{"mode"})

	// batchSize tracks the distribution of batch retrieval sizes.
	batchSize = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "ddr",
		Subsystem: "service",
		Name:      "batch_size",
		Help:      "Number of queries per batch retrieval",
		Buckets:   []float64{1, 2, 5, 10, 25, 50, 100},
	})

	// suggestionsTotal counts rejected retrievals that produced at
	// least one near-miss suggestion.
	suggestionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "ddr",
		Subsystem: "service",
		Name:      "suggestions_total",
		Help:      "Total rejected retrievals answered with near-miss suggestions",
	})
)

// =============================================================================
// Metrics Recording Functions
// =============================================================================

// RecordRetrieval records one completed retrieval.
//
// Inputs:
//
//	class - The trust class name the query was assigned.
//	durationSec - Duration in seconds.
func RecordRetrieval(class string, durationSec float64) {
	retrievalLatency.WithLabelValues(class).Observe(durationSec)
	retrievalsTotal.WithLabelValues(class).Inc()
}

// RecordSessionStart records a session lifecycle event.
//
// Inputs:
//
//	mode - "started" or "resumed".
func RecordSessionStart(mode string) {
	sessionsTotal.WithLabelValues(mode).Inc()
}

// RecordBatchSize records the size of a batch retrieval.
//
// Inputs:
//
//	n - Number of queries in the batch.
func RecordBatchSize(n int) {
	batchSize.Observe(float64(n))
}

// RecordSuggestions records a rejected retrieval that carried
// suggestions back to the caller.
func RecordSuggestions() {
	suggestionsTotal.Inc()
}
