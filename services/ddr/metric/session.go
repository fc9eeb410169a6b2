// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package metric keeps per-session hallucination accounting.
//
// # Description
//
// A Session is the only mutable shared state in the verification
// pipeline: every classified query increments exactly one of its two
// counters, and the derived rate drives the threshold check that can
// fail a session. One Session per logical batch of related queries,
// never a process-wide singleton shared across unrelated work.
//
// # Thread Safety
//
// All Session methods are safe for concurrent use. Counter updates
// are serialized by a single mutex so increments are never lost and
// the rate never observes a numerator without its denominator.
package metric

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/AleutianAI/ddr/services/ddr/trust"
	"github.com/google/uuid"
)

const (
	// DefaultThreshold is the hallucination rate at which a session
	// fails its threshold check.
	DefaultThreshold = 0.02

	// DefaultMinSamples is the record count below which the threshold
	// is never enforced, so a single early rejection cannot fail a
	// session at an instantaneous rate of 1.0.
	DefaultMinSamples = 5
)

// Snapshot is a consistent point-in-time view of a session's
// accounting.
type Snapshot struct {
	// SessionID identifies the session the snapshot was taken from.
	SessionID string

	// Validated is the count of non-rejected classifications.
	Validated int

	// Rejected is the count of rejected classifications.
	Rejected int

	// Rate is rejected / (validated + rejected), 0.0 when no records
	// exist.
	Rate float64

	// Breached reports whether the session has failed a threshold
	// check.
	Breached bool
}

// Total returns the number of recorded classifications.
func (s Snapshot) Total() int {
	return s.Validated + s.Rejected
}

// Session accumulates validated and rejected counts for one bounded
// unit of related queries.
type Session struct {
	id         string
	threshold  float64
	minSamples int
	logger     *slog.Logger

	mu        sync.Mutex
	validated int
	rejected  int
	breached  bool
}

// SessionOption configures a Session.
type SessionOption func(*Session)

// WithThreshold sets the failure threshold. Values outside (0, 1] are
// ignored in favor of the default.
func WithThreshold(t float64) SessionOption {
	return func(s *Session) {
		if t > 0 && t <= 1 {
			s.threshold = t
		}
	}
}

// WithMinSamples sets the minimum record count before the threshold
// is enforced. Values below 1 are ignored.
func WithMinSamples(n int) SessionOption {
	return func(s *Session) {
		if n >= 1 {
			s.minSamples = n
		}
	}
}

// WithSessionID sets the session identifier, replacing the generated
// one. Used when resuming a journaled session.
func WithSessionID(id string) SessionOption {
	return func(s *Session) {
		if id != "" {
			s.id = id
		}
	}
}

// WithSessionLogger sets the logger for threshold and lifecycle
// events.
func WithSessionLogger(l *slog.Logger) SessionOption {
	return func(s *Session) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewSession creates an empty accounting session with a generated ID.
func NewSession(opts ...SessionOption) *Session {
	s := &Session{
		id:         uuid.NewString(),
		threshold:  DefaultThreshold,
		minSamples: DefaultMinSamples,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ID returns the session identifier.
func (s *Session) ID() string {
	return s.id
}

// Threshold returns the configured failure threshold.
func (s *Session) Threshold() float64 {
	return s.threshold
}

// MinSamples returns the configured minimum sample count.
func (s *Session) MinSamples() int {
	return s.minSamples
}

// Record folds one classification into the session's counts.
//
// Description:
//
//	Increments the validated counter for any non-rejected class and
//	the rejected counter otherwise. The update and the returned
//	snapshot happen under one lock acquisition, so the snapshot's
//	rate always reflects the record that produced it.
//
// Inputs:
//
//	ctx - Context for telemetry only; the update itself is not
//	      cancellable because a partial record must be impossible.
//	class - The trust class assigned to the query.
//
// Outputs:
//
//	Snapshot - The session state immediately after this record.
//
// Thread Safety:
//
//	Safe for concurrent use.
func (s *Session) Record(ctx context.Context, class trust.TrustClass) Snapshot {
	s.mu.Lock()
	if class == trust.Rejected {
		s.rejected++
	} else {
		s.validated++
	}
	snap := s.snapshotLocked()
	s.mu.Unlock()

	recordSample(ctx, class.String(), snap.Rate)
	s.logger.Debug("Classification recorded",
		"session", s.id,
		"class", class.String(),
		"rate", snap.Rate,
		"samples", snap.Total())
	return snap
}

// Rate returns the current hallucination rate, 0.0 for an empty
// session.
func (s *Session) Rate() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return rate(s.validated, s.rejected)
}

// Counts returns the validated and rejected counters.
func (s *Session) Counts() (validated, rejected int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.validated, s.rejected
}

// Snapshot returns a consistent view of the session state.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Session) snapshotLocked() Snapshot {
	return Snapshot{
		SessionID: s.id,
		Validated: s.validated,
		Rejected:  s.rejected,
		Rate:      rate(s.validated, s.rejected),
		Breached:  s.breached,
	}
}

// CheckThreshold fails when the session's rate has reached the
// threshold.
//
// Description:
//
//	Returns ErrThresholdExceeded when the rate is at or above the
//	threshold and at least MinSamples records exist. A breach is
//	sticky: once a session has failed, every later check fails until
//	Reset, regardless of how the rate moves. Below the minimum sample
//	count the check always passes.
//
// Inputs:
//
//	ctx - Context for telemetry only.
//
// Outputs:
//
//	error - Nil, or ErrThresholdExceeded wrapped with the offending
//	        rate and sample count.
//
// Thread Safety:
//
//	Safe for concurrent use.
func (s *Session) CheckThreshold(ctx context.Context) error {
	s.mu.Lock()
	r := rate(s.validated, s.rejected)
	total := s.validated + s.rejected
	firstBreach := false
	if !s.breached && total >= s.minSamples && r >= s.threshold {
		s.breached = true
		firstBreach = true
	}
	breached := s.breached
	s.mu.Unlock()

	if !breached {
		return nil
	}
	if firstBreach {
		recordBreach(ctx)
		s.logger.Warn("Hallucination threshold breached",
			"session", s.id,
			"rate", r,
			"threshold", s.threshold,
			"samples", total)
	}
	return fmt.Errorf("%w: session %s rate %.4f >= %.4f after %d samples",
		ErrThresholdExceeded, s.id, r, s.threshold, total)
}

// Reset clears the counters and the breached flag for reuse across
// independent batches.
func (s *Session) Reset() {
	s.mu.Lock()
	s.validated = 0
	s.rejected = 0
	s.breached = false
	s.mu.Unlock()

	s.logger.Debug("Session reset", "session", s.id)
}

// Restore replaces the counters wholesale, clearing any breach.
//
// Description:
//
//	Used when resuming a session from its journal: the replayed
//	counts become the session's counts and the threshold state is
//	recomputed by the next check.
//
// Inputs:
//
//	validated - Replacement validated count, >= 0.
//	rejected - Replacement rejected count, >= 0.
//
// Outputs:
//
//	error - Non-nil when either count is negative.
func (s *Session) Restore(validated, rejected int) error {
	if validated < 0 || rejected < 0 {
		return fmt.Errorf("negative counts: validated=%d rejected=%d", validated, rejected)
	}

	s.mu.Lock()
	s.validated = validated
	s.rejected = rejected
	s.breached = false
	s.mu.Unlock()

	s.logger.Debug("Session restored",
		"session", s.id,
		"validated", validated,
		"rejected", rejected)
	return nil
}

// rate is the derived hallucination rate, defined as 0.0 for an empty
// session.
func rate(validated, rejected int) float64 {
	total := validated + rejected
	if total == 0 {
		return 0.0
	}
	return float64(rejected) / float64(total)
}
