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
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/AleutianAI/ddr/services/ddr/journal"
	"github.com/AleutianAI/ddr/services/ddr/metric"
	"github.com/AleutianAI/ddr/services/ddr/telemetry"
	"github.com/AleutianAI/ddr/services/ddr/trust"
)

// Session is one accounting scope for retrievals: a hallucination-rate
// tracker plus an optional durable journal. Sessions created by the
// same service share its probes, validator, and classifier but never
// share counts.
//
// Thread Safety:
//
//	Session is safe for concurrent use. Retrievals may run on any
//	number of goroutines; the tracker serializes recording.
type Session struct {
	svc     *Service
	tracker *metric.Session
	wal     *journal.Journal
	logger  *slog.Logger
	closed  atomic.Bool
}

// ID returns the session identifier.
func (s *Session) ID() string {
	return s.tracker.ID()
}

// Rate returns the session's current hallucination rate.
func (s *Session) Rate() float64 {
	return s.tracker.Rate()
}

// Counts returns the session's validated and rejected totals.
func (s *Session) Counts() (validated, rejected int) {
	return s.tracker.Counts()
}

// Snapshot returns an atomic view of the session's accounting state.
func (s *Session) Snapshot() metric.Snapshot {
	return s.tracker.Snapshot()
}

// Tracker returns the underlying metric session.
func (s *Session) Tracker() *metric.Session {
	return s.tracker
}

// Journal returns the session's journal, nil when journaling is
// disabled.
func (s *Session) Journal() *journal.Journal {
	return s.wal
}

// Retrieve runs one symbol query through validation, classification,
// and rate accounting.
//
// Description:
//
//	Fans the query out to the service's probes, classifies the
//	aggregated evidence under the query's provenance, verifies any
//	citation against the filesystem, and records the decision on this
//	session exactly once. The outcome is complete when returned: a
//	threshold breach comes back as a non-nil outcome alongside an
//	error wrapping metric.ErrThresholdExceeded, so the caller decides
//	whether to abort or keep going.
//
// Inputs:
//
//	ctx - Context for cancellation and tracing.
//	query - The symbol query. ID is assigned when empty.
//
// Outputs:
//
//	*Outcome - The completed outcome. Nil only when err is non-nil
//	           and nothing was recorded.
//	error - Validation or classification failure, or the session's
//	        threshold breach.
func (s *Session) Retrieve(ctx context.Context, query SymbolQuery) (*Outcome, error) {
	if s.svc.closed.Load() {
		return nil, ErrServiceClosed
	}
	if s.closed.Load() {
		return nil, ErrSessionClosed
	}
	if query.ID == "" {
		query.ID = uuid.NewString()
	}
	start := time.Now()

	ctx, span := telemetry.StartSpan(ctx, tracerName, "ddr.retrieve",
		trace.WithAttributes(
			attribute.String("ddr.query_id", query.ID),
			attribute.String("ddr.symbol", query.Symbol),
			attribute.String("ddr.provenance", query.Provenance.String()),
		))
	defer span.End()
	logger := telemetry.LoggerWithQuery(ctx, s.logger, query.ID)

	outcome := &Outcome{Query: query, State: StateValidating}

	result, err := s.svc.validator.Validate(ctx, query.probeQuery())
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("validate %q: %w", query.Symbol, err)
	}
	outcome.Result = result
	outcome.State = StateClassified

	cls, err := s.svc.classifier.ClassifyVerified(ctx, result, query.Provenance)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("classify %q: %w", query.Symbol, err)
	}
	outcome.Class = cls.Class
	outcome.Citation = cls.Citation
	outcome.CitationErr = cls.CitationErr
	outcome.Accepted = cls.Accepted()
	if outcome.Accepted {
		outcome.State = StateAccepted
	} else {
		outcome.State = StateRejected
		outcome.Suggestions = s.svc.suggest(ctx, query.Symbol)
		if len(outcome.Suggestions) > 0 {
			RecordSuggestions()
		}
	}

	snap := s.tracker.Record(ctx, cls.Class)
	outcome.SessionRate = snap.Rate
	s.append(ctx, logger, query, cls, snap)

	span.SetAttributes(
		attribute.String("ddr.class", cls.Class.String()),
		attribute.Bool("ddr.accepted", outcome.Accepted),
		attribute.Float64("ddr.session_rate", snap.Rate),
	)
	RecordRetrieval(cls.Class.String(), time.Since(start).Seconds())
	logger.Debug("Retrieval complete",
		slog.String("symbol", query.Symbol),
		slog.String("class", cls.Class.String()),
		slog.Int("confirming", result.ConfirmingCount),
		slog.Int("checked", result.TotalChecked),
		slog.Float64("rate", snap.Rate))

	if err := s.tracker.CheckThreshold(ctx); err != nil {
		telemetry.RecordError(span, err)
		return outcome, fmt.Errorf("retrieve %q: %w", query.Symbol, err)
	}
	telemetry.SetSpanOK(span)
	return outcome, nil
}

// RetrieveBatch runs a set of queries concurrently on this session.
//
// Description:
//
//	Queries are independent: one query's rejection, suggestion
//	lookup, or threshold failure never blocks another's completion.
//	Outcomes come back in input order. The first per-query error in
//	input order is returned after every query has finished; with a
//	breached threshold that is an error wrapping
//	metric.ErrThresholdExceeded while the remaining outcomes are
//	still completed and counted.
//
// Inputs:
//
//	ctx - Context for cancellation and tracing.
//	queries - The symbol queries. May be empty.
//
// Outputs:
//
//	[]*Outcome - One slot per query, in input order. A slot is nil
//	             only when that query's error prevented any record.
//	error - The first per-query error in input order, nil when all
//	        queries completed cleanly.
func (s *Session) RetrieveBatch(ctx context.Context, queries []SymbolQuery) ([]*Outcome, error) {
	if len(queries) == 0 {
		return nil, nil
	}
	RecordBatchSize(len(queries))

	outcomes := make([]*Outcome, len(queries))
	errs := make([]error, len(queries))

	var g errgroup.Group
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, q := range queries {
		g.Go(func() error {
			outcomes[i], errs[i] = s.Retrieve(ctx, q)
			return nil
		})
	}
	// Errors are collected per slot so a failing query never cancels
	// its siblings.
	_ = g.Wait()

	for _, err := range errs {
		if err != nil {
			return outcomes, err
		}
	}
	return outcomes, nil
}

// VerifyJournal recomputes the session's counts from the journal and
// cross-checks them against the live tracker.
//
// Description:
//
//	Replays every journal record and compares the recomputed
//	validated/rejected totals with the tracker's. Divergence means
//	records were lost or double-counted and comes back as a
//	*journal.ReplayMismatchError.
//
// Outputs:
//
//	error - ErrJournalDisabled without a journal, ErrSessionClosed
//	        after Close, a replay failure, or the mismatch. Nil when
//	        the journal and tracker agree.
func (s *Session) VerifyJournal(ctx context.Context) error {
	if s.closed.Load() {
		return ErrSessionClosed
	}
	if s.wal == nil {
		return ErrJournalDisabled
	}
	validated, rejected, err := s.wal.Counts(ctx)
	if err != nil {
		return fmt.Errorf("replay journal: %w", err)
	}
	gotValidated, gotRejected := s.tracker.Counts()
	if validated != gotValidated || rejected != gotRejected {
		return &journal.ReplayMismatchError{
			SessionID:        s.tracker.ID(),
			JournalValidated: validated,
			JournalRejected:  rejected,
			TrackerValidated: gotValidated,
			TrackerRejected:  gotRejected,
		}
	}
	return nil
}

// Close releases the session's journal. The service's shared probes
// stay open. Idempotent.
func (s *Session) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	if s.wal != nil {
		return s.wal.Close()
	}
	return nil
}

// append journals one classification. Journaling is a recovery aid:
// a failed append degrades resume fidelity, not the retrieval, so
// failures log and continue.
func (s *Session) append(ctx context.Context, logger *slog.Logger, query SymbolQuery, cls trust.Classification, snap metric.Snapshot) {
	if s.wal == nil {
		return
	}
	e := journal.Entry{
		QueryID: query.ID,
		Symbol:  query.Symbol,
		Class:   cls.Class,
		Rate:    snap.Rate,
	}
	if cls.Citation != nil {
		e.Citation = cls.Citation.String()
	}
	if err := s.wal.Append(ctx, e); err != nil {
		logger.Warn("Journal append failed",
			slog.String("symbol", query.Symbol),
			slog.String("error", err.Error()))
	}
}
