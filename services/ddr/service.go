// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package ddr provides defensive data retrieval: symbol claims are
// verified against the workspace by independent probes, classified
// into trust classes, and accounted against a per-session
// hallucination-rate threshold.
//
// The service wires the layers together:
//   - probes (structural index, tree-sitter syntax, language server,
//     raw text) fan out per query under the validator
//   - the trust classifier turns probe agreement plus provenance into
//     a serve/reject decision with a filesystem-verified citation
//   - metric sessions track the rejection rate and fail closed once
//     it crosses the configured threshold
//   - an optional BadgerDB journal makes sessions resumable
package ddr

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/AleutianAI/ddr/pkg/logging"
	"github.com/AleutianAI/ddr/services/ddr/config"
	"github.com/AleutianAI/ddr/services/ddr/journal"
	"github.com/AleutianAI/ddr/services/ddr/metric"
	"github.com/AleutianAI/ddr/services/ddr/probe"
	"github.com/AleutianAI/ddr/services/ddr/trust"
	"github.com/AleutianAI/ddr/services/ddr/validate"
	"github.com/AleutianAI/ddr/services/ddr/verify"
)

// tracerName identifies this package's spans.
const tracerName = "aleutian.ddr"

// maxSuggestions bounds the near-miss lookup for rejected queries.
const maxSuggestions = 5

// ServiceOption customizes service construction.
type ServiceOption func(*Service)

// WithLogger sets the service logger. Without it the service builds
// its own from the telemetry config and closes it on shutdown.
func WithLogger(logger *slog.Logger) ServiceOption {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithProbes replaces the config-built probes. The validator orders
// them by trust priority regardless of the order given here.
func WithProbes(probes ...probe.Probe) ServiceOption {
	return func(s *Service) {
		s.probes = probes
	}
}

// Service is the retrieval engine facade: shared probes, validator,
// classifier, and citation verification behind per-session rate
// accounting.
//
// Thread Safety:
//
//	Service is safe for concurrent use. Sessions may retrieve from
//	any number of goroutines; sessions never share counts.
type Service struct {
	cfg    config.Config
	logger *slog.Logger
	// owned is set when the service built its own logger, so Close
	// can flush it. Nil when WithLogger supplied one.
	owned *logging.Logger

	probes     []probe.Probe
	structural *probe.StructuralProbe
	lsp        *probe.LSPProbe
	health     *probe.HealthMonitor
	validator  *validate.Validator
	resolver   *verify.Resolver
	watcher    *verify.Watcher
	classifier *trust.Classifier

	session *Session
	closed  atomic.Bool
}

// NewService builds the engine from configuration.
//
// Description:
//
//	Validates the config, builds the probe set (structural, syntax,
//	and raw text always; language server unless disabled), wires the
//	citation resolver with a TTL cache kept honest by a filesystem
//	watcher, and opens the default session. Watcher failure degrades
//	to uncached-but-correct citation checks and is not fatal.
//
// Inputs:
//
//	cfg - Service configuration. Must validate.
//	opts - Optional overrides.
//
// Outputs:
//
//	*Service - The ready service.
//	error - Config validation or journal open failure.
func NewService(cfg config.Config, opts ...ServiceOption) (*Service, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	svc := &Service{cfg: cfg}
	for _, opt := range opts {
		opt(svc)
	}
	if svc.logger == nil {
		svc.owned = logging.New(cfg.Telemetry.LoggingConfig())
		svc.logger = svc.owned.Slog()
	}

	svc.health = probe.NewHealthMonitor(svc.logger)
	if len(svc.probes) == 0 {
		svc.probes = svc.buildProbes()
	}
	for _, p := range svc.probes {
		switch typed := p.(type) {
		case *probe.StructuralProbe:
			svc.structural = typed
		case *probe.LSPProbe:
			svc.lsp = typed
		}
	}

	validator, err := validate.NewValidator(svc.probes,
		validate.WithProbeTimeout(cfg.Validation.ProbeTimeout.Std()),
		validate.WithHealthMonitor(svc.health),
		validate.WithLogger(svc.logger))
	if err != nil {
		return nil, fmt.Errorf("build validator: %w", err)
	}
	svc.validator = validator

	cache := verify.NewCache()
	svc.resolver = verify.NewResolver(verify.WithResolverCache(cache))
	svc.classifier = trust.NewClassifier(svc.resolver,
		trust.WithClassifierLogger(svc.logger))

	watcher, err := verify.NewCacheWatcher(cfg.Workspace.Root, cache, nil)
	if err != nil {
		svc.logger.Warn("Citation cache watcher unavailable",
			slog.String("root", cfg.Workspace.Root),
			slog.String("error", err.Error()))
	} else if err := watcher.Start(context.Background()); err != nil {
		svc.logger.Warn("Citation cache watcher failed to start",
			slog.String("root", cfg.Workspace.Root),
			slog.String("error", err.Error()))
	} else {
		svc.watcher = watcher
	}

	session, err := svc.NewSession()
	if err != nil {
		if svc.watcher != nil {
			svc.watcher.Stop()
		}
		if svc.owned != nil {
			svc.owned.Close()
		}
		return nil, err
	}
	svc.session = session
	return svc, nil
}

// buildProbes constructs the probe set from configuration.
func (s *Service) buildProbes() []probe.Probe {
	root := s.cfg.Workspace.Root
	probes := []probe.Probe{
		probe.NewStructuralProbe(root,
			probe.WithStructuralLogger(s.logger),
			probe.WithStructuralMaxFiles(s.cfg.Validation.StructuralMaxFiles)),
		probe.NewSyntaxProbe(root,
			probe.WithSyntaxLogger(s.logger),
			probe.WithSyntaxMaxFiles(s.cfg.Validation.SyntaxMaxFiles)),
		probe.NewRawTextProbe(root,
			probe.WithRawTextLogger(s.logger),
			probe.WithRawTextMaxFiles(s.cfg.Validation.RawTextMaxFiles),
			probe.WithRawTextMaxFileSize(s.cfg.Validation.RawTextMaxFileBytes)),
	}
	if !s.cfg.Validation.DisableLanguageServer {
		probes = append(probes, probe.NewLSPProbe(root,
			probe.WithLSPLogger(s.logger)))
	}
	return probes
}

// NewSession starts an independent accounting session.
//
// Description:
//
//	The session gets its own rate tracker seeded with the configured
//	threshold and minimum sample count, and its own journal directory
//	when journaling is enabled. Callers own the session's lifecycle;
//	Close it when done.
//
// Inputs:
//
//	opts - Tracker overrides, applied after the config-derived
//	       options.
//
// Outputs:
//
//	*Session - The ready session.
//	error - Journal open failure.
func (s *Service) NewSession(opts ...metric.SessionOption) (*Session, error) {
	if s.closed.Load() {
		return nil, ErrServiceClosed
	}
	base := []metric.SessionOption{
		metric.WithThreshold(s.cfg.Session.Threshold),
		metric.WithMinSamples(s.cfg.Session.MinSamples),
		metric.WithSessionLogger(s.logger),
	}
	tracker := metric.NewSession(append(base, opts...)...)

	var wal *journal.Journal
	if s.cfg.Journal.Enabled {
		jc := s.cfg.JournalConfigFor(tracker.ID())
		jc.Logger = s.logger
		opened, err := journal.Open(jc)
		if err != nil {
			return nil, fmt.Errorf("open journal for session %s: %w", tracker.ID(), err)
		}
		wal = opened
	}

	RecordSessionStart("started")
	return &Session{
		svc:     s,
		tracker: tracker,
		wal:     wal,
		logger:  s.logger.With(slog.String("session_id", tracker.ID())),
	}, nil
}

// ResumeSession rebuilds a session from its journal.
//
// Description:
//
//	Reopens the session's journal directory, replays it to recompute
//	the validated and rejected totals, and restores them into a fresh
//	tracker under the same session ID. The restored rate is armed
//	against the threshold exactly as if the records had just been
//	made.
//
// Inputs:
//
//	ctx - Context for the replay.
//	sessionID - The session to resume. Required.
//	opts - Tracker overrides, applied after the config-derived
//	       options.
//
// Outputs:
//
//	*Session - The restored session.
//	error - ErrJournalDisabled without journaling, ErrNoSessionID for
//	        an empty ID, or an open/replay/restore failure.
func (s *Service) ResumeSession(ctx context.Context, sessionID string, opts ...metric.SessionOption) (*Session, error) {
	if s.closed.Load() {
		return nil, ErrServiceClosed
	}
	if !s.cfg.Journal.Enabled {
		return nil, ErrJournalDisabled
	}
	if sessionID == "" {
		return nil, fmt.Errorf("resume session: %w", ErrNoSessionID)
	}

	jc := s.cfg.JournalConfigFor(sessionID)
	jc.Logger = s.logger
	wal, err := journal.Open(jc)
	if err != nil {
		return nil, fmt.Errorf("open journal for session %s: %w", sessionID, err)
	}
	validated, rejected, err := wal.Counts(ctx)
	if err != nil {
		wal.Close()
		return nil, fmt.Errorf("replay journal for session %s: %w", sessionID, err)
	}

	base := []metric.SessionOption{
		metric.WithThreshold(s.cfg.Session.Threshold),
		metric.WithMinSamples(s.cfg.Session.MinSamples),
		metric.WithSessionLogger(s.logger),
	}
	tracker := metric.NewSession(append(append(base, opts...), metric.WithSessionID(sessionID))...)
	if err := tracker.Restore(validated, rejected); err != nil {
		wal.Close()
		return nil, fmt.Errorf("restore session %s: %w", sessionID, err)
	}

	RecordSessionStart("resumed")
	s.logger.Info("Session resumed",
		slog.String("session_id", sessionID),
		slog.Int("validated", validated),
		slog.Int("rejected", rejected))
	return &Session{
		svc:     s,
		tracker: tracker,
		wal:     wal,
		logger:  s.logger.With(slog.String("session_id", sessionID)),
	}, nil
}

// Retrieve runs one query on the service's default session. See
// Session.Retrieve.
func (s *Service) Retrieve(ctx context.Context, query SymbolQuery) (*Outcome, error) {
	return s.session.Retrieve(ctx, query)
}

// RetrieveBatch runs queries on the service's default session. See
// Session.RetrieveBatch.
func (s *Service) RetrieveBatch(ctx context.Context, queries []SymbolQuery) ([]*Outcome, error) {
	return s.session.RetrieveBatch(ctx, queries)
}

// Session returns the service's default session.
func (s *Service) Session() *Session {
	return s.session
}

// Validator returns the shared validator.
func (s *Service) Validator() *validate.Validator {
	return s.validator
}

// Resolver returns the shared citation resolver.
func (s *Service) Resolver() *verify.Resolver {
	return s.resolver
}

// Health returns the shared probe health monitor.
func (s *Service) Health() *probe.HealthMonitor {
	return s.health
}

// suggest returns up to maxSuggestions near-miss symbol names for a
// rejected query. Best effort: no structural index or a failed search
// yields nil. Exact matches are skipped since suggesting the queried
// name back is useless.
func (s *Service) suggest(ctx context.Context, symbol string) []string {
	if s.structural == nil {
		return nil
	}
	matches, err := s.structural.Index().Search(ctx, symbol, maxSuggestions+1)
	if err != nil || len(matches) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(matches))
	names := make([]string, 0, len(matches))
	for _, m := range matches {
		if m.Name == symbol {
			continue
		}
		if _, ok := seen[m.Name]; ok {
			continue
		}
		seen[m.Name] = struct{}{}
		names = append(names, m.Name)
		if len(names) == maxSuggestions {
			break
		}
	}
	return names
}

// Close shuts the service down: the default session's journal, the
// citation cache watcher, any language servers the LSP probe
// spawned, and the logger the service built for itself. Sessions
// created with NewSession are closed by their owners. Idempotent.
func (s *Service) Close(ctx context.Context) error {
	if s.closed.Swap(true) {
		return nil
	}
	var errs []error
	if s.watcher != nil {
		s.watcher.Stop()
	}
	if s.session != nil {
		if err := s.session.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if s.lsp != nil {
		if err := s.lsp.Close(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	// The logger goes last so the closes above can still log.
	if s.owned != nil {
		if err := s.owned.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}
