// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package validate fans a symbol query out to every registered probe
// and folds the verdicts into one confidence-scored result.
package validate

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/AleutianAI/ddr/services/ddr/probe"
)

// DefaultProbeTimeout bounds each individual probe check.
const DefaultProbeTimeout = 2 * time.Second

// Validator runs a query against every probe concurrently.
//
// Description:
//
//	Probes run in parallel under a per-probe timeout. A probe that
//	errors or times out abstains: it drops out of the checked count
//	and degrades in the health monitor, but never fails the query.
//	The only error returns are caller cancellation and misuse
//	(invalid query); every completed run yields a Result.
//
// Thread Safety:
//
//	Safe for concurrent use. Validators hold no per-query state.
type Validator struct {
	probes  []probe.Probe
	health  *probe.HealthMonitor
	timeout time.Duration
	logger  *slog.Logger
}

// ValidatorOption is a functional option for Validator.
type ValidatorOption func(*Validator)

// WithProbeTimeout sets the per-probe check timeout.
func WithProbeTimeout(d time.Duration) ValidatorOption {
	return func(v *Validator) {
		if d > 0 {
			v.timeout = d
		}
	}
}

// WithHealthMonitor injects a shared health monitor. Without one the
// validator creates its own.
func WithHealthMonitor(h *probe.HealthMonitor) ValidatorOption {
	return func(v *Validator) {
		if h != nil {
			v.health = h
		}
	}
}

// WithLogger sets the validator's logger.
func WithLogger(logger *slog.Logger) ValidatorOption {
	return func(v *Validator) {
		if logger != nil {
			v.logger = logger
		}
	}
}

// NewValidator creates a validator over the given probes.
//
// Inputs:
//
//	probes - The verification sources, any order; the validator
//	         sorts them into trust order.
//	opts - Functional options.
//
// Outputs:
//
//	*Validator: Ready to use.
//	error: ErrNoProbes when probes is empty.
func NewValidator(probes []probe.Probe, opts ...ValidatorOption) (*Validator, error) {
	if len(probes) == 0 {
		return nil, ErrNoProbes
	}

	sorted := make([]probe.Probe, len(probes))
	copy(sorted, probes)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Identity().Priority() < sorted[j].Identity().Priority()
	})

	v := &Validator{
		probes:  sorted,
		timeout: DefaultProbeTimeout,
		logger:  slog.Default(),
	}

	for _, opt := range opts {
		opt(v)
	}

	if v.health == nil {
		v.health = probe.NewHealthMonitor(v.logger)
	}

	return v, nil
}

// Health returns the validator's health monitor.
func (v *Validator) Health() *probe.HealthMonitor {
	return v.health
}

// Probes returns the registered probes in trust order.
func (v *Validator) Probes() []probe.Identity {
	ids := make([]probe.Identity, len(v.probes))
	for i, p := range v.probes {
		ids[i] = p.Identity()
	}
	return ids
}

// probeReturn is one probe's slot in a validation run.
type probeReturn struct {
	verdict probe.Verdict
	err     error
	skipped bool
}

// Validate checks the symbol against every probe and aggregates.
//
// Description:
//
//	Fans out concurrently, waits for every probe (bounded by the
//	per-probe timeout), then folds verdicts in trust order. The best
//	location is the most trusted confirming verdict that carries
//	one; ties prefer a verdict with a signature, then the lowest
//	start line.
//
// Inputs:
//
//	ctx - Caller bound. Cancellation aborts the whole validation.
//	q - The symbol query. Must name a symbol.
//
// Outputs:
//
//	*Result: Aggregated verdicts. Non-nil whenever error is nil.
//	error: probe.ErrInvalidQuery for an unnamed symbol, or the
//	       caller's context error.
//
// Thread Safety:
//
//	Safe for concurrent use.
func (v *Validator) Validate(ctx context.Context, q probe.Query) (*Result, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	ctx, span := startValidateSpan(ctx, q, len(v.probes))
	defer span.End()

	start := time.Now()

	returns := make([]probeReturn, len(v.probes))
	g, gCtx := errgroup.WithContext(ctx)

	for i, p := range v.probes {
		i, p := i, p

		if v.health.ShouldSkip(p.Identity()) {
			returns[i] = probeReturn{
				err:     fmt.Errorf("%w: probe disabled", probe.ErrUnavailable),
				skipped: true,
			}
			continue
		}

		g.Go(func() error {
			checkCtx, cancel := context.WithTimeout(gCtx, v.timeout)
			defer cancel()

			verdict, err := p.Check(checkCtx, q)
			returns[i] = probeReturn{verdict: verdict, err: err}
			return nil // Probe failures are abstentions, never fatal
		})
	}

	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	result := v.fold(q, returns)
	recordValidationMetrics(ctx, time.Since(start), result)
	return result, nil
}

// fold aggregates per-probe returns into a Result and updates probe
// health.
func (v *Validator) fold(q probe.Query, returns []probeReturn) *Result {
	result := &Result{}

	var best *probe.Verdict
	for i := range returns {
		ret := &returns[i]
		id := v.probes[i].Identity()

		if ret.err != nil {
			result.Abstained = append(result.Abstained, id)
			if ret.skipped {
				v.logger.Debug("Probe skipped",
					slog.String("probe", id.String()),
					slog.String("symbol", q.Name))
			} else {
				v.health.RecordAbstention(id, ret.err.Error())
				v.logger.Warn("Probe abstained",
					slog.String("probe", id.String()),
					slog.String("symbol", q.Name),
					slog.String("reason", ret.err.Error()))
			}
			continue
		}

		v.health.RecordSuccess(id)
		result.Verdicts = append(result.Verdicts, ret.verdict)
		result.TotalChecked++
		if ret.verdict.Confirmed {
			result.ConfirmingCount++
			if ret.verdict.Location != nil && better(&ret.verdict, best) {
				best = &ret.verdict
			}
		}
	}

	if result.TotalChecked > 0 {
		result.Confidence = float64(result.ConfirmingCount) / float64(result.TotalChecked)
	}
	result.HighConfidence = result.ConfirmingCount >= HighConfidenceAgreement

	if best != nil {
		citation := best.Location.Citation()
		result.BestLocation = &citation
		result.BestSignature = best.Signature
	}

	return result
}

// better reports whether candidate outranks incumbent for the best
// location: trust order first, then a non-empty signature, then the
// lowest start line.
func better(candidate, incumbent *probe.Verdict) bool {
	if incumbent == nil {
		return true
	}
	if candidate.Probe != incumbent.Probe {
		return candidate.Probe.Priority() < incumbent.Probe.Priority()
	}
	if (candidate.Signature != "") != (incumbent.Signature != "") {
		return candidate.Signature != ""
	}
	return candidate.Location.StartLine < incumbent.Location.StartLine
}
