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
	"log/slog"
	"sync"
	"sync/atomic"
)

// -----------------------------------------------------------------------------
// Health State
// -----------------------------------------------------------------------------

// HealthState represents the operational mode of one probe.
type HealthState int32

const (
	// HealthNormal indicates the probe is answering checks.
	HealthNormal HealthState = iota
	// HealthDegraded indicates the probe abstained on its last check.
	HealthDegraded
	// HealthDisabled indicates the probe was explicitly taken out of
	// rotation. Disabled probes count as abstaining without running.
	HealthDisabled
)

// String returns the string representation of HealthState.
func (s HealthState) String() string {
	switch s {
	case HealthNormal:
		return "normal"
	case HealthDegraded:
		return "degraded"
	case HealthDisabled:
		return "disabled"
	default:
		return "unknown"
	}
}

// -----------------------------------------------------------------------------
// Health Monitor
// -----------------------------------------------------------------------------

// HealthMonitor tracks per-probe availability across checks.
//
// Description:
//
//	A probe that abstains flips to degraded with a warning, which is
//	the observable graceful-degradation signal: validation proceeds
//	on the remaining probes and the operator can see which source
//	dropped out. A successful check recovers a degraded probe.
//	Disabled is sticky and only entered or left explicitly.
//
// Thread Safety: safe for concurrent use.
type HealthMonitor struct {
	logger *slog.Logger

	mu     sync.RWMutex
	probes map[Identity]*probeHealth
}

// probeHealth is the per-probe slot.
type probeHealth struct {
	mode        atomic.Int32
	abstentions atomic.Int64
}

// NewHealthMonitor creates a monitor covering all probe identities.
//
// Inputs:
//
//	logger - Logger instance. Uses slog.Default() if nil.
func NewHealthMonitor(logger *slog.Logger) *HealthMonitor {
	if logger == nil {
		logger = slog.Default()
	}
	return &HealthMonitor{
		logger: logger.With(slog.String("component", "probe_health")),
		probes: make(map[Identity]*probeHealth),
	}
}

// slot returns the health entry for a probe, creating it on first use.
func (m *HealthMonitor) slot(id Identity) *probeHealth {
	m.mu.RLock()
	h, ok := m.probes[id]
	m.mu.RUnlock()
	if ok {
		return h
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if h, ok = m.probes[id]; ok {
		return h
	}
	h = &probeHealth{}
	m.probes[id] = h
	return h
}

// RecordAbstention marks a probe degraded after it could not run.
//
// The first abstention out of a normal state logs at warning level;
// repeats log at debug to keep a dead tool from flooding the log.
// Disabled probes stay disabled.
func (m *HealthMonitor) RecordAbstention(id Identity, reason string) {
	h := m.slot(id)
	h.abstentions.Add(1)

	for {
		cur := h.mode.Load()
		if cur == int32(HealthDisabled) {
			return
		}
		if cur == int32(HealthDegraded) {
			m.logger.Debug("Probe still degraded",
				slog.String("probe", id.String()),
				slog.String("reason", reason))
			return
		}
		if h.mode.CompareAndSwap(cur, int32(HealthDegraded)) {
			m.logger.Warn("Probe degraded, validation continues with remaining probes",
				slog.String("probe", id.String()),
				slog.String("reason", reason))
			return
		}
	}
}

// RecordSuccess marks a probe healthy after a completed check.
// Recovery from degraded logs at info level. Disabled probes stay
// disabled.
func (m *HealthMonitor) RecordSuccess(id Identity) {
	h := m.slot(id)

	for {
		cur := h.mode.Load()
		if cur == int32(HealthDisabled) || cur == int32(HealthNormal) {
			return
		}
		if h.mode.CompareAndSwap(cur, int32(HealthNormal)) {
			m.logger.Info("Probe recovered",
				slog.String("probe", id.String()))
			return
		}
	}
}

// SetDisabled takes a probe out of rotation.
func (m *HealthMonitor) SetDisabled(id Identity, reason string) {
	h := m.slot(id)
	h.mode.Store(int32(HealthDisabled))
	m.logger.Warn("Probe disabled",
		slog.String("probe", id.String()),
		slog.String("reason", reason))
}

// SetEnabled returns a disabled probe to rotation.
func (m *HealthMonitor) SetEnabled(id Identity) {
	h := m.slot(id)
	h.mode.Store(int32(HealthNormal))
	m.logger.Info("Probe enabled",
		slog.String("probe", id.String()))
}

// State returns a probe's current health. Probes never seen are
// normal.
func (m *HealthMonitor) State(id Identity) HealthState {
	m.mu.RLock()
	h, ok := m.probes[id]
	m.mu.RUnlock()
	if !ok {
		return HealthNormal
	}
	return HealthState(h.mode.Load())
}

// ShouldSkip reports whether a probe should not even be attempted.
func (m *HealthMonitor) ShouldSkip(id Identity) bool {
	return m.State(id) == HealthDisabled
}

// Abstentions returns the total abstentions recorded for a probe.
func (m *HealthMonitor) Abstentions(id Identity) int64 {
	m.mu.RLock()
	h, ok := m.probes[id]
	m.mu.RUnlock()
	if !ok {
		return 0
	}
	return h.abstentions.Load()
}

// Snapshot returns the current state of every tracked probe.
func (m *HealthMonitor) Snapshot() map[Identity]HealthState {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make(map[Identity]HealthState, len(m.probes))
	for id, h := range m.probes {
		out[id] = HealthState(h.mode.Load())
	}
	return out
}
