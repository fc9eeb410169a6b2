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
	"sync"
	"testing"
)

func TestHealthState_String(t *testing.T) {
	cases := []struct {
		state HealthState
		want  string
	}{
		{HealthNormal, "normal"},
		{HealthDegraded, "degraded"},
		{HealthDisabled, "disabled"},
		{HealthState(9), "unknown"},
	}

	for _, tc := range cases {
		if got := tc.state.String(); got != tc.want {
			t.Errorf("HealthState(%d).String() = %q, want %q", tc.state, got, tc.want)
		}
	}
}

func TestHealthMonitor_UnseenProbeIsNormal(t *testing.T) {
	m := NewHealthMonitor(nil)

	if got := m.State(LanguageServer); got != HealthNormal {
		t.Errorf("State() = %v, want HealthNormal", got)
	}
	if m.ShouldSkip(LanguageServer) {
		t.Error("ShouldSkip() = true for an unseen probe")
	}
	if got := m.Abstentions(LanguageServer); got != 0 {
		t.Errorf("Abstentions() = %d, want 0", got)
	}
}

func TestHealthMonitor_DegradeAndRecover(t *testing.T) {
	m := NewHealthMonitor(nil)
	const abstain = "server not installed"

	m.RecordAbstention(LanguageServer, abstain)
	if got := m.State(LanguageServer); got != HealthDegraded {
		t.Fatalf("State() after abstention = %v, want HealthDegraded", got)
	}

	// Repeat abstentions keep the state and bump the counter.
	m.RecordAbstention(LanguageServer, abstain)
	m.RecordAbstention(LanguageServer, abstain)
	if got := m.Abstentions(LanguageServer); got != 3 {
		t.Errorf("Abstentions() = %d, want 3", got)
	}
	if got := m.State(LanguageServer); got != HealthDegraded {
		t.Errorf("State() = %v, want HealthDegraded", got)
	}

	m.RecordSuccess(LanguageServer)
	if got := m.State(LanguageServer); got != HealthNormal {
		t.Errorf("State() after success = %v, want HealthNormal", got)
	}

	// The abstention count survives recovery.
	if got := m.Abstentions(LanguageServer); got != 3 {
		t.Errorf("Abstentions() after recovery = %d, want 3", got)
	}
}

func TestHealthMonitor_DisabledIsSticky(t *testing.T) {
	m := NewHealthMonitor(nil)

	m.SetDisabled(Syntax, "grammar missing")
	if !m.ShouldSkip(Syntax) {
		t.Fatal("ShouldSkip() = false after SetDisabled")
	}

	// Neither path transitions a disabled probe.
	m.RecordSuccess(Syntax)
	if got := m.State(Syntax); got != HealthDisabled {
		t.Errorf("State() after success = %v, want HealthDisabled", got)
	}
	m.RecordAbstention(Syntax, "still down")
	if got := m.State(Syntax); got != HealthDisabled {
		t.Errorf("State() after abstention = %v, want HealthDisabled", got)
	}

	m.SetEnabled(Syntax)
	if got := m.State(Syntax); got != HealthNormal {
		t.Errorf("State() after SetEnabled = %v, want HealthNormal", got)
	}
	if m.ShouldSkip(Syntax) {
		t.Error("ShouldSkip() = true after SetEnabled")
	}
}

func TestHealthMonitor_SuccessOnNormalIsNoop(t *testing.T) {
	m := NewHealthMonitor(nil)

	m.RecordSuccess(Structural)
	if got := m.State(Structural); got != HealthNormal {
		t.Errorf("State() = %v, want HealthNormal", got)
	}
}

func TestHealthMonitor_Snapshot(t *testing.T) {
	m := NewHealthMonitor(nil)

	m.RecordAbstention(LanguageServer, "down")
	m.SetDisabled(RawText, "operator request")
	m.RecordSuccess(Structural)

	snap := m.Snapshot()
	if got := snap[LanguageServer]; got != HealthDegraded {
		t.Errorf("snapshot[lsp] = %v, want HealthDegraded", got)
	}
	if got := snap[RawText]; got != HealthDisabled {
		t.Errorf("snapshot[rawtext] = %v, want HealthDisabled", got)
	}
	if got := snap[Structural]; got != HealthNormal {
		t.Errorf("snapshot[structural] = %v, want HealthNormal", got)
	}
	if _, ok := snap[Syntax]; ok {
		t.Error("snapshot contains a probe that was never recorded")
	}
}

func TestHealthMonitor_ConcurrentRecords(t *testing.T) {
	m := NewHealthMonitor(nil)
	const abstain = "flaky"

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				if (n+j)%2 == 0 {
					m.RecordAbstention(LanguageServer, abstain)
				} else {
					m.RecordSuccess(LanguageServer)
				}
			}
		}(i)
	}
	wg.Wait()

	if got := m.Abstentions(LanguageServer); got != 400 {
		t.Errorf("Abstentions() = %d, want 400", got)
	}
	state := m.State(LanguageServer)
	if state != HealthNormal && state != HealthDegraded {
		t.Errorf("State() = %v, want normal or degraded", state)
	}
}
