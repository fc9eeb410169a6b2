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
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/AleutianAI/ddr/services/ddr/config"
	"github.com/AleutianAI/ddr/services/ddr/journal"
	"github.com/AleutianAI/ddr/services/ddr/metric"
	"github.com/AleutianAI/ddr/services/ddr/probe"
	"github.com/AleutianAI/ddr/services/ddr/trust"
	"github.com/AleutianAI/ddr/services/ddr/verify"
)

func testConfig(t *testing.T) config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Workspace.Root = t.TempDir()
	cfg.Validation.DisableLanguageServer = true
	return cfg
}

func newTestService(t *testing.T, cfg config.Config, opts ...ServiceOption) *Service {
	t.Helper()
	svc, err := NewService(cfg, opts...)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	t.Cleanup(func() { svc.Close(context.Background()) })
	return svc
}

func writeWorkspaceFile(t *testing.T, root, name, content string) string {
	t.Helper()
	path := filepath.Join(root, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

// stubProbe runs a canned check function under any probe identity.
type stubProbe struct {
	id    probe.Identity
	check func(q probe.Query) (probe.Verdict, error)
}

func (p *stubProbe) Identity() probe.Identity {
	return p.id
}

func (p *stubProbe) Check(_ context.Context, q probe.Query) (probe.Verdict, error) {
	return p.check(q)
}

// confirmStub confirms every query with a declaration site at
// path:line.
func confirmStub(id probe.Identity, path string, line int) *stubProbe {
	return &stubProbe{id: id, check: func(q probe.Query) (probe.Verdict, error) {
		return probe.Verdict{
			Probe:     id,
			Confirmed: true,
			Location:  &probe.Location{FilePath: path, StartLine: line, EndLine: line},
			Signature: "func " + q.Name + "()",
		}, nil
	}}
}

// denyStub checks every query and confirms none of them.
func denyStub(id probe.Identity) *stubProbe {
	return &stubProbe{id: id, check: func(q probe.Query) (probe.Verdict, error) {
		return probe.Verdict{Probe: id, Confirmed: false}, nil
	}}
}

// prefixStub confirms queries whose symbol starts with prefix, citing
// path:line, and denies the rest.
func prefixStub(prefix, path string, line int) *stubProbe {
	return &stubProbe{id: probe.Structural, check: func(q probe.Query) (probe.Verdict, error) {
		if !strings.HasPrefix(q.Name, prefix) {
			return probe.Verdict{Probe: probe.Structural, Confirmed: false}, nil
		}
		return probe.Verdict{
			Probe:     probe.Structural,
			Confirmed: true,
			Location:  &probe.Location{FilePath: path, StartLine: line, EndLine: line},
			Signature: "func " + q.Name + "()",
		}, nil
	}}
}

func TestNewService_BuildsDefaultProbes(t *testing.T) {
	t.Run("language server disabled", func(t *testing.T) {
		svc := newTestService(t, testConfig(t))

		got := svc.Validator().Probes()
		want := []probe.Identity{probe.Structural, probe.Syntax, probe.RawText}
		if len(got) != len(want) {
			t.Fatalf("probes = %v, want %v", got, want)
		}
		for i := range want {
			if got[i] != want[i] {
				t.Errorf("probe[%d] = %s, want %s", i, got[i], want[i])
			}
		}
	})

	t.Run("language server enabled", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.Validation.DisableLanguageServer = false
		svc := newTestService(t, cfg)

		got := svc.Validator().Probes()
		want := []probe.Identity{probe.Structural, probe.Syntax, probe.LanguageServer, probe.RawText}
		if len(got) != len(want) {
			t.Fatalf("probes = %v, want %v", got, want)
		}
		for i := range want {
			if got[i] != want[i] {
				t.Errorf("probe[%d] = %s, want %s", i, got[i], want[i])
			}
		}
	})

	t.Run("invalid config", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.Session.Threshold = -1
		if _, err := NewService(cfg); err == nil {
			t.Fatal("expected config validation error")
		}
	})
}

func TestNewService_OwnedLogger(t *testing.T) {
	cfg := testConfig(t)
	cfg.Telemetry.LogDir = t.TempDir()
	cfg.Telemetry.LogLevel = "debug"
	svc := newTestService(t, cfg, WithProbes(denyStub(probe.Structural)))

	if _, err := svc.Retrieve(context.Background(), NewQuery("Anything")); err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if err := svc.Close(context.Background()); err != nil {
		t.Fatalf("Close: %v", err)
	}

	entries, err := os.ReadDir(cfg.Telemetry.LogDir)
	if err != nil {
		t.Fatalf("read log dir: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("log files = %d, want 1", len(entries))
	}
	if !strings.HasPrefix(entries[0].Name(), "aleutian-ddr_") {
		t.Errorf("log file %q missing service prefix", entries[0].Name())
	}
	data, err := os.ReadFile(filepath.Join(cfg.Telemetry.LogDir, entries[0].Name()))
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(data), "Retrieval complete") {
		t.Error("log file missing the retrieval debug line")
	}
}

func TestService_Retrieve_ExtractedConfirmed(t *testing.T) {
	cfg := testConfig(t)
	writeWorkspaceFile(t, cfg.Workspace.Root, "calc.go", `package calc

// Add returns the sum of two ints.
func Add(a, b int) int {
	return a + b
}
`)
	svc := newTestService(t, cfg)

	out, err := svc.Retrieve(context.Background(),
		NewQuery("Add", WithProvenance(trust.Extracted)))
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}

	if !out.Accepted {
		t.Error("expected the query to be accepted")
	}
	if out.Class != trust.HardContent {
		t.Errorf("class = %s, want %s", out.Class, trust.HardContent)
	}
	if out.State != StateAccepted {
		t.Errorf("state = %s, want %s", out.State, StateAccepted)
	}
	if out.Query.ID == "" {
		t.Error("expected an assigned query ID")
	}
	if out.Citation == nil {
		t.Fatal("expected a citation")
	}
	if !strings.HasSuffix(out.Citation.FilePath, "calc.go") {
		t.Errorf("citation file = %s, want calc.go", out.Citation.FilePath)
	}
	if out.Citation.Line != 4 {
		t.Errorf("citation line = %d, want 4", out.Citation.Line)
	}
	if out.Result.ConfirmingCount < 2 {
		t.Errorf("confirming = %d, want >= 2", out.Result.ConfirmingCount)
	}
	if !out.Result.HighConfidence {
		t.Error("expected high confidence with structural, syntax, and raw text agreeing")
	}
	if out.SessionRate != 0.0 {
		t.Errorf("session rate = %v, want 0.0", out.SessionRate)
	}
}

func TestService_Retrieve_GeneratedUncheckedRejected(t *testing.T) {
	cfg := testConfig(t)
	writeWorkspaceFile(t, cfg.Workspace.Root, "calc.go", `package calc

func Add(a, b int) int {
	return a + b
}
`)
	svc := newTestService(t, cfg)

	// Provenance defaults to GeneratedUnchecked: agreement alone must
	// not admit an unchecked generated claim.
	out, err := svc.Retrieve(context.Background(), NewQuery("Add"))
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}

	if out.Accepted {
		t.Error("unchecked generated claim must not be accepted")
	}
	if out.Class != trust.Rejected {
		t.Errorf("class = %s, want %s", out.Class, trust.Rejected)
	}
	if out.State != StateRejected {
		t.Errorf("state = %s, want %s", out.State, StateRejected)
	}
	if out.Citation != nil {
		t.Errorf("rejected outcome carries citation %s", out.Citation)
	}
	if out.SessionRate != 1.0 {
		t.Errorf("session rate = %v, want 1.0", out.SessionRate)
	}
}

func TestService_Retrieve_UnknownSymbolSuggestions(t *testing.T) {
	cfg := testConfig(t)
	writeWorkspaceFile(t, cfg.Workspace.Root, "metrics.go", `package metrics

func ComputeTotal(values []float64) float64 {
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum
}
`)
	svc := newTestService(t, cfg)

	out, err := svc.Retrieve(context.Background(),
		NewQuery("ComputeTotl", WithProvenance(trust.Extracted)))
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}

	if out.Accepted {
		t.Error("misspelled symbol must be rejected")
	}
	if out.Result.ConfirmingCount != 0 {
		t.Errorf("confirming = %d, want 0", out.Result.ConfirmingCount)
	}
	found := false
	for _, s := range out.Suggestions {
		if s == "ComputeTotal" {
			found = true
		}
	}
	if !found {
		t.Errorf("suggestions = %v, want ComputeTotal", out.Suggestions)
	}
}

func TestService_Retrieve_CitationFailureDowngrades(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		cfg := testConfig(t)
		ghost := filepath.Join(cfg.Workspace.Root, "ghost.go")
		svc := newTestService(t, cfg,
			WithProbes(confirmStub(probe.Structural, ghost, 3)))

		out, err := svc.Retrieve(context.Background(),
			NewQuery("Phantom", WithProvenance(trust.Extracted)))
		if err != nil {
			t.Fatalf("Retrieve: %v", err)
		}

		if out.Accepted {
			t.Error("unverifiable citation must reject the query")
		}
		if out.Class != trust.Rejected {
			t.Errorf("class = %s, want %s", out.Class, trust.Rejected)
		}
		if out.Citation != nil {
			t.Errorf("rejected outcome carries citation %s", out.Citation)
		}
		if !errors.Is(out.CitationErr, verify.ErrFileMissing) {
			t.Errorf("citation err = %v, want ErrFileMissing", out.CitationErr)
		}
	})

	t.Run("line out of range", func(t *testing.T) {
		cfg := testConfig(t)
		path := writeWorkspaceFile(t, cfg.Workspace.Root, "short.go", "package short\n")
		svc := newTestService(t, cfg,
			WithProbes(confirmStub(probe.Structural, path, 99)))

		out, err := svc.Retrieve(context.Background(),
			NewQuery("Tiny", WithProvenance(trust.Extracted)))
		if err != nil {
			t.Fatalf("Retrieve: %v", err)
		}

		if out.Accepted {
			t.Error("out-of-range citation must reject the query")
		}
		if !errors.Is(out.CitationErr, verify.ErrLineOutOfRange) {
			t.Errorf("citation err = %v, want ErrLineOutOfRange", out.CitationErr)
		}
	})
}

func TestService_Retrieve_ThresholdBreach(t *testing.T) {
	cfg := testConfig(t)
	svc := newTestService(t, cfg, WithProbes(denyStub(probe.Structural)))
	ctx := context.Background()

	// Below the minimum sample count every rejection passes through.
	for i := 0; i < cfg.Session.MinSamples-1; i++ {
		out, err := svc.Retrieve(ctx,
			NewQuery(fmt.Sprintf("missing%d", i), WithProvenance(trust.Extracted)))
		if err != nil {
			t.Fatalf("retrieve %d: %v", i, err)
		}
		if out.Accepted {
			t.Fatalf("retrieve %d unexpectedly accepted", i)
		}
	}

	// The sample that reaches MinSamples trips the threshold. The
	// outcome still comes back completed alongside the error.
	out, err := svc.Retrieve(ctx,
		NewQuery("missing-final", WithProvenance(trust.Extracted)))
	if !errors.Is(err, metric.ErrThresholdExceeded) {
		t.Fatalf("err = %v, want ErrThresholdExceeded", err)
	}
	if out == nil {
		t.Fatal("breach must still return the completed outcome")
	}
	if out.State != StateRejected {
		t.Errorf("state = %s, want %s", out.State, StateRejected)
	}
	if out.Result == nil {
		t.Error("breach outcome is missing its validation result")
	}
	if out.SessionRate != 1.0 {
		t.Errorf("session rate = %v, want 1.0", out.SessionRate)
	}

	// The breach is sticky: later queries keep failing.
	out, err = svc.Retrieve(ctx,
		NewQuery("missing-after", WithProvenance(trust.Extracted)))
	if !errors.Is(err, metric.ErrThresholdExceeded) {
		t.Fatalf("err after breach = %v, want ErrThresholdExceeded", err)
	}
	if out == nil {
		t.Fatal("post-breach outcome missing")
	}

	validated, rejected := svc.Session().Counts()
	if validated != 0 || rejected != cfg.Session.MinSamples+1 {
		t.Errorf("counts = %d/%d, want 0/%d", validated, rejected, cfg.Session.MinSamples+1)
	}
}

func TestService_RetrieveBatch(t *testing.T) {
	cfg := testConfig(t)
	path := writeWorkspaceFile(t, cfg.Workspace.Root, "lib.go", `package lib

func Add(a, b int) int { return a + b }
`)
	svc := newTestService(t, cfg, WithProbes(confirmStub(probe.Structural, path, 3)))
	ctx := context.Background()

	t.Run("empty", func(t *testing.T) {
		outs, err := svc.RetrieveBatch(ctx, nil)
		if err != nil || outs != nil {
			t.Fatalf("RetrieveBatch(nil) = %v, %v, want nil, nil", outs, err)
		}
	})

	t.Run("mixed provenance stays independent", func(t *testing.T) {
		queries := []SymbolQuery{
			NewQuery("Add", WithProvenance(trust.Extracted)),
			NewQuery("Add"),
			NewQuery("Add", WithProvenance(trust.Extracted)),
			NewQuery("Add"),
		}
		outs, err := svc.RetrieveBatch(ctx, queries)
		if err != nil {
			t.Fatalf("RetrieveBatch: %v", err)
		}
		if len(outs) != len(queries) {
			t.Fatalf("outcomes = %d, want %d", len(outs), len(queries))
		}

		wantAccepted := []bool{true, false, true, false}
		for i, out := range outs {
			if out == nil {
				t.Fatalf("outcome %d is nil", i)
			}
			if out.Query.Symbol != queries[i].Symbol {
				t.Errorf("outcome %d symbol = %s, want %s", i, out.Query.Symbol, queries[i].Symbol)
			}
			if out.Accepted != wantAccepted[i] {
				t.Errorf("outcome %d accepted = %v, want %v", i, out.Accepted, wantAccepted[i])
			}
		}

		validated, rejected := svc.Session().Counts()
		if validated != 2 || rejected != 2 {
			t.Errorf("counts = %d/%d, want 2/2", validated, rejected)
		}
		if rate := svc.Session().Rate(); rate != 0.5 {
			t.Errorf("rate = %v, want 0.5", rate)
		}
	})
}

func TestService_SessionIsolation(t *testing.T) {
	cfg := testConfig(t)
	path := writeWorkspaceFile(t, cfg.Workspace.Root, "lib.go", `package lib

func Add(a, b int) int { return a + b }
`)
	svc := newTestService(t, cfg, WithProbes(prefixStub("ok", path, 3)))
	ctx := context.Background()

	rejecting, err := svc.NewSession()
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	defer rejecting.Close()
	accepting, err := svc.NewSession()
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	defer accepting.Close()

	const n = 10
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < n; i++ {
			// Threshold errors are expected once the rate breaches;
			// counting must continue regardless.
			_, _ = rejecting.Retrieve(ctx,
				NewQuery(fmt.Sprintf("missing%d", i), WithProvenance(trust.Extracted)))
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < n; i++ {
			if _, err := accepting.Retrieve(ctx,
				NewQuery(fmt.Sprintf("ok%d", i), WithProvenance(trust.Extracted))); err != nil {
				t.Errorf("accepting retrieve %d: %v", i, err)
			}
		}
	}()
	wg.Wait()

	if validated, rejected := rejecting.Counts(); validated != 0 || rejected != n {
		t.Errorf("rejecting counts = %d/%d, want 0/%d", validated, rejected, n)
	}
	if validated, rejected := accepting.Counts(); validated != n || rejected != 0 {
		t.Errorf("accepting counts = %d/%d, want %d/0", validated, rejected, n)
	}
	if rate := accepting.Rate(); rate != 0.0 {
		t.Errorf("accepting rate = %v, want 0.0", rate)
	}
	if validated, rejected := svc.Session().Counts(); validated != 0 || rejected != 0 {
		t.Errorf("default session counts = %d/%d, want 0/0", validated, rejected)
	}
}

func TestService_SessionResume(t *testing.T) {
	cfg := testConfig(t)
	cfg.Journal.Enabled = true
	cfg.Journal.Path = t.TempDir()
	cfg.Session.Threshold = 0.9
	path := writeWorkspaceFile(t, cfg.Workspace.Root, "lib.go", `package lib

func Add(a, b int) int { return a + b }
`)
	svc := newTestService(t, cfg, WithProbes(prefixStub("ok", path, 3)))
	ctx := context.Background()

	sess, err := svc.NewSession()
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	for i := 0; i < 3; i++ {
		if _, err := sess.Retrieve(ctx,
			NewQuery(fmt.Sprintf("ok%d", i), WithProvenance(trust.Extracted))); err != nil {
			t.Fatalf("retrieve ok%d: %v", i, err)
		}
	}
	for i := 0; i < 2; i++ {
		if _, err := sess.Retrieve(ctx,
			NewQuery(fmt.Sprintf("missing%d", i), WithProvenance(trust.Extracted))); err != nil {
			t.Fatalf("retrieve missing%d: %v", i, err)
		}
	}

	if err := sess.VerifyJournal(ctx); err != nil {
		t.Fatalf("VerifyJournal: %v", err)
	}

	id := sess.ID()
	if err := sess.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	resumed, err := svc.ResumeSession(ctx, id)
	if err != nil {
		t.Fatalf("ResumeSession: %v", err)
	}
	defer resumed.Close()

	if resumed.ID() != id {
		t.Errorf("resumed ID = %s, want %s", resumed.ID(), id)
	}
	if validated, rejected := resumed.Counts(); validated != 3 || rejected != 2 {
		t.Errorf("resumed counts = %d/%d, want 3/2", validated, rejected)
	}
	if rate := resumed.Rate(); rate != 0.4 {
		t.Errorf("resumed rate = %v, want 0.4", rate)
	}

	// The restored session keeps accounting where it left off.
	if _, err := resumed.Retrieve(ctx,
		NewQuery("ok-more", WithProvenance(trust.Extracted))); err != nil {
		t.Fatalf("retrieve after resume: %v", err)
	}
	if validated, rejected := resumed.Counts(); validated != 4 || rejected != 2 {
		t.Errorf("counts after resume = %d/%d, want 4/2", validated, rejected)
	}
}

func TestService_ResumeSession_Errors(t *testing.T) {
	t.Run("journaling disabled", func(t *testing.T) {
		svc := newTestService(t, testConfig(t), WithProbes(denyStub(probe.Structural)))
		if _, err := svc.ResumeSession(context.Background(), "anything"); !errors.Is(err, ErrJournalDisabled) {
			t.Errorf("err = %v, want ErrJournalDisabled", err)
		}
	})

	t.Run("empty session id", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.Journal.Enabled = true
		cfg.Journal.Path = t.TempDir()
		svc := newTestService(t, cfg, WithProbes(denyStub(probe.Structural)))
		if _, err := svc.ResumeSession(context.Background(), ""); !errors.Is(err, ErrNoSessionID) {
			t.Errorf("err = %v, want ErrNoSessionID", err)
		}
	})
}

func TestService_VerifyJournal(t *testing.T) {
	t.Run("journaling disabled", func(t *testing.T) {
		svc := newTestService(t, testConfig(t), WithProbes(denyStub(probe.Structural)))
		if err := svc.Session().VerifyJournal(context.Background()); !errors.Is(err, ErrJournalDisabled) {
			t.Errorf("err = %v, want ErrJournalDisabled", err)
		}
	})

	t.Run("detects drift", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.Journal.Enabled = true
		cfg.Journal.Path = t.TempDir()
		svc := newTestService(t, cfg, WithProbes(denyStub(probe.Structural)))
		ctx := context.Background()

		if _, err := svc.Retrieve(ctx,
			NewQuery("gone", WithProvenance(trust.Extracted))); err != nil {
			t.Fatalf("Retrieve: %v", err)
		}
		if err := svc.Session().VerifyJournal(ctx); err != nil {
			t.Fatalf("VerifyJournal before drift: %v", err)
		}

		// A record appended behind the tracker's back must be caught.
		err := svc.Session().Journal().Append(ctx, journal.Entry{
			QueryID: "rogue",
			Symbol:  "Rogue",
			Class:   trust.Rejected,
		})
		if err != nil {
			t.Fatalf("Append: %v", err)
		}

		err = svc.Session().VerifyJournal(ctx)
		if !errors.Is(err, journal.ErrReplayMismatch) {
			t.Fatalf("err = %v, want ErrReplayMismatch", err)
		}
		var mismatch *journal.ReplayMismatchError
		if !errors.As(err, &mismatch) {
			t.Fatalf("err = %T, want *journal.ReplayMismatchError", err)
		}
		if mismatch.JournalRejected != mismatch.TrackerRejected+1 {
			t.Errorf("journal rejected = %d, tracker rejected = %d, want drift of 1",
				mismatch.JournalRejected, mismatch.TrackerRejected)
		}
	})
}

func TestService_NothingRecordedOnError(t *testing.T) {
	svc := newTestService(t, testConfig(t), WithProbes(denyStub(probe.Structural)))
	ctx := context.Background()

	t.Run("invalid query", func(t *testing.T) {
		out, err := svc.Retrieve(ctx, NewQuery(""))
		if !errors.Is(err, probe.ErrInvalidQuery) {
			t.Errorf("err = %v, want ErrInvalidQuery", err)
		}
		if out != nil {
			t.Errorf("outcome = %v, want nil", out)
		}
	})

	t.Run("cancelled context", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		out, err := svc.Retrieve(cctx, NewQuery("x", WithProvenance(trust.Extracted)))
		if !errors.Is(err, context.Canceled) {
			t.Errorf("err = %v, want context.Canceled", err)
		}
		if out != nil {
			t.Errorf("outcome = %v, want nil", out)
		}
	})

	if validated, rejected := svc.Session().Counts(); validated != 0 || rejected != 0 {
		t.Errorf("counts = %d/%d, want 0/0 after failed retrieves", validated, rejected)
	}
}

func TestService_ClosedErrors(t *testing.T) {
	cfg := testConfig(t)
	svc, err := NewService(cfg, WithProbes(denyStub(probe.Structural)))
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	sess, err := svc.NewSession()
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}

	if err := sess.Close(); err != nil {
		t.Fatalf("session Close: %v", err)
	}
	if err := sess.Close(); err != nil {
		t.Errorf("second session Close: %v", err)
	}
	if _, err := sess.Retrieve(context.Background(), NewQuery("x")); !errors.Is(err, ErrSessionClosed) {
		t.Errorf("err = %v, want ErrSessionClosed", err)
	}
	if err := sess.VerifyJournal(context.Background()); !errors.Is(err, ErrSessionClosed) {
		t.Errorf("err = %v, want ErrSessionClosed", err)
	}

	if err := svc.Close(context.Background()); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := svc.Close(context.Background()); err != nil {
		t.Errorf("second Close: %v", err)
	}
	if _, err := svc.Retrieve(context.Background(), NewQuery("x")); !errors.Is(err, ErrServiceClosed) {
		t.Errorf("err = %v, want ErrServiceClosed", err)
	}
	if _, err := svc.NewSession(); !errors.Is(err, ErrServiceClosed) {
		t.Errorf("err = %v, want ErrServiceClosed", err)
	}
	if _, err := svc.ResumeSession(context.Background(), "id"); !errors.Is(err, ErrServiceClosed) {
		t.Errorf("err = %v, want ErrServiceClosed", err)
	}
}
