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
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/ddr/services/ddr/probe"
)

// stubProbe is a scripted probe for validator tests.
type stubProbe struct {
	id      probe.Identity
	verdict probe.Verdict
	err     error
	delay   time.Duration
	calls   atomic.Int64
}

func (s *stubProbe) Identity() probe.Identity { return s.id }

func (s *stubProbe) Check(ctx context.Context, q probe.Query) (probe.Verdict, error) {
	s.calls.Add(1)
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return probe.Verdict{Probe: s.id}, ctx.Err()
		}
	}
	if s.err != nil {
		return probe.Verdict{Probe: s.id}, s.err
	}
	v := s.verdict
	v.Probe = s.id
	return v, nil
}

func confirming(id probe.Identity, path string, line int, sig string) *stubProbe {
	return &stubProbe{
		id: id,
		verdict: probe.Verdict{
			Confirmed: true,
			Location:  &probe.Location{FilePath: path, StartLine: line, EndLine: line + 5},
			Signature: sig,
		},
	}
}

func confirmingBare(id probe.Identity) *stubProbe {
	return &stubProbe{id: id, verdict: probe.Verdict{Confirmed: true}}
}

func unconfirming(id probe.Identity) *stubProbe {
	return &stubProbe{id: id}
}

func abstaining(id probe.Identity, err error) *stubProbe {
	return &stubProbe{id: id, err: err}
}

func TestNewValidator(t *testing.T) {
	t.Run("rejects zero probes", func(t *testing.T) {
		_, err := NewValidator(nil)
		require.ErrorIs(t, err, ErrNoProbes)
	})

	t.Run("sorts probes into trust order", func(t *testing.T) {
		v, err := NewValidator([]probe.Probe{
			confirmingBare(probe.RawText),
			confirmingBare(probe.Structural),
			confirmingBare(probe.LanguageServer),
			confirmingBare(probe.Syntax),
		})
		require.NoError(t, err)

		want := []probe.Identity{probe.Structural, probe.Syntax, probe.LanguageServer, probe.RawText}
		assert.Equal(t, want, v.Probes())
	})

	t.Run("creates a health monitor by default", func(t *testing.T) {
		v, err := NewValidator([]probe.Probe{confirmingBare(probe.RawText)})
		require.NoError(t, err)
		assert.NotNil(t, v.Health())
	})
}

func TestValidator_Validate_AllConfirm(t *testing.T) {
	v, err := NewValidator([]probe.Probe{
		confirming(probe.Structural, "/ws/metric/session.go", 17, "func NewSession(id string) *Session"),
		confirming(probe.Syntax, "/ws/metric/session.go", 17, "func NewSession(id string) *Session"),
		confirming(probe.LanguageServer, "/ws/metric/session.go", 17, ""),
		confirmingBare(probe.RawText),
	})
	require.NoError(t, err)

	result, err := v.Validate(context.Background(), probe.Query{Name: "NewSession"})
	require.NoError(t, err)

	assert.Equal(t, 4, result.ConfirmingCount)
	assert.Equal(t, 4, result.TotalChecked)
	assert.Equal(t, 1.0, result.Confidence)
	assert.True(t, result.HighConfidence)
	assert.Empty(t, result.Abstained)

	require.NotNil(t, result.BestLocation)
	assert.Equal(t, "/ws/metric/session.go:17", result.BestLocation.String())
	assert.Equal(t, "func NewSession(id string) *Session", result.BestSignature)

	from, ok := result.LocationProbe()
	require.True(t, ok)
	assert.Equal(t, probe.Structural, from)
}

// The canonical cross-check scenario: the structural and raw text
// probes agree, the other two cannot run, and the citation comes from
// the structural verdict.
func TestValidator_Validate_PartialAbstention(t *testing.T) {
	v, err := NewValidator([]probe.Probe{
		confirming(probe.Structural, "file.py", 10, "def compute_rate(rejected, validated)"),
		abstaining(probe.Syntax, probe.ErrUnsupported),
		abstaining(probe.LanguageServer, probe.ErrUnavailable),
		confirmingBare(probe.RawText),
	})
	require.NoError(t, err)

	result, err := v.Validate(context.Background(), probe.Query{Name: "compute_rate", FileScope: "file.py"})
	require.NoError(t, err)

	assert.Equal(t, 2, result.ConfirmingCount)
	assert.Equal(t, 2, result.TotalChecked)
	assert.Equal(t, 1.0, result.Confidence)
	assert.True(t, result.HighConfidence)

	assert.Equal(t, []probe.Identity{probe.Syntax, probe.LanguageServer}, result.Abstained)
	assert.True(t, result.AbstainedBy(probe.Syntax))
	assert.False(t, result.AbstainedBy(probe.Structural))

	require.NotNil(t, result.BestLocation)
	assert.Equal(t, "file.py:10", result.BestLocation.String())

	from, ok := result.LocationProbe()
	require.True(t, ok)
	assert.Equal(t, probe.Structural, from)

	// Abstaining probes degrade but the query still succeeds.
	assert.Equal(t, probe.HealthDegraded, v.Health().State(probe.LanguageServer))
	assert.Equal(t, probe.HealthDegraded, v.Health().State(probe.Syntax))
	assert.Equal(t, probe.HealthNormal, v.Health().State(probe.Structural))
}

func TestValidator_Validate_Invariants(t *testing.T) {
	cases := []struct {
		name   string
		probes []probe.Probe
	}{
		{
			"all confirm",
			[]probe.Probe{
				confirming(probe.Structural, "a.go", 1, "sig"),
				confirmingBare(probe.RawText),
			},
		},
		{
			"none confirm",
			[]probe.Probe{
				unconfirming(probe.Structural),
				unconfirming(probe.RawText),
			},
		},
		{
			"mixed",
			[]probe.Probe{
				confirming(probe.Structural, "a.go", 1, ""),
				unconfirming(probe.Syntax),
				abstaining(probe.LanguageServer, probe.ErrUnavailable),
				confirmingBare(probe.RawText),
			},
		},
		{
			"all abstain",
			[]probe.Probe{
				abstaining(probe.Structural, probe.ErrUnsupported),
				abstaining(probe.RawText, probe.ErrUnavailable),
			},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			v, err := NewValidator(tc.probes)
			require.NoError(t, err)

			result, err := v.Validate(context.Background(), probe.Query{Name: "X"})
			require.NoError(t, err)

			assert.LessOrEqual(t, result.ConfirmingCount, result.TotalChecked)
			assert.GreaterOrEqual(t, result.Confidence, 0.0)
			assert.LessOrEqual(t, result.Confidence, 1.0)
			assert.Equal(t, len(tc.probes), result.TotalChecked+len(result.Abstained))
			assert.Len(t, result.Verdicts, result.TotalChecked)
		})
	}
}

func TestValidator_Validate_TieBreak(t *testing.T) {
	t.Run("trust order wins", func(t *testing.T) {
		v, err := NewValidator([]probe.Probe{
			unconfirming(probe.Structural),
			confirming(probe.Syntax, "b.go", 30, ""),
			confirming(probe.LanguageServer, "a.go", 2, "full signature"),
			confirmingBare(probe.RawText),
		})
		require.NoError(t, err)

		result, err := v.Validate(context.Background(), probe.Query{Name: "X"})
		require.NoError(t, err)

		// Syntax outranks the server even though the server verdict
		// has a signature and a lower line.
		require.NotNil(t, result.BestLocation)
		assert.Equal(t, "b.go:30", result.BestLocation.String())
	})

	t.Run("signature breaks equal trust", func(t *testing.T) {
		v, err := NewValidator([]probe.Probe{
			confirming(probe.Structural, "a.go", 5, ""),
			confirming(probe.Structural, "a.go", 9, "func X()"),
		})
		require.NoError(t, err)

		result, err := v.Validate(context.Background(), probe.Query{Name: "X"})
		require.NoError(t, err)

		require.NotNil(t, result.BestLocation)
		assert.Equal(t, "a.go:9", result.BestLocation.String())
		assert.Equal(t, "func X()", result.BestSignature)
	})

	t.Run("lowest line breaks remaining ties", func(t *testing.T) {
		v, err := NewValidator([]probe.Probe{
			confirming(probe.Structural, "a.go", 9, "func X()"),
			confirming(probe.Structural, "a.go", 5, "func X()"),
		})
		require.NoError(t, err)

		result, err := v.Validate(context.Background(), probe.Query{Name: "X"})
		require.NoError(t, err)

		require.NotNil(t, result.BestLocation)
		assert.Equal(t, "a.go:5", result.BestLocation.String())
	})
}

func TestValidator_Validate_Timeout(t *testing.T) {
	slow := confirming(probe.Structural, "a.go", 1, "sig")
	slow.delay = 200 * time.Millisecond

	v, err := NewValidator(
		[]probe.Probe{slow, confirmingBare(probe.RawText)},
		WithProbeTimeout(20*time.Millisecond),
	)
	require.NoError(t, err)

	result, err := v.Validate(context.Background(), probe.Query{Name: "X"})
	require.NoError(t, err)

	assert.Equal(t, 1, result.TotalChecked)
	assert.Equal(t, 1, result.ConfirmingCount)
	assert.True(t, result.AbstainedBy(probe.Structural))
	assert.Equal(t, probe.HealthDegraded, v.Health().State(probe.Structural))
}

func TestValidator_Validate_NoVerdicts(t *testing.T) {
	v, err := NewValidator([]probe.Probe{
		abstaining(probe.Structural, probe.ErrUnsupported),
		abstaining(probe.RawText, probe.ErrUnavailable),
	})
	require.NoError(t, err)

	result, err := v.Validate(context.Background(), probe.Query{Name: "X"})
	require.NoError(t, err)

	assert.Equal(t, 0, result.TotalChecked)
	assert.Equal(t, 0.0, result.Confidence)
	assert.False(t, result.Confirmed())
	assert.Nil(t, result.BestLocation)
}

func TestValidator_Validate_InvalidQuery(t *testing.T) {
	v, err := NewValidator([]probe.Probe{confirmingBare(probe.RawText)})
	require.NoError(t, err)

	_, err = v.Validate(context.Background(), probe.Query{})
	assert.ErrorIs(t, err, probe.ErrInvalidQuery)
}

func TestValidator_Validate_CanceledContext(t *testing.T) {
	v, err := NewValidator([]probe.Probe{confirmingBare(probe.RawText)})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = v.Validate(ctx, probe.Query{Name: "X"})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestValidator_Validate_DisabledProbeSkipped(t *testing.T) {
	disabled := confirming(probe.Structural, "a.go", 1, "sig")

	v, err := NewValidator([]probe.Probe{disabled, confirmingBare(probe.RawText)})
	require.NoError(t, err)

	v.Health().SetDisabled(probe.Structural, "operator request")

	result, err := v.Validate(context.Background(), probe.Query{Name: "X"})
	require.NoError(t, err)

	assert.Equal(t, int64(0), disabled.calls.Load(), "disabled probe must not run")
	assert.True(t, result.AbstainedBy(probe.Structural))
	assert.Equal(t, 1, result.TotalChecked)
}

func TestValidator_Validate_Concurrent(t *testing.T) {
	v, err := NewValidator([]probe.Probe{
		confirming(probe.Structural, "a.go", 1, "sig"),
		unconfirming(probe.Syntax),
		confirmingBare(probe.RawText),
	})
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			result, err := v.Validate(context.Background(), probe.Query{Name: "X"})
			assert.NoError(t, err)
			assert.Equal(t, 2, result.ConfirmingCount)
			assert.Equal(t, 3, result.TotalChecked)
		}()
	}
	wg.Wait()
}

func TestResult_VerdictFor(t *testing.T) {
	v, err := NewValidator([]probe.Probe{
		confirming(probe.Structural, "a.go", 1, "sig"),
		confirmingBare(probe.RawText),
	})
	require.NoError(t, err)

	result, err := v.Validate(context.Background(), probe.Query{Name: "X"})
	require.NoError(t, err)

	verdict, ok := result.VerdictFor(probe.Structural)
	require.True(t, ok)
	assert.True(t, verdict.Confirmed)
	require.NotNil(t, verdict.Location)

	_, ok = result.VerdictFor(probe.Syntax)
	assert.False(t, ok)

	// Raw text confirms without a citable site.
	verdict, ok = result.VerdictFor(probe.RawText)
	require.True(t, ok)
	assert.True(t, verdict.Confirmed)
	assert.Nil(t, verdict.Location)
}
