package risk

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func codes(d Decision) []string {
	var out []string
	for _, v := range d.Violations {
		out = append(out, v.Code)
	}
	return out
}

func TestEvaluateAllows(t *testing.T) {
	d := Evaluate(DefaultPolicy(), Snapshot{
		Equity:     10_000,
		MarginUsed: 1_000,
		Notional:   20_000,
		OpenGrids:  1,
	})
	require.True(t, d.Allowed)
	require.Empty(t, d.Violations)
	require.Equal(t, "allowed", d.String())
}

func TestEvaluateViolations(t *testing.T) {
	cases := []struct {
		name string
		snap Snapshot
		want string
	}{
		{"margin", Snapshot{Equity: 10_000, MarginUsed: 7_000}, "MARGIN_TOO_HIGH"},
		{"exposure", Snapshot{Equity: 10_000, Notional: 40_000}, "EXPOSURE_TOO_HIGH"},
		{"grid count", Snapshot{Equity: 10_000, OpenGrids: 3}, "TOO_MANY_GRIDS"},
		{"no equity", Snapshot{Equity: 0}, "NO_EQUITY"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			d := Evaluate(DefaultPolicy(), tc.snap)
			require.False(t, d.Allowed)
			require.Contains(t, codes(d), tc.want)
		})
	}
}

func TestEvaluateCollectsAll(t *testing.T) {
	d := Evaluate(DefaultPolicy(), Snapshot{
		Equity:     1_000,
		MarginUsed: 900,
		Notional:   10_000,
		OpenGrids:  5,
	})
	require.Len(t, d.Violations, 3)
	require.Contains(t, d.String(), "MARGIN_TOO_HIGH")
	require.Contains(t, d.String(), "EXPOSURE_TOO_HIGH")
}

func TestZeroLimitDisablesCheck(t *testing.T) {
	p := Policy{MaxMarginPct: 0, MaxExposurePct: 0, MaxOpenGrids: 0}
	d := Evaluate(p, Snapshot{Equity: 100, MarginUsed: 99, Notional: 1e9, OpenGrids: 50})
	require.True(t, d.Allowed)
}
