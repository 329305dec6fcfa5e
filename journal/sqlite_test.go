package journal

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newTestSQLite(t *testing.T, runID string) *SQLite {
	t.Helper()
	j, err := NewSQLite(filepath.Join(t.TempDir(), "journal.db"), runID)
	require.NoError(t, err)
	t.Cleanup(func() { j.Close() })
	return j
}

func TestSQLiteTradeRoundTrip(t *testing.T) {
	j := newTestSQLite(t, "run-1")

	closeTime := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	rec := TradeRecord{
		TradeID:    "t-1",
		Symbol:     "BTCUSDT",
		Book:       "main",
		Side:       "long",
		Quantity:   0.01,
		EntryPrice: 89400,
		ExitPrice:  89847,
		RealizedPL: 4.47,
		Commission: 0.35,
		CloseTime:  closeTime,
		Reason:     "take-profit 1",
	}
	require.NoError(t, j.RecordTrade(rec))

	trades, err := j.ListTrades("run-1")
	require.NoError(t, err)
	require.Len(t, trades, 1)

	got := trades[0]
	require.Equal(t, "t-1", got.TradeID)
	require.Equal(t, "run-1", got.RunID)
	require.Equal(t, "main", got.Book)
	require.InDelta(t, 4.47, got.RealizedPL, 1e-9)
	require.True(t, got.CloseTime.Equal(closeTime))
}

func TestSQLiteRunsIsolated(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "journal.db")

	a, err := NewSQLite(path, "run-a")
	require.NoError(t, err)
	require.NoError(t, a.RecordTrade(TradeRecord{TradeID: "t-a", Symbol: "BTCUSDT", CloseTime: time.Now()}))
	require.NoError(t, a.Close())

	b, err := NewSQLite(path, "run-b")
	require.NoError(t, err)
	defer b.Close()
	require.NoError(t, b.RecordTrade(TradeRecord{TradeID: "t-b", Symbol: "ETHUSDT", CloseTime: time.Now()}))

	trades, err := b.ListTrades("run-b")
	require.NoError(t, err)
	require.Len(t, trades, 1)
	require.Equal(t, "t-b", trades[0].TradeID)

	trades, err = b.ListTrades("run-a")
	require.NoError(t, err)
	require.Len(t, trades, 1)
	require.Equal(t, "t-a", trades[0].TradeID)
}

func TestSQLiteEquityOrdering(t *testing.T) {
	j := newTestSQLite(t, "run-1")

	base := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	for i := 2; i >= 0; i-- {
		require.NoError(t, j.RecordEquity(EquitySnapshot{
			Time:   base.Add(time.Duration(i) * time.Minute),
			Equity: 10_000 + float64(i),
		}))
	}

	curve, err := j.ListEquity("run-1")
	require.NoError(t, err)
	require.Len(t, curve, 3)
	for i := 1; i < len(curve); i++ {
		require.False(t, curve[i].Time.Before(curve[i-1].Time))
	}
}

func TestSQLiteGridEvents(t *testing.T) {
	j := newTestSQLite(t, "run-1")

	require.NoError(t, j.RecordGridEvent(GridEvent{
		Time: time.Now(), Symbol: "BTCUSDT", Book: "hedge",
		Event: "open", Detail: "trigger=drawdown",
	}))

	events, err := j.ListGridEvents("run-1")
	require.NoError(t, err)
	require.Len(t, events, 1)
	require.Equal(t, "hedge", events[0].Book)
	require.Equal(t, "trigger=drawdown", events[0].Detail)
}

func TestSQLiteRunSummary(t *testing.T) {
	j := newTestSQLite(t, "run-1")

	sum := RunSummary{
		RunID:          "run-1",
		Created:        time.Now().UTC(),
		Dataset:        "ticks.csv.xz",
		Symbols:        "BTCUSDT",
		Start:          time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		End:            time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC),
		InitialCapital: 10_000,
		FinalEquity:    10_512.33,
		ReturnPct:      5.12,
		MaxDrawdownPct: 3.4,
		Trades:         42,
		Wins:           30,
		Losses:         12,
		FeesPaid:       18.7,
		Config:         []byte(`{"leverage":20}`),
	}
	require.NoError(t, j.RecordRun(sum))

	got, err := j.GetRun("run-1")
	require.NoError(t, err)
	require.Equal(t, 42, got.Trades)
	require.InDelta(t, 10_512.33, got.FinalEquity, 1e-9)
	require.Equal(t, []byte(`{"leverage":20}`), got.Config)

	_, err = j.GetRun("missing")
	require.Error(t, err)
}
