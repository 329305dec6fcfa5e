package journal

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	return rows
}

func TestCSVWritesAllFiles(t *testing.T) {
	dir := t.TempDir()
	j, err := NewCSV(dir, "run-1")
	require.NoError(t, err)

	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, j.RecordTrade(TradeRecord{
		TradeID: "t-1", Symbol: "BTCUSDT", Book: "main", Side: "long",
		Quantity: 0.01, EntryPrice: 89400, ExitPrice: 89847,
		RealizedPL: 4.47, Commission: 0.35, CloseTime: now, Reason: "take-profit 1",
	}))
	require.NoError(t, j.RecordEquity(EquitySnapshot{Time: now, Balance: 9990, Equity: 10_004.47}))
	require.NoError(t, j.RecordGridEvent(GridEvent{Time: now, Symbol: "BTCUSDT", Book: "main", Event: "open", Detail: "side=long"}))
	require.NoError(t, j.Close())

	trades := readCSV(t, filepath.Join(dir, "trades.csv"))
	require.Len(t, trades, 2)
	require.Equal(t, "trade_id", trades[0][0])
	require.Equal(t, "t-1", trades[1][0])
	require.Equal(t, "run-1", trades[1][1])
	require.Equal(t, "take-profit 1", trades[1][11])

	equity := readCSV(t, filepath.Join(dir, "equity.csv"))
	require.Len(t, equity, 2)
	require.Equal(t, now.Format(time.RFC3339), equity[1][0])

	events := readCSV(t, filepath.Join(dir, "grid_events.csv"))
	require.Len(t, events, 2)
	require.Equal(t, "open", events[1][4])
}

func TestCSVFlushesPerRecord(t *testing.T) {
	dir := t.TempDir()
	j, err := NewCSV(dir, "run-1")
	require.NoError(t, err)
	defer j.Close()

	require.NoError(t, j.RecordTrade(TradeRecord{TradeID: "t-1", CloseTime: time.Now()}))

	// Rows must reach disk without Close.
	rows := readCSV(t, filepath.Join(dir, "trades.csv"))
	require.Len(t, rows, 2)
}

func TestCSVCreatesDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "out")
	j, err := NewCSV(dir, "run-1")
	require.NoError(t, err)
	require.NoError(t, j.Close())

	_, err = os.Stat(filepath.Join(dir, "equity.csv"))
	require.NoError(t, err)
}
