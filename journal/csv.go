package journal

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// CSV writes trades, equity samples, and grid events to three files in a
// directory. Rows are flushed on every record so a crashed run still
// leaves usable output.
type CSV struct {
	runID  string
	trades *csv.Writer
	equity *csv.Writer
	events *csv.Writer
	files  []*os.File
}

func NewCSV(dir, runID string) (*CSV, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}

	j := &CSV{runID: runID}
	open := func(name string, header []string) (*csv.Writer, error) {
		f, err := os.Create(filepath.Join(dir, name))
		if err != nil {
			return nil, err
		}
		j.files = append(j.files, f)
		w := csv.NewWriter(f)
		if err := w.Write(header); err != nil {
			return nil, err
		}
		w.Flush()
		return w, w.Error()
	}

	var err error
	if j.trades, err = open("trades.csv", []string{
		"trade_id", "run_id", "symbol", "book", "side", "quantity",
		"entry_price", "exit_price", "realized_pl", "commission", "close_time", "reason",
	}); err != nil {
		j.Close()
		return nil, err
	}
	if j.equity, err = open("equity.csv", []string{
		"time", "run_id", "balance", "equity", "margin_used", "unrealized",
	}); err != nil {
		j.Close()
		return nil, err
	}
	if j.events, err = open("grid_events.csv", []string{
		"time", "run_id", "symbol", "book", "event", "detail",
	}); err != nil {
		j.Close()
		return nil, err
	}
	return j, nil
}

func (j *CSV) RecordTrade(t TradeRecord) error {
	if err := j.trades.Write([]string{
		t.TradeID, j.runID, t.Symbol, t.Book, t.Side,
		f(t.Quantity), f(t.EntryPrice), f(t.ExitPrice),
		f(t.RealizedPL), f(t.Commission),
		t.CloseTime.Format(time.RFC3339), t.Reason,
	}); err != nil {
		return err
	}
	j.trades.Flush()
	return j.trades.Error()
}

func (j *CSV) RecordEquity(e EquitySnapshot) error {
	if err := j.equity.Write([]string{
		e.Time.Format(time.RFC3339), j.runID,
		f(e.Balance), f(e.Equity), f(e.MarginUsed), f(e.Unrealized),
	}); err != nil {
		return err
	}
	j.equity.Flush()
	return j.equity.Error()
}

func (j *CSV) RecordGridEvent(g GridEvent) error {
	if err := j.events.Write([]string{
		g.Time.Format(time.RFC3339), j.runID, g.Symbol, g.Book, g.Event, g.Detail,
	}); err != nil {
		return err
	}
	j.events.Flush()
	return j.events.Error()
}

// RecordRun is a no-op for CSV; the run summary belongs to the SQLite
// backend and the printed report.
func (j *CSV) RecordRun(RunSummary) error { return nil }

func (j *CSV) Close() error {
	var first error
	for _, w := range []*csv.Writer{j.trades, j.equity, j.events} {
		if w == nil {
			continue
		}
		w.Flush()
		if err := w.Error(); err != nil && first == nil {
			first = err
		}
	}
	for _, fl := range j.files {
		if err := fl.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func f(x float64) string {
	return strconv.FormatFloat(x, 'f', 6, 64)
}
