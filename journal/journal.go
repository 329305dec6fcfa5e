// Package journal persists trade, equity, and grid lifecycle records for
// a backtest run. Backends: CSV files, SQLite, or Nop.
package journal

import (
	"time"
)

// TradeRecord is one closed (or partially closed) position slice.
type TradeRecord struct {
	TradeID    string
	RunID      string
	Symbol     string
	Book       string // "main" or "hedge"
	Side       string
	Quantity   float64
	EntryPrice float64
	ExitPrice  float64
	RealizedPL float64
	Commission float64
	CloseTime  time.Time
	Reason     string
}

// EquitySnapshot is one point on the account equity curve.
type EquitySnapshot struct {
	Time       time.Time
	RunID      string
	Balance    float64
	Equity     float64
	MarginUsed float64
	Unrealized float64
}

// GridEvent marks a grid lifecycle transition (open, close, hedge
// activation) with a free-form detail string.
type GridEvent struct {
	Time   time.Time
	RunID  string
	Symbol string
	Book   string
	Event  string
	Detail string
}

// RunSummary is the final record of a completed backtest run.
type RunSummary struct {
	RunID          string
	Created        time.Time
	Dataset        string
	Symbols        string
	Start          time.Time
	End            time.Time
	InitialCapital float64
	FinalEquity    float64
	ReturnPct      float64
	MaxDrawdownPct float64
	Trades         int
	Wins           int
	Losses         int
	FeesPaid       float64
	Config         []byte // serialized run configuration
}

type Journal interface {
	RecordTrade(TradeRecord) error
	RecordEquity(EquitySnapshot) error
	RecordGridEvent(GridEvent) error
	RecordRun(RunSummary) error
	Close() error
}

// Nop discards every record.
type Nop struct{}

func (Nop) RecordTrade(TradeRecord) error     { return nil }
func (Nop) RecordEquity(EquitySnapshot) error { return nil }
func (Nop) RecordGridEvent(GridEvent) error   { return nil }
func (Nop) RecordRun(RunSummary) error        { return nil }
func (Nop) Close() error                      { return nil }
