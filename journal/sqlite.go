package journal

import (
	"database/sql"

	_ "github.com/mattn/go-sqlite3"
)

// SQLite persists records to a sqlite3 database, tagging every row with
// the run ID so multiple runs can share one file.
type SQLite struct {
	db    *sql.DB
	runID string
}

func NewSQLite(path, runID string) (*SQLite, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, err
	}
	return &SQLite{db: db, runID: runID}, nil
}

func (j *SQLite) RecordTrade(t TradeRecord) error {
	_, err := j.db.Exec(`
		INSERT INTO trades
		(trade_id, run_id, symbol, book, side, quantity, entry_price, exit_price, realized_pl, commission, close_time, reason)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.TradeID, j.runID, t.Symbol, t.Book, t.Side, t.Quantity,
		t.EntryPrice, t.ExitPrice, t.RealizedPL, t.Commission, t.CloseTime, t.Reason,
	)
	return err
}

func (j *SQLite) RecordEquity(e EquitySnapshot) error {
	_, err := j.db.Exec(`
		INSERT INTO equity
		(time, run_id, balance, equity, margin_used, unrealized)
		VALUES (?, ?, ?, ?, ?, ?)`,
		e.Time, j.runID, e.Balance, e.Equity, e.MarginUsed, e.Unrealized,
	)
	return err
}

func (j *SQLite) RecordGridEvent(g GridEvent) error {
	_, err := j.db.Exec(`
		INSERT INTO grid_events
		(time, run_id, symbol, book, event, detail)
		VALUES (?, ?, ?, ?, ?, ?)`,
		g.Time, j.runID, g.Symbol, g.Book, g.Event, g.Detail,
	)
	return err
}

func (j *SQLite) RecordRun(r RunSummary) error {
	_, err := j.db.Exec(`
		INSERT INTO runs
		(run_id, created, dataset, symbols, start_time, end_time, initial_capital, final_equity,
		 return_pct, max_drawdown_pct, trades, wins, losses, fees_paid, config)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		j.runID, r.Created, r.Dataset, r.Symbols, r.Start, r.End,
		r.InitialCapital, r.FinalEquity, r.ReturnPct, r.MaxDrawdownPct,
		r.Trades, r.Wins, r.Losses, r.FeesPaid, r.Config,
	)
	return err
}

func (j *SQLite) Close() error {
	return j.db.Close()
}
