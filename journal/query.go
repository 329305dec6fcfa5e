package journal

import (
	"database/sql"
	"fmt"
)

// GetRun returns the summary row for a run ID.
func (j *SQLite) GetRun(runID string) (RunSummary, error) {
	var r RunSummary
	row := j.db.QueryRow(`
		SELECT run_id, created, dataset, symbols, start_time, end_time, initial_capital, final_equity,
		       return_pct, max_drawdown_pct, trades, wins, losses, fees_paid, config
		FROM runs WHERE run_id = ?`, runID)

	err := row.Scan(
		&r.RunID, &r.Created, &r.Dataset, &r.Symbols, &r.Start, &r.End,
		&r.InitialCapital, &r.FinalEquity, &r.ReturnPct, &r.MaxDrawdownPct,
		&r.Trades, &r.Wins, &r.Losses, &r.FeesPaid, &r.Config,
	)
	if err == sql.ErrNoRows {
		return RunSummary{}, fmt.Errorf("run %q not found", runID)
	}
	if err != nil {
		return RunSummary{}, err
	}
	return r, nil
}

// ListRuns returns every run summary, newest first.
func (j *SQLite) ListRuns() ([]RunSummary, error) {
	rows, err := j.db.Query(`
		SELECT run_id, created, dataset, symbols, start_time, end_time, initial_capital, final_equity,
		       return_pct, max_drawdown_pct, trades, wins, losses, fees_paid, config
		FROM runs ORDER BY created DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []RunSummary
	for rows.Next() {
		var r RunSummary
		if err := rows.Scan(
			&r.RunID, &r.Created, &r.Dataset, &r.Symbols, &r.Start, &r.End,
			&r.InitialCapital, &r.FinalEquity, &r.ReturnPct, &r.MaxDrawdownPct,
			&r.Trades, &r.Wins, &r.Losses, &r.FeesPaid, &r.Config,
		); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// ListTrades returns a run's trades ordered by close time.
func (j *SQLite) ListTrades(runID string) ([]TradeRecord, error) {
	rows, err := j.db.Query(`
		SELECT trade_id, run_id, symbol, book, side, quantity, entry_price, exit_price,
		       realized_pl, commission, close_time, reason
		FROM trades WHERE run_id = ? ORDER BY close_time ASC`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []TradeRecord
	for rows.Next() {
		var t TradeRecord
		if err := rows.Scan(
			&t.TradeID, &t.RunID, &t.Symbol, &t.Book, &t.Side, &t.Quantity,
			&t.EntryPrice, &t.ExitPrice, &t.RealizedPL, &t.Commission, &t.CloseTime, &t.Reason,
		); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// ListEquity returns a run's equity curve ordered by time.
func (j *SQLite) ListEquity(runID string) ([]EquitySnapshot, error) {
	rows, err := j.db.Query(`
		SELECT time, run_id, balance, equity, margin_used, unrealized
		FROM equity WHERE run_id = ? ORDER BY time ASC`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []EquitySnapshot
	for rows.Next() {
		var e EquitySnapshot
		if err := rows.Scan(&e.Time, &e.RunID, &e.Balance, &e.Equity, &e.MarginUsed, &e.Unrealized); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// ListGridEvents returns a run's grid lifecycle events ordered by time.
func (j *SQLite) ListGridEvents(runID string) ([]GridEvent, error) {
	rows, err := j.db.Query(`
		SELECT time, run_id, symbol, book, event, detail
		FROM grid_events WHERE run_id = ? ORDER BY time ASC`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []GridEvent
	for rows.Next() {
		var g GridEvent
		if err := rows.Scan(&g.Time, &g.RunID, &g.Symbol, &g.Book, &g.Event, &g.Detail); err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, rows.Err()
}
