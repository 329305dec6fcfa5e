package engine

import (
	"fmt"
	"io"
	"time"
)

// EquityPoint is one sample of account equity along the run.
type EquityPoint struct {
	Time   time.Time
	Equity float64
}

// Report summarizes a completed run.
type Report struct {
	Start time.Time
	End   time.Time

	InitialCapital float64
	FinalEquity    float64
	TotalReturn    float64
	TotalReturnPct float64
	MaxDrawdownPct float64

	// WorstGridDrawdownPct is the deepest per-grid drawdown relative to
	// that grid's cost, across every grid the run opened.
	WorstGridDrawdownPct float64

	TotalTrades int
	Wins        int
	Losses      int
	WinRate     float64

	FilledOrders   int
	RejectedOrders int
	FillRate       float64
	FeesPaid       float64

	Liquidations   int
	DroppedSignals int
	RiskBlocked    int
	DataGaps       int

	EquityCurve []EquityPoint
}

func (e *Engine) report() *Report {
	r := &Report{
		Start:          e.start,
		End:            e.end,
		InitialCapital: e.cfg.InitialCapital,
		FinalEquity:    e.broker.Equity(e.ledger.TotalUnrealized()),
		FilledOrders:   e.broker.FillCount(),
		RejectedOrders: e.broker.RejectCount(),
		FeesPaid:       e.broker.FeesPaid(),
		Liquidations:   e.liquidations,
		DroppedSignals: e.grids.DuplicateCount(),
		RiskBlocked:    e.riskBlocked,
		DataGaps:       e.dataGaps,
		EquityCurve:    e.equityCurve,
	}

	r.TotalTrades, r.Wins, r.Losses = e.ledger.Stats()
	r.TotalReturn = r.FinalEquity - r.InitialCapital
	if r.InitialCapital > 0 {
		r.TotalReturnPct = r.TotalReturn / r.InitialCapital * 100
	}
	if r.TotalTrades > 0 {
		r.WinRate = float64(r.Wins) / float64(r.TotalTrades) * 100
	}
	if attempts := r.FilledOrders + r.RejectedOrders; attempts > 0 {
		r.FillRate = float64(r.FilledOrders) / float64(attempts) * 100
	}
	r.MaxDrawdownPct = maxDrawdownPct(e.equityCurve)
	r.WorstGridDrawdownPct = -e.grids.WorstDrawdown() * 100
	return r
}

// maxDrawdownPct is the worst peak-to-trough equity decline, as a
// positive percentage of the peak.
func maxDrawdownPct(curve []EquityPoint) float64 {
	var peak, worst float64
	for _, p := range curve {
		if p.Equity > peak {
			peak = p.Equity
		}
		if peak > 0 {
			dd := (peak - p.Equity) / peak * 100
			if dd > worst {
				worst = dd
			}
		}
	}
	return worst
}

// Print renders the report as a fixed-width text block.
func (r *Report) Print(w io.Writer) {
	line := func(format string, args ...any) { fmt.Fprintf(w, format+"\n", args...) }

	line("============ Backtest Report ============")
	line("  Period:           %s .. %s", r.Start.Format(time.RFC3339), r.End.Format(time.RFC3339))
	line("  Initial capital:  %12.2f", r.InitialCapital)
	line("  Final equity:     %12.2f", r.FinalEquity)
	line("  Total return:     %12.2f  (%+.2f%%)", r.TotalReturn, r.TotalReturnPct)
	line("  Max drawdown:     %11.2f%%", r.MaxDrawdownPct)
	line("  Worst grid DD:    %11.2f%%", r.WorstGridDrawdownPct)
	line("-----------------------------------------")
	line("  Closed trades:    %6d", r.TotalTrades)
	line("  Wins / losses:    %6d / %d", r.Wins, r.Losses)
	line("  Win rate:         %11.2f%%", r.WinRate)
	line("-----------------------------------------")
	line("  Orders filled:    %6d", r.FilledOrders)
	line("  Orders rejected:  %6d", r.RejectedOrders)
	line("  Fill rate:        %11.2f%%", r.FillRate)
	line("  Fees paid:        %12.2f", r.FeesPaid)
	line("-----------------------------------------")
	line("  Liquidations:     %6d", r.Liquidations)
	line("  Dropped signals:  %6d", r.DroppedSignals)
	line("  Risk blocked:     %6d", r.RiskBlocked)
	line("  Data gaps:        %6d", r.DataGaps)
	line("=========================================")
}
