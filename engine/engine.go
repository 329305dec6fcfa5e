package engine

import (
	"container/heap"
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/zuchengchen/martingrid/broker"
	"github.com/zuchengchen/martingrid/grid"
	"github.com/zuchengchen/martingrid/internal/id"
	"github.com/zuchengchen/martingrid/journal"
	"github.com/zuchengchen/martingrid/ledger"
	"github.com/zuchengchen/martingrid/market"
	"github.com/zuchengchen/martingrid/risk"
	"github.com/zuchengchen/martingrid/signal"
)

// TickFeed yields ticks in time order, (ok=false, err=nil) at EOF.
// Implementations must be deterministic.
type TickFeed interface {
	Next() (t market.Tick, ok bool, err error)
	Close() error
}

// Config holds the simulation loop's own parameters; component parameters
// live with their components.
type Config struct {
	InitialCapital    float64
	PrimaryInterval   time.Duration // signal timeframe, e.g. 15m
	SecondaryInterval time.Duration // confirmation timeframe, e.g. 5m
	HistoryBars       int           // bars retained per series
	EquityInterval    time.Duration // equity-curve sample spacing
	CloseAtEnd        bool
	Risk              risk.Policy
}

// DefaultConfig returns the stock loop parameters.
func DefaultConfig() Config {
	return Config{
		InitialCapital:    10_000,
		PrimaryInterval:   15 * time.Minute,
		SecondaryInterval: 5 * time.Minute,
		HistoryBars:       300,
		EquityInterval:    time.Minute,
		CloseAtEnd:        true,
		Risk:              risk.DefaultPolicy(),
	}
}

type barState struct {
	builder *market.BarBuilder
	series  *market.Series
}

// Engine owns the event queue and the current simulated time. Events are
// processed strictly one at a time; all component mutation happens on
// this single path.
type Engine struct {
	cfg Config

	broker  *broker.Sim
	ledger  *ledger.Ledger
	signals *signal.Generator
	grids   *grid.Manager
	hedges  *grid.HedgeManager
	journal journal.Journal
	log     *zap.Logger

	queue eventQueue
	seq   uint64
	now   time.Time

	primary   map[string]*barState
	secondary map[string]*barState

	equityCurve  []EquityPoint
	lastSample   time.Time
	liquidations int
	dataGaps     int
	riskBlocked  int
	start, end   time.Time
}

// New wires the simulation components together. A nil journal records
// nothing; a nil logger is replaced with a nop.
func New(cfg Config, b *broker.Sim, l *ledger.Ledger, gen *signal.Generator,
	grids *grid.Manager, hedges *grid.HedgeManager, j journal.Journal, log *zap.Logger) *Engine {
	if j == nil {
		j = journal.Nop{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{
		cfg:       cfg,
		broker:    b,
		ledger:    l,
		signals:   gen,
		grids:     grids,
		hedges:    hedges,
		journal:   j,
		log:       log,
		primary:   make(map[string]*barState),
		secondary: make(map[string]*barState),
	}
}

// push enqueues an event at the engine's current simulated time.
func (e *Engine) push(ev *Event) {
	ev.seq = e.seq
	e.seq++
	if ev.Time.IsZero() {
		ev.Time = e.now
	}
	heap.Push(&e.queue, ev)
}

// Run replays the feed to exhaustion and returns the performance report.
// Cancellation is checked once per tick, between ticks, so no event is
// ever left half-applied.
func (e *Engine) Run(ctx context.Context, feed TickFeed) (*Report, error) {
	defer feed.Close()

	for {
		if err := ctx.Err(); err != nil {
			e.log.Warn("run stopped", zap.Error(err))
			break
		}

		t, ok, err := feed.Next()
		if err != nil {
			return nil, fmt.Errorf("tick feed: %w", err)
		}
		if !ok {
			break
		}
		if !e.now.IsZero() && t.Time.Before(e.now) {
			// The boundary contract promises non-decreasing timestamps;
			// a violation is a data gap, skipped without halting.
			e.dataGaps++
			e.log.Warn("out-of-order tick dropped",
				zap.String("symbol", t.Symbol), zap.Time("time", t.Time))
			continue
		}

		if e.start.IsZero() {
			e.start = t.Time
		}
		e.end = t.Time

		tick := t
		e.push(&Event{Kind: KindTick, Time: t.Time, Symbol: t.Symbol, Tick: &tick})
		if err := e.drain(); err != nil {
			return nil, err
		}
	}

	if e.cfg.CloseAtEnd {
		if err := e.closeAll("end of data"); err != nil {
			return nil, err
		}
	}
	e.sampleEquity(true)

	return e.report(), nil
}

// drain processes queued events until empty, so everything a tick causes
// settles before the next tick is read.
func (e *Engine) drain() error {
	for e.queue.Len() > 0 {
		ev := heap.Pop(&e.queue).(*Event)
		if ev.Time.After(e.now) {
			e.now = ev.Time
		}

		var err error
		switch ev.Kind {
		case KindTick:
			err = e.onTick(ev.Tick)
		case KindBarClose:
			e.onBarClose(ev.Symbol, ev.Bar)
		case KindSignal:
			e.onSignal(ev.Signal)
		case KindOrder:
			err = e.onOrder(ev.Order)
		case KindFill:
			err = e.onFill(ev.Fill)
		case KindHedgeTrigger:
			e.onHedgeTrigger(ev.HedgeTrigger)
		default:
			err = fmt.Errorf("unhandled event kind %v", ev.Kind)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// onTick is the per-tick pipeline: mark updates first, then triggers in a
// fixed order so every decision sees fully-updated state.
func (e *Engine) onTick(t *market.Tick) error {
	sym := t.Symbol

	e.broker.UpdateMark(sym, t.Price)
	e.ledger.Mark(sym, t.Price, t.Time)
	e.grids.UpdateUnrealized(sym, t.Price)
	e.hedges.UpdateUnrealized(sym, t.Price)

	e.updateBars(sym, *t)

	if o := e.grids.OnTick(sym, t.Price); o != nil {
		e.push(&Event{Kind: KindOrder, Symbol: sym, Order: o})
	}

	if parent, ok := e.ledger.Position(sym, ledger.Main); ok {
		if kind, fire := e.hedges.CheckActivation(parent, t.Time); fire {
			e.push(&Event{Kind: KindHedgeTrigger, Symbol: sym,
				HedgeTrigger: &HedgeTrigger{Symbol: sym, Kind: kind, Price: t.Price}})
		}
	}

	if o := e.hedges.OnTick(sym, t.Price); o != nil {
		e.push(&Event{Kind: KindOrder, Symbol: sym, Order: o})
	}
	if o := e.hedges.CheckProfit(sym, t.Price); o != nil {
		e.push(&Event{Kind: KindOrder, Symbol: sym, Order: o})
	}
	if o := e.grids.CheckTakeProfit(sym, t.Price); o != nil {
		e.push(&Event{Kind: KindOrder, Symbol: sym, Order: o})
	}

	if err := e.enforceMargin(sym, t.Price); err != nil {
		return err
	}

	e.sampleEquity(false)
	return nil
}

func (e *Engine) updateBars(sym string, t market.Tick) {
	sec := e.barState(e.secondary, sym, e.cfg.SecondaryInterval)
	if closed, ok := sec.builder.Update(t); ok {
		sec.series.Append(closed)
	}

	pri := e.barState(e.primary, sym, e.cfg.PrimaryInterval)
	if closed, ok := pri.builder.Update(t); ok {
		pri.series.Append(closed)
		bar := closed
		e.push(&Event{Kind: KindBarClose, Time: closed.End(), Symbol: sym, Bar: &bar})
	}
}

func (e *Engine) barState(m map[string]*barState, sym string, interval time.Duration) *barState {
	st, ok := m[sym]
	if !ok {
		st = &barState{
			builder: market.NewBarBuilder(interval),
			series:  market.NewSeries(e.cfg.HistoryBars),
		}
		m[sym] = st
	}
	return st
}

// onBarClose evaluates the signal generator on a closed primary bar. Both
// series contain only bars closed at or before now: no look-ahead.
func (e *Engine) onBarClose(sym string, bar *market.Bar) {
	pri := e.primary[sym]
	sec := e.secondary[sym]
	if pri == nil || sec == nil {
		return
	}
	sig := e.signals.OnBarClose(sym, bar.End(), pri.series.Bars(), sec.series.Bars())
	if sig != nil {
		e.push(&Event{Kind: KindSignal, Symbol: sym, Signal: sig})
	}
}

// onSignal hands the signal to the main grid manager. A duplicate (grid
// already active) is logged and dropped, never fatal.
func (e *Engine) onSignal(sig *signal.Signal) {
	price, ok := e.broker.Mark(sig.Symbol)
	if !ok {
		e.dataGaps++
		return
	}

	if d := risk.Evaluate(e.cfg.Risk, e.riskSnapshot()); !d.Allowed {
		e.riskBlocked++
		e.log.Info("signal blocked by risk policy",
			zap.String("symbol", sig.Symbol),
			zap.Stringer("decision", d))
		return
	}

	o, err := e.grids.Open(sig, price, e.now)
	if err != nil {
		if errors.Is(err, grid.ErrGridActive) {
			e.log.Debug("signal dropped, grid active", zap.String("symbol", sig.Symbol))
			return
		}
		e.log.Warn("signal rejected", zap.Error(err))
		return
	}

	_ = e.journal.RecordGridEvent(journal.GridEvent{
		Time: e.now, Symbol: sig.Symbol, Book: "main", Event: "open",
		Detail: fmt.Sprintf("side=%s spacing=%.4f levels=%d", sig.Side, sig.Spacing, sig.MaxLevels),
	})
	e.push(&Event{Kind: KindOrder, Symbol: sig.Symbol, Order: o})
}

// riskSnapshot gathers the account state the risk policy evaluates.
func (e *Engine) riskSnapshot() risk.Snapshot {
	var notional float64
	for _, pos := range e.ledger.Snapshot() {
		if mark, ok := e.broker.Mark(pos.Symbol); ok {
			notional += pos.Notional(mark)
		}
	}
	return risk.Snapshot{
		Equity:     e.broker.Equity(e.ledger.TotalUnrealized()),
		MarginUsed: e.broker.MarginUsed(),
		Notional:   notional,
		OpenGrids:  e.grids.ActiveCount(),
	}
}

// onHedgeTrigger activates the hedge grid. Duplicate activations are
// logged and ignored.
func (e *Engine) onHedgeTrigger(ht *HedgeTrigger) {
	parent, ok := e.ledger.Position(ht.Symbol, ledger.Main)
	if !ok {
		return
	}
	o, err := e.hedges.Activate(parent, ht.Kind, ht.Price, e.now)
	if err != nil {
		if errors.Is(err, grid.ErrHedgeActive) {
			e.log.Debug("duplicate hedge activation ignored", zap.String("symbol", ht.Symbol))
			return
		}
		e.log.Warn("hedge activation failed", zap.Error(err))
		return
	}

	_ = e.journal.RecordGridEvent(journal.GridEvent{
		Time: e.now, Symbol: ht.Symbol, Book: "hedge", Event: "open",
		Detail: fmt.Sprintf("trigger=%s", ht.Kind),
	})
	e.push(&Event{Kind: KindOrder, Symbol: ht.Symbol, Order: o})
}

// onOrder executes against the simulated broker. Rejections re-arm the
// originating grid level and the run continues.
func (e *Engine) onOrder(o *broker.Order) error {
	o.ID = id.New()

	fill, err := e.broker.Execute(*o, e.now)
	if err != nil {
		var rej *broker.RejectedError
		if errors.As(err, &rej) {
			e.log.Debug("order rejected",
				zap.String("symbol", o.Symbol),
				zap.String("reason", rej.Reason.String()),
				zap.String("purpose", o.Reason))
			if o.Hedge {
				e.hedges.OnReject(*o)
			} else {
				e.grids.OnReject(*o)
			}
			return nil
		}
		return err
	}

	f := fill
	e.push(&Event{Kind: KindFill, Symbol: f.Symbol, Fill: &f})
	return nil
}

// onFill applies the fill to the ledger first (fatal on invariant
// violation), settles cash with the broker for closed slices, then routes
// the fill to its grid manager.
func (e *Engine) onFill(f *broker.Fill) error {
	res, err := e.ledger.ApplyFill(*f)
	if err != nil {
		var inv *ledger.InvariantError
		if errors.As(err, &inv) {
			e.log.Error("aborting run on ledger invariant violation",
				zap.String("symbol", f.Symbol),
				zap.Any("ledger", e.ledger.Snapshot()),
				zap.Error(inv))
		}
		return err
	}

	if res != nil {
		released := e.broker.OpenMargin(res.ClosedQuantity, res.EntryPrice)
		e.broker.Settle(released, res.RealizedPnL)

		book := "main"
		if f.Hedge {
			book = "hedge"
		}
		_ = e.journal.RecordTrade(journal.TradeRecord{
			TradeID:    f.OrderID,
			Symbol:     f.Symbol,
			Book:       book,
			Side:       f.Side.String(),
			Quantity:   res.ClosedQuantity,
			EntryPrice: res.EntryPrice,
			ExitPrice:  f.Price,
			RealizedPL: res.RealizedPnL,
			Commission: f.Commission,
			CloseTime:  f.Time,
			Reason:     f.Reason,
		})
	}

	if f.Hedge {
		e.hedges.OnFill(*f)
	} else {
		e.grids.OnFill(*f)
		if res != nil && res.RemainingSize == 0 {
			// Position flat: retire the grid if take-profit didn't already,
			// then unwind the hedge it was protecting.
			e.grids.Close(f.Symbol, f.Reason, f.Time)
			e.journalGridClose(f.Symbol, f.Time)
			e.closeHedgeFor(f.Symbol, f.Time)
		}
	}
	return nil
}

// closeHedgeFor retires an active hedge once its parent book is flat. A
// hedge exists only against a parent position; left running, its ladder
// would keep adding unmanaged directional exposure.
func (e *Engine) closeHedgeFor(sym string, at time.Time) {
	if _, ok := e.hedges.Grid(sym); !ok {
		return
	}
	if pos, ok := e.ledger.Position(sym, ledger.Hedge); ok && pos.Size > 0 {
		e.push(&Event{Kind: KindOrder, Symbol: sym, Order: &broker.Order{
			Symbol:     sym,
			Side:       pos.Side,
			Type:       broker.MarketOrder,
			Quantity:   pos.Size,
			ReduceOnly: true,
			Hedge:      true,
			Reason:     "parent closed",
		}})
	}
	e.hedges.Close(sym, "parent closed", at)
}

// journalGridClose records the just-archived grid's lifecycle end,
// including the deepest drawdown it saw while open.
func (e *Engine) journalGridClose(sym string, at time.Time) {
	hist := e.grids.History()
	if len(hist) == 0 {
		return
	}
	g := hist[len(hist)-1]
	if g.Symbol != sym {
		return
	}
	_ = e.journal.RecordGridEvent(journal.GridEvent{
		Time:   at,
		Symbol: sym,
		Book:   "main",
		Event:  "close",
		Detail: fmt.Sprintf("reason=%q max_drawdown=%.4f", g.CloseReason, g.MaxDrawdown),
	})
}

// enforceMargin force-closes the symbol's books when equity no longer
// covers maintenance margin. The liquidation check itself is advisory;
// acting on it is this loop's job.
func (e *Engine) enforceMargin(sym string, price float64) error {
	var notional float64
	for _, book := range []ledger.Book{ledger.Main, ledger.Hedge} {
		if pos, ok := e.ledger.Position(sym, book); ok {
			notional += pos.Notional(price)
		}
	}
	if notional == 0 {
		return nil
	}

	equity := e.broker.Equity(e.ledger.TotalUnrealized())
	if !e.broker.CheckLiquidation(equity, notional) {
		return nil
	}

	e.liquidations++
	e.log.Warn("liquidation",
		zap.String("symbol", sym),
		zap.Float64("equity", equity),
		zap.Float64("notional", notional))
	return e.closeSymbol(sym, "liquidation")
}

// cancelPending drops queued orders, triggers, and signals for a symbol.
// Working orders do not survive a force close.
func (e *Engine) cancelPending(sym string) {
	kept := e.queue[:0]
	for _, ev := range e.queue {
		if ev.Symbol == sym {
			switch ev.Kind {
			case KindOrder, KindHedgeTrigger, KindSignal:
				continue
			}
		}
		kept = append(kept, ev)
	}
	e.queue = kept
	heap.Init(&e.queue)
}

// closeSymbol force-closes both books for a symbol and drains the
// resulting orders and fills.
func (e *Engine) closeSymbol(sym, reason string) error {
	e.cancelPending(sym)
	for _, book := range []ledger.Book{ledger.Main, ledger.Hedge} {
		pos, ok := e.ledger.Position(sym, book)
		if !ok || pos.Size <= 0 {
			continue
		}
		e.push(&Event{Kind: KindOrder, Symbol: sym, Order: &broker.Order{
			Symbol:     sym,
			Side:       pos.Side,
			Type:       broker.MarketOrder,
			Quantity:   pos.Size,
			ReduceOnly: true,
			Hedge:      book == ledger.Hedge,
			Reason:     reason,
		}})
	}
	e.grids.Close(sym, reason, e.now)
	e.hedges.Close(sym, reason, e.now)
	return e.drain()
}

// closeAll force-closes every open book at end of data.
func (e *Engine) closeAll(reason string) error {
	for _, pos := range e.ledger.Snapshot() {
		if err := e.closeSymbol(pos.Symbol, reason); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) sampleEquity(force bool) {
	if !force && e.cfg.EquityInterval > 0 && e.now.Sub(e.lastSample) < e.cfg.EquityInterval {
		return
	}
	e.lastSample = e.now

	eq := e.broker.Equity(e.ledger.TotalUnrealized())
	e.equityCurve = append(e.equityCurve, EquityPoint{Time: e.now, Equity: eq})
	_ = e.journal.RecordEquity(journal.EquitySnapshot{
		Time:       e.now,
		Balance:    e.broker.Balance(),
		Equity:     eq,
		MarginUsed: e.broker.MarginUsed(),
		Unrealized: e.ledger.TotalUnrealized(),
	})
}
