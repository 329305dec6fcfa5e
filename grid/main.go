package grid

import (
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/zuchengchen/martingrid/broker"
	"github.com/zuchengchen/martingrid/market"
	"github.com/zuchengchen/martingrid/signal"
)

// Take-profit ladder: three rungs above (below, for shorts) the average
// entry, allocating 40/30/30 of the position. The last rung always closes
// whatever remains so a grid cannot strand a residual position.
var (
	takeProfitRungs = []float64{0.005, 0.010, 0.015}
	takeProfitAlloc = []float64{0.40, 0.30, 0.30}
)

// MainConfig holds the main grid's sizing parameters. Spacing, level
// count, and multiplier arrive per-signal.
type MainConfig struct {
	BaseQuantity float64 `yaml:"base_quantity" json:"base_quantity"`
}

// MainGrid is one active (or archived) martingale grid for a symbol.
// Aggregates mirror the position ledger for grid-local decisions only and
// are never authoritative for account PnL.
type MainGrid struct {
	Symbol     string
	Side       market.Side
	Spacing    float64
	Multiplier float64
	OpenedAt   time.Time

	Entries     []Level
	TakeProfits []Level

	TotalQuantity float64
	AverageEntry  float64
	TotalCost     float64 // includes fees; PnL-percentage denominator only
	Unrealized    float64
	MaxDrawdown   float64 // most negative unrealized/cost fraction seen

	Active      bool
	ClosedAt    time.Time
	CloseReason string
}

// entriesBelow reports whether entry levels sit below the origin price
// (long grids ladder down, short grids ladder up).
func (g *MainGrid) entriesBelow() bool { return g.Side == market.Long }

// Manager owns the active main grids, keyed by symbol, and their history.
type Manager struct {
	cfg     MainConfig
	active  map[string]*MainGrid
	history []*MainGrid
	log     *zap.Logger

	duplicates int
}

// NewManager creates a main grid manager.
func NewManager(cfg MainConfig, log *zap.Logger) *Manager {
	if log == nil {
		log = zap.NewNop()
	}
	return &Manager{
		cfg:    cfg,
		active: make(map[string]*MainGrid),
		log:    log,
	}
}

// Grid returns the active grid for a symbol.
func (m *Manager) Grid(symbol string) (*MainGrid, bool) {
	g, ok := m.active[symbol]
	return g, ok
}

// History returns archived grids in close order.
func (m *Manager) History() []*MainGrid { return m.history }

// DuplicateCount returns how many signals were dropped because a grid was
// already active.
func (m *Manager) DuplicateCount() int { return m.duplicates }

// ActiveCount returns the number of symbols with a live grid.
func (m *Manager) ActiveCount() int { return len(m.active) }

// WorstDrawdown returns the deepest grid-local drawdown seen across
// active and archived grids, as a non-positive fraction of cost.
func (m *Manager) WorstDrawdown() float64 {
	var worst float64
	for _, g := range m.active {
		if g.MaxDrawdown < worst {
			worst = g.MaxDrawdown
		}
	}
	for _, g := range m.history {
		if g.MaxDrawdown < worst {
			worst = g.MaxDrawdown
		}
	}
	return worst
}

// Open builds a grid from a signal and returns the immediate market order
// for the base quantity (grid level 0). The laddered entry levels k=1..N
// sit at price*(1 - spacing*k) for longs, mirrored for shorts, with
// martingale quantities base*multiplier^(k-1). Returns ErrGridActive if
// the symbol already has a grid; the caller logs and drops the signal.
func (m *Manager) Open(sig *signal.Signal, price float64, now time.Time) (*broker.Order, error) {
	if _, ok := m.active[sig.Symbol]; ok {
		m.duplicates++
		return nil, ErrGridActive
	}

	g := &MainGrid{
		Symbol:     sig.Symbol,
		Side:       sig.Side,
		Spacing:    sig.Spacing,
		Multiplier: sig.SizeMultiplier,
		OpenedAt:   now,
		Active:     true,
	}

	offset := -sig.Side.Sign() // long grids ladder down
	for k := 1; k <= sig.MaxLevels; k++ {
		g.Entries = append(g.Entries, Level{
			Index:    k,
			Price:    price * (1 + offset*sig.Spacing*float64(k)),
			Quantity: m.cfg.BaseQuantity * math.Pow(sig.SizeMultiplier, float64(k-1)),
		})
	}
	m.active[sig.Symbol] = g

	m.log.Info("grid open",
		zap.String("symbol", sig.Symbol),
		zap.Stringer("side", sig.Side),
		zap.Float64("spacing", sig.Spacing),
		zap.Int("levels", sig.MaxLevels),
		zap.Float64("multiplier", sig.SizeMultiplier),
		zap.Float64("price", price))

	lvl := 0
	return &broker.Order{
		Symbol:    sig.Symbol,
		Side:      sig.Side,
		Type:      broker.MarketOrder,
		Quantity:  m.cfg.BaseQuantity,
		GridLevel: &lvl,
		Reason:    "grid entry 0",
	}, nil
}

// OnTick scans entry levels in ascending index order and triggers at most
// one armed level whose price has been crossed, throttling to one new
// order per tick even when price gaps through several levels.
func (m *Manager) OnTick(symbol string, price float64) *broker.Order {
	g, ok := m.active[symbol]
	if !ok {
		return nil
	}

	below := g.entriesBelow()
	for i := range g.Entries {
		lvl := &g.Entries[i]
		if !lvl.armed() || !lvl.crossed(price, below) {
			continue
		}
		lvl.ordered = true
		limit := lvl.Price
		idx := lvl.Index
		return &broker.Order{
			Symbol:    symbol,
			Side:      g.Side,
			Type:      broker.LimitOrder,
			Quantity:  lvl.Quantity,
			Price:     &limit,
			GridLevel: &idx,
			Reason:    "grid entry",
		}
	}
	return nil
}

// OnFill folds an executed order into the grid. Entry fills re-weight the
// grid-local average (fees excluded from the price, included in the cost
// total) and rebuild the take-profit ladder; reduce fills shrink the
// position and close the grid once it is flat.
func (m *Manager) OnFill(f broker.Fill) {
	g, ok := m.active[f.Symbol]
	if !ok {
		return
	}

	if f.ReduceOnly {
		g.TotalQuantity -= f.Quantity
		g.TotalCost -= g.AverageEntry * f.Quantity
		if f.GridLevel != nil && *f.GridLevel < len(g.TakeProfits) {
			rung := &g.TakeProfits[*f.GridLevel]
			rung.FillTime = f.Time
			rung.OrderID = f.OrderID
		}
		if g.TotalQuantity <= 1e-12 {
			m.Close(f.Symbol, "take-profit complete", f.Time)
		}
		return
	}

	if f.GridLevel != nil {
		for i := range g.Entries {
			if g.Entries[i].Index == *f.GridLevel {
				lvl := &g.Entries[i]
				lvl.Filled = true
				lvl.FillTime = f.Time
				lvl.OrderID = f.OrderID
				break
			}
		}
	}

	newQty := g.TotalQuantity + f.Quantity
	g.AverageEntry = (g.AverageEntry*g.TotalQuantity + f.Price*f.Quantity) / newQty
	g.TotalQuantity = newQty
	g.TotalCost += f.Notional() + f.Commission

	m.rebuildTakeProfits(g)

	m.log.Debug("grid fill",
		zap.String("symbol", f.Symbol),
		zap.Intp("level", f.GridLevel),
		zap.Float64("qty", f.Quantity),
		zap.Float64("price", f.Price),
		zap.Float64("avg_entry", g.AverageEntry))
}

// OnReject re-arms the level whose order was rejected so a later tick can
// trigger it again.
func (m *Manager) OnReject(o broker.Order) {
	g, ok := m.active[o.Symbol]
	if !ok || o.GridLevel == nil {
		return
	}
	if o.ReduceOnly {
		if *o.GridLevel < len(g.TakeProfits) {
			g.TakeProfits[*o.GridLevel].Filled = false
		}
		return
	}
	for i := range g.Entries {
		if g.Entries[i].Index == *o.GridLevel {
			g.Entries[i].ordered = false
			return
		}
	}
}

// rebuildTakeProfits recomputes unfilled rungs from the current average
// entry and total quantity. Already-filled rungs stay filled.
func (m *Manager) rebuildTakeProfits(g *MainGrid) {
	profit := g.Side.Sign() // profit side is above entry for longs
	if len(g.TakeProfits) == 0 {
		g.TakeProfits = make([]Level, len(takeProfitRungs))
		for i := range g.TakeProfits {
			g.TakeProfits[i].Index = i
		}
	}
	for i := range g.TakeProfits {
		rung := &g.TakeProfits[i]
		if rung.Filled {
			continue
		}
		rung.Price = g.AverageEntry * (1 + profit*takeProfitRungs[i])
		rung.Quantity = takeProfitAlloc[i] * g.TotalQuantity
	}
}

// CheckTakeProfit scans unfilled rungs in order and, on the first rung the
// price has crossed, marks it filled immediately (so the same tick cannot
// trigger it twice) and returns the reduce-only close order at the rung's
// price. The final rung closes the full remaining quantity.
func (m *Manager) CheckTakeProfit(symbol string, price float64) *broker.Order {
	g, ok := m.active[symbol]
	if !ok || g.TotalQuantity <= 0 {
		return nil
	}

	profitAbove := g.Side == market.Long
	for i := range g.TakeProfits {
		rung := &g.TakeProfits[i]
		if rung.Filled || !rung.crossed(price, !profitAbove) {
			continue
		}
		rung.Filled = true

		qty := rung.Quantity
		if i == len(g.TakeProfits)-1 || qty > g.TotalQuantity {
			qty = g.TotalQuantity
		}
		limit := rung.Price
		idx := rung.Index
		return &broker.Order{
			Symbol:     symbol,
			Side:       g.Side,
			Type:       broker.LimitOrder,
			Quantity:   qty,
			Price:      &limit,
			ReduceOnly: true,
			GridLevel:  &idx,
			Reason:     "take-profit",
		}
	}
	return nil
}

// UpdateUnrealized marks the grid-local PnL and drawdown at the price.
func (m *Manager) UpdateUnrealized(symbol string, price float64) {
	g, ok := m.active[symbol]
	if !ok || g.TotalQuantity <= 0 {
		return
	}
	g.Unrealized = (price - g.AverageEntry) * g.TotalQuantity * g.Side.Sign()
	if g.TotalCost > 0 {
		dd := g.Unrealized / g.TotalCost
		if dd < g.MaxDrawdown {
			g.MaxDrawdown = dd
		}
	}
}

// Close archives the grid and frees the symbol slot.
func (m *Manager) Close(symbol, reason string, now time.Time) {
	g, ok := m.active[symbol]
	if !ok {
		return
	}
	g.Active = false
	g.ClosedAt = now
	g.CloseReason = reason
	delete(m.active, symbol)
	m.history = append(m.history, g)

	m.log.Info("grid close",
		zap.String("symbol", symbol),
		zap.String("reason", reason),
		zap.Float64("remaining_qty", g.TotalQuantity))
}
