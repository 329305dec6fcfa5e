package grid

import (
	"time"

	"go.uber.org/zap"

	"github.com/zuchengchen/martingrid/broker"
	"github.com/zuchengchen/martingrid/ledger"
	"github.com/zuchengchen/martingrid/market"
)

// TriggerKind is why a hedge activated.
type TriggerKind int8

const (
	TriggerDrawdown TriggerKind = iota
	TriggerTime
)

func (k TriggerKind) String() string {
	if k == TriggerTime {
		return "time"
	}
	return "drawdown"
}

// HedgeConfig holds activation thresholds and hedge sizing.
type HedgeConfig struct {
	DrawdownThreshold float64       `yaml:"drawdown_threshold" json:"drawdown_threshold"` // e.g. -0.05
	MaxHold           time.Duration `yaml:"max_hold" json:"max_hold"`                     // e.g. 2h
	Spacing           float64       `yaml:"spacing" json:"spacing"`                       // e.g. 0.003
	Levels            int           `yaml:"levels" json:"levels"`                         // e.g. 4
	DrawdownFraction  float64       `yaml:"drawdown_fraction" json:"drawdown_fraction"`   // of parent size, e.g. 0.5
	TimeFraction      float64       `yaml:"time_fraction" json:"time_fraction"`           // of parent size, e.g. 0.3
	ProfitThreshold   float64       `yaml:"profit_threshold" json:"profit_threshold"`     // of hedge cost, e.g. 0.02
	CloseFraction     float64       `yaml:"close_fraction" json:"close_fraction"`         // e.g. 0.5
	RecycleFraction   float64       `yaml:"recycle_fraction" json:"recycle_fraction"`     // e.g. 0.7
}

// DefaultHedgeConfig returns the stock hedge parameters.
func DefaultHedgeConfig() HedgeConfig {
	return HedgeConfig{
		DrawdownThreshold: -0.05,
		MaxHold:           2 * time.Hour,
		Spacing:           0.003,
		Levels:            4,
		DrawdownFraction:  0.5,
		TimeFraction:      0.3,
		ProfitThreshold:   0.02,
		CloseFraction:     0.5,
		RecycleFraction:   0.7,
	}
}

// RecyclePolicy decides what recycled hedge profit does to the parent.
// The kernel only records the amount; feeding it back into the parent's
// cost basis is a caller policy.
type RecyclePolicy interface {
	Recycle(symbol string, amount float64)
}

type nopRecycle struct{}

func (nopRecycle) Recycle(string, float64) {}

// HedgeGrid is an active (or archived) counter-directional grid. Levels
// are evenly sized, spaced tighter than the main grid, and laid in the
// direction of continued adverse movement for the parent.
type HedgeGrid struct {
	Symbol   string
	Side     market.Side // always opposite the parent at activation
	Trigger  TriggerKind
	Spacing  float64
	OpenedAt time.Time

	Entries []Level

	TotalQuantity float64
	AverageEntry  float64
	TotalCost     float64
	Unrealized    float64
	RealizedPnL   float64
	TotalRecycled float64

	Active      bool
	ClosedAt    time.Time
	CloseReason string

	profitPending bool
}

// entriesBelow: a short hedge (parent long, price falling) ladders down;
// a long hedge ladders up.
func (h *HedgeGrid) entriesBelow() bool { return h.Side == market.Short }

// HedgeManager owns active hedge grids, keyed by symbol.
type HedgeManager struct {
	cfg     HedgeConfig
	active  map[string]*HedgeGrid
	history []*HedgeGrid
	policy  RecyclePolicy
	log     *zap.Logger

	duplicates int
}

// NewHedgeManager creates a hedge manager. A nil policy records recycled
// amounts without applying them anywhere.
func NewHedgeManager(cfg HedgeConfig, policy RecyclePolicy, log *zap.Logger) *HedgeManager {
	if policy == nil {
		policy = nopRecycle{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &HedgeManager{
		cfg:    cfg,
		active: make(map[string]*HedgeGrid),
		policy: policy,
		log:    log,
	}
}

// Grid returns the active hedge for a symbol.
func (m *HedgeManager) Grid(symbol string) (*HedgeGrid, bool) {
	h, ok := m.active[symbol]
	return h, ok
}

// History returns archived hedges in close order.
func (m *HedgeManager) History() []*HedgeGrid { return m.history }

// DuplicateCount returns dropped duplicate activations.
func (m *HedgeManager) DuplicateCount() int { return m.duplicates }

// CheckActivation evaluates the parent position once per tick and reports
// whether a hedge should open: drawdown threshold first, then
// time-in-trade with PnL still negative. Returns false while a hedge is
// already active.
func (m *HedgeManager) CheckActivation(parent ledger.Position, now time.Time) (TriggerKind, bool) {
	if _, ok := m.active[parent.Symbol]; ok {
		return 0, false
	}
	if parent.Size <= 0 || parent.CostWithFees <= 0 {
		return 0, false
	}
	if parent.UnrealizedPnL/parent.CostWithFees <= m.cfg.DrawdownThreshold {
		return TriggerDrawdown, true
	}
	if now.Sub(parent.OpenTime) > m.cfg.MaxHold && parent.UnrealizedPnL < 0 {
		return TriggerTime, true
	}
	return 0, false
}

// Activate opens the hedge grid against the parent and returns the
// immediate market order for the first level. Level 1 enters at market;
// levels 2..N trigger as price keeps moving against the parent. Returns
// ErrHedgeActive on a duplicate activation; the caller logs and ignores.
func (m *HedgeManager) Activate(parent ledger.Position, kind TriggerKind, price float64, now time.Time) (*broker.Order, error) {
	if _, ok := m.active[parent.Symbol]; ok {
		m.duplicates++
		return nil, ErrHedgeActive
	}

	fraction := m.cfg.DrawdownFraction
	if kind == TriggerTime {
		fraction = m.cfg.TimeFraction
	}
	levels := m.cfg.Levels
	if levels < 1 {
		levels = 1
	}
	perLevel := parent.Size * fraction / float64(levels)

	h := &HedgeGrid{
		Symbol:   parent.Symbol,
		Side:     parent.Side.Opposite(),
		Trigger:  kind,
		Spacing:  m.cfg.Spacing,
		OpenedAt: now,
		Active:   true,
	}

	// Levels lie in the direction the parent is losing: below for a short
	// hedge, above for a long hedge. Even sizing, no martingale scaling.
	offset := -1.0
	if !h.entriesBelow() {
		offset = 1.0
	}
	for k := 1; k <= levels; k++ {
		h.Entries = append(h.Entries, Level{
			Index:    k,
			Price:    price * (1 + offset*m.cfg.Spacing*float64(k-1)),
			Quantity: perLevel,
		})
	}
	h.Entries[0].ordered = true
	m.active[parent.Symbol] = h

	m.log.Info("hedge open",
		zap.String("symbol", parent.Symbol),
		zap.Stringer("side", h.Side),
		zap.Stringer("trigger", kind),
		zap.Float64("parent_size", parent.Size),
		zap.Float64("per_level", perLevel),
		zap.Int("levels", levels))

	lvl := 1
	return &broker.Order{
		Symbol:    parent.Symbol,
		Side:      h.Side,
		Type:      broker.MarketOrder,
		Quantity:  perLevel,
		GridLevel: &lvl,
		Hedge:     true,
		Reason:    "hedge entry",
	}, nil
}

// OnTick triggers at most one armed hedge entry whose price has been
// crossed, mirroring the main grid's one-trigger-per-tick throttle.
func (m *HedgeManager) OnTick(symbol string, price float64) *broker.Order {
	h, ok := m.active[symbol]
	if !ok {
		return nil
	}

	below := h.entriesBelow()
	for i := range h.Entries {
		lvl := &h.Entries[i]
		if !lvl.armed() || !lvl.crossed(price, below) {
			continue
		}
		lvl.ordered = true
		limit := lvl.Price
		idx := lvl.Index
		return &broker.Order{
			Symbol:    symbol,
			Side:      h.Side,
			Type:      broker.LimitOrder,
			Quantity:  lvl.Quantity,
			Price:     &limit,
			GridLevel: &idx,
			Hedge:     true,
			Reason:    "hedge entry",
		}
	}
	return nil
}

// CheckProfit emits a reduce-only market order closing half the hedge
// when its unrealized profit reaches the threshold fraction of its cost.
func (m *HedgeManager) CheckProfit(symbol string, price float64) *broker.Order {
	h, ok := m.active[symbol]
	if !ok || h.profitPending || h.TotalQuantity <= 0 || h.TotalCost <= 0 {
		return nil
	}

	h.Unrealized = (price - h.AverageEntry) * h.TotalQuantity * h.Side.Sign()
	if h.Unrealized < m.cfg.ProfitThreshold*h.TotalCost {
		return nil
	}

	h.profitPending = true
	return &broker.Order{
		Symbol:     symbol,
		Side:       h.Side,
		Type:       broker.MarketOrder,
		Quantity:   h.TotalQuantity * m.cfg.CloseFraction,
		ReduceOnly: true,
		Hedge:      true,
		Reason:     "hedge profit",
	}
}

// OnFill folds a hedge fill into the grid: entry fills re-weight the
// hedge-local average; reduce fills realize profit and recycle the
// configured share of it through the policy.
func (m *HedgeManager) OnFill(f broker.Fill) {
	h, ok := m.active[f.Symbol]
	if !ok {
		return
	}

	if f.ReduceOnly {
		h.profitPending = false
		pnl := (f.Price - h.AverageEntry) * f.Quantity * h.Side.Sign()
		h.RealizedPnL += pnl
		h.TotalQuantity -= f.Quantity
		h.TotalCost -= h.AverageEntry * f.Quantity

		if pnl > 0 {
			recycled := pnl * m.cfg.RecycleFraction
			h.TotalRecycled += recycled
			m.policy.Recycle(f.Symbol, recycled)
			m.log.Debug("hedge recycle",
				zap.String("symbol", f.Symbol),
				zap.Float64("pnl", pnl),
				zap.Float64("recycled", recycled))
		}

		if h.TotalQuantity <= 1e-12 {
			m.Close(f.Symbol, "hedge flat", f.Time)
		}
		return
	}

	if f.GridLevel != nil {
		for i := range h.Entries {
			if h.Entries[i].Index == *f.GridLevel {
				lvl := &h.Entries[i]
				lvl.Filled = true
				lvl.FillTime = f.Time
				lvl.OrderID = f.OrderID
				break
			}
		}
	}

	newQty := h.TotalQuantity + f.Quantity
	h.AverageEntry = (h.AverageEntry*h.TotalQuantity + f.Price*f.Quantity) / newQty
	h.TotalQuantity = newQty
	h.TotalCost += f.Notional() + f.Commission
}

// OnReject re-arms the level (or profit check) whose order was rejected.
func (m *HedgeManager) OnReject(o broker.Order) {
	h, ok := m.active[o.Symbol]
	if !ok {
		return
	}
	if o.ReduceOnly {
		h.profitPending = false
		return
	}
	if o.GridLevel == nil {
		return
	}
	for i := range h.Entries {
		if h.Entries[i].Index == *o.GridLevel {
			h.Entries[i].ordered = false
			return
		}
	}
}

// UpdateUnrealized marks the hedge-local PnL at the price.
func (m *HedgeManager) UpdateUnrealized(symbol string, price float64) {
	h, ok := m.active[symbol]
	if !ok || h.TotalQuantity <= 0 {
		return
	}
	h.Unrealized = (price - h.AverageEntry) * h.TotalQuantity * h.Side.Sign()
}

// Close archives the hedge and frees the symbol slot.
func (m *HedgeManager) Close(symbol, reason string, now time.Time) {
	h, ok := m.active[symbol]
	if !ok {
		return
	}
	h.Active = false
	h.ClosedAt = now
	h.CloseReason = reason
	delete(m.active, symbol)
	m.history = append(m.history, h)

	m.log.Info("hedge close",
		zap.String("symbol", symbol),
		zap.String("reason", reason),
		zap.Float64("realized", h.RealizedPnL),
		zap.Float64("recycled", h.TotalRecycled))
}
