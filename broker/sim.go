package broker

import "time"

// Config holds the fee, slippage, and margin parameters of the simulated
// exchange. Rates are fractions: 0.0004 means 4bp.
type Config struct {
	TakerFee              float64
	MakerFee              float64
	Slippage              float64
	Leverage              float64
	MaintenanceMarginRate float64
}

// Sim executes orders against the current mark price and owns the cash
// balance. It does not track positions: realized PnL settlement is the
// position ledger's job, reconciled via Settle.
type Sim struct {
	cfg        Config
	balance    float64
	marginUsed float64
	marks      map[string]float64

	feesPaid float64
	filled   int
	rejected int
}

// NewSim creates a simulated broker with the given starting balance.
func NewSim(cfg Config, balance float64) *Sim {
	if cfg.Leverage <= 0 {
		cfg.Leverage = 1
	}
	return &Sim{
		cfg:     cfg,
		balance: balance,
		marks:   make(map[string]float64),
	}
}

// UpdateMark records the latest mark price for a symbol. No validation:
// the tick boundary already guarantees positive prices.
func (b *Sim) UpdateMark(symbol string, price float64) {
	b.marks[symbol] = price
}

// Mark returns the current mark price for a symbol.
func (b *Sim) Mark(symbol string) (float64, bool) {
	p, ok := b.marks[symbol]
	return p, ok
}

// Balance returns free cash (margin already deducted).
func (b *Sim) Balance() float64 { return b.balance }

// MarginUsed returns cash currently locked as position margin.
func (b *Sim) MarginUsed() float64 { return b.marginUsed }

// FeesPaid returns cumulative commissions charged.
func (b *Sim) FeesPaid() float64 { return b.feesPaid }

// FillCount returns the number of orders that filled.
func (b *Sim) FillCount() int { return b.filled }

// RejectCount returns the number of orders rejected.
func (b *Sim) RejectCount() int { return b.rejected }

// Equity values the account: free cash plus locked margin plus the
// unrealized PnL of all open positions (supplied by the caller, since the
// ledger owns position state).
func (b *Sim) Equity(unrealized float64) float64 {
	return b.balance + b.marginUsed + unrealized
}

// Execute attempts to fill an order at the current mark price. Market
// orders fill immediately with slippage against the taker and the taker
// fee; limit orders fill at the limit price exactly, with the maker fee,
// only once the mark has crossed it. A *RejectedError result never halts
// the simulation.
func (b *Sim) Execute(o Order, now time.Time) (Fill, error) {
	if o.Quantity <= 0 {
		return Fill{}, b.reject(RejectBadQuantity, o)
	}

	mark, ok := b.marks[o.Symbol]
	if !ok || mark <= 0 {
		return Fill{}, b.reject(RejectNoMarkPrice, o)
	}

	// Order.Side is the position side the order affects; ReduceOnly flips
	// the traded direction (closing a long sells, closing a short buys).
	dir := o.Side.Sign()
	if o.ReduceOnly {
		dir = -dir
	}

	var fillPrice, feeRate float64
	switch o.Type {
	case MarketOrder:
		// Slippage always against the taker: buys fill higher, sells lower.
		fillPrice = mark * (1 + dir*b.cfg.Slippage)
		feeRate = b.cfg.TakerFee

	case LimitOrder:
		if o.Price == nil {
			return Fill{}, b.reject(RejectUnknownType, o)
		}
		limit := *o.Price
		var crossed bool
		if dir > 0 {
			// Buying: marketable once the mark trades at or below the limit.
			crossed = mark <= limit
		} else {
			crossed = mark >= limit
		}
		if !crossed {
			return Fill{}, b.reject(RejectNotCrossed, o)
		}
		fillPrice = limit
		feeRate = b.cfg.MakerFee

	default:
		return Fill{}, b.reject(RejectUnknownType, o)
	}

	notional := o.Quantity * fillPrice
	fee := notional * feeRate

	if o.ReduceOnly {
		// Never margin-checked; only the fee is debited here. Margin
		// release and PnL settlement arrive later via Settle.
		b.balance -= fee
	} else {
		margin := notional / b.cfg.Leverage
		if margin+fee > b.balance {
			return Fill{}, b.reject(RejectInsufficientMargin, o)
		}
		b.balance -= margin + fee
		b.marginUsed += margin
	}

	b.feesPaid += fee
	b.filled++

	return Fill{
		OrderID:    o.ID,
		Symbol:     o.Symbol,
		Side:       o.Side,
		Quantity:   o.Quantity,
		Price:      fillPrice,
		Commission: fee,
		Time:       now,
		ReduceOnly: o.ReduceOnly,
		GridLevel:  o.GridLevel,
		Hedge:      o.Hedge,
		Reason:     o.Reason,
	}, nil
}

// Settle reconciles a closed slice back into cash: releases the margin the
// slice had locked and credits its realized PnL. Called by the simulation
// loop after the ledger computes the close.
func (b *Sim) Settle(releasedMargin, realizedPnL float64) {
	if releasedMargin > b.marginUsed {
		releasedMargin = b.marginUsed
	}
	b.marginUsed -= releasedMargin
	b.balance += releasedMargin + realizedPnL
}

// OpenMargin returns the margin a position slice locks at its entry price.
func (b *Sim) OpenMargin(quantity, entryPrice float64) float64 {
	return quantity * entryPrice / b.cfg.Leverage
}

// CheckLiquidation reports whether equity no longer covers maintenance
// margin on the given notional. Advisory: the simulation loop is
// responsible for force-closing on a true result.
func (b *Sim) CheckLiquidation(equity, notional float64) bool {
	if notional <= 0 {
		return false
	}
	return equity < notional*b.cfg.MaintenanceMarginRate
}

func (b *Sim) reject(reason RejectReason, o Order) error {
	if reason != RejectNotCrossed {
		b.rejected++
	}
	return &RejectedError{Reason: reason, Order: o}
}
