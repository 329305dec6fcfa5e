// Package ledger tracks per-symbol, per-book positions: size, weighted
// average entry, and realized/unrealized PnL. It is the single source of
// truth for account-level PnL; grid managers keep their own parallel cost
// basis for grid-local decisions only.
package ledger

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/zuchengchen/martingrid/broker"
	"github.com/zuchengchen/martingrid/market"
)

// Book separates the main martingale position from its hedge.
type Book int8

const (
	Main Book = iota
	Hedge
)

func (b Book) String() string {
	if b == Hedge {
		return "hedge"
	}
	return "main"
}

// bookOf maps a fill to the book it belongs to.
func bookOf(f broker.Fill) Book {
	if f.Hedge {
		return Hedge
	}
	return Main
}

// closeEpsilon absorbs float drift when a reduce fill offsets a position
// exactly. Anything beyond it is an over-close and fails loudly.
const closeEpsilon = 1e-9

// Position is one open record. EntryPrice is the fee-exclusive
// notional-weighted mean of opening fills; CostWithFees includes
// commissions and is used only as a PnL-percentage denominator.
type Position struct {
	Symbol        string
	Book          Book
	Side          market.Side
	Size          float64
	EntryPrice    float64
	CostWithFees  float64
	RealizedPnL   float64
	UnrealizedPnL float64
	OpenTime      time.Time
	MarkTime      time.Time
}

// Notional returns the position's value at the given mark.
func (p Position) Notional(mark float64) float64 { return p.Size * mark }

// CloseResult summarizes a reduce-only fill's effect, so the simulation
// loop can settle margin and cash with the broker.
type CloseResult struct {
	RealizedPnL    float64
	ClosedQuantity float64
	EntryPrice     float64
	RemainingSize  float64
	Win            bool
}

// InvariantError reports a ledger invariant violation: it indicates a bug
// in trigger sequencing upstream, not a market condition, so the run must
// abort with full context.
type InvariantError struct {
	Msg      string
	Fill     broker.Fill
	Position Position
}

func (e *InvariantError) Error() string {
	return fmt.Sprintf("ledger invariant violated: %s (symbol=%s book=%s fill qty=%v side=%s, position size=%v side=%s entry=%v)",
		e.Msg, e.Fill.Symbol, bookOf(e.Fill), e.Fill.Quantity, e.Fill.Side,
		e.Position.Size, e.Position.Side, e.Position.EntryPrice)
}

type posKey struct {
	symbol string
	book   Book
}

// Ledger owns all position records. ApplyFill and Mark are its only
// mutators.
type Ledger struct {
	positions map[posKey]*Position

	realized float64
	fees     float64
	trades   int
	wins     int
	losses   int

	log *zap.Logger
}

// New creates an empty ledger.
func New(log *zap.Logger) *Ledger {
	if log == nil {
		log = zap.NewNop()
	}
	return &Ledger{
		positions: make(map[posKey]*Position),
		log:       log,
	}
}

// ApplyFill folds a fill into the ledger. Opening fills re-weight the
// average entry (fees excluded from the price, tracked in CostWithFees);
// reduce-only fills realize PnL on the closed slice and leave the entry
// price unchanged. Returns a non-nil CloseResult for reduce-only fills.
func (l *Ledger) ApplyFill(f broker.Fill) (*CloseResult, error) {
	key := posKey{f.Symbol, bookOf(f)}
	pos := l.positions[key]
	l.fees += f.Commission

	if f.ReduceOnly {
		if pos == nil || pos.Size <= 0 {
			return nil, &InvariantError{Msg: "reduce fill with no open position", Fill: f}
		}
		if f.Side != pos.Side {
			return nil, &InvariantError{Msg: "reduce fill side mismatch", Fill: f, Position: *pos}
		}
		if f.Quantity > pos.Size+closeEpsilon {
			return nil, &InvariantError{Msg: "reduce fill closes more than is open", Fill: f, Position: *pos}
		}

		qty := f.Quantity
		if qty > pos.Size {
			qty = pos.Size
		}

		pnl := (f.Price - pos.EntryPrice) * qty * pos.Side.Sign()
		pos.Size -= qty
		pos.RealizedPnL += pnl
		pos.UnrealizedPnL = (f.Price - pos.EntryPrice) * pos.Size * pos.Side.Sign()
		// The closed slice's share of cost leaves the denominator too.
		if pos.Size <= closeEpsilon {
			pos.CostWithFees = 0
		} else {
			pos.CostWithFees -= pos.EntryPrice * qty
		}

		l.realized += pnl
		l.trades++
		win := pnl > 0
		if win {
			l.wins++
		} else if pnl < 0 {
			l.losses++
		}

		res := &CloseResult{
			RealizedPnL:    pnl,
			ClosedQuantity: qty,
			EntryPrice:     pos.EntryPrice,
			RemainingSize:  pos.Size,
			Win:            win,
		}

		if pos.Size <= closeEpsilon {
			delete(l.positions, key)
			res.RemainingSize = 0
		}

		l.log.Debug("ledger close",
			zap.String("symbol", f.Symbol),
			zap.Stringer("book", key.book),
			zap.Float64("qty", qty),
			zap.Float64("pnl", pnl),
			zap.Float64("remaining", res.RemainingSize))
		return res, nil
	}

	// Opening fill.
	if pos == nil {
		l.positions[key] = &Position{
			Symbol:       f.Symbol,
			Book:         key.book,
			Side:         f.Side,
			Size:         f.Quantity,
			EntryPrice:   f.Price,
			CostWithFees: f.Notional() + f.Commission,
			OpenTime:     f.Time,
		}
		return nil, nil
	}

	if pos.Side != f.Side {
		return nil, &InvariantError{Msg: "opening fill would flip position side", Fill: f, Position: *pos}
	}

	// Quantity-weighted mean of old position and new fill, fees excluded.
	newSize := pos.Size + f.Quantity
	pos.EntryPrice = (pos.EntryPrice*pos.Size + f.Price*f.Quantity) / newSize
	pos.Size = newSize
	pos.CostWithFees += f.Notional() + f.Commission
	return nil, nil
}

// Mark recomputes unrealized PnL for every open record at the symbol and
// stamps the records with the time of the tick that priced them.
func (l *Ledger) Mark(symbol string, price float64, at time.Time) {
	for _, book := range []Book{Main, Hedge} {
		if pos, ok := l.positions[posKey{symbol, book}]; ok {
			pos.UnrealizedPnL = (price - pos.EntryPrice) * pos.Size * pos.Side.Sign()
			pos.MarkTime = at
		}
	}
}

// Position returns a copy of the open record for symbol/book.
func (l *Ledger) Position(symbol string, book Book) (Position, bool) {
	pos, ok := l.positions[posKey{symbol, book}]
	if !ok {
		return Position{}, false
	}
	return *pos, true
}

// TotalUnrealized sums unrealized PnL across all open records.
func (l *Ledger) TotalUnrealized() float64 {
	var sum float64
	for _, pos := range l.positions {
		sum += pos.UnrealizedPnL
	}
	return sum
}

// RealizedPnL returns cumulative realized PnL across all closed slices.
func (l *Ledger) RealizedPnL() float64 { return l.realized }

// Fees returns cumulative commissions recorded through fills.
func (l *Ledger) Fees() float64 { return l.fees }

// Stats returns closed-slice counters: total, winning, losing.
func (l *Ledger) Stats() (trades, wins, losses int) {
	return l.trades, l.wins, l.losses
}

// Snapshot returns copies of every open record, for reporting and for
// invariant-violation context.
func (l *Ledger) Snapshot() []Position {
	out := make([]Position, 0, len(l.positions))
	for _, pos := range l.positions {
		out = append(out, *pos)
	}
	return out
}
