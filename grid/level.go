// Package grid implements the two grid state machines: the main
// martingale grid that ladders into a signal, and the counter-directional
// hedge grid that activates against an adverse position.
package grid

import (
	"errors"
	"time"
)

var (
	// ErrGridActive reports a duplicate open for a symbol. Logged and
	// ignored by the caller, never fatal.
	ErrGridActive = errors.New("grid already active for symbol")

	// ErrHedgeActive reports a duplicate hedge activation for a symbol.
	ErrHedgeActive = errors.New("hedge already active for symbol")
)

// Level is one rung of a grid ladder: an entry target or a take-profit
// target. Price and Quantity are immutable once created; Filled, FillTime,
// and OrderID are set exactly once when the rung's order fills.
type Level struct {
	Index    int
	Price    float64
	Quantity float64
	Filled   bool
	FillTime time.Time
	OrderID  string

	// ordered guards against re-triggering while an order is in flight;
	// cleared again if that order is rejected.
	ordered bool
}

// crossed reports whether the mark price has reached an entry level laid
// below (or above) the grid's origin price.
func (l *Level) crossed(price float64, below bool) bool {
	if below {
		return price <= l.Price
	}
	return price >= l.Price
}

// armed reports whether the level can still emit an order.
func (l *Level) armed() bool { return !l.Filled && !l.ordered }
