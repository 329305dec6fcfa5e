// Package market defines the shared price-stream types: ticks, bars, and
// the deterministic tick-to-bar aggregation used by the simulation.
package market

import "time"

// Side represents a trading direction: +1 long, -1 short.
type Side int8

const (
	Long  Side = +1
	Short Side = -1
)

// Sign returns the side as a float64 multiplier for PnL math.
func (s Side) Sign() float64 { return float64(s) }

// Opposite returns the counter direction.
func (s Side) Opposite() Side { return -s }

func (s Side) String() string {
	switch s {
	case Long:
		return "long"
	case Short:
		return "short"
	default:
		return "unknown"
	}
}

// Tick is a single executed trade from the upstream data layer. Ticks are
// immutable and strictly non-decreasing by Time within one stream.
type Tick struct {
	Time           time.Time
	Symbol         string
	Price          float64
	Quantity       float64
	BuyerInitiated bool
	TradeID        int64
}
