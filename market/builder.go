package market

import "time"

// BarBuilder folds a tick stream into fixed-interval OHLCV bars. It is
// deterministic: the same tick sequence always yields the same bars. Silent
// intervals produce no bar (gaps are allowed, never synthesized).
type BarBuilder struct {
	interval time.Duration
	cur      Bar
	open     bool
}

// NewBarBuilder creates a builder for the given interval (e.g. time.Minute).
func NewBarBuilder(interval time.Duration) *BarBuilder {
	return &BarBuilder{interval: interval}
}

// Interval returns the bar duration this builder aggregates to.
func (b *BarBuilder) Interval() time.Duration { return b.interval }

// Update folds the next tick into the current bar. If the tick starts a new
// interval, the previous bar is returned as closed.
func (b *BarBuilder) Update(t Tick) (closed Bar, ok bool) {
	start := t.Time.Truncate(b.interval)

	if b.open && start.After(b.cur.Start) {
		closed, ok = b.cur, true
		b.open = false
	}

	if !b.open {
		b.cur = Bar{
			Start:    start,
			Open:     t.Price,
			High:     t.Price,
			Low:      t.Price,
			Close:    t.Price,
			Volume:   t.Quantity,
			Interval: b.interval,
		}
		b.open = true
		return closed, ok
	}

	if t.Price > b.cur.High {
		b.cur.High = t.Price
	}
	if t.Price < b.cur.Low {
		b.cur.Low = t.Price
	}
	b.cur.Close = t.Price
	b.cur.Volume += t.Quantity
	return closed, ok
}

// Flush closes and returns the in-progress bar, if any. Used at end of
// stream so the final partial bar is not lost.
func (b *BarBuilder) Flush() (Bar, bool) {
	if !b.open {
		return Bar{}, false
	}
	b.open = false
	return b.cur, true
}
