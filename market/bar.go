package market

import "time"

// Bar is an OHLCV aggregate of ticks over a fixed interval. Start is the
// bar-open time. A bar is never mutated once closed.
type Bar struct {
	Start    time.Time
	Open     float64
	High     float64
	Low      float64
	Close    float64
	Volume   float64
	Interval time.Duration
}

// End returns the first instant after the bar.
func (b Bar) End() time.Time { return b.Start.Add(b.Interval) }

// Series holds closed bars in time order, bounded to a maximum length so
// long replays do not grow memory without limit.
type Series struct {
	bars []Bar
	max  int
}

// NewSeries creates a bar series keeping at most max bars (0 = unbounded).
func NewSeries(max int) *Series {
	return &Series{max: max}
}

// Append adds a closed bar to the series.
func (s *Series) Append(b Bar) {
	s.bars = append(s.bars, b)
	if s.max > 0 && len(s.bars) > s.max {
		s.bars = s.bars[len(s.bars)-s.max:]
	}
}

// Len returns the number of retained bars.
func (s *Series) Len() int { return len(s.bars) }

// Bars returns the retained bars, oldest first. The slice is shared;
// callers must not modify it.
func (s *Series) Bars() []Bar { return s.bars }

// Last returns up to n most recent bars, oldest first.
func (s *Series) Last(n int) []Bar {
	if n <= 0 || len(s.bars) == 0 {
		return nil
	}
	if n > len(s.bars) {
		n = len(s.bars)
	}
	return s.bars[len(s.bars)-n:]
}
