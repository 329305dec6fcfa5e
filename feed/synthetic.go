package feed

import (
	"math"
	"math/rand"
	"time"

	"github.com/zuchengchen/martingrid/market"
)

// Synthetic generates a seeded geometric random walk, useful for smoke
// runs without a tick file. Same seed, same stream.
type Synthetic struct {
	Symbol     string
	Start      time.Time
	Step       time.Duration
	Volatility float64 // per-step stddev of log return
	Count      int

	rng     *rand.Rand
	price   float64
	emitted int
	tradeID int64
}

// NewSynthetic creates a walk starting at price. Volatility 0.0005 with a
// 1s step is a plausible crypto tape.
func NewSynthetic(symbol string, start time.Time, price float64, count int, seed int64) *Synthetic {
	return &Synthetic{
		Symbol:     symbol,
		Start:      start,
		Step:       time.Second,
		Volatility: 0.0005,
		Count:      count,
		rng:        rand.New(rand.NewSource(seed)),
		price:      price,
	}
}

func (s *Synthetic) Next() (market.Tick, bool, error) {
	if s.emitted >= s.Count {
		return market.Tick{}, false, nil
	}

	ret := s.rng.NormFloat64() * s.Volatility
	s.price *= math.Exp(ret)
	s.tradeID++

	t := market.Tick{
		Time:           s.Start.Add(time.Duration(s.emitted) * s.Step),
		Symbol:         s.Symbol,
		Price:          s.price,
		Quantity:       0.001 + s.rng.Float64()*0.05,
		BuyerInitiated: ret >= 0,
		TradeID:        s.tradeID,
	}
	s.emitted++
	return t, true, nil
}

func (s *Synthetic) Close() error { return nil }
