// Package signal generates grid entry signals from a dual-timeframe trend
// filter and a banded CCI oscillator, with a per-symbol cooldown.
package signal

import (
	"time"

	"github.com/zuchengchen/martingrid/market"
)

// Trend classifies the primary-timeframe EMA relationship.
type Trend int8

const (
	Ranging Trend = iota
	Uptrend
	Downtrend
)

func (t Trend) String() string {
	switch t {
	case Uptrend:
		return "uptrend"
	case Downtrend:
		return "downtrend"
	default:
		return "ranging"
	}
}

// Strength buckets ADX into trend-strength grades used to scale the level
// count.
type Strength int8

const (
	Weak Strength = iota
	Moderate
	Strong
)

// ADX grade boundaries.
const (
	adxStrong   = 40.0
	adxModerate = 25.0
)

func gradeADX(adx float64) Strength {
	switch {
	case adx >= adxStrong:
		return Strong
	case adx >= adxModerate:
		return Moderate
	default:
		return Weak
	}
}

// levelFactor scales the configured max level count by trend strength.
func (s Strength) levelFactor() float64 {
	switch s {
	case Strong:
		return 1.0
	case Moderate:
		return 0.8
	default:
		return 0.6
	}
}

// Snapshot captures the indicator values a signal was derived from.
type Snapshot struct {
	FastEMA          float64
	SlowEMA          float64
	SecondaryFastEMA float64
	SecondarySlowEMA float64
	ATRPct           float64
	ADX              float64
	CCI              float64
}

// Signal is an entry recommendation with derived grid parameters. It is
// produced at most once per cooldown window per symbol and consumed at
// most once.
type Signal struct {
	Time           time.Time
	Symbol         string
	Side           market.Side
	Strength       float64 // 0.4 / 0.7 / 1.0 by oscillator level
	Spacing        float64 // fraction, e.g. 0.01 = 1%
	MaxLevels      int
	SizeMultiplier float64 // martingale ratio
	Snapshot       Snapshot
}

// Oscillator is the banded CCI reading: Level 0 means neutral (no entry
// bias), levels 1-3 grade light/medium/strong with strengths 0.4/0.7/1.0.
type Oscillator struct {
	Side     market.Side
	Level    int
	Strength float64
}

// CCI band edges: ±50/±100/±200 split the scale into seven bands.
const (
	cciLight  = 50.0
	cciMedium = 100.0
	cciStrong = 200.0
)

// classifyCCI maps a CCI value into the seven-band oscillator reading.
// Oversold readings bias long (buy the pullback), overbought bias short.
func classifyCCI(cci float64) Oscillator {
	switch {
	case cci <= -cciStrong:
		return Oscillator{Side: market.Long, Level: 3, Strength: 1.0}
	case cci <= -cciMedium:
		return Oscillator{Side: market.Long, Level: 2, Strength: 0.7}
	case cci <= -cciLight:
		return Oscillator{Side: market.Long, Level: 1, Strength: 0.4}
	case cci >= cciStrong:
		return Oscillator{Side: market.Short, Level: 3, Strength: 1.0}
	case cci >= cciMedium:
		return Oscillator{Side: market.Short, Level: 2, Strength: 0.7}
	case cci >= cciLight:
		return Oscillator{Side: market.Short, Level: 1, Strength: 0.4}
	default:
		return Oscillator{}
	}
}

// multiplierFactor nudges the martingale ratio by oscillator level:
// a light reading softens it 20%, a strong reading adds 20%.
func multiplierFactor(level int) float64 {
	switch level {
	case 1:
		return 0.8
	case 3:
		return 1.2
	default:
		return 1.0
	}
}
