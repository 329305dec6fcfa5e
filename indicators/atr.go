package indicators

import (
	"fmt"
	"math"

	"github.com/zuchengchen/martingrid/market"
)

// ATR calculates the Average True Range for the given period using
// Wilder's smoothing. Needs period+1 bars because the true range of a bar
// references the previous close.
func ATR(bars []market.Bar, period int) (float64, error) {
	if period <= 0 {
		return 0, fmt.Errorf("period must be positive, got %d", period)
	}
	if len(bars) < period+1 {
		return 0, fmt.Errorf("not enough bars: need %d, got %d", period+1, len(bars))
	}

	trs := make([]float64, 0, len(bars)-1)
	for i := 1; i < len(bars); i++ {
		trs = append(trs, trueRange(bars[i], bars[i-1]))
	}

	sum := 0.0
	for i := 0; i < period; i++ {
		sum += trs[i]
	}
	atr := sum / float64(period)

	for i := period; i < len(trs); i++ {
		atr = (atr*float64(period-1) + trs[i]) / float64(period)
	}
	return atr, nil
}

// ATRPercent returns the ATR as a fraction of the latest close, e.g. 0.012
// for 1.2%. The signal generator uses this to scale grid spacing by
// volatility.
func ATRPercent(bars []market.Bar, period int) (float64, error) {
	atr, err := ATR(bars, period)
	if err != nil {
		return 0, err
	}
	last := bars[len(bars)-1].Close
	if last <= 0 {
		return 0, fmt.Errorf("non-positive close %v", last)
	}
	return atr / last, nil
}

// trueRange calculates the True Range of a bar given the previous bar.
func trueRange(current, previous market.Bar) float64 {
	highLow := current.High - current.Low
	highClose := math.Abs(current.High - previous.Close)
	lowClose := math.Abs(current.Low - previous.Close)
	return math.Max(highLow, math.Max(highClose, lowClose))
}
