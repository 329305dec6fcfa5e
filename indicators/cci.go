package indicators

import (
	"fmt"
	"math"

	"github.com/zuchengchen/martingrid/market"
)

// CCI calculates the Commodity Channel Index for the given period:
//
//	CCI = (TP - SMA(TP)) / (0.015 * meanDeviation)
//
// where TP is the typical price (H+L+C)/3. A flat series (zero mean
// deviation) yields 0.
func CCI(bars []market.Bar, period int) (float64, error) {
	if period <= 0 {
		return 0, fmt.Errorf("period must be positive, got %d", period)
	}
	if len(bars) < period {
		return 0, fmt.Errorf("not enough bars: need %d, got %d", period, len(bars))
	}

	tps := make([]float64, period)
	sum := 0.0
	for i := 0; i < period; i++ {
		b := bars[len(bars)-period+i]
		tps[i] = (b.High + b.Low + b.Close) / 3
		sum += tps[i]
	}
	mean := sum / float64(period)

	dev := 0.0
	for _, tp := range tps {
		dev += math.Abs(tp - mean)
	}
	dev /= float64(period)
	if dev == 0 {
		return 0, nil
	}

	return (tps[period-1] - mean) / (0.015 * dev), nil
}
