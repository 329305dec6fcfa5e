package indicators

import (
	"fmt"
	"math"

	"github.com/zuchengchen/martingrid/market"
)

// ADX calculates Wilder's Average Directional Index (trend strength) for
// the given period. Needs at least 2*period+1 bars: period to seed the
// smoothed TR/+DM/-DM, then period DX values to seed the ADX itself.
func ADX(bars []market.Bar, period int) (float64, error) {
	if period <= 0 {
		return 0, fmt.Errorf("period must be positive, got %d", period)
	}
	if len(bars) < 2*period+1 {
		return 0, fmt.Errorf("not enough bars: need %d, got %d", 2*period+1, len(bars))
	}

	var tr14, pdm14, mdm14 float64
	var adx, dxSum float64
	dxCount := 0

	for i := 1; i < len(bars); i++ {
		cur, prev := bars[i], bars[i-1]

		upMove := cur.High - prev.High
		downMove := prev.Low - cur.Low

		var pdm, mdm float64
		if upMove > downMove && upMove > 0 {
			pdm = upMove
		}
		if downMove > upMove && downMove > 0 {
			mdm = downMove
		}
		tr := trueRange(cur, prev)

		if i <= period {
			tr14 += tr
			pdm14 += pdm
			mdm14 += mdm
			if i < period {
				continue
			}
		} else {
			// Wilder smoothing
			tr14 = tr14 - tr14/float64(period) + tr
			pdm14 = pdm14 - pdm14/float64(period) + pdm
			mdm14 = mdm14 - mdm14/float64(period) + mdm
		}

		if tr14 == 0 {
			continue
		}
		pdi := 100 * pdm14 / tr14
		mdi := 100 * mdm14 / tr14

		sum := pdi + mdi
		if sum == 0 {
			continue
		}
		dx := 100 * math.Abs(pdi-mdi) / sum

		dxCount++
		if dxCount < period {
			dxSum += dx
			continue
		}
		if dxCount == period {
			dxSum += dx
			adx = dxSum / float64(period)
			continue
		}
		adx = (adx*float64(period-1) + dx) / float64(period)
	}

	if dxCount < period {
		return 0, fmt.Errorf("not enough directional movement data for ADX(%d)", period)
	}
	return adx, nil
}
