package indicator

import (
	"errors"

	"turtlestock/pkg/model"
)

// ErrNoVolatility means no estimation strategy could produce a value.
var ErrNoVolatility = errors.New("volatility not estimable")

// VolatilitySource tags which strategy produced a volatility estimate.
type VolatilitySource string

const (
	SourceATR         VolatilitySource = "atr"
	SourceApproximate VolatilitySource = "approximate"
	SourcePriceTier   VolatilitySource = "price_tier"
)

// EstimateVolatility returns a daily dollar volatility for position sizing,
// trying strategies in order of fidelity: true ATR, an approximation from
// recent close-to-close moves, then a flat percentage of price by tier.
// price must be positive for the tier fallback to apply.
func EstimateVolatility(bars []model.Candle, price float64) (float64, VolatilitySource, error) {
	if v, ok := atr(bars, atrPeriod); ok && v > 0 {
		return v, SourceATR, nil
	}

	if v, ok := approximateVolatility(bars); ok {
		return v, SourceApproximate, nil
	}

	if price > 0 {
		return price * tierPct(price), SourcePriceTier, nil
	}

	return 0, "", ErrNoVolatility
}

// approximateVolatility is 1.5x the mean absolute day-over-day close change,
// usable from 3 sessions up. The multiplier compensates for close-to-close
// moves understating intraday range.
func approximateVolatility(bars []model.Candle) (float64, bool) {
	if len(bars) < 3 {
		return 0, false
	}
	sum := 0.0
	for i := 1; i < len(bars); i++ {
		sum += abs(bars[i].Close - bars[i-1].Close)
	}
	mean := sum / float64(len(bars)-1)
	if mean == 0 {
		return 0, false
	}
	return 1.5 * mean, true
}

// tierPct assumes cheaper stocks move more in percentage terms
func tierPct(price float64) float64 {
	switch {
	case price > 100:
		return 0.025
	case price >= 50:
		return 0.03
	default:
		return 0.04
	}
}
