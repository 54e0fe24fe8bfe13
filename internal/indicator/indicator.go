package indicator

import (
	"time"

	"turtlestock/pkg/model"
)

const (
	// TradingDaysPerYear is the number of sessions in a 52-week window.
	TradingDaysPerYear = 252

	// MinRequiredDays is the minimum session count for a full snapshot.
	// Roughly two thirds of a trading year; new listings below this floor
	// are skipped rather than analyzed on partial windows.
	MinRequiredDays = 170

	atrPeriod = 14
)

// HasSufficientHistory reports whether n sessions are enough to analyze
func HasSufficientHistory(n int) bool {
	return n >= MinRequiredDays
}

// Compute builds an indicator snapshot from daily bars ordered ascending by
// time. Each field is nil when the bars cannot cover its window; a window
// that fits is computed over the most recent bars.
func Compute(symbol string, bars []model.Candle) model.IndicatorSnapshot {
	snap := model.IndicatorSnapshot{Symbol: symbol}
	if len(bars) == 0 {
		return snap
	}
	snap.AsOf = bars[len(bars)-1].Time

	closes := make([]float64, len(bars))
	for i, b := range bars {
		closes[i] = b.Close
	}

	if v, ok := maxOfLast(closes, 20); ok {
		snap.High20d = model.Float64Ptr(v)
	}
	if v, ok := meanOfLast(closes, 50); ok {
		snap.SMA50d = model.Float64Ptr(v)
	}
	if v, ok := meanOfLast(closes, 200); ok {
		snap.SMA200d = model.Float64Ptr(v)
	}
	if v, ok := maxOfLast(closes, TradingDaysPerYear); ok {
		snap.High52w = model.Float64Ptr(v)
	}
	if v, ok := atr(bars, atrPeriod); ok {
		snap.ATR14 = model.Float64Ptr(v)
	}

	return snap
}

func maxOfLast(values []float64, n int) (float64, bool) {
	if len(values) < n {
		return 0, false
	}
	window := values[len(values)-n:]
	max := window[0]
	for _, v := range window[1:] {
		if v > max {
			max = v
		}
	}
	return max, true
}

func meanOfLast(values []float64, n int) (float64, bool) {
	if len(values) < n {
		return 0, false
	}
	window := values[len(values)-n:]
	sum := 0.0
	for _, v := range window {
		sum += v
	}
	return sum / float64(n), true
}

// atr computes the mean true range over the last period sessions. Needs
// period+1 bars since each true range uses the previous close.
func atr(bars []model.Candle, period int) (float64, bool) {
	if len(bars) < period+1 {
		return 0, false
	}
	window := bars[len(bars)-period-1:]
	sum := 0.0
	for i := 1; i < len(window); i++ {
		sum += trueRange(window[i], window[i-1].Close)
	}
	return sum / float64(period), true
}

func trueRange(bar model.Candle, prevClose float64) float64 {
	tr := bar.High - bar.Low
	if hc := abs(bar.High - prevClose); hc > tr {
		tr = hc
	}
	if lc := abs(bar.Low - prevClose); lc > tr {
		tr = lc
	}
	return tr
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

// LatestClose returns the most recent close and its session date
func LatestClose(bars []model.Candle) (float64, time.Time, bool) {
	if len(bars) == 0 {
		return 0, time.Time{}, false
	}
	last := bars[len(bars)-1]
	return last.Close, last.Time, true
}
