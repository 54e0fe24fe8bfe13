package signal

import (
	"time"

	"turtlestock/pkg/model"
)

// High52wProximity is how close to the 52-week high a close must be.
const High52wProximity = 0.97

// Evaluate applies the breakout rule to a close and its indicator snapshot.
// All four conditions must hold; a nil indicator fails its condition rather
// than erroring, so thin-history symbols simply never trigger.
//
// Conditions:
//  1. close at or above the 20-day high
//  2. close above the 50-day moving average
//  3. 50-day average above the 200-day average (long-term uptrend)
//  4. close within 3% of the 52-week high
func Evaluate(close float64, snap model.IndicatorSnapshot) bool {
	if snap.High20d == nil || snap.SMA50d == nil || snap.SMA200d == nil || snap.High52w == nil {
		return false
	}
	return close >= *snap.High20d &&
		close > *snap.SMA50d &&
		*snap.SMA50d > *snap.SMA200d &&
		close >= High52wProximity**snap.High52w
}

// Build assembles the persisted signal row for a symbol and session date
func Build(symbol string, date time.Time, close float64, snap model.IndicatorSnapshot) model.Signal {
	return model.Signal{
		Symbol:    symbol,
		Date:      date,
		Close:     close,
		High20d:   snap.High20d,
		SMA50d:    snap.SMA50d,
		SMA200d:   snap.SMA200d,
		High52w:   snap.High52w,
		ATR:       snap.ATR14,
		Triggered: Evaluate(close, snap),
	}
}
