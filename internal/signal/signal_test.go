package signal

import (
	"testing"
	"time"

	"turtlestock/pkg/model"
)

func fullSnapshot(high20, sma50, sma200, high52 float64) model.IndicatorSnapshot {
	return model.IndicatorSnapshot{
		Symbol:  "TEST",
		High20d: model.Float64Ptr(high20),
		SMA50d:  model.Float64Ptr(sma50),
		SMA200d: model.Float64Ptr(sma200),
		High52w: model.Float64Ptr(high52),
		ATR14:   model.Float64Ptr(2),
	}
}

func TestEvaluateTriggers(t *testing.T) {
	snap := fullSnapshot(100, 95, 90, 102)
	if !Evaluate(100, snap) {
		t.Error("All four conditions hold, should trigger")
	}
}

func TestEvaluateEachConditionFails(t *testing.T) {
	cases := []struct {
		name  string
		close float64
		snap  model.IndicatorSnapshot
	}{
		{"below 20d high", 99, fullSnapshot(100, 95, 90, 102)},
		{"below sma50", 100, fullSnapshot(100, 101, 90, 102)},
		{"sma50 under sma200", 100, fullSnapshot(100, 95, 96, 102)},
		{"far from 52w high", 100, fullSnapshot(100, 95, 90, 110)},
	}
	for _, tc := range cases {
		if Evaluate(tc.close, tc.snap) {
			t.Errorf("%s: should not trigger", tc.name)
		}
	}
}

func TestEvaluateBoundaries(t *testing.T) {
	// close == high20d passes (at-or-above), close == sma50 fails (strict)
	snap := fullSnapshot(100, 100, 90, 100)
	if Evaluate(100, snap) {
		t.Error("close == sma50 should fail the strict comparison")
	}

	// close exactly at 97% of the 52-week high passes
	snap = fullSnapshot(97, 95, 90, 100)
	if !Evaluate(97, snap) {
		t.Error("close at 0.97 * high52w should pass")
	}
}

func TestEvaluateNilIndicators(t *testing.T) {
	snap := fullSnapshot(100, 95, 90, 102)
	snap.SMA200d = nil
	if Evaluate(100, snap) {
		t.Error("Nil indicator should fail its condition, not trigger")
	}

	if Evaluate(100, model.IndicatorSnapshot{}) {
		t.Error("Empty snapshot should never trigger")
	}
}

func TestEvaluateDeterministic(t *testing.T) {
	snap := fullSnapshot(100, 95, 90, 102)
	first := Evaluate(100, snap)
	for i := 0; i < 10; i++ {
		if Evaluate(100, snap) != first {
			t.Fatal("Evaluate should be deterministic for identical inputs")
		}
	}
}

func TestBuildCarriesSnapshot(t *testing.T) {
	snap := fullSnapshot(100, 95, 90, 102)
	date := time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)

	sig := Build("AAPL", date, 100, snap)

	if sig.Symbol != "AAPL" || !sig.Date.Equal(date) || sig.Close != 100 {
		t.Errorf("Unexpected signal identity: %+v", sig)
	}
	if !sig.Triggered {
		t.Error("Signal should be triggered")
	}
	if sig.High20d == nil || *sig.High20d != 100 {
		t.Error("Signal should carry the snapshot values")
	}
	if sig.ATR == nil || *sig.ATR != 2 {
		t.Error("Signal should carry the ATR")
	}
}
