package indicator

import (
	"testing"
	"time"

	"turtlestock/pkg/model"
)

// flatBars builds n daily bars with a constant close and a fixed high-low range
func flatBars(n int, close, rng float64) []model.Candle {
	bars := make([]model.Candle, n)
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := range bars {
		bars[i] = model.Candle{
			Time:  start.AddDate(0, 0, i),
			Open:  close,
			High:  close + rng/2,
			Low:   close - rng/2,
			Close: close,
		}
	}
	return bars
}

func TestComputeFullHistory(t *testing.T) {
	bars := flatBars(252, 100, 2)
	// Most recent close breaks above the flat series
	bars[len(bars)-1].Close = 110
	bars[len(bars)-1].High = 111

	snap := Compute("AAPL", bars)

	if snap.High20d == nil || *snap.High20d != 110 {
		t.Errorf("High20d = %v, want 110", snap.High20d)
	}
	if snap.SMA50d == nil {
		t.Fatal("SMA50d should be computed with 252 bars")
	}
	want := (49*100.0 + 110.0) / 50.0
	if *snap.SMA50d != want {
		t.Errorf("SMA50d = %f, want %f", *snap.SMA50d, want)
	}
	if snap.SMA200d == nil {
		t.Error("SMA200d should be computed with 252 bars")
	}
	if snap.High52w == nil || *snap.High52w != 110 {
		t.Errorf("High52w = %v, want 110", snap.High52w)
	}
	if snap.ATR14 == nil {
		t.Error("ATR14 should be computed with 252 bars")
	}
	if !snap.AsOf.Equal(bars[len(bars)-1].Time) {
		t.Errorf("AsOf = %s, want last bar time", snap.AsOf)
	}
}

func TestComputePartialHistory(t *testing.T) {
	snap := Compute("NEWCO", flatBars(30, 50, 1))

	if snap.High20d == nil {
		t.Error("High20d should be computed with 30 bars")
	}
	if snap.ATR14 == nil {
		t.Error("ATR14 should be computed with 30 bars")
	}
	if snap.SMA50d != nil {
		t.Error("SMA50d should be nil with 30 bars")
	}
	if snap.SMA200d != nil {
		t.Error("SMA200d should be nil with 30 bars")
	}
	if snap.High52w != nil {
		t.Error("High52w should be nil with 30 bars")
	}
}

func TestComputeEmpty(t *testing.T) {
	snap := Compute("AAPL", nil)
	if snap.High20d != nil || snap.SMA50d != nil || snap.SMA200d != nil ||
		snap.High52w != nil || snap.ATR14 != nil {
		t.Error("All fields should be nil with no bars")
	}
}

func TestATRUsesGaps(t *testing.T) {
	// Constant 2-point intraday range, but one overnight gap inside the window
	bars := flatBars(20, 100, 2)
	bars[15].Open = 110
	bars[15].High = 111
	bars[15].Low = 109
	bars[15].Close = 110
	bars[16].Open = 100
	bars[16].High = 101
	bars[16].Low = 99
	bars[16].Close = 100

	snap := Compute("GAP", bars)
	if snap.ATR14 == nil {
		t.Fatal("ATR14 should be computed")
	}
	// Gap days contribute |high-prevClose| or |low-prevClose| beyond the 2.0 range
	if *snap.ATR14 <= 2.0 {
		t.Errorf("ATR14 = %f, should exceed the flat 2.0 range", *snap.ATR14)
	}
}

func TestHasSufficientHistory(t *testing.T) {
	if HasSufficientHistory(169) {
		t.Error("169 sessions should be insufficient")
	}
	if !HasSufficientHistory(170) {
		t.Error("170 sessions should be sufficient")
	}
	if !HasSufficientHistory(252) {
		t.Error("252 sessions should be sufficient")
	}
}

func TestEstimateVolatilityATR(t *testing.T) {
	v, source, err := EstimateVolatility(flatBars(30, 100, 2), 100)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if source != SourceATR {
		t.Errorf("source = %s, want %s", source, SourceATR)
	}
	if v != 2.0 {
		t.Errorf("v = %f, want 2.0", v)
	}
}

func TestEstimateVolatilityApproximate(t *testing.T) {
	// Too few bars for ATR, enough for the approximation
	bars := []model.Candle{
		{Close: 100}, {Close: 102}, {Close: 98}, {Close: 100},
	}
	v, source, err := EstimateVolatility(bars, 100)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if source != SourceApproximate {
		t.Errorf("source = %s, want %s", source, SourceApproximate)
	}
	// Mean |diff| = (2+4+2)/3, times 1.5
	want := 1.5 * (8.0 / 3.0)
	if abs(v-want) > 1e-9 {
		t.Errorf("v = %f, want %f", v, want)
	}
}

func TestEstimateVolatilityPriceTier(t *testing.T) {
	cases := []struct {
		price float64
		want  float64
	}{
		{150, 150 * 0.025},
		{75, 75 * 0.03},
		{50, 50 * 0.03},
		{20, 20 * 0.04},
	}
	for _, tc := range cases {
		v, source, err := EstimateVolatility(nil, tc.price)
		if err != nil {
			t.Fatalf("price %f: unexpected error: %v", tc.price, err)
		}
		if source != SourcePriceTier {
			t.Errorf("price %f: source = %s, want %s", tc.price, source, SourcePriceTier)
		}
		if abs(v-tc.want) > 1e-9 {
			t.Errorf("price %f: v = %f, want %f", tc.price, v, tc.want)
		}
	}
}

func TestEstimateVolatilityNoData(t *testing.T) {
	_, _, err := EstimateVolatility(nil, 0)
	if err != ErrNoVolatility {
		t.Errorf("Expected ErrNoVolatility, got %v", err)
	}
}
