package risk

import (
	"errors"
	"math"
	"testing"

	"github.com/shopspring/decimal"

	"turtlestock/internal/indicator"
)

func profile(capital, tolerance float64) Profile {
	return Profile{
		Capital:          decimal.NewFromFloat(capital),
		RiskTolerancePct: decimal.NewFromFloat(tolerance),
	}
}

func TestTotalBudget(t *testing.T) {
	a := NewAllocator()

	total, err := a.TotalBudget(profile(100000, 2))
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if !total.Equal(decimal.NewFromInt(2000)) {
		t.Errorf("TotalBudget = %s, want 2000", total)
	}
}

func TestInvalidProfiles(t *testing.T) {
	a := NewAllocator()
	cases := []Profile{
		profile(0, 2),
		profile(-100, 2),
		profile(100000, 0),
		profile(100000, -1),
		profile(100000, 101),
	}
	for _, p := range cases {
		if _, err := a.TotalBudget(p); !errors.Is(err, ErrInsufficientRiskProfile) {
			t.Errorf("Profile %+v should be rejected", p)
		}
	}
}

func TestPoolBudgetEqualSplit(t *testing.T) {
	a := NewAllocator()
	p := profile(100000, 2)

	// Splitting across N positions keeps the sum at the total budget
	for _, n := range []int{1, 2, 3, 5, 7} {
		per, err := a.PoolBudget(p, n)
		if err != nil {
			t.Fatalf("n=%d: unexpected error: %v", n, err)
		}
		sum := per.Mul(decimal.NewFromInt(int64(n)))
		diff := sum.Sub(decimal.NewFromInt(2000)).Abs()
		if diff.GreaterThan(decimal.NewFromFloat(0.0001)) {
			t.Errorf("n=%d: per-position budgets sum to %s, want 2000", n, sum)
		}
	}
}

func TestPoolBudgetEmptyPool(t *testing.T) {
	a := NewAllocator()

	per, err := a.PoolBudget(profile(100000, 2), 0)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if !per.IsZero() {
		t.Errorf("Empty pool should yield a zero budget, got %s", per)
	}
}

func TestSizePosition(t *testing.T) {
	a := NewAllocator()
	p := profile(100000, 2)
	budget := decimal.NewFromInt(1000)

	pos, err := a.SizePosition(p, budget, 50, 2, indicator.SourceATR)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	// Stop = entry - 2*vol = 46; shares = 1000 / 4 = 250
	if pos.StopLoss != 46 {
		t.Errorf("StopLoss = %f, want 46", pos.StopLoss)
	}
	if pos.Shares != 250 {
		t.Errorf("Shares = %f, want 250", pos.Shares)
	}
	if pos.VolatilitySource != indicator.SourceATR {
		t.Errorf("VolatilitySource = %s, want %s", pos.VolatilitySource, indicator.SourceATR)
	}
}

func TestSizePositionCappedByCapital(t *testing.T) {
	a := NewAllocator()
	p := profile(10000, 2)

	// Tiny volatility would suggest far more shares than capital can buy
	pos, err := a.SizePosition(p, decimal.NewFromInt(200), 100, 0.01, indicator.SourceATR)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	cost := pos.Shares * 100
	if cost > 10000+1e-6 {
		t.Errorf("Position cost %f exceeds capital", cost)
	}
}

func TestSizePositionStopNeverNegative(t *testing.T) {
	a := NewAllocator()
	p := profile(100000, 2)

	pos, err := a.SizePosition(p, decimal.NewFromInt(1000), 3, 2, indicator.SourcePriceTier)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if pos.StopLoss < 0 {
		t.Errorf("StopLoss = %f, should be clamped at 0", pos.StopLoss)
	}
}

func TestAddUpStop(t *testing.T) {
	if got := AddUpStop(200); math.Abs(got-190) > 1e-9 {
		t.Errorf("AddUpStop(200) = %f, want 190", got)
	}
}
