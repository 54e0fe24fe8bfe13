package risk

import (
	"errors"

	"github.com/shopspring/decimal"

	"turtlestock/internal/indicator"
)

// ErrInsufficientRiskProfile means sizing was requested without a usable
// capital and risk tolerance.
var ErrInsufficientRiskProfile = errors.New("insufficient risk profile")

// Profile is a user's capital and risk appetite. Tolerance is a percentage
// of capital put at risk across the whole portfolio, e.g. 2 means 2%.
type Profile struct {
	Capital          decimal.Decimal
	RiskTolerancePct decimal.Decimal
}

// Valid reports whether the profile can drive position sizing
func (p Profile) Valid() bool {
	return p.Capital.IsPositive() &&
		p.RiskTolerancePct.IsPositive() &&
		p.RiskTolerancePct.LessThanOrEqual(decimal.NewFromInt(100))
}

// Position is a sized entry or stop recommendation.
type Position struct {
	Shares           float64
	StopLoss         float64
	RiskAmount       float64
	VolatilitySource indicator.VolatilitySource
}

// StopMultiple is the volatility multiple used for initial stop distance.
const StopMultiple = 2.0

// AddUpStopFraction places a pyramided position's stop 5% below market.
const AddUpStopFraction = 0.95

// Allocator distributes a user's total dollar risk budget equally across
// positions. Added-up holdings keep their tightened stop and leave the pool.
type Allocator struct{}

// NewAllocator creates an allocator
func NewAllocator() *Allocator {
	return &Allocator{}
}

// TotalBudget is capital x tolerance / 100, the dollar risk across the pool
func (a *Allocator) TotalBudget(profile Profile) (decimal.Decimal, error) {
	if !profile.Valid() {
		return decimal.Zero, ErrInsufficientRiskProfile
	}
	return profile.Capital.Mul(profile.RiskTolerancePct).Div(decimal.NewFromInt(100)), nil
}

// PoolBudget splits the total budget equally across eligibleCount positions.
// Zero eligible positions means nothing to size: the zero value is returned
// and callers must not open a position from it.
func (a *Allocator) PoolBudget(profile Profile, eligibleCount int) (decimal.Decimal, error) {
	total, err := a.TotalBudget(profile)
	if err != nil {
		return decimal.Zero, err
	}
	if eligibleCount <= 0 {
		return decimal.Zero, nil
	}
	return total.Div(decimal.NewFromInt(int64(eligibleCount))), nil
}

// SizePosition turns a per-position dollar budget into shares and a stop.
// The stop sits StopMultiple volatilities below entry; shares = budget /
// stop distance, capped so the position's cost never exceeds capital.
func (a *Allocator) SizePosition(profile Profile, budget decimal.Decimal, entryPrice, volatility float64, source indicator.VolatilitySource) (Position, error) {
	if !profile.Valid() {
		return Position{}, ErrInsufficientRiskProfile
	}
	if entryPrice <= 0 || volatility <= 0 || !budget.IsPositive() {
		return Position{}, nil
	}

	stopDistance := StopMultiple * volatility
	stopLoss := entryPrice - stopDistance
	if stopLoss < 0 {
		stopLoss = 0
		stopDistance = entryPrice
	}

	shares := budget.InexactFloat64() / stopDistance

	// Never size beyond what the capital can actually buy
	maxAffordable := profile.Capital.InexactFloat64() / entryPrice
	if shares > maxAffordable {
		shares = maxAffordable
	}

	return Position{
		Shares:           shares,
		StopLoss:         stopLoss,
		RiskAmount:       budget.InexactFloat64(),
		VolatilitySource: source,
	}, nil
}

// AddUpStop is the tightened stop applied when pyramiding into a winner
func AddUpStop(marketPrice float64) float64 {
	return AddUpStopFraction * marketPrice
}
