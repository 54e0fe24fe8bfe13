package portfolio

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"turtlestock/internal/indicator"
	"turtlestock/internal/risk"
	"turtlestock/internal/store"
	"turtlestock/pkg/model"
)

// ErrInvalidTransition is returned when a lifecycle operation violates its
// precondition (add-up too large, selling more than held, unknown position).
var ErrInvalidTransition = errors.New("invalid position transition")

// Store is the persistence surface the manager needs.
type Store interface {
	GetHolding(ctx context.Context, userID int64, symbol string) (*model.Holding, error)
	GetHoldings(ctx context.Context, userID int64) ([]model.Holding, error)
	CreateHolding(ctx context.Context, h model.Holding) (*model.Holding, error)
	UpdateHolding(ctx context.Context, h model.Holding) error
	DeleteHolding(ctx context.Context, id int64) error
	UpdateStops(ctx context.Context, stops map[int64]float64) error
	InsertTransaction(ctx context.Context, t model.Transaction) error
	BuyTransactions(ctx context.Context, holdingID int64) ([]model.Transaction, error)
	InsertTradeHistory(ctx context.Context, th model.TradeHistory) error
}

// MarketData is the narrow provider surface the rebalance path needs.
type MarketData interface {
	GetQuote(ctx context.Context, symbol string) (*model.Quote, error)
	GetDailyCandles(ctx context.Context, symbol string, days int) ([]model.Candle, error)
}

// Manager runs the position lifecycle. Transitions are rejected with
// risk.ErrInsufficientRiskProfile before any write when the profile is
// unusable. Every state transition ends with a risk-pool rebalance so the
// equal-split allocation always reflects the current set of eligible
// positions; a rebalance failure surfaces as an error even though the
// transition itself is already persisted.
type Manager struct {
	store     Store
	market    MarketData
	allocator *risk.Allocator
	profile   risk.Profile
	logger    *zap.Logger
}

// NewManager creates a lifecycle manager for one user profile
func NewManager(s Store, market MarketData, allocator *risk.Allocator, profile risk.Profile, logger *zap.Logger) *Manager {
	return &Manager{
		store:     s,
		market:    market,
		allocator: allocator,
		profile:   profile,
		logger:    logger,
	}
}

// Buy opens a position or extends an existing one. The holding's average
// price is recomputed from the full buy log, never incrementally adjusted.
func (m *Manager) Buy(ctx context.Context, userID int64, symbol string, shares, price float64, date time.Time) (*model.Holding, error) {
	if !m.profile.Valid() {
		return nil, risk.ErrInsufficientRiskProfile
	}
	if shares <= 0 || price <= 0 {
		return nil, fmt.Errorf("%w: buy needs positive shares and price", ErrInvalidTransition)
	}

	holding, err := m.store.GetHolding(ctx, userID, symbol)
	if errors.Is(err, store.ErrNotFound) {
		holding, err = m.store.CreateHolding(ctx, model.Holding{
			UserID:       userID,
			Symbol:       symbol,
			TotalShares:  0,
			AveragePrice: price,
			CreatedAt:    date,
		})
	}
	if err != nil {
		return nil, err
	}

	if err := m.store.InsertTransaction(ctx, model.Transaction{
		HoldingID:     holding.ID,
		Type:          model.TxBuy,
		Shares:        shares,
		PricePerShare: price,
		TotalAmount:   shares * price,
		Date:          date,
	}); err != nil {
		return nil, err
	}

	holding.TotalShares += shares
	avg, err := m.averageBuyPrice(ctx, holding.ID)
	if err != nil {
		return nil, err
	}
	if avg > 0 {
		holding.AveragePrice = avg
	}
	if err := m.store.UpdateHolding(ctx, *holding); err != nil {
		return nil, err
	}

	m.logger.Info("position bought",
		zap.Int64("user", userID), zap.String("symbol", symbol),
		zap.Float64("shares", shares), zap.Float64("price", price))

	if err := m.RebalanceRiskPool(ctx, userID); err != nil {
		return nil, fmt.Errorf("rebalancing after buy: %w", err)
	}
	return holding, nil
}

// AddUp pyramids into a winning position. The added tranche must be smaller
// than the current position, the holding leaves the shared risk pool, and
// its stop tightens to 5% below the market price.
func (m *Manager) AddUp(ctx context.Context, userID int64, symbol string, shares, marketPrice float64, date time.Time) (*model.Holding, error) {
	if !m.profile.Valid() {
		return nil, risk.ErrInsufficientRiskProfile
	}
	if shares <= 0 || marketPrice <= 0 {
		return nil, fmt.Errorf("%w: add-up needs positive shares and price", ErrInvalidTransition)
	}

	holding, err := m.store.GetHolding(ctx, userID, symbol)
	if errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("%w: no open position in %s", ErrInvalidTransition, symbol)
	}
	if err != nil {
		return nil, err
	}

	if shares >= holding.TotalShares {
		return nil, fmt.Errorf("%w: add-up of %.2f shares must be smaller than the %.2f held",
			ErrInvalidTransition, shares, holding.TotalShares)
	}

	if err := m.store.InsertTransaction(ctx, model.Transaction{
		HoldingID:     holding.ID,
		Type:          model.TxBuy,
		Shares:        shares,
		PricePerShare: marketPrice,
		TotalAmount:   shares * marketPrice,
		Date:          date,
	}); err != nil {
		return nil, err
	}

	holding.TotalShares += shares
	avg, err := m.averageBuyPrice(ctx, holding.ID)
	if err != nil {
		return nil, err
	}
	if avg > 0 {
		holding.AveragePrice = avg
	}
	holding.AddedUp = true
	holding.StopLoss = risk.AddUpStop(marketPrice)
	if err := m.store.UpdateHolding(ctx, *holding); err != nil {
		return nil, err
	}

	m.logger.Info("position added up",
		zap.Int64("user", userID), zap.String("symbol", symbol),
		zap.Float64("shares", shares), zap.Float64("stop", holding.StopLoss))

	if err := m.RebalanceRiskPool(ctx, userID); err != nil {
		return nil, fmt.Errorf("rebalancing after add-up: %w", err)
	}
	return holding, nil
}

// Sell reduces or closes a position. Every sell writes a trade-history row;
// selling the final share deletes the holding. A partial sell keeps the
// average price, since the remaining shares were bought at the same cost.
func (m *Manager) Sell(ctx context.Context, userID int64, symbol string, shares, price float64, date time.Time) error {
	if !m.profile.Valid() {
		return risk.ErrInsufficientRiskProfile
	}
	if shares <= 0 || price <= 0 {
		return fmt.Errorf("%w: sell needs positive shares and price", ErrInvalidTransition)
	}

	holding, err := m.store.GetHolding(ctx, userID, symbol)
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("%w: no open position in %s", ErrInvalidTransition, symbol)
	}
	if err != nil {
		return err
	}

	if shares > holding.TotalShares {
		return fmt.Errorf("%w: selling %.2f shares but only %.2f held",
			ErrInvalidTransition, shares, holding.TotalShares)
	}

	if err := m.store.InsertTransaction(ctx, model.Transaction{
		HoldingID:     holding.ID,
		Type:          model.TxSell,
		Shares:        shares,
		PricePerShare: price,
		TotalAmount:   shares * price,
		Date:          date,
	}); err != nil {
		return err
	}

	initial := holding.AveragePrice * shares
	end := price * shares
	if err := m.store.InsertTradeHistory(ctx, model.TradeHistory{
		ID:           uuid.NewString(),
		UserID:       userID,
		Symbol:       symbol,
		Shares:       shares,
		BuyPrice:     holding.AveragePrice,
		SellPrice:    price,
		InitialValue: initial,
		EndValue:     end,
		NetValue:     end - initial,
		BuyDate:      holding.CreatedAt,
		SellDate:     date,
	}); err != nil {
		return err
	}

	remaining := holding.TotalShares - shares
	if remaining <= 1e-9 {
		if err := m.store.DeleteHolding(ctx, holding.ID); err != nil {
			return err
		}
	} else {
		holding.TotalShares = remaining
		if err := m.store.UpdateHolding(ctx, *holding); err != nil {
			return err
		}
	}

	m.logger.Info("position sold",
		zap.Int64("user", userID), zap.String("symbol", symbol),
		zap.Float64("shares", shares), zap.Float64("net", end-initial))

	if err := m.RebalanceRiskPool(ctx, userID); err != nil {
		return fmt.Errorf("rebalancing after sell: %w", err)
	}
	return nil
}

// RebalanceRiskPool recomputes every eligible holding's stop from the
// equal-split risk budget and current volatility, applying all changes in
// one store transaction. Added-up holdings keep their tightened stop.
func (m *Manager) RebalanceRiskPool(ctx context.Context, userID int64) error {
	holdings, err := m.store.GetHoldings(ctx, userID)
	if err != nil {
		return err
	}

	var eligible []model.Holding
	for _, h := range holdings {
		if !h.AddedUp {
			eligible = append(eligible, h)
		}
	}
	if len(eligible) == 0 {
		return nil
	}

	budget, err := m.allocator.PoolBudget(m.profile, len(eligible))
	if err != nil {
		return err
	}

	stops := make(map[int64]float64, len(eligible))
	for _, h := range eligible {
		price := h.AveragePrice
		if quote, err := m.market.GetQuote(ctx, h.Symbol); err == nil && quote.Price > 0 {
			price = quote.Price
		}

		var bars []model.Candle
		if candles, err := m.market.GetDailyCandles(ctx, h.Symbol, 30); err == nil {
			bars = candles
		}

		vol, source, err := indicator.EstimateVolatility(bars, price)
		if err != nil {
			m.logger.Warn("volatility unavailable, keeping stop",
				zap.String("symbol", h.Symbol), zap.Error(err))
			continue
		}

		pos, err := m.allocator.SizePosition(m.profile, budget, price, vol, source)
		if err != nil {
			return err
		}
		stops[h.ID] = pos.StopLoss
	}

	return m.store.UpdateStops(ctx, stops)
}

// PreviewPosition sizes a prospective entry without touching the store. The
// candidate joins the eligible count, so the preview shows the budget as it
// would be after the buy. atr may be nil; volatility then falls back to the
// estimation chain.
func (m *Manager) PreviewPosition(ctx context.Context, userID int64, symbol string, entryPrice float64, atr *float64) (risk.Position, error) {
	holdings, err := m.store.GetHoldings(ctx, userID)
	if err != nil {
		return risk.Position{}, err
	}

	eligible := 0
	held := false
	for _, h := range holdings {
		if h.Symbol == symbol {
			held = true
		}
		if !h.AddedUp {
			eligible++
		}
	}
	if !held {
		eligible++
	}

	budget, err := m.allocator.PoolBudget(m.profile, eligible)
	if err != nil {
		return risk.Position{}, err
	}

	var vol float64
	source := indicator.SourceATR
	if atr != nil && *atr > 0 {
		vol = *atr
	} else {
		var bars []model.Candle
		if candles, err := m.market.GetDailyCandles(ctx, symbol, 30); err == nil {
			bars = candles
		}
		vol, source, err = indicator.EstimateVolatility(bars, entryPrice)
		if err != nil {
			return risk.Position{}, err
		}
	}

	return m.allocator.SizePosition(m.profile, budget, entryPrice, vol, source)
}

// PortfolioValue sums shares x current price across a user's holdings,
// falling back to average cost when no quote is available
func (m *Manager) PortfolioValue(ctx context.Context, userID int64) (float64, error) {
	holdings, err := m.store.GetHoldings(ctx, userID)
	if err != nil {
		return 0, err
	}
	total := 0.0
	for _, h := range holdings {
		price := h.AveragePrice
		if quote, err := m.market.GetQuote(ctx, h.Symbol); err == nil && quote.Price > 0 {
			price = quote.Price
		}
		total += h.TotalShares * price
	}
	return total, nil
}

// averageBuyPrice is the volume-weighted mean over the holding's buy log
func (m *Manager) averageBuyPrice(ctx context.Context, holdingID int64) (float64, error) {
	buys, err := m.store.BuyTransactions(ctx, holdingID)
	if err != nil {
		return 0, err
	}
	var shares, amount float64
	for _, b := range buys {
		shares += b.Shares
		amount += b.TotalAmount
	}
	if shares == 0 {
		return 0, nil
	}
	return amount / shares, nil
}
