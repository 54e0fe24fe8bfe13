package provider

import (
	"context"
	"time"

	"turtlestock/internal/cache"
	"turtlestock/pkg/model"
)

// CachingProvider wraps a Provider with a candle cache for GetDailyCandles.
// The daily sweep hits every symbol once; the signals preview and rebalance
// paths reuse the same series instead of spending provider quota again.
type CachingProvider struct {
	inner   Provider
	cache   cache.CandleCache
	maxDays int
	ttl     time.Duration
}

// NewCachingProvider creates a caching wrapper. maxDays is the span always
// fetched (use 365 calendar days to cover the 252-session year); ttl bounds
// how long a series is served without refetching.
func NewCachingProvider(inner Provider, c cache.CandleCache, maxDays int, ttl time.Duration) *CachingProvider {
	return &CachingProvider{
		inner:   inner,
		cache:   c,
		maxDays: maxDays,
		ttl:     ttl,
	}
}

func (p *CachingProvider) Name() string      { return p.inner.Name() }
func (p *CachingProvider) IsAvailable() bool { return p.inner.IsAvailable() }
func (p *CachingProvider) RateLimit() int    { return p.inner.RateLimit() }

func (p *CachingProvider) GetQuote(ctx context.Context, symbol string) (*model.Quote, error) {
	return p.inner.GetQuote(ctx, symbol)
}

func (p *CachingProvider) GetSymbols(ctx context.Context, exchange string) ([]model.Stock, error) {
	return p.inner.GetSymbols(ctx, exchange)
}

func (p *CachingProvider) GetDailyCandles(ctx context.Context, symbol string, days int) ([]model.Candle, error) {
	if cached, ok := p.cache.Get(ctx, symbol); ok {
		return trimDays(cached, days), nil
	}

	// Fetch the full span once so later narrower requests hit the cache
	fetchDays := p.maxDays
	if days > fetchDays {
		fetchDays = days
	}

	candles, err := p.inner.GetDailyCandles(ctx, symbol, fetchDays)
	if err != nil {
		return nil, err
	}

	p.cache.Set(ctx, symbol, candles, p.ttl)
	return trimDays(candles, days), nil
}

// trimDays keeps the most recent candles no older than days calendar days
func trimDays(candles []model.Candle, days int) []model.Candle {
	if len(candles) == 0 || days <= 0 {
		return candles
	}
	cutoff := time.Now().UTC().AddDate(0, 0, -days)
	for i, c := range candles {
		if !c.Time.Before(cutoff) {
			return candles[i:]
		}
	}
	return candles[len(candles):]
}
