package provider

import (
	"context"
	"errors"
	"time"

	"turtlestock/pkg/model"
)

// Sentinel errors distinguishing the two failure classes callers care about:
// a symbol with no usable data is skipped for the day, a rate-limited call is
// worth retrying.
var (
	ErrNoData      = errors.New("no data available")
	ErrRateLimited = errors.New("rate limited")
)

// Provider defines the interface for market data providers
type Provider interface {
	// Name returns the provider name
	Name() string

	// GetDailyCandles fetches daily OHLCV data for the specified number of
	// calendar days, ordered ascending by time
	GetDailyCandles(ctx context.Context, symbol string, days int) ([]model.Candle, error)

	// GetQuote fetches the latest price quote for a symbol
	GetQuote(ctx context.Context, symbol string) (*model.Quote, error)

	// GetSymbols returns the list of symbols for the given exchange
	GetSymbols(ctx context.Context, exchange string) ([]model.Stock, error)

	// IsAvailable checks if the provider is available (has valid API key)
	IsAvailable() bool

	// RateLimit returns the rate limit per minute
	RateLimit() int
}

// ProviderError represents a provider-specific error. Backoff, when set,
// carries the provider limiter's current backoff so a retrying caller waits
// as long as the limiter asks for.
type ProviderError struct {
	Provider  string
	Err       error
	Retryable bool
	Backoff   time.Duration
}

func (e *ProviderError) Error() string {
	return e.Provider + ": " + e.Err.Error()
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// IsRetryable reports whether err is worth retrying (rate limits, transient
// network failures). A bare non-ProviderError is treated as retryable since
// it usually comes straight from the HTTP client.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Retryable
	}
	return errors.Is(err, ErrRateLimited)
}

// FallbackProvider tries multiple providers in order. The result always comes
// from a single provider; series from different sources are never merged.
type FallbackProvider struct {
	providers []Provider
}

// NewFallbackProvider creates a new fallback provider
func NewFallbackProvider(providers ...Provider) *FallbackProvider {
	// Filter to only available providers
	available := make([]Provider, 0, len(providers))
	for _, p := range providers {
		if p.IsAvailable() {
			available = append(available, p)
		}
	}
	return &FallbackProvider{providers: available}
}

// Name returns the combined provider name
func (f *FallbackProvider) Name() string {
	return "fallback"
}

// GetDailyCandles tries each provider in order until one succeeds
func (f *FallbackProvider) GetDailyCandles(ctx context.Context, symbol string, days int) ([]model.Candle, error) {
	var lastErr error
	for _, p := range f.providers {
		candles, err := p.GetDailyCandles(ctx, symbol, days)
		if err == nil {
			return candles, nil
		}
		lastErr = err
	}
	if lastErr == nil {
		lastErr = &ProviderError{Provider: f.Name(), Err: ErrNoData, Retryable: false}
	}
	return nil, lastErr
}

// GetQuote tries each provider in order
func (f *FallbackProvider) GetQuote(ctx context.Context, symbol string) (*model.Quote, error) {
	var lastErr error
	for _, p := range f.providers {
		quote, err := p.GetQuote(ctx, symbol)
		if err == nil {
			return quote, nil
		}
		lastErr = err
	}
	if lastErr == nil {
		lastErr = &ProviderError{Provider: f.Name(), Err: ErrNoData, Retryable: false}
	}
	return nil, lastErr
}

// GetSymbols returns symbols from the first provider that succeeds
func (f *FallbackProvider) GetSymbols(ctx context.Context, exchange string) ([]model.Stock, error) {
	var lastErr error
	for _, p := range f.providers {
		symbols, err := p.GetSymbols(ctx, exchange)
		if err == nil {
			return symbols, nil
		}
		lastErr = err
	}
	if lastErr == nil {
		lastErr = &ProviderError{Provider: f.Name(), Err: ErrNoData, Retryable: false}
	}
	return nil, lastErr
}

// IsAvailable returns true if any provider is available
func (f *FallbackProvider) IsAvailable() bool {
	return len(f.providers) > 0
}

// RateLimit returns the highest rate limit among providers
func (f *FallbackProvider) RateLimit() int {
	maxRate := 0
	for _, p := range f.providers {
		if p.RateLimit() > maxRate {
			maxRate = p.RateLimit()
		}
	}
	return maxRate
}

// Providers returns the list of underlying providers
func (f *FallbackProvider) Providers() []Provider {
	return f.providers
}
