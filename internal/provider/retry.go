package provider

import (
	"context"
	"errors"
	"time"

	"turtlestock/pkg/model"
)

// RetryingProvider retries retryable failures (rate limits, transient network
// errors) with exponential backoff before giving up. A rate-limited provider
// reports its limiter's backoff on the error and the retry sleeps for that
// long instead of the local schedule. Non-retryable failures such as invalid
// symbols pass straight through so callers can skip the symbol instead of
// burning quota on it.
type RetryingProvider struct {
	inner       Provider
	maxRetries  int
	baseBackoff time.Duration
	sleep       func(ctx context.Context, d time.Duration) error
}

// NewRetryingProvider wraps inner with bounded retry behavior.
func NewRetryingProvider(inner Provider, maxRetries int, baseBackoff time.Duration) *RetryingProvider {
	if maxRetries < 0 {
		maxRetries = 0
	}
	if baseBackoff <= 0 {
		baseBackoff = time.Second
	}
	return &RetryingProvider{
		inner:       inner,
		maxRetries:  maxRetries,
		baseBackoff: baseBackoff,
		sleep:       sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (p *RetryingProvider) Name() string      { return p.inner.Name() }
func (p *RetryingProvider) IsAvailable() bool { return p.inner.IsAvailable() }
func (p *RetryingProvider) RateLimit() int    { return p.inner.RateLimit() }

// GetDailyCandles fetches candles, retrying retryable errors with backoff
func (p *RetryingProvider) GetDailyCandles(ctx context.Context, symbol string, days int) ([]model.Candle, error) {
	var candles []model.Candle
	err := p.withRetry(ctx, func() error {
		var innerErr error
		candles, innerErr = p.inner.GetDailyCandles(ctx, symbol, days)
		return innerErr
	})
	return candles, err
}

// GetQuote fetches a quote, retrying retryable errors with backoff
func (p *RetryingProvider) GetQuote(ctx context.Context, symbol string) (*model.Quote, error) {
	var quote *model.Quote
	err := p.withRetry(ctx, func() error {
		var innerErr error
		quote, innerErr = p.inner.GetQuote(ctx, symbol)
		return innerErr
	})
	return quote, err
}

// GetSymbols fetches the symbol list, retrying retryable errors with backoff
func (p *RetryingProvider) GetSymbols(ctx context.Context, exchange string) ([]model.Stock, error) {
	var stocks []model.Stock
	err := p.withRetry(ctx, func() error {
		var innerErr error
		stocks, innerErr = p.inner.GetSymbols(ctx, exchange)
		return innerErr
	})
	return stocks, err
}

func (p *RetryingProvider) withRetry(ctx context.Context, call func() error) error {
	backoff := p.baseBackoff
	var err error

	for attempt := 0; ; attempt++ {
		err = call()
		if err == nil || !IsRetryable(err) {
			return err
		}
		if attempt >= p.maxRetries {
			return err
		}

		wait := backoff
		var pe *ProviderError
		if errors.As(err, &pe) && pe.Backoff > 0 {
			wait = pe.Backoff
		}
		if sleepErr := p.sleep(ctx, wait); sleepErr != nil {
			return sleepErr
		}
		backoff *= 2
	}
}
