package provider

import (
	"context"
	"errors"
	"testing"
	"time"

	"turtlestock/pkg/model"
)

// fakeProvider returns scripted results, one per call.
type fakeProvider struct {
	name    string
	calls   int
	errs    []error
	candles []model.Candle
	quote   *model.Quote
}

func (f *fakeProvider) Name() string      { return f.name }
func (f *fakeProvider) IsAvailable() bool { return true }
func (f *fakeProvider) RateLimit() int    { return 60 }

func (f *fakeProvider) nextErr() error {
	var err error
	if f.calls < len(f.errs) {
		err = f.errs[f.calls]
	}
	f.calls++
	return err
}

func (f *fakeProvider) GetDailyCandles(ctx context.Context, symbol string, days int) ([]model.Candle, error) {
	if err := f.nextErr(); err != nil {
		return nil, err
	}
	return f.candles, nil
}

func (f *fakeProvider) GetQuote(ctx context.Context, symbol string) (*model.Quote, error) {
	if err := f.nextErr(); err != nil {
		return nil, err
	}
	return f.quote, nil
}

func (f *fakeProvider) GetSymbols(ctx context.Context, exchange string) ([]model.Stock, error) {
	if err := f.nextErr(); err != nil {
		return nil, err
	}
	return nil, nil
}

func noSleep(ctx context.Context, d time.Duration) error { return nil }

func TestRetrySucceedsAfterRateLimit(t *testing.T) {
	inner := &fakeProvider{
		name: "fake",
		errs: []error{
			&ProviderError{Provider: "fake", Err: ErrRateLimited, Retryable: true},
			nil,
		},
		candles: []model.Candle{{Close: 100}},
	}

	rp := NewRetryingProvider(inner, 3, time.Millisecond)
	rp.sleep = noSleep

	candles, err := rp.GetDailyCandles(context.Background(), "AAPL", 20)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(candles) != 1 {
		t.Errorf("Expected 1 candle, got %d", len(candles))
	}
	if inner.calls != 2 {
		t.Errorf("Expected 2 calls, got %d", inner.calls)
	}
}

func TestRetryStopsAfterMaxRetries(t *testing.T) {
	rateLimited := &ProviderError{Provider: "fake", Err: ErrRateLimited, Retryable: true}
	inner := &fakeProvider{
		name: "fake",
		errs: []error{rateLimited, rateLimited, rateLimited, rateLimited, rateLimited},
	}

	rp := NewRetryingProvider(inner, 2, time.Millisecond)
	rp.sleep = noSleep

	_, err := rp.GetDailyCandles(context.Background(), "AAPL", 20)
	if !errors.Is(err, ErrRateLimited) {
		t.Errorf("Expected ErrRateLimited, got %v", err)
	}
	// Initial attempt plus 2 retries
	if inner.calls != 3 {
		t.Errorf("Expected 3 calls, got %d", inner.calls)
	}
}

func TestRetrySleepsForProviderBackoff(t *testing.T) {
	inner := &fakeProvider{
		name: "fake",
		errs: []error{
			&ProviderError{Provider: "fake", Err: ErrRateLimited, Retryable: true, Backoff: 7 * time.Millisecond},
			nil,
		},
		candles: []model.Candle{{Close: 100}},
	}

	rp := NewRetryingProvider(inner, 3, time.Millisecond)
	var slept []time.Duration
	rp.sleep = func(ctx context.Context, d time.Duration) error {
		slept = append(slept, d)
		return nil
	}

	if _, err := rp.GetDailyCandles(context.Background(), "AAPL", 20); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(slept) != 1 || slept[0] != 7*time.Millisecond {
		t.Errorf("Retry should sleep for the limiter's backoff, slept %v", slept)
	}
}

func TestRetryDoesNotRetryNonRetryable(t *testing.T) {
	inner := &fakeProvider{
		name: "fake",
		errs: []error{&ProviderError{Provider: "fake", Err: ErrNoData, Retryable: false}},
	}

	rp := NewRetryingProvider(inner, 3, time.Millisecond)
	rp.sleep = noSleep

	_, err := rp.GetQuote(context.Background(), "BOGUS")
	if !errors.Is(err, ErrNoData) {
		t.Errorf("Expected ErrNoData, got %v", err)
	}
	if inner.calls != 1 {
		t.Errorf("Expected 1 call, got %d", inner.calls)
	}
}

func TestRetryContextCancellation(t *testing.T) {
	rateLimited := &ProviderError{Provider: "fake", Err: ErrRateLimited, Retryable: true}
	inner := &fakeProvider{
		name: "fake",
		errs: []error{rateLimited, rateLimited},
	}

	rp := NewRetryingProvider(inner, 3, time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := rp.GetDailyCandles(ctx, "AAPL", 20)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
}

func TestFallbackTriesProvidersInOrder(t *testing.T) {
	first := &fakeProvider{
		name: "first",
		errs: []error{&ProviderError{Provider: "first", Err: ErrNoData, Retryable: false}},
	}
	second := &fakeProvider{
		name:    "second",
		candles: []model.Candle{{Close: 50}},
	}

	fp := NewFallbackProvider(first, second)

	candles, err := fp.GetDailyCandles(context.Background(), "AAPL", 20)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(candles) != 1 || candles[0].Close != 50 {
		t.Errorf("Expected second provider's candles, got %+v", candles)
	}
	if first.calls != 1 || second.calls != 1 {
		t.Errorf("Expected one call each, got %d and %d", first.calls, second.calls)
	}
}

func TestFallbackReturnsLastError(t *testing.T) {
	noData := &ProviderError{Provider: "only", Err: ErrNoData, Retryable: false}
	only := &fakeProvider{name: "only", errs: []error{noData}}

	fp := NewFallbackProvider(only)

	_, err := fp.GetQuote(context.Background(), "BOGUS")
	if !errors.Is(err, ErrNoData) {
		t.Errorf("Expected ErrNoData, got %v", err)
	}
}
