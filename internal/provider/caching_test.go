package provider

import (
	"context"
	"testing"
	"time"

	"turtlestock/internal/cache"
	"turtlestock/pkg/model"
)

func TestCachingProviderFetchesOnce(t *testing.T) {
	now := time.Now().UTC()
	inner := &fakeProvider{
		name: "fake",
		candles: []model.Candle{
			{Time: now.AddDate(0, 0, -2), Close: 99},
			{Time: now.AddDate(0, 0, -1), Close: 100},
		},
	}

	cp := NewCachingProvider(inner, cache.NewMemoryCache(), 365, time.Hour)

	for i := 0; i < 3; i++ {
		candles, err := cp.GetDailyCandles(context.Background(), "AAPL", 30)
		if err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}
		if len(candles) != 2 {
			t.Errorf("Expected 2 candles, got %d", len(candles))
		}
	}

	if inner.calls != 1 {
		t.Errorf("Expected 1 provider call, got %d", inner.calls)
	}
}

func TestCachingProviderTrimsToRequestedSpan(t *testing.T) {
	now := time.Now().UTC()
	inner := &fakeProvider{
		name: "fake",
		candles: []model.Candle{
			{Time: now.AddDate(0, 0, -40), Close: 90},
			{Time: now.AddDate(0, 0, -5), Close: 95},
			{Time: now.AddDate(0, 0, -1), Close: 100},
		},
	}

	cp := NewCachingProvider(inner, cache.NewMemoryCache(), 365, time.Hour)

	candles, err := cp.GetDailyCandles(context.Background(), "AAPL", 10)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(candles) != 2 {
		t.Errorf("Expected 2 candles within 10 days, got %d", len(candles))
	}
}

func TestCachingProviderErrorNotCached(t *testing.T) {
	inner := &fakeProvider{
		name: "fake",
		errs: []error{
			&ProviderError{Provider: "fake", Err: ErrNoData, Retryable: false},
			nil,
		},
		candles: []model.Candle{{Time: time.Now().UTC(), Close: 100}},
	}

	cp := NewCachingProvider(inner, cache.NewMemoryCache(), 365, time.Hour)

	if _, err := cp.GetDailyCandles(context.Background(), "AAPL", 30); err == nil {
		t.Fatal("Expected error from first call")
	}

	candles, err := cp.GetDailyCandles(context.Background(), "AAPL", 30)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(candles) != 1 {
		t.Errorf("Expected 1 candle after retry, got %d", len(candles))
	}
}

func TestMemoryCacheExpiry(t *testing.T) {
	c := cache.NewMemoryCache()
	ctx := context.Background()

	c.Set(ctx, "AAPL", []model.Candle{{Close: 100}}, -time.Second)
	if _, ok := c.Get(ctx, "AAPL"); ok {
		t.Error("Expired entry should be a miss")
	}

	c.Set(ctx, "MSFT", []model.Candle{{Close: 200}}, time.Hour)
	if _, ok := c.Get(ctx, "MSFT"); !ok {
		t.Error("Fresh entry should be a hit")
	}
}
