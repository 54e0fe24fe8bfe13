package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"turtlestock/internal/ratelimit"
	"turtlestock/pkg/model"
)

const finnhubBaseURL = "https://finnhub.io/api/v1"

// FinnhubProvider implements the Provider interface for the Finnhub API.
// Authenticated, low per-minute quota; preferred for live quotes.
type FinnhubProvider struct {
	apiKey    string
	client    *http.Client
	limiter   *ratelimit.Limiter
	rateLimit int
}

// NewFinnhubProvider creates a new Finnhub provider
func NewFinnhubProvider(apiKey string, rateLimitPerMin int) *FinnhubProvider {
	return &FinnhubProvider{
		apiKey:    apiKey,
		client:    &http.Client{Timeout: 30 * time.Second},
		limiter:   ratelimit.NewLimiter("finnhub", rateLimitPerMin),
		rateLimit: rateLimitPerMin,
	}
}

// Name returns the provider name
func (p *FinnhubProvider) Name() string {
	return "finnhub"
}

// IsAvailable checks if the provider has an API key
func (p *FinnhubProvider) IsAvailable() bool {
	return p.apiKey != ""
}

// RateLimit returns the rate limit per minute
func (p *FinnhubProvider) RateLimit() int {
	return p.rateLimit
}

// finnhubCandle represents the Finnhub candle response
type finnhubCandle struct {
	C []float64 `json:"c"` // Close prices
	H []float64 `json:"h"` // High prices
	L []float64 `json:"l"` // Low prices
	O []float64 `json:"o"` // Open prices
	S string    `json:"s"` // Status
	T []int64   `json:"t"` // Timestamps
	V []int64   `json:"v"` // Volumes
}

// finnhubQuote represents the Finnhub quote response
type finnhubQuote struct {
	C  float64 `json:"c"`  // Current price
	PC float64 `json:"pc"` // Previous close
	D  float64 `json:"d"`  // Change
	DP float64 `json:"dp"` // Percent change
}

// finnhubSymbol represents a stock symbol from Finnhub
type finnhubSymbol struct {
	Symbol      string `json:"symbol"`
	Description string `json:"description"`
	Type        string `json:"type"`
}

// GetDailyCandles fetches daily OHLCV data for the past `days` calendar days
func (p *FinnhubProvider) GetDailyCandles(ctx context.Context, symbol string, days int) ([]model.Candle, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	from := now.AddDate(0, 0, -days)

	url := fmt.Sprintf("%s/stock/candle?symbol=%s&resolution=D&from=%d&to=%d&token=%s",
		finnhubBaseURL, symbol, from.Unix(), now.Unix(), p.apiKey)

	var data finnhubCandle
	if err := p.getJSON(ctx, url, &data); err != nil {
		return nil, err
	}

	if data.S != "ok" || len(data.T) == 0 {
		return nil, &ProviderError{Provider: p.Name(), Err: ErrNoData, Retryable: false}
	}

	candles, err := candlesFromColumns(data)
	if err != nil {
		return nil, &ProviderError{Provider: p.Name(), Err: err, Retryable: false}
	}
	return candles, nil
}

// candlesFromColumns converts Finnhub's parallel arrays into candles. Every
// column must cover the timestamp column; a truncated response is reported
// instead of indexed.
func candlesFromColumns(data finnhubCandle) ([]model.Candle, error) {
	n := len(data.T)
	if len(data.O) < n || len(data.H) < n || len(data.L) < n || len(data.C) < n || len(data.V) < n {
		return nil, fmt.Errorf("%w: truncated candle response", ErrNoData)
	}

	candles := make([]model.Candle, n)
	for i := 0; i < n; i++ {
		candles[i] = model.Candle{
			Time:   time.Unix(data.T[i], 0).UTC(),
			Open:   data.O[i],
			High:   data.H[i],
			Low:    data.L[i],
			Close:  data.C[i],
			Volume: data.V[i],
		}
	}
	return candles, nil
}

// GetQuote fetches the latest quote for a symbol
func (p *FinnhubProvider) GetQuote(ctx context.Context, symbol string) (*model.Quote, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	url := fmt.Sprintf("%s/quote?symbol=%s&token=%s", finnhubBaseURL, symbol, p.apiKey)

	var data finnhubQuote
	if err := p.getJSON(ctx, url, &data); err != nil {
		return nil, err
	}

	// Finnhub returns zeroed fields for unknown symbols
	if data.C == 0 && data.PC == 0 {
		return nil, &ProviderError{Provider: p.Name(), Err: ErrNoData, Retryable: false}
	}

	return &model.Quote{
		Symbol:        strings.ToUpper(symbol),
		Price:         data.C,
		Change:        data.D,
		ChangePercent: data.DP,
		PrevClose:     data.PC,
		Timestamp:     time.Now().UTC(),
	}, nil
}

// GetSymbols returns the stock symbols for an exchange ("US" for NYSE+NASDAQ)
func (p *FinnhubProvider) GetSymbols(ctx context.Context, exchange string) ([]model.Stock, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	url := fmt.Sprintf("%s/stock/symbol?exchange=%s&token=%s", finnhubBaseURL, exchange, p.apiKey)

	var data []finnhubSymbol
	if err := p.getJSON(ctx, url, &data); err != nil {
		return nil, err
	}

	stocks := make([]model.Stock, 0, len(data))
	for _, s := range data {
		if s.Type != "Common Stock" {
			continue
		}
		stocks = append(stocks, model.Stock{
			Symbol:   s.Symbol,
			Name:     s.Description,
			Exchange: exchange,
		})
	}

	if len(stocks) == 0 {
		return nil, &ProviderError{Provider: p.Name(), Err: ErrNoData, Retryable: false}
	}

	return stocks, nil
}

func (p *FinnhubProvider) getJSON(ctx context.Context, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return &ProviderError{Provider: p.Name(), Err: err, Retryable: true}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		p.limiter.SignalRateLimited()
		return &ProviderError{Provider: p.Name(), Err: ErrRateLimited, Retryable: true, Backoff: p.limiter.Backoff()}
	}

	if resp.StatusCode != http.StatusOK {
		return &ProviderError{Provider: p.Name(), Err: fmt.Errorf("status %d", resp.StatusCode), Retryable: false}
	}

	p.limiter.ResetBackoff()

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}
