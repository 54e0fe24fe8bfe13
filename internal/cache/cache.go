package cache

import (
	"context"
	"sync"
	"time"

	"turtlestock/pkg/model"
)

// CandleCache stores fetched daily candle series keyed by symbol. A miss is
// (nil, false), never an error; cache failures degrade to provider calls.
type CandleCache interface {
	Get(ctx context.Context, symbol string) ([]model.Candle, bool)
	Set(ctx context.Context, symbol string, candles []model.Candle, ttl time.Duration)
}

type memoryEntry struct {
	candles   []model.Candle
	expiresAt time.Time
}

// MemoryCache is the in-process fallback used when redis is not configured.
type MemoryCache struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
}

// NewMemoryCache creates an empty in-memory candle cache
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{entries: make(map[string]memoryEntry)}
}

// Get returns the cached series for symbol if present and not expired
func (c *MemoryCache) Get(ctx context.Context, symbol string) ([]model.Candle, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[symbol]
	if !ok {
		return nil, false
	}
	if !entry.expiresAt.IsZero() && time.Now().After(entry.expiresAt) {
		delete(c.entries, symbol)
		return nil, false
	}
	return entry.candles, true
}

// Set stores a series for symbol. A zero ttl means no expiry.
func (c *MemoryCache) Set(ctx context.Context, symbol string, candles []model.Candle, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry := memoryEntry{candles: candles}
	if ttl > 0 {
		entry.expiresAt = time.Now().Add(ttl)
	}
	c.entries[symbol] = entry
}
