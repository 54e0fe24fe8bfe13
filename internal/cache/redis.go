package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"turtlestock/pkg/model"
)

// RedisCache stores candle series in redis as JSON. All failures are logged
// and treated as misses so the analysis sweep keeps working without redis.
type RedisCache struct {
	client *redis.Client
	logger *zap.Logger
}

// NewRedisCache connects to redis at addr. Returns an error if the server is
// unreachable; callers fall back to the in-memory cache.
func NewRedisCache(addr, password string, db int, logger *zap.Logger) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connecting to redis at %s: %w", addr, err)
	}

	return &RedisCache{client: client, logger: logger}, nil
}

func candleKey(symbol string) string {
	return "candles:" + symbol
}

// Get returns the cached series for symbol, or a miss on any failure
func (c *RedisCache) Get(ctx context.Context, symbol string) ([]model.Candle, bool) {
	val, err := c.client.Get(ctx, candleKey(symbol)).Result()
	if err != nil {
		if err != redis.Nil {
			c.logger.Warn("redis get failed", zap.String("symbol", symbol), zap.Error(err))
		}
		return nil, false
	}

	var candles []model.Candle
	if err := json.Unmarshal([]byte(val), &candles); err != nil {
		c.logger.Warn("redis cache entry corrupt", zap.String("symbol", symbol), zap.Error(err))
		return nil, false
	}
	return candles, true
}

// Set stores a series for symbol with the given ttl
func (c *RedisCache) Set(ctx context.Context, symbol string, candles []model.Candle, ttl time.Duration) {
	data, err := json.Marshal(candles)
	if err != nil {
		c.logger.Warn("marshaling candles for cache", zap.String("symbol", symbol), zap.Error(err))
		return
	}
	if err := c.client.Set(ctx, candleKey(symbol), data, ttl).Err(); err != nil {
		c.logger.Warn("redis set failed", zap.String("symbol", symbol), zap.Error(err))
	}
}

// Close closes the redis connection
func (c *RedisCache) Close() error {
	return c.client.Close()
}
