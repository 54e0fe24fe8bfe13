package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config represents the application configuration
type Config struct {
	API      APIConfig      `yaml:"api"`
	Store    StoreConfig    `yaml:"store"`
	Cache    CacheConfig    `yaml:"cache"`
	Analysis AnalysisConfig `yaml:"analysis"`
	Risk     RiskConfig     `yaml:"risk"`
}

// APIConfig holds API provider configurations
type APIConfig struct {
	Finnhub    ProviderConfig `yaml:"finnhub"`
	MaxRetries int            `yaml:"max_retries"`
}

// ProviderConfig holds individual provider settings
type ProviderConfig struct {
	Key       string `yaml:"key"`
	RateLimit int    `yaml:"rate_limit"` // requests per minute
}

// StoreConfig holds persistence settings
type StoreConfig struct {
	Path string `yaml:"path"`
}

// CacheConfig holds the candle cache settings. An empty redis address
// selects the in-memory cache.
type CacheConfig struct {
	RedisAddr     string `yaml:"redis_addr"`
	RedisPassword string `yaml:"redis_password"`
	RedisDB       int    `yaml:"redis_db"`
}

// AnalysisConfig holds the daily sweep settings
type AnalysisConfig struct {
	Universe        string `yaml:"universe"`          // sp500, nasdaq100, test
	CronSpec        string `yaml:"cron_spec"`         // 6-field, Eastern Time
	SymbolCachePath string `yaml:"symbol_cache_path"` // 30-day symbol list cache
}

// RiskConfig holds the user's risk profile
type RiskConfig struct {
	UserID           int64   `yaml:"user_id"`
	Capital          float64 `yaml:"capital"`
	RiskTolerancePct float64 `yaml:"risk_tolerance_pct"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		API: APIConfig{
			Finnhub: ProviderConfig{
				Key:       os.Getenv("FINNHUB_API_KEY"),
				RateLimit: 60,
			},
			MaxRetries: 3,
		},
		Store: StoreConfig{
			Path: "turtlestock.db",
		},
		Cache: CacheConfig{
			RedisAddr: os.Getenv("REDIS_ADDR"),
		},
		Analysis: AnalysisConfig{
			Universe:        "sp500",
			CronSpec:        "0 30 16 * * 1-5", // 16:30 ET on weekdays
			SymbolCachePath: "symbols.json",
		},
		Risk: RiskConfig{
			UserID:           1,
			Capital:          10000,
			RiskTolerancePct: 2,
		},
	}
}

// Load loads configuration from a YAML file, falling back to defaults when
// the file does not exist. Environment variables win over file values.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if key := os.Getenv("FINNHUB_API_KEY"); key != "" {
		cfg.API.Finnhub.Key = key
	}
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		cfg.Cache.RedisAddr = addr
	}

	return cfg, nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Store.Path == "" {
		return fmt.Errorf("store path is required")
	}
	if c.API.MaxRetries < 0 {
		return fmt.Errorf("max_retries must not be negative")
	}
	if c.Risk.Capital < 0 || c.Risk.RiskTolerancePct < 0 || c.Risk.RiskTolerancePct > 100 {
		return fmt.Errorf("risk profile out of range")
	}
	switch c.Analysis.Universe {
	case "sp500", "nasdaq100", "test":
	default:
		return fmt.Errorf("unknown universe %q", c.Analysis.Universe)
	}
	return nil
}
