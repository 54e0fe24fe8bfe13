package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Analysis.Universe != "sp500" {
		t.Errorf("Default universe = %s, want sp500", cfg.Analysis.Universe)
	}
	if cfg.API.MaxRetries != 3 {
		t.Errorf("Default max_retries = %d, want 3", cfg.API.MaxRetries)
	}
}

func TestLoadFileAndEnvOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := []byte(`
api:
  finnhub:
    key: from-file
    rate_limit: 30
analysis:
  universe: test
risk:
  capital: 50000
  risk_tolerance_pct: 1.5
`)
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatal(err)
	}

	t.Setenv("FINNHUB_API_KEY", "from-env")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.API.Finnhub.Key != "from-env" {
		t.Errorf("Env should override file, got %s", cfg.API.Finnhub.Key)
	}
	if cfg.API.Finnhub.RateLimit != 30 {
		t.Errorf("rate_limit = %d, want 30", cfg.API.Finnhub.RateLimit)
	}
	if cfg.Analysis.Universe != "test" {
		t.Errorf("universe = %s, want test", cfg.Analysis.Universe)
	}
	if cfg.Risk.Capital != 50000 || cfg.Risk.RiskTolerancePct != 1.5 {
		t.Errorf("Unexpected risk config: %+v", cfg.Risk)
	}
}

func TestValidate(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Errorf("Default config should validate: %v", err)
	}

	cfg.Analysis.Universe = "bogus"
	if err := cfg.Validate(); err == nil {
		t.Error("Unknown universe should fail validation")
	}

	cfg = DefaultConfig()
	cfg.Risk.RiskTolerancePct = 150
	if err := cfg.Validate(); err == nil {
		t.Error("Out-of-range tolerance should fail validation")
	}

	cfg = DefaultConfig()
	cfg.Store.Path = ""
	if err := cfg.Validate(); err == nil {
		t.Error("Empty store path should fail validation")
	}
}
