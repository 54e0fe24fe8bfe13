package symbols

import (
	"context"
	"encoding/json"
	"os"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"turtlestock/internal/provider"
)

// CacheMaxAge is how long a fetched symbol list is reused before refresh.
const CacheMaxAge = 30 * 24 * time.Hour

// Loader resolves the sweep universe: a provider-fetched exchange listing
// cached on disk for 30 days, falling back to the static universes when the
// provider cannot list symbols.
type Loader struct {
	provider  provider.Provider
	cachePath string
	universe  Universe
	logger    *zap.Logger
}

// NewLoader creates a symbol loader. cachePath may be empty to disable the
// file cache.
func NewLoader(p provider.Provider, cachePath string, universe Universe, logger *zap.Logger) *Loader {
	return &Loader{
		provider:  p,
		cachePath: cachePath,
		universe:  universe,
		logger:    logger,
	}
}

type symbolCache struct {
	FetchedAt time.Time `json:"fetched_at"`
	Symbols   []string  `json:"symbols"`
}

// Load returns the deduped, uppercased universe for the sweep
func (l *Loader) Load(ctx context.Context) []string {
	if cached, ok := l.readCache(); ok {
		return Normalize(cached)
	}

	if l.provider != nil {
		stocks, err := l.provider.GetSymbols(ctx, "US")
		if err == nil && len(stocks) > 0 {
			syms := make([]string, 0, len(stocks))
			for _, s := range stocks {
				if isValidSymbol(s.Symbol) {
					syms = append(syms, s.Symbol)
				}
			}
			if len(syms) > 0 {
				l.writeCache(syms)
				return Normalize(syms)
			}
		}
		if err != nil {
			l.logger.Warn("symbol listing unavailable, using static universe", zap.Error(err))
		}
	}

	return Normalize(GetUniverse(l.universe))
}

func (l *Loader) readCache() ([]string, bool) {
	if l.cachePath == "" {
		return nil, false
	}
	data, err := os.ReadFile(l.cachePath)
	if err != nil {
		return nil, false
	}
	var cache symbolCache
	if err := json.Unmarshal(data, &cache); err != nil {
		l.logger.Warn("symbol cache corrupt, refetching", zap.Error(err))
		return nil, false
	}
	if time.Since(cache.FetchedAt) > CacheMaxAge || len(cache.Symbols) == 0 {
		return nil, false
	}
	return cache.Symbols, true
}

func (l *Loader) writeCache(syms []string) {
	if l.cachePath == "" {
		return
	}
	data, err := json.Marshal(symbolCache{FetchedAt: time.Now().UTC(), Symbols: syms})
	if err != nil {
		return
	}
	if err := os.WriteFile(l.cachePath, data, 0o644); err != nil {
		l.logger.Warn("writing symbol cache", zap.Error(err))
	}
}

// Normalize uppercases, trims, dedupes and sorts a symbol list
func Normalize(syms []string) []string {
	seen := make(map[string]struct{}, len(syms))
	out := make([]string, 0, len(syms))
	for _, s := range syms {
		s = strings.ToUpper(strings.TrimSpace(s))
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// isValidSymbol filters out warrants, units and other non-standard tickers
func isValidSymbol(symbol string) bool {
	if len(symbol) == 0 || len(symbol) > 5 {
		return false
	}
	for _, c := range symbol {
		if !((c >= 'A' && c <= 'Z') || (c >= 'a' && c <= 'z')) {
			return false
		}
	}
	return true
}
