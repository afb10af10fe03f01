package service

import (
	"context"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"

	apperrors "github.com/lp-portfolio/internal/errors"
	"github.com/lp-portfolio/internal/logging"
	"github.com/lp-portfolio/internal/metrics"
)

// DefaultPriceCacheTTL is how long a fetched price is served without refetching
const DefaultPriceCacheTTL = 30 * time.Second

// PriceFeed is an upstream USD price source keyed by feed-specific coin ids
type PriceFeed interface {
	CoinID(symbol string) (string, bool)
	FetchPrices(ctx context.Context, ids []string) (map[string]float64, error)
}

// CustomPriceStore persists user-set price overrides
type CustomPriceStore interface {
	Get(ctx context.Context, symbol string) (float64, bool, error)
	Set(ctx context.Context, symbol string, price float64) error
	Delete(ctx context.Context, symbol string) error
	All(ctx context.Context) (map[string]float64, error)
}

// fallbackPrices are used when no custom, cached or fetched price exists
var fallbackPrices = map[string]float64{
	"ETH":    3500,
	"WETH":   3500,
	"MATIC":  0.85,
	"WMATIC": 0.85,
	"BNB":    600,
	"WBNB":   600,
	"USDC":   1,
	"USDT":   1,
	"DAI":    1,
	"BUSD":   1,
	"USDD":   1,
	"FRAX":   1,
	"WBTC":   95000,
	"BTC":    95000,
	"LINK":   22,
	"UNI":    12,
	"AAVE":   285,
	"CRV":    0.95,
	"BAL":    5,
	"SUSHI":  1.8,
	"COMP":   75,
	"MKR":    2800,
}

// FallbackPrice returns the static price for a symbol, 0 when unknown
func FallbackPrice(symbol string) float64 {
	return fallbackPrices[strings.ToUpper(symbol)]
}

// CacheStats describes the price cache
type CacheStats struct {
	Cached     int        `json:"cached"`
	Custom     int        `json:"custom"`
	LastUpdate *time.Time `json:"lastUpdate,omitempty"`
}

// PriceService resolves USD prices. Lookup order is custom override, fresh
// cache, feed, last known value, fallback table. It never returns an error.
type PriceService struct {
	feed      PriceFeed
	custom    CustomPriceStore
	fresh     *cache.Cache
	lastKnown *cache.Cache
	metrics   *metrics.Metrics
	logger    *logging.Logger

	mu         sync.RWMutex
	lastUpdate time.Time
}

// NewPriceService creates a price service. feed and custom may be nil.
func NewPriceService(feed PriceFeed, custom CustomPriceStore, ttl time.Duration, m *metrics.Metrics, logger *logging.Logger) *PriceService {
	if ttl <= 0 {
		ttl = DefaultPriceCacheTTL
	}
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	return &PriceService{
		feed:      feed,
		custom:    custom,
		fresh:     cache.New(ttl, 2*ttl),
		lastKnown: cache.New(cache.NoExpiration, 0),
		metrics:   m,
		logger:    logger,
	}
}

func normalizeSymbol(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}

// customPrice reads an override; store failures are logged and ignored
func (s *PriceService) customPrice(ctx context.Context, symbol string) (float64, bool) {
	if s.custom == nil {
		return 0, false
	}
	p, ok, err := s.custom.Get(ctx, symbol)
	if err != nil {
		s.logger.WithField("symbol", symbol).WithError(err).Warn("Custom price lookup failed")
		return 0, false
	}
	return p, ok
}

func (s *PriceService) cached(symbol string) (float64, bool) {
	if v, ok := s.fresh.Get(symbol); ok {
		return v.(float64), true
	}
	return 0, false
}

func (s *PriceService) store(symbol string, price float64) {
	s.fresh.Set(symbol, price, cache.DefaultExpiration)
	s.lastKnown.Set(symbol, price, cache.NoExpiration)
	s.mu.Lock()
	s.lastUpdate = time.Now()
	s.mu.Unlock()
}

// stale returns the last fetched value, else the fallback
func (s *PriceService) stale(symbol string) float64 {
	if v, ok := s.lastKnown.Get(symbol); ok {
		s.metrics.PriceLookup("stale")
		return v.(float64)
	}
	s.metrics.PriceLookup("fallback")
	return fallbackPrices[symbol]
}

// GetPrice returns the USD price of symbol
func (s *PriceService) GetPrice(ctx context.Context, symbol string) (float64, error) {
	prices := s.GetPrices(ctx, []string{symbol})
	return prices[normalizeSymbol(symbol)], nil
}

// GetPrices resolves several symbols with at most one feed call. Keys of the
// result are upper-cased symbols.
func (s *PriceService) GetPrices(ctx context.Context, symbols []string) map[string]float64 {
	out := make(map[string]float64, len(symbols))
	idToSymbols := make(map[string][]string)
	var ids []string
	var unmapped []string

	for _, raw := range symbols {
		symbol := normalizeSymbol(raw)
		if symbol == "" {
			continue
		}
		if _, done := out[symbol]; done {
			continue
		}
		if p, ok := s.customPrice(ctx, symbol); ok {
			s.metrics.PriceLookup("custom")
			out[symbol] = p
			continue
		}
		if p, ok := s.cached(symbol); ok {
			s.metrics.PriceLookup("cache")
			out[symbol] = p
			continue
		}
		out[symbol] = 0
		if s.feed == nil {
			unmapped = append(unmapped, symbol)
			continue
		}
		id, ok := s.feed.CoinID(symbol)
		if !ok {
			unmapped = append(unmapped, symbol)
			continue
		}
		if _, seen := idToSymbols[id]; !seen {
			ids = append(ids, id)
		}
		idToSymbols[id] = append(idToSymbols[id], symbol)
	}

	for _, symbol := range unmapped {
		s.metrics.PriceLookup("fallback")
		out[symbol] = fallbackPrices[symbol]
	}

	if len(ids) == 0 {
		return out
	}

	fetched, err := s.feed.FetchPrices(ctx, ids)
	if err != nil {
		s.logger.WithField("ids", ids).WithError(err).Warn("Price feed failed, using last known prices")
		for _, group := range idToSymbols {
			for _, symbol := range group {
				out[symbol] = s.stale(symbol)
			}
		}
		return out
	}

	for id, group := range idToSymbols {
		price, ok := fetched[id]
		for _, symbol := range group {
			if !ok || price <= 0 || math.IsNaN(price) || math.IsInf(price, 0) {
				s.metrics.PriceLookup("fallback")
				out[symbol] = fallbackPrices[symbol]
				continue
			}
			s.metrics.PriceLookup("feed")
			s.store(symbol, price)
			out[symbol] = price
		}
	}
	return out
}

// SetCustomPrice stores an override; price must be finite and non-negative
func (s *PriceService) SetCustomPrice(ctx context.Context, symbol string, price float64) error {
	symbol = normalizeSymbol(symbol)
	if symbol == "" {
		return apperrors.NewInvalidInputError("symbol", "symbol is required")
	}
	if math.IsNaN(price) || math.IsInf(price, 0) || price < 0 {
		return apperrors.NewInvalidInputError("price", "price must be a finite non-negative number")
	}
	if s.custom == nil {
		return apperrors.NewInternalError("custom price store not configured", nil)
	}
	if err := s.custom.Set(ctx, symbol, price); err != nil {
		return apperrors.NewCacheError("set custom price", err)
	}
	s.logger.WithFields(map[string]interface{}{
		"symbol": symbol,
		"price":  price,
	}).Info("Custom price set")
	return nil
}

// RemoveCustomPrice deletes an override
func (s *PriceService) RemoveCustomPrice(ctx context.Context, symbol string) error {
	symbol = normalizeSymbol(symbol)
	if symbol == "" {
		return apperrors.NewInvalidInputError("symbol", "symbol is required")
	}
	if s.custom == nil {
		return nil
	}
	if err := s.custom.Delete(ctx, symbol); err != nil {
		return apperrors.NewCacheError("delete custom price", err)
	}
	return nil
}

// CustomPrices returns all overrides
func (s *PriceService) CustomPrices(ctx context.Context) (map[string]float64, error) {
	if s.custom == nil {
		return map[string]float64{}, nil
	}
	all, err := s.custom.All(ctx)
	if err != nil {
		return nil, apperrors.NewCacheError("list custom prices", err)
	}
	return all, nil
}

// ClearCache drops fetched prices so the next lookup refetches.
// The last known values are kept for feed outages.
func (s *PriceService) ClearCache() {
	s.fresh.Flush()
}

// CacheStats reports cache occupancy
func (s *PriceService) CacheStats(ctx context.Context) CacheStats {
	stats := CacheStats{Cached: s.fresh.ItemCount()}
	if custom, err := s.CustomPrices(ctx); err == nil {
		stats.Custom = len(custom)
	}
	s.mu.RLock()
	if !s.lastUpdate.IsZero() {
		t := s.lastUpdate
		stats.LastUpdate = &t
	}
	s.mu.RUnlock()
	return stats
}

// Refresh invalidates the given symbols and fetches them again
func (s *PriceService) Refresh(ctx context.Context, symbols []string) map[string]float64 {
	for _, symbol := range symbols {
		s.fresh.Delete(normalizeSymbol(symbol))
	}
	return s.GetPrices(ctx, symbols)
}
