package adapter

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/lp-portfolio/internal/circuitbreaker"
	"github.com/lp-portfolio/internal/config"
	apperrors "github.com/lp-portfolio/internal/errors"
	"github.com/lp-portfolio/internal/logging"
)

const coinGeckoProvider = "coingecko"

// coinGeckoIDs maps token symbols to CoinGecko coin ids
var coinGeckoIDs = map[string]string{
	"ETH":    "ethereum",
	"WETH":   "ethereum",
	"MATIC":  "matic-network",
	"WMATIC": "matic-network",
	"BNB":    "binancecoin",
	"WBNB":   "binancecoin",
	"USDC":   "usd-coin",
	"USDT":   "tether",
	"DAI":    "dai",
	"WBTC":   "wrapped-bitcoin",
	"LINK":   "chainlink",
	"UNI":    "uniswap",
	"AAVE":   "aave",
	"CRV":    "curve-dao-token",
	"BAL":    "balancer",
	"SUSHI":  "sushi",
}

// CoinGeckoClient fetches USD prices from the CoinGecko simple price API
type CoinGeckoClient struct {
	baseURL string
	client  *http.Client
	limiter *rate.Limiter
	breaker *circuitbreaker.CircuitBreaker
	logger  *logging.Logger
}

// NewCoinGeckoClient creates a client. A nil breaker gets a default one.
func NewCoinGeckoClient(cfg config.PriceConfig, breaker *circuitbreaker.CircuitBreaker, logger *logging.Logger) *CoinGeckoClient {
	perMinute := cfg.RatePerMinute
	if perMinute <= 0 {
		perMinute = 50
	}
	baseURL := strings.TrimRight(cfg.CoinGeckoURL, "/")
	if baseURL == "" {
		baseURL = "https://api.coingecko.com/api/v3"
	}
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	if breaker == nil {
		bc := circuitbreaker.DefaultConfig(coinGeckoProvider)
		bc.Logger = logger
		breaker = circuitbreaker.NewCircuitBreaker(bc)
	}
	return &CoinGeckoClient{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 10 * time.Second},
		limiter: rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), 1),
		breaker: breaker,
		logger:  logger.WithField("component", coinGeckoProvider),
	}
}

// CoinID returns the CoinGecko id of a symbol
func (c *CoinGeckoClient) CoinID(symbol string) (string, bool) {
	id, ok := coinGeckoIDs[strings.ToUpper(symbol)]
	return id, ok
}

// FetchPrices returns USD prices keyed by coin id. Ids missing from the
// answer are absent from the map.
func (c *CoinGeckoClient) FetchPrices(ctx context.Context, ids []string) (map[string]float64, error) {
	if len(ids) == 0 {
		return map[string]float64{}, nil
	}
	unique := make(map[string]bool, len(ids))
	var list []string
	for _, id := range ids {
		if id != "" && !unique[id] {
			unique[id] = true
			list = append(list, id)
		}
	}
	sort.Strings(list)

	var prices map[string]float64
	err := c.breaker.Execute(ctx, func() error {
		var err error
		prices, err = c.fetch(ctx, list)
		return err
	})
	if err != nil {
		return nil, err
	}
	return prices, nil
}

func (c *CoinGeckoClient) fetch(ctx context.Context, ids []string) (map[string]float64, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	query := url.Values{
		"ids":           {strings.Join(ids, ",")},
		"vs_currencies": {"usd"},
	}
	endpoint := c.baseURL + "/simple/price?" + query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, apperrors.NewProviderError(coinGeckoProvider, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apperrors.NewProviderError(coinGeckoProvider, err)
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, apperrors.NewProviderRateLimitError(coinGeckoProvider)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, apperrors.NewProviderError(coinGeckoProvider, fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(body)))
	}

	var raw map[string]map[string]float64
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, apperrors.NewProviderError(coinGeckoProvider, fmt.Errorf("failed to parse response: %w", err))
	}

	prices := make(map[string]float64, len(raw))
	for id, quote := range raw {
		if usd, ok := quote["usd"]; ok {
			prices[id] = usd
		}
	}

	c.logger.WithFields(map[string]interface{}{
		"requested": len(ids),
		"received":  len(prices),
	}).Debug("Fetched prices")
	return prices, nil
}
