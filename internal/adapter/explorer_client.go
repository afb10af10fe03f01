package adapter

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/patrickmn/go-cache"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/lp-portfolio/internal/config"
	"github.com/lp-portfolio/internal/logging"
	"github.com/lp-portfolio/internal/metrics"
	"github.com/lp-portfolio/internal/models"
	"github.com/lp-portfolio/internal/registry"
	"github.com/lp-portfolio/internal/retry"
	"github.com/lp-portfolio/internal/types"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// explorerResponse is the envelope every Etherscan-style endpoint returns
type explorerResponse struct {
	Status  string              `json:"status"`
	Message string              `json:"message"`
	Result  jsoniter.RawMessage `json:"result"`
}

// errRateLimited marks a response that should be retried after backoff
type errRateLimited struct {
	chain string
}

func (e *errRateLimited) Error() string {
	return fmt.Sprintf("explorer rate limited on %s", e.chain)
}

// ExplorerClient reads wallet history from Etherscan-compatible explorer APIs.
// Requests share one rate limiter across chains, responses are cached by
// query for the configured TTL.
type ExplorerClient struct {
	cfg         config.ExplorerConfig
	client      *http.Client
	limiter     *rate.Limiter
	cache       *cache.Cache
	retryConfig *retry.RetryConfig
	metrics     *metrics.Metrics
	logger      *logging.Logger
}

// NewExplorerClient creates an explorer client
func NewExplorerClient(cfg config.ExplorerConfig, m *metrics.Metrics, logger *logging.Logger) *ExplorerClient {
	if cfg.RateLimit <= 0 {
		cfg.RateLimit = 5
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = 100
	}
	if cfg.MaxRecords <= 0 {
		cfg.MaxRecords = 10000
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = time.Minute
	}
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}

	return &ExplorerClient{
		cfg:         cfg,
		client:      &http.Client{Timeout: cfg.Timeout},
		limiter:     rate.NewLimiter(rate.Limit(cfg.RateLimit), 1),
		cache:       cache.New(cfg.CacheTTL, 2*cfg.CacheTTL),
		retryConfig: retry.ExplorerRetryConfig(),
		metrics:     m,
		logger:      logger.WithField("component", "explorer"),
	}
}

// ClearCache drops every cached response
func (c *ExplorerClient) ClearCache() {
	c.cache.Flush()
}

// CacheSize returns the number of cached responses
func (c *ExplorerClient) CacheSize() int {
	return c.cache.ItemCount()
}

// isEmptyMessage reports explorer messages that mean "no data" rather than failure
func isEmptyMessage(message string, result []byte) bool {
	m := strings.ToLower(message)
	if strings.Contains(m, "no transactions found") || strings.Contains(m, "no records found") {
		return true
	}
	return strings.Contains(strings.ToLower(string(result)), "no record")
}

func isRateLimitMessage(result []byte) bool {
	r := strings.ToLower(string(result))
	return strings.Contains(r, "rate limit") || strings.Contains(r, "max calls per sec")
}

// call performs one explorer query. It returns a nil result for an empty answer.
func (c *ExplorerClient) call(ctx context.Context, chain registry.ChainConfig, params url.Values) (jsoniter.RawMessage, error) {
	base, apiKey := c.cfg.Endpoint(chain)
	if base == "" {
		return nil, fmt.Errorf("no explorer API for chain %s", chain.Key)
	}
	action := params.Get("action")
	cacheKey := string(chain.Key) + "|" + params.Encode()
	if v, ok := c.cache.Get(cacheKey); ok {
		c.metrics.ExplorerRequest(string(chain.Key), action, "cached")
		return v.(jsoniter.RawMessage), nil
	}

	query := url.Values{}
	for k, v := range params {
		query[k] = v
	}
	if apiKey != "" {
		query.Set("apikey", apiKey)
	}
	endpoint := base + "?" + query.Encode()

	var result jsoniter.RawMessage
	err := retry.WithRetry(ctx, c.retryConfig, func(ctx context.Context, attempt int) error {
		if err := c.limiter.Wait(ctx); err != nil {
			return retry.Permanent(err)
		}
		body, err := c.doRequest(ctx, chain, endpoint)
		if err != nil {
			return err
		}

		var resp explorerResponse
		if err := json.Unmarshal(body, &resp); err != nil {
			return retry.Permanent(fmt.Errorf("failed to parse response: %w", err))
		}
		if resp.Status == "1" {
			result = resp.Result
			return nil
		}
		if isEmptyMessage(resp.Message, resp.Result) {
			result = nil
			return nil
		}
		if isRateLimitMessage(resp.Result) {
			return &errRateLimited{chain: string(chain.Key)}
		}
		return retry.Permanent(fmt.Errorf("explorer API error: %s", resp.Message))
	})
	if err != nil {
		c.metrics.ExplorerRequest(string(chain.Key), action, "error")
		return nil, err
	}

	outcome := "ok"
	if result == nil {
		outcome = "empty"
	}
	c.metrics.ExplorerRequest(string(chain.Key), action, outcome)
	c.cache.Set(cacheKey, result, cache.DefaultExpiration)
	return result, nil
}

// doRequest issues the GET; 429 and transport failures are retryable
func (c *ExplorerClient) doRequest(ctx context.Context, chain registry.ChainConfig, endpoint string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, retry.Permanent(fmt.Errorf("failed to create request: %w", err))
	}

	resp, err := c.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, retry.Permanent(ctx.Err())
		}
		return nil, fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, &errRateLimited{chain: string(chain.Key)}
	}
	if resp.StatusCode >= 500 {
		return nil, fmt.Errorf("HTTP error: %d", resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, retry.Permanent(fmt.Errorf("HTTP error: %d - %s", resp.StatusCode, string(body)))
	}
	return body, nil
}

// decodeList unmarshals an array result; a string result means no data
func decodeList(result jsoniter.RawMessage, out interface{}) error {
	if len(result) == 0 || result[0] == '"' {
		return nil
	}
	if err := json.Unmarshal(result, out); err != nil {
		return fmt.Errorf("failed to parse result: %w", err)
	}
	return nil
}

func accountParams(action, address string) url.Values {
	return url.Values{
		"module":  {"account"},
		"action":  {action},
		"address": {strings.ToLower(address)},
		"sort":    {"desc"},
	}
}

// FetchTransactionsPage fetches one page of normal transactions
func (c *ExplorerClient) FetchTransactionsPage(ctx context.Context, chain registry.ChainConfig, address string, page, offset int) ([]types.RawTransaction, error) {
	params := accountParams("txlist", address)
	params.Set("page", strconv.Itoa(page))
	params.Set("offset", strconv.Itoa(offset))
	params.Set("startblock", "0")
	params.Set("endblock", "99999999")

	result, err := c.call(ctx, chain, params)
	if err != nil {
		return nil, err
	}
	var txs []types.RawTransaction
	if err := decodeList(result, &txs); err != nil {
		return nil, err
	}
	return txs, nil
}

// FetchTransactions pages through normal transactions up to MaxRecords
func (c *ExplorerClient) FetchTransactions(ctx context.Context, chain registry.ChainConfig, address string) ([]types.RawTransaction, error) {
	var all []types.RawTransaction
	for page := 1; len(all) < c.cfg.MaxRecords; page++ {
		batch, err := c.FetchTransactionsPage(ctx, chain, address, page, c.cfg.PageSize)
		if err != nil {
			if len(all) > 0 {
				c.logger.WithFields(map[string]interface{}{
					"chain": chain.Key,
					"page":  page,
				}).WithError(err).Warn("Stopping pagination early")
				break
			}
			return nil, err
		}
		all = append(all, batch...)
		if len(batch) < c.cfg.PageSize {
			break
		}
	}
	if len(all) > c.cfg.MaxRecords {
		all = all[:c.cfg.MaxRecords]
	}
	return all, nil
}

// FetchInternalTransactions fetches internal (trace) transactions
func (c *ExplorerClient) FetchInternalTransactions(ctx context.Context, chain registry.ChainConfig, address string) ([]types.RawTransaction, error) {
	result, err := c.call(ctx, chain, accountParams("txlistinternal", address))
	if err != nil {
		return nil, err
	}
	var txs []types.RawTransaction
	if err := decodeList(result, &txs); err != nil {
		return nil, err
	}
	return txs, nil
}

// FetchTokenTransfers fetches ERC20 transfers, optionally for one contract
func (c *ExplorerClient) FetchTokenTransfers(ctx context.Context, chain registry.ChainConfig, address, contract string) ([]types.RawTokenTransfer, error) {
	params := accountParams("tokentx", address)
	if contract != "" {
		params.Set("contractaddress", strings.ToLower(contract))
	}
	result, err := c.call(ctx, chain, params)
	if err != nil {
		return nil, err
	}
	var transfers []types.RawTokenTransfer
	if err := decodeList(result, &transfers); err != nil {
		return nil, err
	}
	return transfers, nil
}

// FetchNFTTransfers fetches ERC721 transfers
func (c *ExplorerClient) FetchNFTTransfers(ctx context.Context, chain registry.ChainConfig, address string) ([]types.RawTokenTransfer, error) {
	result, err := c.call(ctx, chain, accountParams("tokennfttx", address))
	if err != nil {
		return nil, err
	}
	var transfers []types.RawTokenTransfer
	if err := decodeList(result, &transfers); err != nil {
		return nil, err
	}
	return transfers, nil
}

// decodeString reads a scalar string result
func decodeString(result jsoniter.RawMessage) (string, error) {
	if len(result) == 0 {
		return "", nil
	}
	var s string
	if err := json.Unmarshal(result, &s); err != nil {
		return "", fmt.Errorf("failed to parse result: %w", err)
	}
	return s, nil
}

// FetchNativeBalance returns the wallet's native balance in wei
func (c *ExplorerClient) FetchNativeBalance(ctx context.Context, chain registry.ChainConfig, address string) (string, error) {
	params := url.Values{
		"module":  {"account"},
		"action":  {"balance"},
		"address": {strings.ToLower(address)},
		"tag":     {"latest"},
	}
	result, err := c.call(ctx, chain, params)
	if err != nil {
		return "", err
	}
	return decodeString(result)
}

// FetchTokenBalance returns the wallet's raw balance of one ERC20
func (c *ExplorerClient) FetchTokenBalance(ctx context.Context, chain registry.ChainConfig, address, contract string) (string, error) {
	params := url.Values{
		"module":          {"account"},
		"action":          {"tokenbalance"},
		"address":         {strings.ToLower(address)},
		"contractaddress": {strings.ToLower(contract)},
		"tag":             {"latest"},
	}
	result, err := c.call(ctx, chain, params)
	if err != nil {
		return "", err
	}
	return decodeString(result)
}

// FetchLogs queries event logs of a contract, optionally filtered by topic0
func (c *ExplorerClient) FetchLogs(ctx context.Context, chain registry.ChainConfig, contract string, fromBlock, toBlock uint64, topic0 string) ([]types.RawLog, error) {
	params := url.Values{
		"module":    {"logs"},
		"action":    {"getLogs"},
		"address":   {strings.ToLower(contract)},
		"fromBlock": {strconv.FormatUint(fromBlock, 10)},
	}
	if toBlock == 0 {
		params.Set("toBlock", "latest")
	} else {
		params.Set("toBlock", strconv.FormatUint(toBlock, 10))
	}
	if topic0 != "" {
		params.Set("topic0", topic0)
	}
	result, err := c.call(ctx, chain, params)
	if err != nil {
		return nil, err
	}
	var logs []types.RawLog
	if err := decodeList(result, &logs); err != nil {
		return nil, err
	}
	return logs, nil
}

// FetchContractABI returns the verified ABI JSON of a contract
func (c *ExplorerClient) FetchContractABI(ctx context.Context, chain registry.ChainConfig, contract string) (string, error) {
	params := url.Values{
		"module":  {"contract"},
		"action":  {"getabi"},
		"address": {strings.ToLower(contract)},
	}
	result, err := c.call(ctx, chain, params)
	if err != nil {
		return "", err
	}
	return decodeString(result)
}

// FetchChainData runs the five wallet queries of one chain concurrently.
// A failed query is logged and leaves its part empty.
func (c *ExplorerClient) FetchChainData(ctx context.Context, chain registry.ChainConfig, address string) models.ChainData {
	data := models.ChainData{
		Chain:                chain,
		Transactions:         []types.RawTransaction{},
		InternalTransactions: []types.RawTransaction{},
		TokenTransfers:       []types.RawTokenTransfer{},
		NFTTransfers:         []types.RawTokenTransfer{},
	}
	log := c.logger.WithFields(map[string]interface{}{
		"chain":   chain.Key,
		"address": address,
	})
	warn := func(what string, err error) {
		log.WithField("query", what).WithError(err).Warn("Explorer query failed, continuing with empty data")
	}

	var g errgroup.Group
	g.Go(func() error {
		txs, err := c.FetchTransactions(ctx, chain, address)
		if err != nil {
			warn("txlist", err)
			return nil
		}
		data.Transactions = txs
		return nil
	})
	g.Go(func() error {
		txs, err := c.FetchInternalTransactions(ctx, chain, address)
		if err != nil {
			warn("txlistinternal", err)
			return nil
		}
		data.InternalTransactions = txs
		return nil
	})
	g.Go(func() error {
		transfers, err := c.FetchTokenTransfers(ctx, chain, address, "")
		if err != nil {
			warn("tokentx", err)
			return nil
		}
		data.TokenTransfers = transfers
		return nil
	})
	g.Go(func() error {
		transfers, err := c.FetchNFTTransfers(ctx, chain, address)
		if err != nil {
			warn("tokennfttx", err)
			return nil
		}
		data.NFTTransfers = transfers
		return nil
	})
	g.Go(func() error {
		balance, err := c.FetchNativeBalance(ctx, chain, address)
		if err != nil {
			warn("balance", err)
			return nil
		}
		data.NativeBalance = balance
		return nil
	})
	_ = g.Wait()

	if data.Transactions == nil {
		data.Transactions = []types.RawTransaction{}
	}
	if data.InternalTransactions == nil {
		data.InternalTransactions = []types.RawTransaction{}
	}
	if data.TokenTransfers == nil {
		data.TokenTransfers = []types.RawTokenTransfer{}
	}
	if data.NFTTransfers == nil {
		data.NFTTransfers = []types.RawTokenTransfer{}
	}

	log.WithFields(map[string]interface{}{
		"transactions":    len(data.Transactions),
		"internal":        len(data.InternalTransactions),
		"token_transfers": len(data.TokenTransfers),
		"nft_transfers":   len(data.NFTTransfers),
	}).Debug("Fetched chain data")
	return data
}

// FetchAllChainData fetches every requested chain in parallel. Unknown chain
// keys are skipped; the only error is context cancellation.
func (c *ExplorerClient) FetchAllChainData(ctx context.Context, address string, chains []types.ChainKey) (map[types.ChainKey]models.ChainData, error) {
	out := make(map[types.ChainKey]models.ChainData, len(chains))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	for _, key := range chains {
		chain, ok := registry.ChainByKey(key)
		if !ok {
			c.logger.WithField("chain", key).Warn("Skipping unsupported chain")
			continue
		}
		g.Go(func() error {
			data := c.FetchChainData(gctx, chain, address)
			mu.Lock()
			out[chain.Key] = data
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
