package adapter

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lp-portfolio/internal/config"
	"github.com/lp-portfolio/internal/logging"
	"github.com/lp-portfolio/internal/metrics"
	"github.com/lp-portfolio/internal/registry"
	"github.com/lp-portfolio/internal/retry"
	"github.com/lp-portfolio/internal/types"
)

const walletAddress = "0x1111111111111111111111111111111111111111"

// explorerStub answers by action with canned bodies
func explorerStub(t *testing.T, bodies map[string]string, hits *int32) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits != nil {
			atomic.AddInt32(hits, 1)
		}
		assert.Equal(t, "test-key", r.URL.Query().Get("apikey"))
		body, ok := bodies[r.URL.Query().Get("action")]
		if !ok {
			body = `{"status":"0","message":"No transactions found","result":[]}`
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	}))
}

func newTestExplorer(t *testing.T, srvURL string, m *metrics.Metrics) *ExplorerClient {
	t.Helper()
	cfg := config.ExplorerConfig{
		APIKey:     "test-key",
		RateLimit:  1000,
		Timeout:    5 * time.Second,
		PageSize:   2,
		MaxRecords: 10,
		CacheTTL:   time.Minute,
		Overrides:  map[types.ChainKey]config.ExplorerEndpoint{},
	}
	for _, key := range registry.ChainKeys() {
		cfg.Overrides[key] = config.ExplorerEndpoint{URL: srvURL}
	}
	c := NewExplorerClient(cfg, m, logging.NewNopLogger())
	c.retryConfig = &retry.RetryConfig{
		MaxAttempts:  3,
		InitialDelay: time.Millisecond,
		MaxDelay:     5 * time.Millisecond,
		Multiplier:   2,
	}
	return c
}

func ethereum(t *testing.T) registry.ChainConfig {
	t.Helper()
	chain, ok := registry.ChainByKey(types.ChainEthereum)
	require.True(t, ok)
	return chain
}

func TestFetchTokenTransfers(t *testing.T) {
	srv := explorerStub(t, map[string]string{
		"tokentx": `{"status":"1","message":"OK","result":[
			{"hash":"0xabc","timeStamp":"1700000000","from":"0x2","to":"` + walletAddress + `",
			 "contractAddress":"0xpool","value":"1000","tokenName":"Uniswap V2","tokenSymbol":"UNI-V2","tokenDecimal":"18"}]}`,
	}, nil)
	defer srv.Close()

	c := newTestExplorer(t, srv.URL, nil)
	transfers, err := c.FetchTokenTransfers(context.Background(), ethereum(t), walletAddress, "")
	require.NoError(t, err)
	require.Len(t, transfers, 1)
	assert.Equal(t, "UNI-V2", transfers[0].TokenSymbol)
	assert.Equal(t, "1700000000", transfers[0].TimeStamp)
	assert.Equal(t, "18", transfers[0].TokenDecimal)
}

func TestNoTransactionsFoundIsEmpty(t *testing.T) {
	srv := explorerStub(t, nil, nil)
	defer srv.Close()

	c := newTestExplorer(t, srv.URL, nil)
	txs, err := c.FetchInternalTransactions(context.Background(), ethereum(t), walletAddress)
	require.NoError(t, err)
	assert.Empty(t, txs)
}

func TestExplorerErrorIsReturned(t *testing.T) {
	srv := explorerStub(t, map[string]string{
		"txlistinternal": `{"status":"0","message":"NOTOK","result":"Invalid API Key"}`,
	}, nil)
	defer srv.Close()

	c := newTestExplorer(t, srv.URL, nil)
	_, err := c.FetchInternalTransactions(context.Background(), ethereum(t), walletAddress)
	assert.Error(t, err)
}

func TestRetriesOnTooManyRequests(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&hits, 1) < 3 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = w.Write([]byte(`{"status":"1","message":"OK","result":"42"}`))
	}))
	defer srv.Close()

	c := newTestExplorer(t, srv.URL, nil)
	balance, err := c.FetchNativeBalance(context.Background(), ethereum(t), walletAddress)
	require.NoError(t, err)
	assert.Equal(t, "42", balance)
	assert.Equal(t, int32(3), atomic.LoadInt32(&hits))
}

func TestResponsesAreCached(t *testing.T) {
	var hits int32
	srv := explorerStub(t, map[string]string{
		"tokenbalance": `{"status":"1","message":"OK","result":"7"}`,
	}, &hits)
	defer srv.Close()

	m := metrics.NewMetrics(prometheus.NewRegistry())
	c := newTestExplorer(t, srv.URL, m)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		b, err := c.FetchTokenBalance(ctx, ethereum(t), walletAddress, "0xPool")
		require.NoError(t, err)
		assert.Equal(t, "7", b)
	}
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))
	assert.Equal(t, 1, c.CacheSize())
	assert.Equal(t, 2.0, testutil.ToFloat64(m.ExplorerRequests.WithLabelValues("ethereum", "tokenbalance", "cached")))

	c.ClearCache()
	assert.Equal(t, 0, c.CacheSize())
	_, err := c.FetchTokenBalance(ctx, ethereum(t), walletAddress, "0xPool")
	require.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&hits))
}

func TestFetchTransactionsPaginates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("page") {
		case "1":
			_, _ = w.Write([]byte(`{"status":"1","message":"OK","result":[{"hash":"0x1"},{"hash":"0x2"}]}`))
		case "2":
			_, _ = w.Write([]byte(`{"status":"1","message":"OK","result":[{"hash":"0x3"}]}`))
		default:
			t.Errorf("unexpected page %s", r.URL.Query().Get("page"))
		}
	}))
	defer srv.Close()

	c := newTestExplorer(t, srv.URL, nil)
	txs, err := c.FetchTransactions(context.Background(), ethereum(t), walletAddress)
	require.NoError(t, err)
	require.Len(t, txs, 3)
	assert.Equal(t, "0x3", txs[2].Hash)
}

func TestFetchLogsAndABI(t *testing.T) {
	transferTopic, _ := registry.EventTopic("Transfer")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		switch q.Get("action") {
		case "getLogs":
			assert.Equal(t, "logs", q.Get("module"))
			assert.Equal(t, "latest", q.Get("toBlock"))
			assert.Equal(t, transferTopic, q.Get("topic0"))
			_, _ = w.Write([]byte(`{"status":"1","message":"OK","result":[{"address":"0xpool","topics":["0xddf2"],"data":"0x","transactionHash":"0xabc"}]}`))
		case "getabi":
			_, _ = w.Write([]byte(`{"status":"1","message":"OK","result":"[{\"type\":\"function\"}]"}`))
		}
	}))
	defer srv.Close()

	c := newTestExplorer(t, srv.URL, nil)
	ctx := context.Background()

	logs, err := c.FetchLogs(ctx, ethereum(t), "0xPool", 100, 0, transferTopic)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, "0xabc", logs[0].TransactionHash)

	abi, err := c.FetchContractABI(ctx, ethereum(t), "0xPool")
	require.NoError(t, err)
	assert.Equal(t, `[{"type":"function"}]`, abi)
}

func TestFetchAllChainDataToleratesFailures(t *testing.T) {
	srv := explorerStub(t, map[string]string{
		"txlist":  `{"status":"1","message":"OK","result":[{"hash":"0x1","timeStamp":"1"}]}`,
		"tokentx": `{"status":"0","message":"NOTOK","result":"Error! Invalid address format"}`,
		"balance": `{"status":"1","message":"OK","result":"1000"}`,
	}, nil)
	defer srv.Close()

	c := newTestExplorer(t, srv.URL, nil)
	data, err := c.FetchAllChainData(context.Background(), walletAddress,
		[]types.ChainKey{types.ChainEthereum, types.ChainBase, "solana"})
	require.NoError(t, err)
	require.Len(t, data, 2)

	eth := data[types.ChainEthereum]
	assert.Equal(t, "Ethereum", eth.Chain.Name)
	assert.Len(t, eth.Transactions, 1)
	assert.NotNil(t, eth.TokenTransfers)
	assert.Empty(t, eth.TokenTransfers)
	assert.Empty(t, eth.InternalTransactions)
	assert.Equal(t, "1000", eth.NativeBalance)
}

func TestFetchAllChainDataCancelled(t *testing.T) {
	srv := explorerStub(t, nil, nil)
	defer srv.Close()

	c := newTestExplorer(t, srv.URL, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.FetchAllChainData(ctx, walletAddress, []types.ChainKey{types.ChainEthereum})
	assert.ErrorIs(t, err, context.Canceled)
}
