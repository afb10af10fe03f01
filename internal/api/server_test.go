package api

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/lp-portfolio/internal/errors"
	"github.com/lp-portfolio/internal/logging"
	"github.com/lp-portfolio/internal/metrics"
	"github.com/lp-portfolio/internal/models"
	"github.com/lp-portfolio/internal/service"
	"github.com/lp-portfolio/internal/session"
	"github.com/lp-portfolio/internal/types"
)

const testAddress = "0x1111111111111111111111111111111111111111"

// Mock services for testing
type mockLoader struct {
	cached    *models.PortfolioResult
	loadErr   error
	loads     int
	lastChain []types.ChainKey
	snapshots []*models.PortfolioSnapshot
	snapErr   error
	lastLimit int
}

func (m *mockLoader) Chains() []types.ChainKey { return []types.ChainKey{types.ChainEthereum} }

func (m *mockLoader) Cached(ctx context.Context, address string, chains []types.ChainKey) *models.PortfolioResult {
	return m.cached
}

func (m *mockLoader) Load(ctx context.Context, address string, chains []types.ChainKey) (*models.PortfolioResult, error) {
	m.loads++
	m.lastChain = chains
	if m.loadErr != nil {
		return nil, m.loadErr
	}
	return &models.PortfolioResult{
		RunID:     "run-live",
		Address:   address,
		Chains:    chains,
		Positions: []models.Position{{ID: "Ethereum_0xpool", Status: types.StatusActive}},
		Metrics:   models.PortfolioMetrics{TotalValue: 10, ActivePositions: 1},
	}, nil
}

func (m *mockLoader) Snapshots(ctx context.Context, address string, limit int) ([]*models.PortfolioSnapshot, error) {
	m.lastLimit = limit
	if m.snapErr != nil {
		return nil, m.snapErr
	}
	return m.snapshots, nil
}

type mockPrices struct {
	mu      sync.Mutex
	custom  map[string]float64
	cleared bool
}

func (m *mockPrices) GetPrices(ctx context.Context, symbols []string) map[string]float64 {
	out := make(map[string]float64)
	for _, s := range symbols {
		out[strings.ToUpper(s)] = service.FallbackPrice(s)
	}
	return out
}

func (m *mockPrices) SetCustomPrice(ctx context.Context, symbol string, price float64) error {
	if price < 0 {
		return apperrors.NewInvalidInputError("price", "must be a finite non-negative number")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.custom[strings.ToUpper(symbol)] = price
	return nil
}

func (m *mockPrices) RemoveCustomPrice(ctx context.Context, symbol string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.custom, strings.ToUpper(symbol))
	return nil
}

func (m *mockPrices) CustomPrices(ctx context.Context) (map[string]float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]float64, len(m.custom))
	for k, v := range m.custom {
		out[k] = v
	}
	return out, nil
}

func (m *mockPrices) ClearCache() { m.cleared = true }

func (m *mockPrices) CacheStats(ctx context.Context) service.CacheStats {
	return service.CacheStats{Cached: 3, Custom: len(m.custom)}
}

type mockSession struct {
	sent  []session.Message
	state session.State
	err   error
}

func (m *mockSession) Send(ctx context.Context, msg session.Message) error {
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, msg)
	return nil
}

func (m *mockSession) State() session.State { return m.state }

type testServer struct {
	*Server
	loader  *mockLoader
	prices  *mockPrices
	session *mockSession
}

func createTestServer(t *testing.T) *testServer {
	t.Helper()
	reg := prometheus.NewRegistry()
	metrics.NewMetrics(reg)

	ts := &testServer{
		loader:  &mockLoader{},
		prices:  &mockPrices{custom: map[string]float64{}},
		session: &mockSession{state: session.State{Connected: true, Address: testAddress, Generation: 3}},
	}
	ts.Server = NewServer(&ServerConfig{
		Host:         "localhost",
		Port:         "8080",
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
		RateLimitRPS: 1000,
		RateBurst:    1000,
	}, Dependencies{
		Loader:   ts.loader,
		Prices:   ts.prices,
		Session:  ts.session,
		Gatherer: reg,
		Logger:   logging.NewNopLogger(),
	})
	return ts
}

func (ts *testServer) do(method, path string, body []byte) *httptest.ResponseRecorder {
	var req *http.Request
	if body != nil {
		req = httptest.NewRequest(method, path, bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	w := httptest.NewRecorder()
	ts.Handler().ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.NewDecoder(w.Body).Decode(v))
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) types.ServiceError {
	t.Helper()
	var resp ErrorResponse
	decodeBody(t, w, &resp)
	return resp.Error
}

func TestHealthEndpoint(t *testing.T) {
	ts := createTestServer(t)

	w := ts.do("GET", "/health", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var response map[string]string
	decodeBody(t, w, &response)
	assert.Equal(t, "healthy", response["status"])
}

func TestMetricsEndpoint(t *testing.T) {
	ts := createTestServer(t)

	w := ts.do("GET", "/metrics", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "lp_portfolio_")
}

func TestGetChains(t *testing.T) {
	ts := createTestServer(t)

	w := ts.do("GET", "/api/chains", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var response struct {
		Chains []struct {
			Key  string `json:"key"`
			Name string `json:"name"`
		} `json:"chains"`
	}
	decodeBody(t, w, &response)
	require.Len(t, response.Chains, 6)
	assert.Equal(t, "Ethereum", response.Chains[0].Name)
	assert.NotContains(t, w.Body.String(), "apiKey")
}

func TestGetProtocols(t *testing.T) {
	ts := createTestServer(t)

	w := ts.do("GET", "/api/protocols?chain=bsc", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "PancakeSwap")

	w = ts.do("GET", "/api/protocols", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Uniswap")

	w = ts.do("GET", "/api/protocols?chain=solana", nil)
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "UNSUPPORTED_CHAIN", decodeError(t, w).Code)
}

func TestGetPortfolio(t *testing.T) {
	ts := createTestServer(t)

	w := ts.do("GET", "/api/portfolio/"+testAddress+"?chains=ethereum,base", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "MISS", w.Header().Get("X-Cache"))

	var result models.PortfolioResult
	decodeBody(t, w, &result)
	assert.Equal(t, "run-live", result.RunID)
	assert.Len(t, result.Positions, 1)
	assert.Equal(t, 10.0, result.Metrics.TotalValue)
	assert.Equal(t, []types.ChainKey{types.ChainEthereum, types.ChainBase}, ts.loader.lastChain)
}

func TestGetPortfolioServedFromCache(t *testing.T) {
	ts := createTestServer(t)
	ts.loader.cached = &models.PortfolioResult{RunID: "run-cached", Address: testAddress}

	w := ts.do("GET", "/api/portfolio/"+testAddress, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "HIT", w.Header().Get("X-Cache"))
	assert.Equal(t, 0, ts.loader.loads)

	w = ts.do("GET", "/api/portfolio/"+testAddress+"?refresh=true", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "MISS", w.Header().Get("X-Cache"))
	assert.Equal(t, 1, ts.loader.loads)
}

func TestGetPortfolioErrors(t *testing.T) {
	tests := []struct {
		name       string
		path       string
		loadErr    error
		wantStatus int
		wantCode   string
	}{
		{"invalid address", "/api/portfolio/0x1234", nil, http.StatusBadRequest, "INVALID_ADDRESS"},
		{"unsupported chain", "/api/portfolio/" + testAddress + "?chains=solana", nil, http.StatusBadRequest, "UNSUPPORTED_CHAIN"},
		{"provider failure", "/api/portfolio/" + testAddress, apperrors.NewProviderError("explorer", errors.New("down")), http.StatusBadGateway, "PROVIDER_ERROR"},
		{"internal failure", "/api/portfolio/" + testAddress, errors.New("boom"), http.StatusInternalServerError, ErrCodeInternalError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := createTestServer(t)
			ts.loader.loadErr = tt.loadErr

			w := ts.do("GET", tt.path, nil)
			require.Equal(t, tt.wantStatus, w.Code)
			svcErr := decodeError(t, w)
			assert.Equal(t, tt.wantCode, svcErr.Code)
			assert.NotContains(t, svcErr.Message, "boom")
		})
	}
}

func TestGetSnapshots(t *testing.T) {
	ts := createTestServer(t)
	ts.loader.snapshots = []*models.PortfolioSnapshot{{ID: "snap-1", Address: testAddress, PositionCount: 2}}

	w := ts.do("GET", "/api/portfolio/"+testAddress+"/snapshots?limit=5", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 5, ts.loader.lastLimit)

	var response struct {
		Snapshots []models.PortfolioSnapshot `json:"snapshots"`
	}
	decodeBody(t, w, &response)
	require.Len(t, response.Snapshots, 1)
	assert.Equal(t, "snap-1", response.Snapshots[0].ID)

	w = ts.do("GET", "/api/portfolio/"+testAddress+"/snapshots?limit=abc", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	ts.loader.snapErr = apperrors.NewSnapshotsDisabledError()
	w = ts.do("GET", "/api/portfolio/"+testAddress+"/snapshots", nil)
	require.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "SNAPSHOTS_DISABLED", decodeError(t, w).Code)
}

func TestPriceEndpoints(t *testing.T) {
	ts := createTestServer(t)

	w := ts.do("GET", "/api/prices?symbols=eth,usdc", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var prices struct {
		Prices map[string]float64 `json:"prices"`
	}
	decodeBody(t, w, &prices)
	assert.Equal(t, 3500.0, prices.Prices["ETH"])
	assert.Equal(t, 1.0, prices.Prices["USDC"])

	w = ts.do("GET", "/api/prices", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = ts.do("PUT", "/api/prices/weth", []byte(`{"price": 3000}`))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 3000.0, ts.prices.custom["WETH"])

	w = ts.do("PUT", "/api/prices/weth", []byte(`{"price": -1}`))
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "INVALID_INPUT", decodeError(t, w).Code)

	w = ts.do("PUT", "/api/prices/weth", []byte(`{}`))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = ts.do("GET", "/api/prices/custom", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "WETH")

	w = ts.do("GET", "/api/prices/cache", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var stats service.CacheStats
	decodeBody(t, w, &stats)
	assert.Equal(t, 3, stats.Cached)
	assert.Equal(t, 1, stats.Custom)

	w = ts.do("DELETE", "/api/prices/cache", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.True(t, ts.prices.cleared)

	w = ts.do("DELETE", "/api/prices/WETH", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Empty(t, ts.prices.custom)
}

func TestSessionEndpoints(t *testing.T) {
	ts := createTestServer(t)

	w := ts.do("GET", "/api/session", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var state session.State
	decodeBody(t, w, &state)
	assert.True(t, state.Connected)
	assert.Equal(t, uint64(3), state.Generation)

	w = ts.do("POST", "/api/session/events", []byte(`{"type":"connected","address":"`+testAddress+`","chainId":"0x1"}`))
	require.Equal(t, http.StatusAccepted, w.Code)
	require.Len(t, ts.session.sent, 1)
	assert.Equal(t, session.Connected{Address: testAddress, ChainID: "0x1"}, ts.session.sent[0])

	w = ts.do("POST", "/api/session/events", []byte(`{"type":"teleport"}`))
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "INVALID_EVENT", decodeError(t, w).Code)

	w = ts.do("POST", "/api/session/events", []byte(`{"type":"refresh","extra":1}`))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	ts.session.err = session.ErrNotRunning
	w = ts.do("POST", "/api/session/events", []byte(`{"type":"refresh"}`))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestSessionDisabled(t *testing.T) {
	server := NewServer(&ServerConfig{RateLimitRPS: 100}, Dependencies{
		Loader: &mockLoader{},
		Prices: &mockPrices{custom: map[string]float64{}},
		Logger: logging.NewNopLogger(),
	})

	w := httptest.NewRecorder()
	server.Handler().ServeHTTP(w, httptest.NewRequest("GET", "/api/session", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	w = httptest.NewRecorder()
	server.Handler().ServeHTTP(w, httptest.NewRequest("GET", "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCORSHeaders(t *testing.T) {
	ts := createTestServer(t)

	w := ts.do("GET", "/api/chains", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestCORSPreflight(t *testing.T) {
	ts := createTestServer(t)

	for _, path := range []string{"/api/prices/WETH", "/api/prices/cache", "/api/session/events"} {
		w := ts.do("OPTIONS", path, nil)
		assert.Equal(t, http.StatusNoContent, w.Code, path)
		assert.Contains(t, w.Header().Get("Access-Control-Allow-Methods"), "PUT", path)
	}
	assert.False(t, ts.prices.cleared, "preflight must not reach the handler")
}

func TestRateLimitMiddleware(t *testing.T) {
	handler := RateLimitMiddleware(NewRateLimiter(1, 1))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	request := func(remote, clientID string) int {
		req := httptest.NewRequest("GET", "/api/chains", nil)
		req.RemoteAddr = remote
		if clientID != "" {
			req.Header.Set("X-Client-ID", clientID)
		}
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		return w.Code
	}

	assert.Equal(t, http.StatusOK, request("192.0.2.1:1000", ""))
	assert.Equal(t, http.StatusTooManyRequests, request("192.0.2.1:2000", ""), "same IP shares a bucket")
	assert.Equal(t, http.StatusOK, request("192.0.2.2:1000", ""))
	assert.Equal(t, http.StatusOK, request("192.0.2.1:1000", "wallet-ui"))
}

func TestRateLimiterDisabled(t *testing.T) {
	rl := NewRateLimiter(0, 0)
	limiter := rl.getLimiter("client")
	for i := 0; i < 100; i++ {
		require.True(t, limiter.Allow())
	}
}
