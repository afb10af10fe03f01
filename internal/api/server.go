// Package api provides the HTTP API server implementation.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/lp-portfolio/internal/logging"
	"github.com/lp-portfolio/internal/models"
	"github.com/lp-portfolio/internal/service"
	"github.com/lp-portfolio/internal/session"
	"github.com/lp-portfolio/internal/types"
)

// Service interfaces for dependency injection and testing

// PortfolioLoaderInterface defines the portfolio pipeline operations
type PortfolioLoaderInterface interface {
	Chains() []types.ChainKey
	Cached(ctx context.Context, address string, chains []types.ChainKey) *models.PortfolioResult
	Load(ctx context.Context, address string, chains []types.ChainKey) (*models.PortfolioResult, error)
	Snapshots(ctx context.Context, address string, limit int) ([]*models.PortfolioSnapshot, error)
}

// PriceServiceInterface defines the price operations exposed over HTTP
type PriceServiceInterface interface {
	GetPrices(ctx context.Context, symbols []string) map[string]float64
	SetCustomPrice(ctx context.Context, symbol string, price float64) error
	RemoveCustomPrice(ctx context.Context, symbol string) error
	CustomPrices(ctx context.Context) (map[string]float64, error)
	ClearCache()
	CacheStats(ctx context.Context) service.CacheStats
}

// SessionInterface defines the wallet session operations
type SessionInterface interface {
	Send(ctx context.Context, msg session.Message) error
	State() session.State
}

// Server represents the HTTP API server.
type Server struct {
	router     *mux.Router
	httpServer *http.Server
	loader     PortfolioLoaderInterface
	prices     PriceServiceInterface
	session    SessionInterface
	gatherer   prometheus.Gatherer
	logger     *logging.Logger
	config     *ServerConfig
}

// ServerConfig holds server configuration.
type ServerConfig struct {
	Host            string
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
	RateLimitRPS    int // requests per second per client
	RateBurst       int
}

// Dependencies are the services the server routes to. Session and
// Gatherer are optional.
type Dependencies struct {
	Loader   PortfolioLoaderInterface
	Prices   PriceServiceInterface
	Session  SessionInterface
	Gatherer prometheus.Gatherer
	Logger   *logging.Logger
}

// NewServer creates a new API server instance.
func NewServer(config *ServerConfig, deps Dependencies) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}

	s := &Server{
		router:   mux.NewRouter(),
		loader:   deps.Loader,
		prices:   deps.Prices,
		session:  deps.Session,
		gatherer: deps.Gatherer,
		logger:   logger.WithField("component", "api"),
		config:   config,
	}

	s.setupRouter()

	return s
}

// setupRouter configures the router with middleware and routes
func (s *Server) setupRouter() {
	rateLimiter := NewRateLimiter(s.config.RateLimitRPS, s.config.RateBurst)

	// Set up middleware (order matters!)
	s.router.Use(LoggingMiddleware(s.logger))
	s.router.Use(RecoveryMiddleware(s.logger))
	s.router.Use(CORSMiddleware)
	s.router.Use(RateLimitMiddleware(rateLimiter)) // Rate limiting after CORS
	s.router.Use(CompressionMiddleware)

	s.setupRoutes()

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%s", s.config.Host, s.config.Port),
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
		IdleTimeout:  s.config.IdleTimeout,
	}
}

// setupRoutes configures all API routes.
func (s *Server) setupRoutes() {
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")
	if s.gatherer != nil {
		s.router.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{
			DisableCompression: true,
		})).Methods("GET")
	}

	api := s.router.PathPrefix("/api").Subrouter()

	// Registry endpoints
	api.HandleFunc("/chains", s.handleGetChains).Methods("GET")
	api.HandleFunc("/protocols", s.handleGetProtocols).Methods("GET")

	// Portfolio endpoints
	api.HandleFunc("/portfolio/{address}", s.handleGetPortfolio).Methods("GET")
	api.HandleFunc("/portfolio/{address}/snapshots", s.handleGetSnapshots).Methods("GET")

	// Price endpoints; /prices/cache is registered before /prices/{symbol}.
	// Mutating routes also match OPTIONS so CORSMiddleware can answer preflights.
	api.HandleFunc("/prices", s.handleGetPrices).Methods("GET")
	api.HandleFunc("/prices/custom", s.handleGetCustomPrices).Methods("GET")
	api.HandleFunc("/prices/cache", s.handleGetPriceCache).Methods("GET")
	api.HandleFunc("/prices/cache", s.handleClearPriceCache).Methods("DELETE", "OPTIONS")
	api.HandleFunc("/prices/{symbol}", s.handleSetCustomPrice).Methods("PUT", "OPTIONS")
	api.HandleFunc("/prices/{symbol}", s.handleRemoveCustomPrice).Methods("DELETE")

	// Wallet session endpoints
	api.HandleFunc("/session", s.handleGetSession).Methods("GET")
	api.HandleFunc("/session/events", s.handleSessionEvent).Methods("POST", "OPTIONS")
}

// handleHealth handles health check requests.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": "lp-portfolio",
	})
}

// Handler returns the root handler, for tests and embedding
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	s.logger.WithField("addr", s.httpServer.Addr).Info("Starting API server")
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down API server...")
	return s.httpServer.Shutdown(ctx)
}
