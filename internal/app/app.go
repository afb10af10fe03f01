// Package app wires configuration, storage backends and services into the
// components shared by the server and the CLI.
package app

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/lp-portfolio/internal/adapter"
	"github.com/lp-portfolio/internal/circuitbreaker"
	"github.com/lp-portfolio/internal/config"
	"github.com/lp-portfolio/internal/logging"
	"github.com/lp-portfolio/internal/metrics"
	"github.com/lp-portfolio/internal/service"
	"github.com/lp-portfolio/internal/session"
	"github.com/lp-portfolio/internal/storage"
	"github.com/lp-portfolio/internal/worker"
)

// App holds the constructed components. Redis and Postgres are nil when
// disabled in the configuration.
type App struct {
	Config    *config.Config
	Logger    *logging.Logger
	Registry  *prometheus.Registry
	Metrics   *metrics.Metrics
	Redis     *storage.RedisCache
	Postgres  *storage.PostgresDB
	Explorer  *adapter.ExplorerClient
	CoinGecko *adapter.CoinGeckoClient
	Prices    *service.PriceService
	Valuation *service.ValuationService

	// Loader serves HTTP and CLI requests. SessionLoader feeds the wallet
	// session; each has its own generation store.
	Loader        *service.PortfolioLoader
	SessionLoader *service.PortfolioLoader
	Session       *session.Manager
	Refresher     *worker.PriceRefresher
}

// Options select optional parts of the build
type Options struct {
	// Migrate applies pending Postgres migrations when Postgres is enabled
	Migrate bool
	// Background builds the session manager and price refresher
	Background bool
}

// New connects the enabled backends and builds every service
func New(cfg *config.Config, logger *logging.Logger, opts Options) (*App, error) {
	a := &App{
		Config:   cfg,
		Logger:   logger,
		Registry: prometheus.NewRegistry(),
	}
	a.Metrics = metrics.NewMetrics(a.Registry)

	if err := a.connect(opts); err != nil {
		a.Close()
		return nil, err
	}

	a.Explorer = adapter.NewExplorerClient(cfg.Explorer, a.Metrics, logger)

	breakerCfg := circuitbreaker.DefaultConfig("coingecko")
	breakerCfg.Logger = logger
	breakerCfg.OnStateChange = func(name string, from, to circuitbreaker.State) {
		a.Metrics.CircuitTransition(name, string(to))
	}
	a.CoinGecko = adapter.NewCoinGeckoClient(cfg.Prices, circuitbreaker.NewCircuitBreaker(breakerCfg), logger)

	var customStore service.CustomPriceStore = storage.NewMemoryPriceStore()
	if a.Redis != nil {
		customStore = storage.NewRedisPriceStore(a.Redis)
	}
	a.Prices = service.NewPriceService(a.CoinGecko, customStore, cfg.Prices.CacheTTL, a.Metrics, logger)
	a.Valuation = service.NewValuationService(a.Prices, nil, cfg.Pipeline.ValuationConcurrency, logger)

	loaderOpts := service.LoaderOptions{
		Fetcher:       a.Explorer,
		Valuation:     a.Valuation,
		DefaultChains: cfg.Pipeline.EnabledChains,
		Metrics:       a.Metrics,
		Logger:        logger,
	}
	if a.Postgres != nil {
		loaderOpts.Snapshots = storage.NewSnapshotRepository(a.Postgres.Pool())
	}
	if a.Redis != nil {
		loaderOpts.Cache = storage.NewPortfolioCache(a.Redis, cfg.Refresh.Positions)
	}
	a.Loader = service.NewPortfolioLoader(loaderOpts)

	if !opts.Background {
		return a, nil
	}

	loaderOpts.Store = service.NewPortfolioStore()
	a.SessionLoader = service.NewPortfolioLoader(loaderOpts)

	var err error
	a.Session, err = session.NewManager(session.Config{
		Loader:          a.SessionLoader,
		RefreshInterval: cfg.Refresh.Portfolio,
		Metrics:         a.Metrics,
		Logger:          logger,
	})
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to create session manager: %w", err)
	}

	a.Refresher, err = worker.NewPriceRefresher(&worker.PriceRefresherConfig{
		Prices:   a.Prices,
		Sources:  []worker.ResultSource{a.Loader.Store(), a.SessionLoader.Store()},
		Interval: cfg.Refresh.Prices,
		Logger:   logger,
	})
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to create price refresher: %w", err)
	}

	return a, nil
}

func (a *App) connect(opts Options) error {
	db := a.Config.Database

	if db.Redis.Enabled {
		redis, err := storage.NewRedisCache(&db.Redis)
		if err != nil {
			return fmt.Errorf("failed to connect to Redis: %w", err)
		}
		a.Redis = redis
		a.Logger.WithField("addr", db.Redis.Host+":"+db.Redis.Port).Info("Redis connected")
	}

	if db.Postgres.Enabled {
		if opts.Migrate {
			migrator := storage.NewMigrator(db.Postgres.URL(), db.Postgres.MigrationsPath, a.Logger)
			if err := migrator.Up(); err != nil {
				return fmt.Errorf("failed to apply migrations: %w", err)
			}
		}
		postgres, err := storage.NewPostgresDB(&db.Postgres)
		if err != nil {
			return fmt.Errorf("failed to connect to Postgres: %w", err)
		}
		a.Postgres = postgres
		a.Logger.WithField("database", db.Postgres.Database).Info("Postgres connected")
	}

	return nil
}

// Start launches the background workers, if built
func (a *App) Start(ctx context.Context) error {
	if a.Session != nil {
		if err := a.Session.Start(ctx); err != nil {
			return err
		}
	}
	if a.Refresher != nil {
		if err := a.Refresher.Start(ctx); err != nil {
			return err
		}
	}
	return nil
}

// Stop stops the background workers
func (a *App) Stop(ctx context.Context) {
	if a.Refresher != nil {
		if err := a.Refresher.Stop(ctx); err != nil {
			a.Logger.WithError(err).Warn("Failed to stop price refresher")
		}
	}
	if a.Session != nil {
		if err := a.Session.Stop(ctx); err != nil {
			a.Logger.WithError(err).Warn("Failed to stop session manager")
		}
	}
}

// Close releases the storage connections
func (a *App) Close() {
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			a.Logger.WithError(err).Warn("Failed to close Redis")
		}
	}
	if a.Postgres != nil {
		a.Postgres.Close()
	}
}
