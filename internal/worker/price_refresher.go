package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/lp-portfolio/internal/logging"
	"github.com/lp-portfolio/internal/models"
)

// PriceRefreshService re-fetches prices past the cache
type PriceRefreshService interface {
	Refresh(ctx context.Context, symbols []string) map[string]float64
}

// ResultSource exposes the recently committed portfolios, one per wallet
type ResultSource interface {
	Recent() []*models.PortfolioResult
}

// PriceRefresher keeps the price cache warm for the tokens of the recent
// committed loads of each source
type PriceRefresher struct {
	prices   PriceRefreshService
	sources  []ResultSource
	interval time.Duration
	logger   *logging.Logger

	mu          sync.RWMutex
	running     bool
	lastRefresh time.Time
	refreshes   int
	stopCh      chan struct{}
	doneCh      chan struct{}
}

// PriceRefresherConfig holds configuration for a price refresher
type PriceRefresherConfig struct {
	Prices   PriceRefreshService
	Sources  []ResultSource
	Interval time.Duration
	Logger   *logging.Logger
}

// PriceRefresherStatus reports refresher activity
type PriceRefresherStatus struct {
	Running         bool      `json:"running"`
	LastRefresh     time.Time `json:"lastRefresh"`
	Refreshes       int       `json:"refreshes"`
	IntervalSeconds int       `json:"intervalSeconds"`
}

// NewPriceRefresher creates a new price refresher
func NewPriceRefresher(cfg *PriceRefresherConfig) (*PriceRefresher, error) {
	if cfg.Prices == nil {
		return nil, fmt.Errorf("price service cannot be nil")
	}
	if len(cfg.Sources) == 0 {
		return nil, fmt.Errorf("at least one result source is required")
	}

	// Default interval: 30 seconds
	interval := cfg.Interval
	if interval <= 0 {
		interval = 30 * time.Second
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}

	return &PriceRefresher{
		prices:   cfg.Prices,
		sources:  cfg.Sources,
		interval: interval,
		logger:   logger.WithField("component", "price_refresher"),
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}, nil
}

// Start begins the refresh loop
func (w *PriceRefresher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return fmt.Errorf("price refresher is already running")
	}
	w.running = true
	w.mu.Unlock()

	w.logger.WithField("interval", w.interval.String()).Info("Starting price refresher")
	go w.loop(ctx)
	return nil
}

// Stop signals the loop to exit and waits for it
func (w *PriceRefresher) Stop(ctx context.Context) error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return fmt.Errorf("price refresher is not running")
	}
	w.running = false
	w.mu.Unlock()

	close(w.stopCh)

	select {
	case <-w.doneCh:
		w.logger.Info("Price refresher stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (w *PriceRefresher) loop(ctx context.Context) {
	defer close(w.doneCh)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case <-ticker.C:
			w.RefreshOnce(ctx)
		}
	}
}

// RefreshOnce refreshes the symbols of the latest results.
// Returns the number of symbols refreshed.
func (w *PriceRefresher) RefreshOnce(ctx context.Context) int {
	symbols := w.symbols()
	if len(symbols) == 0 {
		return 0
	}

	prices := w.prices.Refresh(ctx, symbols)

	w.mu.Lock()
	w.lastRefresh = time.Now()
	w.refreshes++
	w.mu.Unlock()

	w.logger.WithFields(map[string]interface{}{
		"symbols": len(symbols),
		"priced":  len(prices),
	}).Debug("Refreshed prices")
	return len(symbols)
}

func (w *PriceRefresher) symbols() []string {
	seen := make(map[string]bool)
	var out []string
	for _, source := range w.sources {
		for _, result := range source.Recent() {
			for _, s := range result.Symbols() {
				if !seen[s] {
					seen[s] = true
					out = append(out, s)
				}
			}
		}
	}
	return out
}

// GetStatus returns the refresher status
func (w *PriceRefresher) GetStatus() *PriceRefresherStatus {
	w.mu.RLock()
	defer w.mu.RUnlock()

	return &PriceRefresherStatus{
		Running:         w.running,
		LastRefresh:     w.lastRefresh,
		Refreshes:       w.refreshes,
		IntervalSeconds: int(w.interval.Seconds()),
	}
}
