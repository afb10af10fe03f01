package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"

	apperrors "github.com/lp-portfolio/internal/errors"
	"github.com/lp-portfolio/internal/logging"
	"github.com/lp-portfolio/internal/metrics"
	"github.com/lp-portfolio/internal/models"
	"github.com/lp-portfolio/internal/registry"
	"github.com/lp-portfolio/internal/types"
)

// Interfaces for dependency injection

// ChainDataFetcher loads explorer data for a wallet on several chains
type ChainDataFetcher interface {
	FetchAllChainData(ctx context.Context, address string, chains []types.ChainKey) (map[types.ChainKey]models.ChainData, error)
}

// SnapshotRepository persists portfolio snapshots
type SnapshotRepository interface {
	Create(ctx context.Context, snapshot *models.PortfolioSnapshot) error
	ListByAddress(ctx context.Context, address string, limit int) ([]*models.PortfolioSnapshot, error)
}

// PortfolioCache holds recent load results
type PortfolioCache interface {
	Get(ctx context.Context, address string, chains []types.ChainKey) (*models.PortfolioResult, error)
	Set(ctx context.Context, result *models.PortfolioResult) error
}

// maxRecentResults bounds the per-address results a store remembers
const maxRecentResults = 64

// PortfolioStore keeps the latest committed result and the generation
// counter that decides which in-flight load may commit.
//
// Begin/Commit serve a single-wallet consumer where any newer load supersedes
// older ones. BeginFor/CommitFor scope the check to one address so that
// concurrent loads of different wallets never supersede each other.
type PortfolioStore struct {
	mu         sync.RWMutex
	generation uint64
	latest     *models.PortfolioResult
	inflight   map[string]uint64
	recent     map[string]*models.PortfolioResult
}

// NewPortfolioStore creates an empty store
func NewPortfolioStore() *PortfolioStore {
	return &PortfolioStore{
		inflight: make(map[string]uint64),
		recent:   make(map[string]*models.PortfolioResult),
	}
}

// Begin starts a new generation and returns it
func (s *PortfolioStore) Begin() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.generation++
	return s.generation
}

// BeginFor starts a new generation for address only
func (s *PortfolioStore) BeginFor(address string) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.generation++
	s.inflight[address] = s.generation
	return s.generation
}

// Generation returns the newest started generation
func (s *PortfolioStore) Generation() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.generation
}

// Commit stores result if gen is still the newest generation.
// It reports whether the result was kept.
func (s *PortfolioStore) Commit(gen uint64, result *models.PortfolioResult) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.generation {
		return false
	}
	s.keep(result)
	return true
}

// CommitFor stores result if gen is still the newest generation started
// for address.
func (s *PortfolioStore) CommitFor(address string, gen uint64, result *models.PortfolioResult) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cur, ok := s.inflight[address]; !ok || cur != gen {
		return false
	}
	delete(s.inflight, address)
	s.keep(result)
	return true
}

// abandon forgets a failed keyed load so the inflight map does not grow
func (s *PortfolioStore) abandon(address string, gen uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.inflight[address] == gen {
		delete(s.inflight, address)
	}
}

// keep must be called with mu held
func (s *PortfolioStore) keep(result *models.PortfolioResult) {
	s.latest = result
	if result == nil {
		return
	}
	s.recent[result.Address] = result
	if len(s.recent) <= maxRecentResults {
		return
	}
	var oldest string
	for addr, r := range s.recent {
		if oldest == "" || r.LoadedAt.Before(s.recent[oldest].LoadedAt) {
			oldest = addr
		}
	}
	delete(s.recent, oldest)
}

// Reset drops every result and invalidates in-flight loads
func (s *PortfolioStore) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.generation++
	s.latest = nil
	s.inflight = make(map[string]uint64)
	s.recent = make(map[string]*models.PortfolioResult)
}

// Latest returns the last committed result, nil if none
func (s *PortfolioStore) Latest() *models.PortfolioResult {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.latest
}

// Recent returns the newest committed result of each remembered address,
// ordered by address
func (s *PortfolioStore) Recent() []*models.PortfolioResult {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.PortfolioResult, 0, len(s.recent))
	for _, r := range s.recent {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Address < out[j].Address })
	return out
}

// PortfolioLoader runs the full pipeline for one wallet
type PortfolioLoader struct {
	fetcher   ChainDataFetcher
	valuation *ValuationService
	snapshots SnapshotRepository
	cache     PortfolioCache
	store     *PortfolioStore
	chains    []types.ChainKey
	metrics   *metrics.Metrics
	logger    *logging.Logger
	now       func() time.Time
}

// LoaderOptions configures a PortfolioLoader. Snapshots and Cache are optional.
type LoaderOptions struct {
	Fetcher       ChainDataFetcher
	Valuation     *ValuationService
	Snapshots     SnapshotRepository
	Cache         PortfolioCache
	Store         *PortfolioStore
	DefaultChains []types.ChainKey
	Metrics       *metrics.Metrics
	Logger        *logging.Logger
}

// NewPortfolioLoader creates a loader
func NewPortfolioLoader(opts LoaderOptions) *PortfolioLoader {
	store := opts.Store
	if store == nil {
		store = NewPortfolioStore()
	}
	chains := opts.DefaultChains
	if len(chains) == 0 {
		chains = registry.ChainKeys()
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	return &PortfolioLoader{
		fetcher:   opts.Fetcher,
		valuation: opts.Valuation,
		snapshots: opts.Snapshots,
		cache:     opts.Cache,
		store:     store,
		chains:    chains,
		metrics:   opts.Metrics,
		logger:    logger,
		now:       time.Now,
	}
}

// Store returns the loader's result store
func (l *PortfolioLoader) Store() *PortfolioStore {
	return l.store
}

// Chains returns the default chain set
func (l *PortfolioLoader) Chains() []types.ChainKey {
	return append([]types.ChainKey(nil), l.chains...)
}

// ValidateAddress checks and lower-cases an EVM address
func ValidateAddress(address string) (string, error) {
	address = strings.TrimSpace(address)
	if !common.IsHexAddress(address) || !strings.HasPrefix(strings.ToLower(address), "0x") {
		return "", apperrors.NewInvalidAddressError(address)
	}
	return strings.ToLower(address), nil
}

// sortedChains orders chains by registry position so cache keys are stable
func sortedChains(chains []types.ChainKey) []types.ChainKey {
	order := make(map[types.ChainKey]int)
	for i, k := range registry.ChainKeys() {
		order[k] = i
	}
	out := append([]types.ChainKey(nil), chains...)
	sort.SliceStable(out, func(i, j int) bool { return order[out[i]] < order[out[j]] })
	return out
}

// Cached returns a fresh cached result for address, if any
func (l *PortfolioLoader) Cached(ctx context.Context, address string, chains []types.ChainKey) *models.PortfolioResult {
	if l.cache == nil {
		return nil
	}
	if len(chains) == 0 {
		chains = l.chains
	}
	result, err := l.cache.Get(ctx, address, sortedChains(chains))
	if err != nil {
		l.logger.WithField("address", address).WithError(err).Warn("Portfolio cache read failed")
		return nil
	}
	return result
}

// Load runs the pipeline under a new generation for address. A result
// superseded by a newer load of the same address while running is returned
// but neither committed nor persisted.
func (l *PortfolioLoader) Load(ctx context.Context, address string, chains []types.ChainKey) (*models.PortfolioResult, error) {
	address, err := ValidateAddress(address)
	if err != nil {
		return nil, err
	}
	gen := l.store.BeginFor(address)
	result, err := l.Run(ctx, gen, address, chains)
	if err != nil {
		l.store.abandon(address, gen)
		return nil, err
	}
	if !l.store.CommitFor(address, gen, result) {
		l.metrics.StaleResultDropped()
		l.logger.WithFields(map[string]interface{}{
			"run_id":     result.RunID,
			"generation": gen,
		}).Info("Discarding superseded portfolio result")
		return result, nil
	}
	l.Persist(ctx, result)
	return result, nil
}

// Run executes fetch, analysis, valuation and aggregation for one generation
// without touching the store, the cache or the snapshot repository. Callers
// Persist the result once it has committed.
func (l *PortfolioLoader) Run(ctx context.Context, gen uint64, address string, chains []types.ChainKey) (*models.PortfolioResult, error) {
	start := time.Now()
	address, err := ValidateAddress(address)
	if err != nil {
		return nil, err
	}
	if len(chains) == 0 {
		chains = l.chains
	}
	chains = sortedChains(chains)

	runID := uuid.New().String()
	log := l.logger.WithFields(map[string]interface{}{
		"run_id":     runID,
		"generation": gen,
		"address":    address,
	})
	log.WithField("chains", chains).Info("Loading portfolio")

	perChain, err := l.fetcher.FetchAllChainData(ctx, address, chains)
	if err != nil {
		l.metrics.ObserveLoad("error", time.Since(start))
		return nil, fmt.Errorf("failed to fetch chain data: %w", err)
	}

	analysis := AnalyzePositions(perChain, address)

	positions, err := l.valuation.ValuateAll(ctx, analysis.Positions)
	if err != nil {
		l.metrics.ObserveLoad("cancelled", time.Since(start))
		return nil, fmt.Errorf("failed to value positions: %w", err)
	}

	result := &models.PortfolioResult{
		RunID:      runID,
		Generation: gen,
		Address:    address,
		Chains:     chains,
		Positions:  positions,
		Metrics:    Aggregate(positions),
		LoadedAt:   l.now().UTC(),
	}

	perChainCount := make(map[string]int)
	for _, key := range chains {
		if cfg, ok := registry.ChainByKey(key); ok {
			perChainCount[cfg.Name] = 0
		}
	}
	for _, p := range positions {
		perChainCount[p.Chain]++
	}
	for name, n := range perChainCount {
		l.metrics.SetPositions(name, n)
	}

	l.metrics.ObserveLoad("success", time.Since(start))
	log.WithFields(map[string]interface{}{
		"positions":   len(positions),
		"total_value": result.Metrics.TotalValue,
		"duration_ms": time.Since(start).Milliseconds(),
	}).Info("Portfolio loaded")

	return result, nil
}

// Persist writes the snapshot and cache entry of a committed result.
// Failures are logged only.
func (l *PortfolioLoader) Persist(ctx context.Context, result *models.PortfolioResult) {
	log := l.logger.WithFields(map[string]interface{}{
		"run_id":     result.RunID,
		"generation": result.Generation,
		"address":    result.Address,
	})
	if l.snapshots != nil {
		snapshot := &models.PortfolioSnapshot{
			ID:            uuid.New().String(),
			Address:       result.Address,
			RunID:         result.RunID,
			Metrics:       result.Metrics,
			Positions:     result.Positions,
			PositionCount: len(result.Positions),
			CreatedAt:     result.LoadedAt,
		}
		if err := l.snapshots.Create(ctx, snapshot); err != nil {
			log.WithError(err).Warn("Failed to save portfolio snapshot")
		}
	}
	if l.cache != nil {
		if err := l.cache.Set(ctx, result); err != nil {
			log.WithError(err).Warn("Failed to cache portfolio")
		}
	}
}

const (
	defaultSnapshotLimit = 20
	maxSnapshotLimit     = 100
)

// Snapshots lists stored snapshots for address, newest first
func (l *PortfolioLoader) Snapshots(ctx context.Context, address string, limit int) ([]*models.PortfolioSnapshot, error) {
	if l.snapshots == nil {
		return nil, apperrors.NewSnapshotsDisabledError()
	}
	address, err := ValidateAddress(address)
	if err != nil {
		return nil, err
	}
	switch {
	case limit <= 0:
		limit = defaultSnapshotLimit
	case limit > maxSnapshotLimit:
		limit = maxSnapshotLimit
	}
	snapshots, err := l.snapshots.ListByAddress(ctx, address, limit)
	if err != nil {
		return nil, apperrors.NewDatabaseError("list snapshots", err)
	}
	return snapshots, nil
}
