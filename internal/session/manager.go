package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/lp-portfolio/internal/logging"
	"github.com/lp-portfolio/internal/metrics"
	"github.com/lp-portfolio/internal/models"
	"github.com/lp-portfolio/internal/registry"
	"github.com/lp-portfolio/internal/service"
	"github.com/lp-portfolio/internal/types"
)

// ErrNotRunning is returned by Send when the manager is stopped
var ErrNotRunning = errors.New("session manager is not running")

// Loader runs one pipeline generation. *service.PortfolioLoader implements it.
type Loader interface {
	Store() *service.PortfolioStore
	Run(ctx context.Context, gen uint64, address string, chains []types.ChainKey) (*models.PortfolioResult, error)
	Persist(ctx context.Context, result *models.PortfolioResult)
}

// State is the reduced view of the wallet session
type State struct {
	Connected  bool                     `json:"connected"`
	Address    string                   `json:"address,omitempty"`
	Chain      *registry.ChainConfig    `json:"chain"`
	Generation uint64                   `json:"generation"`
	Loading    bool                     `json:"loading"`
	RunID      string                   `json:"runId,omitempty"`
	Positions  []models.Position        `json:"positions"`
	Metrics    *models.PortfolioMetrics `json:"metrics"`
	LastError  string                   `json:"lastError,omitempty"`
	LoadedAt   *time.Time               `json:"loadedAt,omitempty"`
}

// Config holds manager dependencies
type Config struct {
	Loader          Loader
	RefreshInterval time.Duration
	QueueSize       int
	Metrics         *metrics.Metrics
	Logger          *logging.Logger
}

// Manager owns the session state. Only the run loop mutates it.
type Manager struct {
	loader          Loader
	refreshInterval time.Duration
	metrics         *metrics.Metrics
	logger          *logging.Logger

	msgs   chan Message
	stopCh chan struct{}
	doneCh chan struct{}

	mu         sync.RWMutex
	state      State
	running    bool
	cancelLoad context.CancelFunc
}

// NewManager creates a session manager
func NewManager(cfg Config) (*Manager, error) {
	if cfg.Loader == nil {
		return nil, fmt.Errorf("loader cannot be nil")
	}

	refreshInterval := cfg.RefreshInterval
	if refreshInterval <= 0 {
		refreshInterval = 60 * time.Second
	}
	queueSize := cfg.QueueSize
	if queueSize <= 0 {
		queueSize = 16
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}

	return &Manager{
		loader:          cfg.Loader,
		refreshInterval: refreshInterval,
		metrics:         cfg.Metrics,
		logger:          logger.WithField("component", "session"),
		msgs:            make(chan Message, queueSize),
		stopCh:          make(chan struct{}),
		doneCh:          make(chan struct{}),
		state:           State{Positions: []models.Position{}},
	}, nil
}

// Start launches the reducer goroutine
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return fmt.Errorf("session manager is already running")
	}
	m.running = true
	m.mu.Unlock()

	m.logger.WithField("refresh_interval", m.refreshInterval.String()).Info("Starting session manager")
	go m.run(ctx)
	return nil
}

// Stop signals the reducer to exit and waits for it
func (m *Manager) Stop(ctx context.Context) error {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return fmt.Errorf("session manager is not running")
	}
	m.running = false
	m.mu.Unlock()

	close(m.stopCh)

	select {
	case <-m.doneCh:
		m.logger.Info("Session manager stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Send queues a message for the reducer
func (m *Manager) Send(ctx context.Context, msg Message) error {
	m.mu.RLock()
	running := m.running
	m.mu.RUnlock()
	if !running {
		return ErrNotRunning
	}

	select {
	case m.msgs <- msg:
		return nil
	case <-m.stopCh:
		return ErrNotRunning
	case <-ctx.Done():
		return ctx.Err()
	}
}

// State returns a copy of the current state
func (m *Manager) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s := m.state
	s.Positions = append([]models.Position{}, m.state.Positions...)
	if m.state.Metrics != nil {
		metricsCopy := *m.state.Metrics
		s.Metrics = &metricsCopy
	}
	if m.state.Chain != nil {
		chainCopy := *m.state.Chain
		s.Chain = &chainCopy
	}
	return s
}

func (m *Manager) run(ctx context.Context) {
	defer close(m.doneCh)
	defer m.cancelInFlight()

	ticker := time.NewTicker(m.refreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			m.logger.Info("Session context cancelled")
			return
		case <-m.stopCh:
			return
		case msg := <-m.msgs:
			m.reduce(ctx, msg)
		case <-ticker.C:
			if m.State().Connected {
				m.reduce(ctx, Refresh{})
			}
		}
	}
}

// reduce applies one message. It starts at most one load.
func (m *Manager) reduce(ctx context.Context, msg Message) {
	switch msg := msg.(type) {
	case Connected:
		address, err := service.ValidateAddress(msg.Address)
		if err != nil {
			m.update(func(s *State) { s.LastError = err.Error() })
			return
		}
		chain := lookupChain(msg.ChainID)
		m.update(func(s *State) {
			s.Connected = true
			s.Address = address
			s.Chain = chain
			s.Positions = []models.Position{}
			s.Metrics = nil
			s.LastError = ""
		})
		m.logger.WithField("address", address).Info("Wallet connected")
		m.startLoad(ctx)

	case AccountChanged:
		if !m.State().Connected {
			return
		}
		if msg.Address == "" {
			m.disconnect()
			return
		}
		address, err := service.ValidateAddress(msg.Address)
		if err != nil {
			m.update(func(s *State) { s.LastError = err.Error() })
			return
		}
		m.update(func(s *State) {
			s.Address = address
			s.Positions = []models.Position{}
			s.Metrics = nil
			s.LastError = ""
		})
		m.logger.WithField("address", address).Info("Account changed")
		m.startLoad(ctx)

	case ChainChanged:
		if !m.State().Connected {
			return
		}
		chain := lookupChain(msg.ChainID)
		m.update(func(s *State) { s.Chain = chain })
		if chain == nil {
			m.logger.WithField("chain_id", msg.ChainID).Warn("Wallet switched to unsupported chain")
			return
		}
		m.logger.WithField("chain", chain.Name).Info("Chain changed")
		m.startLoad(ctx)

	case Disconnected:
		m.disconnect()

	case Refresh:
		if !m.State().Connected {
			return
		}
		m.startLoad(ctx)

	case loadFinished:
		m.finishLoad(ctx, msg)
	}
}

func (m *Manager) update(fn func(s *State)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	fn(&m.state)
}

func (m *Manager) disconnect() {
	m.cancelInFlight()
	m.loader.Store().Reset()
	gen := m.loader.Store().Generation()

	m.mu.Lock()
	m.state = State{Generation: gen, Positions: []models.Position{}}
	m.mu.Unlock()

	m.logger.Info("Wallet disconnected")
}

func (m *Manager) cancelInFlight() {
	m.mu.Lock()
	cancel := m.cancelLoad
	m.cancelLoad = nil
	m.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// startLoad supersedes any in-flight load and runs a new generation
func (m *Manager) startLoad(ctx context.Context) {
	m.cancelInFlight()

	gen := m.loader.Store().Begin()
	loadCtx, cancel := context.WithCancel(ctx)

	m.mu.Lock()
	m.cancelLoad = cancel
	m.state.Generation = gen
	m.state.Loading = true
	address := m.state.Address
	m.mu.Unlock()

	go func() {
		result, err := m.loader.Run(loadCtx, gen, address, nil)
		select {
		case m.msgs <- loadFinished{gen: gen, result: result, err: err}:
		case <-loadCtx.Done():
		case <-m.stopCh:
		}
	}()
}

func (m *Manager) finishLoad(ctx context.Context, msg loadFinished) {
	store := m.loader.Store()
	log := m.logger.WithField("generation", msg.gen)

	if msg.err != nil {
		if msg.gen != store.Generation() {
			return
		}
		log.WithError(msg.err).Warn("Portfolio load failed")
		m.cancelInFlight()
		m.update(func(s *State) {
			s.Loading = false
			s.LastError = msg.err.Error()
		})
		return
	}

	if !store.Commit(msg.gen, msg.result) {
		m.metrics.StaleResultDropped()
		log.WithField("run_id", msg.result.RunID).Info("Discarding superseded portfolio result")
		return
	}
	m.loader.Persist(ctx, msg.result)

	loadedAt := msg.result.LoadedAt
	metricsCopy := msg.result.Metrics
	m.update(func(s *State) {
		s.Loading = false
		s.RunID = msg.result.RunID
		s.Positions = msg.result.Positions
		s.Metrics = &metricsCopy
		s.LastError = ""
		s.LoadedAt = &loadedAt
	})
	m.cancelInFlight()
}

func lookupChain(id string) *registry.ChainConfig {
	chain, ok := registry.ChainByID(id)
	if !ok {
		return nil
	}
	return &chain
}
