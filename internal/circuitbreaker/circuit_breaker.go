package circuitbreaker

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/lp-portfolio/internal/logging"
)

// State represents the circuit breaker state
type State string

const (
	// StateClosed means the circuit is closed and requests are allowed
	StateClosed State = "closed"
	// StateOpen means the circuit is open and requests are blocked
	StateOpen State = "open"
	// StateHalfOpen means the circuit is testing if the service has recovered
	StateHalfOpen State = "half_open"
)

// CircuitBreaker implements the circuit breaker pattern
type CircuitBreaker struct {
	name             string
	maxFailures      int           // Number of calls before the failure rate is considered
	failureThreshold float64       // Percentage of failures to trigger open (0.0-1.0)
	timeout          time.Duration // Time to wait before attempting half-open
	halfOpenMaxCalls int           // Max calls allowed in half-open state
	logger           *logging.Logger
	onStateChange    func(name string, from, to State)

	mu               sync.RWMutex
	state            State
	failures         int
	successes        int
	totalCalls       int
	inFlight         int
	lastFailureTime  time.Time
	lastStateChange  time.Time
	consecutiveFails int
}

// Config configures a circuit breaker
type Config struct {
	Name             string
	MaxFailures      int
	FailureThreshold float64
	Timeout          time.Duration
	HalfOpenMaxCalls int
	Logger           *logging.Logger
	OnStateChange    func(name string, from, to State)
}

// DefaultConfig returns a default circuit breaker configuration
func DefaultConfig(name string) *Config {
	return &Config{
		Name:             name,
		MaxFailures:      5,
		FailureThreshold: 0.5, // 50% failure rate
		Timeout:          30 * time.Second,
		HalfOpenMaxCalls: 1,
	}
}

// NewCircuitBreaker creates a new circuit breaker
func NewCircuitBreaker(config *Config) *CircuitBreaker {
	logger := config.Logger
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	return &CircuitBreaker{
		name:             config.Name,
		maxFailures:      config.MaxFailures,
		failureThreshold: config.FailureThreshold,
		timeout:          config.Timeout,
		halfOpenMaxCalls: config.HalfOpenMaxCalls,
		logger:           logger.WithField("circuitBreaker", config.Name),
		onStateChange:    config.OnStateChange,
		state:            StateClosed,
		lastStateChange:  time.Now(),
	}
}

// ErrCircuitOpen is returned when the circuit breaker is open
var ErrCircuitOpen = errors.New("circuit breaker is open")

// ErrTooManyRequests is returned when too many requests are made in half-open state
var ErrTooManyRequests = errors.New("too many requests in half-open state")

// Execute executes a function with circuit breaker protection
func (cb *CircuitBreaker) Execute(ctx context.Context, fn func() error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := cb.beforeRequest(); err != nil {
		return err
	}

	err := fn()

	// cancellation says nothing about the remote side
	if err != nil && ctx.Err() != nil {
		cb.release()
		return err
	}

	cb.afterRequest(err)
	return err
}

// beforeRequest checks if a request can be executed
func (cb *CircuitBreaker) beforeRequest() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateOpen:
		if time.Since(cb.lastStateChange) <= cb.timeout {
			return ErrCircuitOpen
		}
		cb.setState(StateHalfOpen)
		cb.reset()
		cb.logger.Info("Circuit breaker transitioning to half-open")
		cb.inFlight++
		return nil

	case StateHalfOpen:
		if cb.totalCalls+cb.inFlight >= cb.halfOpenMaxCalls {
			return ErrTooManyRequests
		}
		cb.inFlight++
		return nil

	default:
		cb.inFlight++
		return nil
	}
}

func (cb *CircuitBreaker) release() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.inFlight--
}

// afterRequest records the result of a request
func (cb *CircuitBreaker) afterRequest(err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.inFlight--
	cb.totalCalls++

	if err != nil {
		cb.onFailure()
	} else {
		cb.onSuccess()
	}
}

// onSuccess handles a successful request
func (cb *CircuitBreaker) onSuccess() {
	cb.successes++
	cb.consecutiveFails = 0

	if cb.state == StateHalfOpen && cb.successes >= cb.halfOpenMaxCalls {
		cb.setState(StateClosed)
		cb.reset()
		cb.logger.Info("Circuit breaker closed after successful recovery")
	}
}

// onFailure handles a failed request
func (cb *CircuitBreaker) onFailure() {
	cb.failures++
	cb.consecutiveFails++
	cb.lastFailureTime = time.Now()

	switch cb.state {
	case StateClosed:
		if cb.shouldOpen() {
			cb.setState(StateOpen)
			cb.logger.WithFields(map[string]interface{}{
				"failures":         cb.failures,
				"totalCalls":       cb.totalCalls,
				"failureRate":      cb.getFailureRate(),
				"consecutiveFails": cb.consecutiveFails,
			}).Warn("Circuit breaker opened due to failures")
		}

	case StateHalfOpen:
		// Any failure in half-open state reopens the circuit
		cb.setState(StateOpen)
		cb.logger.Warn("Circuit breaker reopened after failure in half-open state")
	}
}

// shouldOpen determines if the circuit should open
func (cb *CircuitBreaker) shouldOpen() bool {
	if cb.consecutiveFails >= cb.maxFailures {
		return true
	}
	if cb.totalCalls < cb.maxFailures {
		return false
	}
	return cb.getFailureRate() >= cb.failureThreshold
}

// getFailureRate calculates the current failure rate
func (cb *CircuitBreaker) getFailureRate() float64 {
	if cb.totalCalls == 0 {
		return 0.0
	}
	return float64(cb.failures) / float64(cb.totalCalls)
}

// setState changes the circuit breaker state
func (cb *CircuitBreaker) setState(state State) {
	from := cb.state
	cb.state = state
	cb.lastStateChange = time.Now()
	if cb.onStateChange != nil && from != state {
		cb.onStateChange(cb.name, from, state)
	}
}

// reset resets the circuit breaker counters
func (cb *CircuitBreaker) reset() {
	cb.failures = 0
	cb.successes = 0
	cb.totalCalls = 0
	cb.consecutiveFails = 0
}

// GetState returns the current state of the circuit breaker
func (cb *CircuitBreaker) GetState() State {
	cb.mu.RLock()
	defer cb.mu.RUnlock()
	return cb.state
}

// GetStats returns statistics about the circuit breaker
func (cb *CircuitBreaker) GetStats() *Stats {
	cb.mu.RLock()
	defer cb.mu.RUnlock()

	return &Stats{
		Name:             cb.name,
		State:            cb.state,
		Failures:         cb.failures,
		Successes:        cb.successes,
		TotalCalls:       cb.totalCalls,
		ConsecutiveFails: cb.consecutiveFails,
		FailureRate:      cb.getFailureRate(),
		LastFailureTime:  cb.lastFailureTime,
		LastStateChange:  cb.lastStateChange,
	}
}

// Stats represents circuit breaker statistics
type Stats struct {
	Name             string    `json:"name"`
	State            State     `json:"state"`
	Failures         int       `json:"failures"`
	Successes        int       `json:"successes"`
	TotalCalls       int       `json:"totalCalls"`
	ConsecutiveFails int       `json:"consecutiveFails"`
	FailureRate      float64   `json:"failureRate"`
	LastFailureTime  time.Time `json:"lastFailureTime"`
	LastStateChange  time.Time `json:"lastStateChange"`
}

// Reset manually resets the circuit breaker to closed state
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.setState(StateClosed)
	cb.reset()
	cb.logger.Info("Circuit breaker manually reset")
}
