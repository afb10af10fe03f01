package retry

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/lp-portfolio/internal/logging"
)

// RetryConfig configures retry behavior
type RetryConfig struct {
	MaxAttempts  int           // Maximum number of attempts, first call included
	InitialDelay time.Duration // Initial delay before first retry
	MaxDelay     time.Duration // Maximum delay between retries
	Multiplier   float64       // Multiplier for exponential backoff
}

// DefaultRetryConfig returns a default retry configuration
// Pattern: 1s, 2s, 4s, 8s, max 30s
func DefaultRetryConfig() *RetryConfig {
	return &RetryConfig{
		MaxAttempts:  5,
		InitialDelay: 1 * time.Second,
		MaxDelay:     30 * time.Second,
		Multiplier:   2.0,
	}
}

// ExplorerRetryConfig is tuned for explorer 429s: three attempts, 500ms base
func ExplorerRetryConfig() *RetryConfig {
	return &RetryConfig{
		MaxAttempts:  3,
		InitialDelay: 500 * time.Millisecond,
		MaxDelay:     5 * time.Second,
		Multiplier:   2.0,
	}
}

// RetryResult contains information about the retry operation
type RetryResult struct {
	Attempts      int           `json:"attempts"`
	Success       bool          `json:"success"`
	TotalDuration time.Duration `json:"totalDuration"`
	LastError     error         `json:"lastError,omitempty"`
}

// RetryFunc is a function that can be retried
type RetryFunc func(ctx context.Context, attempt int) error

// permanentError marks an error that must not be retried
type permanentError struct {
	err error
}

func (p *permanentError) Error() string { return p.err.Error() }
func (p *permanentError) Unwrap() error { return p.err }

// Permanent wraps err so that WithExponentialBackoff stops immediately
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent reports whether err was wrapped with Permanent
func IsPermanent(err error) bool {
	var p *permanentError
	return errors.As(err, &p)
}

// WithExponentialBackoff executes a function with exponential backoff retry logic
func WithExponentialBackoff(ctx context.Context, config *RetryConfig, fn RetryFunc) *RetryResult {
	logger := logging.FromContext(ctx)
	startTime := time.Now()

	result := &RetryResult{}

	for attempt := 1; attempt <= config.MaxAttempts; attempt++ {
		result.Attempts = attempt

		err := fn(ctx, attempt)
		if err == nil {
			result.Success = true
			result.LastError = nil
			result.TotalDuration = time.Since(startTime)

			if attempt > 1 {
				logger.WithFields(map[string]interface{}{
					"attempts":      attempt,
					"totalDuration": result.TotalDuration,
				}).Info("Operation succeeded after retry")
			}
			return result
		}

		result.LastError = err

		if IsPermanent(err) {
			var p *permanentError
			errors.As(err, &p)
			result.LastError = p.err
			break
		}

		if attempt >= config.MaxAttempts {
			logger.WithFields(map[string]interface{}{
				"attempts":      attempt,
				"totalDuration": time.Since(startTime),
				"error":         err.Error(),
			}).Warn("Operation failed after max retry attempts")
			break
		}

		if ctx.Err() != nil {
			result.LastError = ctx.Err()
			break
		}

		delay := calculateDelay(config, attempt)

		logger.WithFields(map[string]interface{}{
			"attempt":     attempt,
			"maxAttempts": config.MaxAttempts,
			"delay":       delay,
			"error":       err.Error(),
		}).Debug("Operation failed, retrying with exponential backoff")

		timer := time.NewTimer(delay)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			result.LastError = ctx.Err()
			result.TotalDuration = time.Since(startTime)
			return result
		}
	}

	result.TotalDuration = time.Since(startTime)
	return result
}

// calculateDelay calculates the delay for the next retry attempt
func calculateDelay(config *RetryConfig, attempt int) time.Duration {
	// initialDelay * multiplier^(attempt-1)
	delay := float64(config.InitialDelay) * math.Pow(config.Multiplier, float64(attempt-1))

	if delay > float64(config.MaxDelay) {
		delay = float64(config.MaxDelay)
	}

	return time.Duration(delay)
}

// WithRetry runs fn under config and folds the result into an error
func WithRetry(ctx context.Context, config *RetryConfig, fn RetryFunc) error {
	if config == nil {
		config = DefaultRetryConfig()
	}
	result := WithExponentialBackoff(ctx, config, fn)

	if !result.Success {
		return fmt.Errorf("operation failed after %d attempts: %w", result.Attempts, result.LastError)
	}

	return nil
}
