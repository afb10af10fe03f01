package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"

	"github.com/lp-portfolio/internal/types"
)

// ErrorCategory represents the category of an error
type ErrorCategory string

const (
	// CategoryUserInput represents user input errors (4xx)
	CategoryUserInput ErrorCategory = "user_input"
	// CategorySystem represents system errors (5xx)
	CategorySystem ErrorCategory = "system"
	// CategoryProvider represents explorer and price feed errors
	CategoryProvider ErrorCategory = "provider"
	// CategoryDatabase represents database errors
	CategoryDatabase ErrorCategory = "database"
	// CategoryCache represents cache errors
	CategoryCache ErrorCategory = "cache"
	// CategoryValidation represents validation errors
	CategoryValidation ErrorCategory = "validation"
	// CategoryNotFound represents not found errors
	CategoryNotFound ErrorCategory = "not_found"
	// CategoryRateLimit represents rate limit errors
	CategoryRateLimit ErrorCategory = "rate_limit"
)

// CategorizedError represents an error with category and HTTP status code
type CategorizedError struct {
	Category   ErrorCategory
	StatusCode int
	Code       string
	Message    string
	Details    map[string]interface{}
	Cause      error
}

// Error implements the error interface
func (e *CategorizedError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause
func (e *CategorizedError) Unwrap() error {
	return e.Cause
}

// ToServiceError converts to a ServiceError
func (e *CategorizedError) ToServiceError() *types.ServiceError {
	return &types.ServiceError{
		Code:    e.Code,
		Message: e.Message,
		Details: e.Details,
	}
}

// User Input Errors (4xx)

// NewInvalidAddressError creates an invalid address error
func NewInvalidAddressError(address string) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryUserInput,
		StatusCode: http.StatusBadRequest,
		Code:       "INVALID_ADDRESS",
		Message:    fmt.Sprintf("invalid address format: %s", address),
		Details: map[string]interface{}{
			"address": address,
		},
	}
}

// NewUnsupportedChainError creates an unsupported chain error
func NewUnsupportedChainError(chain string) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryUserInput,
		StatusCode: http.StatusBadRequest,
		Code:       "UNSUPPORTED_CHAIN",
		Message:    fmt.Sprintf("unsupported chain: %s", chain),
		Details: map[string]interface{}{
			"chain": chain,
		},
	}
}

// NewInvalidInputError creates a generic invalid input error
func NewInvalidInputError(param string, reason string) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryValidation,
		StatusCode: http.StatusBadRequest,
		Code:       "INVALID_INPUT",
		Message:    fmt.Sprintf("invalid parameter '%s': %s", param, reason),
		Details: map[string]interface{}{
			"parameter": param,
			"reason":    reason,
		},
	}
}

// NewInvalidEventError creates an error for a malformed wallet event
func NewInvalidEventError(eventType string) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryValidation,
		StatusCode: http.StatusBadRequest,
		Code:       "INVALID_EVENT",
		Message:    fmt.Sprintf("invalid wallet event: %s", eventType),
		Details: map[string]interface{}{
			"type": eventType,
		},
	}
}

// NewNotFoundError creates a not found error
func NewNotFoundError(resource string, id string) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryNotFound,
		StatusCode: http.StatusNotFound,
		Code:       "NOT_FOUND",
		Message:    fmt.Sprintf("%s not found: %s", resource, id),
		Details: map[string]interface{}{
			"resource": resource,
			"id":       id,
		},
	}
}

// NewRateLimitError creates a rate limit error
func NewRateLimitError(retryAfter int) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryRateLimit,
		StatusCode: http.StatusTooManyRequests,
		Code:       "RATE_LIMIT_EXCEEDED",
		Message:    "rate limit exceeded",
		Details: map[string]interface{}{
			"retryAfter": retryAfter,
		},
	}
}

// System Errors (5xx)

// NewInternalError creates an internal server error
func NewInternalError(message string, cause error) *CategorizedError {
	return &CategorizedError{
		Category:   CategorySystem,
		StatusCode: http.StatusInternalServerError,
		Code:       "INTERNAL_ERROR",
		Message:    message,
		Cause:      cause,
	}
}

// NewDatabaseError creates a database error
func NewDatabaseError(operation string, cause error) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryDatabase,
		StatusCode: http.StatusInternalServerError,
		Code:       "DATABASE_ERROR",
		Message:    fmt.Sprintf("database error during %s", operation),
		Cause:      cause,
		Details: map[string]interface{}{
			"operation": operation,
		},
	}
}

// NewCacheError creates a cache error
func NewCacheError(operation string, cause error) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryCache,
		StatusCode: http.StatusInternalServerError,
		Code:       "CACHE_ERROR",
		Message:    fmt.Sprintf("cache error during %s", operation),
		Cause:      cause,
		Details: map[string]interface{}{
			"operation": operation,
		},
	}
}

// NewSnapshotsDisabledError is returned when snapshot history is requested
// without a Postgres backend
func NewSnapshotsDisabledError() *CategorizedError {
	return &CategorizedError{
		Category:   CategorySystem,
		StatusCode: http.StatusServiceUnavailable,
		Code:       "SNAPSHOTS_DISABLED",
		Message:    "portfolio snapshots are not enabled",
	}
}

// Data Provider Errors

// NewProviderError creates a data provider error
func NewProviderError(provider string, cause error) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryProvider,
		StatusCode: http.StatusBadGateway,
		Code:       "PROVIDER_ERROR",
		Message:    fmt.Sprintf("data provider error: %s", provider),
		Cause:      cause,
		Details: map[string]interface{}{
			"provider": provider,
		},
	}
}

// NewProviderRateLimitError creates a provider rate limit error
func NewProviderRateLimitError(provider string) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryProvider,
		StatusCode: http.StatusTooManyRequests,
		Code:       "PROVIDER_RATE_LIMIT",
		Message:    fmt.Sprintf("data provider rate limit exceeded: %s", provider),
		Details: map[string]interface{}{
			"provider": provider,
		},
	}
}

// Categorize categorizes an existing error
func Categorize(err error) *CategorizedError {
	if err == nil {
		return nil
	}

	var catErr *CategorizedError
	if stderrors.As(err, &catErr) {
		return catErr
	}

	var svcErr *types.ServiceError
	if stderrors.As(err, &svcErr) {
		return categorizeServiceError(svcErr)
	}

	// Default to internal error
	return NewInternalError("unexpected error", err)
}

// categorizeServiceError categorizes a ServiceError
func categorizeServiceError(err *types.ServiceError) *CategorizedError {
	category, status := CategorySystem, http.StatusInternalServerError
	switch err.Code {
	case "INVALID_ADDRESS", "UNSUPPORTED_CHAIN":
		category, status = CategoryUserInput, http.StatusBadRequest
	case "INVALID_INPUT", "INVALID_EVENT":
		category, status = CategoryValidation, http.StatusBadRequest
	case "NOT_FOUND":
		category, status = CategoryNotFound, http.StatusNotFound
	case "SNAPSHOTS_DISABLED":
		status = http.StatusServiceUnavailable
	case "PROVIDER_ERROR":
		category, status = CategoryProvider, http.StatusBadGateway
	}

	return &CategorizedError{
		Category:   category,
		StatusCode: status,
		Code:       err.Code,
		Message:    err.Message,
		Details:    err.Details,
	}
}

// GetHTTPStatusCode returns the HTTP status code for an error
func GetHTTPStatusCode(err error) int {
	if catErr := Categorize(err); catErr != nil {
		return catErr.StatusCode
	}
	return http.StatusInternalServerError
}

// IsRetryable determines if an error is retryable
func IsRetryable(err error) bool {
	catErr := Categorize(err)
	if catErr == nil {
		return false
	}

	switch catErr.Category {
	case CategoryProvider, CategoryDatabase, CategoryCache:
		return true
	case CategorySystem:
		return catErr.StatusCode == http.StatusServiceUnavailable ||
			catErr.StatusCode == http.StatusGatewayTimeout
	default:
		return false
	}
}

// IsUserError determines if an error is a user error (4xx)
func IsUserError(err error) bool {
	catErr := Categorize(err)
	if catErr == nil {
		return false
	}

	return catErr.StatusCode >= 400 && catErr.StatusCode < 500
}
