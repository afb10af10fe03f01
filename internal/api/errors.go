package api

import (
	"net/http"

	jsoniter "github.com/json-iterator/go"

	apperrors "github.com/lp-portfolio/internal/errors"
	"github.com/lp-portfolio/internal/types"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// ErrorResponse represents an API error response.
type ErrorResponse struct {
	Error types.ServiceError `json:"error"`
}

// respondError sends an error response.
func respondError(w http.ResponseWriter, statusCode int, code, message string, details map[string]interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	response := ErrorResponse{
		Error: types.ServiceError{
			Code:    code,
			Message: message,
			Details: details,
		},
	}

	_ = json.NewEncoder(w).Encode(response)
}

// respondJSON sends a JSON response.
func respondJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if data != nil {
		_ = json.NewEncoder(w).Encode(data)
	}
}

// respondServiceError maps err and writes it
func respondServiceError(w http.ResponseWriter, err error) {
	statusCode, code, message, details := mapServiceError(err)
	respondError(w, statusCode, code, message, details)
}

// parseJSONBody parses JSON request body.
func parseJSONBody(r *http.Request, v interface{}) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(v)
}

// Common error codes
const (
	ErrCodeInvalidInput       = "INVALID_INPUT"
	ErrCodeNotFound           = "NOT_FOUND"
	ErrCodeRateLimitExceeded  = "RATE_LIMIT_EXCEEDED"
	ErrCodeInternalError      = "INTERNAL_ERROR"
	ErrCodeServiceUnavailable = "SERVICE_UNAVAILABLE"
)

// mapServiceError maps service errors to HTTP status codes.
// Messages of server-side failures are not exposed.
func mapServiceError(err error) (int, string, string, map[string]interface{}) {
	catErr := apperrors.Categorize(err)
	if catErr == nil {
		return http.StatusInternalServerError, ErrCodeInternalError, "An internal error occurred", nil
	}

	switch catErr.Category {
	case apperrors.CategoryUserInput, apperrors.CategoryValidation, apperrors.CategoryNotFound, apperrors.CategoryRateLimit:
		return catErr.StatusCode, catErr.Code, catErr.Message, catErr.Details
	case apperrors.CategoryProvider:
		return catErr.StatusCode, catErr.Code, catErr.Message, nil
	}

	if catErr.StatusCode == http.StatusServiceUnavailable {
		return catErr.StatusCode, catErr.Code, catErr.Message, nil
	}
	return http.StatusInternalServerError, ErrCodeInternalError, "An internal error occurred", nil
}
