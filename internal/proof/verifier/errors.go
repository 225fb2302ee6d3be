package verifier

import (
	"errors"
	"fmt"
)

// ErrorCategory is the normalized failure taxonomy for verifier calls.
//
// The orchestrator decides between hard failure and fallback from the
// operation that failed, and uses the category for logging and metrics.
type ErrorCategory string

const (
	// ErrorTimeout indicates the verifier took too long to respond
	ErrorTimeout ErrorCategory = "timeout"

	// ErrorBadData indicates the request could not be built or the response read
	ErrorBadData ErrorCategory = "bad_data"

	// ErrorAuthentication indicates the API key or LOB id was rejected
	ErrorAuthentication ErrorCategory = "authentication"

	// ErrorProviderOutage indicates the verifier is unavailable
	ErrorProviderOutage ErrorCategory = "provider_outage"

	// ErrorContractMismatch indicates a 2xx response without the expected fields
	ErrorContractMismatch ErrorCategory = "contract_mismatch"

	// ErrorNotFound indicates the referenced proof does not exist upstream
	ErrorNotFound ErrorCategory = "not_found"

	// ErrorRateLimited indicates too many requests
	ErrorRateLimited ErrorCategory = "rate_limited"

	// ErrorInternal indicates an unexpected status or internal error
	ErrorInternal ErrorCategory = "internal"
)

// Operation names a verifier endpoint.
type Operation string

const (
	OpDefine     Operation = "define"
	OpRequestURL Operation = "request_url"
	OpStatus     Operation = "status"
)

// ProviderError wraps a verifier failure with its category, the operation
// that failed and the upstream HTTP status when one was received.
// Response bodies are kept out of Message; they are logged by the client.
type ProviderError struct {
	Category   ErrorCategory
	Operation  Operation
	StatusCode int
	Message    string
	Underlying error
	Retryable  bool
}

// Error implements the error interface
func (e *ProviderError) Error() string {
	msg := fmt.Sprintf("verifier %s [%s]: %s", e.Operation, e.Category, e.Message)
	if e.StatusCode != 0 {
		msg = fmt.Sprintf("%s (status %d)", msg, e.StatusCode)
	}
	if e.Underlying != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Underlying)
	}
	return msg
}

// Unwrap supports error unwrapping
func (e *ProviderError) Unwrap() error {
	return e.Underlying
}

// NewProviderError creates a categorised error. Timeouts, outages and rate
// limiting are marked retryable.
func NewProviderError(category ErrorCategory, op Operation, statusCode int, message string, underlying error) *ProviderError {
	retryable := category == ErrorTimeout ||
		category == ErrorProviderOutage ||
		category == ErrorRateLimited

	return &ProviderError{
		Category:   category,
		Operation:  op,
		StatusCode: statusCode,
		Message:    message,
		Underlying: underlying,
		Retryable:  retryable,
	}
}

// IsRetryable checks if an error is worth retrying
func IsRetryable(err error) bool {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Retryable
	}
	return false
}

// GetCategory extracts the error category from an error
func GetCategory(err error) ErrorCategory {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Category
	}
	return ErrorInternal
}

// StatusCodeOf returns the upstream HTTP status carried by err, or 0.
func StatusCodeOf(err error) int {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.StatusCode
	}
	return 0
}

// categorize maps a non-2xx status to a category.
func categorize(status int) ErrorCategory {
	switch {
	case status == 401 || status == 403:
		return ErrorAuthentication
	case status == 404:
		return ErrorNotFound
	case status == 429:
		return ErrorRateLimited
	case status == 502 || status == 503 || status == 504:
		return ErrorProviderOutage
	case status >= 400 && status < 500:
		return ErrorBadData
	default:
		return ErrorInternal
	}
}
