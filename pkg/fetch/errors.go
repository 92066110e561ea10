package fetch

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// Common errors returned by the client.
var (
	// ErrRetryExhausted is returned when all retry attempts are exhausted.
	ErrRetryExhausted = errors.New("retry attempts exhausted")

	// ErrContextCancelled is returned when the context is cancelled during retry.
	ErrContextCancelled = errors.New("context cancelled")
)

// ErrorClass represents a classification of network failures.
type ErrorClass string

const (
	// ErrorClassNetwork represents connection level failures (refused, reset, unreachable).
	ErrorClassNetwork ErrorClass = "network"

	// ErrorClassDNS represents name resolution failures.
	ErrorClassDNS ErrorClass = "dns"

	// ErrorClassTimeout represents deadline and timeout failures.
	ErrorClassTimeout ErrorClass = "timeout"

	// ErrorClassCanceled represents requests aborted by the caller.
	ErrorClassCanceled ErrorClass = "canceled"
)

// NetworkError reports that a request could not produce a response at all.
// HTTP error statuses are responses, not NetworkErrors.
type NetworkError struct {
	Method     string
	URL        string
	ErrorClass ErrorClass
	Err        error
}

// Error implements the error interface.
func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s %s: %s error: %v", e.Method, e.URL, e.ErrorClass, e.Err)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *NetworkError) Unwrap() error {
	return e.Err
}

// IsNetworkError reports whether err is or wraps a *NetworkError.
func IsNetworkError(err error) bool {
	var netErr *NetworkError
	return errors.As(err, &netErr)
}

// classifyError categorizes a transport error for observability and retry.
func classifyError(err error) ErrorClass {
	var dnsErr *net.DNSError
	var netErr net.Error

	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, ErrContextCancelled):
		return ErrorClassCanceled
	case errors.Is(err, context.DeadlineExceeded):
		return ErrorClassTimeout
	case errors.As(err, &dnsErr):
		return ErrorClassDNS
	case errors.As(err, &netErr) && netErr.Timeout():
		return ErrorClassTimeout
	default:
		return ErrorClassNetwork
	}
}

// shouldRetry determines if an error class is worth another attempt.
func shouldRetry(errorClass ErrorClass) bool {
	switch errorClass {
	case ErrorClassCanceled:
		// The caller gave up
		return false
	case ErrorClassNetwork, ErrorClassDNS, ErrorClassTimeout:
		return true
	default:
		return false
	}
}
