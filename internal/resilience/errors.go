// Package resilience provides error classification, retry with exponential
// backoff, and circuit breaking for calls to the generation engine and
// retrieval providers.
package resilience

import (
	"errors"
	"fmt"
	"net"
	"syscall"
)

// EngineError carries the machine-readable detail of a failed external call
// so classification does not have to rely on message text alone.
type EngineError struct {
	Err        error
	StatusCode int
	Code       string
}

func (e *EngineError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("engine: status %d: %s", e.StatusCode, e.Err.Error())
	}
	return e.Err.Error()
}

func (e *EngineError) Unwrap() error {
	return e.Err
}

// NewEngineError wraps an error with an optional HTTP status code and
// provider error code.
func NewEngineError(err error, statusCode int, code string) *EngineError {
	return &EngineError{Err: err, StatusCode: statusCode, Code: code}
}

// statusCode extracts an HTTP status code from the error chain, or 0.
func statusCode(err error) int {
	var ee *EngineError
	if errors.As(err, &ee) {
		return ee.StatusCode
	}
	return 0
}

// isNetworkErr checks for network-level transient failures in the chain.
func isNetworkErr(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}
	return errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNABORTED) ||
		errors.Is(err, syscall.ETIMEDOUT) ||
		errors.Is(err, syscall.EPIPE)
}

// RetryExhaustedError wraps the final error after retries are used up,
// preserving attempt count and classification for diagnostics.
type RetryExhaustedError struct {
	Err            error
	Attempts       int
	Classification Classification
}

func (e *RetryExhaustedError) Error() string {
	return fmt.Sprintf("resilience: %d attempts exhausted (%s): %s",
		e.Attempts, e.Classification.Category, e.Err.Error())
}

func (e *RetryExhaustedError) Unwrap() error {
	return e.Err
}
