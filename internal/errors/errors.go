// Package errors provides categorized errors for the I/O side of a scan:
// fetching pages and scripts, driving the browser, and persisting results.
// Extraction itself never fails; it skips what it cannot read.
package errors

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"syscall"
)

// ErrorType categorizes errors for handling decisions.
type ErrorType int

const (
	// Unknown is an uncategorized error.
	Unknown ErrorType = iota
	// Network represents DNS and connection failures.
	Network
	// Timeout represents timeout errors.
	Timeout
	// RateLimit represents 429 responses.
	RateLimit
	// NotFound represents 404 responses.
	NotFound
	// ServerError represents 5xx responses.
	ServerError
	// ClientError represents other 4xx responses.
	ClientError
	// Parse represents unreadable HTML, JSON or config input.
	Parse
	// Browser represents headless browser failures.
	Browser
	// Storage represents result store failures.
	Storage
	// Config represents invalid configuration.
	Config
	// Cancelled represents context cancellation.
	Cancelled
)

var typeNames = map[ErrorType]string{
	Network:     "network",
	Timeout:     "timeout",
	RateLimit:   "rate_limit",
	NotFound:    "not_found",
	ServerError: "server_error",
	ClientError: "client_error",
	Parse:       "parse",
	Browser:     "browser",
	Storage:     "storage",
	Config:      "config",
	Cancelled:   "cancelled",
}

// String returns the string representation of ErrorType.
func (t ErrorType) String() string {
	if name, ok := typeNames[t]; ok {
		return name
	}
	return "unknown"
}

// IsRetryable returns whether errors of this type should be retried.
func (t ErrorType) IsRetryable() bool {
	switch t {
	case Network, Timeout, RateLimit, ServerError:
		return true
	default:
		return false
	}
}

// ScanError is a categorized failure against one target (a URL or path).
type ScanError struct {
	Type       ErrorType
	Target     string
	Operation  string
	Message    string
	Cause      error
	StatusCode int
	Retryable  bool
}

// Error implements the error interface.
func (e *ScanError) Error() string {
	msg := fmt.Sprintf("%s error during %s on %s: %s", e.Type, e.Operation, e.Target, e.Message)
	if e.Cause != nil {
		msg += fmt.Sprintf(" (caused by: %v)", e.Cause)
	}
	return msg
}

// Unwrap returns the underlying error.
func (e *ScanError) Unwrap() error {
	return e.Cause
}

// Is matches any *ScanError of the same type.
func (e *ScanError) Is(target error) bool {
	t, ok := target.(*ScanError)
	if !ok {
		return false
	}
	return e.Type == t.Type
}

// New creates a ScanError whose retryability follows its type.
func New(errType ErrorType, target, operation, message string, cause error) *ScanError {
	return &ScanError{
		Type:      errType,
		Target:    target,
		Operation: operation,
		Message:   message,
		Cause:     cause,
		Retryable: errType.IsRetryable(),
	}
}

// NewNetworkError creates a network error.
func NewNetworkError(target, operation string, cause error) *ScanError {
	return New(Network, target, operation, "network failure", cause)
}

// NewTimeoutError creates a timeout error.
func NewTimeoutError(target, operation string, cause error) *ScanError {
	return New(Timeout, target, operation, "request timed out", cause)
}

// NewRateLimitError creates a rate limit error.
func NewRateLimitError(target string, retryAfter int) *ScanError {
	err := New(RateLimit, target, "fetch", fmt.Sprintf("rate limited, retry after %ds", retryAfter), nil)
	err.StatusCode = 429
	return err
}

// NewNotFoundError creates a not found error.
func NewNotFoundError(target string) *ScanError {
	err := New(NotFound, target, "fetch", "resource not found", nil)
	err.StatusCode = 404
	return err
}

// NewServerError creates a server error.
func NewServerError(target string, statusCode int, message string) *ScanError {
	err := New(ServerError, target, "fetch", message, nil)
	err.StatusCode = statusCode
	return err
}

// NewClientError creates a client error.
func NewClientError(target string, statusCode int, message string) *ScanError {
	err := New(ClientError, target, "fetch", message, nil)
	err.StatusCode = statusCode
	return err
}

// NewParseError creates a parse error.
func NewParseError(target, operation string, cause error) *ScanError {
	return New(Parse, target, operation, "parsing failed", cause)
}

// NewBrowserError creates a browser error.
func NewBrowserError(target, operation string, cause error) *ScanError {
	return New(Browser, target, operation, "browser operation failed", cause)
}

// NewStorageError creates a storage error.
func NewStorageError(target, operation string, cause error) *ScanError {
	return New(Storage, target, operation, "storage operation failed", cause)
}

// NewConfigError creates a configuration error.
func NewConfigError(field, message string) *ScanError {
	return New(Config, field, "validate", message, nil)
}

// NewCancelledError creates a cancelled error.
func NewCancelledError(target, operation string) *ScanError {
	return New(Cancelled, target, operation, "operation cancelled", context.Canceled)
}

// Categorize determines the error type from a generic error.
func Categorize(err error, target string) *ScanError {
	if err == nil {
		return nil
	}

	var scanErr *ScanError
	if errors.As(err, &scanErr) {
		return scanErr
	}

	if errors.Is(err, context.Canceled) {
		return NewCancelledError(target, "fetch")
	}

	if isTimeout(err) {
		return NewTimeoutError(target, "fetch", err)
	}

	if isNetworkError(err) {
		return NewNetworkError(target, "fetch", err)
	}

	return New(Unknown, target, "fetch", err.Error(), err)
}

// CategorizeHTTPStatus creates an error from an HTTP status code, or nil for
// non-error statuses.
func CategorizeHTTPStatus(statusCode int, target string) *ScanError {
	switch {
	case statusCode == 404:
		return NewNotFoundError(target)
	case statusCode == 429:
		return NewRateLimitError(target, 60)
	case statusCode >= 500:
		return NewServerError(target, statusCode, fmt.Sprintf("server returned %d", statusCode))
	case statusCode >= 400:
		return NewClientError(target, statusCode, fmt.Sprintf("client error %d", statusCode))
	default:
		return nil
	}
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	errStr := err.Error()
	return strings.Contains(errStr, "timeout") ||
		strings.Contains(errStr, "deadline exceeded")
}

func isNetworkError(err error) bool {
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}

	if errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.EHOSTUNREACH) ||
		errors.Is(err, syscall.ENETUNREACH) {
		return true
	}

	errStr := err.Error()
	return strings.Contains(errStr, "connection refused") ||
		strings.Contains(errStr, "connection reset") ||
		strings.Contains(errStr, "no such host") ||
		strings.Contains(errStr, "dial tcp")
}

// IsRetryable checks if an error should be retried.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	var scanErr *ScanError
	if errors.As(err, &scanErr) {
		return scanErr.Retryable
	}

	return isTimeout(err) || isNetworkError(err)
}

// GetStatusCode extracts the status code from an error.
func GetStatusCode(err error) int {
	var scanErr *ScanError
	if errors.As(err, &scanErr) {
		return scanErr.StatusCode
	}
	return 0
}

// GetErrorType extracts the error type from an error.
func GetErrorType(err error) ErrorType {
	var scanErr *ScanError
	if errors.As(err, &scanErr) {
		return scanErr.Type
	}
	return Unknown
}
