package errors

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"testing"
	"time"
)

// =============================================================================
// ErrorType Tests
// =============================================================================

func TestErrorType_String(t *testing.T) {
	tests := []struct {
		errType ErrorType
		want    string
	}{
		{Unknown, "unknown"},
		{Network, "network"},
		{Timeout, "timeout"},
		{RateLimit, "rate_limit"},
		{NotFound, "not_found"},
		{ServerError, "server_error"},
		{ClientError, "client_error"},
		{Parse, "parse"},
		{Browser, "browser"},
		{Storage, "storage"},
		{Config, "config"},
		{Cancelled, "cancelled"},
		{ErrorType(99), "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := tt.errType.String(); got != tt.want {
				t.Errorf("String() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestErrorType_IsRetryable(t *testing.T) {
	tests := []struct {
		errType   ErrorType
		retryable bool
	}{
		{Network, true},
		{Timeout, true},
		{RateLimit, true},
		{ServerError, true},
		{NotFound, false},
		{ClientError, false},
		{Parse, false},
		{Storage, false},
		{Config, false},
		{Cancelled, false},
		{Unknown, false},
	}

	for _, tt := range tests {
		t.Run(tt.errType.String(), func(t *testing.T) {
			if got := tt.errType.IsRetryable(); got != tt.retryable {
				t.Errorf("IsRetryable() = %v, want %v", got, tt.retryable)
			}
		})
	}
}

// =============================================================================
// ScanError Tests
// =============================================================================

func TestScanError_Error(t *testing.T) {
	err := New(Parse, "app.js", "read", "bad input", nil)
	want := "parse error during read on app.js: bad input"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}

	wrapped := NewStorageError("runs.db", "save", fmt.Errorf("disk full"))
	if !strings.Contains(wrapped.Error(), "caused by: disk full") {
		t.Errorf("Error() = %q, want cause included", wrapped.Error())
	}
}

func TestScanError_UnwrapAndIs(t *testing.T) {
	cause := errors.New("root")
	err := NewBrowserError("https://x", "navigate", cause)

	if !errors.Is(err, cause) {
		t.Error("errors.Is(err, cause) = false, want true")
	}
	if !errors.Is(err, &ScanError{Type: Browser}) {
		t.Error("errors.Is(err, Browser) = false, want true")
	}
	if errors.Is(err, &ScanError{Type: Network}) {
		t.Error("errors.Is(err, Network) = true, want false")
	}

	wrapped := fmt.Errorf("scan: %w", err)
	if GetErrorType(wrapped) != Browser {
		t.Errorf("GetErrorType(wrapped) = %v, want browser", GetErrorType(wrapped))
	}
}

func TestConstructors(t *testing.T) {
	tests := []struct {
		name       string
		err        *ScanError
		wantType   ErrorType
		wantStatus int
		retryable  bool
	}{
		{"network", NewNetworkError("u", "fetch", nil), Network, 0, true},
		{"timeout", NewTimeoutError("u", "fetch", nil), Timeout, 0, true},
		{"rate limit", NewRateLimitError("u", 30), RateLimit, 429, true},
		{"not found", NewNotFoundError("u"), NotFound, 404, false},
		{"server", NewServerError("u", 503, "unavailable"), ServerError, 503, true},
		{"client", NewClientError("u", 403, "forbidden"), ClientError, 403, false},
		{"parse", NewParseError("u", "html", nil), Parse, 0, false},
		{"browser", NewBrowserError("u", "launch", nil), Browser, 0, false},
		{"storage", NewStorageError("db", "open", nil), Storage, 0, false},
		{"config", NewConfigError("workers", "must be positive"), Config, 0, false},
		{"cancelled", NewCancelledError("u", "fetch"), Cancelled, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err.Type != tt.wantType {
				t.Errorf("Type = %v, want %v", tt.err.Type, tt.wantType)
			}
			if tt.err.StatusCode != tt.wantStatus {
				t.Errorf("StatusCode = %d, want %d", tt.err.StatusCode, tt.wantStatus)
			}
			if tt.err.Retryable != tt.retryable {
				t.Errorf("Retryable = %v, want %v", tt.err.Retryable, tt.retryable)
			}
		})
	}

	if !errors.Is(NewCancelledError("u", "fetch"), context.Canceled) {
		t.Error("cancelled error should wrap context.Canceled")
	}
}

// =============================================================================
// Categorize Tests
// =============================================================================

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o wait" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

func TestCategorize(t *testing.T) {
	existing := NewNotFoundError("u")

	tests := []struct {
		name string
		err  error
		want ErrorType
	}{
		{"scan error kept", existing, NotFound},
		{"context canceled", context.Canceled, Cancelled},
		{"wrapped canceled", fmt.Errorf("get: %w", context.Canceled), Cancelled},
		{"deadline", context.DeadlineExceeded, Timeout},
		{"net timeout", timeoutErr{}, Timeout},
		{"op error", &net.OpError{Op: "dial", Err: errors.New("refused")}, Network},
		{"dns error", &net.DNSError{Err: "no such host", Name: "x"}, Network},
		{"message", errors.New("dial tcp 1.2.3.4:80: connection refused"), Network},
		{"unknown", errors.New("something odd"), Unknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Categorize(tt.err, "u")
			if got.Type != tt.want {
				t.Errorf("Categorize() type = %v, want %v", got.Type, tt.want)
			}
		})
	}

	if Categorize(nil, "u") != nil {
		t.Error("Categorize(nil) should be nil")
	}
	if Categorize(existing, "other") != existing {
		t.Error("Categorize() should return an existing ScanError unchanged")
	}
}

func TestCategorizeHTTPStatus(t *testing.T) {
	tests := []struct {
		status  int
		want    ErrorType
		wantNil bool
	}{
		{200, Unknown, true},
		{301, Unknown, true},
		{401, ClientError, false},
		{403, ClientError, false},
		{404, NotFound, false},
		{429, RateLimit, false},
		{500, ServerError, false},
		{503, ServerError, false},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.status), func(t *testing.T) {
			got := CategorizeHTTPStatus(tt.status, "u")
			if tt.wantNil {
				if got != nil {
					t.Errorf("CategorizeHTTPStatus(%d) = %v, want nil", tt.status, got)
				}
				return
			}
			if got == nil || got.Type != tt.want {
				t.Fatalf("CategorizeHTTPStatus(%d) = %v, want %v", tt.status, got, tt.want)
			}
			if got.StatusCode != tt.status {
				t.Errorf("StatusCode = %d, want %d", got.StatusCode, tt.status)
			}
		})
	}
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"server", NewServerError("u", 502, "bad gateway"), true},
		{"not found", NewNotFoundError("u"), false},
		{"plain timeout", timeoutErr{}, true},
		{"plain other", errors.New("nope"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsRetryable(tt.err); got != tt.want {
				t.Errorf("IsRetryable() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestGetStatusCode(t *testing.T) {
	if got := GetStatusCode(NewServerError("u", 502, "x")); got != 502 {
		t.Errorf("GetStatusCode() = %d, want 502", got)
	}
	if got := GetStatusCode(errors.New("x")); got != 0 {
		t.Errorf("GetStatusCode(plain) = %d, want 0", got)
	}
	if got := GetErrorType(errors.New("x")); got != Unknown {
		t.Errorf("GetErrorType(plain) = %v, want unknown", got)
	}
}

// =============================================================================
// Retrier Tests
// =============================================================================

func fastRetryConfig(maxRetries int) RetryConfig {
	return RetryConfig{
		MaxRetries:     maxRetries,
		InitialDelay:   time.Millisecond,
		MaxDelay:       10 * time.Millisecond,
		Multiplier:     2.0,
		RetryableTypes: []ErrorType{Network},
	}
}

func TestDefaultRetryConfig(t *testing.T) {
	cfg := DefaultRetryConfig()

	if cfg.MaxRetries != 3 {
		t.Errorf("MaxRetries = %d, want 3", cfg.MaxRetries)
	}
	if cfg.InitialDelay != 500*time.Millisecond {
		t.Errorf("InitialDelay = %v, want 500ms", cfg.InitialDelay)
	}
	if len(cfg.RetryableTypes) == 0 {
		t.Error("RetryableTypes should not be empty")
	}
}

func TestRetrier_Do(t *testing.T) {
	tests := []struct {
		name         string
		maxRetries   int
		failures     int
		failWith     func() error
		wantSuccess  bool
		wantAttempts int
	}{
		{
			name:         "first try",
			maxRetries:   2,
			failures:     0,
			wantSuccess:  true,
			wantAttempts: 1,
		},
		{
			name:         "recovers after retries",
			maxRetries:   2,
			failures:     2,
			failWith:     func() error { return NewNetworkError("u", "fetch", nil) },
			wantSuccess:  true,
			wantAttempts: 3,
		},
		{
			name:         "gives up after max retries",
			maxRetries:   2,
			failures:     10,
			failWith:     func() error { return NewNetworkError("u", "fetch", nil) },
			wantSuccess:  false,
			wantAttempts: 3,
		},
		{
			name:         "non retryable stops at once",
			maxRetries:   3,
			failures:     10,
			failWith:     func() error { return NewNotFoundError("u") },
			wantSuccess:  false,
			wantAttempts: 1,
		},
		{
			name:         "retries disabled",
			maxRetries:   0,
			failures:     10,
			failWith:     func() error { return NewNetworkError("u", "fetch", nil) },
			wantSuccess:  false,
			wantAttempts: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewRetrier(fastRetryConfig(tt.maxRetries))
			calls := 0

			result := r.Do(context.Background(), "fetch", "u", func(ctx context.Context) error {
				calls++
				if calls <= tt.failures {
					return tt.failWith()
				}
				return nil
			})

			if result.Success != tt.wantSuccess {
				t.Errorf("Success = %v, want %v", result.Success, tt.wantSuccess)
			}
			if result.Attempts != tt.wantAttempts {
				t.Errorf("Attempts = %d, want %d", result.Attempts, tt.wantAttempts)
			}
			if !tt.wantSuccess && result.LastError == nil {
				t.Error("LastError should be set")
			}
		})
	}
}

func TestRetrier_OnRetry(t *testing.T) {
	r := NewRetrier(fastRetryConfig(2))
	var seen []int
	r.OnRetry(func(attempt int, err error, delay time.Duration) {
		seen = append(seen, attempt)
	})

	r.Do(context.Background(), "fetch", "u", func(ctx context.Context) error {
		return NewNetworkError("u", "fetch", nil)
	})

	if len(seen) != 2 || seen[0] != 1 || seen[1] != 2 {
		t.Errorf("OnRetry attempts = %v, want [1 2]", seen)
	}
}

func TestRetrier_Do_ContextCancellation(t *testing.T) {
	r := NewRetrier(RetryConfig{
		MaxRetries:     5,
		InitialDelay:   100 * time.Millisecond,
		MaxDelay:       time.Second,
		Multiplier:     2.0,
		RetryableTypes: []ErrorType{Network},
	})

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	result := r.Do(ctx, "fetch", "u", func(ctx context.Context) error {
		return NewNetworkError("u", "fetch", nil)
	})

	if result.Success {
		t.Error("Should fail on cancellation")
	}
	if GetErrorType(result.LastError) != Cancelled {
		t.Errorf("LastError type = %v, want cancelled", GetErrorType(result.LastError))
	}
}

func TestDoWithResult(t *testing.T) {
	r := NewRetrier(fastRetryConfig(2))
	calls := 0

	got, result := DoWithResult(context.Background(), r, "fetch", "u", func(ctx context.Context) (string, error) {
		calls++
		if calls == 1 {
			return "", NewTimeoutError("u", "fetch", nil)
		}
		return "body", nil
	})

	if !result.Success || got != "body" {
		t.Errorf("DoWithResult() = (%q, %+v), want (body, success)", got, result)
	}
}

func TestBackoffDuration(t *testing.T) {
	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{0, 100 * time.Millisecond},
		{1, 100 * time.Millisecond},
		{2, 200 * time.Millisecond},
		{3, 400 * time.Millisecond},
		{10, time.Second},
	}

	for _, tt := range tests {
		got := BackoffDuration(tt.attempt, 100*time.Millisecond, time.Second, 2.0)
		if got != tt.want {
			t.Errorf("BackoffDuration(%d) = %v, want %v", tt.attempt, got, tt.want)
		}
	}
}
