package errors

import (
	"context"
	"math"
	"math/rand"
	"sync"
	"time"
)

// RetryConfig configures retry behavior.
type RetryConfig struct {
	MaxRetries     int           // 0 disables retries
	InitialDelay   time.Duration // delay before the first retry
	MaxDelay       time.Duration
	Multiplier     float64 // exponential backoff factor
	Jitter         float64 // random jitter factor, 0 to 1
	RetryableTypes []ErrorType
}

// DefaultRetryConfig returns sensible defaults.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:   3,
		InitialDelay: 500 * time.Millisecond,
		MaxDelay:     30 * time.Second,
		Multiplier:   2.0,
		Jitter:       0.2,
		RetryableTypes: []ErrorType{
			Network,
			Timeout,
			RateLimit,
			ServerError,
		},
	}
}

// Retrier implements retry logic with exponential backoff.
type Retrier struct {
	config RetryConfig

	mu  sync.Mutex
	rng *rand.Rand

	onRetry func(attempt int, err error, delay time.Duration)
}

// NewRetrier creates a new retrier.
func NewRetrier(config RetryConfig) *Retrier {
	if config.Multiplier < 1 {
		config.Multiplier = 1
	}
	return &Retrier{
		config: config,
		rng:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// NewDefaultRetrier creates a retrier with default configuration.
func NewDefaultRetrier() *Retrier {
	return NewRetrier(DefaultRetryConfig())
}

// OnRetry registers a callback invoked before each retry sleep.
func (r *Retrier) OnRetry(fn func(attempt int, err error, delay time.Duration)) {
	r.onRetry = fn
}

// RetryFunc is a function that can be retried.
type RetryFunc func(ctx context.Context) error

// RetryResult holds the result of a retry operation.
type RetryResult struct {
	Attempts  int
	LastError error
	Duration  time.Duration
	Success   bool
}

// Do runs fn until it succeeds, returns a non-retryable error, exhausts
// MaxRetries, or ctx is done.
func (r *Retrier) Do(ctx context.Context, operation, target string, fn RetryFunc) *RetryResult {
	result := &RetryResult{}
	start := time.Now()
	delay := r.config.InitialDelay

	for attempt := 0; ; attempt++ {
		result.Attempts++

		err := fn(ctx)
		if err == nil {
			result.Success = true
			break
		}
		result.LastError = err

		if ctx.Err() != nil {
			result.LastError = NewCancelledError(target, operation)
			break
		}
		if attempt >= r.config.MaxRetries || !r.shouldRetry(err) {
			break
		}

		wait := r.jitter(delay)
		if r.onRetry != nil {
			r.onRetry(attempt+1, err, wait)
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			result.LastError = NewCancelledError(target, operation)
			result.Duration = time.Since(start)
			return result
		case <-timer.C:
		}

		delay = r.nextDelay(delay)
	}

	result.Duration = time.Since(start)
	return result
}

func (r *Retrier) shouldRetry(err error) bool {
	errType := GetErrorType(err)
	for _, t := range r.config.RetryableTypes {
		if errType == t {
			return true
		}
	}
	return IsRetryable(err)
}

func (r *Retrier) jitter(base time.Duration) time.Duration {
	if r.config.Jitter <= 0 {
		return base
	}

	r.mu.Lock()
	f := r.rng.Float64()
	r.mu.Unlock()

	spread := r.config.Jitter * float64(base)
	return time.Duration(float64(base) + (f*2-1)*spread)
}

func (r *Retrier) nextDelay(current time.Duration) time.Duration {
	next := time.Duration(float64(current) * r.config.Multiplier)
	if r.config.MaxDelay > 0 && next > r.config.MaxDelay {
		return r.config.MaxDelay
	}
	return next
}

// DoWithResult executes a function that returns a value and error.
func DoWithResult[T any](ctx context.Context, r *Retrier, operation, target string, fn func(ctx context.Context) (T, error)) (T, *RetryResult) {
	var result T
	retryResult := r.Do(ctx, operation, target, func(ctx context.Context) error {
		v, err := fn(ctx)
		if err == nil {
			result = v
		}
		return err
	})
	return result, retryResult
}

// BackoffDuration returns the delay before retry number attempt.
func BackoffDuration(attempt int, initial, max time.Duration, multiplier float64) time.Duration {
	if attempt <= 0 {
		return initial
	}

	delay := float64(initial) * math.Pow(multiplier, float64(attempt-1))
	if delay > float64(max) {
		return max
	}

	return time.Duration(delay)
}
