package httpclient

import (
	"context"
	"sync"

	"golang.org/x/time/rate"
)

// minHostRate is the floor SlowDown never goes below.
const minHostRate = 0.5

// Limiter paces requests with a global bucket plus one bucket per host.
// A non-positive rate disables limiting.
type Limiter struct {
	mu           sync.Mutex
	global       *rate.Limiter
	perHost      map[string]*rate.Limiter
	defaultRate  rate.Limit
	defaultBurst int
}

// NewLimiter creates a limiter allowing requestsPerSecond with the given
// burst, both globally and per host.
func NewLimiter(requestsPerSecond float64, burst int) *Limiter {
	limit := rate.Limit(requestsPerSecond)
	if requestsPerSecond <= 0 {
		limit = rate.Inf
	}
	if burst < 1 {
		burst = 1
	}
	return &Limiter{
		global:       rate.NewLimiter(limit, burst),
		perHost:      make(map[string]*rate.Limiter),
		defaultRate:  limit,
		defaultBurst: burst,
	}
}

func (l *Limiter) host(host string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	hl, ok := l.perHost[host]
	if !ok {
		hl = rate.NewLimiter(l.defaultRate, l.defaultBurst)
		l.perHost[host] = hl
	}
	return hl
}

// Wait blocks until a request to host is allowed or ctx is done.
func (l *Limiter) Wait(ctx context.Context, host string) error {
	if err := l.global.Wait(ctx); err != nil {
		return err
	}
	return l.host(host).Wait(ctx)
}

// SlowDown halves the rate for host, as after a 429 response.
func (l *Limiter) SlowDown(host string) {
	hl := l.host(host)
	current := hl.Limit()
	if current == rate.Inf {
		current = rate.Limit(10)
	}
	next := current / 2
	if next < minHostRate {
		next = minHostRate
	}
	hl.SetLimit(next)
}

// HostRate returns the current rate for host.
func (l *Limiter) HostRate(host string) float64 {
	return float64(l.host(host).Limit())
}

// Hosts returns how many hosts have their own bucket.
func (l *Limiter) Hosts() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.perHost)
}
