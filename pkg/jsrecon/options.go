package jsrecon

import (
	"time"

	"github.com/PentesterFlow/JSRecon/internal/fetch"
	"github.com/PentesterFlow/JSRecon/internal/logger"
	"github.com/PentesterFlow/JSRecon/internal/metrics"
	"github.com/PentesterFlow/JSRecon/internal/progress"
	"github.com/PentesterFlow/JSRecon/internal/state"
)

// Option is a functional option for configuring the Scanner.
type Option func(*Scanner) error

// WithConfig sets the entire configuration.
func WithConfig(config *Config) Option {
	return func(s *Scanner) error {
		s.config = config
		return nil
	}
}

// WithTarget sets the target URL.
func WithTarget(url string) Option {
	return func(s *Scanner) error {
		s.config.Target = url
		return nil
	}
}

// WithWorkers sets the number of concurrent workers.
func WithWorkers(n int) Option {
	return func(s *Scanner) error {
		if n < 1 {
			n = 1
		}
		s.config.Workers = n
		return nil
	}
}

// WithTimeout sets the request timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(s *Scanner) error {
		s.config.Timeout = timeout
		return nil
	}
}

// WithRender enables or disables headless browser rendering.
func WithRender(render bool) Option {
	return func(s *Scanner) error {
		s.config.Fetch.Render = render
		return nil
	}
}

// WithAPIPrefixes replaces the path prefixes that mark backend endpoints.
func WithAPIPrefixes(prefixes ...string) Option {
	return func(s *Scanner) error {
		s.config.Scan.APIPrefixes = prefixes
		return nil
	}
}

// WithLogger sets a custom logger.
func WithLogger(l *logger.Logger) Option {
	return func(s *Scanner) error {
		s.logger = l
		return nil
	}
}

// WithMetrics sets a custom metrics collector.
func WithMetrics(m *metrics.Collector) Option {
	return func(s *Scanner) error {
		s.metrics = m
		return nil
	}
}

// WithProgress shows a progress bar while downloading and analyzing.
func WithProgress(p *progress.Display) Option {
	return func(s *Scanner) error {
		s.progress = p
		return nil
	}
}

// WithStore persists runs to store and seeds each run from the previous run
// of the same target. The caller keeps ownership of store.
func WithStore(store state.Store) Option {
	return func(s *Scanner) error {
		s.store = store
		return nil
	}
}

// WithRenderer uses r to render pages instead of launching a browser.
func WithRenderer(r fetch.Renderer) Option {
	return func(s *Scanner) error {
		s.renderer = r
		return nil
	}
}
