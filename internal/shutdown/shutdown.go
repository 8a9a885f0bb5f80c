// Package shutdown stops a run cleanly on SIGINT or SIGTERM. The first
// signal cancels the run's context so the pipeline can return what it has
// and the caller can still write partial results; a second signal forces
// the process to exit. Cleanup steps run in reverse registration order.
package shutdown

import (
	"context"
	"io"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/PentesterFlow/JSRecon/internal/logger"
)

// ExitCode is the status used when a second signal forces an exit.
const ExitCode = 130

// Step is one cleanup action run on Close.
type Step func(ctx context.Context) error

// Config holds shutdown configuration.
type Config struct {
	// Timeout bounds all cleanup steps together
	Timeout time.Duration
	Signals []os.Signal
	Logger  *logger.Logger

	// Force is called on the second signal. Defaults to os.Exit(ExitCode).
	Force func()
}

// DefaultConfig returns default configuration.
func DefaultConfig() Config {
	return Config{
		Timeout: 10 * time.Second,
		Signals: []os.Signal{syscall.SIGINT, syscall.SIGTERM},
	}
}

// Handler cancels a run on signals and runs its cleanup steps.
type Handler struct {
	mu    sync.Mutex
	steps []namedStep

	interrupted atomic.Bool
	closed      atomic.Bool
	timeout     time.Duration

	ctx    context.Context
	cancel context.CancelFunc

	sigChan chan os.Signal
	stop    chan struct{}
	log     *logger.Logger
	force   func()
}

type namedStep struct {
	name string
	fn   Step
}

// New creates a handler whose context derives from parent and starts
// listening for signals.
func New(parent context.Context, cfg Config) *Handler {
	def := DefaultConfig()
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if len(cfg.Signals) == 0 {
		cfg.Signals = def.Signals
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.Nop()
	}
	if cfg.Force == nil {
		cfg.Force = func() { os.Exit(ExitCode) }
	}

	ctx, cancel := context.WithCancel(parent)
	h := &Handler{
		timeout: cfg.Timeout,
		ctx:     ctx,
		cancel:  cancel,
		sigChan: make(chan os.Signal, 2),
		stop:    make(chan struct{}),
		log:     cfg.Logger.WithComponent("shutdown"),
		force:   cfg.Force,
	}

	signal.Notify(h.sigChan, cfg.Signals...)
	go h.listen()

	return h
}

func (h *Handler) listen() {
	for {
		select {
		case sig := <-h.sigChan:
			if h.interrupted.CompareAndSwap(false, true) {
				h.log.Warnf("received %v, stopping and writing partial results (repeat to exit now)", sig)
				h.cancel()
				continue
			}
			h.log.Warnf("received %v again, exiting", sig)
			h.force()
			return
		case <-h.stop:
			return
		}
	}
}

// Context returns the run context. It is cancelled on the first signal.
func (h *Handler) Context() context.Context {
	return h.ctx
}

// Interrupted reports whether a signal cancelled the run.
func (h *Handler) Interrupted() bool {
	return h.interrupted.Load()
}

// Register adds a cleanup step.
func (h *Handler) Register(name string, fn Step) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.steps = append(h.steps, namedStep{name: name, fn: fn})
}

// RegisterCloser adds a step that closes c.
func (h *Handler) RegisterCloser(name string, c io.Closer) {
	h.Register(name, func(context.Context) error {
		return c.Close()
	})
}

// Trigger delivers a shutdown signal as if it came from the OS.
func (h *Handler) Trigger() {
	select {
	case h.sigChan <- syscall.SIGTERM:
	default:
	}
}

// Close stops listening, cancels the context and runs the cleanup steps in
// reverse order. Only the first call does anything.
func (h *Handler) Close() Result {
	if !h.closed.CompareAndSwap(false, true) {
		return Result{}
	}

	start := time.Now()
	signal.Stop(h.sigChan)
	close(h.stop)
	h.cancel()

	ctx, cancel := context.WithTimeout(context.Background(), h.timeout)
	defer cancel()

	h.mu.Lock()
	steps := make([]namedStep, len(h.steps))
	copy(steps, h.steps)
	h.mu.Unlock()

	var res Result
	for i := len(steps) - 1; i >= 0; i-- {
		if err := run(ctx, steps[i]); err != nil {
			h.log.Warnf("cleanup %s: %v", steps[i].name, err)
			res.Errors = append(res.Errors, err)
		}
	}
	res.Elapsed = time.Since(start)

	h.log.Debugf("cleanup finished in %v with %d errors", res.Elapsed, len(res.Errors))
	return res
}

func run(ctx context.Context, step namedStep) error {
	done := make(chan error, 1)
	go func() {
		done <- step.fn(ctx)
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return &TimeoutError{Step: step.name}
	}
}

// TimeoutError is returned when a step does not finish in time.
type TimeoutError struct {
	Step string
}

func (e *TimeoutError) Error() string {
	return "cleanup step timed out: " + e.Step
}

// Result holds the outcome of Close.
type Result struct {
	Elapsed time.Duration
	Errors  []error
}

// HasErrors returns whether any step failed.
func (r Result) HasErrors() bool {
	return len(r.Errors) > 0
}
