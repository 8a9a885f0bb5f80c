package shutdown

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/PentesterFlow/JSRecon/internal/logger"
)

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Logger = logger.Nop()
	cfg.Force = func() {}
	return cfg
}

func waitDone(t *testing.T, ctx context.Context) {
	t.Helper()
	select {
	case <-ctx.Done():
	case <-time.After(time.Second):
		t.Fatal("context was not cancelled")
	}
}

// =============================================================================
// Config Tests
// =============================================================================

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Timeout != 10*time.Second {
		t.Errorf("Timeout = %v, want 10s", cfg.Timeout)
	}
	if len(cfg.Signals) != 2 {
		t.Errorf("Signals length = %d, want 2", len(cfg.Signals))
	}
}

func TestNew_FillsDefaults(t *testing.T) {
	h := New(context.Background(), Config{})
	defer h.Close()

	if h.timeout != 10*time.Second {
		t.Errorf("timeout = %v, want 10s", h.timeout)
	}
	if h.force == nil || h.log == nil {
		t.Error("force and logger should be defaulted")
	}
}

// =============================================================================
// Signal Tests
// =============================================================================

func TestHandler_FirstSignalCancels(t *testing.T) {
	h := New(context.Background(), testConfig())
	defer h.Close()

	select {
	case <-h.Context().Done():
		t.Fatal("context should not be done initially")
	default:
	}

	h.Trigger()
	waitDone(t, h.Context())

	if !h.Interrupted() {
		t.Error("Interrupted() = false after a signal")
	}
}

func TestHandler_SecondSignalForces(t *testing.T) {
	forced := make(chan struct{})
	cfg := testConfig()
	cfg.Force = func() { close(forced) }

	h := New(context.Background(), cfg)
	defer h.Close()

	h.Trigger()
	waitDone(t, h.Context())
	h.Trigger()

	select {
	case <-forced:
	case <-time.After(time.Second):
		t.Fatal("second signal did not force an exit")
	}
}

func TestHandler_ParentCancel(t *testing.T) {
	parent, cancel := context.WithCancel(context.Background())
	h := New(parent, testConfig())
	defer h.Close()

	cancel()
	waitDone(t, h.Context())

	if h.Interrupted() {
		t.Error("parent cancellation is not an interrupt")
	}
}

// =============================================================================
// Close Tests
// =============================================================================

func TestHandler_CloseRunsStepsInReverse(t *testing.T) {
	h := New(context.Background(), testConfig())

	var order []string
	h.Register("first", func(ctx context.Context) error {
		order = append(order, "first")
		return nil
	})
	h.Register("second", func(ctx context.Context) error {
		order = append(order, "second")
		return nil
	})

	res := h.Close()

	if len(order) != 2 || order[0] != "second" || order[1] != "first" {
		t.Errorf("order = %v, want [second first]", order)
	}
	if res.HasErrors() {
		t.Errorf("Errors = %v", res.Errors)
	}
	waitDone(t, h.Context())
}

func TestHandler_CloseCollectsErrors(t *testing.T) {
	h := New(context.Background(), testConfig())

	wantErr := errors.New("flush failed")
	h.Register("ok", func(ctx context.Context) error { return nil })
	h.Register("bad", func(ctx context.Context) error { return wantErr })

	res := h.Close()

	if len(res.Errors) != 1 || !errors.Is(res.Errors[0], wantErr) {
		t.Errorf("Errors = %v, want [%v]", res.Errors, wantErr)
	}
}

func TestHandler_CloseTimeout(t *testing.T) {
	cfg := testConfig()
	cfg.Timeout = 50 * time.Millisecond
	h := New(context.Background(), cfg)

	h.Register("slow", func(ctx context.Context) error {
		time.Sleep(time.Second)
		return nil
	})

	res := h.Close()

	if len(res.Errors) != 1 {
		t.Fatalf("Errors = %v, want one timeout", res.Errors)
	}
	var te *TimeoutError
	if !errors.As(res.Errors[0], &te) || te.Step != "slow" {
		t.Errorf("error = %v, want timeout of slow", res.Errors[0])
	}
	if res.Elapsed >= time.Second {
		t.Errorf("Elapsed = %v, Close should not wait for the slow step", res.Elapsed)
	}
}

func TestHandler_CloseOnce(t *testing.T) {
	h := New(context.Background(), testConfig())

	var calls atomic.Int32
	h.Register("count", func(ctx context.Context) error {
		calls.Add(1)
		return nil
	})

	h.Close()
	h.Close()

	if calls.Load() != 1 {
		t.Errorf("step ran %d times, want 1", calls.Load())
	}
}

type closer struct {
	closed bool
	err    error
}

func (c *closer) Close() error {
	c.closed = true
	return c.err
}

func TestHandler_RegisterCloser(t *testing.T) {
	h := New(context.Background(), testConfig())

	c := &closer{err: errors.New("boom")}
	h.RegisterCloser("store", c)

	res := h.Close()

	if !c.closed {
		t.Error("closer was not closed")
	}
	if !res.HasErrors() {
		t.Error("closer error should be reported")
	}
}

func TestTimeoutError(t *testing.T) {
	err := &TimeoutError{Step: "writer"}
	if got := err.Error(); got != "cleanup step timed out: writer" {
		t.Errorf("Error() = %q", got)
	}
}
