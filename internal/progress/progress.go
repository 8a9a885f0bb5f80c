// Package progress draws a one-line progress bar on the terminal while scripts
// are downloaded and analyzed.
package progress

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

const barWidth = 30

// Display manages a progress bar for one phase at a time.
type Display struct {
	mu      sync.Mutex
	out     io.Writer
	started bool
	stopped bool

	label     string
	total     atomic.Int64
	done      atomic.Int64
	endpoints atomic.Int64
	errors    atomic.Int64

	startTime time.Time
	lastLine  string
}

// New creates a progress display writing to stderr.
func New() *Display {
	return NewWithWriter(os.Stderr)
}

// NewWithWriter creates a progress display writing to w.
func NewWithWriter(w io.Writer) *Display {
	return &Display{out: w}
}

// Start begins a phase with a known number of steps. Starting a new phase
// resets the counters.
func (d *Display) Start(label string, total int) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.started && !d.stopped {
		fmt.Fprintln(d.out)
	}

	d.started = true
	d.stopped = false
	d.label = label
	d.total.Store(int64(total))
	d.done.Store(0)
	d.startTime = time.Now()
	d.lastLine = ""
}

// Increment marks one step done and redraws.
func (d *Display) Increment() {
	d.done.Add(1)
	d.render()
}

// AddTotal grows the step count when work is discovered mid-phase.
func (d *Display) AddTotal(n int) {
	d.total.Add(int64(n))
	d.render()
}

// SetEndpoints updates the endpoint counter shown on the line.
func (d *Display) SetEndpoints(n int) {
	d.endpoints.Store(int64(n))
}

// RecordError bumps the error counter.
func (d *Display) RecordError() {
	d.errors.Add(1)
}

func (d *Display) render() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.started || d.stopped {
		return
	}

	done := d.done.Load()
	total := d.total.Load()
	percent := 100
	if total > 0 {
		percent = int(float64(done) / float64(total) * 100)
		if percent > 100 {
			percent = 100
		}
	}

	filled := percent * barWidth / 100
	bar := strings.Repeat("█", filled) + strings.Repeat("░", barWidth-filled)

	line := fmt.Sprintf("\r%s [%s] %3d%% | %d/%d | Endpoints: %d | Errors: %d | %s",
		d.label, bar, percent, done, total, d.endpoints.Load(), d.errors.Load(),
		formatDuration(time.Since(d.startTime)))

	if len(line) < len(d.lastLine) {
		fmt.Fprint(d.out, "\r"+strings.Repeat(" ", len(d.lastLine)))
	}
	fmt.Fprint(d.out, line)
	d.lastLine = line
}

// Stop ends the current phase.
func (d *Display) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped || !d.started {
		return
	}
	d.stopped = true
	fmt.Fprintln(d.out)
}

// Summary is what PrintSummary reports.
type Summary struct {
	Target       string
	Duration     time.Duration
	Files        int
	Endpoints    int
	WithParams   int
	WithBodies   int
	ExternalURLs int
	Errors       int
}

// PrintSummary writes the end-of-run box.
func PrintSummary(w io.Writer, s Summary) {
	fmt.Fprintln(w)
	fmt.Fprintln(w, "╔══════════════════════════════════════════════════════════════╗")
	fmt.Fprintln(w, "║                        Scan Complete                         ║")
	fmt.Fprintln(w, "╚══════════════════════════════════════════════════════════════╝")
	fmt.Fprintln(w)
	if s.Target != "" {
		fmt.Fprintf(w, "  Target:              %s\n", truncate(s.Target, 50))
	}
	fmt.Fprintf(w, "  Duration:            %s\n", formatDuration(s.Duration))
	fmt.Fprintf(w, "  Files Analyzed:      %d\n", s.Files)
	fmt.Fprintf(w, "  API Endpoints:       %d\n", s.Endpoints)
	fmt.Fprintf(w, "  With Parameters:     %d\n", s.WithParams)
	fmt.Fprintf(w, "  With Request Bodies: %d\n", s.WithBodies)
	fmt.Fprintf(w, "  External URLs:       %d\n", s.ExternalURLs)
	fmt.Fprintf(w, "  Errors:              %d\n", s.Errors)
	fmt.Fprintln(w)
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}

func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	s := d / time.Second

	if h > 0 {
		return fmt.Sprintf("%dh%02dm%02ds", h, m, s)
	}
	if m > 0 {
		return fmt.Sprintf("%dm%02ds", m, s)
	}
	return fmt.Sprintf("%ds", s)
}
