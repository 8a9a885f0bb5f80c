// Package metrics collects counters for one scan run.
package metrics

import (
	"sync"
	"sync/atomic"
	"time"
)

// Recovery kinds counted by RecordRecovery.
const (
	RecoveryMalformedToken  = "malformed_token"
	RecoveryUnbalancedInput = "unbalanced_input"
	RecoveryDefaultMethod   = "default_method"
	RecoveryDuplicateBody   = "duplicate_body"
)

// responseBuckets are the upper bounds (ms) of the fetch latency histogram;
// the last bucket is open-ended.
var responseBuckets = [...]int64{50, 100, 250, 500, 1000, 2500, 5000, 10000}

// Collector collects and aggregates metrics. All methods are safe for
// concurrent use.
type Collector struct {
	// Source acquisition
	pagesFetched   atomic.Int64
	scriptsFetched atomic.Int64
	scriptsSkipped atomic.Int64
	bytesFetched   atomic.Int64
	retriesTotal   atomic.Int64

	// Analysis
	filesScanned  atomic.Int64
	bytesScanned  atomic.Int64
	factsApplied  atomic.Int64
	endpointsSeen atomic.Int64
	externalURLs  atomic.Int64

	responseTimesSum atomic.Int64
	responseTimesNum atomic.Int64
	responseHist     [len(responseBuckets) + 1]atomic.Int64

	mu          sync.RWMutex
	errorCounts map[string]int64
	recoveries  map[string]int64
	statusCodes map[int]int64

	startTime time.Time
}

// New creates a new metrics collector.
func New() *Collector {
	return &Collector{
		errorCounts: make(map[string]int64),
		recoveries:  make(map[string]int64),
		statusCodes: make(map[int]int64),
		startTime:   time.Now(),
	}
}

// RecordPageFetched counts a fetched HTML page.
func (c *Collector) RecordPageFetched() {
	c.pagesFetched.Add(1)
}

// RecordScriptFetched counts a downloaded script and its size.
func (c *Collector) RecordScriptFetched(bytes int64) {
	c.scriptsFetched.Add(1)
	c.bytesFetched.Add(bytes)
}

// RecordScriptSkipped counts a script URL that was already seen.
func (c *Collector) RecordScriptSkipped() {
	c.scriptsSkipped.Add(1)
}

// RecordRetry records a retry attempt.
func (c *Collector) RecordRetry() {
	c.retriesTotal.Add(1)
}

// RecordFileScanned counts an analyzed source file.
func (c *Collector) RecordFileScanned(bytes int) {
	c.filesScanned.Add(1)
	c.bytesScanned.Add(int64(bytes))
}

// RecordFactApplied counts a fact that changed the aggregator.
func (c *Collector) RecordFactApplied() {
	c.factsApplied.Add(1)
}

// RecordEndpoint counts a newly created endpoint record.
func (c *Collector) RecordEndpoint() {
	c.endpointsSeen.Add(1)
}

// RecordExternalURL counts an absolute URL pointing outside the backend.
func (c *Collector) RecordExternalURL() {
	c.externalURLs.Add(1)
}

// RecordRecovery counts one best-effort recovery by kind.
func (c *Collector) RecordRecovery(kind string) {
	c.mu.Lock()
	c.recoveries[kind]++
	c.mu.Unlock()
}

// RecordError records an error by type.
func (c *Collector) RecordError(errorType string) {
	c.mu.Lock()
	c.errorCounts[errorType]++
	c.mu.Unlock()
}

// RecordStatusCode records an HTTP status code.
func (c *Collector) RecordStatusCode(code int) {
	c.mu.Lock()
	c.statusCodes[code]++
	c.mu.Unlock()
}

// RecordResponseTime records a fetch latency.
func (c *Collector) RecordResponseTime(d time.Duration) {
	ms := d.Milliseconds()
	c.responseTimesSum.Add(ms)
	c.responseTimesNum.Add(1)
	c.responseHist[bucket(ms)].Add(1)
}

func bucket(ms int64) int {
	for i, upper := range responseBuckets {
		if ms < upper {
			return i
		}
	}
	return len(responseBuckets)
}

// AverageResponseTime returns the mean fetch latency.
func (c *Collector) AverageResponseTime() time.Duration {
	num := c.responseTimesNum.Load()
	if num == 0 {
		return 0
	}
	return time.Duration(c.responseTimesSum.Load()/num) * time.Millisecond
}

// Snapshot returns a point-in-time snapshot of all metrics.
func (c *Collector) Snapshot() *Snapshot {
	s := &Snapshot{
		Timestamp:           time.Now(),
		Elapsed:             time.Since(c.startTime),
		PagesFetched:        c.pagesFetched.Load(),
		ScriptsFetched:      c.scriptsFetched.Load(),
		ScriptsSkipped:      c.scriptsSkipped.Load(),
		BytesFetched:        c.bytesFetched.Load(),
		RetriesTotal:        c.retriesTotal.Load(),
		FilesScanned:        c.filesScanned.Load(),
		BytesScanned:        c.bytesScanned.Load(),
		FactsApplied:        c.factsApplied.Load(),
		Endpoints:           c.endpointsSeen.Load(),
		ExternalURLs:        c.externalURLs.Load(),
		AverageResponseTime: c.AverageResponseTime(),
		ErrorCounts:         make(map[string]int64),
		Recoveries:          make(map[string]int64),
		StatusCodes:         make(map[int]int64),
		ResponseTimeHist:    make([]int64, len(c.responseHist)),
	}

	c.mu.RLock()
	for k, v := range c.errorCounts {
		s.ErrorCounts[k] = v
		s.ErrorsTotal += v
	}
	for k, v := range c.recoveries {
		s.Recoveries[k] = v
		s.RecoveriesTotal += v
	}
	for k, v := range c.statusCodes {
		s.StatusCodes[k] = v
	}
	c.mu.RUnlock()

	for i := range c.responseHist {
		s.ResponseTimeHist[i] = c.responseHist[i].Load()
	}

	return s
}

// Snapshot represents a point-in-time view of metrics.
type Snapshot struct {
	Timestamp           time.Time        `json:"timestamp"`
	Elapsed             time.Duration    `json:"elapsed"`
	PagesFetched        int64            `json:"pages_fetched"`
	ScriptsFetched      int64            `json:"scripts_fetched"`
	ScriptsSkipped      int64            `json:"scripts_skipped"`
	BytesFetched        int64            `json:"bytes_fetched"`
	RetriesTotal        int64            `json:"retries_total"`
	FilesScanned        int64            `json:"files_scanned"`
	BytesScanned        int64            `json:"bytes_scanned"`
	FactsApplied        int64            `json:"facts_applied"`
	Endpoints           int64            `json:"endpoints"`
	ExternalURLs        int64            `json:"external_urls"`
	ErrorsTotal         int64            `json:"errors_total"`
	RecoveriesTotal     int64            `json:"recoveries_total"`
	AverageResponseTime time.Duration    `json:"average_response_time"`
	ErrorCounts         map[string]int64 `json:"error_counts"`
	Recoveries          map[string]int64 `json:"recoveries"`
	StatusCodes         map[int]int64    `json:"status_codes"`
	ResponseTimeHist    []int64          `json:"response_time_histogram"`
}

// Summary returns a flat map suitable for a stats log line.
func (s *Snapshot) Summary() map[string]interface{} {
	return map[string]interface{}{
		"elapsed":              s.Elapsed.Round(time.Millisecond).String(),
		"pages_fetched":        s.PagesFetched,
		"scripts_fetched":      s.ScriptsFetched,
		"files_scanned":        s.FilesScanned,
		"bytes_scanned":        s.BytesScanned,
		"facts_applied":        s.FactsApplied,
		"endpoints":            s.Endpoints,
		"external_urls":        s.ExternalURLs,
		"errors_total":         s.ErrorsTotal,
		"recoveries_total":     s.RecoveriesTotal,
		"avg_response_time_ms": s.AverageResponseTime.Milliseconds(),
	}
}
