// Package jsrecon reconstructs a backend API from the JavaScript a web
// application ships: it collects the scripts of a target (or reads them from
// disk), extracts every API call site, and merges the findings into one
// record per endpoint.
package jsrecon

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/PentesterFlow/JSRecon/internal/aggregate"
	"github.com/PentesterFlow/JSRecon/internal/browser"
	"github.com/PentesterFlow/JSRecon/internal/errors"
	"github.com/PentesterFlow/JSRecon/internal/fetch"
	"github.com/PentesterFlow/JSRecon/internal/httpclient"
	"github.com/PentesterFlow/JSRecon/internal/logger"
	"github.com/PentesterFlow/JSRecon/internal/metrics"
	"github.com/PentesterFlow/JSRecon/internal/output"
	"github.com/PentesterFlow/JSRecon/internal/progress"
	"github.com/PentesterFlow/JSRecon/internal/scanner"
	"github.com/PentesterFlow/JSRecon/internal/state"
)

// scriptExtensions are the file types AnalyzeDir picks up.
var scriptExtensions = map[string]bool{
	".js":  true,
	".cjs": true,
	".mjs": true,
}

// Scanner is the main pipeline orchestrator.
type Scanner struct {
	config   *Config
	scanner  *scanner.Scanner
	state    *state.Manager
	store    state.Store
	ownStore bool
	renderer fetch.Renderer
	logger   *logger.Logger
	metrics  *metrics.Collector
	progress *progress.Display

	// one run at a time; the state manager is per run
	mu sync.Mutex
}

// source is one script to analyze.
type source struct {
	name    string
	content string
}

// New creates a new scanner with the given options.
func New(opts ...Option) (*Scanner, error) {
	s := &Scanner{
		config: DefaultConfig(),
	}

	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, fmt.Errorf("failed to apply option: %w", err)
		}
	}

	if err := s.config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	if s.logger == nil {
		logLevel := logger.InfoLevel
		if s.config.Debug {
			logLevel = logger.DebugLevel
		} else if !s.config.Verbose {
			logLevel = logger.WarnLevel
		}
		s.logger = logger.New(logger.Config{
			Level:     logLevel,
			Pretty:    true,
			Component: "jsrecon",
		})
	}

	if s.metrics == nil {
		s.metrics = metrics.New()
	}

	if s.store == nil && s.config.State.Enabled {
		store, err := OpenStore(s.config.State.FilePath)
		if err != nil {
			return nil, fmt.Errorf("failed to create state store: %w", err)
		}
		s.store = store
		s.ownStore = true
	}

	s.scanner = scanner.New(s.config.Scan)
	s.state = state.NewManager(s.store, 1000)

	return s, nil
}

// OpenStore opens the run store at path. A .json or .json.gz path holds a
// single run in a plain file; anything else is a bbolt database.
func OpenStore(path string) (state.Store, error) {
	lower := strings.ToLower(path)
	switch {
	case strings.HasSuffix(lower, ".json.gz"):
		return state.NewFileStore(path[:len(path)-len(".gz")], true), nil
	case strings.HasSuffix(lower, ".json"):
		return state.NewFileStore(path, false), nil
	default:
		return state.NewBoltStore(path)
	}
}

// Config returns the scanner's configuration.
func (s *Scanner) Config() *Config {
	return s.config
}

// Metrics returns the metrics collector.
func (s *Scanner) Metrics() *metrics.Collector {
	return s.metrics
}

// Runs lists the stored runs.
func (s *Scanner) Runs() ([]state.RunSummary, error) {
	return s.state.List()
}

// Close releases the store if the scanner opened it.
func (s *Scanner) Close() error {
	if s.ownStore && s.store != nil {
		return s.store.Close()
	}
	return nil
}

// ScanTarget downloads the scripts of target and analyzes them. A cancelled
// context still returns the partial report alongside the error.
func (s *Scanner) ScanTarget(ctx context.Context, target string) (*output.Report, error) {
	if err := ValidateTarget(target); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	start := time.Now()
	s.state.Start(target)
	log := s.logger.WithTarget(target)

	client, err := httpclient.New(s.config.ClientConfig())
	if err != nil {
		return nil, err
	}
	defer client.Close()
	client.SetMetrics(s.metrics)
	client.SetLogger(s.logger)

	opts := []fetch.Option{
		fetch.WithMetrics(s.metrics),
		fetch.WithLogger(s.logger),
	}
	if s.progress != nil {
		opts = append(opts, fetch.WithProgress(s.progress))
	}
	if s.renderer != nil {
		opts = append(opts, fetch.WithRenderer(s.renderer))
	} else if r := s.launchBrowser(); r != nil {
		defer r.Close()
		opts = append(opts, fetch.WithRenderer(r))
	}

	collector := fetch.NewCollector(fetch.Config{
		OutputDir:   s.config.Fetch.ScriptsDir,
		Workers:     s.config.Workers,
		ChunkRounds: s.config.Fetch.ChunkRounds,
	}, client, s.state, opts...)

	collected, collectErr := collector.Collect(ctx, target)
	if collected == nil {
		log.ErrorEvent(collectErr, target, "collect")
		return nil, collectErr
	}
	log.Infof("collected %d scripts (%d unique, %d failed)",
		len(collected.Scripts), len(collected.Unique()), len(collected.Failed))

	unique := collected.Unique()
	sources := make([]source, 0, len(unique))
	for _, script := range unique {
		sources = append(sources, source{name: script.Name, content: string(script.Content)})
	}

	var runErrors []output.Error
	for _, f := range collected.Failed {
		runErrors = append(runErrors, output.Error{
			Target:    f.URL,
			Operation: "download",
			Type:      f.Type,
			Message:   f.Error,
			Timestamp: time.Now(),
		})
	}

	report, err := s.analyze(ctx, target, sources, runErrors, start)
	if report != nil {
		report.Stats.Scripts = len(collected.Scripts)
	}
	if err == nil {
		err = collectErr
	}
	return report, err
}

// launchBrowser starts a headless browser when rendering is enabled. A
// browser that fails to start is logged and skipped.
func (s *Scanner) launchBrowser() *browser.Renderer {
	if !s.config.Fetch.Render {
		return nil
	}
	r, err := browser.New(s.config.BrowserConfig(), s.logger)
	if err != nil {
		s.logger.Warnf("browser unavailable, using plain HTTP: %v", err)
		return nil
	}
	return r
}

// AnalyzeDir analyzes every script below dir. Files are named by their path
// relative to dir.
func (s *Scanner) AnalyzeDir(ctx context.Context, dir string) (*output.Report, error) {
	var paths []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if scriptExtensions[strings.ToLower(filepath.Ext(path))] {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, errors.NewStorageError(dir, "walk", err)
	}
	sort.Strings(paths)

	s.mu.Lock()
	defer s.mu.Unlock()

	start := time.Now()
	s.state.Start(dir)

	sources, runErrors := s.read(paths, func(path string) string {
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return filepath.ToSlash(path)
		}
		return filepath.ToSlash(rel)
	})
	return s.analyze(ctx, dir, sources, runErrors, start)
}

// AnalyzeFiles analyzes the given files, named as passed.
func (s *Scanner) AnalyzeFiles(ctx context.Context, paths []string) (*output.Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	start := time.Now()
	s.state.Start("")

	sources, runErrors := s.read(paths, filepath.ToSlash)
	return s.analyze(ctx, "", sources, runErrors, start)
}

// AnalyzeSource analyzes a single in-memory script.
func (s *Scanner) AnalyzeSource(name, content string) (*output.Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	start := time.Now()
	s.state.Start("")

	return s.analyze(context.Background(), "", []source{{name: name, content: content}}, nil, start)
}

// read loads paths, skipping files whose content was already read under
// another name. Unreadable files become run errors.
func (s *Scanner) read(paths []string, name func(string) string) ([]source, []output.Error) {
	sources := make([]source, 0, len(paths))
	var runErrors []output.Error

	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			scanErr := errors.NewStorageError(path, "read", err)
			s.logger.ErrorEvent(scanErr, path, "read")
			s.metrics.RecordError(scanErr.Type.String())
			runErrors = append(runErrors, output.Error{
				Target:    path,
				Operation: "read",
				Type:      scanErr.Type.String(),
				Message:   err.Error(),
				Timestamp: time.Now(),
			})
			continue
		}

		n := name(path)
		if owner, dup := s.state.DuplicateContent(n, string(data)); dup {
			s.logger.Debugf("%s has the same content as %s", n, owner)
			continue
		}
		sources = append(sources, source{name: n, content: string(data)})
	}
	return sources, runErrors
}

// analyze extracts facts from sources in parallel and applies them to the
// run's aggregator. Facts are applied in source order so the order of stored
// request bodies does not depend on scheduling.
func (s *Scanner) analyze(ctx context.Context, target string, sources []source, runErrors []output.Error, start time.Time) (*output.Report, error) {
	agg := aggregate.New()
	if target != "" {
		var err error
		if agg, err = s.state.Seed(); err != nil {
			return nil, err
		}
	}
	seeded := agg.Len()

	outputs := s.extract(ctx, sources)

	known := make(map[string]bool, agg.Len())
	for _, ep := range agg.Endpoints() {
		known[ep] = true
	}

	var (
		facts int64
		bytes int64
		files []string
	)
	external := make(map[string]map[string]struct{})

	for i, out := range outputs {
		if out == nil {
			continue
		}
		files = append(files, out.File)
		bytes += int64(len(sources[i].content))

		for _, f := range out.Facts {
			if !known[f.Endpoint] {
				known[f.Endpoint] = true
				s.metrics.RecordEndpoint()
				s.logger.EndpointEvent(f.Endpoint, factMethod(f), out.File)
			}
			if agg.Apply(f) {
				facts++
				s.metrics.RecordFactApplied()
			} else if f.Kind == aggregate.FactBody {
				s.metrics.RecordRecovery(metrics.RecoveryDuplicateBody)
				s.logger.RecoveryEvent(metrics.RecoveryDuplicateBody, out.File, f.Endpoint)
			}
		}

		for _, r := range out.Recoveries {
			s.metrics.RecordRecovery(r.Kind)
			s.logger.RecoveryEvent(r.Kind, out.File, r.Detail)
		}

		for _, ext := range out.External {
			urls, ok := external[ext.Host]
			if !ok {
				urls = make(map[string]struct{})
				external[ext.Host] = urls
			}
			if _, seen := urls[ext.URL]; !seen {
				urls[ext.URL] = struct{}{}
				s.metrics.RecordExternalURL()
			}
		}
	}

	result := agg.Result()
	summary := result.Summarize()
	snap := s.metrics.Snapshot()

	report := &output.Report{
		Target:      target,
		StartedAt:   start,
		CompletedAt: time.Now(),
		Result:      result,
		External:    flatten(external),
		Errors:      runErrors,
	}
	report.Stats = output.Stats{
		Scripts:      len(sources),
		Files:        len(files),
		Bytes:        bytes,
		Endpoints:    summary.Endpoints,
		WithParams:   summary.WithParams,
		WithBodies:   summary.WithBodies,
		ExternalURLs: countURLs(report.External),
		Facts:        facts,
		Recoveries:   snap.Recoveries,
		ErrorCount:   len(runErrors),
		Duration:     report.CompletedAt.Sub(start),
	}

	s.logger.Infof("analyzed %d files: %d endpoints (%d from earlier runs), %d facts",
		len(files), summary.Endpoints, seeded, facts)
	s.logger.StatsEvent(snap.Summary())

	if err := s.save(report, files); err != nil {
		s.logger.ErrorEvent(err, target, "save_run")
		report.Errors = append(report.Errors, output.Error{
			Target:    target,
			Operation: "save_run",
			Type:      errors.GetErrorType(err).String(),
			Message:   err.Error(),
			Timestamp: time.Now(),
		})
		report.Stats.ErrorCount = len(report.Errors)
	}

	if ctx.Err() != nil {
		return report, errors.NewCancelledError(target, "analyze")
	}
	return report, nil
}

// extract scans sources with a bounded worker pool. outputs[i] belongs to
// sources[i] and stays nil when the context was cancelled first.
func (s *Scanner) extract(ctx context.Context, sources []source) []*scanner.Output {
	outputs := make([]*scanner.Output, len(sources))
	if len(sources) == 0 {
		return outputs
	}

	if s.progress != nil {
		s.progress.Start("analyzing", len(sources))
		defer s.progress.Stop()
	}

	workers := s.config.Workers
	if workers > len(sources) {
		workers = len(sources)
	}

	jobs := make(chan int)
	var (
		wg        sync.WaitGroup
		endpoints sync.Map
		found     int64
		foundMu   sync.Mutex
	)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobs {
				src := sources[idx]
				began := time.Now()
				out := s.scanner.Scan(src.name, src.content)
				outputs[idx] = out

				s.metrics.RecordFileScanned(len(src.content))
				s.logger.FileEvent(src.name, len(src.content), len(out.Facts), time.Since(began))

				if s.progress != nil {
					for _, f := range out.Facts {
						if _, loaded := endpoints.LoadOrStore(f.Endpoint, struct{}{}); !loaded {
							foundMu.Lock()
							found++
							s.progress.SetEndpoints(int(found))
							foundMu.Unlock()
						}
					}
					s.progress.Increment()
				}
			}
		}()
	}

feed:
	for i := range sources {
		select {
		case jobs <- i:
		case <-ctx.Done():
			break feed
		}
	}
	close(jobs)
	wg.Wait()

	return outputs
}

// save stores the run when a store is configured. Runs without a target
// are not stored.
func (s *Scanner) save(report *output.Report, files []string) error {
	if s.store == nil || report.Target == "" {
		return nil
	}
	run := &state.Run{
		Target:    report.Target,
		StartedAt: report.StartedAt,
		Files:     files,
		Result:    report.Result,
		External:  report.External,
		Stats: state.RunStats{
			Files:      report.Stats.Files,
			Bytes:      report.Stats.Bytes,
			Endpoints:  report.Stats.Endpoints,
			Facts:      report.Stats.Facts,
			Errors:     int64(report.Stats.ErrorCount),
			Recoveries: report.Stats.Recoveries,
			Duration:   report.Stats.Duration,
		},
	}
	return s.state.Save(run)
}

func factMethod(f aggregate.Fact) string {
	if f.Kind == aggregate.FactMethod {
		return f.Value
	}
	return ""
}

func flatten(external map[string]map[string]struct{}) map[string][]string {
	out := make(map[string][]string, len(external))
	for host, set := range external {
		urls := make([]string, 0, len(set))
		for u := range set {
			urls = append(urls, u)
		}
		sort.Strings(urls)
		out[host] = urls
	}
	return out
}

func countURLs(external map[string][]string) int {
	n := 0
	for _, urls := range external {
		n += len(urls)
	}
	return n
}
