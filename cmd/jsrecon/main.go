package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/PentesterFlow/JSRecon/internal/errors"
	"github.com/PentesterFlow/JSRecon/internal/logger"
	"github.com/PentesterFlow/JSRecon/internal/output"
	"github.com/PentesterFlow/JSRecon/internal/progress"
	"github.com/PentesterFlow/JSRecon/internal/shutdown"
	"github.com/PentesterFlow/JSRecon/pkg/jsrecon"
)

var (
	version = "1.0.0"

	// Global flags
	configFile string
	verbose    bool
	debug      bool
	jsonLogs   bool

	// Run flags
	workers     int
	timeout     int
	rateLimit   float64
	maxRetries  int
	userAgent   string
	headers     []string
	cookies     string
	render      bool
	chunkRounds int
	scriptsDir  string
	apiPrefixes []string
	stateFile   string

	// Output flags
	outputDir  string
	format     string
	stream     bool
	compact    bool
	quiet      bool
	noProgress bool

	// report / openapi flags
	inputFile  string
	fromRun    string
	outputFile string
	serverURL  string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "jsrecon",
		Short: "JSRecon - Backend API reconstruction from JavaScript",
		Long: `JSRecon - Reconstructs the backend API of a web application from the JavaScript it ships.

Collects a target's scripts (including lazily loaded chunks), extracts every API call site,
and writes one record per endpoint with its parameters, methods and request bodies.
Results can be rendered as an HTML report or an OpenAPI document.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	scanCmd := &cobra.Command{
		Use:   "scan [url]",
		Short: "Collect and analyze the scripts of a target URL",
		Args:  cobra.ExactArgs(1),
		RunE:  runScan,
	}

	analyzeCmd := &cobra.Command{
		Use:   "analyze [dir | files...]",
		Short: "Analyze scripts on disk",
		Long:  "Analyze a directory of scripts (searched recursively) or a list of script files.",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runAnalyze,
	}

	reportCmd := &cobra.Command{
		Use:   "report",
		Short: "Render an HTML report from a results file or a stored run",
		RunE:  runReport,
	}

	openapiCmd := &cobra.Command{
		Use:   "openapi",
		Short: "Generate an OpenAPI document from a results file or a stored run",
		RunE:  runOpenAPI,
	}

	runsCmd := &cobra.Command{
		Use:   "runs",
		Short: "List stored runs",
		RunE:  runRuns,
	}

	// Global flags
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "Configuration file (YAML or JSON)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Debug mode")
	rootCmd.PersistentFlags().BoolVar(&jsonLogs, "json-logs", false, "Log JSON lines instead of console output")
	rootCmd.PersistentFlags().StringVar(&stateFile, "state-file", "", "Run store (.db for bbolt, .json or .json.gz for a single run file)")

	for _, cmd := range []*cobra.Command{scanCmd, analyzeCmd} {
		cmd.Flags().IntVarP(&workers, "workers", "w", 10, "Number of concurrent workers")
		cmd.Flags().StringArrayVar(&apiPrefixes, "prefix", nil, "Path prefix marking backend endpoints (repeatable)")
		cmd.Flags().StringVarP(&outputDir, "output-dir", "o", "results", "Directory for the results file, report and OpenAPI document")
		cmd.Flags().StringVarP(&format, "format", "f", "json", "Terminal output format (json, text)")
		cmd.Flags().BoolVar(&stream, "stream", false, "Stream one JSON event per endpoint")
		cmd.Flags().BoolVar(&compact, "compact", false, "Compact JSON output")
		cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "Do not print results to stdout")
		cmd.Flags().BoolVar(&noProgress, "no-progress", false, "Disable the progress bar")
	}

	scanCmd.Flags().IntVarP(&timeout, "timeout", "t", 30, "Request timeout in seconds")
	scanCmd.Flags().Float64VarP(&rateLimit, "rate-limit", "r", 20, "Requests per second (0 for unlimited)")
	scanCmd.Flags().IntVar(&maxRetries, "retries", 2, "Retries per request")
	scanCmd.Flags().StringVar(&userAgent, "user-agent", "", "User-Agent header")
	scanCmd.Flags().StringArrayVarP(&headers, "header", "H", nil, "Extra request header as 'Name: value' (repeatable)")
	scanCmd.Flags().StringVar(&cookies, "cookies", "", "Cookie header sent with every request")
	scanCmd.Flags().BoolVar(&render, "render", false, "Render the page in a headless browser to find dynamically loaded scripts")
	scanCmd.Flags().IntVar(&chunkRounds, "chunk-rounds", 2, "How many times downloaded scripts are searched for further chunks")
	scanCmd.Flags().StringVar(&scriptsDir, "scripts-dir", "js_files", "Directory the downloaded scripts are written to")

	for _, cmd := range []*cobra.Command{reportCmd, openapiCmd} {
		cmd.Flags().StringVarP(&inputFile, "input", "i", "", "Results file (default: results/api_query_results.json)")
		cmd.Flags().StringVar(&fromRun, "run", "", "Use the stored run of this target instead of a results file")
	}
	reportCmd.Flags().StringVarP(&outputFile, "output", "o", "", "HTML file (default: results/api_report.html)")
	openapiCmd.Flags().StringVarP(&outputFile, "output", "o", "", "OpenAPI file, .yaml for YAML (default: results/api_openapi_spec.json)")
	openapiCmd.Flags().StringVar(&serverURL, "server", "", "Server URL of the document")

	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(reportCmd)
	rootCmd.AddCommand(openapiCmd)
	rootCmd.AddCommand(runsCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig reads the config file, if any, and applies the flags the user
// set explicitly.
func loadConfig(cmd *cobra.Command) (*jsrecon.Config, error) {
	config := jsrecon.DefaultConfig()
	if configFile != "" {
		fileConfig, err := jsrecon.LoadFromFile(configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
		config = fileConfig
	}

	flags := cmd.Flags()
	if flags.Changed("workers") {
		config.Workers = workers
	}
	if flags.Changed("timeout") {
		config.Timeout = time.Duration(timeout) * time.Second
	}
	if flags.Changed("rate-limit") {
		config.Fetch.RateLimit = rateLimit
	}
	if flags.Changed("retries") {
		config.Fetch.MaxRetries = maxRetries
	}
	if flags.Changed("user-agent") {
		config.Fetch.UserAgent = userAgent
	}
	if flags.Changed("header") {
		if config.Fetch.Headers == nil {
			config.Fetch.Headers = make(map[string]string)
		}
		for _, h := range headers {
			name, value, ok := strings.Cut(h, ":")
			if !ok {
				return nil, fmt.Errorf("invalid header %q, want 'Name: value'", h)
			}
			config.Fetch.Headers[strings.TrimSpace(name)] = strings.TrimSpace(value)
		}
	}
	if flags.Changed("cookies") {
		config.Fetch.Cookies = cookies
	}
	if flags.Changed("render") {
		config.Fetch.Render = render
	}
	if flags.Changed("chunk-rounds") {
		config.Fetch.ChunkRounds = chunkRounds
	}
	if flags.Changed("scripts-dir") {
		config.Fetch.ScriptsDir = scriptsDir
	}
	if flags.Changed("prefix") {
		config.Scan.APIPrefixes = apiPrefixes
	}
	if flags.Changed("state-file") {
		config.State.Enabled = stateFile != ""
		config.State.FilePath = stateFile
	}
	if flags.Changed("output-dir") {
		config.Output.Dir = outputDir
	}
	if flags.Changed("format") {
		config.Output.Format = format
	}
	if flags.Changed("stream") {
		config.Output.Stream = stream
	}
	if flags.Changed("compact") {
		config.Output.Pretty = !compact
	}

	config.Verbose = config.Verbose || verbose
	config.Debug = config.Debug || debug

	return config, config.Validate()
}

func newLogger(config *jsrecon.Config) *logger.Logger {
	level := logger.WarnLevel
	if config.Debug {
		level = logger.DebugLevel
	} else if config.Verbose {
		level = logger.InfoLevel
	}

	var l *logger.Logger
	if jsonLogs {
		l = logger.NewJSON(level)
	} else {
		l = logger.New(logger.Config{Level: level, Pretty: true, Component: "jsrecon"})
	}
	logger.SetGlobal(l)
	return l
}

// newScanner builds the scanner and a shutdown handler that cancels the run
// on SIGINT or SIGTERM and closes the scanner afterwards.
func newScanner(config *jsrecon.Config) (*jsrecon.Scanner, *shutdown.Handler, error) {
	log := newLogger(config)

	opts := []jsrecon.Option{
		jsrecon.WithConfig(config),
		jsrecon.WithLogger(log),
	}
	if !noProgress && !config.Verbose && !config.Debug {
		opts = append(opts, jsrecon.WithProgress(progress.New()))
	}

	s, err := jsrecon.New(opts...)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create scanner: %w", err)
	}

	h := shutdown.New(context.Background(), shutdown.Config{Logger: log})
	h.RegisterCloser("scanner", s)
	return s, h, nil
}

func runScan(cmd *cobra.Command, args []string) error {
	config, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	config.Target = args[0]

	s, h, err := newScanner(config)
	if err != nil {
		return err
	}
	defer h.Close()

	fmt.Fprintf(os.Stderr, "\nJSRecon v%s - scanning %s\n\n", version, config.Target)

	rep, err := s.ScanTarget(h.Context(), config.Target)
	return finish(config, h, rep, err)
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	config, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	s, h, err := newScanner(config)
	if err != nil {
		return err
	}
	defer h.Close()

	var rep *output.Report
	if info, statErr := os.Stat(args[0]); len(args) == 1 && statErr == nil && info.IsDir() {
		rep, err = s.AnalyzeDir(h.Context(), args[0])
	} else {
		rep, err = s.AnalyzeFiles(h.Context(), args)
	}
	return finish(config, h, rep, err)
}

// finish writes the outputs of a run. An interrupted run still writes what
// it found.
func finish(config *jsrecon.Config, h *shutdown.Handler, rep *output.Report, runErr error) error {
	if rep == nil {
		if runErr == nil {
			runErr = fmt.Errorf("no results")
		}
		return runErr
	}

	interrupted := errors.GetErrorType(runErr) == errors.Cancelled
	if runErr != nil && !interrupted {
		return runErr
	}
	if interrupted {
		fmt.Fprintln(os.Stderr, "\nInterrupted, writing partial results...")
	}

	// h's context is already cancelled after an interrupt.
	written, err := writeFiles(context.Background(), config, rep)
	if err != nil {
		return err
	}

	if !quiet {
		if err := printResults(os.Stdout, config, rep); err != nil {
			return err
		}
	}

	progress.PrintSummary(os.Stderr, progress.Summary{
		Target:       rep.Target,
		Duration:     rep.Stats.Duration,
		Files:        rep.Stats.Files,
		Endpoints:    rep.Stats.Endpoints,
		WithParams:   rep.Stats.WithParams,
		WithBodies:   rep.Stats.WithBodies,
		ExternalURLs: rep.Stats.ExternalURLs,
		Errors:       rep.Stats.ErrorCount,
	})
	for _, path := range written {
		fmt.Fprintf(os.Stderr, "  Wrote %s\n", path)
	}
	fmt.Fprintln(os.Stderr)

	if res := h.Close(); res.HasErrors() {
		return fmt.Errorf("cleanup failed: %v", res.Errors[0])
	}
	if interrupted {
		return runErr
	}
	return nil
}

func runReport(cmd *cobra.Command, args []string) error {
	config, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	newLogger(config)

	rep, err := loadReport(config)
	if err != nil {
		return err
	}

	path := outputFile
	if path == "" {
		path = config.OutputPath(config.Output.ReportFile)
	}
	if err := writeReport(path, rep); err != nil {
		return err
	}

	fmt.Printf("Wrote %s (%d endpoints)\n", path, len(rep.Result.BackendEndpoints))
	return nil
}

func runOpenAPI(cmd *cobra.Command, args []string) error {
	config, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	newLogger(config)

	rep, err := loadReport(config)
	if err != nil {
		return err
	}
	if serverURL != "" {
		rep.Target = serverURL
	}

	path := outputFile
	if path == "" {
		path = config.OutputPath(config.Output.OpenAPIFile)
	}
	doc, err := writeOpenAPI(context.Background(), path, rep)
	if err != nil {
		return err
	}

	fmt.Printf("Wrote %s (%d paths)\n", path, doc.Paths.Len())
	return nil
}

func runRuns(cmd *cobra.Command, args []string) error {
	config, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	store, err := jsrecon.OpenStore(config.State.FilePath)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", config.State.FilePath, err)
	}
	defer store.Close()

	runs, err := store.List()
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Printf("No runs stored in %s\n", config.State.FilePath)
		return nil
	}

	fmt.Printf("%-50s  %-20s  %6s  %9s\n", "TARGET", "FINISHED", "FILES", "ENDPOINTS")
	for _, r := range runs {
		fmt.Printf("%-50s  %-20s  %6d  %9d\n",
			truncate(r.Target, 50), r.FinishedAt.Local().Format("2006-01-02 15:04:05"), r.Files, r.Endpoints)
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}
