package jsrecon

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/PentesterFlow/JSRecon/internal/browser"
	"github.com/PentesterFlow/JSRecon/internal/errors"
	"github.com/PentesterFlow/JSRecon/internal/httpclient"
	"github.com/PentesterFlow/JSRecon/internal/openapi"
	"github.com/PentesterFlow/JSRecon/internal/output"
	"github.com/PentesterFlow/JSRecon/internal/report"
	"github.com/PentesterFlow/JSRecon/internal/scanner"
)

// Config holds all scanner configuration.
type Config struct {
	// Target URL whose scripts are collected
	Target string `json:"target" yaml:"target"`

	// Number of concurrent download and analysis workers
	Workers int `json:"workers" yaml:"workers"`

	// Request timeout
	Timeout time.Duration `json:"timeout" yaml:"timeout"`

	// Script acquisition
	Fetch FetchConfig `json:"fetch" yaml:"fetch"`

	// Browser configuration, used when Fetch.Render is set
	Browser browser.Config `json:"browser" yaml:"browser"`

	// Extraction strategies and windows
	Scan scanner.Config `json:"scan" yaml:"scan"`

	// Output configuration
	Output OutputConfig `json:"output" yaml:"output"`

	// Run persistence
	State StateConfig `json:"state" yaml:"state"`

	// Verbose logging
	Verbose bool `json:"verbose" yaml:"verbose"`

	// Debug mode
	Debug bool `json:"debug" yaml:"debug"`
}

// FetchConfig controls how a target's scripts are downloaded.
type FetchConfig struct {
	UserAgent string            `json:"user_agent" yaml:"user_agent"`
	Headers   map[string]string `json:"headers" yaml:"headers"`
	// Cookies is a raw Cookie header, e.g. "session=abc; theme=dark"
	Cookies string `json:"cookies" yaml:"cookies"`

	MaxScriptSize int64   `json:"max_script_size" yaml:"max_script_size"`
	RateLimit     float64 `json:"rate_limit" yaml:"rate_limit"`
	Burst         int     `json:"burst" yaml:"burst"`
	MaxRetries    int     `json:"max_retries" yaml:"max_retries"`
	SkipTLSVerify bool    `json:"skip_tls_verify" yaml:"skip_tls_verify"`

	// Render the page in a headless browser before discovering scripts
	Render bool `json:"render" yaml:"render"`

	// How many times downloaded scripts are searched for further chunks
	ChunkRounds int `json:"chunk_rounds" yaml:"chunk_rounds"`

	// Directory the downloaded scripts are written to
	ScriptsDir string `json:"scripts_dir" yaml:"scripts_dir"`
}

// OutputConfig holds output configuration.
type OutputConfig struct {
	Format string `json:"format" yaml:"format"`
	Pretty bool   `json:"pretty" yaml:"pretty"`
	Stream bool   `json:"stream" yaml:"stream"`

	// Directory the result files are written to
	Dir string `json:"dir" yaml:"dir"`

	// File names inside Dir; an empty name skips that file
	ResultsFile string `json:"results_file" yaml:"results_file"`
	ReportFile  string `json:"report_file" yaml:"report_file"`
	OpenAPIFile string `json:"openapi_file" yaml:"openapi_file"`
}

// StateConfig holds run persistence configuration.
type StateConfig struct {
	// Enabled stores every run and seeds the next run of the same target
	Enabled bool `json:"enabled" yaml:"enabled"`

	// FilePath is the bbolt database path
	FilePath string `json:"file_path" yaml:"file_path"`
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	client := httpclient.DefaultConfig()

	return &Config{
		Workers: 10,
		Timeout: 30 * time.Second,
		Fetch: FetchConfig{
			UserAgent:     client.UserAgent,
			Headers:       map[string]string{},
			MaxScriptSize: client.MaxBodySize,
			RateLimit:     client.RateLimit,
			Burst:         client.Burst,
			MaxRetries:    client.Retry.MaxRetries,
			SkipTLSVerify: true,
			Render:        false,
			ChunkRounds:   2,
			ScriptsDir:    "js_files",
		},
		Browser: browser.DefaultConfig(),
		Scan:    scanner.DefaultConfig(),
		Output: OutputConfig{
			Format:      "json",
			Pretty:      true,
			Stream:      false,
			Dir:         "results",
			ResultsFile: output.DefaultResultsFile,
			ReportFile:  report.DefaultFile,
			OpenAPIFile: openapi.DefaultFile,
		},
		State: StateConfig{
			Enabled:  false,
			FilePath: "jsrecon.db",
		},
	}
}

// LoadFromFile loads configuration from a file (JSON or YAML).
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()

	// Try YAML first, then JSON
	if err := yaml.Unmarshal(data, config); err != nil {
		if err := json.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	return config, nil
}

// SaveToFile saves configuration to a file. A .json extension writes JSON,
// anything else YAML.
func (c *Config) SaveToFile(path string) error {
	var data []byte
	var err error

	if strings.HasSuffix(path, ".json") {
		data, err = json.MarshalIndent(c, "", "  ")
	} else {
		data, err = yaml.Marshal(c)
	}

	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	return os.WriteFile(path, data, 0644)
}

// Validate validates the configuration. The target is checked separately
// since analyzing local files needs none.
func (c *Config) Validate() error {
	if c.Workers < 1 {
		return errors.NewConfigError("workers", "must be at least 1")
	}

	if c.Timeout <= 0 {
		return errors.NewConfigError("timeout", "must be positive")
	}

	if c.Fetch.RateLimit < 0 {
		return errors.NewConfigError("fetch.rate_limit", "must not be negative")
	}

	if c.Fetch.MaxRetries < 0 {
		return errors.NewConfigError("fetch.max_retries", "must not be negative")
	}

	if c.Fetch.ChunkRounds < 0 {
		return errors.NewConfigError("fetch.chunk_rounds", "must not be negative")
	}

	switch c.Output.Format {
	case "json", "text", "console":
	default:
		return errors.NewConfigError("output.format", fmt.Sprintf("unknown format %q", c.Output.Format))
	}

	if len(c.Scan.APIPrefixes) == 0 {
		return errors.NewConfigError("scan.api_prefixes", "at least one prefix is required")
	}

	if c.State.Enabled && c.State.FilePath == "" {
		return errors.NewConfigError("state.file_path", "required when state is enabled")
	}

	return nil
}

// ValidateTarget checks that target is an absolute http(s) URL.
func ValidateTarget(target string) error {
	if target == "" {
		return errors.NewConfigError("target", "target URL is required")
	}
	u, err := url.Parse(target)
	if err != nil {
		return errors.NewConfigError("target", err.Error())
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return errors.NewConfigError("target", fmt.Sprintf("%q is not an http(s) URL", target))
	}
	return nil
}

// Clone creates a deep copy of the configuration.
func (c *Config) Clone() *Config {
	data, _ := json.Marshal(c)
	clone := &Config{}
	json.Unmarshal(data, clone)
	return clone
}

// ClientConfig derives the HTTP client configuration.
func (c *Config) ClientConfig() httpclient.Config {
	cfg := httpclient.DefaultConfig()
	cfg.Timeout = c.Timeout
	cfg.UserAgent = c.Fetch.UserAgent
	cfg.Headers = c.Fetch.Headers
	cfg.Cookies = c.Fetch.Cookies
	cfg.SkipTLSVerify = c.Fetch.SkipTLSVerify
	cfg.RateLimit = c.Fetch.RateLimit
	cfg.Burst = c.Fetch.Burst
	cfg.Retry.MaxRetries = c.Fetch.MaxRetries
	if c.Fetch.MaxScriptSize > 0 {
		cfg.MaxBodySize = c.Fetch.MaxScriptSize
	}
	if c.Workers > cfg.MaxConnsPerHost {
		cfg.MaxConnsPerHost = c.Workers
		cfg.MaxIdleConnsPerHost = c.Workers
	}
	return cfg
}

// BrowserConfig derives the renderer configuration. The fetch user agent
// applies when the browser has none of its own.
func (c *Config) BrowserConfig() browser.Config {
	cfg := c.Browser
	if cfg.UserAgent == "" {
		cfg.UserAgent = c.Fetch.UserAgent
	}
	return cfg
}

// WriterConfig derives the output writer configuration.
func (c *Config) WriterConfig() output.Config {
	return output.Config{
		Format: c.Output.Format,
		Pretty: c.Output.Pretty,
		Stream: c.Output.Stream,
	}
}

// OutputPath joins name onto the output directory. An empty name yields "".
func (c *Config) OutputPath(name string) string {
	if name == "" {
		return ""
	}
	if c.Output.Dir == "" || filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(c.Output.Dir, name)
}
