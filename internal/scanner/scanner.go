// Package scanner finds API call sites in JavaScript source and turns them into
// aggregate facts. Each strategy is a loose pattern match; nothing here parses
// the full JavaScript grammar.
package scanner

import (
	"sync"

	"github.com/PentesterFlow/JSRecon/internal/aggregate"
)

// Config controls which strategies run and how far they look around a match.
type Config struct {
	// APIPrefixes mark a path as a backend endpoint.
	APIPrefixes []string `json:"api_prefixes" yaml:"api_prefixes"`

	MethodHintWindow   int `json:"method_hint_window" yaml:"method_hint_window"`
	SearchParamsWindow int `json:"search_params_window" yaml:"search_params_window"`
	VariableWindow     int `json:"variable_window" yaml:"variable_window"`
	CallSpanLimit      int `json:"call_span_limit" yaml:"call_span_limit"`

	StaticQuery      bool `json:"static_query" yaml:"static_query"`
	TemplateLiterals bool `json:"template_literals" yaml:"template_literals"`
	SearchParams     bool `json:"search_params" yaml:"search_params"`
	ClientCalls      bool `json:"client_calls" yaml:"client_calls"`
	ExternalURLs     bool `json:"external_urls" yaml:"external_urls"`

	// IgnoreHosts are never reported as external URLs.
	IgnoreHosts []string `json:"ignore_hosts" yaml:"ignore_hosts"`
}

// DefaultConfig enables every strategy with the usual windows.
func DefaultConfig() Config {
	return Config{
		APIPrefixes:        []string{"/api/"},
		MethodHintWindow:   30,
		SearchParamsWindow: 500,
		VariableWindow:     1000,
		CallSpanLimit:      2000,
		StaticQuery:        true,
		TemplateLiterals:   true,
		SearchParams:       true,
		ClientCalls:        true,
		ExternalURLs:       true,
		IgnoreHosts:        []string{"www.w3.org", "w3.org"},
	}
}

// ExternalURL is an absolute URL pointing outside the analyzed application.
type ExternalURL struct {
	Host string `json:"host" yaml:"host"`
	URL  string `json:"url" yaml:"url"`
	File string `json:"file" yaml:"file"`
}

// Recovery notes input that was repaired or guessed instead of rejected.
type Recovery struct {
	Kind   string `json:"kind"`
	Detail string `json:"detail"`
}

// Output is everything one file produced.
type Output struct {
	File       string
	Facts      []aggregate.Fact
	External   []ExternalURL
	Recoveries []Recovery
}

// Scanner runs the enabled strategies over JavaScript source. It is safe for
// concurrent use.
type Scanner struct {
	cfg Config

	// compiled variable lookups keyed by name
	lookups sync.Map
}

// New creates a Scanner. Zero windows fall back to the defaults.
func New(cfg Config) *Scanner {
	def := DefaultConfig()
	if len(cfg.APIPrefixes) == 0 {
		cfg.APIPrefixes = def.APIPrefixes
	}
	if cfg.MethodHintWindow <= 0 {
		cfg.MethodHintWindow = def.MethodHintWindow
	}
	if cfg.SearchParamsWindow <= 0 {
		cfg.SearchParamsWindow = def.SearchParamsWindow
	}
	if cfg.VariableWindow <= 0 {
		cfg.VariableWindow = def.VariableWindow
	}
	if cfg.CallSpanLimit <= 0 {
		cfg.CallSpanLimit = def.CallSpanLimit
	}
	return &Scanner{cfg: cfg}
}

// Config returns the effective configuration.
func (s *Scanner) Config() Config {
	return s.cfg
}

// Scan runs every enabled strategy over content and returns the facts in
// discovery order. file is recorded as the source of every endpoint found.
func (s *Scanner) Scan(file, content string) *Output {
	out := &Output{
		File:       file,
		Facts:      make([]aggregate.Fact, 0),
		External:   make([]ExternalURL, 0),
		Recoveries: make([]Recovery, 0),
	}
	e := &emitter{s: s, out: out}

	if s.cfg.StaticQuery {
		s.scanStaticQuery(e, content)
	}
	if s.cfg.TemplateLiterals {
		s.scanTemplates(e, content)
	}
	if s.cfg.SearchParams {
		s.scanSearchParams(e, content)
	}
	if s.cfg.ClientCalls {
		s.scanCalls(e, content)
	}
	if s.cfg.ExternalURLs {
		s.scanExternal(e, content)
	}

	return out
}
