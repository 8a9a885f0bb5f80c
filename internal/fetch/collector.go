package fetch

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/PentesterFlow/JSRecon/internal/browser"
	"github.com/PentesterFlow/JSRecon/internal/errors"
	"github.com/PentesterFlow/JSRecon/internal/httpclient"
	"github.com/PentesterFlow/JSRecon/internal/logger"
	"github.com/PentesterFlow/JSRecon/internal/metrics"
	"github.com/PentesterFlow/JSRecon/internal/progress"
	"github.com/PentesterFlow/JSRecon/internal/state"
)

// Config controls script collection.
type Config struct {
	// OutputDir receives downloaded scripts. Empty keeps them in memory only.
	OutputDir string
	Workers   int
	// ChunkRounds bounds how many times downloaded scripts are searched for
	// further chunk references. Zero disables the chunk pass.
	ChunkRounds int
}

// Renderer renders a page in a browser.
type Renderer interface {
	Render(ctx context.Context, target string, headers map[string]string, cookies []*http.Cookie) (*browser.Page, error)
}

// Script is one downloaded script.
type Script struct {
	URL  string `json:"url"`
	Name string `json:"name"`
	// Path is where the script was written; empty when OutputDir is unset.
	Path string `json:"path,omitempty"`
	Size int    `json:"size"`
	// DuplicateOf names the script with identical content, if any. Duplicates
	// are not written or analyzed.
	DuplicateOf string `json:"duplicate_of,omitempty"`
	Content     []byte `json:"-"`
}

// Failure is a script that could not be fetched.
type Failure struct {
	URL   string `json:"url"`
	Type  string `json:"type"`
	Error string `json:"error"`
}

// Result is everything collected for one target.
type Result struct {
	Target   string        `json:"target"`
	FinalURL string        `json:"final_url"`
	Scripts  []Script      `json:"scripts"`
	Failed   []Failure     `json:"failed,omitempty"`
	Duration time.Duration `json:"duration"`
}

// Unique returns the scripts whose content was not seen before.
func (r *Result) Unique() []Script {
	unique := make([]Script, 0, len(r.Scripts))
	for _, s := range r.Scripts {
		if s.DuplicateOf == "" {
			unique = append(unique, s)
		}
	}
	return unique
}

// Collector downloads the scripts of a page.
type Collector struct {
	config   Config
	client   *httpclient.Client
	renderer Renderer
	state    *state.Manager
	metrics  *metrics.Collector
	log      *logger.Logger
	progress *progress.Display

	mu    sync.Mutex
	names map[string]string
}

// Option configures a Collector.
type Option func(*Collector)

// WithRenderer renders the page in a browser before discovery.
func WithRenderer(r Renderer) Option {
	return func(c *Collector) { c.renderer = r }
}

// WithMetrics sets the metrics collector.
func WithMetrics(m *metrics.Collector) Option {
	return func(c *Collector) { c.metrics = m }
}

// WithLogger sets the logger.
func WithLogger(l *logger.Logger) Option {
	return func(c *Collector) { c.log = l.WithComponent("fetch") }
}

// WithProgress shows download progress.
func WithProgress(p *progress.Display) Option {
	return func(c *Collector) { c.progress = p }
}

// NewCollector creates a collector. st tracks which scripts were already
// fetched; a nil st gets a fresh manager.
func NewCollector(config Config, client *httpclient.Client, st *state.Manager, opts ...Option) *Collector {
	if config.Workers < 1 {
		config.Workers = 1
	}
	if st == nil {
		st = state.NewManager(nil, 1000)
	}
	c := &Collector{
		config: config,
		client: client,
		state:  st,
		log:    logger.Nop(),
		names:  make(map[string]string),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Collect fetches target, discovers its scripts and downloads them, followed
// by any chunks those scripts reference.
func (c *Collector) Collect(ctx context.Context, target string) (*Result, error) {
	start := time.Now()
	result := &Result{Target: target}

	if c.config.OutputDir != "" {
		if err := os.MkdirAll(c.config.OutputDir, 0755); err != nil {
			return nil, errors.NewStorageError(c.config.OutputDir, "mkdir", err)
		}
	}

	html, finalURL, rendered, err := c.page(ctx, target)
	if err != nil {
		return nil, err
	}
	result.FinalURL = finalURL
	if c.metrics != nil {
		c.metrics.RecordPageFetched()
	}

	urls := Discover(html, finalURL)
	urls = append(urls, rendered...)
	c.log.Infof("discovered %d script references on %s", len(urls), finalURL)

	if c.progress != nil {
		c.progress.Start("downloading", 0)
		defer c.progress.Stop()
	}

	batch := c.download(ctx, urls, result)
	for round := 0; round < c.config.ChunkRounds && len(batch) > 0; round++ {
		var chunks []string
		for _, s := range batch {
			for _, ref := range ChunkReferences(string(s.Content)) {
				if u := ResolveChunk(s.URL, ref); u != "" {
					chunks = append(chunks, u)
				}
			}
		}
		if len(chunks) == 0 {
			break
		}
		c.log.Debugf("chunk round %d: %d references", round+1, len(chunks))
		batch = c.download(ctx, chunks, result)
	}

	result.Duration = time.Since(start)
	if ctx.Err() != nil {
		return result, errors.NewCancelledError(target, "collect")
	}
	return result, nil
}

// page returns the HTML of target, its final URL and, when rendered, the
// scripts the browser loaded.
func (c *Collector) page(ctx context.Context, target string) (string, string, []string, error) {
	if c.renderer != nil {
		page, err := c.renderer.Render(ctx, target, nil, c.client.Cookies())
		if err == nil {
			return page.HTML, page.FinalURL, page.Scripts, nil
		}
		c.log.Warnf("rendering %s failed, falling back to plain fetch: %v", target, err)
	}

	resp, err := c.client.GetWithRetry(ctx, target)
	if err != nil {
		return "", "", nil, err
	}
	finalURL := resp.FinalURL
	if finalURL == "" {
		finalURL = target
	}
	return string(resp.Body), finalURL, nil, nil
}

// download fetches urls with a bounded worker pool and returns the scripts
// fetched in this batch whose content is new.
func (c *Collector) download(ctx context.Context, urls []string, result *Result) []Script {
	fresh := make([]string, 0, len(urls))
	for _, u := range urls {
		if c.state.MarkScript(u) {
			fresh = append(fresh, u)
		} else if c.metrics != nil {
			c.metrics.RecordScriptSkipped()
		}
	}
	if len(fresh) == 0 {
		return nil
	}
	if c.progress != nil {
		c.progress.AddTotal(len(fresh))
	}

	jobs := make(chan string)
	var (
		mu    sync.Mutex
		batch []Script
		wg    sync.WaitGroup
	)

	workers := c.config.Workers
	if workers > len(fresh) {
		workers = len(fresh)
	}
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for u := range jobs {
				script, err := c.fetchScript(ctx, u)
				if c.progress != nil {
					c.progress.Increment()
				}

				mu.Lock()
				if err != nil {
					result.Failed = append(result.Failed, Failure{URL: u, Type: errors.GetErrorType(err).String(), Error: err.Error()})
					if c.progress != nil {
						c.progress.RecordError()
					}
				} else {
					result.Scripts = append(result.Scripts, *script)
					if script.DuplicateOf == "" {
						batch = append(batch, *script)
					}
				}
				mu.Unlock()
			}
		}()
	}

feed:
	for _, u := range fresh {
		select {
		case jobs <- u:
		case <-ctx.Done():
			break feed
		}
	}
	close(jobs)
	wg.Wait()

	return batch
}

func (c *Collector) fetchScript(ctx context.Context, scriptURL string) (*Script, error) {
	resp, err := c.client.GetWithRetry(ctx, scriptURL)
	if err != nil {
		c.log.ErrorEvent(err, scriptURL, "download")
		return nil, err
	}
	if resp.Truncated {
		c.log.Warnf("%s exceeded the size limit and was truncated", scriptURL)
	}

	script := &Script{
		URL:     scriptURL,
		Name:    c.nameFor(scriptURL),
		Size:    len(resp.Body),
		Content: resp.Body,
	}
	if c.metrics != nil {
		c.metrics.RecordScriptFetched(int64(len(resp.Body)))
	}

	if owner, dup := c.state.DuplicateContent(script.Name, string(resp.Body)); dup {
		script.DuplicateOf = owner
		c.log.Debugf("%s has the same content as %s", script.Name, owner)
		return script, nil
	}

	if c.config.OutputDir != "" {
		script.Path = filepath.Join(c.config.OutputDir, script.Name)
		if err := os.WriteFile(script.Path, resp.Body, 0644); err != nil {
			return nil, errors.NewStorageError(script.Path, "write_script", err)
		}
	}
	return script, nil
}

// nameFor assigns a unique local file name to a script URL.
func (c *Collector) nameFor(scriptURL string) string {
	c.mu.Lock()
	defer c.mu.Unlock()

	name := FileName(scriptURL)
	if owner, taken := c.names[name]; !taken || owner == scriptURL {
		c.names[name] = scriptURL
		return name
	}

	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)
	for i := 2; ; i++ {
		candidate := fmt.Sprintf("%s-%d%s", stem, i, ext)
		if _, taken := c.names[candidate]; !taken {
			c.names[candidate] = scriptURL
			return candidate
		}
	}
}
