// Package browser renders pages in headless Chrome via Rod so scripts that
// are only injected at runtime can be collected.
package browser

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/ysmood/gson"

	"github.com/PentesterFlow/JSRecon/internal/errors"
	"github.com/PentesterFlow/JSRecon/internal/logger"
)

// Config defines browser configuration.
type Config struct {
	Headless          bool          `json:"headless" yaml:"headless"`
	Timeout           time.Duration `json:"timeout" yaml:"timeout"`
	UserAgent         string        `json:"user_agent" yaml:"user_agent"`
	ViewportWidth     int           `json:"viewport_width" yaml:"viewport_width"`
	ViewportHeight    int           `json:"viewport_height" yaml:"viewport_height"`
	IgnoreHTTPSErrors bool          `json:"ignore_https_errors" yaml:"ignore_https_errors"`
	// Wait is how long to let the page settle after load and after each scroll.
	Wait time.Duration `json:"wait" yaml:"wait"`
	// BinPath points at a Chrome binary; empty lets the launcher find or download one.
	BinPath string `json:"bin_path" yaml:"bin_path"`
}

// DefaultConfig returns default browser configuration.
func DefaultConfig() Config {
	return Config{
		Headless:          true,
		Timeout:           45 * time.Second,
		ViewportWidth:     1920,
		ViewportHeight:    1080,
		IgnoreHTTPSErrors: true,
		Wait:              2 * time.Second,
	}
}

// Page is a rendered page.
type Page struct {
	URL      string
	FinalURL string
	HTML     string
	// Scripts are the script resources the page requested, in request order.
	Scripts  []string
	Cookies  []*http.Cookie
	Duration time.Duration
}

// Renderer wraps a Rod browser instance.
type Renderer struct {
	browser *rod.Browser
	config  Config
	log     *logger.Logger

	mu    sync.Mutex
	pages int
}

// New launches a browser.
func New(config Config, log *logger.Logger) (*Renderer, error) {
	l := launcher.New().Headless(config.Headless)
	if config.BinPath != "" {
		l = l.Bin(config.BinPath)
	}
	if config.IgnoreHTTPSErrors {
		l = l.Set("ignore-certificate-errors", "true")
	}

	controlURL, err := l.Launch()
	if err != nil {
		return nil, errors.NewBrowserError("chrome", "launch", err)
	}

	b := rod.New().ControlURL(controlURL)
	if err := b.Connect(); err != nil {
		return nil, errors.NewBrowserError("chrome", "connect", err)
	}
	if config.Timeout > 0 {
		b = b.Timeout(config.Timeout)
	}

	if log == nil {
		log = logger.Nop()
	}

	return &Renderer{
		browser: b,
		config:  config,
		log:     log.WithComponent("browser"),
	}, nil
}

// Render navigates to target, waits for it to settle, scrolls through it to
// trigger lazy loading and returns the final DOM and every script requested.
func (r *Renderer) Render(ctx context.Context, target string, headers map[string]string, cookies []*http.Cookie) (*Page, error) {
	r.mu.Lock()
	r.pages++
	r.mu.Unlock()

	start := time.Now()
	result := &Page{URL: target}

	page, err := r.browser.Page(proto.TargetCreateTarget{URL: "about:blank"})
	if err != nil {
		return nil, errors.NewBrowserError(target, "create_page", err)
	}
	defer page.Close()

	page = page.Context(ctx)

	_ = page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width:  r.config.ViewportWidth,
		Height: r.config.ViewportHeight,
	})

	if r.config.UserAgent != "" {
		_ = proto.NetworkSetUserAgentOverride{
			UserAgent: r.config.UserAgent,
		}.Call(page)
	}

	if len(headers) > 0 {
		networkHeaders := make(proto.NetworkHeaders)
		for k, v := range headers {
			networkHeaders[k] = gson.New(v)
		}
		_ = proto.NetworkSetExtraHTTPHeaders{Headers: networkHeaders}.Call(page)
	}

	if len(cookies) > 0 {
		_ = page.SetCookies(cookieParams(target, cookies))
	}

	capture := NewScriptCapture()
	router := page.HijackRequests()
	err = router.Add("*", proto.NetworkResourceTypeScript, func(hijack *rod.Hijack) {
		capture.Record(hijack.Request.URL().String())
		hijack.ContinueRequest(&proto.FetchContinueRequest{})
	})
	if err != nil {
		r.log.Debugf("script interception unavailable: %v", err)
		router = nil
	}
	if router != nil {
		go router.Run()
		defer router.Stop()
	}

	if err := page.Navigate(target); err != nil {
		return nil, errors.NewBrowserError(target, "navigate", err)
	}
	if err := page.WaitLoad(); err != nil {
		return nil, errors.NewBrowserError(target, "wait_load", err)
	}

	if err := r.settle(ctx); err != nil {
		return nil, errors.Categorize(err, target)
	}
	for _, js := range scrollSteps {
		if _, err := page.Eval(js); err != nil {
			r.log.Debugf("scroll failed on %s: %v", target, err)
			break
		}
		if err := r.settle(ctx); err != nil {
			return nil, errors.Categorize(err, target)
		}
	}

	if info, err := page.Info(); err == nil && info != nil {
		result.FinalURL = info.URL
	} else {
		result.FinalURL = target
	}

	html, err := page.HTML()
	if err != nil {
		return nil, errors.NewBrowserError(target, "read_html", err)
	}
	result.HTML = html

	// script[src] elements added after interception stopped still count
	if elements, err := page.Elements("script[src]"); err == nil {
		for _, el := range elements {
			if src, err := el.Property("src"); err == nil {
				capture.Record(src.Str())
			}
		}
	}
	result.Scripts = capture.Scripts()

	if rodCookies, err := page.Cookies(nil); err == nil {
		for _, c := range rodCookies {
			result.Cookies = append(result.Cookies, &http.Cookie{
				Name:     c.Name,
				Value:    c.Value,
				Domain:   c.Domain,
				Path:     c.Path,
				Secure:   c.Secure,
				HttpOnly: c.HTTPOnly,
			})
		}
	}

	result.Duration = time.Since(start)
	r.log.Debugf("rendered %s: %d scripts in %s", target, len(result.Scripts), result.Duration)
	return result, nil
}

// scrollSteps scroll to the middle and then the bottom of the page.
var scrollSteps = []string{
	`() => window.scrollTo(0, document.body.scrollHeight / 2)`,
	`() => window.scrollTo(0, document.body.scrollHeight)`,
}

func (r *Renderer) settle(ctx context.Context) error {
	if r.config.Wait <= 0 {
		return nil
	}
	timer := time.NewTimer(r.config.Wait)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func cookieParams(target string, cookies []*http.Cookie) []*proto.NetworkCookieParam {
	params := make([]*proto.NetworkCookieParam, 0, len(cookies))
	for _, cookie := range cookies {
		p := &proto.NetworkCookieParam{
			Name:     cookie.Name,
			Value:    cookie.Value,
			Domain:   cookie.Domain,
			Path:     cookie.Path,
			Secure:   cookie.Secure,
			HTTPOnly: cookie.HttpOnly,
		}
		if p.Domain == "" {
			p.URL = target
		}
		params = append(params, p)
	}
	return params
}

// Pages returns the number of pages rendered.
func (r *Renderer) Pages() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.pages
}

// Close closes the browser.
func (r *Renderer) Close() error {
	if err := r.browser.Close(); err != nil {
		return fmt.Errorf("failed to close browser: %w", err)
	}
	return nil
}
