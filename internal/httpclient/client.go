// Package httpclient fetches pages and scripts for a scan: pooled connections,
// a cookie jar, per-host rate limiting, retries and size-limited bodies.
package httpclient

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/net/publicsuffix"

	"github.com/PentesterFlow/JSRecon/internal/errors"
	"github.com/PentesterFlow/JSRecon/internal/logger"
	"github.com/PentesterFlow/JSRecon/internal/metrics"
)

// Config holds configuration for the client.
type Config struct {
	Timeout             time.Duration
	MaxIdleConns        int
	MaxIdleConnsPerHost int
	MaxConnsPerHost     int
	UserAgent           string
	Headers             map[string]string
	// Cookies is a raw Cookie header ("a=1; b=2") sent with every request.
	Cookies       string
	SkipTLSVerify bool
	// MaxBodySize caps how many bytes of a response are read.
	MaxBodySize int64
	RateLimit   float64
	Burst       int
	Retry       errors.RetryConfig
}

// DefaultConfig returns defaults suited to fetching a site's scripts.
func DefaultConfig() Config {
	return Config{
		Timeout:             30 * time.Second,
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 20,
		MaxConnsPerHost:     20,
		UserAgent:           "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Safari/537.36",
		SkipTLSVerify:       true,
		MaxBodySize:         20 * 1024 * 1024,
		RateLimit:           10,
		Burst:               5,
		Retry:               errors.DefaultRetryConfig(),
	}
}

// Client is an HTTP client for acquiring JavaScript sources.
type Client struct {
	client  *http.Client
	config  Config
	limiter *Limiter
	retrier *errors.Retrier

	mu      sync.RWMutex
	cookies []*http.Cookie
	metrics *metrics.Collector
	log     *logger.Logger
}

// Response is a fetched resource.
type Response struct {
	URL         string
	FinalURL    string
	StatusCode  int
	ContentType string
	Body        []byte
	// Truncated is set when the body hit MaxBodySize.
	Truncated bool
	Duration  time.Duration
}

// New creates a client.
func New(config Config) (*Client, error) {
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("failed to create cookie jar: %w", err)
	}

	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:          config.MaxIdleConns,
		MaxIdleConnsPerHost:   config.MaxIdleConnsPerHost,
		MaxConnsPerHost:       config.MaxConnsPerHost,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		ForceAttemptHTTP2:     true,
		TLSClientConfig: &tls.Config{
			InsecureSkipVerify: config.SkipTLSVerify,
		},
	}

	c := &Client{
		client: &http.Client{
			Transport: transport,
			Jar:       jar,
			Timeout:   config.Timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 10 {
					return http.ErrUseLastResponse
				}
				return nil
			},
		},
		config:  config,
		limiter: NewLimiter(config.RateLimit, config.Burst),
		retrier: errors.NewRetrier(config.Retry),
		cookies: ParseCookies(config.Cookies),
		log:     logger.Nop(),
	}
	c.retrier.OnRetry(func(attempt int, err error, delay time.Duration) {
		if m := c.collector(); m != nil {
			m.RecordRetry()
		}
		c.logger().Debugf("retry %d in %s: %v", attempt, delay, err)
	})

	return c, nil
}

// ParseCookies parses a raw Cookie header. Malformed pairs are skipped.
func ParseCookies(raw string) []*http.Cookie {
	cookies := make([]*http.Cookie, 0)
	for _, part := range strings.Split(raw, ";") {
		name, value, ok := strings.Cut(strings.TrimSpace(part), "=")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			continue
		}
		cookies = append(cookies, &http.Cookie{Name: name, Value: strings.TrimSpace(value)})
	}
	return cookies
}

// SetMetrics attaches a collector that records fetches and errors.
func (c *Client) SetMetrics(m *metrics.Collector) {
	c.mu.Lock()
	c.metrics = m
	c.mu.Unlock()
}

// SetLogger replaces the client's logger.
func (c *Client) SetLogger(l *logger.Logger) {
	c.mu.Lock()
	c.log = l.WithComponent("httpclient")
	c.mu.Unlock()
}

// SetCookies replaces the cookies sent with every request.
func (c *Client) SetCookies(cookies []*http.Cookie) {
	c.mu.Lock()
	c.cookies = cookies
	c.mu.Unlock()
}

// Cookies returns the configured cookies, for handing to a browser.
func (c *Client) Cookies() []*http.Cookie {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]*http.Cookie(nil), c.cookies...)
}

func (c *Client) collector() *metrics.Collector {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.metrics
}

func (c *Client) logger() *logger.Logger {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.log
}

// Get performs one rate-limited GET. HTTP error statuses are returned as
// categorized errors together with the response.
func (c *Client) Get(ctx context.Context, targetURL string) (*Response, error) {
	start := time.Now()
	result := &Response{URL: targetURL}

	parsed, err := url.Parse(targetURL)
	if err != nil || parsed.Host == "" {
		return result, errors.NewParseError(targetURL, "parse_url", err)
	}

	if err := c.limiter.Wait(ctx, parsed.Host); err != nil {
		return result, errors.Categorize(err, targetURL)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, targetURL, nil)
	if err != nil {
		return result, errors.NewParseError(targetURL, "request_creation", err)
	}

	req.Header.Set("User-Agent", c.config.UserAgent)
	req.Header.Set("Accept", "*/*")
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")
	for k, v := range c.config.Headers {
		req.Header.Set(k, v)
	}
	c.mu.RLock()
	for _, cookie := range c.cookies {
		req.AddCookie(cookie)
	}
	c.mu.RUnlock()

	resp, err := c.client.Do(req)
	if err != nil {
		scanErr := errors.Categorize(err, targetURL)
		c.recordError(scanErr)
		return result, scanErr
	}
	defer resp.Body.Close()

	result.StatusCode = resp.StatusCode
	result.FinalURL = resp.Request.URL.String()
	result.ContentType = resp.Header.Get("Content-Type")

	if m := c.collector(); m != nil {
		m.RecordStatusCode(resp.StatusCode)
	}

	if httpErr := errors.CategorizeHTTPStatus(resp.StatusCode, targetURL); httpErr != nil {
		if httpErr.Type == errors.RateLimit {
			c.limiter.SlowDown(parsed.Host)
		}
		io.Copy(io.Discard, io.LimitReader(resp.Body, 64*1024))
		result.Duration = time.Since(start)
		c.recordError(httpErr)
		return result, httpErr
	}

	body, truncated, err := readLimited(resp.Body, c.config.MaxBodySize)
	if err != nil {
		scanErr := errors.NewNetworkError(targetURL, "body_read", err)
		c.recordError(scanErr)
		return result, scanErr
	}
	result.Body = body
	result.Truncated = truncated
	result.Duration = time.Since(start)

	if m := c.collector(); m != nil {
		m.RecordResponseTime(result.Duration)
	}
	c.logger().FetchEvent(targetURL, result.StatusCode, int64(len(body)), result.Duration)

	return result, nil
}

// readLimited reads at most limit bytes (no limit when limit <= 0) and
// reports whether more were available.
func readLimited(r io.Reader, limit int64) ([]byte, bool, error) {
	if limit <= 0 {
		b, err := io.ReadAll(r)
		return b, false, err
	}
	b, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, false, err
	}
	if int64(len(b)) > limit {
		return b[:limit], true, nil
	}
	return b, false, nil
}

// GetWithRetry performs a GET with automatic retries for transient errors.
func (c *Client) GetWithRetry(ctx context.Context, targetURL string) (*Response, error) {
	var result *Response

	retryResult := c.retrier.Do(ctx, "http_get", targetURL, func(ctx context.Context) error {
		var err error
		result, err = c.Get(ctx, targetURL)
		return err
	})

	if result == nil {
		result = &Response{URL: targetURL}
	}
	if !retryResult.Success {
		return result, retryResult.LastError
	}
	return result, nil
}

func (c *Client) recordError(err *errors.ScanError) {
	if m := c.collector(); m != nil {
		m.RecordError(err.Type.String())
	}
}

// Limiter returns the client's rate limiter.
func (c *Client) Limiter() *Limiter {
	return c.limiter
}

// Close releases idle connections.
func (c *Client) Close() {
	c.client.CloseIdleConnections()
}
