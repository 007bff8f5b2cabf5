// Package fetch performs single GET requests for discovered links and
// classifies failures as transient or permanent.
package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/law-makers/harvest/internal/ratelimit"
	"github.com/law-makers/harvest/pkg/models"
)

const (
	// DefaultTimeout bounds one fetch including the body read
	DefaultTimeout = 12 * time.Second
	// DefaultMaxBodyBytes caps how much of a response body is read
	DefaultMaxBodyBytes int64 = 16 * 1024 * 1024
)

// Options configures a Client
type Options struct {
	Timeout      time.Duration
	UserAgent    string
	Headers      map[string]string
	MaxBodyBytes int64
}

// Request describes one fetch
type Request struct {
	URL     string
	Cookies models.Cookies
	Headers map[string]string
	// Timeout overrides Options.Timeout when > 0
	Timeout time.Duration
}

// Response is a successful fetch. A 2xx response is a success even when
// the body turns out to be unusable; that is for the extractor to decide.
type Response struct {
	URL        string
	StatusCode int
	Body       []byte
	Duration   time.Duration
}

// Client fetches item pages with a shared cookie snapshot
type Client struct {
	client  *http.Client
	limiter ratelimit.RateLimiter
	opts    Options
}

// NewHTTPClient builds the pooled transport shared by all workers.
// proxyURL may be empty.
func NewHTTPClient(proxyURL string) (*http.Client, error) {
	transport := &http.Transport{
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
		DisableKeepAlives:   false,
	}

	if proxyURL != "" {
		u, err := url.Parse(proxyURL)
		if err != nil {
			return nil, fmt.Errorf("invalid proxy URL: %w", err)
		}
		transport.Proxy = http.ProxyURL(u)
	}

	// Timeouts are applied per request through the context
	return &http.Client{Transport: transport}, nil
}

// New creates a Client. limiter may be nil to disable rate limiting.
func New(client *http.Client, limiter ratelimit.RateLimiter, opts Options) *Client {
	if client == nil {
		client = &http.Client{}
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = DefaultMaxBodyBytes
	}
	return &Client{
		client:  client,
		limiter: limiter,
		opts:    opts,
	}
}

// Fetch performs one GET. Failures are returned as *Error.
func (c *Client) Fetch(ctx context.Context, req Request) (*Response, error) {
	start := time.Now()

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx, req.URL); err != nil {
			return nil, fmt.Errorf("rate limiter wait: %w", err)
		}
	}

	timeout := c.opts.Timeout
	if req.Timeout > 0 {
		timeout = req.Timeout
	}
	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(reqCtx, http.MethodGet, req.URL, nil)
	if err != nil {
		return nil, &Error{Kind: KindPermanent, URL: req.URL, Err: fmt.Errorf("failed to create request: %w", err)}
	}

	httpReq.Header.Set("User-Agent", c.opts.UserAgent)
	httpReq.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	httpReq.Header.Set("Accept-Language", "en-US,en;q=0.9")
	for key, value := range c.opts.Headers {
		httpReq.Header.Set(key, value)
	}
	for key, value := range req.Headers {
		httpReq.Header.Set(key, value)
	}
	if cookie := CookieHeader(req.Cookies); cookie != "" {
		httpReq.Header.Set("Cookie", cookie)
	}

	resp, err := c.client.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			// Caller cancelled, not a fetch failure
			return nil, ctx.Err()
		}
		return nil, &Error{Kind: classifyTransport(err), URL: req.URL, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// Drain a little so the connection can be reused
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, &Error{
			Kind:       classifyStatus(resp.StatusCode),
			URL:        req.URL,
			StatusCode: resp.StatusCode,
		}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.opts.MaxBodyBytes))
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &Error{Kind: KindTransient, URL: req.URL, Err: fmt.Errorf("failed to read body: %w", err)}
	}

	duration := time.Since(start)
	log.Debug().
		Str("url", req.URL).
		Int("status", resp.StatusCode).
		Int("bytes", len(body)).
		Dur("duration", duration).
		Msg("Fetch completed")

	return &Response{
		URL:        req.URL,
		StatusCode: resp.StatusCode,
		Body:       body,
		Duration:   duration,
	}, nil
}

// CookieHeader renders a snapshot as a Cookie header value in name order
func CookieHeader(c models.Cookies) string {
	names := c.Names()
	if len(names) == 0 {
		return ""
	}
	parts := make([]string, 0, len(names))
	for _, name := range names {
		v, _ := c.Get(name)
		parts = append(parts, name+"="+v)
	}
	return strings.Join(parts, "; ")
}
