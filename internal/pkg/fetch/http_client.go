package fetch

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
)

// Browser-like user agents rotated across requests.
var defaultUserAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.4 Safari/605.1.15",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:125.0) Gecko/20100101 Firefox/125.0",
}

// rateLimitBackoff is the forced pause after a 429 without Retry-After.
const rateLimitBackoff = 3 * time.Second

// ClientOptions configures the direct HTTP transport.
type ClientOptions struct {
	UserAgents        []string
	Headers           map[string]string
	Timeout           time.Duration
	RequestsPerSecond float64
	Burst             int
	ProxyList         []string
}

// Client performs direct HTTP requests that look like a regular browser.
type Client struct {
	userAgents []string
	uaIndex    atomic.Uint32
	headers    map[string]string
	timeout    time.Duration
	client     *http.Client

	limiter    *rate.Limiter
	pauseMu    sync.Mutex
	pauseUntil time.Time

	proxyList         []string
	currentProxyIndex int
	proxyMu           sync.Mutex
}

// NewClient creates the direct HTTP transport.
func NewClient(opts ClientOptions) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	uas := opts.UserAgents
	if len(uas) == 0 {
		uas = defaultUserAgents
	}
	rps := rate.Limit(opts.RequestsPerSecond)
	if opts.RequestsPerSecond <= 0 {
		rps = rate.Inf
	}
	burst := opts.Burst
	if burst <= 0 {
		burst = 1
	}

	return &Client{
		userAgents: uas,
		headers:    opts.Headers,
		timeout:    opts.Timeout,
		client:     &http.Client{Timeout: opts.Timeout, Transport: newTransport(nil)},
		limiter:    rate.NewLimiter(rps, burst),
		proxyList:  opts.ProxyList,
	}
}

func newTransport(proxyURL *url.URL) *http.Transport {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.DisableCompression = true // we send Accept-Encoding and decode in readBodyDecode
	if transport.TLSClientConfig == nil {
		transport.TLSClientConfig = &tls.Config{}
	}
	if os.Getenv("LOTERIAS_INSECURE_TLS") == "1" {
		transport.TLSClientConfig.InsecureSkipVerify = true
	}
	if proxyURL != nil {
		transport.Proxy = http.ProxyURL(proxyURL)
	} else {
		transport.Proxy = http.ProxyFromEnvironment
	}
	return transport
}

// Get performs one request (no retries) and returns the validated payload.
// If a proxy list is configured, proxies are tried in order before the direct connection.
func (c *Client) Get(ctx context.Context, rawURL, referer string, accept Accept) (*Payload, error) {
	if len(c.proxyList) > 0 {
		return c.getWithProxyRetry(ctx, rawURL, referer, accept)
	}
	return c.getDirect(ctx, rawURL, referer, accept)
}

func (c *Client) getDirect(ctx context.Context, rawURL, referer string, accept Accept) (*Payload, error) {
	if err := c.wait(ctx); err != nil {
		return nil, err
	}
	return c.do(ctx, c.client, rawURL, referer, accept)
}

// getWithProxyRetry tries each proxy in the list until one works
func (c *Client) getWithProxyRetry(ctx context.Context, rawURL, referer string, accept Accept) (*Payload, error) {
	c.proxyMu.Lock()
	startIndex := c.currentProxyIndex
	c.proxyMu.Unlock()

	for attempt := 0; attempt < len(c.proxyList); attempt++ {
		proxyIndex := (startIndex + attempt) % len(c.proxyList)
		proxyURLStr := c.proxyList[proxyIndex]

		proxyURL, err := url.Parse(proxyURLStr)
		if err != nil {
			continue
		}
		if err := c.wait(ctx); err != nil {
			return nil, err
		}

		client := &http.Client{Timeout: c.timeout, Transport: newTransport(proxyURL)}
		payload, err := c.do(ctx, client, rawURL, referer, accept)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			slog.Debug("Proxy attempt failed", "proxy", maskProxyURL(proxyURLStr), "error", err)
			continue
		}

		c.proxyMu.Lock()
		if c.currentProxyIndex != proxyIndex {
			slog.Info("Using working proxy", "proxy", maskProxyURL(proxyURLStr))
		}
		c.currentProxyIndex = proxyIndex
		c.proxyMu.Unlock()
		return payload, nil
	}

	slog.Warn("All proxies failed, trying direct connection", "url", rawURL)
	return c.getDirect(ctx, rawURL, referer, accept)
}

func (c *Client) do(ctx context.Context, client *http.Client, rawURL, referer string, accept Accept) (*Payload, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, Permanent(fmt.Errorf("create request: %w", err))
	}
	c.setHeaders(req, referer, accept)

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := readBodyDecode(resp)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, c.handleStatus(resp, body, rawURL)
	}

	contentType := resp.Header.Get("Content-Type")
	kind, err := sniffKind(body, contentType)
	if err != nil {
		slog.Warn("Unusable response body", "url", rawURL, "content_type", contentType, "body_preview", preview(body, 200))
		if errors.Is(err, ErrUnexpectedBody) {
			return nil, Permanent(fmt.Errorf("GET %s: %w", rawURL, err))
		}
		return nil, fmt.Errorf("GET %s: %w", rawURL, err)
	}

	return &Payload{
		Body:        body,
		ContentType: contentType,
		Origin:      rawURL,
		Kind:        kind,
		Status:      resp.StatusCode,
	}, nil
}

// setHeaders sets HTTP headers for requests
func (c *Client) setHeaders(req *http.Request, referer string, accept Accept) {
	req.Header.Set("User-Agent", c.nextUserAgent())
	switch accept {
	case AcceptJSON:
		req.Header.Set("Accept", "application/json, text/plain, */*")
		req.Header.Set("X-Requested-With", "XMLHttpRequest")
		req.Header.Set("sec-fetch-mode", "cors")
		req.Header.Set("sec-fetch-dest", "empty")
	default:
		req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
		req.Header.Set("sec-fetch-mode", "navigate")
		req.Header.Set("sec-fetch-dest", "document")
	}
	req.Header.Set("Accept-Language", "es-ES,es;q=0.9,en;q=0.8")
	req.Header.Set("Accept-Encoding", "gzip, deflate, br, zstd")
	req.Header.Set("Connection", "keep-alive")
	if referer != "" {
		req.Header.Set("Referer", referer)
		if u, err := url.Parse(referer); err == nil && u.Host != "" {
			req.Header.Set("Origin", u.Scheme+"://"+u.Host)
			req.Header.Set("sec-fetch-site", "same-origin")
		}
	}
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}
}

func (c *Client) nextUserAgent() string {
	i := c.uaIndex.Add(1) - 1
	return c.userAgents[int(i)%len(c.userAgents)]
}

// handleStatus turns a non-2xx response into a StatusError and arms the
// forced pause on 429.
func (c *Client) handleStatus(resp *http.Response, body []byte, rawURL string) error {
	statusErr := &StatusError{
		Status:  resp.StatusCode,
		URL:     rawURL,
		Preview: preview(body, 500),
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		backoff := rateLimitBackoff
		if secs, err := strconv.Atoi(strings.TrimSpace(resp.Header.Get("Retry-After"))); err == nil && secs > 0 {
			backoff = time.Duration(secs) * time.Second
		}
		statusErr.RetryAfter = backoff
		c.pauseMu.Lock()
		c.pauseUntil = time.Now().Add(backoff)
		c.pauseMu.Unlock()
		slog.Warn("Rate limited (429), backing off", "url", rawURL, "backoff", backoff)
		return statusErr
	}

	slog.Warn("HTTP error response",
		"url", rawURL,
		"status", resp.StatusCode,
		"body_preview", statusErr.Preview)
	return statusErr
}

// wait enforces the request cadence and any forced pause after a 429.
func (c *Client) wait(ctx context.Context) error {
	c.pauseMu.Lock()
	until := c.pauseUntil
	c.pauseMu.Unlock()
	if d := time.Until(until); d > 0 {
		if err := SleepContext(ctx, d); err != nil {
			return err
		}
	}
	return c.limiter.Wait(ctx)
}

// maskProxyURL masks password in proxy URL for logging
func maskProxyURL(proxyURL string) string {
	parsed, err := url.Parse(proxyURL)
	if err != nil {
		return "***"
	}
	if parsed.User != nil {
		if password, ok := parsed.User.Password(); ok {
			masked := strings.Repeat("*", len(password))
			parsed.User = url.UserPassword(parsed.User.Username(), masked)
		}
	}
	return parsed.String()
}
