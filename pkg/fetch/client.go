// Package fetch provides the network primitive: an HTTP client bound to the
// application origin that reports transport failures as NetworkErrors.
package fetch

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/Sternrassler/offline-cache/pkg/store"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Prometheus metrics for network fetches.
var (
	fetchRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "offline_cache_fetch_requests_total",
		Help: "Total network fetches by HTTP status or error class",
	}, []string{"status"})

	fetchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "offline_cache_fetch_duration_seconds",
		Help:    "Network fetch duration in seconds",
		Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10},
	})
)

// hopHeaders are connection-scoped headers that must not be forwarded.
var hopHeaders = []string{
	"Connection",
	"Proxy-Connection",
	"Keep-Alive",
	"Proxy-Authenticate",
	"Proxy-Authorization",
	"Te",
	"Trailer",
	"Transfer-Encoding",
	"Upgrade",
}

// Fetcher performs network requests.
type Fetcher interface {
	// Fetch sends req to the network. Any HTTP status is a successful
	// fetch; a failure to obtain a response is a *NetworkError.
	Fetch(ctx context.Context, req *http.Request) (*http.Response, error)
}

// Client is the HTTP implementation of Fetcher.
type Client struct {
	httpClient *http.Client
	origin     *url.URL
	config     Config
	logger     zerolog.Logger
}

// Config holds the client configuration.
type Config struct {
	// Origin is the application origin; relative request URLs resolve against it
	Origin string

	// UserAgent is set on requests that carry none (optional)
	UserAgent string

	// Timeout bounds a single attempt
	Timeout time.Duration

	// Retry controls retries of network errors
	Retry RetryConfig
}

// DefaultConfig returns a default configuration for origin.
func DefaultConfig(origin string) Config {
	return Config{
		Origin:  origin,
		Timeout: 30 * time.Second,
		Retry:   DefaultRetryConfig(),
	}
}

// New creates a new network client.
func New(cfg Config) (*Client, error) {
	if cfg.Origin == "" {
		return nil, fmt.Errorf("origin is required")
	}

	origin, err := url.Parse(cfg.Origin)
	if err != nil {
		return nil, fmt.Errorf("parse origin: %w", err)
	}
	if origin.Scheme != "http" && origin.Scheme != "https" {
		return nil, fmt.Errorf("origin must be an absolute http(s) URL (got %q)", cfg.Origin)
	}
	if origin.Host == "" {
		return nil, fmt.Errorf("origin must include a host (got %q)", cfg.Origin)
	}

	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	return &Client{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		origin: origin,
		config: cfg,
		logger: log.With().Str("component", "fetch").Logger(),
	}, nil
}

// Origin returns a copy of the application origin.
func (c *Client) Origin() *url.URL {
	u := *c.origin
	return &u
}

// Resolve returns u as an absolute URL, resolved against the origin if relative.
func (c *Client) Resolve(u *url.URL) *url.URL {
	if u.IsAbs() {
		return u
	}
	return c.origin.ResolveReference(u)
}

// Fetch sends the request to the network.
func (c *Client) Fetch(ctx context.Context, req *http.Request) (*http.Response, error) {
	startTime := time.Now()
	defer func() {
		fetchDuration.Observe(time.Since(startTime).Seconds())
	}()

	// Step 1: Build outbound request
	out := req.Clone(ctx)
	out.URL = c.Resolve(req.URL)
	out.Host = ""
	out.RequestURI = ""
	for _, h := range hopHeaders {
		out.Header.Del(h)
	}
	if c.config.UserAgent != "" && out.Header.Get("User-Agent") == "" {
		out.Header.Set("User-Agent", c.config.UserAgent)
	}

	target := out.URL.String()
	c.logger.Debug().
		Str("method", out.Method).
		Str("url", target).
		Msg("Fetching from network")

	// Step 2: Execute with retry on network errors
	retry := c.config.Retry
	if out.Body != nil && out.Body != http.NoBody && out.GetBody == nil {
		// Body cannot be replayed
		retry.MaxAttempts = 1
	}

	var resp *http.Response
	attempt := 0
	err := retryWithBackoff(ctx, retry, c.logger, func() error {
		attempt++
		send := out
		if attempt > 1 && out.GetBody != nil {
			body, err := out.GetBody()
			if err != nil {
				return err
			}
			send = out.Clone(ctx)
			send.Body = body
		}

		var reqErr error
		resp, reqErr = c.httpClient.Do(send)
		if reqErr != nil {
			class := classifyError(reqErr)
			fetchRequestsTotal.WithLabelValues(string(class)).Inc()
			c.logger.Warn().
				Err(reqErr).
				Str("url", target).
				Str("error_class", string(class)).
				Int("attempt", attempt).
				Msg("Network request failed")
			return reqErr
		}
		return nil
	})

	// Step 3: Report transport failures as NetworkError
	if err != nil {
		return nil, &NetworkError{
			Method:     out.Method,
			URL:        target,
			ErrorClass: classifyError(err),
			Err:        err,
		}
	}

	fetchRequestsTotal.WithLabelValues(strconv.Itoa(resp.StatusCode)).Inc()
	c.logger.Debug().
		Str("url", target).
		Int("status_code", resp.StatusCode).
		Dur("duration", time.Since(startTime)).
		Msg("Network response received")

	return resp, nil
}

// ResponseType classifies resp relative to the origin: basic when the final
// URL is same-origin, cors when a cross-origin response carries
// Access-Control-Allow-Origin, opaque otherwise.
func (c *Client) ResponseType(resp *http.Response) store.ResponseType {
	return ClassifyResponse(c.origin, resp)
}

// ClassifyResponse classifies resp relative to origin.
func ClassifyResponse(origin *url.URL, resp *http.Response) store.ResponseType {
	if resp == nil || resp.Request == nil || resp.Request.URL == nil {
		return store.TypeOpaque
	}
	if SameOrigin(origin, resp.Request.URL) {
		return store.TypeBasic
	}
	if resp.Header.Get("Access-Control-Allow-Origin") != "" {
		return store.TypeCORS
	}
	return store.TypeOpaque
}

// SameOrigin reports whether a and b share scheme, host and port.
func SameOrigin(a, b *url.URL) bool {
	return strings.EqualFold(a.Scheme, b.Scheme) &&
		strings.EqualFold(a.Hostname(), b.Hostname()) &&
		effectivePort(a) == effectivePort(b)
}

func effectivePort(u *url.URL) string {
	if p := u.Port(); p != "" {
		return p
	}
	switch strings.ToLower(u.Scheme) {
	case "https":
		return "443"
	case "http":
		return "80"
	}
	return ""
}
