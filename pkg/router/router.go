// Package router decides, per intercepted request, whether the response
// comes from the current generation's store, from the network, or both.
package router

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/Sternrassler/offline-cache/pkg/fetch"
	"github.com/Sternrassler/offline-cache/pkg/store"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

// Prometheus metrics for routing decisions.
var (
	routeTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "offline_cache_route_total",
		Help: "Total routed requests by category and response source",
	}, []string{"category", "source"})

	routeFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "offline_cache_route_failures_total",
		Help: "Total routed requests that produced no response, by category",
	}, []string{"category"})

	writebackErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "offline_cache_writeback_errors_total",
		Help: "Total failed write-backs of network responses into the store",
	})
)

// Source names where a routed response came from.
type Source string

const (
	// SourceNetwork is a fresh network response.
	SourceNetwork Source = "network"

	// SourceCache is a stored response for the request itself.
	SourceCache Source = "cache"

	// SourceFallback is the stored root document served for an offline navigation.
	SourceFallback Source = "fallback"
)

// Network is the network primitive used by the router.
// *fetch.Client implements it.
type Network interface {
	fetch.Fetcher

	// Resolve returns u as an absolute URL.
	Resolve(u *url.URL) *url.URL

	// ResponseType classifies resp relative to the application origin.
	ResponseType(resp *http.Response) store.ResponseType
}

// Response is a routed response with its provenance.
type Response struct {
	*http.Response

	Category Category
	Source   Source
}

// Config holds router configuration.
type Config struct {
	// RootDocument is the path served when a navigation fails offline
	RootDocument string

	// WriteTimeout bounds a single write-back; write-backs ignore
	// cancellation of the request context
	WriteTimeout time.Duration
}

// DefaultConfig returns the default router configuration.
func DefaultConfig() Config {
	return Config{
		RootDocument: "/index.html",
		WriteTimeout: 10 * time.Second,
	}
}

// Router applies the routing policies against one generation's store.
type Router struct {
	store   store.Handle
	network Network
	rootKey store.Key
	config  Config
	logger  zerolog.Logger
}

// New creates a router bound to the store of the current generation.
func New(handle store.Handle, network Network, cfg Config, logger zerolog.Logger) (*Router, error) {
	if handle == nil {
		return nil, fmt.Errorf("store handle is required")
	}
	if network == nil {
		return nil, fmt.Errorf("network is required")
	}
	if cfg.RootDocument == "" {
		cfg.RootDocument = DefaultConfig().RootDocument
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = DefaultConfig().WriteTimeout
	}

	root, err := url.Parse(cfg.RootDocument)
	if err != nil {
		return nil, fmt.Errorf("parse root document: %w", err)
	}

	return &Router{
		store:   handle,
		network: network,
		rootKey: store.Key{Method: http.MethodGet, URL: network.Resolve(root).String()},
		config:  cfg,
		logger:  logger.With().Str("generation", handle.Name()).Logger(),
	}, nil
}

// Generation returns the name of the store the router serves from.
func (r *Router) Generation() string {
	return r.store.Name()
}

// Route produces the response for an intercepted request.
func (r *Router) Route(ctx context.Context, req *http.Request) (*Response, error) {
	category := Classify(req)
	key := store.Key{Method: req.Method, URL: r.network.Resolve(req.URL).String()}

	var (
		resp *Response
		err  error
	)
	switch category {
	case CategoryNavigation:
		resp, err = r.networkFirst(ctx, req, key)
	case CategorySubordinate:
		resp, err = r.cacheFirst(ctx, req, key)
	default:
		resp, err = r.passthrough(ctx, req)
	}

	if err != nil {
		routeFailuresTotal.WithLabelValues(string(category)).Inc()
		r.logger.Warn().
			Err(err).
			Str("key", key.String()).
			Str("category", string(category)).
			Msg("Request failed")
		return nil, err
	}

	resp.Category = category
	routeTotal.WithLabelValues(string(category), string(resp.Source)).Inc()
	r.logger.Debug().
		Str("key", key.String()).
		Str("category", string(category)).
		Str("source", string(resp.Source)).
		Int("status_code", resp.StatusCode).
		Msg("Request routed")
	return resp, nil
}

// networkFirst serves navigations: fresh content when online, the stored
// root document when the network fails.
func (r *Router) networkFirst(ctx context.Context, req *http.Request, key store.Key) (*Response, error) {
	// Step 1: Try the network
	resp, err := r.network.Fetch(ctx, req)
	if err == nil {
		// Step 2: Store a copy before handing the response back
		entry, captureErr := r.capture(resp)
		if captureErr == nil {
			if resp.StatusCode != http.StatusPartialContent {
				r.writeBack(ctx, key, entry)
			}
			return &Response{Response: resp, Source: SourceNetwork}, nil
		}
		err = &fetch.NetworkError{
			Method:     req.Method,
			URL:        key.URL,
			ErrorClass: fetch.ErrorClassNetwork,
			Err:        captureErr,
		}
	}

	if !fetch.IsNetworkError(err) {
		return nil, err
	}

	// Step 3: Offline; fall back to the stored root document
	entry, lookupErr := r.store.Get(ctx, r.rootKey)
	if lookupErr != nil {
		if !errors.Is(lookupErr, store.ErrNotFound) {
			r.logger.Error().
				Err(lookupErr).
				Str("key", r.rootKey.String()).
				Msg("Root document lookup failed")
		}
		// No further fallback
		return nil, err
	}

	r.logger.Info().
		Err(err).
		Str("key", key.String()).
		Msg("Network unavailable, serving root document")
	return &Response{Response: entry.Response(req), Source: SourceFallback}, nil
}

// cacheFirst serves subordinate resources: stored copies win, and only
// same-origin 200 responses are stored.
func (r *Router) cacheFirst(ctx context.Context, req *http.Request, key store.Key) (*Response, error) {
	// Step 1: Look up the store
	entry, err := r.store.Get(ctx, key)
	if err == nil {
		return &Response{Response: entry.Response(req), Source: SourceCache}, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("lookup %s: %w", key, err)
	}

	// Step 2: Miss; go to the network (errors propagate)
	resp, err := r.network.Fetch(ctx, req)
	if err != nil {
		return nil, err
	}

	// Step 3: Persist eligible responses
	if resp.StatusCode == http.StatusOK {
		if typ := r.network.ResponseType(resp); typ == store.TypeBasic {
			entry, err := r.capture(resp)
			if err != nil {
				return nil, err
			}
			r.writeBack(ctx, key, entry)
		}
	}

	return &Response{Response: resp, Source: SourceNetwork}, nil
}

func (r *Router) passthrough(ctx context.Context, req *http.Request) (*Response, error) {
	resp, err := r.network.Fetch(ctx, req)
	if err != nil {
		return nil, err
	}
	return &Response{Response: resp, Source: SourceNetwork}, nil
}

// capture reads resp into an entry and restores resp.Body.
func (r *Router) capture(resp *http.Response) (*store.Entry, error) {
	entry, err := store.ResponseToEntry(resp, r.network.ResponseType(resp))
	if err != nil {
		return nil, fmt.Errorf("capture response: %w", err)
	}
	return entry, nil
}

// writeBack stores entry under key. Failures are logged, never returned.
func (r *Router) writeBack(ctx context.Context, key store.Key, entry *store.Entry) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.config.WriteTimeout)
	defer cancel()

	if err := r.store.Put(ctx, key, entry); err != nil {
		writebackErrorsTotal.Inc()
		r.logger.Warn().
			Err(err).
			Str("key", key.String()).
			Msg("Failed to store response")
		return
	}

	r.logger.Debug().
		Str("key", key.String()).
		Int("status_code", entry.StatusCode).
		Int("bytes", len(entry.Body)).
		Msg("Stored response")
}
