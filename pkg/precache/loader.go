// Package precache populates a generation's store from its manifest.
package precache

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"slices"
	"sync"
	"time"

	"github.com/Sternrassler/offline-cache/pkg/fetch"
	"github.com/Sternrassler/offline-cache/pkg/store"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

var (
	precacheAssetsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "offline_cache_precache_assets_total",
		Help: "Total manifest assets fetched during populate, by result",
	}, []string{"result"}) // "ok", "failed"

	precacheDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "offline_cache_precache_duration_seconds",
		Help:    "Duration of a complete populate in seconds",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
	})
)

// Network is the network primitive used by the loader.
// *fetch.Client implements it.
type Network interface {
	fetch.Fetcher
	Resolve(u *url.URL) *url.URL
	ResponseType(resp *http.Response) store.ResponseType
}

// Config holds loader configuration.
type Config struct {
	// MaxConcurrency is the maximum number of parallel asset fetches
	MaxConcurrency int

	// Timeout bounds the fetch of a single asset
	Timeout time.Duration
}

// DefaultConfig returns the default loader configuration.
func DefaultConfig() Config {
	return Config{
		MaxConcurrency: 6,
		Timeout:        30 * time.Second,
	}
}

// Loader populates the store of one generation.
type Loader struct {
	backend    store.Backend
	generation string
	network    Network
	config     Config
	logger     zerolog.Logger
}

// NewLoader creates a loader for the given generation.
func NewLoader(backend store.Backend, generation string, network Network, config Config, logger zerolog.Logger) *Loader {
	if config.MaxConcurrency <= 0 {
		config.MaxConcurrency = DefaultConfig().MaxConcurrency
	}
	if config.Timeout <= 0 {
		config.Timeout = DefaultConfig().Timeout
	}

	return &Loader{
		backend:    backend,
		generation: generation,
		network:    network,
		config:     config,
		logger:     logger.With().Str("generation", generation).Logger(),
	}
}

type asset struct {
	index int
	name  string
	key   store.Key
	url   *url.URL
}

type assetResult struct {
	index int
	entry *store.Entry
	err   error
}

// Populate fetches every manifest asset and commits them to the generation's
// store in one atomic batch. If any asset fails, nothing is committed and a
// *LoadError is returned.
func (l *Loader) Populate(ctx context.Context, manifest Manifest) error {
	start := time.Now()
	defer func() {
		precacheDuration.Observe(time.Since(start).Seconds())
	}()

	// Step 1: Resolve assets to request keys
	assets, err := l.resolve(manifest)
	if err != nil {
		return err
	}

	// Step 2: Open (create) the generation's store
	handle, err := l.backend.Open(ctx, l.generation)
	if err != nil {
		return fmt.Errorf("open store %q: %w", l.generation, err)
	}

	l.logger.Info().
		Int("assets", len(assets)).
		Int("workers", l.config.MaxConcurrency).
		Msg("Starting precache")

	// Step 3: Fetch all assets with a worker pool
	results := l.fetchAll(ctx, assets)

	// Step 4: All or nothing
	loadErr := &LoadError{Generation: l.generation, Total: len(assets)}
	records := make([]store.Record, 0, len(assets))
	for _, a := range assets {
		res := results[a.index]
		if res.err != nil {
			precacheAssetsTotal.WithLabelValues("failed").Inc()
			loadErr.Failures = append(loadErr.Failures, AssetFailure{Asset: a.name, Err: res.err})
			l.logger.Warn().
				Err(res.err).
				Str("asset", a.name).
				Msg("Asset fetch failed")
			continue
		}
		precacheAssetsTotal.WithLabelValues("ok").Inc()
		records = append(records, store.Record{Key: a.key, Entry: res.entry})
	}

	if len(loadErr.Failures) > 0 {
		l.logger.Error().
			Int("failed", len(loadErr.Failures)).
			Int("total", len(assets)).
			Dur("duration", time.Since(start)).
			Msg("Precache failed, nothing committed")
		return loadErr
	}

	// Step 5: Commit
	if err := handle.PutAll(ctx, records); err != nil {
		return fmt.Errorf("commit generation %q: %w", l.generation, err)
	}

	l.logger.Info().
		Int("assets", len(records)).
		Dur("duration", time.Since(start)).
		Msg("Precache complete")
	return nil
}

// Complete reports whether the generation's store already holds every
// manifest asset, as left behind by an earlier successful Populate. A store
// that does not exist is not created.
func (l *Loader) Complete(ctx context.Context, manifest Manifest) (bool, error) {
	assets, err := l.resolve(manifest)
	if err != nil {
		return false, err
	}

	names, err := l.backend.Names(ctx)
	if err != nil {
		return false, fmt.Errorf("list stores: %w", err)
	}
	if !slices.Contains(names, l.generation) {
		return false, nil
	}

	handle, err := l.backend.Open(ctx, l.generation)
	if err != nil {
		return false, fmt.Errorf("open store %q: %w", l.generation, err)
	}
	keys, err := handle.Keys(ctx)
	if err != nil {
		return false, fmt.Errorf("list keys of %q: %w", l.generation, err)
	}

	stored := make(map[string]bool, len(keys))
	for _, k := range keys {
		stored[k] = true
	}
	for _, a := range assets {
		if !stored[a.key.String()] {
			l.logger.Debug().Str("asset", a.name).Msg("Stored generation is missing an asset")
			return false, nil
		}
	}
	return true, nil
}

// resolve validates the manifest and maps each entry to an absolute URL.
// Entries that resolve to the same request are rejected.
func (l *Loader) resolve(manifest Manifest) ([]asset, error) {
	if err := manifest.Validate(); err != nil {
		return nil, err
	}

	assets := make([]asset, 0, len(manifest.Assets))
	seen := make(map[string]string, len(manifest.Assets))
	for i, name := range manifest.Assets {
		u, err := url.Parse(name)
		if err != nil {
			return nil, fmt.Errorf("%w: asset %q: %v", ErrInvalidManifest, name, err)
		}
		abs := l.network.Resolve(u)
		key := store.Key{Method: http.MethodGet, URL: abs.String()}

		if prev, dup := seen[key.String()]; dup {
			return nil, fmt.Errorf("%w: %q duplicates %q", ErrInvalidManifest, name, prev)
		}
		seen[key.String()] = name

		assets = append(assets, asset{index: i, name: name, key: key, url: abs})
	}
	return assets, nil
}

func (l *Loader) fetchAll(ctx context.Context, assets []asset) []assetResult {
	queue := make(chan asset, len(assets))
	out := make(chan assetResult, len(assets))

	for _, a := range assets {
		queue <- a
	}
	close(queue)

	workers := l.config.MaxConcurrency
	if workers > len(assets) {
		workers = len(assets)
	}

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go l.worker(ctx, queue, out, &wg)
	}

	go func() {
		wg.Wait()
		close(out)
	}()

	results := make([]assetResult, len(assets))
	for res := range out {
		results[res.index] = res
	}
	return results
}

// worker processes assets from the queue.
func (l *Loader) worker(ctx context.Context, queue <-chan asset, out chan<- assetResult, wg *sync.WaitGroup) {
	defer wg.Done()

	for a := range queue {
		entry, err := l.fetchAsset(ctx, a)
		out <- assetResult{index: a.index, entry: entry, err: err}
	}
}

func (l *Loader) fetchAsset(ctx context.Context, a asset) (*store.Entry, error) {
	ctx, cancel := context.WithTimeout(ctx, l.config.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.url.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := l.network.Fetch(ctx, req)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		resp.Body.Close()
		return nil, fmt.Errorf("%w %d", ErrBadStatus, resp.StatusCode)
	}

	// Body is read before the per-asset context is cancelled
	entry, err := store.ResponseToEntry(resp, l.network.ResponseType(resp))
	if err != nil {
		return nil, err
	}

	l.logger.Debug().
		Str("asset", a.name).
		Int("status_code", resp.StatusCode).
		Int("bytes", len(entry.Body)).
		Msg("Asset fetched")
	return entry, nil
}
