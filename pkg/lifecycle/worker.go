package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/Sternrassler/offline-cache/pkg/precache"
	"github.com/Sternrassler/offline-cache/pkg/router"
	"github.com/Sternrassler/offline-cache/pkg/store"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// WorkerConfig holds everything a Worker is assembled from.
type WorkerConfig struct {
	// Backend holds the stores of all generations
	Backend store.Backend

	// Network is the network primitive shared by loader, router and passthrough
	Network router.Network

	// GenerationID names the generation this process installs
	GenerationID string

	// Manifest lists the assets of the generation
	Manifest precache.Manifest

	Precache precache.Config
	Router   router.Config

	// SkipWaiting activates the generation as soon as it is installed
	SkipWaiting bool

	// InstallRetry is the interval between install attempts after a failure
	InstallRetry time.Duration

	Logger zerolog.Logger
}

// Worker implements the host lifecycle hooks for one generation.
type Worker struct {
	config   WorkerConfig
	registry *Registry
	loader   *precache.Loader
	reaper   *Reaper
	logger   zerolog.Logger

	mu     sync.RWMutex
	router *router.Router

	cron    *cron.Cron
	retryMu sync.Mutex
	retryID cron.EntryID
}

// NewWorker validates cfg and assembles a worker.
func NewWorker(cfg WorkerConfig) (*Worker, error) {
	if cfg.Backend == nil {
		return nil, fmt.Errorf("store backend is required")
	}
	if cfg.Network == nil {
		return nil, fmt.Errorf("network is required")
	}
	if err := cfg.Manifest.Validate(); err != nil {
		return nil, err
	}
	if cfg.InstallRetry <= 0 {
		cfg.InstallRetry = 30 * time.Second
	}

	registry, err := NewRegistry(cfg.GenerationID)
	if err != nil {
		return nil, err
	}

	logger := cfg.Logger.With().Str("generation", cfg.GenerationID).Logger()

	return &Worker{
		config:   cfg,
		registry: registry,
		loader:   precache.NewLoader(cfg.Backend, cfg.GenerationID, cfg.Network, cfg.Precache, cfg.Logger),
		reaper:   NewReaper(cfg.Backend, registry, logger),
		logger:   logger,
		cron:     cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
	}, nil
}

// Registry returns the generation registry.
func (w *Worker) Registry() *Registry {
	return w.registry
}

// Ready reports whether a generation is active.
func (w *Worker) Ready() bool {
	return w.registry.State() == StateActive
}

// OnInstall populates the generation's store from the manifest. A store
// already holding every manifest asset, as left by an earlier process, is
// reused without touching the network.
// On failure the registry returns to StateNone and the install may be retried.
func (w *Worker) OnInstall(ctx context.Context) error {
	if err := w.registry.BeginInstall(); err != nil {
		return err
	}

	complete, err := w.loader.Complete(ctx, w.config.Manifest)
	if err != nil {
		w.logger.Warn().Err(err).Msg("Failed to inspect stored generation, populating")
	}
	if complete {
		installAttempts.WithLabelValues("reused").Inc()
		if err := w.registry.CompleteInstall(); err != nil {
			return err
		}
		w.logger.Info().Msg("Generation already installed, reusing store")
		return nil
	}

	w.logger.Info().Int("assets", len(w.config.Manifest.Assets)).Msg("Installing generation")

	if err := w.loader.Populate(ctx, w.config.Manifest); err != nil {
		installAttempts.WithLabelValues("failed").Inc()
		if failErr := w.registry.FailInstall(); failErr != nil {
			w.logger.Error().Err(failErr).Msg("Failed to reset install state")
		}
		return fmt.Errorf("install %q: %w", w.registry.CurrentID(), err)
	}

	installAttempts.WithLabelValues("ok").Inc()
	if err := w.registry.CompleteInstall(); err != nil {
		return err
	}
	w.logger.Info().Msg("Generation installed")
	return nil
}

// OnActivate makes the installed generation serve requests, then deletes
// the stores of every other generation.
func (w *Worker) OnActivate(ctx context.Context) (ReapResult, error) {
	if state := w.registry.State(); state != StateInstalled {
		return ReapResult{}, fmt.Errorf("%w: activate in state %s", ErrInvalidTransition, state)
	}

	handle, err := w.config.Backend.Open(ctx, w.registry.CurrentID())
	if err != nil {
		return ReapResult{}, fmt.Errorf("open store: %w", err)
	}

	rt, err := router.New(handle, w.config.Network, w.config.Router, w.logger)
	if err != nil {
		return ReapResult{}, err
	}

	// Step 1: Claim; requests are routed by this generation from here on
	if err := w.registry.Activate(); err != nil {
		return ReapResult{}, err
	}
	w.mu.Lock()
	w.router = rt
	w.mu.Unlock()
	w.logger.Info().Msg("Generation activated")

	// Step 2: Reap superseded generations
	return w.reaper.Reap(ctx), nil
}

// OnIntercept produces the response for an intercepted request. Until a
// generation is active, requests go straight to the network.
func (w *Worker) OnIntercept(ctx context.Context, req *http.Request) (*router.Response, error) {
	w.mu.RLock()
	rt := w.router
	w.mu.RUnlock()

	if rt != nil {
		return rt.Route(ctx, req)
	}

	resp, err := w.config.Network.Fetch(ctx, req)
	if err != nil {
		return nil, err
	}
	return &router.Response{
		Response: resp,
		Category: router.Classify(req),
		Source:   router.SourceNetwork,
	}, nil
}

// Start installs the generation and, with SkipWaiting, activates it.
// A failed install is retried every InstallRetry until it succeeds.
// An invalid manifest is returned immediately.
func (w *Worker) Start(ctx context.Context) error {
	err := w.advance(ctx)
	if err == nil {
		return nil
	}
	if errors.Is(err, precache.ErrInvalidManifest) {
		return err
	}

	w.logger.Warn().
		Err(err).
		Dur("retry_in", w.config.InstallRetry).
		Msg("Install failed, scheduling retry")
	return w.scheduleRetry(ctx)
}

// Activate triggers activation of an installed generation when SkipWaiting is off.
func (w *Worker) Activate(ctx context.Context) (ReapResult, error) {
	return w.OnActivate(ctx)
}

// Stop cancels pending install retries and waits for a running one.
func (w *Worker) Stop() {
	<-w.cron.Stop().Done()
}

// advance moves the generation forward as far as configuration allows.
func (w *Worker) advance(ctx context.Context) error {
	if w.registry.State() == StateNone {
		if err := w.OnInstall(ctx); err != nil {
			return err
		}
	}
	if w.config.SkipWaiting && w.registry.State() == StateInstalled {
		if _, err := w.OnActivate(ctx); err != nil {
			return err
		}
	}
	return nil
}

func (w *Worker) scheduleRetry(ctx context.Context) error {
	w.retryMu.Lock()
	defer w.retryMu.Unlock()

	schedule := fmt.Sprintf("@every %s", w.config.InstallRetry)
	id, err := w.cron.AddFunc(schedule, func() { w.retry(ctx) })
	if err != nil {
		return fmt.Errorf("schedule install retry: %w", err)
	}
	w.retryID = id
	w.cron.Start()
	return nil
}

func (w *Worker) retry(ctx context.Context) {
	if err := w.advance(ctx); err != nil {
		w.logger.Warn().Err(err).Msg("Install retry failed")
		return
	}

	w.retryMu.Lock()
	w.cron.Remove(w.retryID)
	w.retryMu.Unlock()
	w.logger.Info().Msg("Install retry succeeded")
}
