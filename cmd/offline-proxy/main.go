package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"strconv"
	"syscall"
	"time"

	"github.com/Sternrassler/offline-cache/internal/config"
	"github.com/Sternrassler/offline-cache/pkg/fetch"
	"github.com/Sternrassler/offline-cache/pkg/lifecycle"
	"github.com/Sternrassler/offline-cache/pkg/logging"
	"github.com/Sternrassler/offline-cache/pkg/metrics"
	"github.com/Sternrassler/offline-cache/pkg/store"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

func main() {
	configPath := flag.String("config", os.Getenv("OFFLINE_CACHE_CONFIG"), "path to the YAML config file")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, *configPath); err != nil {
		fmt.Fprintf(os.Stderr, "offline-proxy: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger := logging.Setup(cfg.LoggingOptions())

	manifest, err := cfg.LoadManifest()
	if err != nil {
		return err
	}

	backend, err := store.New(ctx, cfg.StoreOptions())
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer backend.Close()
	logger.Info().Str("driver", cfg.Store.Driver).Msg("Store backend ready")

	network, err := fetch.New(cfg.FetchOptions())
	if err != nil {
		return fmt.Errorf("create fetch client: %w", err)
	}

	worker, err := lifecycle.NewWorker(lifecycle.WorkerConfig{
		Backend:      backend,
		Network:      network,
		GenerationID: cfg.Generation.ID,
		Manifest:     manifest,
		Precache:     cfg.PrecacheOptions(),
		Router:       cfg.RouterOptions(),
		SkipWaiting:  cfg.Generation.SkipWaiting,
		InstallRetry: cfg.Generation.InstallRetry.DurationValue(),
		Logger:       logging.NewLogger("lifecycle"),
	})
	if err != nil {
		return err
	}
	defer worker.Stop()

	if err := worker.Start(ctx); err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              ":" + strconv.Itoa(cfg.Server.Port),
		Handler:           newRouter(worker, logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().
			Str("addr", srv.Addr).
			Str("origin", network.Origin().String()).
			Str("generation", cfg.Generation.ID).
			Msg("Starting offline proxy")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info().Msg("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout.DurationValue())
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

// newRouter mounts the operational endpoints; every other request is
// intercepted by the worker.
func newRouter(worker *lifecycle.Worker, logger zerolog.Logger) http.Handler {
	r := chi.NewRouter()
	r.Get("/healthz", healthHandler)
	r.Get("/readyz", readyHandler(worker))
	r.Handle("/metrics", metrics.Handler())
	r.Post("/lifecycle/activate", activateHandler(worker, logger))
	r.NotFound(worker.ServeHTTP)
	r.MethodNotAllowed(worker.ServeHTTP)
	return r
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, "OK")
}

func readyHandler(worker *lifecycle.Worker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !worker.Ready() {
			http.Error(w, "generation "+string(worker.Registry().State()), http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, "OK")
	}
}

type activateResponse struct {
	Generation string            `json:"generation"`
	Deleted    []string          `json:"deleted"`
	Failed     map[string]string `json:"failed,omitempty"`
}

func activateHandler(worker *lifecycle.Worker, logger zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		result, err := worker.Activate(r.Context())
		if err != nil {
			status := http.StatusInternalServerError
			if errors.Is(err, lifecycle.ErrInvalidTransition) {
				status = http.StatusConflict
			}
			http.Error(w, err.Error(), status)
			return
		}

		body := activateResponse{
			Generation: worker.Registry().CurrentID(),
			Deleted:    result.Deleted,
		}
		if body.Deleted == nil {
			body.Deleted = []string{}
		}
		if len(result.Failed) > 0 {
			body.Failed = make(map[string]string, len(result.Failed))
			for name, err := range result.Failed {
				body.Failed[name] = err.Error()
			}
		}
		sort.Strings(body.Deleted)

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(body); err != nil {
			logger.Debug().Err(err).Msg("Failed to write activate response")
		}
	}
}
