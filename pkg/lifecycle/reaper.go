package lifecycle

import (
	"context"

	"github.com/Sternrassler/offline-cache/pkg/store"
	"github.com/rs/zerolog"
)

// ReapResult lists what one reap did.
type ReapResult struct {
	Deleted []string
	Failed  map[string]error
}

// Reaper deletes the stores of superseded generations.
type Reaper struct {
	backend  store.Backend
	registry *Registry
	logger   zerolog.Logger
}

// NewReaper creates a reaper that keeps only the registry's current generation.
func NewReaper(backend store.Backend, registry *Registry, logger zerolog.Logger) *Reaper {
	return &Reaper{
		backend:  backend,
		registry: registry,
		logger:   logger,
	}
}

// Reap deletes every store whose name is not the current generation.
// Failures are logged and reported in the result; they are not retried and
// do not stop the remaining deletions. Reaping again is safe.
func (r *Reaper) Reap(ctx context.Context) ReapResult {
	result := ReapResult{Failed: map[string]error{}}

	stale, err := r.registry.Stale(ctx, r.backend)
	if err != nil {
		r.logger.Error().Err(err).Msg("Failed to list stores, skipping reap")
		return result
	}

	for _, name := range stale {
		if _, err := r.backend.Drop(ctx, name); err != nil {
			reapedStores.WithLabelValues("failed").Inc()
			result.Failed[name] = err
			r.logger.Warn().
				Err(err).
				Str("store", name).
				Msg("Failed to delete stale store")
			continue
		}
		reapedStores.WithLabelValues("deleted").Inc()
		result.Deleted = append(result.Deleted, name)
	}

	r.logger.Info().
		Str("current", r.registry.CurrentID()).
		Strs("deleted", result.Deleted).
		Int("failed", len(result.Failed)).
		Msg("Reap complete")
	return result
}
