package lifecycle

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// generationState is 1 for the current state of a generation, 0 otherwise
	generationState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "offline_cache_generation_state",
			Help: "Lifecycle state of the current generation",
		},
		[]string{"generation", "state"},
	)

	installAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "offline_cache_install_attempts_total",
			Help: "Total install attempts by result",
		},
		[]string{"result"}, // "ok", "reused", "failed"
	)

	reapedStores = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "offline_cache_reaped_stores_total",
			Help: "Total stale stores processed by the reaper, by result",
		},
		[]string{"result"}, // "deleted", "failed"
	)
)
