// Package metrics exposes Prometheus metrics for the saga engine.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Engine holds the metric instruments used by the action orchestrator.
type Engine struct {
	registry *prometheus.Registry

	// ActionsResolved counts resolved actions partitioned by outcome kind.
	ActionsResolved *prometheus.CounterVec
	// SceneTransitions counts completed scene transitions.
	SceneTransitions prometheus.Counter
	// SweepRuns counts AFK sweep invocations.
	SweepRuns prometheus.Counter
	// SweepTimeouts counts runs force-resolved by the AFK sweep.
	SweepTimeouts prometheus.Counter
	// SweepFailures counts per-run failures isolated during a sweep.
	SweepFailures prometheus.Counter
}

// New creates the engine metric instruments on a private registry.
func New() *Engine {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)
	return &Engine{
		registry: registry,
		ActionsResolved: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "saga",
			Subsystem: "engine",
			Name:      "actions_resolved_total",
			Help:      "Resolved actions by outcome kind.",
		}, []string{"outcome"}),
		SceneTransitions: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "saga",
			Subsystem: "engine",
			Name:      "scene_transitions_total",
			Help:      "Completed scene transitions.",
		}),
		SweepRuns: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "saga",
			Subsystem: "engine",
			Name:      "afk_sweep_runs_total",
			Help:      "AFK sweep invocations.",
		}),
		SweepTimeouts: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "saga",
			Subsystem: "engine",
			Name:      "afk_sweep_timeouts_total",
			Help:      "Runs force-resolved by the AFK sweep.",
		}),
		SweepFailures: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "saga",
			Subsystem: "engine",
			Name:      "afk_sweep_failures_total",
			Help:      "Per-run failures isolated during AFK sweeps.",
		}),
	}
}

// Handler serves the registry in Prometheus exposition format.
func (e *Engine) Handler() http.Handler {
	return promhttp.HandlerFor(e.registry, promhttp.HandlerOpts{})
}
