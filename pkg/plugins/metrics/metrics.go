// Package metrics provides a strata plugin that records Prometheus
// metrics for every store a container creates: mutation counts by
// kind, action counts by outcome, and action durations.
//
// Usage:
//
//	c := strata.NewContainer()
//	c.Use(metrics.Plugin(
//	    metrics.WithNamespace("myapp"),
//	))
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/strata-dev/strata/pkg/strata"
)

// Config configures the metrics plugin.
type Config struct {
	// Namespace is the metrics namespace (default: "strata").
	Namespace string

	// Subsystem is the metrics subsystem (default: "").
	Subsystem string

	// ConstLabels are constant labels added to all metrics.
	ConstLabels prometheus.Labels

	// Buckets are the histogram buckets for action duration.
	// Default: prometheus.DefBuckets.
	Buckets []float64

	// Registry is the Prometheus registry to use.
	// Default: prometheus.DefaultRegisterer.
	Registry prometheus.Registerer
}

// Option configures the metrics plugin.
type Option func(*Config)

// WithNamespace sets the metrics namespace.
func WithNamespace(namespace string) Option {
	return func(c *Config) {
		c.Namespace = namespace
	}
}

// WithSubsystem sets the metrics subsystem.
func WithSubsystem(subsystem string) Option {
	return func(c *Config) {
		c.Subsystem = subsystem
	}
}

// WithConstLabels sets constant labels for all metrics.
func WithConstLabels(labels prometheus.Labels) Option {
	return func(c *Config) {
		c.ConstLabels = labels
	}
}

// WithBuckets sets the action duration histogram buckets.
func WithBuckets(buckets []float64) Option {
	return func(c *Config) {
		c.Buckets = buckets
	}
}

// WithRegistry sets the Prometheus registry.
func WithRegistry(registry prometheus.Registerer) Option {
	return func(c *Config) {
		c.Registry = registry
	}
}

func defaultConfig() Config {
	return Config{
		Namespace: "strata",
		Buckets:   prometheus.DefBuckets,
		Registry:  prometheus.DefaultRegisterer,
	}
}

// collectors holds the Prometheus collectors for one plugin instance.
type collectors struct {
	mutationsTotal *prometheus.CounterVec
	actionsTotal   *prometheus.CounterVec
	actionDuration *prometheus.HistogramVec
	storesActive   prometheus.Gauge
}

func newCollectors(config Config) *collectors {
	factory := promauto.With(config.Registry)

	return &collectors{
		mutationsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "mutations_total",
			Help:        "Total number of store state mutations",
			ConstLabels: config.ConstLabels,
		}, []string{"store", "kind"}),

		actionsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "actions_total",
			Help:        "Total number of store action calls by outcome",
			ConstLabels: config.ConstLabels,
		}, []string{"store", "action", "status"}),

		actionDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "action_duration_seconds",
			Help:        "Action execution duration in seconds, including promise settlement",
			ConstLabels: config.ConstLabels,
			Buckets:     config.Buckets,
		}, []string{"store", "action"}),

		storesActive: factory.NewGauge(prometheus.GaugeOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "stores_active",
			Help:        "Number of live store instances",
			ConstLabels: config.ConstLabels,
		}),
	}
}

// Plugin returns a container plugin that instruments every store
// created after registration. Each Plugin call owns its collectors, so
// separate containers can report to separate registries.
func Plugin(opts ...Option) strata.Plugin {
	config := defaultConfig()
	for _, opt := range opts {
		opt(&config)
	}
	c := newCollectors(config)

	return func(ctx *strata.PluginContext) map[string]any {
		store := ctx.Store
		id := store.ID()

		c.storesActive.Inc()
		store.OnDispose(func() {
			c.storesActive.Dec()
		})

		store.Subscribe(func(rec strata.MutationRecord, state map[string]any) {
			c.mutationsTotal.WithLabelValues(id, rec.Kind.String()).Inc()
		}, strata.Detached())

		store.OnAction(func(ac *strata.ActionContext) {
			start := time.Now()
			name := ac.Name
			ac.After(func(any) {
				c.actionDuration.WithLabelValues(id, name).Observe(time.Since(start).Seconds())
				c.actionsTotal.WithLabelValues(id, name, "success").Inc()
			})
			ac.OnError(func(error) {
				c.actionDuration.WithLabelValues(id, name).Observe(time.Since(start).Seconds())
				c.actionsTotal.WithLabelValues(id, name, "error").Inc()
			})
		}, strata.Detached())

		return nil
	}
}
