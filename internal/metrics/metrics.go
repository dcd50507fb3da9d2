// Package metrics exposes Prometheus collectors fed by engine lifecycle hooks.
package metrics

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/aretw0/storygraph/pkg/domain"
)

const namespace = "storygraph"

// Collector owns a private registry so several engines (or tests) can coexist
// in one process.
type Collector struct {
	registry            *prometheus.Registry
	storyStarts         *prometheus.CounterVec
	choices             *prometheus.CounterVec
	completions         *prometheus.CounterVec
	persistenceFailures *prometheus.CounterVec
	requestDuration     *prometheus.HistogramVec
}

// New creates a collector with the Go and process collectors registered.
func New() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		storyStarts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "story_starts_total",
				Help:      "Total number of story starts and restarts",
			},
			[]string{"story_id"},
		),
		choices: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "choices_total",
				Help:      "Total number of choices applied",
			},
			[]string{"story_id"},
		),
		completions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "completions_total",
				Help:      "Total number of first-time story completions by category",
			},
			[]string{"category"},
		),
		persistenceFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "persistence_failures_total",
				Help:      "Total number of progress or stats writes that failed",
			},
			[]string{"story_id"},
		),
		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "Duration of HTTP requests by route",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "route", "status"},
		),
	}

	c.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		c.storyStarts,
		c.choices,
		c.completions,
		c.persistenceFailures,
		c.requestDuration,
	)
	return c
}

// Hooks returns lifecycle hooks that record engine events.
func (c *Collector) Hooks() domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnStoryStart: func(_ context.Context, e *domain.SessionEvent) {
			c.storyStarts.WithLabelValues(id(e.StoryID)).Inc()
		},
		OnChoice: func(_ context.Context, e *domain.SessionEvent) {
			c.choices.WithLabelValues(id(e.StoryID)).Inc()
		},
		OnCompletion: func(_ context.Context, e *domain.SessionEvent) {
			c.completions.WithLabelValues(e.Category).Inc()
		},
		OnPersistenceFailure: func(_ context.Context, e *domain.SessionEvent) {
			c.persistenceFailures.WithLabelValues(id(e.StoryID)).Inc()
		},
	}
}

// ObserveRequest records one served HTTP request.
func (c *Collector) ObserveRequest(method, route string, status int, d time.Duration) {
	c.requestDuration.WithLabelValues(method, route, strconv.Itoa(status)).Observe(d.Seconds())
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}

// Registry exposes the underlying registry.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

func id(v int64) string {
	return strconv.FormatInt(v, 10)
}
