// Package metrics provides container and application metrics collection.
// It wraps Prometheus collectors for namespace resolutions, active fakes and
// provider lifecycle phases. A nil *Collector is valid and records nothing.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Collector provides Kubit metrics collection.
type Collector struct {
	registry *prometheus.Registry

	// Container metrics
	resolutions *prometheus.CounterVec
	failures    *prometheus.CounterVec
	activeFakes prometheus.Gauge

	// Provider lifecycle metrics
	providerPhase    *prometheus.HistogramVec
	providerFailures *prometheus.CounterVec
	appState         prometheus.Gauge
}

// NewCollector creates a collector with its own registry.
func NewCollector(namespace string) *Collector {
	if namespace == "" {
		namespace = "kubit"
	}

	c := &Collector{
		registry: prometheus.NewRegistry(),
	}

	c.resolutions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ioc",
			Name:      "resolutions_total",
			Help:      "Total number of namespace resolutions by source (fake, binding, alias, import, trap)",
		},
		[]string{"namespace", "source"},
	)

	c.failures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ioc",
			Name:      "resolution_failures_total",
			Help:      "Total number of failed namespace resolutions",
		},
		[]string{"namespace"},
	)

	c.activeFakes = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "ioc",
			Name:      "active_fakes",
			Help:      "Number of fakes currently registered",
		},
	)

	c.providerPhase = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "provider",
			Name:      "phase_duration_seconds",
			Help:      "Time taken by a provider lifecycle phase",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 14), // 1ms to ~8s
		},
		[]string{"provider", "phase", "result"},
	)

	c.providerFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "provider",
			Name:      "failures_total",
			Help:      "Total number of provider lifecycle failures",
		},
		[]string{"provider", "phase"},
	)

	c.appState = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "app",
			Name:      "state",
			Help:      "Current application state (0=unknown, 1=initiated, 2=setup, 3=registered, 4=booted, 5=ready, 6=shutdown)",
		},
	)

	c.registry.MustRegister(
		c.resolutions,
		c.failures,
		c.activeFakes,
		c.providerPhase,
		c.providerFailures,
		c.appState,
	)

	return c
}

// Registry returns the Prometheus registry.
func (c *Collector) Registry() *prometheus.Registry {
	if c == nil {
		return nil
	}
	return c.registry
}

// ObserveResolution counts a successful resolution of namespace from source.
func (c *Collector) ObserveResolution(namespace, source string) {
	if c == nil {
		return
	}
	c.resolutions.WithLabelValues(namespace, source).Inc()
}

// ObserveFailure counts a failed resolution.
func (c *Collector) ObserveFailure(namespace string) {
	if c == nil {
		return
	}
	c.failures.WithLabelValues(namespace).Inc()
}

// SetActiveFakes records the number of registered fakes.
func (c *Collector) SetActiveFakes(count int) {
	if c == nil {
		return
	}
	c.activeFakes.Set(float64(count))
}

// RecordProviderPhase records how long a provider phase took.
func (c *Collector) RecordProviderPhase(provider, phase string, duration time.Duration, err error) {
	if c == nil {
		return
	}

	result := "success"
	if err != nil {
		result = "error"
		c.providerFailures.WithLabelValues(provider, phase).Inc()
	}
	c.providerPhase.WithLabelValues(provider, phase, result).Observe(duration.Seconds())
}

// RecordAppState records the application state ordinal.
func (c *Collector) RecordAppState(state int) {
	if c == nil {
		return
	}
	c.appState.Set(float64(state))
}
