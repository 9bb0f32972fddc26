package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// DurationBuckets cover 2ms to roughly 8s, the range of upstream round trips
var DurationBuckets = prometheus.ExponentialBuckets(0.002, 2, 13)

// CollectorOptions configures a Collector
type CollectorOptions struct {
	// ConstLabels are stamped on every engine metric
	ConstLabels prometheus.Labels
	// Runtime adds the Go runtime and process collectors
	Runtime bool
}

// Collector owns the engine's Prometheus registry. Engine metrics are
// registered through it so they share constant labels.
type Collector struct {
	registry *prometheus.Registry
	factory  promauto.Factory
}

// NewCollector creates a collector with an empty registry
func NewCollector() *Collector {
	return NewCollectorWithOptions(CollectorOptions{})
}

// NewCollectorWithOptions creates a collector
func NewCollectorWithOptions(opts CollectorOptions) *Collector {
	registry := prometheus.NewRegistry()
	if opts.Runtime {
		registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}

	var reg prometheus.Registerer = registry
	if len(opts.ConstLabels) > 0 {
		reg = prometheus.WrapRegistererWith(opts.ConstLabels, registry)
	}
	return &Collector{
		registry: registry,
		factory:  promauto.With(reg),
	}
}

// RegisterCounter registers a counter vector
func (c *Collector) RegisterCounter(name, help string, labels []string) *prometheus.CounterVec {
	return c.factory.NewCounterVec(prometheus.CounterOpts{Name: name, Help: help}, labels)
}

// RegisterGauge registers a gauge vector
func (c *Collector) RegisterGauge(name, help string, labels []string) *prometheus.GaugeVec {
	return c.factory.NewGaugeVec(prometheus.GaugeOpts{Name: name, Help: help}, labels)
}

// RegisterHistogram registers a histogram vector. nil buckets select
// DurationBuckets.
func (c *Collector) RegisterHistogram(name, help string, labels []string, buckets []float64) *prometheus.HistogramVec {
	if buckets == nil {
		buckets = DurationBuckets
	}
	return c.factory.NewHistogramVec(prometheus.HistogramOpts{Name: name, Help: help, Buckets: buckets}, labels)
}

// GetRegistry returns the registry served under /metrics
func (c *Collector) GetRegistry() *prometheus.Registry {
	return c.registry
}
