package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// NodeMetrics tracks process-level metrics
type NodeMetrics struct {
	apiRequestsTotal   *prometheus.CounterVec
	apiRequestDuration *prometheus.HistogramVec
	hubClients         prometheus.Gauge
	hubBroadcastsTotal *prometheus.CounterVec
	schemaLoadsTotal   *prometheus.CounterVec
	schemaVersion      prometheus.Gauge
}

// NewNodeMetrics initializes node-level metrics with the collector
func NewNodeMetrics(collector *Collector) *NodeMetrics {
	return &NodeMetrics{
		apiRequestsTotal: collector.RegisterCounter(
			MetricAPIRequestsTotal,
			"Total HTTP/gRPC requests by method, endpoint, and status",
			[]string{LabelMethod, LabelEndpoint, LabelStatus},
		),
		apiRequestDuration: collector.RegisterHistogram(
			MetricAPIRequestDuration,
			"API request latency in seconds",
			[]string{LabelMethod, LabelEndpoint},
			prometheus.DefBuckets,
		),
		hubClients: collector.RegisterGauge(
			MetricHubClients,
			"Number of connected WebSocket clients",
			nil,
		).WithLabelValues(),
		hubBroadcastsTotal: collector.RegisterCounter(
			MetricHubBroadcastsTotal,
			"Total state messages broadcast by model",
			[]string{LabelModel},
		),
		schemaLoadsTotal: collector.RegisterCounter(
			MetricSchemaLoadsTotal,
			"Total schema loads by source and status",
			[]string{LabelSource, LabelStatus},
		),
		schemaVersion: collector.RegisterGauge(
			MetricSchemaVersion,
			"Number of successful schema loads since start",
			nil,
		).WithLabelValues(),
	}
}

// RecordAPIRequest records an API request
func (m *NodeMetrics) RecordAPIRequest(method, endpoint, status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.apiRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
	m.apiRequestsTotal.WithLabelValues(method, endpoint, status).Inc()
}

// SetHubClients updates the connected client gauge
func (m *NodeMetrics) SetHubClients(n int) {
	if m == nil {
		return
	}
	m.hubClients.Set(float64(n))
}

// RecordBroadcast records a state broadcast
func (m *NodeMetrics) RecordBroadcast(model string) {
	if m == nil {
		return
	}
	m.hubBroadcastsTotal.WithLabelValues(model).Inc()
}

// RecordSchemaLoad records a schema load attempt
func (m *NodeMetrics) RecordSchemaLoad(source string, version int64, err error) {
	if m == nil {
		return
	}
	m.schemaLoadsTotal.WithLabelValues(source, status(err)).Inc()
	if err == nil {
		m.schemaVersion.Set(float64(version))
	}
}
