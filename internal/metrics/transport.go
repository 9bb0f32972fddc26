package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// TransportMetrics tracks traffic to the upstream backend
type TransportMetrics struct {
	backendRequestsTotal   *prometheus.CounterVec
	backendRequestDuration *prometheus.HistogramVec
	wsReconnectsTotal      *prometheus.CounterVec
	wsDeltasTotal          *prometheus.CounterVec
	wsState                *prometheus.GaugeVec
}

// NewTransportMetrics initializes transport metrics with the collector
func NewTransportMetrics(collector *Collector) *TransportMetrics {
	return &TransportMetrics{
		backendRequestsTotal: collector.RegisterCounter(
			MetricBackendRequestsTotal,
			"Total backend REST requests by operation and status",
			[]string{LabelOperation, LabelStatus},
		),
		backendRequestDuration: collector.RegisterHistogram(
			MetricBackendRequestDuration,
			"Backend REST request latency in seconds",
			[]string{LabelOperation},
			DurationBuckets,
		),
		wsReconnectsTotal: collector.RegisterCounter(
			MetricWSQueryReconnectsTotal,
			"Total query channel reconnect attempts",
			[]string{LabelChannel},
		),
		wsDeltasTotal: collector.RegisterCounter(
			MetricWSQueryDeltasTotal,
			"Total delta messages received on query channels",
			[]string{LabelChannel},
		),
		wsState: collector.RegisterGauge(
			MetricWSQueryState,
			"Query channel state: 0 disconnected, 1 connecting, 2 connected",
			[]string{LabelChannel},
		),
	}
}

// RecordBackendRequest records a REST round trip
func (m *TransportMetrics) RecordBackendRequest(operation string, duration time.Duration, err error) {
	if m == nil {
		return
	}
	m.backendRequestDuration.WithLabelValues(operation).Observe(duration.Seconds())
	m.backendRequestsTotal.WithLabelValues(operation, status(err)).Inc()
}

// RecordReconnect records a reconnect attempt of a query channel
func (m *TransportMetrics) RecordReconnect(channel string) {
	if m == nil {
		return
	}
	m.wsReconnectsTotal.WithLabelValues(channel).Inc()
}

// RecordDelta records a delta message of a query channel
func (m *TransportMetrics) RecordDelta(channel string) {
	if m == nil {
		return
	}
	m.wsDeltasTotal.WithLabelValues(channel).Inc()
}

// SetChannelState updates the state gauge of a query channel
func (m *TransportMetrics) SetChannelState(channel string, state int) {
	if m == nil {
		return
	}
	m.wsState.WithLabelValues(channel).Set(float64(state))
}
