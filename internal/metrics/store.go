package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// StoreMetrics tracks the state containers of the edit engine
type StoreMetrics struct {
	slices           prometheus.Gauge
	commandsTotal    *prometheus.CounterVec
	savesTotal       *prometheus.CounterVec
	saveDuration     *prometheus.HistogramVec
	loadsTotal       *prometheus.CounterVec
	loadDuration     *prometheus.HistogramVec
	pushesTotal      *prometheus.CounterVec
	conflictsTotal   *prometheus.CounterVec
	staleTotal       *prometheus.CounterVec
	validationsTotal *prometheus.CounterVec
}

// NewStoreMetrics initializes store metrics with the collector
func NewStoreMetrics(collector *Collector) *StoreMetrics {
	return &StoreMetrics{
		slices: collector.RegisterGauge(
			MetricStoreSlices,
			"Number of model state containers",
			nil,
		).WithLabelValues(),
		commandsTotal: collector.RegisterCounter(
			MetricStoreCommandsTotal,
			"Total commands dispatched by model, command and status",
			[]string{LabelModel, LabelCommand, LabelStatus},
		),
		savesTotal: collector.RegisterCounter(
			MetricStoreSavesTotal,
			"Total saves by model, action and status",
			[]string{LabelModel, LabelAction, LabelStatus},
		),
		saveDuration: collector.RegisterHistogram(
			MetricStoreSaveDuration,
			"Duration of save round trips in seconds",
			[]string{LabelModel, LabelAction},
			DurationBuckets,
		),
		loadsTotal: collector.RegisterCounter(
			MetricStoreLoadsTotal,
			"Total loads by model, operation and status",
			[]string{LabelModel, LabelOperation, LabelStatus},
		),
		loadDuration: collector.RegisterHistogram(
			MetricStoreLoadDuration,
			"Duration of load round trips in seconds",
			[]string{LabelModel, LabelOperation},
			DurationBuckets,
		),
		pushesTotal: collector.RegisterCounter(
			MetricStorePushesTotal,
			"Total server pushes by model and merge outcome",
			[]string{LabelModel, LabelOutcome},
		),
		conflictsTotal: collector.RegisterCounter(
			MetricStoreConflictsTotal,
			"Total conflicting fields surfaced to users",
			[]string{LabelModel},
		),
		staleTotal: collector.RegisterCounter(
			MetricStoreStaleTotal,
			"Total async results dropped because the generation moved on",
			[]string{LabelModel, LabelOperation},
		),
		validationsTotal: collector.RegisterCounter(
			MetricStoreValidationsTotal,
			"Total saves blocked by validation",
			[]string{LabelModel},
		),
	}
}

// SetSlices updates the number of state containers
func (m *StoreMetrics) SetSlices(n int) {
	if m == nil {
		return
	}
	m.slices.Set(float64(n))
}

// RecordCommand records a dispatched command
func (m *StoreMetrics) RecordCommand(model, command string, err error) {
	if m == nil {
		return
	}
	m.commandsTotal.WithLabelValues(model, command, status(err)).Inc()
}

// RecordSave records a save round trip
func (m *StoreMetrics) RecordSave(model, action string, duration time.Duration, err error) {
	if m == nil {
		return
	}
	m.saveDuration.WithLabelValues(model, action).Observe(duration.Seconds())
	m.savesTotal.WithLabelValues(model, action, status(err)).Inc()
}

// RecordLoad records a load round trip
func (m *StoreMetrics) RecordLoad(model, operation string, duration time.Duration, err error) {
	if m == nil {
		return
	}
	m.loadDuration.WithLabelValues(model, operation).Observe(duration.Seconds())
	m.loadsTotal.WithLabelValues(model, operation, status(err)).Inc()
}

// RecordPush records how a server push was merged
func (m *StoreMetrics) RecordPush(model, outcome string, conflicts int) {
	if m == nil {
		return
	}
	m.pushesTotal.WithLabelValues(model, outcome).Inc()
	if conflicts > 0 {
		m.conflictsTotal.WithLabelValues(model).Add(float64(conflicts))
	}
}

// RecordStale records a dropped async result
func (m *StoreMetrics) RecordStale(model, operation string) {
	if m == nil {
		return
	}
	m.staleTotal.WithLabelValues(model, operation).Inc()
}

// RecordValidationFailure records a save blocked by validation
func (m *StoreMetrics) RecordValidationFailure(model string) {
	if m == nil {
		return
	}
	m.validationsTotal.WithLabelValues(model).Inc()
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
