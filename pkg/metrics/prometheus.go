// Package metrics provides Prometheus metrics for the riskdiag pipeline.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager manages all Prometheus metrics for a pipeline run.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	enabled          bool
	registry         prometheus.Registerer

	// Collection
	collectorAttempts *prometheus.CounterVec
	collectorLatency  *prometheus.HistogramVec
	collectorRecords  *prometheus.CounterVec

	// Scoring
	dimensionScore   *prometheus.GaugeVec
	compositeScore   *prometheus.GaugeVec
	factorsDefaulted *prometheus.CounterVec
	scoreChange      *prometheus.GaugeVec

	// Rendering
	chartsRendered *prometheus.CounterVec

	// Run
	stageDuration *prometheus.HistogramVec
	lastRunUnix   prometheus.Gauge
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // intentional global for singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // intentional global for metrics registry

func init() { //nolint:gochecknoinits // intentional init for global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "riskdiag",
		subsystem:        "pipeline",
		histogramBuckets: []float64{50, 100, 250, 500, 1000, 2500, 5000, 10000, 30000},
		enabled:          true,
		registry:         prometheus.DefaultRegisterer,
	}

	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()

	return m
}

// initializeMetrics creates all the Prometheus metrics.
func (m *Manager) initializeMetrics() {
	auto := promauto.With(m.registry)

	m.collectorAttempts = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "collector_attempts_total",
			Help:      "Collector runs by source and outcome status",
		},
		[]string{"source", "status"},
	)

	m.collectorLatency = auto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "collector_latency_milliseconds",
			Help:      "Time spent collecting one source in milliseconds",
			Buckets:   m.histogramBuckets,
		},
		[]string{"source"},
	)

	m.collectorRecords = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "collector_records_total",
			Help:      "Records persisted per source",
		},
		[]string{"source"},
	)

	m.dimensionScore = auto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "dimension_score",
			Help:      "Latest dimension score (0-100)",
		},
		[]string{"profile", "dimension"},
	)

	m.compositeScore = auto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "composite_score",
			Help:      "Latest composite risk score (0-100)",
		},
		[]string{"profile", "company"},
	)

	m.factorsDefaulted = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "factors_defaulted_total",
			Help:      "Sub-factors scored with their default because the metric was missing",
		},
		[]string{"dimension"},
	)

	m.scoreChange = auto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "composite_score_change",
			Help:      "Composite score change against the previous recorded run",
		},
		[]string{"company"},
	)

	m.chartsRendered = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "charts_total",
			Help:      "Charts rendered by chart name and status",
		},
		[]string{"chart", "status"},
	)

	m.stageDuration = auto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "stage_duration_milliseconds",
			Help:      "Duration of each pipeline stage in milliseconds",
			Buckets:   m.histogramBuckets,
		},
		[]string{"stage"},
	)

	m.lastRunUnix = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "last_run_timestamp_seconds",
		Help:      "Unix time of the last completed run",
	})
}

// RecordCollectorResult records one source outcome.
func RecordCollectorResult(source, status string, latencyMs float64, records int) {
	if !globalManager.enabled {
		return
	}
	globalManager.collectorAttempts.WithLabelValues(source, status).Inc()
	globalManager.collectorLatency.WithLabelValues(source).Observe(latencyMs)
	if records > 0 {
		globalManager.collectorRecords.WithLabelValues(source).Add(float64(records))
	}
}

// UpdateDimensionScore sets the latest score for a dimension.
func UpdateDimensionScore(profile, dimension string, score float64) {
	if !globalManager.enabled {
		return
	}
	globalManager.dimensionScore.WithLabelValues(profile, dimension).Set(score)
}

// UpdateCompositeScore sets the latest composite score for a company.
func UpdateCompositeScore(profile, company string, score float64) {
	if !globalManager.enabled {
		return
	}
	globalManager.compositeScore.WithLabelValues(profile, company).Set(score)
}

// RecordFactorDefaulted increments the defaulted-factor counter.
func RecordFactorDefaulted(dimension string) {
	if !globalManager.enabled {
		return
	}
	globalManager.factorsDefaulted.WithLabelValues(dimension).Inc()
}

// UpdateScoreChange sets the change against the previous recorded run.
func UpdateScoreChange(company string, change float64) {
	if !globalManager.enabled {
		return
	}
	globalManager.scoreChange.WithLabelValues(company).Set(change)
}

// RecordChart records a chart outcome ("ok" or "failed").
func RecordChart(chart, status string) {
	if !globalManager.enabled {
		return
	}
	globalManager.chartsRendered.WithLabelValues(chart, status).Inc()
}

// RecordStageDuration records how long a pipeline stage took.
func RecordStageDuration(stage string, d time.Duration) {
	if !globalManager.enabled {
		return
	}
	globalManager.stageDuration.WithLabelValues(stage).Observe(float64(d) / float64(time.Millisecond))
}

// MarkRunCompleted stamps the last run time.
func MarkRunCompleted(at time.Time) {
	if !globalManager.enabled {
		return
	}
	globalManager.lastRunUnix.Set(float64(at.Unix()))
}

// WriteTextfile writes the current registry in the node-exporter textfile format.
func WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, customRegistry); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrExportFailed, path, err)
	}
	return nil
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
