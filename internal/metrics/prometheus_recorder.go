package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/stco/stationrecon/internal/join"
)

// Recorder records reconciliation run metrics.
type Recorder interface {
	RecordRun(duration time.Duration, stats join.Stats, warnings int)
	RecordSourceFetch(source string, outcome string, duration time.Duration)
	RecordShape(duration time.Duration)
	Registry() *prometheus.Registry
}

// PrometheusRecorder is the Prometheus implementation of Recorder.
type PrometheusRecorder struct {
	registry *prometheus.Registry

	runDurationSeconds   prometheus.Histogram
	runCellsTotal        prometheus.Gauge
	runDroppedTotal      *prometheus.GaugeVec
	runWarningsTotal     prometheus.Gauge
	sourceFetchSeconds   *prometheus.HistogramVec
	sourceFetchOutcomes  *prometheus.CounterVec
	shapeDurationSeconds prometheus.Histogram
}

// NewPrometheusRecorder builds a recorder with its own registry, including
// the Go runtime and process collectors.
func NewPrometheusRecorder() *PrometheusRecorder {
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	r := &PrometheusRecorder{
		registry: registry,
		runDurationSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "recon_run_duration_seconds",
			Help:    "Duration of reconciliation runs.",
			Buckets: prometheus.DefBuckets,
		}),
		runCellsTotal: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "recon_run_cells",
			Help: "Joined cells produced by the latest run.",
		}),
		runDroppedTotal: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "recon_run_dropped_rows",
			Help: "Rows dropped by the latest run, by reason.",
		}, []string{"reason"}),
		runWarningsTotal: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "recon_run_warnings",
			Help: "Warnings raised by the latest run.",
		}),
		sourceFetchSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "recon_source_fetch_duration_seconds",
			Help:    "Duration of upstream source fetches.",
			Buckets: prometheus.DefBuckets,
		}, []string{"source"}),
		sourceFetchOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "recon_source_fetch_total",
			Help: "Upstream source fetches by outcome.",
		}, []string{"source", "outcome"}),
		shapeDurationSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "recon_shape_duration_seconds",
			Help:    "Duration of time-series shaping requests.",
			Buckets: prometheus.DefBuckets,
		}),
	}

	registry.MustRegister(r.runDurationSeconds)
	registry.MustRegister(r.runCellsTotal)
	registry.MustRegister(r.runDroppedTotal)
	registry.MustRegister(r.runWarningsTotal)
	registry.MustRegister(r.sourceFetchSeconds)
	registry.MustRegister(r.sourceFetchOutcomes)
	registry.MustRegister(r.shapeDurationSeconds)
	return r
}

func (r *PrometheusRecorder) Registry() *prometheus.Registry { return r.registry }

func (r *PrometheusRecorder) RecordRun(duration time.Duration, stats join.Stats, warnings int) {
	r.runDurationSeconds.Observe(duration.Seconds())
	r.runCellsTotal.Set(float64(stats.Cells))
	r.runWarningsTotal.Set(float64(warnings))
	r.runDroppedTotal.WithLabelValues("missing_timezone").Set(float64(stats.DroppedMissingTZ))
	r.runDroppedTotal.WithLabelValues("sub_minute").Set(float64(stats.DroppedSubMinute))
	r.runDroppedTotal.WithLabelValues("no_join_match").Set(float64(stats.DroppedNoJoinMatch))
	r.runDroppedTotal.WithLabelValues("out_of_window").Set(float64(stats.OverridesOutOfWindow))
}

func (r *PrometheusRecorder) RecordSourceFetch(source, outcome string, duration time.Duration) {
	r.sourceFetchSeconds.WithLabelValues(source).Observe(duration.Seconds())
	r.sourceFetchOutcomes.WithLabelValues(source, outcome).Inc()
}

func (r *PrometheusRecorder) RecordShape(duration time.Duration) {
	r.shapeDurationSeconds.Observe(duration.Seconds())
}

var _ Recorder = (*PrometheusRecorder)(nil)
