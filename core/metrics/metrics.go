package metrics

import (
	"context"
	"fmt"
	"net/http"

	"backup-verifier/core/reconcile"
	"backup-verifier/core/stats"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/client_golang/prometheus/push"
)

const namespace = "backup_verifier"

// Metrics holds the collectors of the comparison pipeline on a private
// registry, so several instances never conflict.
type Metrics struct {
	registry *prometheus.Registry

	runs        *prometheus.CounterVec
	files       *prometheus.CounterVec
	records     *prometheus.CounterVec
	fileSeconds prometheus.Histogram
	runSeconds  prometheus.Histogram
	matchRate   prometheus.Gauge
}

// New registers the collectors on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Comparison runs by verdict.",
		}, []string{"result"}),
		files: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "files_total",
			Help:      "File pairs processed by status.",
		}, []string{"status"}),
		records: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_total",
			Help:      "Records classified, by outcome.",
		}, []string{"outcome"}),
		fileSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "file_duration_seconds",
			Help:      "Time spent comparing one file pair.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 4, 8),
		}),
		runSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Wall time of a comparison run.",
			Buckets:   prometheus.ExponentialBuckets(1, 4, 8),
		}),
		matchRate: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_match_rate",
			Help:      "Weighted record match rate of the last finished run, in percent.",
		}),
	}
	m.registry.MustRegister(m.runs, m.files, m.records, m.fileSeconds, m.runSeconds, m.matchRate)
	return m
}

// Observe records one file outcome. It implements stats.Observer.
func (m *Metrics) Observe(o reconcile.Outcome) {
	r := o.Result
	m.files.WithLabelValues(string(r.Status)).Inc()
	m.fileSeconds.Observe(float64(r.DurationMs) / 1000)
	if !r.Compared() {
		return
	}
	m.records.WithLabelValues("matched").Add(float64(r.Matched))
	m.records.WithLabelValues("missing_in_backup").Add(float64(r.MissingInBackup))
	m.records.WithLabelValues("missing_in_source").Add(float64(r.MissingInSource))
	m.records.WithLabelValues("record_error").Add(float64(r.RecordErrors))
}

// RecordRun records the verdict of a finished run.
func (m *Metrics) RecordRun(s stats.GlobalSummary) {
	result := "mismatched"
	if s.AllMatched() {
		result = "matched"
	}
	m.runs.WithLabelValues(result).Inc()
	m.runSeconds.Observe(s.Duration().Seconds())
	m.matchRate.Set(s.MatchRate)
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Push sends the current values to a Pushgateway under job.
func (m *Metrics) Push(ctx context.Context, url, job string) error {
	if err := push.New(url, job).Gatherer(m.registry).PushContext(ctx); err != nil {
		return fmt.Errorf("push metrics to %s: %w", url, err)
	}
	return nil
}

// Config holds configuration for metrics export.
type Config struct {
	// PushURL is a Pushgateway that receives the metrics of CLI runs.
	PushURL string `mapstructure:"push_url" default:""`
	// Job is the Pushgateway job name.
	Job string `mapstructure:"job" default:"backup_verifier"`
}
