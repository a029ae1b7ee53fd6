package metrics

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/push"
)

const namespace = "histpull"

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	reg *prometheus.Registry

	tasksTotal  *prometheus.CounterVec
	rowsTotal   *prometheus.CounterVec
	filesTotal  *prometheus.CounterVec
	errorsTotal *prometheus.CounterVec
	latency     *prometheus.HistogramVec
	lastRun     *prometheus.GaugeVec
}

// New creates a recorder on its own registry.
func New() *Recorder {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	return &Recorder{
		reg: reg,
		tasksTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "tasks_total",
				Help:      "Download tasks finished, by result",
			},
			[]string{"result"},
		),
		rowsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "rows_total",
				Help:      "Rows classified per leg",
			},
			[]string{"leg"},
		),
		filesTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "files_written_total",
				Help:      "Files written per leg",
			},
			[]string{"leg"},
		),
		errorsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "errors_total",
				Help:      "Task errors by kind",
			},
			[]string{"type"},
		),
		latency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "operation_duration_seconds",
				Help:      "Duration of operations in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		lastRun: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "last_run_tasks",
				Help:      "Task counts of the most recent run",
			},
			[]string{"result"},
		),
	}
}

// Registry exposes the recorder's registry for scraping and for other collectors.
func (r *Recorder) Registry() *prometheus.Registry { return r.reg }

// RecordTask counts one finished task.
func (r *Recorder) RecordTask(result string) {
	r.tasksTotal.WithLabelValues(result).Inc()
}

// RecordRows adds n classified rows for leg.
func (r *Recorder) RecordRows(leg string, n int) {
	r.rowsTotal.WithLabelValues(leg).Add(float64(n))
}

// RecordFile counts one written file.
func (r *Recorder) RecordFile(leg string) {
	r.filesTotal.WithLabelValues(leg).Inc()
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}

// RecordRun sets the summary gauges of a finished run.
func (r *Recorder) RecordRun(succeeded, failed int) {
	r.lastRun.WithLabelValues("success").Set(float64(succeeded))
	r.lastRun.WithLabelValues("failure").Set(float64(failed))
}

// Push sends the registry to a Pushgateway. Batch runs exit before a scrape
// could happen, so this is how one-shot runs report.
func (r *Recorder) Push(ctx context.Context, url, job string) error {
	if url == "" {
		return nil
	}
	if err := push.New(url, job).Gatherer(r.reg).PushContext(ctx); err != nil {
		return fmt.Errorf("push metrics: %w", err)
	}
	return nil
}
