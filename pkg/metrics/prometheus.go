package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	symbolsTotal *prometheus.CounterVec
	barsAdded    *prometheus.CounterVec
	errorsTotal  *prometheus.CounterVec
	lastPrice    *prometheus.GaugeVec
	latency      *prometheus.HistogramVec
	runsTotal    *prometheus.CounterVec
	runDuration  prometheus.Histogram
	lastRun      prometheus.Gauge
}

// New creates a recorder registered on reg, or the default registry when nil.
func New(reg prometheus.Registerer) *Recorder {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)
	return &Recorder{
		symbolsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "macopull_symbols_processed_total",
				Help: "Symbols processed by outcome",
			},
			[]string{"symbol", "status"},
		),
		barsAdded: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "macopull_bars_added_total",
				Help: "New bars merged into stored series",
			},
			[]string{"symbol"},
		),
		errorsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "macopull_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		lastPrice: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "macopull_last_close",
				Help: "Last stored close for a symbol",
			},
			[]string{"symbol"},
		),
		latency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "macopull_stage_duration_seconds",
				Help:    "Duration of pipeline stages in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		runsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "macopull_runs_total",
				Help: "Pipeline runs by outcome",
			},
			[]string{"status"},
		),
		runDuration: f.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "macopull_run_duration_seconds",
				Help:    "Wall time of a pipeline run",
				Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
			},
		),
		lastRun: f.NewGauge(
			prometheus.GaugeOpts{
				Name: "macopull_last_run_timestamp_seconds",
				Help: "Unix time the last run finished",
			},
		),
	}
}

// RecordSymbol counts one processed symbol.
func (r *Recorder) RecordSymbol(symbol, status string) {
	r.symbolsTotal.WithLabelValues(symbol, status).Inc()
}

func (r *Recorder) RecordBarsAdded(symbol string, n int) {
	if n > 0 {
		r.barsAdded.WithLabelValues(symbol).Add(float64(n))
	}
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordLastPrice records the last close for a symbol.
func (r *Recorder) RecordLastPrice(symbol string, price float64) {
	r.lastPrice.WithLabelValues(symbol).Set(price)
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}

func (r *Recorder) RecordRun(status string, seconds float64) {
	r.runsTotal.WithLabelValues(status).Inc()
	r.runDuration.Observe(seconds)
	r.lastRun.SetToCurrentTime()
}
