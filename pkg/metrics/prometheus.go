package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

// Recorder implements domain repository.Metrics using Prometheus.
type Recorder struct {
	batches        *prometheus.CounterVec
	failedTickers  *prometheus.CounterVec
	rows           prometheus.Counter
	skips          *prometheus.CounterVec
	dividendLookup *prometheus.CounterVec
	picks          *prometheus.GaugeVec
	errorsTotal    *prometheus.CounterVec
	latency        *prometheus.HistogramVec
}

// New registers the pipeline collectors on the default registry.
func New() *Recorder {
	return NewWithRegisterer(prometheus.DefaultRegisterer)
}

// NewWithRegisterer registers the collectors on reg. Collectors that are
// already registered are reused so repeated construction is safe.
func NewWithRegisterer(reg prometheus.Registerer) *Recorder {
	return &Recorder{
		batches: register(reg, prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "finrank_price_batches_total",
				Help: "Price download batches by pass and outcome",
			},
			[]string{"pass", "ok"},
		)),
		failedTickers: register(reg, prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "finrank_price_failed_tickers_total",
				Help: "Tickers missing after a download pass",
			},
			[]string{"pass"},
		)),
		rows: register(reg, prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "finrank_feature_rows_total",
				Help: "Feature rows emitted",
			},
		)),
		skips: register(reg, prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "finrank_feature_skips_total",
				Help: "Ticker-months skipped by reason",
			},
			[]string{"reason"},
		)),
		dividendLookup: register(reg, prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "finrank_dividend_lookups_total",
				Help: "Dividend yield lookups by result",
			},
			[]string{"result"},
		)),
		picks: register(reg, prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "finrank_picks",
				Help: "Number of picks in the latest list",
			},
			[]string{"list"},
		)),
		errorsTotal: register(reg, prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "finrank_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		)),
		latency: register(reg, prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "finrank_operation_duration_seconds",
				Help:    "Duration of pipeline stages in seconds",
				Buckets: []float64{0.01, 0.1, 0.5, 1, 5, 15, 60, 300, 900, 1800},
			},
			[]string{"operation"},
		)),
	}
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) C {
	if err := reg.Register(c); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing
			}
		}
		panic(err)
	}
	return c
}

// RecordBatch counts one download batch.
func (r *Recorder) RecordBatch(pass string, ok bool) {
	r.batches.WithLabelValues(pass, strconv.FormatBool(ok)).Inc()
}

// RecordFailedTickers counts tickers still missing after a pass.
func (r *Recorder) RecordFailedTickers(pass string, n int) {
	r.failedTickers.WithLabelValues(pass).Add(float64(n))
}

func (r *Recorder) RecordRows(n int) {
	r.rows.Add(float64(n))
}

func (r *Recorder) RecordSkip(reason string) {
	r.skips.WithLabelValues(reason).Inc()
}

func (r *Recorder) RecordDividendLookup(result string) {
	r.dividendLookup.WithLabelValues(result).Inc()
}

func (r *Recorder) RecordPicks(list string, n int) {
	r.picks.WithLabelValues(list).Set(float64(n))
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}

// Nop discards every measurement.
type Nop struct{}

func (Nop) RecordBatch(string, bool)        {}
func (Nop) RecordFailedTickers(string, int) {}
func (Nop) RecordRows(int)                  {}
func (Nop) RecordSkip(string)               {}
func (Nop) RecordDividendLookup(string)     {}
func (Nop) RecordPicks(string, int)         {}
func (Nop) RecordError(string)              {}
func (Nop) RecordLatency(string, float64)   {}
