// Package metrics exports run statistics to Prometheus.
package metrics

import (
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the collectors of one registry. It is also a record sink, so
// a run can feed it the same way it feeds the data store.
type Metrics struct {
	records    *prometheus.CounterVec // records seen, by unit
	syncOffset *prometheus.GaugeVec   // last preamble offset, by unit
	runs       *prometheus.CounterVec // finished runs, by scenario and status
	duration   *prometheus.HistogramVec
	bits       *prometheus.CounterVec // payload bits compared, by scenario
	bitErrors  *prometheus.CounterVec // payload bits in error, by scenario
	ber        *prometheus.GaugeVec   // BER of the last run, by scenario
}

// New registers the collectors with reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		records: f.NewCounterVec(prometheus.CounterOpts{
			Name: "waveform_records_total",
			Help: "Intermediate values recorded by processing units",
		}, []string{"unit"}),
		syncOffset: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "waveform_sync_offset_samples",
			Help: "Preamble offset found by the last acquisition",
		}, []string{"unit"}),
		runs: f.NewCounterVec(prometheus.CounterOpts{
			Name: "waveform_runs_total",
			Help: "Scenario runs by outcome",
		}, []string{"scenario", "status"}),
		duration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "waveform_run_duration_seconds",
			Help:    "Wall time of scenario runs",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
		}, []string{"scenario"}),
		bits: f.NewCounterVec(prometheus.CounterOpts{
			Name: "waveform_bits_total",
			Help: "Payload bits compared after demodulation",
		}, []string{"scenario"}),
		bitErrors: f.NewCounterVec(prometheus.CounterOpts{
			Name: "waveform_bit_errors_total",
			Help: "Payload bits received in error",
		}, []string{"scenario"}),
		ber: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "waveform_ber",
			Help: "Bit error rate of the last run",
		}, []string{"scenario"}),
	}
}

// Record implements record.Sink.
func (m *Metrics) Record(tag string, value any) {
	unit := tag
	if i := strings.LastIndexByte(tag, '.'); i > 0 {
		unit = tag[:i]
	}
	m.records.WithLabelValues(unit).Inc()

	if strings.HasSuffix(tag, ".offset") {
		if off, ok := value.(int); ok {
			m.syncOffset.WithLabelValues(unit).Set(float64(off))
		}
	}
}

// ObserveRun accounts for one finished run. Bit counters only move for runs
// that completed.
func (m *Metrics) ObserveRun(scenario string, took time.Duration, bits, errors int, err error) {
	m.duration.WithLabelValues(scenario).Observe(took.Seconds())
	if err != nil {
		m.runs.WithLabelValues(scenario, "error").Inc()
		return
	}
	m.runs.WithLabelValues(scenario, "ok").Inc()
	m.bits.WithLabelValues(scenario).Add(float64(bits))
	m.bitErrors.WithLabelValues(scenario).Add(float64(errors))
	if bits > 0 {
		m.ber.WithLabelValues(scenario).Set(float64(errors) / float64(bits))
	}
}
