package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecord(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.Record("modem.Framer.samples", []complex128{1})
	m.Record("modem.Framer.samples", []complex128{2})
	m.Record("modem.FullCorrelator.offset", 41)
	m.Record("plain", 1)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.records.WithLabelValues("modem.Framer")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.records.WithLabelValues("plain")))
	assert.Equal(t, 41.0, testutil.ToFloat64(m.syncOffset.WithLabelValues("modem.FullCorrelator")))
}

func TestObserveRun(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.ObserveRun("ofdm", time.Second, 1000, 10, nil)
	m.ObserveRun("ofdm", time.Second, 1000, 0, nil)
	m.ObserveRun("ofdm", time.Second, 0, 0, errors.New("boom"))

	assert.Equal(t, 2.0, testutil.ToFloat64(m.runs.WithLabelValues("ofdm", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues("ofdm", "error")))
	assert.Equal(t, 2000.0, testutil.ToFloat64(m.bits.WithLabelValues("ofdm")))
	assert.Equal(t, 10.0, testutil.ToFloat64(m.bitErrors.WithLabelValues("ofdm")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.ber.WithLabelValues("ofdm")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.duration))
}

func TestNew_RegistersOnce(t *testing.T) {
	reg := prometheus.NewRegistry()
	New(reg)
	assert.Panics(t, func() { New(reg) })
}
