package record

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type captureSink struct {
	tags []string
}

func (c *captureSink) Record(tag string, _ any) { c.tags = append(c.tags, tag) }

func TestStoreSelectsByName(t *testing.T) {
	s := NewStore(StoreConfig{Names: []string{"modem.Framer", "scenario.ber"}})

	s.Record("modem.Framer.samples", []complex128{1})
	s.Record("modem.FramerX.samples", 1)
	s.Record("scenario.ber", 0.5)
	s.Record("scenario.payload", []byte{1})

	assert.Equal(t, []string{"modem.Framer.samples", "scenario.ber"}, s.Tags())
	assert.Equal(t, []any{0.5}, s.Values("scenario.ber"))
}

func TestStoreWildcard(t *testing.T) {
	s := NewStore(StoreConfig{Names: []string{Wildcard}})
	s.Record("a", 1)
	s.Record("b.c", 2)
	assert.Len(t, s.Tags(), 2)
}

func TestStoreFlushRoundTrip(t *testing.T) {
	dir := t.TempDir()
	s := NewStore(StoreConfig{Path: dir, Names: []string{Wildcard}, SampleRate: 8000, WAV: true})

	s.Record("scenario.ber", 0.25)
	s.Record("scenario.rx_symbols", []complex128{complex(1, -2)})
	s.Record("audio.rx_signal", []int16{0, 100, -100, 32767})

	require.NoError(t, s.Flush())

	archive, err := ReadArchive(filepath.Join(s.Dir(), "records.json.zst"))
	require.NoError(t, err)

	assert.Equal(t, []any{0.25}, archive["scenario.ber"])
	sym := archive["scenario.rx_symbols"][0].([]any)[0].([]any)
	assert.Equal(t, []any{1.0, -2.0}, sym)

	_, err = os.Stat(filepath.Join(s.Dir(), "audio.rx_signal.0.wav"))
	assert.NoError(t, err)
}

func TestStoreFlushEmpty(t *testing.T) {
	dir := t.TempDir()
	s := NewStore(StoreConfig{Path: dir})
	require.NoError(t, s.Flush())

	_, err := os.Stat(s.Dir())
	assert.True(t, os.IsNotExist(err))
}

func TestMulti(t *testing.T) {
	a, b := &captureSink{}, &captureSink{}
	sink := Multi{a, nil, b}

	sink.Record("modem.Framer.samples", 1)
	OrNop(nil).Record("ignored", 1)

	assert.Equal(t, []string{"modem.Framer.samples"}, a.tags)
	assert.Equal(t, a.tags, b.tags)
}

func TestStoreFlushNonFinite(t *testing.T) {
	dir := t.TempDir()
	s := NewStore(StoreConfig{Path: dir, Names: []string{"scenario"}})

	s.Record("scenario.gain", complex(math.Inf(1), math.NaN()))
	s.Record("scenario.rx_symbols", []complex128{complex(math.Inf(1), math.NaN()), 1})
	s.Record("scenario.envelope", []float64{math.Inf(-1), 0.5})
	s.Record("scenario.ber", math.NaN())

	require.NoError(t, s.Flush())

	archive, err := ReadArchive(filepath.Join(s.Dir(), "records.json.zst"))
	require.NoError(t, err)
	assert.Equal(t, []any{[]any{"+Inf", "NaN"}}, archive["scenario.gain"])
	assert.Equal(t, []any{[]any{[]any{"+Inf", "NaN"}, []any{1.0, 0.0}}}, archive["scenario.rx_symbols"])
	assert.Equal(t, []any{[]any{"-Inf", 0.5}}, archive["scenario.envelope"])
	assert.Equal(t, []any{"NaN"}, archive["scenario.ber"])

	entries, err := os.ReadDir(s.Dir())
	require.NoError(t, err)
	require.Len(t, entries, 1, "no temporary file left behind")
	assert.Equal(t, "records.json.zst", entries[0].Name())
}

func TestStoreFlushEncodeFailureLeavesNoArchive(t *testing.T) {
	dir := t.TempDir()
	s := NewStore(StoreConfig{Path: dir, Names: []string{Wildcard}})
	s.Record("scenario.bad", make(chan int))

	require.ErrorContains(t, s.Flush(), "encode archive")

	entries, err := os.ReadDir(s.Dir())
	require.NoError(t, err)
	assert.Empty(t, entries)
}
