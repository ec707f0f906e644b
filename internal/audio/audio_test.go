package audio

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfig_Validate(t *testing.T) {
	cfg := Config{Rate: 48000, Channels: 1}
	require.NoError(t, cfg.Validate(4e3, 1e3))
	require.NoError(t, cfg.Validate(10e3, 6e3))

	// 2·(20k + 4k) = 48k, the rate must be strictly above it.
	assert.ErrorIs(t, cfg.Validate(20e3, 8e3), ErrUnsupportedRate)

	cfg.Channels = 3
	assert.ErrorIs(t, cfg.Validate(4e3, 1e3), ErrUnsupportedChannels)
	cfg.Channels = 0
	assert.ErrorIs(t, cfg.Validate(4e3, 1e3), ErrUnsupportedChannels)
}

func TestNewPortAudioChannel_Validates(t *testing.T) {
	_, err := NewPortAudioChannel(Config{Rate: 8000, Channels: 1}, 4e3, 1e3)
	assert.ErrorIs(t, err, ErrUnsupportedRate)

	ch, err := NewPortAudioChannel(Config{Rate: 48000, Channels: 2}, 4e3, 1e3)
	require.NoError(t, err)
	assert.Equal(t, defaultFramesPerBuffer, ch.cfg.FramesPerBuffer)
	assert.Equal(t, 24000, ch.cfg.Tail)
}

func TestQuantization(t *testing.T) {
	q := ToInt16([]float64{0, 0.5, -1, 1.99, 2.5, -3})
	assert.Equal(t, []int16{0, 8192, -16384, 32604, 32767, -32768}, q)
	assert.Equal(t, []float64{0, 8192, -16384}, FromInt16(q[:3]))
}

func TestLoopback(t *testing.T) {
	ch := Loopback{Prefix: 3, Suffix: 2}
	in, err := ch.RouteAudio(context.Background(), []int16{5, -6, 7})
	require.NoError(t, err)
	assert.Equal(t, []int16{0, 0, 0, 5, -6, 7, 0, 0}, in)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = ch.RouteAudio(ctx, []int16{1})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestInterleave(t *testing.T) {
	mono := []int16{1, 2, 3}
	assert.Equal(t, mono, interleave(mono, 1))
	assert.Equal(t, []int16{1, 1, 2, 2, 3, 3}, interleave(mono, 2))
}

func TestPrintDevices(t *testing.T) {
	var buf bytes.Buffer
	PrintDevices(&buf, nil)
	assert.Contains(t, buf.String(), "no devices found")

	buf.Reset()
	PrintDevices(&buf, []DeviceInfo{
		{Index: 0, Name: "mic", MaxInputChannels: 2, DefaultSampleRate: 48000, IsDefault: true},
		{Index: 1, Name: "speaker", MaxOutputChannels: 2, DefaultSampleRate: 44100},
		{Index: 2, Name: "usb codec", MaxInputChannels: 1, MaxOutputChannels: 2, DefaultSampleRate: 48000},
	})
	out := buf.String()
	assert.Contains(t, out, "0: mic (in:2 out:0 rate:48000) [DEFAULT]")
	assert.Contains(t, out, "1: speaker (in:0 out:2 rate:44100)\n")
	assert.Contains(t, out, "2: usb codec (in:1 out:2 rate:48000) [DUPLEX]\n")
	assert.NotContains(t, out, "No default input")
	assert.Contains(t, out, "No default output")
}
