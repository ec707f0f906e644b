// Package audio routes int16 waveforms through a sound card, or through a
// software loopback when no hardware is wanted.
package audio

import (
	"context"
	"errors"
	"fmt"
	"math"
)

// Headroom is the int16 value that a unit amplitude maps to.
const Headroom = 1 << 14

var (
	// ErrUnsupportedRate means the audio rate cannot carry the passband signal.
	ErrUnsupportedRate = errors.New("audio rate too low for carrier and bandwidth")
	// ErrUnsupportedChannels means a channel count other than 1 or 2.
	ErrUnsupportedChannels = errors.New("unsupported channel count")
)

// Config describes the audio device side of a run.
type Config struct {
	Rate            int    `yaml:"rate"`
	Channels        int    `yaml:"channels"`
	Device          string `yaml:"device"`
	FramesPerBuffer int    `yaml:"frames_per_buffer"`
	// Tail is the number of extra frames captured after playback ends.
	Tail int `yaml:"tail"`
}

// Validate checks that a passband signal with carrier fc and bandwidth fs can
// be played at the configured rate.
func (c Config) Validate(fc, fs float64) error {
	if float64(c.Rate) <= 2*(fc+fs/2) {
		return fmt.Errorf("%w: rate %d, carrier %g Hz, bandwidth %g Hz", ErrUnsupportedRate, c.Rate, fc, fs)
	}
	if c.Channels != 1 && c.Channels != 2 {
		return fmt.Errorf("%w: %d", ErrUnsupportedChannels, c.Channels)
	}
	return nil
}

// Channel plays out and returns what was captured meanwhile. The capture is
// usually longer than out and starts at an unknown offset.
type Channel interface {
	RouteAudio(ctx context.Context, out []int16) ([]int16, error)
}

// Loopback is a Channel that hands the output straight back, wrapped in
// Prefix and Suffix samples of silence.
type Loopback struct {
	Prefix int
	Suffix int
}

// RouteAudio implements Channel.
func (l Loopback) RouteAudio(ctx context.Context, out []int16) ([]int16, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	in := make([]int16, l.Prefix+len(out)+l.Suffix)
	copy(in[l.Prefix:], out)
	return in, nil
}

// ToInt16 quantizes x as x·Headroom, saturating at the int16 limits.
func ToInt16(x []float64) []int16 {
	out := make([]int16, len(x))
	for i, v := range x {
		q := math.Round(v * Headroom)
		switch {
		case q > math.MaxInt16:
			q = math.MaxInt16
		case q < math.MinInt16:
			q = math.MinInt16
		}
		out[i] = int16(q)
	}
	return out
}

// FromInt16 converts captured samples back to float64 without rescaling.
func FromInt16(x []int16) []float64 {
	out := make([]float64, len(x))
	for i, v := range x {
		out[i] = float64(v)
	}
	return out
}
