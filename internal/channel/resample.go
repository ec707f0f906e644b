package channel

import (
	"errors"
	"fmt"

	"github.com/jeongseonghan/waveform/internal/modem"
)

// ErrResample is returned when a length cannot be split into spectrum halves.
var ErrResample = errors.New("cannot resample")

// FFTUpsampler raises the sample rate by an integer Scale by inserting zeros
// in the middle of the spectrum. The output keeps the input amplitude.
type FFTUpsampler struct {
	Scale int
}

// Process upsamples x. len(x) must be even.
func (u FFTUpsampler) Process(x []complex128) ([]complex128, error) {
	if u.Scale < 1 {
		return nil, fmt.Errorf("%w: scale %d", ErrResample, u.Scale)
	}
	if len(x)%2 != 0 {
		return nil, fmt.Errorf("%w: odd length %d", ErrResample, len(x))
	}
	if len(x) == 0 {
		return nil, nil
	}

	half := len(x) / 2
	spec := modem.FFT(x)
	wide := make([]complex128, len(x)*u.Scale)
	copy(wide, spec[:half])
	copy(wide[len(wide)-half:], spec[half:])

	out := modem.IFFT(wide)
	scale := complex(float64(u.Scale), 0)
	for i := range out {
		out[i] *= scale
	}
	return out, nil
}

// FFTDownsampler lowers the sample rate by an integer Scale, keeping only the
// lowest len(x)/Scale bins. Everything outside that band is discarded, which
// also removes the carrier image left by Downconvert.
type FFTDownsampler struct {
	Scale int
}

// Process downsamples x. len(x) must be an even multiple of Scale.
func (d FFTDownsampler) Process(x []complex128) ([]complex128, error) {
	if d.Scale < 1 {
		return nil, fmt.Errorf("%w: scale %d", ErrResample, d.Scale)
	}
	if len(x)%(2*d.Scale) != 0 {
		return nil, fmt.Errorf("%w: length %d is not a multiple of %d", ErrResample, len(x), 2*d.Scale)
	}
	if len(x) == 0 {
		return nil, nil
	}

	n := len(x) / d.Scale
	half := n / 2
	spec := modem.FFT(x)
	narrow := make([]complex128, n)
	copy(narrow, spec[:half])
	copy(narrow[half:], spec[len(spec)-half:])

	out := modem.IFFT(narrow)
	scale := complex(1/float64(d.Scale), 0)
	for i := range out {
		out[i] *= scale
	}
	return out, nil
}
