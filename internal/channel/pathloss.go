// Package channel models what happens to a waveform between the transmitter
// and the receiver: free-space propagation, carrier conversion and sample-rate
// changes between baseband and the audio device.
package channel

import (
	"errors"
	"fmt"
	"math"
	"math/cmplx"

	log "github.com/sirupsen/logrus"
)

// SpeedOfLight is the propagation speed used for the carrier wavelength.
const SpeedOfLight = 3e8

// ErrInvalidRange is returned for a non-positive range or carrier frequency.
var ErrInvalidRange = errors.New("invalid propagation parameters")

// PathLoss is a single-tap free-space channel: the amplitude drops with the
// square of the range and the phase turns by the fractional wavelength.
type PathLoss struct {
	loss float64
	tap  complex128
}

// NewPathLoss creates the model for a fixed range in meters and carrier in Hz.
func NewPathLoss(rangeMeters, carrierHz float64) (*PathLoss, error) {
	if rangeMeters <= 0 || carrierHz <= 0 {
		return nil, fmt.Errorf("%w: range %g m, carrier %g Hz", ErrInvalidRange, rangeMeters, carrierHz)
	}

	lambda := SpeedOfLight / carrierHz
	delta := rangeMeters - math.Floor(rangeMeters/lambda)*lambda
	p := &PathLoss{
		loss: 1 / (rangeMeters * rangeMeters),
		tap:  cmplx.Exp(complex(0, -2*math.Pi*delta/lambda)),
	}

	log.WithFields(log.Fields{
		"unit":   "channel.PathLoss",
		"range":  rangeMeters,
		"lambda": lambda,
		"loss":   p.loss,
		"phase":  cmplx.Phase(p.tap) * 180 / math.Pi,
	}).Info("propagation model ready")
	return p, nil
}

// Response is the complex gain applied to every sample.
func (p *PathLoss) Response() complex128 {
	return complex(p.loss, 0) * p.tap
}

// Process returns signal attenuated and phase shifted. The input is untouched.
func (p *PathLoss) Process(signal []complex128) []complex128 {
	h := p.Response()
	out := make([]complex128, len(signal))
	for i, s := range signal {
		out[i] = s * h
	}
	return out
}
