package modem

import (
	"fmt"
)

// Equalizer performs zero-forcing equalization: every received symbol is
// divided by the channel gain of its subcarrier. Noise amplification is ignored.
type Equalizer struct {
	unit
}

// NewEqualizer creates a new equalizer.
func NewEqualizer(opts ...Option) *Equalizer {
	return &Equalizer{unit: newUnit("modem.Equalizer", opts)}
}

// Process returns blocks[b][k] / est[k]. A scalar estimate is broadcast over
// all subcarriers; a vector estimate must match the block width.
func (eq *Equalizer) Process(blocks [][]complex128, est ChannelEstimate) ([][]complex128, error) {
	if !est.IsScalar() {
		for b, block := range blocks {
			if len(block) != est.Len() {
				return nil, fmt.Errorf("%w: block %d has %d subcarriers, estimate has %d",
					ErrDimensionMismatch, b, len(block), est.Len())
			}
		}
	}

	out := make([][]complex128, len(blocks))
	for b, block := range blocks {
		eqBlock := make([]complex128, len(block))
		for k, s := range block {
			eqBlock[k] = s / est.At(k)
		}
		out[b] = eqBlock
	}

	eq.record("symbols", out)
	return out, nil
}
