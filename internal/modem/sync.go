package modem

import (
	"errors"
	"fmt"
	"math"
	"math/cmplx"

	log "github.com/sirupsen/logrus"
)

// Preamble acquisition by cross-correlation against a known reference.
//
// Neither strategy judges whether the peak it found is a real preamble; a
// false peak only shows up later as bit errors.

// SyncResult is the outcome of preamble acquisition.
type SyncResult struct {
	// Index is the sample index of the correlation peak.
	Index int
	// Offset is Index minus the reference length in samples. For an ideal
	// channel it is the sample right before the preamble.
	Offset int
	// Peak is the complex correlation value at Index.
	Peak complex128
	// Gain is knownEnergy / Peak. Multiplying received symbols by Gain undoes
	// the channel amplitude and phase.
	Gain complex128
}

// Start is the first sample of the preamble.
func (r SyncResult) Start() int { return r.Offset + 1 }

// Synchronizer locates a preamble in a received baseband stream.
type Synchronizer interface {
	Synchronize(received []complex128) (SyncResult, error)
}

var errEmptyReference = errors.New("empty preamble reference")

// FullCorrelator correlates the whole received stream against a reference
// waveform that is already at the stream's sample rate.
type FullCorrelator struct {
	unit
	reference []complex128
	energy    float64
}

// NewFullCorrelator creates the full-correlation strategy. A knownEnergy <= 0
// defaults to the reference energy sum(|ref|^2).
func NewFullCorrelator(reference []complex128, knownEnergy float64, opts ...Option) (*FullCorrelator, error) {
	if len(reference) == 0 {
		return nil, errEmptyReference
	}
	ref := make([]complex128, len(reference))
	copy(ref, reference)
	if knownEnergy <= 0 {
		knownEnergy = energy(ref)
	}
	return &FullCorrelator{
		unit:      newUnit("modem.FullCorrelator", opts),
		reference: ref,
		energy:    knownEnergy,
	}, nil
}

// Synchronize implements Synchronizer.
func (f *FullCorrelator) Synchronize(received []complex128) (SyncResult, error) {
	m := len(f.reference)
	if len(received) < m {
		return SyncResult{}, fmt.Errorf("%w: %d samples, reference %d", ErrInsufficientSamples, len(received), m)
	}

	corr := Correlate(received, f.reference)
	idx := argmaxAbs(corr)
	res := SyncResult{
		Index:  idx,
		Offset: idx - m,
		Peak:   corr[idx],
		Gain:   complex(f.energy, 0) / corr[idx],
	}

	f.record("correlation", corr)
	f.record("offset", res.Offset)
	f.log.WithFields(log.Fields{
		"offset": res.Offset,
		"peak":   res.Peak,
		"gain":   res.Gain,
	}).Info("located preamble")
	return res, nil
}

// SynchronizeReal is Synchronize for a real-valued stream.
func (f *FullCorrelator) SynchronizeReal(received []float64) (SyncResult, error) {
	return f.Synchronize(toComplex(received))
}

// Correlate returns the full cross-correlation of x against ref:
//
//	c[k] = sum_n x[n+k-(M-1)] * conj(ref[n]),  k = 0 .. len(x)+M-2
//
// so zero lag sits at index M-1. It is computed with FFTs.
func Correlate(x, ref []complex128) []complex128 {
	if len(x) == 0 || len(ref) == 0 {
		return nil
	}
	m := len(ref)
	size := len(x) + m - 1
	n := 1
	for n < size {
		n <<= 1
	}

	xp := make([]complex128, n)
	copy(xp, x)
	hp := make([]complex128, n)
	for i := 0; i < m; i++ {
		hp[i] = cmplx.Conj(ref[m-1-i])
	}

	t := newTransformer(n)
	xf := t.forward(nil, xp)
	hf := t.forward(nil, hp)
	for i := range xf {
		xf[i] *= hf[i]
	}
	return t.inverse(nil, xf)[:size]
}

// GridConfig configures the matched-filter grid search.
type GridConfig struct {
	// Preamble is the known symbol sequence at symbol rate.
	Preamble []complex128
	// SymbolLen is the number of samples per symbol (shaping filter length).
	SymbolLen int
	// Filter holds the phase-matched filter taps, see MatchedFilter.
	Filter []complex128
	// KnownEnergy <= 0 defaults to sum(|preamble|^2).
	KnownEnergy float64
}

// GridCorrelator filters the stream with a phase-matched filter, reshapes the
// first fifth of it into rows of SymbolLen samples and correlates every column
// with the preamble. The preamble is expected inside that window.
type GridCorrelator struct {
	unit
	cfg GridConfig
}

// NewGridCorrelator creates the matched-filter grid strategy.
func NewGridCorrelator(cfg GridConfig, opts ...Option) (*GridCorrelator, error) {
	if len(cfg.Preamble) == 0 {
		return nil, errEmptyReference
	}
	if cfg.SymbolLen <= 0 {
		return nil, fmt.Errorf("invalid symbol length %d", cfg.SymbolLen)
	}
	if len(cfg.Filter) == 0 {
		return nil, errors.New("empty matched filter")
	}
	if cfg.KnownEnergy <= 0 {
		cfg.KnownEnergy = energy(cfg.Preamble)
	}
	return &GridCorrelator{unit: newUnit("modem.GridCorrelator", opts), cfg: cfg}, nil
}

// Synchronize implements Synchronizer.
func (g *GridCorrelator) Synchronize(received []complex128) (SyncResult, error) {
	_, res, err := g.Acquire(received)
	return res, err
}

// Acquire is Synchronize that also returns the matched-filter output, which
// receivers sample to recover the payload symbols.
func (g *GridCorrelator) Acquire(received []complex128) ([]complex128, SyncResult, error) {
	p, sfLen := len(g.cfg.Preamble), g.cfg.SymbolLen
	if len(received) < p*sfLen {
		return nil, SyncResult{}, fmt.Errorf("%w: %d samples, preamble %d", ErrInsufficientSamples, len(received), p*sfLen)
	}

	filtered := FIR(g.cfg.Filter, received)
	rows := (len(filtered) / sfLen) / 5
	if rows < p {
		return nil, SyncResult{}, fmt.Errorf("%w: search window of %d symbols, preamble %d",
			ErrInsufficientSamples, rows, p)
	}

	// corr[r][c] = sum_k conj(preamble[p-1-k]) * front[r-k][c]
	corr := make([][]complex128, rows)
	for r := range corr {
		corr[r] = make([]complex128, sfLen)
		for c := 0; c < sfLen; c++ {
			var acc complex128
			for k := 0; k < p && k <= r; k++ {
				acc += cmplx.Conj(g.cfg.Preamble[p-1-k]) * filtered[(r-k)*sfLen+c]
			}
			corr[r][c] = acc
		}
	}

	bestCol, bestRow, bestMag := 0, 0, -1.0
	for c := 0; c < sfLen; c++ {
		row, mag := 0, -1.0
		for r := 0; r < rows; r++ {
			if a := cmplx.Abs(corr[r][c]); a > mag {
				row, mag = r, a
			}
		}
		if mag > bestMag {
			bestCol, bestRow, bestMag = c, row, mag
		}
	}

	idx := bestRow*sfLen + bestCol
	peak := corr[bestRow][bestCol]
	res := SyncResult{
		Index:  idx,
		Offset: idx - sfLen*p,
		Peak:   peak,
		Gain:   complex(g.cfg.KnownEnergy, 0) / peak,
	}

	g.record("filtered", filtered)
	g.record("correlation", corr)
	g.record("offset", res.Offset)
	g.log.WithFields(log.Fields{
		"offset": res.Offset,
		"peak":   res.Peak,
		"gain":   res.Gain,
		"angle":  cmplx.Phase(res.Gain) * 180 / math.Pi,
	}).Info("located preamble")
	return filtered, res, nil
}

// MatchedFilter returns the taps conj(exp(-j2π·fc·t)) over one symbol of
// length symbolLen at the given sample rate, time reversed.
func MatchedFilter(fc, rate float64, symbolLen int) []complex128 {
	taps := make([]complex128, symbolLen)
	for i := range taps {
		t := float64(symbolLen-1-i) / rate
		taps[i] = cmplx.Conj(cmplx.Exp(complex(0, -2*math.Pi*fc*t)))
	}
	return taps
}

// FIR filters x with taps b (no feedback): y[n] = sum_k b[k]·x[n-k].
// The output has the length of x.
func FIR(b, x []complex128) []complex128 {
	y := make([]complex128, len(x))
	for n := range x {
		var acc complex128
		for k := 0; k < len(b) && k <= n; k++ {
			acc += b[k] * x[n-k]
		}
		y[n] = acc
	}
	return y
}

func energy(x []complex128) float64 {
	var e float64
	for _, v := range x {
		e += real(v)*real(v) + imag(v)*imag(v)
	}
	return e
}

func argmaxAbs(x []complex128) int {
	best, bestMag := 0, -1.0
	for i, v := range x {
		if m := cmplx.Abs(v); m > bestMag {
			best, bestMag = i, m
		}
	}
	return best
}
