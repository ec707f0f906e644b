package channel

import (
	"math"
	"math/cmplx"
)

// Repeat holds every symbol for n samples (rectangular shaping).
func Repeat(symbols []complex128, n int) []complex128 {
	out := make([]complex128, 0, len(symbols)*n)
	for _, s := range symbols {
		for i := 0; i < n; i++ {
			out = append(out, s)
		}
	}
	return out
}

// Carrier returns exp(-j2π·fc·t) for t = i/rate, i = 0..n-1.
func Carrier(fc, rate float64, n int) []complex128 {
	out := make([]complex128, n)
	for i := range out {
		out[i] = cmplx.Exp(complex(0, -2*math.Pi*fc*float64(i)/rate))
	}
	return out
}

// Upconvert moves a baseband envelope onto the carrier and keeps the real
// part, which is what a loudspeaker can play.
func Upconvert(envelope []complex128, fc, rate float64) []float64 {
	ref := Carrier(fc, rate, len(envelope))
	out := make([]float64, len(envelope))
	for i, e := range envelope {
		out[i] = real(e * ref[i])
	}
	return out
}

// Downconvert mixes a real passband signal back to baseband. The factor of
// two restores the envelope amplitude lost to the image at twice the carrier,
// which is left in place for the caller to filter.
func Downconvert(signal []float64, fc, rate float64) []complex128 {
	ref := Carrier(fc, rate, len(signal))
	out := make([]complex128, len(signal))
	for i, x := range signal {
		out[i] = 2 * complex(x, 0) * cmplx.Conj(ref[i])
	}
	return out
}

// Normalize scales x in place so its peak magnitude is 0.8 and returns the
// factor applied. An all-zero signal is left alone and reports 1.
func Normalize(x []float64) float64 {
	peak := 0.0
	for _, v := range x {
		if a := math.Abs(v); a > peak {
			peak = a
		}
	}
	if peak == 0 {
		return 1
	}
	scale := 0.8 / peak
	for i := range x {
		x[i] *= scale
	}
	return scale
}
