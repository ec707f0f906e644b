package modem

import (
	"gonum.org/v1/gonum/dsp/fourier"
)

// FFT computes the unscaled discrete Fourier transform of x.
// Any length is accepted; the input is not modified.
func FFT(x []complex128) []complex128 {
	n := len(x)
	if n == 0 {
		return nil
	}
	return fourier.NewCmplxFFT(n).Coefficients(nil, x)
}

// IFFT computes the inverse transform scaled by 1/N, so IFFT(FFT(x)) == x.
func IFFT(x []complex128) []complex128 {
	n := len(x)
	if n == 0 {
		return nil
	}
	out := fourier.NewCmplxFFT(n).Sequence(nil, x)
	scale := complex(1/float64(n), 0)
	for i := range out {
		out[i] *= scale
	}
	return out
}

// transformer reuses one gonum plan across the equally sized blocks of a call.
type transformer struct {
	plan *fourier.CmplxFFT
	n    int
}

func newTransformer(n int) *transformer {
	return &transformer{plan: fourier.NewCmplxFFT(n), n: n}
}

func (t *transformer) forward(dst, block []complex128) []complex128 {
	return t.plan.Coefficients(dst, block)
}

func (t *transformer) inverse(dst, block []complex128) []complex128 {
	dst = t.plan.Sequence(dst, block)
	scale := complex(1/float64(t.n), 0)
	for i := range dst {
		dst[i] *= scale
	}
	return dst
}

func toComplex(x []float64) []complex128 {
	out := make([]complex128, len(x))
	for i, v := range x {
		out[i] = complex(v, 0)
	}
	return out
}
