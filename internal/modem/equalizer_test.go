package modem

import (
	"errors"
	"math/rand"
	"testing"
)

func TestEqualizer_InvertsVectorChannel(t *testing.T) {
	h := []complex128{2, 1i, 0.5 - 0.5i, -1}
	tx := [][]complex128{
		{1, -1, 1i, -1i},
		{1 + 1i, 0.5, -2, 3i},
	}
	rx := make([][]complex128, len(tx))
	for b := range tx {
		rx[b] = make([]complex128, len(h))
		for k := range h {
			rx[b][k] = tx[b][k] * h[k]
		}
	}

	out, err := NewEqualizer().Process(rx, VectorEstimate(h))
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	for b := range tx {
		for k := range h {
			if !closeTo(out[b][k], tx[b][k]) {
				t.Errorf("block %d subcarrier %d = %v, want %v", b, k, out[b][k], tx[b][k])
			}
		}
	}
}

func TestEqualizer_ScalarBroadcast(t *testing.T) {
	out, err := NewEqualizer().Process([][]complex128{{2, 4i, -6}}, ScalarEstimate(2))
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	want := []complex128{1, 2i, -3}
	for k := range want {
		if !closeTo(out[0][k], want[k]) {
			t.Errorf("subcarrier %d = %v, want %v", k, out[0][k], want[k])
		}
	}
}

func TestEqualizer_DimensionMismatch(t *testing.T) {
	_, err := NewEqualizer().Process([][]complex128{{1, 2, 3}}, VectorEstimate([]complex128{1, 1}))
	if !errors.Is(err, ErrDimensionMismatch) {
		t.Errorf("err = %v, want ErrDimensionMismatch", err)
	}
}

func TestEstimators(t *testing.T) {
	est, err := UnitEstimator{}.Estimate([][]complex128{{1, 2, 3}})
	if err != nil || est.IsScalar() || est.Len() != 3 || est.At(2) != 1 {
		t.Errorf("unit estimate = %+v, %v", est, err)
	}
	if est, _ := (UnitEstimator{}).Estimate(nil); !est.IsScalar() || est.At(0) != 1 {
		t.Errorf("unit estimate without blocks = %+v", est)
	}

	v := []complex128{1, 2}
	fixed := NewFixedEstimator(VectorEstimate(v))
	v[0] = 9
	if est, _ := fixed.Estimate(nil); est.At(0) != 1 {
		t.Error("VectorEstimate must copy its input")
	}
}

func TestRxChain_FixedChannel(t *testing.T) {
	rng := rand.New(rand.NewSource(5))
	mod, demod := newQAM(t, 16)
	p := FrameParams{SubcarrierCount: 6, GuardLength: 2, GuardType: CyclicSuffix}
	f, d := newFramerPair(t, p)

	bits := randomBits(rng, 4*6*4)
	symbols, _ := mod.Process(bits)
	samples, err := f.Process(symbols)
	if err != nil {
		t.Fatal(err)
	}

	// A flat complex gain rotates and scales every subcarrier alike.
	h := complex(0.3, -0.4)
	for i := range samples {
		samples[i] *= h
	}

	chain := NewRxChain(d, NewFixedEstimator(ScalarEstimate(h)), NewEqualizer())
	rx, err := chain.Process(samples)
	if err != nil {
		t.Fatal(err)
	}
	if len(rx) != len(symbols) {
		t.Fatalf("%d symbols, want %d", len(rx), len(symbols))
	}
	got := demod.Process(rx)
	for i := range bits {
		if got[i] != bits[i] {
			t.Fatalf("bit %d: got %d, want %d", i, got[i], bits[i])
		}
	}
}

func TestRxChain_EstimateMismatch(t *testing.T) {
	p := FrameParams{SubcarrierCount: 4, GuardLength: 1, GuardType: ZeroPad}
	_, d := newFramerPair(t, p)

	chain := NewRxChain(d, NewFixedEstimator(VectorEstimate([]complex128{1, 1})), NewEqualizer())
	if _, err := chain.Process(make([]complex128, 10)); !errors.Is(err, ErrDimensionMismatch) {
		t.Errorf("err = %v, want ErrDimensionMismatch", err)
	}
}
