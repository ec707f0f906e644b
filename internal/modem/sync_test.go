package modem

import (
	"errors"
	"math/cmplx"
	"math/rand"
	"testing"
)

var barker13 = []complex128{1, 1, 1, 1, 1, -1, -1, 1, 1, -1, 1, -1, 1}

func TestCorrelate_Small(t *testing.T) {
	got := Correlate([]complex128{1, 2, 3}, []complex128{1, 2i})
	want := []complex128{-2i, 1 - 4i, 2 - 6i, 3}
	if len(got) != len(want) {
		t.Fatalf("len = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if cmplx.Abs(got[i]-want[i]) > 1e-9 {
			t.Errorf("c[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestFullCorrelator_LocatesPreamble(t *testing.T) {
	rng := rand.New(rand.NewSource(6))
	c, _ := NewConstellation(4)
	ref := randomSymbols(rng, c, 128)

	const lead = 100
	h := complex(0.2, -0.6)
	rx := make([]complex128, lead+len(ref)+50)
	for i, s := range ref {
		rx[lead+i] = s * h
	}

	fc, err := NewFullCorrelator(ref, 0)
	if err != nil {
		t.Fatal(err)
	}
	res, err := fc.Synchronize(rx)
	if err != nil {
		t.Fatal(err)
	}

	if res.Index != lead+len(ref)-1 {
		t.Errorf("Index = %d, want %d", res.Index, lead+len(ref)-1)
	}
	if res.Offset != lead-1 || res.Start() != lead {
		t.Errorf("Offset = %d, Start = %d; want %d, %d", res.Offset, res.Start(), lead-1, lead)
	}
	if cmplx.Abs(res.Gain-1/h) > 1e-9 {
		t.Errorf("Gain = %v, want %v", res.Gain, 1/h)
	}
}

func TestFullCorrelator_Real(t *testing.T) {
	ref := []float64{1, -1, 1, 1, -1, -1, 1, -1}
	rx := make([]float64, 40)
	for i, v := range ref {
		rx[10+i] = 3 * v
	}

	fc, err := NewFullCorrelator(toComplex(ref), 0)
	if err != nil {
		t.Fatal(err)
	}
	res, err := fc.SynchronizeReal(rx)
	if err != nil {
		t.Fatal(err)
	}
	if res.Start() != 10 {
		t.Errorf("Start = %d, want 10", res.Start())
	}
	if cmplx.Abs(res.Gain-complex(1.0/3, 0)) > 1e-9 {
		t.Errorf("Gain = %v, want 1/3", res.Gain)
	}
}

func TestFullCorrelator_Errors(t *testing.T) {
	if _, err := NewFullCorrelator(nil, 0); err == nil {
		t.Error("empty reference accepted")
	}
	fc, _ := NewFullCorrelator([]complex128{1, 1, 1}, 0)
	if _, err := fc.Synchronize([]complex128{1}); !errors.Is(err, ErrInsufficientSamples) {
		t.Errorf("err = %v, want ErrInsufficientSamples", err)
	}
}

func TestMatchedFilter_Baseband(t *testing.T) {
	for i, tap := range MatchedFilter(0, 8000, 5) {
		if cmplx.Abs(tap-1) > 1e-12 {
			t.Errorf("tap %d = %v, want 1", i, tap)
		}
	}
}

func TestFIR(t *testing.T) {
	got := FIR([]complex128{1, 1}, []complex128{1, 2, 3, 4})
	want := []complex128{1, 3, 5, 7}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("y[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}

// rectangular pulses of symbolLen samples each
func shape(symbols []complex128, symbolLen int) []complex128 {
	out := make([]complex128, 0, len(symbols)*symbolLen)
	for _, s := range symbols {
		for i := 0; i < symbolLen; i++ {
			out = append(out, s)
		}
	}
	return out
}

func TestGridCorrelator_LocatesPreamble(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	const sfLen, lead = 4, 22

	payload := make([]complex128, 100)
	for i := range payload {
		payload[i] = complex(float64(2*rng.Intn(2)-1), 0)
	}
	tx := shape(append(append([]complex128{}, barker13...), payload...), sfLen)

	h := complex(0.5, 0.5)
	rx := make([]complex128, lead+len(tx))
	for i, s := range tx {
		rx[lead+i] = s * h
	}

	g, err := NewGridCorrelator(GridConfig{
		Preamble:    barker13,
		SymbolLen:   sfLen,
		Filter:      MatchedFilter(0, 1000, sfLen),
		KnownEnergy: float64(len(barker13) * sfLen),
	})
	if err != nil {
		t.Fatal(err)
	}

	filtered, res, err := g.Acquire(rx)
	if err != nil {
		t.Fatal(err)
	}
	if len(filtered) != len(rx) {
		t.Errorf("filtered has %d samples, want %d", len(filtered), len(rx))
	}
	if res.Start() != lead {
		t.Errorf("Start = %d, want %d (offset %d)", res.Start(), lead, res.Offset)
	}
	if cmplx.Abs(res.Gain-1/h) > 1e-9 {
		t.Errorf("Gain = %v, want %v", res.Gain, 1/h)
	}

	// Sampling the filter output at the end of every symbol and applying
	// the gain recovers the payload.
	first := res.Start() + sfLen*(len(barker13)+1) - 1
	for i := 0; i < 10; i++ {
		got := filtered[first+i*sfLen] * res.Gain / sfLen
		if cmplx.Abs(got-payload[i]) > 1e-9 {
			t.Errorf("payload symbol %d = %v, want %v", i, got, payload[i])
		}
	}
}

func TestGridCorrelator_InsufficientSamples(t *testing.T) {
	g, err := NewGridCorrelator(GridConfig{
		Preamble:  barker13,
		SymbolLen: 4,
		Filter:    MatchedFilter(0, 1000, 4),
	})
	if err != nil {
		t.Fatal(err)
	}

	for _, n := range []int{30, 100} {
		if _, err := g.Synchronize(make([]complex128, n)); !errors.Is(err, ErrInsufficientSamples) {
			t.Errorf("%d samples: err = %v, want ErrInsufficientSamples", n, err)
		}
	}
}

func TestNewGridCorrelator_Invalid(t *testing.T) {
	bad := []GridConfig{
		{SymbolLen: 4, Filter: []complex128{1}},
		{Preamble: barker13, Filter: []complex128{1}},
		{Preamble: barker13, SymbolLen: 4},
	}
	for i, cfg := range bad {
		if _, err := NewGridCorrelator(cfg); err == nil {
			t.Errorf("config %d accepted", i)
		}
	}
}
