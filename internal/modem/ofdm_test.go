package modem

import (
	"errors"
	"math/cmplx"
	"math/rand"
	"testing"
)

func randomSymbols(rng *rand.Rand, c *Constellation, n int) []complex128 {
	out := make([]complex128, n)
	for i := range out {
		out[i] = c.SymbolOf(rng.Intn(c.Order()))
	}
	return out
}

func newFramerPair(t *testing.T, p FrameParams) (*Framer, *Deframer) {
	t.Helper()
	f, err := NewFramer(p)
	if err != nil {
		t.Fatalf("NewFramer(%+v): %v", p, err)
	}
	d, err := NewDeframer(p)
	if err != nil {
		t.Fatalf("NewDeframer(%+v): %v", p, err)
	}
	return f, d
}

func closeTo(a, b complex128) bool { return cmplx.Abs(a-b) < 1e-9 }

func TestOFDM_RoundTrip(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	c, _ := NewConstellation(16)

	for _, guard := range []GuardType{ZeroPad, CyclicPrefix, CyclicSuffix} {
		for _, gi := range []int{0, 3, 8} {
			p := FrameParams{SubcarrierCount: 8, GuardLength: gi, GuardType: guard}
			f, d := newFramerPair(t, p)

			symbols := randomSymbols(rng, c, 5*p.SubcarrierCount)
			samples, err := f.Process(symbols)
			if err != nil {
				t.Fatalf("%v/%d: Process: %v", guard, gi, err)
			}
			if len(samples) != 5*p.BlockLen() {
				t.Fatalf("%v/%d: %d samples, want %d", guard, gi, len(samples), 5*p.BlockLen())
			}

			blocks := d.Process(samples)
			if len(blocks) != 5 {
				t.Fatalf("%v/%d: %d blocks, want 5", guard, gi, len(blocks))
			}
			for b, block := range blocks {
				for k, s := range block {
					if !closeTo(s, symbols[b*p.SubcarrierCount+k]) {
						t.Fatalf("%v/%d: block %d subcarrier %d = %v, want %v",
							guard, gi, b, k, s, symbols[b*p.SubcarrierCount+k])
					}
				}
			}
		}
	}
}

func TestFramer_GuardContent(t *testing.T) {
	const n, g = 6, 2
	symbols := []complex128{1, 2i, -1, 0.5, -2i, 1 + 1i}
	body := IFFT(symbols)

	tests := []struct {
		guard GuardType
		want  []complex128
	}{
		{ZeroPad, append([]complex128{0, 0}, body...)},
		{CyclicPrefix, append(append([]complex128{}, body[n-g:]...), body...)},
		{CyclicSuffix, append(append([]complex128{}, body...), body[:g]...)},
	}

	for _, tt := range tests {
		f, _ := NewFramer(FrameParams{SubcarrierCount: n, GuardLength: g, GuardType: tt.guard})
		got, err := f.Process(symbols)
		if err != nil {
			t.Fatalf("%v: %v", tt.guard, err)
		}
		if len(got) != len(tt.want) {
			t.Fatalf("%v: %d samples, want %d", tt.guard, len(got), len(tt.want))
		}
		for i := range got {
			if !closeTo(got[i], tt.want[i]) {
				t.Errorf("%v: sample %d = %v, want %v", tt.guard, i, got[i], tt.want[i])
			}
		}
	}
}

func TestFramer_MisalignedSymbols(t *testing.T) {
	f, _ := NewFramer(FrameParams{SubcarrierCount: 12, GuardLength: 4, GuardType: CyclicPrefix})
	_, err := f.Process(make([]complex128, 13))
	if !errors.Is(err, ErrMisalignedSymbolLength) {
		t.Errorf("err = %v, want ErrMisalignedSymbolLength", err)
	}

	out, err := f.Process(nil)
	if err != nil || len(out) != 0 {
		t.Errorf("empty input: out=%v err=%v", out, err)
	}
}

func TestDeframer_TruncatesPartialBlock(t *testing.T) {
	p := FrameParams{SubcarrierCount: 4, GuardLength: 2, GuardType: ZeroPad}
	_, d := newFramerPair(t, p)

	if blocks := d.Process(make([]complex128, 2*p.BlockLen()+5)); len(blocks) != 2 {
		t.Errorf("%d blocks, want 2", len(blocks))
	}
	if blocks := d.Process(make([]complex128, p.BlockLen()-1)); len(blocks) != 0 {
		t.Errorf("%d blocks from a short stream, want 0", len(blocks))
	}
}

func TestFrameParams_Validate(t *testing.T) {
	tests := []struct {
		p     FrameParams
		valid bool
	}{
		{FrameParams{12, 4, CyclicPrefix}, true},
		{FrameParams{12, 0, CyclicSuffix}, true},
		{FrameParams{4, 10, ZeroPad}, true},
		{FrameParams{4, 10, CyclicPrefix}, false},
		{FrameParams{0, 4, ZeroPad}, false},
		{FrameParams{8, -1, ZeroPad}, false},
		{FrameParams{8, 2, GuardType(9)}, false},
	}

	for _, tt := range tests {
		err := tt.p.Validate()
		if tt.valid && err != nil {
			t.Errorf("%+v: unexpected error %v", tt.p, err)
		}
		if !tt.valid && !errors.Is(err, ErrInvalidFrameParams) {
			t.Errorf("%+v: err = %v, want ErrInvalidFrameParams", tt.p, err)
		}
	}
}

func TestParseGuardType(t *testing.T) {
	for in, want := range map[string]GuardType{
		"ZP": ZeroPad, "cp": CyclicPrefix, "cyclic_suffix": CyclicSuffix, " CS ": CyclicSuffix,
	} {
		got, err := ParseGuardType(in)
		if err != nil || got != want {
			t.Errorf("ParseGuardType(%q) = %v, %v; want %v", in, got, err, want)
		}
		if back, _ := ParseGuardType(got.String()); back != got {
			t.Errorf("String() of %v does not parse back", got)
		}
	}
	if _, err := ParseGuardType("guard"); !errors.Is(err, ErrInvalidFrameParams) {
		t.Errorf("err = %v, want ErrInvalidFrameParams", err)
	}
}

// 24 bits over QPSK fill exactly one 12-subcarrier block with a 4-sample
// cyclic prefix, and come back unchanged over an ideal channel.
func TestOFDM_QPSKBlock(t *testing.T) {
	rng := rand.New(rand.NewSource(4))
	mod, demod := newQAM(t, 4)
	p := FrameParams{SubcarrierCount: 12, GuardLength: 4, GuardType: CyclicPrefix}
	f, d := newFramerPair(t, p)

	bits := randomBits(rng, 24)
	symbols, err := mod.Process(bits)
	if err != nil {
		t.Fatal(err)
	}
	samples, err := f.Process(symbols)
	if err != nil {
		t.Fatal(err)
	}
	if len(samples) != 16 {
		t.Fatalf("%d samples, want 16", len(samples))
	}

	chain := NewRxChain(d, nil, NewEqualizer())
	rx, err := chain.Process(samples)
	if err != nil {
		t.Fatal(err)
	}
	got := demod.Process(rx)
	for i := range bits {
		if got[i] != bits[i] {
			t.Fatalf("bit %d: got %d, want %d", i, got[i], bits[i])
		}
	}
}
