package modem

import (
	"fmt"
	"strings"

	log "github.com/sirupsen/logrus"
)

// GuardType selects how the guard interval of an OFDM block is filled.
type GuardType int

const (
	ZeroPad      GuardType = iota // GuardLength zeros before the block
	CyclicPrefix                  // copy of the block tail before the block
	CyclicSuffix                  // copy of the block head after the block
)

// String returns the short name used in configuration files.
func (g GuardType) String() string {
	switch g {
	case ZeroPad:
		return "ZP"
	case CyclicPrefix:
		return "CP"
	case CyclicSuffix:
		return "CS"
	default:
		return fmt.Sprintf("GuardType(%d)", int(g))
	}
}

// ParseGuardType accepts ZP/CP/CS or zero_pad/cyclic_prefix/cyclic_suffix.
func ParseGuardType(s string) (GuardType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "zp", "zero_pad", "zeropad":
		return ZeroPad, nil
	case "cp", "cyclic_prefix", "cyclicprefix":
		return CyclicPrefix, nil
	case "cs", "cyclic_suffix", "cyclicsuffix":
		return CyclicSuffix, nil
	default:
		return 0, fmt.Errorf("%w: unknown guard type %q", ErrInvalidFrameParams, s)
	}
}

// FrameParams is shared by the Framer and the Deframer. Both sides must use
// identical values; a mismatch cannot be detected and corrupts the output.
type FrameParams struct {
	SubcarrierCount int
	GuardLength     int
	GuardType       GuardType
}

// BlockLen is the number of time-domain samples per OFDM block.
func (p FrameParams) BlockLen() int {
	return p.SubcarrierCount + p.GuardLength
}

// Validate rejects parameters that would make block slicing meaningless.
func (p FrameParams) Validate() error {
	if p.SubcarrierCount <= 0 {
		return fmt.Errorf("%w: subcarrier count %d", ErrInvalidFrameParams, p.SubcarrierCount)
	}
	if p.GuardLength < 0 {
		return fmt.Errorf("%w: guard length %d", ErrInvalidFrameParams, p.GuardLength)
	}
	switch p.GuardType {
	case ZeroPad:
	case CyclicPrefix, CyclicSuffix:
		if p.GuardLength > p.SubcarrierCount {
			return fmt.Errorf("%w: cyclic guard %d longer than block %d",
				ErrInvalidFrameParams, p.GuardLength, p.SubcarrierCount)
		}
	default:
		return fmt.Errorf("%w: %v", ErrInvalidFrameParams, p.GuardType)
	}
	return nil
}

// Framer turns frequency-domain symbols into time-domain OFDM samples.
type Framer struct {
	unit
	params FrameParams
}

// NewFramer creates an OFDM framer.
func NewFramer(params FrameParams, opts ...Option) (*Framer, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	f := &Framer{unit: newUnit("modem.Framer", opts), params: params}
	f.log.WithFields(log.Fields{
		"nsc":   params.SubcarrierCount,
		"gi":    params.GuardLength,
		"guard": params.GuardType.String(),
	}).Debug("framer ready")
	return f, nil
}

// Params returns the frame parameters.
func (f *Framer) Params() FrameParams { return f.params }

// Process applies a per-block IDFT and inserts the guard interval.
// len(symbols) must be a multiple of SubcarrierCount.
func (f *Framer) Process(symbols []complex128) ([]complex128, error) {
	n, g := f.params.SubcarrierCount, f.params.GuardLength
	if len(symbols)%n != 0 {
		return nil, fmt.Errorf("%w: %d symbols, %d subcarriers", ErrMisalignedSymbolLength, len(symbols), n)
	}

	numBlocks := len(symbols) / n
	blockLen := n + g
	out := make([]complex128, numBlocks*blockLen)
	if numBlocks == 0 {
		return out, nil
	}

	t := newTransformer(n)
	td := make([]complex128, n)
	for b := 0; b < numBlocks; b++ {
		td = t.inverse(td, symbols[b*n:(b+1)*n])
		addGuard(out[b*blockLen:(b+1)*blockLen], td, g, f.params.GuardType)
	}

	f.record("samples", out)
	return out, nil
}

// addGuard writes block plus its guard interval into dst (len n+g).
func addGuard(dst, block []complex128, g int, kind GuardType) {
	n := len(block)
	switch kind {
	case ZeroPad:
		for i := 0; i < g; i++ {
			dst[i] = 0
		}
		copy(dst[g:], block)
	case CyclicPrefix:
		copy(dst, block[n-g:])
		copy(dst[g:], block)
	case CyclicSuffix:
		copy(dst, block)
		copy(dst[n:], block[:g])
	}
}

// removeGuard returns the n useful samples of a received block of n+g samples.
func removeGuard(block []complex128, n, g int, kind GuardType) []complex128 {
	if kind == CyclicSuffix {
		return block[:n]
	}
	return block[g : g+n]
}

// Deframer strips the guard interval and returns to the frequency domain.
type Deframer struct {
	unit
	params FrameParams
}

// NewDeframer creates the receive-side OFDM frontend.
func NewDeframer(params FrameParams, opts ...Option) (*Deframer, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	return &Deframer{unit: newUnit("modem.Deframer", opts), params: params}, nil
}

// Params returns the frame parameters.
func (d *Deframer) Params() FrameParams { return d.params }

// Process splits samples into blocks of SubcarrierCount+GuardLength, silently
// dropping a trailing partial block, and returns one DFT per block.
func (d *Deframer) Process(samples []complex128) [][]complex128 {
	n, g := d.params.SubcarrierCount, d.params.GuardLength
	blockLen := n + g
	numBlocks := len(samples) / blockLen
	if dropped := len(samples) - numBlocks*blockLen; dropped > 0 {
		d.log.WithField("dropped", dropped).Debug("trailing partial block ignored")
	}

	blocks := make([][]complex128, numBlocks)
	if numBlocks == 0 {
		return blocks
	}
	t := newTransformer(n)
	for b := range blocks {
		raw := samples[b*blockLen : (b+1)*blockLen]
		blocks[b] = t.forward(nil, removeGuard(raw, n, g, d.params.GuardType))
	}

	d.record("blocks", blocks)
	return blocks
}
