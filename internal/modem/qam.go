package modem

import (
	"fmt"
	"math"
	"sort"
)

// QAMModulator maps bit groups onto constellation points.
type QAMModulator struct {
	unit
	table []complex128
	bps   int
}

// NewQAMModulator creates a modulator for c.
func NewQAMModulator(c *Constellation, opts ...Option) *QAMModulator {
	table := make([]complex128, c.Order())
	for _, p := range c.Mapping() {
		table[p.Value] = p.Symbol
	}
	return &QAMModulator{
		unit:  newUnit("modem.QAMModulator", opts),
		table: table,
		bps:   c.BitsPerSymbol(),
	}
}

// Process converts 0/1 bytes into symbols. Each group of BitsPerSymbol bits is
// read least-significant bit first.
func (m *QAMModulator) Process(bits []byte) ([]complex128, error) {
	if len(bits)%m.bps != 0 {
		return nil, fmt.Errorf("%w: %d bits, %d bits per symbol", ErrMisalignedBitLength, len(bits), m.bps)
	}

	symbols := make([]complex128, len(bits)/m.bps)
	for i := range symbols {
		symbols[i] = m.table[packBits(bits[i*m.bps:(i+1)*m.bps])]
	}
	m.record("symbols", symbols)
	return symbols, nil
}

// QAMDemodulator makes nearest-region hard decisions on a rectangular
// constellation. No soft metrics are produced.
type QAMDemodulator struct {
	unit
	reBorders []float64
	imBorders []float64
	values    [][]int // [imag row][real column]
	bps       int
}

// NewQAMDemodulator derives the decision borders of c. Constellations whose
// points do not form a full rectangular grid fail with ErrUnsupportedLayout.
func NewQAMDemodulator(c *Constellation, opts ...Option) (*QAMDemodulator, error) {
	mapping := c.Mapping()

	xs := distinctSorted(mapping, func(p Point) float64 { return real(p.Symbol) })
	ys := distinctSorted(mapping, func(p Point) float64 { return imag(p.Symbol) })
	if len(xs)*len(ys) != len(mapping) {
		return nil, fmt.Errorf("%w: %d points on a %dx%d grid", ErrUnsupportedLayout, len(mapping), len(ys), len(xs))
	}

	values := make([][]int, len(ys))
	for row := range values {
		values[row] = make([]int, len(xs))
		for col := range values[row] {
			values[row][col] = -1
		}
	}
	for _, p := range mapping {
		col := sort.SearchFloat64s(xs, real(p.Symbol))
		row := sort.SearchFloat64s(ys, imag(p.Symbol))
		if values[row][col] != -1 {
			return nil, fmt.Errorf("%w: duplicate point %v", ErrUnsupportedLayout, p.Symbol)
		}
		values[row][col] = p.Value
	}

	return &QAMDemodulator{
		unit:      newUnit("modem.QAMDemodulator", opts),
		reBorders: borders(xs),
		imBorders: borders(ys),
		values:    values,
		bps:       c.BitsPerSymbol(),
	}, nil
}

// Process demaps symbols into 0/1 bytes, least-significant bit first per symbol.
func (d *QAMDemodulator) Process(symbols []complex128) []byte {
	bits := make([]byte, 0, len(symbols)*d.bps)
	for _, s := range symbols {
		col := region(d.reBorders, real(s))
		row := region(d.imBorders, imag(s))
		bits = appendBits(bits, d.values[row][col], d.bps)
	}
	d.record("bits", bits)
	return bits
}

// borders returns -Inf followed by the midpoints between neighbouring coordinates.
func borders(coords []float64) []float64 {
	b := make([]float64, len(coords))
	b[0] = math.Inf(-1)
	for k := 1; k < len(coords); k++ {
		b[k] = (coords[k-1] + coords[k]) / 2
	}
	return b
}

// region returns the index of the greatest border strictly below v.
func region(borders []float64, v float64) int {
	idx := sort.SearchFloat64s(borders, v) - 1
	if idx < 0 {
		return 0
	}
	return idx
}

func distinctSorted(points []Point, coord func(Point) float64) []float64 {
	seen := make(map[float64]struct{}, len(points))
	var out []float64
	for _, p := range points {
		v := coord(p)
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	sort.Float64s(out)
	return out
}

func packBits(bits []byte) int {
	v := 0
	for i, b := range bits {
		v |= int(b&1) << i
	}
	return v
}

func appendBits(dst []byte, value, n int) []byte {
	for i := 0; i < n; i++ {
		dst = append(dst, byte(value>>i)&1)
	}
	return dst
}
