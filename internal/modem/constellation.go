package modem

import (
	"fmt"
	"math/bits"
)

// Point is one constellation symbol together with the integer value it carries.
type Point struct {
	Symbol complex128
	Value  int
}

// Constellation maps integer symbol values to complex points. It is immutable
// once built.
type Constellation struct {
	order  int
	bps    int
	points []complex128 // indexed by value
}

// NewConstellation builds the rectangular QAM grid for order points.
//
// The grid has 2^floor(bps/2) rows and order/rows columns, both axes evenly
// spaced over [-1, 1] (a single row on the real axis when there is only one).
// Values are assigned row-major, real axis fastest.
func NewConstellation(order int) (*Constellation, error) {
	if order < 2 || order&(order-1) != 0 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidOrder, order)
	}
	bps := bits.TrailingZeros(uint(order))

	yTicks := 1 << (bps / 2)
	xTicks := order / yTicks
	xs := linspace(-1, 1, xTicks)
	ys := []float64{0}
	if yTicks > 1 {
		ys = linspace(-1, 1, yTicks)
	}

	points := make([]complex128, order)
	for row, y := range ys {
		for col, x := range xs {
			points[row*xTicks+col] = complex(x, y)
		}
	}

	return &Constellation{order: order, bps: bps, points: points}, nil
}

// NewCustomConstellation wraps an explicit point list; point i carries value i.
// The length must be a power of two. Whether the layout can be demodulated is
// checked by NewQAMDemodulator.
func NewCustomConstellation(points []complex128) (*Constellation, error) {
	order := len(points)
	if order < 2 || order&(order-1) != 0 {
		return nil, fmt.Errorf("%w: got %d points", ErrInvalidOrder, order)
	}
	p := make([]complex128, order)
	copy(p, points)
	return &Constellation{
		order:  order,
		bps:    bits.TrailingZeros(uint(order)),
		points: p,
	}, nil
}

// Order returns the number of points.
func (c *Constellation) Order() int { return c.order }

// BitsPerSymbol returns log2(order).
func (c *Constellation) BitsPerSymbol() int { return c.bps }

// SymbolOf returns the point carrying value. Out-of-range values panic.
func (c *Constellation) SymbolOf(value int) complex128 {
	return c.points[value]
}

// ValueOf returns the value of an exact constellation point. It only matches
// points taken from Mapping or SymbolOf; received symbols never compare equal
// and go through QAMDemodulator instead.
func (c *Constellation) ValueOf(symbol complex128) (int, bool) {
	for v, p := range c.points {
		if p == symbol {
			return v, true
		}
	}
	return 0, false
}

// Mapping enumerates every (symbol, value) pair in value order.
func (c *Constellation) Mapping() []Point {
	out := make([]Point, c.order)
	for v, p := range c.points {
		out[v] = Point{Symbol: p, Value: v}
	}
	return out
}

func linspace(start, stop float64, n int) []float64 {
	out := make([]float64, n)
	if n == 1 {
		out[0] = start
		return out
	}
	step := (stop - start) / float64(n-1)
	for i := range out {
		out[i] = start + float64(i)*step
	}
	out[n-1] = stop
	return out
}
