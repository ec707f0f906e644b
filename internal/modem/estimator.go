package modem

// ChannelEstimate is either one complex gain for every subcarrier or one gain
// per subcarrier.
type ChannelEstimate struct {
	scalar complex128
	vector []complex128
}

// ScalarEstimate returns an estimate applying g to all subcarriers.
func ScalarEstimate(g complex128) ChannelEstimate {
	return ChannelEstimate{scalar: g}
}

// VectorEstimate returns a per-subcarrier estimate. v is copied.
func VectorEstimate(v []complex128) ChannelEstimate {
	c := make([]complex128, len(v))
	copy(c, v)
	return ChannelEstimate{vector: c}
}

// IsScalar reports whether the estimate is a single gain.
func (e ChannelEstimate) IsScalar() bool { return e.vector == nil }

// Len is the number of subcarriers covered, 0 for a scalar estimate.
func (e ChannelEstimate) Len() int { return len(e.vector) }

// At returns the gain of subcarrier k.
func (e ChannelEstimate) At(k int) complex128 {
	if e.vector == nil {
		return e.scalar
	}
	return e.vector[k]
}

// Estimator produces a channel estimate from deframed blocks.
// Pilot-aided strategies plug in here.
type Estimator interface {
	Estimate(blocks [][]complex128) (ChannelEstimate, error)
}

// UnitEstimator assumes an ideal channel: a gain of one on every subcarrier.
type UnitEstimator struct{}

// Estimate implements Estimator.
func (UnitEstimator) Estimate(blocks [][]complex128) (ChannelEstimate, error) {
	if len(blocks) == 0 {
		return ScalarEstimate(1), nil
	}
	ones := make([]complex128, len(blocks[0]))
	for i := range ones {
		ones[i] = 1
	}
	return VectorEstimate(ones), nil
}

// FixedEstimator returns an estimate obtained elsewhere, for example the
// inverse of the gain correction found by preamble acquisition.
type FixedEstimator struct {
	Channel ChannelEstimate
}

// NewFixedEstimator wraps e.
func NewFixedEstimator(e ChannelEstimate) FixedEstimator {
	return FixedEstimator{Channel: e}
}

// Estimate implements Estimator.
func (f FixedEstimator) Estimate([][]complex128) (ChannelEstimate, error) {
	return f.Channel, nil
}
