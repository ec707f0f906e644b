package modem

import (
	"fmt"

	log "github.com/sirupsen/logrus"
)

// RxChain runs Deframer -> Estimator -> Equalizer in that fixed order.
type RxChain struct {
	unit
	frontend  *Deframer
	estimator Estimator
	equalizer *Equalizer
}

// NewRxChain composes the receive pipeline. A nil estimator means UnitEstimator.
func NewRxChain(frontend *Deframer, estimator Estimator, equalizer *Equalizer, opts ...Option) *RxChain {
	if estimator == nil {
		estimator = UnitEstimator{}
	}
	c := &RxChain{
		unit:      newUnit("modem.RxChain", opts),
		frontend:  frontend,
		estimator: estimator,
		equalizer: equalizer,
	}
	c.log.WithFields(log.Fields{
		"frontend":  fmt.Sprintf("%+v", frontend.Params()),
		"estimator": fmt.Sprintf("%T", estimator),
	}).Info("init chain")
	return c
}

// Process returns the equalized frequency-domain symbols of samples, flattened
// block after block.
func (c *RxChain) Process(samples []complex128) ([]complex128, error) {
	blocks := c.frontend.Process(samples)

	est, err := c.estimator.Estimate(blocks)
	if err != nil {
		return nil, fmt.Errorf("estimate channel: %w", err)
	}

	eq, err := c.equalizer.Process(blocks, est)
	if err != nil {
		return nil, fmt.Errorf("equalize: %w", err)
	}

	n := c.frontend.Params().SubcarrierCount
	out := make([]complex128, 0, len(eq)*n)
	for _, block := range eq {
		out = append(out, block...)
	}
	c.record("symbols", out)
	return out, nil
}
