package scenario

import (
	"context"

	log "github.com/sirupsen/logrus"

	"github.com/jeongseonghan/waveform/internal/modem"
)

// runQAM maps the payload onto the constellation and straight back.
func runQAM(ctx context.Context, e *env) (Report, error) {
	c, err := modem.NewConstellation(e.cfg.Constellation.Order)
	if err != nil {
		return Report{}, err
	}
	mod := modem.NewQAMModulator(c, e.opts()...)
	demod, err := modem.NewQAMDemodulator(c, e.opts()...)
	if err != nil {
		return Report{}, err
	}

	payload := e.bits(e.cfg.Scenario.Nsymb * c.BitsPerSymbol())
	e.log.WithFields(log.Fields{
		"order": c.Order(),
		"bits":  len(payload),
	}).Info("modulating")

	symbols, err := mod.Process(payload)
	if err != nil {
		return Report{}, err
	}
	if err := ctx.Err(); err != nil {
		return Report{}, err
	}

	estimate := demod.Process(symbols)
	e.record("payload", payload)
	e.record("payload_hat", estimate)
	return report(payload, estimate), nil
}
