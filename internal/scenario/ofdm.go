package scenario

import (
	"context"
	"errors"
	"fmt"
	"math/cmplx"

	log "github.com/sirupsen/logrus"

	"github.com/jeongseonghan/waveform/internal/channel"
	"github.com/jeongseonghan/waveform/internal/modem"
)

var (
	errNoPreamble = errors.New("scenario needs at least one preamble unit (scenario.npreamb)")
	errNoPeak     = errors.New("no usable correlation peak")
)

// link is the transmit half shared by the OFDM scenarios: npreamb known
// blocks followed by nsymb payload blocks.
type link struct {
	constellation *modem.Constellation
	params        modem.FrameParams
	payload       []byte
	symbols       []complex128 // preamble then payload, frequency domain
	samples       []complex128 // framed, time domain
	preambleLen   int          // time-domain samples of the preamble
}

func buildOFDMLink(e *env) (*link, error) {
	if e.cfg.Scenario.Npreamb <= 0 {
		return nil, errNoPreamble
	}
	c, err := modem.NewConstellation(e.cfg.Constellation.Order)
	if err != nil {
		return nil, err
	}
	params, err := e.cfg.OFDM.FrameParams()
	if err != nil {
		return nil, err
	}
	framer, err := modem.NewFramer(params, e.opts()...)
	if err != nil {
		return nil, err
	}
	mod := modem.NewQAMModulator(c, e.opts()...)

	perBlock := params.SubcarrierCount * c.BitsPerSymbol()
	preamble := e.bits(e.cfg.Scenario.Npreamb * perBlock)
	payload := e.bits(e.cfg.Scenario.Nsymb * perBlock)

	symbols, err := mod.Process(append(append([]byte{}, preamble...), payload...))
	if err != nil {
		return nil, err
	}
	samples, err := framer.Process(symbols)
	if err != nil {
		return nil, err
	}

	e.log.WithFields(log.Fields{
		"order":   c.Order(),
		"nsc":     params.SubcarrierCount,
		"gi":      params.GuardLength,
		"guard":   params.GuardType.String(),
		"blocks":  e.cfg.Scenario.Npreamb + e.cfg.Scenario.Nsymb,
		"payload": len(payload),
	}).Info("transmitter ready")
	e.record("payload", payload)
	e.record("tx_symbols", symbols)

	return &link{
		constellation: c,
		params:        params,
		payload:       payload,
		symbols:       symbols,
		samples:       samples,
		preambleLen:   e.cfg.Scenario.Npreamb * params.BlockLen(),
	}, nil
}

// receive runs the OFDM chain over aligned samples, equalizing with the
// channel gain h found at acquisition, and demodulates the payload blocks.
func (l *link) receive(e *env, aligned []complex128, h complex128) (Report, error) {
	if h == 0 || cmplx.IsNaN(h) || cmplx.IsInf(h) {
		return Report{}, fmt.Errorf("%w: channel gain %v", errNoPeak, h)
	}
	deframer, err := modem.NewDeframer(l.params, e.opts()...)
	if err != nil {
		return Report{}, err
	}
	est := modem.NewFixedEstimator(modem.ScalarEstimate(h))
	chain := modem.NewRxChain(deframer, est, modem.NewEqualizer(e.opts()...), e.opts()...)
	demod, err := modem.NewQAMDemodulator(l.constellation, e.opts()...)
	if err != nil {
		return Report{}, err
	}

	rx, err := chain.Process(aligned)
	if err != nil {
		return Report{}, err
	}
	skip := e.cfg.Scenario.Npreamb * l.params.SubcarrierCount
	if len(rx) < skip {
		return Report{}, fmt.Errorf("%w: %d symbols received, preamble alone is %d",
			modem.ErrInsufficientSamples, len(rx), skip)
	}
	e.record("rx_symbols", rx[skip:])

	estimate := demod.Process(rx[skip:])
	return report(l.payload, estimate), nil
}

// crop returns rx[start:start+n] or an error if the stream is too short.
func crop(rx []complex128, start, n int) ([]complex128, error) {
	if start < 0 || start+n > len(rx) {
		return nil, fmt.Errorf("%w: frame of %d samples at %d, stream has %d",
			modem.ErrInsufficientSamples, n, start, len(rx))
	}
	return rx[start : start+n], nil
}

// runOFDM sends an OFDM frame through the propagation model with silence
// around it, finds the preamble by full correlation and demodulates.
func runOFDM(ctx context.Context, e *env) (Report, error) {
	l, err := buildOFDMLink(e)
	if err != nil {
		return Report{}, err
	}

	pl, err := channel.NewPathLoss(e.cfg.Scenario.Range, e.cfg.SimParams.Fc)
	if err != nil {
		return Report{}, err
	}
	propagated := pl.Process(l.samples)

	pre, post := e.cfg.Scenario.PrefixLen, e.cfg.Scenario.SuffixLen
	rx := make([]complex128, pre+len(propagated)+post)
	copy(rx[pre:], propagated)
	e.record("rx_signal", rx)

	if err := ctx.Err(); err != nil {
		return Report{}, err
	}

	sync, err := modem.NewFullCorrelator(l.samples[:l.preambleLen], e.cfg.Scenario.Energy, e.opts()...)
	if err != nil {
		return Report{}, err
	}
	res, err := sync.Synchronize(rx)
	if err != nil {
		return Report{}, err
	}
	aligned, err := crop(rx, res.Start(), len(l.samples))
	if err != nil {
		return Report{}, err
	}

	rep, err := l.receive(e, aligned, 1/res.Gain)
	rep.Offset = res.Start()
	return rep, err
}
