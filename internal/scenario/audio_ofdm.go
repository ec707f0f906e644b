package scenario

import (
	"context"
	"fmt"
	"math"

	log "github.com/sirupsen/logrus"

	"github.com/jeongseonghan/waveform/internal/audio"
	"github.com/jeongseonghan/waveform/internal/channel"
	"github.com/jeongseonghan/waveform/internal/config"
	"github.com/jeongseonghan/waveform/internal/modem"
)

// upscale returns the integer ratio between the audio rate and fs.
func upscale(cfg *config.Config) (int, error) {
	ratio := float64(cfg.Audio.Rate) / cfg.SimParams.Fs
	if ratio < 1 || ratio != math.Trunc(ratio) {
		return 0, fmt.Errorf("audio rate %d is not an integer multiple of fs %g", cfg.Audio.Rate, cfg.SimParams.Fs)
	}
	return int(ratio), nil
}

// runAudioOFDM interpolates an OFDM frame to the audio rate, plays it on the
// carrier and recovers it: full correlation on the real capture, mixing back
// to baseband and FFT decimation in front of the OFDM chain.
func runAudioOFDM(ctx context.Context, e *env) (Report, error) {
	sim := e.cfg.SimParams
	if err := e.cfg.Audio.Validate(sim.Fc, sim.Fs); err != nil {
		return Report{}, err
	}
	factor, err := upscale(e.cfg)
	if err != nil {
		return Report{}, err
	}
	rate := float64(e.cfg.Audio.Rate)

	l, err := buildOFDMLink(e)
	if err != nil {
		return Report{}, err
	}
	envelope, err := channel.FFTUpsampler{Scale: factor}.Process(l.samples)
	if err != nil {
		return Report{}, err
	}
	passband := channel.Upconvert(envelope, sim.Fc, rate)
	gain := channel.Normalize(passband)
	tx := audio.ToInt16(passband)

	e.log.WithFields(log.Fields{
		"upscale":  factor,
		"duration": float64(len(tx)) / rate,
	}).Info("transmitting")
	e.record("tx_envelope", envelope)
	e.record("tx_audio", tx)

	ch, err := e.channel()
	if err != nil {
		return Report{}, err
	}
	recv, err := ch.RouteAudio(ctx, tx)
	if err != nil {
		return Report{}, fmt.Errorf("route audio: %w", err)
	}
	e.record("rx_audio", recv)

	reference := toComplex(passband[:l.preambleLen*factor])
	sync, err := modem.NewFullCorrelator(reference, e.cfg.Scenario.Energy, e.opts()...)
	if err != nil {
		return Report{}, err
	}
	rx := audio.FromInt16(recv)
	res, err := sync.SynchronizeReal(rx)
	if err != nil {
		return Report{}, err
	}
	start := res.Start()
	if start < 0 || start+len(passband) > len(rx) {
		return Report{}, fmt.Errorf("%w: frame of %d samples at %d, capture has %d",
			modem.ErrInsufficientSamples, len(passband), start, len(rx))
	}

	baseband := channel.Downconvert(rx[start:start+len(passband)], sim.Fc, rate)
	aligned, err := channel.FFTDownsampler{Scale: factor}.Process(baseband)
	if err != nil {
		return Report{}, err
	}
	e.record("rx_ofdm_signal", aligned)

	// The reference already carries the normalization gain; undo it too.
	rep, err := l.receive(e, aligned, complex(gain, 0)/res.Gain)
	rep.Offset = start
	return rep, err
}
