package scenario

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/jeongseonghan/waveform/internal/audio"
	"github.com/jeongseonghan/waveform/internal/channel"
	"github.com/jeongseonghan/waveform/internal/modem"
)

// runAudioQPSK plays QPSK symbols held for one symbol period on the carrier,
// captures them back, acquires with the matched-filter grid search and
// samples the filter output once per symbol.
func runAudioQPSK(ctx context.Context, e *env) (Report, error) {
	sim, s := e.cfg.SimParams, e.cfg.Scenario
	if err := e.cfg.Audio.Validate(sim.Fc, sim.Fs); err != nil {
		return Report{}, err
	}
	if s.Npreamb <= 0 {
		return Report{}, errNoPreamble
	}
	rate := float64(e.cfg.Audio.Rate)
	sfLen := int(rate / sim.Fs)

	c, err := modem.NewConstellation(4)
	if err != nil {
		return Report{}, err
	}
	mod := modem.NewQAMModulator(c, e.opts()...)
	demod, err := modem.NewQAMDemodulator(c, e.opts()...)
	if err != nil {
		return Report{}, err
	}

	preambleBits := e.bits(s.Npreamb * c.BitsPerSymbol())
	payload := e.bits(s.Nsymb * c.BitsPerSymbol())
	symbols, err := mod.Process(append(append([]byte{}, preambleBits...), payload...))
	if err != nil {
		return Report{}, err
	}
	preamble := symbols[:s.Npreamb]

	signal := channel.Upconvert(channel.Repeat(symbols, sfLen), sim.Fc, rate)
	tx := audio.ToInt16(signal)
	e.log.WithFields(log.Fields{
		"sflen":    sfLen,
		"duration": float64(len(tx)) / rate,
	}).Info("transmitting")
	e.record("tx_symbols", symbols)
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

	grid, err := modem.NewGridCorrelator(modem.GridConfig{
		Preamble:    preamble,
		SymbolLen:   sfLen,
		Filter:      modem.MatchedFilter(sim.Fc, rate, sfLen),
		KnownEnergy: s.Energy,
	}, e.opts()...)
	if err != nil {
		return Report{}, err
	}
	filtered, res, err := grid.Acquire(toComplex(audio.FromInt16(recv)))
	if err != nil {
		return Report{}, err
	}

	last := res.Index + sfLen*s.Nsymb
	if last >= len(filtered) {
		return Report{}, fmt.Errorf("%w: payload ends at %d, capture has %d samples",
			modem.ErrInsufficientSamples, last, len(filtered))
	}
	rx := make([]complex128, s.Nsymb)
	for i := range rx {
		rx[i] = filtered[res.Index+sfLen*(i+1)] * res.Gain
	}
	e.record("rx_symbols", rx)

	rep := report(payload, demod.Process(rx))
	rep.Offset = res.Start()
	return rep, nil
}
