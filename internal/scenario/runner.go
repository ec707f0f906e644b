// Package scenario runs end-to-end link simulations and reports the bit error
// rate of each run.
package scenario

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sort"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/jeongseonghan/waveform/internal/audio"
	"github.com/jeongseonghan/waveform/internal/config"
	"github.com/jeongseonghan/waveform/internal/modem"
	"github.com/jeongseonghan/waveform/internal/record"
)

// ErrUnknownScenario is returned for a name that is not registered.
var ErrUnknownScenario = errors.New("unknown scenario")

// Report summarizes one run.
type Report struct {
	Scenario string  `json:"scenario"`
	RunID    string  `json:"run_id"`
	Bits     int     `json:"bits"`
	Errors   int     `json:"errors"`
	BER      float64 `json:"ber"`
	Offset   int     `json:"offset"` // preamble start found by acquisition, if any
}

// Observer is told about every finished run.
type Observer interface {
	ObserveRun(scenario string, took time.Duration, bits, errors int, err error)
}

type scenarioFunc func(ctx context.Context, e *env) (Report, error)

var registry = map[string]scenarioFunc{
	"qam":        runQAM,
	"ofdm":       runOFDM,
	"audio_qpsk": runAudioQPSK,
	"audio_ofdm": runAudioOFDM,
}

// Names lists the registered scenarios.
func Names() []string {
	names := make([]string, 0, len(registry))
	for n := range registry {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Option configures a Runner.
type Option func(*Runner)

// WithSink adds a sink that sees every record next to the data store.
func WithSink(s record.Sink) Option {
	return func(r *Runner) { r.sinks = append(r.sinks, s) }
}

// WithObserver reports finished runs to o.
func WithObserver(o Observer) Option {
	return func(r *Runner) { r.observer = o }
}

// WithChannel overrides the audio channel chosen from the config.
func WithChannel(ch audio.Channel) Option {
	return func(r *Runner) { r.channel = ch }
}

// Runner executes scenarios against one configuration.
type Runner struct {
	cfg      *config.Config
	sinks    []record.Sink
	observer Observer
	channel  audio.Channel
}

// NewRunner creates a runner for cfg.
func NewRunner(cfg *config.Config, opts ...Option) *Runner {
	r := &Runner{cfg: cfg}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run executes the named scenario. The data store is flushed whether or not
// the scenario succeeds; the returned report carries its run ID.
func (r *Runner) Run(ctx context.Context, name string) (Report, error) {
	fn, ok := registry[name]
	if !ok {
		return Report{}, fmt.Errorf("%w: %q (have %v)", ErrUnknownScenario, name, Names())
	}

	store := record.NewStore(record.StoreConfig{
		Path:       r.cfg.DataStore.Path,
		Names:      r.cfg.DataStore.Names,
		SampleRate: r.cfg.Audio.Rate,
		WAV:        r.cfg.DataStore.WAV,
	})
	sink := append(record.Multi{store}, r.sinks...)

	seed := r.cfg.Scenario.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	logger := log.WithFields(log.Fields{"scenario": name, "run": store.RunID()})

	e := &env{
		cfg:     r.cfg,
		sink:    sink,
		rng:     rand.New(rand.NewSource(seed)),
		log:     logger,
		channel: r.audioChannel,
	}

	logger.WithField("seed", seed).Info("run started")
	start := time.Now()
	rep, err := fn(ctx, e)
	took := time.Since(start)

	rep.Scenario = name
	rep.RunID = store.RunID()
	if r.observer != nil {
		r.observer.ObserveRun(name, took, rep.Bits, rep.Errors, err)
	}

	if ferr := store.Flush(); ferr != nil {
		logger.WithError(ferr).Error("flush data store")
		if err == nil {
			err = ferr
		}
	}
	if err != nil {
		logger.WithError(err).Error("run stopped")
		return rep, err
	}

	logger.WithFields(log.Fields{
		"bits":   rep.Bits,
		"errors": rep.Errors,
		"ber":    rep.BER,
		"took":   took,
	}).Info("run finished")
	return rep, nil
}

func (r *Runner) audioChannel() (audio.Channel, error) {
	if r.channel != nil {
		return r.channel, nil
	}
	if r.cfg.Audio.Loopback {
		return audio.Loopback{Prefix: r.cfg.Scenario.PrefixLen, Suffix: r.cfg.Scenario.SuffixLen}, nil
	}
	return audio.NewPortAudioChannel(r.cfg.Audio.Config, r.cfg.SimParams.Fc, r.cfg.SimParams.Fs)
}

// env is what a scenario gets to work with.
type env struct {
	cfg     *config.Config
	sink    record.Sink
	rng     *rand.Rand
	log     *log.Entry
	channel func() (audio.Channel, error)
}

func (e *env) record(tag string, value any) {
	e.sink.Record("scenario."+tag, value)
}

func (e *env) opts() []modem.Option {
	return []modem.Option{modem.WithSink(e.sink), modem.WithLogger(e.log)}
}

func (e *env) bits(n int) []byte {
	out := make([]byte, n)
	for i := range out {
		out[i] = byte(e.rng.Intn(2))
	}
	return out
}

// report compares the payload with its estimate.
func report(payload, estimate []byte) Report {
	errs := 0
	for i := range payload {
		if i >= len(estimate) || payload[i] != estimate[i] {
			errs++
		}
	}
	rep := Report{Bits: len(payload), Errors: errs}
	if len(payload) > 0 {
		rep.BER = float64(errs) / float64(len(payload))
	}
	return rep
}

func toComplex(x []float64) []complex128 {
	out := make([]complex128, len(x))
	for i, v := range x {
		out[i] = complex(v, 0)
	}
	return out
}
