package audio

import (
	"context"
	"fmt"

	"github.com/gordonklaus/portaudio"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

const defaultFramesPerBuffer = 1024

// PortAudioChannel plays a waveform on the output device while recording the
// input device, one mono capture for the whole transmission plus Tail frames.
type PortAudioChannel struct {
	cfg Config
	log *log.Entry
}

// NewPortAudioChannel validates cfg against the carrier fc and bandwidth fs.
// PortAudio itself is only touched by RouteAudio.
func NewPortAudioChannel(cfg Config, fc, fs float64) (*PortAudioChannel, error) {
	if err := cfg.Validate(fc, fs); err != nil {
		return nil, err
	}
	if cfg.FramesPerBuffer <= 0 {
		cfg.FramesPerBuffer = defaultFramesPerBuffer
	}
	if cfg.Tail <= 0 {
		cfg.Tail = cfg.Rate / 2
	}
	l := log.WithField("unit", "audio.PortAudioChannel")
	l.WithFields(log.Fields{
		"rate":     cfg.Rate,
		"channels": cfg.Channels,
		"device":   cfg.Device,
	}).Info("created")
	return &PortAudioChannel{cfg: cfg, log: l}, nil
}

// RouteAudio implements Channel.
func (p *PortAudioChannel) RouteAudio(ctx context.Context, out []int16) ([]int16, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("init portaudio: %w", err)
	}
	defer portaudio.Terminate()

	inDev, outDev, err := p.devices()
	if err != nil {
		return nil, err
	}

	fpb := p.cfg.FramesPerBuffer
	outBuf := make([]int16, fpb*p.cfg.Channels)
	inBuf := make([]int16, fpb)

	outStream, err := portaudio.OpenStream(p.params(nil, outDev), outBuf)
	if err != nil {
		return nil, fmt.Errorf("open output stream: %w", err)
	}
	defer outStream.Close()

	inStream, err := portaudio.OpenStream(p.params(inDev, nil), inBuf)
	if err != nil {
		return nil, fmt.Errorf("open input stream: %w", err)
	}
	defer inStream.Close()

	frames := interleave(out, p.cfg.Channels)
	need := len(out) + p.cfg.Tail
	captured := make([]int16, 0, need+fpb)

	if err := inStream.Start(); err != nil {
		return nil, fmt.Errorf("start input: %w", err)
	}
	defer inStream.Stop()
	if err := outStream.Start(); err != nil {
		return nil, fmt.Errorf("start output: %w", err)
	}
	defer outStream.Stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		for i := 0; i < len(frames); i += len(outBuf) {
			if err := ctx.Err(); err != nil {
				return err
			}
			n := copy(outBuf, frames[i:])
			clear(outBuf[n:])
			if err := outStream.Write(); err != nil {
				return fmt.Errorf("write: %w", err)
			}
		}
		p.log.WithField("samples", len(out)).Debug("playback done")
		return nil
	})
	g.Go(func() error {
		for len(captured) < need {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := inStream.Read(); err != nil && err != portaudio.InputOverflowed {
				return fmt.Errorf("read: %w", err)
			}
			captured = append(captured, inBuf...)
		}
		p.log.WithField("samples", len(captured)).Debug("capture done")
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return captured[:need], nil
}

func (p *PortAudioChannel) devices() (in, out *portaudio.DeviceInfo, err error) {
	if p.cfg.Device == "" {
		if in, err = portaudio.DefaultInputDevice(); err != nil {
			return nil, nil, fmt.Errorf("default input device: %w", err)
		}
		if out, err = portaudio.DefaultOutputDevice(); err != nil {
			return nil, nil, fmt.Errorf("default output device: %w", err)
		}
		return in, out, nil
	}

	all, err := portaudio.Devices()
	if err != nil {
		return nil, nil, fmt.Errorf("list devices: %w", err)
	}
	for _, d := range all {
		if d.Name != p.cfg.Device {
			continue
		}
		if d.MaxInputChannels > 0 && in == nil {
			in = d
		}
		if d.MaxOutputChannels > 0 && out == nil {
			out = d
		}
	}
	if in == nil || out == nil {
		return nil, nil, fmt.Errorf("device %q not found for both input and output", p.cfg.Device)
	}
	return in, out, nil
}

func (p *PortAudioChannel) params(in, out *portaudio.DeviceInfo) portaudio.StreamParameters {
	sp := portaudio.StreamParameters{
		SampleRate:      float64(p.cfg.Rate),
		FramesPerBuffer: p.cfg.FramesPerBuffer,
	}
	if in != nil {
		sp.Input = portaudio.StreamDeviceParameters{
			Device:   in,
			Channels: 1,
			Latency:  in.DefaultHighInputLatency,
		}
	}
	if out != nil {
		sp.Output = portaudio.StreamDeviceParameters{
			Device:   out,
			Channels: p.cfg.Channels,
			Latency:  out.DefaultHighOutputLatency,
		}
	}
	return sp
}

// interleave duplicates a mono waveform into every output channel.
func interleave(mono []int16, channels int) []int16 {
	if channels == 1 {
		return mono
	}
	out := make([]int16, 0, len(mono)*channels)
	for _, s := range mono {
		for c := 0; c < channels; c++ {
			out = append(out, s)
		}
	}
	return out
}
