// Package config loads run configuration from YAML files.
//
// A file may pull other files in with an !include tag; command line overrides
// are applied on the generic map before it is decoded into Config.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/mitchellh/mapstructure"
	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/jeongseonghan/waveform/internal/audio"
	"github.com/jeongseonghan/waveform/internal/modem"
)

// ErrInvalid is wrapped by every Validate failure.
var ErrInvalid = errors.New("invalid config")

// Config is the complete run configuration.
type Config struct {
	Logging       Logging       `yaml:"logging"`
	SimParams     SimParams     `yaml:"sim_params"`
	OFDM          OFDM          `yaml:"ofdm"`
	Constellation Constellation `yaml:"constellation"`
	Scenario      Scenario      `yaml:"scenario"`
	Audio         Audio         `yaml:"audio"`
	DataStore     DataStore     `yaml:"datastore"`
	Monitor       Monitor       `yaml:"monitor"`
}

// Logging configures the process logger.
type Logging struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // text or json
	File   string `yaml:"file"`   // empty logs to stderr
}

// SimParams are the physical parameters shared by every stage of a run.
type SimParams struct {
	Fc float64 `yaml:"fc"` // carrier frequency, Hz
	Fs float64 `yaml:"fs"` // baseband sampling frequency, Hz
}

// OFDM holds the frame layout.
type OFDM struct {
	Nsc  int    `yaml:"nsc"`
	GI   int    `yaml:"gi"`
	Type string `yaml:"type"` // ZP, CP or CS
}

// FrameParams converts the section into modem frame parameters.
func (o OFDM) FrameParams() (modem.FrameParams, error) {
	gt, err := modem.ParseGuardType(o.Type)
	if err != nil {
		return modem.FrameParams{}, err
	}
	return modem.FrameParams{SubcarrierCount: o.Nsc, GuardLength: o.GI, GuardType: gt}, nil
}

// Constellation selects the QAM order.
type Constellation struct {
	Order int `yaml:"order"`
}

// Scenario holds the per-run link parameters.
type Scenario struct {
	Nsymb     int     `yaml:"nsymb"`      // payload symbols (OFDM blocks for OFDM links)
	Npreamb   int     `yaml:"npreamb"`    // preamble length, same unit as nsymb
	Range     float64 `yaml:"range"`      // propagation distance, m
	PrefixLen int     `yaml:"prefix_len"` // silence before the waveform
	SuffixLen int     `yaml:"suffix_len"` // silence after the waveform
	Seed      int64   `yaml:"seed"`       // 0 picks a random seed
	Energy    float64 `yaml:"energy"`     // known preamble energy, <= 0 means computed
}

// Audio is the audio device section. Loopback replaces the sound card with a
// software channel.
type Audio struct {
	audio.Config `yaml:",inline"`
	Loopback     bool `yaml:"loopback"`
}

// DataStore selects recorded values and where they are archived.
type DataStore struct {
	Path  string   `yaml:"path"`
	Names []string `yaml:"names"`
	WAV   bool     `yaml:"wav"`
}

// Monitor configures the HTTP monitor.
type Monitor struct {
	Addr string `yaml:"addr"`
}

// Default returns the configuration used for anything a file leaves out.
func Default() *Config {
	return &Config{
		Logging:       Logging{Level: "info", Format: "text"},
		SimParams:     SimParams{Fc: 4e3, Fs: 1e3},
		OFDM:          OFDM{Nsc: 12, GI: 4, Type: "CP"},
		Constellation: Constellation{Order: 4},
		Scenario: Scenario{
			Nsymb:   100,
			Npreamb: 25,
			Range:   100,
			Seed:    1,
		},
		Audio: Audio{
			Config: audio.Config{
				Rate:            48000,
				Channels:        1,
				FramesPerBuffer: 1024,
			},
			Loopback: true,
		},
		DataStore: DataStore{Path: "out/dumps", WAV: true},
		Monitor:   Monitor{Addr: ":8080"},
	}
}

// Load reads path (resolving includes), applies overrides in order and
// decodes the result on top of Default. The result is validated.
func Load(path string, overrides ...Override) (*Config, error) {
	raw := map[string]any{}
	if path != "" {
		var err error
		if raw, err = readMap(path); err != nil {
			return nil, err
		}
	}
	return FromMap(raw, overrides...)
}

// FromMap is Load for an already parsed document.
func FromMap(raw map[string]any, overrides ...Override) (*Config, error) {
	for _, o := range overrides {
		if err := o.Apply(raw); err != nil {
			return nil, err
		}
	}

	cfg := Default()
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           cfg,
		TagName:          "yaml",
		WeaklyTypedInput: true,
		Squash:           true,
		ErrorUnused:      true,
	})
	if err != nil {
		return nil, err
	}
	if err := dec.Decode(raw); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	log.WithField("config", fmt.Sprintf("%+v", *cfg)).Debug("config loaded")
	return cfg, nil
}

// Validate checks value ranges across sections.
func (c *Config) Validate() error {
	if _, err := log.ParseLevel(c.Logging.Level); err != nil {
		return fmt.Errorf("%w: logging.level: %v", ErrInvalid, err)
	}
	if c.Logging.Format != "text" && c.Logging.Format != "json" {
		return fmt.Errorf("%w: logging.format %q", ErrInvalid, c.Logging.Format)
	}
	if c.SimParams.Fc <= 0 || c.SimParams.Fs <= 0 {
		return fmt.Errorf("%w: sim_params fc=%g fs=%g", ErrInvalid, c.SimParams.Fc, c.SimParams.Fs)
	}

	fp, err := c.OFDM.FrameParams()
	if err != nil {
		return fmt.Errorf("%w: ofdm: %v", ErrInvalid, err)
	}
	if err := fp.Validate(); err != nil {
		return fmt.Errorf("%w: ofdm: %v", ErrInvalid, err)
	}
	if _, err := modem.NewConstellation(c.Constellation.Order); err != nil {
		return fmt.Errorf("%w: constellation: %v", ErrInvalid, err)
	}

	s := c.Scenario
	if s.Nsymb <= 0 || s.Npreamb < 0 {
		return fmt.Errorf("%w: scenario nsymb=%d npreamb=%d", ErrInvalid, s.Nsymb, s.Npreamb)
	}
	if s.Range <= 0 {
		return fmt.Errorf("%w: scenario.range %g", ErrInvalid, s.Range)
	}
	if s.PrefixLen < 0 || s.SuffixLen < 0 {
		return fmt.Errorf("%w: scenario prefix_len=%d suffix_len=%d", ErrInvalid, s.PrefixLen, s.SuffixLen)
	}

	if c.Audio.Rate <= 0 || c.Audio.FramesPerBuffer < 0 {
		return fmt.Errorf("%w: audio rate=%d frames_per_buffer=%d", ErrInvalid, c.Audio.Rate, c.Audio.FramesPerBuffer)
	}
	if c.DataStore.Path == "" {
		return fmt.Errorf("%w: datastore.path is empty", ErrInvalid)
	}
	return nil
}

// readMap parses a YAML file into a generic map, resolving !include tags
// relative to the including file.
func readMap(path string) (map[string]any, error) {
	root, err := readNode(path, nil)
	if err != nil {
		return nil, err
	}
	out := map[string]any{}
	if err := root.Decode(&out); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return out, nil
}

func readNode(path string, stack []string) (*yaml.Node, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	for _, p := range stack {
		if p == abs {
			return nil, fmt.Errorf("include cycle through %s", path)
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	if len(doc.Content) == 0 {
		return &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}, nil
	}

	root := doc.Content[0]
	if err := resolveIncludes(root, filepath.Dir(abs), append(stack, abs)); err != nil {
		return nil, err
	}
	return root, nil
}

// resolveIncludes replaces every node tagged !include with the merged mapping
// of the listed files. Later files override earlier keys.
func resolveIncludes(n *yaml.Node, dir string, stack []string) error {
	if n.Tag == "!include" {
		var files []string
		switch n.Kind {
		case yaml.ScalarNode:
			files = []string{n.Value}
		case yaml.SequenceNode:
			if err := n.Decode(&files); err != nil {
				return fmt.Errorf("line %d: !include expects file names: %w", n.Line, err)
			}
		default:
			return fmt.Errorf("line %d: !include expects a file name or a list", n.Line)
		}

		merged := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
		for _, f := range files {
			if !filepath.IsAbs(f) {
				f = filepath.Join(dir, f)
			}
			inc, err := readNode(f, stack)
			if err != nil {
				return err
			}
			if inc.Kind != yaml.MappingNode {
				return fmt.Errorf("included file %s is not a mapping", f)
			}
			mergeMapping(merged, inc)
		}
		*n = *merged
		return nil
	}

	for _, c := range n.Content {
		if err := resolveIncludes(c, dir, stack); err != nil {
			return err
		}
	}
	return nil
}

func mergeMapping(dst, src *yaml.Node) {
	for i := 0; i+1 < len(src.Content); i += 2 {
		key, val := src.Content[i], src.Content[i+1]
		replaced := false
		for j := 0; j+1 < len(dst.Content); j += 2 {
			if dst.Content[j].Value == key.Value {
				dst.Content[j+1] = val
				replaced = true
				break
			}
		}
		if !replaced {
			dst.Content = append(dst.Content, key, val)
		}
	}
}
