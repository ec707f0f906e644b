package record

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/google/uuid"
	"github.com/klauspost/compress/zstd"
	log "github.com/sirupsen/logrus"
)

// Wildcard in StoreConfig.Names keeps every tag.
const Wildcard = "*"

// StoreConfig selects what a Store keeps and where Flush writes it.
type StoreConfig struct {
	Path       string
	Names      []string
	SampleRate int  // used for the WAV dumps of []int16 values
	WAV        bool // dump []int16 values as WAV files next to the JSON archive
}

// Store collects the values of selected tags in memory for the duration of a
// run and archives them on Flush.
type Store struct {
	cfg   StoreConfig
	runID uuid.UUID

	mu   sync.Mutex
	data map[string][]any
}

// NewStore creates a Store for a fresh run.
func NewStore(cfg StoreConfig) *Store {
	return &Store{
		cfg:   cfg,
		runID: uuid.New(),
		data:  make(map[string][]any),
	}
}

// RunID identifies the run this store archives.
func (s *Store) RunID() string { return s.runID.String() }

// Dir is the directory Flush writes into.
func (s *Store) Dir() string { return filepath.Join(s.cfg.Path, s.RunID()) }

// Record implements Sink. Tags not selected by the config are dropped.
func (s *Store) Record(tag string, value any) {
	if !s.selected(tag) {
		return
	}
	s.mu.Lock()
	s.data[tag] = append(s.data[tag], value)
	s.mu.Unlock()
}

// Values returns what has been recorded under tag.
func (s *Store) Values(tag string) []any {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]any, len(s.data[tag]))
	copy(out, s.data[tag])
	return out
}

// Tags returns the recorded tags in sorted order.
func (s *Store) Tags() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	tags := make([]string, 0, len(s.data))
	for t := range s.data {
		tags = append(tags, t)
	}
	sort.Strings(tags)
	return tags
}

func (s *Store) selected(tag string) bool {
	for _, name := range s.cfg.Names {
		if name == Wildcard || tag == name || strings.HasPrefix(tag, name+".") {
			return true
		}
	}
	return false
}

// Flush writes records.json.zst (and optional WAV files) into Dir.
// Flushing an empty store is a no-op.
func (s *Store) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.data) == 0 {
		return nil
	}
	dir := s.Dir()
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create dump dir: %w", err)
	}

	archive := make(map[string][]any, len(s.data))
	for tag, values := range s.data {
		enc := make([]any, len(values))
		for i, v := range values {
			enc[i] = jsonValue(v)
			if pcm, ok := v.([]int16); ok && s.cfg.WAV {
				name := fmt.Sprintf("%s.%d.wav", tag, i)
				if err := writeWAV(filepath.Join(dir, name), pcm, s.cfg.SampleRate); err != nil {
					return err
				}
			}
		}
		archive[tag] = enc
	}

	if err := writeArchive(filepath.Join(dir, "records.json.zst"), archive); err != nil {
		return err
	}
	log.WithFields(log.Fields{"dir": dir, "tags": len(archive)}).Info("data store flushed")
	return nil
}

// writeArchive encodes into a temporary file and renames it over path, so a
// failed encode never leaves a truncated archive behind.
func writeArchive(path string, archive map[string][]any) (err error) {
	f, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create archive: %w", err)
	}
	defer func() {
		if err != nil {
			f.Close()
			os.Remove(f.Name())
		}
	}()

	zw, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return fmt.Errorf("zstd writer: %w", err)
	}
	if err := json.NewEncoder(zw).Encode(archive); err != nil {
		zw.Close()
		return fmt.Errorf("encode archive: %w", err)
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("close archive: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close archive: %w", err)
	}
	if err := os.Rename(f.Name(), path); err != nil {
		return fmt.Errorf("rename archive: %w", err)
	}
	return nil
}

// ReadArchive decodes a records.json.zst file written by Flush.
func ReadArchive(path string) (map[string][]any, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}
	defer f.Close()

	zr, err := zstd.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("zstd reader: %w", err)
	}
	defer zr.Close()

	var archive map[string][]any
	if err := json.NewDecoder(zr).Decode(&archive); err != nil {
		return nil, fmt.Errorf("decode archive: %w", err)
	}
	return archive, nil
}

func writeWAV(path string, pcm []int16, sampleRate int) error {
	if sampleRate <= 0 {
		sampleRate = 48000
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create wav: %w", err)
	}
	defer f.Close()

	data := make([]int, len(pcm))
	for i, v := range pcm {
		data[i] = int(v)
	}
	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: 1, SampleRate: sampleRate},
		Data:           data,
		SourceBitDepth: 16,
	}

	enc := wav.NewEncoder(f, sampleRate, 16, 1, 1)
	if err := enc.Write(buf); err != nil {
		return fmt.Errorf("write wav: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("close wav: %w", err)
	}
	return nil
}

// jsonValue converts complex values into [re, im] pairs, which encoding/json
// cannot represent natively. Non-finite floats become the strings "NaN",
// "+Inf" and "-Inf".
func jsonValue(v any) any {
	switch x := v.(type) {
	case float64:
		return jsonFloat(x)
	case []float64:
		out := make([]any, len(x))
		for i, f := range x {
			out[i] = jsonFloat(f)
		}
		return out
	case complex128:
		return [2]any{jsonFloat(real(x)), jsonFloat(imag(x))}
	case []complex128:
		out := make([][2]any, len(x))
		for i, c := range x {
			out[i] = [2]any{jsonFloat(real(c)), jsonFloat(imag(c))}
		}
		return out
	case [][]complex128:
		out := make([]any, len(x))
		for i, row := range x {
			out[i] = jsonValue(row)
		}
		return out
	default:
		return v
	}
}

func jsonFloat(f float64) any {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "+Inf"
	case math.IsInf(f, -1):
		return "-Inf"
	}
	return f
}
