package audio

import (
	"fmt"
	"io"

	"github.com/gordonklaus/portaudio"
)

// DeviceInfo holds audio device information.
type DeviceInfo struct {
	Index             int     `json:"index"`
	Name              string  `json:"name"`
	HostAPI           string  `json:"host_api"`
	MaxInputChannels  int     `json:"max_input_channels"`
	MaxOutputChannels int     `json:"max_output_channels"`
	DefaultSampleRate float64 `json:"default_sample_rate"`
	IsDefault         bool    `json:"is_default"`
}

// Duplex reports whether the device can both play and record.
func (d DeviceInfo) Duplex() bool {
	return d.MaxInputChannels > 0 && d.MaxOutputChannels > 0
}

// ListDevices returns all available audio devices.
func ListDevices() ([]DeviceInfo, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("init portaudio: %w", err)
	}
	defer portaudio.Terminate()

	devices, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("list devices: %w", err)
	}

	var defaultIn, defaultOut string
	if d, err := portaudio.DefaultInputDevice(); err == nil {
		defaultIn = d.Name
	}
	if d, err := portaudio.DefaultOutputDevice(); err == nil {
		defaultOut = d.Name
	}

	result := make([]DeviceInfo, 0, len(devices))
	for i, d := range devices {
		info := DeviceInfo{
			Index:             i,
			Name:              d.Name,
			MaxInputChannels:  d.MaxInputChannels,
			MaxOutputChannels: d.MaxOutputChannels,
			DefaultSampleRate: d.DefaultSampleRate,
			IsDefault:         d.Name == defaultIn || d.Name == defaultOut,
		}
		if d.HostApi != nil {
			info.HostAPI = d.HostApi.Name
		}
		result = append(result, info)
	}
	return result, nil
}

// PrintDevices writes a device table to w, flagging missing default devices.
func PrintDevices(w io.Writer, devices []DeviceInfo) {
	fmt.Fprintln(w, "Audio Devices:")
	if len(devices) == 0 {
		fmt.Fprintln(w, "  (no devices found)")
		return
	}

	hasIn, hasOut := false, false
	for _, d := range devices {
		mark := ""
		if d.Duplex() {
			mark += " [DUPLEX]"
		}
		if d.IsDefault {
			mark += " [DEFAULT]"
		}
		fmt.Fprintf(w, "  %d: %s (in:%d out:%d rate:%.0f)%s\n",
			d.Index, d.Name, d.MaxInputChannels, d.MaxOutputChannels, d.DefaultSampleRate, mark)
		if d.IsDefault {
			hasIn = hasIn || d.MaxInputChannels > 0
			hasOut = hasOut || d.MaxOutputChannels > 0
		}
	}

	if !hasIn {
		fmt.Fprintln(w, "\n  WARNING: No default input device. Audio scenarios cannot capture.")
	}
	if !hasOut {
		fmt.Fprintln(w, "\n  WARNING: No default output device. Audio scenarios cannot play.")
	}
}
