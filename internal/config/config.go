// Package config implements the YAML-backed configuration loader of
// spec.md §3's immutable configuration record, replacing the teacher's
// line-oriented text format with a structured document parsed by
// gopkg.in/yaml.v3, and the operator-panel live-mutable parameter set
// of spec.md §6.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/letstrythisshit/tetrasdr/internal/demod"
)

// AppSettings is the immutable-after-start-up configuration of
// spec.md §3.
type AppSettings struct {
	CenterFreqHz      uint64           `yaml:"center_freq_hz"`
	SampleRateHz      int              `yaml:"sample_rate_hz"`
	GainDb            float64          `yaml:"gain_db"`
	AutoGain          bool             `yaml:"auto_gain"`
	DeviceIndex       int              `yaml:"device_index"`
	DeviceSerial      string           `yaml:"device_serial,omitempty"`
	OutputFile        string           `yaml:"output_file,omitempty"`
	SquelchThreshold  float64          `yaml:"squelch_threshold"`
	VulnerabilityMode bool             `yaml:"vulnerability_mode"`
	Trunking          bool             `yaml:"trunking"`
	TrunkingConfig    TrunkingSettings `yaml:"trunking_config,omitempty"`

	// TunerBackend selects the trunk.Tuner implementation: "simulated"
	// (default) or "hamlib". HamlibModel/HamlibDevicePath are only
	// consulted when TunerBackend is "hamlib".
	TunerBackend     string `yaml:"tuner_backend,omitempty"`
	HamlibModel      int    `yaml:"hamlib_model,omitempty"`
	HamlibDevicePath string `yaml:"hamlib_device_path,omitempty"`

	// IQSource selects the pipeline.ByteSource: "simulated" (default),
	// "pty", or "serial". SerialDevicePath/SerialBaud only apply to
	// "serial".
	IQSource         string `yaml:"iq_source,omitempty"`
	SerialDevicePath string `yaml:"serial_device_path,omitempty"`
	SerialBaud       int    `yaml:"serial_baud,omitempty"`

	// RealTimeAudio plays decoded voice through the system audio device
	// instead of (or alongside) the WAV output file.
	RealTimeAudio bool `yaml:"real_time_audio"`

	// SquelchGPIOChip/SquelchGPIOLine, when chip is non-empty, drive a
	// GPIO line high while a burst is currently detected.
	SquelchGPIOChip string `yaml:"squelch_gpio_chip,omitempty"`
	SquelchGPIOLine int    `yaml:"squelch_gpio_line,omitempty"`

	// StatsAdvertise publishes this instance over mDNS on StatsPort so
	// a monitoring tool can discover it without a configured address.
	StatsAdvertise bool `yaml:"stats_advertise"`
	StatsPort      int  `yaml:"stats_port,omitempty"`
}

// TrunkingSettings is the trunking sub-configuration referenced by
// spec.md §3 ("trunking sub-configuration").
type TrunkingSettings struct {
	ControlFreqHz     uint64   `yaml:"control_freq_hz"`
	TalkGroupIDs      []uint32 `yaml:"talk_group_ids,omitempty"`
	PriorityThreshold int      `yaml:"priority_threshold"`
	EmergencyOverride bool     `yaml:"emergency_override"`
	RecordAll         bool     `yaml:"record_all"`
}

const (
	minCenterFreqHz = 380_000_000
	maxCenterFreqHz = 470_000_000
)

// Load reads and validates an AppSettings document from path.
func Load(path string) (*AppSettings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	var s AppSettings
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}

	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// Validate enforces spec.md §6's start-up checks: center frequency in
// band, and (when trunking is enabled) a non-zero control frequency.
func (s *AppSettings) Validate() error {
	if s.CenterFreqHz < minCenterFreqHz || s.CenterFreqHz > maxCenterFreqHz {
		return fmt.Errorf("config: center frequency %d Hz outside [%d, %d]", s.CenterFreqHz, minCenterFreqHz, maxCenterFreqHz)
	}
	if s.Trunking && s.TrunkingConfig.ControlFreqHz == 0 {
		return fmt.Errorf("config: trunking enabled without a control-channel frequency")
	}
	if s.TunerBackend == "hamlib" && s.HamlibDevicePath == "" && s.DeviceSerial == "" {
		return fmt.Errorf("config: hamlib tuner backend needs hamlib_device_path or device_serial")
	}
	if s.IQSource == "serial" && s.SerialDevicePath == "" {
		return fmt.Errorf("config: serial iq_source needs serial_device_path")
	}
	return nil
}

// ApplyDetectionParams pushes this AppSettings' squelch threshold into a
// live demod.Params block as its minimum-signal-power field, the one
// overlap between start-up configuration and the live-mutable parameter
// record.
func (s *AppSettings) ApplyDetectionParams(p *demod.Params) error {
	return p.SetMinSignalPower(s.SquelchThreshold)
}
