package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func writeTempConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "tetrasdr.yaml")
	assert.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_ValidConfig(t *testing.T) {
	path := writeTempConfig(t, `
center_freq_hz: 410000000
sample_rate_hz: 2400000
gain_db: 20
auto_gain: false
device_index: 0
squelch_threshold: 8.0
vulnerability_mode: true
trunking: true
trunking_config:
  control_freq_hz: 410000000
  priority_threshold: 0
  emergency_override: true
`)
	settings, err := Load(path)
	assert.NoError(t, err)
	assert.Equal(t, uint64(410_000_000), settings.CenterFreqHz)
	assert.True(t, settings.Trunking)
	assert.Equal(t, uint64(410_000_000), settings.TrunkingConfig.ControlFreqHz)
}

func TestLoad_OutOfBandFrequencyRejected(t *testing.T) {
	path := writeTempConfig(t, `
center_freq_hz: 100000000
sample_rate_hz: 2400000
squelch_threshold: 8.0
`)
	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoad_TrunkingWithoutControlFreqRejected(t *testing.T) {
	path := writeTempConfig(t, `
center_freq_hz: 410000000
sample_rate_hz: 2400000
squelch_threshold: 8.0
trunking: true
`)
	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoad_MissingFileReturnsError(t *testing.T) {
	_, err := Load("/nonexistent/path/tetrasdr.yaml")
	assert.Error(t, err)
}
