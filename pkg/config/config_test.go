package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arzzra/mrcp_client/pkg/rtp"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "0.0.0.0", cfg.LocalIP)
	assert.Empty(t, cfg.AdvertiseIP)
	assert.Equal(t, rtp.PortRange{Min: 5090, Max: 5099, Step: 1}, cfg.SIP.Ports)
	assert.Equal(t, rtp.PortRange{Min: 10000, Max: 10100, Step: 2}, cfg.RTP.Ports)
	assert.Zero(t, cfg.Timeout, "без срока по умолчанию")
	assert.Equal(t, 500*time.Millisecond, cfg.DrainDelay)
	assert.Equal(t, 200*time.Millisecond, cfg.GraceDelay)
	assert.Equal(t, 20*time.Millisecond, cfg.Ptime)
	assert.Equal(t, byte(0xFF), cfg.Silence())
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "text", cfg.Log.Format)
	assert.Zero(t, cfg.Recognizer.NoInputTimeout)
	assert.Nil(t, cfg.Recognizer.ConfidenceThreshold)
}

func TestParse(t *testing.T) {
	data := []byte(`
local_ip: 127.0.0.1
advertise_ip: 192.168.1.10
sip:
  ports: {min: 6000, max: 6010}
rtp:
  ports: {min: 20000, max: 20010, step: 2}
timeout: 10s
drain_delay: 1s
silence_byte: 0x7F
ptime: 30ms
log:
  level: debug
  format: json
metrics_addr: 127.0.0.1:9100
recognizer:
  no_input_timeout: 5s
  confidence_threshold: 0.6
`)
	cfg, err := Parse(data)
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1", cfg.LocalIP)
	assert.Equal(t, "192.168.1.10", cfg.AdvertiseIP)
	assert.Equal(t, rtp.PortRange{Min: 6000, Max: 6010, Step: 1}, cfg.SIP.Ports)
	assert.Equal(t, []int{20000, 20002, 20004, 20006, 20008, 20010}, cfg.RTP.Ports.Candidates())
	assert.Equal(t, 10*time.Second, cfg.Timeout)
	assert.Equal(t, time.Second, cfg.DrainDelay)
	assert.Equal(t, 200*time.Millisecond, cfg.GraceDelay)
	assert.Equal(t, byte(0x7F), cfg.Silence())
	assert.Equal(t, 30*time.Millisecond, cfg.Ptime)
	assert.Equal(t, "127.0.0.1:9100", cfg.MetricsAddr)
	assert.Equal(t, 5*time.Second, cfg.Recognizer.NoInputTimeout)
	require.NotNil(t, cfg.Recognizer.ConfidenceThreshold)
	assert.Equal(t, 0.6, *cfg.Recognizer.ConfidenceThreshold)

	level, err := cfg.Log.SlogLevel()
	require.NoError(t, err)
	assert.Equal(t, slog.LevelDebug, level)
}

func TestParseSilenceZero(t *testing.T) {
	cfg, err := Parse([]byte("silence_byte: 0\n"))
	require.NoError(t, err)
	assert.Equal(t, byte(0), cfg.Silence())
}

func TestParseInvalid(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"yaml", "local_ip: [1, 2"},
		{"local ip", "local_ip: nowhere"},
		{"advertise unspecified", "advertise_ip: 0.0.0.0"},
		{"sip range", "sip:\n  ports: {min: 6000, max: 5000}"},
		{"rtp range", "rtp:\n  ports: {min: 0, max: 70000}"},
		{"ptime", "ptime: 25ms"},
		{"negative timeout", "timeout: -1s"},
		{"log level", "log:\n  level: loud"},
		{"log format", "log:\n  format: xml"},
		{"no input timeout", "recognizer:\n  no_input_timeout: -1s"},
		{"confidence", "recognizer:\n  confidence_threshold: 1.5"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.data))
			assert.Error(t, err)
		})
	}
}

func TestLoad(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)

	path := filepath.Join(t.TempDir(), "client.yaml")
	require.NoError(t, os.WriteFile(path, []byte("user_agent: test-agent\n"), 0o600))

	cfg, err = Load(path)
	require.NoError(t, err)
	assert.Equal(t, "test-agent", cfg.UserAgent)
	assert.Equal(t, path, cfg.Path)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
