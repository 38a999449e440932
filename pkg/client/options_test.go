package client

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arzzra/mrcp_client/pkg/config"
	"github.com/arzzra/mrcp_client/pkg/media_sdp"
)

func durationPtr(d time.Duration) *time.Duration {
	return &d
}

func TestOptionsDefaults(t *testing.T) {
	synth := Options{}.withDefaults(media_sdp.ResourceSpeechSynth)
	assert.Equal(t, "en-US", synth.Language)
	assert.Equal(t, "en-US-Wavenet-E", synth.Voice)
	assert.Equal(t, "Hello world", synth.Text)
	assert.NotNil(t, synth.Stdout)
	assert.NotNil(t, synth.Stderr)

	recog := Options{Language: "en-GB"}.withDefaults(media_sdp.ResourceSpeechRecog)
	assert.Equal(t, "en-GB", recog.Language)
	assert.Empty(t, recog.Voice)

	assert.Equal(t, "ja-JP", Options{}.withDefaults(media_sdp.ResourceSpeechRecog).Language)
}

func TestOptionsValidate(t *testing.T) {
	valid := Options{ServerHost: "10.0.0.5", ServerPort: 8060}
	require.NoError(t, valid.Validate(media_sdp.ResourceSpeechSynth))

	tests := []struct {
		name     string
		mutate   func(o *Options)
		resource media_sdp.Resource
	}{
		{"no host", func(o *Options) { o.ServerHost = "" }, media_sdp.ResourceSpeechSynth},
		{"zero port", func(o *Options) { o.ServerPort = 0 }, media_sdp.ResourceSpeechSynth},
		{"big port", func(o *Options) { o.ServerPort = 70000 }, media_sdp.ResourceSpeechSynth},
		{"negative timeout", func(o *Options) { o.Timeout = durationPtr(-time.Second) }, media_sdp.ResourceSpeechSynth},
		{"output for recog", func(o *Options) { o.OutputFile = "out.wav" }, media_sdp.ResourceSpeechRecog},
		{"resource", func(o *Options) {}, media_sdp.Resource("speakverify")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := valid
			tt.mutate(&o)
			assert.Error(t, o.Validate(tt.resource))
		})
	}
}

func TestOptionsApply(t *testing.T) {
	cfg := config.Default()
	opts := Options{Timeout: durationPtr(5 * time.Second), MetricsAddr: "127.0.0.1:9100", LogLevel: "debug"}
	require.NoError(t, opts.apply(cfg))
	assert.Equal(t, 5*time.Second, cfg.Timeout)
	assert.Equal(t, "127.0.0.1:9100", cfg.MetricsAddr)
	assert.Equal(t, "debug", cfg.Log.Level)

	// явный ноль снимает срок из файла конфигурации
	cfg.Timeout = 10 * time.Second
	require.NoError(t, Options{Timeout: durationPtr(0)}.apply(cfg))
	assert.Zero(t, cfg.Timeout)

	cfg.Timeout = 10 * time.Second
	require.NoError(t, Options{}.apply(cfg))
	assert.Equal(t, 10*time.Second, cfg.Timeout)

	assert.Error(t, Options{LogLevel: "chatty"}.apply(config.Default()))
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewLogger(config.LogConfig{Level: "warn", Format: "json"}, &buf)
	require.NoError(t, err)

	logger.Info("hidden")
	logger.Warn("shown")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), `"msg":"shown"`)

	buf.Reset()
	logger, err = NewLogger(config.LogConfig{Level: "debug", Format: "text"}, &buf)
	require.NoError(t, err)
	logger.Debug("text line")
	assert.Contains(t, buf.String(), "msg=\"text line\"")
}
