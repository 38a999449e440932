package client

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arzzra/mrcp_client/pkg/config"
	"github.com/arzzra/mrcp_client/pkg/media_sdp"
	"github.com/arzzra/mrcp_client/pkg/mrcp"
)

func TestClassifyGrammar(t *testing.T) {
	file := filepath.Join(t.TempDir(), "digits.grxml")
	require.NoError(t, os.WriteFile(file, []byte("<grammar/>"), 0o600))

	tests := []struct {
		arg  string
		want GrammarKind
	}{
		{"", GrammarNone},
		{"   ", GrammarNone},
		{file, GrammarFile},
		{"builtin:grammar/digits", GrammarURI},
		{"session:grammar-1@mrcp_client", GrammarURI},
		{"HTTPS://example.com/g.grxml", GrammarURI},
		{`<grammar root="r"/>`, GrammarInline},
		{filepath.Join(t.TempDir(), "missing.grxml"), GrammarInline},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ClassifyGrammar(tt.arg), tt.arg)
	}
}

func TestBuildCommandsSynth(t *testing.T) {
	opts := Options{}.withDefaults(media_sdp.ResourceSpeechSynth)
	extra := mrcp.Headers{{Name: "Prosody-Rate", Value: "fast"}}

	grammar, cmd, err := buildCommands(media_sdp.ResourceSpeechSynth, opts, config.RecognizerConfig{}, extra)
	require.NoError(t, err)
	assert.Nil(t, grammar)

	speak, ok := cmd.(mrcp.SpeakParams)
	require.True(t, ok)
	assert.Equal(t, DefaultSynthLanguage, speak.Language)
	assert.Equal(t, DefaultSynthVoice, speak.Voice)
	assert.Equal(t, DefaultSynthText, speak.Text)
	assert.Equal(t, extra, speak.Extra)
}

func TestBuildCommandsRecognizeFile(t *testing.T) {
	file := filepath.Join(t.TempDir(), "yesno.gram")
	require.NoError(t, os.WriteFile(file, []byte("#ABNF 1.0;"), 0o600))
	opts := Options{Grammar: file}.withDefaults(media_sdp.ResourceSpeechRecog)

	grammar, cmd, err := buildCommands(media_sdp.ResourceSpeechRecog, opts, config.RecognizerConfig{}, nil)
	require.NoError(t, err)

	define, ok := grammar.(mrcp.DefineGrammarParams)
	require.True(t, ok)
	assert.Regexp(t, `^grammar-\d+@mrcp_client$`, define.ContentID)
	assert.Equal(t, "application/srgs", define.ContentType)
	assert.Equal(t, "#ABNF 1.0;", string(define.Grammar))
	assert.Equal(t, DefaultRecogLanguage, define.Language)

	recognize, ok := cmd.(mrcp.RecognizeParams)
	require.True(t, ok)
	assert.Equal(t, mrcp.ContentTypeURIList, recognize.ContentType)
	assert.Equal(t, mrcp.SessionGrammarURI(define.ContentID), string(recognize.Grammar))
}

func TestBuildCommandsRecognizeInline(t *testing.T) {
	tests := []struct {
		name        string
		grammar     string
		contentType string
	}{
		{"empty", "", ""},
		{"uri", "builtin:speech/transcribe", mrcp.ContentTypeURIList},
		{"inline", "<grammar/>", mrcp.ContentTypeSRGS},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := Options{Grammar: tt.grammar}.withDefaults(media_sdp.ResourceSpeechRecog)
			grammar, cmd, err := buildCommands(media_sdp.ResourceSpeechRecog, opts, config.RecognizerConfig{}, nil)
			require.NoError(t, err)
			assert.Nil(t, grammar)

			recognize := cmd.(mrcp.RecognizeParams)
			assert.Equal(t, tt.contentType, recognize.ContentType)
			assert.Equal(t, tt.grammar, string(recognize.Grammar))
		})
	}
}

func TestBuildCommandsRecognizerHeaders(t *testing.T) {
	threshold := 0.25
	recog := config.RecognizerConfig{NoInputTimeout: 7 * time.Second, ConfidenceThreshold: &threshold}
	opts := Options{}.withDefaults(media_sdp.ResourceSpeechRecog)

	_, cmd, err := buildCommands(media_sdp.ResourceSpeechRecog, opts, recog, nil)
	require.NoError(t, err)

	h, _ := cmd.Render("ch@speechrecog")
	assert.Equal(t, "7000", h.Get(mrcp.HeaderNoInputTimeout))
	assert.Equal(t, "0.25", h.Get(mrcp.HeaderConfidence))

	// без настроек заголовки не отправляются
	_, cmd, err = buildCommands(media_sdp.ResourceSpeechRecog, opts, config.RecognizerConfig{}, nil)
	require.NoError(t, err)
	h, _ = cmd.Render("ch@speechrecog")
	assert.False(t, h.Has(mrcp.HeaderNoInputTimeout))
	assert.False(t, h.Has(mrcp.HeaderConfidence))
}
