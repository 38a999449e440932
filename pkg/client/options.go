package client

import (
	"io"
	"os"
	"time"

	"github.com/pkg/errors"

	"github.com/arzzra/mrcp_client/pkg/config"
	"github.com/arzzra/mrcp_client/pkg/media_sdp"
)

// Значения команд по умолчанию
const (
	DefaultSynthLanguage = "en-US"
	DefaultSynthVoice    = "en-US-Wavenet-E"
	DefaultSynthText     = "Hello world"
	DefaultRecogLanguage = "ja-JP"
)

// Options параметры запуска клиента из командной строки
type Options struct {
	ServerHost string
	ServerPort int
	Language   string

	// синтез
	Voice string
	Text  string

	// распознавание
	AudioFile string
	Grammar   string

	Timeout     *time.Duration // nil - из конфигурации, 0 - без срока
	Headers     string        // дополнительные заголовки MRCP, "Name: value" через \n
	OutputFile  string        // запись синтезированного аудио в WAV
	NoSpeaker   bool          // не воспроизводить в stdout
	ConfigPath  string
	MetricsAddr string
	LogLevel    string

	Stdout io.Writer
	Stderr io.Writer
}

// withDefaults подставляет значения команд по умолчанию для ресурса
func (o Options) withDefaults(resource media_sdp.Resource) Options {
	if o.Stdout == nil {
		o.Stdout = os.Stdout
	}
	if o.Stderr == nil {
		o.Stderr = os.Stderr
	}
	switch resource {
	case media_sdp.ResourceSpeechSynth:
		if o.Language == "" {
			o.Language = DefaultSynthLanguage
		}
		if o.Voice == "" {
			o.Voice = DefaultSynthVoice
		}
		if o.Text == "" {
			o.Text = DefaultSynthText
		}
	case media_sdp.ResourceSpeechRecog:
		if o.Language == "" {
			o.Language = DefaultRecogLanguage
		}
	}
	return o
}

// Validate проверяет адрес сервера и ресурс
func (o Options) Validate(resource media_sdp.Resource) error {
	if !resource.Valid() {
		return errors.Errorf("unsupported resource %q", resource)
	}
	if o.ServerHost == "" {
		return errors.New("server host is required")
	}
	if o.ServerPort <= 0 || o.ServerPort > 65535 {
		return errors.Errorf("invalid server port %d", o.ServerPort)
	}
	if o.Timeout != nil && *o.Timeout < 0 {
		return errors.New("timeout must not be negative")
	}
	if resource == media_sdp.ResourceSpeechRecog && o.OutputFile != "" {
		return errors.New("output file is only supported for synthesis")
	}
	return nil
}

// apply переносит флаги командной строки поверх файла конфигурации
func (o Options) apply(cfg *config.Config) error {
	if o.Timeout != nil {
		cfg.Timeout = *o.Timeout
	}
	if o.MetricsAddr != "" {
		cfg.MetricsAddr = o.MetricsAddr
	}
	if o.LogLevel != "" {
		cfg.Log.Level = o.LogLevel
	}
	return cfg.Validate()
}
