package config

import (
	"log/slog"
	"net"
	"os"
	"strings"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/arzzra/mrcp_client/pkg/rtp"
)

// Значения по умолчанию
const (
	DefaultLocalIP    = "0.0.0.0"
	DefaultUserAgent  = "mrcp_client"
	DefaultDrainDelay = 500 * time.Millisecond
	DefaultGraceDelay = 200 * time.Millisecond
	DefaultPtime      = 20 * time.Millisecond
	DefaultSilence    = 0xFF
)

// Config конфигурация клиента. Все поля файла необязательны.
type Config struct {
	LocalIP     string           `yaml:"local_ip"`     // адрес привязки сокетов
	AdvertiseIP string           `yaml:"advertise_ip"` // адрес в SDP и Contact, пусто - определить автоматически
	SIP         PortsConfig      `yaml:"sip"`
	RTP         PortsConfig      `yaml:"rtp"`
	UserAgent   string           `yaml:"user_agent"`
	Timeout     time.Duration    `yaml:"timeout"`     // общий срок сессии, 0 - без срока
	DrainDelay  time.Duration    `yaml:"drain_delay"` // задержка BYE после SPEAK-COMPLETE
	GraceDelay  time.Duration    `yaml:"grace_delay"` // ожидание после входящего BYE
	SilenceByte *uint8           `yaml:"silence_byte"`
	Ptime       time.Duration    `yaml:"ptime"`
	Log         LogConfig        `yaml:"log"`
	Recognizer  RecognizerConfig `yaml:"recognizer"`
	MetricsAddr string           `yaml:"metrics_addr"` // пусто - без HTTP сервера метрик

	Path string `yaml:"-"`
}

// PortsConfig диапазон портов транспорта
type PortsConfig struct {
	Ports rtp.PortRange `yaml:"ports"`
}

// RecognizerConfig заголовки RECOGNIZE, не заданные поля не отправляются
type RecognizerConfig struct {
	NoInputTimeout      time.Duration `yaml:"no_input_timeout"`
	ConfidenceThreshold *float64      `yaml:"confidence_threshold"` // 0.0 - 1.0
}

// LogConfig параметры журнала
type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text или json
}

// Default возвращает конфигурацию по умолчанию
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// Load читает YAML файл. Пустой путь возвращает конфигурацию по умолчанию.
func Load(path string) (*Config, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read config")
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, errors.Wrapf(err, "config %s", path)
	}
	cfg.Path = path
	return cfg, nil
}

// Parse разбирает YAML, подставляет значения по умолчанию и проверяет результат
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, errors.Wrap(err, "parse yaml")
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.LocalIP == "" {
		c.LocalIP = DefaultLocalIP
	}
	if c.SIP.Ports == (rtp.PortRange{}) {
		c.SIP.Ports = rtp.PortRange{Min: 5090, Max: 5099, Step: 1}
	}
	if c.RTP.Ports == (rtp.PortRange{}) {
		c.RTP.Ports = rtp.PortRange{Min: 10000, Max: 10100, Step: 2}
	}
	if c.SIP.Ports.Step == 0 {
		c.SIP.Ports.Step = 1
	}
	if c.RTP.Ports.Step == 0 {
		c.RTP.Ports.Step = 2
	}
	if c.UserAgent == "" {
		c.UserAgent = DefaultUserAgent
	}
	if c.DrainDelay == 0 {
		c.DrainDelay = DefaultDrainDelay
	}
	if c.GraceDelay == 0 {
		c.GraceDelay = DefaultGraceDelay
	}
	if c.SilenceByte == nil {
		v := uint8(DefaultSilence)
		c.SilenceByte = &v
	}
	if c.Ptime == 0 {
		c.Ptime = DefaultPtime
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
}

// Validate проверяет диапазоны значений
func (c *Config) Validate() error {
	if net.ParseIP(c.LocalIP) == nil {
		return errors.Errorf("local_ip: invalid address %q", c.LocalIP)
	}
	if c.AdvertiseIP != "" {
		ip := net.ParseIP(c.AdvertiseIP)
		if ip == nil || ip.IsUnspecified() {
			return errors.Errorf("advertise_ip: invalid address %q", c.AdvertiseIP)
		}
	}
	if err := validateRange("sip.ports", c.SIP.Ports); err != nil {
		return err
	}
	if err := validateRange("rtp.ports", c.RTP.Ports); err != nil {
		return err
	}
	if c.Timeout < 0 || c.DrainDelay < 0 || c.GraceDelay < 0 {
		return errors.New("timeout, drain_delay and grace_delay must not be negative")
	}
	if c.Recognizer.NoInputTimeout < 0 {
		return errors.New("recognizer.no_input_timeout must not be negative")
	}
	if v := c.Recognizer.ConfidenceThreshold; v != nil && (*v < 0 || *v > 1) {
		return errors.Errorf("recognizer.confidence_threshold: %v is out of [0, 1]", *v)
	}
	if c.Ptime < 10*time.Millisecond || c.Ptime > 60*time.Millisecond || c.Ptime%(10*time.Millisecond) != 0 {
		return errors.Errorf("ptime: %s is not a multiple of 10ms in [10ms, 60ms]", c.Ptime)
	}
	if _, err := c.Log.SlogLevel(); err != nil {
		return err
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return errors.Errorf("log.format: unsupported format %q", c.Log.Format)
	}
	return nil
}

func validateRange(name string, r rtp.PortRange) error {
	if r.Min <= 0 || r.Max > 65535 || r.Min > r.Max {
		return errors.Errorf("%s: invalid range %d-%d", name, r.Min, r.Max)
	}
	if r.Step <= 0 {
		return errors.Errorf("%s: step must be positive", name)
	}
	return nil
}

// Silence байт тишины μ-law
func (c *Config) Silence() byte {
	if c.SilenceByte == nil {
		return DefaultSilence
	}
	return *c.SilenceByte
}

// SlogLevel уровень журнала для log/slog
func (l LogConfig) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.ToUpper(l.Level))); err != nil {
		return level, errors.Errorf("log.level: unsupported level %q", l.Level)
	}
	return level, nil
}
