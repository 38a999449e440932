package client

import (
	"io"
	"log/slog"

	"github.com/arzzra/mrcp_client/pkg/config"
)

// NewLogger создает журнал по конфигурации: text или json
func NewLogger(cfg config.LogConfig, w io.Writer) (*slog.Logger, error) {
	level, err := cfg.SlogLevel()
	if err != nil {
		return nil, err
	}
	opts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	}
	return slog.New(slog.NewTextHandler(w, opts)), nil
}
