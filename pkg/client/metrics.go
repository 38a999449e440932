package client

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// metricsRouter /metrics и /healthz
func metricsRouter() http.Handler {
	r := chi.NewRouter()
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	})
	r.Handle("/metrics", promhttp.Handler())
	return r
}

// metricsServer HTTP сервер метрик на время сессии
type metricsServer struct {
	srv    *http.Server
	logger *slog.Logger
}

func newMetricsServer(addr string, logger *slog.Logger) *metricsServer {
	return &metricsServer{
		srv: &http.Server{
			Addr:              addr,
			Handler:           metricsRouter(),
			ReadHeaderTimeout: 5 * time.Second,
		},
		logger: logger,
	}
}

// Serve блокирует до Shutdown
func (m *metricsServer) Serve() error {
	m.logger.Info("client: metrics listening", slog.String("addr", m.srv.Addr))
	if err := m.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "metrics server")
	}
	return nil
}

func (m *metricsServer) Shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := m.srv.Shutdown(ctx); err != nil {
		m.logger.Debug("client: metrics shutdown", slog.Any("error", err))
	}
}
