package session

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	transitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "mrcp_client",
		Subsystem: "session",
		Name:      "transitions_total",
		Help:      "Переходы автомата сессии",
	}, []string{"from", "to"})

	outcomesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "mrcp_client",
		Subsystem: "session",
		Name:      "outcomes_total",
		Help:      "Завершенные сессии по итогу",
	}, []string{"result"})

	responsesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "mrcp_client",
		Subsystem: "mrcp",
		Name:      "responses_total",
		Help:      "Ответы MRCP по методу и коду",
	}, []string{"method", "status"})

	responseSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "mrcp_client",
		Subsystem: "mrcp",
		Name:      "response_seconds",
		Help:      "Задержка ответа MRCP",
		Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10),
	}, []string{"method"})
)

func observeOutcome(result Result) {
	label := "terminated"
	if category, ok := CategoryOf(result.Err); ok {
		label = string(category)
	} else if result.ExitCode != 0 {
		label = "failed"
	}
	outcomesTotal.WithLabelValues(label).Inc()
}

func observeResponse(method string, status int, seconds float64) {
	responsesTotal.WithLabelValues(method, strconv.Itoa(status)).Inc()
	responseSeconds.WithLabelValues(method).Observe(seconds)
}
