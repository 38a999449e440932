package rtp

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	directionIn  = "in"
	directionOut = "out"
)

var (
	packetsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "mrcp_client",
		Subsystem: "rtp",
		Name:      "packets_total",
		Help:      "RTP пакеты по направлению",
	}, []string{"direction"})

	bytesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "mrcp_client",
		Subsystem: "rtp",
		Name:      "payload_bytes_total",
		Help:      "Байты RTP payload по направлению",
	}, []string{"direction"})

	droppedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "mrcp_client",
		Subsystem: "rtp",
		Name:      "dropped_packets_total",
		Help:      "Отброшенные невалидные входящие пакеты",
	})
)

func observeSent(n int) {
	packetsTotal.WithLabelValues(directionOut).Inc()
	bytesTotal.WithLabelValues(directionOut).Add(float64(n))
}

func observeReceived(n int) {
	packetsTotal.WithLabelValues(directionIn).Inc()
	bytesTotal.WithLabelValues(directionIn).Add(float64(n))
}
