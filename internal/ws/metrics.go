package ws

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricConnections = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ws_connections_total",
		Help: "WebSocket upgrade attempts by result",
	}, []string{"result"})

	metricFramesIn = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ws_frames_in_total",
		Help: "Frames read from clients",
	})

	metricFramesOut = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ws_frames_out_total",
		Help: "Frames written to clients",
	})

	metricSlowConsumers = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ws_slow_consumers_total",
		Help: "Sessions closed because their send queue filled",
	})
)
