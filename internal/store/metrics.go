package store

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricOps = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "history_ops_total",
		Help: "History backend operations by kind and result",
	}, []string{"op", "result"})

	metricOpMS = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "history_op_ms",
		Help:    "History backend operation latency (ms)",
		Buckets: prometheus.ExponentialBuckets(1, 2, 12),
	}, []string{"op"})

	metricQueueDrops = promauto.NewCounter(prometheus.CounterOpts{
		Name: "history_queue_drops_total",
		Help: "Writes dropped because the write-behind queue was full",
	})

	gaugeQueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "history_queue_depth",
		Help: "Operations waiting in write-behind queues",
	})

	metricCorrupt = promauto.NewCounter(prometheus.CounterOpts{
		Name: "history_corrupt_entries_total",
		Help: "Stored entries skipped because they did not decode",
	})

	metricDeferredClears = promauto.NewCounter(prometheus.CounterOpts{
		Name: "history_deferred_clears_total",
		Help: "Clears that found their queue full and ran ahead of the room's next operation",
	})
)
