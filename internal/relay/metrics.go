package relay

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "relay_events_total",
		Help: "Accepted inbound events by type",
	}, []string{"type"})

	metricDrops = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "relay_drops_total",
		Help: "Inbound events dropped by reason",
	}, []string{"reason"})

	metricFanout = promauto.NewCounter(prometheus.CounterOpts{
		Name: "relay_fanout_messages_total",
		Help: "Messages delivered to peers by broadcast",
	})

	metricPeerRefused = promauto.NewCounter(prometheus.CounterOpts{
		Name: "relay_peer_refused_total",
		Help: "Broadcast deliveries refused by a closed or saturated session",
	})

	metricReplayStrokes = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "relay_replay_strokes",
		Help:    "Strokes sent in a single history replay",
		Buckets: prometheus.ExponentialBuckets(1, 4, 10),
	})

	metricReplayTimeouts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "relay_replay_timeouts_total",
		Help: "Joins whose history read did not finish in time",
	})

	gaugeSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "relay_sessions_active",
		Help: "Connected sessions",
	})

	gaugeRooms = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "relay_rooms_active",
		Help: "Rooms with at least one member",
	})

	metricReplayRefreshes = promauto.NewCounter(prometheus.CounterOpts{
		Name: "relay_replay_refreshes_total",
		Help: "History re-reads after held strokes overflowed during a join",
	})

	metricHeldDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "relay_held_dropped_total",
		Help: "Frames dropped from a joining session's held queue",
	}, []string{"kind"})
)
