package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Transport metrics
	ConnectionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "dojo_presence_connections_active",
			Help: "Currently open websocket connections",
		},
	)

	ChannelsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "dojo_presence_channels_active",
			Help: "Channels currently materialized",
		},
	)

	// Presence metrics
	PresenceTracked = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "dojo_presence_members_tracked",
			Help: "Presence records currently tracked across all channels",
		},
	)

	// Broadcast metrics
	BroadcastsRelayed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dojo_presence_broadcasts_relayed_total",
			Help: "Broadcast frames relayed to subscribers",
		},
		[]string{"channel_kind"}, // "global", "duo" or "other"
	)

	FramesDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "dojo_presence_frames_dropped_total",
			Help: "Frames dropped on receiver backpressure",
		},
	)

	RateLimited = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "dojo_presence_rate_limited_total",
			Help: "Broadcasts rejected by the per-session rate limit",
		},
	)
)
