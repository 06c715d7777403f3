package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ConnectionsActive live websocket connections on this instance
	ConnectionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "chat_ws_connections_active",
			Help: "Active websocket connections",
		},
	)

	// EventsTotal client events handled
	EventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_ws_events_total",
			Help: "Client websocket events by action and result",
		},
		[]string{"action", "result"},
	)

	// RateLimited events rejected by the per connection limiter
	RateLimited = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chat_ws_rate_limited_total",
			Help: "Client events rejected by rate limit",
		},
	)

	// SlowClientDrops connections dropped because send buffer was full
	SlowClientDrops = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chat_ws_slow_client_drops_total",
			Help: "Connections dropped on full send buffer",
		},
	)

	// MessagesCreated persisted chat messages
	MessagesCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_messages_created_total",
			Help: "Persisted chat messages",
		},
		[]string{"type"},
	)

	// RoomsCreated rooms created by find-or-create
	RoomsCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chat_rooms_created_total",
			Help: "Rooms created",
		},
	)

	// BusPublished envelopes published on the cross instance bus
	BusPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_bus_published_total",
			Help: "Bus envelopes published by channel and result",
		},
		[]string{"channel", "result"},
	)

	// NotificationsTotal push dispatch outcome
	NotificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_notifications_total",
			Help: "Push notification dispatch by result",
		},
		[]string{"result"},
	)

	// HTTPRequestDuration REST latency
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "chat_http_request_duration_seconds",
			Help:    "HTTP request duration",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"method", "path", "status"},
	)
)
