// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	EventsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bot_events_processed_total",
			Help: "Total number of chat events processed by kind",
		},
		[]string{"event_kind"},
	)

	EventsFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bot_events_failed_total",
			Help: "Total number of chat events that failed processing",
		},
		[]string{"event_kind", "error_code"},
	)

	EventDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "bot_event_duration_seconds",
			Help: "Duration of chat event processing in seconds",
		},
		[]string{"event_kind"},
	)

	StepTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bot_step_transitions_total",
			Help: "Total number of application step transitions",
		},
		[]string{"step_id"},
	)

	DuplicateUpdates = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "bot_duplicate_updates_total",
			Help: "Total number of duplicated updates absorbed by dedup",
		},
	)

	NotificationsSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bot_notifications_sent_total",
			Help: "Total number of notifications delivered by channel",
		},
		[]string{"channel"},
	)

	NotificationsFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bot_notifications_failed_total",
			Help: "Total number of notification deliveries that failed",
		},
		[]string{"channel", "error_code"},
	)

	WatchdogStalled = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "bot_watchdog_stalled_applications",
			Help: "Number of stalled applications found in the last sweep",
		},
	)
)
