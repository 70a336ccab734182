// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	CommandsParsed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "broker_commands_parsed_total",
			Help: "Total number of inbound commands parsed",
		},
		[]string{"locale", "status"},
	)

	Transitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "broker_transitions_total",
			Help: "Total number of lifecycle transitions applied",
		},
		[]string{"kind", "to"},
	)

	TransitionsRejected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "broker_transitions_rejected_total",
			Help: "Total number of transitions rejected by state guards",
		},
		[]string{"kind"},
	)

	NotificationsSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "broker_notifications_sent_total",
			Help: "Total number of notifications handed to delivery",
		},
		[]string{"channel", "status"},
	)

	MatchingDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "broker_matching_duration_seconds",
			Help: "Duration of the location/store/associate matching chain",
		},
		[]string{"stage"},
	)
)
