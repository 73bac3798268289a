package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Poll metrics
	PollsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sensor_polls_total",
			Help: "Total number of measurement polls",
		},
		[]string{"status"}, // status: success, failed
	)

	PollDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "sensor_poll_duration_seconds",
			Help:    "Latency of measurement source calls",
			Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10},
		},
	)

	SaturationWaits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sensor_saturation_waits_total",
			Help: "Times a worker slept the cooldown because the permit pool was saturated",
		},
	)

	// Tracker metrics
	SamplesEvaluated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sensor_samples_evaluated_total",
			Help: "Samples fed through the SLO tracker",
		},
		[]string{"result"}, // result: breaching, clear, rejected
	)

	TrackerPhase = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "sensor_tracker_phase",
			Help: "Current tracker phase (0=nominal, 1=warning, 2=clearing)",
		},
	)

	BreachCount = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "sensor_breach_count",
			Help: "Samples counted toward the current tracker window",
		},
	)

	// Notification metrics
	NotificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sensor_notifications_total",
			Help: "Notifications handed to the sink",
		},
		[]string{"severity", "status"}, // severity: breach, clear; status: sent, failed
	)

	// Panic recovery
	PanicsRecovered = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sensor_panics_recovered_total",
			Help: "Total number of panics recovered",
		},
		[]string{"component"},
	)
)
