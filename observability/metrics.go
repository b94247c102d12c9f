package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "winledger"

var (
	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	HTTPDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	EventsIngested = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "events_ingested_total",
			Help:      "Revenue events appended to the ledger",
		},
		[]string{"kind", "game_type"},
	)

	CooldownRejections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "cooldown_rejections_total",
			Help:      "Game plays rejected by the per-game cooldown",
		},
		[]string{"game_type"},
	)

	SettlementRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "settlement",
			Name:      "runs_total",
			Help:      "Settlement batch runs by outcome",
		},
		[]string{"trigger", "outcome"},
	)

	SettlementDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "settlement",
			Name:      "run_duration_seconds",
			Help:      "Settlement batch duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
	)

	SettlementUsers = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "settlement",
			Name:      "users_total",
			Help:      "Users included in or skipped by settlement runs",
		},
		[]string{"result"},
	)

	VestingUnlocked = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "vesting",
			Name:      "unlocked_total",
			Help:      "Vesting schedules moved from locked to available",
		},
	)

	JobRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "jobs",
			Name:      "runs_total",
			Help:      "Background job executions by outcome",
		},
		[]string{"job", "outcome"},
	)
)
