package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// JobsProcessed tracks jobs handled per dispatcher pass outcome
	JobsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "familyos_pipeline_jobs_processed_total",
			Help: "Total number of notification jobs processed by the dispatcher",
		},
		[]string{"outcome"}, // sent, retried, failed
	)

	// PushesSent tracks individual web-push deliveries
	PushesSent = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "familyos_pipeline_pushes_sent_total",
			Help: "Total number of web-push payloads delivered",
		},
	)

	// DispatchDuration tracks full dispatcher pass duration
	DispatchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "familyos_pipeline_dispatch_duration_seconds",
			Help:    "Duration of a dispatcher pass in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	// QueueDepth tracks the number of queued jobs at the last dispatch
	QueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "familyos_pipeline_queue_depth",
			Help: "Number of queued notification jobs",
		},
	)

	// JobsEnqueued tracks jobs enqueued per producer
	JobsEnqueued = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "familyos_pipeline_jobs_enqueued_total",
			Help: "Total number of notification jobs enqueued",
		},
		[]string{"producer"}, // reminder, digest_daily, digest_weekly, consumer
	)

	// RunFailures tracks per-item failures inside batch runs
	RunFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "familyos_pipeline_run_failures_total",
			Help: "Total number of per-member failures inside batch runs",
		},
		[]string{"run"}, // conflicts, digest_daily, digest_weekly
	)

	// ConsumerRestarts tracks event consumer restart events
	ConsumerRestarts = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "familyos_pipeline_consumer_restarts_total",
			Help: "Total number of event consumer restarts",
		},
	)

	// RateLimitExceeded tracks rate limit violations per family
	RateLimitExceeded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "familyos_pipeline_rate_limit_exceeded_total",
			Help: "Total number of rate limit exceeded events",
		},
		[]string{"family_id"},
	)
)
