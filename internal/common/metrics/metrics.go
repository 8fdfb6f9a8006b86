// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	WorkerJobsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_completed_total",
			Help: "Total number of jobs completed by worker",
		},
		[]string{"task_type"},
	)

	WorkerJobsFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_failed_total",
			Help: "Total number of jobs failed by worker",
		},
		[]string{"task_type", "error_code"},
	)

	WorkerJobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "worker_job_duration_seconds",
			Help: "Duration of job processing in seconds",
		},
		[]string{"task_type"},
	)

	WorkerJobsActive = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "worker_jobs_active",
			Help: "Number of active jobs per worker",
		},
		[]string{"task_type"},
	)

	SubmissionsReceived = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "directory_submissions_total",
			Help: "Submission intake attempts by outcome",
		},
		[]string{"outcome"}, // accepted, invalid, rate_limited, error
	)

	DuplicateChecks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "directory_duplicate_checks_total",
			Help: "Duplicate detection runs by outcome",
		},
		[]string{"outcome"}, // clean, duplicates, failed
	)

	DuplicateCheckDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "directory_duplicate_check_duration_seconds",
			Help:    "Duration of a single duplicate detection run",
			Buckets: prometheus.DefBuckets,
		},
	)

	ModerationDecisions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "directory_moderation_decisions_total",
			Help: "Moderation decisions by type",
		},
		[]string{"decision"},
	)

	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "directory_http_requests_total",
			Help: "HTTP requests by route and status",
		},
		[]string{"method", "route", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "directory_http_request_duration_seconds",
			Help:    "HTTP request latency by route",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
)
