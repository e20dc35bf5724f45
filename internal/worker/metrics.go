package worker

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Pool telemetry, exposed via the ops server's /metrics endpoint.
// writesSkipped counts race-lost conditional updates; those are not errors,
// the concurrent status change is authoritative.
var (
	jobsClaimed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "orchestrator_jobs_claimed_total",
		Help: "Jobs claimed from the queue by this process.",
	})
	jobsCompleted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "orchestrator_jobs_completed_total",
		Help: "Jobs that reached completed status.",
	})
	jobsFailed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "orchestrator_jobs_failed_total",
		Help: "Jobs that exhausted retries and were marked failed.",
	})
	jobsRetried = promauto.NewCounter(prometheus.CounterOpts{
		Name: "orchestrator_jobs_retried_total",
		Help: "Failed executions re-queued with backoff.",
	})
	jobsCancelled = promauto.NewCounter(prometheus.CounterOpts{
		Name: "orchestrator_jobs_cancelled_observed_total",
		Help: "Cancellations observed at an execution checkpoint.",
	})
	writesSkipped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "orchestrator_outcome_writes_skipped_total",
		Help: "Conditional outcome updates that lost a race to a concurrent status change.",
	})
	activeJobs = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "orchestrator_active_jobs",
		Help: "Jobs currently executing in this process.",
	})
)
