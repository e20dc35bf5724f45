// Package worker provides the orchestration-job worker pool: a bounded-
// concurrency poll loop that claims queued jobs from the orchestration_jobs
// table using FOR UPDATE SKIP LOCKED and dispatches them to the
// orchestration engine.
//
// The table is the only synchronization primitive. Claims skip rows locked
// by concurrent pollers, so multiple process instances can run against one
// database without a lock manager. Every terminal write re-asserts
// status='running' in its WHERE clause; a write that affects zero rows lost
// a race to a concurrent cancel and its outcome is discarded — cancellation
// always wins.
//
// On failure the job is re-queued with exponential backoff
// (base * multiplier^retryCount) until max_retries is exhausted, then
// marked failed permanently. A sweeper deletes terminal jobs past the
// retention window on its own hourly ticker.
package worker

import (
	"context"

	"github.com/vtkrishna/wizmark360-sub001/internal/orchestrate"
)

// Orchestrator executes one orchestration job on the engine. The production
// implementation is *orchestrate.Client; tests substitute fakes. A returned
// error and a Result with Status "failure" are handled identically — both
// route through the retry policy.
type Orchestrator interface {
	ExecuteJob(ctx context.Context, req orchestrate.JobRequest) (*orchestrate.JobResult, error)
}
