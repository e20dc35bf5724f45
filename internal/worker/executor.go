package worker

import (
	"context"
	"math"
	"time"

	"github.com/vtkrishna/wizmark360-sub001/internal/orchestrate"
	"github.com/vtkrishna/wizmark360-sub001/internal/store"
)

// executeJob runs one claimed job end to end. Errors are handled here,
// never propagated to the pool — one bad job cannot stall the fill loop.
//
// Cancellation is cooperative: three checkpoints bracket the one
// long-running engine call. A cancel that lands between the last checkpoint
// and the terminal write is caught by the conditional update instead.
func (p *Pool) executeJob(ctx context.Context, job *store.Job) {
	if p.isCancelled(ctx, job) {
		return
	}

	start := time.Now()
	result, err := p.orch.ExecuteJob(ctx, orchestrate.JobRequest{
		StartupID:       job.StartupID,
		SessionID:       job.SessionID,
		TaskID:          job.TaskID,
		JobType:         job.JobType,
		Workflow:        job.Workflow,
		Agents:          job.Agents,
		Inputs:          job.Inputs,
		Priority:        job.Priority,
		OrchestrationID: job.OrchestrationID,
	})

	// The engine call may have run for minutes; a cancel request may have
	// arrived during it. Discard the result in that case.
	if p.isCancelled(ctx, job) {
		return
	}

	switch {
	case err != nil:
		p.handleFailure(ctx, job, err.Error())
	case !result.Succeeded():
		msg := result.ErrorMessage
		if msg == "" {
			msg = "orchestration engine reported failure"
		}
		p.handleFailure(ctx, job, msg)
	default:
		p.complete(ctx, job, result, time.Since(start))
	}
}

// complete records the success outcome with a conditional update. A miss
// means the status changed concurrently; the outcome is abandoned.
func (p *Pool) complete(ctx context.Context, job *store.Job, result *orchestrate.JobResult, elapsed time.Duration) {
	ok, err := p.store.CompleteJob(ctx, job.ID, store.CompleteJobParams{
		Outputs:     result.Outputs,
		CreditsUsed: result.CreditsUsed,
		TokensUsed:  result.TokensUsed,
		Cost:        result.Cost,
		Duration:    elapsed,
	})
	if err != nil {
		p.log.Error("complete job error", "job_id", job.ID, "error", err)
		return
	}
	if !ok {
		p.reportSkippedWrite(ctx, job, "completion")
		return
	}
	jobsCompleted.Inc()
	p.log.Info("job completed",
		"job_id", job.ID, "job_type", job.JobType, "duration_ms", elapsed.Milliseconds())
}

// handleFailure applies the retry policy: re-queue with exponential backoff
// while retries remain, otherwise mark the job permanently failed. One more
// cancellation check runs first so a cancel issued during the engine call
// is not converted into a retry.
func (p *Pool) handleFailure(ctx context.Context, job *store.Job, errMsg string) {
	if p.isCancelled(ctx, job) {
		return
	}

	newRetryCount := job.RetryCount + 1
	if newRetryCount < job.MaxRetries {
		delay := backoffDelay(p.cfg.BaseBackoff, job.BackoffMultiplier, newRetryCount)
		availableAt := time.Now().Add(delay)

		ok, err := p.store.RequeueJobForRetry(ctx, job.ID, newRetryCount, availableAt, errMsg)
		if err != nil {
			p.log.Error("requeue job error", "job_id", job.ID, "error", err)
			return
		}
		if !ok {
			p.reportSkippedWrite(ctx, job, "retry")
			return
		}
		jobsRetried.Inc()
		p.log.Warn("job failed, re-queued with backoff",
			"job_id", job.ID,
			"retry_count", newRetryCount,
			"max_retries", job.MaxRetries,
			"backoff", delay,
			"error", errMsg,
		)
		return
	}

	ok, err := p.store.MarkJobFailed(ctx, job.ID, errMsg)
	if err != nil {
		p.log.Error("mark job failed error", "job_id", job.ID, "error", err)
		return
	}
	if !ok {
		p.reportSkippedWrite(ctx, job, "failure")
		return
	}
	jobsFailed.Inc()
	p.log.Error("job failed permanently, retries exhausted",
		"job_id", job.ID, "retry_count", newRetryCount, "error", errMsg)
}

// isCancelled consults the cancellation guard. A store error is logged and
// treated as not-cancelled so a transient read failure cannot stall a job;
// the conditional terminal write remains the authoritative backstop.
func (p *Pool) isCancelled(ctx context.Context, job *store.Job) bool {
	cancelled, err := p.store.JobCancelled(ctx, job.ID)
	if err != nil {
		p.log.Error("cancellation check error", "job_id", job.ID, "error", err)
		return false
	}
	if cancelled {
		jobsCancelled.Inc()
		p.log.Info("job cancelled, skipping", "job_id", job.ID)
	}
	return cancelled
}

// reportSkippedWrite records a race-lost conditional update. Not an error:
// the status changed concurrently (almost always a cancel) and that state
// is authoritative. The current status is re-read for the telemetry event.
func (p *Pool) reportSkippedWrite(ctx context.Context, job *store.Job, outcome string) {
	writesSkipped.Inc()
	status := "unknown"
	if cur, err := p.store.GetJob(ctx, job.ID); err == nil && cur != nil {
		status = string(cur.Status)
	}
	p.log.Warn("outcome write skipped, job no longer running",
		"job_id", job.ID, "outcome", outcome, "current_status", status)
}

// backoffDelay grows exponentially in the new retry count, so the first
// retry already incurs one multiplier step: base * multiplier^retryCount.
func backoffDelay(base time.Duration, multiplier, retryCount int32) time.Duration {
	return time.Duration(float64(base) * math.Pow(float64(multiplier), float64(retryCount)))
}
