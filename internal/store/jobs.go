// ABOUTME: Store methods for the orchestration_jobs table — claim, complete, retry, cancel, sweep.
// ABOUTME: Claim uses FOR UPDATE SKIP LOCKED; terminal writes are conditional on status='running'.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// JobStatus is the lifecycle state of an orchestration job. Exactly one
// state holds at any instant; transitions out of running are guarded by
// conditional updates so a concurrent cancel always wins.
type JobStatus string

const (
	JobQueued    JobStatus = "queued"
	JobRunning   JobStatus = "running"
	JobCompleted JobStatus = "completed"
	JobFailed    JobStatus = "failed"
	JobCancelled JobStatus = "cancelled"
)

// Job is one row of the orchestration_jobs table.
type Job struct {
	ID                uuid.UUID
	OrchestrationID   string
	StartupID         uuid.UUID
	SessionID         string
	TaskID            *string
	JobType           string
	Workflow          string
	Agents            []string
	Inputs            json.RawMessage
	Priority          int32
	AvailableAt       time.Time
	Status            JobStatus
	Progress          int32
	RetryCount        int32
	MaxRetries        int32
	BackoffMultiplier int32
	Outputs           json.RawMessage
	CreditsUsed       *int32
	TokensUsed        *int32
	Cost              *float64
	ErrorMessage      *string
	DurationMS        *int64
	CreatedAt         time.Time
	UpdatedAt         time.Time
	StartedAt         *time.Time
	CompletedAt       *time.Time
	CancelledAt       *time.Time
	CancelReason      *string
}

// jobColumns is the canonical column list shared by every query that
// returns full job rows. Order must match scanJob.
const jobColumns = `
	id, orchestration_id, startup_id, session_id, task_id,
	job_type, workflow, agents, inputs, priority, available_at,
	status, progress, retry_count, max_retries, backoff_multiplier,
	outputs, credits_used, tokens_used, cost, error_message, duration_ms,
	created_at, updated_at, started_at, completed_at, cancelled_at, cancel_reason`

// EnqueueJobParams holds the fields for creating a job. Zero-value
// MaxRetries and BackoffMultiplier fall back to the enqueuer contract
// defaults (3 and 2). A zero AvailableAt means eligible immediately.
type EnqueueJobParams struct {
	OrchestrationID   string
	StartupID         uuid.UUID
	SessionID         string
	TaskID            *string
	JobType           string
	Workflow          string
	Agents            []string
	Inputs            json.RawMessage
	Priority          int32
	AvailableAt       *time.Time
	MaxRetries        int32
	BackoffMultiplier int32
}

// EnqueueJob inserts a new queued job and returns the created row.
func (s *Store) EnqueueJob(ctx context.Context, p EnqueueJobParams) (*Job, error) {
	if p.MaxRetries == 0 {
		p.MaxRetries = 3
	}
	if p.BackoffMultiplier == 0 {
		p.BackoffMultiplier = 2
	}
	if p.Inputs == nil {
		p.Inputs = json.RawMessage(`{}`)
	}
	if p.Agents == nil {
		p.Agents = []string{}
	}
	var availableAt interface{}
	if p.AvailableAt != nil {
		availableAt = *p.AvailableAt
	}

	row := s.pool.QueryRow(ctx, `
		INSERT INTO orchestration_jobs (
			orchestration_id, startup_id, session_id, task_id,
			job_type, workflow, agents, inputs, priority,
			available_at, max_retries, backoff_multiplier
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9,
			COALESCE($10::timestamptz, now()), $11, $12
		)
		RETURNING`+jobColumns,
		p.OrchestrationID, p.StartupID, p.SessionID, p.TaskID,
		p.JobType, p.Workflow, p.Agents, p.Inputs, p.Priority,
		availableAt, p.MaxRetries, p.BackoffMultiplier,
	)
	j, err := scanJob(row)
	if err != nil {
		return nil, fmt.Errorf("enqueue job: %w", err)
	}
	return j, nil
}

// ClaimNextJob atomically claims the next eligible queued job: highest
// priority first, oldest first within a priority, skipping rows locked by
// concurrent claimers. The claimed job is transitioned to running with
// started_at stamped inside the same statement, so no two claimers can
// observe the same unclaimed row. Returns (nil, nil) when no eligible
// unlocked row exists.
func (s *Store) ClaimNextJob(ctx context.Context) (*Job, error) {
	row := s.pool.QueryRow(ctx, `
		UPDATE orchestration_jobs
		SET status = 'running', started_at = now(), updated_at = now()
		WHERE id = (
			SELECT id FROM orchestration_jobs
			WHERE status = 'queued' AND available_at <= now()
			ORDER BY priority DESC, created_at ASC
			FOR UPDATE SKIP LOCKED
			LIMIT 1
		)
		RETURNING` + jobColumns,
	)
	j, err := scanJob(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("claim next job: %w", err)
	}
	return j, nil
}

// GetJob returns the job with the given id, or (nil, nil) if not found.
func (s *Store) GetJob(ctx context.Context, id uuid.UUID) (*Job, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT`+jobColumns+` FROM orchestration_jobs WHERE id = $1`, id)
	j, err := scanJob(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get job %s: %w", id, err)
	}
	return j, nil
}

// CompleteJobParams holds the outcome fields recorded on success.
type CompleteJobParams struct {
	Outputs     json.RawMessage
	CreditsUsed *int32
	TokensUsed  *int32
	Cost        *float64
	Duration    time.Duration
}

// CompleteJob marks a running job completed with its outcome fields.
// The WHERE clause re-asserts status='running'; a false return means the
// status changed concurrently (almost always a cancel) and the outcome
// must be discarded, not overwritten.
func (s *Store) CompleteJob(ctx context.Context, id uuid.UUID, p CompleteJobParams) (bool, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE orchestration_jobs
		SET status = 'completed', outputs = $2, progress = 100,
		    credits_used = $3, tokens_used = $4, cost = $5,
		    completed_at = now(), duration_ms = $6, updated_at = now()
		WHERE id = $1 AND status = 'running'`,
		id, p.Outputs, p.CreditsUsed, p.TokensUsed, p.Cost,
		p.Duration.Milliseconds(),
	)
	if err != nil {
		return false, fmt.Errorf("complete job %s: %w", id, err)
	}
	return tag.RowsAffected() > 0, nil
}

// RequeueJobForRetry moves a running job back to queued with the new retry
// count and backoff-delayed eligibility instant. Guarded like CompleteJob.
func (s *Store) RequeueJobForRetry(ctx context.Context, id uuid.UUID, retryCount int32, availableAt time.Time, errMsg string) (bool, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE orchestration_jobs
		SET status = 'queued', retry_count = $2, available_at = $3,
		    error_message = $4, updated_at = now()
		WHERE id = $1 AND status = 'running'`,
		id, retryCount, availableAt, errMsg,
	)
	if err != nil {
		return false, fmt.Errorf("requeue job %s: %w", id, err)
	}
	return tag.RowsAffected() > 0, nil
}

// MarkJobFailed records the terminal, non-retriable outcome. Guarded like
// CompleteJob.
func (s *Store) MarkJobFailed(ctx context.Context, id uuid.UUID, errMsg string) (bool, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE orchestration_jobs
		SET status = 'failed', error_message = $2,
		    completed_at = now(), updated_at = now()
		WHERE id = $1 AND status = 'running'`,
		id, errMsg,
	)
	if err != nil {
		return false, fmt.Errorf("mark job failed %s: %w", id, err)
	}
	return tag.RowsAffected() > 0, nil
}

// JobCancelled reports whether the job has been cancelled. When it has,
// completed_at is stamped idempotently (COALESCE keeps the first stamp) so
// retention-based cleanup applies to cancelled jobs too. Reading and
// stamping happen in one round trip; zero rows means not cancelled.
func (s *Store) JobCancelled(ctx context.Context, id uuid.UUID) (bool, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE orchestration_jobs
		SET completed_at = COALESCE(completed_at, now()), updated_at = now()
		WHERE id = $1 AND status = 'cancelled'`,
		id,
	)
	if err != nil {
		return false, fmt.Errorf("check cancellation %s: %w", id, err)
	}
	return tag.RowsAffected() > 0, nil
}

// CancelJob transitions a queued or running job to cancelled. Called by the
// external cancel surface; the worker only ever observes the result through
// JobCancelled and its conditional writes. False means the job was already
// terminal.
func (s *Store) CancelJob(ctx context.Context, id uuid.UUID, reason string) (bool, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE orchestration_jobs
		SET status = 'cancelled', cancelled_at = now(), cancel_reason = $2,
		    completed_at = now(), updated_at = now()
		WHERE id = $1 AND status IN ('queued', 'running')`,
		id, reason,
	)
	if err != nil {
		return false, fmt.Errorf("cancel job %s: %w", id, err)
	}
	return tag.RowsAffected() > 0, nil
}

// DeleteExpiredJobs removes terminal jobs whose completed_at is older than
// the retention window. Returns the number of rows deleted.
func (s *Store) DeleteExpiredJobs(ctx context.Context, retention time.Duration) (int64, error) {
	tag, err := s.pool.Exec(ctx, `
		DELETE FROM orchestration_jobs
		WHERE status IN ('completed', 'failed', 'cancelled')
		  AND completed_at <= now() - ($1::bigint * interval '1 second')`,
		int64(retention.Seconds()),
	)
	if err != nil {
		return 0, fmt.Errorf("delete expired jobs: %w", err)
	}
	return tag.RowsAffected(), nil
}

// ListJobsParams filters ListJobs. Zero values mean "no filter"; Limit
// defaults to 50.
type ListJobsParams struct {
	Status    JobStatus
	StartupID uuid.UUID
	Limit     int
}

// ListJobs returns jobs ordered newest-first, optionally filtered by status
// and owning startup. Backs the read-only ops surface.
func (s *Store) ListJobs(ctx context.Context, p ListJobsParams) ([]*Job, error) {
	if p.Limit <= 0 {
		p.Limit = 50
	}
	q := psql.Select(
		"id", "orchestration_id", "startup_id", "session_id", "task_id",
		"job_type", "workflow", "agents", "inputs", "priority", "available_at",
		"status", "progress", "retry_count", "max_retries", "backoff_multiplier",
		"outputs", "credits_used", "tokens_used", "cost", "error_message", "duration_ms",
		"created_at", "updated_at", "started_at", "completed_at", "cancelled_at", "cancel_reason",
	).From("orchestration_jobs").
		OrderBy("created_at DESC").
		Limit(uint64(p.Limit)) //nolint:gosec // G115: limit validated above

	if p.Status != "" {
		q = q.Where(sq.Eq{"status": string(p.Status)})
	}
	if p.StartupID != uuid.Nil {
		q = q.Where(sq.Eq{"startup_id": p.StartupID})
	}

	sqlStr, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list jobs query: %w", err)
	}

	rows, err := s.pool.Query(ctx, sqlStr, args...)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	return collectJobs(rows)
}

// scanJob scans a single job row in jobColumns order.
func scanJob(row pgx.Row) (*Job, error) {
	var j Job
	var status string
	err := row.Scan(
		&j.ID, &j.OrchestrationID, &j.StartupID, &j.SessionID, &j.TaskID,
		&j.JobType, &j.Workflow, &j.Agents, &j.Inputs, &j.Priority, &j.AvailableAt,
		&status, &j.Progress, &j.RetryCount, &j.MaxRetries, &j.BackoffMultiplier,
		&j.Outputs, &j.CreditsUsed, &j.TokensUsed, &j.Cost, &j.ErrorMessage, &j.DurationMS,
		&j.CreatedAt, &j.UpdatedAt, &j.StartedAt, &j.CompletedAt, &j.CancelledAt, &j.CancelReason,
	)
	if err != nil {
		return nil, err
	}
	j.Status = JobStatus(status)
	return &j, nil
}

// collectJobs collects all jobs from query rows.
func collectJobs(rows pgx.Rows) ([]*Job, error) {
	var jobs []*Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scan job row: %w", err)
		}
		jobs = append(jobs, j)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate job rows: %w", err)
	}
	return jobs, nil
}
