package worker

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/vtkrishna/wizmark360-sub001/internal/store"
)

const (
	// drainPollInterval is how often Stop re-checks the in-flight count.
	drainPollInterval = 1 * time.Second

	// cleanupInterval is how often the retention sweeper runs.
	cleanupInterval = 1 * time.Hour
)

// Config holds worker pool tuning parameters. Zero values fall back to the
// documented defaults, so Config{} is a valid production configuration.
type Config struct {
	PollInterval      time.Duration // default 5s
	MaxConcurrentJobs int           // default 3
	BaseBackoff       time.Duration // default 1s
	EnableCleanup     *bool         // default true
	CleanupRetention  time.Duration // default 7 days
}

func (c Config) withDefaults() Config {
	if c.PollInterval <= 0 {
		c.PollInterval = 5 * time.Second
	}
	if c.MaxConcurrentJobs <= 0 {
		c.MaxConcurrentJobs = 3
	}
	if c.BaseBackoff <= 0 {
		c.BaseBackoff = 1 * time.Second
	}
	if c.EnableCleanup == nil {
		t := true
		c.EnableCleanup = &t
	}
	if c.CleanupRetention <= 0 {
		c.CleanupRetention = 7 * 24 * time.Hour
	}
	return c
}

// Status is a point-in-time snapshot of the pool.
type Status struct {
	Running           bool `json:"running"`
	ActiveJobs        int  `json:"activeJobs"`
	MaxConcurrentJobs int  `json:"maxConcurrentJobs"`
}

// Pool claims and executes orchestration jobs on a fixed poll timer,
// keeping at most MaxConcurrentJobs in flight.
type Pool struct {
	store *store.Store
	orch  Orchestrator
	cfg   Config
	log   *slog.Logger

	active atomic.Int64

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
	// execCtx outlives the poll loop so Stop can drain in-flight jobs
	// instead of aborting their engine calls mid-flight.
	execCtx context.Context
}

// New creates a Pool. The pool does not poll until Start is called.
func New(st *store.Store, orch Orchestrator, cfg Config) *Pool {
	return &Pool{
		store: st,
		orch:  orch,
		cfg:   cfg.withDefaults(),
		log:   slog.Default(),
	}
}

// Start launches the poll and cleanup timers. Idempotent: calling Start on
// a running pool is a logged no-op. One fill cycle runs synchronously
// before Start returns so a freshly started pool picks up backlog
// immediately instead of waiting out the first tick.
func (p *Pool) Start(ctx context.Context) {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		p.log.Info("worker pool already running")
		return
	}
	loopCtx, cancel := context.WithCancel(ctx)
	p.running = true
	p.cancel = cancel
	p.done = make(chan struct{})
	p.execCtx = context.WithoutCancel(ctx)
	p.mu.Unlock()

	p.log.Info("worker pool started",
		"poll_interval", p.cfg.PollInterval,
		"max_concurrent_jobs", p.cfg.MaxConcurrentJobs,
		"cleanup_enabled", *p.cfg.EnableCleanup,
	)

	p.fill(loopCtx)
	go p.run(loopCtx)
}

// run polls for claimable work until the loop context is cancelled. Uses
// time.NewTicker (not time.After) to avoid timer leaks.
func (p *Pool) run(ctx context.Context) {
	defer close(p.done)

	ticker := time.NewTicker(p.cfg.PollInterval)
	defer ticker.Stop()

	var cleanupC <-chan time.Time
	if *p.cfg.EnableCleanup {
		cleanup := time.NewTicker(cleanupInterval)
		defer cleanup.Stop()
		cleanupC = cleanup.C
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.fill(ctx)
		case <-cleanupC:
			p.runCleanup(ctx)
		}
	}
}

// fill claims jobs until the concurrency budget is spent or no eligible
// work remains. It never blocks on a full budget — it simply stops
// dispatching until a slot frees. Claim errors end the cycle and are
// retried on the next tick.
func (p *Pool) fill(ctx context.Context) {
	for p.active.Load() < int64(p.cfg.MaxConcurrentJobs) {
		if ctx.Err() != nil {
			return
		}
		job, err := p.store.ClaimNextJob(ctx)
		if err != nil {
			p.log.Error("claim job error", "error", err)
			return
		}
		if job == nil {
			return // no eligible work; normal case
		}

		jobsClaimed.Inc()
		p.active.Add(1)
		activeJobs.Set(float64(p.active.Load()))

		p.log.Info("job claimed",
			"job_id", job.ID,
			"job_type", job.JobType,
			"startup_id", job.StartupID,
			"retry_count", job.RetryCount,
		)

		go func(j *store.Job) {
			defer func() {
				p.active.Add(-1)
				activeJobs.Set(float64(p.active.Load()))
			}()
			p.executeJob(p.execCtx, j)
		}(job)
	}
}

// RunOnce executes one fill cycle and waits for every dispatched job to
// finish. Used in tests only.
func (p *Pool) RunOnce(ctx context.Context) {
	p.mu.Lock()
	if p.execCtx == nil {
		p.execCtx = ctx
	}
	p.mu.Unlock()

	p.fill(ctx)
	for p.active.Load() > 0 {
		time.Sleep(10 * time.Millisecond)
	}
}

// Stop halts the poll and cleanup timers, then waits for in-flight jobs to
// reach a terminal status before returning. No job is abandoned
// mid-execution by the calling process.
func (p *Pool) Stop() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	p.running = false
	cancel, done := p.cancel, p.done
	p.mu.Unlock()

	cancel()
	<-done

	for {
		n := p.active.Load()
		if n == 0 {
			break
		}
		p.log.Info("waiting for in-flight jobs to finish", "active_jobs", n)
		time.Sleep(drainPollInterval)
	}
	p.log.Info("worker pool stopped")
}

// Status returns a snapshot of the pool state.
func (p *Pool) Status() Status {
	p.mu.Lock()
	running := p.running
	p.mu.Unlock()
	return Status{
		Running:           running,
		ActiveJobs:        int(p.active.Load()),
		MaxConcurrentJobs: p.cfg.MaxConcurrentJobs,
	}
}

// runCleanup deletes terminal jobs past the retention window. Errors are
// logged and non-fatal; a failed sweep retries next interval.
func (p *Pool) runCleanup(ctx context.Context) {
	n, err := p.store.DeleteExpiredJobs(ctx, p.cfg.CleanupRetention)
	if err != nil {
		p.log.Error("cleanup sweep error", "error", err)
		return
	}
	if n > 0 {
		p.log.Info("cleanup sweep removed expired jobs",
			"count", n, "retention", p.cfg.CleanupRetention)
	}
}
