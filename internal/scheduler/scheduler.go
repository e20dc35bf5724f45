// Package scheduler drives startup journeys forward from job outcomes.
//
// A journey is a fixed 14-day phase sequence. The scheduler polls active
// startups on its own timer, independent of the worker pool, and inspects
// each startup's most recent timeline event. When that event marks a
// completed phase whose orchestration job finished, the scheduler triggers
// the next phase on the engine — or marks the startup launched past day 14.
// "One job finished" and "the phase finished" are deliberately decoupled:
// multi-job phases conclude only when the phase executor appends the
// phase_completed event.
package scheduler

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/vtkrishna/wizmark360-sub001/internal/store"
)

// maxPhaseDay is the fixed journey ceiling. Completing day 14 launches the
// startup.
const maxPhaseDay = 14

// defaultPollInterval is the scheduler's fixed cadence.
const defaultPollInterval = 30 * time.Second

// PhaseRunner triggers execution of one journey day on the orchestration
// engine. Fire-and-forget: the engine appends the timeline event and
// enqueues jobs on its own; the scheduler's responsibility ends at the
// trigger. The production implementation is *orchestrate.Client.
type PhaseRunner interface {
	ExecutePhase(ctx context.Context, startupID uuid.UUID, sessionID string, phaseDay int32, inputs json.RawMessage) error
}

// Scheduler advances active startup journeys from completed-phase evidence.
type Scheduler struct {
	store    *store.Store
	runner   PhaseRunner
	interval time.Duration
	log      *slog.Logger
}

// New creates a Scheduler. A non-positive interval falls back to the
// default 30s cadence.
func New(st *store.Store, runner PhaseRunner, interval time.Duration) *Scheduler {
	if interval <= 0 {
		interval = defaultPollInterval
	}
	return &Scheduler{
		store:    st,
		runner:   runner,
		interval: interval,
		log:      slog.Default(),
	}
}

// Run polls until ctx is cancelled. Uses time.NewTicker (not time.After)
// to avoid timer leaks.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.log.Info("journey scheduler started", "poll_interval", s.interval)

	for {
		select {
		case <-ctx.Done():
			s.log.Info("journey scheduler stopping")
			return
		case <-ticker.C:
			s.runCycle(ctx)
		}
	}
}

// RunOnce executes one scheduler cycle. Used in tests only.
func (s *Scheduler) RunOnce(ctx context.Context) {
	s.runCycle(ctx)
}

// runCycle checks every active startup. Per-startup errors are logged and
// do not stop the cycle — one bad row cannot stall the scheduler.
func (s *Scheduler) runCycle(ctx context.Context) {
	startups, err := s.store.ActiveStartups(ctx)
	if err != nil {
		s.log.Error("active startups query error", "error", err)
		return
	}
	for _, st := range startups {
		if err := s.checkStartup(ctx, st); err != nil {
			s.log.Error("journey check error", "startup_id", st.ID, "error", err)
		}
	}
}

// checkStartup inspects one startup's latest timeline event and advances
// the journey if its phase job has completed.
func (s *Scheduler) checkStartup(ctx context.Context, st *store.Startup) error {
	if st.Paused() {
		return nil
	}

	ev, err := s.store.LatestTimelineEvent(ctx, st.ID)
	if err != nil {
		return err
	}
	if ev == nil || ev.EventType != store.EventPhaseCompleted {
		return nil
	}

	var meta store.PhaseCompletionMeta
	if err := json.Unmarshal(ev.Metadata, &meta); err != nil {
		return fmt.Errorf("parse event %d metadata: %w", ev.ID, err)
	}
	if meta.OrchestrationJobID == "" {
		s.log.Warn("phase_completed event missing orchestrationJobId",
			"startup_id", st.ID, "event_id", ev.ID)
		return nil
	}
	jobID, err := uuid.Parse(meta.OrchestrationJobID)
	if err != nil {
		return fmt.Errorf("parse orchestrationJobId %q: %w", meta.OrchestrationJobID, err)
	}

	job, err := s.store.GetJob(ctx, jobID)
	if err != nil {
		return err
	}
	if job == nil {
		s.log.Warn("phase_completed event references unknown job",
			"startup_id", st.ID, "job_id", jobID)
		return nil
	}

	switch job.Status {
	case store.JobCompleted:
		return s.advance(ctx, st, ev, meta)
	case store.JobFailed:
		// Deliberate: no auto-pause, no auto-retry. Recovery of a failed
		// phase is a human or external decision.
		s.log.Error("phase job failed, journey waiting on manual action",
			"startup_id", st.ID, "day", ev.DayNumber, "job_id", job.ID)
		return nil
	default:
		return nil // still queued or running; check again next cycle
	}
}

// advance triggers the next journey day, or launches the startup past the
// ceiling. The phase-event existence re-check makes the trigger
// exactly-once even when a cycle runs twice before the engine appends the
// next event.
func (s *Scheduler) advance(ctx context.Context, st *store.Startup, ev *store.TimelineEvent, meta store.PhaseCompletionMeta) error {
	next := ev.DayNumber + 1

	if next > maxPhaseDay {
		if err := s.store.MarkStartupLaunched(ctx, st.ID); err != nil {
			return err
		}
		startupsLaunched.Inc()
		s.log.Info("journey complete, startup launched", "startup_id", st.ID)
		return nil
	}

	exists, err := s.store.PhaseEventExists(ctx, st.ID, next)
	if err != nil {
		return err
	}
	if exists {
		return nil // next phase already underway
	}

	if err := s.runner.ExecutePhase(ctx, st.ID, meta.SessionID, next, nil); err != nil {
		return fmt.Errorf("execute phase %d: %w", next, err)
	}
	phasesTriggered.Inc()
	s.log.Info("next journey phase triggered",
		"startup_id", st.ID, "day", next, "session_id", meta.SessionID)
	return nil
}

// Pause idempotently pauses a startup's journey. The scheduler skips paused
// startups at the store filter until resumed.
func (s *Scheduler) Pause(ctx context.Context, id uuid.UUID) error {
	paused, err := s.store.PauseStartup(ctx, id)
	if err != nil {
		return err
	}
	if !paused {
		s.log.Info("pause requested but startup already paused", "startup_id", id)
		return nil
	}
	s.log.Info("journey paused", "startup_id", id)
	return nil
}

// Resume idempotently resumes a startup's journey and immediately runs one
// per-startup check with the returned snapshot instead of waiting for the
// next tick (or re-fetching the row).
func (s *Scheduler) Resume(ctx context.Context, id uuid.UUID) error {
	st, err := s.store.ResumeStartup(ctx, id)
	if err != nil {
		return err
	}
	if st == nil {
		s.log.Info("resume requested but startup not paused", "startup_id", id)
		return nil
	}
	s.log.Info("journey resumed", "startup_id", id)

	if err := s.checkStartup(ctx, st); err != nil {
		s.log.Error("post-resume journey check error", "startup_id", id, "error", err)
	}
	return nil
}
