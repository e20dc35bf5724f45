// ABOUTME: Integration tests for the journey scheduler: phase advancement,
// ABOUTME: launch at the day-14 ceiling, pause/resume, failed-job standstill.
package scheduler_test

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/vtkrishna/wizmark360-sub001/internal/scheduler"
	"github.com/vtkrishna/wizmark360-sub001/internal/store"
	"github.com/vtkrishna/wizmark360-sub001/internal/testutil"
)

type phaseCall struct {
	startupID uuid.UUID
	sessionID string
	day       int32
}

// fakeRunner records phase triggers and mirrors the engine's side effect of
// appending a timeline event for the day it starts.
type fakeRunner struct {
	store *store.Store
	mu    sync.Mutex
	calls []phaseCall
}

func (f *fakeRunner) ExecutePhase(ctx context.Context, startupID uuid.UUID, sessionID string, phaseDay int32, _ json.RawMessage) error {
	f.mu.Lock()
	f.calls = append(f.calls, phaseCall{startupID, sessionID, phaseDay})
	f.mu.Unlock()
	_, err := f.store.AppendTimelineEvent(ctx, startupID, "phase_started", phaseDay, nil)
	return err
}

func (f *fakeRunner) recorded() []phaseCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]phaseCall(nil), f.calls...)
}

// completedPhase seeds one finished journey day: a completed orchestration
// job plus the phase_completed event referencing it.
func completedPhase(t *testing.T, s *store.Store, ctx context.Context, startupID uuid.UUID, day int32) {
	t.Helper()
	job := seedJob(t, s, ctx, startupID)
	if ok, err := s.CompleteJob(ctx, job.ID, store.CompleteJobParams{Duration: time.Second}); err != nil || !ok {
		t.Fatalf("CompleteJob = %v, %v", ok, err)
	}
	appendPhaseCompleted(t, s, ctx, startupID, day, job.ID)
}

func seedJob(t *testing.T, s *store.Store, ctx context.Context, startupID uuid.UUID) *store.Job {
	t.Helper()
	if _, err := s.EnqueueJob(ctx, store.EnqueueJobParams{
		OrchestrationID: uuid.New().String(),
		StartupID:       startupID,
		SessionID:       "sess-journey",
		JobType:         "phase_execution",
		Workflow:        "sequential",
		Agents:          []string{"planner"},
		Inputs:          json.RawMessage(`{}`),
	}); err != nil {
		t.Fatalf("EnqueueJob: %v", err)
	}
	job, err := s.ClaimNextJob(ctx)
	if err != nil || job == nil {
		t.Fatalf("ClaimNextJob = %v, %v", job, err)
	}
	return job
}

func appendPhaseCompleted(t *testing.T, s *store.Store, ctx context.Context, startupID uuid.UUID, day int32, jobID uuid.UUID) {
	t.Helper()
	meta, _ := json.Marshal(store.PhaseCompletionMeta{
		OrchestrationJobID: jobID.String(),
		SessionID:          "sess-journey",
	})
	if _, err := s.AppendTimelineEvent(ctx, startupID, store.EventPhaseCompleted, day, meta); err != nil {
		t.Fatalf("AppendTimelineEvent: %v", err)
	}
}

func TestSchedulerTriggersNextPhaseExactlyOnce(t *testing.T) {
	t.Parallel()
	s := testutil.NewTestStore(t)
	ctx := context.Background()

	st, err := s.CreateStartup(ctx, "Advancing")
	if err != nil {
		t.Fatalf("CreateStartup: %v", err)
	}
	completedPhase(t, s, ctx, st.ID, 5)

	runner := &fakeRunner{store: s}
	sched := scheduler.New(s, runner, time.Minute)

	// Two consecutive cycles must produce exactly one trigger.
	sched.RunOnce(ctx)
	sched.RunOnce(ctx)

	calls := runner.recorded()
	if len(calls) != 1 {
		t.Fatalf("phase triggers = %d, want 1", len(calls))
	}
	if calls[0].day != 6 || calls[0].sessionID != "sess-journey" || calls[0].startupID != st.ID {
		t.Errorf("trigger = %+v, want day 6 for sess-journey", calls[0])
	}
}

// The re-check must hold even when the engine has not yet appended its own
// event: a day-6 event written by anyone blocks a second day-6 trigger.
func TestSchedulerReCheckBlocksDuplicateTrigger(t *testing.T) {
	t.Parallel()
	s := testutil.NewTestStore(t)
	ctx := context.Background()

	st, err := s.CreateStartup(ctx, "Raced")
	if err != nil {
		t.Fatalf("CreateStartup: %v", err)
	}
	completedPhase(t, s, ctx, st.ID, 5)

	// A concurrent actor already started day 6; the scheduler's latest-event
	// view still shows day 5 completed because the probe is by day number.
	if _, err := s.Pool().Exec(ctx, `
		INSERT INTO timeline_events (startup_id, event_type, day_number, metadata)
		VALUES ($1, 'phase_started', 6, '{}')`, st.ID); err != nil {
		t.Fatalf("insert racing event: %v", err)
	}
	// Push the phase_completed back on top of the log.
	completedPhase(t, s, ctx, st.ID, 5)

	runner := &fakeRunner{store: s}
	sched := scheduler.New(s, runner, time.Minute)
	sched.RunOnce(ctx)

	if n := len(runner.recorded()); n != 0 {
		t.Errorf("phase triggers = %d, want 0 (day 6 already underway)", n)
	}
}

func TestSchedulerLaunchesAtCeiling(t *testing.T) {
	t.Parallel()
	s := testutil.NewTestStore(t)
	ctx := context.Background()

	st, err := s.CreateStartup(ctx, "Graduating")
	if err != nil {
		t.Fatalf("CreateStartup: %v", err)
	}
	completedPhase(t, s, ctx, st.ID, 14)

	runner := &fakeRunner{store: s}
	sched := scheduler.New(s, runner, time.Minute)
	sched.RunOnce(ctx)

	if n := len(runner.recorded()); n != 0 {
		t.Errorf("phase triggers = %d, want 0 past the ceiling", n)
	}
	got, err := s.GetStartup(ctx, st.ID)
	if err != nil {
		t.Fatalf("GetStartup: %v", err)
	}
	if got.CurrentProgress() != 100 {
		t.Errorf("progress = %d, want 100", got.CurrentProgress())
	}
	if got.CurrentPhase == nil || *got.CurrentPhase != "launched" {
		t.Errorf("CurrentPhase = %v, want launched", got.CurrentPhase)
	}

	// Launched startups leave the candidate set entirely.
	sched.RunOnce(ctx)
	if n := len(runner.recorded()); n != 0 {
		t.Errorf("phase triggers after launch = %d, want 0", n)
	}
}

func TestSchedulerWaitsOnUnfinishedJob(t *testing.T) {
	t.Parallel()
	s := testutil.NewTestStore(t)
	ctx := context.Background()

	st, err := s.CreateStartup(ctx, "Waiting")
	if err != nil {
		t.Fatalf("CreateStartup: %v", err)
	}
	job := seedJob(t, s, ctx, st.ID) // claimed, still running
	appendPhaseCompleted(t, s, ctx, st.ID, 3, job.ID)

	runner := &fakeRunner{store: s}
	sched := scheduler.New(s, runner, time.Minute)
	sched.RunOnce(ctx)

	if n := len(runner.recorded()); n != 0 {
		t.Errorf("phase triggers = %d, want 0 while job still running", n)
	}
}

func TestSchedulerFailedJobHaltsJourney(t *testing.T) {
	t.Parallel()
	s := testutil.NewTestStore(t)
	ctx := context.Background()

	st, err := s.CreateStartup(ctx, "Stalled")
	if err != nil {
		t.Fatalf("CreateStartup: %v", err)
	}
	job := seedJob(t, s, ctx, st.ID)
	if ok, err := s.MarkJobFailed(ctx, job.ID, "all retries exhausted"); err != nil || !ok {
		t.Fatalf("MarkJobFailed = %v, %v", ok, err)
	}
	appendPhaseCompleted(t, s, ctx, st.ID, 7, job.ID)

	runner := &fakeRunner{store: s}
	sched := scheduler.New(s, runner, time.Minute)
	sched.RunOnce(ctx)
	sched.RunOnce(ctx)

	if n := len(runner.recorded()); n != 0 {
		t.Errorf("phase triggers = %d, want 0 after failed phase job", n)
	}
	// No auto-pause: the startup stays active, pending manual action.
	got, _ := s.GetStartup(ctx, st.ID)
	if got.Paused() {
		t.Error("startup auto-paused on failed job")
	}
}

func TestSchedulerIgnoresNonPhaseEvents(t *testing.T) {
	t.Parallel()
	s := testutil.NewTestStore(t)
	ctx := context.Background()

	st, err := s.CreateStartup(ctx, "Quiet")
	if err != nil {
		t.Fatalf("CreateStartup: %v", err)
	}
	completedPhase(t, s, ctx, st.ID, 4)
	if _, err := s.AppendTimelineEvent(ctx, st.ID, "note_added", 4, nil); err != nil {
		t.Fatalf("AppendTimelineEvent: %v", err)
	}

	runner := &fakeRunner{store: s}
	sched := scheduler.New(s, runner, time.Minute)
	sched.RunOnce(ctx)

	if n := len(runner.recorded()); n != 0 {
		t.Errorf("phase triggers = %d, want 0 when latest event is not phase_completed", n)
	}
}

func TestSchedulerPauseResume(t *testing.T) {
	t.Parallel()
	s := testutil.NewTestStore(t)
	ctx := context.Background()

	st, err := s.CreateStartup(ctx, "PausedJourney")
	if err != nil {
		t.Fatalf("CreateStartup: %v", err)
	}
	completedPhase(t, s, ctx, st.ID, 9)

	runner := &fakeRunner{store: s}
	sched := scheduler.New(s, runner, time.Minute)

	if err := sched.Pause(ctx, st.ID); err != nil {
		t.Fatalf("Pause: %v", err)
	}
	if err := sched.Pause(ctx, st.ID); err != nil {
		t.Fatalf("second Pause: %v", err)
	}

	sched.RunOnce(ctx)
	if n := len(runner.recorded()); n != 0 {
		t.Fatalf("phase triggers while paused = %d, want 0", n)
	}

	// Resume runs the per-startup check immediately, no cycle needed.
	if err := sched.Resume(ctx, st.ID); err != nil {
		t.Fatalf("Resume: %v", err)
	}
	calls := runner.recorded()
	if len(calls) != 1 || calls[0].day != 10 {
		t.Fatalf("triggers after resume = %+v, want one day-10 trigger", calls)
	}

	if err := sched.Resume(ctx, st.ID); err != nil {
		t.Fatalf("second Resume: %v", err)
	}
	if n := len(runner.recorded()); n != 1 {
		t.Errorf("triggers after idempotent resume = %d, want 1", n)
	}
}
