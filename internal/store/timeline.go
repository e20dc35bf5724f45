// ABOUTME: Store methods for the append-only timeline_events journey log.
// ABOUTME: The scheduler reads the latest event per startup; phase executors append.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// EventPhaseCompleted marks that a journey day's orchestration job has
// concluded. Its metadata must carry orchestrationJobId and sessionId.
const EventPhaseCompleted = "phase_completed"

// TimelineEvent is one row of the append-only journey log.
type TimelineEvent struct {
	ID        int64
	StartupID uuid.UUID
	EventType string
	DayNumber int32
	Metadata  json.RawMessage
	CreatedAt time.Time
}

// PhaseCompletionMeta is the metadata payload of a phase_completed event.
type PhaseCompletionMeta struct {
	OrchestrationJobID string `json:"orchestrationJobId"`
	SessionID          string `json:"sessionId"`
}

// LatestTimelineEvent returns the most recent event (highest id) for the
// startup, or (nil, nil) when the startup has no events yet.
func (s *Store) LatestTimelineEvent(ctx context.Context, startupID uuid.UUID) (*TimelineEvent, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, startup_id, event_type, day_number, metadata, created_at
		FROM timeline_events
		WHERE startup_id = $1
		ORDER BY id DESC
		LIMIT 1`,
		startupID,
	)
	var ev TimelineEvent
	err := row.Scan(&ev.ID, &ev.StartupID, &ev.EventType, &ev.DayNumber,
		&ev.Metadata, &ev.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("latest timeline event for %s: %w", startupID, err)
	}
	return &ev, nil
}

// PhaseEventExists reports whether any event for the given journey day has
// already been recorded for the startup. The scheduler checks this
// immediately before triggering a phase so a double-length cycle cannot
// start the same day twice.
func (s *Store) PhaseEventExists(ctx context.Context, startupID uuid.UUID, dayNumber int32) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM timeline_events
			WHERE startup_id = $1 AND day_number = $2
		)`,
		startupID, dayNumber,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("phase event exists %s day %d: %w", startupID, dayNumber, err)
	}
	return exists, nil
}

// AppendTimelineEvent appends one event. Owned by the phase-execution
// collaborator in production; exposed here for fixtures and the enqueuer
// surface.
func (s *Store) AppendTimelineEvent(ctx context.Context, startupID uuid.UUID, eventType string, dayNumber int32, metadata json.RawMessage) (*TimelineEvent, error) {
	if metadata == nil {
		metadata = json.RawMessage(`{}`)
	}
	row := s.pool.QueryRow(ctx, `
		INSERT INTO timeline_events (startup_id, event_type, day_number, metadata)
		VALUES ($1, $2, $3, $4)
		RETURNING id, startup_id, event_type, day_number, metadata, created_at`,
		startupID, eventType, dayNumber, metadata,
	)
	var ev TimelineEvent
	err := row.Scan(&ev.ID, &ev.StartupID, &ev.EventType, &ev.DayNumber,
		&ev.Metadata, &ev.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("append timeline event: %w", err)
	}
	return &ev, nil
}
