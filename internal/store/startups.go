// ABOUTME: Store methods for the startups table — scheduler candidates, pause/resume, launch.
// ABOUTME: Legacy rows may carry NULL progress/is_paused; filters normalize NULL at the query boundary.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Startup is the long-lived journey state machine the scheduler drives.
// Progress and IsPaused are pointers because legacy rows predate both
// columns; NULL reads as "not paused" and "progress unset".
type Startup struct {
	ID             uuid.UUID
	Name           string
	Progress       *int32
	CurrentPhase   *string
	IsPaused       *bool
	PausedAt       *time.Time
	PausedProgress *int32
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Paused reports the normalized pause flag (NULL is false).
func (st *Startup) Paused() bool {
	return st.IsPaused != nil && *st.IsPaused
}

// CurrentProgress reports the normalized progress (NULL is 0).
func (st *Startup) CurrentProgress() int32 {
	if st.Progress == nil {
		return 0
	}
	return *st.Progress
}

const startupColumns = `
	id, name, progress, current_phase, is_paused, paused_at, paused_progress,
	created_at, updated_at`

// ActiveStartups returns the scheduler's candidate set: not paused and not
// yet launched. The NULL normalization lives in the WHERE clause, matching
// the partial index, so legacy rows are included without an in-memory pass.
func (s *Store) ActiveStartups(ctx context.Context) ([]*Startup, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT`+startupColumns+`
		FROM startups
		WHERE (is_paused IS NULL OR is_paused = false)
		  AND (progress IS NULL OR progress < 100)
		ORDER BY created_at ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("active startups: %w", err)
	}
	defer rows.Close()

	var startups []*Startup
	for rows.Next() {
		st, err := scanStartup(rows)
		if err != nil {
			return nil, fmt.Errorf("scan startup row: %w", err)
		}
		startups = append(startups, st)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate startup rows: %w", err)
	}
	return startups, nil
}

// GetStartup returns the startup with the given id, or (nil, nil) if not found.
func (s *Store) GetStartup(ctx context.Context, id uuid.UUID) (*Startup, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT`+startupColumns+` FROM startups WHERE id = $1`, id)
	st, err := scanStartup(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get startup %s: %w", id, err)
	}
	return st, nil
}

// CreateStartup inserts a new startup at the beginning of its journey.
// Journeys are normally created by the onboarding flow; tests and fixtures
// use this directly.
func (s *Store) CreateStartup(ctx context.Context, name string) (*Startup, error) {
	row := s.pool.QueryRow(ctx, `
		INSERT INTO startups (name, progress, current_phase)
		VALUES ($1, 0, 'day_1')
		RETURNING`+startupColumns,
		name,
	)
	st, err := scanStartup(row)
	if err != nil {
		return nil, fmt.Errorf("create startup: %w", err)
	}
	return st, nil
}

// PauseStartup sets the pause flag, stamping paused_at and snapshotting the
// current progress. Idempotent: a false return means the startup was
// already paused (or missing) and nothing changed — pausedAt keeps its
// original stamp.
func (s *Store) PauseStartup(ctx context.Context, id uuid.UUID) (bool, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE startups
		SET is_paused = true, paused_at = now(),
		    paused_progress = COALESCE(progress, 0), updated_at = now()
		WHERE id = $1 AND (is_paused IS NULL OR is_paused = false)`,
		id,
	)
	if err != nil {
		return false, fmt.Errorf("pause startup %s: %w", id, err)
	}
	return tag.RowsAffected() > 0, nil
}

// ResumeStartup clears the pause flag and returns the fresh row snapshot so
// the caller can act on it without a redundant re-fetch. Idempotent: a nil
// snapshot means the startup was not paused and nothing changed.
func (s *Store) ResumeStartup(ctx context.Context, id uuid.UUID) (*Startup, error) {
	row := s.pool.QueryRow(ctx, `
		UPDATE startups
		SET is_paused = false, paused_at = NULL, paused_progress = NULL,
		    updated_at = now()
		WHERE id = $1 AND is_paused = true
		RETURNING`+startupColumns,
		id,
	)
	st, err := scanStartup(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("resume startup %s: %w", id, err)
	}
	return st, nil
}

// MarkStartupLaunched records terminal journey completion. A launched
// startup never reappears in ActiveStartups.
func (s *Store) MarkStartupLaunched(ctx context.Context, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE startups
		SET progress = 100, current_phase = 'launched', updated_at = now()
		WHERE id = $1`,
		id,
	)
	if err != nil {
		return fmt.Errorf("mark startup launched %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("mark startup launched %s: not found", id)
	}
	return nil
}

func scanStartup(row pgx.Row) (*Startup, error) {
	var st Startup
	err := row.Scan(
		&st.ID, &st.Name, &st.Progress, &st.CurrentPhase, &st.IsPaused,
		&st.PausedAt, &st.PausedProgress, &st.CreatedAt, &st.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &st, nil
}
