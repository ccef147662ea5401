package calendar

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/portal-sekolah/portal-sekolah/internal/shared"
)

// Repository defines data access for calendar events.
type Repository interface {
	ListBetween(ctx context.Context, from, to time.Time) ([]Event, error)
	ListStartingBetween(ctx context.Context, from, to time.Time) ([]Event, error)
	Get(ctx context.Context, id string) (Event, error)
	Create(ctx context.Context, event Event) (Event, error)
	Update(ctx context.Context, event Event) error
	Delete(ctx context.Context, id string) error
	SetStatus(ctx context.Context, id, status string) error
	CountUpcoming(ctx context.Context, from time.Time) (int, error)
}

// PGRepository provides PostgreSQL backed persistence.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

const eventColumns = `id, title, description, location, starts_at, ends_at, status, created_by, created_at, updated_at`

func scanEvent(row pgx.Row) (Event, error) {
	var event Event
	err := row.Scan(&event.ID, &event.Title, &event.Description, &event.Location,
		&event.StartsAt, &event.EndsAt, &event.Status, &event.CreatedBy, &event.CreatedAt, &event.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Event{}, shared.ErrNotFound
	}
	return event, err
}

// ListBetween returns events overlapping the window, earliest first.
func (r *PGRepository) ListBetween(ctx context.Context, from, to time.Time) ([]Event, error) {
	return r.list(ctx, `SELECT `+eventColumns+` FROM calendar_events
		WHERE starts_at < $2 AND ends_at > $1
		ORDER BY starts_at ASC`, from, to)
}

// ListStartingBetween returns events whose start falls inside the window.
// The reminder scan uses this to pick up tomorrow's events exactly once.
func (r *PGRepository) ListStartingBetween(ctx context.Context, from, to time.Time) ([]Event, error) {
	return r.list(ctx, `SELECT `+eventColumns+` FROM calendar_events
		WHERE status = 'scheduled' AND starts_at >= $1 AND starts_at < $2
		ORDER BY starts_at ASC`, from, to)
}

func (r *PGRepository) list(ctx context.Context, query string, args ...any) ([]Event, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Event
	for rows.Next() {
		item, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// Get fetches one event.
func (r *PGRepository) Get(ctx context.Context, id string) (Event, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+eventColumns+` FROM calendar_events WHERE id = $1`, id)
	return scanEvent(row)
}

// Create inserts an event and returns it with generated fields.
func (r *PGRepository) Create(ctx context.Context, event Event) (Event, error) {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	row := r.pool.QueryRow(ctx, `
		INSERT INTO calendar_events (id, title, description, location, starts_at, ends_at, status, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING `+eventColumns,
		event.ID, event.Title, event.Description, event.Location,
		event.StartsAt, event.EndsAt, event.Status, event.CreatedBy)
	return scanEvent(row)
}

// Update rewrites the editable fields.
func (r *PGRepository) Update(ctx context.Context, event Event) error {
	return r.exec(ctx, `UPDATE calendar_events
		SET title = $2, description = $3, location = $4, starts_at = $5, ends_at = $6, updated_at = NOW()
		WHERE id = $1`,
		event.ID, event.Title, event.Description, event.Location, event.StartsAt, event.EndsAt)
}

// Delete removes the event.
func (r *PGRepository) Delete(ctx context.Context, id string) error {
	return r.exec(ctx, `DELETE FROM calendar_events WHERE id = $1`, id)
}

// SetStatus cancels or restores the event.
func (r *PGRepository) SetStatus(ctx context.Context, id, status string) error {
	return r.exec(ctx, `UPDATE calendar_events SET status = $2, updated_at = NOW() WHERE id = $1`, id, status)
}

// CountUpcoming returns the number of scheduled events from the given time.
func (r *PGRepository) CountUpcoming(ctx context.Context, from time.Time) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM calendar_events WHERE status = 'scheduled' AND starts_at >= $1`, from).Scan(&count)
	return count, err
}

func (r *PGRepository) exec(ctx context.Context, sql string, args ...any) error {
	tag, err := r.pool.Exec(ctx, sql, args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}
