package announcements

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/portal-sekolah/portal-sekolah/internal/shared"
)

// ListFilter narrows which announcements a listing returns.
type ListFilter struct {
	// PublishedOnly hides drafts and archived entries.
	PublishedOnly bool
	// DraftsBy additionally includes unpublished entries of one author.
	DraftsBy string
}

// Repository defines data access for announcements.
type Repository interface {
	List(ctx context.Context, filter ListFilter) ([]Announcement, error)
	Get(ctx context.Context, id string) (Announcement, error)
	Create(ctx context.Context, a Announcement) (Announcement, error)
	Update(ctx context.Context, a Announcement) error
	Delete(ctx context.Context, id string) error
	SetStatus(ctx context.Context, id, status string) error
	CountPublished(ctx context.Context) (int, error)
}

// PGRepository provides PostgreSQL backed persistence.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

const announcementColumns = `a.id, a.title, a.body, a.status, a.created_by, COALESCE(u.name, ''), a.published_at, a.created_at, a.updated_at`

func scanAnnouncement(row pgx.Row) (Announcement, error) {
	var a Announcement
	err := row.Scan(&a.ID, &a.Title, &a.Body, &a.Status, &a.CreatedBy,
		&a.CreatedByName, &a.PublishedAt, &a.CreatedAt, &a.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Announcement{}, shared.ErrNotFound
	}
	return a, err
}

// List returns announcements matching the filter, newest first.
func (r *PGRepository) List(ctx context.Context, filter ListFilter) ([]Announcement, error) {
	query := `SELECT ` + announcementColumns + `
		FROM announcements a
		LEFT JOIN users u ON u.id = a.created_by`
	var args []any
	switch {
	case filter.PublishedOnly && filter.DraftsBy != "":
		query += ` WHERE a.status = 'published' OR a.created_by = $1`
		args = append(args, filter.DraftsBy)
	case filter.PublishedOnly:
		query += ` WHERE a.status = 'published'`
	}
	query += ` ORDER BY COALESCE(a.published_at, a.created_at) DESC`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Announcement
	for rows.Next() {
		item, err := scanAnnouncement(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// Get fetches one announcement.
func (r *PGRepository) Get(ctx context.Context, id string) (Announcement, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+announcementColumns+`
		FROM announcements a
		LEFT JOIN users u ON u.id = a.created_by
		WHERE a.id = $1`, id)
	return scanAnnouncement(row)
}

// Create inserts a draft and returns it with generated fields.
func (r *PGRepository) Create(ctx context.Context, a Announcement) (Announcement, error) {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	row := r.pool.QueryRow(ctx, `
		WITH inserted AS (
			INSERT INTO announcements (id, title, body, status, created_by)
			VALUES ($1, $2, $3, $4, $5)
			RETURNING *
		)
		SELECT `+announcementColumns+` FROM inserted a
		LEFT JOIN users u ON u.id = a.created_by`,
		a.ID, a.Title, a.Body, a.Status, a.CreatedBy)
	return scanAnnouncement(row)
}

// Update rewrites title and body.
func (r *PGRepository) Update(ctx context.Context, a Announcement) error {
	return r.exec(ctx, `UPDATE announcements SET title = $2, body = $3, updated_at = NOW() WHERE id = $1`,
		a.ID, a.Title, a.Body)
}

// Delete removes the announcement.
func (r *PGRepository) Delete(ctx context.Context, id string) error {
	return r.exec(ctx, `DELETE FROM announcements WHERE id = $1`, id)
}

// SetStatus moves the announcement through its lifecycle. Publishing stamps
// published_at once; re-publishing keeps the original timestamp.
func (r *PGRepository) SetStatus(ctx context.Context, id, status string) error {
	return r.exec(ctx, `UPDATE announcements
		SET status = $2,
		    published_at = CASE WHEN $2 = 'published' THEN COALESCE(published_at, NOW()) ELSE published_at END,
		    updated_at = NOW()
		WHERE id = $1`, id, status)
}

// CountPublished returns the number of published announcements.
func (r *PGRepository) CountPublished(ctx context.Context) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM announcements WHERE status = 'published'`).Scan(&count)
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
