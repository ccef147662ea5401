package training

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/portal-sekolah/portal-sekolah/internal/shared"
)

// ListFilter narrows which videos a listing returns.
type ListFilter struct {
	PublishedOnly bool
	DraftsBy      string
}

// Repository defines data access for training videos.
type Repository interface {
	List(ctx context.Context, filter ListFilter) ([]Video, error)
	Get(ctx context.Context, id string) (Video, error)
	Create(ctx context.Context, video Video) (Video, error)
	Update(ctx context.Context, video Video) error
	Delete(ctx context.Context, id string) error
	SetStatus(ctx context.Context, id, status string) error
}

// PGRepository provides PostgreSQL backed persistence.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

const videoColumns = `id, title, description, video_url, duration_minutes, status, created_by, created_at, updated_at`

func scanVideo(row pgx.Row) (Video, error) {
	var video Video
	err := row.Scan(&video.ID, &video.Title, &video.Description, &video.VideoURL,
		&video.DurationMinutes, &video.Status, &video.CreatedBy, &video.CreatedAt, &video.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Video{}, shared.ErrNotFound
	}
	return video, err
}

// List returns videos matching the filter, newest first.
func (r *PGRepository) List(ctx context.Context, filter ListFilter) ([]Video, error) {
	query := `SELECT ` + videoColumns + ` FROM training_videos`
	var args []any
	switch {
	case filter.PublishedOnly && filter.DraftsBy != "":
		query += ` WHERE status = 'published' OR created_by = $1`
		args = append(args, filter.DraftsBy)
	case filter.PublishedOnly:
		query += ` WHERE status = 'published'`
	}
	query += ` ORDER BY created_at DESC`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Video
	for rows.Next() {
		item, err := scanVideo(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// Get fetches one video.
func (r *PGRepository) Get(ctx context.Context, id string) (Video, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+videoColumns+` FROM training_videos WHERE id = $1`, id)
	return scanVideo(row)
}

// Create inserts a video and returns it with generated fields.
func (r *PGRepository) Create(ctx context.Context, video Video) (Video, error) {
	if video.ID == "" {
		video.ID = uuid.NewString()
	}
	row := r.pool.QueryRow(ctx, `
		INSERT INTO training_videos (id, title, description, video_url, duration_minutes, status, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING `+videoColumns,
		video.ID, video.Title, video.Description, video.VideoURL,
		video.DurationMinutes, video.Status, video.CreatedBy)
	return scanVideo(row)
}

// Update rewrites the editable fields.
func (r *PGRepository) Update(ctx context.Context, video Video) error {
	return r.exec(ctx, `UPDATE training_videos
		SET title = $2, description = $3, video_url = $4, duration_minutes = $5, updated_at = NOW()
		WHERE id = $1`,
		video.ID, video.Title, video.Description, video.VideoURL, video.DurationMinutes)
}

// Delete removes the video.
func (r *PGRepository) Delete(ctx context.Context, id string) error {
	return r.exec(ctx, `DELETE FROM training_videos WHERE id = $1`, id)
}

// SetStatus moves the video through its lifecycle.
func (r *PGRepository) SetStatus(ctx context.Context, id, status string) error {
	return r.exec(ctx, `UPDATE training_videos SET status = $2, updated_at = NOW() WHERE id = $1`, id, status)
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
