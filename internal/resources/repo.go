package resources

import (
	"context"
	"errors"
	"strconv"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/portal-sekolah/portal-sekolah/internal/shared"
)

// ListFilter narrows which resources a listing returns.
type ListFilter struct {
	ActiveOnly bool
	DraftsBy   string
	Category   string
}

// Repository defines data access for resources.
type Repository interface {
	List(ctx context.Context, filter ListFilter) ([]Resource, error)
	Get(ctx context.Context, id string) (Resource, error)
	Create(ctx context.Context, resource Resource) (Resource, error)
	Update(ctx context.Context, resource Resource) error
	Delete(ctx context.Context, id string) error
	SetStatus(ctx context.Context, id, status string) error
	Count(ctx context.Context, activeOnly bool) (int, error)
}

// PGRepository provides PostgreSQL backed persistence.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

const resourceColumns = `id, title, description, url, category, status, created_by, created_at, updated_at`

func scanResource(row pgx.Row) (Resource, error) {
	var resource Resource
	err := row.Scan(&resource.ID, &resource.Title, &resource.Description, &resource.URL,
		&resource.Category, &resource.Status, &resource.CreatedBy, &resource.CreatedAt, &resource.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Resource{}, shared.ErrNotFound
	}
	return resource, err
}

// List returns resources matching the filter, alphabetical by title.
func (r *PGRepository) List(ctx context.Context, filter ListFilter) ([]Resource, error) {
	query := `SELECT ` + resourceColumns + ` FROM resources WHERE 1=1`
	var args []any
	arg := func(v any) string {
		args = append(args, v)
		return "$" + strconv.Itoa(len(args))
	}
	switch {
	case filter.ActiveOnly && filter.DraftsBy != "":
		query += ` AND (status = 'active' OR created_by = ` + arg(filter.DraftsBy) + `)`
	case filter.ActiveOnly:
		query += ` AND status = 'active'`
	}
	if filter.Category != "" {
		query += ` AND category = ` + arg(filter.Category)
	}
	query += ` ORDER BY title ASC`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Resource
	for rows.Next() {
		item, err := scanResource(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// Get fetches one resource.
func (r *PGRepository) Get(ctx context.Context, id string) (Resource, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+resourceColumns+` FROM resources WHERE id = $1`, id)
	return scanResource(row)
}

// Create inserts a resource and returns it with generated fields.
func (r *PGRepository) Create(ctx context.Context, resource Resource) (Resource, error) {
	if resource.ID == "" {
		resource.ID = uuid.NewString()
	}
	row := r.pool.QueryRow(ctx, `
		INSERT INTO resources (id, title, description, url, category, status, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING `+resourceColumns,
		resource.ID, resource.Title, resource.Description, resource.URL,
		resource.Category, resource.Status, resource.CreatedBy)
	return scanResource(row)
}

// Update rewrites the editable fields.
func (r *PGRepository) Update(ctx context.Context, resource Resource) error {
	return r.exec(ctx, `UPDATE resources
		SET title = $2, description = $3, url = $4, category = $5, updated_at = NOW()
		WHERE id = $1`,
		resource.ID, resource.Title, resource.Description, resource.URL, resource.Category)
}

// Delete removes the resource.
func (r *PGRepository) Delete(ctx context.Context, id string) error {
	return r.exec(ctx, `DELETE FROM resources WHERE id = $1`, id)
}

// SetStatus moves the resource through its lifecycle.
func (r *PGRepository) SetStatus(ctx context.Context, id, status string) error {
	return r.exec(ctx, `UPDATE resources SET status = $2, updated_at = NOW() WHERE id = $1`, id, status)
}

// Count returns how many resources exist, optionally active only.
func (r *PGRepository) Count(ctx context.Context, activeOnly bool) (int, error) {
	query := `SELECT COUNT(*) FROM resources`
	if activeOnly {
		query += ` WHERE status = 'active'`
	}
	var count int
	err := r.pool.QueryRow(ctx, query).Scan(&count)
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
