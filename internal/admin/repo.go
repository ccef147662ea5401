package admin

import (
	"context"
	"strconv"

	"github.com/jackc/pgx/v5/pgxpool"
)

// ListFilter narrows the audit trail listing.
type ListFilter struct {
	Entity  string
	Page    int
	PerPage int
}

// Repository defines read access to the audit trail.
type Repository interface {
	List(ctx context.Context, filter ListFilter) ([]AuditEntry, int, error)
}

// PGRepository provides PostgreSQL backed access.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

// List returns one page of audit entries, newest first, plus the filtered
// total for pagination.
func (r *PGRepository) List(ctx context.Context, filter ListFilter) ([]AuditEntry, int, error) {
	if filter.PerPage <= 0 {
		filter.PerPage = 20
	}
	if filter.Page <= 0 {
		filter.Page = 1
	}

	where := ``
	var args []any
	arg := func(v any) string {
		args = append(args, v)
		return "$" + strconv.Itoa(len(args))
	}
	if filter.Entity != "" {
		where = ` WHERE a.entity = ` + arg(filter.Entity)
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM audit_logs a`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT a.id, a.actor_id, COALESCE(u.name, ''), a.action, a.entity, a.entity_id, COALESCE(a.meta::text, ''), a.occurred_at
		FROM audit_logs a
		LEFT JOIN users u ON u.id = a.actor_id` + where + `
		ORDER BY a.occurred_at DESC
		LIMIT ` + arg(filter.PerPage) + ` OFFSET ` + arg((filter.Page-1)*filter.PerPage)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []AuditEntry
	for rows.Next() {
		var e AuditEntry
		if err := rows.Scan(&e.ID, &e.ActorID, &e.ActorName, &e.Action, &e.Entity, &e.EntityID, &e.Meta, &e.OccurredAt); err != nil {
			return nil, 0, err
		}
		items = append(items, e)
	}
	return items, total, rows.Err()
}
