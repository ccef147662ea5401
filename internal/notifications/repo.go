package notifications

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/portal-sekolah/portal-sekolah/internal/shared"
)

// Repository defines data access for notifications.
type Repository interface {
	ListForUser(ctx context.Context, userID string, limit int) ([]Notification, error)
	CountUnread(ctx context.Context, userID string) (int, error)
	Insert(ctx context.Context, n Notification) error
	InsertForAllActiveUsers(ctx context.Context, template Notification) (int, error)
	MarkRead(ctx context.Context, userID, id string) error
	MarkAllRead(ctx context.Context, userID string) error
	DeleteOlderThan(ctx context.Context, days int) (int, error)
}

// PGRepository provides PostgreSQL backed persistence.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

const notificationColumns = `id, user_id, kind, title, body, link, read_at, created_at`

// ListForUser returns the user's notifications, newest first.
func (r *PGRepository) ListForUser(ctx context.Context, userID string, limit int) ([]Notification, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.pool.Query(ctx, `SELECT `+notificationColumns+`
		FROM notifications WHERE user_id = $1
		ORDER BY created_at DESC LIMIT $2`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Notification
	for rows.Next() {
		var n Notification
		if err := rows.Scan(&n.ID, &n.UserID, &n.Kind, &n.Title, &n.Body, &n.Link, &n.ReadAt, &n.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, n)
	}
	return items, rows.Err()
}

// CountUnread returns the number of unread notifications for the user.
func (r *PGRepository) CountUnread(ctx context.Context, userID string) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM notifications WHERE user_id = $1 AND read_at IS NULL`, userID).Scan(&count)
	return count, err
}

// Insert stores one notification.
func (r *PGRepository) Insert(ctx context.Context, n Notification) error {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	_, err := r.pool.Exec(ctx, `
		INSERT INTO notifications (id, user_id, kind, title, body, link)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		n.ID, n.UserID, n.Kind, n.Title, n.Body, n.Link)
	return err
}

// InsertForAllActiveUsers fans the template out to every active account in
// one statement and reports how many rows were written.
func (r *PGRepository) InsertForAllActiveUsers(ctx context.Context, template Notification) (int, error) {
	tag, err := r.pool.Exec(ctx, `
		INSERT INTO notifications (id, user_id, kind, title, body, link)
		SELECT gen_random_uuid(), u.id, $1, $2, $3, $4
		FROM users u WHERE u.is_active`,
		template.Kind, template.Title, template.Body, template.Link)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

// MarkRead stamps one notification as read. The user scoping keeps one user
// from acknowledging another's inbox.
func (r *PGRepository) MarkRead(ctx context.Context, userID, id string) error {
	tag, err := r.pool.Exec(ctx, `UPDATE notifications SET read_at = NOW()
		WHERE id = $1 AND user_id = $2 AND read_at IS NULL`, id, userID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// MarkAllRead stamps the whole inbox as read.
func (r *PGRepository) MarkAllRead(ctx context.Context, userID string) error {
	_, err := r.pool.Exec(ctx, `UPDATE notifications SET read_at = NOW()
		WHERE user_id = $1 AND read_at IS NULL`, userID)
	return err
}

// DeleteOlderThan prunes old notifications and returns the removed count.
func (r *PGRepository) DeleteOlderThan(ctx context.Context, days int) (int, error) {
	tag, err := r.pool.Exec(ctx,
		`DELETE FROM notifications WHERE created_at < NOW() - make_interval(days => $1)`, days)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}
