package users

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/portal-sekolah/portal-sekolah/internal/shared"
)

// ErrEmailTaken indicates the email already belongs to another account.
var ErrEmailTaken = errors.New("email already registered")

// Repository defines data access methods for account management.
type Repository interface {
	List(ctx context.Context) ([]Account, error)
	Get(ctx context.Context, id string) (Account, error)
	Create(ctx context.Context, account Account, passwordHash string) (Account, error)
	UpdateRole(ctx context.Context, id string, role string) error
	UpdateOverride(ctx context.Context, id string, override string) error
	SetActive(ctx context.Context, id string, active bool) error
}

// PGRepository provides PostgreSQL backed persistence.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

const accountColumns = `id, email, name, role, COALESCE(permission_override, ''), is_active, created_at, updated_at`

func scanAccount(row pgx.Row) (Account, error) {
	var account Account
	var role string
	err := row.Scan(&account.ID, &account.Email, &account.Name, &role,
		&account.PermissionOverride, &account.IsActive, &account.CreatedAt, &account.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Account{}, shared.ErrNotFound
	}
	if err != nil {
		return Account{}, err
	}
	// Stored roles predate validation; surface them raw and let the service decide.
	account.Role = roleFromStorage(role)
	return account, nil
}

// List returns every account, newest first. Display ordering is the
// service's concern.
func (r *PGRepository) List(ctx context.Context) ([]Account, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+accountColumns+` FROM users ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var accounts []Account
	for rows.Next() {
		account, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, account)
	}
	return accounts, rows.Err()
}

// Get fetches one account by id.
func (r *PGRepository) Get(ctx context.Context, id string) (Account, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+accountColumns+` FROM users WHERE id = $1`, id)
	return scanAccount(row)
}

// Create inserts a new account and returns it with generated fields.
func (r *PGRepository) Create(ctx context.Context, account Account, passwordHash string) (Account, error) {
	if account.ID == "" {
		account.ID = uuid.NewString()
	}
	row := r.pool.QueryRow(ctx, `
		INSERT INTO users (id, email, name, password_hash, role, permission_override, is_active)
		VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), $7)
		RETURNING `+accountColumns,
		account.ID, account.Email, account.Name, passwordHash,
		string(account.Role), account.PermissionOverride, account.IsActive)
	created, err := scanAccount(row)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return Account{}, ErrEmailTaken
	}
	return created, err
}

// UpdateRole stores a new role for the account.
func (r *PGRepository) UpdateRole(ctx context.Context, id string, role string) error {
	return r.exec(ctx, `UPDATE users SET role = $2, updated_at = NOW() WHERE id = $1`, id, role)
}

// UpdateOverride stores the serialized permission override. Empty clears it.
func (r *PGRepository) UpdateOverride(ctx context.Context, id string, override string) error {
	return r.exec(ctx, `UPDATE users SET permission_override = NULLIF($2, ''), updated_at = NOW() WHERE id = $1`, id, override)
}

// SetActive toggles whether the account may sign in.
func (r *PGRepository) SetActive(ctx context.Context, id string, active bool) error {
	return r.exec(ctx, `UPDATE users SET is_active = $2, updated_at = NOW() WHERE id = $1`, id, active)
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
