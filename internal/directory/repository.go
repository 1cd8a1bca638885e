package directory

import (
	"context"
	"database/sql"
	"errors"
)

// Repository is the persistence contract for users.
type Repository interface {
	Get(ctx context.Context, id string) (User, error)
	// ListByRole lists active users with role; empty workspaceID lists across tenants.
	ListByRole(ctx context.Context, workspaceID, role string) ([]User, error)
	ListStoreUsers(ctx context.Context, workspaceID, storeID string) ([]User, error)
	ListWorkspace(ctx context.Context, workspaceID string) ([]User, error)
	Upsert(ctx context.Context, u User) (User, error)
}

type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo { return &PostgresRepo{db: db} }

const userColumns = `id, workspace_id, COALESCE(store_id, ''), role, name, COALESCE(email, ''), COALESCE(phone, ''), is_active, created_at, updated_at`

func scanUser(row interface{ Scan(...any) error }) (User, error) {
	var u User
	err := row.Scan(&u.ID, &u.WorkspaceID, &u.StoreID, &u.Role, &u.Name, &u.Email, &u.Phone, &u.IsActive, &u.CreatedAt, &u.UpdatedAt)
	return u, err
}

func (r *PostgresRepo) Get(ctx context.Context, id string) (User, error) {
	u, err := scanUser(r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return User{}, ErrUserNotFound
		}
		return User{}, err
	}
	return u, nil
}

func (r *PostgresRepo) ListByRole(ctx context.Context, workspaceID, role string) ([]User, error) {
	const q = `SELECT ` + userColumns + ` FROM users
WHERE role = $1 AND is_active AND ($2 = '' OR workspace_id = $2)
ORDER BY created_at`
	return r.list(ctx, q, role, workspaceID)
}

func (r *PostgresRepo) ListStoreUsers(ctx context.Context, workspaceID, storeID string) ([]User, error) {
	const q = `SELECT ` + userColumns + ` FROM users
WHERE workspace_id = $1 AND store_id = $2 AND is_active
ORDER BY created_at`
	return r.list(ctx, q, workspaceID, storeID)
}

func (r *PostgresRepo) ListWorkspace(ctx context.Context, workspaceID string) ([]User, error) {
	return r.list(ctx, `SELECT `+userColumns+` FROM users WHERE workspace_id = $1 ORDER BY created_at`, workspaceID)
}

func (r *PostgresRepo) Upsert(ctx context.Context, u User) (User, error) {
	const q = `
INSERT INTO users (id, workspace_id, store_id, role, name, email, phone, is_active, created_at, updated_at)
VALUES ($1, $2, NULLIF($3, ''), $4, $5, NULLIF($6, ''), NULLIF($7, ''), $8, $9, $10)
ON CONFLICT (id) DO UPDATE SET
  store_id = EXCLUDED.store_id,
  role = EXCLUDED.role,
  name = EXCLUDED.name,
  email = EXCLUDED.email,
  phone = EXCLUDED.phone,
  is_active = EXCLUDED.is_active,
  updated_at = EXCLUDED.updated_at
RETURNING ` + userColumns
	return scanUser(r.db.QueryRowContext(ctx, q, u.ID, u.WorkspaceID, u.StoreID, u.Role, u.Name, u.Email, u.Phone, u.IsActive, u.CreatedAt, u.UpdatedAt))
}

func (r *PostgresRepo) list(ctx context.Context, q string, args ...any) ([]User, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}
