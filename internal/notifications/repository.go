package notifications

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"time"
)

// ListFilter narrows a user's notification list. Empty fields match everything.
type ListFilter struct {
	WorkspaceID string
	UserID      string
	Status      Status
	Type        Type
	Limit       int
	Offset      int
}

type Repository interface {
	Create(ctx context.Context, n Notification) (Notification, error)
	Get(ctx context.Context, workspaceID, userID, id string) (Notification, error)
	List(ctx context.Context, f ListFilter) ([]Notification, error)
	MarkRead(ctx context.Context, workspaceID, userID, id string, at time.Time) (Notification, error)
	MarkAllRead(ctx context.Context, workspaceID, userID string, at time.Time) (int64, error)
	UnreadCount(ctx context.Context, workspaceID, userID string) (int, error)
	Delete(ctx context.Context, workspaceID, userID, id string) error

	GetSettings(ctx context.Context, workspaceID, userID string) (Settings, error)
	SaveSettings(ctx context.Context, s Settings) (Settings, error)
}

type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo { return &PostgresRepo{db: db} }

const notificationColumns = `id, workspace_id, COALESCE(store_id, ''), user_id, type, priority, status, title, message,
COALESCE(action_url, ''), COALESCE(action_text, ''), is_persistent, COALESCE(metadata::text, ''), read_at, expires_at, created_at`

func scanNotification(row interface{ Scan(...any) error }) (Notification, error) {
	var (
		n         Notification
		readAt    sql.NullTime
		expiresAt sql.NullTime
	)
	err := row.Scan(&n.ID, &n.WorkspaceID, &n.StoreID, &n.UserID, &n.Type, &n.Priority, &n.Status, &n.Title, &n.Message,
		&n.ActionURL, &n.ActionText, &n.IsPersistent, &n.Metadata, &readAt, &expiresAt, &n.CreatedAt)
	if err != nil {
		return Notification{}, err
	}
	if readAt.Valid {
		t := readAt.Time
		n.ReadAt = &t
	}
	if expiresAt.Valid {
		t := expiresAt.Time
		n.ExpiresAt = &t
	}
	return n, nil
}

func (r *PostgresRepo) Create(ctx context.Context, n Notification) (Notification, error) {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO notifications (id, workspace_id, store_id, user_id, type, priority, status, title, message, action_url, action_text, is_persistent, metadata, expires_at, created_at)
VALUES ($1, $2, NULLIF($3, ''), $4, $5, $6, $7, $8, $9, NULLIF($10, ''), NULLIF($11, ''), $12, NULLIF($13, '')::jsonb, $14, $15)`,
		n.ID, n.WorkspaceID, n.StoreID, n.UserID, string(n.Type), string(n.Priority), string(n.Status), n.Title, n.Message,
		n.ActionURL, n.ActionText, n.IsPersistent, n.Metadata, n.ExpiresAt, n.CreatedAt,
	)
	if err != nil {
		return Notification{}, err
	}
	return n, nil
}

func (r *PostgresRepo) Get(ctx context.Context, workspaceID, userID, id string) (Notification, error) {
	n, err := scanNotification(r.db.QueryRowContext(ctx,
		`SELECT `+notificationColumns+` FROM notifications WHERE id = $1 AND workspace_id = $2 AND user_id = $3`,
		id, workspaceID, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return Notification{}, ErrNotFound
	}
	return n, err
}

func (r *PostgresRepo) List(ctx context.Context, f ListFilter) ([]Notification, error) {
	var (
		where = []string{"workspace_id = $1", "user_id = $2"}
		args  = []any{f.WorkspaceID, f.UserID}
	)
	if f.Status != "" {
		args = append(args, string(f.Status))
		where = append(where, "status = $"+strconv.Itoa(len(args)))
	}
	if f.Type != "" {
		args = append(args, string(f.Type))
		where = append(where, "type = $"+strconv.Itoa(len(args)))
	}
	args = append(args, f.Limit, f.Offset)
	q := `SELECT ` + notificationColumns + ` FROM notifications WHERE ` + strings.Join(where, " AND ") +
		` ORDER BY created_at DESC LIMIT $` + strconv.Itoa(len(args)-1) + ` OFFSET $` + strconv.Itoa(len(args))

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Notification
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

func (r *PostgresRepo) MarkRead(ctx context.Context, workspaceID, userID, id string, at time.Time) (Notification, error) {
	n, err := scanNotification(r.db.QueryRowContext(ctx, `
UPDATE notifications SET status = 'read', read_at = COALESCE(read_at, $4)
WHERE id = $1 AND workspace_id = $2 AND user_id = $3
RETURNING `+notificationColumns, id, workspaceID, userID, at))
	if errors.Is(err, sql.ErrNoRows) {
		return Notification{}, ErrNotFound
	}
	return n, err
}

func (r *PostgresRepo) MarkAllRead(ctx context.Context, workspaceID, userID string, at time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
UPDATE notifications SET status = 'read', read_at = $3
WHERE workspace_id = $1 AND user_id = $2 AND status = 'unread'`, workspaceID, userID, at)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r *PostgresRepo) UnreadCount(ctx context.Context, workspaceID, userID string) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM notifications WHERE workspace_id = $1 AND user_id = $2 AND status = 'unread'`,
		workspaceID, userID).Scan(&n)
	return n, err
}

func (r *PostgresRepo) Delete(ctx context.Context, workspaceID, userID, id string) error {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM notifications WHERE id = $1 AND workspace_id = $2 AND user_id = $3`, id, workspaceID, userID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PostgresRepo) GetSettings(ctx context.Context, workspaceID, userID string) (Settings, error) {
	var (
		s                  Settings
		email, push, inApp []byte
	)
	err := r.db.QueryRowContext(ctx, `
SELECT user_id, workspace_id, email_types, push_types, in_app_types, marketing_updates,
       quiet_hours_enabled, quiet_hours_start, quiet_hours_end, timezone, updated_at
FROM notification_settings WHERE workspace_id = $1 AND user_id = $2`, workspaceID, userID).Scan(
		&s.UserID, &s.WorkspaceID, &email, &push, &inApp, &s.MarketingUpdates,
		&s.QuietHoursEnabled, &s.QuietHoursStart, &s.QuietHoursEnd, &s.Timezone, &s.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Settings{}, ErrSettingsNotFound
	}
	if err != nil {
		return Settings{}, err
	}
	for _, p := range []struct {
		raw []byte
		dst *[]Type
	}{{email, &s.EmailTypes}, {push, &s.PushTypes}, {inApp, &s.InAppTypes}} {
		if err := json.Unmarshal(p.raw, p.dst); err != nil {
			return Settings{}, err
		}
	}
	return s, nil
}

func (r *PostgresRepo) SaveSettings(ctx context.Context, s Settings) (Settings, error) {
	email, _ := json.Marshal(s.EmailTypes)
	push, _ := json.Marshal(s.PushTypes)
	inApp, _ := json.Marshal(s.InAppTypes)
	_, err := r.db.ExecContext(ctx, `
INSERT INTO notification_settings (user_id, workspace_id, email_types, push_types, in_app_types, marketing_updates,
  quiet_hours_enabled, quiet_hours_start, quiet_hours_end, timezone, updated_at)
VALUES ($1, $2, $3::jsonb, $4::jsonb, $5::jsonb, $6, $7, $8, $9, $10, $11)
ON CONFLICT (workspace_id, user_id) DO UPDATE SET
  email_types = EXCLUDED.email_types,
  push_types = EXCLUDED.push_types,
  in_app_types = EXCLUDED.in_app_types,
  marketing_updates = EXCLUDED.marketing_updates,
  quiet_hours_enabled = EXCLUDED.quiet_hours_enabled,
  quiet_hours_start = EXCLUDED.quiet_hours_start,
  quiet_hours_end = EXCLUDED.quiet_hours_end,
  timezone = EXCLUDED.timezone,
  updated_at = EXCLUDED.updated_at`,
		s.UserID, s.WorkspaceID, string(email), string(push), string(inApp), s.MarketingUpdates,
		s.QuietHoursEnabled, s.QuietHoursStart, s.QuietHoursEnd, s.Timezone, s.UpdatedAt)
	if err != nil {
		return Settings{}, err
	}
	return s, nil
}
