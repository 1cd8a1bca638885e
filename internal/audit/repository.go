package audit

import (
	"context"
	"database/sql"
)

// PostgresRepo writes to audit_events. The table has no UPDATE/DELETE path in code.
type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo { return &PostgresRepo{db: db} }

func (r *PostgresRepo) Append(ctx context.Context, e Event) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO audit_events (id, workspace_id, type, actor_user_id, actor_role, ip_address, entity_type, entity_id, message, metadata, created_at)
VALUES ($1, $2, $3, NULLIF($4, ''), NULLIF($5, ''), NULLIF($6, ''), NULLIF($7, ''), NULLIF($8, ''), $9, NULLIF($10, '')::jsonb, $11)`,
		e.ID, e.WorkspaceID, string(e.Type), e.ActorUserID, e.ActorRole, e.IPAddress, e.EntityType, e.EntityID, e.Message, e.Metadata, e.CreatedAt,
	)
	return err
}
