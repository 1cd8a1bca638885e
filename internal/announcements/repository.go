package announcements

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"time"
)

// AnnouncementQuery selects announcements. A nil Viewer disables targeting
// filters and returns unpublished rows too.
type AnnouncementQuery struct {
	Viewer     *Viewer
	Now        time.Time
	PinnedOnly bool
	Priority   Priority
	Type       Type
	Search     string
	UnreadBy   string
	Limit      int
	Offset     int
}

// MessageQuery selects team messages.
type MessageQuery struct {
	WorkspaceID string
	StoreID     string
	// Participant limits to messages the user sent or received.
	Participant string
	// RecipientOnly narrows Participant to received messages.
	RecipientOnly bool
	UrgentOnly    bool
	RootsOnly     bool
	UnreadBy      string
	MessageType   MessageType
	// ByReplies orders by reply count before recency (threads view).
	ByReplies bool
	Limit     int
	Offset    int
}

type Repository interface {
	CreateAnnouncement(ctx context.Context, a Announcement) (Announcement, error)
	GetAnnouncement(ctx context.Context, id string) (Announcement, error)
	UpdateAnnouncement(ctx context.Context, a Announcement) (Announcement, error)
	DeleteAnnouncement(ctx context.Context, id string) error
	ListAnnouncements(ctx context.Context, q AnnouncementQuery) ([]Announcement, error)
	// MarkRead is get-or-create; the first read_at is kept.
	MarkRead(ctx context.Context, announcementID, userID string, at time.Time) (Read, error)
	Acknowledge(ctx context.Context, announcementID, userID string, at time.Time) (Read, error)

	CreateMessage(ctx context.Context, m TeamMessage) (TeamMessage, error)
	GetMessage(ctx context.Context, id string) (TeamMessage, error)
	UpdateMessage(ctx context.Context, m TeamMessage) (TeamMessage, error)
	DeleteMessage(ctx context.Context, id string) error
	ListMessages(ctx context.Context, q MessageQuery) ([]TeamMessage, error)
	MarkMessageRead(ctx context.Context, messageID, userID string, at time.Time) (MessageRead, error)
	MarkResponded(ctx context.Context, messageID, userID string, at time.Time) (MessageRead, error)
}

type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo { return &PostgresRepo{db: db} }

func jsonList(v []string) string {
	if v == nil {
		v = []string{}
	}
	b, _ := json.Marshal(v)
	return string(b)
}

func decodeList(raw []byte, dst *[]string) error {
	*dst = []string{}
	if len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, dst)
}

func nullTime(v sql.NullTime) *time.Time {
	if !v.Valid {
		return nil
	}
	t := v.Time
	return &t
}

// query builds positional args for ad-hoc WHERE clauses.
type query struct {
	where []string
	args  []any
}

func (q *query) arg(v any) string {
	q.args = append(q.args, v)
	return "$" + strconv.Itoa(len(q.args))
}

func (q *query) add(cond string) { q.where = append(q.where, cond) }

func (q *query) clause() string {
	if len(q.where) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(q.where, " AND ")
}

const announcementColumns = `a.id, a.workspace_id, a.title, a.content, a.announcement_type, a.priority,
a.target_roles, a.target_stores, a.target_tenants, a.is_pinned, a.is_active, a.requires_acknowledgment,
a.publish_at, a.expires_at, a.author_id, COALESCE(a.author_store_id, ''), a.created_at, a.updated_at`

func scanAnnouncement(row interface{ Scan(...any) error }) (Announcement, error) {
	var (
		a                      Announcement
		roles, stores, tenants []byte
		expires                sql.NullTime
	)
	err := row.Scan(&a.ID, &a.WorkspaceID, &a.Title, &a.Content, &a.Type, &a.Priority,
		&roles, &stores, &tenants, &a.IsPinned, &a.IsActive, &a.RequiresAcknowledgment,
		&a.PublishAt, &expires, &a.AuthorID, &a.AuthorStoreID, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return Announcement{}, err
	}
	a.ExpiresAt = nullTime(expires)
	for _, p := range []struct {
		raw []byte
		dst *[]string
	}{{roles, &a.TargetRoles}, {stores, &a.TargetStores}, {tenants, &a.TargetTenants}} {
		if err := decodeList(p.raw, p.dst); err != nil {
			return Announcement{}, err
		}
	}
	return a, nil
}

func (r *PostgresRepo) CreateAnnouncement(ctx context.Context, a Announcement) (Announcement, error) {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO announcements (id, workspace_id, title, content, announcement_type, priority, target_roles, target_stores, target_tenants,
  is_pinned, is_active, requires_acknowledgment, publish_at, expires_at, author_id, author_store_id, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7::jsonb, $8::jsonb, $9::jsonb, $10, $11, $12, $13, $14, $15, NULLIF($16, ''), $17, $18)`,
		a.ID, a.WorkspaceID, a.Title, a.Content, string(a.Type), string(a.Priority),
		jsonList(a.TargetRoles), jsonList(a.TargetStores), jsonList(a.TargetTenants),
		a.IsPinned, a.IsActive, a.RequiresAcknowledgment, a.PublishAt, a.ExpiresAt, a.AuthorID, a.AuthorStoreID, a.CreatedAt, a.UpdatedAt)
	if err != nil {
		return Announcement{}, err
	}
	return a, nil
}

func (r *PostgresRepo) GetAnnouncement(ctx context.Context, id string) (Announcement, error) {
	a, err := scanAnnouncement(r.db.QueryRowContext(ctx, `SELECT `+announcementColumns+` FROM announcements a WHERE a.id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return Announcement{}, ErrAnnouncementNotFound
	}
	return a, err
}

func (r *PostgresRepo) UpdateAnnouncement(ctx context.Context, a Announcement) (Announcement, error) {
	res, err := r.db.ExecContext(ctx, `
UPDATE announcements SET title = $2, content = $3, announcement_type = $4, priority = $5,
  target_roles = $6::jsonb, target_stores = $7::jsonb, target_tenants = $8::jsonb,
  is_pinned = $9, is_active = $10, requires_acknowledgment = $11, publish_at = $12, expires_at = $13, updated_at = $14
WHERE id = $1`,
		a.ID, a.Title, a.Content, string(a.Type), string(a.Priority),
		jsonList(a.TargetRoles), jsonList(a.TargetStores), jsonList(a.TargetTenants),
		a.IsPinned, a.IsActive, a.RequiresAcknowledgment, a.PublishAt, a.ExpiresAt, a.UpdatedAt)
	if err != nil {
		return Announcement{}, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return Announcement{}, ErrAnnouncementNotFound
	}
	return a, nil
}

func (r *PostgresRepo) DeleteAnnouncement(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM announcements WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrAnnouncementNotFound
	}
	return nil
}

func (r *PostgresRepo) ListAnnouncements(ctx context.Context, aq AnnouncementQuery) ([]Announcement, error) {
	var q query
	if v := aq.Viewer; v != nil {
		now := q.arg(aq.Now)
		q.add("a.is_active AND a.publish_at <= " + now + " AND (a.expires_at IS NULL OR a.expires_at > " + now + ")")
		ws := q.arg(v.WorkspaceID)
		q.add("(a.workspace_id = " + ws + " OR a.target_tenants ? " + ws + ")")
		if v.StoreID != "" {
			st := q.arg(v.StoreID)
			q.add("(jsonb_array_length(a.target_stores) = 0 OR a.target_stores ? " + st + " OR a.author_store_id = " + st + ")")
		}
		q.add("(a.announcement_type <> 'role_specific' OR jsonb_array_length(a.target_roles) = 0 OR a.target_roles ? " + q.arg(v.Role) + ")")
	}
	if aq.PinnedOnly {
		q.add("a.is_pinned")
	}
	if aq.Priority != "" {
		q.add("a.priority = " + q.arg(string(aq.Priority)))
	}
	if aq.Type != "" {
		q.add("a.announcement_type = " + q.arg(string(aq.Type)))
	}
	if aq.Search != "" {
		s := q.arg("%" + aq.Search + "%")
		q.add("(a.title ILIKE " + s + " OR a.content ILIKE " + s + ")")
	}
	if aq.UnreadBy != "" {
		q.add("NOT EXISTS (SELECT 1 FROM announcement_reads r WHERE r.announcement_id = a.id AND r.user_id = " + q.arg(aq.UnreadBy) + ")")
	}
	sqlText := `SELECT ` + announcementColumns + ` FROM announcements a` + q.clause() + `
ORDER BY a.is_pinned DESC,
  CASE a.priority WHEN 'urgent' THEN 4 WHEN 'high' THEN 3 WHEN 'medium' THEN 2 WHEN 'low' THEN 1 ELSE 0 END DESC,
  a.created_at DESC, a.id`
	if aq.Limit > 0 {
		sqlText += ` LIMIT ` + q.arg(aq.Limit) + ` OFFSET ` + q.arg(aq.Offset)
	}

	rows, err := r.db.QueryContext(ctx, sqlText, q.args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Announcement
	for rows.Next() {
		a, err := scanAnnouncement(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func scanRead(row interface{ Scan(...any) error }) (Read, error) {
	var (
		rd  Read
		ack sql.NullTime
	)
	if err := row.Scan(&rd.AnnouncementID, &rd.UserID, &rd.ReadAt, &ack); err != nil {
		return Read{}, err
	}
	rd.AcknowledgedAt = nullTime(ack)
	rd.Acknowledged = ack.Valid
	return rd, nil
}

func (r *PostgresRepo) MarkRead(ctx context.Context, announcementID, userID string, at time.Time) (Read, error) {
	// The no-op update makes RETURNING yield the existing row on conflict.
	return scanRead(r.db.QueryRowContext(ctx, `
INSERT INTO announcement_reads (announcement_id, user_id, read_at)
VALUES ($1, $2, $3)
ON CONFLICT (announcement_id, user_id) DO UPDATE SET read_at = announcement_reads.read_at
RETURNING announcement_id, user_id, read_at, acknowledged_at`, announcementID, userID, at))
}

func (r *PostgresRepo) Acknowledge(ctx context.Context, announcementID, userID string, at time.Time) (Read, error) {
	return scanRead(r.db.QueryRowContext(ctx, `
INSERT INTO announcement_reads (announcement_id, user_id, read_at, acknowledged_at)
VALUES ($1, $2, $3, $3)
ON CONFLICT (announcement_id, user_id) DO UPDATE SET acknowledged_at = COALESCE(announcement_reads.acknowledged_at, EXCLUDED.acknowledged_at)
RETURNING announcement_id, user_id, read_at, acknowledged_at`, announcementID, userID, at))
}

const messageColumns = `m.id, m.workspace_id, COALESCE(m.store_id, ''), m.sender_id, m.recipients, COALESCE(m.parent_id, ''),
m.message_type, m.subject, m.content, m.is_urgent, m.requires_response,
(SELECT COUNT(*) FROM team_messages c WHERE c.parent_id = m.id), m.created_at, m.updated_at`

func scanMessage(row interface{ Scan(...any) error }) (TeamMessage, error) {
	var (
		m          TeamMessage
		recipients []byte
	)
	err := row.Scan(&m.ID, &m.WorkspaceID, &m.StoreID, &m.SenderID, &recipients, &m.ParentID,
		&m.MessageType, &m.Subject, &m.Content, &m.IsUrgent, &m.RequiresResponse, &m.ReplyCount, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		return TeamMessage{}, err
	}
	return m, decodeList(recipients, &m.Recipients)
}

func (r *PostgresRepo) CreateMessage(ctx context.Context, m TeamMessage) (TeamMessage, error) {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO team_messages (id, workspace_id, store_id, sender_id, recipients, parent_id, message_type, subject, content,
  is_urgent, requires_response, created_at, updated_at)
VALUES ($1, $2, NULLIF($3, ''), $4, $5::jsonb, NULLIF($6, ''), $7, $8, $9, $10, $11, $12, $13)`,
		m.ID, m.WorkspaceID, m.StoreID, m.SenderID, jsonList(m.Recipients), m.ParentID, string(m.MessageType),
		m.Subject, m.Content, m.IsUrgent, m.RequiresResponse, m.CreatedAt, m.UpdatedAt)
	if err != nil {
		return TeamMessage{}, err
	}
	return m, nil
}

func (r *PostgresRepo) GetMessage(ctx context.Context, id string) (TeamMessage, error) {
	m, err := scanMessage(r.db.QueryRowContext(ctx, `SELECT `+messageColumns+` FROM team_messages m WHERE m.id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return TeamMessage{}, ErrMessageNotFound
	}
	return m, err
}

func (r *PostgresRepo) UpdateMessage(ctx context.Context, m TeamMessage) (TeamMessage, error) {
	res, err := r.db.ExecContext(ctx, `
UPDATE team_messages SET subject = $2, content = $3, message_type = $4, is_urgent = $5, requires_response = $6, updated_at = $7
WHERE id = $1`, m.ID, m.Subject, m.Content, string(m.MessageType), m.IsUrgent, m.RequiresResponse, m.UpdatedAt)
	if err != nil {
		return TeamMessage{}, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return TeamMessage{}, ErrMessageNotFound
	}
	return m, nil
}

func (r *PostgresRepo) DeleteMessage(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM team_messages WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrMessageNotFound
	}
	return nil
}

func (r *PostgresRepo) ListMessages(ctx context.Context, mq MessageQuery) ([]TeamMessage, error) {
	var q query
	q.add("m.workspace_id = " + q.arg(mq.WorkspaceID))
	if mq.StoreID != "" {
		q.add("m.store_id = " + q.arg(mq.StoreID))
	}
	if mq.Participant != "" {
		u := q.arg(mq.Participant)
		if mq.RecipientOnly {
			q.add("m.recipients ? " + u)
		} else {
			q.add("(m.sender_id = " + u + " OR m.recipients ? " + u + ")")
		}
	}
	if mq.UrgentOnly {
		q.add("m.is_urgent")
	}
	if mq.RootsOnly {
		q.add("m.parent_id IS NULL")
	}
	if mq.MessageType != "" {
		q.add("m.message_type = " + q.arg(string(mq.MessageType)))
	}
	if mq.UnreadBy != "" {
		q.add("NOT EXISTS (SELECT 1 FROM team_message_reads r WHERE r.message_id = m.id AND r.user_id = " + q.arg(mq.UnreadBy) + ")")
	}
	order := ` ORDER BY m.is_urgent DESC, m.created_at DESC, m.id`
	if mq.ByReplies {
		order = ` ORDER BY 12 DESC, m.created_at DESC, m.id`
	}
	sqlText := `SELECT ` + messageColumns + ` FROM team_messages m` + q.clause() + order
	if mq.Limit > 0 {
		sqlText += ` LIMIT ` + q.arg(mq.Limit) + ` OFFSET ` + q.arg(mq.Offset)
	}

	rows, err := r.db.QueryContext(ctx, sqlText, q.args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []TeamMessage
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func scanMessageRead(row interface{ Scan(...any) error }) (MessageRead, error) {
	var (
		mr        MessageRead
		responded sql.NullTime
	)
	if err := row.Scan(&mr.MessageID, &mr.UserID, &mr.ReadAt, &responded); err != nil {
		return MessageRead{}, err
	}
	mr.RespondedAt = nullTime(responded)
	mr.Responded = responded.Valid
	return mr, nil
}

func (r *PostgresRepo) MarkMessageRead(ctx context.Context, messageID, userID string, at time.Time) (MessageRead, error) {
	return scanMessageRead(r.db.QueryRowContext(ctx, `
INSERT INTO team_message_reads (message_id, user_id, read_at)
VALUES ($1, $2, $3)
ON CONFLICT (message_id, user_id) DO UPDATE SET read_at = team_message_reads.read_at
RETURNING message_id, user_id, read_at, responded_at`, messageID, userID, at))
}

func (r *PostgresRepo) MarkResponded(ctx context.Context, messageID, userID string, at time.Time) (MessageRead, error) {
	return scanMessageRead(r.db.QueryRowContext(ctx, `
INSERT INTO team_message_reads (message_id, user_id, read_at, responded_at)
VALUES ($1, $2, $3, $3)
ON CONFLICT (message_id, user_id) DO UPDATE SET responded_at = COALESCE(team_message_reads.responded_at, EXCLUDED.responded_at)
RETURNING message_id, user_id, read_at, responded_at`, messageID, userID, at))
}
