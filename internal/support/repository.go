package support

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"strings"
	"time"

	"bizops-platform/pkg/utils"
)

// TicketFilter narrows ListTickets. An empty WorkspaceID spans all tenants.
type TicketFilter struct {
	WorkspaceID string
	Status      Status
	Statuses    []Status
	Priority    Priority
	Category    Category
	AssignedTo  string
	Search      string

	UnassignedOnly     bool
	OverdueNotNotified bool
	ResolvedBefore     *time.Time
	Limit, Offset      int
}

type Repository interface {
	// CreateTicket assigns TicketID and stores the ticket with its opening message.
	CreateTicket(ctx context.Context, t Ticket, opening Message) (Ticket, error)
	GetTicket(ctx context.Context, id string) (Ticket, error)
	ListTickets(ctx context.Context, f TicketFilter) ([]Ticket, error)
	// SaveTicket updates the mutable ticket columns and appends msgs atomically.
	SaveTicket(ctx context.Context, t Ticket, msgs ...Message) error
	ListMessages(ctx context.Context, ticketID string, includeInternal bool) ([]Message, error)
	OpenCountsByAssignee(ctx context.Context, assigneeIDs []string) (map[string]int, error)
	Stats(ctx context.Context, workspaceID string, dayStart time.Time) (DashboardStats, error)

	CreateNotifications(ctx context.Context, ns ...Notification) error
	ListNotifications(ctx context.Context, recipientID string, limit, offset int) ([]Notification, error)
	MarkNotificationRead(ctx context.Context, recipientID, id string) error
	MarkAllNotificationsRead(ctx context.Context, recipientID string) (int64, error)

	GetSettings(ctx context.Context, workspaceID string) (Settings, error)
	SaveSettings(ctx context.Context, s Settings) (Settings, error)
}

type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo { return &PostgresRepo{db: db} }

const ticketColumns = `id, ticket_id, workspace_id, title, summary, category, priority, status, created_by,
COALESCE(assigned_to, ''), is_urgent, requires_callback, COALESCE(callback_phone, ''), COALESCE(callback_preferred_time, ''),
created_at, updated_at, resolved_at, closed_at, first_response_at, overdue_notified_at`

func scanTicket(row interface{ Scan(...any) error }) (Ticket, error) {
	var (
		t                                      Ticket
		resolved, closed, firstResp, overdueAt sql.NullTime
	)
	err := row.Scan(&t.ID, &t.TicketID, &t.WorkspaceID, &t.Title, &t.Summary, &t.Category, &t.Priority, &t.Status, &t.CreatedBy,
		&t.AssignedTo, &t.IsUrgent, &t.RequiresCallback, &t.CallbackPhone, &t.CallbackPreferredTime,
		&t.CreatedAt, &t.UpdatedAt, &resolved, &closed, &firstResp, &overdueAt)
	if err != nil {
		return Ticket{}, err
	}
	t.ResolvedAt = timePtr(resolved)
	t.ClosedAt = timePtr(closed)
	t.FirstResponseAt = timePtr(firstResp)
	t.OverdueNotifiedAt = timePtr(overdueAt)
	return t, nil
}

func timePtr(v sql.NullTime) *time.Time {
	if !v.Valid {
		return nil
	}
	t := v.Time
	return &t
}

func (r *PostgresRepo) CreateTicket(ctx context.Context, t Ticket, opening Message) (Ticket, error) {
	prefix := TicketIDPrefix(t.CreatedAt)
	err := utils.WithTx(ctx, r.db, nil, func(ctx context.Context, tx *sql.Tx) error {
		// Serializes ID allocation per day; the unique index on ticket_id backs it up.
		if err := utils.AdvisoryXactLock(ctx, tx, "support_ticket_id:"+prefix); err != nil {
			return err
		}
		var last string
		err := tx.QueryRowContext(ctx,
			`SELECT ticket_id FROM support_tickets WHERE ticket_id LIKE $1 ORDER BY ticket_id DESC LIMIT 1`,
			prefix+"%").Scan(&last)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return err
		}
		if t.TicketID, err = NextTicketID(t.CreatedAt, last); err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, `
INSERT INTO support_tickets (id, ticket_id, workspace_id, title, summary, category, priority, status, created_by, assigned_to,
  is_urgent, requires_callback, callback_phone, callback_preferred_time, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NULLIF($10, ''), $11, $12, NULLIF($13, ''), NULLIF($14, ''), $15, $16)`,
			t.ID, t.TicketID, t.WorkspaceID, t.Title, t.Summary, string(t.Category), string(t.Priority), string(t.Status), t.CreatedBy, t.AssignedTo,
			t.IsUrgent, t.RequiresCallback, t.CallbackPhone, t.CallbackPreferredTime, t.CreatedAt, t.UpdatedAt)
		if err != nil {
			if utils.IsUniqueViolation(err) {
				return ErrTicketIDConflict
			}
			return err
		}
		return insertMessages(ctx, tx, opening)
	})
	if err != nil {
		return Ticket{}, err
	}
	return t, nil
}

func insertMessages(ctx context.Context, tx *sql.Tx, msgs ...Message) error {
	for _, m := range msgs {
		_, err := tx.ExecContext(ctx, `
INSERT INTO support_ticket_messages (id, ticket_id, sender_id, sender_role, content, is_internal, is_system_message, message_type, created_at)
VALUES ($1, $2, NULLIF($3, ''), NULLIF($4, ''), $5, $6, $7, $8, $9)`,
			m.ID, m.TicketID, m.SenderID, m.SenderRole, m.Content, m.IsInternal, m.IsSystemMessage, string(m.MessageType), m.CreatedAt)
		if err != nil {
			return err
		}
	}
	return nil
}

func (r *PostgresRepo) GetTicket(ctx context.Context, id string) (Ticket, error) {
	t, err := scanTicket(r.db.QueryRowContext(ctx, `SELECT `+ticketColumns+` FROM support_tickets WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return Ticket{}, ErrTicketNotFound
	}
	return t, err
}

func (r *PostgresRepo) ListTickets(ctx context.Context, f TicketFilter) ([]Ticket, error) {
	var (
		where []string
		args  []any
	)
	add := func(cond string, v any) {
		args = append(args, v)
		where = append(where, strings.ReplaceAll(cond, "?", "$"+strconv.Itoa(len(args))))
	}
	if f.WorkspaceID != "" {
		add("workspace_id = ?", f.WorkspaceID)
	}
	if f.Status != "" {
		add("status = ?", string(f.Status))
	}
	if len(f.Statuses) > 0 {
		ss := make([]string, len(f.Statuses))
		for i, s := range f.Statuses {
			ss[i] = string(s)
		}
		add("status = ANY(?)", ss)
	}
	if f.Priority != "" {
		add("priority = ?", string(f.Priority))
	}
	if f.Category != "" {
		add("category = ?", string(f.Category))
	}
	if f.AssignedTo != "" {
		add("assigned_to = ?", f.AssignedTo)
	}
	if f.Search != "" {
		add("(title ILIKE ? OR summary ILIKE ? OR ticket_id ILIKE ?)", "%"+f.Search+"%")
	}
	if f.UnassignedOnly {
		where = append(where, "assigned_to IS NULL")
	}
	if f.OverdueNotNotified {
		where = append(where, "overdue_notified_at IS NULL")
	}
	if f.ResolvedBefore != nil {
		add("resolved_at < ?", *f.ResolvedBefore)
	}

	q := `SELECT ` + ticketColumns + ` FROM support_tickets`
	if len(where) > 0 {
		q += ` WHERE ` + strings.Join(where, " AND ")
	}
	q += ` ORDER BY created_at DESC`
	if f.Limit > 0 {
		args = append(args, f.Limit, f.Offset)
		q += ` LIMIT $` + strconv.Itoa(len(args)-1) + ` OFFSET $` + strconv.Itoa(len(args))
	}

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Ticket
	for rows.Next() {
		t, err := scanTicket(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (r *PostgresRepo) SaveTicket(ctx context.Context, t Ticket, msgs ...Message) error {
	return utils.WithTx(ctx, r.db, nil, func(ctx context.Context, tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
UPDATE support_tickets SET
  title = $2, summary = $3, category = $4, priority = $5, status = $6, assigned_to = NULLIF($7, ''),
  is_urgent = $8, requires_callback = $9, callback_phone = NULLIF($10, ''), callback_preferred_time = NULLIF($11, ''),
  updated_at = $12, resolved_at = $13, closed_at = $14, first_response_at = $15, overdue_notified_at = $16
WHERE id = $1`,
			t.ID, t.Title, t.Summary, string(t.Category), string(t.Priority), string(t.Status), t.AssignedTo,
			t.IsUrgent, t.RequiresCallback, t.CallbackPhone, t.CallbackPreferredTime,
			t.UpdatedAt, t.ResolvedAt, t.ClosedAt, t.FirstResponseAt, t.OverdueNotifiedAt)
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return ErrTicketNotFound
		}
		return insertMessages(ctx, tx, msgs...)
	})
}

func (r *PostgresRepo) ListMessages(ctx context.Context, ticketID string, includeInternal bool) ([]Message, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT id, ticket_id, COALESCE(sender_id, ''), COALESCE(sender_role, ''), content, is_internal, is_system_message, message_type, created_at
FROM support_ticket_messages
WHERE ticket_id = $1 AND ($2 OR NOT is_internal)
ORDER BY created_at, id`, ticketID, includeInternal)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Message
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.TicketID, &m.SenderID, &m.SenderRole, &m.Content, &m.IsInternal, &m.IsSystemMessage, &m.MessageType, &m.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (r *PostgresRepo) OpenCountsByAssignee(ctx context.Context, assigneeIDs []string) (map[string]int, error) {
	out := make(map[string]int, len(assigneeIDs))
	if len(assigneeIDs) == 0 {
		return out, nil
	}
	rows, err := r.db.QueryContext(ctx, `
SELECT assigned_to, COUNT(*) FROM support_tickets
WHERE assigned_to = ANY($1) AND status IN ('open', 'in_progress', 'reopened')
GROUP BY assigned_to`, assigneeIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var (
			id string
			n  int
		)
		if err := rows.Scan(&id, &n); err != nil {
			return nil, err
		}
		out[id] = n
	}
	return out, rows.Err()
}

func (r *PostgresRepo) Stats(ctx context.Context, workspaceID string, dayStart time.Time) (DashboardStats, error) {
	st := DashboardStats{PriorityBreakdown: map[string]int{}}
	var avgSeconds float64
	err := r.db.QueryRowContext(ctx, `
SELECT COUNT(*),
       COUNT(*) FILTER (WHERE status IN ('open', 'in_progress', 'reopened')),
       COUNT(*) FILTER (WHERE status = 'resolved' AND resolved_at >= $2 AND resolved_at < $3),
       COALESCE(AVG(EXTRACT(EPOCH FROM first_response_at - created_at)) FILTER (WHERE first_response_at IS NOT NULL), 0)
FROM support_tickets WHERE ($1 = '' OR workspace_id = $1)`,
		workspaceID, dayStart, dayStart.Add(24*time.Hour)).Scan(&st.TotalTickets, &st.OpenTickets, &st.ResolvedToday, &avgSeconds)
	if err != nil {
		return DashboardStats{}, err
	}
	st.AvgResponseHours = roundHours(time.Duration(avgSeconds * float64(time.Second)))

	rows, err := r.db.QueryContext(ctx, `
SELECT priority, COUNT(*) FROM support_tickets WHERE ($1 = '' OR workspace_id = $1) GROUP BY priority`, workspaceID)
	if err != nil {
		return DashboardStats{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var (
			p string
			n int
		)
		if err := rows.Scan(&p, &n); err != nil {
			return DashboardStats{}, err
		}
		st.PriorityBreakdown[p] = n
	}
	return st, rows.Err()
}

func (r *PostgresRepo) CreateNotifications(ctx context.Context, ns ...Notification) error {
	if len(ns) == 0 {
		return nil
	}
	return utils.WithTx(ctx, r.db, nil, func(ctx context.Context, tx *sql.Tx) error {
		for _, n := range ns {
			_, err := tx.ExecContext(ctx, `
INSERT INTO support_notifications (id, ticket_id, recipient_id, notification_type, title, message, is_read, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
				n.ID, n.TicketID, n.RecipientID, string(n.Type), n.Title, n.Message, n.IsRead, n.CreatedAt)
			if err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *PostgresRepo) ListNotifications(ctx context.Context, recipientID string, limit, offset int) ([]Notification, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT id, ticket_id, recipient_id, notification_type, title, message, is_read, created_at
FROM support_notifications WHERE recipient_id = $1
ORDER BY created_at DESC LIMIT $2 OFFSET $3`, recipientID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Notification
	for rows.Next() {
		var n Notification
		if err := rows.Scan(&n.ID, &n.TicketID, &n.RecipientID, &n.Type, &n.Title, &n.Message, &n.IsRead, &n.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

func (r *PostgresRepo) MarkNotificationRead(ctx context.Context, recipientID, id string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE support_notifications SET is_read = TRUE WHERE id = $1 AND recipient_id = $2`, id, recipientID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotificationNotFound
	}
	return nil
}

func (r *PostgresRepo) MarkAllNotificationsRead(ctx context.Context, recipientID string) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE support_notifications SET is_read = TRUE WHERE recipient_id = $1 AND NOT is_read`, recipientID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r *PostgresRepo) GetSettings(ctx context.Context, workspaceID string) (Settings, error) {
	var s Settings
	err := r.db.QueryRowContext(ctx, `
SELECT workspace_id, auto_assign_tickets, max_response_time_hours, critical_response_time_hours,
       email_notifications, sms_notifications, in_app_notifications,
       business_hours_start, business_hours_end, timezone, auto_close_resolved_tickets_days, updated_at
FROM support_settings WHERE workspace_id = $1`, workspaceID).Scan(
		&s.WorkspaceID, &s.AutoAssignTickets, &s.MaxResponseTimeHours, &s.CriticalResponseTimeHours,
		&s.EmailNotifications, &s.SMSNotifications, &s.InAppNotifications,
		&s.BusinessHoursStart, &s.BusinessHoursEnd, &s.Timezone, &s.AutoCloseResolvedTicketsDays, &s.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Settings{}, ErrSettingsNotFound
	}
	return s, err
}

func (r *PostgresRepo) SaveSettings(ctx context.Context, s Settings) (Settings, error) {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO support_settings (workspace_id, auto_assign_tickets, max_response_time_hours, critical_response_time_hours,
  email_notifications, sms_notifications, in_app_notifications, business_hours_start, business_hours_end, timezone,
  auto_close_resolved_tickets_days, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
ON CONFLICT (workspace_id) DO UPDATE SET
  auto_assign_tickets = EXCLUDED.auto_assign_tickets,
  max_response_time_hours = EXCLUDED.max_response_time_hours,
  critical_response_time_hours = EXCLUDED.critical_response_time_hours,
  email_notifications = EXCLUDED.email_notifications,
  sms_notifications = EXCLUDED.sms_notifications,
  in_app_notifications = EXCLUDED.in_app_notifications,
  business_hours_start = EXCLUDED.business_hours_start,
  business_hours_end = EXCLUDED.business_hours_end,
  timezone = EXCLUDED.timezone,
  auto_close_resolved_tickets_days = EXCLUDED.auto_close_resolved_tickets_days,
  updated_at = EXCLUDED.updated_at`,
		s.WorkspaceID, s.AutoAssignTickets, s.MaxResponseTimeHours, s.CriticalResponseTimeHours,
		s.EmailNotifications, s.SMSNotifications, s.InAppNotifications, s.BusinessHoursStart, s.BusinessHoursEnd, s.Timezone,
		s.AutoCloseResolvedTicketsDays, s.UpdatedAt)
	if err != nil {
		return Settings{}, err
	}
	return s, nil
}
