package telecalling

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"time"

	"bizops-platform/pkg/utils"
)

// Scope narrows reads to what one role may see. An empty WorkspaceID spans
// every tenant. TelecallerID keeps only records reachable from that
// telecaller's assignments; SalesRepID keeps only that rep's visits and the
// profiles they seeded.
type Scope struct {
	WorkspaceID  string
	TelecallerID string
	SalesRepID   string
}

type VisitFilter struct {
	Scope       Scope
	Unassigned  bool
	LeadQuality LeadQuality
	// From/To bound visit_timestamp, To exclusive.
	From   *time.Time
	To     *time.Time
	Search string
	Limit  int
	Offset int
}

type AssignmentFilter struct {
	Scope   Scope
	VisitID string
	Status  AssignmentStatus
	// CallStatuses keeps assignments with at least one call in these
	// statuses, further narrowed by CallSentiment when set.
	CallStatuses  []CallStatus
	CallSentiment Sentiment
	Limit         int
	Offset        int
}

type CallLogFilter struct {
	Scope        Scope
	AssignmentID string
	Statuses     []CallStatus
	Limit        int
	Offset       int
}

type FollowUpFilter struct {
	Scope        Scope
	AssignmentID string
	Status       FollowUpStatus
	Limit        int
	Offset       int
}

type ProfileFilter struct {
	Scope      Scope
	Likelihood Likelihood
	Phone      string
	Limit      int
	Offset     int
}

// Repository persists the pipeline. Writes that fan out notifications take
// them as an argument and store them in the same transaction.
type Repository interface {
	CreateVisit(ctx context.Context, v Visit) (Visit, error)
	GetVisit(ctx context.Context, id string) (Visit, error)
	UpdateVisit(ctx context.Context, v Visit) (Visit, error)
	DeleteVisit(ctx context.Context, id string) error
	ListVisits(ctx context.Context, f VisitFilter) ([]Visit, error)

	// CreateAssignments stores every assignment and flags its visit as
	// assigned. A visit that is already assigned fails the whole batch with
	// ErrAlreadyAssigned.
	CreateAssignments(ctx context.Context, as []Assignment, notes []Notification) ([]Assignment, error)
	GetAssignment(ctx context.Context, id string) (Assignment, error)
	UpdateAssignment(ctx context.Context, a Assignment) (Assignment, error)
	// DeleteAssignment clears the visit's assigned flag once no assignment
	// references it.
	DeleteAssignment(ctx context.Context, id string) error
	ListAssignments(ctx context.Context, f AssignmentFilter) ([]Assignment, error)

	// CreateCallLog stores l, saves a's new status and upserts p by
	// (workspace, phone), keeping the original visit fields of an existing
	// profile.
	CreateCallLog(ctx context.Context, l CallLog, a Assignment, p Profile, notes []Notification) (CallLog, error)
	GetCallLog(ctx context.Context, id string) (CallLog, error)
	ListCallLogs(ctx context.Context, f CallLogFilter) ([]CallLog, error)

	CreateFollowUp(ctx context.Context, f FollowUp, notes []Notification) (FollowUp, error)
	GetFollowUp(ctx context.Context, id string) (FollowUp, error)
	UpdateFollowUp(ctx context.Context, f FollowUp) (FollowUp, error)
	DeleteFollowUp(ctx context.Context, id string) error
	ListFollowUps(ctx context.Context, f FollowUpFilter) ([]FollowUp, error)

	GetProfile(ctx context.Context, id string) (Profile, error)
	GetProfileByPhone(ctx context.Context, workspaceID, phone string) (Profile, error)
	UpdateProfile(ctx context.Context, p Profile) (Profile, error)
	ListProfiles(ctx context.Context, f ProfileFilter) ([]Profile, error)

	ListNotifications(ctx context.Context, recipientID string, unreadOnly bool, limit, offset int) ([]Notification, error)
	MarkNotificationRead(ctx context.Context, id, recipientID string) error
	MarkAllNotificationsRead(ctx context.Context, recipientID string) (int, error)
}

type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo { return &PostgresRepo{db: db} }

type scanner interface{ Scan(...any) error }

type execer interface {
	ExecContext(context.Context, string, ...any) (sql.Result, error)
}

type args struct {
	where []string
	vals  []any
}

func (a *args) add(v any) string {
	a.vals = append(a.vals, v)
	return "$" + strconv.Itoa(len(a.vals))
}

func (a *args) cond(c string) { a.where = append(a.where, c) }

func (a *args) workspace(s Scope) {
	if s.WorkspaceID != "" {
		a.cond("workspace_id = " + a.add(s.WorkspaceID))
	}
}

// telecaller limits rows whose assignment_id column belongs to s.TelecallerID.
func (a *args) telecaller(s Scope) {
	if s.TelecallerID != "" {
		a.cond("assignment_id IN (SELECT id FROM telecalling_assignments WHERE telecaller_id = " + a.add(s.TelecallerID) + ")")
	}
}

func (a *args) in(col string, vals []CallStatus) string {
	ph := make([]string, len(vals))
	for i, v := range vals {
		ph[i] = a.add(string(v))
	}
	return col + " IN (" + strings.Join(ph, ", ") + ")"
}

func (a *args) clause() string {
	if len(a.where) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(a.where, " AND ")
}

func (a *args) page(limit, offset int) string {
	if limit <= 0 {
		return ""
	}
	return " LIMIT " + a.add(limit) + " OFFSET " + a.add(offset)
}

func ptrTime(v sql.NullTime) *time.Time {
	if !v.Valid {
		return nil
	}
	t := v.Time
	return &t
}

func jsonList(v []string) string {
	if v == nil {
		return "[]"
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "[]"
	}
	return string(b)
}

func parseList(raw []byte) ([]string, error) {
	out := []string{}
	if len(raw) == 0 {
		return out, nil
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func affected(res sql.Result, err error, notFound error) error {
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return notFound
	}
	return nil
}

func collect[T any](rows *sql.Rows, err error, scan func(scanner) (T, error)) ([]T, error) {
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []T
	for rows.Next() {
		v, err := scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func insertNotifications(ctx context.Context, ex execer, notes []Notification) error {
	for _, n := range notes {
		_, err := ex.ExecContext(ctx, `
INSERT INTO telecalling_notifications (id, workspace_id, recipient_id, title, message, notification_type, assignment_id, is_read, created_at)
VALUES ($1, $2, $3, $4, $5, $6, NULLIF($7, ''), $8, $9)`,
			n.ID, n.WorkspaceID, n.RecipientID, n.Title, n.Message, string(n.Type), n.AssignmentID, n.IsRead, n.CreatedAt)
		if err != nil {
			return err
		}
	}
	return nil
}

const visitColumns = `id, workspace_id, COALESCE(store_id, ''), sales_rep_id, customer_name, customer_phone, customer_email,
interests, visit_timestamp, notes, lead_quality, assigned_to_telecaller, created_at, updated_at`

func scanVisit(row scanner) (Visit, error) {
	var (
		v         Visit
		interests []byte
	)
	err := row.Scan(&v.ID, &v.WorkspaceID, &v.StoreID, &v.SalesRepID, &v.CustomerName, &v.CustomerPhone, &v.CustomerEmail,
		&interests, &v.VisitTimestamp, &v.Notes, &v.LeadQuality, &v.AssignedToTelecaller, &v.CreatedAt, &v.UpdatedAt)
	if err != nil {
		return Visit{}, err
	}
	v.Interests, err = parseList(interests)
	return v, err
}

func (r *PostgresRepo) CreateVisit(ctx context.Context, v Visit) (Visit, error) {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO telecalling_visits (id, workspace_id, store_id, sales_rep_id, customer_name, customer_phone, customer_email,
  interests, visit_timestamp, notes, lead_quality, assigned_to_telecaller, created_at, updated_at)
VALUES ($1, $2, NULLIF($3, ''), $4, $5, $6, $7, $8::jsonb, $9, $10, $11, $12, $13, $14)`,
		v.ID, v.WorkspaceID, v.StoreID, v.SalesRepID, v.CustomerName, v.CustomerPhone, v.CustomerEmail,
		jsonList(v.Interests), v.VisitTimestamp, v.Notes, string(v.LeadQuality), v.AssignedToTelecaller, v.CreatedAt, v.UpdatedAt)
	if err != nil {
		return Visit{}, err
	}
	return v, nil
}

func (r *PostgresRepo) GetVisit(ctx context.Context, id string) (Visit, error) {
	v, err := scanVisit(r.db.QueryRowContext(ctx, `SELECT `+visitColumns+` FROM telecalling_visits WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return Visit{}, ErrVisitNotFound
	}
	return v, err
}

func (r *PostgresRepo) UpdateVisit(ctx context.Context, v Visit) (Visit, error) {
	res, err := r.db.ExecContext(ctx, `
UPDATE telecalling_visits SET customer_name = $2, customer_phone = $3, customer_email = $4, interests = $5::jsonb,
  visit_timestamp = $6, notes = $7, lead_quality = $8, updated_at = $9
WHERE id = $1`,
		v.ID, v.CustomerName, v.CustomerPhone, v.CustomerEmail, jsonList(v.Interests),
		v.VisitTimestamp, v.Notes, string(v.LeadQuality), v.UpdatedAt)
	if err := affected(res, err, ErrVisitNotFound); err != nil {
		return Visit{}, err
	}
	return v, nil
}

func (r *PostgresRepo) DeleteVisit(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM telecalling_visits WHERE id = $1`, id)
	return affected(res, err, ErrVisitNotFound)
}

func (r *PostgresRepo) ListVisits(ctx context.Context, f VisitFilter) ([]Visit, error) {
	var a args
	a.workspace(f.Scope)
	if f.Scope.TelecallerID != "" {
		a.cond("id IN (SELECT visit_id FROM telecalling_assignments WHERE telecaller_id = " + a.add(f.Scope.TelecallerID) + ")")
	}
	if f.Scope.SalesRepID != "" {
		a.cond("sales_rep_id = " + a.add(f.Scope.SalesRepID))
	}
	if f.Unassigned {
		a.cond("NOT assigned_to_telecaller")
	}
	if f.LeadQuality != "" {
		a.cond("lead_quality = " + a.add(string(f.LeadQuality)))
	}
	if f.From != nil {
		a.cond("visit_timestamp >= " + a.add(*f.From))
	}
	if f.To != nil {
		a.cond("visit_timestamp < " + a.add(*f.To))
	}
	if s := strings.TrimSpace(f.Search); s != "" {
		p := a.add("%" + s + "%")
		a.cond("(customer_name ILIKE " + p + " OR customer_phone ILIKE " + p + ")")
	}
	q := `SELECT ` + visitColumns + ` FROM telecalling_visits` + a.clause() +
		` ORDER BY visit_timestamp DESC, id` + a.page(f.Limit, f.Offset)
	rows, err := r.db.QueryContext(ctx, q, a.vals...)
	return collect(rows, err, scanVisit)
}

const assignmentColumns = `id, workspace_id, visit_id, telecaller_id, assigned_by, status, priority, scheduled_time,
notes, outcome, created_at, updated_at`

func scanAssignment(row scanner) (Assignment, error) {
	var (
		a         Assignment
		scheduled sql.NullTime
	)
	err := row.Scan(&a.ID, &a.WorkspaceID, &a.VisitID, &a.TelecallerID, &a.AssignedBy, &a.Status, &a.Priority, &scheduled,
		&a.Notes, &a.Outcome, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return Assignment{}, err
	}
	a.ScheduledTime = ptrTime(scheduled)
	return a, nil
}

func (r *PostgresRepo) CreateAssignments(ctx context.Context, as []Assignment, notes []Notification) ([]Assignment, error) {
	err := utils.WithTx(ctx, r.db, nil, func(ctx context.Context, tx *sql.Tx) error {
		for _, a := range as {
			res, err := tx.ExecContext(ctx, `
UPDATE telecalling_visits SET assigned_to_telecaller = TRUE, updated_at = $2
WHERE id = $1 AND NOT assigned_to_telecaller`, a.VisitID, a.CreatedAt)
			if err := affected(res, err, ErrAlreadyAssigned); err != nil {
				return err
			}
			_, err = tx.ExecContext(ctx, `
INSERT INTO telecalling_assignments (id, workspace_id, visit_id, telecaller_id, assigned_by, status, priority,
  scheduled_time, notes, outcome, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
				a.ID, a.WorkspaceID, a.VisitID, a.TelecallerID, a.AssignedBy, string(a.Status), string(a.Priority),
				a.ScheduledTime, a.Notes, a.Outcome, a.CreatedAt, a.UpdatedAt)
			if err != nil {
				return err
			}
		}
		return insertNotifications(ctx, tx, notes)
	})
	if err != nil {
		return nil, err
	}
	return as, nil
}

func (r *PostgresRepo) GetAssignment(ctx context.Context, id string) (Assignment, error) {
	a, err := scanAssignment(r.db.QueryRowContext(ctx, `SELECT `+assignmentColumns+` FROM telecalling_assignments WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return Assignment{}, ErrAssignmentNotFound
	}
	return a, err
}

func updateAssignment(ctx context.Context, ex execer, a Assignment) error {
	res, err := ex.ExecContext(ctx, `
UPDATE telecalling_assignments SET telecaller_id = $2, status = $3, priority = $4, scheduled_time = $5,
  notes = $6, outcome = $7, updated_at = $8
WHERE id = $1`,
		a.ID, a.TelecallerID, string(a.Status), string(a.Priority), a.ScheduledTime, a.Notes, a.Outcome, a.UpdatedAt)
	return affected(res, err, ErrAssignmentNotFound)
}

func (r *PostgresRepo) UpdateAssignment(ctx context.Context, a Assignment) (Assignment, error) {
	if err := updateAssignment(ctx, r.db, a); err != nil {
		return Assignment{}, err
	}
	return a, nil
}

func (r *PostgresRepo) DeleteAssignment(ctx context.Context, id string) error {
	return utils.WithTx(ctx, r.db, nil, func(ctx context.Context, tx *sql.Tx) error {
		var visitID string
		err := tx.QueryRowContext(ctx, `DELETE FROM telecalling_assignments WHERE id = $1 RETURNING visit_id`, id).Scan(&visitID)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrAssignmentNotFound
		}
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, `
UPDATE telecalling_visits SET assigned_to_telecaller = FALSE
WHERE id = $1 AND NOT EXISTS (SELECT 1 FROM telecalling_assignments WHERE visit_id = $1)`, visitID)
		return err
	})
}

func (r *PostgresRepo) ListAssignments(ctx context.Context, f AssignmentFilter) ([]Assignment, error) {
	var a args
	a.workspace(f.Scope)
	if f.Scope.TelecallerID != "" {
		a.cond("telecaller_id = " + a.add(f.Scope.TelecallerID))
	}
	if f.Scope.SalesRepID != "" {
		a.cond("visit_id IN (SELECT id FROM telecalling_visits WHERE sales_rep_id = " + a.add(f.Scope.SalesRepID) + ")")
	}
	if f.VisitID != "" {
		a.cond("visit_id = " + a.add(f.VisitID))
	}
	if f.Status != "" {
		a.cond("status = " + a.add(string(f.Status)))
	}
	if len(f.CallStatuses) > 0 {
		sub := "SELECT 1 FROM telecalling_call_logs l WHERE l.assignment_id = telecalling_assignments.id AND " +
			a.in("l.call_status", f.CallStatuses)
		if f.CallSentiment != "" {
			sub += " AND l.customer_sentiment = " + a.add(string(f.CallSentiment))
		}
		a.cond("EXISTS (" + sub + ")")
	}
	q := `SELECT ` + assignmentColumns + ` FROM telecalling_assignments` + a.clause() +
		` ORDER BY created_at DESC, id` + a.page(f.Limit, f.Offset)
	rows, err := r.db.QueryContext(ctx, q, a.vals...)
	return collect(rows, err, scanAssignment)
}

const callLogColumns = `id, workspace_id, assignment_id, call_time, duration_seconds, call_status, customer_sentiment,
feedback, revisit_required, revisit_notes, recording_url, disposition_code, created_at`

func scanCallLog(row scanner) (CallLog, error) {
	var l CallLog
	err := row.Scan(&l.ID, &l.WorkspaceID, &l.AssignmentID, &l.CallTime, &l.DurationSeconds, &l.CallStatus, &l.Sentiment,
		&l.Feedback, &l.RevisitRequired, &l.RevisitNotes, &l.RecordingURL, &l.DispositionCode, &l.CreatedAt)
	return l, err
}

func (r *PostgresRepo) CreateCallLog(ctx context.Context, l CallLog, asg Assignment, p Profile, notes []Notification) (CallLog, error) {
	err := utils.WithTx(ctx, r.db, nil, func(ctx context.Context, tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
INSERT INTO telecalling_call_logs (id, workspace_id, assignment_id, call_time, duration_seconds, call_status,
  customer_sentiment, feedback, revisit_required, revisit_notes, recording_url, disposition_code, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
			l.ID, l.WorkspaceID, l.AssignmentID, l.CallTime, l.DurationSeconds, string(l.CallStatus),
			string(l.Sentiment), l.Feedback, l.RevisitRequired, l.RevisitNotes, l.RecordingURL, l.DispositionCode, l.CreatedAt)
		if err != nil {
			return err
		}
		if err := updateAssignment(ctx, tx, asg); err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, `
INSERT INTO telecalling_profiles (id, workspace_id, phone, name, email, original_visit_id, original_notes,
  telecaller_feedback, engagement_score, conversion_likelihood, last_contact, next_follow_up, tags, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13::jsonb, $14, $15)
ON CONFLICT (workspace_id, phone) DO UPDATE SET
  telecaller_feedback = EXCLUDED.telecaller_feedback,
  engagement_score = EXCLUDED.engagement_score,
  conversion_likelihood = EXCLUDED.conversion_likelihood,
  last_contact = EXCLUDED.last_contact,
  updated_at = EXCLUDED.updated_at`,
			p.ID, p.WorkspaceID, p.Phone, p.Name, p.Email, p.OriginalVisitID, p.OriginalNotes,
			p.TelecallerFeedback, p.EngagementScore, string(p.ConversionLikelihood), p.LastContact, p.NextFollowUp,
			jsonList(p.Tags), p.CreatedAt, p.UpdatedAt)
		if err != nil {
			return err
		}
		return insertNotifications(ctx, tx, notes)
	})
	if err != nil {
		return CallLog{}, err
	}
	return l, nil
}

func (r *PostgresRepo) GetCallLog(ctx context.Context, id string) (CallLog, error) {
	l, err := scanCallLog(r.db.QueryRowContext(ctx, `SELECT `+callLogColumns+` FROM telecalling_call_logs WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return CallLog{}, ErrCallLogNotFound
	}
	return l, err
}

func (r *PostgresRepo) ListCallLogs(ctx context.Context, f CallLogFilter) ([]CallLog, error) {
	var a args
	a.workspace(f.Scope)
	a.telecaller(f.Scope)
	if f.AssignmentID != "" {
		a.cond("assignment_id = " + a.add(f.AssignmentID))
	}
	if len(f.Statuses) > 0 {
		a.cond(a.in("call_status", f.Statuses))
	}
	q := `SELECT ` + callLogColumns + ` FROM telecalling_call_logs` + a.clause() +
		` ORDER BY call_time DESC, id` + a.page(f.Limit, f.Offset)
	rows, err := r.db.QueryContext(ctx, q, a.vals...)
	return collect(rows, err, scanCallLog)
}

const followUpColumns = `id, workspace_id, assignment_id, scheduled_time, priority, status, notes, created_by,
completed_time, created_at, updated_at`

func scanFollowUp(row scanner) (FollowUp, error) {
	var (
		f         FollowUp
		completed sql.NullTime
	)
	err := row.Scan(&f.ID, &f.WorkspaceID, &f.AssignmentID, &f.ScheduledTime, &f.Priority, &f.Status, &f.Notes, &f.CreatedBy,
		&completed, &f.CreatedAt, &f.UpdatedAt)
	if err != nil {
		return FollowUp{}, err
	}
	f.CompletedTime = ptrTime(completed)
	return f, nil
}

func (r *PostgresRepo) CreateFollowUp(ctx context.Context, f FollowUp, notes []Notification) (FollowUp, error) {
	err := utils.WithTx(ctx, r.db, nil, func(ctx context.Context, tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
INSERT INTO telecalling_follow_ups (id, workspace_id, assignment_id, scheduled_time, priority, status, notes,
  created_by, completed_time, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
			f.ID, f.WorkspaceID, f.AssignmentID, f.ScheduledTime, string(f.Priority), string(f.Status), f.Notes,
			f.CreatedBy, f.CompletedTime, f.CreatedAt, f.UpdatedAt)
		if err != nil {
			return err
		}
		return insertNotifications(ctx, tx, notes)
	})
	if err != nil {
		return FollowUp{}, err
	}
	return f, nil
}

func (r *PostgresRepo) GetFollowUp(ctx context.Context, id string) (FollowUp, error) {
	f, err := scanFollowUp(r.db.QueryRowContext(ctx, `SELECT `+followUpColumns+` FROM telecalling_follow_ups WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return FollowUp{}, ErrFollowUpNotFound
	}
	return f, err
}

func (r *PostgresRepo) UpdateFollowUp(ctx context.Context, f FollowUp) (FollowUp, error) {
	res, err := r.db.ExecContext(ctx, `
UPDATE telecalling_follow_ups SET scheduled_time = $2, priority = $3, status = $4, notes = $5,
  completed_time = $6, updated_at = $7
WHERE id = $1`,
		f.ID, f.ScheduledTime, string(f.Priority), string(f.Status), f.Notes, f.CompletedTime, f.UpdatedAt)
	if err := affected(res, err, ErrFollowUpNotFound); err != nil {
		return FollowUp{}, err
	}
	return f, nil
}

func (r *PostgresRepo) DeleteFollowUp(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM telecalling_follow_ups WHERE id = $1`, id)
	return affected(res, err, ErrFollowUpNotFound)
}

func (r *PostgresRepo) ListFollowUps(ctx context.Context, f FollowUpFilter) ([]FollowUp, error) {
	var a args
	a.workspace(f.Scope)
	a.telecaller(f.Scope)
	if f.AssignmentID != "" {
		a.cond("assignment_id = " + a.add(f.AssignmentID))
	}
	if f.Status != "" {
		a.cond("status = " + a.add(string(f.Status)))
	}
	q := `SELECT ` + followUpColumns + ` FROM telecalling_follow_ups` + a.clause() +
		` ORDER BY scheduled_time, id` + a.page(f.Limit, f.Offset)
	rows, err := r.db.QueryContext(ctx, q, a.vals...)
	return collect(rows, err, scanFollowUp)
}

const profileColumns = `id, workspace_id, phone, name, email, original_visit_id, original_notes, telecaller_feedback,
engagement_score, conversion_likelihood, last_contact, next_follow_up, tags, created_at, updated_at`

func scanProfile(row scanner) (Profile, error) {
	var (
		p                 Profile
		lastContact, next sql.NullTime
		tags              []byte
	)
	err := row.Scan(&p.ID, &p.WorkspaceID, &p.Phone, &p.Name, &p.Email, &p.OriginalVisitID, &p.OriginalNotes, &p.TelecallerFeedback,
		&p.EngagementScore, &p.ConversionLikelihood, &lastContact, &next, &tags, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return Profile{}, err
	}
	p.LastContact, p.NextFollowUp = ptrTime(lastContact), ptrTime(next)
	p.Tags, err = parseList(tags)
	return p, err
}

func (r *PostgresRepo) GetProfile(ctx context.Context, id string) (Profile, error) {
	p, err := scanProfile(r.db.QueryRowContext(ctx, `SELECT `+profileColumns+` FROM telecalling_profiles WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return Profile{}, ErrProfileNotFound
	}
	return p, err
}

func (r *PostgresRepo) GetProfileByPhone(ctx context.Context, workspaceID, phone string) (Profile, error) {
	p, err := scanProfile(r.db.QueryRowContext(ctx,
		`SELECT `+profileColumns+` FROM telecalling_profiles WHERE workspace_id = $1 AND phone = $2`, workspaceID, phone))
	if errors.Is(err, sql.ErrNoRows) {
		return Profile{}, ErrProfileNotFound
	}
	return p, err
}

func (r *PostgresRepo) UpdateProfile(ctx context.Context, p Profile) (Profile, error) {
	res, err := r.db.ExecContext(ctx, `
UPDATE telecalling_profiles SET name = $2, email = $3, telecaller_feedback = $4, engagement_score = $5,
  conversion_likelihood = $6, next_follow_up = $7, tags = $8::jsonb, updated_at = $9
WHERE id = $1`,
		p.ID, p.Name, p.Email, p.TelecallerFeedback, p.EngagementScore,
		string(p.ConversionLikelihood), p.NextFollowUp, jsonList(p.Tags), p.UpdatedAt)
	if err := affected(res, err, ErrProfileNotFound); err != nil {
		return Profile{}, err
	}
	return p, nil
}

func (r *PostgresRepo) ListProfiles(ctx context.Context, f ProfileFilter) ([]Profile, error) {
	var a args
	a.workspace(f.Scope)
	if f.Scope.TelecallerID != "" {
		a.cond(`phone IN (SELECT v.customer_phone FROM telecalling_visits v
  JOIN telecalling_assignments x ON x.visit_id = v.id WHERE x.telecaller_id = ` + a.add(f.Scope.TelecallerID) + ")")
	}
	if f.Scope.SalesRepID != "" {
		a.cond("phone IN (SELECT customer_phone FROM telecalling_visits WHERE sales_rep_id = " + a.add(f.Scope.SalesRepID) + ")")
	}
	if f.Likelihood != "" {
		a.cond("conversion_likelihood = " + a.add(string(f.Likelihood)))
	}
	if f.Phone != "" {
		a.cond("phone = " + a.add(f.Phone))
	}
	q := `SELECT ` + profileColumns + ` FROM telecalling_profiles` + a.clause() +
		` ORDER BY engagement_score DESC, id` + a.page(f.Limit, f.Offset)
	rows, err := r.db.QueryContext(ctx, q, a.vals...)
	return collect(rows, err, scanProfile)
}

func scanNotification(row scanner) (Notification, error) {
	var n Notification
	err := row.Scan(&n.ID, &n.WorkspaceID, &n.RecipientID, &n.Title, &n.Message, &n.Type, &n.AssignmentID, &n.IsRead, &n.CreatedAt)
	return n, err
}

func (r *PostgresRepo) ListNotifications(ctx context.Context, recipientID string, unreadOnly bool, limit, offset int) ([]Notification, error) {
	var a args
	a.cond("recipient_id = " + a.add(recipientID))
	if unreadOnly {
		a.cond("NOT is_read")
	}
	q := `SELECT id, workspace_id, recipient_id, title, message, notification_type, COALESCE(assignment_id, ''), is_read, created_at
FROM telecalling_notifications` + a.clause() + ` ORDER BY created_at DESC, id` + a.page(limit, offset)
	rows, err := r.db.QueryContext(ctx, q, a.vals...)
	return collect(rows, err, scanNotification)
}

func (r *PostgresRepo) MarkNotificationRead(ctx context.Context, id, recipientID string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE telecalling_notifications SET is_read = TRUE WHERE id = $1 AND recipient_id = $2`, id, recipientID)
	return affected(res, err, ErrNotificationNotFound)
}

func (r *PostgresRepo) MarkAllNotificationsRead(ctx context.Context, recipientID string) (int, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE telecalling_notifications SET is_read = TRUE WHERE recipient_id = $1 AND NOT is_read`, recipientID)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}
