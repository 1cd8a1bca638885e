package feedback

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

type Filter struct {
	// WorkspaceID empty means every tenant.
	WorkspaceID string
	Statuses    []Status
	Category    Category
	Sentiment   Sentiment
	IsPublic    *bool
	Search      string
	Limit       int
	Offset      int
}

type EscalationFilter struct {
	WorkspaceID string
	Status      EscalationStatus
	AssignedTo  string
	Limit       int
	Offset      int
}

type SurveyFilter struct {
	WorkspaceID string
	SurveyType  SurveyType
	IsActive    *bool
	Limit       int
	Offset      int
}

type Repository interface {
	CreateFeedback(ctx context.Context, f Feedback) (Feedback, error)
	GetFeedback(ctx context.Context, id string) (Feedback, error)
	UpdateFeedback(ctx context.Context, f Feedback) (Feedback, error)
	DeleteFeedback(ctx context.Context, id string) error
	ListFeedback(ctx context.Context, f Filter) ([]Feedback, error)
	Stats(ctx context.Context, workspaceID string) (Stats, error)

	CreateResponse(ctx context.Context, r Response) (Response, error)
	ListResponses(ctx context.Context, feedbackID string) ([]Response, error)
	DeleteResponse(ctx context.Context, feedbackID, id string) error

	// Escalate stores e and links it to f in one transaction.
	Escalate(ctx context.Context, f Feedback, e Escalation) error
	GetEscalation(ctx context.Context, id string) (Escalation, error)
	UpdateEscalation(ctx context.Context, e Escalation) (Escalation, error)
	ListEscalations(ctx context.Context, f EscalationFilter) ([]Escalation, error)
	AddNote(ctx context.Context, n EscalationNote) (EscalationNote, error)
	ListNotes(ctx context.Context, escalationID string) ([]EscalationNote, error)

	CreateSurvey(ctx context.Context, s Survey) (Survey, error)
	GetSurvey(ctx context.Context, id string) (Survey, error)
	UpdateSurvey(ctx context.Context, s Survey) (Survey, error)
	DeleteSurvey(ctx context.Context, id string) error
	ListSurveys(ctx context.Context, f SurveyFilter) ([]Survey, error)
	CreateQuestion(ctx context.Context, q Question) (Question, error)
	UpdateQuestion(ctx context.Context, q Question) (Question, error)
	DeleteQuestion(ctx context.Context, surveyID, id string) error
	// ListQuestions returns questions sorted by order.
	ListQuestions(ctx context.Context, surveyID string) ([]Question, error)
	CreateSubmission(ctx context.Context, s Submission) (Submission, error)
	ListSubmissions(ctx context.Context, surveyID string, limit, offset int) ([]Submission, error)
}

type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo { return &PostgresRepo{db: db} }

type args struct {
	where []string
	vals  []any
}

func (a *args) add(v any) string {
	a.vals = append(a.vals, v)
	return "$" + strconv.Itoa(len(a.vals))
}

func (a *args) cond(c string) { a.where = append(a.where, c) }

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

func ptrInt(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}
	i := int(v.Int64)
	return &i
}

func jsonText(v any) string {
	b, _ := json.Marshal(v)
	return string(b)
}

const feedbackColumns = `id, workspace_id, COALESCE(store_id, ''), title, content, category, status,
overall_rating, product_rating, service_rating, value_rating, COALESCE(sentiment, ''), sentiment_score,
COALESCE(customer_name, ''), COALESCE(customer_email, ''), COALESCE(customer_phone, ''), is_anonymous, is_public, tags,
COALESCE(submitted_by, ''), COALESCE(reviewed_by, ''), COALESCE(escalation_id, ''), created_at, updated_at, reviewed_at, actioned_at`

func scanFeedback(row interface{ Scan(...any) error }) (Feedback, error) {
	var (
		f                       Feedback
		product, service, value sql.NullInt64
		score                   sql.NullFloat64
		tags                    []byte
		reviewedAt, actionedAt  sql.NullTime
	)
	err := row.Scan(&f.ID, &f.WorkspaceID, &f.StoreID, &f.Title, &f.Content, &f.Category, &f.Status,
		&f.OverallRating, &product, &service, &value, &f.Sentiment, &score,
		&f.CustomerName, &f.CustomerEmail, &f.CustomerPhone, &f.IsAnonymous, &f.IsPublic, &tags,
		&f.SubmittedBy, &f.ReviewedBy, &f.EscalationID, &f.CreatedAt, &f.UpdatedAt, &reviewedAt, &actionedAt)
	if err != nil {
		return Feedback{}, err
	}
	f.ProductRating, f.ServiceRating, f.ValueRating = ptrInt(product), ptrInt(service), ptrInt(value)
	if score.Valid {
		f.SentimentScore = &score.Float64
	}
	f.ReviewedAt, f.ActionedAt = ptrTime(reviewedAt), ptrTime(actionedAt)
	if len(tags) > 0 {
		if err := json.Unmarshal(tags, &f.Tags); err != nil {
			return Feedback{}, err
		}
	}
	return f, nil
}

func (r *PostgresRepo) CreateFeedback(ctx context.Context, f Feedback) (Feedback, error) {
	if f.Tags == nil {
		f.Tags = []string{}
	}
	_, err := r.db.ExecContext(ctx, `
INSERT INTO feedback (id, workspace_id, store_id, title, content, category, status,
  overall_rating, product_rating, service_rating, value_rating, sentiment, sentiment_score,
  customer_name, customer_email, customer_phone, is_anonymous, is_public, tags, submitted_by, created_at, updated_at)
VALUES ($1, $2, NULLIF($3, ''), $4, $5, $6, $7, $8, $9, $10, $11, NULLIF($12, ''), $13,
  NULLIF($14, ''), NULLIF($15, ''), NULLIF($16, ''), $17, $18, $19::jsonb, NULLIF($20, ''), $21, $22)`,
		f.ID, f.WorkspaceID, f.StoreID, f.Title, f.Content, string(f.Category), string(f.Status),
		f.OverallRating, f.ProductRating, f.ServiceRating, f.ValueRating, string(f.Sentiment), f.SentimentScore,
		f.CustomerName, f.CustomerEmail, f.CustomerPhone, f.IsAnonymous, f.IsPublic, jsonText(f.Tags), f.SubmittedBy,
		f.CreatedAt, f.UpdatedAt)
	if err != nil {
		return Feedback{}, err
	}
	return f, nil
}

func (r *PostgresRepo) GetFeedback(ctx context.Context, id string) (Feedback, error) {
	f, err := scanFeedback(r.db.QueryRowContext(ctx, `SELECT `+feedbackColumns+` FROM feedback WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return Feedback{}, ErrFeedbackNotFound
	}
	return f, err
}

func updateFeedback(ctx context.Context, ex interface {
	ExecContext(context.Context, string, ...any) (sql.Result, error)
}, f Feedback) error {
	if f.Tags == nil {
		f.Tags = []string{}
	}
	res, err := ex.ExecContext(ctx, `
UPDATE feedback SET title = $2, content = $3, category = $4, status = $5,
  overall_rating = $6, product_rating = $7, service_rating = $8, value_rating = $9,
  sentiment = NULLIF($10, ''), sentiment_score = $11, is_public = $12, tags = $13::jsonb,
  reviewed_by = NULLIF($14, ''), escalation_id = NULLIF($15, ''), updated_at = $16, reviewed_at = $17, actioned_at = $18
WHERE id = $1`,
		f.ID, f.Title, f.Content, string(f.Category), string(f.Status),
		f.OverallRating, f.ProductRating, f.ServiceRating, f.ValueRating,
		string(f.Sentiment), f.SentimentScore, f.IsPublic, jsonText(f.Tags),
		f.ReviewedBy, f.EscalationID, f.UpdatedAt, f.ReviewedAt, f.ActionedAt)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrFeedbackNotFound
	}
	return nil
}

func (r *PostgresRepo) UpdateFeedback(ctx context.Context, f Feedback) (Feedback, error) {
	if err := updateFeedback(ctx, r.db, f); err != nil {
		return Feedback{}, err
	}
	return f, nil
}

func (r *PostgresRepo) DeleteFeedback(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM feedback WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrFeedbackNotFound
	}
	return nil
}

func (r *PostgresRepo) ListFeedback(ctx context.Context, f Filter) ([]Feedback, error) {
	var a args
	if f.WorkspaceID != "" {
		a.cond("workspace_id = " + a.add(f.WorkspaceID))
	}
	if len(f.Statuses) > 0 {
		ss := make([]string, len(f.Statuses))
		for i, s := range f.Statuses {
			ss[i] = string(s)
		}
		a.cond("status = ANY(" + a.add(ss) + ")")
	}
	if f.Category != "" {
		a.cond("category = " + a.add(string(f.Category)))
	}
	if f.Sentiment != "" {
		a.cond("sentiment = " + a.add(string(f.Sentiment)))
	}
	if f.IsPublic != nil {
		a.cond("is_public = " + a.add(*f.IsPublic))
	}
	if f.Search != "" {
		p := a.add("%" + f.Search + "%")
		a.cond("(title ILIKE " + p + " OR content ILIKE " + p + " OR customer_name ILIKE " + p + " OR customer_email ILIKE " + p + ")")
	}
	q := `SELECT ` + feedbackColumns + ` FROM feedback` + a.clause() + ` ORDER BY created_at DESC, id` + a.page(f.Limit, f.Offset)
	rows, err := r.db.QueryContext(ctx, q, a.vals...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Feedback
	for rows.Next() {
		fb, err := scanFeedback(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, fb)
	}
	return out, rows.Err()
}

func (r *PostgresRepo) Stats(ctx context.Context, workspaceID string) (Stats, error) {
	var a args
	if workspaceID != "" {
		a.cond("workspace_id = " + a.add(workspaceID))
	}
	where := a.clause()
	st := Stats{ByCategory: map[string]int{}, ByStatus: map[string]int{}, BySentiment: map[string]int{}}
	err := r.db.QueryRowContext(ctx, `
SELECT COUNT(*),
  COUNT(*) FILTER (WHERE overall_rating >= 4),
  COUNT(*) FILTER (WHERE overall_rating <= 2),
  COUNT(*) FILTER (WHERE overall_rating = 3),
  COALESCE(AVG(overall_rating), 0)
FROM feedback`+where, a.vals...).Scan(&st.Total, &st.Positive, &st.Negative, &st.Neutral, &st.AvgRating)
	if err != nil {
		return Stats{}, err
	}
	st.AvgRating = round2(st.AvgRating)

	for col, dst := range map[string]map[string]int{"category": st.ByCategory, "status": st.ByStatus, "COALESCE(sentiment, '')": st.BySentiment} {
		rows, err := r.db.QueryContext(ctx, `SELECT `+col+`, COUNT(*) FROM feedback`+where+` GROUP BY 1`, a.vals...)
		if err != nil {
			return Stats{}, err
		}
		for rows.Next() {
			var k string
			var n int
			if err := rows.Scan(&k, &n); err != nil {
				rows.Close()
				return Stats{}, err
			}
			dst[k] = n
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return Stats{}, err
		}
	}

	rows, err := r.db.QueryContext(ctx, `SELECT id, title, overall_rating, COALESCE(customer_name, ''), created_at FROM feedback`+where+
		` ORDER BY created_at DESC, id LIMIT 5`, a.vals...)
	if err != nil {
		return Stats{}, err
	}
	for rows.Next() {
		var rf RecentFeedback
		if err := rows.Scan(&rf.ID, &rf.Title, &rf.OverallRating, &rf.CustomerName, &rf.CreatedAt); err != nil {
			rows.Close()
			return Stats{}, err
		}
		st.Recent = append(st.Recent, rf)
	}
	rows.Close()

	neg := "overall_rating <= 2"
	if where == "" {
		neg = " WHERE " + neg
	} else {
		neg = where + " AND " + neg
	}
	rows, err = r.db.QueryContext(ctx, `SELECT category, COUNT(*) FROM feedback`+neg+` GROUP BY category ORDER BY 2 DESC, 1 LIMIT 5`, a.vals...)
	if err != nil {
		return Stats{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var ic IssueCount
		if err := rows.Scan(&ic.Category, &ic.Count); err != nil {
			return Stats{}, err
		}
		st.TopIssues = append(st.TopIssues, ic)
	}
	return st, rows.Err()
}

func (r *PostgresRepo) CreateResponse(ctx context.Context, resp Response) (Response, error) {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO feedback_responses (id, feedback_id, responder_id, content, is_public, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		resp.ID, resp.FeedbackID, resp.ResponderID, resp.Content, resp.IsPublic, resp.CreatedAt, resp.UpdatedAt)
	if err != nil {
		return Response{}, err
	}
	return resp, nil
}

func (r *PostgresRepo) ListResponses(ctx context.Context, feedbackID string) ([]Response, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT id, feedback_id, responder_id, content, is_public, created_at, updated_at
FROM feedback_responses WHERE feedback_id = $1 ORDER BY created_at DESC, id`, feedbackID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Response
	for rows.Next() {
		var resp Response
		if err := rows.Scan(&resp.ID, &resp.FeedbackID, &resp.ResponderID, &resp.Content, &resp.IsPublic, &resp.CreatedAt, &resp.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, resp)
	}
	return out, rows.Err()
}

func (r *PostgresRepo) DeleteResponse(ctx context.Context, feedbackID, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM feedback_responses WHERE feedback_id = $1 AND id = $2`, feedbackID, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrResponseNotFound
	}
	return nil
}

const escalationColumns = `id, workspace_id, COALESCE(feedback_id, ''), title, description, category, priority, status,
created_by, COALESCE(assigned_to, ''), sla_hours, due_date, created_at, updated_at, assigned_at, resolved_at, closed_at`

func scanEscalation(row interface{ Scan(...any) error }) (Escalation, error) {
	var (
		e                          Escalation
		assigned, resolved, closed sql.NullTime
	)
	err := row.Scan(&e.ID, &e.WorkspaceID, &e.FeedbackID, &e.Title, &e.Description, &e.Category, &e.Priority, &e.Status,
		&e.CreatedBy, &e.AssignedTo, &e.SLAHours, &e.DueDate, &e.CreatedAt, &e.UpdatedAt, &assigned, &resolved, &closed)
	if err != nil {
		return Escalation{}, err
	}
	e.AssignedAt, e.ResolvedAt, e.ClosedAt = ptrTime(assigned), ptrTime(resolved), ptrTime(closed)
	return e, nil
}

func (r *PostgresRepo) Escalate(ctx context.Context, f Feedback, e Escalation) error {
	return utils.WithTx(ctx, r.db, nil, func(ctx context.Context, tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
INSERT INTO escalations (id, workspace_id, feedback_id, title, description, category, priority, status,
  created_by, sla_hours, due_date, created_at, updated_at)
VALUES ($1, $2, NULLIF($3, ''), $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
			e.ID, e.WorkspaceID, e.FeedbackID, e.Title, e.Description, e.Category, e.Priority, string(e.Status),
			e.CreatedBy, e.SLAHours, e.DueDate, e.CreatedAt, e.UpdatedAt)
		if err != nil {
			return err
		}
		return updateFeedback(ctx, tx, f)
	})
}

func (r *PostgresRepo) GetEscalation(ctx context.Context, id string) (Escalation, error) {
	e, err := scanEscalation(r.db.QueryRowContext(ctx, `SELECT `+escalationColumns+` FROM escalations WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return Escalation{}, ErrEscalationNotFound
	}
	return e, err
}

func (r *PostgresRepo) UpdateEscalation(ctx context.Context, e Escalation) (Escalation, error) {
	res, err := r.db.ExecContext(ctx, `
UPDATE escalations SET title = $2, description = $3, priority = $4, status = $5, assigned_to = NULLIF($6, ''),
  updated_at = $7, assigned_at = $8, resolved_at = $9, closed_at = $10
WHERE id = $1`,
		e.ID, e.Title, e.Description, e.Priority, string(e.Status), e.AssignedTo, e.UpdatedAt, e.AssignedAt, e.ResolvedAt, e.ClosedAt)
	if err != nil {
		return Escalation{}, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return Escalation{}, ErrEscalationNotFound
	}
	return e, nil
}

func (r *PostgresRepo) ListEscalations(ctx context.Context, f EscalationFilter) ([]Escalation, error) {
	var a args
	if f.WorkspaceID != "" {
		a.cond("workspace_id = " + a.add(f.WorkspaceID))
	}
	if f.Status != "" {
		a.cond("status = " + a.add(string(f.Status)))
	}
	if f.AssignedTo != "" {
		a.cond("assigned_to = " + a.add(f.AssignedTo))
	}
	rows, err := r.db.QueryContext(ctx, `SELECT `+escalationColumns+` FROM escalations`+a.clause()+
		` ORDER BY created_at DESC, id`+a.page(f.Limit, f.Offset), a.vals...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Escalation
	for rows.Next() {
		e, err := scanEscalation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (r *PostgresRepo) AddNote(ctx context.Context, n EscalationNote) (EscalationNote, error) {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO escalation_notes (id, escalation_id, author_id, content, is_internal, created_at)
VALUES ($1, $2, $3, $4, $5, $6)`, n.ID, n.EscalationID, n.AuthorID, n.Content, n.IsInternal, n.CreatedAt)
	if err != nil {
		return EscalationNote{}, err
	}
	return n, nil
}

func (r *PostgresRepo) ListNotes(ctx context.Context, escalationID string) ([]EscalationNote, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT id, escalation_id, author_id, content, is_internal, created_at
FROM escalation_notes WHERE escalation_id = $1 ORDER BY created_at DESC, id`, escalationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []EscalationNote
	for rows.Next() {
		var n EscalationNote
		if err := rows.Scan(&n.ID, &n.EscalationID, &n.AuthorID, &n.Content, &n.IsInternal, &n.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

const surveyColumns = `id, workspace_id, name, description, survey_type, is_active, is_anonymous, start_date, end_date, created_at, updated_at`

func scanSurvey(row interface{ Scan(...any) error }) (Survey, error) {
	var (
		s          Survey
		start, end sql.NullTime
	)
	if err := row.Scan(&s.ID, &s.WorkspaceID, &s.Name, &s.Description, &s.SurveyType, &s.IsActive, &s.IsAnonymous,
		&start, &end, &s.CreatedAt, &s.UpdatedAt); err != nil {
		return Survey{}, err
	}
	s.StartDate, s.EndDate = ptrTime(start), ptrTime(end)
	return s, nil
}

func (r *PostgresRepo) CreateSurvey(ctx context.Context, s Survey) (Survey, error) {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO feedback_surveys (id, workspace_id, name, description, survey_type, is_active, is_anonymous, start_date, end_date, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		s.ID, s.WorkspaceID, s.Name, s.Description, string(s.SurveyType), s.IsActive, s.IsAnonymous, s.StartDate, s.EndDate, s.CreatedAt, s.UpdatedAt)
	if err != nil {
		return Survey{}, err
	}
	return s, nil
}

func (r *PostgresRepo) GetSurvey(ctx context.Context, id string) (Survey, error) {
	s, err := scanSurvey(r.db.QueryRowContext(ctx, `SELECT `+surveyColumns+` FROM feedback_surveys WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return Survey{}, ErrSurveyNotFound
	}
	if err != nil {
		return Survey{}, err
	}
	s.Questions, err = r.ListQuestions(ctx, id)
	return s, err
}

func (r *PostgresRepo) UpdateSurvey(ctx context.Context, s Survey) (Survey, error) {
	res, err := r.db.ExecContext(ctx, `
UPDATE feedback_surveys SET name = $2, description = $3, survey_type = $4, is_active = $5, is_anonymous = $6,
  start_date = $7, end_date = $8, updated_at = $9
WHERE id = $1`, s.ID, s.Name, s.Description, string(s.SurveyType), s.IsActive, s.IsAnonymous, s.StartDate, s.EndDate, s.UpdatedAt)
	if err != nil {
		return Survey{}, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return Survey{}, ErrSurveyNotFound
	}
	return s, nil
}

func (r *PostgresRepo) DeleteSurvey(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM feedback_surveys WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrSurveyNotFound
	}
	return nil
}

func (r *PostgresRepo) ListSurveys(ctx context.Context, f SurveyFilter) ([]Survey, error) {
	var a args
	if f.WorkspaceID != "" {
		a.cond("workspace_id = " + a.add(f.WorkspaceID))
	}
	if f.SurveyType != "" {
		a.cond("survey_type = " + a.add(string(f.SurveyType)))
	}
	if f.IsActive != nil {
		a.cond("is_active = " + a.add(*f.IsActive))
	}
	rows, err := r.db.QueryContext(ctx, `SELECT `+surveyColumns+` FROM feedback_surveys`+a.clause()+
		` ORDER BY created_at DESC, id`+a.page(f.Limit, f.Offset), a.vals...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Survey
	for rows.Next() {
		s, err := scanSurvey(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *PostgresRepo) CreateQuestion(ctx context.Context, q Question) (Question, error) {
	if q.Options == nil {
		q.Options = []string{}
	}
	_, err := r.db.ExecContext(ctx, `
INSERT INTO feedback_questions (id, survey_id, question_text, question_type, is_required, sort_order, options, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7::jsonb, $8)`,
		q.ID, q.SurveyID, q.QuestionText, string(q.QuestionType), q.IsRequired, q.Order, jsonText(q.Options), q.CreatedAt)
	if err != nil {
		return Question{}, err
	}
	return q, nil
}

func (r *PostgresRepo) UpdateQuestion(ctx context.Context, q Question) (Question, error) {
	if q.Options == nil {
		q.Options = []string{}
	}
	res, err := r.db.ExecContext(ctx, `
UPDATE feedback_questions SET question_text = $3, question_type = $4, is_required = $5, sort_order = $6, options = $7::jsonb
WHERE survey_id = $1 AND id = $2`,
		q.SurveyID, q.ID, q.QuestionText, string(q.QuestionType), q.IsRequired, q.Order, jsonText(q.Options))
	if err != nil {
		return Question{}, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return Question{}, ErrQuestionNotFound
	}
	return q, nil
}

func (r *PostgresRepo) DeleteQuestion(ctx context.Context, surveyID, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM feedback_questions WHERE survey_id = $1 AND id = $2`, surveyID, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrQuestionNotFound
	}
	return nil
}

func (r *PostgresRepo) ListQuestions(ctx context.Context, surveyID string) ([]Question, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT id, survey_id, question_text, question_type, is_required, sort_order, options, created_at
FROM feedback_questions WHERE survey_id = $1 ORDER BY sort_order, created_at, id`, surveyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Question{}
	for rows.Next() {
		var (
			q    Question
			opts []byte
		)
		if err := rows.Scan(&q.ID, &q.SurveyID, &q.QuestionText, &q.QuestionType, &q.IsRequired, &q.Order, &opts, &q.CreatedAt); err != nil {
			return nil, err
		}
		if len(opts) > 0 {
			if err := json.Unmarshal(opts, &q.Options); err != nil {
				return nil, err
			}
		}
		out = append(out, q)
	}
	return out, rows.Err()
}

func (r *PostgresRepo) CreateSubmission(ctx context.Context, s Submission) (Submission, error) {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO feedback_submissions (id, survey_id, workspace_id, answers, ip_address, user_agent, submitted_at)
VALUES ($1, $2, $3, $4::jsonb, NULLIF($5, ''), $6, $7)`,
		s.ID, s.SurveyID, s.WorkspaceID, jsonText(s.Answers), s.IPAddress, s.UserAgent, s.SubmittedAt)
	if err != nil {
		return Submission{}, err
	}
	return s, nil
}

func (r *PostgresRepo) ListSubmissions(ctx context.Context, surveyID string, limit, offset int) ([]Submission, error) {
	var a args
	a.cond("survey_id = " + a.add(surveyID))
	rows, err := r.db.QueryContext(ctx, `
SELECT id, survey_id, workspace_id, answers, COALESCE(ip_address, ''), user_agent, submitted_at
FROM feedback_submissions`+a.clause()+` ORDER BY submitted_at DESC, id`+a.page(limit, offset), a.vals...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Submission
	for rows.Next() {
		var (
			s       Submission
			answers []byte
		)
		if err := rows.Scan(&s.ID, &s.SurveyID, &s.WorkspaceID, &answers, &s.IPAddress, &s.UserAgent, &s.SubmittedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(answers, &s.Answers); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
