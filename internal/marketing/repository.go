package marketing

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

// Scope limits which rows a caller sees. An empty WorkspaceID means every
// tenant. With StoreLimited set, rows must belong to StoreID or to no store.
type Scope struct {
	WorkspaceID  string
	StoreID      string
	StoreLimited bool
}

func (s Scope) allows(workspaceID, storeID string) bool {
	if s.WorkspaceID != "" && workspaceID != s.WorkspaceID {
		return false
	}
	return !s.StoreLimited || storeID == "" || storeID == s.StoreID
}

type CampaignFilter struct {
	Scope        Scope
	Status       CampaignStatus
	CampaignType CampaignType
	Search       string
	// ByConversions orders by conversions instead of recency.
	ByConversions bool
	Limit         int
	Offset        int
}

type TemplateFilter struct {
	Scope        Scope
	TemplateType TemplateType
	Category     TemplateCategory
	Approved     *bool
	Limit        int
	Offset       int
}

type PlatformFilter struct {
	Scope        Scope
	PlatformType PlatformType
	Status       PlatformStatus
	Limit        int
	Offset       int
}

type SegmentFilter struct {
	Scope  Scope
	Limit  int
	Offset int
}

type EventFilter struct {
	Scope      Scope
	EventType  EventType
	CampaignID string
	Limit      int
	Offset     int
}

// Summary aggregates a scope for the dashboard.
type Summary struct {
	Campaigns          int
	ActiveCampaigns    int
	Templates          int
	ConnectedPlatforms int
	Segments           int
	TotalReach         int
	MessagesSent       int
	Conversions        int
	Revenue            float64
}

// Repository persists marketing records. Create and update calls take the
// events produced by the save and store them atomically with the record.
type Repository interface {
	CreateCampaign(ctx context.Context, c Campaign, events []Event) (Campaign, error)
	GetCampaign(ctx context.Context, id string) (Campaign, error)
	UpdateCampaign(ctx context.Context, c Campaign, events []Event) (Campaign, error)
	DeleteCampaign(ctx context.Context, id string) error
	ListCampaigns(ctx context.Context, f CampaignFilter) ([]Campaign, error)

	CreateTemplate(ctx context.Context, t Template, events []Event) (Template, error)
	GetTemplate(ctx context.Context, id string) (Template, error)
	UpdateTemplate(ctx context.Context, t Template, events []Event) (Template, error)
	DeleteTemplate(ctx context.Context, id string) error
	ListTemplates(ctx context.Context, f TemplateFilter) ([]Template, error)

	CreatePlatform(ctx context.Context, p Platform, events []Event) (Platform, error)
	GetPlatform(ctx context.Context, id string) (Platform, error)
	UpdatePlatform(ctx context.Context, p Platform) (Platform, error)
	DeletePlatform(ctx context.Context, id string) error
	ListPlatforms(ctx context.Context, f PlatformFilter) ([]Platform, error)

	CreateSegment(ctx context.Context, s Segment, events []Event) (Segment, error)
	GetSegment(ctx context.Context, id string) (Segment, error)
	UpdateSegment(ctx context.Context, s Segment) (Segment, error)
	DeleteSegment(ctx context.Context, id string) error
	ListSegments(ctx context.Context, f SegmentFilter) ([]Segment, error)

	// RecordAnalytics adds a's counters to the (campaign, date, hour) row,
	// creating it on first use, and returns the stored totals.
	RecordAnalytics(ctx context.Context, a Analytics) (Analytics, error)
	ListAnalytics(ctx context.Context, campaignID string, from, to time.Time) ([]Analytics, error)

	ListEvents(ctx context.Context, f EventFilter) ([]Event, error)
	Summary(ctx context.Context, s Scope) (Summary, error)
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

func (a *args) scope(s Scope) {
	if s.WorkspaceID != "" {
		a.cond("workspace_id = " + a.add(s.WorkspaceID))
	}
	if s.StoreLimited {
		a.cond("(store_id IS NULL OR store_id = " + a.add(s.StoreID) + ")")
	}
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

func rawJSON(raw []byte, empty string) json.RawMessage {
	if len(raw) == 0 {
		return json.RawMessage(empty)
	}
	return json.RawMessage(raw)
}

func jsonOr(v json.RawMessage, empty string) string {
	if len(v) == 0 {
		return empty
	}
	return string(v)
}

func ptrTime(v sql.NullTime) *time.Time {
	if !v.Valid {
		return nil
	}
	t := v.Time
	return &t
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

func insertEvents(ctx context.Context, ex execer, events []Event) error {
	for _, e := range events {
		data, err := json.Marshal(e.EventData)
		if err != nil {
			return err
		}
		_, err = ex.ExecContext(ctx, `
INSERT INTO marketing_events (id, workspace_id, store_id, event_type, title, description,
  campaign_id, template_id, platform_id, segment_id, event_data, created_at)
VALUES ($1, $2, NULLIF($3, ''), $4, $5, $6, NULLIF($7, ''), NULLIF($8, ''), NULLIF($9, ''), NULLIF($10, ''), $11::jsonb, $12)`,
			e.ID, e.WorkspaceID, e.StoreID, string(e.EventType), e.Title, e.Description,
			e.CampaignID, e.TemplateID, e.PlatformID, e.SegmentID, string(data), e.CreatedAt)
		if err != nil {
			return err
		}
	}
	return nil
}

func (r *PostgresRepo) withEvents(ctx context.Context, events []Event, fn func(ctx context.Context, tx *sql.Tx) error) error {
	return utils.WithTx(ctx, r.db, nil, func(ctx context.Context, tx *sql.Tx) error {
		if err := fn(ctx, tx); err != nil {
			return err
		}
		return insertEvents(ctx, tx, events)
	})
}

const campaignColumns = `id, workspace_id, COALESCE(store_id, ''), name, description, campaign_type, status,
target_audience, estimated_reach, COALESCE(message_template_id, ''), custom_message, scheduled_at, start_date, end_date, budget,
messages_sent, messages_delivered, messages_read, replies_received, conversions, revenue_generated,
created_by, created_at, updated_at`

func scanCampaign(row scanner) (Campaign, error) {
	var (
		c                         Campaign
		audience                  []byte
		scheduled, start, endDate sql.NullTime
	)
	err := row.Scan(&c.ID, &c.WorkspaceID, &c.StoreID, &c.Name, &c.Description, &c.CampaignType, &c.Status,
		&audience, &c.EstimatedReach, &c.TemplateID, &c.CustomMessage, &scheduled, &start, &endDate, &c.Budget,
		&c.MessagesSent, &c.MessagesDelivered, &c.MessagesRead, &c.RepliesReceived, &c.Conversions, &c.RevenueGenerated,
		&c.CreatedBy, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return Campaign{}, err
	}
	c.TargetAudience = rawJSON(audience, `[]`)
	c.ScheduledAt, c.StartDate, c.EndDate = ptrTime(scheduled), ptrTime(start), ptrTime(endDate)
	return c, nil
}

func (r *PostgresRepo) CreateCampaign(ctx context.Context, c Campaign, events []Event) (Campaign, error) {
	err := r.withEvents(ctx, events, func(ctx context.Context, tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
INSERT INTO marketing_campaigns (id, workspace_id, store_id, name, description, campaign_type, status,
  target_audience, estimated_reach, message_template_id, custom_message, scheduled_at, start_date, end_date, budget,
  messages_sent, messages_delivered, messages_read, replies_received, conversions, revenue_generated,
  created_by, created_at, updated_at)
VALUES ($1, $2, NULLIF($3, ''), $4, $5, $6, $7, $8::jsonb, $9, NULLIF($10, ''), $11, $12, $13, $14, $15,
  $16, $17, $18, $19, $20, $21, $22, $23, $24)`,
			c.ID, c.WorkspaceID, c.StoreID, c.Name, c.Description, string(c.CampaignType), string(c.Status),
			jsonOr(c.TargetAudience, `[]`), c.EstimatedReach, c.TemplateID, c.CustomMessage, c.ScheduledAt, c.StartDate, c.EndDate, c.Budget,
			c.MessagesSent, c.MessagesDelivered, c.MessagesRead, c.RepliesReceived, c.Conversions, c.RevenueGenerated,
			c.CreatedBy, c.CreatedAt, c.UpdatedAt)
		return err
	})
	if err != nil {
		return Campaign{}, err
	}
	return c, nil
}

func (r *PostgresRepo) GetCampaign(ctx context.Context, id string) (Campaign, error) {
	c, err := scanCampaign(r.db.QueryRowContext(ctx, `SELECT `+campaignColumns+` FROM marketing_campaigns WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return Campaign{}, ErrCampaignNotFound
	}
	return c, err
}

func (r *PostgresRepo) UpdateCampaign(ctx context.Context, c Campaign, events []Event) (Campaign, error) {
	err := r.withEvents(ctx, events, func(ctx context.Context, tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
UPDATE marketing_campaigns SET name = $2, description = $3, campaign_type = $4, status = $5,
  target_audience = $6::jsonb, estimated_reach = $7, message_template_id = NULLIF($8, ''), custom_message = $9,
  scheduled_at = $10, start_date = $11, end_date = $12, budget = $13,
  messages_sent = $14, messages_delivered = $15, messages_read = $16, replies_received = $17,
  conversions = $18, revenue_generated = $19, updated_at = $20
WHERE id = $1`,
			c.ID, c.Name, c.Description, string(c.CampaignType), string(c.Status),
			jsonOr(c.TargetAudience, `[]`), c.EstimatedReach, c.TemplateID, c.CustomMessage,
			c.ScheduledAt, c.StartDate, c.EndDate, c.Budget,
			c.MessagesSent, c.MessagesDelivered, c.MessagesRead, c.RepliesReceived,
			c.Conversions, c.RevenueGenerated, c.UpdatedAt)
		return affected(res, err, ErrCampaignNotFound)
	})
	if err != nil {
		return Campaign{}, err
	}
	return c, nil
}

func (r *PostgresRepo) DeleteCampaign(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM marketing_campaigns WHERE id = $1`, id)
	return affected(res, err, ErrCampaignNotFound)
}

func (r *PostgresRepo) ListCampaigns(ctx context.Context, f CampaignFilter) ([]Campaign, error) {
	var a args
	a.scope(f.Scope)
	if f.Status != "" {
		a.cond("status = " + a.add(string(f.Status)))
	}
	if f.CampaignType != "" {
		a.cond("campaign_type = " + a.add(string(f.CampaignType)))
	}
	if f.Search != "" {
		p := a.add("%" + f.Search + "%")
		a.cond("(name ILIKE " + p + " OR description ILIKE " + p + ")")
	}
	order := ` ORDER BY created_at DESC, id`
	if f.ByConversions {
		order = ` ORDER BY conversions DESC, created_at DESC, id`
	}
	q := `SELECT ` + campaignColumns + ` FROM marketing_campaigns` + a.clause() + order + a.page(f.Limit, f.Offset)
	rows, err := r.db.QueryContext(ctx, q, a.vals...)
	return collect(rows, err, scanCampaign)
}

const templateColumns = `id, workspace_id, COALESCE(store_id, ''), name, template_type, category, subject, message_content,
variables, is_approved, approval_status, usage_count, created_by, created_at, updated_at`

func scanTemplate(row scanner) (Template, error) {
	var (
		t    Template
		vars []byte
	)
	err := row.Scan(&t.ID, &t.WorkspaceID, &t.StoreID, &t.Name, &t.TemplateType, &t.Category, &t.Subject, &t.Content,
		&vars, &t.IsApproved, &t.ApprovalStatus, &t.UsageCount, &t.CreatedBy, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return Template{}, err
	}
	t.Variables = []string{}
	if len(vars) > 0 {
		if err := json.Unmarshal(vars, &t.Variables); err != nil {
			return Template{}, err
		}
	}
	return t, nil
}

func variablesJSON(v []string) string {
	if v == nil {
		v = []string{}
	}
	b, _ := json.Marshal(v)
	return string(b)
}

func (r *PostgresRepo) CreateTemplate(ctx context.Context, t Template, events []Event) (Template, error) {
	err := r.withEvents(ctx, events, func(ctx context.Context, tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
INSERT INTO marketing_templates (id, workspace_id, store_id, name, template_type, category, subject, message_content,
  variables, is_approved, approval_status, usage_count, created_by, created_at, updated_at)
VALUES ($1, $2, NULLIF($3, ''), $4, $5, $6, $7, $8, $9::jsonb, $10, $11, $12, $13, $14, $15)`,
			t.ID, t.WorkspaceID, t.StoreID, t.Name, string(t.TemplateType), string(t.Category), t.Subject, t.Content,
			variablesJSON(t.Variables), t.IsApproved, t.ApprovalStatus, t.UsageCount, t.CreatedBy, t.CreatedAt, t.UpdatedAt)
		return err
	})
	if err != nil {
		return Template{}, err
	}
	return t, nil
}

func (r *PostgresRepo) GetTemplate(ctx context.Context, id string) (Template, error) {
	t, err := scanTemplate(r.db.QueryRowContext(ctx, `SELECT `+templateColumns+` FROM marketing_templates WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return Template{}, ErrTemplateNotFound
	}
	return t, err
}

func (r *PostgresRepo) UpdateTemplate(ctx context.Context, t Template, events []Event) (Template, error) {
	err := r.withEvents(ctx, events, func(ctx context.Context, tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
UPDATE marketing_templates SET name = $2, template_type = $3, category = $4, subject = $5, message_content = $6,
  variables = $7::jsonb, is_approved = $8, approval_status = $9, usage_count = $10, updated_at = $11
WHERE id = $1`,
			t.ID, t.Name, string(t.TemplateType), string(t.Category), t.Subject, t.Content,
			variablesJSON(t.Variables), t.IsApproved, t.ApprovalStatus, t.UsageCount, t.UpdatedAt)
		return affected(res, err, ErrTemplateNotFound)
	})
	if err != nil {
		return Template{}, err
	}
	return t, nil
}

func (r *PostgresRepo) DeleteTemplate(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM marketing_templates WHERE id = $1`, id)
	return affected(res, err, ErrTemplateNotFound)
}

func (r *PostgresRepo) ListTemplates(ctx context.Context, f TemplateFilter) ([]Template, error) {
	var a args
	a.scope(f.Scope)
	if f.TemplateType != "" {
		a.cond("template_type = " + a.add(string(f.TemplateType)))
	}
	if f.Category != "" {
		a.cond("category = " + a.add(string(f.Category)))
	}
	if f.Approved != nil {
		a.cond("is_approved = " + a.add(*f.Approved))
	}
	q := `SELECT ` + templateColumns + ` FROM marketing_templates` + a.clause() + ` ORDER BY created_at DESC, id` + a.page(f.Limit, f.Offset)
	rows, err := r.db.QueryContext(ctx, q, a.vals...)
	return collect(rows, err, scanTemplate)
}

const platformColumns = `id, workspace_id, COALESCE(store_id, ''), name, platform_type, status, api_key, api_secret,
webhook_url, store_url, last_sync, sync_frequency, total_products, total_orders, total_revenue, created_at, updated_at`

func scanPlatform(row scanner) (Platform, error) {
	var (
		p        Platform
		lastSync sql.NullTime
	)
	err := row.Scan(&p.ID, &p.WorkspaceID, &p.StoreID, &p.Name, &p.PlatformType, &p.Status, &p.APIKey, &p.APISecret,
		&p.WebhookURL, &p.StoreURL, &lastSync, &p.SyncFrequency, &p.TotalProducts, &p.TotalOrders, &p.TotalRevenue,
		&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return Platform{}, err
	}
	p.LastSync = ptrTime(lastSync)
	return p, nil
}

func (r *PostgresRepo) CreatePlatform(ctx context.Context, p Platform, events []Event) (Platform, error) {
	err := r.withEvents(ctx, events, func(ctx context.Context, tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
INSERT INTO marketing_platforms (id, workspace_id, store_id, name, platform_type, status, api_key, api_secret,
  webhook_url, store_url, last_sync, sync_frequency, total_products, total_orders, total_revenue, created_at, updated_at)
VALUES ($1, $2, NULLIF($3, ''), $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`,
			p.ID, p.WorkspaceID, p.StoreID, p.Name, string(p.PlatformType), string(p.Status), p.APIKey, p.APISecret,
			p.WebhookURL, p.StoreURL, p.LastSync, p.SyncFrequency, p.TotalProducts, p.TotalOrders, p.TotalRevenue,
			p.CreatedAt, p.UpdatedAt)
		return err
	})
	if err != nil {
		return Platform{}, err
	}
	return p, nil
}

func (r *PostgresRepo) GetPlatform(ctx context.Context, id string) (Platform, error) {
	p, err := scanPlatform(r.db.QueryRowContext(ctx, `SELECT `+platformColumns+` FROM marketing_platforms WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return Platform{}, ErrPlatformNotFound
	}
	return p, err
}

func (r *PostgresRepo) UpdatePlatform(ctx context.Context, p Platform) (Platform, error) {
	res, err := r.db.ExecContext(ctx, `
UPDATE marketing_platforms SET name = $2, platform_type = $3, status = $4, api_key = $5, api_secret = $6,
  webhook_url = $7, store_url = $8, last_sync = $9, sync_frequency = $10, total_products = $11,
  total_orders = $12, total_revenue = $13, updated_at = $14
WHERE id = $1`,
		p.ID, p.Name, string(p.PlatformType), string(p.Status), p.APIKey, p.APISecret,
		p.WebhookURL, p.StoreURL, p.LastSync, p.SyncFrequency, p.TotalProducts,
		p.TotalOrders, p.TotalRevenue, p.UpdatedAt)
	if err := affected(res, err, ErrPlatformNotFound); err != nil {
		return Platform{}, err
	}
	return p, nil
}

func (r *PostgresRepo) DeletePlatform(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM marketing_platforms WHERE id = $1`, id)
	return affected(res, err, ErrPlatformNotFound)
}

func (r *PostgresRepo) ListPlatforms(ctx context.Context, f PlatformFilter) ([]Platform, error) {
	var a args
	a.scope(f.Scope)
	if f.PlatformType != "" {
		a.cond("platform_type = " + a.add(string(f.PlatformType)))
	}
	if f.Status != "" {
		a.cond("status = " + a.add(string(f.Status)))
	}
	q := `SELECT ` + platformColumns + ` FROM marketing_platforms` + a.clause() + ` ORDER BY created_at DESC, id` + a.page(f.Limit, f.Offset)
	rows, err := r.db.QueryContext(ctx, q, a.vals...)
	return collect(rows, err, scanPlatform)
}

const segmentColumns = `id, workspace_id, COALESCE(store_id, ''), name, description, criteria, customer_count,
total_revenue, average_order_value, conversion_rate, engagement_rate, created_by, created_at, updated_at`

func scanSegment(row scanner) (Segment, error) {
	var (
		s        Segment
		criteria []byte
	)
	err := row.Scan(&s.ID, &s.WorkspaceID, &s.StoreID, &s.Name, &s.Description, &criteria, &s.CustomerCount,
		&s.TotalRevenue, &s.AvgOrderValue, &s.ConversionRate, &s.EngagementRate, &s.CreatedBy, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return Segment{}, err
	}
	s.Criteria = rawJSON(criteria, `{}`)
	return s, nil
}

func (r *PostgresRepo) CreateSegment(ctx context.Context, s Segment, events []Event) (Segment, error) {
	err := r.withEvents(ctx, events, func(ctx context.Context, tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
INSERT INTO marketing_segments (id, workspace_id, store_id, name, description, criteria, customer_count,
  total_revenue, average_order_value, conversion_rate, engagement_rate, created_by, created_at, updated_at)
VALUES ($1, $2, NULLIF($3, ''), $4, $5, $6::jsonb, $7, $8, $9, $10, $11, $12, $13, $14)`,
			s.ID, s.WorkspaceID, s.StoreID, s.Name, s.Description, jsonOr(s.Criteria, `{}`), s.CustomerCount,
			s.TotalRevenue, s.AvgOrderValue, s.ConversionRate, s.EngagementRate, s.CreatedBy, s.CreatedAt, s.UpdatedAt)
		return err
	})
	if err != nil {
		return Segment{}, err
	}
	return s, nil
}

func (r *PostgresRepo) GetSegment(ctx context.Context, id string) (Segment, error) {
	s, err := scanSegment(r.db.QueryRowContext(ctx, `SELECT `+segmentColumns+` FROM marketing_segments WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return Segment{}, ErrSegmentNotFound
	}
	return s, err
}

func (r *PostgresRepo) UpdateSegment(ctx context.Context, s Segment) (Segment, error) {
	res, err := r.db.ExecContext(ctx, `
UPDATE marketing_segments SET name = $2, description = $3, criteria = $4::jsonb, customer_count = $5,
  total_revenue = $6, average_order_value = $7, conversion_rate = $8, engagement_rate = $9, updated_at = $10
WHERE id = $1`,
		s.ID, s.Name, s.Description, jsonOr(s.Criteria, `{}`), s.CustomerCount,
		s.TotalRevenue, s.AvgOrderValue, s.ConversionRate, s.EngagementRate, s.UpdatedAt)
	if err := affected(res, err, ErrSegmentNotFound); err != nil {
		return Segment{}, err
	}
	return s, nil
}

func (r *PostgresRepo) DeleteSegment(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM marketing_segments WHERE id = $1`, id)
	return affected(res, err, ErrSegmentNotFound)
}

func (r *PostgresRepo) ListSegments(ctx context.Context, f SegmentFilter) ([]Segment, error) {
	var a args
	a.scope(f.Scope)
	q := `SELECT ` + segmentColumns + ` FROM marketing_segments` + a.clause() + ` ORDER BY created_at DESC, id` + a.page(f.Limit, f.Offset)
	rows, err := r.db.QueryContext(ctx, q, a.vals...)
	return collect(rows, err, scanSegment)
}

func (r *PostgresRepo) RecordAnalytics(ctx context.Context, a Analytics) (Analytics, error) {
	err := r.db.QueryRowContext(ctx, `
INSERT INTO marketing_analytics (id, campaign_id, workspace_id, date, hour, impressions, clicks, conversions, revenue, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
ON CONFLICT (campaign_id, date, hour) DO UPDATE SET
  impressions = marketing_analytics.impressions + EXCLUDED.impressions,
  clicks = marketing_analytics.clicks + EXCLUDED.clicks,
  conversions = marketing_analytics.conversions + EXCLUDED.conversions,
  revenue = marketing_analytics.revenue + EXCLUDED.revenue,
  updated_at = EXCLUDED.updated_at
RETURNING id, impressions, clicks, conversions, revenue`,
		a.ID, a.CampaignID, a.WorkspaceID, a.Date, a.Hour, a.Impressions, a.Clicks, a.Conversions, a.Revenue, a.UpdatedAt,
	).Scan(&a.ID, &a.Impressions, &a.Clicks, &a.Conversions, &a.Revenue)
	if err != nil {
		return Analytics{}, err
	}
	return a, nil
}

func (r *PostgresRepo) ListAnalytics(ctx context.Context, campaignID string, from, to time.Time) ([]Analytics, error) {
	var a args
	a.cond("campaign_id = " + a.add(campaignID))
	if !from.IsZero() {
		a.cond("date >= " + a.add(from))
	}
	if !to.IsZero() {
		a.cond("date <= " + a.add(to))
	}
	rows, err := r.db.QueryContext(ctx, `
SELECT id, campaign_id, workspace_id, date, hour, impressions, clicks, conversions, revenue, updated_at
FROM marketing_analytics`+a.clause()+` ORDER BY date, hour`, a.vals...)
	return collect(rows, err, func(row scanner) (Analytics, error) {
		var m Analytics
		err := row.Scan(&m.ID, &m.CampaignID, &m.WorkspaceID, &m.Date, &m.Hour, &m.Impressions, &m.Clicks,
			&m.Conversions, &m.Revenue, &m.UpdatedAt)
		return m, err
	})
}

func (r *PostgresRepo) ListEvents(ctx context.Context, f EventFilter) ([]Event, error) {
	var a args
	a.scope(f.Scope)
	if f.EventType != "" {
		a.cond("event_type = " + a.add(string(f.EventType)))
	}
	if f.CampaignID != "" {
		a.cond("campaign_id = " + a.add(f.CampaignID))
	}
	rows, err := r.db.QueryContext(ctx, `
SELECT id, workspace_id, COALESCE(store_id, ''), event_type, title, description, COALESCE(campaign_id, ''),
  COALESCE(template_id, ''), COALESCE(platform_id, ''), COALESCE(segment_id, ''), event_data, created_at
FROM marketing_events`+a.clause()+` ORDER BY created_at DESC, id`+a.page(f.Limit, f.Offset), a.vals...)
	return collect(rows, err, func(row scanner) (Event, error) {
		var (
			e    Event
			data []byte
		)
		err := row.Scan(&e.ID, &e.WorkspaceID, &e.StoreID, &e.EventType, &e.Title, &e.Description, &e.CampaignID,
			&e.TemplateID, &e.PlatformID, &e.SegmentID, &data, &e.CreatedAt)
		if err != nil {
			return Event{}, err
		}
		e.EventData = map[string]any{}
		if len(data) > 0 {
			err = json.Unmarshal(data, &e.EventData)
		}
		return e, err
	})
}

func (r *PostgresRepo) Summary(ctx context.Context, s Scope) (Summary, error) {
	var (
		sum Summary
		a   args
	)
	a.scope(s)
	where := a.clause()
	err := r.db.QueryRowContext(ctx, `
SELECT COUNT(*), COUNT(*) FILTER (WHERE status = 'active'),
  COALESCE(SUM(estimated_reach), 0), COALESCE(SUM(messages_sent), 0),
  COALESCE(SUM(conversions), 0), COALESCE(SUM(revenue_generated), 0)
FROM marketing_campaigns`+where, a.vals...).Scan(&sum.Campaigns, &sum.ActiveCampaigns,
		&sum.TotalReach, &sum.MessagesSent, &sum.Conversions, &sum.Revenue)
	if err != nil {
		return Summary{}, err
	}
	counts := []struct {
		q   string
		dst *int
	}{
		{`SELECT COUNT(*) FROM marketing_templates` + where, &sum.Templates},
		{`SELECT COUNT(*) FROM marketing_segments` + where, &sum.Segments},
	}
	for _, c := range counts {
		if err := r.db.QueryRowContext(ctx, c.q, a.vals...).Scan(c.dst); err != nil {
			return Summary{}, err
		}
	}
	b := args{where: append([]string(nil), a.where...), vals: append([]any(nil), a.vals...)}
	b.cond("status = " + b.add(string(PlatformConnected)))
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM marketing_platforms`+b.clause(), b.vals...).Scan(&sum.ConnectedPlatforms); err != nil {
		return Summary{}, err
	}
	return sum, nil
}
