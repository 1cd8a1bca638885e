package analytics

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Workspace filters are mandatory except where noted; an empty WorkspaceID
// means every tenant and is only passed for platform operators.

type EventFilter struct {
	WorkspaceID string
	EventType   EventType
	UserID      string
	SessionID   string
	From, To    *time.Time
	Limit       int
	Offset      int
}

type MetricFilter struct {
	WorkspaceID string
	MetricTypes []MetricType
	Period      Period
	From, To    *time.Time
	Limit       int
	Offset      int
}

type ReportFilter struct {
	WorkspaceID string
	ReportType  ReportType
	Status      ReportStatus
	Limit       int
	Offset      int
}

type Repository interface {
	CreateEvent(ctx context.Context, e Event) (Event, error)
	ListEvents(ctx context.Context, f EventFilter) ([]Event, error)
	CountEvents(ctx context.Context, workspaceID string, r TimeRange) (EventCounts, error)

	UpsertMetric(ctx context.Context, m Metric) (Metric, error)
	FindMetric(ctx context.Context, workspaceID string, t MetricType, p Period, start time.Time) (Metric, error)
	ListMetrics(ctx context.Context, f MetricFilter) ([]Metric, error)

	CreateWidget(ctx context.Context, w Widget) (Widget, error)
	GetWidget(ctx context.Context, workspaceID, userID, id string) (Widget, error)
	ListWidgets(ctx context.Context, workspaceID, userID string) ([]Widget, error)
	UpdateWidget(ctx context.Context, w Widget) (Widget, error)
	DeleteWidget(ctx context.Context, workspaceID, userID, id string) error

	CreateReport(ctx context.Context, r Report) (Report, error)
	GetReport(ctx context.Context, workspaceID, id string) (Report, error)
	ListReports(ctx context.Context, f ReportFilter) ([]Report, error)
	SaveReport(ctx context.Context, r Report) (Report, error)
	DeleteReport(ctx context.Context, workspaceID, id string) error
}

type GormRepo struct {
	db *gorm.DB
}

func NewGormRepo(db *gorm.DB) *GormRepo { return &GormRepo{db: db} }

func tenantScope(workspaceID string) func(*gorm.DB) *gorm.DB {
	return func(q *gorm.DB) *gorm.DB {
		if workspaceID == "" {
			return q
		}
		return q.Where("workspace_id = ?", workspaceID)
	}
}

func paginate(limit, offset int) func(*gorm.DB) *gorm.DB {
	return func(q *gorm.DB) *gorm.DB {
		if limit > 0 {
			q = q.Limit(limit)
		}
		if offset > 0 {
			q = q.Offset(offset)
		}
		return q
	}
}

func (r *GormRepo) CreateEvent(ctx context.Context, e Event) (Event, error) {
	err := r.db.WithContext(ctx).Create(&e).Error
	return e, err
}

func (r *GormRepo) ListEvents(ctx context.Context, f EventFilter) ([]Event, error) {
	q := r.db.WithContext(ctx).Scopes(tenantScope(f.WorkspaceID))
	if f.EventType != "" {
		q = q.Where("event_type = ?", f.EventType)
	}
	if f.UserID != "" {
		q = q.Where("user_id = ?", f.UserID)
	}
	if f.SessionID != "" {
		q = q.Where("session_id = ?", f.SessionID)
	}
	if f.From != nil {
		q = q.Where("created_at >= ?", *f.From)
	}
	if f.To != nil {
		q = q.Where("created_at < ?", *f.To)
	}
	var out []Event
	err := q.Scopes(paginate(f.Limit, f.Offset)).Order("created_at DESC, id").Find(&out).Error
	return out, err
}

func (r *GormRepo) CountEvents(ctx context.Context, workspaceID string, tr TimeRange) (EventCounts, error) {
	out := EventCounts{ByType: map[EventType]int{}}
	base := func() *gorm.DB {
		return r.db.WithContext(ctx).Model(&Event{}).
			Scopes(tenantScope(workspaceID)).
			Where("created_at >= ? AND created_at < ?", tr.From, tr.To)
	}
	var rows []struct {
		EventType EventType
		N         int
	}
	if err := base().Select("event_type, count(*) AS n").Group("event_type").Scan(&rows).Error; err != nil {
		return out, err
	}
	for _, row := range rows {
		out.ByType[row.EventType] = row.N
		out.Total += row.N
	}
	var users int64
	if err := base().Where("user_id <> ''").Distinct("user_id").Count(&users).Error; err != nil {
		return out, err
	}
	out.UniqueUsers = int(users)
	return out, nil
}

func (r *GormRepo) UpsertMetric(ctx context.Context, m Metric) (Metric, error) {
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "workspace_id"}, {Name: "metric_type"}, {Name: "period"}, {Name: "period_start"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"metric_name", "period_end", "value", "previous_value", "change_percentage", "metadata", "updated_at",
		}),
	}).Create(&m).Error
	if err != nil {
		return Metric{}, err
	}
	return r.FindMetric(ctx, m.WorkspaceID, m.MetricType, m.Period, m.PeriodStart)
}

func (r *GormRepo) FindMetric(ctx context.Context, workspaceID string, t MetricType, p Period, start time.Time) (Metric, error) {
	var m Metric
	err := r.db.WithContext(ctx).
		Where("workspace_id = ? AND metric_type = ? AND period = ? AND period_start = ?", workspaceID, t, p, start).
		First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Metric{}, ErrMetricNotFound
	}
	return m, err
}

func (r *GormRepo) ListMetrics(ctx context.Context, f MetricFilter) ([]Metric, error) {
	q := r.db.WithContext(ctx).Scopes(tenantScope(f.WorkspaceID))
	if len(f.MetricTypes) > 0 {
		q = q.Where("metric_type IN ?", f.MetricTypes)
	}
	if f.Period != "" {
		q = q.Where("period = ?", f.Period)
	}
	if f.From != nil {
		q = q.Where("period_start >= ?", *f.From)
	}
	if f.To != nil {
		q = q.Where("period_start < ?", *f.To)
	}
	var out []Metric
	err := q.Scopes(paginate(f.Limit, f.Offset)).Order("period_start DESC, metric_type").Find(&out).Error
	return out, err
}

func (r *GormRepo) CreateWidget(ctx context.Context, w Widget) (Widget, error) {
	err := r.db.WithContext(ctx).Create(&w).Error
	return w, err
}

func (r *GormRepo) GetWidget(ctx context.Context, workspaceID, userID, id string) (Widget, error) {
	var w Widget
	err := r.db.WithContext(ctx).
		Where("workspace_id = ? AND user_id = ? AND id = ?", workspaceID, userID, id).
		First(&w).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Widget{}, ErrWidgetNotFound
	}
	return w, err
}

func (r *GormRepo) ListWidgets(ctx context.Context, workspaceID, userID string) ([]Widget, error) {
	var out []Widget
	err := r.db.WithContext(ctx).
		Where("workspace_id = ? AND user_id = ?", workspaceID, userID).
		Order("name").Find(&out).Error
	return out, err
}

func (r *GormRepo) UpdateWidget(ctx context.Context, w Widget) (Widget, error) {
	err := r.db.WithContext(ctx).Save(&w).Error
	return w, err
}

func (r *GormRepo) DeleteWidget(ctx context.Context, workspaceID, userID, id string) error {
	res := r.db.WithContext(ctx).
		Where("workspace_id = ? AND user_id = ? AND id = ?", workspaceID, userID, id).
		Delete(&Widget{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrWidgetNotFound
	}
	return nil
}

func (r *GormRepo) CreateReport(ctx context.Context, rep Report) (Report, error) {
	err := r.db.WithContext(ctx).Create(&rep).Error
	return rep, err
}

func (r *GormRepo) GetReport(ctx context.Context, workspaceID, id string) (Report, error) {
	var rep Report
	err := r.db.WithContext(ctx).Scopes(tenantScope(workspaceID)).Where("id = ?", id).First(&rep).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Report{}, ErrReportNotFound
	}
	return rep, err
}

// ListReports omits the generated body.
func (r *GormRepo) ListReports(ctx context.Context, f ReportFilter) ([]Report, error) {
	q := r.db.WithContext(ctx).Omit("content").Scopes(tenantScope(f.WorkspaceID))
	if f.ReportType != "" {
		q = q.Where("report_type = ?", f.ReportType)
	}
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	var out []Report
	err := q.Scopes(paginate(f.Limit, f.Offset)).Order("created_at DESC, id").Find(&out).Error
	return out, err
}

func (r *GormRepo) SaveReport(ctx context.Context, rep Report) (Report, error) {
	err := r.db.WithContext(ctx).Save(&rep).Error
	return rep, err
}

func (r *GormRepo) DeleteReport(ctx context.Context, workspaceID, id string) error {
	res := r.db.WithContext(ctx).Scopes(tenantScope(workspaceID)).Where("id = ?", id).Delete(&Report{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrReportNotFound
	}
	return nil
}
