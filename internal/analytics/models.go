package analytics

import (
	"fmt"
	"time"

	"bizops-platform/internal/apperr"

	"gorm.io/datatypes"
)

// TimeRange is a half-open [From, To) window.
type TimeRange struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

func (r TimeRange) Valid() bool {
	return !r.From.IsZero() && !r.To.IsZero() && r.To.After(r.From)
}

type EventType string

const (
	EventPageView   EventType = "page_view"
	EventClick      EventType = "click"
	EventFormSubmit EventType = "form_submit"
	EventPurchase   EventType = "purchase"
	EventSignup     EventType = "signup"
	EventLogin      EventType = "login"
	EventCustom     EventType = "custom"
)

func (t EventType) Valid() bool {
	switch t {
	case EventPageView, EventClick, EventFormSubmit, EventPurchase, EventSignup, EventLogin, EventCustom:
		return true
	}
	return false
}

type Event struct {
	ID          string         `json:"id" gorm:"primaryKey;size:36"`
	WorkspaceID string         `json:"workspace_id" gorm:"size:36;not null;index:idx_analytics_events_ws_created,priority:1"`
	UserID      string         `json:"user_id,omitempty" gorm:"size:36;index"`
	EventType   EventType      `json:"event_type" gorm:"size:20;not null;index"`
	EventName   string         `json:"event_name" gorm:"size:100;not null"`
	EventData   datatypes.JSON `json:"event_data,omitempty" gorm:"type:jsonb"`
	SessionID   string         `json:"session_id,omitempty" gorm:"size:100"`
	PageURL     string         `json:"page_url,omitempty" gorm:"size:500"`
	PageTitle   string         `json:"page_title,omitempty" gorm:"size:200"`
	ReferrerURL string         `json:"referrer_url,omitempty" gorm:"size:500"`
	UserAgent   string         `json:"user_agent,omitempty" gorm:"type:text"`
	IPAddress   string         `json:"ip_address,omitempty" gorm:"size:64"`
	CreatedAt   time.Time      `json:"created_at" gorm:"index:idx_analytics_events_ws_created,priority:2"`
}

func (Event) TableName() string { return "analytics_events" }

// EventCounts aggregates events inside a TimeRange.
type EventCounts struct {
	Total       int               `json:"total_events"`
	UniqueUsers int               `json:"unique_users"`
	ByType      map[EventType]int `json:"by_type"`
}

type MetricType string

const (
	MetricSales      MetricType = "sales"
	MetricRevenue    MetricType = "revenue"
	MetricCustomers  MetricType = "customers"
	MetricProducts   MetricType = "products"
	MetricConversion MetricType = "conversion"
	MetricRetention  MetricType = "retention"
)

func (t MetricType) Valid() bool {
	switch t {
	case MetricSales, MetricRevenue, MetricCustomers, MetricProducts, MetricConversion, MetricRetention:
		return true
	}
	return false
}

type Period string

const (
	PeriodDaily   Period = "daily"
	PeriodWeekly  Period = "weekly"
	PeriodMonthly Period = "monthly"
	PeriodYearly  Period = "yearly"
)

func (p Period) Valid() bool {
	switch p {
	case PeriodDaily, PeriodWeekly, PeriodMonthly, PeriodYearly:
		return true
	}
	return false
}

// Shift moves t by n periods.
func (p Period) Shift(t time.Time, n int) time.Time {
	switch p {
	case PeriodWeekly:
		return t.AddDate(0, 0, 7*n)
	case PeriodMonthly:
		return t.AddDate(0, n, 0)
	case PeriodYearly:
		return t.AddDate(n, 0, 0)
	default:
		return t.AddDate(0, 0, n)
	}
}

type Metric struct {
	ID               string         `json:"id" gorm:"primaryKey;size:36"`
	WorkspaceID      string         `json:"workspace_id" gorm:"size:36;not null;uniqueIndex:idx_business_metrics_period,priority:1"`
	MetricType       MetricType     `json:"metric_type" gorm:"size:20;not null;uniqueIndex:idx_business_metrics_period,priority:2"`
	MetricName       string         `json:"metric_name" gorm:"size:100"`
	Period           Period         `json:"period" gorm:"size:20;not null;uniqueIndex:idx_business_metrics_period,priority:3"`
	PeriodStart      time.Time      `json:"period_start" gorm:"not null;uniqueIndex:idx_business_metrics_period,priority:4"`
	PeriodEnd        time.Time      `json:"period_end" gorm:"not null"`
	Value            float64        `json:"value"`
	PreviousValue    *float64       `json:"previous_value"`
	ChangePercentage *float64       `json:"change_percentage"`
	Metadata         datatypes.JSON `json:"metadata,omitempty" gorm:"type:jsonb"`
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
}

func (Metric) TableName() string { return "business_metrics" }

type WidgetType string

const (
	WidgetChart  WidgetType = "chart"
	WidgetMetric WidgetType = "metric"
	WidgetTable  WidgetType = "table"
	WidgetList   WidgetType = "list"
)

func (t WidgetType) Valid() bool {
	switch t {
	case WidgetChart, WidgetMetric, WidgetTable, WidgetList:
		return true
	}
	return false
}

const defaultRefreshSeconds = 300

type Widget struct {
	ID              string         `json:"id" gorm:"primaryKey;size:36"`
	WorkspaceID     string         `json:"workspace_id" gorm:"size:36;not null;index:idx_dashboard_widgets_owner,priority:1"`
	UserID          string         `json:"user_id" gorm:"size:36;not null;index:idx_dashboard_widgets_owner,priority:2"`
	Name            string         `json:"name" gorm:"size:100;not null"`
	WidgetType      WidgetType     `json:"widget_type" gorm:"size:20;not null"`
	ChartType       string         `json:"chart_type,omitempty" gorm:"size:20"`
	Position        datatypes.JSON `json:"position,omitempty" gorm:"type:jsonb"`
	Config          datatypes.JSON `json:"config,omitempty" gorm:"type:jsonb"`
	DataSource      string         `json:"data_source,omitempty" gorm:"size:100"`
	RefreshInterval int            `json:"refresh_interval" gorm:"not null;default:300"`
	IsActive        bool           `json:"is_active" gorm:"not null;default:true"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
}

func (Widget) TableName() string { return "dashboard_widgets" }

type ReportType string

const (
	ReportSales     ReportType = "sales"
	ReportCustomer  ReportType = "customer"
	ReportProduct   ReportType = "product"
	ReportFinancial ReportType = "financial"
	ReportCustom    ReportType = "custom"
)

func (t ReportType) Valid() bool {
	switch t {
	case ReportSales, ReportCustomer, ReportProduct, ReportFinancial, ReportCustom:
		return true
	}
	return false
}

// MetricTypes lists the metrics a report of this type summarises.
func (t ReportType) MetricTypes() []MetricType {
	switch t {
	case ReportSales:
		return []MetricType{MetricSales, MetricConversion}
	case ReportCustomer:
		return []MetricType{MetricCustomers, MetricRetention}
	case ReportProduct:
		return []MetricType{MetricProducts}
	case ReportFinancial:
		return []MetricType{MetricRevenue, MetricSales}
	default:
		return nil
	}
}

type Format string

const (
	FormatPDF   Format = "pdf"
	FormatExcel Format = "excel"
	FormatCSV   Format = "csv"
	FormatJSON  Format = "json"
)

func (f Format) Valid() bool {
	switch f {
	case FormatPDF, FormatExcel, FormatCSV, FormatJSON:
		return true
	}
	return false
}

type ReportStatus string

const (
	ReportPending    ReportStatus = "pending"
	ReportGenerating ReportStatus = "generating"
	ReportCompleted  ReportStatus = "completed"
	ReportFailed     ReportStatus = "failed"
)

type Report struct {
	ID           string         `json:"id" gorm:"primaryKey;size:36"`
	WorkspaceID  string         `json:"workspace_id" gorm:"size:36;not null;index"`
	UserID       string         `json:"user_id" gorm:"size:36;not null"`
	Name         string         `json:"name" gorm:"size:200;not null"`
	ReportType   ReportType     `json:"report_type" gorm:"size:20;not null"`
	Format       Format         `json:"format" gorm:"size:10;not null"`
	Status       ReportStatus   `json:"status" gorm:"size:20;not null;index"`
	Parameters   datatypes.JSON `json:"parameters,omitempty" gorm:"type:jsonb"`
	FileURL      string         `json:"file_url,omitempty" gorm:"size:500"`
	FileSize     int            `json:"file_size,omitempty"`
	Content      []byte         `json:"-" gorm:"type:bytea"`
	ErrorMessage string         `json:"error_message,omitempty" gorm:"type:text"`
	GeneratedAt  *time.Time     `json:"generated_at,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

func (Report) TableName() string { return "analytics_reports" }

// ContentType is the MIME type served for a completed report.
func (r Report) ContentType() string {
	if r.Format == FormatCSV {
		return "text/csv"
	}
	return "application/json"
}

// Models lists every table this package owns, for AutoMigrate.
func Models() []any {
	return []any{&Event{}, &Metric{}, &Widget{}, &Report{}}
}

var (
	ErrReportNotFound  = fmt.Errorf("analytics: report %w", apperr.ErrNotFound)
	ErrWidgetNotFound  = fmt.Errorf("analytics: widget %w", apperr.ErrNotFound)
	ErrMetricNotFound  = fmt.Errorf("analytics: metric %w", apperr.ErrNotFound)
	ErrReportNotReady  = fmt.Errorf("analytics: report not generated %w", apperr.ErrConflict)
	ErrInvalidArgument = fmt.Errorf("analytics: %w", apperr.ErrInvalidArgument)
	ErrForbidden       = fmt.Errorf("analytics: %w", apperr.ErrForbidden)
)
