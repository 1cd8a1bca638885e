// Package analytics records product events and business metrics, keeps
// per-user dashboard widgets, and builds reports and the tenant dashboard
// summary from them.
package analytics

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"strings"
	"time"

	"bizops-platform/internal/auth"
	"bizops-platform/internal/rbac"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Counter reports one figure owned by another module, scoped to the caller.
type Counter interface {
	Count(ctx context.Context, c auth.Caller) (int, error)
}

type CounterFunc func(ctx context.Context, c auth.Caller) (int, error)

func (f CounterFunc) Count(ctx context.Context, c auth.Caller) (int, error) { return f(ctx, c) }

// Counters feeds the cross-module figures of DashboardStats. Nil counters
// report zero.
type Counters struct {
	OpenTickets     Counter
	PendingFeedback Counter
	ActiveCampaigns Counter
}

type Service struct {
	repo     Repository
	counters Counters
	clock    func() time.Time
}

func NewService(repo Repository, counters Counters) *Service {
	return &Service{repo: repo, counters: counters, clock: time.Now}
}

func (s *Service) now() time.Time { return s.clock().UTC() }

// readScope is the workspace filter for tenant-wide reads: every tenant for
// the platform operator, the caller's own for tenant admins.
func readScope(c auth.Caller) (string, error) {
	switch {
	case rbac.IsPlatformAdmin(c.Role):
		return "", nil
	case rbac.IsTenantAdmin(c.Role) && c.WorkspaceID != "":
		return c.WorkspaceID, nil
	}
	return "", ErrForbidden
}

func member(c auth.Caller) error {
	if c.WorkspaceID == "" || c.UserID == "" {
		return ErrForbidden
	}
	return nil
}

func validJSON(v json.RawMessage) bool { return len(v) == 0 || json.Valid(v) }

func round2(v float64) float64 { return math.Round(v*100) / 100 }

type TrackRequest struct {
	EventType   EventType       `json:"event_type" binding:"required"`
	EventName   string          `json:"event_name" binding:"required,max=100"`
	EventData   json.RawMessage `json:"event_data"`
	SessionID   string          `json:"session_id" binding:"omitempty,max=100"`
	PageURL     string          `json:"page_url" binding:"omitempty,max=500"`
	PageTitle   string          `json:"page_title" binding:"omitempty,max=200"`
	ReferrerURL string          `json:"referrer_url" binding:"omitempty,max=500"`

	IPAddress string `json:"-"`
	UserAgent string `json:"-"`
}

// Track stores one event for the caller. IP and user agent are filled by the
// HTTP layer, never by the client body.
func (s *Service) Track(ctx context.Context, c auth.Caller, req TrackRequest) (Event, error) {
	if err := member(c); err != nil {
		return Event{}, err
	}
	if !req.EventType.Valid() || strings.TrimSpace(req.EventName) == "" || !validJSON(req.EventData) {
		return Event{}, ErrInvalidArgument
	}
	return s.repo.CreateEvent(ctx, Event{
		ID:          uuid.NewString(),
		WorkspaceID: c.WorkspaceID,
		UserID:      c.UserID,
		EventType:   req.EventType,
		EventName:   strings.TrimSpace(req.EventName),
		EventData:   datatypes.JSON(req.EventData),
		SessionID:   req.SessionID,
		PageURL:     req.PageURL,
		PageTitle:   req.PageTitle,
		ReferrerURL: req.ReferrerURL,
		UserAgent:   req.UserAgent,
		IPAddress:   req.IPAddress,
		CreatedAt:   s.now(),
	})
}

func (s *Service) ListEvents(ctx context.Context, c auth.Caller, f EventFilter) ([]Event, error) {
	ws, err := readScope(c)
	if err != nil {
		return nil, err
	}
	f.WorkspaceID = ws
	return s.repo.ListEvents(ctx, f)
}

type MetricRequest struct {
	MetricType  MetricType      `json:"metric_type" binding:"required"`
	MetricName  string          `json:"metric_name" binding:"omitempty,max=100"`
	Period      Period          `json:"period" binding:"required"`
	PeriodStart time.Time       `json:"period_start" binding:"required"`
	Value       float64         `json:"value"`
	Metadata    json.RawMessage `json:"metadata"`
}

// RecordMetric upserts the value for one period and compares it with the
// stored value of the period before.
func (s *Service) RecordMetric(ctx context.Context, c auth.Caller, req MetricRequest) (Metric, error) {
	if _, err := readScope(c); err != nil || c.WorkspaceID == "" {
		return Metric{}, ErrForbidden
	}
	if !req.MetricType.Valid() || !req.Period.Valid() || req.PeriodStart.IsZero() || !validJSON(req.Metadata) {
		return Metric{}, ErrInvalidArgument
	}
	start := req.PeriodStart.UTC()
	now := s.now()
	m := Metric{
		ID:          uuid.NewString(),
		WorkspaceID: c.WorkspaceID,
		MetricType:  req.MetricType,
		MetricName:  req.MetricName,
		Period:      req.Period,
		PeriodStart: start,
		PeriodEnd:   req.Period.Shift(start, 1),
		Value:       req.Value,
		Metadata:    datatypes.JSON(req.Metadata),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if m.MetricName == "" {
		m.MetricName = string(req.MetricType)
	}
	prev, err := s.repo.FindMetric(ctx, c.WorkspaceID, req.MetricType, req.Period, req.Period.Shift(start, -1))
	switch {
	case err == nil:
		pv := prev.Value
		m.PreviousValue = &pv
		if pv != 0 {
			ch := round2((m.Value - pv) / pv * 100)
			m.ChangePercentage = &ch
		}
	case !errors.Is(err, ErrMetricNotFound):
		return Metric{}, err
	}
	return s.repo.UpsertMetric(ctx, m)
}

func (s *Service) ListMetrics(ctx context.Context, c auth.Caller, f MetricFilter) ([]Metric, error) {
	ws, err := readScope(c)
	if err != nil {
		return nil, err
	}
	f.WorkspaceID = ws
	return s.repo.ListMetrics(ctx, f)
}

type WidgetRequest struct {
	Name            string          `json:"name" binding:"required,max=100"`
	WidgetType      WidgetType      `json:"widget_type" binding:"required"`
	ChartType       string          `json:"chart_type" binding:"omitempty,oneof=line bar pie donut area"`
	Position        json.RawMessage `json:"position"`
	Config          json.RawMessage `json:"config"`
	DataSource      string          `json:"data_source" binding:"omitempty,max=100"`
	RefreshInterval int             `json:"refresh_interval" binding:"omitempty,min=10"`
	IsActive        *bool           `json:"is_active"`
}

type WidgetUpdate struct {
	Name            *string         `json:"name" binding:"omitempty,max=100"`
	WidgetType      *WidgetType     `json:"widget_type"`
	ChartType       *string         `json:"chart_type" binding:"omitempty,oneof=line bar pie donut area"`
	Position        json.RawMessage `json:"position"`
	Config          json.RawMessage `json:"config"`
	DataSource      *string         `json:"data_source" binding:"omitempty,max=100"`
	RefreshInterval *int            `json:"refresh_interval" binding:"omitempty,min=10"`
	IsActive        *bool           `json:"is_active"`
}

func (s *Service) CreateWidget(ctx context.Context, c auth.Caller, req WidgetRequest) (Widget, error) {
	if err := member(c); err != nil {
		return Widget{}, err
	}
	if !req.WidgetType.Valid() || !validJSON(req.Position) || !validJSON(req.Config) {
		return Widget{}, ErrInvalidArgument
	}
	if req.RefreshInterval == 0 {
		req.RefreshInterval = defaultRefreshSeconds
	}
	now := s.now()
	return s.repo.CreateWidget(ctx, Widget{
		ID:              uuid.NewString(),
		WorkspaceID:     c.WorkspaceID,
		UserID:          c.UserID,
		Name:            strings.TrimSpace(req.Name),
		WidgetType:      req.WidgetType,
		ChartType:       req.ChartType,
		Position:        datatypes.JSON(req.Position),
		Config:          datatypes.JSON(req.Config),
		DataSource:      req.DataSource,
		RefreshInterval: req.RefreshInterval,
		IsActive:        req.IsActive == nil || *req.IsActive,
		CreatedAt:       now,
		UpdatedAt:       now,
	})
}

func (s *Service) ListWidgets(ctx context.Context, c auth.Caller) ([]Widget, error) {
	if err := member(c); err != nil {
		return nil, err
	}
	return s.repo.ListWidgets(ctx, c.WorkspaceID, c.UserID)
}

func (s *Service) GetWidget(ctx context.Context, c auth.Caller, id string) (Widget, error) {
	if err := member(c); err != nil {
		return Widget{}, err
	}
	return s.repo.GetWidget(ctx, c.WorkspaceID, c.UserID, id)
}

func (s *Service) UpdateWidget(ctx context.Context, c auth.Caller, id string, req WidgetUpdate) (Widget, error) {
	w, err := s.GetWidget(ctx, c, id)
	if err != nil {
		return Widget{}, err
	}
	if req.Name != nil {
		w.Name = strings.TrimSpace(*req.Name)
	}
	if req.WidgetType != nil {
		if !req.WidgetType.Valid() {
			return Widget{}, ErrInvalidArgument
		}
		w.WidgetType = *req.WidgetType
	}
	if req.ChartType != nil {
		w.ChartType = *req.ChartType
	}
	if req.Position != nil {
		if !validJSON(req.Position) {
			return Widget{}, ErrInvalidArgument
		}
		w.Position = datatypes.JSON(req.Position)
	}
	if req.Config != nil {
		if !validJSON(req.Config) {
			return Widget{}, ErrInvalidArgument
		}
		w.Config = datatypes.JSON(req.Config)
	}
	if req.DataSource != nil {
		w.DataSource = *req.DataSource
	}
	if req.RefreshInterval != nil {
		w.RefreshInterval = *req.RefreshInterval
	}
	if req.IsActive != nil {
		w.IsActive = *req.IsActive
	}
	if w.Name == "" {
		return Widget{}, ErrInvalidArgument
	}
	w.UpdatedAt = s.now()
	return s.repo.UpdateWidget(ctx, w)
}

func (s *Service) DeleteWidget(ctx context.Context, c auth.Caller, id string) error {
	if err := member(c); err != nil {
		return err
	}
	return s.repo.DeleteWidget(ctx, c.WorkspaceID, c.UserID, id)
}
