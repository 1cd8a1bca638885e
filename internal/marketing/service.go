package marketing

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"bizops-platform/internal/auth"
	"bizops-platform/internal/rbac"
	"bizops-platform/pkg/logger"

	"github.com/google/uuid"
)

type Service struct {
	repo  Repository
	clock func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, clock: time.Now}
}

// ScopeFor returns what c may read: platform admins see every tenant,
// business admins their whole tenant, everyone else their store plus
// tenant-wide records.
func ScopeFor(c auth.Caller) Scope {
	switch {
	case rbac.IsPlatformAdmin(c.Role):
		return Scope{}
	case c.Role == rbac.RoleBusinessAdmin:
		return Scope{WorkspaceID: c.WorkspaceID}
	}
	return Scope{WorkspaceID: c.WorkspaceID, StoreID: c.StoreID, StoreLimited: true}
}

func (s *Service) newEvent(workspaceID, storeID string, t EventType, title, description string) Event {
	return Event{
		ID:          uuid.NewString(),
		WorkspaceID: workspaceID,
		StoreID:     storeID,
		EventType:   t,
		Title:       title,
		Description: description,
		EventData:   map[string]any{},
		CreatedAt:   s.clock().UTC(),
	}
}

// campaignEvents lists the events a save of c produces. prev is nil on create.
func (s *Service) campaignEvents(c Campaign, prev *Campaign) []Event {
	var out []Event
	add := func(t EventType, title, description string, data map[string]any) {
		e := s.newEvent(c.WorkspaceID, c.StoreID, t, title, description)
		e.CampaignID = c.ID
		if data != nil {
			e.EventData = data
		}
		out = append(out, e)
	}
	switch {
	case prev == nil:
		add(EventCampaignLaunched, fmt.Sprintf("Campaign '%s' created", c.Name),
			fmt.Sprintf("New %s campaign created", c.CampaignType), nil)
	case c.Status == StatusCompleted && prev.Status != StatusCompleted:
		add(EventCampaignCompleted, fmt.Sprintf("Campaign '%s' completed", c.Name),
			fmt.Sprintf("Campaign completed with %d conversions", c.Conversions), nil)
	}
	rate := c.Rates().ConversionRate
	if rate > highConversionRate {
		add(EventHighConversion, "High conversion campaign: "+c.Name,
			fmt.Sprintf("Campaign achieved %.1f%% conversion rate", rate), map[string]any{"conversion_rate": rate})
	}
	if rate < lowConversionRate && c.MessagesSent > lowPerformanceSent {
		add(EventLowPerformance, "Low performance campaign: "+c.Name,
			fmt.Sprintf("Campaign has low conversion rate of %.1f%%", rate), map[string]any{"conversion_rate": rate})
	}
	return out
}

type CampaignRequest struct {
	Name           string          `json:"name" binding:"required,max=200"`
	Description    string          `json:"description"`
	CampaignType   CampaignType    `json:"campaign_type" binding:"required"`
	Status         CampaignStatus  `json:"status"`
	TargetAudience json.RawMessage `json:"target_audience"`
	EstimatedReach int             `json:"estimated_reach" binding:"min=0"`
	TemplateID     string          `json:"message_template_id"`
	CustomMessage  string          `json:"custom_message"`
	ScheduledAt    *time.Time      `json:"scheduled_at"`
	StartDate      *time.Time      `json:"start_date"`
	EndDate        *time.Time      `json:"end_date"`
	Budget         float64         `json:"budget" binding:"min=0"`
}

func validJSON(v json.RawMessage) bool { return len(v) == 0 || json.Valid(v) }

func (s *Service) CreateCampaign(ctx context.Context, c auth.Caller, req CampaignRequest) (CampaignView, error) {
	if req.Status == "" {
		req.Status = StatusDraft
	}
	if !req.CampaignType.Valid() || !req.Status.Valid() || strings.TrimSpace(req.Name) == "" || !validJSON(req.TargetAudience) {
		return CampaignView{}, ErrInvalidArgument
	}
	if req.StartDate != nil && req.EndDate != nil && req.EndDate.Before(*req.StartDate) {
		return CampaignView{}, ErrInvalidArgument
	}
	if req.TemplateID != "" {
		if err := s.useTemplate(ctx, c, req.TemplateID); err != nil {
			return CampaignView{}, err
		}
	}
	now := s.clock().UTC()
	camp := Campaign{
		ID:             uuid.NewString(),
		WorkspaceID:    c.WorkspaceID,
		StoreID:        c.StoreID,
		Name:           strings.TrimSpace(req.Name),
		Description:    req.Description,
		CampaignType:   req.CampaignType,
		Status:         req.Status,
		TargetAudience: req.TargetAudience,
		EstimatedReach: req.EstimatedReach,
		TemplateID:     req.TemplateID,
		CustomMessage:  req.CustomMessage,
		ScheduledAt:    req.ScheduledAt,
		StartDate:      req.StartDate,
		EndDate:        req.EndDate,
		Budget:         req.Budget,
		CreatedBy:      c.UserID,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	camp, err := s.repo.CreateCampaign(ctx, camp, s.campaignEvents(camp, nil))
	if err != nil {
		return CampaignView{}, err
	}
	logger.From(ctx).Info("campaign created", "campaign_id", camp.ID, "type", camp.CampaignType)
	return camp.View(), nil
}

// useTemplate bumps usage_count on a template the caller can see.
func (s *Service) useTemplate(ctx context.Context, c auth.Caller, id string) error {
	t, err := s.loadTemplate(ctx, c, id)
	if err != nil {
		return err
	}
	t.UsageCount++
	t.UpdatedAt = s.clock().UTC()
	_, err = s.repo.UpdateTemplate(ctx, t, nil)
	return err
}

func (s *Service) loadCampaign(ctx context.Context, c auth.Caller, id string) (Campaign, error) {
	camp, err := s.repo.GetCampaign(ctx, id)
	if err != nil {
		return Campaign{}, err
	}
	if !ScopeFor(c).allows(camp.WorkspaceID, camp.StoreID) {
		return Campaign{}, ErrCampaignNotFound
	}
	return camp, nil
}

func (s *Service) GetCampaign(ctx context.Context, c auth.Caller, id string) (CampaignView, error) {
	camp, err := s.loadCampaign(ctx, c, id)
	if err != nil {
		return CampaignView{}, err
	}
	return camp.View(), nil
}

type CampaignListFilter struct {
	Status       CampaignStatus
	CampaignType CampaignType
	Search       string
	Limit        int
	Offset       int
}

func (s *Service) ListCampaigns(ctx context.Context, c auth.Caller, f CampaignListFilter) ([]CampaignView, error) {
	items, err := s.repo.ListCampaigns(ctx, CampaignFilter{
		Scope:        ScopeFor(c),
		Status:       f.Status,
		CampaignType: f.CampaignType,
		Search:       f.Search,
		Limit:        f.Limit,
		Offset:       f.Offset,
	})
	if err != nil {
		return nil, err
	}
	return campaignViews(items), nil
}

func campaignViews(items []Campaign) []CampaignView {
	out := make([]CampaignView, 0, len(items))
	for _, c := range items {
		out = append(out, c.View())
	}
	return out
}

type CampaignUpdate struct {
	Name              *string          `json:"name" binding:"omitempty,max=200"`
	Description       *string          `json:"description"`
	Status            *CampaignStatus  `json:"status"`
	TargetAudience    *json.RawMessage `json:"target_audience"`
	EstimatedReach    *int             `json:"estimated_reach" binding:"omitempty,min=0"`
	CustomMessage     *string          `json:"custom_message"`
	ScheduledAt       *time.Time       `json:"scheduled_at"`
	StartDate         *time.Time       `json:"start_date"`
	EndDate           *time.Time       `json:"end_date"`
	Budget            *float64         `json:"budget" binding:"omitempty,min=0"`
	MessagesSent      *int             `json:"messages_sent" binding:"omitempty,min=0"`
	MessagesDelivered *int             `json:"messages_delivered" binding:"omitempty,min=0"`
	MessagesRead      *int             `json:"messages_read" binding:"omitempty,min=0"`
	RepliesReceived   *int             `json:"replies_received" binding:"omitempty,min=0"`
	Conversions       *int             `json:"conversions" binding:"omitempty,min=0"`
	RevenueGenerated  *float64         `json:"revenue_generated" binding:"omitempty,min=0"`
}

func setInt(dst *int, v *int) {
	if v != nil {
		*dst = *v
	}
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}

func (s *Service) UpdateCampaign(ctx context.Context, c auth.Caller, id string, req CampaignUpdate) (CampaignView, error) {
	camp, err := s.loadCampaign(ctx, c, id)
	if err != nil {
		return CampaignView{}, err
	}
	prev := camp
	if req.Name != nil {
		if strings.TrimSpace(*req.Name) == "" {
			return CampaignView{}, ErrInvalidArgument
		}
		camp.Name = strings.TrimSpace(*req.Name)
	}
	if req.Description != nil {
		camp.Description = *req.Description
	}
	if req.Status != nil {
		if !req.Status.Valid() {
			return CampaignView{}, ErrInvalidArgument
		}
		camp.Status = *req.Status
	}
	if req.TargetAudience != nil {
		if !validJSON(*req.TargetAudience) {
			return CampaignView{}, ErrInvalidArgument
		}
		camp.TargetAudience = *req.TargetAudience
	}
	if req.CustomMessage != nil {
		camp.CustomMessage = *req.CustomMessage
	}
	if req.ScheduledAt != nil {
		camp.ScheduledAt = req.ScheduledAt
	}
	if req.StartDate != nil {
		camp.StartDate = req.StartDate
	}
	if req.EndDate != nil {
		camp.EndDate = req.EndDate
	}
	if camp.StartDate != nil && camp.EndDate != nil && camp.EndDate.Before(*camp.StartDate) {
		return CampaignView{}, ErrInvalidArgument
	}
	if req.Budget != nil {
		camp.Budget = *req.Budget
	}
	if req.RevenueGenerated != nil {
		camp.RevenueGenerated = *req.RevenueGenerated
	}
	setInt(&camp.EstimatedReach, req.EstimatedReach)
	setInt(&camp.MessagesSent, req.MessagesSent)
	setInt(&camp.MessagesDelivered, req.MessagesDelivered)
	setInt(&camp.MessagesRead, req.MessagesRead)
	setInt(&camp.RepliesReceived, req.RepliesReceived)
	setInt(&camp.Conversions, req.Conversions)
	camp.UpdatedAt = s.clock().UTC()

	camp, err = s.repo.UpdateCampaign(ctx, camp, s.campaignEvents(camp, &prev))
	if err != nil {
		return CampaignView{}, err
	}
	return camp.View(), nil
}

func (s *Service) DeleteCampaign(ctx context.Context, c auth.Caller, id string) error {
	if _, err := s.loadCampaign(ctx, c, id); err != nil {
		return err
	}
	return s.repo.DeleteCampaign(ctx, id)
}

type AnalyticsRequest struct {
	Date        string  `json:"date" binding:"required,datetime=2006-01-02"`
	Hour        *int    `json:"hour" binding:"required,min=0,max=23"`
	Impressions int     `json:"impressions" binding:"min=0"`
	Clicks      int     `json:"clicks" binding:"min=0"`
	Conversions int     `json:"conversions" binding:"min=0"`
	Revenue     float64 `json:"revenue" binding:"min=0"`
}

// RecordAnalytics adds hourly counters to a campaign.
func (s *Service) RecordAnalytics(ctx context.Context, c auth.Caller, campaignID string, req AnalyticsRequest) (Analytics, error) {
	camp, err := s.loadCampaign(ctx, c, campaignID)
	if err != nil {
		return Analytics{}, err
	}
	day, err := time.Parse(time.DateOnly, req.Date)
	if err != nil || req.Hour == nil || *req.Hour < 0 || *req.Hour > 23 {
		return Analytics{}, ErrInvalidArgument
	}
	return s.repo.RecordAnalytics(ctx, Analytics{
		ID:          uuid.NewString(),
		CampaignID:  camp.ID,
		WorkspaceID: camp.WorkspaceID,
		Date:        day,
		Hour:        *req.Hour,
		Impressions: req.Impressions,
		Clicks:      req.Clicks,
		Conversions: req.Conversions,
		Revenue:     req.Revenue,
		UpdatedAt:   s.clock().UTC(),
	})
}

func (s *Service) CampaignAnalytics(ctx context.Context, c auth.Caller, campaignID string, from, to time.Time) ([]Analytics, error) {
	if _, err := s.loadCampaign(ctx, c, campaignID); err != nil {
		return nil, err
	}
	return s.repo.ListAnalytics(ctx, campaignID, from, to)
}

func (s *Service) Events(ctx context.Context, c auth.Caller, t EventType, campaignID string, limit, offset int) ([]Event, error) {
	return s.repo.ListEvents(ctx, EventFilter{Scope: ScopeFor(c), EventType: t, CampaignID: campaignID, Limit: limit, Offset: offset})
}
