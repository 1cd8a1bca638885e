package marketing

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"bizops-platform/internal/auth"

	"github.com/google/uuid"
)

type TemplateRequest struct {
	Name         string           `json:"name" binding:"required,max=200"`
	TemplateType TemplateType     `json:"template_type" binding:"required"`
	Category     TemplateCategory `json:"category" binding:"required"`
	Subject      string           `json:"subject" binding:"max=200"`
	Content      string           `json:"message_content" binding:"required"`
	Variables    []string         `json:"variables"`
}

func (s *Service) CreateTemplate(ctx context.Context, c auth.Caller, req TemplateRequest) (Template, error) {
	if !req.TemplateType.Valid() || !req.Category.Valid() || strings.TrimSpace(req.Name) == "" || strings.TrimSpace(req.Content) == "" {
		return Template{}, ErrInvalidArgument
	}
	if req.Variables == nil {
		req.Variables = []string{}
	}
	now := s.clock().UTC()
	t := Template{
		ID:             uuid.NewString(),
		WorkspaceID:    c.WorkspaceID,
		StoreID:        c.StoreID,
		Name:           strings.TrimSpace(req.Name),
		TemplateType:   req.TemplateType,
		Category:       req.Category,
		Subject:        req.Subject,
		Content:        req.Content,
		Variables:      req.Variables,
		ApprovalStatus: ApprovalPending,
		CreatedBy:      c.UserID,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	e := s.newEvent(t.WorkspaceID, t.StoreID, EventTemplateCreated, fmt.Sprintf("Template '%s' created", t.Name),
		fmt.Sprintf("New %s template created", t.TemplateType))
	e.TemplateID = t.ID
	return s.repo.CreateTemplate(ctx, t, []Event{e})
}

func (s *Service) loadTemplate(ctx context.Context, c auth.Caller, id string) (Template, error) {
	t, err := s.repo.GetTemplate(ctx, id)
	if err != nil {
		return Template{}, err
	}
	if !ScopeFor(c).allows(t.WorkspaceID, t.StoreID) {
		return Template{}, ErrTemplateNotFound
	}
	return t, nil
}

func (s *Service) GetTemplate(ctx context.Context, c auth.Caller, id string) (Template, error) {
	return s.loadTemplate(ctx, c, id)
}

func (s *Service) ListTemplates(ctx context.Context, c auth.Caller, f TemplateFilter) ([]Template, error) {
	f.Scope = ScopeFor(c)
	return s.repo.ListTemplates(ctx, f)
}

type TemplateUpdate struct {
	Name      *string           `json:"name" binding:"omitempty,max=200"`
	Category  *TemplateCategory `json:"category"`
	Subject   *string           `json:"subject" binding:"omitempty,max=200"`
	Content   *string           `json:"message_content"`
	Variables []string          `json:"variables"`
}

// UpdateTemplate edits a template. Content changes send it back to pending
// approval.
func (s *Service) UpdateTemplate(ctx context.Context, c auth.Caller, id string, req TemplateUpdate) (Template, error) {
	t, err := s.loadTemplate(ctx, c, id)
	if err != nil {
		return Template{}, err
	}
	if req.Name != nil {
		if strings.TrimSpace(*req.Name) == "" {
			return Template{}, ErrInvalidArgument
		}
		t.Name = strings.TrimSpace(*req.Name)
	}
	if req.Category != nil {
		if !req.Category.Valid() {
			return Template{}, ErrInvalidArgument
		}
		t.Category = *req.Category
	}
	if req.Subject != nil {
		t.Subject = *req.Subject
	}
	if req.Content != nil && *req.Content != t.Content {
		if strings.TrimSpace(*req.Content) == "" {
			return Template{}, ErrInvalidArgument
		}
		t.Content = *req.Content
		t.IsApproved, t.ApprovalStatus = false, ApprovalPending
	}
	if req.Variables != nil {
		t.Variables = req.Variables
	}
	t.UpdatedAt = s.clock().UTC()
	return s.repo.UpdateTemplate(ctx, t, nil)
}

// ApproveTemplate marks a template approved and logs template_approved.
// Approving twice is a no-op.
func (s *Service) ApproveTemplate(ctx context.Context, c auth.Caller, id string) (Template, error) {
	t, err := s.loadTemplate(ctx, c, id)
	if err != nil || t.IsApproved {
		return t, err
	}
	t.IsApproved, t.ApprovalStatus = true, ApprovalApproved
	t.UpdatedAt = s.clock().UTC()
	e := s.newEvent(t.WorkspaceID, t.StoreID, EventTemplateApproved, fmt.Sprintf("Template '%s' approved", t.Name), "")
	e.TemplateID = t.ID
	return s.repo.UpdateTemplate(ctx, t, []Event{e})
}

func (s *Service) DeleteTemplate(ctx context.Context, c auth.Caller, id string) error {
	if _, err := s.loadTemplate(ctx, c, id); err != nil {
		return err
	}
	return s.repo.DeleteTemplate(ctx, id)
}

type PlatformRequest struct {
	Name          string         `json:"name" binding:"required,max=100"`
	PlatformType  PlatformType   `json:"platform_type" binding:"required"`
	Status        PlatformStatus `json:"status"`
	APIKey        string         `json:"api_key"`
	APISecret     string         `json:"api_secret"`
	WebhookURL    string         `json:"webhook_url" binding:"omitempty,url"`
	StoreURL      string         `json:"store_url" binding:"omitempty,url"`
	SyncFrequency int            `json:"sync_frequency" binding:"min=0"`
}

func (s *Service) CreatePlatform(ctx context.Context, c auth.Caller, req PlatformRequest) (Platform, error) {
	if req.Status == "" {
		req.Status = PlatformDisconnected
	}
	if req.SyncFrequency == 0 {
		req.SyncFrequency = DefaultSyncFrequency
	}
	if !req.PlatformType.Valid() || !req.Status.Valid() || strings.TrimSpace(req.Name) == "" {
		return Platform{}, ErrInvalidArgument
	}
	now := s.clock().UTC()
	p := Platform{
		ID:            uuid.NewString(),
		WorkspaceID:   c.WorkspaceID,
		StoreID:       c.StoreID,
		Name:          strings.TrimSpace(req.Name),
		PlatformType:  req.PlatformType,
		Status:        req.Status,
		APIKey:        req.APIKey,
		APISecret:     req.APISecret,
		WebhookURL:    req.WebhookURL,
		StoreURL:      req.StoreURL,
		SyncFrequency: req.SyncFrequency,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	var events []Event
	if p.Status == PlatformConnected {
		e := s.newEvent(p.WorkspaceID, p.StoreID, EventPlatformConnected, fmt.Sprintf("Platform '%s' connected", p.Name),
			fmt.Sprintf("%s platform connected successfully", p.PlatformType))
		e.PlatformID = p.ID
		events = append(events, e)
	}
	return s.repo.CreatePlatform(ctx, p, events)
}

func (s *Service) loadPlatform(ctx context.Context, c auth.Caller, id string) (Platform, error) {
	p, err := s.repo.GetPlatform(ctx, id)
	if err != nil {
		return Platform{}, err
	}
	if !ScopeFor(c).allows(p.WorkspaceID, p.StoreID) {
		return Platform{}, ErrPlatformNotFound
	}
	return p, nil
}

func (s *Service) GetPlatform(ctx context.Context, c auth.Caller, id string) (Platform, error) {
	return s.loadPlatform(ctx, c, id)
}

func (s *Service) ListPlatforms(ctx context.Context, c auth.Caller, f PlatformFilter) ([]Platform, error) {
	f.Scope = ScopeFor(c)
	return s.repo.ListPlatforms(ctx, f)
}

type PlatformUpdate struct {
	Name          *string         `json:"name" binding:"omitempty,max=100"`
	Status        *PlatformStatus `json:"status"`
	APIKey        *string         `json:"api_key"`
	APISecret     *string         `json:"api_secret"`
	WebhookURL    *string         `json:"webhook_url" binding:"omitempty,url"`
	StoreURL      *string         `json:"store_url" binding:"omitempty,url"`
	SyncFrequency *int            `json:"sync_frequency" binding:"omitempty,min=1"`
	TotalProducts *int            `json:"total_products" binding:"omitempty,min=0"`
	TotalOrders   *int            `json:"total_orders" binding:"omitempty,min=0"`
	TotalRevenue  *float64        `json:"total_revenue" binding:"omitempty,min=0"`
	LastSync      *time.Time      `json:"last_sync"`
}

func (s *Service) UpdatePlatform(ctx context.Context, c auth.Caller, id string, req PlatformUpdate) (Platform, error) {
	p, err := s.loadPlatform(ctx, c, id)
	if err != nil {
		return Platform{}, err
	}
	if req.Name != nil {
		p.Name = strings.TrimSpace(*req.Name)
	}
	if req.Status != nil {
		if !req.Status.Valid() {
			return Platform{}, ErrInvalidArgument
		}
		p.Status = *req.Status
	}
	setString(&p.APIKey, req.APIKey)
	setString(&p.APISecret, req.APISecret)
	setString(&p.WebhookURL, req.WebhookURL)
	setString(&p.StoreURL, req.StoreURL)
	setInt(&p.SyncFrequency, req.SyncFrequency)
	setInt(&p.TotalProducts, req.TotalProducts)
	setInt(&p.TotalOrders, req.TotalOrders)
	if req.TotalRevenue != nil {
		p.TotalRevenue = *req.TotalRevenue
	}
	if req.LastSync != nil {
		p.LastSync = req.LastSync
	}
	if p.Name == "" {
		return Platform{}, ErrInvalidArgument
	}
	p.UpdatedAt = s.clock().UTC()
	return s.repo.UpdatePlatform(ctx, p)
}

func (s *Service) DeletePlatform(ctx context.Context, c auth.Caller, id string) error {
	if _, err := s.loadPlatform(ctx, c, id); err != nil {
		return err
	}
	return s.repo.DeletePlatform(ctx, id)
}

type SegmentRequest struct {
	Name           string          `json:"name" binding:"required,max=200"`
	Description    string          `json:"description"`
	Criteria       json.RawMessage `json:"criteria"`
	CustomerCount  int             `json:"customer_count" binding:"min=0"`
	TotalRevenue   float64         `json:"total_revenue" binding:"min=0"`
	AvgOrderValue  float64         `json:"average_order_value" binding:"min=0"`
	ConversionRate float64         `json:"conversion_rate" binding:"min=0,max=100"`
	EngagementRate float64         `json:"engagement_rate" binding:"min=0,max=100"`
}

func (r SegmentRequest) valid() bool {
	return strings.TrimSpace(r.Name) != "" && validJSON(r.Criteria) && r.CustomerCount >= 0 &&
		r.ConversionRate >= 0 && r.ConversionRate <= 100 && r.EngagementRate >= 0 && r.EngagementRate <= 100
}

func (s *Service) CreateSegment(ctx context.Context, c auth.Caller, req SegmentRequest) (Segment, error) {
	if !req.valid() {
		return Segment{}, ErrInvalidArgument
	}
	now := s.clock().UTC()
	sg := Segment{
		ID:             uuid.NewString(),
		WorkspaceID:    c.WorkspaceID,
		StoreID:        c.StoreID,
		Name:           strings.TrimSpace(req.Name),
		Description:    req.Description,
		Criteria:       req.Criteria,
		CustomerCount:  req.CustomerCount,
		TotalRevenue:   req.TotalRevenue,
		AvgOrderValue:  req.AvgOrderValue,
		ConversionRate: req.ConversionRate,
		EngagementRate: req.EngagementRate,
		CreatedBy:      c.UserID,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if len(sg.Criteria) == 0 {
		sg.Criteria = json.RawMessage(`{}`)
	}
	e := s.newEvent(sg.WorkspaceID, sg.StoreID, EventSegmentCreated, fmt.Sprintf("Segment '%s' created", sg.Name),
		fmt.Sprintf("New customer segment with %d customers", sg.CustomerCount))
	e.SegmentID = sg.ID
	return s.repo.CreateSegment(ctx, sg, []Event{e})
}

func (s *Service) loadSegment(ctx context.Context, c auth.Caller, id string) (Segment, error) {
	sg, err := s.repo.GetSegment(ctx, id)
	if err != nil {
		return Segment{}, err
	}
	if !ScopeFor(c).allows(sg.WorkspaceID, sg.StoreID) {
		return Segment{}, ErrSegmentNotFound
	}
	return sg, nil
}

func (s *Service) GetSegment(ctx context.Context, c auth.Caller, id string) (Segment, error) {
	return s.loadSegment(ctx, c, id)
}

func (s *Service) ListSegments(ctx context.Context, c auth.Caller, limit, offset int) ([]Segment, error) {
	return s.repo.ListSegments(ctx, SegmentFilter{Scope: ScopeFor(c), Limit: limit, Offset: offset})
}

// UpdateSegment replaces the segment's editable fields.
func (s *Service) UpdateSegment(ctx context.Context, c auth.Caller, id string, req SegmentRequest) (Segment, error) {
	sg, err := s.loadSegment(ctx, c, id)
	if err != nil {
		return Segment{}, err
	}
	if !req.valid() {
		return Segment{}, ErrInvalidArgument
	}
	sg.Name = strings.TrimSpace(req.Name)
	sg.Description = req.Description
	if len(req.Criteria) > 0 {
		sg.Criteria = req.Criteria
	}
	sg.CustomerCount = req.CustomerCount
	sg.TotalRevenue = req.TotalRevenue
	sg.AvgOrderValue = req.AvgOrderValue
	sg.ConversionRate = req.ConversionRate
	sg.EngagementRate = req.EngagementRate
	sg.UpdatedAt = s.clock().UTC()
	return s.repo.UpdateSegment(ctx, sg)
}

func (s *Service) DeleteSegment(ctx context.Context, c auth.Caller, id string) error {
	if _, err := s.loadSegment(ctx, c, id); err != nil {
		return err
	}
	return s.repo.DeleteSegment(ctx, id)
}
