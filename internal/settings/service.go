package settings

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"bizops-platform/internal/audit"
	"bizops-platform/internal/auth"
	"bizops-platform/internal/rbac"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type Service struct {
	repo    Repository
	auditor *audit.Service
	clock   func() time.Time
}

func NewService(repo Repository, auditor *audit.Service) *Service {
	return &Service{repo: repo, auditor: auditor, clock: time.Now}
}

func (s *Service) now() time.Time { return s.clock().UTC() }

// tenant returns the workspace a caller reads settings from.
func tenant(c auth.Caller) (string, error) {
	if c.WorkspaceID == "" {
		return "", ErrForbidden
	}
	return c.WorkspaceID, nil
}

// writableTenant additionally requires a tenant admin or the platform operator.
func writableTenant(c auth.Caller) (string, error) {
	ws, err := tenant(c)
	if err != nil {
		return "", err
	}
	if !rbac.IsTenantAdmin(c.Role) && !rbac.IsPlatformAdmin(c.Role) {
		return "", ErrForbidden
	}
	return ws, nil
}

func validJSON(v json.RawMessage) bool { return len(v) == 0 || json.Valid(v) }

func (s *Service) ListSettings(ctx context.Context, c auth.Caller) ([]BusinessSetting, error) {
	ws, err := tenant(c)
	if err != nil {
		return nil, err
	}
	return s.repo.ListSettings(ctx, ws)
}

func (s *Service) GetSetting(ctx context.Context, c auth.Caller, key string) (BusinessSetting, error) {
	ws, err := tenant(c)
	if err != nil {
		return BusinessSetting{}, err
	}
	return s.repo.GetSetting(ctx, ws, key)
}

// PutSetting creates or replaces the value stored under key.
func (s *Service) PutSetting(ctx context.Context, c auth.Caller, key string, value json.RawMessage) (BusinessSetting, error) {
	ws, err := writableTenant(c)
	if err != nil {
		return BusinessSetting{}, err
	}
	key = strings.TrimSpace(key)
	if key == "" || len(key) > 64 || len(value) == 0 || !json.Valid(value) {
		return BusinessSetting{}, ErrInvalidArgument
	}
	out, err := s.repo.UpsertSetting(ctx, BusinessSetting{
		ID:          uuid.NewString(),
		WorkspaceID: ws,
		Key:         key,
		Value:       datatypes.JSON(value),
		UpdatedAt:   s.now(),
	})
	if err != nil {
		return BusinessSetting{}, err
	}
	s.auditor.Record(ctx, audit.EventTypeSettingsChanged, "business_setting", key, "business setting saved", nil)
	return out, nil
}

func (s *Service) DeleteSetting(ctx context.Context, c auth.Caller, key string) error {
	ws, err := writableTenant(c)
	if err != nil {
		return err
	}
	return s.repo.DeleteSetting(ctx, ws, key)
}

type TagRequest struct {
	Name     string          `json:"name" binding:"required,max=64"`
	Category string          `json:"category" binding:"omitempty,max=32"`
	IsActive *bool           `json:"is_active"`
	AutoRule json.RawMessage `json:"auto_rule"`
}

type TagUpdate struct {
	Name     *string         `json:"name" binding:"omitempty,max=64"`
	Category *string         `json:"category" binding:"omitempty,max=32"`
	IsActive *bool           `json:"is_active"`
	AutoRule json.RawMessage `json:"auto_rule"`
}

func (s *Service) CreateTag(ctx context.Context, c auth.Caller, req TagRequest) (Tag, error) {
	ws, err := writableTenant(c)
	if err != nil {
		return Tag{}, err
	}
	name := strings.TrimSpace(req.Name)
	slug := Slugify(name)
	if slug == "" || !validJSON(req.AutoRule) {
		return Tag{}, ErrInvalidArgument
	}
	now := s.now()
	t := Tag{
		ID:          uuid.NewString(),
		WorkspaceID: ws,
		Name:        name,
		Slug:        slug,
		Category:    req.Category,
		IsActive:    req.IsActive == nil || *req.IsActive,
		AutoRule:    datatypes.JSON(req.AutoRule),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	return s.repo.CreateTag(ctx, t)
}

func (s *Service) ListTags(ctx context.Context, c auth.Caller, f TagFilter) ([]Tag, error) {
	ws, err := tenant(c)
	if err != nil {
		return nil, err
	}
	f.WorkspaceID = ws
	return s.repo.ListTags(ctx, f)
}

func (s *Service) GetTag(ctx context.Context, c auth.Caller, id string) (Tag, error) {
	ws, err := tenant(c)
	if err != nil {
		return Tag{}, err
	}
	return s.repo.GetTag(ctx, ws, id)
}

// UpdateTag re-derives the slug when the name changes.
func (s *Service) UpdateTag(ctx context.Context, c auth.Caller, id string, req TagUpdate) (Tag, error) {
	ws, err := writableTenant(c)
	if err != nil {
		return Tag{}, err
	}
	t, err := s.repo.GetTag(ctx, ws, id)
	if err != nil {
		return Tag{}, err
	}
	if req.Name != nil {
		t.Name = strings.TrimSpace(*req.Name)
		t.Slug = Slugify(t.Name)
		if t.Slug == "" {
			return Tag{}, ErrInvalidArgument
		}
	}
	if req.Category != nil {
		t.Category = *req.Category
	}
	if req.IsActive != nil {
		t.IsActive = *req.IsActive
	}
	if req.AutoRule != nil {
		if !validJSON(req.AutoRule) {
			return Tag{}, ErrInvalidArgument
		}
		t.AutoRule = datatypes.JSON(req.AutoRule)
	}
	t.UpdatedAt = s.now()
	return s.repo.UpdateTag(ctx, t)
}

func (s *Service) DeleteTag(ctx context.Context, c auth.Caller, id string) error {
	ws, err := writableTenant(c)
	if err != nil {
		return err
	}
	return s.repo.DeleteTag(ctx, ws, id)
}

type TemplateRequest struct {
	Name     string  `json:"name" binding:"required,max=64"`
	Channel  Channel `json:"channel" binding:"required"`
	Event    string  `json:"event" binding:"required,max=64"`
	Template string  `json:"template" binding:"required"`
	IsActive *bool   `json:"is_active"`
}

type TemplateUpdate struct {
	Name     *string  `json:"name" binding:"omitempty,max=64"`
	Channel  *Channel `json:"channel"`
	Event    *string  `json:"event" binding:"omitempty,max=64"`
	Template *string  `json:"template"`
	IsActive *bool    `json:"is_active"`
}

func (s *Service) CreateTemplate(ctx context.Context, c auth.Caller, req TemplateRequest) (NotificationTemplate, error) {
	ws, err := writableTenant(c)
	if err != nil {
		return NotificationTemplate{}, err
	}
	if !req.Channel.Valid() || strings.TrimSpace(req.Template) == "" {
		return NotificationTemplate{}, ErrInvalidArgument
	}
	now := s.now()
	return s.repo.CreateTemplate(ctx, NotificationTemplate{
		ID:          uuid.NewString(),
		WorkspaceID: ws,
		Name:        strings.TrimSpace(req.Name),
		Channel:     req.Channel,
		Event:       strings.TrimSpace(req.Event),
		Template:    req.Template,
		IsActive:    req.IsActive == nil || *req.IsActive,
		CreatedAt:   now,
		UpdatedAt:   now,
	})
}

func (s *Service) ListTemplates(ctx context.Context, c auth.Caller, f TemplateFilter) ([]NotificationTemplate, error) {
	ws, err := tenant(c)
	if err != nil {
		return nil, err
	}
	f.WorkspaceID = ws
	return s.repo.ListTemplates(ctx, f)
}

func (s *Service) GetTemplate(ctx context.Context, c auth.Caller, id string) (NotificationTemplate, error) {
	ws, err := tenant(c)
	if err != nil {
		return NotificationTemplate{}, err
	}
	return s.repo.GetTemplate(ctx, ws, id)
}

func (s *Service) UpdateTemplate(ctx context.Context, c auth.Caller, id string, req TemplateUpdate) (NotificationTemplate, error) {
	ws, err := writableTenant(c)
	if err != nil {
		return NotificationTemplate{}, err
	}
	t, err := s.repo.GetTemplate(ctx, ws, id)
	if err != nil {
		return NotificationTemplate{}, err
	}
	if req.Name != nil {
		t.Name = strings.TrimSpace(*req.Name)
	}
	if req.Channel != nil {
		if !req.Channel.Valid() {
			return NotificationTemplate{}, ErrInvalidArgument
		}
		t.Channel = *req.Channel
	}
	if req.Event != nil {
		t.Event = strings.TrimSpace(*req.Event)
	}
	if req.Template != nil {
		t.Template = *req.Template
	}
	if req.IsActive != nil {
		t.IsActive = *req.IsActive
	}
	if t.Name == "" || t.Event == "" || strings.TrimSpace(t.Template) == "" {
		return NotificationTemplate{}, ErrInvalidArgument
	}
	t.UpdatedAt = s.now()
	return s.repo.UpdateTemplate(ctx, t)
}

func (s *Service) DeleteTemplate(ctx context.Context, c auth.Caller, id string) error {
	ws, err := writableTenant(c)
	if err != nil {
		return err
	}
	return s.repo.DeleteTemplate(ctx, ws, id)
}

func (s *Service) RenderTemplate(ctx context.Context, c auth.Caller, id string, vars map[string]string) (string, error) {
	t, err := s.GetTemplate(ctx, c, id)
	if err != nil {
		return "", err
	}
	return t.Render(vars), nil
}

// ActiveTemplate returns the newest active template for an event on a channel.
// ok is false when the tenant has none.
func (s *Service) ActiveTemplate(ctx context.Context, workspaceID string, ch Channel, event string) (NotificationTemplate, bool, error) {
	ts, err := s.repo.ListTemplates(ctx, TemplateFilter{WorkspaceID: workspaceID, Channel: ch, Event: event, ActiveOnly: true})
	if err != nil || len(ts) == 0 {
		return NotificationTemplate{}, false, err
	}
	return ts[0], true, nil
}

type BrandingUpdate struct {
	BusinessName *string `json:"business_name" binding:"omitempty,max=128"`
	LogoURL      *string `json:"logo_url" binding:"omitempty,max=500"`
	ThemeColor   *string `json:"theme_color" binding:"omitempty,hexcolor6"`
	ContactEmail *string `json:"contact_email" binding:"omitempty,email"`
	ContactPhone *string `json:"contact_phone" binding:"omitempty,phone"`
	Address      *string `json:"address"`
}

// Branding returns the tenant's branding, or the defaults when none is saved.
func (s *Service) Branding(ctx context.Context, c auth.Caller) (Branding, error) {
	ws, err := tenant(c)
	if err != nil {
		return Branding{}, err
	}
	return s.branding(ctx, ws)
}

func (s *Service) branding(ctx context.Context, ws string) (Branding, error) {
	b, ok, err := s.repo.GetBranding(ctx, ws)
	if err != nil {
		return Branding{}, err
	}
	if !ok {
		b = Branding{WorkspaceID: ws, ThemeColor: DefaultThemeColor}
	}
	return b, nil
}

func set(dst *string, v *string) {
	if v != nil {
		*dst = strings.TrimSpace(*v)
	}
}

func (s *Service) UpdateBranding(ctx context.Context, c auth.Caller, req BrandingUpdate) (Branding, error) {
	ws, err := writableTenant(c)
	if err != nil {
		return Branding{}, err
	}
	b, err := s.branding(ctx, ws)
	if err != nil {
		return Branding{}, err
	}
	set(&b.BusinessName, req.BusinessName)
	set(&b.LogoURL, req.LogoURL)
	set(&b.ThemeColor, req.ThemeColor)
	set(&b.ContactEmail, req.ContactEmail)
	set(&b.ContactPhone, req.ContactPhone)
	set(&b.Address, req.Address)
	if b.ThemeColor == "" {
		b.ThemeColor = DefaultThemeColor
	}
	b.UpdatedAt = s.now()
	out, err := s.repo.SaveBranding(ctx, b)
	if err != nil {
		return Branding{}, err
	}
	s.auditor.Record(ctx, audit.EventTypeSettingsChanged, "branding", ws, "branding updated", nil)
	return out, nil
}

type LegalUpdate struct {
	PrivacyPolicy  *string `json:"privacy_policy"`
	TermsOfService *string `json:"terms_of_service"`
	ReturnPolicy   *string `json:"return_policy"`
	WarrantyPolicy *string `json:"warranty_policy"`
}

func (s *Service) Legal(ctx context.Context, c auth.Caller) (Legal, error) {
	ws, err := tenant(c)
	if err != nil {
		return Legal{}, err
	}
	l, ok, err := s.repo.GetLegal(ctx, ws)
	if err != nil {
		return Legal{}, err
	}
	if !ok {
		l = Legal{WorkspaceID: ws}
	}
	return l, nil
}

func (s *Service) UpdateLegal(ctx context.Context, c auth.Caller, req LegalUpdate) (Legal, error) {
	if _, err := writableTenant(c); err != nil {
		return Legal{}, err
	}
	l, err := s.Legal(ctx, c)
	if err != nil {
		return Legal{}, err
	}
	set(&l.PrivacyPolicy, req.PrivacyPolicy)
	set(&l.TermsOfService, req.TermsOfService)
	set(&l.ReturnPolicy, req.ReturnPolicy)
	set(&l.WarrantyPolicy, req.WarrantyPolicy)
	l.UpdatedAt = s.now()
	out, err := s.repo.SaveLegal(ctx, l)
	if err != nil {
		return Legal{}, err
	}
	s.auditor.Record(ctx, audit.EventTypeSettingsChanged, "legal", l.WorkspaceID, "legal copy updated", nil)
	return out, nil
}
