package integrations

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"bizops-platform/internal/audit"
	"bizops-platform/internal/auth"
	"bizops-platform/internal/rbac"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type WhatsAppSettings struct {
	PhoneNumber               string `json:"phone_number" binding:"required,phone"`
	BusinessName              string `json:"business_name" binding:"max=100"`
	BusinessDescription       string `json:"business_description"`
	WelcomeMessage            string `json:"welcome_message"`
	OrderConfirmationTemplate string `json:"order_confirmation_template" binding:"max=100"`
	OrderStatusTemplate       string `json:"order_status_template" binding:"max=100"`
	AutoReplyEnabled          bool   `json:"auto_reply_enabled"`
	OrderNotificationsEnabled *bool  `json:"order_notifications_enabled"`
	MarketingMessagesEnabled  bool   `json:"marketing_messages_enabled"`
}

type EcommerceSettings struct {
	StoreURL          string `json:"store_url" binding:"omitempty,url"`
	StoreName         string `json:"store_name" binding:"max=100"`
	SyncProducts      *bool  `json:"sync_products"`
	SyncOrders        *bool  `json:"sync_orders"`
	SyncCustomers     bool   `json:"sync_customers"`
	SyncInventory     *bool  `json:"sync_inventory"`
	SyncIntervalHours int    `json:"sync_interval_hours" binding:"min=0"`
}

type IntegrationRequest struct {
	Platform   Platform           `json:"platform" binding:"required"`
	Name       string             `json:"name" binding:"required,max=100"`
	APIKey     string             `json:"api_key" binding:"max=255"`
	APISecret  string             `json:"api_secret" binding:"max=255"`
	WebhookURL string             `json:"webhook_url" binding:"omitempty,url,max=500"`
	ConfigData json.RawMessage    `json:"config_data"`
	Status     Status             `json:"status"`
	IsEnabled  bool               `json:"is_enabled"`
	WhatsApp   *WhatsAppSettings  `json:"whatsapp"`
	Ecommerce  *EcommerceSettings `json:"ecommerce"`
}

type IntegrationUpdate struct {
	Name       *string            `json:"name" binding:"omitempty,max=100"`
	APIKey     *string            `json:"api_key" binding:"omitempty,max=255"`
	APISecret  *string            `json:"api_secret" binding:"omitempty,max=255"`
	WebhookURL *string            `json:"webhook_url" binding:"omitempty,max=500"`
	ConfigData json.RawMessage    `json:"config_data"`
	Status     *Status            `json:"status"`
	IsEnabled  *bool              `json:"is_enabled"`
	WhatsApp   *WhatsAppSettings  `json:"whatsapp"`
	Ecommerce  *EcommerceSettings `json:"ecommerce"`
}

// Detail is an integration with its platform config. Credentials are only
// reported as present or absent.
type Detail struct {
	Integration
	HasAPIKey    bool             `json:"has_api_key"`
	HasAPISecret bool             `json:"has_api_secret"`
	WhatsApp     *WhatsAppConfig  `json:"whatsapp,omitempty"`
	Ecommerce    *EcommerceConfig `json:"ecommerce,omitempty"`
}

func integrationAdmin(c auth.Caller) (string, error) {
	if c.WorkspaceID == "" || c.Role != rbac.RoleBusinessAdmin {
		return "", ErrForbidden
	}
	return c.WorkspaceID, nil
}

func checkSettings(p Platform, wa *WhatsAppSettings, ec *EcommerceSettings) error {
	if wa != nil && p != PlatformWhatsApp {
		return fmt.Errorf("%w: whatsapp settings on a %s integration", ErrInvalidArgument, p)
	}
	if ec != nil && !p.IsEcommerce() {
		return fmt.Errorf("%w: ecommerce settings on a %s integration", ErrInvalidArgument, p)
	}
	return nil
}

func boolOr(v *bool, def bool) bool {
	if v == nil {
		return def
	}
	return *v
}

func (s *Service) CreateIntegration(ctx context.Context, c auth.Caller, req IntegrationRequest) (Detail, error) {
	ws, err := integrationAdmin(c)
	if err != nil {
		return Detail{}, err
	}
	if !req.Platform.Valid() {
		return Detail{}, fmt.Errorf("%w: unknown platform %q", ErrInvalidArgument, req.Platform)
	}
	if req.Status == "" {
		req.Status = StatusInactive
	}
	if !req.Status.Valid() {
		return Detail{}, fmt.Errorf("%w: unknown status %q", ErrInvalidArgument, req.Status)
	}
	if strings.TrimSpace(req.Name) == "" {
		return Detail{}, fmt.Errorf("%w: name is required", ErrInvalidArgument)
	}
	if len(req.ConfigData) > 0 && !json.Valid(req.ConfigData) {
		return Detail{}, fmt.Errorf("%w: config_data must be json", ErrInvalidArgument)
	}
	if err := checkSettings(req.Platform, req.WhatsApp, req.Ecommerce); err != nil {
		return Detail{}, err
	}

	now := s.now()
	in, err := s.repo.CreateIntegration(ctx, Integration{
		ID:          uuid.NewString(),
		WorkspaceID: ws,
		Platform:    req.Platform,
		Name:        strings.TrimSpace(req.Name),
		APIKey:      req.APIKey,
		APISecret:   req.APISecret,
		WebhookURL:  req.WebhookURL,
		ConfigData:  datatypes.JSON(req.ConfigData),
		Status:      req.Status,
		IsEnabled:   req.IsEnabled,
		CreatedAt:   now,
		UpdatedAt:   now,
	})
	if err != nil {
		return Detail{}, err
	}
	if err := s.applySettings(ctx, in, req.WhatsApp, req.Ecommerce); err != nil {
		return Detail{}, err
	}
	s.addLog(ctx, in, LevelSuccess, "integration created", map[string]any{"platform": in.Platform})
	s.auditor.Record(ctx, audit.EventTypeIntegration, "integration", in.ID, "integration created",
		map[string]any{"platform": in.Platform})
	return s.detail(ctx, in)
}

func (s *Service) applySettings(ctx context.Context, in Integration, wa *WhatsAppSettings, ec *EcommerceSettings) error {
	if wa != nil {
		_, err := s.repo.UpsertWhatsAppConfig(ctx, WhatsAppConfig{
			ID:                        uuid.NewString(),
			IntegrationID:             in.ID,
			WorkspaceID:               in.WorkspaceID,
			PhoneNumber:               s.normalizePhone(wa.PhoneNumber),
			BusinessName:              wa.BusinessName,
			BusinessDescription:       wa.BusinessDescription,
			WelcomeMessage:            wa.WelcomeMessage,
			OrderConfirmationTemplate: wa.OrderConfirmationTemplate,
			OrderStatusTemplate:       wa.OrderStatusTemplate,
			AutoReplyEnabled:          wa.AutoReplyEnabled,
			OrderNotificationsEnabled: boolOr(wa.OrderNotificationsEnabled, true),
			MarketingMessagesEnabled:  wa.MarketingMessagesEnabled,
		})
		if err != nil {
			return err
		}
	}
	if ec != nil {
		hours := ec.SyncIntervalHours
		if hours == 0 {
			hours = defaultSyncIntervalHours
		}
		_, err := s.repo.UpsertEcommerceConfig(ctx, EcommerceConfig{
			ID:                uuid.NewString(),
			IntegrationID:     in.ID,
			WorkspaceID:       in.WorkspaceID,
			StoreURL:          ec.StoreURL,
			StoreName:         ec.StoreName,
			SyncProducts:      boolOr(ec.SyncProducts, true),
			SyncOrders:        boolOr(ec.SyncOrders, true),
			SyncCustomers:     ec.SyncCustomers,
			SyncInventory:     boolOr(ec.SyncInventory, true),
			SyncIntervalHours: hours,
		})
		if err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) detail(ctx context.Context, in Integration) (Detail, error) {
	d := Detail{Integration: in, HasAPIKey: in.APIKey != "", HasAPISecret: in.APISecret != ""}
	switch {
	case in.Platform == PlatformWhatsApp:
		cfg, err := s.repo.GetWhatsAppConfig(ctx, in.ID)
		if err == nil {
			d.WhatsApp = &cfg
		} else if !errors.Is(err, ErrConfigNotFound) {
			return Detail{}, err
		}
	case in.Platform.IsEcommerce():
		cfg, err := s.repo.GetEcommerceConfig(ctx, in.ID)
		if err == nil {
			d.Ecommerce = &cfg
		} else if !errors.Is(err, ErrConfigNotFound) {
			return Detail{}, err
		}
	}
	return d, nil
}

func (s *Service) GetIntegration(ctx context.Context, c auth.Caller, id string) (Detail, error) {
	ws, err := integrationAdmin(c)
	if err != nil {
		return Detail{}, err
	}
	in, err := s.repo.GetIntegration(ctx, ws, id)
	if err != nil {
		return Detail{}, err
	}
	return s.detail(ctx, in)
}

func (s *Service) ListIntegrations(ctx context.Context, c auth.Caller, p Platform) ([]Integration, error) {
	ws, err := integrationAdmin(c)
	if err != nil {
		return nil, err
	}
	if p != "" && !p.Valid() {
		return nil, fmt.Errorf("%w: unknown platform %q", ErrInvalidArgument, p)
	}
	return s.repo.ListIntegrations(ctx, ws, p)
}

func (s *Service) UpdateIntegration(ctx context.Context, c auth.Caller, id string, req IntegrationUpdate) (Detail, error) {
	ws, err := integrationAdmin(c)
	if err != nil {
		return Detail{}, err
	}
	in, err := s.repo.GetIntegration(ctx, ws, id)
	if err != nil {
		return Detail{}, err
	}
	if err := checkSettings(in.Platform, req.WhatsApp, req.Ecommerce); err != nil {
		return Detail{}, err
	}
	var changed []string
	if req.Name != nil {
		if strings.TrimSpace(*req.Name) == "" {
			return Detail{}, fmt.Errorf("%w: name is required", ErrInvalidArgument)
		}
		in.Name = strings.TrimSpace(*req.Name)
		changed = append(changed, "name")
	}
	if req.APIKey != nil {
		in.APIKey = *req.APIKey
		changed = append(changed, "api_key")
	}
	if req.APISecret != nil {
		in.APISecret = *req.APISecret
		changed = append(changed, "api_secret")
	}
	if req.WebhookURL != nil {
		in.WebhookURL = *req.WebhookURL
		changed = append(changed, "webhook_url")
	}
	if len(req.ConfigData) > 0 {
		if !json.Valid(req.ConfigData) {
			return Detail{}, fmt.Errorf("%w: config_data must be json", ErrInvalidArgument)
		}
		in.ConfigData = datatypes.JSON(req.ConfigData)
		changed = append(changed, "config_data")
	}
	if req.Status != nil {
		if !req.Status.Valid() {
			return Detail{}, fmt.Errorf("%w: unknown status %q", ErrInvalidArgument, *req.Status)
		}
		in.Status = *req.Status
		changed = append(changed, "status")
	}
	if req.IsEnabled != nil {
		in.IsEnabled = *req.IsEnabled
		changed = append(changed, "is_enabled")
	}
	in.UpdatedAt = s.now()
	in, err = s.repo.SaveIntegration(ctx, in)
	if err != nil {
		return Detail{}, err
	}
	if req.WhatsApp != nil {
		changed = append(changed, "whatsapp")
	}
	if req.Ecommerce != nil {
		changed = append(changed, "ecommerce")
	}
	if err := s.applySettings(ctx, in, req.WhatsApp, req.Ecommerce); err != nil {
		return Detail{}, err
	}
	s.addLog(ctx, in, LevelInfo, "integration updated", map[string]any{"fields": changed})
	s.auditor.Record(ctx, audit.EventTypeIntegration, "integration", in.ID, "integration updated",
		map[string]any{"fields": changed})
	return s.detail(ctx, in)
}

func (s *Service) DeleteIntegration(ctx context.Context, c auth.Caller, id string) error {
	ws, err := integrationAdmin(c)
	if err != nil {
		return err
	}
	in, err := s.repo.GetIntegration(ctx, ws, id)
	if err != nil {
		return err
	}
	if err := s.repo.DeleteIntegration(ctx, ws, id); err != nil {
		return err
	}
	s.auditor.Record(ctx, audit.EventTypeIntegration, "integration", id, "integration deleted",
		map[string]any{"platform": in.Platform})
	return nil
}

// TestConnection checks a WhatsApp integration against the gateway session
// and records the outcome on the integration.
func (s *Service) TestConnection(ctx context.Context, c auth.Caller, id string) (Detail, error) {
	ws, err := integrationAdmin(c)
	if err != nil {
		return Detail{}, err
	}
	in, err := s.repo.GetIntegration(ctx, ws, id)
	if err != nil {
		return Detail{}, err
	}
	if in.Platform != PlatformWhatsApp {
		return Detail{}, fmt.Errorf("%w: connection test is not supported for %s", ErrInvalidArgument, in.Platform)
	}
	now := s.now()
	sess, err := s.wa.SessionStatus(ctx)
	switch {
	case err != nil:
		in.Status, in.LastError = StatusError, err.Error()
	case sess.Status != "WORKING":
		in.Status, in.LastError = StatusPending, "session status "+sess.Status
	default:
		in.Status, in.LastError, in.LastSync = StatusActive, "", &now
	}
	in.UpdatedAt = now
	in, saveErr := s.repo.SaveIntegration(ctx, in)
	if saveErr != nil {
		return Detail{}, saveErr
	}
	level, msg := LevelSuccess, "connection test passed"
	if in.Status != StatusActive {
		level, msg = LevelError, "connection test failed"
	}
	s.addLog(ctx, in, level, msg, map[string]any{"status": in.Status, "error": in.LastError})
	return s.detail(ctx, in)
}

func (s *Service) ListLogs(ctx context.Context, c auth.Caller, f LogFilter) ([]IntegrationLog, error) {
	ws, err := integrationAdmin(c)
	if err != nil {
		return nil, err
	}
	if f.IntegrationID != "" {
		if _, err := s.repo.GetIntegration(ctx, ws, f.IntegrationID); err != nil {
			return nil, err
		}
	}
	f.WorkspaceID = ws
	return s.repo.ListLogs(ctx, f)
}
