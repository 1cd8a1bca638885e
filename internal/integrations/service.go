// Package integrations keeps each tenant's third-party connections and
// drives the shared WhatsApp gateway: direct and bulk sends, session
// control, and the inbound webhook.
package integrations

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"bizops-platform/internal/audit"
	"bizops-platform/internal/auth"
	"bizops-platform/internal/rbac"
	"bizops-platform/pkg/logger"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// ErrGateway wraps every failure reported by the WhatsApp gateway.
var ErrGateway = errors.New("integrations: whatsapp gateway unavailable")

type Options struct {
	CountryCode  string
	WebhookToken string
}

type Service struct {
	repo    Repository
	wa      Messenger
	auditor *audit.Service
	opts    Options
	clock   func() time.Time
}

func NewService(repo Repository, wa Messenger, auditor *audit.Service, opts Options) *Service {
	if opts.CountryCode == "" {
		opts.CountryCode = "91"
	}
	return &Service{repo: repo, wa: wa, auditor: auditor, opts: opts, clock: time.Now}
}

func (s *Service) now() time.Time { return s.clock().UTC() }

func onlyDigits(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// normalizePhone is the stored and matched form of a business number.
func (s *Service) normalizePhone(phone string) string {
	return strings.TrimSuffix(ChatID(phone, s.opts.CountryCode), "@c.us")
}

func member(c auth.Caller) error {
	if c.WorkspaceID == "" || c.UserID == "" {
		return ErrForbidden
	}
	return nil
}

func gatewayErr(err error) error {
	return fmt.Errorf("%w: %v", ErrGateway, err)
}

// Status reports the WhatsApp session state.
func (s *Service) Status(ctx context.Context, c auth.Caller) (Session, error) {
	if err := member(c); err != nil {
		return Session{}, err
	}
	sess, err := s.wa.SessionStatus(ctx)
	if err != nil {
		return Session{}, gatewayErr(err)
	}
	return sess, nil
}

func (s *Service) StartSession(ctx context.Context, c auth.Caller) error {
	if c.WorkspaceID == "" || !rbac.IsTenantAdmin(c.Role) {
		return ErrForbidden
	}
	if err := s.wa.StartSession(ctx); err != nil {
		s.logWhatsApp(ctx, c.WorkspaceID, LevelError, "session start failed", map[string]any{"error": err.Error()})
		return gatewayErr(err)
	}
	s.logWhatsApp(ctx, c.WorkspaceID, LevelSuccess, "session started", nil)
	s.auditor.Record(ctx, audit.EventTypeIntegration, "whatsapp_session", "", "whatsapp session started", nil)
	return nil
}

const (
	MessageText  = "text"
	MessageImage = "image"
)

type SendRequest struct {
	Phone    string `json:"phone" binding:"required"`
	Message  string `json:"message" binding:"required"`
	Type     string `json:"type" binding:"omitempty,oneof=text image"`
	ImageURL string `json:"image_url" binding:"omitempty,url"`
}

type SendResult struct {
	Phone  string `json:"phone"`
	ChatID string `json:"chat_id"`
}

func (s *Service) Send(ctx context.Context, c auth.Caller, req SendRequest) (SendResult, error) {
	if err := member(c); err != nil {
		return SendResult{}, err
	}
	if strings.TrimSpace(req.Phone) == "" || strings.TrimSpace(req.Message) == "" {
		return SendResult{}, fmt.Errorf("%w: phone and message are required", ErrInvalidArgument)
	}
	var err error
	switch req.Type {
	case "", MessageText:
		err = s.wa.SendText(ctx, req.Phone, req.Message)
	case MessageImage:
		if req.ImageURL == "" {
			return SendResult{}, fmt.Errorf("%w: image_url is required for image messages", ErrInvalidArgument)
		}
		err = s.wa.SendImage(ctx, req.Phone, req.ImageURL, req.Message)
	default:
		return SendResult{}, fmt.Errorf("%w: unknown message type %q", ErrInvalidArgument, req.Type)
	}
	if err != nil {
		s.logWhatsApp(ctx, c.WorkspaceID, LevelError, "send failed", map[string]any{"phone": req.Phone, "error": err.Error()})
		return SendResult{}, gatewayErr(err)
	}
	s.recordSent(ctx, c.WorkspaceID, 1)
	return SendResult{Phone: req.Phone, ChatID: ChatID(req.Phone, s.opts.CountryCode)}, nil
}

// SendText delivers a text for a workspace outside a request, e.g. from an
// automation action.
func (s *Service) SendText(ctx context.Context, workspaceID, phone, message string) error {
	if strings.TrimSpace(phone) == "" || strings.TrimSpace(message) == "" {
		return fmt.Errorf("%w: phone and message are required", ErrInvalidArgument)
	}
	if err := s.wa.SendText(ctx, phone, message); err != nil {
		s.logWhatsApp(ctx, workspaceID, LevelError, "send failed", map[string]any{"phone": phone, "error": err.Error()})
		return gatewayErr(err)
	}
	s.recordSent(ctx, workspaceID, 1)
	return nil
}

type BulkRequest struct {
	Recipients   []string          `json:"recipients" binding:"required,min=1"`
	Message      string            `json:"message" binding:"required"`
	TemplateType string            `json:"template_type"`
	TemplateData map[string]string `json:"template_data"`
}

type BulkResult struct {
	SentCount   int      `json:"sent_count"`
	FailedCount int      `json:"failed_count"`
	Failed      []string `json:"failed,omitempty"`
}

func canBulkSend(role string) bool {
	return rbac.IsTenantAdmin(role) || role == rbac.RoleMarketing
}

// BulkSend sends one message to every recipient. A template_type of
// new_collection or follow_up replaces message with the rendered template.
// Individual failures are counted, not returned.
func (s *Service) BulkSend(ctx context.Context, c auth.Caller, req BulkRequest) (BulkResult, error) {
	if c.WorkspaceID == "" || !canBulkSend(c.Role) {
		return BulkResult{}, ErrForbidden
	}
	if len(req.Recipients) == 0 || strings.TrimSpace(req.Message) == "" {
		return BulkResult{}, fmt.Errorf("%w: recipients and message are required", ErrInvalidArgument)
	}
	text := req.Message
	if req.TemplateType != "" {
		t, ok := findTemplate(req.TemplateType)
		if !ok || !bulkTemplates[req.TemplateType] {
			return BulkResult{}, fmt.Errorf("%w: template %q cannot be used for bulk sends", ErrInvalidArgument, req.TemplateType)
		}
		text = t.Render(req.TemplateData)
	}

	var res BulkResult
	for _, phone := range req.Recipients {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		if strings.TrimSpace(phone) == "" {
			res.FailedCount++
			continue
		}
		if err := s.wa.SendText(ctx, phone, text); err != nil {
			logger.From(ctx).Warn("bulk send failed", "phone", phone, "err", err)
			res.FailedCount++
			res.Failed = append(res.Failed, phone)
			continue
		}
		res.SentCount++
	}
	s.recordSent(ctx, c.WorkspaceID, res.SentCount)
	level := LevelSuccess
	if res.FailedCount > 0 {
		level = LevelWarning
	}
	s.logWhatsApp(ctx, c.WorkspaceID, level, "bulk send completed", map[string]any{
		"sent_count":    res.SentCount,
		"failed_count":  res.FailedCount,
		"template_type": req.TemplateType,
	})
	return res, nil
}

// whatsAppConfig finds the tenant's WhatsApp integration and its config.
func (s *Service) whatsAppConfig(ctx context.Context, workspaceID string) (Integration, WhatsAppConfig, error) {
	in, err := s.repo.FindByPlatform(ctx, workspaceID, PlatformWhatsApp)
	if err != nil {
		return Integration{}, WhatsAppConfig{}, err
	}
	cfg, err := s.repo.GetWhatsAppConfig(ctx, in.ID)
	return in, cfg, err
}

func (s *Service) recordSent(ctx context.Context, workspaceID string, n int) {
	if n == 0 || workspaceID == "" {
		return
	}
	_, cfg, err := s.whatsAppConfig(ctx, workspaceID)
	if err != nil {
		if !errors.Is(err, ErrIntegrationNotFound) && !errors.Is(err, ErrConfigNotFound) {
			logger.From(ctx).Warn("whatsapp config lookup failed", "workspace_id", workspaceID, "err", err)
		}
		return
	}
	if err := s.repo.RecordSent(ctx, cfg.ID, n, s.now()); err != nil {
		logger.From(ctx).Warn("record sent failed", "config_id", cfg.ID, "err", err)
	}
}

// logWhatsApp writes to the tenant's WhatsApp integration log when the
// tenant has one. Tenants using the shared gateway without an integration
// row only get the application log.
func (s *Service) logWhatsApp(ctx context.Context, workspaceID string, level LogLevel, msg string, details map[string]any) {
	if workspaceID == "" {
		return
	}
	in, err := s.repo.FindByPlatform(ctx, workspaceID, PlatformWhatsApp)
	if err != nil {
		logger.From(ctx).Info("whatsapp "+msg, "workspace_id", workspaceID, "level", string(level))
		return
	}
	s.addLog(ctx, in, level, msg, details)
}

func (s *Service) addLog(ctx context.Context, in Integration, level LogLevel, msg string, details map[string]any) {
	l := IntegrationLog{
		ID:            uuid.NewString(),
		IntegrationID: in.ID,
		WorkspaceID:   in.WorkspaceID,
		Level:         level,
		Message:       msg,
		CreatedAt:     s.now(),
	}
	if details != nil {
		b, err := json.Marshal(details)
		if err == nil {
			l.Details = datatypes.JSON(b)
		}
	}
	if err := s.repo.AddLog(ctx, l); err != nil {
		logger.From(ctx).Warn("integration log write failed", "integration_id", in.ID, "err", err)
	}
}
