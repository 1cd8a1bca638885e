package notifications

import (
	"context"
	"errors"
	"slices"
	"strings"
	"time"

	"bizops-platform/internal/directory"
	"bizops-platform/pkg/logger"

	"github.com/google/uuid"
)

// UserLookup resolves a recipient's email address.
type UserLookup interface {
	Get(ctx context.Context, id string) (directory.User, error)
}

type Service struct {
	repo   Repository
	users  UserLookup
	mailer Mailer
	clock  func() time.Time
}

// NewService wires the notification store. users and mailer may be nil, which
// disables email delivery.
func NewService(repo Repository, users UserLookup, mailer Mailer) *Service {
	return &Service{repo: repo, users: users, mailer: mailer, clock: time.Now}
}

type NotifyRequest struct {
	WorkspaceID  string     `json:"-"`
	StoreID      string     `json:"store_id"`
	UserID       string     `json:"user_id" binding:"required"`
	Type         Type       `json:"type" binding:"required"`
	Priority     Priority   `json:"priority"`
	Title        string     `json:"title" binding:"required,max=200"`
	Message      string     `json:"message" binding:"required"`
	ActionURL    string     `json:"action_url" binding:"omitempty,max=500"`
	ActionText   string     `json:"action_text" binding:"omitempty,max=50"`
	IsPersistent bool       `json:"is_persistent"`
	Metadata     string     `json:"metadata"`
	ExpiresAt    *time.Time `json:"expires_at"`
}

func (s *Service) build(req NotifyRequest) (Notification, error) {
	if req.WorkspaceID == "" || req.UserID == "" || !req.Type.Valid() || strings.TrimSpace(req.Title) == "" {
		return Notification{}, ErrInvalidArgument
	}
	if req.Priority == "" {
		req.Priority = PriorityMedium
	}
	if !req.Priority.Valid() {
		return Notification{}, ErrInvalidArgument
	}
	return Notification{
		ID:           uuid.NewString(),
		WorkspaceID:  req.WorkspaceID,
		StoreID:      req.StoreID,
		UserID:       req.UserID,
		Type:         req.Type,
		Priority:     req.Priority,
		Status:       StatusUnread,
		Title:        strings.TrimSpace(req.Title),
		Message:      req.Message,
		ActionURL:    req.ActionURL,
		ActionText:   req.ActionText,
		IsPersistent: req.IsPersistent,
		Metadata:     req.Metadata,
		ExpiresAt:    req.ExpiresAt,
		CreatedAt:    s.clock().UTC(),
	}, nil
}

// Create stores an in-app notification unconditionally. The recipient must
// belong to the request's workspace when a directory is wired.
func (s *Service) Create(ctx context.Context, req NotifyRequest) (Notification, error) {
	n, err := s.build(req)
	if err != nil {
		return Notification{}, err
	}
	if s.users != nil {
		u, err := s.users.Get(ctx, n.UserID)
		if err != nil || u.WorkspaceID != n.WorkspaceID {
			return Notification{}, ErrInvalidArgument
		}
	}
	return s.repo.Create(ctx, n)
}

// Notify delivers according to the recipient's settings. The in-app row is
// written when the type is enabled for in-app or the priority is urgent. Email
// goes out when the type is enabled for email outside quiet hours. The returned
// Notification has an empty ID when no in-app row was written.
func (s *Service) Notify(ctx context.Context, req NotifyRequest) (Notification, error) {
	n, err := s.build(req)
	if err != nil {
		return Notification{}, err
	}
	settings, err := s.settingsFor(ctx, req.WorkspaceID, req.UserID)
	if err != nil {
		return Notification{}, err
	}

	var stored Notification
	if n.Priority == PriorityUrgent || slices.Contains(settings.InAppTypes, n.Type) {
		if stored, err = s.repo.Create(ctx, n); err != nil {
			return Notification{}, err
		}
	}
	if slices.Contains(settings.EmailTypes, n.Type) && !settings.InQuietHours(s.clock()) {
		s.email(ctx, n)
	}
	return stored, nil
}

func (s *Service) email(ctx context.Context, n Notification) {
	if s.mailer == nil || s.users == nil {
		return
	}
	u, err := s.users.Get(ctx, n.UserID)
	if err != nil || u.Email == "" {
		return
	}
	body := n.Message
	if n.ActionURL != "" {
		body += "\n\n" + n.ActionURL
	}
	if err := s.mailer.Send(ctx, u.Email, n.Title, body); err != nil {
		logger.From(ctx).Warn("notification email failed", "notification_id", n.ID, "err", err)
	}
}

func (s *Service) List(ctx context.Context, f ListFilter) ([]Notification, error) {
	if f.WorkspaceID == "" || f.UserID == "" {
		return nil, ErrInvalidArgument
	}
	return s.repo.List(ctx, f)
}

func (s *Service) MarkRead(ctx context.Context, workspaceID, userID, id string) (Notification, error) {
	return s.repo.MarkRead(ctx, workspaceID, userID, id, s.clock().UTC())
}

func (s *Service) MarkAllRead(ctx context.Context, workspaceID, userID string) (int64, error) {
	return s.repo.MarkAllRead(ctx, workspaceID, userID, s.clock().UTC())
}

func (s *Service) UnreadCount(ctx context.Context, workspaceID, userID string) (int, error) {
	return s.repo.UnreadCount(ctx, workspaceID, userID)
}

// Delete removes a notification unless it is persistent.
func (s *Service) Delete(ctx context.Context, workspaceID, userID, id string) error {
	n, err := s.repo.Get(ctx, workspaceID, userID, id)
	if err != nil {
		return err
	}
	if n.IsPersistent {
		return ErrPersistent
	}
	return s.repo.Delete(ctx, workspaceID, userID, id)
}

func (s *Service) MySettings(ctx context.Context, workspaceID, userID string) (Settings, error) {
	return s.settingsFor(ctx, workspaceID, userID)
}

// SettingsPatch carries optional updates; nil fields are left unchanged.
type SettingsPatch struct {
	EmailTypes        []Type  `json:"email_types"`
	PushTypes         []Type  `json:"push_types"`
	InAppTypes        []Type  `json:"in_app_types"`
	MarketingUpdates  *bool   `json:"marketing_updates"`
	QuietHoursEnabled *bool   `json:"quiet_hours_enabled"`
	QuietHoursStart   *string `json:"quiet_hours_start" binding:"omitempty,datetime=15:04"`
	QuietHoursEnd     *string `json:"quiet_hours_end" binding:"omitempty,datetime=15:04"`
	Timezone          *string `json:"timezone" binding:"omitempty,timezone"`
}

func (s *Service) UpdateSettings(ctx context.Context, workspaceID, userID string, p SettingsPatch) (Settings, error) {
	cur, err := s.settingsFor(ctx, workspaceID, userID)
	if err != nil {
		return Settings{}, err
	}
	for _, list := range [][]Type{p.EmailTypes, p.PushTypes, p.InAppTypes} {
		for _, t := range list {
			if !t.Valid() {
				return Settings{}, ErrInvalidArgument
			}
		}
	}
	if p.EmailTypes != nil {
		cur.EmailTypes = p.EmailTypes
	}
	if p.PushTypes != nil {
		cur.PushTypes = p.PushTypes
	}
	if p.InAppTypes != nil {
		cur.InAppTypes = p.InAppTypes
	}
	if p.MarketingUpdates != nil {
		cur.MarketingUpdates = *p.MarketingUpdates
	}
	if p.QuietHoursEnabled != nil {
		cur.QuietHoursEnabled = *p.QuietHoursEnabled
	}
	if p.QuietHoursStart != nil {
		cur.QuietHoursStart = *p.QuietHoursStart
	}
	if p.QuietHoursEnd != nil {
		cur.QuietHoursEnd = *p.QuietHoursEnd
	}
	if p.Timezone != nil {
		cur.Timezone = *p.Timezone
	}
	cur.UpdatedAt = s.clock().UTC()
	return s.repo.SaveSettings(ctx, cur)
}

// settingsFor is get-or-create.
func (s *Service) settingsFor(ctx context.Context, workspaceID, userID string) (Settings, error) {
	cur, err := s.repo.GetSettings(ctx, workspaceID, userID)
	if err == nil {
		return cur, nil
	}
	if !errors.Is(err, ErrSettingsNotFound) {
		return Settings{}, err
	}
	def := DefaultSettings(workspaceID, userID)
	def.UpdatedAt = s.clock().UTC()
	return s.repo.SaveSettings(ctx, def)
}
