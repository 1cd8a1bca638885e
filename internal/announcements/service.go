package announcements

import (
	"context"
	"slices"
	"strings"
	"time"

	"bizops-platform/internal/auth"
	"bizops-platform/internal/directory"
	"bizops-platform/internal/rbac"

	"github.com/google/uuid"
)

// StoreDirectory resolves the default recipients of a team message.
type StoreDirectory interface {
	StoreUsers(ctx context.Context, workspaceID, storeID string) ([]directory.User, error)
}

type Service struct {
	repo  Repository
	users StoreDirectory
	clock func() time.Time
}

func NewService(repo Repository, users StoreDirectory) *Service {
	return &Service{repo: repo, users: users, clock: time.Now}
}

// viewerFor returns nil for platform admins, who are not subject to targeting.
func viewerFor(c auth.Caller) *Viewer {
	if rbac.IsPlatformAdmin(c.Role) {
		return nil
	}
	return &Viewer{UserID: c.UserID, WorkspaceID: c.WorkspaceID, StoreID: c.StoreID, Role: c.Role}
}

type CreateAnnouncementRequest struct {
	Title                  string     `json:"title" binding:"required,max=200"`
	Content                string     `json:"content" binding:"required"`
	Type                   Type       `json:"announcement_type"`
	Priority               Priority   `json:"priority"`
	TargetRoles            []string   `json:"target_roles"`
	TargetStores           []string   `json:"target_stores"`
	TargetTenants          []string   `json:"target_tenants"`
	IsPinned               bool       `json:"is_pinned"`
	IsActive               *bool      `json:"is_active"`
	RequiresAcknowledgment bool       `json:"requires_acknowledgment"`
	PublishAt              *time.Time `json:"publish_at"`
	ExpiresAt              *time.Time `json:"expires_at"`
}

func (s *Service) CreateAnnouncement(ctx context.Context, c auth.Caller, req CreateAnnouncementRequest) (Announcement, error) {
	if req.Type == "" {
		req.Type = TypeSystemWide
	}
	if req.Priority == "" {
		req.Priority = PriorityMedium
	}
	if !req.Type.Valid() || !req.Priority.Valid() || strings.TrimSpace(req.Title) == "" {
		return Announcement{}, ErrInvalidArgument
	}
	for _, r := range req.TargetRoles {
		if !rbac.IsKnownRole(r) {
			return Announcement{}, ErrInvalidArgument
		}
	}
	now := s.clock().UTC()
	a := Announcement{
		ID:                     uuid.NewString(),
		WorkspaceID:            c.WorkspaceID,
		Title:                  strings.TrimSpace(req.Title),
		Content:                req.Content,
		Type:                   req.Type,
		Priority:               req.Priority,
		TargetRoles:            compact(req.TargetRoles),
		TargetStores:           compact(req.TargetStores),
		TargetTenants:          compact(req.TargetTenants),
		IsPinned:               req.IsPinned,
		IsActive:               req.IsActive == nil || *req.IsActive,
		RequiresAcknowledgment: req.RequiresAcknowledgment,
		PublishAt:              now,
		ExpiresAt:              req.ExpiresAt,
		AuthorID:               c.UserID,
		AuthorStoreID:          c.StoreID,
		CreatedAt:              now,
		UpdatedAt:              now,
	}
	if req.PublishAt != nil {
		a.PublishAt = req.PublishAt.UTC()
	}
	if a.ExpiresAt != nil && !a.ExpiresAt.After(a.PublishAt) {
		return Announcement{}, ErrInvalidArgument
	}
	if (a.Type == TypeTeamSpecific || a.Type == TypeStoreSpecific) && len(a.TargetStores) == 0 && c.StoreID != "" {
		a.TargetStores = []string{c.StoreID}
	}
	return s.repo.CreateAnnouncement(ctx, a)
}

func compact(in []string) []string {
	out := make([]string, 0, len(in))
	for _, v := range in {
		if v = strings.TrimSpace(v); v != "" && !slices.Contains(out, v) {
			out = append(out, v)
		}
	}
	return out
}

type AnnouncementFilter struct {
	PinnedOnly bool
	Priority   Priority
	Type       Type
	Search     string
	UnreadOnly bool
	Limit      int
	Offset     int
}

func (s *Service) ListAnnouncements(ctx context.Context, c auth.Caller, f AnnouncementFilter) ([]Announcement, error) {
	q := AnnouncementQuery{
		Viewer:     viewerFor(c),
		Now:        s.clock().UTC(),
		PinnedOnly: f.PinnedOnly,
		Priority:   f.Priority,
		Type:       f.Type,
		Search:     strings.TrimSpace(f.Search),
		Limit:      f.Limit,
		Offset:     f.Offset,
	}
	if f.UnreadOnly {
		q.UnreadBy = c.UserID
	}
	return s.repo.ListAnnouncements(ctx, q)
}

func (s *Service) Pinned(ctx context.Context, c auth.Caller) ([]Announcement, error) {
	return s.ListAnnouncements(ctx, c, AnnouncementFilter{PinnedOnly: true})
}

func (s *Service) Urgent(ctx context.Context, c auth.Caller) ([]Announcement, error) {
	return s.ListAnnouncements(ctx, c, AnnouncementFilter{Priority: PriorityUrgent})
}

func (s *Service) UnreadAnnouncements(ctx context.Context, c auth.Caller) (int, error) {
	items, err := s.ListAnnouncements(ctx, c, AnnouncementFilter{UnreadOnly: true})
	return len(items), err
}

// GetAnnouncement hides announcements the caller cannot see as not found.
func (s *Service) GetAnnouncement(ctx context.Context, c auth.Caller, id string) (Announcement, error) {
	a, err := s.repo.GetAnnouncement(ctx, id)
	if err != nil {
		return Announcement{}, err
	}
	if v := viewerFor(c); v != nil && !a.VisibleTo(*v, s.clock().UTC()) {
		return Announcement{}, ErrAnnouncementNotFound
	}
	return a, nil
}

type UpdateAnnouncementRequest struct {
	Title                  *string    `json:"title" binding:"omitempty,max=200"`
	Content                *string    `json:"content"`
	Type                   *Type      `json:"announcement_type"`
	Priority               *Priority  `json:"priority"`
	TargetRoles            []string   `json:"target_roles"`
	TargetStores           []string   `json:"target_stores"`
	TargetTenants          []string   `json:"target_tenants"`
	IsPinned               *bool      `json:"is_pinned"`
	IsActive               *bool      `json:"is_active"`
	RequiresAcknowledgment *bool      `json:"requires_acknowledgment"`
	PublishAt              *time.Time `json:"publish_at"`
	ExpiresAt              *time.Time `json:"expires_at"`
}

// canEdit allows the author, a tenant admin of the owning tenant, and platform admins.
func canEdit(c auth.Caller, a Announcement) bool {
	if rbac.IsPlatformAdmin(c.Role) || a.AuthorID == c.UserID {
		return true
	}
	return rbac.IsTenantAdmin(c.Role) && a.WorkspaceID == c.WorkspaceID
}

func (s *Service) editable(ctx context.Context, c auth.Caller, id string) (Announcement, error) {
	a, err := s.repo.GetAnnouncement(ctx, id)
	if err != nil {
		return Announcement{}, err
	}
	if !rbac.IsPlatformAdmin(c.Role) && a.WorkspaceID != c.WorkspaceID {
		return Announcement{}, ErrAnnouncementNotFound
	}
	if !canEdit(c, a) {
		return Announcement{}, ErrForbidden
	}
	return a, nil
}

func (s *Service) UpdateAnnouncement(ctx context.Context, c auth.Caller, id string, req UpdateAnnouncementRequest) (Announcement, error) {
	a, err := s.editable(ctx, c, id)
	if err != nil {
		return Announcement{}, err
	}
	if req.Title != nil {
		if strings.TrimSpace(*req.Title) == "" {
			return Announcement{}, ErrInvalidArgument
		}
		a.Title = strings.TrimSpace(*req.Title)
	}
	if req.Content != nil {
		a.Content = *req.Content
	}
	if req.Type != nil {
		if !req.Type.Valid() {
			return Announcement{}, ErrInvalidArgument
		}
		a.Type = *req.Type
	}
	if req.Priority != nil {
		if !req.Priority.Valid() {
			return Announcement{}, ErrInvalidArgument
		}
		a.Priority = *req.Priority
	}
	if req.TargetRoles != nil {
		a.TargetRoles = compact(req.TargetRoles)
	}
	if req.TargetStores != nil {
		a.TargetStores = compact(req.TargetStores)
	}
	if req.TargetTenants != nil {
		a.TargetTenants = compact(req.TargetTenants)
	}
	if req.IsPinned != nil {
		a.IsPinned = *req.IsPinned
	}
	if req.IsActive != nil {
		a.IsActive = *req.IsActive
	}
	if req.RequiresAcknowledgment != nil {
		a.RequiresAcknowledgment = *req.RequiresAcknowledgment
	}
	if req.PublishAt != nil {
		a.PublishAt = req.PublishAt.UTC()
	}
	if req.ExpiresAt != nil {
		a.ExpiresAt = req.ExpiresAt
	}
	a.UpdatedAt = s.clock().UTC()
	return s.repo.UpdateAnnouncement(ctx, a)
}

func (s *Service) DeleteAnnouncement(ctx context.Context, c auth.Caller, id string) error {
	if _, err := s.editable(ctx, c, id); err != nil {
		return err
	}
	return s.repo.DeleteAnnouncement(ctx, id)
}

func (s *Service) MarkAnnouncementRead(ctx context.Context, c auth.Caller, id string) (Read, error) {
	if _, err := s.GetAnnouncement(ctx, c, id); err != nil {
		return Read{}, err
	}
	return s.repo.MarkRead(ctx, id, c.UserID, s.clock().UTC())
}

func (s *Service) Acknowledge(ctx context.Context, c auth.Caller, id string) (Read, error) {
	a, err := s.GetAnnouncement(ctx, c, id)
	if err != nil {
		return Read{}, err
	}
	if !a.RequiresAcknowledgment {
		return Read{}, ErrAckNotRequired
	}
	return s.repo.Acknowledge(ctx, id, c.UserID, s.clock().UTC())
}
