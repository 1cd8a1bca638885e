package directory

import (
	"context"
	"strings"
	"time"

	"bizops-platform/internal/rbac"

	"github.com/google/uuid"
)

type Service struct {
	repo  Repository
	clock func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, clock: time.Now}
}

func (s *Service) Get(ctx context.Context, id string) (User, error) {
	if id == "" {
		return User{}, ErrInvalidArgument
	}
	return s.repo.Get(ctx, id)
}

// PlatformAdmins lists every active platform admin across tenants.
func (s *Service) PlatformAdmins(ctx context.Context) ([]User, error) {
	return s.repo.ListByRole(ctx, "", rbac.RolePlatformAdmin)
}

func (s *Service) ListByRole(ctx context.Context, workspaceID, role string) ([]User, error) {
	if role == "" {
		return nil, ErrInvalidArgument
	}
	return s.repo.ListByRole(ctx, workspaceID, role)
}

func (s *Service) StoreUsers(ctx context.Context, workspaceID, storeID string) ([]User, error) {
	if workspaceID == "" || storeID == "" {
		return nil, nil
	}
	return s.repo.ListStoreUsers(ctx, workspaceID, storeID)
}

func (s *Service) ListWorkspace(ctx context.Context, workspaceID string) ([]User, error) {
	if workspaceID == "" {
		return nil, ErrInvalidArgument
	}
	return s.repo.ListWorkspace(ctx, workspaceID)
}

type UpsertUserRequest struct {
	ID       string `json:"id"`
	StoreID  string `json:"store_id"`
	Role     string `json:"role" binding:"required"`
	Name     string `json:"name" binding:"required,max=200"`
	Email    string `json:"email" binding:"omitempty,email"`
	Phone    string `json:"phone" binding:"omitempty,phone"`
	IsActive *bool  `json:"is_active"`
}

func (s *Service) Upsert(ctx context.Context, workspaceID string, req UpsertUserRequest) (User, error) {
	if workspaceID == "" || !rbac.IsKnownRole(req.Role) || strings.TrimSpace(req.Name) == "" {
		return User{}, ErrInvalidArgument
	}
	now := s.clock().UTC()
	u := User{
		ID:          req.ID,
		WorkspaceID: workspaceID,
		StoreID:     req.StoreID,
		Role:        req.Role,
		Name:        strings.TrimSpace(req.Name),
		Email:       req.Email,
		Phone:       req.Phone,
		IsActive:    true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if req.IsActive != nil {
		u.IsActive = *req.IsActive
	}
	if u.ID == "" {
		u.ID = uuid.NewString()
	} else if existing, err := s.repo.Get(ctx, u.ID); err == nil && existing.WorkspaceID != workspaceID {
		return User{}, ErrUserNotFound
	}
	return s.repo.Upsert(ctx, u)
}
