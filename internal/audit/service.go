package audit

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"bizops-platform/internal/auth"
	"bizops-platform/internal/httpapi"
	"bizops-platform/pkg/logger"

	"github.com/google/uuid"
)

// Repository is the persistence contract for audit events.
// It is append-only: there are no Update/Delete methods.
type Repository interface {
	Append(ctx context.Context, e Event) error
}

// Service logs internal audit information. Audit is internal-only and has no REST surface.
type Service struct {
	repo  Repository
	clock func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, clock: time.Now}
}

var ErrInvalidEvent = errors.New("audit: invalid event")

func (s *Service) Append(ctx context.Context, e Event) error {
	if s.repo == nil {
		return errors.New("audit: repository not configured")
	}
	if e.WorkspaceID == "" || e.Type == "" {
		return ErrInvalidEvent
	}
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = s.clock().UTC()
	}
	return s.repo.Append(ctx, e)
}

// Record appends an event on behalf of the caller in ctx. Actor, role and client IP
// come from the request context. Failures are logged and swallowed.
// A nil Service is a no-op so callers can leave audit unwired in tests.
func (s *Service) Record(ctx context.Context, typ EventType, entityType, entityID, message string, metadata any) {
	if s == nil {
		return
	}
	e := Event{
		Type:       typ,
		EntityType: entityType,
		EntityID:   entityID,
		Message:    message,
		IPAddress:  httpapi.ClientIPFromContext(ctx),
	}
	if caller, err := auth.CallerFrom(ctx); err == nil {
		e.WorkspaceID = caller.WorkspaceID
		e.ActorUserID = caller.UserID
		e.ActorRole = caller.Role
	}
	if metadata != nil {
		if b, err := json.Marshal(metadata); err == nil {
			e.Metadata = string(b)
		}
	}
	if err := s.Append(ctx, e); err != nil {
		logger.From(ctx).Warn("audit append failed", "type", typ, "entity_id", entityID, "err", err)
	}
}
