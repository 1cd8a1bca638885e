package feedback

import (
	"context"
	"strings"

	"bizops-platform/internal/auth"

	"github.com/google/uuid"
)

func (s *Service) ListEscalations(ctx context.Context, c auth.Caller, f EscalationFilter) ([]Escalation, error) {
	f.WorkspaceID = scope(c)
	return s.repo.ListEscalations(ctx, f)
}

func (s *Service) GetEscalation(ctx context.Context, c auth.Caller, id string) (Escalation, error) {
	e, err := s.repo.GetEscalation(ctx, id)
	if err != nil {
		return Escalation{}, err
	}
	if !visible(c, e.WorkspaceID) {
		return Escalation{}, ErrEscalationNotFound
	}
	return e, nil
}

type EscalationUpdate struct {
	Status      *EscalationStatus `json:"status"`
	AssignedTo  *string           `json:"assigned_to"`
	Priority    *string           `json:"priority" binding:"omitempty,oneof=low medium high urgent"`
	Description *string           `json:"description"`
}

func (s *Service) UpdateEscalation(ctx context.Context, c auth.Caller, id string, req EscalationUpdate) (Escalation, error) {
	e, err := s.GetEscalation(ctx, c, id)
	if err != nil {
		return Escalation{}, err
	}
	now := s.clock().UTC()
	if req.Priority != nil {
		e.Priority = *req.Priority
	}
	if req.Description != nil {
		e.Description = *req.Description
	}
	if req.AssignedTo != nil {
		e.AssignedTo = strings.TrimSpace(*req.AssignedTo)
		if e.AssignedTo != "" && e.Status == EscalationOpen {
			e.SetStatus(EscalationInProgress, now)
		}
	}
	if req.Status != nil {
		if !req.Status.Valid() {
			return Escalation{}, ErrInvalidArgument
		}
		e.SetStatus(*req.Status, now)
	}
	e.UpdatedAt = now
	return s.repo.UpdateEscalation(ctx, e)
}

// AssignEscalationToMe takes ownership and moves the escalation to in_progress.
func (s *Service) AssignEscalationToMe(ctx context.Context, c auth.Caller, id string) (Escalation, error) {
	me := c.UserID
	return s.UpdateEscalation(ctx, c, id, EscalationUpdate{AssignedTo: &me})
}

type NoteRequest struct {
	Content    string `json:"content" binding:"required"`
	IsInternal bool   `json:"is_internal"`
}

func (s *Service) AddNote(ctx context.Context, c auth.Caller, escalationID string, req NoteRequest) (EscalationNote, error) {
	e, err := s.GetEscalation(ctx, c, escalationID)
	if err != nil {
		return EscalationNote{}, err
	}
	if strings.TrimSpace(req.Content) == "" {
		return EscalationNote{}, ErrInvalidArgument
	}
	return s.repo.AddNote(ctx, EscalationNote{
		ID:           uuid.NewString(),
		EscalationID: e.ID,
		AuthorID:     c.UserID,
		Content:      req.Content,
		IsInternal:   req.IsInternal,
		CreatedAt:    s.clock().UTC(),
	})
}

func (s *Service) Notes(ctx context.Context, c auth.Caller, escalationID string) ([]EscalationNote, error) {
	if _, err := s.GetEscalation(ctx, c, escalationID); err != nil {
		return nil, err
	}
	return s.repo.ListNotes(ctx, escalationID)
}
