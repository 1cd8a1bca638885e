package announcements

import (
	"context"
	"slices"
	"strings"

	"bizops-platform/internal/auth"
	"bizops-platform/internal/rbac"

	"github.com/google/uuid"
)

type SendMessageRequest struct {
	Recipients       []string    `json:"recipients"`
	MessageType      MessageType `json:"message_type"`
	Subject          string      `json:"subject" binding:"required,max=200"`
	Content          string      `json:"content" binding:"required"`
	IsUrgent         bool        `json:"is_urgent"`
	RequiresResponse bool        `json:"requires_response"`
}

// SendMessage stores a root message. With no recipients it goes to every
// active user in the sender's store except the sender.
func (s *Service) SendMessage(ctx context.Context, c auth.Caller, req SendMessageRequest) (TeamMessage, error) {
	recipients := compact(req.Recipients)
	if len(recipients) == 0 && s.users != nil {
		users, err := s.users.StoreUsers(ctx, c.WorkspaceID, c.StoreID)
		if err != nil {
			return TeamMessage{}, err
		}
		for _, u := range users {
			recipients = append(recipients, u.ID)
		}
	}
	recipients = slices.DeleteFunc(recipients, func(id string) bool { return id == c.UserID })
	if len(recipients) == 0 {
		return TeamMessage{}, ErrInvalidArgument
	}
	return s.newMessage(ctx, c, "", recipients, req)
}

func (s *Service) newMessage(ctx context.Context, c auth.Caller, parentID string, recipients []string, req SendMessageRequest) (TeamMessage, error) {
	if req.MessageType == "" {
		req.MessageType = MessageGeneral
	}
	if !req.MessageType.Valid() || strings.TrimSpace(req.Subject) == "" || strings.TrimSpace(req.Content) == "" {
		return TeamMessage{}, ErrInvalidArgument
	}
	now := s.clock().UTC()
	return s.repo.CreateMessage(ctx, TeamMessage{
		ID:               uuid.NewString(),
		WorkspaceID:      c.WorkspaceID,
		StoreID:          c.StoreID,
		SenderID:         c.UserID,
		Recipients:       recipients,
		ParentID:         parentID,
		MessageType:      req.MessageType,
		Subject:          strings.TrimSpace(req.Subject),
		Content:          req.Content,
		IsUrgent:         req.IsUrgent || req.MessageType == MessageUrgent,
		RequiresResponse: req.RequiresResponse,
		CreatedAt:        now,
		UpdatedAt:        now,
	})
}

func canSeeMessage(c auth.Caller, m TeamMessage) bool {
	if m.WorkspaceID != c.WorkspaceID {
		return false
	}
	return rbac.IsPlatformAdmin(c.Role) || m.IsParticipant(c.UserID)
}

func (s *Service) GetMessage(ctx context.Context, c auth.Caller, id string) (TeamMessage, error) {
	m, err := s.repo.GetMessage(ctx, id)
	if err != nil {
		return TeamMessage{}, err
	}
	if !canSeeMessage(c, m) {
		return TeamMessage{}, ErrMessageNotFound
	}
	return m, nil
}

type MessageFilter struct {
	MessageType MessageType
	UrgentOnly  bool
	Limit       int
	Offset      int
}

func (s *Service) messageQuery(c auth.Caller, f MessageFilter) MessageQuery {
	q := MessageQuery{
		WorkspaceID: c.WorkspaceID,
		MessageType: f.MessageType,
		UrgentOnly:  f.UrgentOnly,
		Limit:       f.Limit,
		Offset:      f.Offset,
	}
	if !rbac.IsPlatformAdmin(c.Role) {
		q.Participant = c.UserID
	}
	return q
}

func (s *Service) ListMessages(ctx context.Context, c auth.Caller, f MessageFilter) ([]TeamMessage, error) {
	return s.repo.ListMessages(ctx, s.messageQuery(c, f))
}

func (s *Service) UrgentMessages(ctx context.Context, c auth.Caller) ([]TeamMessage, error) {
	return s.ListMessages(ctx, c, MessageFilter{UrgentOnly: true})
}

// Threads lists root messages, busiest first.
func (s *Service) Threads(ctx context.Context, c auth.Caller, f MessageFilter) ([]TeamMessage, error) {
	q := s.messageQuery(c, f)
	q.RootsOnly = true
	q.ByReplies = true
	return s.repo.ListMessages(ctx, q)
}

// UnreadMessages counts received messages the caller has not read.
func (s *Service) UnreadMessages(ctx context.Context, c auth.Caller) (int, error) {
	items, err := s.repo.ListMessages(ctx, MessageQuery{
		WorkspaceID:   c.WorkspaceID,
		Participant:   c.UserID,
		RecipientOnly: true,
		UnreadBy:      c.UserID,
	})
	return len(items), err
}

type UpdateMessageRequest struct {
	Subject          *string      `json:"subject" binding:"omitempty,max=200"`
	Content          *string      `json:"content"`
	MessageType      *MessageType `json:"message_type"`
	IsUrgent         *bool        `json:"is_urgent"`
	RequiresResponse *bool        `json:"requires_response"`
}

// UpdateMessage is limited to the sender.
func (s *Service) UpdateMessage(ctx context.Context, c auth.Caller, id string, req UpdateMessageRequest) (TeamMessage, error) {
	m, err := s.GetMessage(ctx, c, id)
	if err != nil {
		return TeamMessage{}, err
	}
	if m.SenderID != c.UserID {
		return TeamMessage{}, ErrForbidden
	}
	if req.Subject != nil {
		if strings.TrimSpace(*req.Subject) == "" {
			return TeamMessage{}, ErrInvalidArgument
		}
		m.Subject = strings.TrimSpace(*req.Subject)
	}
	if req.Content != nil {
		m.Content = *req.Content
	}
	if req.MessageType != nil {
		if !req.MessageType.Valid() {
			return TeamMessage{}, ErrInvalidArgument
		}
		m.MessageType = *req.MessageType
	}
	if req.IsUrgent != nil {
		m.IsUrgent = *req.IsUrgent
	}
	if req.RequiresResponse != nil {
		m.RequiresResponse = *req.RequiresResponse
	}
	m.UpdatedAt = s.clock().UTC()
	return s.repo.UpdateMessage(ctx, m)
}

// DeleteMessage is limited to the sender and platform admins.
func (s *Service) DeleteMessage(ctx context.Context, c auth.Caller, id string) error {
	m, err := s.GetMessage(ctx, c, id)
	if err != nil {
		return err
	}
	if m.SenderID != c.UserID && !rbac.IsPlatformAdmin(c.Role) {
		return ErrForbidden
	}
	return s.repo.DeleteMessage(ctx, id)
}

func (s *Service) MarkMessageRead(ctx context.Context, c auth.Caller, id string) (MessageRead, error) {
	m, err := s.GetMessage(ctx, c, id)
	if err != nil {
		return MessageRead{}, err
	}
	if !m.IsRecipient(c.UserID) {
		return MessageRead{}, ErrNotRecipient
	}
	return s.repo.MarkMessageRead(ctx, id, c.UserID, s.clock().UTC())
}

func (s *Service) Respond(ctx context.Context, c auth.Caller, id string) (MessageRead, error) {
	m, err := s.GetMessage(ctx, c, id)
	if err != nil {
		return MessageRead{}, err
	}
	if !m.RequiresResponse {
		return MessageRead{}, ErrResponseNotRequired
	}
	return s.repo.MarkResponded(ctx, id, c.UserID, s.clock().UTC())
}

type ReplyRequest struct {
	Content          string `json:"content" binding:"required"`
	Subject          string `json:"subject" binding:"omitempty,max=200"`
	IsUrgent         bool   `json:"is_urgent"`
	RequiresResponse bool   `json:"requires_response"`
}

// Reply answers to the parent's sender and recipients, minus the replier.
func (s *Service) Reply(ctx context.Context, c auth.Caller, parentID string, req ReplyRequest) (TeamMessage, error) {
	parent, err := s.GetMessage(ctx, c, parentID)
	if err != nil {
		return TeamMessage{}, err
	}
	if !parent.IsParticipant(c.UserID) {
		return TeamMessage{}, ErrForbidden
	}
	recipients := compact(append([]string{parent.SenderID}, parent.Recipients...))
	recipients = slices.DeleteFunc(recipients, func(id string) bool { return id == c.UserID })
	if len(recipients) == 0 {
		return TeamMessage{}, ErrInvalidArgument
	}
	subject := req.Subject
	if subject == "" {
		subject = parent.Subject
		if !strings.HasPrefix(subject, "Re: ") {
			subject = "Re: " + subject
		}
	}
	return s.newMessage(ctx, c, parent.ID, recipients, SendMessageRequest{
		MessageType:      parent.MessageType,
		Subject:          subject,
		Content:          req.Content,
		IsUrgent:         req.IsUrgent,
		RequiresResponse: req.RequiresResponse,
	})
}
