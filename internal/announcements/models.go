// Package announcements implements tenant broadcasts with read and
// acknowledgment tracking, and threaded team messages.
package announcements

import (
	"fmt"
	"slices"
	"time"

	"bizops-platform/internal/apperr"
)

type Type string

const (
	TypeSystemWide    Type = "system_wide"
	TypeTeamSpecific  Type = "team_specific"
	TypeStoreSpecific Type = "store_specific"
	TypeRoleSpecific  Type = "role_specific"
)

func (t Type) Valid() bool {
	switch t {
	case TypeSystemWide, TypeTeamSpecific, TypeStoreSpecific, TypeRoleSpecific:
		return true
	}
	return false
}

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// Rank orders priorities; higher is more important. Unknown values rank 0.
func (p Priority) Rank() int {
	switch p {
	case PriorityUrgent:
		return 4
	case PriorityHigh:
		return 3
	case PriorityMedium:
		return 2
	case PriorityLow:
		return 1
	}
	return 0
}

func (p Priority) Valid() bool { return p.Rank() > 0 }

type Announcement struct {
	ID            string   `json:"id"`
	WorkspaceID   string   `json:"workspace_id"`
	Title         string   `json:"title"`
	Content       string   `json:"content"`
	Type          Type     `json:"announcement_type"`
	Priority      Priority `json:"priority"`
	TargetRoles   []string `json:"target_roles"`
	TargetStores  []string `json:"target_stores"`
	TargetTenants []string `json:"target_tenants"`

	IsPinned               bool `json:"is_pinned"`
	IsActive               bool `json:"is_active"`
	RequiresAcknowledgment bool `json:"requires_acknowledgment"`

	PublishAt time.Time  `json:"publish_at"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`

	AuthorID      string    `json:"author_id"`
	AuthorStoreID string    `json:"author_store_id,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func (a Announcement) IsExpired(now time.Time) bool {
	return a.ExpiresAt != nil && now.After(*a.ExpiresAt)
}

func (a Announcement) IsPublished(now time.Time) bool {
	return a.IsActive && !a.IsExpired(now) && !now.Before(a.PublishAt)
}

// Viewer is the identity announcements are filtered for.
type Viewer struct {
	UserID      string
	WorkspaceID string
	StoreID     string
	Role        string
}

// VisibleTo applies tenant, store and role targeting for a non-platform viewer.
func (a Announcement) VisibleTo(v Viewer, now time.Time) bool {
	if !a.IsPublished(now) {
		return false
	}
	if a.WorkspaceID != v.WorkspaceID && !slices.Contains(a.TargetTenants, v.WorkspaceID) {
		return false
	}
	if v.StoreID != "" && len(a.TargetStores) > 0 &&
		!slices.Contains(a.TargetStores, v.StoreID) && a.AuthorStoreID != v.StoreID {
		return false
	}
	if a.Type == TypeRoleSpecific && len(a.TargetRoles) > 0 && !slices.Contains(a.TargetRoles, v.Role) {
		return false
	}
	return true
}

// Less orders pinned first, then by priority, then newest.
func Less(a, b Announcement) bool {
	if a.IsPinned != b.IsPinned {
		return a.IsPinned
	}
	if ra, rb := a.Priority.Rank(), b.Priority.Rank(); ra != rb {
		return ra > rb
	}
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.After(b.CreatedAt)
	}
	return a.ID < b.ID
}

// Read is the per-user read marker; at most one exists per (announcement, user).
type Read struct {
	AnnouncementID string     `json:"announcement_id"`
	UserID         string     `json:"user_id"`
	ReadAt         time.Time  `json:"read_at"`
	Acknowledged   bool       `json:"acknowledged"`
	AcknowledgedAt *time.Time `json:"acknowledged_at,omitempty"`
}

type MessageType string

const (
	MessageGeneral  MessageType = "general"
	MessageTask     MessageType = "task"
	MessageCustomer MessageType = "customer"
	MessageUrgent   MessageType = "urgent"
)

func (t MessageType) Valid() bool {
	switch t {
	case MessageGeneral, MessageTask, MessageCustomer, MessageUrgent:
		return true
	}
	return false
}

type TeamMessage struct {
	ID               string      `json:"id"`
	WorkspaceID      string      `json:"workspace_id"`
	StoreID          string      `json:"store_id,omitempty"`
	SenderID         string      `json:"sender_id"`
	Recipients       []string    `json:"recipients"`
	ParentID         string      `json:"parent_message,omitempty"`
	MessageType      MessageType `json:"message_type"`
	Subject          string      `json:"subject"`
	Content          string      `json:"content"`
	IsUrgent         bool        `json:"is_urgent"`
	RequiresResponse bool        `json:"requires_response"`
	ReplyCount       int         `json:"reply_count"`
	CreatedAt        time.Time   `json:"created_at"`
	UpdatedAt        time.Time   `json:"updated_at"`
}

func (m TeamMessage) IsRecipient(userID string) bool { return slices.Contains(m.Recipients, userID) }

func (m TeamMessage) IsParticipant(userID string) bool {
	return m.SenderID == userID || m.IsRecipient(userID)
}

type MessageRead struct {
	MessageID   string     `json:"message_id"`
	UserID      string     `json:"user_id"`
	ReadAt      time.Time  `json:"read_at"`
	Responded   bool       `json:"responded"`
	RespondedAt *time.Time `json:"responded_at,omitempty"`
}

var (
	ErrAnnouncementNotFound = fmt.Errorf("announcements: announcement %w", apperr.ErrNotFound)
	ErrMessageNotFound      = fmt.Errorf("announcements: message %w", apperr.ErrNotFound)
	ErrInvalidArgument      = fmt.Errorf("announcements: %w", apperr.ErrInvalidArgument)
	ErrForbidden            = fmt.Errorf("announcements: %w", apperr.ErrForbidden)
	ErrAckNotRequired       = fmt.Errorf("announcements: this announcement does not require acknowledgment: %w", apperr.ErrInvalidArgument)
	ErrResponseNotRequired  = fmt.Errorf("announcements: this message does not require a response: %w", apperr.ErrInvalidArgument)
	ErrNotRecipient         = fmt.Errorf("announcements: not a recipient of this message: %w", apperr.ErrForbidden)
)
