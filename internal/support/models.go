package support

import (
	"fmt"
	"time"

	"bizops-platform/internal/apperr"
)

type Category string

const (
	CategoryTechnical      Category = "technical"
	CategoryBilling        Category = "billing"
	CategoryFeatureRequest Category = "feature_request"
	CategoryBugReport      Category = "bug_report"
	CategoryGeneral        Category = "general"
	CategoryIntegration    Category = "integration"
)

func (c Category) Valid() bool {
	switch c {
	case CategoryTechnical, CategoryBilling, CategoryFeatureRequest, CategoryBugReport, CategoryGeneral, CategoryIntegration:
		return true
	}
	return false
}

type Priority string

const (
	PriorityLow      Priority = "low"
	PriorityMedium   Priority = "medium"
	PriorityHigh     Priority = "high"
	PriorityCritical Priority = "critical"
)

func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityCritical:
		return true
	}
	return false
}

// ResponseLimit is how long a ticket of this priority may wait before it is overdue.
func (p Priority) ResponseLimit() time.Duration {
	switch p {
	case PriorityCritical:
		return 4 * time.Hour
	case PriorityHigh:
		return 8 * time.Hour
	case PriorityLow:
		return 48 * time.Hour
	default:
		return 24 * time.Hour
	}
}

type Status string

const (
	StatusOpen       Status = "open"
	StatusInProgress Status = "in_progress"
	StatusResolved   Status = "resolved"
	StatusClosed     Status = "closed"
	StatusReopened   Status = "reopened"
)

func (s Status) Valid() bool {
	switch s {
	case StatusOpen, StatusInProgress, StatusResolved, StatusClosed, StatusReopened:
		return true
	}
	return false
}

// OpenStatuses are the statuses counted as open work.
var OpenStatuses = []Status{StatusOpen, StatusInProgress, StatusReopened}

// Ticket is a support request raised by a tenant to the platform team.
type Ticket struct {
	ID       string `json:"id"`
	TicketID string `json:"ticket_id"`

	WorkspaceID string   `json:"workspace_id"`
	Title       string   `json:"title"`
	Summary     string   `json:"summary"`
	Category    Category `json:"category"`
	Priority    Priority `json:"priority"`
	Status      Status   `json:"status"`

	CreatedBy  string `json:"created_by"`
	AssignedTo string `json:"assigned_to,omitempty"`

	IsUrgent              bool   `json:"is_urgent"`
	RequiresCallback      bool   `json:"requires_callback"`
	CallbackPhone         string `json:"callback_phone,omitempty"`
	CallbackPreferredTime string `json:"callback_preferred_time,omitempty"`

	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
	ResolvedAt        *time.Time `json:"resolved_at,omitempty"`
	ClosedAt          *time.Time `json:"closed_at,omitempty"`
	FirstResponseAt   *time.Time `json:"first_response_at,omitempty"`
	OverdueNotifiedAt *time.Time `json:"-"`
}

func (t Ticket) IsOpen() bool {
	return t.Status == StatusOpen || t.Status == StatusInProgress || t.Status == StatusReopened
}

// IsOverdue applies to open and in_progress tickets only.
func (t Ticket) IsOverdue(now time.Time) bool {
	if t.Status != StatusOpen && t.Status != StatusInProgress {
		return false
	}
	return now.After(t.CreatedAt.Add(t.Priority.ResponseLimit()))
}

// ResponseTime is the delay until the first platform admin reply.
func (t Ticket) ResponseTime() (time.Duration, bool) {
	if t.FirstResponseAt == nil {
		return 0, false
	}
	return t.FirstResponseAt.Sub(t.CreatedAt), true
}

// TicketView is the JSON shape returned to clients, with derived fields.
type TicketView struct {
	Ticket
	IsOpen            bool     `json:"is_open"`
	IsOverdue         bool     `json:"is_overdue"`
	ResponseTimeHours *float64 `json:"response_time_hours"`
}

func (t Ticket) View(now time.Time) TicketView {
	v := TicketView{Ticket: t, IsOpen: t.IsOpen(), IsOverdue: t.IsOverdue(now)}
	if d, ok := t.ResponseTime(); ok {
		h := roundHours(d)
		v.ResponseTimeHours = &h
	}
	return v
}

type MessageType string

const (
	MessageText         MessageType = "text"
	MessageStatusUpdate MessageType = "status_update"
	MessageResolution   MessageType = "resolution"
	MessageReopening    MessageType = "reopening"
)

type Message struct {
	ID              string      `json:"id"`
	TicketID        string      `json:"ticket"`
	SenderID        string      `json:"sender_id,omitempty"`
	SenderRole      string      `json:"sender_role,omitempty"`
	Content         string      `json:"content"`
	IsInternal      bool        `json:"is_internal"`
	IsSystemMessage bool        `json:"is_system_message"`
	MessageType     MessageType `json:"message_type"`
	CreatedAt       time.Time   `json:"created_at"`
}

type NotificationType string

const (
	NotifyTicketCreated     NotificationType = "ticket_created"
	NotifyTicketUpdated     NotificationType = "ticket_updated"
	NotifyMessageReceived   NotificationType = "message_received"
	NotifyTicketResolved    NotificationType = "ticket_resolved"
	NotifyTicketClosed      NotificationType = "ticket_closed"
	NotifyTicketReopened    NotificationType = "ticket_reopened"
	NotifyCallbackRequested NotificationType = "callback_requested"
)

// Notification is a support-specific inbox entry, separate from the general notifications module.
type Notification struct {
	ID          string           `json:"id"`
	TicketID    string           `json:"ticket"`
	RecipientID string           `json:"recipient_id"`
	Type        NotificationType `json:"notification_type"`
	Title       string           `json:"title"`
	Message     string           `json:"message"`
	IsRead      bool             `json:"is_read"`
	CreatedAt   time.Time        `json:"created_at"`
}

// Settings is the per-tenant support configuration.
type Settings struct {
	WorkspaceID                  string    `json:"workspace_id"`
	AutoAssignTickets            bool      `json:"auto_assign_tickets"`
	MaxResponseTimeHours         int       `json:"max_response_time_hours"`
	CriticalResponseTimeHours    int       `json:"critical_response_time_hours"`
	EmailNotifications           bool      `json:"email_notifications"`
	SMSNotifications             bool      `json:"sms_notifications"`
	InAppNotifications           bool      `json:"in_app_notifications"`
	BusinessHoursStart           string    `json:"business_hours_start"`
	BusinessHoursEnd             string    `json:"business_hours_end"`
	Timezone                     string    `json:"timezone"`
	AutoCloseResolvedTicketsDays int       `json:"auto_close_resolved_tickets_days"`
	UpdatedAt                    time.Time `json:"updated_at"`
}

func DefaultSettings(workspaceID string) Settings {
	return Settings{
		WorkspaceID:                  workspaceID,
		AutoAssignTickets:            true,
		MaxResponseTimeHours:         24,
		CriticalResponseTimeHours:    4,
		EmailNotifications:           true,
		InAppNotifications:           true,
		BusinessHoursStart:           "09:00",
		BusinessHoursEnd:             "18:00",
		Timezone:                     "UTC",
		AutoCloseResolvedTicketsDays: 7,
	}
}

// DashboardStats summarises the caller's visible tickets.
type DashboardStats struct {
	TotalTickets      int            `json:"total_tickets"`
	OpenTickets       int            `json:"open_tickets"`
	ResolvedToday     int            `json:"resolved_today"`
	AvgResponseHours  float64        `json:"avg_response_hours"`
	PriorityBreakdown map[string]int `json:"priority_breakdown"`
}

var (
	ErrTicketNotFound       = fmt.Errorf("support: ticket %w", apperr.ErrNotFound)
	ErrNotificationNotFound = fmt.Errorf("support: notification %w", apperr.ErrNotFound)
	ErrSettingsNotFound     = fmt.Errorf("support: settings %w", apperr.ErrNotFound)
	ErrInvalidArgument      = fmt.Errorf("support: %w", apperr.ErrInvalidArgument)
	ErrForbidden            = fmt.Errorf("support: %w", apperr.ErrForbidden)
	ErrTicketIDConflict     = fmt.Errorf("support: ticket id %w", apperr.ErrConflict)
	ErrNotResolved          = fmt.Errorf("support: only resolved tickets can be reopened: %w", apperr.ErrInvalidArgument)
)
