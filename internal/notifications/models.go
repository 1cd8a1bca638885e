package notifications

import (
	"fmt"
	"slices"
	"time"

	"bizops-platform/internal/apperr"
)

type Type string

const (
	TypeAppointmentReminder    Type = "appointment_reminder"
	TypeOrderStatus            Type = "order_status"
	TypeInventoryAlert         Type = "inventory_alert"
	TypeNewCustomer            Type = "new_customer"
	TypeDealUpdate             Type = "deal_update"
	TypePaymentReceived        Type = "payment_received"
	TypeTaskReminder           Type = "task_reminder"
	TypeAnnouncement           Type = "announcement"
	TypeEscalation             Type = "escalation"
	TypeMarketingCampaign      Type = "marketing_campaign"
	TypeStockTransferRequest   Type = "stock_transfer_request"
	TypeStockTransferApproved  Type = "stock_transfer_approved"
	TypeStockTransferCompleted Type = "stock_transfer_completed"
	TypeStockTransferCancelled Type = "stock_transfer_cancelled"
	TypeStockTransferRejected  Type = "stock_transfer_rejected"
)

var knownTypes = []Type{
	TypeAppointmentReminder, TypeOrderStatus, TypeInventoryAlert, TypeNewCustomer,
	TypeDealUpdate, TypePaymentReceived, TypeTaskReminder, TypeAnnouncement,
	TypeEscalation, TypeMarketingCampaign, TypeStockTransferRequest,
	TypeStockTransferApproved, TypeStockTransferCompleted, TypeStockTransferCancelled,
	TypeStockTransferRejected,
}

func (t Type) Valid() bool { return slices.Contains(knownTypes, t) }

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent:
		return true
	}
	return false
}

type Status string

const (
	StatusUnread Status = "unread"
	StatusRead   Status = "read"
)

// Notification is an in-app message addressed to one user.
type Notification struct {
	ID           string     `json:"id"`
	WorkspaceID  string     `json:"workspace_id"`
	StoreID      string     `json:"store_id,omitempty"`
	UserID       string     `json:"user_id"`
	Type         Type       `json:"type"`
	Priority     Priority   `json:"priority"`
	Status       Status     `json:"status"`
	Title        string     `json:"title"`
	Message      string     `json:"message"`
	ActionURL    string     `json:"action_url,omitempty"`
	ActionText   string     `json:"action_text,omitempty"`
	IsPersistent bool       `json:"is_persistent"`
	Metadata     string     `json:"metadata,omitempty"`
	ReadAt       *time.Time `json:"read_at,omitempty"`
	ExpiresAt    *time.Time `json:"expires_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
}

// Settings holds one user's delivery preferences.
type Settings struct {
	UserID            string    `json:"user_id"`
	WorkspaceID       string    `json:"workspace_id"`
	EmailTypes        []Type    `json:"email_types"`
	PushTypes         []Type    `json:"push_types"`
	InAppTypes        []Type    `json:"in_app_types"`
	MarketingUpdates  bool      `json:"marketing_updates"`
	QuietHoursEnabled bool      `json:"quiet_hours_enabled"`
	QuietHoursStart   string    `json:"quiet_hours_start"`
	QuietHoursEnd     string    `json:"quiet_hours_end"`
	Timezone          string    `json:"timezone"`
	UpdatedAt         time.Time `json:"updated_at"`
}

func DefaultSettings(workspaceID, userID string) Settings {
	return Settings{
		UserID:          userID,
		WorkspaceID:     workspaceID,
		EmailTypes:      []Type{TypeAppointmentReminder, TypeDealUpdate},
		PushTypes:       []Type{TypeAppointmentReminder, TypeInventoryAlert},
		InAppTypes:      []Type{TypeAppointmentReminder, TypeDealUpdate, TypeInventoryAlert},
		QuietHoursStart: "22:00",
		QuietHoursEnd:   "08:00",
		Timezone:        "Asia/Kolkata",
	}
}

// InQuietHours reports whether now falls inside the user's quiet window.
// Windows may wrap midnight (22:00-08:00). An unknown timezone falls back to UTC.
func (s Settings) InQuietHours(now time.Time) bool {
	if !s.QuietHoursEnabled {
		return false
	}
	start, err1 := parseClock(s.QuietHoursStart)
	end, err2 := parseClock(s.QuietHoursEnd)
	if err1 != nil || err2 != nil || start == end {
		return false
	}
	loc, err := time.LoadLocation(s.Timezone)
	if err != nil {
		loc = time.UTC
	}
	local := now.In(loc)
	m := local.Hour()*60 + local.Minute()
	if start < end {
		return m >= start && m < end
	}
	return m >= start || m < end
}

func parseClock(v string) (int, error) {
	t, err := time.Parse("15:04", v)
	if err != nil {
		return 0, err
	}
	return t.Hour()*60 + t.Minute(), nil
}

var (
	ErrNotFound         = fmt.Errorf("notifications: notification %w", apperr.ErrNotFound)
	ErrSettingsNotFound = fmt.Errorf("notifications: settings %w", apperr.ErrNotFound)
	ErrInvalidArgument  = fmt.Errorf("notifications: %w", apperr.ErrInvalidArgument)
	ErrPersistent       = fmt.Errorf("notifications: persistent notifications cannot be deleted: %w", apperr.ErrInvalidArgument)
)
