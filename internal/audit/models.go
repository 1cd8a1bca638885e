package audit

import "time"

// Event is an immutable, append-only audit log record.
//
// Invariants:
// - Events are never updated or deleted.
// - workspace_id is required for tenancy isolation.
// - actor and ip capture are best-effort; audit failures never fail the calling flow.
type Event struct {
	ID          string    `json:"id" db:"id"`
	WorkspaceID string    `json:"workspace_id" db:"workspace_id"`
	Type        EventType `json:"type" db:"type"`

	ActorUserID string `json:"actor_user_id,omitempty" db:"actor_user_id"`
	ActorRole   string `json:"actor_role,omitempty" db:"actor_role"`
	// IPAddress is the resolved client IP captured by httpapi.ClientIPMiddleware.
	IPAddress string `json:"ip_address,omitempty" db:"ip_address"`

	// EntityType/EntityID identify the record the action touched, e.g. ("support_ticket", "ST-20240101-0001").
	EntityType string `json:"entity_type,omitempty" db:"entity_type"`
	EntityID   string `json:"entity_id,omitempty" db:"entity_id"`

	Message string `json:"message,omitempty" db:"message"`
	// Metadata is optional JSON.
	Metadata string `json:"metadata,omitempty" db:"metadata"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

type EventType string

const (
	EventTypeTicketAssigned  EventType = "ticket_assigned"
	EventTypeTicketResolved  EventType = "ticket_resolved"
	EventTypeBulkAssignment  EventType = "telecalling_bulk_assign"
	EventTypeSettingsChanged EventType = "settings_changed"
	EventTypeIntegration     EventType = "integration_configured"
)
