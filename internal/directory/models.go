package directory

import (
	"fmt"
	"time"

	"bizops-platform/internal/apperr"
)

// User is the tenant-scoped account record other modules resolve recipients from.
// Platform admins carry their home workspace but act across tenants.
type User struct {
	ID          string    `json:"id" db:"id"`
	WorkspaceID string    `json:"workspace_id" db:"workspace_id"`
	StoreID     string    `json:"store_id,omitempty" db:"store_id"`
	Role        string    `json:"role" db:"role"`
	Name        string    `json:"name" db:"name"`
	Email       string    `json:"email,omitempty" db:"email"`
	Phone       string    `json:"phone,omitempty" db:"phone"`
	IsActive    bool      `json:"is_active" db:"is_active"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}

var (
	ErrUserNotFound    = fmt.Errorf("directory: user %w", apperr.ErrNotFound)
	ErrInvalidArgument = fmt.Errorf("directory: %w", apperr.ErrInvalidArgument)
	ErrUserInactive    = fmt.Errorf("directory: user inactive: %w", apperr.ErrForbidden)
)
