package auth

import "github.com/golang-jwt/jwt/v5"

type TokenType string

const (
	TokenTypeAccess  TokenType = "access"
	TokenTypeRefresh TokenType = "refresh"
)

// Claims are the only supported JWT claims shape for this service.
// WorkspaceID is the tenant boundary; StoreID is optional.
type Claims struct {
	jwt.RegisteredClaims

	UserID      string    `json:"user_id"`
	WorkspaceID string    `json:"workspace_id"`
	StoreID     string    `json:"store_id,omitempty"`
	Role        string    `json:"role"`
	TokenType   TokenType `json:"token_type"`
}

// Subject identifies who a token pair is issued for.
type Subject struct {
	UserID      string
	WorkspaceID string
	StoreID     string
	Role        string
}
