package auth

import (
	"context"
	"errors"
)

type ctxKey int

const (
	ctxUserID ctxKey = iota
	ctxWorkspaceID
	ctxStoreID
	ctxRole
)

// Caller is the authenticated identity of a request.
type Caller struct {
	UserID      string
	WorkspaceID string
	StoreID     string
	Role        string
}

func WithIdentity(ctx context.Context, userID, workspaceID, role string) context.Context {
	ctx = context.WithValue(ctx, ctxUserID, userID)
	ctx = context.WithValue(ctx, ctxWorkspaceID, workspaceID)
	ctx = context.WithValue(ctx, ctxRole, role)
	return ctx
}

func WithCaller(ctx context.Context, c Caller) context.Context {
	ctx = WithIdentity(ctx, c.UserID, c.WorkspaceID, c.Role)
	if c.StoreID != "" {
		ctx = context.WithValue(ctx, ctxStoreID, c.StoreID)
	}
	return ctx
}

func UserID(ctx context.Context) (string, error) {
	v := ctx.Value(ctxUserID)
	if s, ok := v.(string); ok && s != "" {
		return s, nil
	}
	return "", errors.New("user_id not in context")
}

func WorkspaceID(ctx context.Context) (string, error) {
	v := ctx.Value(ctxWorkspaceID)
	if s, ok := v.(string); ok && s != "" {
		return s, nil
	}
	return "", errors.New("workspace_id not in context")
}

// StoreID returns the caller's store, or "" when the caller has none.
func StoreID(ctx context.Context) string {
	s, _ := ctx.Value(ctxStoreID).(string)
	return s
}

func Role(ctx context.Context) (string, error) {
	v := ctx.Value(ctxRole)
	if s, ok := v.(string); ok && s != "" {
		return s, nil
	}
	return "", errors.New("role not in context")
}

// CallerFrom collects the identity set by RequireAccessToken.
func CallerFrom(ctx context.Context) (Caller, error) {
	uid, err := UserID(ctx)
	if err != nil {
		return Caller{}, err
	}
	wid, err := WorkspaceID(ctx)
	if err != nil {
		return Caller{}, err
	}
	role, err := Role(ctx)
	if err != nil {
		return Caller{}, err
	}
	return Caller{UserID: uid, WorkspaceID: wid, StoreID: StoreID(ctx), Role: role}, nil
}
