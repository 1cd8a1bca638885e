package directory

import (
	"net/http"
	"time"

	"bizops-platform/internal/auth"
	"bizops-platform/internal/httpapi"

	"github.com/gin-gonic/gin"
)

// Handlers exposes the user directory and token issuance over HTTP.
type Handlers struct {
	Service *Service
	Auth    *auth.Manager

	// AllowDevLogin enables POST /auth/token, which issues tokens for an existing
	// active user without a credential check. Never enable in production.
	AllowDevLogin bool
}

type tokenRequest struct {
	UserID string `json:"user_id" binding:"required"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

func (h Handlers) IssueToken(c *gin.Context) {
	if h.Service == nil || h.Auth == nil {
		httpapi.NotConfigured(c, "auth")
		return
	}
	if !h.AllowDevLogin {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}
	var req tokenRequest
	if !httpapi.BindJSON(c, &req) {
		return
	}
	h.issueFor(c, req.UserID, "")
}

// Refresh rotates a token pair; role and store are re-read from the directory.
func (h Handlers) Refresh(c *gin.Context) {
	if h.Service == nil || h.Auth == nil {
		httpapi.NotConfigured(c, "auth")
		return
	}
	var req refreshRequest
	if !httpapi.BindJSON(c, &req) {
		return
	}
	claims, err := h.Auth.Verify(req.RefreshToken, auth.TokenTypeRefresh, time.Now())
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}
	h.issueFor(c, claims.UserID, claims.WorkspaceID)
}

func (h Handlers) issueFor(c *gin.Context, userID, workspaceID string) {
	u, err := h.Service.Get(c.Request.Context(), userID)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unknown user"})
		return
	}
	if !u.IsActive || (workspaceID != "" && u.WorkspaceID != workspaceID) {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "user inactive"})
		return
	}
	pair, err := h.Auth.IssuePair(time.Now(), auth.Subject{
		UserID:      u.ID,
		WorkspaceID: u.WorkspaceID,
		StoreID:     u.StoreID,
		Role:        u.Role,
	})
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "token issuance failed"})
		return
	}
	c.JSON(http.StatusOK, pair)
}

func (h Handlers) Me(c *gin.Context) {
	caller, ok := httpapi.Caller(c)
	if !ok {
		return
	}
	if h.Service == nil {
		c.JSON(http.StatusOK, gin.H{"user_id": caller.UserID, "workspace_id": caller.WorkspaceID, "store_id": caller.StoreID, "role": caller.Role})
		return
	}
	u, err := h.Service.Get(c.Request.Context(), caller.UserID)
	if err != nil {
		httpapi.Abort(c, err)
		return
	}
	c.JSON(http.StatusOK, u)
}

func (h Handlers) ListUsers(c *gin.Context) {
	if h.Service == nil {
		httpapi.NotConfigured(c, "directory")
		return
	}
	caller, ok := httpapi.Caller(c)
	if !ok {
		return
	}
	users, err := h.Service.ListWorkspace(c.Request.Context(), caller.WorkspaceID)
	if err != nil {
		httpapi.Abort(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"results": httpapi.Apply(httpapi.PageFrom(c), users), "count": len(users)})
}

func (h Handlers) UpsertUser(c *gin.Context) {
	if h.Service == nil {
		httpapi.NotConfigured(c, "directory")
		return
	}
	caller, ok := httpapi.Caller(c)
	if !ok {
		return
	}
	var req UpsertUserRequest
	if !httpapi.BindJSON(c, &req) {
		return
	}
	u, err := h.Service.Upsert(c.Request.Context(), caller.WorkspaceID, req)
	if err != nil {
		httpapi.Abort(c, err)
		return
	}
	c.JSON(http.StatusOK, u)
}

// Register mounts the authenticated directory routes.
func (h Handlers) Register(g *gin.RouterGroup, adminOnly gin.HandlerFunc) {
	g.GET("/me", h.Me)
	users := g.Group("/directory/users")
	users.GET("", adminOnly, h.ListUsers)
	users.POST("", adminOnly, h.UpsertUser)
}
