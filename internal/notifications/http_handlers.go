package notifications

import (
	"net/http"

	"bizops-platform/internal/httpapi"

	"github.com/gin-gonic/gin"
)

type Handlers struct {
	Service *Service
}

func (h Handlers) List(c *gin.Context) {
	caller, ok := httpapi.Caller(c)
	if !ok {
		return
	}
	page := httpapi.PageFrom(c)
	items, err := h.Service.List(c.Request.Context(), ListFilter{
		WorkspaceID: caller.WorkspaceID,
		UserID:      caller.UserID,
		Status:      Status(c.Query("status")),
		Type:        Type(c.Query("type")),
		Limit:       page.Limit,
		Offset:      page.Offset,
	})
	if err != nil {
		httpapi.Abort(c, err)
		return
	}
	if items == nil {
		items = []Notification{}
	}
	c.JSON(http.StatusOK, gin.H{"results": items})
}

func (h Handlers) Create(c *gin.Context) {
	caller, ok := httpapi.Caller(c)
	if !ok {
		return
	}
	var req NotifyRequest
	if !httpapi.BindJSON(c, &req) {
		return
	}
	req.WorkspaceID = caller.WorkspaceID
	n, err := h.Service.Create(c.Request.Context(), req)
	if err != nil {
		httpapi.Abort(c, err)
		return
	}
	c.JSON(http.StatusCreated, n)
}

func (h Handlers) MarkRead(c *gin.Context) {
	caller, ok := httpapi.Caller(c)
	if !ok {
		return
	}
	n, err := h.Service.MarkRead(c.Request.Context(), caller.WorkspaceID, caller.UserID, c.Param("id"))
	if err != nil {
		httpapi.Abort(c, err)
		return
	}
	c.JSON(http.StatusOK, n)
}

func (h Handlers) MarkAllRead(c *gin.Context) {
	caller, ok := httpapi.Caller(c)
	if !ok {
		return
	}
	n, err := h.Service.MarkAllRead(c.Request.Context(), caller.WorkspaceID, caller.UserID)
	if err != nil {
		httpapi.Abort(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"marked": n})
}

func (h Handlers) UnreadCount(c *gin.Context) {
	caller, ok := httpapi.Caller(c)
	if !ok {
		return
	}
	n, err := h.Service.UnreadCount(c.Request.Context(), caller.WorkspaceID, caller.UserID)
	if err != nil {
		httpapi.Abort(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"unread_count": n})
}

func (h Handlers) Delete(c *gin.Context) {
	caller, ok := httpapi.Caller(c)
	if !ok {
		return
	}
	if err := h.Service.Delete(c.Request.Context(), caller.WorkspaceID, caller.UserID, c.Param("id")); err != nil {
		httpapi.Abort(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h Handlers) MySettings(c *gin.Context) {
	caller, ok := httpapi.Caller(c)
	if !ok {
		return
	}
	s, err := h.Service.MySettings(c.Request.Context(), caller.WorkspaceID, caller.UserID)
	if err != nil {
		httpapi.Abort(c, err)
		return
	}
	c.JSON(http.StatusOK, s)
}

func (h Handlers) UpdateSettings(c *gin.Context) {
	caller, ok := httpapi.Caller(c)
	if !ok {
		return
	}
	var p SettingsPatch
	if !httpapi.BindJSON(c, &p) {
		return
	}
	s, err := h.Service.UpdateSettings(c.Request.Context(), caller.WorkspaceID, caller.UserID, p)
	if err != nil {
		httpapi.Abort(c, err)
		return
	}
	c.JSON(http.StatusOK, s)
}

// Register mounts /notifications. creators gates POST /notifications.
func (h Handlers) Register(g *gin.RouterGroup, creators gin.HandlerFunc) {
	n := g.Group("/notifications")
	n.GET("", h.List)
	n.POST("", creators, h.Create)
	n.GET("/unread-count", h.UnreadCount)
	n.POST("/read-all", h.MarkAllRead)
	n.GET("/settings", h.MySettings)
	n.PATCH("/settings", h.UpdateSettings)
	n.POST("/:id/read", h.MarkRead)
	n.DELETE("/:id", h.Delete)
}
