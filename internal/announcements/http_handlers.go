package announcements

import (
	"net/http"

	"bizops-platform/internal/auth"
	"bizops-platform/internal/httpapi"

	"github.com/gin-gonic/gin"
)

type Handlers struct {
	Service *Service
}

func (h Handlers) ListAnnouncements(c *gin.Context) {
	caller, ok := httpapi.Caller(c)
	if !ok {
		return
	}
	page := httpapi.PageFrom(c)
	items, err := h.Service.ListAnnouncements(c.Request.Context(), caller, AnnouncementFilter{
		PinnedOnly: c.Query("is_pinned") == "true",
		Priority:   Priority(c.Query("priority")),
		Type:       Type(c.Query("announcement_type")),
		Search:     c.Query("search"),
		UnreadOnly: c.Query("unread") == "true",
		Limit:      page.Limit,
		Offset:     page.Offset,
	})
	httpapi.RespondList(c, items, err)
}

func (h Handlers) CreateAnnouncement(c *gin.Context) {
	caller, ok := httpapi.Caller(c)
	if !ok {
		return
	}
	var req CreateAnnouncementRequest
	if !httpapi.BindJSON(c, &req) {
		return
	}
	a, err := h.Service.CreateAnnouncement(c.Request.Context(), caller, req)
	if err != nil {
		httpapi.Abort(c, err)
		return
	}
	c.JSON(http.StatusCreated, a)
}

func (h Handlers) GetAnnouncement(c *gin.Context) {
	caller, ok := httpapi.Caller(c)
	if !ok {
		return
	}
	a, err := h.Service.GetAnnouncement(c.Request.Context(), caller, c.Param("id"))
	if err != nil {
		httpapi.Abort(c, err)
		return
	}
	c.JSON(http.StatusOK, a)
}

func (h Handlers) UpdateAnnouncement(c *gin.Context) {
	caller, ok := httpapi.Caller(c)
	if !ok {
		return
	}
	var req UpdateAnnouncementRequest
	if !httpapi.BindJSON(c, &req) {
		return
	}
	a, err := h.Service.UpdateAnnouncement(c.Request.Context(), caller, c.Param("id"), req)
	if err != nil {
		httpapi.Abort(c, err)
		return
	}
	c.JSON(http.StatusOK, a)
}

func (h Handlers) DeleteAnnouncement(c *gin.Context) {
	caller, ok := httpapi.Caller(c)
	if !ok {
		return
	}
	if err := h.Service.DeleteAnnouncement(c.Request.Context(), caller, c.Param("id")); err != nil {
		httpapi.Abort(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h Handlers) MarkAnnouncementRead(c *gin.Context) {
	caller, ok := httpapi.Caller(c)
	if !ok {
		return
	}
	if _, err := h.Service.MarkAnnouncementRead(c.Request.Context(), caller, c.Param("id")); err != nil {
		httpapi.Abort(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "marked as read"})
}

func (h Handlers) Acknowledge(c *gin.Context) {
	caller, ok := httpapi.Caller(c)
	if !ok {
		return
	}
	if _, err := h.Service.Acknowledge(c.Request.Context(), caller, c.Param("id")); err != nil {
		httpapi.Abort(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "acknowledged"})
}

func (h Handlers) unreadCount(count func(*gin.Context, auth.Caller) (int, error)) gin.HandlerFunc {
	return func(c *gin.Context) {
		caller, ok := httpapi.Caller(c)
		if !ok {
			return
		}
		n, err := count(c, caller)
		if err != nil {
			httpapi.Abort(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"unread_count": n})
	}
}

func (h Handlers) Pinned(c *gin.Context) {
	caller, ok := httpapi.Caller(c)
	if !ok {
		return
	}
	items, err := h.Service.Pinned(c.Request.Context(), caller)
	httpapi.RespondList(c, items, err)
}

func (h Handlers) UrgentAnnouncements(c *gin.Context) {
	caller, ok := httpapi.Caller(c)
	if !ok {
		return
	}
	items, err := h.Service.Urgent(c.Request.Context(), caller)
	httpapi.RespondList(c, items, err)
}

func (h Handlers) ListMessages(c *gin.Context) {
	caller, ok := httpapi.Caller(c)
	if !ok {
		return
	}
	page := httpapi.PageFrom(c)
	items, err := h.Service.ListMessages(c.Request.Context(), caller, MessageFilter{
		MessageType: MessageType(c.Query("message_type")),
		UrgentOnly:  c.Query("is_urgent") == "true",
		Limit:       page.Limit,
		Offset:      page.Offset,
	})
	httpapi.RespondList(c, items, err)
}

func (h Handlers) SendMessage(c *gin.Context) {
	caller, ok := httpapi.Caller(c)
	if !ok {
		return
	}
	var req SendMessageRequest
	if !httpapi.BindJSON(c, &req) {
		return
	}
	m, err := h.Service.SendMessage(c.Request.Context(), caller, req)
	if err != nil {
		httpapi.Abort(c, err)
		return
	}
	c.JSON(http.StatusCreated, m)
}

func (h Handlers) GetMessage(c *gin.Context) {
	caller, ok := httpapi.Caller(c)
	if !ok {
		return
	}
	m, err := h.Service.GetMessage(c.Request.Context(), caller, c.Param("id"))
	if err != nil {
		httpapi.Abort(c, err)
		return
	}
	c.JSON(http.StatusOK, m)
}

func (h Handlers) UpdateMessage(c *gin.Context) {
	caller, ok := httpapi.Caller(c)
	if !ok {
		return
	}
	var req UpdateMessageRequest
	if !httpapi.BindJSON(c, &req) {
		return
	}
	m, err := h.Service.UpdateMessage(c.Request.Context(), caller, c.Param("id"), req)
	if err != nil {
		httpapi.Abort(c, err)
		return
	}
	c.JSON(http.StatusOK, m)
}

func (h Handlers) DeleteMessage(c *gin.Context) {
	caller, ok := httpapi.Caller(c)
	if !ok {
		return
	}
	if err := h.Service.DeleteMessage(c.Request.Context(), caller, c.Param("id")); err != nil {
		httpapi.Abort(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h Handlers) MarkMessageRead(c *gin.Context) {
	caller, ok := httpapi.Caller(c)
	if !ok {
		return
	}
	if _, err := h.Service.MarkMessageRead(c.Request.Context(), caller, c.Param("id")); err != nil {
		httpapi.Abort(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "marked as read"})
}

func (h Handlers) Respond(c *gin.Context) {
	caller, ok := httpapi.Caller(c)
	if !ok {
		return
	}
	if _, err := h.Service.Respond(c.Request.Context(), caller, c.Param("id")); err != nil {
		httpapi.Abort(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "responded"})
}

func (h Handlers) Reply(c *gin.Context) {
	caller, ok := httpapi.Caller(c)
	if !ok {
		return
	}
	var req ReplyRequest
	if !httpapi.BindJSON(c, &req) {
		return
	}
	m, err := h.Service.Reply(c.Request.Context(), caller, c.Param("id"), req)
	if err != nil {
		httpapi.Abort(c, err)
		return
	}
	c.JSON(http.StatusCreated, m)
}

func (h Handlers) UrgentMessages(c *gin.Context) {
	caller, ok := httpapi.Caller(c)
	if !ok {
		return
	}
	items, err := h.Service.UrgentMessages(c.Request.Context(), caller)
	httpapi.RespondList(c, items, err)
}

func (h Handlers) Threads(c *gin.Context) {
	caller, ok := httpapi.Caller(c)
	if !ok {
		return
	}
	page := httpapi.PageFrom(c)
	items, err := h.Service.Threads(c.Request.Context(), caller, MessageFilter{Limit: page.Limit, Offset: page.Offset})
	httpapi.RespondList(c, items, err)
}

// Register mounts /announcements and /team-messages.
func (h Handlers) Register(g *gin.RouterGroup) {
	a := g.Group("/announcements")
	a.GET("", h.ListAnnouncements)
	a.POST("", h.CreateAnnouncement)
	a.GET("/unread-count", h.unreadCount(func(c *gin.Context, caller auth.Caller) (int, error) {
		return h.Service.UnreadAnnouncements(c.Request.Context(), caller)
	}))
	a.GET("/pinned", h.Pinned)
	a.GET("/urgent", h.UrgentAnnouncements)
	a.GET("/:id", h.GetAnnouncement)
	a.PATCH("/:id", h.UpdateAnnouncement)
	a.DELETE("/:id", h.DeleteAnnouncement)
	a.POST("/:id/read", h.MarkAnnouncementRead)
	a.POST("/:id/acknowledge", h.Acknowledge)

	m := g.Group("/team-messages")
	m.GET("", h.ListMessages)
	m.POST("", h.SendMessage)
	m.GET("/unread-count", h.unreadCount(func(c *gin.Context, caller auth.Caller) (int, error) {
		return h.Service.UnreadMessages(c.Request.Context(), caller)
	}))
	m.GET("/urgent", h.UrgentMessages)
	m.GET("/threads", h.Threads)
	m.GET("/:id", h.GetMessage)
	m.PATCH("/:id", h.UpdateMessage)
	m.DELETE("/:id", h.DeleteMessage)
	m.POST("/:id/read", h.MarkMessageRead)
	m.POST("/:id/respond", h.Respond)
	m.POST("/:id/reply", h.Reply)
}
