package support

import (
	"errors"
	"net/http"

	"bizops-platform/internal/apperr"
	"bizops-platform/internal/httpapi"
	"bizops-platform/internal/rbac"

	"github.com/gin-gonic/gin"
)

type Handlers struct {
	Service *Service
}

func (h Handlers) ListTickets(c *gin.Context) {
	caller, ok := httpapi.Caller(c)
	if !ok {
		return
	}
	page := httpapi.PageFrom(c)
	views, err := h.Service.List(c.Request.Context(), caller, TicketFilter{
		Status:     Status(c.Query("status")),
		Priority:   Priority(c.Query("priority")),
		Category:   Category(c.Query("category")),
		AssignedTo: c.Query("assigned_to"),
		Search:     c.Query("search"),
		Limit:      page.Limit,
		Offset:     page.Offset,
	})
	if err != nil {
		httpapi.Abort(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"results": views})
}

func (h Handlers) CreateTicket(c *gin.Context) {
	caller, ok := httpapi.Caller(c)
	if !ok {
		return
	}
	var req CreateTicketRequest
	if !httpapi.BindJSON(c, &req) {
		return
	}
	t, err := h.Service.Create(c.Request.Context(), caller, req)
	if err != nil {
		httpapi.Abort(c, err)
		return
	}
	c.JSON(http.StatusCreated, t.View(h.Service.now()))
}

func (h Handlers) GetTicket(c *gin.Context) {
	caller, ok := httpapi.Caller(c)
	if !ok {
		return
	}
	v, err := h.Service.Get(c.Request.Context(), caller, c.Param("id"))
	if err != nil {
		httpapi.Abort(c, err)
		return
	}
	c.JSON(http.StatusOK, v)
}

func (h Handlers) UpdateTicket(c *gin.Context) {
	caller, ok := httpapi.Caller(c)
	if !ok {
		return
	}
	var req UpdateTicketRequest
	if !httpapi.BindJSON(c, &req) {
		return
	}
	v, err := h.Service.Update(c.Request.Context(), caller, c.Param("id"), req)
	if err != nil {
		httpapi.Abort(c, err)
		return
	}
	c.JSON(http.StatusOK, v)
}

func (h Handlers) AssignToMe(c *gin.Context) {
	caller, ok := httpapi.Caller(c)
	if !ok {
		return
	}
	v, err := h.Service.AssignToMe(c.Request.Context(), caller, c.Param("id"))
	httpapi.Respond(c, http.StatusOK, v, err)
}

func (h Handlers) Resolve(c *gin.Context) {
	caller, ok := httpapi.Caller(c)
	if !ok {
		return
	}
	v, err := h.Service.Resolve(c.Request.Context(), caller, c.Param("id"))
	httpapi.Respond(c, http.StatusOK, v, err)
}

func (h Handlers) Close(c *gin.Context) {
	caller, ok := httpapi.Caller(c)
	if !ok {
		return
	}
	v, err := h.Service.Close(c.Request.Context(), caller, c.Param("id"))
	httpapi.Respond(c, http.StatusOK, v, err)
}

func (h Handlers) Reopen(c *gin.Context) {
	caller, ok := httpapi.Caller(c)
	if !ok {
		return
	}
	v, err := h.Service.Reopen(c.Request.Context(), caller, c.Param("id"))
	httpapi.Respond(c, http.StatusOK, v, err)
}

func (h Handlers) Summary(c *gin.Context) {
	caller, ok := httpapi.Caller(c)
	if !ok {
		return
	}
	s, err := h.Service.Summary(c.Request.Context(), caller, c.Param("id"))
	httpapi.Respond(c, http.StatusOK, s, err)
}

func (h Handlers) ListMessages(c *gin.Context) {
	caller, ok := httpapi.Caller(c)
	if !ok {
		return
	}
	msgs, err := h.Service.Messages(c.Request.Context(), caller, c.Param("id"))
	if err != nil {
		httpapi.Abort(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"results": httpapi.Apply(httpapi.PageFrom(c), msgs)})
}

func (h Handlers) AddMessage(c *gin.Context) {
	caller, ok := httpapi.Caller(c)
	if !ok {
		return
	}
	var req AddMessageRequest
	if !httpapi.BindJSON(c, &req) {
		return
	}
	m, err := h.Service.AddMessage(c.Request.Context(), caller, c.Param("id"), req)
	if err != nil {
		httpapi.Abort(c, err)
		return
	}
	c.JSON(http.StatusCreated, m)
}

func (h Handlers) DashboardStats(c *gin.Context) {
	caller, ok := httpapi.Caller(c)
	if !ok {
		return
	}
	st, err := h.Service.DashboardStats(c.Request.Context(), caller)
	if err != nil {
		if errors.Is(err, apperr.ErrForbidden) {
			httpapi.Abort(c, err)
			return
		}
		httpapi.AbortWithMessage(c, err, "Failed to fetch support statistics")
		return
	}
	c.JSON(http.StatusOK, st)
}

func (h Handlers) ListNotifications(c *gin.Context) {
	caller, ok := httpapi.Caller(c)
	if !ok {
		return
	}
	page := httpapi.PageFrom(c)
	ns, err := h.Service.ListNotifications(c.Request.Context(), caller, page.Limit, page.Offset)
	if err != nil {
		httpapi.Abort(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"results": ns})
}

func (h Handlers) MarkNotificationRead(c *gin.Context) {
	caller, ok := httpapi.Caller(c)
	if !ok {
		return
	}
	if err := h.Service.MarkNotificationRead(c.Request.Context(), caller, c.Param("id")); err != nil {
		httpapi.Abort(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Notification marked as read"})
}

func (h Handlers) MarkAllNotificationsRead(c *gin.Context) {
	caller, ok := httpapi.Caller(c)
	if !ok {
		return
	}
	n, err := h.Service.MarkAllNotificationsRead(c.Request.Context(), caller)
	if err != nil {
		httpapi.Abort(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "All notifications marked as read", "marked": n})
}

func (h Handlers) GetSettings(c *gin.Context) {
	caller, ok := httpapi.Caller(c)
	if !ok {
		return
	}
	st, err := h.Service.Settings(c.Request.Context(), caller)
	httpapi.Respond(c, http.StatusOK, st, err)
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
	st, err := h.Service.UpdateSettings(c.Request.Context(), caller, p)
	httpapi.Respond(c, http.StatusOK, st, err)
}

// Register mounts /support. Ticket visibility is enforced in the service.
func (h Handlers) Register(g *gin.RouterGroup) {
	tenantAdmins := rbac.RequireAnyRole(rbac.RoleBusinessAdmin, rbac.RoleManager)

	s := g.Group("/support")
	s.GET("/tickets", h.ListTickets)
	s.POST("/tickets", tenantAdmins, h.CreateTicket)
	s.GET("/tickets/stats", h.DashboardStats)
	s.GET("/tickets/:id", h.GetTicket)
	s.PATCH("/tickets/:id", h.UpdateTicket)
	s.POST("/tickets/:id/assign-to-me", h.AssignToMe)
	s.POST("/tickets/:id/resolve", h.Resolve)
	s.POST("/tickets/:id/close", h.Close)
	s.POST("/tickets/:id/reopen", h.Reopen)
	s.GET("/tickets/:id/summary", h.Summary)
	s.GET("/tickets/:id/messages", h.ListMessages)
	s.POST("/tickets/:id/messages", h.AddMessage)

	s.GET("/notifications", h.ListNotifications)
	s.POST("/notifications/read-all", h.MarkAllNotificationsRead)
	s.POST("/notifications/:id/read", h.MarkNotificationRead)

	s.GET("/settings", tenantAdmins, h.GetSettings)
	s.PATCH("/settings", rbac.RequireAnyRole(rbac.RoleBusinessAdmin), h.UpdateSettings)
}
