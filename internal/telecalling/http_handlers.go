package telecalling

import (
	"net/http"

	"bizops-platform/internal/auth"
	"bizops-platform/internal/httpapi"

	"github.com/gin-gonic/gin"
)

type Handlers struct {
	Service *Service
}

// Register mounts /telecalling. members gates the whole group; managers
// additionally gates the assignment and lead-triage endpoints.
func (h Handlers) Register(g *gin.RouterGroup, members, managers gin.HandlerFunc) {
	t := g.Group("/telecalling", members)
	t.GET("/dashboard", httpapi.WithCaller(h.Dashboard))

	v := t.Group("/visits")
	v.GET("", httpapi.WithCaller(h.ListVisits))
	v.POST("", httpapi.WithCaller(h.CreateVisit))
	v.GET("/today-leads", managers, httpapi.WithCaller(h.TodayLeads))
	v.GET("/:id", httpapi.WithCaller(h.GetVisit))
	v.PUT("/:id", httpapi.WithCaller(h.UpdateVisit))
	v.DELETE("/:id", httpapi.WithCaller(h.DeleteVisit))

	a := t.Group("/assignments")
	a.GET("", httpapi.WithCaller(h.ListAssignments))
	a.POST("", managers, httpapi.WithCaller(h.CreateAssignment))
	a.POST("/bulk-assign", managers, httpapi.WithCaller(h.BulkAssign))
	a.GET("/stats", httpapi.WithCaller(h.AssignmentStats))
	a.GET("/:id", httpapi.WithCaller(h.GetAssignment))
	a.PATCH("/:id", httpapi.WithCaller(h.UpdateAssignment))
	a.DELETE("/:id", managers, httpapi.WithCaller(h.DeleteAssignment))
	a.GET("/:id/detail", httpapi.WithCaller(h.AssignmentDetail))

	l := t.Group("/call-logs")
	l.GET("", httpapi.WithCaller(h.ListCallLogs))
	l.POST("", httpapi.WithCaller(h.LogCall))
	l.GET("/:id", httpapi.WithCaller(h.GetCallLog))

	f := t.Group("/follow-ups")
	f.GET("", httpapi.WithCaller(h.ListFollowUps))
	f.POST("", httpapi.WithCaller(h.CreateFollowUp))
	f.GET("/high-potential-leads", managers, httpapi.WithCaller(h.HighPotentialLeads))
	f.GET("/unconnected-calls", managers, httpapi.WithCaller(h.UnconnectedCalls))
	f.GET("/:id", httpapi.WithCaller(h.GetFollowUp))
	f.PATCH("/:id", httpapi.WithCaller(h.UpdateFollowUp))
	f.DELETE("/:id", managers, httpapi.WithCaller(h.DeleteFollowUp))
	f.POST("/:id/complete", httpapi.WithCaller(h.CompleteFollowUp))

	p := t.Group("/customer-profiles")
	p.GET("", httpapi.WithCaller(h.ListProfiles))
	p.GET("/analytics", httpapi.WithCaller(h.ProfileAnalytics))
	p.GET("/:id", httpapi.WithCaller(h.GetProfile))
	p.PATCH("/:id", httpapi.WithCaller(h.UpdateProfile))

	n := t.Group("/notifications")
	n.GET("", httpapi.WithCaller(h.ListNotifications))
	n.POST("/mark-all-read", httpapi.WithCaller(h.MarkAllNotificationsRead))
	n.POST("/:id/mark-read", httpapi.WithCaller(h.MarkNotificationRead))
}

func (h Handlers) Dashboard(c *gin.Context, caller auth.Caller) {
	d, err := h.Service.Dashboard(c.Request.Context(), caller)
	if err != nil {
		httpapi.AbortWithMessage(c, err, "Failed to fetch telecalling dashboard")
		return
	}
	c.JSON(http.StatusOK, d)
}

func (h Handlers) ListVisits(c *gin.Context, caller auth.Caller) {
	page := httpapi.PageFrom(c)
	items, err := h.Service.ListVisits(c.Request.Context(), caller, VisitListFilter{
		LeadQuality: LeadQuality(c.Query("lead_quality")),
		Search:      c.Query("search"),
		Limit:       page.Limit,
		Offset:      page.Offset,
	})
	httpapi.RespondList(c, items, err)
}

func (h Handlers) TodayLeads(c *gin.Context, caller auth.Caller) {
	items, err := h.Service.TodayLeads(c.Request.Context(), caller)
	httpapi.RespondList(c, items, err)
}

func (h Handlers) CreateVisit(c *gin.Context, caller auth.Caller) {
	var req VisitRequest
	if !httpapi.BindJSON(c, &req) {
		return
	}
	v, err := h.Service.CreateVisit(c.Request.Context(), caller, req)
	httpapi.Respond(c, http.StatusCreated, v, err)
}

func (h Handlers) GetVisit(c *gin.Context, caller auth.Caller) {
	v, err := h.Service.GetVisit(c.Request.Context(), caller, c.Param("id"))
	httpapi.Respond(c, http.StatusOK, v, err)
}

func (h Handlers) UpdateVisit(c *gin.Context, caller auth.Caller) {
	var req VisitRequest
	if !httpapi.BindJSON(c, &req) {
		return
	}
	v, err := h.Service.UpdateVisit(c.Request.Context(), caller, c.Param("id"), req)
	httpapi.Respond(c, http.StatusOK, v, err)
}

func (h Handlers) DeleteVisit(c *gin.Context, caller auth.Caller) {
	if err := h.Service.DeleteVisit(c.Request.Context(), caller, c.Param("id")); err != nil {
		httpapi.Abort(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h Handlers) ListAssignments(c *gin.Context, caller auth.Caller) {
	page := httpapi.PageFrom(c)
	items, err := h.Service.ListAssignments(c.Request.Context(), caller, AssignmentListFilter{
		Status: AssignmentStatus(c.Query("status")),
		Limit:  page.Limit,
		Offset: page.Offset,
	})
	httpapi.RespondList(c, items, err)
}

func (h Handlers) CreateAssignment(c *gin.Context, caller auth.Caller) {
	var req AssignmentRequest
	if !httpapi.BindJSON(c, &req) {
		return
	}
	a, err := h.Service.CreateAssignment(c.Request.Context(), caller, req)
	httpapi.Respond(c, http.StatusCreated, a, err)
}

func (h Handlers) BulkAssign(c *gin.Context, caller auth.Caller) {
	var req BulkAssignRequest
	if !httpapi.BindJSON(c, &req) {
		return
	}
	res, err := h.Service.BulkAssign(c.Request.Context(), caller, req)
	httpapi.Respond(c, http.StatusOK, res, err)
}

func (h Handlers) AssignmentStats(c *gin.Context, caller auth.Caller) {
	st, err := h.Service.AssignmentStats(c.Request.Context(), caller)
	if err != nil {
		httpapi.AbortWithMessage(c, err, "Failed to fetch assignment statistics")
		return
	}
	c.JSON(http.StatusOK, st)
}

func (h Handlers) GetAssignment(c *gin.Context, caller auth.Caller) {
	a, err := h.Service.GetAssignment(c.Request.Context(), caller, c.Param("id"))
	httpapi.Respond(c, http.StatusOK, a, err)
}

func (h Handlers) AssignmentDetail(c *gin.Context, caller auth.Caller) {
	d, err := h.Service.AssignmentDetail(c.Request.Context(), caller, c.Param("id"))
	httpapi.Respond(c, http.StatusOK, d, err)
}

func (h Handlers) UpdateAssignment(c *gin.Context, caller auth.Caller) {
	var req AssignmentUpdate
	if !httpapi.BindJSON(c, &req) {
		return
	}
	a, err := h.Service.UpdateAssignment(c.Request.Context(), caller, c.Param("id"), req)
	httpapi.Respond(c, http.StatusOK, a, err)
}

func (h Handlers) DeleteAssignment(c *gin.Context, caller auth.Caller) {
	if err := h.Service.DeleteAssignment(c.Request.Context(), caller, c.Param("id")); err != nil {
		httpapi.Abort(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h Handlers) ListCallLogs(c *gin.Context, caller auth.Caller) {
	page := httpapi.PageFrom(c)
	items, err := h.Service.ListCallLogs(c.Request.Context(), caller, CallLogListFilter{
		AssignmentID: c.Query("assignment_id"),
		Status:       CallStatus(c.Query("call_status")),
		Limit:        page.Limit,
		Offset:       page.Offset,
	})
	httpapi.RespondList(c, items, err)
}

func (h Handlers) LogCall(c *gin.Context, caller auth.Caller) {
	var req CallLogRequest
	if !httpapi.BindJSON(c, &req) {
		return
	}
	l, err := h.Service.LogCall(c.Request.Context(), caller, req)
	httpapi.Respond(c, http.StatusCreated, l, err)
}

func (h Handlers) GetCallLog(c *gin.Context, caller auth.Caller) {
	l, err := h.Service.GetCallLog(c.Request.Context(), caller, c.Param("id"))
	httpapi.Respond(c, http.StatusOK, l, err)
}

func (h Handlers) ListFollowUps(c *gin.Context, caller auth.Caller) {
	page := httpapi.PageFrom(c)
	items, err := h.Service.ListFollowUps(c.Request.Context(), caller, FollowUpListFilter{
		AssignmentID: c.Query("assignment_id"),
		Status:       FollowUpStatus(c.Query("status")),
		Limit:        page.Limit,
		Offset:       page.Offset,
	})
	httpapi.RespondList(c, items, err)
}

func (h Handlers) CreateFollowUp(c *gin.Context, caller auth.Caller) {
	var req FollowUpRequest
	if !httpapi.BindJSON(c, &req) {
		return
	}
	f, err := h.Service.CreateFollowUp(c.Request.Context(), caller, req)
	httpapi.Respond(c, http.StatusCreated, f, err)
}

func (h Handlers) GetFollowUp(c *gin.Context, caller auth.Caller) {
	f, err := h.Service.GetFollowUp(c.Request.Context(), caller, c.Param("id"))
	httpapi.Respond(c, http.StatusOK, f, err)
}

func (h Handlers) UpdateFollowUp(c *gin.Context, caller auth.Caller) {
	var req FollowUpUpdate
	if !httpapi.BindJSON(c, &req) {
		return
	}
	f, err := h.Service.UpdateFollowUp(c.Request.Context(), caller, c.Param("id"), req)
	httpapi.Respond(c, http.StatusOK, f, err)
}

func (h Handlers) CompleteFollowUp(c *gin.Context, caller auth.Caller) {
	f, err := h.Service.CompleteFollowUp(c.Request.Context(), caller, c.Param("id"))
	httpapi.Respond(c, http.StatusOK, f, err)
}

func (h Handlers) DeleteFollowUp(c *gin.Context, caller auth.Caller) {
	if err := h.Service.DeleteFollowUp(c.Request.Context(), caller, c.Param("id")); err != nil {
		httpapi.Abort(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h Handlers) HighPotentialLeads(c *gin.Context, caller auth.Caller) {
	items, err := h.Service.HighPotentialLeads(c.Request.Context(), caller)
	httpapi.RespondList(c, items, err)
}

func (h Handlers) UnconnectedCalls(c *gin.Context, caller auth.Caller) {
	items, err := h.Service.UnconnectedCalls(c.Request.Context(), caller)
	httpapi.RespondList(c, items, err)
}

func (h Handlers) ListProfiles(c *gin.Context, caller auth.Caller) {
	page := httpapi.PageFrom(c)
	items, err := h.Service.ListProfiles(c.Request.Context(), caller, ProfileListFilter{
		Likelihood: Likelihood(c.Query("conversion_likelihood")),
		Limit:      page.Limit,
		Offset:     page.Offset,
	})
	httpapi.RespondList(c, items, err)
}

func (h Handlers) ProfileAnalytics(c *gin.Context, caller auth.Caller) {
	a, err := h.Service.ProfileAnalytics(c.Request.Context(), caller)
	if err != nil {
		httpapi.AbortWithMessage(c, err, "Failed to fetch profile analytics")
		return
	}
	c.JSON(http.StatusOK, a)
}

func (h Handlers) GetProfile(c *gin.Context, caller auth.Caller) {
	p, err := h.Service.GetProfile(c.Request.Context(), caller, c.Param("id"))
	httpapi.Respond(c, http.StatusOK, p, err)
}

func (h Handlers) UpdateProfile(c *gin.Context, caller auth.Caller) {
	var req ProfileUpdate
	if !httpapi.BindJSON(c, &req) {
		return
	}
	p, err := h.Service.UpdateProfile(c.Request.Context(), caller, c.Param("id"), req)
	httpapi.Respond(c, http.StatusOK, p, err)
}

func (h Handlers) ListNotifications(c *gin.Context, caller auth.Caller) {
	page := httpapi.PageFrom(c)
	items, err := h.Service.ListNotifications(c.Request.Context(), caller, c.Query("unread") == "true", page.Limit, page.Offset)
	httpapi.RespondList(c, items, err)
}

func (h Handlers) MarkNotificationRead(c *gin.Context, caller auth.Caller) {
	if err := h.Service.MarkNotificationRead(c.Request.Context(), caller, c.Param("id")); err != nil {
		httpapi.Abort(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "marked as read"})
}

func (h Handlers) MarkAllNotificationsRead(c *gin.Context, caller auth.Caller) {
	n, err := h.Service.MarkAllNotificationsRead(c.Request.Context(), caller)
	if err != nil {
		httpapi.Abort(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "all marked as read", "updated": n})
}
